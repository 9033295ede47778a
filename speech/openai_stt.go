package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/internal/tlsutil"
)

// OpenAISTTProvider 使用 OpenAI Whisper API 执行 STT。
type OpenAISTTProvider struct {
	cfg    OpenAISTTConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAISTTProvider 创建 OpenAI Whisper STT 提供者。
func NewOpenAISTTProvider(cfg OpenAISTTConfig, logger *zap.Logger) *OpenAISTTProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAISTTProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("provider", "whisper")),
	}
}

func (p *OpenAISTTProvider) Name() string    { return "whisper" }
func (p *OpenAISTTProvider) Available() bool { return p.cfg.APIKey != "" }

type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Segments []struct {
		ID           int     `json:"id"`
		Text         string  `json:"text"`
		AvgLogprob   float64 `json:"avg_logprob,omitempty"`
		NoSpeechProb float64 `json:"no_speech_prob,omitempty"`
	} `json:"segments,omitempty"`
}

// Transcribe 将语音转换为文本。
func (p *OpenAISTTProvider) Transcribe(ctx context.Context, req *STTRequest) (*STTResponse, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("audio input is required")
	}
	start := time.Now()

	format := req.Format
	if format == "" {
		format = "mp3"
	}

	// 构建 multipart 表单
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "attempt."+format)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}
	_ = writer.WriteField("model", p.cfg.Model)
	_ = writer.WriteField("response_format", "verbose_json")
	if req.Language != "" {
		_ = writer.WriteField("language", string(req.Language))
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(p.Name(), resp.StatusCode, errBody)
	}

	var wResp whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&wResp); err != nil {
		return nil, transportError(p.Name(), fmt.Errorf("failed to decode response: %w", err))
	}

	return &STTResponse{
		Provider:   p.Name(),
		Text:       strings.TrimSpace(wResp.Text),
		Confidence: whisperConfidence(wResp),
		Language:   req.Language,
		Elapsed:    time.Since(start),
		CreatedAt:  time.Now(),
	}, nil
}

// whisperConfidence 从分段 avg_logprob 估算整体置信度。
// Whisper 不直接返回置信度：exp(avg_logprob) 给出逐 token 概率的几何均值，
// 再按 no_speech_prob 打折。无分段信息时保守取 0.8。
func whisperConfidence(r whisperResponse) float64 {
	if len(r.Segments) == 0 {
		if strings.TrimSpace(r.Text) == "" {
			return 0
		}
		return 0.8
	}

	var sum float64
	for _, seg := range r.Segments {
		p := expClamped(seg.AvgLogprob)
		p *= 1 - clamp01(seg.NoSpeechProb)
		sum += p
	}
	return clamp01(sum / float64(len(r.Segments)))
}

// expClamped 把 avg_logprob 还原为概率。logprob 上界为 0（概率 1）。
func expClamped(logprob float64) float64 {
	if logprob >= 0 {
		return 1
	}
	return math.Exp(logprob)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
