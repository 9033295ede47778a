package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/internal/tlsutil"
	"github.com/BaSui01/speechflow/types"
)

// DeepgramProvider 使用 Deepgram API 执行 STT。
type DeepgramProvider struct {
	cfg    DeepgramConfig
	client *http.Client
	logger *zap.Logger
}

// deepgramLangs 是 nova-2 模型覆盖的语言集合。
// 不在表内的语言替换为多语言模式（language 参数留空）。
var deepgramLangs = map[types.Language]string{
	types.LangHindi:   "hi",
	types.LangEnglish: "en-IN",
	types.LangTamil:   "ta",
	types.LangTelugu:  "te",
}

// NewDeepgramProvider 创建 Deepgram STT 提供者。
func NewDeepgramProvider(cfg DeepgramConfig, logger *zap.Logger) *DeepgramProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepgram.com"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeepgramProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("provider", "deepgram")),
	}
}

func (p *DeepgramProvider) Name() string    { return "deepgram" }
func (p *DeepgramProvider) Available() bool { return p.cfg.APIKey != "" }

type deepgramResponse struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe 将语音转换为文本。
func (p *DeepgramProvider) Transcribe(ctx context.Context, req *STTRequest) (*STTResponse, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("audio input is required")
	}
	start := time.Now()

	params := url.Values{}
	params.Set("model", p.cfg.Model)
	params.Set("smart_format", "true")
	params.Set("punctuate", "true")
	if code, ok := deepgramLangs[req.Language]; ok {
		params.Set("language", code)
	} else {
		p.logger.Warn("unsupported language, falling back to multilingual detection",
			zap.String("requested", string(req.Language)))
	}

	endpoint := fmt.Sprintf("%s/v1/listen?%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "audio/mpeg")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(p.Name(), resp.StatusCode, errBody)
	}

	var dResp deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&dResp); err != nil {
		return nil, transportError(p.Name(), fmt.Errorf("failed to decode response: %w", err))
	}

	result := &STTResponse{
		Provider:  p.Name(),
		Language:  req.Language,
		Elapsed:   time.Since(start),
		CreatedAt: time.Now(),
	}

	// 取第一频道第一候选
	if len(dResp.Results.Channels) > 0 && len(dResp.Results.Channels[0].Alternatives) > 0 {
		alt := dResp.Results.Channels[0].Alternatives[0]
		result.Text = strings.TrimSpace(alt.Transcript)
		result.Confidence = clamp01(alt.Confidence)
	}

	return result, nil
}
