package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/internal/tlsutil"
	"github.com/BaSui01/speechflow/types"
)

// OpenAITTSProvider 使用 OpenAI TTS API 执行合成。
// 无显式语言参数（模型按文本推断），作为成本优先的兜底后端。
type OpenAITTSProvider struct {
	cfg    OpenAITTSConfig
	client *http.Client
	logger *zap.Logger
}

// openAITTSLangs 是实测发音可接受的语言集合。
// 其余语言替换为印地语语料可接受的默认处理（模型自行推断）。
var openAITTSLangs = map[types.Language]bool{
	types.LangHindi:   true,
	types.LangEnglish: true,
	types.LangBengali: true,
	types.LangMarathi: true,
}

// NewOpenAITTSProvider 创建 OpenAI TTS 提供者。
func NewOpenAITTSProvider(cfg OpenAITTSConfig, logger *zap.Logger) *OpenAITTSProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "tts-1-hd"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAITTSProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("provider", "openai-tts")),
	}
}

func (p *OpenAITTSProvider) Name() string    { return "openai-tts" }
func (p *OpenAITTSProvider) Available() bool { return p.cfg.APIKey != "" }

type openAITTSRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize 将文本转换为语音。
func (p *OpenAITTSProvider) Synthesize(ctx context.Context, req *TTSRequest) (*TTSResponse, error) {
	start := time.Now()

	substituted := false
	if !openAITTSLangs[req.Language] {
		// 模型无语言参数可设，只能整体按默认处理并显式上报
		p.logger.Warn("unsupported language, model will infer pronunciation",
			zap.String("requested", string(req.Language)))
		substituted = true
	}

	voice := "nova"
	if req.Voice != nil && req.Voice.OpenAIVoice != "" {
		voice = req.Voice.OpenAIVoice
	}
	format := req.ResponseFormat
	if format == "" {
		format = "mp3"
	}

	body := openAITTSRequest{
		Model:          p.cfg.Model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: format,
	}
	if req.Voice != nil && req.Voice.Speed > 0 {
		body.Speed = req.Voice.Speed
	}

	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/audio/speech",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(p.Name(), resp.StatusCode, errBody)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(p.Name(), fmt.Errorf("failed to read audio: %w", err))
	}

	return &TTSResponse{
		Provider:            p.Name(),
		AudioData:           audio,
		Format:              format,
		Elapsed:             time.Since(start),
		CharCount:           len(req.Text),
		LanguageSubstituted: substituted,
		CreatedAt:           time.Now(),
	}, nil
}
