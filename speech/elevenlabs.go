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

// ElevenLabsProvider 使用 ElevenLabs API 执行 TTS。
// 多语言模型对印地语/英语的韵律最自然，作为高音质第二后端。
type ElevenLabsProvider struct {
	cfg    ElevenLabsConfig
	client *http.Client
	logger *zap.Logger
}

// elevenLangCodes 是 eleven_multilingual_v2 模型覆盖的语言集合。
var elevenLangCodes = map[types.Language]string{
	types.LangHindi:   "hi",
	types.LangEnglish: "en",
	types.LangTamil:   "ta",
}

// elevenDefaultLang 是文档化的语言替换默认值。
const elevenDefaultLang = "hi"

// NewElevenLabsProvider 创建 ElevenLabs TTS 提供者。
func NewElevenLabsProvider(cfg ElevenLabsConfig, logger *zap.Logger) *ElevenLabsProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Model == "" {
		cfg.Model = "eleven_multilingual_v2"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ElevenLabsProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("provider", "elevenlabs")),
	}
}

func (p *ElevenLabsProvider) Name() string    { return "elevenlabs" }
func (p *ElevenLabsProvider) Available() bool { return p.cfg.APIKey != "" }

type elevenLabsRequest struct {
	Text          string `json:"text"`
	ModelID       string `json:"model_id"`
	LanguageCode  string `json:"language_code,omitempty"`
	VoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
		Speed           float64 `json:"speed,omitempty"`
	} `json:"voice_settings"`
}

// Synthesize 将文本转换为语音。
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, req *TTSRequest) (*TTSResponse, error) {
	start := time.Now()

	langCode, ok := elevenLangCodes[req.Language]
	substituted := false
	if !ok {
		p.logger.Warn("unsupported language, substituting documented default",
			zap.String("requested", string(req.Language)),
			zap.String("substituted", elevenDefaultLang))
		langCode = elevenDefaultLang
		substituted = true
	}

	voiceID := ""
	if req.Voice != nil {
		voiceID = req.Voice.ElevenLabsVoiceID
	}
	if voiceID == "" {
		voiceID = "EXAVITQu4vr4xnSDxMaL" // Sarah，默认少儿讲解音色
	}

	body := elevenLabsRequest{
		Text:         req.Text,
		ModelID:      p.cfg.Model,
		LanguageCode: langCode,
	}
	body.VoiceSettings.Stability = 0.5
	body.VoiceSettings.SimilarityBoost = 0.75
	if req.Voice != nil && req.Voice.Speed > 0 {
		body.VoiceSettings.Speed = req.Voice.Speed
	}

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

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
		Format:              "mp3",
		Elapsed:             time.Since(start),
		CharCount:           len(req.Text),
		LanguageSubstituted: substituted,
		CreatedAt:           time.Now(),
	}, nil
}
