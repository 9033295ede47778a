package speech

import (
	"bytes"
	"context"
	"encoding/base64"
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

// GoogleTTSProvider 使用 Google Cloud Text-to-Speech REST API 执行合成。
// 印度诸语言覆盖最全，是高档位调用方的首选后端。
type GoogleTTSProvider struct {
	cfg    GoogleTTSConfig
	client *http.Client
	logger *zap.Logger
}

// googleLangCodes 是支持的语言到 Google languageCode 的映射。
// 不在表内的语言替换为默认值（见 Synthesize）。
var googleLangCodes = map[types.Language]string{
	types.LangHindi:     "hi-IN",
	types.LangEnglish:   "en-IN",
	types.LangTamil:     "ta-IN",
	types.LangTelugu:    "te-IN",
	types.LangBengali:   "bn-IN",
	types.LangMarathi:   "mr-IN",
	types.LangGujarati:  "gu-IN",
	types.LangKannada:   "kn-IN",
	types.LangMalayalam: "ml-IN",
	types.LangPunjabi:   "pa-IN",
}

// googleDefaultLang 是文档化的语言替换默认值。
const googleDefaultLang = "hi-IN"

// NewGoogleTTSProvider 创建 Google TTS 提供者。
func NewGoogleTTSProvider(cfg GoogleTTSConfig, logger *zap.Logger) *GoogleTTSProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://texttospeech.googleapis.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GoogleTTSProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("provider", "google-tts")),
	}
}

func (p *GoogleTTSProvider) Name() string    { return "google-tts" }
func (p *GoogleTTSProvider) Available() bool { return p.cfg.APIKey != "" }

type googleTTSRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate,omitempty"` // 0.25-4.0
		Pitch         float64 `json:"pitch,omitempty"`        // -20.0..20.0 半音
	} `json:"audioConfig"`
}

// Synthesize 将文本转换为语音。
func (p *GoogleTTSProvider) Synthesize(ctx context.Context, req *TTSRequest) (*TTSResponse, error) {
	start := time.Now()

	langCode, ok := googleLangCodes[req.Language]
	substituted := false
	if !ok {
		// 显式替换信号，绝不静默
		p.logger.Warn("unsupported language, substituting documented default",
			zap.String("requested", string(req.Language)),
			zap.String("substituted", googleDefaultLang))
		langCode = googleDefaultLang
		substituted = true
	}

	var body googleTTSRequest
	body.Input.Text = req.Text
	body.Voice.LanguageCode = langCode
	body.AudioConfig.AudioEncoding = "MP3"
	if req.Voice != nil {
		if !substituted {
			body.Voice.Name = req.Voice.GoogleVoice
		}
		body.AudioConfig.SpeakingRate = req.Voice.Speed
		body.AudioConfig.Pitch = req.Voice.Pitch
	}

	payload, _ := json.Marshal(body)
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/text:synthesize?key=" + p.cfg.APIKey
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
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

	// Google 返回 JSON 包裹的 base64 音频
	var result struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, transportError(p.Name(), fmt.Errorf("failed to decode response: %w", err))
	}
	audio, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, transportError(p.Name(), fmt.Errorf("failed to decode audio content: %w", err))
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
