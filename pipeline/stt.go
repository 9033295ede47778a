package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/internal/metrics"
	"github.com/BaSui01/speechflow/internal/tlsutil"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/storage"
	"github.com/BaSui01/speechflow/types"
)

// maxRemoteAudioBytes 限制远程音频下载体积，防御超大上传。
const maxRemoteAudioBytes = 25 << 20 // 25 MiB

// STTConfig 配置转写编排器。
type STTConfig struct {
	// LocalMediaPrefix 下的 audioRef 直接从对象存储读取，不走 HTTP。
	LocalMediaPrefix string `yaml:"local_media_prefix" json:"local_media_prefix"`
	// DownloadTimeout 远程音频下载的有界超时。
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
	// Production 为 true 时禁止任何 mock 转写器进入链路。
	Production bool `yaml:"production" json:"production"`
}

// DefaultSTTConfig 返回默认转写配置。
func DefaultSTTConfig() STTConfig {
	return STTConfig{
		LocalMediaPrefix: "media/",
		DownloadTimeout:  30 * time.Second,
	}
}

// STTOrchestrator 解析音频引用并经回退链转写。
type STTOrchestrator struct {
	chain   *speech.STTChain
	objects storage.ObjectStore
	httpc   *http.Client
	cfg     STTConfig
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewSTTOrchestrator 创建转写编排器。
// 生产模式下链路中出现 mock 转写器是致命配置错误。
func NewSTTOrchestrator(chain *speech.STTChain, objects storage.ObjectStore, cfg STTConfig, collector *metrics.Collector, logger *zap.Logger) (*STTOrchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 30 * time.Second
	}
	if cfg.Production {
		for _, name := range chain.Providers() {
			if strings.HasPrefix(name, "mock") {
				return nil, types.NewError(types.ErrUnsafeMockInProduction,
					fmt.Sprintf("transcriber %q must not be configured in production", name)).
					WithHTTPStatus(http.StatusInternalServerError)
			}
		}
	}
	return &STTOrchestrator{
		chain:   chain,
		objects: objects,
		httpc:   tlsutil.SecureHTTPClient(cfg.DownloadTimeout),
		cfg:     cfg,
		metrics: collector,
		logger:  logger.With(zap.String("component", "stt_orchestrator")),
	}, nil
}

// Transcribe 解析 audioRef（本地对象或 http(s) URL），取回音频并转写。
func (o *STTOrchestrator) Transcribe(ctx context.Context, audioRef string, lang types.Language) (*speech.STTResponse, error) {
	if audioRef == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "audio reference must not be empty").
			WithHTTPStatus(http.StatusBadRequest)
	}
	if !lang.Valid() {
		return nil, types.NewError(types.ErrInvalidRequest, "unsupported language").
			WithHTTPStatus(http.StatusBadRequest)
	}

	audio, format, err := o.resolveAudio(ctx, audioRef)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := o.chain.Transcribe(ctx, &speech.STTRequest{
		Audio:    audio,
		Language: lang,
		Format:   format,
	})
	if err != nil {
		o.logger.Error("transcription failed across all providers",
			zap.String("audio_ref", audioRef),
			zap.String("language", string(lang)),
			zap.Error(err))
		return nil, types.NewError(types.ErrSTTUnavailable, "speech recognition is temporarily unavailable").
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true).
			WithCause(err)
	}

	if o.metrics != nil {
		o.metrics.RecordTranscription(string(lang), resp.Provider, time.Since(start))
	}
	return resp, nil
}

// resolveAudio 把 audioRef 变成字节：本地媒体前缀走对象存储，http(s) 走有界下载。
func (o *STTOrchestrator) resolveAudio(ctx context.Context, ref string) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return o.download(ctx, ref)
	case o.cfg.LocalMediaPrefix != "" && strings.HasPrefix(ref, o.cfg.LocalMediaPrefix):
		audio, err := o.objects.Get(ctx, ref)
		if err != nil {
			return nil, "", types.NewError(types.ErrNotFound, "audio object not found").
				WithHTTPStatus(http.StatusNotFound).
				WithCause(err)
		}
		return audio, formatFromRef(ref), nil
	default:
		return nil, "", types.NewError(types.ErrInvalidRequest, "unrecognized audio reference").
			WithHTTPStatus(http.StatusBadRequest)
	}
}

func (o *STTOrchestrator) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", types.NewError(types.ErrInvalidRequest, "invalid audio URL").
			WithHTTPStatus(http.StatusBadRequest).
			WithCause(err)
	}

	resp, err := o.httpc.Do(req)
	if err != nil {
		return nil, "", types.NewError(types.ErrUpstreamTimeout, "audio download failed").
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", types.NewError(types.ErrNotFound,
			fmt.Sprintf("audio download returned status %d", resp.StatusCode)).
			WithHTTPStatus(http.StatusBadGateway)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteAudioBytes+1))
	if err != nil {
		return nil, "", types.NewError(types.ErrUpstreamTimeout, "audio download interrupted").
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithCause(err)
	}
	if len(body) > maxRemoteAudioBytes {
		return nil, "", types.NewError(types.ErrInvalidRequest, "audio exceeds maximum size").
			WithHTTPStatus(http.StatusRequestEntityTooLarge)
	}
	return body, formatFromRef(url), nil
}
