package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/pipeline"
	"github.com/BaSui01/speechflow/types"
)

// =============================================================================
// Speech Synthesis Handler
// =============================================================================

// SynthesizeHandler serves cached-or-generated audio for arbitrary text.
type SynthesizeHandler struct {
	tts    *pipeline.TTSOrchestrator
	logger *zap.Logger
}

// NewSynthesizeHandler creates the synthesis handler.
func NewSynthesizeHandler(tts *pipeline.TTSOrchestrator, logger *zap.Logger) *SynthesizeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SynthesizeHandler{tts: tts, logger: logger}
}

// HandleSynthesize synthesizes speech for the requested text
// @Summary Synthesize speech
// @Description Returns audio bytes for the requested text, served from cache when hot
// @Tags tts
// @Accept json
// @Produce audio/mpeg
// @Param request body api.SynthesizeRequest true "Synthesis request"
// @Success 200 {file} binary "Audio bytes"
// @Failure 400 {object} Response "Invalid request"
// @Failure 503 {object} Response "All providers unavailable"
// @Router /api/v1/tts/synthesize [post]
func (h *SynthesizeHandler) HandleSynthesize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	var req api.SynthesizeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	lang, err := api.ParseLanguage(req.Language)
	if err != nil {
		h.writeSpeechError(w, err)
		return
	}

	style := types.VoiceStyleDidi
	if req.VoiceStyle != "" {
		style = types.VoiceStyle(req.VoiceStyle)
		if !style.Valid() {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
				"unsupported voice style: "+req.VoiceStyle, h.logger)
			return
		}
	}

	caller := CallerFrom(r.Context())

	var result *pipeline.AudioResult
	if req.Refresh {
		result, err = h.tts.Refresh(r.Context(), req.Text, lang, style, caller)
	} else {
		result, err = h.tts.GetAudio(r.Context(), req.Text, lang, style, caller)
	}
	if err != nil {
		h.writeSpeechError(w, err)
		return
	}

	writeAudio(w, result)
}

// writeSpeechError maps pipeline errors onto the shared error envelope.
func (h *SynthesizeHandler) writeSpeechError(w http.ResponseWriter, err error) {
	if typedErr, ok := err.(*types.Error); ok {
		WriteError(w, typedErr, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "speech synthesis failed").
		WithCause(err), h.logger)
}

// writeAudio streams the audio bytes with generation metadata in headers.
func writeAudio(w http.ResponseWriter, result *pipeline.AudioResult) {
	w.Header().Set("Content-Type", contentTypeForFormat(result.Format))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
	w.Header().Set("X-Audio-Provider", result.Provider)
	w.Header().Set("X-Audio-Cached", strconv.FormatBool(result.Cached))
	w.Header().Set("X-Cache-Key", result.CacheKey)
	if result.LanguageSubstituted {
		w.Header().Set("X-Language-Substituted", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}

// contentTypeForFormat maps an audio format hint to a MIME type.
func contentTypeForFormat(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "ogg":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}
