package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/pipeline"
	"github.com/BaSui01/speechflow/types"
)

// =============================================================================
// Speech Transcription Handler
// =============================================================================

// TranscribeHandler exposes the transcription pipeline directly.
// Game attempts go through the attempt handler instead; this endpoint
// serves tooling and content-production workflows.
type TranscribeHandler struct {
	stt    *pipeline.STTOrchestrator
	logger *zap.Logger
}

// NewTranscribeHandler creates the transcription handler.
func NewTranscribeHandler(stt *pipeline.STTOrchestrator, logger *zap.Logger) *TranscribeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscribeHandler{stt: stt, logger: logger}
}

// HandleTranscribe transcribes referenced audio
// @Summary Transcribe audio
// @Description Resolves the audio reference and transcribes it through the provider chain
// @Tags stt
// @Accept json
// @Produce json
// @Param request body api.TranscribeRequest true "Transcription request"
// @Success 200 {object} Response{data=api.TranscribeResponse} "Transcription result"
// @Failure 400 {object} Response "Invalid request"
// @Failure 404 {object} Response "Audio reference not found"
// @Failure 503 {object} Response "All providers unavailable"
// @Router /api/v1/stt/transcribe [post]
func (h *TranscribeHandler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	var req api.TranscribeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	lang, err := api.ParseLanguage(req.Language)
	if err != nil {
		h.writeTranscribeError(w, err)
		return
	}

	resp, err := h.stt.Transcribe(r.Context(), req.AudioRef, lang)
	if err != nil {
		h.writeTranscribeError(w, err)
		return
	}

	WriteSuccess(w, api.TranscribeResponse{
		Text:             resp.Text,
		Provider:         resp.Provider,
		Confidence:       resp.Confidence,
		NonAuthoritative: resp.NonAuthoritative,
	})
}

func (h *TranscribeHandler) writeTranscribeError(w http.ResponseWriter, err error) {
	if typedErr, ok := err.(*types.Error); ok {
		WriteError(w, typedErr, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "transcription failed").
		WithCause(err), h.logger)
}
