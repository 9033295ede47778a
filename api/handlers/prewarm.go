package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/pipeline"
	"github.com/BaSui01/speechflow/types"
)

// =============================================================================
// Curriculum Prewarm Handler
// =============================================================================

// PrewarmHandler runs operator-triggered curriculum prewarm batches.
type PrewarmHandler struct {
	tts    *pipeline.TTSOrchestrator
	cache  *cache.AudioCache
	cfg    pipeline.PrewarmConfig
	logger *zap.Logger
}

// NewPrewarmHandler creates the prewarm handler.
func NewPrewarmHandler(tts *pipeline.TTSOrchestrator, audioCache *cache.AudioCache, cfg pipeline.PrewarmConfig, logger *zap.Logger) *PrewarmHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrewarmHandler{tts: tts, cache: audioCache, cfg: cfg, logger: logger}
}

// HandlePrewarm prewarms curriculum audio
// @Summary Prewarm curriculum audio
// @Description Synthesizes a batch of curriculum items ahead of demand; single-item failures do not abort the batch
// @Tags admin
// @Accept json
// @Produce json
// @Param request body api.PrewarmRequest true "Prewarm batch"
// @Success 200 {object} Response{data=api.PrewarmResponse} "Batch report"
// @Failure 400 {object} Response "Invalid request"
// @Failure 401 {object} Response "Missing credentials"
// @Router /api/v1/admin/prewarm [post]
func (h *PrewarmHandler) HandlePrewarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	var req api.PrewarmRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if len(req.Items) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "items must not be empty", h.logger)
		return
	}

	items := make([]pipeline.PrewarmItem, 0, len(req.Items))
	for _, it := range req.Items {
		lang, err := api.ParseLanguage(it.Language)
		if err != nil {
			h.writePrewarmError(w, err)
			return
		}
		style := types.VoiceStyleDidi
		if it.VoiceStyle != "" {
			style = types.VoiceStyle(it.VoiceStyle)
			if !style.Valid() {
				WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
					"unsupported voice style: "+it.VoiceStyle, h.logger)
				return
			}
		}
		items = append(items, pipeline.PrewarmItem{
			Text:        it.Text,
			Language:    lang,
			VoiceStyle:  style,
			ContentType: it.ContentType,
			ContentID:   it.ContentID,
		})
	}

	cfg := h.cfg
	cfg.Force = cfg.Force || req.Force
	prewarmer := pipeline.NewPrewarmer(h.tts, h.cache, cfg, h.logger)

	report, err := prewarmer.Run(r.Context(), items)
	if err != nil {
		h.writePrewarmError(w, err)
		return
	}

	WriteSuccess(w, api.PrewarmResponse{
		Total:      report.Total,
		Generated:  report.Generated,
		AlreadyHot: report.AlreadyHot,
		Failed:     report.Failed,
	})
}

func (h *PrewarmHandler) writePrewarmError(w http.ResponseWriter, err error) {
	if typedErr, ok := err.(*types.Error); ok {
		WriteError(w, typedErr, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "prewarm batch failed").
		WithCause(err), h.logger)
}
