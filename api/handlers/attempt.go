package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/game"
	"github.com/BaSui01/speechflow/types"
)

// =============================================================================
// Pronunciation Attempt Handler
// =============================================================================

// AttemptHandler accepts pronunciation attempts and serves attempt history.
type AttemptHandler struct {
	flow   *game.AttemptFlow
	store  *game.Store
	logger *zap.Logger
}

// NewAttemptHandler creates the attempt handler.
func NewAttemptHandler(flow *game.AttemptFlow, store *game.Store, logger *zap.Logger) *AttemptHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptHandler{flow: flow, store: store, logger: logger}
}

// HandleSubmitAttempt scores a pronunciation attempt
// @Summary Submit pronunciation attempt
// @Description Transcribes the recorded audio, scores it against the challenge word and records the attempt
// @Tags game
// @Accept json
// @Produce json
// @Param request body api.AttemptRequest true "Attempt submission"
// @Success 200 {object} Response{data=api.AttemptResponse} "Scored attempt"
// @Failure 400 {object} Response "Invalid request"
// @Failure 404 {object} Response "Challenge not found"
// @Failure 503 {object} Response "Transcription unavailable"
// @Router /api/v1/game/attempts [post]
func (h *AttemptHandler) HandleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req api.AttemptRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if req.ChallengeID == "" || req.ChildID == "" || req.AudioRef == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"challenge_id, child_id and audio_ref are required", h.logger)
		return
	}

	result, err := h.flow.SubmitAttempt(r.Context(), game.SubmitInput{
		ChallengeID:        req.ChallengeID,
		ChildID:            req.ChildID,
		AudioRef:           req.AudioRef,
		AudioEnergyScore:   req.AudioEnergyScore,
		DurationMatchScore: req.DurationMatchScore,
	})
	if err != nil {
		h.writeGameError(w, err)
		return
	}

	WriteSuccess(w, toAttemptResponse(result.Attempt))
}

// HandleListAttempts lists attempt history
// @Summary List pronunciation attempts
// @Description Returns the most recent attempts for a child, optionally filtered by challenge
// @Tags game
// @Produce json
// @Param child_id query string true "Child ID"
// @Param challenge_id query string false "Challenge ID"
// @Param limit query int false "Maximum attempts to return" default(20)
// @Success 200 {object} Response{data=api.AttemptListResponse} "Attempt history"
// @Failure 400 {object} Response "Invalid request"
// @Router /api/v1/game/attempts [get]
func (h *AttemptHandler) HandleListAttempts(w http.ResponseWriter, r *http.Request) {
	childID := r.URL.Query().Get("child_id")
	if childID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"query parameter 'child_id' is required", h.logger)
		return
	}
	challengeID := r.URL.Query().Get("challenge_id")

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	attempts, err := h.store.ListAttempts(r.Context(), childID, challengeID, limit)
	if err != nil {
		h.writeGameError(w, err)
		return
	}

	resp := api.AttemptListResponse{
		Attempts: make([]api.AttemptResponse, 0, len(attempts)),
		Total:    len(attempts),
	}
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, toAttemptResponse(a))
	}

	WriteSuccess(w, resp)
}

// HandleAttempts dispatches by method for the attempts route.
func (h *AttemptHandler) HandleAttempts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.HandleSubmitAttempt(w, r)
	case http.MethodGet:
		h.HandleListAttempts(w, r)
	default:
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
	}
}

// HandleGetProgress returns the per-challenge progress aggregate
// @Summary Get challenge progress
// @Description Returns the aggregated progress of a child on a challenge
// @Tags game
// @Produce json
// @Param child_id query string true "Child ID"
// @Param challenge_id query string true "Challenge ID"
// @Success 200 {object} Response{data=api.ProgressResponse} "Progress aggregate"
// @Failure 400 {object} Response "Invalid request"
// @Router /api/v1/game/progress [get]
func (h *AttemptHandler) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	childID := r.URL.Query().Get("child_id")
	challengeID := r.URL.Query().Get("challenge_id")
	if childID == "" || challengeID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"query parameters 'child_id' and 'challenge_id' are required", h.logger)
		return
	}

	progress, err := h.store.GetProgress(r.Context(), childID, challengeID)
	if err != nil {
		h.writeGameError(w, err)
		return
	}

	WriteSuccess(w, api.ProgressResponse{
		ChildID:       childID,
		ChallengeID:   challengeID,
		Attempts:      progress.Attempts,
		BestScore:     progress.BestScore,
		BestStars:     progress.BestStars,
		Mastered:      progress.Mastered,
		LastAttemptAt: progress.LastAttemptAt,
	})
}

// =============================================================================
// Helper Functions
// =============================================================================

func (h *AttemptHandler) writeGameError(w http.ResponseWriter, err error) {
	if typedErr, ok := err.(*types.Error); ok {
		WriteError(w, typedErr, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "attempt processing failed").
		WithCause(err), h.logger)
}

func toAttemptResponse(a *game.Attempt) api.AttemptResponse {
	return api.AttemptResponse{
		AttemptID:      a.ID,
		Transcript:     a.Transcript,
		FinalScore:     a.FinalScore,
		Stars:          a.Stars,
		ScoringVersion: a.ScoringVersion,
		Components: api.ScoreComponents{
			TextMatch:  a.TextMatchScore,
			Confidence: a.ConfidenceScore,
			Energy:     a.EnergyScore,
			Duration:   a.DurationScore,
		},
		NonAuthoritative: a.NonAuthoritative,
		CreatedAt:        a.CreatedAt,
	}
}
