package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/cache"
	"github.com/BaSui01/speechflow/game"
	"github.com/BaSui01/speechflow/pipeline"
	"github.com/BaSui01/speechflow/types"
)

// =============================================================================
// Curriculum Challenge Handler
// =============================================================================

// ChallengeHandler serves the pronunciation curriculum and reference audio.
type ChallengeHandler struct {
	store  *game.Store
	tts    *pipeline.TTSOrchestrator
	logger *zap.Logger
}

// NewChallengeHandler creates the challenge handler.
func NewChallengeHandler(store *game.Store, tts *pipeline.TTSOrchestrator, logger *zap.Logger) *ChallengeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChallengeHandler{store: store, tts: tts, logger: logger}
}

// HandleListChallenges lists curriculum challenges
// @Summary List pronunciation challenges
// @Description Returns the curriculum for a language, optionally filtered by category
// @Tags game
// @Produce json
// @Param language query string true "Language code (e.g. hi, ta)"
// @Param category query string false "Category filter (e.g. food, animals)"
// @Success 200 {object} Response{data=api.ChallengeListResponse} "Challenge list"
// @Failure 400 {object} Response "Invalid request"
// @Router /api/v1/game/challenges [get]
func (h *ChallengeHandler) HandleListChallenges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	lang, err := api.ParseLanguage(r.URL.Query().Get("language"))
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}
	category := r.URL.Query().Get("category")

	challenges, err := h.store.ListChallenges(r.Context(), lang, category)
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}

	resp := api.ChallengeListResponse{
		Challenges: make([]api.ChallengeResponse, 0, len(challenges)),
		Total:      len(challenges),
	}
	for _, ch := range challenges {
		resp.Challenges = append(resp.Challenges, toChallengeResponse(ch))
	}

	WriteSuccess(w, resp)
}

// HandleGetChallenge returns one challenge
// @Summary Get pronunciation challenge
// @Description Returns a single challenge by ID
// @Tags game
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} Response{data=api.ChallengeResponse} "Challenge"
// @Failure 404 {object} Response "Challenge not found"
// @Router /api/v1/game/challenges/{id} [get]
func (h *ChallengeHandler) HandleGetChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	id := extractChallengeID(r)
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "challenge id is required", h.logger)
		return
	}

	challenge, err := h.store.GetChallenge(r.Context(), id)
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}

	WriteSuccess(w, toChallengeResponse(challenge))
}

// HandleGetReferenceAudio serves the standard pronunciation audio for a challenge
// @Summary Get challenge reference audio
// @Description Returns the standard pronunciation of the challenge word, generating it on first request
// @Tags game
// @Produce audio/mpeg
// @Param id path string true "Challenge ID"
// @Success 200 {file} binary "Audio bytes"
// @Failure 404 {object} Response "Challenge not found"
// @Failure 503 {object} Response "All providers unavailable"
// @Router /api/v1/game/challenges/{id}/audio [get]
func (h *ChallengeHandler) HandleGetReferenceAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	id := extractChallengeID(r)
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "challenge id is required", h.logger)
		return
	}

	challenge, err := h.store.GetChallenge(r.Context(), id)
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}

	// 标准发音走常规合成通路：缓存命中直接回放，未命中惰性生成
	caller := CallerFrom(r.Context())
	result, err := h.tts.GetAudio(r.Context(), challenge.Word, challenge.Language, types.VoiceStyleDidi, caller)
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}

	writeAudio(w, result)
}

// =============================================================================
// Pre-warmed Curriculum Audio Handler
// =============================================================================

// CurriculumAudioHandler serves pre-warmed curriculum audio straight from the
// cache. It never triggers generation: content that was not pre-warmed is 404.
type CurriculumAudioHandler struct {
	cache  *cache.AudioCache
	logger *zap.Logger
}

// NewCurriculumAudioHandler creates the curriculum audio handler.
func NewCurriculumAudioHandler(audioCache *cache.AudioCache, logger *zap.Logger) *CurriculumAudioHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CurriculumAudioHandler{cache: audioCache, logger: logger}
}

// HandleCurriculumAudio serves pre-warmed audio for a curriculum item
// @Summary Get pre-warmed curriculum audio
// @Description Returns cached audio for a curriculum item; 404 when the item has not been pre-warmed
// @Tags curriculum
// @Produce audio/mpeg
// @Param content_type query string true "Content type (e.g. challenge_word)"
// @Param content_id query string true "Content ID (e.g. hi-food-001)"
// @Param language query string true "Language code (e.g. hi, ta)"
// @Success 200 {file} binary "Audio bytes"
// @Failure 400 {object} Response "Invalid request"
// @Failure 404 {object} Response "Audio not pre-warmed"
// @Router /api/v1/curriculum/audio [get]
func (h *CurriculumAudioHandler) HandleCurriculumAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	q := r.URL.Query()
	contentType := q.Get("content_type")
	contentID := q.Get("content_id")
	if contentType == "" || contentID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"content_type and content_id are required", h.logger)
		return
	}

	lang, err := api.ParseLanguage(q.Get("language"))
	if err != nil {
		if typedErr, ok := err.(*types.Error); ok {
			WriteError(w, typedErr, h.logger)
			return
		}
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid language", h.logger)
		return
	}

	// 只读端点：未预热即 404，绝不现场生成
	entry, audio, err := h.cache.LookupByContent(r.Context(), contentType, contentID, lang)
	if err != nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound,
			"curriculum audio not available", h.logger)
		return
	}

	writeAudio(w, &pipeline.AudioResult{
		Audio:               audio,
		Format:              entry.Format(),
		Provider:            entry.Provider,
		Cached:              true,
		CacheKey:            entry.Key,
		LanguageSubstituted: entry.LanguageSubstituted,
	})
}

// =============================================================================
// Helper Functions
// =============================================================================

func (h *ChallengeHandler) writeChallengeError(w http.ResponseWriter, err error) {
	if typedErr, ok := err.(*types.Error); ok {
		WriteError(w, typedErr, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "challenge request failed").
		WithCause(err), h.logger)
}

// extractChallengeID pulls the challenge ID out of the URL path.
func extractChallengeID(r *http.Request) string {
	if id := r.PathValue("id"); id != "" {
		return id
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/game/challenges")
	path = strings.Trim(path, "/")
	if idx := strings.Index(path, "/"); idx >= 0 {
		path = path[:idx]
	}
	return path
}

func toChallengeResponse(ch *game.Challenge) api.ChallengeResponse {
	return api.ChallengeResponse{
		ID:                ch.ID,
		Word:              ch.Word,
		Romanization:      ch.Romanization,
		Meaning:           ch.Meaning,
		Language:          string(ch.Language),
		Category:          ch.Category,
		Difficulty:        ch.Difficulty,
		HasReferenceAudio: ch.ReferenceAudioRef != "",
	}
}
