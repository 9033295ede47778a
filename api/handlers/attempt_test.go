package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/types"
)

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success, "expected success envelope, got error: %+v", resp.Error)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func submitAttempt(t *testing.T, h *AttemptHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/game/attempts", bytes.NewBufferString(body))
	h.HandleAttempts(w, r)
	return w
}

func perfectTranscriber() *stubTranscriber {
	return &stubTranscriber{resp: &speech.STTResponse{
		Provider:   "openai-whisper",
		Text:       "नमस्ते",
		Confidence: 0.95,
		Language:   types.LangHindi,
	}}
}

func TestAttemptHandler_SubmitScoresAndRecords(t *testing.T) {
	flow, store := newTestGame(t, perfectTranscriber())
	h := NewAttemptHandler(flow, store, zap.NewNop())

	w := submitAttempt(t, h, `{
		"challenge_id": "ch-namaste",
		"child_id": "child-1",
		"audio_ref": "media/attempt.wav",
		"audio_energy_score": 90,
		"duration_match_score": 85
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	result := decodeData[api.AttemptResponse](t, w)
	assert.NotEmpty(t, result.AttemptID)
	assert.Equal(t, "नमस्ते", result.Transcript)
	assert.GreaterOrEqual(t, result.FinalScore, 85.0)
	assert.Equal(t, 3, result.Stars)
	assert.NotZero(t, result.ScoringVersion)
	assert.Greater(t, result.Components.TextMatch, 90.0)
	assert.False(t, result.NonAuthoritative)
	assert.False(t, result.CreatedAt.IsZero())
}

func TestAttemptHandler_SubmitValidation(t *testing.T) {
	flow, store := newTestGame(t, perfectTranscriber())
	h := NewAttemptHandler(flow, store, zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{name: "missing challenge_id", body: `{"child_id":"child-1","audio_ref":"media/a.wav"}`},
		{name: "missing child_id", body: `{"challenge_id":"ch-namaste","audio_ref":"media/a.wav"}`},
		{name: "missing audio_ref", body: `{"challenge_id":"ch-namaste","child_id":"child-1"}`},
		{name: "malformed JSON", body: `{"challenge_id":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := submitAttempt(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAttemptHandler_UnknownChallenge(t *testing.T) {
	flow, store := newTestGame(t, perfectTranscriber())
	h := NewAttemptHandler(flow, store, zap.NewNop())

	w := submitAttempt(t, h, `{"challenge_id":"ch-ghost","child_id":"child-1","audio_ref":"media/a.wav"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, string(types.ErrNotFound), resp.Error.Code)
}

func TestAttemptHandler_TranscriptionFailurePropagates(t *testing.T) {
	tr := &stubTranscriber{err: types.NewError(types.ErrSTTUnavailable, "all providers down")}
	flow, store := newTestGame(t, tr)
	h := NewAttemptHandler(flow, store, zap.NewNop())

	w := submitAttempt(t, h, `{"challenge_id":"ch-namaste","child_id":"child-1","audio_ref":"media/a.wav"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, string(types.ErrSTTUnavailable), resp.Error.Code)
}

func TestAttemptHandler_ListAttempts(t *testing.T) {
	flow, store := newTestGame(t, perfectTranscriber())
	h := NewAttemptHandler(flow, store, zap.NewNop())

	for i := 0; i < 3; i++ {
		w := submitAttempt(t, h, `{"challenge_id":"ch-namaste","child_id":"child-1","audio_ref":"media/a.wav"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/game/attempts?child_id=child-1&challenge_id=ch-namaste&limit=2", nil)
	h.HandleAttempts(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeData[api.AttemptListResponse](t, w)
	assert.Len(t, result.Attempts, 2)
	assert.Equal(t, 2, result.Total)
}

func TestAttemptHandler_ListRequiresChildID(t *testing.T) {
	flow, store := newTestGame(t, perfectTranscriber())
	h := NewAttemptHandler(flow, store, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/game/attempts", nil)
	h.HandleAttempts(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttemptHandler_Progress(t *testing.T) {
	flow, store := newTestGame(t, perfectTranscriber())
	h := NewAttemptHandler(flow, store, zap.NewNop())

	w := submitAttempt(t, h, `{
		"challenge_id": "ch-namaste",
		"child_id": "child-1",
		"audio_ref": "media/a.wav",
		"audio_energy_score": 90,
		"duration_match_score": 85
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/game/progress?child_id=child-1&challenge_id=ch-namaste", nil)
	h.HandleGetProgress(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeData[api.ProgressResponse](t, w)
	assert.Equal(t, "child-1", result.ChildID)
	assert.Equal(t, "ch-namaste", result.ChallengeID)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 3, result.BestStars)
	assert.True(t, result.Mastered)
	assert.False(t, result.LastAttemptAt.IsZero())
}

func TestAttemptHandler_ProgressRequiresBothIDs(t *testing.T) {
	flow, store := newTestGame(t, perfectTranscriber())
	h := NewAttemptHandler(flow, store, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/game/progress?child_id=child-1", nil)
	h.HandleGetProgress(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttemptHandler_MethodNotAllowed(t *testing.T) {
	flow, store := newTestGame(t, perfectTranscriber())
	h := NewAttemptHandler(flow, store, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/api/v1/game/attempts", nil)
	h.HandleAttempts(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
