package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/api"
	"github.com/BaSui01/speechflow/types"
)

func postTranscribe(t *testing.T, h *TranscribeHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/stt/transcribe", bytes.NewBufferString(body))
	h.HandleTranscribe(w, r)
	return w
}

func TestTranscribeHandler_ReturnsTranscript(t *testing.T) {
	rec := &fakeRecognizer{name: "openai-whisper", text: "नमस्ते"}
	stt, objects := newTestSTT(t, rec)
	require.NoError(t, objects.Put(context.Background(), "media/attempt-1.wav", []byte("wav-bytes")))

	h := NewTranscribeHandler(stt, zap.NewNop())

	w := postTranscribe(t, h, `{"audio_ref":"media/attempt-1.wav","language":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result api.TranscribeResponse
	require.NoError(t, json.Unmarshal(raw, &result))

	assert.Equal(t, "नमस्ते", result.Text)
	assert.Equal(t, "openai-whisper", result.Provider)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)
	assert.False(t, result.NonAuthoritative)
}

func TestTranscribeHandler_UnknownLanguage(t *testing.T) {
	stt, _ := newTestSTT(t, &fakeRecognizer{name: "openai-whisper", text: "x"})
	h := NewTranscribeHandler(stt, zap.NewNop())

	w := postTranscribe(t, h, `{"audio_ref":"media/a.wav","language":"fr"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)
}

func TestTranscribeHandler_MissingAudioRef(t *testing.T) {
	stt, _ := newTestSTT(t, &fakeRecognizer{name: "openai-whisper", text: "x"})
	h := NewTranscribeHandler(stt, zap.NewNop())

	w := postTranscribe(t, h, `{"audio_ref":"media/ghost.wav","language":"hi"}`)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestTranscribeHandler_ProvidersDown(t *testing.T) {
	rec := &fakeRecognizer{name: "openai-whisper", err: types.NewError(types.ErrProviderUnavailable, "down")}
	stt, objects := newTestSTT(t, rec)
	require.NoError(t, objects.Put(context.Background(), "media/a.wav", []byte("wav")))

	h := NewTranscribeHandler(stt, zap.NewNop())

	w := postTranscribe(t, h, `{"audio_ref":"media/a.wav","language":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTranscribeHandler_MethodNotAllowed(t *testing.T) {
	stt, _ := newTestSTT(t, &fakeRecognizer{name: "openai-whisper", text: "x"})
	h := NewTranscribeHandler(stt, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/stt/transcribe", nil)
	h.HandleTranscribe(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
