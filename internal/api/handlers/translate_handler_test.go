package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okoro-dev/translingo/internal/core"
)

type stubTranslator struct {
	fn func(ctx context.Context, req core.TranslateRequest, h core.StreamHandler)
}

func (s *stubTranslator) Stream(ctx context.Context, req core.TranslateRequest, h core.StreamHandler) {
	if s.fn != nil {
		s.fn(ctx, req, h)
		return
	}
	h.OnChunk("Hola")
	h.OnChunk("Hola mundo")
	h.OnFinish("Hola mundo")
}

func (s *stubTranslator) Translate(ctx context.Context, req core.TranslateRequest) (*core.TranslationResult, error) {
	return &core.TranslationResult{Translation: "Hola mundo", ServerMs: 12, Model: "test-model"}, nil
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/translate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestTranslateStreamsPlainText(t *testing.T) {
	h := NewTranslateHandler(&stubTranslator{})

	rec := postJSON(t, h.Translate, `{"text":"Hello world","fromLang":"English","toLang":"Spanish"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Hola mundo", rec.Body.String(), "deltas concatenate to the final text exactly once")
}

func TestTranslateNonStreamingJSON(t *testing.T) {
	h := NewTranslateHandler(&stubTranslator{})

	rec := postJSON(t, h.Translate, `{"text":"Hello world","toLang":"Spanish","stream":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"translation":"Hola mundo","serverMs":12,"model":"test-model"}`, rec.Body.String())
}

func TestTranslateValidation(t *testing.T) {
	h := NewTranslateHandler(&stubTranslator{})

	rec := postJSON(t, h.Translate, `{"text":"  ","toLang":"Spanish"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing text")

	rec = postJSON(t, h.Translate, `{"text":"Hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing target language")

	rec = postJSON(t, h.Translate, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranslateStreamErrorBeforeFirstByte(t *testing.T) {
	h := NewTranslateHandler(&stubTranslator{fn: func(ctx context.Context, req core.TranslateRequest, sh core.StreamHandler) {
		sh.OnError(errors.New("backend down"))
	}})

	rec := postJSON(t, h.Translate, `{"text":"Hello","toLang":"Spanish"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "backend down")
}

func TestTranslateStreamErrorMidBodyKeepsWrittenPrefix(t *testing.T) {
	h := NewTranslateHandler(&stubTranslator{fn: func(ctx context.Context, req core.TranslateRequest, sh core.StreamHandler) {
		sh.OnChunk("partial ")
		sh.OnError(errors.New("backend down"))
	}})

	rec := postJSON(t, h.Translate, `{"text":"Hello","toLang":"Spanish"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial ", rec.Body.String())
}
