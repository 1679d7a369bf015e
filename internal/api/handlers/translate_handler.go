package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/okoro-dev/translingo/internal/core"
)

type TranslateHandler struct {
	translator core.Translator
}

func NewTranslateHandler(tr core.Translator) *TranslateHandler {
	return &TranslateHandler{translator: tr}
}

type translateRequest struct {
	Text     string `json:"text"`
	FromLang string `json:"fromLang"`
	ToLang   string `json:"toLang"`
	Model    string `json:"model,omitempty"`
	Stream   *bool  `json:"stream,omitempty"` // default true
}

// Translate serves POST /api/translate. The default response is a chunked
// plain-text body carrying the translation as it streams; stream=false
// returns the JSON {translation, serverMs, model} shape instead.
func (h *TranslateHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, 400, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		jsonError(w, 400, "missing text")
		return
	}
	if strings.TrimSpace(req.ToLang) == "" {
		jsonError(w, 400, "missing target language")
		return
	}

	treq := core.TranslateRequest{
		Text:     req.Text,
		FromLang: req.FromLang,
		ToLang:   req.ToLang,
		Model:    req.Model,
	}

	if req.Stream != nil && !*req.Stream {
		res, err := h.translator.Translate(r.Context(), treq)
		if err != nil {
			jsonError(w, 500, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
		return
	}

	flusher, _ := w.(http.Flusher)
	wrote := 0
	writeDelta := func(cum string) {
		if len(cum) <= wrote {
			return
		}
		if wrote == 0 {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
		}
		fmt.Fprint(w, cum[wrote:])
		wrote = len(cum)
		if flusher != nil {
			flusher.Flush()
		}
	}

	// The stream client calls back on this goroutine, so the writes below
	// never race with each other.
	h.translator.Stream(r.Context(), treq, core.StreamHandler{
		OnChunk:  writeDelta,
		OnFinish: writeDelta,
		OnError: func(err error) {
			if wrote == 0 {
				jsonError(w, 500, err.Error())
				return
			}
			// Headers are gone; the truncated body is all we can signal.
		},
	})
}

func jsonError(w http.ResponseWriter, status int, msg string, extra ...map[string]interface{}) {
	body := map[string]interface{}{"error": msg}
	for _, m := range extra {
		for k, v := range m {
			body[k] = v
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
