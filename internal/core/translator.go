package core

import "context"

// TranslateRequest identifies one translation: the source text, the language
// pair and the model to run it on.
type TranslateRequest struct {
	Text     string `json:"text"`
	FromLang string `json:"fromLang"`
	ToLang   string `json:"toLang"`
	Model    string `json:"model,omitempty"`
}

// StreamHandler receives the events of one streaming translation.
// OnChunk carries the cumulative text so far; after the last chunk exactly
// one of OnFinish or OnError is called, then no further callbacks fire.
type StreamHandler struct {
	OnChunk  func(cumulative string)
	OnFinish func(final string)
	OnError  func(err error)
}

// TranslationResult is the non-streaming response shape.
type TranslationResult struct {
	Translation string `json:"translation"`
	ServerMs    int64  `json:"serverMs"`
	Model       string `json:"model"`
}

// Translator abstracts the hosted LLM translation service.
//
// Stream opens one streaming request and delivers events through h.
// Cancellation is cooperative via ctx: after ctx is done no further events
// are delivered (the terminal event is then OnError with ctx's error).
// If FromLang equals ToLang (case-insensitive) the input is returned
// unchanged through OnFinish with no network call made.
type Translator interface {
	Stream(ctx context.Context, req TranslateRequest, h StreamHandler)
	Translate(ctx context.Context, req TranslateRequest) (*TranslationResult, error)
}
