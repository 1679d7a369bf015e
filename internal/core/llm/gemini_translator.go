package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/okoro-dev/translingo/internal/core"
)

const systemPrompt = "You are a fast translator. Output ONLY the translated text. No preamble."

type GeminiTranslator struct {
	client    *genai.Client
	modelName string
}

func NewGeminiTranslator(ctx context.Context, apiKey, modelName string) (*GeminiTranslator, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiTranslator{client: cl, modelName: modelName}, nil
}

func (g *GeminiTranslator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// SameLanguage reports whether the request needs no translation at all.
func SameLanguage(req core.TranslateRequest) bool {
	return strings.EqualFold(strings.TrimSpace(req.FromLang), strings.TrimSpace(req.ToLang))
}

func (g *GeminiTranslator) model(name string) *genai.GenerativeModel {
	if name == "" {
		name = g.modelName
	}
	m := g.client.GenerativeModel(name)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	return m
}

func prompt(req core.TranslateRequest) genai.Text {
	return genai.Text(fmt.Sprintf("Translate this from %s to %s: %s", req.FromLang, req.ToLang, req.Text))
}

// Stream opens one streaming generation and forwards events to h. Exactly one
// of OnFinish or OnError is invoked; chunks carry the cumulative text.
func (g *GeminiTranslator) Stream(ctx context.Context, req core.TranslateRequest, h core.StreamHandler) {
	if SameLanguage(req) {
		// Same-language shortcut: echo the input, no network call.
		if h.OnFinish != nil {
			h.OnFinish(req.Text)
		}
		return
	}

	iter := g.model(req.Model).GenerateContentStream(ctx, prompt(req))

	var b strings.Builder
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			if h.OnFinish != nil {
				h.OnFinish(b.String())
			}
			return
		}
		if err != nil {
			if h.OnError != nil {
				h.OnError(fmt.Errorf("gemini stream: %w", err))
			}
			return
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, p := range resp.Candidates[0].Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if h.OnChunk != nil {
			h.OnChunk(b.String())
		}
	}
}

// Translate is the non-streaming variant used by the REST endpoint.
func (g *GeminiTranslator) Translate(ctx context.Context, req core.TranslateRequest) (*core.TranslationResult, error) {
	if SameLanguage(req) {
		return &core.TranslationResult{Translation: req.Text, ServerMs: 0, Model: g.modelName}, nil
	}

	t0 := time.Now()
	resp, err := g.model(req.Model).GenerateContent(ctx, prompt(req))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}

	model := req.Model
	if model == "" {
		model = g.modelName
	}
	return &core.TranslationResult{
		Translation: b.String(),
		ServerMs:    time.Since(t0).Milliseconds(),
		Model:       model,
	}, nil
}

var _ core.Translator = (*GeminiTranslator)(nil)
