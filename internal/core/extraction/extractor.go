package extraction

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"code.sajari.com/docconv"

	"github.com/okoro-dev/translingo/internal/core"
)

// Guardrails: reject oversized uploads outright, truncate oversized output so
// it never blows up the downstream prompt.
const (
	MaxFileBytes = 3 * 1024 * 1024
	MaxTextChars = 200_000
)

const (
	docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	pdfMime  = "application/pdf"
)

var textExts = map[string]bool{
	"txt": true, "md": true, "csv": true, "json": true,
	"xml": true, "yaml": true, "yml": true,
}

var docxExts = map[string]bool{"docx": true}
var pdfExts = map[string]bool{"pdf": true}

var trailingWS = regexp.MustCompile(`[ \t]+\n`)

type DocconvExtractor struct{}

func NewDocconvExtractor() *DocconvExtractor {
	return &DocconvExtractor{}
}

// Extract turns file bytes into normalized plain text. Unsupported formats
// and parser failures come back as the typed errors in core; success and
// failure both leave nothing open behind (docconv works on an in-memory
// reader, so there is nothing to release beyond the buffer itself).
func (e *DocconvExtractor) Extract(ctx context.Context, filename, mime string, data []byte) (*core.ExtractResult, error) {
	if len(data) == 0 {
		return nil, core.ErrFileEmpty
	}
	if len(data) > MaxFileBytes {
		return nil, fmt.Errorf("%w: max supported size is %dMB", core.ErrFileTooLarge, MaxFileBytes/(1024*1024))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if filename == "" {
		filename = "upload"
	}
	ext := fileExt(filename)
	if mime == "" {
		mime = "application/octet-stream"
	}

	switch {
	case strings.HasPrefix(mime, "text/") || textExts[ext]:
		return result(string(data), filename, mime, ext), nil

	case mime == docxMime || docxExts[ext]:
		res, err := docconv.Convert(bytes.NewReader(data), docxMime, false)
		if err != nil {
			return nil, &core.ExtractionError{Filename: filename, Details: err.Error()}
		}
		return result(res.Body, filename, docxMime, ext), nil

	case mime == pdfMime || pdfExts[ext]:
		// Scanned, encrypted or malformed PDFs surface here as typed failures.
		res, err := docconv.Convert(bytes.NewReader(data), pdfMime, false)
		if err != nil {
			return nil, &core.ExtractionError{Filename: filename, Details: err.Error()}
		}
		return result(res.Body, filename, pdfMime, ext), nil
	}

	return nil, fmt.Errorf("%w: %s (%s)", core.ErrUnsupportedType, filename, mime)
}

func result(raw, filename, mime, ext string) *core.ExtractResult {
	normalized := normalizeText(raw)
	final, truncated, originalChars := truncateText(normalized)
	return &core.ExtractResult{
		Text:          final,
		Filename:      filename,
		Mime:          mime,
		Ext:           ext,
		Chars:         len([]rune(final)),
		OriginalChars: originalChars,
		Truncated:     truncated,
	}
}

// normalizeText removes null chars, collapses trailing whitespace before
// newlines and trims the result.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = trailingWS.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

func truncateText(s string) (final string, truncated bool, originalChars int) {
	runes := []rune(s)
	originalChars = len(runes)
	if originalChars <= MaxTextChars {
		return s, false, originalChars
	}
	return string(runes[:MaxTextChars]), true, originalChars
}

func fileExt(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

var _ core.Extractor = (*DocconvExtractor)(nil)
