package core

import (
	"context"
	"errors"
	"fmt"
)

// Extraction failure kinds. Handlers map these onto HTTP statuses, the
// session coordinator surfaces them per attachment.
var (
	ErrFileEmpty       = errors.New("empty file")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// ExtractionError wraps a failure from the document parser itself (scanned,
// encrypted or malformed documents). Distinct from the sentinel errors above,
// which are validation failures caught before parsing.
type ExtractionError struct {
	Filename string
	Details  string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.Filename, e.Details)
}

// ExtractResult is the normalized output of a successful extraction.
type ExtractResult struct {
	Text          string `json:"text"`
	Filename      string `json:"filename"`
	Mime          string `json:"mime"`
	Ext           string `json:"ext"`
	Chars         int    `json:"chars"`
	OriginalChars int    `json:"originalChars"`
	Truncated     bool   `json:"truncated"`
}

// Extractor turns uploaded file bytes into plain text. Implementations
// enforce the size ceiling and truncate oversized output; every path,
// success or failure, releases whatever resources the parse acquired.
type Extractor interface {
	Extract(ctx context.Context, filename, mime string, data []byte) (*ExtractResult, error)
}
