package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okoro-dev/translingo/internal/config"
	"github.com/okoro-dev/translingo/internal/core"
	"github.com/okoro-dev/translingo/internal/core/extraction"
)

type ExtractHandler struct {
	extractor core.Extractor
	obj       core.ObjectClient // nil when archiving is disabled
	cfg       *config.Config
}

func NewExtractHandler(ex core.Extractor, obj core.ObjectClient, cfg *config.Config) *ExtractHandler {
	return &ExtractHandler{extractor: ex, obj: obj, cfg: cfg}
}

// Extract serves POST /api/extract: multipart upload, field name "file",
// responding with the extracted text and its metadata. When object storage
// is configured the raw bytes are archived concurrently with extraction.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(ct), "multipart/form-data") {
		jsonError(w, 415, "Expected multipart/form-data.")
		return
	}

	if err := r.ParseMultipartForm(extraction.MaxFileBytes + 1024); err != nil {
		jsonError(w, 400, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, 400, "Missing file (field name must be 'file').")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, 500, "Extract failed.", map[string]interface{}{"details": err.Error()})
		return
	}

	filename := filepath.Base(header.Filename)
	mime := header.Header.Get("Content-Type")

	g, gctx := errgroup.WithContext(r.Context())

	var res *core.ExtractResult
	g.Go(func() error {
		var exErr error
		res, exErr = h.extractor.Extract(gctx, filename, mime, data)
		return exErr
	})

	if h.obj != nil {
		g.Go(func() error {
			userID, _ := r.Context().Value("user_id").(string)
			key := fmt.Sprintf("%s/%s/%s", userID, uuid.NewString(), filename)
			if _, upErr := h.obj.UploadFile(gctx, h.cfg.BucketName, key, data, mime); upErr != nil {
				// Archive failures never block extraction.
				log.Printf("archive upload %s: %v", filename, upErr)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		writeExtractError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// writeExtractError maps the extraction error taxonomy onto HTTP statuses.
func writeExtractError(w http.ResponseWriter, err error) {
	var exErr *core.ExtractionError
	switch {
	case errors.Is(err, core.ErrFileEmpty):
		jsonError(w, 400, "Empty file.")
	case errors.Is(err, core.ErrFileTooLarge):
		jsonError(w, 413, fmt.Sprintf("File too large. Max supported size is %dMB.", extraction.MaxFileBytes/(1024*1024)),
			map[string]interface{}{
				"maxBytes": extraction.MaxFileBytes,
				"maxMB":    extraction.MaxFileBytes / (1024 * 1024),
			})
	case errors.Is(err, core.ErrUnsupportedType):
		jsonError(w, 415, "Unsupported file type. File translation only supports text, docx, and pdf files.",
			map[string]interface{}{"details": err.Error()})
	case errors.As(err, &exErr):
		jsonError(w, 422, "Failed to extract text.", map[string]interface{}{"details": exErr.Details})
	default:
		jsonError(w, 500, "Extract failed.", map[string]interface{}{"details": err.Error()})
	}
}
