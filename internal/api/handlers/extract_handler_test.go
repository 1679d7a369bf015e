package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okoro-dev/translingo/internal/config"
	"github.com/okoro-dev/translingo/internal/core/extraction"
)

func multipartUpload(t *testing.T, field, filename, mime string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	if mime != "" {
		hdr["Content-Type"] = []string{mime}
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newExtractHandler() *ExtractHandler {
	return NewExtractHandler(extraction.NewDocconvExtractor(), nil, &config.Config{})
}

func TestExtractTextFile(t *testing.T) {
	h := newExtractHandler()

	req := multipartUpload(t, "file", "notes.txt", "text/plain", []byte("  hello there \t\n"))
	rec := httptest.NewRecorder()
	h.Extract(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hello there", body["text"])
	assert.Equal(t, "notes.txt", body["filename"])
	assert.Equal(t, false, body["truncated"])
}

func TestExtractRejectsNonMultipart(t *testing.T) {
	h := newExtractHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Extract(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), "multipart/form-data")
}

func TestExtractMissingFileField(t *testing.T) {
	h := newExtractHandler()

	req := multipartUpload(t, "wrong-field", "notes.txt", "text/plain", []byte("hi"))
	rec := httptest.NewRecorder()
	h.Extract(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file")
}

func TestExtractEmptyFile(t *testing.T) {
	h := newExtractHandler()

	req := multipartUpload(t, "file", "empty.txt", "text/plain", nil)
	rec := httptest.NewRecorder()
	h.Extract(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Empty file")
}

func TestExtractFileTooLarge(t *testing.T) {
	h := newExtractHandler()

	req := multipartUpload(t, "file", "huge.txt", "text/plain", bytes.Repeat([]byte("a"), extraction.MaxFileBytes+1))
	rec := httptest.NewRecorder()
	h.Extract(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, extraction.MaxFileBytes, body["maxBytes"])
	assert.EqualValues(t, 3, body["maxMB"])
}

func TestExtractUnsupportedType(t *testing.T) {
	h := newExtractHandler()

	req := multipartUpload(t, "file", "photo.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})
	rec := httptest.NewRecorder()
	h.Extract(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported file type")
}

func TestExtractMalformedDocx(t *testing.T) {
	h := newExtractHandler()

	req := multipartUpload(t, "file", "broken.docx", "", []byte("not a zip archive"))
	rec := httptest.NewRecorder()
	h.Extract(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Failed to extract text.", body["error"])
	assert.NotEmpty(t, body["details"])
}
