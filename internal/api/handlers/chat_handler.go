package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/okoro-dev/translingo/internal/config"
	"github.com/okoro-dev/translingo/internal/core"
	"github.com/okoro-dev/translingo/internal/core/extraction"
	"github.com/okoro-dev/translingo/internal/session"
)

// ChatHandler exposes the chat surface. Every operation goes through the
// user's streaming session coordinator, never straight to the store, so the
// single-active-stream policy holds across all entry points.
type ChatHandler struct {
	sessions *session.Manager
	obj      core.ObjectClient // nil when archiving is disabled
	cfg      *config.Config
}

func NewChatHandler(sessions *session.Manager, obj core.ObjectClient, cfg *config.Config) *ChatHandler {
	return &ChatHandler{sessions: sessions, obj: obj, cfg: cfg}
}

func (h *ChatHandler) coordinator(w http.ResponseWriter, r *http.Request) *session.Coordinator {
	userID, ok := r.Context().Value("user_id").(string)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil
	}
	coord, err := h.sessions.Session(r.Context(), userID)
	if err != nil {
		jsonError(w, 500, fmt.Sprintf("session: %v", err))
		return nil
	}
	return coord
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"chats":        coord.Chats(),
		"activeChatId": coord.ActiveChatID(),
	})
}

func (h *ChatHandler) NewChat(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	chat, err := coord.NewChat(r.Context())
	if err != nil {
		jsonError(w, 500, fmt.Sprintf("create chat: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chat)
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	if err := coord.DeleteChat(r.Context(), chi.URLParam(r, "id")); err != nil {
		jsonError(w, sendStatus(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"activeChatId": coord.ActiveChatID()})
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	id := chi.URLParam(r, "id")
	if err := coord.SelectChat(r.Context(), id); err != nil {
		jsonError(w, sendStatus(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(coord.Messages(id))
}

type sendRequest struct {
	Text         string `json:"text"`
	CancelActive *bool  `json:"cancelActive,omitempty"` // default true: typed send
}

// SendMessage runs one typed translation end-to-end and responds with the
// finalized message.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, 400, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := coord.SelectChat(r.Context(), id); err != nil {
		jsonError(w, sendStatus(err), err.Error())
		return
	}

	cancelActive := req.CancelActive == nil || *req.CancelActive
	msg, err := coord.SendText(r.Context(), req.Text, cancelActive)
	if err != nil {
		jsonError(w, sendStatus(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msg)
}

// AttachFiles accepts a multipart batch (field "files", "file" also
// accepted), queues every file behind the active stream and blocks until the
// batch resolves. Per-file failures come back in the attachments snapshot.
func (h *ChatHandler) AttachFiles(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	id := chi.URLParam(r, "id")
	if err := coord.SelectChat(r.Context(), id); err != nil {
		jsonError(w, sendStatus(err), err.Error())
		return
	}

	if err := r.ParseMultipartForm(8 * extraction.MaxFileBytes); err != nil {
		jsonError(w, 415, "Expected multipart/form-data.")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		jsonError(w, 400, "Missing files.")
		return
	}

	uploads := make([]session.FileUpload, 0, len(headers))
	for _, hdr := range headers {
		data, err := readUpload(hdr)
		if err != nil {
			jsonError(w, 500, fmt.Sprintf("read upload %s: %v", hdr.Filename, err))
			return
		}
		uploads = append(uploads, session.FileUpload{
			Name: filepath.Base(hdr.Filename),
			Mime: hdr.Header.Get("Content-Type"),
			Size: hdr.Size,
			Data: data,
		})
	}

	if h.obj != nil {
		go h.archive(r.Context().Value("user_id").(string), uploads)
	}

	coord.AttachFiles(r.Context(), uploads)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"attachments": coord.Attachments(),
		"errors":      coord.Errors(),
		"messages":    coord.Messages(id),
	})
}

func readUpload(hdr *multipart.FileHeader) ([]byte, error) {
	f, err := hdr.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// archive copies raw upload bytes into object storage, best-effort.
func (h *ChatHandler) archive(userID string, uploads []session.FileUpload) {
	for _, up := range uploads {
		key := fmt.Sprintf("%s/%s/%s", userID, uuid.NewString(), up.Name)
		if _, err := h.obj.UploadFile(context.Background(), h.cfg.BucketName, key, up.Data, up.Mime); err != nil {
			log.Printf("archive upload %s: %v", up.Name, err)
		}
	}
}

// Session state surface

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	from, to := coord.Languages()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"fromLang":     from,
		"toLang":       to,
		"activeChatId": coord.ActiveChatID(),
		"attachments":  coord.Attachments(),
		"errors":       coord.Errors(),
		"fileQueue":    coord.FileQueueCount(),
	})
}

type languagesRequest struct {
	FromLang string `json:"fromLang"`
	ToLang   string `json:"toLang"`
	Swap     bool   `json:"swap,omitempty"`
}

func (h *ChatHandler) SetLanguages(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	var req languagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, 400, "invalid request body")
		return
	}
	if req.Swap {
		coord.SwapLanguages()
	} else {
		coord.SetLanguages(req.FromLang, req.ToLang)
	}
	from, to := coord.Languages()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"fromLang": from, "toLang": to})
}

func (h *ChatHandler) DismissErrors(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	coord.DismissErrors()
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) RemoveAttachment(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	coord.RemoveAttachment(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// sendStatus maps coordinator policy errors onto HTTP statuses.
func sendStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrEmptyText):
		return 400
	case errors.Is(err, session.ErrChatNotFound):
		return 404
	case errors.Is(err, session.ErrSendLocked),
		errors.Is(err, session.ErrSuperseded),
		errors.Is(err, session.ErrCanceled):
		return 409
	default:
		return 500
	}
}
