package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okoro-dev/translingo/internal/config"
	"github.com/okoro-dev/translingo/internal/core"
	"github.com/okoro-dev/translingo/internal/models"
	"github.com/okoro-dev/translingo/internal/session"
)

// memStore is a minimal in-memory core.StoreClient for exercising the chat
// surface end to end.
type memStore struct {
	mu       sync.Mutex
	seq      int
	chats    map[string]*models.Chat
	messages map[string]*models.Message
	order    map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		chats:    make(map[string]*models.Chat),
		messages: make(map[string]*models.Message),
		order:    make(map[string][]string),
	}
}

func (s *memStore) CreateUser(ctx context.Context, user *models.User) error { return nil }
func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}

func (s *memStore) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Chat
	for _, ch := range s.chats {
		if ch.UserID == userID {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (s *memStore) CreateChat(ctx context.Context, userID, title string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ch := &models.Chat{
		ID:        fmt.Sprintf("chat-%d", s.seq),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.chats[ch.ID] = ch
	cp := *ch
	return &cp, nil
}

func (s *memStore) UpdateChatTitle(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.chats[id]; ok {
		ch.Title = title
		ch.UpdatedAt = time.Now()
	}
	return nil
}

func (s *memStore) TouchChat(ctx context.Context, id string) error { return nil }

func (s *memStore) DeleteChat(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, id)
	return nil
}

func (s *memStore) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, id := range s.order[chatID] {
		out = append(out, *s.messages[id])
	}
	return out, nil
}

func (s *memStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg.ID = fmt.Sprintf("msg-%d", s.seq)
	msg.CreatedAt = time.Now()
	cp := *msg
	s.messages[msg.ID] = &cp
	s.order[msg.ChatID] = append(s.order[msg.ChatID], msg.ID)
	return nil
}

func (s *memStore) UpdateMessageResult(ctx context.Context, id, translated string, latencyMs int64, errMsg string, showPlayback bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		m.TranslatedText = translated
		m.LatencyMs = latencyMs
		m.Error = errMsg
		m.ShowPlayback = showPlayback
		m.Pending = false
	}
	return nil
}

func (s *memStore) Close() error { return nil }

// gatedTranslator blocks the stream whose text contains gateOn until release
// closes; everything else finishes instantly.
type gatedTranslator struct {
	gateOn  string
	started chan struct{}
	release chan struct{}
}

func (g *gatedTranslator) Stream(ctx context.Context, req core.TranslateRequest, h core.StreamHandler) {
	if g.gateOn != "" && strings.Contains(req.Text, g.gateOn) {
		close(g.started)
		select {
		case <-g.release:
			h.OnFinish("slow done")
		case <-ctx.Done():
			h.OnError(ctx.Err())
		}
		return
	}
	h.OnFinish("ok: " + req.Text)
}

func (g *gatedTranslator) Translate(ctx context.Context, req core.TranslateRequest) (*core.TranslationResult, error) {
	return &core.TranslationResult{Translation: "ok: " + req.Text}, nil
}

type plainExtractor struct{}

func (plainExtractor) Extract(ctx context.Context, filename, mime string, data []byte) (*core.ExtractResult, error) {
	text := "text of " + filename
	return &core.ExtractResult{Text: text, Filename: filename, Chars: len(text)}, nil
}

func newChatRouter(t *testing.T, tr core.Translator) *chi.Mux {
	t.Helper()
	sessions := session.NewManager(newMemStore(), tr, plainExtractor{}, "test-model", "English", "Spanish")
	h := NewChatHandler(sessions, nil, &config.Config{})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), "user_id", "user-1")))
		})
	})
	r.Get("/chats", h.ListChats)
	r.Get("/chats/{id}/messages", h.ListMessages)
	r.Post("/chats/{id}/messages", h.SendMessage)
	r.Post("/chats/{id}/files", h.AttachFiles)
	return r
}

func activeChat(t *testing.T, r *chi.Mux) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ActiveChatID string `json:"activeChatId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.ActiveChatID)
	return body.ActiveChatID
}

func filesRequest(t *testing.T, url string, names ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("payload"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// A typed send rejected by the file lock must be a pure no-op: the in-flight
// file translation keeps streaming and the whole batch still succeeds.
func TestSendMessageLockedIsNoOpForFileBatch(t *testing.T) {
	tr := &gatedTranslator{
		gateOn:  "one.txt",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := newChatRouter(t, tr)
	chatID := activeChat(t, r)

	attachDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, filesRequest(t, "/chats/"+chatID+"/files", "one.txt", "two.txt"))
		attachDone <- rec
	}()
	<-tr.started

	// file one is mid-stream, file two queued: the typed send is rejected
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chats/"+chatID+"/messages", strings.NewReader(`{"text":"typed"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// reading the active chat's messages is not navigation either
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats/"+chatID+"/messages", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	close(tr.release)
	attachRec := <-attachDone
	require.Equal(t, http.StatusOK, attachRec.Code)

	var body struct {
		Attachments []models.Attachment `json:"attachments"`
		Errors      []string            `json:"errors"`
		Messages    []models.Message    `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(attachRec.Body.Bytes(), &body))
	assert.Empty(t, body.Attachments, "both files should translate and leave the strip")
	assert.Empty(t, body.Errors)
	require.Len(t, body.Messages, 2)
	for _, m := range body.Messages {
		assert.False(t, m.Pending)
		assert.Empty(t, m.Error)
	}
	assert.Equal(t, "slow done", body.Messages[0].TranslatedText)
}

// A typed send over a live typed stream supersedes it; the old message must
// record the supersession, not a navigation cancel.
func TestSendMessageSupersedesThroughHandler(t *testing.T) {
	tr := &gatedTranslator{
		gateOn:  "alpha",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := newChatRouter(t, tr)
	chatID := activeChat(t, r)

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/chats/"+chatID+"/messages", strings.NewReader(`{"text":"alpha"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(rec, req)
		firstDone <- rec
	}()
	<-tr.started

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chats/"+chatID+"/messages", strings.NewReader(`{"text":"beta"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	firstRec := <-firstDone
	assert.Equal(t, http.StatusConflict, firstRec.Code)
	assert.Contains(t, firstRec.Body.String(), "superseded")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats/"+chatID+"/messages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Error, "superseded")
	assert.NotContains(t, msgs[0].Error, "canceled")
	assert.Equal(t, "ok: beta", msgs[1].TranslatedText)
}
