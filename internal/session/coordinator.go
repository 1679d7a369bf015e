package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okoro-dev/translingo/internal/core"
	"github.com/okoro-dev/translingo/internal/models"
)

const (
	placeholderText   = "Translating…"
	failedText        = "Failed to translate."
	noTextPlaceholder = "(no extractable text found)"
)

var (
	ErrEmptyText    = errors.New("nothing to translate")
	ErrSendLocked   = errors.New("file translations still in progress")
	ErrSuperseded   = errors.New("superseded by a newer request")
	ErrCanceled     = errors.New("translation canceled")
	ErrChatNotFound = errors.New("chat not found")
)

// streamTarget identifies the message the one active stream writes into.
type streamTarget struct {
	chatID    string
	messageID string
	startedAt time.Time
}

// operation is the handle of one in-flight send. done closes exactly once,
// after err/final are set; whoever transitions the coordinator's active slot
// away from the operation is the one that closes it.
type operation struct {
	target streamTarget
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// FileUpload is one file handed to AttachFiles.
type FileUpload struct {
	Name string
	Mime string
	Size int64
	Data []byte
}

// Coordinator owns one user session: the single-active-stream invariant, the
// pending-message lifecycle, the queueing/cancellation policy between typed
// and file-driven sends, and reconciliation between streamed output, the
// in-memory view model and the store.
//
// The view model is authoritative for the live session; store writes after
// the initial insert are best-effort side effects, surfaced as notifications
// and never rolled back into view state.
type Coordinator struct {
	mu         sync.Mutex
	userID     string
	store      core.StoreClient
	translator core.Translator
	extractor  core.Extractor
	model      string

	fromLang string
	toLang   string

	view   *viewModel
	active *operation

	// fileQueue counts in-flight attached files and releases only when a
	// file fully finishes. filePending counts files still before their
	// translation phase (extracting or queued); only those engage the
	// send-lock, so a typed send can still supersede a file translation
	// that is already streaming.
	fileQueue   int
	filePending int
}

func NewCoordinator(userID string, store core.StoreClient, tr core.Translator, ex core.Extractor, model, fromLang, toLang string) *Coordinator {
	return &Coordinator{
		userID:     userID,
		store:      store,
		translator: tr,
		extractor:  ex,
		model:      model,
		fromLang:   fromLang,
		toLang:     toLang,
		view:       newViewModel(),
	}
}

// Load bootstraps the session from the store, creating a first chat when the
// user has none yet.
func (c *Coordinator) Load(ctx context.Context) error {
	chats, err := c.store.ListChats(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	if len(chats) == 0 {
		chat, err := c.store.CreateChat(ctx, c.userID, defaultTitle)
		if err != nil {
			return fmt.Errorf("create chat: %w", err)
		}
		chats = []models.Chat{*chat}
	}

	c.mu.Lock()
	c.view.setChats(chats)
	c.view.activeChatID = chats[0].ID
	c.mu.Unlock()

	return c.SelectChat(ctx, chats[0].ID)
}

// SendText runs one translation end-to-end and blocks until the message
// reaches its terminal state.
//
// cancelActive=true is a typed user send: it aborts the active stream and
// rejects its waiter with ErrSuperseded, but is itself rejected with
// ErrSendLocked while file translations are queued. cancelActive=false is a
// file-driven send: it waits behind the active operation instead.
func (c *Coordinator) SendText(ctx context.Context, text string, cancelActive bool) (*models.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyText
	}

	c.mu.Lock()
	if cancelActive && c.filePending > 0 {
		c.mu.Unlock()
		return nil, ErrSendLocked
	}
	for c.active != nil {
		prev := c.active
		if cancelActive {
			c.cancelActiveLocked(ErrSuperseded)
			break
		}
		// Queue behind the in-flight operation; re-check after it resolves
		// because another queued send may have claimed the slot first.
		c.mu.Unlock()
		select {
		case <-prev.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := &operation{cancel: cancel, done: make(chan struct{})}
	c.active = op
	chatID := c.view.activeChatID
	fromLang, toLang, model := c.fromLang, c.toLang, c.model
	c.mu.Unlock()

	// Persist the skeleton first; the store-assigned id drives every later
	// identity check and write-through.
	msg := &models.Message{
		ChatID:         chatID,
		SourceLanguage: fromLang,
		SourceText:     trimmed,
		TranslatedText: placeholderText,
		Pending:        true,
	}
	if err := c.store.InsertMessage(opCtx, msg); err != nil {
		c.mu.Lock()
		if c.active == op {
			c.active = nil
			op.err = fmt.Errorf("save message: %w", err)
			close(op.done)
		}
		retErr := op.err
		c.mu.Unlock()
		return nil, retErr
	}

	c.mu.Lock()
	if c.active != op {
		// Superseded while awaiting the insert. The row exists but never
		// entered the view; settle it as failed so it doesn't reload pending.
		retErr := op.err
		c.mu.Unlock()
		go func() {
			_ = c.store.UpdateMessageResult(context.Background(), msg.ID, failedText, 0, retErr.Error(), false)
		}()
		return nil, retErr
	}
	op.target = streamTarget{chatID: chatID, messageID: msg.ID, startedAt: time.Now()}
	c.view.appendMessage(chatID, msg)
	newTitle := c.view.touchChat(chatID, trimmed)
	c.mu.Unlock()

	if newTitle != "" {
		if err := c.store.UpdateChatTitle(ctx, chatID, newTitle); err != nil {
			c.noteError(fmt.Sprintf("save chat title: %v", err))
		}
	} else if err := c.store.TouchChat(ctx, chatID); err != nil {
		c.noteError(fmt.Sprintf("touch chat: %v", err))
	}

	// Bridge the callback-based stream into this awaitable call: events land
	// through the handlers, the terminal one closes op.done.
	go c.translator.Stream(opCtx, core.TranslateRequest{
		Text:     trimmed,
		FromLang: fromLang,
		ToLang:   toLang,
		Model:    model,
	}, core.StreamHandler{
		OnChunk:  func(cum string) { c.applyChunk(op, cum) },
		OnFinish: func(final string) { c.finishStream(op, final) },
		OnError:  func(err error) { c.failStream(op, err) },
	})

	<-op.done
	cancel()
	if op.err != nil {
		return nil, op.err
	}
	return msg, nil
}

// applyChunk overwrites the pending message with the cumulative text. Events
// for a target that is no longer active are discarded.
func (c *Coordinator) applyChunk(op *operation, cum string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != op {
		return
	}
	if cum == "" {
		cum = placeholderText
	}
	c.view.setStreamingText(op.target.chatID, op.target.messageID, cum)
}

func (c *Coordinator) finishStream(op *operation, final string) {
	c.mu.Lock()
	if c.active != op {
		c.mu.Unlock()
		return
	}
	c.active = nil
	latency := time.Since(op.target.startedAt).Milliseconds()
	c.view.finalizeSuccess(op.target.chatID, op.target.messageID, final, latency)
	c.view.bumpChat(op.target.chatID)
	op.err = nil
	c.mu.Unlock()

	// Write through before resolving the waiter; a store failure surfaces as
	// a notification, the finalized view state stands either way.
	if err := c.store.UpdateMessageResult(context.Background(), op.target.messageID, final, latency, "", true); err != nil {
		c.noteError(fmt.Sprintf("save translation: %v", err))
	}
	if err := c.store.TouchChat(context.Background(), op.target.chatID); err != nil {
		log.Printf("session: touch chat %s: %v", op.target.chatID, err)
	}

	close(op.done)
}

func (c *Coordinator) failStream(op *operation, streamErr error) {
	c.mu.Lock()
	if c.active != op {
		c.mu.Unlock()
		return
	}
	c.active = nil
	c.view.finalizeFailure(op.target.chatID, op.target.messageID, failedText, streamErr.Error())
	op.err = streamErr
	c.mu.Unlock()

	if err := c.store.UpdateMessageResult(context.Background(), op.target.messageID, failedText, 0, streamErr.Error(), false); err != nil {
		c.noteError(fmt.Sprintf("save translation: %v", err))
	}

	close(op.done)
}

// cancelActiveLocked tears down the active operation: the transport is told
// to stop (best-effort), the waiter is rejected with reason, the pending
// message is settled and the slot cleared so late events become no-ops.
// Caller holds c.mu.
func (c *Coordinator) cancelActiveLocked(reason error) {
	op := c.active
	if op == nil {
		return
	}
	c.active = nil
	op.cancel()
	if op.target.messageID != "" {
		c.view.finalizeFailure(op.target.chatID, op.target.messageID, failedText, reason.Error())
		msgID := op.target.messageID
		go func() {
			_ = c.store.UpdateMessageResult(context.Background(), msgID, failedText, 0, reason.Error(), false)
		}()
	}
	op.err = reason
	close(op.done)
}

// AttachFiles extracts and translates files strictly one at a time, in input
// order. The file-queue counter engages the send-lock for the whole batch
// before any file is touched and is released per file in every outcome.
func (c *Coordinator) AttachFiles(ctx context.Context, files []FileUpload) {
	if len(files) == 0 {
		return
	}

	ids := make([]string, len(files))
	c.mu.Lock()
	for i, f := range files {
		ids[i] = uuid.NewString()
		c.view.addAttachment(&models.Attachment{
			ID:     ids[i],
			Name:   f.Name,
			Status: models.AttachmentUploading,
			Mime:   f.Mime,
			Size:   f.Size,
		})
	}
	c.fileQueue += len(files)
	c.filePending += len(files)
	c.mu.Unlock()

	for i, f := range files {
		c.processFile(ctx, ids[i], f)
	}
}

func (c *Coordinator) processFile(ctx context.Context, attID string, f FileUpload) {
	defer func() {
		c.mu.Lock()
		c.fileQueue--
		c.mu.Unlock()
	}()

	res, err := c.extractor.Extract(ctx, f.Name, f.Mime, f.Data)
	if err != nil {
		c.mu.Lock()
		c.filePending--
		c.mu.Unlock()
		c.attachmentFailed(attID, f.Name, err)
		return
	}

	text := res.Text
	if text == "" {
		text = noTextPlaceholder
	}

	// The file now enters its translation phase: it stops holding the
	// send-lock so a typed send may supersede it from here on.
	c.mu.Lock()
	c.view.setAttachmentReady(attID, res.Chars)
	c.filePending--
	c.mu.Unlock()

	payload := fmt.Sprintf("\U0001F4CE %s\n\n%s", f.Name, text)
	if _, err := c.SendText(ctx, payload, false); err != nil {
		c.attachmentFailed(attID, f.Name, err)
		return
	}

	// Only a fully translated file leaves the attachment strip.
	c.mu.Lock()
	c.view.removeAttachment(attID)
	c.mu.Unlock()
}

func (c *Coordinator) attachmentFailed(attID, name string, err error) {
	c.mu.Lock()
	c.view.setAttachmentError(attID, err.Error())
	c.view.pushError(fmt.Sprintf("%s: %v", name, err))
	c.mu.Unlock()
}

// NewChat cancels any active stream, creates a chat in the store and makes it
// active with an empty message sequence.
func (c *Coordinator) NewChat(ctx context.Context) (*models.Chat, error) {
	c.mu.Lock()
	c.cancelActiveLocked(ErrCanceled)
	c.mu.Unlock()

	chat, err := c.store.CreateChat(ctx, c.userID, defaultTitle)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.view.addChatFront(*chat)
	c.view.activeChatID = chat.ID
	c.mu.Unlock()
	return chat, nil
}

// SelectChat switches the active chat, canceling any active stream, and
// lazily loads the chat's messages on first visit. Selecting the chat that is
// already active is not navigation: the active stream keeps running, so
// callers may re-select before every operation without side effects.
func (c *Coordinator) SelectChat(ctx context.Context, id string) error {
	c.mu.Lock()
	if !c.view.hasChat(id) {
		c.mu.Unlock()
		return ErrChatNotFound
	}
	if id != c.view.activeChatID {
		c.cancelActiveLocked(ErrCanceled)
		c.view.activeChatID = id
	}
	loaded := c.view.loaded[id]
	c.mu.Unlock()

	if loaded {
		return nil
	}
	msgs, err := c.store.ListMessages(ctx, id)
	if err != nil {
		c.noteError(fmt.Sprintf("load messages: %v", err))
		return fmt.Errorf("load messages: %w", err)
	}
	c.mu.Lock()
	c.view.setMessages(id, msgs)
	c.mu.Unlock()
	return nil
}

// DeleteChat removes the chat optimistically and issues the store delete in
// the background; a persistence failure surfaces as a notification and never
// rolls the removal back. Deleting the active chat promotes the next
// most-recently-updated chat, or creates a fresh one when none remain.
func (c *Coordinator) DeleteChat(ctx context.Context, id string) error {
	c.mu.Lock()
	if !c.view.hasChat(id) {
		c.mu.Unlock()
		return ErrChatNotFound
	}
	wasActive := id == c.view.activeChatID
	if wasActive {
		c.cancelActiveLocked(ErrCanceled)
	}
	c.view.removeChat(id)
	next := ""
	if wasActive && len(c.view.chats) > 0 {
		next = c.view.chats[0].ID
	}
	c.mu.Unlock()

	go func() {
		if err := c.store.DeleteChat(context.Background(), id); err != nil {
			c.noteError(fmt.Sprintf("delete chat: %v", err))
		}
	}()

	if !wasActive {
		return nil
	}
	if next == "" {
		_, err := c.NewChat(ctx)
		return err
	}
	return c.SelectChat(ctx, next)
}

// Languages

func (c *Coordinator) SetLanguages(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if from != "" {
		c.fromLang = from
	}
	if to != "" {
		c.toLang = to
	}
}

func (c *Coordinator) SwapLanguages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fromLang, c.toLang = c.toLang, c.fromLang
}

func (c *Coordinator) Languages() (from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fromLang, c.toLang
}

// Snapshots for the presentation layer. Everything is copied out so readers
// never hold references into coordinator-owned state.

func (c *Coordinator) ActiveChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.activeChatID
}

func (c *Coordinator) Chats() []models.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Chat(nil), c.view.chats...)
}

func (c *Coordinator) Messages(chatID string) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := c.view.messages[chatID]
	out := make([]models.Message, len(src))
	for i, m := range src {
		out[i] = *m
	}
	return out
}

func (c *Coordinator) Attachments() []models.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Attachment, len(c.view.attachments))
	for i, a := range c.view.attachments {
		out[i] = *a
	}
	return out
}

func (c *Coordinator) RemoveAttachment(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.removeAttachment(id)
}

func (c *Coordinator) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.view.errors...)
}

func (c *Coordinator) DismissErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.clearErrors()
}

// FileQueueCount reports how many attached files are still queued or mid-
// translation; nonzero engages the send-lock.
func (c *Coordinator) FileQueueCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fileQueue
}

func (c *Coordinator) noteError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.pushError(msg)
}
