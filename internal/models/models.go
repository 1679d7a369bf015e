package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Chat is one conversation. The title starts as "New chat" and is overwritten
// exactly once, by the first successful user message.
type Chat struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message is one transcript item. It is created pending=true the instant a
// send is accepted and reaches a terminal state exactly once: success
// (final text, latency, playback enabled) or failure (error populated).
type Message struct {
	ID             string    `db:"id" json:"id"`
	ChatID         string    `db:"chat_id" json:"chat_id"`
	SourceLanguage string    `db:"source_language" json:"source_language"`
	SourceText     string    `db:"source_text" json:"source_text"`
	TranslatedText string    `db:"translated_text" json:"translated_text"`
	Pending        bool      `db:"pending" json:"pending"`
	Error          string    `db:"error" json:"error,omitempty"`
	LatencyMs      int64     `db:"latency_ms" json:"latency_ms,omitempty"`
	ShowPlayback   bool      `db:"show_playback" json:"show_playback"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Attachment statuses.
const (
	AttachmentUploading = "uploading"
	AttachmentReady     = "ready"
	AttachmentError     = "error"
)

// Attachment is the transient record of a file being extracted and
// translated. It never persists past the session.
type Attachment struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // uploading | ready | error
	Mime   string `json:"mime"`
	Size   int64  `json:"size"`
	Chars  int    `json:"chars,omitempty"`
	Error  string `json:"error,omitempty"`
}
