package core

import (
	"context"

	"github.com/okoro-dev/translingo/internal/models"
)

// StoreClient defines all persistence operations the higher layers need.
// It abstracts Postgres so the session coordinator never depends on a
// specific DB. The store assigns ids and timestamps on insert.
type StoreClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	ListChats(ctx context.Context, userID string) ([]models.Chat, error)
	CreateChat(ctx context.Context, userID, title string) (*models.Chat, error)
	UpdateChatTitle(ctx context.Context, id, title string) error
	TouchChat(ctx context.Context, id string) error
	DeleteChat(ctx context.Context, id string) error

	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	UpdateMessageResult(ctx context.Context, id, translated string, latencyMs int64, errMsg string, showPlayback bool) error

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// Abstract so AWS can be swapped for MinIO, GCP, etc.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
