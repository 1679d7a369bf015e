package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/okoro-dev/translingo/internal/config"
	"github.com/okoro-dev/translingo/internal/core"
	"github.com/okoro-dev/translingo/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.StoreClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		// Append SSL params to the provided DATABASE_URL safely.
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(pingCtx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: sqlDB}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the store interface for users

// CreateUser inserts a user; the database assigns the creation time.
func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	return c.db.QueryRowContext(ctx, q, user.ID, user.Email, user.PasswordHash).Scan(&user.CreatedAt)
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Implementing the store interface for chats

func (c *DatabaseClient) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	const q = `
		SELECT id, user_id, title, created_at, updated_at
		FROM chats
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Chat
	for rows.Next() {
		var ch models.Chat
		if err := rows.Scan(&ch.ID, &ch.UserID, &ch.Title, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// CreateChat inserts a chat; the database assigns the id and timestamps.
func (c *DatabaseClient) CreateChat(ctx context.Context, userID, title string) (*models.Chat, error) {
	const q = `
		INSERT INTO chats (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, title, created_at, updated_at
	`
	var ch models.Chat
	err := c.db.QueryRowContext(ctx, q, userID, title).Scan(
		&ch.ID, &ch.UserID, &ch.Title, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &ch, nil
}

func (c *DatabaseClient) UpdateChatTitle(ctx context.Context, id, title string) error {
	const q = `
		UPDATE chats
		SET title = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, title)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("chat not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) TouchChat(ctx context.Context, id string) error {
	const q = `
		UPDATE chats
		SET updated_at = now()
		WHERE id = $1
	`
	_, err := c.db.ExecContext(ctx, q, id)
	return err
}

// DeleteChat removes a chat; its messages cascade via the FK constraint.
func (c *DatabaseClient) DeleteChat(ctx context.Context, id string) error {
	const q = `DELETE FROM chats WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("chat not found: %s", id)
	}
	return nil
}

// Implementing the store interface for messages

func (c *DatabaseClient) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	const q = `
		SELECT id, chat_id, source_language, source_text, translated_text,
		       pending, error, latency_ms, show_playback, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(
			&m.ID, &m.ChatID, &m.SourceLanguage, &m.SourceText, &m.TranslatedText,
			&m.Pending, &m.Error, &m.LatencyMs, &m.ShowPlayback, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertMessage persists the pending skeleton and fills the server-assigned
// id and creation time back into msg.
func (c *DatabaseClient) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	const q = `
		INSERT INTO messages
			(chat_id, source_language, source_text, translated_text, pending, error, latency_ms, show_playback)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	return c.db.QueryRowContext(ctx, q,
		msg.ChatID, msg.SourceLanguage, msg.SourceText, msg.TranslatedText,
		msg.Pending, msg.Error, msg.LatencyMs, msg.ShowPlayback,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (c *DatabaseClient) UpdateMessageResult(ctx context.Context, id, translated string, latencyMs int64, errMsg string, showPlayback bool) error {
	const q = `
		UPDATE messages
		SET translated_text = $2, latency_ms = $3, error = $4, show_playback = $5, pending = false
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, translated, latencyMs, errMsg, showPlayback)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("message not found: %s", id)
	}
	return nil
}
