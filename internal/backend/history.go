package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codetrek/codetrek/internal/api"
)

// History stores chat exchanges.
type History struct {
	db *sql.DB
}

// NewHistory creates the chat_messages table in db if it does not exist.
func NewHistory(db *sql.DB) (*History, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		message TEXT NOT NULL,
		response TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		level TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &History{db: db}, nil
}

// Record stores one exchange and returns it.
func (h *History) Record(ctx context.Context, message, response, topic, level string) (api.ChatRecord, error) {
	rec := api.ChatRecord{
		ID:        uuid.New().String(),
		Message:   message,
		Response:  response,
		Topic:     topic,
		Level:     level,
		CreatedAt: time.Now().UTC(),
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, message, response, topic, level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Message, rec.Response, rec.Topic, rec.Level, rec.CreatedAt,
	)
	if err != nil {
		return api.ChatRecord{}, fmt.Errorf("insert chat message: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit exchanges, oldest first.
func (h *History) Recent(ctx context.Context, limit int) ([]api.ChatRecord, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, message, response, topic, level, created_at
		 FROM chat_messages
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var out []api.ChatRecord
	for rows.Next() {
		var r api.ChatRecord
		if err := rows.Scan(&r.ID, &r.Message, &r.Response, &r.Topic, &r.Level, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
