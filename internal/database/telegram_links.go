package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/overlax/overlax/internal/models"
)

// TelegramLinkRepository handles telegram_links rows
type TelegramLinkRepository struct {
	db *DB
}

// NewTelegramLinkRepository creates a new telegram link repository
func NewTelegramLinkRepository(db *DB) *TelegramLinkRepository {
	return &TelegramLinkRepository{db: db}
}

// Get returns the link of uid, or ErrNotFound
func (r *TelegramLinkRepository) Get(ctx context.Context, uid string) (*models.TelegramLink, error) {
	link := &models.TelegramLink{}
	err := r.db.QueryRowContext(ctx,
		`SELECT uid, chat_id, linked_at FROM telegram_links WHERE uid = $1`, uid,
	).Scan(&link.UserID, &link.ChatID, &link.LinkedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("telegram link for %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get telegram link: %w", err)
	}
	return link, nil
}

// Link connects uid to chatID, replacing an earlier chat
func (r *TelegramLinkRepository) Link(ctx context.Context, uid string, chatID int64) (*models.TelegramLink, error) {
	query := `
		INSERT INTO telegram_links (uid, chat_id, linked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO UPDATE SET chat_id = EXCLUDED.chat_id, linked_at = EXCLUDED.linked_at
		RETURNING linked_at
	`

	link := &models.TelegramLink{UserID: uid, ChatID: chatID}
	if err := r.db.QueryRowContext(ctx, query, uid, chatID, time.Now().UTC()).Scan(&link.LinkedAt); err != nil {
		return nil, fmt.Errorf("failed to link telegram chat: %w", err)
	}
	return link, nil
}

// Unlink removes the link of uid. Telegram reports blocked bots this way.
func (r *TelegramLinkRepository) Unlink(ctx context.Context, uid string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM telegram_links WHERE uid = $1`, uid); err != nil {
		return fmt.Errorf("failed to unlink telegram chat: %w", err)
	}
	return nil
}

// ListLinked returns every linked user, oldest link first
func (r *TelegramLinkRepository) ListLinked(ctx context.Context) ([]models.TelegramLink, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT uid, chat_id, linked_at FROM telegram_links ORDER BY linked_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query telegram links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []models.TelegramLink
	for rows.Next() {
		var link models.TelegramLink
		if err := rows.Scan(&link.UserID, &link.ChatID, &link.LinkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan telegram link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating telegram links: %w", err)
	}
	return links, nil
}
