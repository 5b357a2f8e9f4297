package database

import (
	"context"

	"github.com/overlax/overlax/internal/models"
)

// TaskReader reads the shared task table
type TaskReader interface {
	TasksByUser(ctx context.Context, uid string) ([]models.Task, error)
}

// PressureSettingsStore persists per-user pressure thresholds
type PressureSettingsStore interface {
	Get(ctx context.Context, uid string) (*models.PressureSettings, error)
	Upsert(ctx context.Context, settings *models.PressureSettings) error
}

// TelegramLinkStore persists Telegram chat links
type TelegramLinkStore interface {
	Get(ctx context.Context, uid string) (*models.TelegramLink, error)
	Link(ctx context.Context, uid string, chatID int64) (*models.TelegramLink, error)
	Unlink(ctx context.Context, uid string) error
	ListLinked(ctx context.Context) ([]models.TelegramLink, error)
}

// Ensure concrete types implement the interfaces
var (
	_ TaskReader            = (*TaskRepository)(nil)
	_ PressureSettingsStore = (*PressureSettingsRepository)(nil)
	_ TelegramLinkStore     = (*TelegramLinkRepository)(nil)
)
