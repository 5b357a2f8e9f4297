package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/overlax/overlax/internal/models"
)

// PressureSettingsRepository handles pressure_settings rows
type PressureSettingsRepository struct {
	db *DB
}

// NewPressureSettingsRepository creates a new pressure settings repository
func NewPressureSettingsRepository(db *DB) *PressureSettingsRepository {
	return &PressureSettingsRepository{db: db}
}

// Get returns the saved thresholds of uid, or ErrNotFound
func (r *PressureSettingsRepository) Get(ctx context.Context, uid string) (*models.PressureSettings, error) {
	query := `
		SELECT uid, low, medium, high, critical, updated_at
		FROM pressure_settings
		WHERE uid = $1
	`

	s := &models.PressureSettings{}
	err := r.db.QueryRowContext(ctx, query, uid).Scan(&s.UserID, &s.Low, &s.Medium, &s.High, &s.Critical, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pressure settings for %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pressure settings: %w", err)
	}
	return s, nil
}

// Upsert stores thresholds, replacing any previous row
func (r *PressureSettingsRepository) Upsert(ctx context.Context, settings *models.PressureSettings) error {
	query := `
		INSERT INTO pressure_settings (uid, low, medium, high, critical, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uid) DO UPDATE SET
			low = EXCLUDED.low,
			medium = EXCLUDED.medium,
			high = EXCLUDED.high,
			critical = EXCLUDED.critical,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		settings.UserID,
		settings.Low,
		settings.Medium,
		settings.High,
		settings.Critical,
		time.Now().UTC(),
	).Scan(&settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert pressure settings: %w", err)
	}
	return nil
}
