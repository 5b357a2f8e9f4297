package models

import "time"

// Default pressure thresholds
const (
	DefaultPressureLow      = 3
	DefaultPressureMedium   = 5
	DefaultPressureHigh     = 7
	DefaultPressureCritical = 8
)

// PressureSettings maps pending task counts to a stress level.
// Thresholds must satisfy 0 < low <= medium <= high <= critical.
type PressureSettings struct {
	UserID    string    `json:"uid" validate:"required,max=128"`
	Low       int       `json:"low" validate:"min=1"`
	Medium    int       `json:"medium" validate:"min=1"`
	High      int       `json:"high" validate:"min=1"`
	Critical  int       `json:"critical" validate:"min=1"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// DefaultPressureSettings returns the thresholds used when a user has none saved.
func DefaultPressureSettings(uid string) *PressureSettings {
	return &PressureSettings{
		UserID:   uid,
		Low:      DefaultPressureLow,
		Medium:   DefaultPressureMedium,
		High:     DefaultPressureHigh,
		Critical: DefaultPressureCritical,
	}
}

// Ordered reports whether the thresholds form a non-decreasing ladder of positive values.
func (p PressureSettings) Ordered() bool {
	return p.Low > 0 && p.Low <= p.Medium && p.Medium <= p.High && p.High <= p.Critical
}

// SavePressureSettingsRequest is the body of POST /api/pressure-settings
type SavePressureSettingsRequest struct {
	UserID   string           `json:"uid" validate:"required,max=128"`
	Settings PressureSettings `json:"settings"`
}
