package validation

import (
	"testing"

	"github.com/overlax/overlax/internal/models"
)

func TestPressureSettingsValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings models.PressureSettings
		wantErr  bool
	}{
		{"defaults", *models.DefaultPressureSettings("u1"), false},
		{"equal steps", models.PressureSettings{UserID: "u1", Low: 2, Medium: 2, High: 2, Critical: 2}, false},
		{"descending", models.PressureSettings{UserID: "u1", Low: 5, Medium: 4, High: 6, Critical: 7}, true},
		{"zero low", models.PressureSettings{UserID: "u1", Low: 0, Medium: 4, High: 6, Critical: 7}, true},
		{"missing uid", models.PressureSettings{Low: 1, Medium: 2, High: 3, Critical: 4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate.Struct(tt.settings)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSavePressureSettingsRequest(t *testing.T) {
	t.Parallel()

	req := models.SavePressureSettingsRequest{
		UserID:   "u1",
		Settings: models.PressureSettings{UserID: "u1", Low: 9, Medium: 1, High: 1, Critical: 1},
	}
	if err := Validate.Struct(req); err == nil {
		t.Error("Expected nested ladder error")
	}

	req.Settings = *models.DefaultPressureSettings("u1")
	if err := Validate.Struct(req); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestConnectTelegramRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		chatID  string
		wantErr bool
	}{
		{"123456789", false},
		{"-1001234567890", false},
		{"", true},
		{"abc", true},
		{"0", true},
	}

	for _, tt := range tests {
		t.Run(tt.chatID, func(t *testing.T) {
			t.Parallel()
			err := Validate.Struct(models.ConnectTelegramRequest{ChatID: tt.chatID})
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	if got := SanitizeText("  hi\x00 there\n "); got != "hi there" {
		t.Errorf("Expected %q, got %q", "hi there", got)
	}
}

func TestValidatePressureSettings(t *testing.T) {
	t.Parallel()

	if err := ValidatePressureSettings(*models.DefaultPressureSettings("u1")); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := ValidatePressureSettings(models.PressureSettings{Low: 3, Medium: 2, High: 1, Critical: 1}); err == nil {
		t.Error("Expected error for unordered ladder")
	}
}
