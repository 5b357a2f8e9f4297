package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/overlax/overlax/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// These should never fail in normal operation
	if err := Validate.RegisterValidation("pressure_ladder", validatePressureLadder); err != nil {
		panic(fmt.Sprintf("failed to register pressure_ladder validator: %v", err))
	}
	if err := Validate.RegisterValidation("chat_id", validateChatID); err != nil {
		panic(fmt.Sprintf("failed to register chat_id validator: %v", err))
	}
	Validate.RegisterStructValidation(pressureSettingsLevel, models.PressureSettings{})
}

// validatePressureLadder checks a PressureSettings value used as a field
func validatePressureLadder(fl validator.FieldLevel) bool {
	settings, ok := fl.Field().Interface().(models.PressureSettings)
	return ok && settings.Ordered()
}

// pressureSettingsLevel reports a ladder error on every PressureSettings struct
func pressureSettingsLevel(sl validator.StructLevel) {
	settings, ok := sl.Current().Interface().(models.PressureSettings)
	if !ok {
		return
	}
	if !settings.Ordered() {
		sl.ReportError(settings.Critical, "Critical", "critical", "pressure_ladder", "")
	}
}

// validateChatID accepts Telegram chat ids, which may be negative for groups
func validateChatID(fl validator.FieldLevel) bool {
	_, err := ParseChatID(fl.Field().String())
	return err == nil
}

// ParseChatID parses a Telegram chat id
func ParseChatID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid chat id: %q", value)
	}
	return id, nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidatePressureSettings returns a descriptive error for an unordered ladder
func ValidatePressureSettings(settings models.PressureSettings) error {
	if settings.Ordered() {
		return nil
	}
	return fmt.Errorf("invalid pressure settings: need 0 < low (%d) <= medium (%d) <= high (%d) <= critical (%d)",
		settings.Low, settings.Medium, settings.High, settings.Critical)
}
