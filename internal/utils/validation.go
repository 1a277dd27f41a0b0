package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate       *validator.Validate
	emoteNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_]*$`)
	snowflakeRegex = regexp.MustCompile(`^[0-9]{1,20}$`)
)

const (
	EmoteNameMinLen = 3
	EmoteNameMaxLen = 20
)

func init() {
	validate = validator.New()

	// Emote names: 3-20 characters, alphanumeric plus underscore, no
	// leading underscore, no consecutive underscores.
	validate.RegisterValidation("emotename", func(fl validator.FieldLevel) bool {
		return IsValidEmoteName(fl.Field().String())
	})

	// Discord snowflake ids arrive as decimal strings.
	validate.RegisterValidation("snowflake", func(fl validator.FieldLevel) bool {
		return snowflakeRegex.MatchString(fl.Field().String())
	})
}

// IsValidEmoteName checks the emote naming rule.
func IsValidEmoteName(name string) bool {
	if len(name) < EmoteNameMinLen || len(name) > EmoteNameMaxLen {
		return false
	}
	if !emoteNameRegex.MatchString(name) {
		return false
	}
	return !strings.Contains(name, "__")
}

// Validate validates a struct using the validator
func Validate(s any) error {
	return validate.Struct(s)
}

// FormatValidationErrors formats validation errors for API response
func FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			field := strings.ToLower(e.Field())
			switch e.Tag() {
			case "required":
				errors[field] = "This field is required"
			case "min":
				errors[field] = "Value is too short"
			case "max":
				errors[field] = "Value is too long"
			case "emotename":
				errors[field] = "Emote name must be 3-20 letters, numbers, or underscores, and may not start with or repeat underscores"
			case "snowflake":
				errors[field] = "Must be a Discord id"
			default:
				errors[field] = "Invalid value"
			}
		}
	}

	return errors
}

// SanitizeString removes potentially dangerous characters from a string
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
