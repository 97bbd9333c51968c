package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// MaxNameLength bounds family names and activity titles
const MaxNameLength = 200

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// NormalizeName trims value and checks that something is left.
// field names the input in the returned error.
func NormalizeName(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ValidationError{Field: field, Message: field + " is required"}
	}
	if len(value) > MaxNameLength {
		return "", ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, MaxNameLength)}
	}
	return value, nil
}
