// Package validation checks login and registration form fields against fixed length bounds.
package validation

import (
	"fmt"
	"unicode/utf8"
)

// Bounds is an inclusive length range measured in characters.
type Bounds struct {
	Min int
	Max int
}

// Default bounds. LegacyPasswordMin is the lower password bound of the earlier revision.
var (
	UsernameBounds    = Bounds{Min: 3, Max: 30}
	PasswordBounds    = Bounds{Min: 6, Max: 50}
	LegacyPasswordMin = 3
)

// Outcome is the result of validating a single field.
type Outcome struct {
	Valid   bool
	Message string
}

// Valid is the outcome of a field that passed validation.
var Valid = Outcome{Valid: true}

func invalid(format string, args ...any) Outcome {
	return Outcome{Message: fmt.Sprintf(format, args...)}
}

// Validator validates form fields. The zero value is not usable; use New.
type Validator struct {
	username Bounds
	password Bounds
}

// New creates a Validator with the given bounds.
func New(username, password Bounds) *Validator {
	return &Validator{username: username, password: password}
}

// NewDefault creates a Validator with UsernameBounds and PasswordBounds.
func NewDefault() *Validator {
	return New(UsernameBounds, PasswordBounds)
}

// ValidateUsername checks the username length.
func (v *Validator) ValidateUsername(value string) Outcome {
	return check("Username", value, v.username)
}

// ValidatePassword checks the password length.
func (v *Validator) ValidatePassword(value string) Outcome {
	return check("Password", value, v.password)
}

func check(label, value string, b Bounds) Outcome {
	n := utf8.RuneCountInString(value)
	if n < b.Min {
		return invalid("%s must be at least %d characters long", label, b.Min)
	}
	if n > b.Max {
		return invalid("%s must be less than %d characters long", label, b.Max)
	}
	return Valid
}
