package model

import (
	"strings"
	"time"
)

// SessionResult is the structured answer to authenticate and register calls.
// Success false means the server rejected the request.
type SessionResult struct {
	Success          bool     `json:"success"`
	Token            string   `json:"token,omitempty"`
	ErrorCode        string   `json:"errorCode,omitempty"`
	Message          string   `json:"message,omitempty"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
}

// HasToken reports whether the result carries a credential.
func (r SessionResult) HasToken() bool {
	return r.Token != ""
}

// CredentialStatus describes the locally stored credential.
type CredentialStatus struct {
	Stored    bool
	Opaque    bool
	Subject   string
	ExpiresAt *time.Time
}

// Expired reports whether the credential carries an expiry in the past.
func (s CredentialStatus) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Field identifies a form field that can carry an error.
type Field string

const (
	// FieldUsername is the username input.
	FieldUsername Field = "username"
	// FieldPassword is the password input.
	FieldPassword Field = "password"
)

// Fields lists every known form field.
var Fields = []Field{FieldUsername, FieldPassword}

// ParseField maps a server-provided field name to a known Field.
func ParseField(name string) (Field, bool) {
	switch Field(strings.ToLower(strings.TrimSpace(name))) {
	case FieldUsername:
		return FieldUsername, true
	case FieldPassword:
		return FieldPassword, true
	default:
		return "", false
	}
}

// FieldError is one server-side validation error attributed to a field.
type FieldError struct {
	Field   Field
	Message string
}

// ParseValidationError splits a "field: message" entry on the first ": ".
// ok is false when the entry is malformed or names an unknown field.
func ParseValidationError(entry string) (FieldError, bool) {
	name, message, found := strings.Cut(entry, ": ")
	if !found {
		return FieldError{}, false
	}

	field, ok := ParseField(name)
	if !ok {
		return FieldError{}, false
	}

	return FieldError{Field: field, Message: message}, true
}

// LoginForm holds the values of the login/registration form.
type LoginForm struct {
	Username       string
	Password       string
	VerifyPassword string
}

// SubmitOutcome is the final state of a form submission.
type SubmitOutcome int

const (
	// OutcomeInvalid means local validation failed and no call was made.
	OutcomeInvalid SubmitOutcome = iota
	// OutcomeSucceeded means the server accepted the request.
	OutcomeSucceeded
	// OutcomeRejected means the server answered with a structured rejection.
	OutcomeRejected
	// OutcomeTransportFailed means the call could not be completed.
	OutcomeTransportFailed
)

func (o SubmitOutcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportFailed:
		return "transport_failed"
	default:
		return "unknown"
	}
}
