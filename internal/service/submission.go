package service

import (
	"context"

	"github.com/dtroode/dnavault-client/internal/events"
	"github.com/dtroode/dnavault-client/internal/logger"
	"github.com/dtroode/dnavault-client/internal/model"
	"github.com/dtroode/dnavault-client/internal/validation"
)

// Feedback shown by the submission flow.
const (
	MsgFixErrors          = "Please fix the errors and try again."
	MsgPasswordMismatch   = "Passwords do not match"
	MsgLoginFailed        = "Login failed. Please try again."
	MsgRegistrationFailed = "Registration failed. Please try again."
)

// Authenticator performs the remote half of a submission.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (model.SessionResult, error)
	Register(ctx context.Context, username, password string) (model.SessionResult, error)
}

// FormValidator checks form fields locally.
type FormValidator interface {
	ValidateUsername(value string) validation.Outcome
	ValidatePassword(value string) validation.Outcome
}

// Submission runs the login/registration form flow: local validation, the
// remote call and feedback routing. Each instance owns its success registry.
type Submission struct {
	session   Authenticator
	validator FormValidator
	notifier  model.Notifier
	events    *events.Registry[model.SessionResult]
	logger    *logger.Logger
}

func NewSubmission(
	session Authenticator,
	validator FormValidator,
	notifier model.Notifier,
	logger *logger.Logger,
) *Submission {
	return &Submission{
		session:   session,
		validator: validator,
		notifier:  notifier,
		events:    events.NewRegistry[model.SessionResult](),
		logger:    logger,
	}
}

// OnLoginSuccess subscribes handler to successful logins made through this instance.
func (s *Submission) OnLoginSuccess(handler events.Handler[model.SessionResult]) {
	s.events.Subscribe(events.LoginSuccess, handler)
}

// OnRegisterSuccess subscribes handler to successful registrations made through this instance.
func (s *Submission) OnRegisterSuccess(handler events.Handler[model.SessionResult]) {
	s.events.Subscribe(events.RegisterSuccess, handler)
}

// Submit validates form and, when it is valid, logs in or registers.
func (s *Submission) Submit(ctx context.Context, form model.LoginForm, isRegistering bool) model.SubmitOutcome {
	if !s.validate(form, isRegistering) {
		s.toast(ctx, MsgFixErrors)
		return model.OutcomeInvalid
	}

	call, event, failure := s.session.Authenticate, events.LoginSuccess, MsgLoginFailed
	if isRegistering {
		call, event, failure = s.session.Register, events.RegisterSuccess, MsgRegistrationFailed
	}

	result, err := call(ctx, form.Username, form.Password)
	if err != nil {
		s.logger.Warn("Submission service: request failed",
			"username", form.Username,
			"registering", isRegistering,
			"error", err.Error())
		s.toast(ctx, failure)
		return model.OutcomeTransportFailed
	}

	if result.Success {
		s.events.Fire(ctx, event, result)
		return model.OutcomeSucceeded
	}

	s.logger.Info("Submission service: rejected",
		"username", form.Username,
		"registering", isRegistering,
		"error_code", result.ErrorCode)

	s.toast(ctx, result.Message)
	for _, entry := range result.ValidationErrors {
		fe, ok := model.ParseValidationError(entry)
		if !ok {
			s.toast(ctx, entry)
			continue
		}
		s.notifier.SendError(fe.Field, fe.Message)
	}

	return model.OutcomeRejected
}

// validate reports every local failure and returns whether the form is valid.
func (s *Submission) validate(form model.LoginForm, isRegistering bool) bool {
	valid := true

	if outcome := s.validator.ValidateUsername(form.Username); !outcome.Valid {
		s.notifier.SendError(model.FieldUsername, outcome.Message)
		valid = false
	}

	outcome := s.validator.ValidatePassword(form.Password)
	switch {
	case !outcome.Valid:
		s.notifier.SendError(model.FieldPassword, outcome.Message)
		valid = false
	case isRegistering && form.Password != form.VerifyPassword:
		s.notifier.SendError(model.FieldPassword, MsgPasswordMismatch)
		valid = false
	}

	return valid
}

func (s *Submission) toast(ctx context.Context, message string) {
	if message == "" {
		return
	}
	if err := s.notifier.SendToast(ctx, message); err != nil {
		s.logger.Warn("Submission service: failed to present toast",
			"message", message,
			"error", err.Error())
	}
}
