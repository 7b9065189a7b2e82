package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dtroode/dnavault-client/internal/api/http/client"
	"github.com/dtroode/dnavault-client/internal/events"
	"github.com/dtroode/dnavault-client/internal/logger"
	"github.com/dtroode/dnavault-client/internal/model"
	"github.com/dtroode/dnavault-client/internal/token"
)

const (
	pathCurrentUser = "/user/me"
	pathLogin       = "/user/login"
	pathLogout      = "/user/logout"
	pathRegister    = "/user/register"
)

// APIClient is the subset of the REST client used by services.
type APIClient interface {
	Do(ctx context.Context, r client.Request) (*http.Response, error)
	DoJSON(ctx context.Context, r client.Request, in, out any) (int, error)
	URL(ref string) string
}

// CredentialInspector decodes a stored credential.
type CredentialInspector interface {
	Status(credential string) (model.CredentialStatus, error)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionAnswer is the wire shape of a session result. Success is a pointer
// so a 2xx answer without the field still counts as success.
type sessionAnswer struct {
	Success          *bool    `json:"success"`
	Token            string   `json:"token"`
	ErrorCode        string   `json:"errorCode"`
	Message          string   `json:"message"`
	ValidationErrors []string `json:"validationErrors"`
}

// SessionCookies is the persisted cookie session of the API host.
type SessionCookies interface {
	Clear(ctx context.Context) error
}

type Session struct {
	api       APIClient
	store     model.CredentialStore
	cookies   SessionCookies
	inspector CredentialInspector
	events    *events.Registry[model.SessionResult]
	logger    *logger.Logger
}

// SessionOption configures Session.
type SessionOption func(*Session)

// WithSessionCookies makes Deauthenticate forget the host's session cookies as well.
func WithSessionCookies(cookies SessionCookies) SessionOption {
	return func(s *Session) {
		s.cookies = cookies
	}
}

// NewSession creates the user session. registry is shared by everything
// interested in userLogin and lives as long as the process.
func NewSession(
	api APIClient,
	store model.CredentialStore,
	inspector CredentialInspector,
	registry *events.Registry[model.SessionResult],
	logger *logger.Logger,
	opts ...SessionOption,
) *Session {
	s := &Session{
		api:       api,
		store:     store,
		inspector: inspector,
		events:    registry,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentUser returns the signed-in user. ok is false when the server answers
// 401, cannot be reached, or does not answer with a JSON object.
func (s *Session) CurrentUser(ctx context.Context) (model.User, bool) {
	var raw json.RawMessage
	status, err := s.api.DoJSON(ctx, client.Request{
		Operation: "session.me",
		Method:    http.MethodGet,
		Path:      pathCurrentUser,
	}, nil, &raw)

	if status == http.StatusUnauthorized {
		s.logger.Debug("Session service: not authenticated")
		return model.User{}, false
	}
	if err != nil {
		s.logger.Warn("Session service: failed to get current user",
			"error", err.Error())
		return model.User{}, false
	}
	if !client.IsSuccess(status) {
		s.logger.Warn("Session service: unexpected current user status",
			"status", status)
		return model.User{}, false
	}

	if !isObject(raw) {
		s.logger.Warn("Session service: current user is not an object",
			"status", status)
		return model.User{}, false
	}

	// A field of an unexpected type is skipped; the rest still decode and Raw keeps it.
	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		s.logger.Debug("Session service: current user partially decoded",
			"error", err.Error())
	}
	user.Raw = raw

	return user, true
}

// Authenticate logs in. A returned token is persisted before userLogin
// subscribers run; a decoded answer without a token clears the stored one.
func (s *Session) Authenticate(ctx context.Context, username, password string) (model.SessionResult, error) {
	s.logger.Debug("Session service: authenticating",
		"username", username)

	result, err := s.post(ctx, "session.login", pathLogin, credentials{Username: username, Password: password})
	if err != nil {
		s.logger.Warn("Session service: login request failed",
			"username", username,
			"error", err.Error())
		return model.SessionResult{}, err
	}

	if result.HasToken() {
		if err := s.store.Save(ctx, result.Token); err != nil {
			s.logger.Error("Session service: failed to save credential",
				"username", username,
				"error", err.Error())
			return model.SessionResult{}, fmt.Errorf("failed to save credential: %w", err)
		}
	} else if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("Session service: failed to clear credential",
			"error", err.Error())
	}

	s.events.Fire(ctx, events.UserLogin, result)

	s.logger.Info("Session service: login answered",
		"username", username,
		"success", result.Success)

	return result, nil
}

// Deauthenticate logs out and always clears the stored credential and session cookies.
func (s *Session) Deauthenticate(ctx context.Context) (model.SessionResult, error) {
	result, err := s.post(ctx, "session.logout", pathLogout, nil)
	if err != nil {
		s.logger.Warn("Session service: logout request failed",
			"error", err.Error())
	}

	if clearErr := s.store.Clear(ctx); clearErr != nil {
		s.logger.Error("Session service: failed to clear credential",
			"error", clearErr.Error())
		if err == nil {
			err = fmt.Errorf("failed to clear credential: %w", clearErr)
		}
	}

	if s.cookies != nil {
		if clearErr := s.cookies.Clear(ctx); clearErr != nil {
			s.logger.Error("Session service: failed to clear session cookies",
				"error", clearErr.Error())
			if err == nil {
				err = fmt.Errorf("failed to clear session cookies: %w", clearErr)
			}
		}
	}

	return result, err
}

// Register creates an account. Nothing is persisted and no event fires.
func (s *Session) Register(ctx context.Context, username, password string) (model.SessionResult, error) {
	s.logger.Debug("Session service: registering",
		"username", username)

	result, err := s.post(ctx, "session.register", pathRegister, credentials{Username: username, Password: password})
	if err != nil {
		s.logger.Warn("Session service: register request failed",
			"username", username,
			"error", err.Error())
		return model.SessionResult{}, err
	}

	return result, nil
}

// OnUserLogin subscribes handler to every answered login.
func (s *Session) OnUserLogin(handler events.Handler[model.SessionResult]) {
	s.events.Subscribe(events.UserLogin, handler)
}

// Status describes the stored credential without contacting the server.
func (s *Session) Status(ctx context.Context) model.CredentialStatus {
	credential, err := s.store.Load(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return model.CredentialStatus{}
	}
	if err != nil {
		s.logger.Warn("Session service: failed to load credential",
			"error", err.Error())
		return model.CredentialStatus{}
	}

	status, err := s.inspector.Status(credential)
	if err != nil && !errors.Is(err, token.ErrOpaque) {
		s.logger.Debug("Session service: failed to inspect credential",
			"error", err.Error())
	}

	return status
}

func (s *Session) post(ctx context.Context, operation, path string, body any) (model.SessionResult, error) {
	var answer sessionAnswer
	status, err := s.api.DoJSON(ctx, client.Request{
		Operation: operation,
		Method:    http.MethodPost,
		Path:      path,
	}, body, &answer)
	if err != nil {
		return model.SessionResult{}, err
	}

	success := client.IsSuccess(status)
	if answer.Success != nil {
		success = *answer.Success
	}

	result := model.SessionResult{
		Success:          success,
		Token:            answer.Token,
		ErrorCode:        answer.ErrorCode,
		Message:          answer.Message,
		ValidationErrors: answer.ValidationErrors,
	}
	if !result.Success && result.Message == "" {
		result.Message = http.StatusText(status)
	}

	return result, nil
}

func isObject(raw json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{"))
}
