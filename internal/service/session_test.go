package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/dnavault-client/internal/api/http/client"
	"github.com/dtroode/dnavault-client/internal/events"
	"github.com/dtroode/dnavault-client/internal/mocks"
	"github.com/dtroode/dnavault-client/internal/model"
	"github.com/dtroode/dnavault-client/internal/repository/memory"
	"github.com/dtroode/dnavault-client/internal/testutil"
	"github.com/dtroode/dnavault-client/internal/token"
)

func newTestSession(t *testing.T, handler http.HandlerFunc, store model.CredentialStore) *Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newSessionFor(t, srv.URL, store)
}

func newSessionFor(t *testing.T, baseURL string, store model.CredentialStore) *Session {
	t.Helper()
	api, err := client.New(baseURL, 5*time.Second, nil)
	require.NoError(t, err)
	return NewSession(api, store, token.NewInspector(), events.NewRegistry[model.SessionResult](), testutil.MakeNoopLogger())
}

// closedURL returns the address of a server that is no longer listening.
func closedURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestSession_Authenticate_PersistsTokenBeforeFiring(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCredentialRepository()

	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathLogin, r.URL.Path)

		var body credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body.Username)
		assert.Equal(t, "secret1", body.Password)

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": "T", "message": "ok"})
	}, store)

	var seen []string
	s.OnUserLogin(func(ctx context.Context, result model.SessionResult) {
		stored, err := store.Load(ctx)
		require.NoError(t, err)
		seen = append(seen, "first:"+stored)
	})
	s.OnUserLogin(func(ctx context.Context, result model.SessionResult) {
		seen = append(seen, "second:"+result.Token)
	})

	result, err := s.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "T", result.Token)
	assert.Equal(t, []string{"first:T", "second:T"}, seen)
}

func TestSession_Authenticate_SuccessWithoutTokenClearsStale(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCredentialRepository()
	require.NoError(t, store.Save(ctx, "stale"))

	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "cookie session"})
	}, store)

	fired := 0
	s.OnUserLogin(func(context.Context, model.SessionResult) { fired++ })

	result, err := s.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, fired)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSession_Authenticate_StructuredRejection(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCredentialRepository()

	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success":          false,
			"errorCode":        "INVALID_CREDENTIALS",
			"message":          "Invalid credentials",
			"validationErrors": []string{"password: too weak"},
		})
	}, store)

	result, err := s.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "INVALID_CREDENTIALS", result.ErrorCode)
	assert.Equal(t, "Invalid credentials", result.Message)
	assert.Equal(t, []string{"password: too weak"}, result.ValidationErrors)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSession_Authenticate_TransportFailureNeverPersists(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCredentialRepository()
	require.NoError(t, store.Save(ctx, "previous"))

	s := newSessionFor(t, closedURL(), store)
	fired := false
	s.OnUserLogin(func(context.Context, model.SessionResult) { fired = true })

	result, err := s.Authenticate(ctx, "alice", "secret1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrTransport)
	assert.Equal(t, model.SessionResult{}, result)
	assert.False(t, fired)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "previous", stored)
}

func TestSession_Authenticate_UnstructuredErrorIsTransport(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}, memory.NewCredentialRepository())

	_, err := s.Authenticate(context.Background(), "alice", "secret1")
	assert.ErrorIs(t, err, model.ErrTransport)
}

func TestSession_Authenticate_MissingSuccessFollowsStatus(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{})
	}, memory.NewCredentialRepository())

	result, err := s.Authenticate(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusText(http.StatusForbidden), result.Message)
}

func TestSession_Authenticate_SaveFailure(t *testing.T) {
	store := mocks.NewCredentialStore(t)
	store.On("Save", mock.Anything, "T").Return(errors.New("disk full"))

	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": "T"})
	}, store)
	fired := false
	s.OnUserLogin(func(context.Context, model.SessionResult) { fired = true })

	_, err := s.Authenticate(context.Background(), "alice", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrTransport)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, fired)
}

func TestSession_Deauthenticate(t *testing.T) {
	t.Run("clears on success", func(t *testing.T) {
		ctx := context.Background()
		store := memory.NewCredentialRepository()
		require.NoError(t, store.Save(ctx, "T"))

		s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, pathLogout, r.URL.Path)
			assert.Equal(t, "", r.Header.Get("Content-Type"))
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "bye"})
		}, store)

		result, err := s.Deauthenticate(ctx)
		require.NoError(t, err)
		assert.True(t, result.Success)

		_, err = store.Load(ctx)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("clears when unreachable", func(t *testing.T) {
		ctx := context.Background()
		store := memory.NewCredentialRepository()
		require.NoError(t, store.Save(ctx, "T"))

		s := newSessionFor(t, closedURL(), store)

		_, err := s.Deauthenticate(ctx)
		assert.ErrorIs(t, err, model.ErrTransport)

		_, err = store.Load(ctx)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestSession_CookieSession(t *testing.T) {
	ctx := context.Background()
	tokens := memory.NewCredentialRepository()
	cookieSlot := memory.NewCredentialRepository()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathLogin:
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "S1", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		case pathLogout:
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		case pathCurrentUser:
			if c, err := r.Cookie("sid"); err != nil || c.Value != "S1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "username": "alice"})
		}
	}))
	t.Cleanup(srv.Close)

	newSession := func() *Session {
		jar, err := client.NewJar(ctx, srv.URL, cookieSlot, testutil.MakeNoopLogger())
		require.NoError(t, err)
		api, err := client.New(srv.URL, 5*time.Second, nil, client.WithJar(jar))
		require.NoError(t, err)
		return NewSession(api, tokens, token.NewInspector(), events.NewRegistry[model.SessionResult](),
			testutil.MakeNoopLogger(), WithSessionCookies(jar))
	}

	result, err := newSession().Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.HasToken())

	user, ok := newSession().CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", user.Username)

	_, err = newSession().Deauthenticate(ctx)
	require.NoError(t, err)
	_, err = cookieSlot.Load(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, ok = newSession().CurrentUser(ctx)
	assert.False(t, ok)
}

func TestSession_Register_NoPersistenceNoEvent(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewCredentialStore(t)

	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathRegister, r.URL.Path)
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "token": "T", "message": "created"})
	}, store)
	fired := false
	s.OnUserLogin(func(context.Context, model.SessionResult) { fired = true })

	result, err := s.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "created", result.Message)
	assert.False(t, fired)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSession_CurrentUser(t *testing.T) {
	t.Run("signed in", func(t *testing.T) {
		s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, pathCurrentUser, r.URL.Path)
			writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "username": "alice", "plan": "free"})
		}, memory.NewCredentialRepository())

		user, ok := s.CurrentUser(context.Background())
		require.True(t, ok)
		assert.Equal(t, model.Scalar("u1"), user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.Contains(t, string(user.Raw), `"plan":"free"`)
	})

	t.Run("numeric id and plain timestamp", func(t *testing.T) {
		s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": 42, "username": "alice", "createdAt": "2024-05-01 10:00:00"})
		}, memory.NewCredentialRepository())

		user, ok := s.CurrentUser(context.Background())
		require.True(t, ok)
		assert.Equal(t, model.Scalar("42"), user.ID)
		assert.Equal(t, "alice", user.Username)
		created, parsed := user.CreatedAt.Time()
		require.True(t, parsed)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), created)
		assert.JSONEq(t, `{"id":42,"username":"alice","createdAt":"2024-05-01 10:00:00"}`, string(user.Raw))
	})

	t.Run("unexpected field type keeps the user", func(t *testing.T) {
		s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "username": map[string]any{"first": "Al"}})
		}, memory.NewCredentialRepository())

		user, ok := s.CurrentUser(context.Background())
		require.True(t, ok)
		assert.Equal(t, model.Scalar("u1"), user.ID)
		assert.Empty(t, user.Username)
		assert.Contains(t, string(user.Raw), `"first":"Al"`)
	})

	t.Run("not an object", func(t *testing.T) {
		s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, nil)
		}, memory.NewCredentialRepository())

		_, ok := s.CurrentUser(context.Background())
		assert.False(t, ok)
	})

	t.Run("unauthorized", func(t *testing.T) {
		s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}, memory.NewCredentialRepository())

		_, ok := s.CurrentUser(context.Background())
		assert.False(t, ok)
	})

	t.Run("unreachable", func(t *testing.T) {
		s := newSessionFor(t, closedURL(), memory.NewCredentialRepository())

		_, ok := s.CurrentUser(context.Background())
		assert.False(t, ok)
	})
}

func TestSession_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		s := newSessionFor(t, closedURL(), memory.NewCredentialRepository())
		assert.Equal(t, model.CredentialStatus{}, s.Status(ctx))
	})

	t.Run("jwt", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, token.Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
			Username:         "alice",
		}).SignedString([]byte("server-secret"))
		require.NoError(t, err)

		store := memory.NewCredentialRepository()
		require.NoError(t, store.Save(ctx, signed))
		s := newSessionFor(t, closedURL(), store)

		status := s.Status(ctx)
		assert.True(t, status.Stored)
		assert.False(t, status.Opaque)
		assert.Equal(t, "alice", status.Subject)
		require.NotNil(t, status.ExpiresAt)
		assert.True(t, exp.Equal(*status.ExpiresAt))
	})

	t.Run("opaque", func(t *testing.T) {
		store := memory.NewCredentialRepository()
		require.NoError(t, store.Save(ctx, "session-cookie-value"))
		s := newSessionFor(t, closedURL(), store)

		status := s.Status(ctx)
		assert.True(t, status.Stored)
		assert.True(t, status.Opaque)
	})
}
