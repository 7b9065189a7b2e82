package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dtroode/dnavault-client/internal/logger"
	"github.com/dtroode/dnavault-client/internal/model"
)

var _ http.CookieJar = (*Jar)(nil)

// storedCookie is the persisted form of a cookie set by the API host.
type storedCookie struct {
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Path     string     `json:"path,omitempty"`
	Domain   string     `json:"domain,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
	Secure   bool       `json:"secure,omitempty"`
	HttpOnly bool       `json:"httpOnly,omitempty"`
}

// Jar is a cookie jar whose cookies for the API host outlive the process.
// Every change the host makes is written to store; NewJar reads them back.
// Cookies of other hosts live in memory only.
type Jar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	base    *url.URL
	cookies map[string]storedCookie
	store   model.CredentialStore
	logger  *logger.Logger
}

// NewJar creates a jar for the API at baseURL and restores the cookies saved in store.
func NewJar(ctx context.Context, baseURL string, store model.CredentialStore, logger *logger.Logger) (*Jar, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse api url: %w", err)
	}

	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	j := &Jar{
		inner:   inner,
		base:    base,
		cookies: make(map[string]storedCookie),
		store:   store,
		logger:  logger,
	}

	if err := j.restore(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Jar) restore(ctx context.Context) error {
	payload, err := j.store.Load(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session cookies: %w", err)
	}
	if payload == "" {
		return nil
	}

	var saved []storedCookie
	if err := json.Unmarshal([]byte(payload), &saved); err != nil {
		// unreadable cookies only cost a new login
		j.logger.Warn("Cookie jar: discarding unreadable session cookies",
			"error", err.Error())
		return nil
	}

	now := time.Now()
	restored := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		if c.Expires != nil && !c.Expires.After(now) {
			continue
		}
		j.cookies[c.Name] = c
		restored = append(restored, c.cookie())
	}
	j.inner.SetCookies(j.base, restored)

	j.logger.Debug("Cookie jar: session cookies restored",
		"count", len(restored))
	return nil
}

// Cookies returns the cookies to send to u.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	inner := j.inner
	j.mu.Unlock()

	return inner.Cookies(u)
}

// SetCookies records the cookies set by u and persists them when u is the API host.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)
	if !strings.EqualFold(u.Hostname(), j.base.Hostname()) || len(cookies) == 0 {
		return
	}

	now := time.Now()
	for _, c := range cookies {
		switch {
		case c.MaxAge < 0, !c.Expires.IsZero() && !c.Expires.After(now):
			delete(j.cookies, c.Name)
		default:
			j.cookies[c.Name] = newStoredCookie(c, now)
		}
	}

	if err := j.persist(context.Background()); err != nil {
		j.logger.Warn("Cookie jar: failed to persist session cookies",
			"error", err.Error())
	}
}

// Clear forgets every cookie and removes the persisted ones.
func (j *Jar) Clear(ctx context.Context) error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to reset cookie jar: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner = inner
	j.cookies = make(map[string]storedCookie)
	if err := j.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session cookies: %w", err)
	}
	return nil
}

// persist writes the API host's cookies. The caller holds j.mu.
func (j *Jar) persist(ctx context.Context) error {
	if len(j.cookies) == 0 {
		return j.store.Clear(ctx)
	}

	saved := make([]storedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		saved = append(saved, c)
	}
	payload, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("failed to encode session cookies: %w", err)
	}
	return j.store.Save(ctx, string(payload))
}

func newStoredCookie(c *http.Cookie, now time.Time) storedCookie {
	s := storedCookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
	switch {
	case c.MaxAge > 0:
		exp := now.Add(time.Duration(c.MaxAge) * time.Second)
		s.Expires = &exp
	case !c.Expires.IsZero():
		exp := c.Expires
		s.Expires = &exp
	}
	return s
}

func (s storedCookie) cookie() *http.Cookie {
	c := &http.Cookie{
		Name:     s.Name,
		Value:    s.Value,
		Path:     s.Path,
		Domain:   s.Domain,
		Secure:   s.Secure,
		HttpOnly: s.HttpOnly,
	}
	if s.Expires != nil {
		c.Expires = *s.Expires
	}
	return c
}
