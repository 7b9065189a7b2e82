// Package notify presents user feedback: transient toasts and per-field
// error messages that clear themselves after a fixed delay.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dtroode/dnavault-client/internal/logger"
	"github.com/dtroode/dnavault-client/internal/model"
)

var _ model.Notifier = (*Sink)(nil)

// Sink holds one error slot per form field and forwards toasts to a Presenter.
type Sink struct {
	mu        sync.Mutex
	errors    map[model.Field]string
	timers    map[model.Field]*time.Timer
	gens      map[model.Field]uint64
	ttl       time.Duration
	presenter model.Presenter
	logger    *logger.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithTTL overrides how long a field error stays set.
func WithTTL(ttl time.Duration) Option {
	return func(s *Sink) {
		s.ttl = ttl
	}
}

// NewSink creates a Sink presenting toasts through presenter.
func NewSink(presenter model.Presenter, logger *logger.Logger, opts ...Option) *Sink {
	s := &Sink{
		errors:    make(map[model.Field]string),
		timers:    make(map[model.Field]*time.Timer),
		gens:      make(map[model.Field]uint64),
		ttl:       model.FieldErrorTTL,
		presenter: presenter,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendError sets the field's error and schedules it to clear after the TTL.
// A pending clear for the same field is canceled and rescheduled.
func (s *Sink) SendError(field model.Field, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gens[field]++
	gen := s.gens[field]

	s.errors[field] = message
	if t, ok := s.timers[field]; ok {
		t.Stop()
	}
	s.timers[field] = time.AfterFunc(s.ttl, func() {
		s.expire(field, gen)
	})

	s.logger.Debug("Notify sink: field error set",
		"field", field,
		"message", message)
}

// expire clears the field unless a newer error replaced the one that scheduled it.
// The generation check covers a timer that fired while SendError was stopping it.
func (s *Sink) expire(field model.Field, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gens[field] != gen {
		return
	}
	s.errors[field] = ""
	delete(s.timers, field)
}

// Error returns the current error of the field, or "" when none is set.
func (s *Sink) Error(field model.Field) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors[field]
}

// Errors returns a snapshot of every field that currently has an error.
func (s *Sink) Errors() map[model.Field]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[model.Field]string, len(s.errors))
	for f, msg := range s.errors {
		if msg != "" {
			out[f] = msg
		}
	}
	return out
}

// SendToast presents message as a toast and returns once it has been shown.
func (s *Sink) SendToast(ctx context.Context, message string) error {
	if s.presenter == nil {
		return errors.New("no toast presenter configured")
	}

	toast := model.Toast{
		Message:  message,
		Duration: model.ToastDuration,
		Position: model.ToastTop,
	}
	if err := s.presenter.Present(ctx, toast); err != nil {
		s.logger.Warn("Notify sink: failed to present toast",
			"message", message,
			"error", err.Error())
		return fmt.Errorf("failed to present toast: %w", err)
	}
	return nil
}

// Close stops every pending clear. Current errors stay as they are.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for f, t := range s.timers {
		t.Stop()
		delete(s.timers, f)
	}
}
