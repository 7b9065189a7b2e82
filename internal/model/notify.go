package model

import (
	"context"
	"time"
)

// ToastDuration is how long a toast stays on screen.
const ToastDuration = 1500 * time.Millisecond

// FieldErrorTTL is how long a field error is displayed before it clears itself.
const FieldErrorTTL = 5 * time.Second

// ToastPosition is the screen position of a toast.
type ToastPosition string

// ToastTop places toasts at the top of the screen.
const ToastTop ToastPosition = "top"

// Toast is a transient user-facing message.
type Toast struct {
	Message  string
	Duration time.Duration
	Position ToastPosition
}

// Presenter shows toasts. Present returns once the toast has been shown.
type Presenter interface {
	Present(ctx context.Context, toast Toast) error
}

// Notifier routes user feedback to toasts and field error slots.
type Notifier interface {
	SendError(field Field, message string)
	SendToast(ctx context.Context, message string) error
}
