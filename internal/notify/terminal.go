package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dtroode/dnavault-client/internal/model"
)

var _ model.Presenter = (*TerminalPresenter)(nil)

// TerminalPresenter prints toasts as lines on a writer.
type TerminalPresenter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalPresenter creates a presenter writing to w.
func NewTerminalPresenter(w io.Writer) *TerminalPresenter {
	return &TerminalPresenter{w: w}
}

// Present writes the toast message. Duration and position have no terminal equivalent.
func (p *TerminalPresenter) Present(ctx context.Context, toast model.Toast) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintln(p.w, toast.Message); err != nil {
		return fmt.Errorf("failed to write toast: %w", err)
	}
	return nil
}
