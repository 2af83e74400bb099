package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Notifier presents notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, channel string, c Content) error
}

// Foregrounder is implemented by notifiers that can keep the process
// visibly alive while the engine runs. The engine falls back to a plain
// placeholder notification when the notifier does not implement it.
type Foregrounder interface {
	Foreground(ctx context.Context, channel string, c Content) error
}

// LogNotifier writes notifications to the default slog logger.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, channel string, c Content) error {
	slog.Info("notification", "channel", channel, "text", c.Text())
	return nil
}

// Foreground implements Foregrounder.
func (LogNotifier) Foreground(_ context.Context, channel string, c Content) error {
	slog.Info("foreground", "channel", channel, "text", c.Text())
	return nil
}

// WriterNotifier writes one line per notification to w.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a WriterNotifier.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Notify implements Notifier.
func (n *WriterNotifier) Notify(_ context.Context, channel string, c Content) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.w, "[%s] %s\n", channel, c.Text()); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}
