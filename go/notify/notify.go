// Package notify delivers best-effort desktop notifications.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Notification is a transient desktop message.
type Notification struct {
	Summary string
	Body    string
	Icon    string
	Timeout time.Duration
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// NotificationError wraps a delivery failure. Callers log and drop it.
type NotificationError struct {
	Summary string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notifying %q: %v", e.Summary, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// Nop discards every notification.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notification) error { return nil }

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, notification Notification) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, notification Notification) error { return f(ctx, notification) }
