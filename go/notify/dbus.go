package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/godbus/dbus/v5"
)

const (
	notificationsDestination = "org.freedesktop.Notifications"
	notificationsPath        = "/org/freedesktop/Notifications"
	notifyMethod             = notificationsDestination + ".Notify"
)

// Opts configures the D-Bus notifier.
type Opts struct {
	Disable     bool          `long:"no-notify" env:"NO_NOTIFY" description:"Do not send desktop notifications"`
	AppName     string        `long:"notify-app-name" env:"NOTIFY_APP_NAME" description:"Application name shown by the notification daemon" default:"Grrr!"`
	MaxAttempts uint64        `long:"notify-attempts" env:"NOTIFY_ATTEMPTS" description:"Attempts at reaching the session bus" default:"3"`
	RetryDelay  time.Duration `long:"notify-retry-delay" env:"NOTIFY_RETRY_DELAY" description:"Initial delay between attempts" default:"100ms"`
}

// Conn is the subset of a D-Bus connection used to send notifications.
type Conn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// DBus sends notifications through org.freedesktop.Notifications on the session bus.
type DBus struct {
	opts    *Opts
	log     *slog.Logger
	connect func() (Conn, error)
}

// NewDBus returns a notifier connecting to the shared session bus on first use.
func NewDBus(opts *Opts) *DBus {
	return &DBus{
		opts: opts,
		log:  slog.Default(),
		connect: func() (Conn, error) {
			return dbus.SessionBus()
		},
	}
}

// WithLogger sets this notifier's logger.
func (d *DBus) WithLogger(logger *slog.Logger) *DBus {
	d.log = logger
	return d
}

// WithConnect overrides how the bus connection is obtained.
func (d *DBus) WithConnect(connect func() (Conn, error)) *DBus {
	d.connect = connect
	return d
}

// Notify implements Notifier. Connecting to the bus is retried a few times with exponential backoff;
// a failed method call is not retried.
func (d *DBus) Notify(ctx context.Context, notification Notification) error {
	var conn Conn
	connect := func() error {
		var err error
		conn, err = d.connect()
		if err != nil {
			d.log.DebugContext(ctx, "connecting to session bus", "error", err)
		}
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.opts.RetryDelay
	retries := uint64(0)
	if d.opts.MaxAttempts > 1 {
		retries = d.opts.MaxAttempts - 1
	}
	if err := backoff.Retry(connect, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx)); err != nil {
		return &NotificationError{Summary: notification.Summary, Err: fmt.Errorf("connecting to session bus: %w", err)}
	}

	object := conn.Object(notificationsDestination, dbus.ObjectPath(notificationsPath))
	call := object.CallWithContext(
		ctx, notifyMethod, 0,
		d.opts.AppName,
		uint32(0),
		notification.Icon,
		notification.Summary,
		notification.Body,
		[]string{},
		map[string]dbus.Variant{},
		int32(notification.Timeout/time.Millisecond),
	)
	if call.Err != nil {
		return &NotificationError{Summary: notification.Summary, Err: call.Err}
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return &NotificationError{Summary: notification.Summary, Err: err}
	}
	d.log.DebugContext(ctx, "sent notification", "id", id, "summary", notification.Summary)
	return nil
}

// New returns the notifier selected by opts.
func New(opts *Opts) Notifier {
	if opts == nil || opts.Disable {
		return Nop{}
	}
	return NewDBus(opts)
}
