// Package watch rebuilds bundles when the files they are made of change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// PermanentError stops a loop for good.
type PermanentError struct{ Err error }

// Error implements the error interface.
func (e *PermanentError) Error() string { return fmt.Sprintf("permanent error: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *PermanentError) Unwrap() error { return e.Err }

// Is lets errors.Is match any *PermanentError.
func (e *PermanentError) Is(err error) bool {
	_, ok := err.(*PermanentError)
	return ok
}

// NewPermanentError instantiates and returns a new permanent error.
func NewPermanentError(message string, args ...any) *PermanentError {
	return &PermanentError{Err: fmt.Errorf(message, args...)}
}

// FN is an iteration of a loop.
type FN func(context.Context) error

// Loop runs a function once when started, then again every time one of its signals fires.
type Loop struct {
	log *slog.Logger

	// Required fields.
	name             string
	fn               FN
	onPermanentError func(error)
	exited           chan struct{}
	started          chan struct{}
	closeOnce        sync.Once
	cancel           context.CancelFunc
	retryChannel     chan struct{}

	// Additional fields.
	timeout              time.Duration
	constantBackOff      *backoff.ConstantBackOff
	signals              []<-chan struct{}
	maxConsecutiveErrors int
}

// NewLoop instantiates and returns a new loop.
func NewLoop(name string, fn FN, onPermanentError func(error)) *Loop {
	return &Loop{
		log:              slog.Default(),
		name:             name,
		fn:               fn,
		onPermanentError: onPermanentError,
		exited:           make(chan struct{}),
		started:          make(chan struct{}),
		retryChannel:     make(chan struct{}, 1), // non-blocking writes.
	}
}

func (l *Loop) WithLogger(logger *slog.Logger) *Loop {
	l.log = logger
	return l
}

// WithMaxConsecutiveErrors sets a threshold of consecutive failed iterations which, once reached, stops the loop.
func (l *Loop) WithMaxConsecutiveErrors(maxConsecutiveErrors int) *Loop {
	l.maxConsecutiveErrors = maxConsecutiveErrors
	return l
}

// WithTimeout bounds the context of each iteration.
func (l *Loop) WithTimeout(timeout time.Duration) *Loop { l.timeout = timeout; return l }

// WithSignal allows a signal to trigger an iteration.
func (l *Loop) WithSignal(channels ...<-chan struct{}) *Loop {
	l.signals = append(l.signals, channels...)
	return l
}

// WithConstantBackOff waits for the given duration after every failed iteration.
func (l *Loop) WithConstantBackOff(duration time.Duration) *Loop {
	l.constantBackOff = backoff.NewConstantBackOff(duration)
	return l
}

// Start the loop. Non-blocking call.
func (l *Loop) Start(ctx context.Context) *Loop {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	close(l.started)
	l.log = l.log.With("loop", l.name)
	l.log.InfoContext(ctx, "started loop")
	getMetrics().running.WithLabelValues(l.name).Set(1)

	consecutiveErrors := 0
	fn := func(ctx context.Context) error {
		if err := l.execute(ctx); err != nil {
			consecutiveErrors++
			if l.maxConsecutiveErrors != 0 && consecutiveErrors >= l.maxConsecutiveErrors {
				return NewPermanentError("exceeded max consecutive errors (%d): %w", l.maxConsecutiveErrors, err)
			}
			return err
		}
		consecutiveErrors = 0
		return nil
	}

	// Fan the signals into a single one.
	signal := make(chan struct{}, 1)
	if len(l.signals) == 0 {
		// Without signals every iteration immediately follows the previous one.
		close(signal)
	}
	for _, channel := range l.signals {
		channel := channel
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-channel:
					if !ok {
						return
					}
				}
				select {
				case signal <- struct{}{}:
				default: // There is already an unconsumed signal in here.
				}
			}
		}()
	}

	go func() {
		defer func() {
			getMetrics().running.WithLabelValues(l.name).Set(0)
			close(l.exited)
			l.Close()
		}()

		for {
			if err := fn(ctx); err != nil {
				if ctx.Err() != nil {
					l.log.InfoContext(ctx, "context done", "error", ctx.Err())
					return
				}
				if errors.Is(err, &PermanentError{}) {
					l.log.ErrorContext(ctx, "exiting due to permanent error", "error", err)
					if l.onPermanentError != nil {
						l.onPermanentError(err)
					}
					return
				}
				l.log.ErrorContext(ctx, "executing iteration", "error", err)
				if l.constantBackOff != nil {
					select {
					case <-ctx.Done():
					case <-time.After(l.constantBackOff.NextBackOff()):
					}
				}
				select {
				case l.retryChannel <- struct{}{}:
				default:
				}
			}

			select {
			case <-ctx.Done():
				l.log.InfoContext(ctx, "context done", "error", ctx.Err())
				return
			case <-signal:
				l.log.DebugContext(ctx, "received signal")
			case <-l.retryChannel:
				l.log.DebugContext(ctx, "retrying")
			}
		}
	}()
	return l
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} { return l.exited }

// Close stops the loop. It blocks until the loop has exited, including its current iteration.
// Closing a loop that was never started is a no-op.
func (l *Loop) Close() {
	select {
	case <-l.started:
	default:
		return
	}
	l.closeOnce.Do(func() {
		l.log.Info("closing")
		l.cancel()
		<-l.exited
		l.log.Info("closed")
	})
}

func (l *Loop) execute(ctx context.Context) (err error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		success := strconv.FormatBool(err == nil)
		getMetrics().iterationsTotal.WithLabelValues(l.name, success).Inc()
		getMetrics().durationSeconds.WithLabelValues(l.name, success).Observe(time.Since(start).Seconds())
	}()
	return l.fn(ctx)
}
