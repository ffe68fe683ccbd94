// Package compiler runs glib-compile-resources on a manifest without blocking the caller.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ozonos/grrr/go/gresource"
	"github.com/ozonos/grrr/go/logging"
	"github.com/ozonos/grrr/go/notify"
)

const (
	// DefaultExecutable is the compiler looked up in PATH.
	DefaultExecutable = "glib-compile-resources"

	notifySummary  = "Gresource file generated!"
	notifyIcon     = "dialog-information"
	notifyDeadline = 5 * time.Second
)

// Opts configures the invoker.
type Opts struct {
	Executable    string        `long:"compiler" env:"COMPILER" description:"Resource compiler executable, looked up in PATH" default:"glib-compile-resources"`
	NotifyTimeout time.Duration `long:"notify-timeout" env:"NOTIFY_TIMEOUT" description:"How long the success notification stays on screen" default:"1s"`
}

// Invoker launches compile jobs.
type Invoker struct {
	opts     *Opts
	log      *slog.Logger
	notifier notify.Notifier
}

// NewInvoker returns a new invoker that does not notify.
func NewInvoker(opts *Opts) *Invoker {
	var o Opts
	if opts != nil {
		o = *opts
	}
	if o.Executable == "" {
		o.Executable = DefaultExecutable
	}
	return &Invoker{
		opts:     &o,
		log:      slog.Default(),
		notifier: notify.Nop{},
	}
}

// WithLogger sets this invoker's logger.
func (i *Invoker) WithLogger(logger *slog.Logger) *Invoker {
	i.log = logger
	return i
}

// WithNotifier sets the notifier used when a job succeeds.
func (i *Invoker) WithNotifier(notifier notify.Notifier) *Invoker {
	i.notifier = notifier
	return i
}

// Compile starts the compiler in base with manifestFile's base name as its only argument and the
// current environment. It returns as soon as the process is started.
// If the process cannot be started a *LaunchError is returned and onComplete is never called.
// Otherwise onComplete is called exactly once, from another goroutine, after the process exited,
// whatever its exit code.
func (i *Invoker) Compile(ctx context.Context, base, manifestFile string, onComplete func(*Result)) (*Job, error) {
	job := newJob(newJobID(), base, filepath.Base(manifestFile), onComplete)
	ctx = logging.WithJobID(ctx, job.ID)
	if err := i.launch(ctx, job); err != nil {
		return nil, err
	}
	// The watcher outlives the caller's context: a running job is never cancelled.
	go i.watch(context.WithoutCancel(ctx), job)
	return job, nil
}

func (i *Invoker) launch(ctx context.Context, job *Job) error {
	job.transition(StateIdle, StateLaunching)
	cmd := exec.Command(i.opts.Executable, job.ManifestFile)
	cmd.Dir = job.Base
	// Inherited environment, with PWD matching Dir.
	cmd.Env = cmd.Environ()
	job.cmd = cmd

	job.startedAt = time.Now()
	if err := cmd.Start(); err != nil {
		job.transition(StateLaunching, StateLaunchFailed)
		getMetrics().jobsTotal.WithLabelValues(outcomeLaunchFailed).Inc()
		launchErr := &LaunchError{Executable: i.opts.Executable, Dir: job.Base, Err: err}
		i.log.ErrorContext(ctx, "launching compiler", "error", launchErr)
		return launchErr
	}
	job.transition(StateLaunching, StateRunning)
	getMetrics().running.Inc()
	i.log.InfoContext(ctx, "started compiler", "executable", i.opts.Executable, "manifest", job.ManifestFile, "dir", job.Base, "pid", cmd.Process.Pid)
	return nil
}

// watch waits for the process to exit, releasing its resources, then notifies and completes the job.
func (i *Invoker) watch(ctx context.Context, job *Job) {
	waitErr := job.cmd.Wait()
	duration := time.Since(job.startedAt)
	getMetrics().running.Dec()
	getMetrics().durationSeconds.Observe(duration.Seconds())

	result := &Result{
		JobID:        job.ID,
		Base:         job.Base,
		ManifestFile: job.ManifestFile,
		Bundle:       filepath.Join(job.Base, gresource.BundleFileName(job.ManifestFile)),
		ExitCode:     job.cmd.ProcessState.ExitCode(),
		Duration:     duration,
	}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		result.Err = &ExitError{JobID: job.ID, ExitCode: result.ExitCode}
	default:
		result.Err = fmt.Errorf("waiting for compiler: %w", waitErr)
	}

	if result.Success() {
		getMetrics().jobsTotal.WithLabelValues(outcomeSuccess).Inc()
		i.log.InfoContext(ctx, "compiled bundle", "bundle", result.Bundle, "duration", duration)
		i.notify(ctx, result)
	} else {
		getMetrics().jobsTotal.WithLabelValues(outcomeFailure).Inc()
		i.log.WarnContext(ctx, "compiler failed", "exit_code", result.ExitCode, "error", result.Err)
	}
	job.complete(result)
}

// notify never fails the job: delivery errors are logged and dropped.
func (i *Invoker) notify(ctx context.Context, result *Result) {
	ctx, cancel := context.WithTimeout(ctx, notifyDeadline)
	defer cancel()
	notification := notify.Notification{
		Summary: notifySummary,
		Body:    fmt.Sprintf("%s generated at %s", filepath.Base(result.Bundle), result.Base),
		Icon:    notifyIcon,
		Timeout: i.opts.NotifyTimeout,
	}
	if err := i.notifier.Notify(ctx, notification); err != nil {
		i.log.WarnContext(ctx, "sending notification", "error", err)
	}
}

func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
