package compiler

import (
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Tracker follows independent compile jobs until they complete.
// Jobs are not coordinated with one another; the tracker only observes them
// and collects the failures of those that did not succeed.
type Tracker struct {
	log *slog.Logger
	wg  sync.WaitGroup
	// Protects the fields below.
	mu        sync.Mutex
	running   map[string]*Job
	completed int
	errors    *multierror.Error
	callbacks []func(*Result)
}

// NewTracker returns a new tracker.
func NewTracker() *Tracker {
	return &Tracker{
		log:     slog.Default(),
		running: map[string]*Job{},
	}
}

// WithLogger sets this tracker's logger.
func (t *Tracker) WithLogger(logger *slog.Logger) *Tracker {
	t.log = logger
	return t
}

// OnComplete registers a callback invoked with the result of every tracked job.
// Callbacks must be registered before jobs are tracked.
func (t *Tracker) OnComplete(callback func(*Result)) *Tracker {
	t.callbacks = append(t.callbacks, callback)
	return t
}

// Track starts following job. Non-blocking call.
func (t *Tracker) Track(job *Job) {
	t.mu.Lock()
	t.running[job.ID] = job
	t.mu.Unlock()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		<-job.Done()
		result := job.Result()
		t.mu.Lock()
		delete(t.running, job.ID)
		t.completed++
		if !result.Success() {
			t.errors = multierror.Append(t.errors, result.Err)
		}
		t.mu.Unlock()
		t.log.Debug("tracked job completed", "job_id", job.ID, "exit_code", result.ExitCode)
		for _, callback := range t.callbacks {
			callback(result)
		}
	}()
}

// Running returns the number of tracked jobs that have not completed yet.
func (t *Tracker) Running() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.running)
}

// Completed returns the number of tracked jobs that have completed.
func (t *Tracker) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// GetError returns the failures collected so far as a single error.
func (t *Tracker) GetError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errors.ErrorOrNil()
}

// Wait blocks until every tracked job has completed and returns the collected failures.
func (t *Tracker) Wait() error {
	t.wg.Wait()
	return t.GetError()
}
