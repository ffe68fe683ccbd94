package compiler

import (
	"context"
	"os/exec"
	"sync/atomic"
	"time"
)

// State is a step of the compile job lifecycle:
// Idle -> Launching -> (LaunchFailed | Running -> Completed).
type State int32

const (
	StateIdle State = iota
	StateLaunching
	StateLaunchFailed
	StateRunning
	StateCompleted
)

var stateToString = map[State]string{
	StateIdle:         "idle",
	StateLaunching:    "launching",
	StateLaunchFailed: "launch_failed",
	StateRunning:      "running",
	StateCompleted:    "completed",
}

func (s State) String() string {
	if str, ok := stateToString[s]; ok {
		return str
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateLaunchFailed || s == StateCompleted
}

// Result is the outcome of a compile job whose process was started.
type Result struct {
	JobID        string
	Base         string
	ManifestFile string
	// Bundle is the path the compiler writes to by default.
	Bundle   string
	ExitCode int
	Duration time.Duration
	// Err is nil for a zero exit code.
	Err error
}

// Success reports whether the compiler exited cleanly.
func (r *Result) Success() bool { return r.Err == nil }

// Job is one run of the compiler. It exists from launch until its process exits.
type Job struct {
	ID           string
	Base         string
	ManifestFile string

	state      atomic.Int32
	cmd        *exec.Cmd
	startedAt  time.Time
	onComplete func(*Result)
	done       chan struct{}
	result     *Result
}

func newJob(id, base, manifestFile string, onComplete func(*Result)) *Job {
	return &Job{
		ID:           id,
		Base:         base,
		ManifestFile: manifestFile,
		onComplete:   onComplete,
		done:         make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (j *Job) State() State { return State(j.state.Load()) }

func (j *Job) transition(from, to State) bool {
	return j.state.CompareAndSwap(int32(from), int32(to))
}

// PID returns the compiler process id, or 0 if the process was never started.
func (j *Job) PID() int {
	if j.cmd == nil || j.cmd.Process == nil {
		return 0
	}
	return j.cmd.Process.Pid
}

// Done is closed once the completion callback has returned.
func (j *Job) Done() <-chan struct{} { return j.done }

// Result returns the outcome, or nil while the job is still running.
func (j *Job) Result() *Result {
	select {
	case <-j.done:
		return j.result
	default:
		return nil
	}
}

// Wait blocks until the job completes or ctx is done. Cancelling ctx abandons the wait, not the process.
func (j *Job) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-j.done:
		return j.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (j *Job) complete(result *Result) {
	j.result = result
	j.transition(StateRunning, StateCompleted)
	if j.onComplete != nil {
		j.onComplete(result)
	}
	close(j.done)
}
