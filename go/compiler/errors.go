package compiler

import "fmt"

// LaunchError is returned synchronously when the compiler process cannot be started.
// The job is over: no completion callback will ever fire for it.
type LaunchError struct {
	Executable string
	Dir        string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s in %s: %v", e.Executable, e.Dir, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports a compiler run that completed with a non-zero exit code.
type ExitError struct {
	JobID    string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("compile job %s exited with code %d", e.JobID, e.ExitCode)
}
