package clicommand

import (
	"errors"
	"strconv"

	"github.com/buildkite/procctl/process"
)

// ExitCodeTimeLimit is returned by run when the child outlives its time
// limit, as timeout(1) does.
const ExitCodeTimeLimit = 124

// ExitError is used to signal to main.go that procctl should exit with the
// exit code in `code`.
type ExitError struct {
	code  int
	inner error
}

func NewExitError(code int, err error) *ExitError {
	return &ExitError{code: code, inner: err}
}

func (e *ExitError) Code() int {
	return e.code
}

func (e *ExitError) Error() string {
	if e.inner == nil {
		return "exit status " + strconv.Itoa(e.code)
	}
	return e.inner.Error()
}

func (e *ExitError) Unwrap() error {
	return e.inner
}

func (e *ExitError) Is(target error) bool {
	terr, ok := target.(*ExitError)
	return ok && e.code == terr.code && errors.Is(e.inner, terr.inner)
}

// exitErrorForStatus mirrors the child's status as procctl's own exit
// code. A clean exit returns nil. The status itself has already been
// logged, so the error carries no message of its own.
func exitErrorForStatus(status process.ExitStatus) error {
	if status.Success() {
		return nil
	}
	code := status.ExitCode()
	if code < 0 {
		code = 1
	}
	return NewExitError(code, nil)
}
