package extract

import (
	"errors"
	"fmt"
)

// ErrorCause describes why extraction failed.
type ErrorCause string

const (
	// CauseRun indicates the tool exited non-zero or could not be started.
	CauseRun ErrorCause = "run"
	// CauseParse indicates the tool output was not valid metadata.
	CauseParse ErrorCause = "parse"
	// CauseTimeout indicates the hard wall-clock timeout was hit.
	CauseTimeout ErrorCause = "timeout"
	// CauseNoFormat indicates metadata contained no playable format.
	CauseNoFormat ErrorCause = "noformat"
)

// ExtractError wraps extraction failures with context about the cause.
// Output carries tool stderr for logging; it must never reach a client.
type ExtractError struct {
	Cause  ErrorCause
	Err    error
	Output string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extraction failed (%s): %v", e.Cause, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

func is(err error, cause ErrorCause) bool {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Cause == cause
	}
	return false
}

// IsRun returns true if the error was a tool startup or exit failure.
func IsRun(err error) bool { return is(err, CauseRun) }

// IsParse returns true if the error was a metadata parse failure.
func IsParse(err error) bool { return is(err, CauseParse) }

// IsTimeout returns true if the error was caused by a timeout.
func IsTimeout(err error) bool { return is(err, CauseTimeout) }

// IsNoFormat returns true if no playable format was found.
func IsNoFormat(err error) bool { return is(err, CauseNoFormat) }
