// Package jsonerr defines the typed error kinds the extractor pipeline can
// fail with and their mapped process exit codes. It generalizes the
// teacher's internal/engine error pattern (ScanError, CancelledError,
// TokenError, all Unwrap()-capable) from scan/cleanup failures to the
// streaming-extraction failures of spec §7.
package jsonerr

import (
	"errors"
	"fmt"
)

// coder is implemented by every error kind in this package.
type coder interface {
	error
	exitCode() int
}

// ExitCode returns the process exit code mapped to err, or 0 if err is nil.
// Unrecognized errors map to 1, matching the teacher's default of treating
// any unhandled scan/cleanup error as a fatal (but non-usage) failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var kind coder
	if errors.As(err, &kind) {
		return kind.exitCode()
	}
	return 1
}

// IOError wraps an underlying read/write/open/unlink failure. Exit code 1.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("io error during %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }
func (e *IOError) exitCode() int { return 1 }

// TargetNotFoundError indicates EOF was reached before the target array was
// located (spec §4.2). Exit code 1.
type TargetNotFoundError struct {
	Key string
}

func (e *TargetNotFoundError) Error() string {
	if e.Key == "" {
		return "target_not_found: no top-level array in input"
	}
	return fmt.Sprintf("target_not_found: key %q not found", e.Key)
}
func (e *TargetNotFoundError) exitCode() int { return 1 }

// TruncatedElementError indicates EOF occurred inside a string or structure
// (spec §4.3). Exit code 1.
type TruncatedElementError struct {
	Seq    uint64
	Reason string
}

func (e *TruncatedElementError) Error() string {
	return fmt.Sprintf("truncated_element: element %d: %s", e.Seq, e.Reason)
}
func (e *TruncatedElementError) exitCode() int { return 1 }

// BadConfigError indicates conflicting or invalid CLI options (spec §7).
// Exit code 2.
type BadConfigError struct {
	Reason string
}

func (e *BadConfigError) Error() string { return fmt.Sprintf("bad_config: %s", e.Reason) }
func (e *BadConfigError) exitCode() int { return 2 }

// WorkerFailureError wraps one or more parallel-worker I/O failures that
// aborted the pipeline (spec §4.5, §7). Exit code 1.
type WorkerFailureError struct {
	Err error
}

func (e *WorkerFailureError) Error() string { return fmt.Sprintf("worker_failure: %v", e.Err) }
func (e *WorkerFailureError) Unwrap() error { return e.Err }
func (e *WorkerFailureError) exitCode() int { return 1 }
