// File: internal/failures/failures.go
// Package failures defines the error taxonomy shared by the browser engine, the page
// contracts and the scenario runner. Every type reports a Kind so a failing scenario can
// state what went wrong without string matching.
package failures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"
)

// Kind classifies a failure for reporting.
type Kind string

const (
	KindElementNotFound  Kind = "element_not_found"
	KindAmbiguousMatch   Kind = "ambiguous_match"
	KindActionTimeout    Kind = "action_timeout"
	KindStaleTarget      Kind = "stale_target"
	KindUnhandledDialog  Kind = "unhandled_dialog"
	KindWaitTimeout      Kind = "wait_timeout"
	KindAssertion        Kind = "assertion_failure"
	KindInfrastructure   Kind = "infrastructure"
	KindContextCancelled Kind = "cancelled"
)

// Classified is implemented by every error in this package.
type Classified interface {
	error
	Kind() Kind
}

// ElementNotFoundError means zero matches persisted past the operation timeout.
type ElementNotFoundError struct {
	Descriptor string
	Timeout    time.Duration
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no element matches %s after %v", e.Descriptor, e.Timeout)
}

func (e *ElementNotFoundError) Kind() Kind { return KindElementNotFound }

// AmbiguousMatchError means an operation that needs a single target found several and no
// ordinal or scope narrowed the descriptor.
type AmbiguousMatchError struct {
	Descriptor string
	Count      int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%s resolved to %d elements; add an ordinal or scope", e.Descriptor, e.Count)
}

func (e *AmbiguousMatchError) Kind() Kind { return KindAmbiguousMatch }

// ActionTimeoutError means the target never became actionable.
type ActionTimeoutError struct {
	Action     string
	Descriptor string
	Timeout    time.Duration
	// LastState describes the element state seen on the final attempt.
	LastState string
}

func (e *ActionTimeoutError) Error() string {
	msg := fmt.Sprintf("%s on %s timed out after %v", e.Action, e.Descriptor, e.Timeout)
	if e.LastState != "" {
		msg += " (last state: " + e.LastState + ")"
	}
	return msg
}

func (e *ActionTimeoutError) Kind() Kind { return KindActionTimeout }

// StaleTargetError means the target detached between resolution and execution, and one
// re-resolution did not help.
type StaleTargetError struct {
	Action     string
	Descriptor string
	Cause      error
}

func (e *StaleTargetError) Error() string {
	msg := fmt.Sprintf("%s on %s: target detached from the document", e.Action, e.Descriptor)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StaleTargetError) Unwrap() error { return e.Cause }

func (e *StaleTargetError) Kind() Kind { return KindStaleTarget }

// UnhandledDialogError is raised when the application opened a native dialog and no
// handler was armed to answer it.
type UnhandledDialogError struct {
	DialogKind string
	Message    string
}

func (e *UnhandledDialogError) Error() string {
	return fmt.Sprintf("unhandled %s dialog: %q", e.DialogKind, e.Message)
}

func (e *UnhandledDialogError) Kind() Kind { return KindUnhandledDialog }

// WaitTimeoutError means a condition did not hold within its timeout.
type WaitTimeoutError struct {
	Condition    string
	Timeout      time.Duration
	LastObserved string
	// LastErr is the evaluation error of the final poll, if any.
	LastErr error
}

func (e *WaitTimeoutError) Error() string {
	msg := fmt.Sprintf("waiting for %s timed out after %v", e.Condition, e.Timeout)
	if e.LastObserved != "" {
		msg += fmt.Sprintf(" (last observed: %s)", e.LastObserved)
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(" (last error: %v)", e.LastErr)
	}
	return msg
}

func (e *WaitTimeoutError) Unwrap() error { return e.LastErr }

func (e *WaitTimeoutError) Kind() Kind { return KindWaitTimeout }

// AssertionFailure is the intended test signal: an oracle disagreed with the application.
type AssertionFailure struct {
	What     string
	Expected any
	Observed any
	// Diff is a cmp.Diff of expected and observed for structured values.
	Diff string
}

func (e *AssertionFailure) Error() string {
	if e.Diff != "" {
		return fmt.Sprintf("%s: mismatch (-expected +observed):\n%s", e.What, e.Diff)
	}
	return fmt.Sprintf("%s: expected %v, observed %v", e.What, e.Expected, e.Observed)
}

func (e *AssertionFailure) Kind() Kind { return KindAssertion }

// Assertf builds an AssertionFailure with a formatted description.
func Assertf(expected, observed any, format string, args ...any) *AssertionFailure {
	return &AssertionFailure{What: fmt.Sprintf(format, args...), Expected: expected, Observed: observed}
}

// AssertEqual returns nil when expected and observed are equal under cmp, and an
// AssertionFailure carrying the diff otherwise.
func AssertEqual(what string, expected, observed any, opts ...cmp.Option) error {
	diff := cmp.Diff(expected, observed, opts...)
	if diff == "" {
		return nil
	}
	return &AssertionFailure{What: what, Expected: expected, Observed: observed, Diff: diff}
}

// KindOf classifies err. Context errors are reported as cancellations and anything
// outside the taxonomy as infrastructure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var c Classified
	if errors.As(err, &c) {
		return c.Kind()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindContextCancelled
	}
	return KindInfrastructure
}
