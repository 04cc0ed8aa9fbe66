package method

import (
	"errors"
	"fmt"
)

// Kind identifies the pipeline stage that failed.
type Kind string

const (
	// KindInvalidInput indicates the given input failed the input schema.
	KindInvalidInput Kind = "INVALID_INPUT"

	// KindInvalidOutput indicates the handler's return value failed the output schema.
	KindInvalidOutput Kind = "INVALID_OUTPUT"

	// KindInvalidEvent indicates Emit used an undeclared name or a non-conforming payload.
	KindInvalidEvent Kind = "INVALID_EVENT"

	// KindInvalidError indicates Raise used an undeclared name or a non-conforming payload.
	KindInvalidError Kind = "INVALID_ERROR"

	// KindHandler indicates the handler failed with an error of its own.
	KindHandler Kind = "HANDLER_ERROR"
)

// Causes for Emit and Raise on names the method does not declare, and for
// calls made after the handler has returned.
var (
	ErrEventNotFound = errors.New("event not found")
	ErrErrorNotFound = errors.New("error not found")
	ErrCallFinished  = errors.New("call already finished")
)

// Error is the single error type returned by Method.Call.
//
// Payload depends on Kind:
//   - KindInvalidInput: the input as given to Call
//   - KindInvalidOutput: the handler's unvalidated return value
//   - KindInvalidEvent, KindInvalidError: the payload passed to Emit or Raise
//   - KindHandler: the validated input
//
// Cause is never nil and is returned by Unwrap, so schema engine errors
// remain reachable with errors.As.
type Error struct {
	Kind Kind

	// Method is the Definition's Name, possibly empty.
	Method string

	// Name is the event or error name for KindInvalidEvent and KindInvalidError.
	Name string

	Payload any
	Cause   error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindInvalidInput:
		msg = fmt.Sprintf("invalid input: %v", e.Cause)
	case KindInvalidOutput:
		msg = fmt.Sprintf("invalid output: %v", e.Cause)
	case KindInvalidEvent:
		msg = fmt.Sprintf("invalid event %q: %v", e.Name, e.Cause)
	case KindInvalidError:
		msg = fmt.Sprintf("invalid error %q: %v", e.Name, e.Cause)
	default:
		msg = fmt.Sprint(e.Cause)
	}
	if e.Method != "" {
		return e.Method + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// PanicError is the cause of a KindHandler error produced by a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind, true
	}
	return "", false
}

func isKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsInvalidInput reports whether err is a KindInvalidInput error.
func IsInvalidInput(err error) bool { return isKind(err, KindInvalidInput) }

// IsInvalidOutput reports whether err is a KindInvalidOutput error.
func IsInvalidOutput(err error) bool { return isKind(err, KindInvalidOutput) }

// IsInvalidEvent reports whether err is a KindInvalidEvent error.
func IsInvalidEvent(err error) bool { return isKind(err, KindInvalidEvent) }

// IsInvalidError reports whether err is a KindInvalidError error.
func IsInvalidError(err error) bool { return isKind(err, KindInvalidError) }

// IsHandlerError reports whether err is a KindHandler error.
func IsHandlerError(err error) bool { return isKind(err, KindHandler) }
