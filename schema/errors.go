package schema

import (
	"errors"
	"strings"
)

// Engine names reported in ValidationError.Engine.
const (
	EngineCUE        = "cue"
	EngineJSONSchema = "jsonschema"
)

// ValidationError is returned by the built-in validators when a value does
// not conform to its schema.
//
// Err holds the engine's own error so callers can inspect engine-specific
// details with errors.As.
type ValidationError struct {
	// Engine names the schema engine that rejected the value.
	Engine string

	// Path locates the offending part of the value ("" for the root).
	Path string

	// Message is the engine's human-readable reason.
	Message string

	Err error
}

func (e *ValidationError) Error() string {
	if e.Path != "" && !strings.HasPrefix(e.Message, e.Path) {
		return e.Path + ": " + e.Message
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
