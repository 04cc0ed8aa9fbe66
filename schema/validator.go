package schema

import (
	"context"
	"fmt"

	"cuelang.org/go/cue"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates a value against a declared shape.
//
// Parse returns the value to use in place of the given one. Implementations
// may coerce (fill defaults, normalise) but must not mutate their argument.
// Validators are shared by concurrent calls and must be safe for concurrent use.
type Validator interface {
	Parse(ctx context.Context, value any) (any, error)
}

// Func adapts an ordinary function to the Validator interface.
type Func func(ctx context.Context, value any) (any, error)

// Parse calls f(ctx, value).
func (f Func) Parse(ctx context.Context, value any) (any, error) {
	return f(ctx, value)
}

type passthrough struct{}

func (passthrough) Parse(_ context.Context, value any) (any, error) {
	return value, nil
}

// Passthrough returns every value unchanged and never fails.
var Passthrough Validator = passthrough{}

// ResolveError reports a declaration that no supported engine understands.
type ResolveError struct {
	Type string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("unsupported schema declaration of type %s", e.Type)
}

// Resolve returns the canonical validator for a schema declaration.
//
// Accepted declarations:
//
//	nil                                      Passthrough
//	Validator                                returned as is
//	func(context.Context, any) (any, error)  wrapped in Func
//	func(any) (any, error)                   wrapped in Func
//	cue.Value, *cue.Value                    CUE validator
//	*jsonschema.Schema                       JSON Schema validator
//
// A CUE value that does not exist and nil pointers count as absent.
func Resolve(schemaLike any) (Validator, error) {
	switch s := schemaLike.(type) {
	case nil:
		return Passthrough, nil
	case Validator:
		return s, nil
	case func(context.Context, any) (any, error):
		return Func(s), nil
	case func(any) (any, error):
		return Func(func(_ context.Context, v any) (any, error) {
			return s(v)
		}), nil
	case cue.Value:
		if !s.Exists() {
			return Passthrough, nil
		}
		return CUE(s)
	case *cue.Value:
		if s == nil || !s.Exists() {
			return Passthrough, nil
		}
		return CUE(*s)
	case *jsonschema.Schema:
		if s == nil {
			return Passthrough, nil
		}
		return JSONSchema(s), nil
	default:
		return nil, &ResolveError{Type: fmt.Sprintf("%T", schemaLike)}
	}
}

// MustResolve is like Resolve but panics on error.
// Use only in tests or when the declaration is known to be valid.
func MustResolve(schemaLike any) Validator {
	v, err := Resolve(schemaLike)
	if err != nil {
		panic(err)
	}
	return v
}
