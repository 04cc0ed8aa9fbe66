package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// A cue.Context is not safe for concurrent use, and every Parse encodes the
// value into the schema's context. Validators sharing a context share a lock.
var cueLocks sync.Map // *cue.Context -> *sync.Mutex

func cueLock(ctx *cue.Context) *sync.Mutex {
	mu, _ := cueLocks.LoadOrStore(ctx, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

type cueValidator struct {
	schema cue.Value
	mu     *sync.Mutex
}

// CUE returns a validator that unifies values with the given CUE schema.
//
// Parse encodes the value into the schema's context, unifies it with the
// schema and requires the result to be concrete. The unified value is decoded
// back into plain Go values (map[string]any, []any, int, string, ...), so
// defaults declared by the schema are applied to the returned value.
func CUE(v cue.Value) (Validator, error) {
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("cue schema: %w", err)
	}
	return &cueValidator{schema: v, mu: cueLock(v.Context())}, nil
}

// CompileCUE compiles src in ctx and returns a validator for the result.
//
//	v, err := schema.CompileCUE(cuecontext.New(), `{n: number}`)
func CompileCUE(ctx *cue.Context, src string) (Validator, error) {
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile cue schema: %w", err)
	}
	return CUE(v)
}

func (c *cueValidator) Parse(ctx context.Context, value any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	encoded := c.schema.Context().Encode(value)
	if err := encoded.Err(); err != nil {
		return nil, newCUEValidationError(err)
	}

	unified := c.schema.Unify(encoded)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, newCUEValidationError(err)
	}

	var out any
	if err := unified.Decode(&out); err != nil {
		return nil, newCUEValidationError(err)
	}
	return out, nil
}

// newCUEValidationError keeps the first CUE error's path and message; the
// full error list stays reachable through Unwrap.
func newCUEValidationError(err error) *ValidationError {
	ve := &ValidationError{Engine: EngineCUE, Message: err.Error(), Err: err}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return ve
	}
	first := errs[0]
	format, args := first.Msg()
	ve.Message = fmt.Sprintf(format, args...)
	ve.Path = strings.Join(first.Path(), ".")
	return ve
}
