package spec

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a declaration error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Fields a method declaration may contain.
const (
	fieldDescription = "description"
	fieldInput       = "input"
	fieldOutput      = "output"
	fieldEvents      = "events"
	fieldErrors      = "errors"
)

// CompileMethod parses a CUE value into a Declaration.
//
// The CUE value should be the method struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`method: Greet: { input: string }`)
//	decl, err := CompileMethod(v.LookupPath(cue.ParsePath("method.Greet")))
func CompileMethod(v cue.Value) (*Declaration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "method",
			Message: fmt.Sprintf("declaration must be a struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	decl := &Declaration{
		Events: map[string]cue.Value{},
		Errors: map[string]cue.Value{},
		Pos:    v.Pos(),
	}

	// Method name is the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		decl.Name = labels[len(labels)-1].String()
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		label, fv := iter.Label(), iter.Value()
		switch label {
		case fieldDescription:
			desc, err := fv.String()
			if err != nil {
				return nil, &CompileError{
					Field:   fieldDescription,
					Message: "description must be a string",
					Pos:     fv.Pos(),
				}
			}
			decl.Description = desc
		case fieldInput:
			if decl.Input, err = compileSchema(fieldInput, fv); err != nil {
				return nil, err
			}
		case fieldOutput:
			if decl.Output, err = compileSchema(fieldOutput, fv); err != nil {
				return nil, err
			}
		case fieldEvents:
			if decl.Events, err = compileNamed(fieldEvents, fv); err != nil {
				return nil, err
			}
		case fieldErrors:
			if decl.Errors, err = compileNamed(fieldErrors, fv); err != nil {
				return nil, err
			}
		default:
			return nil, &CompileError{
				Field:   "field",
				Message: fmt.Sprintf("unknown field %q", label),
				Pos:     fv.Pos(),
			}
		}
	}

	return decl, nil
}

// compileSchema checks that a schema value is free of errors.
// Schemas may be incomplete; concreteness is only required of the values
// validated against them.
func compileSchema(field string, v cue.Value) (cue.Value, error) {
	if err := v.Validate(); err != nil {
		if ce, ok := formatCUEError(err).(*CompileError); ok {
			ce.Field = field
			return cue.Value{}, ce
		}
		return cue.Value{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return v, nil
}

// compileNamed parses events or errors: a struct mapping names to schemas.
func compileNamed(field string, v cue.Value) (map[string]cue.Value, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a struct of name: schema", field),
			Pos:     v.Pos(),
		}
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := map[string]cue.Value{}
	for iter.Next() {
		name := iter.Label()
		schemaVal, err := compileSchema(field+"."+name, iter.Value())
		if err != nil {
			return nil, err
		}
		out[name] = schemaVal
	}
	return out, nil
}

// formatCUEError converts CUE errors to CompileError with position info.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
