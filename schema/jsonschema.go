package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var messagePrinter = message.NewPrinter(language.English)

type jsonSchemaValidator struct {
	schema *jsonschema.Schema
}

// JSONSchema returns a validator backed by a compiled JSON Schema.
//
// JSON Schema only checks values, it never transforms them: Parse returns the
// original value when it conforms. Values are normalised through
// encoding/json before validation, so structs with json tags validate the
// same way as the equivalent map.
func JSONSchema(s *jsonschema.Schema) Validator {
	return &jsonSchemaValidator{schema: s}
}

// CompileJSONSchema compiles a JSON Schema document.
func CompileJSONSchema(doc []byte) (Validator, error) {
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return JSONSchema(compiled), nil
}

func (j *jsonSchemaValidator) Parse(ctx context.Context, value any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	instance, err := toJSONValue(value)
	if err != nil {
		return nil, &ValidationError{
			Engine:  EngineJSONSchema,
			Message: fmt.Sprintf("value is not representable as JSON: %v", err),
			Err:     err,
		}
	}

	if err := j.schema.Validate(instance); err != nil {
		return nil, newJSONSchemaValidationError(err)
	}
	return value, nil
}

// toJSONValue converts v to the generic form the validator walks:
// map[string]any, []any, json.Number, string, bool or nil.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// newJSONSchemaValidationError reports the first leaf cause, which names the
// failing keyword at its instance location.
func newJSONSchemaValidationError(err error) *ValidationError {
	ve := &ValidationError{Engine: EngineJSONSchema, Message: err.Error(), Err: err}

	var jsErr *jsonschema.ValidationError
	if !errors.As(err, &jsErr) {
		return ve
	}
	leaf := jsErr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	ve.Message = leaf.ErrorKind.LocalizedString(messagePrinter)
	if len(leaf.InstanceLocation) > 0 {
		ve.Path = "/" + strings.Join(leaf.InstanceLocation, "/")
	}
	return ve
}
