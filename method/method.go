package method

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"

	"github.com/rs/zerolog"

	"github.com/roach88/vmethod/schema"
)

// Handler implements a method. It receives the validated input and the
// per-call capability for emitting events and raising errors.
type Handler func(ctx context.Context, input any, call *Call) (any, error)

// Definition declares a method. Every schema is optional; see schema.Resolve
// for the accepted declarations.
type Definition struct {
	// Name identifies the method in errors, logs, spans and snapshots.
	Name string

	Input  any
	Output any

	// Events and Errors map declared names to payload schemas. A name mapped
	// to nil is declared with a pass-through schema.
	Events map[string]any
	Errors map[string]any

	Handler Handler
}

// Method is a handler wrapped with resolved validators. It is immutable and
// safe for concurrent use.
type Method struct {
	name    string
	input   schema.Validator
	output  schema.Validator
	events  map[string]schema.Validator
	errors  map[string]schema.Validator
	handler Handler
	opts    options
	inst    *instruments
}

// Define resolves every schema in def once and returns the callable method.
// It fails only if def.Handler is nil or a declaration cannot be resolved.
func Define(def Definition, opts ...Option) (*Method, error) {
	if def.Handler == nil {
		return nil, fmt.Errorf("define method %q: handler is required", def.Name)
	}

	m := &Method{
		name:    def.Name,
		handler: def.Handler,
		opts:    defaultOptions(),
	}
	for _, opt := range opts {
		opt(&m.opts)
	}

	var err error
	if m.input, err = schema.Resolve(def.Input); err != nil {
		return nil, fmt.Errorf("define method %q: input: %w", def.Name, err)
	}
	if m.output, err = schema.Resolve(def.Output); err != nil {
		return nil, fmt.Errorf("define method %q: output: %w", def.Name, err)
	}
	if m.events, err = resolveNamed(def.Events); err != nil {
		return nil, fmt.Errorf("define method %q: event %w", def.Name, err)
	}
	if m.errors, err = resolveNamed(def.Errors); err != nil {
		return nil, fmt.Errorf("define method %q: error %w", def.Name, err)
	}

	if m.inst, err = newInstruments(m.opts.tracer, m.opts.meter); err != nil {
		return nil, fmt.Errorf("define method %q: %w", def.Name, err)
	}
	return m, nil
}

// MustDefine is like Define but panics on error.
func MustDefine(def Definition, opts ...Option) *Method {
	m, err := Define(def, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func resolveNamed(decls map[string]any) (map[string]schema.Validator, error) {
	out := make(map[string]schema.Validator, len(decls))
	for name, decl := range decls {
		v, err := schema.Resolve(decl)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// Name returns the Definition's Name.
func (m *Method) Name() string {
	return m.name
}

// EventNames returns the declared event names, sorted.
func (m *Method) EventNames() []string {
	return sortedNames(m.events)
}

// ErrorNames returns the declared error names, sorted.
func (m *Method) ErrorNames() []string {
	return sortedNames(m.errors)
}

func sortedNames(vs map[string]schema.Validator) []string {
	names := make([]string, 0, len(vs))
	for name := range vs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Call runs the pipeline for one invocation: validate input, run the
// handler, validate output. On success the returned Result holds the
// validated input, the raw and validated handler results and every entry
// recorded through the *Call. On failure it returns a nil Result and an *Error.
func (m *Method) Call(ctx context.Context, input any) (*Result, error) {
	callID := m.opts.newID()
	log := m.opts.logger.With().Str("method", m.name).Str("call_id", callID).Logger()

	ctx, obs := m.inst.start(ctx, m.name, callID)
	res, err := m.run(ctx, callID, input, obs, log)
	obs.end(ctx, err)

	if err != nil {
		kind, _ := KindOf(err)
		log.Warn().Err(err).Str("kind", string(kind)).Msg("call failed")
		return nil, err
	}
	log.Debug().
		Int("events", len(res.EventsEmitted)).
		Int("errors", len(res.ErrorsThrown)).
		Msg("call completed")
	return res, nil
}

func (m *Method) run(ctx context.Context, callID string, given any, obs *observation, log zerolog.Logger) (*Result, error) {
	input, err := m.input.Parse(ctx, given)
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Method: m.name, Payload: given, Cause: err}
	}
	obs.stage(stageInput)
	log.Debug().Str("stage", stageInput).Msg("stage completed")

	res := newResult(callID, m.name, input)
	call := &Call{method: m, result: res, obs: obs, log: log}

	raw, err := m.invoke(ctx, input, call)
	if err != nil {
		return nil, err
	}
	res.Result = raw
	obs.stage(stageHandler)
	log.Debug().Str("stage", stageHandler).Msg("stage completed")

	output, err := m.output.Parse(ctx, raw)
	if err != nil {
		return nil, &Error{Kind: KindInvalidOutput, Method: m.name, Payload: raw, Cause: err}
	}
	res.Output = output
	obs.stage(stageOutput)
	log.Debug().Str("stage", stageOutput).Msg("stage completed")

	return res, nil
}

// invoke runs the handler. Errors that are already *Error pass through
// unchanged; anything else, including a panic, becomes KindHandler with the
// validated input as payload.
func (m *Method) invoke(ctx context.Context, input any, call *Call) (raw any, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = &Error{
				Kind:    KindHandler,
				Method:  m.name,
				Payload: input,
				Cause:   &PanicError{Value: r, Stack: debug.Stack()},
			}
		}
		call.result.finish()
	}()

	raw, err = m.handler(ctx, input, call)
	if err == nil {
		return raw, nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return nil, err
	}
	return nil, &Error{Kind: KindHandler, Method: m.name, Payload: input, Cause: err}
}
