package spec

import (
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/vmethod/method"
)

// Declaration is a compiled method declaration.
//
// Absent schemas are zero cue.Values; schema.Resolve treats them as
// pass-through.
type Declaration struct {
	Name        string
	Description string

	Input  cue.Value
	Output cue.Value

	Events map[string]cue.Value
	Errors map[string]cue.Value

	Pos token.Pos
}

// Definition binds handler to the declaration.
func (d *Declaration) Definition(handler method.Handler) method.Definition {
	def := method.Definition{
		Name:    d.Name,
		Handler: handler,
		Events:  make(map[string]any, len(d.Events)),
		Errors:  make(map[string]any, len(d.Errors)),
	}
	if d.Input.Exists() {
		def.Input = d.Input
	}
	if d.Output.Exists() {
		def.Output = d.Output
	}
	for name, v := range d.Events {
		def.Events[name] = v
	}
	for name, v := range d.Errors {
		def.Errors[name] = v
	}
	return def
}

// Define is shorthand for method.Define(d.Definition(handler), opts...).
func (d *Declaration) Define(handler method.Handler, opts ...method.Option) (*method.Method, error) {
	return method.Define(d.Definition(handler), opts...)
}

// EventNames returns the declared event names, sorted.
func (d *Declaration) EventNames() []string {
	return sortedKeys(d.Events)
}

// ErrorNames returns the declared error names, sorted.
func (d *Declaration) ErrorNames() []string {
	return sortedKeys(d.Errors)
}

func sortedKeys(m map[string]cue.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
