package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vmethod/internal/spec"
	"github.com/roach88/vmethod/method"
)

// CLI error codes not produced by spec loading.
const (
	ErrCodeUnknownMethod = "E201" // Method not declared in specs
	ErrCodeBadPayload    = "E202" // Flag payload is not valid YAML or JSON
)

// step is one scripted Emit or Raise, in flag order.
type step struct {
	Raise   bool
	Name    string
	Payload any
}

// stepFlag appends --emit and --raise values to a shared, ordered script.
type stepFlag struct {
	raise bool
	steps *[]step
}

func (f *stepFlag) String() string {
	return ""
}

func (f *stepFlag) Set(s string) error {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected Name=payload, got %q", s)
	}
	payload, err := decodePayload(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*f.steps = append(*f.steps, step{Raise: f.raise, Name: name, Payload: payload})
	return nil
}

func (f *stepFlag) Type() string {
	return "Name=payload"
}

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Input  string
	Return string
	Steps  []step
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <specs-dir> <method>",
		Short: "Call a declared method with a scripted handler",
		Long: `Call a declared method through the full validation pipeline.

The handler is scripted from flags: it performs every --emit and --raise
in the order given, then returns the --return value, or its validated
input when --return is not set. Payloads are YAML or JSON.

Example:
  vmethod call ./specs Greet --input '{name: ada}' \
    --emit 'Greeted={text: "hello, ada"}' --return '{text: "hello, ada"}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "null", "method input (YAML or JSON)")
	cmd.Flags().StringVar(&opts.Return, "return", "", "handler return value (YAML or JSON); defaults to the validated input")
	cmd.Flags().Var(&stepFlag{steps: &opts.Steps}, "emit", "emit an event, Name=payload (repeatable)")
	cmd.Flags().Var(&stepFlag{raise: true, steps: &opts.Steps}, "raise", "raise an error, Name=payload (repeatable)")

	return cmd
}

func runCall(ctx context.Context, opts *CallOptions, specsDir, name string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	input, err := decodePayload(opts.Input)
	if err != nil {
		return outputBadPayload(formatter, "--input", err)
	}
	var ret any
	hasReturn := cmd.Flags().Changed("return")
	if hasReturn {
		if ret, err = decodePayload(opts.Return); err != nil {
			return outputBadPayload(formatter, "--return", err)
		}
	}

	result, loadErrs := spec.LoadDir(specsDir, spec.LoadModeFailFast)
	if result == nil || len(loadErrs) > 0 {
		return outputLoadError(formatter, loadErrs)
	}
	decl, ok := result.Lookup(name)
	if !ok {
		return outputUnknownMethod(formatter, name, result)
	}

	handler := scriptedHandler(opts.Steps, ret, hasReturn)
	m, err := decl.Define(handler, method.WithLogger(newLogger(formatter.GetErrWriter(), opts.Verbose)))
	if err != nil {
		return WrapExitError(ExitCommandError, "define method", err)
	}

	res, err := m.Call(ctx, input)
	if err != nil {
		return outputCallError(formatter, err)
	}
	return outputCallResult(formatter, res)
}

// scriptedHandler performs steps in order and stops at the first rejected one.
func scriptedHandler(steps []step, ret any, hasReturn bool) method.Handler {
	return func(ctx context.Context, input any, call *method.Call) (any, error) {
		for _, s := range steps {
			var err error
			if s.Raise {
				err = call.Raise(ctx, s.Name, s.Payload)
			} else {
				err = call.Emit(ctx, s.Name, s.Payload)
			}
			if err != nil {
				return nil, err
			}
		}
		if hasReturn {
			return ret, nil
		}
		return input, nil
	}
}

// decodePayload parses YAML, which includes JSON. An empty string is null.
func decodePayload(s string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func outputBadPayload(formatter *OutputFormatter, flag string, err error) error {
	message := fmt.Sprintf("invalid %s payload: %v", flag, err)
	_ = formatter.Error(ErrCodeBadPayload, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", ErrCodeBadPayload, message))
}

// outputCallError reports a classified call failure. The error code is the
// failure kind.
func outputCallError(formatter *OutputFormatter, err error) error {
	code := "ERROR"
	var details map[string]any
	var me *method.Error
	if errors.As(err, &me) {
		code = string(me.Kind)
		details = map[string]any{"payload": me.Payload}
		if me.Name != "" {
			details["name"] = me.Name
		}
	}
	_ = formatter.Error(code, err.Error(), details)
	return WrapExitError(ExitFailure, "call failed", err)
}

func outputCallResult(formatter *OutputFormatter, res *method.Result) error {
	snap, err := res.Snapshot()
	if err != nil {
		return WrapExitError(ExitFailure, "encode result", err)
	}

	if formatter.IsJSON() {
		return formatter.Success(json.RawMessage(snap))
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s (call %s)\n", res.Method, res.CallID)
	writeEntries(formatter, "events", res.EventsEmitted)
	writeEntries(formatter, "errors", res.ErrorsThrown)

	out, err := method.MarshalCanonical(res.Output)
	if err != nil {
		return WrapExitError(ExitFailure, "encode output", err)
	}
	fmt.Fprintf(w, "  output: %s\n", out)
	return nil
}

func writeEntries(formatter *OutputFormatter, label string, entries []method.Entry) {
	if len(entries) == 0 {
		fmt.Fprintf(formatter.Writer, "  %s: none\n", label)
		return
	}
	fmt.Fprintf(formatter.Writer, "  %s:\n", label)
	for _, e := range entries {
		payload, err := method.MarshalCanonical(e.Payload)
		if err != nil {
			payload = []byte(fmt.Sprint(e.Payload))
		}
		fmt.Fprintf(formatter.Writer, "    #%d %s %s\n", e.Seq, e.Name, payload)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
