package cli

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/vmethod/internal/spec"
)

// MethodInfo describes one declared method.
type MethodInfo struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Input       string            `json:"input,omitempty"`
	Output      string            `json:"output,omitempty"`
	Events      map[string]string `json:"events"`
	Errors      map[string]string `json:"errors"`
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <specs-dir> [method]",
		Short: "Show declared methods and their schemas",
		Long: `Show the methods declared in <specs-dir>: their input and output
schemas and the schemas of every event and error they declare.

Without a method name, a summary table of all methods is shown.
With a method name, that method's schemas are shown in full.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 2 {
				name = args[1]
			}
			return runDescribe(rootOpts, args[0], name, cmd)
		},
	}

	return cmd
}

func runDescribe(opts *RootOptions, specsDir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, loadErrs := spec.LoadDir(specsDir, spec.LoadModeFailFast)
	if result == nil || len(loadErrs) > 0 {
		return outputLoadError(formatter, loadErrs)
	}

	decls := result.Methods
	if name != "" {
		decl, ok := result.Lookup(name)
		if !ok {
			return outputUnknownMethod(formatter, name, result)
		}
		decls = []spec.Declaration{*decl}
	}

	infos := make([]MethodInfo, 0, len(decls))
	for i := range decls {
		infos = append(infos, describeMethod(&decls[i]))
	}

	switch {
	case formatter.IsJSON():
		return formatter.Success(infos)
	case name == "":
		return writeMethodTable(formatter, infos)
	default:
		writeMethodInfo(formatter, infos[0])
		return nil
	}
}

func describeMethod(decl *spec.Declaration) MethodInfo {
	info := MethodInfo{
		Name:        decl.Name,
		Description: decl.Description,
		Input:       formatSchema(decl.Input),
		Output:      formatSchema(decl.Output),
		Events:      map[string]string{},
		Errors:      map[string]string{},
	}
	for name, v := range decl.Events {
		info.Events[name] = formatSchema(v)
	}
	for name, v := range decl.Errors {
		info.Errors[name] = formatSchema(v)
	}
	return info
}

// formatSchema renders a schema as single-line CUE. Absent schemas are empty.
func formatSchema(v cue.Value) string {
	if !v.Exists() {
		return ""
	}
	return strings.Join(strings.Fields(fmt.Sprint(v)), " ")
}

// writeMethodTable lists every method with its event and error names.
func writeMethodTable(formatter *OutputFormatter, infos []MethodInfo) error {
	table := tablewriter.NewWriter(formatter.Writer)
	table.Header("Method", "Input", "Output", "Events", "Errors")
	for _, info := range infos {
		row := []string{
			info.Name,
			orAny(info.Input),
			orAny(info.Output),
			joinOrDash(sortedKeys(info.Events)),
			joinOrDash(sortedKeys(info.Errors)),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("render methods: %w", err)
		}
	}
	return table.Render()
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func writeMethodInfo(formatter *OutputFormatter, info MethodInfo) {
	w := formatter.Writer
	fmt.Fprintln(w, info.Name)
	if info.Description != "" {
		fmt.Fprintf(w, "  %s\n", info.Description)
	}
	fmt.Fprintf(w, "  input:  %s\n", orAny(info.Input))
	fmt.Fprintf(w, "  output: %s\n", orAny(info.Output))
	writeNamed(formatter, "events", info.Events)
	writeNamed(formatter, "errors", info.Errors)
}

func writeNamed(formatter *OutputFormatter, label string, named map[string]string) {
	if len(named) == 0 {
		fmt.Fprintf(formatter.Writer, "  %s: none\n", label)
		return
	}
	fmt.Fprintf(formatter.Writer, "  %s:\n", label)
	for _, name := range sortedKeys(named) {
		fmt.Fprintf(formatter.Writer, "    %s: %s\n", name, orAny(named[name]))
	}
}

func orAny(schema string) string {
	if schema == "" {
		return "_"
	}
	return schema
}

// outputUnknownMethod reports a method name missing from the specs.
func outputUnknownMethod(formatter *OutputFormatter, name string, result *spec.LoadResult) error {
	known := make([]string, 0, len(result.Methods))
	for _, decl := range result.Methods {
		known = append(known, decl.Name)
	}
	message := fmt.Sprintf("method %q not declared", name)
	_ = formatter.Error(ErrCodeUnknownMethod, message, map[string]any{"declared": known})
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", ErrCodeUnknownMethod, message))
}
