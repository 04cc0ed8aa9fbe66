package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vmethod/internal/spec"
)

// ValidationIssue is one problem found in a specs directory.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Methods []string          `json:"methods,omitempty"`
	Errors  []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate method declarations",
		Long: `Load the CUE package in <specs-dir> and compile every method
declaration, reporting all problems found.

With --watch, validation re-runs whenever a .cue file changes until
interrupted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-validate when .cue files change")

	return cmd
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Watch bool
}

func runValidate(opts *ValidateOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if !opts.Watch {
		return validateOnce(formatter, specsDir)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(formatter.GetErrWriter(), opts.Verbose)

	watcher, err := newSpecWatcher(specsDir, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "watch "+specsDir, err)
	}

	_ = validateOnce(formatter, specsDir)
	formatter.VerboseLog("Watching %s for changes", specsDir)
	watcher.Run(ctx, func() {
		_ = validateOnce(formatter, specsDir)
	})
	return nil
}

// validateOnce validates specsDir and writes the report.
func validateOnce(formatter *OutputFormatter, specsDir string) error {
	result, loadErrs := spec.LoadDir(specsDir, spec.LoadModeCollectAll)
	if result == nil {
		return outputLoadError(formatter, loadErrs)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, specsDir)

	names := make([]string, 0, len(result.Methods))
	for _, decl := range result.Methods {
		formatter.VerboseLog("Compiled method: %s", decl.Name)
		names = append(names, decl.Name)
	}

	if len(loadErrs) > 0 {
		return outputValidationErrors(formatter, names, toIssues(loadErrs))
	}

	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true, Methods: names})
	}
	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d method(s))\n", len(names))
	return nil
}

func toIssues(errs []error) []ValidationIssue {
	issues := make([]ValidationIssue, 0, len(errs))
	for _, err := range errs {
		var le *spec.LoadError
		if !errors.As(err, &le) {
			issues = append(issues, ValidationIssue{Code: spec.ErrCodeGeneric, Message: err.Error()})
			continue
		}
		issue := ValidationIssue{Code: le.Code, Message: le.Message}
		if le.Pos.IsValid() {
			issue.File = le.Pos.Filename()
			issue.Line = le.Pos.Line()
		}
		issues = append(issues, issue)
	}
	return issues
}

// outputLoadError reports a specs directory that could not be loaded at all.
// These are command-level errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, errs []error) error {
	code, message := spec.ErrCodeGeneric, "failed to load specs"
	if len(errs) > 0 {
		message = errs[0].Error()
		var le *spec.LoadError
		if errors.As(errs[0], &le) {
			code, message = le.Code, le.Message
		}
	}
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, names []string, issues []ValidationIssue) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))

	if formatter.IsJSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Methods: names, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return failure
}
