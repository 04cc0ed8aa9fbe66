package cli

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// EnvPrefix prefixes the environment variables that set global flags,
// e.g. VMETHOD_FORMAT=json.
const EnvPrefix = "VMETHOD"

// NewRootCommand creates the root command for the vmethod CLI.
//
// Global settings resolve in viper's order: flag, environment variable,
// --config file, default.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "vmethod",
		Short: "vmethod - validated methods",
		Long: `Inspect and exercise methods declared in CUE.

Each method declares schemas for its input, its output, and the named
events and errors its handler may emit or raise. Every boundary is
validated and each call produces a record of what happened.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, cfgFile, opts); err != nil {
				return err
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file with format and verbose keys")

	_ = v.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("format", cmd.PersistentFlags().Lookup("format"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))

	return cmd
}

// loadConfig reads cfgFile, if set, and resolves the global options.
func loadConfig(v *viper.Viper, cfgFile string, opts *RootOptions) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return WrapExitError(ExitCommandError, "read config", err)
		}
	}
	opts.Format = v.GetString("format")
	opts.Verbose = v.GetBool("verbose")
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger returns a human-readable logger on w. Verbose mode logs every
// pipeline stage; otherwise only errors are shown.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.ErrorLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
