// Package cli implements the quarry command line: parsing query text,
// running queries against configured storage and validating mapping files.
package cli

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/config"
	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config is loaded before any subcommand runs.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the quarry CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "quarry - criteria queries over mapped storage",
		Long: `quarry parses search strings into criteria and runs them against
relational, file or in-memory storage through declarative CUE mappings.

Examples:
  quarry parse 'views > 10 and author.name = "ann"'
  quarry parse --search 'blog.post filter views > 10 order id desc limit 5'
  quarry query 'blog.post order id' --per-page 5 --page 2
  quarry mappings validate ./mappings`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (defaults and QUARRY_* environment otherwise)")

	// Add subcommands
	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewMappingsCommand(opts))

	return cmd
}

// setup validates global flags, loads configuration and initializes the
// logger. Verbose forces debug logging.
func (o *RootOptions) setup() error {
	if !isValidFormat(o.Format) {
		return exitError(ExitCommandError, "", errors.Newf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return exitError(ExitCommandError, ErrCodeConfig, err)
	}
	o.Config = cfg

	level := cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}
	if err := logger.Initialize(cfg.Log.JSON, level); err != nil {
		return exitError(ExitCommandError, ErrCodeConfig, errors.Wrap(err, "initialize logger"))
	}
	return nil
}

// loadConfig returns the loaded configuration, loading defaults when a
// command runs without the root's pre-run (as in tests).
func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.Config != nil {
		return o.Config, nil
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	o.Config = cfg
	return cfg, nil
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  o.Format,
		Verbose: o.Verbose,
		Out:     cmd.OutOrStdout(),
		Diag:    cmd.ErrOrStderr(),
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
