package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/compiler"
	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/mapping"
)

// MappingSummary describes one compiled storage map.
type MappingSummary struct {
	Domain     string `json:"domain"`
	Kind       string `json:"kind"`
	Key        string `json:"key"`
	Root       string `json:"root"`
	Attributes int    `json:"attributes"`
}

// MappingsResult is the payload of mappings validate.
type MappingsResult struct {
	Valid    bool             `json:"valid"`
	Dir      string           `json:"dir"`
	Mappings []MappingSummary `json:"mappings"`
}

func (r MappingsResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %d mapping(s) valid in %s", len(r.Mappings), r.Dir)
	for _, m := range r.Mappings {
		fmt.Fprintf(&b, "\n  %-20s %-10s %s (%d attributes, root %s)", m.Domain, m.Kind, m.Key, m.Attributes, m.Root)
	}
	return b.String()
}

// CompileErrorDetails locates a mapping compile failure.
type CompileErrorDetails struct {
	Field  string `json:"field"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// NewMappingsCommand creates the mappings command group.
func NewMappingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Work with CUE mapping files",
	}
	cmd.AddCommand(newMappingsValidateCommand(rootOpts))
	return cmd
}

func newMappingsValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [mappings-dir]",
		Short: "Compile and register every mapping file in a directory",
		Long: `Compile every .cue file under the directory and register the
resulting storage maps, reporting the first failure with its position.

The directory defaults to mapping.dir from the configuration.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMappingsValidate(rootOpts, args, cmd)
		},
	}
}

func runMappingsValidate(rootOpts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := rootOpts.formatter(cmd)

	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}
	dir := cfg.Mapping.Dir
	if len(args) == 1 {
		dir = args[0]
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, errors.Newf("mappings directory %s not found", dir), nil)
	}
	formatter.VerboseLog("Compiling mappings in %s (root %s)", dir, cfg.Mapping.Root)

	_, specs, err := loadRegistry(dir, cfg.Mapping.Root)
	if err != nil {
		return reportMappingError(formatter, err, specs)
	}

	result := MappingsResult{Valid: true, Dir: dir, Mappings: make([]MappingSummary, 0, len(specs))}
	for _, spec := range specs {
		result.Mappings = append(result.Mappings, summarize(spec))
	}
	return formatter.Success(result)
}

func summarize(spec mapping.Spec) MappingSummary {
	return MappingSummary{
		Domain:     spec.Domain,
		Kind:       string(spec.Kind),
		Key:        spec.Key,
		Root:       spec.Root,
		Attributes: len(spec.Attributes),
	}
}

// reportMappingError distinguishes compile failures and rejected
// registrations (exit 1) from directories without mapping files (exit 2).
func reportMappingError(formatter *OutputFormatter, err error, specs []mapping.Spec) error {
	var cerr *compiler.CompileError
	if errors.As(err, &cerr) {
		details := CompileErrorDetails{Field: cerr.Field}
		if cerr.Pos.IsValid() {
			details.File = cerr.Pos.Filename()
			details.Line = cerr.Pos.Line()
			details.Column = cerr.Pos.Column()
		}
		return formatter.Fail(ExitFailure, ErrCodeCompile, err, details)
	}
	if specs != nil {
		return formatter.Fail(ExitFailure, ErrCodeRegistration, err, nil)
	}
	if errors.IsInvalidRequestError(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNoFiles, err, nil)
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
}
