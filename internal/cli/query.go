package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/criteria"
	"github.com/roach88/quarry/internal/entity"
	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/logger"
	"github.com/roach88/quarry/internal/mapper"
	"github.com/roach88/quarry/internal/repository"
	"github.com/roach88/quarry/internal/storage"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	Page     int
	PerPage  int
	Mode     string // "" | first | last | all
	Require  bool
	Mappings string
	Storage  string
}

// QueryOutput is the query command's payload.
type QueryOutput struct {
	QueryID  string           `json:"query_id"`
	Criteria string           `json:"criteria"`
	Shape    string           `json:"shape"` // collection | entity | not_found
	Page     int              `json:"page,omitempty"`
	PerPage  int              `json:"per_page,omitempty"`
	Total    int              `json:"total"`
	Pages    int              `json:"pages"`
	Items    []map[string]any `json:"items"`

	lines []string
}

func (o QueryOutput) String() string {
	var b strings.Builder
	switch o.Shape {
	case "not_found":
		fmt.Fprintf(&b, "no match for %s", o.Criteria)
	case "entity":
		b.WriteString(strings.Join(o.lines, "\n"))
	default:
		if o.PerPage > 0 {
			fmt.Fprintf(&b, "page %d/%d (per_page %d, total %d)", o.Page, o.Pages, o.PerPage, o.Total)
		} else {
			fmt.Fprintf(&b, "all results (total %d)", o.Total)
		}
		for _, line := range o.lines {
			b.WriteString("\n  ")
			b.WriteString(line)
		}
	}
	return b.String()
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <search>",
		Short: "Run a search against the configured storage",
		Long: `Run a search string such as

  blog.post filter views > 10 order id desc limit 50

against the storage named by storage.kind, resolving attributes through
the CUE mappings in mapping.dir.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number (1-based)")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", 0, "page size (defaults to query.per_page)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "result mode: first, last or all")
	cmd.Flags().BoolVar(&opts.Require, "require", false, "fail when nothing matches")
	cmd.Flags().StringVar(&opts.Mappings, "mappings", "", "mappings directory (overrides mapping.dir)")
	cmd.Flags().StringVar(&opts.Storage, "storage", "", "storage kind (overrides storage.kind)")

	return cmd
}

func runQuery(ctx context.Context, rootOpts *RootOptions, opts *QueryOptions, text string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := rootOpts.formatter(cmd)

	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}
	storageCfg := cfg.Storage
	if opts.Storage != "" {
		storageCfg.Kind = opts.Storage
	}
	dir := cfg.Mapping.Dir
	if opts.Mappings != "" {
		dir = opts.Mappings
	}

	reg, specs, err := loadRegistry(dir, cfg.Mapping.Root)
	if err != nil {
		return reportMappingError(formatter, err, specs)
	}
	formatter.VerboseLog("Loaded %d mapping(s) from %s", len(specs), dir)

	backend, kind, closeFn, err := openBackend(storageCfg)
	if err != nil {
		code, exit := ErrCodeStorage, ExitCommandError
		if errors.IsInvalidRequestError(err) {
			code = ErrCodeConfig
		}
		return formatter.Fail(exit, code, err, nil)
	}
	defer closeBackend(logger.Named("query"), closeFn)

	queryID := repository.UUIDv7Generator{}.Generate()
	repo, err := repository.New(repository.Options{
		Mapper:         mapper.New(cfg.Mapping.Root, reg),
		Kind:           kind,
		Backends:       storage.NewResolver(backend),
		Logger:         logger.Named("query"),
		IDs:            repository.NewFixedGenerator(queryID),
		DefaultPerPage: cfg.Query.PerPage,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}

	c, err := repo.Criteria(text)
	if err != nil {
		return reportParseError(formatter, err)
	}
	if err := applyQueryOptions(c, opts); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidCriteria, err, nil)
	}

	out, err := repo.Query(ctx, c)
	if err != nil {
		code, exit := classify(err)
		return formatter.Fail(exit, code, err, nil)
	}

	result, err := buildQueryOutput(ctx, out)
	if err != nil {
		code, exit := classify(err)
		return formatter.Fail(exit, code, err, nil)
	}
	result.QueryID = queryID
	result.Criteria = c.String()
	return formatter.Success(result)
}

func applyQueryOptions(c *criteria.Criteria, opts *QueryOptions) error {
	switch opts.Mode {
	case "":
	case "first":
		c.First()
	case "last":
		c.Last()
	case "all":
		c.All()
	default:
		return errors.NewInvalidRequestError("unknown mode %q: must be first, last or all", opts.Mode)
	}
	if opts.Page != 0 {
		c.Page(opts.Page)
	}
	if opts.PerPage != 0 {
		c.PerPage(opts.PerPage)
	}
	if opts.Require {
		c.ErrorOnEmptyDataset()
	}
	return c.Err()
}

func buildQueryOutput(ctx context.Context, out any) (QueryOutput, error) {
	result := QueryOutput{Items: []map[string]any{}}
	switch v := out.(type) {
	case entity.Entity:
		if !entity.IsPresent(v) {
			result.Shape = "not_found"
			return result, nil
		}
		result.Shape = "entity"
		result.Total, result.Pages = 1, 1
		result.add(v)
	case *repository.Collection:
		items, err := v.Items(ctx)
		if err != nil {
			return result, err
		}
		if result.Total, err = v.TotalCount(ctx); err != nil {
			return result, err
		}
		if result.Pages, err = v.TotalPages(ctx); err != nil {
			return result, err
		}
		result.Shape = "collection"
		result.Page = v.CurrentPage()
		result.PerPage = v.PageSize()
		for _, item := range items {
			result.add(item)
		}
	default:
		return result, errors.Newf("query returned %T", out)
	}
	return result, nil
}

type attributed interface {
	Attributes() map[string]any
}

func (o *QueryOutput) add(ent entity.Entity) {
	attrs := map[string]any{}
	if a, ok := ent.(attributed); ok {
		attrs = a.Attributes()
	}
	o.Items = append(o.Items, attrs)
	o.lines = append(o.lines, fmt.Sprint(ent))
}
