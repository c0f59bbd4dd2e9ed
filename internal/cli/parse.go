package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/criteria"
	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/grammar"
	"github.com/roach88/quarry/internal/transform"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	Search bool
	Order  bool
}

// ParseResult is the parse command's payload.
type ParseResult struct {
	Input      string   `json:"input"`
	Tree       string   `json:"tree"`
	Expression string   `json:"expression,omitempty"`
	Order      []string `json:"order,omitempty"`
	Criteria   string   `json:"criteria,omitempty"`
}

func (r ParseResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tree:       %s", r.Tree)
	if r.Expression != "" {
		fmt.Fprintf(&b, "\nexpression: %s", r.Expression)
	}
	if len(r.Order) > 0 {
		fmt.Fprintf(&b, "\norder:      %s", strings.Join(r.Order, ", "))
	}
	if r.Criteria != "" {
		fmt.Fprintf(&b, "\ncriteria:   %s", r.Criteria)
	}
	return b.String()
}

// ParseErrorDetails locates a parse failure for JSON output.
type ParseErrorDetails struct {
	Kind     string   `json:"kind"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Offset   int      `json:"offset"`
	Found    string   `json:"found,omitempty"`
	Expected []string `json:"expected,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <text>",
		Short: "Parse a filter, order list or search string",
		Long: `Parse query text and print its syntax tree.

By default the text is a filter expression. With --search it is a full
search string (domain, filter, order and limit); with --order it is a
comma separated order list.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Search, "search", false, "parse a full search string")
	cmd.Flags().BoolVar(&opts.Order, "order", false, "parse an order list")
	cmd.MarkFlagsMutuallyExclusive("search", "order")

	return cmd
}

func runParse(rootOpts *RootOptions, opts *ParseOptions, text string, cmd *cobra.Command) error {
	formatter := rootOpts.formatter(cmd)

	var (
		result ParseResult
		err    error
	)
	switch {
	case opts.Search:
		result, err = parseSearch(text)
	case opts.Order:
		result, err = parseOrder(text)
	default:
		result, err = parseFilter(text)
	}
	if err != nil {
		return reportParseError(formatter, err)
	}
	result.Input = text
	return formatter.Success(result)
}

func parseFilter(text string) (ParseResult, error) {
	node, err := grammar.Parse(text)
	if err != nil {
		return ParseResult{}, err
	}
	e, err := transform.Apply(node)
	if err != nil {
		return ParseResult{}, err
	}
	return ParseResult{Tree: grammar.Dump(node), Expression: e.String()}, nil
}

func parseOrder(text string) (ParseResult, error) {
	terms, err := grammar.ParseOrder(text)
	if err != nil {
		return ParseResult{}, err
	}
	order, err := transform.ApplyOrder(terms)
	if err != nil {
		return ParseResult{}, err
	}
	dumps := make([]string, len(terms))
	for i, term := range terms {
		dumps[i] = grammar.Dump(term)
	}
	return ParseResult{Tree: strings.Join(dumps, " "), Order: orderStrings(order)}, nil
}

func parseSearch(text string) (ParseResult, error) {
	search, err := grammar.ParseSearch(text)
	if err != nil {
		return ParseResult{}, err
	}
	c, err := criteria.ParseSearch(text)
	if err != nil {
		return ParseResult{}, err
	}
	result := ParseResult{
		Tree:     grammar.Dump(search),
		Order:    orderStrings(c.Ordering()),
		Criteria: c.String(),
	}
	if e := c.Expression(); e != nil {
		result.Expression = e.String()
	}
	return result, nil
}

func orderStrings(terms []expr.OrderTerm) []string {
	out := make([]string, len(terms))
	for i, term := range terms {
		out[i] = term.String()
	}
	return out
}

// reportParseError prints a parse failure with a caret under the failing
// column in text mode, or its position as details in JSON mode.
func reportParseError(formatter *OutputFormatter, err error) error {
	var perr *grammar.ParseError
	if !errors.As(err, &perr) {
		code, exit := classify(err)
		if exit == ExitCommandError {
			code, exit = ErrCodeInvalidCriteria, ExitFailure
		}
		return formatter.Fail(exit, code, err, nil)
	}

	if formatter.Format == "json" {
		return formatter.Fail(ExitFailure, ErrCodeParse, perr, ParseErrorDetails{
			Kind:     string(perr.Kind),
			Line:     perr.Position.Line,
			Column:   perr.Position.Column + 1,
			Offset:   perr.Offset(),
			Found:    perr.Found,
			Expected: perr.Expected,
		})
	}

	fmt.Fprintln(formatter.diag(), perr.FormatTerminal())
	exitErr := exitError(ExitFailure, ErrCodeParse, perr)
	exitErr.reported = true
	return exitErr
}
