package grammar

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// ErrorKind categorizes parse failures.
type ErrorKind string

const (
	ErrorKindLexical ErrorKind = "lexical" // Unexpected character or bad literal
	ErrorKindSyntax  ErrorKind = "syntax"  // Token sequence does not match the grammar
)

// ParseError reports malformed query text. It is never recovered from.
type ParseError struct {
	Kind     ErrorKind
	Input    string   // Full text being parsed
	Position Position // Where the failure was detected
	Found    string   // Offending text, empty at end of input
	Expected []string // What the parser would have accepted
	Message  string
}

// Error renders a single-line plain message.
func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parse error at line %d, column %d: %s", e.Position.Line, e.Position.Column+1, e.Message)
	if len(e.Expected) > 0 {
		fmt.Fprintf(&b, " (expected %s)", strings.Join(e.Expected, ", "))
	}
	return b.String()
}

// Offset returns the byte offset of the failure.
func (e *ParseError) Offset() int {
	return e.Position.Offset
}

// FormatTerminal renders the error with the offending line and a caret
// under the failure column, colored for a terminal.
func (e *ParseError) FormatTerminal() string {
	lines := strings.Split(e.Input, "\n")
	line := ""
	if idx := e.Position.Line - 1; idx >= 0 && idx < len(lines) {
		line = lines[idx]
	}

	var b strings.Builder
	b.WriteString(pterm.Red(e.Message))
	b.WriteString("\n\n  ")
	b.WriteString(line)
	b.WriteString("\n  ")
	b.WriteString(strings.Repeat(" ", e.Position.Column))
	b.WriteString(pterm.LightRed("^"))
	if e.Found != "" {
		fmt.Fprintf(&b, "\n\n%s %q", pterm.Yellow("Found:"), e.Found)
	}
	if len(e.Expected) > 0 {
		fmt.Fprintf(&b, "\n%s %s", pterm.Green("Expected:"), strings.Join(e.Expected, ", "))
	}
	return b.String()
}

func newParseError(kind ErrorKind, input string, offset int, found string, expected []string, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:     kind,
		Input:    input,
		Position: PositionAt(input, offset),
		Found:    found,
		Expected: expected,
		Message:  fmt.Sprintf(format, args...),
	}
}
