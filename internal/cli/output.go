package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/quarry/internal/errors"
)

// Process exit statuses.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // query or mappings rejected, or a required result was empty
	ExitCommandError = 2 // missing paths, bad config, storage unavailable
)

// Error codes reported in both output formats.
const (
	ErrCodeGeneric         = "E001"
	ErrCodeParse           = "E002" // query text does not parse
	ErrCodeNoFiles         = "E003" // no .cue files in the mappings dir
	ErrCodeCompile         = "E004" // mapping file does not compile
	ErrCodeNotFound        = "E005" // path not found
	ErrCodeConfig          = "E006"
	ErrCodeStorage         = "E007" // storage could not be opened or read
	ErrCodeInvalidCriteria = "E101"
	ErrCodeInvalidDomain   = "E102"
	ErrCodeUnknownEntity   = "E103" // domain has no storage map
	ErrCodeUnknownAttr     = "E104" // attribute has no mapping entry
	ErrCodeCrossRoot       = "E105" // storage map owned by another root
	ErrCodeEmptyResult     = "E106" // result required but empty
	ErrCodeRegistration    = "E107" // mapping registration rejected
)

// ExitError is returned by a command to choose the process exit status.
type ExitError struct {
	Status  int
	ErrCode string // empty for failures outside the E-code table
	Err     error

	reported bool
}

func (e *ExitError) Error() string {
	if e.ErrCode == "" {
		return e.Err.Error()
	}
	return e.ErrCode + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitError(status int, code string, err error) *ExitError {
	return &ExitError{Status: status, ErrCode: code, Err: err}
}

// ExitStatus returns the status the process should exit with for err.
// Errors that carry no ExitError exit with ExitFailure.
func ExitStatus(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Status
	}
	return ExitFailure
}

// Reported reports whether err has already been written by a formatter.
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.reported
}

// Response is the JSON envelope every command writes with --format json.
type Response struct {
	Status string     `json:"status"` // ok | error
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed command.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as a JSON Response.
type OutputFormatter struct {
	Format  string
	Verbose bool
	Out     io.Writer
	Diag    io.Writer // verbose and terminal diagnostics; nil means Out
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp Response) error {
	return json.NewEncoder(f.Out).Encode(resp)
}

// Success writes data. Text output relies on data's String method.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Out, data)
	return err
}

// Error writes a failure. Text output shows details only when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(Response{
			Status: "error",
			Error:  &ErrorBody{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Out, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Out, "Details: %v\n", details)
	}
	return nil
}

// Fail writes err under code and returns the ExitError the command
// should return.
func (f *OutputFormatter) Fail(status int, code string, err error, details any) error {
	_ = f.Error(code, err.Error(), details)
	exitErr := exitError(status, code, err)
	exitErr.reported = true
	return exitErr
}

// VerboseLog writes a diagnostic line when verbose. Diagnostics never go
// to Out in JSON mode unless Diag is unset.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.diag(), format+"\n", args...)
	}
}

func (f *OutputFormatter) diag() io.Writer {
	if f.Diag != nil {
		return f.Diag
	}
	return f.Out
}

// classify maps a query failure to its error code and exit status.
func classify(err error) (code string, status int) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return ErrCodeEmptyResult, ExitFailure
	case errors.Is(err, errors.ErrCrossRoot):
		return ErrCodeCrossRoot, ExitFailure
	case errors.Is(err, errors.ErrUnknownAttribute):
		return ErrCodeUnknownAttr, ExitFailure
	case errors.Is(err, errors.ErrUnknownEntity):
		return ErrCodeUnknownEntity, ExitFailure
	case errors.Is(err, errors.ErrInvalidDomain):
		return ErrCodeInvalidDomain, ExitFailure
	case errors.Is(err, errors.ErrInvalidCriteria), errors.Is(err, errors.ErrInvalidRequest):
		return ErrCodeInvalidCriteria, ExitFailure
	default:
		return ErrCodeStorage, ExitCommandError
	}
}
