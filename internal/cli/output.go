package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/krunaldodiya/tcc-manager/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (mutation failed, toggle in flight, store unavailable)
	ExitCommandError = 2 // Command error (bad flags, unknown app, invalid config)
)

// ExitError carries an exit code out of a command.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostic output (defaults to Writer)
	Verbose   bool

	warnings []string
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	OpID   string    `json:"op_id,omitempty"` // engine operation id, when any

	Warnings []string `json:"warnings,omitempty"` // precondition warnings
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // engine error code, e.g. "MUTATION_FAILED"
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is machine-readable.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result. In text mode data is printed with
// its default formatting; commands with richer text output print it
// themselves and only call Success in JSON mode.
func (f *OutputFormatter) Success(data any) error {
	return f.SuccessOp("", data)
}

// SuccessOp is Success with an operation id attached.
func (f *OutputFormatter) SuccessOp(opID string, data any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:   "ok",
			Data:     data,
			OpID:     opID,
			Warnings: f.warnings,
		})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
			Warnings: f.warnings,
		})
	}

	fmt.Fprintf(f.Writer, "%s %s\n", color.New(color.FgRed, color.Bold).Sprintf("Error [%s]:", code), message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns the ExitError the
// command should exit with. Engine errors keep their code.
func (f *OutputFormatter) Fail(exitCode int, message string, err error) error {
	code := string(engine.CodeOf(err))
	if code == "" {
		code = "COMMAND_ERROR"
	}
	var se *engine.SyncError
	var details any
	if errors.As(err, &se) {
		details = map[string]string{"path": se.Path, "service": string(se.Service)}
		if se.Err != nil {
			details = map[string]string{"path": se.Path, "service": string(se.Service), "cause": se.Err.Error()}
		}
	}
	text := message
	if err != nil {
		text = fmt.Sprintf("%s: %v", message, err)
	}
	_ = f.Error(code, text, details)
	return WrapExitError(exitCode, message, err)
}

// Warn records a warning. JSON output carries it in the response envelope;
// text output prints it to ErrWriter right away.
func (f *OutputFormatter) Warn(message string) {
	f.warnings = append(f.warnings, message)
	if !f.JSON() {
		fmt.Fprintf(f.GetErrWriter(), "%s %s\n", color.YellowString("Warning:"), message)
	}
}

// VerboseLog outputs a message only if verbose mode is enabled. It always
// goes to ErrWriter when set so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// mark renders a granted flag for text output.
func mark(granted bool) string {
	if granted {
		return color.GreenString("granted")
	}
	return color.HiBlackString("denied")
}
