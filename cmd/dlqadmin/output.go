package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for dlqadmin commands.
const (
	exitSuccess      = 0
	exitFailure      = 1 // the API call reached the server but failed domain-side
	exitCommandError = 2 // bad flags, unreachable server, malformed response
)

// exitError carries a specific process exit code out of a RunE.
type exitError struct {
	Code    int
	Message string
	Err     error
}

func (e *exitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *exitError) Unwrap() error {
	return e.Err
}

func newExitError(code int, message string) *exitError {
	return &exitError{Code: code, Message: message}
}

func wrapExitError(code int, message string, err error) *exitError {
	return &exitError{Code: code, Message: message, Err: err}
}

// getExitCode extracts the exit code from an error, defaulting to
// exitFailure for anything that isn't an *exitError.
func getExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.Code
	}

	return exitFailure
}

// outputFormatter renders command results as JSON or as plain text.
type outputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// cliResponse is the JSON envelope for --format json output.
type cliResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *cliError   `json:"error,omitempty"`
}

type cliError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (f *outputFormatter) success(data interface{}) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")

		return enc.Encode(cliResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)

	return nil
}

func (f *outputFormatter) errorOut(code, message string, details interface{}) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")

		return enc.Encode(cliResponse{Status: "error", Error: &cliError{Code: code, Message: message, Details: details}})
	}

	fmt.Fprintf(f.Writer, "error [%s]: %s\n", code, message)

	if f.Verbose && details != nil {
		fmt.Fprintf(f.errWriter(), "details: %v\n", details)
	}

	return nil
}

func (f *outputFormatter) verboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}

	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *outputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}

	return f.Writer
}

// reportClientError renders err through the formatter and wraps it in an
// exitError with the right process exit code: domain-level failures the
// server reported (apiError) exit 1, anything else (unreachable server,
// malformed response) exits 2.
func reportClientError(formatter *outputFormatter, err error) error {
	var apiErr *apiError

	if errors.As(err, &apiErr) {
		_ = formatter.errorOut(apiErr.Code, apiErr.Message, apiErr.Details)

		return newExitError(exitFailure, apiErr.Message)
	}

	_ = formatter.errorOut("CLIENT_ERROR", err.Error(), nil)

	return wrapExitError(exitCommandError, "request failed", err)
}
