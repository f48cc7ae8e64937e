// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors gives the ragex CLI the same kind-tagged error shape
// pkg/dispatch uses for tool calls: every failure carries a Kind string
// alongside the human-facing Message/Cause/Fix, so --json output and the
// MCP Envelope.Error use the same vocabulary ("config_error",
// "validation_error", "internal_error", ...) even though the CLI's
// UserError additionally carries a process ExitCode that a tool-call
// envelope has no use for.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	ExitSuccess    = 0
	ExitConfig     = 1
	ExitDatabase   = 2
	ExitNetwork    = 3
	ExitInput      = 4
	ExitPermission = 5
	ExitNotFound   = 6
	// ExitInternal signals "this is a bug that should be reported".
	ExitInternal = 10
)

// Kind strings, one per constructor below. validation_error, not_found, and
// internal_error intentionally match the vocabulary pkg/dispatch's
// ErrorEnvelope.Kind already uses for MCP tool failures.
const (
	KindConfig     = "config_error"
	KindDatabase   = "database_error"
	KindNetwork    = "network_error"
	KindValidation = "validation_error"
	KindPermission = "permission_error"
	KindNotFound   = "not_found"
	KindInternal   = "internal_error"
)

// UserError is a CLI failure with the context needed to tell a user what
// went wrong, why, and how to fix it. Kind is a stable machine-readable
// tag (see the Kind* constants); ExitCode is the process exit status
// FatalError uses; Err optionally wraps the underlying cause for
// errors.Is/errors.As.
type UserError struct {
	Message  string
	Cause    string
	Fix      string
	Kind     string
	ExitCode int
	Err      error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewConfigError reports a missing, invalid, or malformed configuration
// file or value.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindConfig, ExitCode: ExitConfig, Err: err}
}

// NewDatabaseError reports a failure opening, reading, or writing the
// persistence store: locked file, corruption, failed transaction.
func NewDatabaseError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindDatabase, ExitCode: ExitDatabase, Err: err}
}

// NewNetworkError reports a failed connection to an external service,
// most often an embedding provider API.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindNetwork, ExitCode: ExitNetwork, Err: err}
}

// NewInputError reports invalid command-line arguments or other input
// that fails validation before any work starts; these never wrap an
// underlying error since there is nothing beneath a validation failure.
func NewInputError(msg, cause, fix string) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindValidation, ExitCode: ExitInput}
}

// NewPermissionError reports insufficient filesystem or OS permissions.
func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindPermission, ExitCode: ExitPermission, Err: err}
}

// NewNotFoundError reports a requested project, file, or entity that
// does not exist in the index.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindNotFound, ExitCode: ExitNotFound}
}

// NewInternalError reports a bug: an assertion failure, an unexpected
// nil, or any other condition the program should never reach.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, Kind: KindInternal, ExitCode: ExitInternal, Err: err}
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for terminal display: a red "Error:" line,
// then Cause/Fix lines when set. Respects NO_COLOR and the noColor
// argument by saving and restoring the package-global color.NoColor
// around the call, since that state is otherwise process-wide.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON is UserError's --json output shape; Kind lines up with
// pkg/dispatch.ErrorEnvelope.Kind so scripts that already parse one can
// parse the other the same way.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	Kind     string `json:"kind,omitempty"`
	ExitCode int    `json:"exit_code"`
}

func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		Kind:     e.Kind,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints err (colored Format or --json, per jsonOutput) and
// exits with its ExitCode. A non-UserError prints a bare message and
// exits ExitInternal, since anything reaching the CLI's top level
// unwrapped is itself a bug. Never returns when err is non-nil.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
