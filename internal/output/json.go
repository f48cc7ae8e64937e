// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package output formats the ragex CLI's machine-readable (--json) and
// compact output, leaving the human-readable path to the ui package.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	ragexerrors "github.com/kraklabs/ragex/internal/errors"
)

// JSON writes data as 2-space-indented JSON to stdout.
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as 2-space-indented JSON to w.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// JSONCompact writes data as single-line JSON to stdout, for streaming
// output where size matters more than readability.
func JSONCompact(data any) error {
	return JSONCompactTo(os.Stdout, data)
}

// JSONCompactTo writes data as single-line JSON to w.
func JSONCompactTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// ErrorJSON is the fallback --json error shape for a plain error that
// carries no structured context; Code is left for a caller to fill in
// when it has one (os.IsNotExist, a wrapped syscall errno, ...).
type ErrorJSON struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSONError writes err as JSON to stderr. A *ragexerrors.UserError
// encodes with its full Cause/Fix/Kind/ExitCode via its own ToJSON, so
// --json callers see the same structured error either a command handler
// or FatalError would have produced; any other error falls back to the
// bare ErrorJSON shape.
func JSONError(err error) error {
	return JSONErrorTo(os.Stderr, err)
}

// JSONErrorTo writes err as JSON to w.
func JSONErrorTo(w io.Writer, err error) error {
	var payload any
	if ue, ok := err.(*ragexerrors.UserError); ok {
		payload = ue.ToJSON()
	} else {
		payload = ErrorJSON{Error: err.Error()}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(payload); encErr != nil {
		return fmt.Errorf("JSON error encoding failed: %w", encErr)
	}
	return nil
}
