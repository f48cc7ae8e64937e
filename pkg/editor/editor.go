// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package editor

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/ragex/pkg/backup"
)

// Validator is the per-language syntax-check collaborator.
// A nil Validator is treated as NoValidator.
type Validator interface {
	Validate(content, path, language string) ([]Issue, error)
}

// Formatter is the per-language code-formatting collaborator.
// Formatter errors are logged but never fail the enclosing edit.
type Formatter interface {
	Format(path string) error
}

// Options tunes a single edit_file call.
type Options struct {
	Backup      bool // false (the zero value) skips the pre-write snapshot
	Validator   Validator
	Formatter   Formatter
	Language    string
	CompressBackup bool
}

// Result is edit_file's success payload
type Result struct {
	Path                string
	BackupID            string
	ChangesApplied      int
	LinesChanged        int
	ValidationPerformed bool
}

// Editor applies Change lists to single files atomically.
type Editor struct {
	vault  *backup.Vault
	logger *slog.Logger
}

// New returns an Editor backed by vault for pre-write snapshots.
func New(vault *backup.Vault, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{vault: vault, logger: logger}
}

// EditFile applies changes to path six-step protocol. A path that does not
// yet exist is allowed only when every change is an Insert (the
// move_function refactor's "target file may not pre-exist" case): the
// file is then created from an empty starting point, with no backup to
// take and no prior mtime to race against.
func (ed *Editor) EditFile(path string, changes []Change, opts Options) (Result, error) {
	original, readErr := os.ReadFile(path)
	fileExisted := readErr == nil
	if readErr != nil {
		if !os.IsNotExist(readErr) || !allInserts(changes) {
			return Result{}, fmt.Errorf("editor: read %s: %w", path, readErr)
		}
		original = nil
	}

	var capturedMTime time.Time
	var perm os.FileMode = 0o644
	if fileExisted {
		info, err := os.Stat(path)
		if err != nil {
			return Result{}, fmt.Errorf("editor: stat %s: %w", path, err)
		}
		capturedMTime = info.ModTime()
		perm = info.Mode().Perm()
	}

	var backupID string
	if fileExisted && optBackupDefault(opts) {
		entry, err := ed.vault.Create(path, backup.Options{Compress: opts.CompressBackup})
		if err != nil {
			return Result{}, fmt.Errorf("editor: backup %s: %w", path, err)
		}
		backupID = entry.ID
	}

	lines := splitLines(string(original))
	sorted := append([]Change(nil), changes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].startLine() > sorted[j].startLine() })

	linesChanged := 0
	for _, c := range sorted {
		n, err := applyChange(&lines, c)
		if err != nil {
			if oor, ok := err.(*OutOfRangeError); ok {
				oor.File = path
			}
			return Result{}, err
		}
		linesChanged += n
	}
	newContent := strings.Join(lines, "\n")
	if strings.HasSuffix(string(original), "\n") && !strings.HasSuffix(newContent, "\n") {
		newContent += "\n"
	}

	validationPerformed := false
	if opts.Validator != nil {
		validationPerformed = true
		issues, err := opts.Validator.Validate(newContent, path, opts.Language)
		if err != nil {
			return Result{}, fmt.Errorf("editor: validate %s: %w", path, err)
		}
		if len(issues) > 0 {
			return Result{}, &ValidationError{File: path, Errors: issues}
		}
	}

	if !fileExisted {
		if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
			return Result{}, fmt.Errorf("editor: mkdir %s: %w", path, err)
		}
	}

	tmp := path + ".ragex.tmp"
	if err := os.WriteFile(tmp, []byte(newContent), perm); err != nil {
		return Result{}, fmt.Errorf("editor: write %s: %w", tmp, err)
	}

	if fileExisted {
		current, statErr := os.Stat(path)
		if statErr != nil {
			os.Remove(tmp)
			return Result{}, &FileDeletedError{File: path}
		}
		if !current.ModTime().Equal(capturedMTime) {
			os.Remove(tmp)
			return Result{}, &ConcurrentModificationError{File: path}
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Result{}, fmt.Errorf("editor: rename %s: %w", tmp, err)
	}

	if opts.Formatter != nil {
		if err := opts.Formatter.Format(path); err != nil {
			ed.logger.Warn("editor.format.failed", "path", path, "err", err)
		}
	}

	return Result{
		Path:                path,
		BackupID:            backupID,
		ChangesApplied:      len(changes),
		LinesChanged:        linesChanged,
		ValidationPerformed: validationPerformed,
	}, nil
}

// Preview computes what path's content would become after applying
// changes, without writing or backing up anything. Transaction uses this
// for its pre-commit validation pass ( step 1: any file
// failing validation aborts the whole commit before any writes happen).
func Preview(path string, changes []Change) (string, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("editor: read %s: %w", path, err)
	}
	lines := splitLines(string(original))
	sorted := append([]Change(nil), changes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].startLine() > sorted[j].startLine() })
	for _, c := range sorted {
		if _, err := applyChange(&lines, c); err != nil {
			if oor, ok := err.(*OutOfRangeError); ok {
				oor.File = path
			}
			return "", err
		}
	}
	newContent := strings.Join(lines, "\n")
	if strings.HasSuffix(string(original), "\n") && !strings.HasSuffix(newContent, "\n") {
		newContent += "\n"
	}
	return newContent, nil
}

// Rollback restores path from the chosen backup (or most recent when id
// is "").
func (ed *Editor) Rollback(path, backupID string) error {
	content, err := ed.vault.Restore(path, backupID)
	if err != nil {
		return fmt.Errorf("editor: rollback %s: %w", path, err)
	}
	tmp := path + ".ragex.rollback.tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("editor: rollback write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("editor: rollback rename %s: %w", tmp, err)
	}
	return nil
}

func optBackupDefault(opts Options) bool {
	return opts.Backup
}

func allInserts(changes []Change) bool {
	if len(changes) == 0 {
		return false
	}
	for _, c := range changes {
		if c.Kind != Insert {
			return false
		}
	}
	return true
}

func dirOf(path string) string {
	idx := strings.LastIndexAny(path, "/\\")
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

func applyChange(lines *[]string, c Change) (int, error) {
	n := len(*lines)
	switch c.Kind {
	case Replace:
		if c.LineStart < 1 || c.LineEnd < c.LineStart || c.LineEnd > n {
			return 0, &OutOfRangeError{Requested: fmt.Sprintf("%d-%d", c.LineStart, c.LineEnd), Bounds: fmt.Sprintf("1-%d", n)}
		}
		replacement := splitLines(c.Content)
		if c.Content == "" {
			replacement = []string{""}
		}
		out := make([]string, 0, n-((c.LineEnd-c.LineStart+1))+len(replacement))
		out = append(out, (*lines)[:c.LineStart-1]...)
		out = append(out, replacement...)
		out = append(out, (*lines)[c.LineEnd:]...)
		*lines = out
		return c.LineEnd - c.LineStart + 1, nil
	case Insert:
		if c.BeforeLine < 1 || c.BeforeLine > n+1 {
			return 0, &OutOfRangeError{Requested: fmt.Sprintf("%d", c.BeforeLine), Bounds: fmt.Sprintf("1-%d", n+1)}
		}
		inserted := splitLines(c.Content)
		out := make([]string, 0, n+len(inserted))
		out = append(out, (*lines)[:c.BeforeLine-1]...)
		out = append(out, inserted...)
		out = append(out, (*lines)[c.BeforeLine-1:]...)
		*lines = out
		return len(inserted), nil
	case Delete:
		if c.LineStart < 1 || c.LineEnd < c.LineStart || c.LineEnd > n {
			return 0, &OutOfRangeError{Requested: fmt.Sprintf("%d-%d", c.LineStart, c.LineEnd), Bounds: fmt.Sprintf("1-%d", n)}
		}
		out := make([]string, 0, n-(c.LineEnd-c.LineStart+1))
		out = append(out, (*lines)[:c.LineStart-1]...)
		out = append(out, (*lines)[c.LineEnd:]...)
		*lines = out
		return c.LineEnd - c.LineStart + 1, nil
	default:
		return 0, fmt.Errorf("editor: unknown change kind %v", c.Kind)
	}
}
