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

// Package transaction implements multi-file atomic commit over Editor with
// best-effort rollback: batch every file's changes, commit them together,
// and record partial progress so a failure mid-batch can roll back what
// already landed.
package transaction

import (
	"fmt"

	"github.com/kraklabs/ragex/pkg/editor"
)

// FileEdit is one file's share of a Transaction.
type FileEdit struct {
	Path    string
	Changes []editor.Change
	Opts    editor.Options
}

// FileResult is one file's outcome within a Transaction.
type FileResult struct {
	Path           string
	Result         editor.Result
	Err            error
	RolledBack     bool
	RollbackFailed bool
}

// Report is Commit's return value
type Report struct {
	Status      string // "success" or "failure"
	FilesEdited int
	Results     []FileResult
	Errors      []error
	RolledBack  bool
}

// Transaction is a list of per-file edits committed with all-or-nothing
// semantics.
type Transaction struct {
	ed    *editor.Editor
	edits []FileEdit
}

// New returns a Transaction over the given file edits.
func New(ed *editor.Editor, edits []FileEdit) *Transaction {
	return &Transaction{ed: ed, edits: edits}
}

// Commit runs a three-step protocol: pre-validate every file, then apply
// edits in order, then on the first failure roll back all prior successes
// best-effort.
func (t *Transaction) Commit() Report {
	// Step 1: pre-check validation for every file before any write.
	for _, fe := range t.edits {
		if fe.Opts.Validator == nil {
			continue
		}
		content, err := editor.Preview(fe.Path, fe.Changes)
		if err != nil {
			return Report{Status: "failure", Errors: []error{err}}
		}
		issues, err := fe.Opts.Validator.Validate(content, fe.Path, fe.Opts.Language)
		if err != nil {
			return Report{Status: "failure", Errors: []error{err}}
		}
		if len(issues) > 0 {
			return Report{Status: "failure", Errors: []error{&editor.ValidationError{File: fe.Path, Errors: issues}}}
		}
	}

	// Step 2: apply each file's edit sequentially, in caller order.
	var results []FileResult
	var committed []FileResult
	var firstErr error

	for _, fe := range t.edits {
		// Step 3 restores from these backups, so every edit takes one.
		opts := fe.Opts
		opts.Backup = true
		res, err := t.ed.EditFile(fe.Path, fe.Changes, opts)
		fr := FileResult{Path: fe.Path, Result: res, Err: err}
		results = append(results, fr)
		if err != nil {
			firstErr = err
			break
		}
		committed = append(committed, fr)
	}

	if firstErr == nil {
		return Report{
			Status:      "success",
			FilesEdited: len(committed),
			Results:     results,
		}
	}

	// Step 3: best-effort rollback of every already-committed file, in
	// reverse order ( ordering guarantee).
	rolledBack := true
	for i := len(committed) - 1; i >= 0; i-- {
		fr := committed[i]
		if err := t.ed.Rollback(fr.Path, fr.Result.BackupID); err != nil {
			rolledBack = false
			for j := range results {
				if results[j].Path == fr.Path {
					results[j].RollbackFailed = true
				}
			}
			continue
		}
		for j := range results {
			if results[j].Path == fr.Path {
				results[j].RolledBack = true
			}
		}
	}

	return Report{
		Status:      "failure",
		FilesEdited: 0,
		Results:     results,
		Errors:      []error{fmt.Errorf("transaction: commit failed: %w", firstErr)},
		RolledBack:  rolledBack,
	}
}
