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

package transaction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/ragex/pkg/backup"
	"github.com/kraklabs/ragex/pkg/editor"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestCommitAppliesAllFilesOnSuccess(t *testing.T) {
	dir := t.TempDir()
	pathA := writeFile(t, dir, "a.go", "line1\n")
	pathB := writeFile(t, dir, "b.go", "line1\n")

	ed := editor.New(backup.New(t.TempDir()), nil)
	tx := New(ed, []FileEdit{
		{Path: pathA, Changes: []editor.Change{{Kind: editor.Replace, LineStart: 1, LineEnd: 1, Content: "a-changed"}}},
		{Path: pathB, Changes: []editor.Change{{Kind: editor.Replace, LineStart: 1, LineEnd: 1, Content: "b-changed"}}},
	})

	report := tx.Commit()
	if report.Status != "success" {
		t.Fatalf("Commit status = %q, want success (errors: %v)", report.Status, report.Errors)
	}
	if report.FilesEdited != 2 {
		t.Errorf("FilesEdited = %d, want 2", report.FilesEdited)
	}

	contentA, _ := os.ReadFile(pathA)
	contentB, _ := os.ReadFile(pathB)
	if string(contentA) != "a-changed\n" || string(contentB) != "b-changed\n" {
		t.Errorf("contents after commit = %q, %q", contentA, contentB)
	}
}

func TestCommitRollsBackOnMidBatchFailure(t *testing.T) {
	dir := t.TempDir()
	pathA := writeFile(t, dir, "a.go", "original-a\n")
	missing := filepath.Join(dir, "does_not_exist.go")

	ed := editor.New(backup.New(t.TempDir()), nil)
	tx := New(ed, []FileEdit{
		{Path: pathA, Changes: []editor.Change{{Kind: editor.Replace, LineStart: 1, LineEnd: 1, Content: "a-changed"}}},
		{Path: missing, Changes: []editor.Change{{Kind: editor.Replace, LineStart: 1, LineEnd: 1, Content: "x"}}},
	})

	report := tx.Commit()
	if report.Status != "failure" {
		t.Fatalf("Commit status = %q, want failure", report.Status)
	}
	if !report.RolledBack {
		t.Error("RolledBack = false, want true after a mid-batch failure")
	}

	contentA, _ := os.ReadFile(pathA)
	if string(contentA) != "original-a\n" {
		t.Errorf("file a.go was not rolled back to its original content: %q", contentA)
	}
}

func TestCommitPreValidatesBeforeAnyWrite(t *testing.T) {
	dir := t.TempDir()
	pathA := writeFile(t, dir, "a.go", "line1\n")
	pathB := writeFile(t, dir, "b.go", "line1\n")

	ed := editor.New(backup.New(t.TempDir()), nil)
	tx := New(ed, []FileEdit{
		{Path: pathA, Changes: []editor.Change{{Kind: editor.Replace, LineStart: 1, LineEnd: 1, Content: "a-changed"}}},
		{
			Path:    pathB,
			Changes: []editor.Change{{Kind: editor.Replace, LineStart: 1, LineEnd: 1, Content: "b-changed"}},
			Opts:    editor.Options{Validator: failingValidator{}},
		},
	})

	report := tx.Commit()
	if report.Status != "failure" {
		t.Fatalf("Commit status = %q, want failure", report.Status)
	}

	contentA, _ := os.ReadFile(pathA)
	if string(contentA) != "line1\n" {
		t.Error("pre-validation should have aborted the commit before any file was written")
	}
}

type failingValidator struct{}

func (failingValidator) Validate(content, path, language string) ([]editor.Issue, error) {
	return []editor.Issue{{Message: "syntax error"}}, nil
}
