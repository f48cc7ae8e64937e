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
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/ragex/pkg/backup"
)

func newTestEditor(t *testing.T) *Editor {
	t.Helper()
	return New(backup.New(t.TempDir()), nil)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestEditFileReplace(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "line1\nline2\nline3\n")

	ed := newTestEditor(t)
	res, err := ed.EditFile(path, []Change{{Kind: Replace, LineStart: 2, LineEnd: 2, Content: "replaced"}}, Options{Backup: true})
	if err != nil {
		t.Fatalf("EditFile: %v", err)
	}
	if res.BackupID == "" {
		t.Error("Result.BackupID empty though Backup: true")
	}

	content, _ := os.ReadFile(path)
	if string(content) != "line1\nreplaced\nline3\n" {
		t.Errorf("content after Replace = %q", content)
	}
}

func TestEditFileInsert(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "line1\nline2\n")

	ed := newTestEditor(t)
	_, err := ed.EditFile(path, []Change{{Kind: Insert, BeforeLine: 2, Content: "inserted"}}, Options{})
	if err != nil {
		t.Fatalf("EditFile: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "line1\ninserted\nline2\n" {
		t.Errorf("content after Insert = %q", content)
	}
}

func TestEditFileDelete(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "line1\nline2\nline3\n")

	ed := newTestEditor(t)
	_, err := ed.EditFile(path, []Change{{Kind: Delete, LineStart: 2, LineEnd: 2}}, Options{})
	if err != nil {
		t.Fatalf("EditFile: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "line1\nline3\n" {
		t.Errorf("content after Delete = %q", content)
	}
}

func TestEditFileCreatesNewFileFromInsertsOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "new.go")

	ed := newTestEditor(t)
	res, err := ed.EditFile(path, []Change{{Kind: Insert, BeforeLine: 1, Content: "package auth"}}, Options{})
	if err != nil {
		t.Fatalf("EditFile on non-existent path: %v", err)
	}
	if res.BackupID != "" {
		t.Error("newly created file should have no BackupID")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "package auth" {
		t.Errorf("content = %q", content)
	}
}

func TestEditFileRejectsOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "line1\n")

	ed := newTestEditor(t)
	_, err := ed.EditFile(path, []Change{{Kind: Replace, LineStart: 5, LineEnd: 5, Content: "x"}}, Options{})
	if err == nil {
		t.Fatal("EditFile with out-of-range lines returned nil error")
	}
	if _, ok := err.(*OutOfRangeError); !ok {
		t.Errorf("error type = %T, want *OutOfRangeError", err)
	}
}

type stubValidator struct {
	issues []Issue
	err    error
}

func (v stubValidator) Validate(content, path, language string) ([]Issue, error) {
	return v.issues, v.err
}

func TestEditFileValidationFailureBlocksWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "line1\n")

	ed := newTestEditor(t)
	_, err := ed.EditFile(path, []Change{{Kind: Replace, LineStart: 1, LineEnd: 1, Content: "bad"}},
		Options{Validator: stubValidator{issues: []Issue{{Message: "syntax error"}}}})
	if err == nil {
		t.Fatal("EditFile with failing validator returned nil error")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("error type = %T, want *ValidationError", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "line1\n" {
		t.Error("file was written despite a failing validation")
	}
}

func TestPreviewDoesNotWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "line1\nline2\n")

	preview, err := Preview(path, []Change{{Kind: Replace, LineStart: 1, LineEnd: 1, Content: "changed"}})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview != "changed\nline2\n" {
		t.Errorf("Preview = %q", preview)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "line1\nline2\n" {
		t.Error("Preview modified the file on disk")
	}
}

func TestRollbackRestoresBackup(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "original\n")

	ed := newTestEditor(t)
	res, err := ed.EditFile(path, []Change{{Kind: Replace, LineStart: 1, LineEnd: 1, Content: "modified"}}, Options{Backup: true})
	if err != nil {
		t.Fatalf("EditFile: %v", err)
	}

	if err := ed.Rollback(path, res.BackupID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "original\n" {
		t.Errorf("content after Rollback = %q, want %q", content, "original\n")
	}
}
