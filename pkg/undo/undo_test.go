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

package undo

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPushAndListRoundTrip(t *testing.T) {
	log := New(t.TempDir())

	id, err := log.Push("rename_function", map[string]any{"from": "Foo", "to": "Bar"},
		[]string{"a.go"}, map[string]string{"a.go": "old content"}, nil, Success)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if id == "" {
		t.Fatal("Push returned empty id")
	}

	entries, err := log.List(0, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(entries))
	}
	if entries[0].ID != id {
		t.Errorf("entries[0].ID = %q, want %q", entries[0].ID, id)
	}
	if entries[0].OperationKind != "rename_function" {
		t.Errorf("OperationKind = %q", entries[0].OperationKind)
	}
}

func TestUndoRestoresSnapshotContent(t *testing.T) {
	dir := t.TempDir()
	targetPath := filepath.Join(dir, "a.go")
	if err := os.WriteFile(targetPath, []byte("new content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	log := New(t.TempDir())
	if _, err := log.Push("rename_function", nil, []string{targetPath},
		map[string]string{targetPath: "old content"}, nil, Success); err != nil {
		t.Fatalf("Push: %v", err)
	}

	entry, err := log.Undo()
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !entry.Undone {
		t.Error("Undo returned an entry not marked Undone")
	}

	content, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "old content" {
		t.Errorf("file content after Undo = %q, want %q", content, "old content")
	}
}

func TestUndoRemovesCreatedFiles(t *testing.T) {
	dir := t.TempDir()
	createdPath := filepath.Join(dir, "new_file.go")
	if err := os.WriteFile(createdPath, []byte("package auth"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	log := New(t.TempDir())
	if _, err := log.Push("move_function", nil, []string{createdPath}, nil, []string{createdPath}, Success); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if _, err := log.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if _, err := os.Stat(createdPath); !os.IsNotExist(err) {
		t.Error("created file still exists after Undo")
	}
}

func TestUndoSkipsAlreadyUndoneEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	os.WriteFile(path, []byte("v2"), 0o644)

	log := New(t.TempDir())
	log.Push("op1", nil, []string{path}, map[string]string{path: "v1"}, nil, Success)
	time.Sleep(10 * time.Millisecond)
	log.Push("op2", nil, []string{path}, map[string]string{path: "v2_before"}, nil, Success)

	if _, err := log.Undo(); err != nil {
		t.Fatalf("first Undo: %v", err)
	}
	if _, err := log.Undo(); err != nil {
		t.Fatalf("second Undo: %v", err)
	}
	if _, err := log.Undo(); err == nil {
		t.Error("third Undo on a fully-undone log returned nil error")
	}
}

func TestUndoEmptyLogErrors(t *testing.T) {
	log := New(t.TempDir())
	if _, err := log.Undo(); err == nil {
		t.Error("Undo on an empty log returned nil error")
	}
}

func TestRedoFindsMostRecentlyUndoneEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	os.WriteFile(path, []byte("v1"), 0o644)

	log := New(t.TempDir())
	id, _ := log.Push("op1", map[string]any{"x": 1}, []string{path}, map[string]string{path: "v0"}, nil, Success)
	if _, err := log.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	redone, err := log.Redo()
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if redone.ID != id {
		t.Errorf("Redo returned id %q, want %q", redone.ID, id)
	}
}

func TestRedoWithNoUndoneEntriesErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	os.WriteFile(path, []byte("v1"), 0o644)

	log := New(t.TempDir())
	log.Push("op1", nil, []string{path}, map[string]string{path: "v0"}, nil, Success)

	if _, err := log.Redo(); err == nil {
		t.Error("Redo with no undone entries returned nil error")
	}
}

func TestListExcludesUndoneByDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	os.WriteFile(path, []byte("v1"), 0o644)

	log := New(t.TempDir())
	log.Push("op1", nil, []string{path}, map[string]string{path: "v0"}, nil, Success)
	log.Undo()

	active, err := log.List(0, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("List(includeUndone=false) = %d entries, want 0", len(active))
	}

	all, err := log.List(0, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("List(includeUndone=true) = %d entries, want 1", len(all))
	}
}

func TestListRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	log := New(t.TempDir())
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, "a.go")
		os.WriteFile(path, []byte("v"), 0o644)
		log.Push("op", nil, []string{path}, map[string]string{path: "v"}, nil, Success)
		time.Sleep(10 * time.Millisecond)
	}

	entries, err := log.List(2, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("List(limit=2) = %d entries, want 2", len(entries))
	}
}

func TestClearPrunesOldestEntries(t *testing.T) {
	dir := t.TempDir()
	log := New(t.TempDir())
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, "a.go")
		os.WriteFile(path, []byte("v"), 0o644)
		log.Push("op", nil, []string{path}, map[string]string{path: "v"}, nil, Success)
		time.Sleep(10 * time.Millisecond)
	}

	if err := log.Clear(2); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	remaining, err := log.List(0, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("after Clear(keepLast=2), %d entries remain, want 2", len(remaining))
	}
}
