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

package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/ragex/pkg/entity"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestClassifyNewFileNeverTracked(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.go", "package auth")

	tr := New()
	result := tr.Classify(path)
	if result.Class != NewFile {
		t.Errorf("Classify = %v, want NewFile", result.Class)
	}
}

func TestClassifyUnchangedAfterTrack(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.go", "package auth")

	tr := New()
	if err := tr.Track(path, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}

	result := tr.Classify(path)
	if result.Class != Unchanged {
		t.Errorf("Classify = %v, want Unchanged", result.Class)
	}
}

func TestClassifyChangedOnContentEdit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.go", "package auth")

	tr := New()
	if err := tr.Track(path, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}

	writeFile(t, dir, "login.go", "package auth\n\nfunc Login() {}")
	result := tr.Classify(path)
	if result.Class != Changed {
		t.Errorf("Classify after content edit = %v, want Changed", result.Class)
	}
	if result.Prior == nil {
		t.Error("Changed classification should carry the prior record")
	}
}

func TestClassifyDeletedAfterRemoval(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.go", "package auth")

	tr := New()
	if err := tr.Track(path, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	result := tr.Classify(path)
	if result.Class != Deleted {
		t.Errorf("Classify after removal = %v, want Deleted", result.Class)
	}
	if result.Prior == nil {
		t.Error("Deleted classification should carry the prior record")
	}
}

func TestTrackRecordsEntities(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.go", "package auth")
	id := entity.NewFunction("auth", "Login", 0)

	tr := New()
	if err := tr.Track(path, map[entity.Id]struct{}{id: {}}); err != nil {
		t.Fatalf("Track: %v", err)
	}

	rec, ok := tr.Record(path)
	if !ok {
		t.Fatal("Record not found after Track")
	}
	if _, ok := rec.Entities[id]; !ok {
		t.Error("tracked record missing its entity id")
	}
}

func TestStaleEntitiesUnionsChangedAndDeleted(t *testing.T) {
	changedID := entity.NewFunction("auth", "Login", 0)
	deletedID := entity.NewFunction("auth", "Logout", 0)
	unchangedID := entity.NewFunction("auth", "validate", 0)

	results := map[string]ClassifyResult{
		"changed.go": {
			Class: Changed,
			Prior: &Record{Entities: map[entity.Id]struct{}{changedID: {}}},
		},
		"deleted.go": {
			Class: Deleted,
			Prior: &Record{Entities: map[entity.Id]struct{}{deletedID: {}}},
		},
		"unchanged.go": {
			Class: Unchanged,
			Prior: &Record{Entities: map[entity.Id]struct{}{unchangedID: {}}},
		},
	}

	stale := StaleEntities(results)
	if _, ok := stale[changedID]; !ok {
		t.Error("StaleEntities missing changed file's entity")
	}
	if _, ok := stale[deletedID]; !ok {
		t.Error("StaleEntities missing deleted file's entity")
	}
	if _, ok := stale[unchangedID]; ok {
		t.Error("StaleEntities incorrectly included an unchanged file's entity")
	}
}

func TestUntrackRemovesRecord(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.go", "package auth")

	tr := New()
	tr.Track(path, nil)
	tr.Untrack(path)

	if _, ok := tr.Record(path); ok {
		t.Error("Record still present after Untrack")
	}
}

func TestClearRemovesAllRecords(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.go", "package auth")

	tr := New()
	tr.Track(path, nil)
	tr.Clear()

	if tr.Stats().FileCount != 0 {
		t.Error("Stats().FileCount != 0 after Clear")
	}
}

func TestStatsCountsFilesAndEntities(t *testing.T) {
	dir := t.TempDir()
	path1 := writeFile(t, dir, "a.go", "package a")
	path2 := writeFile(t, dir, "b.go", "package b")

	tr := New()
	tr.Track(path1, map[entity.Id]struct{}{entity.NewFunction("a", "Fn1", 0): {}})
	tr.Track(path2, map[entity.Id]struct{}{
		entity.NewFunction("b", "Fn2", 0): {},
		entity.NewFunction("b", "Fn3", 0): {},
	})

	st := tr.Stats()
	if st.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", st.FileCount)
	}
	if st.EntityCount != 3 {
		t.Errorf("EntityCount = %d, want 3", st.EntityCount)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.go", "package auth")
	id := entity.NewFunction("auth", "Login", 0)

	tr := New()
	tr.Track(path, map[entity.Id]struct{}{id: {}})
	payload := tr.Export()

	restored := New()
	restored.Import(payload)

	rec, ok := restored.Record(path)
	if !ok {
		t.Fatal("Import did not restore the tracked record")
	}
	if _, ok := rec.Entities[id]; !ok {
		t.Error("Import did not preserve the record's entity set")
	}
}

func TestImportWithNilRecordsClears(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "login.go", "package auth")

	tr := New()
	tr.Track(path, nil)
	tr.Import(Payload{})

	if tr.Stats().FileCount != 0 {
		t.Error("Import with nil Records did not clear the tracker")
	}
}

func TestClassificationString(t *testing.T) {
	cases := map[Classification]string{
		NewFile:   "new",
		Unchanged: "unchanged",
		Changed:   "changed",
		Deleted:   "deleted",
	}
	for c, want := range cases {
		if got := c.String(); got != want {
			t.Errorf("String() for %d = %q, want %q", c, got, want)
		}
	}
}
