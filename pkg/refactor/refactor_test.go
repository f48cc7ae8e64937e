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

package refactor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kraklabs/ragex/pkg/backup"
	"github.com/kraklabs/ragex/pkg/editor"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/ingestion"
	"github.com/kraklabs/ragex/pkg/undo"
)

func newTestRefactor(t *testing.T) (*Refactor, *graph.Store) {
	t.Helper()
	g := graph.NewStore()
	ed := editor.New(backup.New(t.TempDir()), nil)
	log := undo.New(t.TempDir())
	return New(g, NewDefaultRegistry(), ed, log), g
}

func TestRenameFunctionDefinitionOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.go")
	os.WriteFile(path, []byte("package auth\n\nfunc Login(user string, pass string) bool {\n\treturn true\n}\n"), 0o644)

	r, g := newTestRefactor(t)
	g.AddNode(entity.NewFunction("auth", "Login", 2), map[string]any{
		entity.AttrFile: path, ingestion.AttrFileLanguage: "go",
	})

	report, err := r.RenameFunction("auth", "Login", "Authenticate", 2, ScopeModule)
	if err != nil {
		t.Fatalf("RenameFunction: %v", err)
	}
	if report.Status != "success" {
		t.Fatalf("report.Status = %q, want success", report.Status)
	}

	content, _ := os.ReadFile(path)
	if !containsAll(string(content), "func Authenticate(") {
		t.Errorf("content after rename = %q", content)
	}
}

func TestRenameFunctionProjectScopeRewritesCallers(t *testing.T) {
	dir := t.TempDir()
	defPath := filepath.Join(dir, "auth.go")
	callerPath := filepath.Join(dir, "handler.go")
	os.WriteFile(defPath, []byte("package auth\n\nfunc Login(user string) bool {\n\treturn true\n}\n"), 0o644)
	os.WriteFile(callerPath, []byte("package auth\n\nfunc Handle() {\n\tLogin(\"x\")\n}\n"), 0o644)

	r, g := newTestRefactor(t)
	defID := entity.NewFunction("auth", "Login", 1)
	callerID := entity.NewFunction("auth", "Handle", 0)
	g.AddNode(defID, map[string]any{entity.AttrFile: defPath, ingestion.AttrFileLanguage: "go"})
	g.AddNode(callerID, map[string]any{entity.AttrFile: callerPath, ingestion.AttrFileLanguage: "go"})
	g.AddEdge(callerID, defID, entity.EdgeCalls, nil)

	report, err := r.RenameFunction("auth", "Login", "Authenticate", 1, ScopeProject)
	if err != nil {
		t.Fatalf("RenameFunction: %v", err)
	}
	if report.FilesEdited != 2 {
		t.Errorf("FilesEdited = %d, want 2", report.FilesEdited)
	}

	callerContent, _ := os.ReadFile(callerPath)
	if !containsAll(string(callerContent), "Authenticate(") {
		t.Errorf("caller not rewritten: %q", callerContent)
	}
}

func TestRenameFunctionNotFound(t *testing.T) {
	r, _ := newTestRefactor(t)
	_, err := r.RenameFunction("auth", "Missing", "X", 0, ScopeModule)
	if err == nil {
		t.Fatal("RenameFunction on a missing function returned nil error")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Errorf("error type = %T, want *NotFoundError", err)
	}
}

func TestRenameModuleRewritesImporters(t *testing.T) {
	dir := t.TempDir()
	importerPath := filepath.Join(dir, "handler.go")
	os.WriteFile(importerPath, []byte("package auth\n\nimport \"crypto/bcrypt\"\n\nfunc Handle() {\n\t_ = bcrypt.Compare\n}\n"), 0o644)

	r, g := newTestRefactor(t)
	g.AddNode(entity.NewModule("crypto/bcrypt"), nil)
	importerID := entity.NewFunction("auth", "Handle", 0)
	g.AddNode(importerID, map[string]any{entity.AttrFile: importerPath, ingestion.AttrFileLanguage: "go"})
	g.AddEdge(importerID, entity.NewModule("crypto/bcrypt"), entity.EdgeImports, nil)

	report, err := r.RenameModule("crypto/bcrypt", "crypto/argon2")
	if err != nil {
		t.Fatalf("RenameModule: %v", err)
	}
	if report.Status != "success" {
		t.Fatalf("report.Status = %q", report.Status)
	}

	content, _ := os.ReadFile(importerPath)
	if !containsAll(string(content), `"crypto/argon2"`) {
		t.Errorf("import not rewritten: %q", content)
	}
}

func TestMoveFunctionRelocatesDefinition(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.go")
	destPath := filepath.Join(dir, "dest.go")
	os.WriteFile(srcPath, []byte("package auth\n\nfunc Helper(x int) int {\n\treturn x + 1\n}\n"), 0o644)

	r, g := newTestRefactor(t)
	g.AddNode(entity.NewFunction("auth", "Helper", 1), map[string]any{
		entity.AttrFile: srcPath, ingestion.AttrFileLanguage: "go",
	})

	report, err := r.MoveFunction("auth", "Helper", 1, srcPath, destPath)
	if err != nil {
		t.Fatalf("MoveFunction: %v", err)
	}
	if report.Status != "success" {
		t.Fatalf("report.Status = %q", report.Status)
	}

	srcContent, _ := os.ReadFile(srcPath)
	if containsAll(string(srcContent), "func Helper(") {
		t.Error("source file still contains the moved function")
	}
	destContent, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("destination file was not created: %v", err)
	}
	if !containsAll(string(destContent), "func Helper(") {
		t.Errorf("destination missing the moved function: %q", destContent)
	}
}

func containsAll(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
