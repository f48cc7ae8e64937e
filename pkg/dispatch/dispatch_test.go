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

package dispatch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/ragex/pkg/backup"
	"github.com/kraklabs/ragex/pkg/editor"
	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/refactor"
	"github.com/kraklabs/ragex/pkg/retrieval"
	"github.com/kraklabs/ragex/pkg/undo"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	g := graph.NewStore()
	e := embedding.NewStore()
	vault := backup.New(t.TempDir())
	ed := editor.New(vault, nil)
	return &Dispatcher{
		Graph:      g,
		Embeddings: e,
		Retrieval:  retrieval.New(g, e),
		Embedder:   stubEmbedder{vec: []float32{1, 0, 0}},
		Editor:     ed,
		Vault:      vault,
		Refactor:   refactor.New(g, refactor.NewDefaultRegistry(), ed, undo.New(t.TempDir())),
		Undo:       undo.New(t.TempDir()),
	}
}

func TestDispatchUnknownToolReturnsNotFound(t *testing.T) {
	d := newTestDispatcher(t)
	env := d.Dispatch(context.Background(), "no_such_tool", nil)
	if env.Status != "failure" {
		t.Fatalf("Status = %q, want failure", env.Status)
	}
	if env.Error.Kind != "not_found" {
		t.Errorf("Error.Kind = %q, want not_found", env.Error.Kind)
	}
}

func TestDispatchSearchCode(t *testing.T) {
	d := newTestDispatcher(t)
	id := entity.NewFunction("auth", "Login", 0)
	d.Graph.AddNode(id, map[string]any{entity.AttrFile: "auth.go"})
	d.Embeddings.Put(id, []float32{1, 0, 0}, "func Login()")

	args, _ := json.Marshal(map[string]any{"query": "login"})
	env := d.Dispatch(context.Background(), "search_code", args)
	if env.Status != "success" {
		t.Fatalf("Status = %q, want success (err: %+v)", env.Status, env.Error)
	}
}

func TestDispatchSearchCodeBadArgs(t *testing.T) {
	d := newTestDispatcher(t)
	env := d.Dispatch(context.Background(), "search_code", json.RawMessage(`{"query": 123}`))
	if env.Status != "failure" {
		t.Fatal("search_code with a malformed query field should fail")
	}
	if env.Error.Kind != "validation_error" {
		t.Errorf("Error.Kind = %q, want validation_error", env.Error.Kind)
	}
}

func TestDispatchGraphStats(t *testing.T) {
	d := newTestDispatcher(t)
	d.Graph.AddNode(entity.NewFunction("auth", "Login", 0), nil)

	env := d.Dispatch(context.Background(), "graph_stats", nil)
	if env.Status != "success" {
		t.Fatalf("Status = %q, want success", env.Status)
	}
}

func TestDispatchIndexStatus(t *testing.T) {
	d := newTestDispatcher(t)
	env := d.Dispatch(context.Background(), "index_status", nil)
	if env.Status != "success" {
		t.Fatalf("Status = %q, want success", env.Status)
	}
}

func TestDispatchEditFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	os.WriteFile(path, []byte("line1\n"), 0o644)

	d := newTestDispatcher(t)
	args, _ := json.Marshal(map[string]any{
		"path": path,
		"changes": []map[string]any{
			{"kind": "replace", "line_start": 1, "line_end": 1, "content": "changed"},
		},
	})
	env := d.Dispatch(context.Background(), "edit_file", args)
	if env.Status != "success" {
		t.Fatalf("Status = %q, want success (err: %+v)", env.Status, env.Error)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "changed\n" {
		t.Errorf("file content = %q", content)
	}
}

func TestDispatchRenameFunctionNotFound(t *testing.T) {
	d := newTestDispatcher(t)
	args, _ := json.Marshal(map[string]any{
		"module": "auth", "old_name": "Missing", "new_name": "X", "arity": 0,
	})
	env := d.Dispatch(context.Background(), "rename_function", args)
	if env.Status != "failure" {
		t.Fatal("rename_function on a missing function should fail")
	}
	if env.Error.Kind != "not_found" {
		t.Errorf("Error.Kind = %q, want not_found", env.Error.Kind)
	}
}

func TestDispatchUndoEmptyLog(t *testing.T) {
	d := newTestDispatcher(t)
	env := d.Dispatch(context.Background(), "undo", nil)
	if env.Status != "failure" {
		t.Fatal("undo on an empty log should fail")
	}
}

func TestNamesListsEveryRegisteredTool(t *testing.T) {
	d := newTestDispatcher(t)
	names := d.Names()
	want := []string{"search_code", "rename_function", "move_function", "undo"}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	for _, w := range want {
		if !set[w] {
			t.Errorf("Names() missing expected tool %q", w)
		}
	}
}
