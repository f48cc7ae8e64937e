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

package persistence

import (
	"testing"

	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/tracker"
)

func TestProjectHashStableAndDistinct(t *testing.T) {
	h1 := ProjectHash("/home/dev/project-a")
	h2 := ProjectHash("/home/dev/project-a")
	if h1 != h2 {
		t.Errorf("ProjectHash not stable: %q vs %q", h1, h2)
	}
	if len(h1) != 16 {
		t.Errorf("ProjectHash length = %d, want 16", len(h1))
	}
	if h1 == ProjectHash("/home/dev/project-b") {
		t.Error("distinct roots produced the same project hash")
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	g := graph.NewStore()
	id := entity.NewFunction("auth", "Login", 0)
	g.AddNode(id, map[string]any{entity.AttrFile: "auth.go"})

	e := embedding.NewStore()
	e.Put(id, []float32{1, 0, 0}, "func Login()")

	tr := tracker.New()

	model := ModelInfo{ID: "model-a", Repo: "org/model-a", Dimensions: 3}
	hash := ProjectHash("/project")
	if err := store.Save(hash, g, e, tr, model); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loadedGraph := graph.NewStore()
	loadedEmbedding := embedding.NewStore()
	loadedTracker := tracker.New()
	outcome := store.Load(hash, model, loadedGraph, loadedEmbedding, loadedTracker)
	if outcome.Kind != Loaded {
		t.Fatalf("Load outcome = %v, want Loaded (reason: %s)", outcome.Kind, outcome.Reason)
	}

	if _, ok := loadedGraph.FindNode(id); !ok {
		t.Error("loaded graph missing the saved node")
	}
	if _, ok := loadedEmbedding.Get(id); !ok {
		t.Error("loaded embedding store missing the saved entry")
	}
}

func TestLoadIncompatibleOnDimensionMismatch(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	g := graph.NewStore()
	e := embedding.NewStore()
	tr := tracker.New()
	hash := ProjectHash("/project")
	if err := store.Save(hash, g, e, tr, ModelInfo{ID: "model-a", Dimensions: 384}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	outcome := store.Load(hash, ModelInfo{ID: "model-b", Dimensions: 768},
		graph.NewStore(), embedding.NewStore(), tracker.New())
	if outcome.Kind != Incompatible {
		t.Errorf("Load outcome = %v, want Incompatible", outcome.Kind)
	}
}

func TestLoadNotFoundForUnknownProject(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome := store.Load("unknownhash1234", ModelInfo{Dimensions: 384},
		graph.NewStore(), embedding.NewStore(), tracker.New())
	if outcome.Kind != NotFound {
		t.Errorf("Load outcome for an unknown project = %v, want NotFound", outcome.Kind)
	}
}

func TestClearProjectOne(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hash := ProjectHash("/project")
	if err := store.Save(hash, graph.NewStore(), embedding.NewStore(), tracker.New(), ModelInfo{Dimensions: 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Clear(ClearScope{ProjectOne: hash}); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	outcome := store.Load(hash, ModelInfo{Dimensions: 3}, graph.NewStore(), embedding.NewStore(), tracker.New())
	if outcome.Kind != NotFound {
		t.Errorf("Load after Clear = %v, want NotFound", outcome.Kind)
	}
}

func TestClearAllRemovesEveryProject(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, root := range []string{"/project-a", "/project-b"} {
		hash := ProjectHash(root)
		if err := store.Save(hash, graph.NewStore(), embedding.NewStore(), tracker.New(), ModelInfo{Dimensions: 3}); err != nil {
			t.Fatalf("Save %s: %v", root, err)
		}
	}

	if err := store.Clear(ClearScope{All: true}); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	stats, err := store.Stats("")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("Stats after Clear(All) = %d entries, want 0", len(stats))
	}
}

func TestStatsReturnsPerProjectMetadata(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	g := graph.NewStore()
	g.AddNode(entity.NewFunction("auth", "Login", 0), nil)
	hash := ProjectHash("/project")
	if err := store.Save(hash, g, embedding.NewStore(), tracker.New(), ModelInfo{ID: "model-a", Dimensions: 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stats, err := store.Stats(hash)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("Stats = %d entries, want 1", len(stats))
	}
	if stats[0].Meta.EntityCount != 1 {
		t.Errorf("Meta.EntityCount = %d, want 1", stats[0].Meta.EntityCount)
	}
	if stats[0].TotalBytes <= 0 {
		t.Error("TotalBytes should be positive after a Save")
	}
}
