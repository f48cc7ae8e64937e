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

// Package testing provides fixture builders for tests that exercise the
// graph/embedding/tracker stores, wired to this module's own in-memory
// stores.
package testing

import (
	"testing"

	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
)

// Fixture bundles a fresh GraphStore and EmbeddingStore for a test: one
// call, ready to seed.
type Fixture struct {
	Graph      *graph.Store
	Embeddings *embedding.Store
}

// SetupFixture returns an empty Fixture. There is nothing to clean up - both
// stores are in-memory and garbage collected with the test.
func SetupFixture(t *testing.T) *Fixture {
	t.Helper()
	return &Fixture{Graph: graph.NewStore(), Embeddings: embedding.NewStore()}
}

// AddFunction seeds a function node and returns its Id.
func (f *Fixture) AddFunction(t *testing.T, module, name string, arity int, filePath string, startLine int) entity.Id {
	t.Helper()
	id := entity.NewFunction(module, name, arity)
	f.Graph.AddNode(id, map[string]any{entity.AttrFile: filePath, entity.AttrLine: startLine})
	return id
}

// AddFile seeds a file node and returns its Id.
func (f *Fixture) AddFile(t *testing.T, path string) entity.Id {
	t.Helper()
	id := entity.NewFile(path)
	f.Graph.AddNode(id, map[string]any{entity.AttrFile: path})
	return id
}

// AddType seeds a type node and returns its Id.
func (f *Fixture) AddType(t *testing.T, module, name, filePath string, startLine int) entity.Id {
	t.Helper()
	id := entity.NewType(module, name)
	f.Graph.AddNode(id, map[string]any{entity.AttrFile: filePath, entity.AttrLine: startLine})
	return id
}

// AddDefines seeds a "file defines function/type" edge.
func (f *Fixture) AddDefines(t *testing.T, file, defined entity.Id) {
	t.Helper()
	f.Graph.AddEdge(file, defined, entity.EdgeDefines, nil)
}

// AddCalls seeds a "caller calls callee" edge.
func (f *Fixture) AddCalls(t *testing.T, caller, callee entity.Id) {
	t.Helper()
	f.Graph.AddEdge(caller, callee, entity.EdgeCalls, nil)
}

// AddEmbedding seeds an embedding for id.
func (f *Fixture) AddEmbedding(t *testing.T, id entity.Id, vector []float32, text string) {
	t.Helper()
	if err := f.Embeddings.Put(id, vector, text); err != nil {
		t.Fatalf("failed to add test embedding: %v", err)
	}
}
