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

package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/ragex/pkg/entity"
)

func TestSetupFixtureStartsEmpty(t *testing.T) {
	f := SetupFixture(t)

	require.NotNil(t, f.Graph)
	require.NotNil(t, f.Embeddings)
	assert.Equal(t, 0, f.Graph.Stats().NodeCount)
	assert.Equal(t, 0, f.Embeddings.Size())
}

func TestAddFunction(t *testing.T) {
	f := SetupFixture(t)

	id := f.AddFunction(t, "auth", "HandleAuth", 1, "auth.go", 10)

	node, ok := f.Graph.FindNode(id)
	require.True(t, ok)
	assert.Equal(t, "auth.go", node.File())
	line, ok := node.Line()
	require.True(t, ok)
	assert.Equal(t, 10, line)
}

func TestAddFile(t *testing.T) {
	f := SetupFixture(t)

	id := f.AddFile(t, "auth.go")

	node, ok := f.Graph.FindNode(id)
	require.True(t, ok)
	assert.Equal(t, "auth.go", node.File())
}

func TestAddType(t *testing.T) {
	f := SetupFixture(t)

	id := f.AddType(t, "auth", "UserService", "user.go", 10)

	node, ok := f.Graph.FindNode(id)
	require.True(t, ok)
	assert.Equal(t, "user.go", node.File())
}

func TestMultipleFunctions(t *testing.T) {
	f := SetupFixture(t)

	f.AddFunction(t, "main", "Main", 0, "main.go", 5)
	f.AddFunction(t, "util", "Helper", 0, "util.go", 15)
	f.AddFunction(t, "proc", "Process", 1, "processor.go", 25)

	assert.Equal(t, 3, f.Graph.Stats().NodeCount)
}

func TestDefinesAndCallsEdges(t *testing.T) {
	f := SetupFixture(t)

	file := f.AddFile(t, "main.go")
	caller := f.AddFunction(t, "main", "main", 0, "main.go", 1)
	callee := f.AddFunction(t, "main", "helper", 0, "main.go", 12)

	f.AddDefines(t, file, caller)
	f.AddDefines(t, file, callee)
	f.AddCalls(t, caller, callee)

	defines := f.Graph.Outgoing(file, entity.EdgeDefines)
	require.Len(t, defines, 2)

	calls := f.Graph.Outgoing(caller, entity.EdgeCalls)
	require.Len(t, calls, 1)
	assert.Equal(t, callee, calls[0].To)
}

func TestFixtureIsolation(t *testing.T) {
	f1 := SetupFixture(t)
	f1.AddFunction(t, "pkg", "Test1", 0, "file1.go", 1)

	f2 := SetupFixture(t)
	assert.Equal(t, 0, f2.Graph.Stats().NodeCount, "a fresh fixture must not see another fixture's nodes")
	assert.Equal(t, 1, f1.Graph.Stats().NodeCount)
}

func TestAddEmbedding(t *testing.T) {
	f := SetupFixture(t)

	id := f.AddFunction(t, "auth", "HandleAuth", 1, "auth.go", 10)
	f.AddEmbedding(t, id, []float32{1, 0, 0}, "func HandleAuth(...)")

	assert.Equal(t, 1, f.Embeddings.Size())
}
