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

// Package testing provides fixture builders for ragex package tests.
//
// # Quick Start
//
// Use SetupFixture to get an empty graph/embedding store pair and seed it
// with the Add* helpers:
//
//	func TestMyFeature(t *testing.T) {
//	    f := testing.SetupFixture(t)
//
//	    file := f.AddFile(t, "test.go")
//	    fn := f.AddFunction(t, "mypkg", "TestFunc", 0, "test.go", 10)
//	    f.AddDefines(t, file, fn)
//
//	    node, ok := f.Graph.FindNode(fn)
//	    require.True(t, ok)
//	}
//
// # Seeding Test Data
//
// The package provides helpers for seeding common test entities:
//   - AddFunction: Add a function node
//   - AddFile: Add a file node
//   - AddType: Add a type node
//   - AddDefines: Link a file to an entity it defines
//   - AddCalls: Link a caller function to a callee
//   - AddEmbedding: Attach a vector + text to an entity
package testing
