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

package graph

import (
	"testing"

	"github.com/kraklabs/ragex/pkg/entity"
)

func TestAddNodeAndFindNode(t *testing.T) {
	s := NewStore()
	id := entity.NewFunction("auth", "Login", 1)
	s.AddNode(id, map[string]any{entity.AttrFile: "auth.go"})

	n, ok := s.FindNode(id)
	if !ok {
		t.Fatal("FindNode did not find a node that was just added")
	}
	if n.File() != "auth.go" {
		t.Errorf("File() = %q, want %q", n.File(), "auth.go")
	}
}

func TestFindNodeMissing(t *testing.T) {
	s := NewStore()
	if _, ok := s.FindNode(entity.NewModule("missing")); ok {
		t.Error("FindNode reported found for a node never added")
	}
}

func TestAddEdgeAndOutgoingIncoming(t *testing.T) {
	s := NewStore()
	caller := entity.NewFunction("auth", "Login", 0)
	callee := entity.NewFunction("auth", "validate", 1)
	s.AddEdge(caller, callee, entity.EdgeCalls, map[string]any{"line": 10})

	out := s.Outgoing(caller, entity.EdgeCalls)
	if len(out) != 1 || out[0].To != callee {
		t.Fatalf("Outgoing = %+v, want one edge to %+v", out, callee)
	}
	in := s.Incoming(callee, entity.EdgeCalls)
	if len(in) != 1 || in[0].From != caller {
		t.Fatalf("Incoming = %+v, want one edge from %+v", in, caller)
	}
}

func TestAddEdgeDoesNotDeduplicate(t *testing.T) {
	s := NewStore()
	caller := entity.NewFunction("auth", "Login", 0)
	callee := entity.NewFunction("auth", "validate", 1)
	s.AddEdge(caller, callee, entity.EdgeCalls, map[string]any{"line": 10})
	s.AddEdge(caller, callee, entity.EdgeCalls, map[string]any{"line": 20})

	out := s.Outgoing(caller, entity.EdgeCalls)
	if len(out) != 2 {
		t.Fatalf("Outgoing returned %d edges, want 2 distinct call sites", len(out))
	}
}

func TestOutgoingFilteredByKindEmptyMeansAny(t *testing.T) {
	s := NewStore()
	from := entity.NewFunction("auth", "Login", 0)
	s.AddEdge(from, entity.NewFunction("auth", "validate", 1), entity.EdgeCalls, nil)
	s.AddEdge(from, entity.NewModule("bcrypt"), entity.EdgeImports, nil)

	all := s.Outgoing(from, "")
	if len(all) != 2 {
		t.Errorf("Outgoing with empty kind = %d edges, want 2", len(all))
	}
	calls := s.Outgoing(from, entity.EdgeCalls)
	if len(calls) != 1 {
		t.Errorf("Outgoing filtered by EdgeCalls = %d edges, want 1", len(calls))
	}
}

func TestRemoveNodeClearsBothDirections(t *testing.T) {
	s := NewStore()
	caller := entity.NewFunction("auth", "Login", 0)
	callee := entity.NewFunction("auth", "validate", 1)
	s.AddNode(caller, nil)
	s.AddNode(callee, nil)
	s.AddEdge(caller, callee, entity.EdgeCalls, nil)

	s.RemoveNode(callee)

	if _, ok := s.FindNode(callee); ok {
		t.Error("removed node still found")
	}
	if out := s.Outgoing(caller, entity.EdgeCalls); len(out) != 0 {
		t.Errorf("Outgoing from caller after callee removed = %+v, want empty", out)
	}
}

func TestReplaceFileEntities(t *testing.T) {
	s := NewStore()
	old := entity.NewFunction("auth", "Login", 0)
	s.AddNode(old, map[string]any{entity.AttrFile: "auth.go"})

	newFn := entity.NewFunction("auth", "Login", 0)
	s.ReplaceFileEntities(
		[]entity.Id{old},
		[]entity.Node{{Id: newFn, Attrs: map[string]any{entity.AttrFile: "auth.go", entity.AttrLine: 5}}},
		nil,
	)

	n, ok := s.FindNode(newFn)
	if !ok {
		t.Fatal("ReplaceFileEntities did not insert the new node")
	}
	line, ok := n.Line()
	if !ok || line != 5 {
		t.Errorf("replaced node Line() = (%d, %v), want (5, true)", line, ok)
	}
}

func TestStats(t *testing.T) {
	s := NewStore()
	s.AddNode(entity.NewFunction("auth", "Login", 0), nil)
	s.AddNode(entity.NewFunction("auth", "validate", 1), nil)
	s.AddNode(entity.NewFile("auth.go"), nil)
	s.AddEdge(entity.NewFunction("auth", "Login", 0), entity.NewFunction("auth", "validate", 1), entity.EdgeCalls, nil)

	st := s.Stats()
	if st.NodeCount != 3 {
		t.Errorf("NodeCount = %d, want 3", st.NodeCount)
	}
	if st.EdgeCount != 1 {
		t.Errorf("EdgeCount = %d, want 1", st.EdgeCount)
	}
	if st.NodeCountsBy[entity.KindFunction] != 2 {
		t.Errorf("NodeCountsBy[function] = %d, want 2", st.NodeCountsBy[entity.KindFunction])
	}
}

func TestLoadSnapshotReplacesContents(t *testing.T) {
	s := NewStore()
	s.AddNode(entity.NewModule("stale"), nil)

	fresh := entity.NewFunction("auth", "Login", 0)
	s.LoadSnapshot([]entity.Node{{Id: fresh}}, nil)

	if _, ok := s.FindNode(entity.NewModule("stale")); ok {
		t.Error("LoadSnapshot left the prior contents in place")
	}
	if _, ok := s.FindNode(fresh); !ok {
		t.Error("LoadSnapshot did not install the new node")
	}
}

func TestClearEmptiesStore(t *testing.T) {
	s := NewStore()
	s.AddNode(entity.NewModule("auth"), nil)
	s.Clear()
	if s.Stats().NodeCount != 0 {
		t.Error("Clear did not empty the store")
	}
}

func TestFindPathsDirect(t *testing.T) {
	s := NewStore()
	a := entity.NewFunction("m", "a", 0)
	b := entity.NewFunction("m", "b", 0)
	c := entity.NewFunction("m", "c", 0)
	s.AddEdge(a, b, entity.EdgeCalls, nil)
	s.AddEdge(b, c, entity.EdgeCalls, nil)

	paths := s.FindPaths(a, c, PathSearchOptions{})
	if len(paths) != 1 {
		t.Fatalf("FindPaths = %d paths, want 1", len(paths))
	}
	want := []entity.Id{a, b, c}
	for i, id := range want {
		if paths[0][i] != id {
			t.Errorf("path[%d] = %+v, want %+v", i, paths[0][i], id)
		}
	}
}

func TestFindPathsNoRoute(t *testing.T) {
	s := NewStore()
	a := entity.NewFunction("m", "a", 0)
	b := entity.NewFunction("m", "b", 0)
	s.AddNode(a, nil)
	s.AddNode(b, nil)

	paths := s.FindPaths(a, b, PathSearchOptions{})
	if len(paths) != 0 {
		t.Errorf("FindPaths over disconnected nodes = %+v, want none", paths)
	}
}

func TestFindPathsToSelf(t *testing.T) {
	s := NewStore()
	a := entity.NewFunction("m", "a", 0)
	paths := s.FindPaths(a, a, PathSearchOptions{})
	if len(paths) != 1 || len(paths[0]) != 1 || paths[0][0] != a {
		t.Errorf("FindPaths(a, a) = %+v, want [[a]]", paths)
	}
}

func TestPageRankConvergesToUniformOnUnlinkedNodes(t *testing.T) {
	s := NewStore()
	s.AddNode(entity.NewFunction("m", "a", 0), nil)
	s.AddNode(entity.NewFunction("m", "b", 0), nil)

	pr := s.PageRank(DefaultPageRankOptions())
	if len(pr) != 2 {
		t.Fatalf("PageRank returned %d entries, want 2", len(pr))
	}
	for id, score := range pr {
		if score <= 0 {
			t.Errorf("PageRank[%v] = %f, want positive", id, score)
		}
	}
	a, b := pr[entity.NewFunction("m", "a", 0)], pr[entity.NewFunction("m", "b", 0)]
	if a != b {
		t.Errorf("PageRank scores = %f and %f, want equal (uniform)", a, b)
	}
}

func TestPageRankEmptyGraph(t *testing.T) {
	s := NewStore()
	pr := s.PageRank(DefaultPageRankOptions())
	if len(pr) != 0 {
		t.Errorf("PageRank on empty graph = %+v, want empty", pr)
	}
}

func TestSummaryTopLists(t *testing.T) {
	s := NewStore()
	hub := entity.NewFunction("m", "hub", 0)
	s.AddNode(hub, nil)
	for i := 0; i < 3; i++ {
		leaf := entity.NewFunction("m", "leaf", i)
		s.AddNode(leaf, nil)
		s.AddEdge(hub, leaf, entity.EdgeCalls, nil)
	}

	summary := s.Summary(DefaultPageRankOptions())
	if summary.NodeCount != 4 {
		t.Errorf("NodeCount = %d, want 4", summary.NodeCount)
	}
	if len(summary.TopByDegree) == 0 {
		t.Fatal("TopByDegree is empty")
	}
	if summary.TopByDegree[0].Id != hub {
		t.Errorf("top-degree node = %+v, want hub %+v", summary.TopByDegree[0].Id, hub)
	}
}
