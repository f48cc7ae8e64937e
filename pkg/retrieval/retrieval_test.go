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

package retrieval

import (
	"testing"

	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
)

func buildFixture(t *testing.T) (*graph.Store, *embedding.Store) {
	t.Helper()
	g := graph.NewStore()
	e := embedding.NewStore()

	login := entity.NewFunction("auth", "Login", 0)
	logout := entity.NewFunction("auth", "Logout", 0)
	validate := entity.NewFunction("auth", "validate", 0)

	g.AddNode(login, map[string]any{entity.AttrFile: "auth.go"})
	g.AddNode(logout, map[string]any{entity.AttrFile: "auth.go"})
	g.AddNode(validate, map[string]any{entity.AttrFile: "auth.go"})
	g.AddEdge(login, validate, entity.EdgeCalls, nil)
	g.AddEdge(logout, validate, entity.EdgeCalls, nil)

	e.Put(login, []float32{1, 0, 0}, "func Login()")
	e.Put(logout, []float32{0.9, 0.1, 0}, "func Logout()")
	e.Put(validate, []float32{0, 1, 0}, "func validate()")

	return g, e
}

func TestFusionRanksByCombinedScore(t *testing.T) {
	g, e := buildFixture(t)
	engine := New(g, e)

	items := engine.Search(Query{
		Strategy:    Fusion,
		QueryVector: []float32{1, 0, 0},
		Graph:       GraphQuery{Kind: entity.KindFunction},
		Limit:       10,
	})
	if len(items) == 0 {
		t.Fatal("Fusion search returned no items")
	}
	// validate has the highest graph degree (two incoming calls); fusion
	// should surface it even though its vector similarity to the query is low.
	found := false
	for _, it := range items {
		if it.Id.String() == entity.NewFunction("auth", "validate", 0).String() {
			found = true
		}
	}
	if !found {
		t.Error("Fusion search dropped the most graph-central entity")
	}
}

func TestSemanticFirstFiltersByGraphConstraint(t *testing.T) {
	g, e := buildFixture(t)
	engine := New(g, e)

	items := engine.Search(Query{
		Strategy:    SemanticFirst,
		QueryVector: []float32{1, 0, 0},
		Graph: GraphQuery{
			Kind: entity.KindFunction,
			Filter: func(n entity.Node) bool {
				return n.Id.Function == "Login"
			},
		},
		Limit: 10,
	})
	if len(items) != 1 {
		t.Fatalf("SemanticFirst with a Login-only filter returned %d items, want 1", len(items))
	}
	if items[0].Id.Function != "Login" {
		t.Errorf("filtered item = %+v, want Login", items[0])
	}
}

func TestGraphFirstScoresByVectorSimilarity(t *testing.T) {
	g, e := buildFixture(t)
	engine := New(g, e)

	items := engine.Search(Query{
		Strategy:    GraphFirst,
		QueryVector: []float32{1, 0, 0},
		Graph:       GraphQuery{Kind: entity.KindFunction},
		Threshold:   0.5,
		Limit:       10,
	})
	for _, it := range items {
		if it.Score < 0.5 {
			t.Errorf("GraphFirst returned item below threshold: %+v", it)
		}
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	g, e := buildFixture(t)
	engine := New(g, e)

	items := engine.Search(Query{
		Strategy:    Fusion,
		QueryVector: []float32{1, 0, 0},
		Graph:       GraphQuery{Kind: entity.KindFunction},
		Limit:       1,
	})
	if len(items) != 1 {
		t.Errorf("Search with Limit=1 returned %d items", len(items))
	}
}

func TestRrfFuseCombinesRankedLists(t *testing.T) {
	a := entity.NewFunction("m", "a", 0)
	b := entity.NewFunction("m", "b", 0)
	c := entity.NewFunction("m", "c", 0)

	scores := rrfFuse([]entity.Id{a, b}, []entity.Id{b, c})
	if scores[b] <= scores[a] || scores[b] <= scores[c] {
		t.Errorf("id present in both lists should score higher: %+v", scores)
	}
}
