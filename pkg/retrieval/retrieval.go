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

// Package retrieval implements hybrid retrieval: fusing a structural
// GraphStore query with a semantic VectorSearch via Reciprocal Rank
// Fusion, in three strategy variants (Fusion, SemanticFirst, GraphFirst)
// that pick whether a graph-backed filter runs ahead of or behind vector
// search depending on whether a structural hint (a module, a role) is
// present.
package retrieval

import (
	"sort"

	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
)

// rrfK is Reciprocal Rank Fusion's fixed constant.
const rrfK = 60

// Strategy selects how the graph-side and vector-side signals combine.
type Strategy int

const (
	// Fusion runs both a graph query and a vector search, then fuses their
	// ranked lists via RRF.
	Fusion Strategy = iota
	// SemanticFirst runs vector search, then filters/re-scores by a graph
	// structural constraint.
	SemanticFirst
	// GraphFirst runs a graph filter first, then re-scores its results by
	// cosine similarity to the query vector.
	GraphFirst
)

// GraphQuery is the structural half of a hybrid query: ListNodes filtered by
// Kind/Filter, ranked by degree centrality (highest total degree first) when
// no RankBy override is supplied.
type GraphQuery struct {
	Kind   entity.Kind
	Filter func(entity.Node) bool
	// RankBy overrides the default total-degree ranking, returning a score
	// such that higher is better.
	RankBy func(entity.Id) float64
	Limit  int
}

// Item is one fused/ranked retrieval result.
type Item struct {
	Id    entity.Id
	Score float64
	Text  string
	Node  entity.Node
}

// Query parameterizes a single hybrid retrieval call.
type Query struct {
	Strategy    Strategy
	QueryVector []float32
	Graph       GraphQuery
	Threshold   float64 // vector-search cutoff; default 0.0
	Limit       int     // default 10
}

// Engine is HybridRetrieval, composed over a GraphStore and an
// EmbeddingStore the caller owns.
type Engine struct {
	graph   *graph.Store
	vectors *embedding.Store
}

// New returns an Engine over g and e.
func New(g *graph.Store, e *embedding.Store) *Engine {
	return &Engine{graph: g, vectors: e}
}

func (q Query) withDefaults() Query {
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Graph.Limit == 0 {
		q.Graph.Limit = 50
	}
	return q
}

// Search runs q.Strategy and returns up to q.Limit items, ranked
// descending.
func (e *Engine) Search(q Query) []Item {
	q = q.withDefaults()
	switch q.Strategy {
	case SemanticFirst:
		return e.semanticFirst(q)
	case GraphFirst:
		return e.graphFirst(q)
	default:
		return e.fusion(q)
	}
}

// graphRanked runs q.Graph and returns entity ids in descending rank order
// (best first), the "graph-side ranked list" RRF fuses against the vector
// side.
func (e *Engine) graphRanked(gq GraphQuery) []entity.Id {
	nodes := e.graph.ListNodes(gq.Kind, gq.Filter)

	rankBy := gq.RankBy
	if rankBy == nil {
		degrees := e.graph.DegreeCentrality()
		rankBy = func(id entity.Id) float64 { return float64(degrees[id].Total) }
	}

	sort.Slice(nodes, func(i, j int) bool { return rankBy(nodes[i].Id) > rankBy(nodes[j].Id) })
	if len(nodes) > gq.Limit {
		nodes = nodes[:gq.Limit]
	}
	ids := make([]entity.Id, len(nodes))
	for i, n := range nodes {
		ids[i] = n.Id
	}
	return ids
}

// fusion is the Fusion strategy: run both sides independently, combine
// their ranked lists via Reciprocal Rank Fusion, and sort descending by
// fused score.
func (e *Engine) fusion(q Query) []Item {
	graphIDs := e.graphRanked(q.Graph)
	vecResults := e.vectors.Search(q.QueryVector, embedding.SearchOptions{
		Kind:      q.Graph.Kind,
		Threshold: q.Threshold,
		Limit:     q.Graph.Limit,
	})
	vecIDs := make([]entity.Id, len(vecResults))
	for i, r := range vecResults {
		vecIDs[i] = r.Id
	}

	scores := rrfFuse(graphIDs, vecIDs)
	return e.materialize(scores, vecResults, q.Limit)
}

// semanticFirst runs vector search, then keeps only results also satisfying
// the graph structural constraint (q.Graph.Filter), scored by cosine.
func (e *Engine) semanticFirst(q Query) []Item {
	vecResults := e.vectors.Search(q.QueryVector, embedding.SearchOptions{
		Kind:      q.Graph.Kind,
		Threshold: q.Threshold,
		Limit:     q.Graph.Limit,
	})

	var items []Item
	for _, r := range vecResults {
		if q.Graph.Filter != nil {
			node, ok := e.graph.FindNode(r.Id)
			if !ok || !q.Graph.Filter(node) {
				continue
			}
			items = append(items, Item{Id: r.Id, Score: r.Score, Text: r.Text, Node: node})
			continue
		}
		node, _ := e.graph.FindNode(r.Id)
		items = append(items, Item{Id: r.Id, Score: r.Score, Text: r.Text, Node: node})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items
}

// graphFirst runs the graph filter first, then re-scores its results by
// cosine similarity to the query vector.
func (e *Engine) graphFirst(q Query) []Item {
	nodes := e.graph.ListNodes(q.Graph.Kind, q.Graph.Filter)

	var items []Item
	for _, n := range nodes {
		entry, ok := e.vectors.Get(n.Id)
		if !ok {
			continue
		}
		score := embedding.Cosine(q.QueryVector, entry.Vector)
		if score < q.Threshold {
			continue
		}
		items = append(items, Item{Id: n.Id, Score: score, Text: entry.Text, Node: n})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items
}

// rrfFuse sums 1/(rrfK+rank) contributions across every ranked list an id
// appears in; rank is 1-based position within its own list.
func rrfFuse(lists ...[]entity.Id) map[entity.Id]float64 {
	scores := make(map[entity.Id]float64)
	for _, list := range lists {
		for i, id := range list {
			rank := i + 1
			scores[id] += 1.0 / float64(rrfK+rank)
		}
	}
	return scores
}

// materialize turns a fused score map into a sorted, capped Item list,
// borrowing Text from vecResults where available and falling back to the
// graph node's attributes otherwise.
func (e *Engine) materialize(scores map[entity.Id]float64, vecResults []embedding.Result, limit int) []Item {
	textByID := make(map[entity.Id]string, len(vecResults))
	for _, r := range vecResults {
		textByID[r.Id] = r.Text
	}

	items := make([]Item, 0, len(scores))
	for id, score := range scores {
		node, _ := e.graph.FindNode(id)
		text := textByID[id]
		if text == "" {
			if entry, ok := e.vectors.Get(id); ok {
				text = entry.Text
			}
		}
		items = append(items, Item{Id: id, Score: score, Text: text, Node: node})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Id.String() < items[j].Id.String()
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
