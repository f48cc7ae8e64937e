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

// Package graph implements the in-memory knowledge graph: nodes keyed by
// EntityId, edges indexed by both endpoints for O(1) neighbor enumeration,
// and the structural algorithms (PageRank, bounded path search, degree
// centrality, graph stats) that run over it. It follows a single
// serialization point, read vs. mutate, shape, but the store itself is
// pure in-memory maps and slices rather than an embedded database.
package graph

import (
	"sync"

	"github.com/kraklabs/ragex/pkg/entity"
)

// Store is the single owner of the graph's nodes and edges. All exported
// methods are safe for concurrent use; it is wrapped by one RWMutex.
type Store struct {
	mu sync.RWMutex

	nodes map[entity.Id]entity.Node

	// outgoing/incoming index edges by their "from"/"to" endpoint for O(1)
	// neighbor enumeration, as requires.
	outgoing map[entity.Id][]entity.Edge
	incoming map[entity.Id][]entity.Edge
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		nodes:    make(map[entity.Id]entity.Node),
		outgoing: make(map[entity.Id][]entity.Edge),
		incoming: make(map[entity.Id][]entity.Edge),
	}
}

// AddNode inserts or replaces the node with the given id.
func (s *Store) AddNode(id entity.Id, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[id] = entity.Node{Id: id, Attrs: attrs}.Clone()
}

// FindNode returns the node for id, and whether it was found.
func (s *Store) FindNode(id entity.Id) (entity.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return entity.Node{}, false
	}
	return n.Clone(), true
}

// AddEdge appends an edge. Edges for a given (From, To, Kind) triple are a
// bag, not a set: AddEdge never deduplicates, since repeated
// calls between the same pair of functions (distinct call sites) must all
// be retained.
func (s *Store) AddEdge(from, to entity.Id, kind entity.EdgeKind, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entity.Edge{From: from, To: to, Kind: kind, Attrs: attrs}.Clone()
	s.outgoing[from] = append(s.outgoing[from], e)
	s.incoming[to] = append(s.incoming[to], e)
}

// Outgoing returns edges leaving id, optionally filtered by kind ("" means
// any kind).
func (s *Store) Outgoing(id entity.Id, kind entity.EdgeKind) []entity.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterEdges(s.outgoing[id], kind)
}

// Incoming returns edges arriving at id, optionally filtered by kind (""
// means any kind).
func (s *Store) Incoming(id entity.Id, kind entity.EdgeKind) []entity.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterEdges(s.incoming[id], kind)
}

func filterEdges(edges []entity.Edge, kind entity.EdgeKind) []entity.Edge {
	if kind == "" {
		out := make([]entity.Edge, len(edges))
		for i, e := range edges {
			out[i] = e.Clone()
		}
		return out
	}
	out := make([]entity.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Kind == kind {
			out = append(out, e.Clone())
		}
	}
	return out
}

// ListNodes returns every node of the given kind ("" means any kind)
// matching filter (nil means no filtering).
func (s *Store) ListNodes(kind entity.Kind, filter func(entity.Node) bool) []entity.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if kind != "" && n.Id.Kind != kind {
			continue
		}
		if filter != nil && !filter(n) {
			continue
		}
		out = append(out, n.Clone())
	}
	return out
}

// RemoveNode deletes the node with id and every edge touching it.
func (s *Store) RemoveNode(id entity.Id) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeNodeLocked(id)
}

func (s *Store) removeNodeLocked(id entity.Id) {
	delete(s.nodes, id)

	for _, e := range s.outgoing[id] {
		s.incoming[e.To] = removeEdge(s.incoming[e.To], e)
	}
	delete(s.outgoing, id)

	for _, e := range s.incoming[id] {
		s.outgoing[e.From] = removeEdge(s.outgoing[e.From], e)
	}
	delete(s.incoming, id)
}

func removeEdge(edges []entity.Edge, target entity.Edge) []entity.Edge {
	out := edges[:0]
	removed := false
	for _, e := range edges {
		if !removed && e.From == target.From && e.To == target.To && e.Kind == target.Kind && attrsEqual(e.Attrs, target.Attrs) {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out
}

func attrsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// ReplaceFileEntities atomically swaps the entity set attributed to path:
// every id in oldIds is removed, then newNodes and newEdges are inserted,
// in a single critical section. Used by IngestionPipeline to re-ingest a
// changed file without ever exposing a half-updated graph to a concurrent
// reader.
func (s *Store) ReplaceFileEntities(oldIds []entity.Id, newNodes []entity.Node, newEdges []entity.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range oldIds {
		s.removeNodeLocked(id)
	}
	for _, n := range newNodes {
		s.nodes[n.Id] = n.Clone()
	}
	for _, e := range newEdges {
		ec := e.Clone()
		s.outgoing[e.From] = append(s.outgoing[e.From], ec)
		s.incoming[e.To] = append(s.incoming[e.To], ec)
	}
}

// Stats is the summary stats() operation returns.
type Stats struct {
	NodeCount     int
	NodeCountsBy  map[entity.Kind]int
	EdgeCount     int
}

// Stats returns node/edge counts, broken down by node kind.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{NodeCountsBy: make(map[entity.Kind]int)}
	for _, n := range s.nodes {
		st.NodeCount++
		st.NodeCountsBy[n.Id.Kind]++
	}
	for _, edges := range s.outgoing {
		st.EdgeCount += len(edges)
	}
	return st
}

// AllEdges returns every edge currently stored, used by Persistence and by
// tests asserting graph-snapshot equality.
func (s *Store) AllEdges() []entity.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.Edge
	for _, edges := range s.outgoing {
		for _, e := range edges {
			out = append(out, e.Clone())
		}
	}
	return out
}

// AllNodes returns every node currently stored.
func (s *Store) AllNodes() []entity.Node {
	return s.ListNodes("", nil)
}

// LoadSnapshot replaces the store's contents wholesale with nodes and
// edges, used by Persistence on cache load. Callers must not hold any
// other reference to nodes/edges afterward.
func (s *Store) LoadSnapshot(nodes []entity.Node, edges []entity.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[entity.Id]entity.Node, len(nodes))
	s.outgoing = make(map[entity.Id][]entity.Edge)
	s.incoming = make(map[entity.Id][]entity.Edge)

	for _, n := range nodes {
		s.nodes[n.Id] = n.Clone()
	}
	for _, e := range edges {
		ec := e.Clone()
		s.outgoing[e.From] = append(s.outgoing[e.From], ec)
		s.incoming[e.To] = append(s.incoming[e.To], ec)
	}
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[entity.Id]entity.Node)
	s.outgoing = make(map[entity.Id][]entity.Edge)
	s.incoming = make(map[entity.Id][]entity.Edge)
}
