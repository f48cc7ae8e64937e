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
	"log/slog"

	"github.com/kraklabs/ragex/pkg/entity"
)

// PathSearchOptions bounds find_paths; zero values take
// defaults.
type PathSearchOptions struct {
	MaxDepth int
	MaxPaths int
	Logger   *slog.Logger
}

func (o PathSearchOptions) withDefaults() PathSearchOptions {
	if o.MaxDepth == 0 {
		o.MaxDepth = 10
	}
	if o.MaxPaths == 0 {
		o.MaxPaths = 100
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// FindPaths enumerates simple paths from `from` to `to` in the outgoing
// calls subgraph via DFS with a visited set along the current path,
// walked directly over in-memory adjacency since there is no database
// round-trip to amortize. Returns at most MaxPaths paths, each of at most
// MaxDepth+1 nodes; path-to-self is [[self]]
func (s *Store) FindPaths(from, to entity.Id, opts PathSearchOptions) [][]entity.Id {
	opts = opts.withDefaults()

	if from == to {
		return [][]entity.Id{{from}}
	}

	s.mu.RLock()
	outDegree := len(filterEdgesLocked(s.outgoing[from], entity.EdgeCalls))
	s.mu.RUnlock()

	switch {
	case outDegree >= 20:
		opts.Logger.Warn("path search: source has high out-degree", "id", from.String(), "out_degree", outDegree)
	case outDegree >= 10:
		opts.Logger.Info("path search: source has elevated out-degree", "id", from.String(), "out_degree", outDegree)
	}

	var results [][]entity.Id
	visited := map[entity.Id]bool{from: true}
	path := []entity.Id{from}

	var dfs func(current entity.Id, depth int)
	dfs = func(current entity.Id, depth int) {
		if len(results) >= opts.MaxPaths {
			return
		}
		if depth >= opts.MaxDepth {
			return
		}

		s.mu.RLock()
		neighbors := filterEdgesLocked(s.outgoing[current], entity.EdgeCalls)
		s.mu.RUnlock()

		for _, e := range neighbors {
			if len(results) >= opts.MaxPaths {
				return
			}
			if e.To == to {
				found := make([]entity.Id, len(path)+1)
				copy(found, path)
				found[len(path)] = to
				results = append(results, found)
				continue
			}
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			path = append(path, e.To)
			dfs(e.To, depth+1)
			path = path[:len(path)-1]
			visited[e.To] = false
		}
	}

	dfs(from, 0)
	return results
}

func filterEdgesLocked(edges []entity.Edge, kind entity.EdgeKind) []entity.Edge {
	out := make([]entity.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
