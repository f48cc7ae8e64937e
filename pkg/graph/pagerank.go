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

import "github.com/kraklabs/ragex/pkg/entity"

// PageRankOptions tunes the power-iteration method; zero values are
// replaced by the defaults names.
type PageRankOptions struct {
	Damping    float64
	MaxIters   int
	Tolerance  float64
}

// DefaultPageRankOptions returns the standard damping/iteration/tolerance
// defaults.
func DefaultPageRankOptions() PageRankOptions {
	return PageRankOptions{Damping: 0.85, MaxIters: 100, Tolerance: 1e-4}
}

func (o PageRankOptions) withDefaults() PageRankOptions {
	if o.Damping == 0 {
		o.Damping = 0.85
	}
	if o.MaxIters == 0 {
		o.MaxIters = 100
	}
	if o.Tolerance == 0 {
		o.Tolerance = 1e-4
	}
	return o
}

// PageRank runs the power-iteration method over the calls subgraph:
// PR'(v) = (1-d)/N + d * sum_{u in in(v)} PR(u)/|out(u)|, converging when
// the max per-node delta drops below tolerance or max iterations is
// reached. Returns an empty map for an empty graph.
func (s *Store) PageRank(opts PageRankOptions) map[entity.Id]float64 {
	opts = opts.withDefaults()

	s.mu.RLock()
	nodeIds := make([]entity.Id, 0, len(s.nodes))
	for id, n := range s.nodes {
		if n.Id.Kind == entity.KindFunction {
			nodeIds = append(nodeIds, id)
		}
	}
	outDegree := make(map[entity.Id]int, len(nodeIds))
	inNeighbors := make(map[entity.Id][]entity.Id)
	for _, id := range nodeIds {
		for _, e := range s.outgoing[id] {
			if e.Kind != entity.EdgeCalls {
				continue
			}
			outDegree[id]++
			inNeighbors[e.To] = append(inNeighbors[e.To], id)
		}
	}
	s.mu.RUnlock()

	n := len(nodeIds)
	if n == 0 {
		return map[entity.Id]float64{}
	}

	pr := make(map[entity.Id]float64, n)
	for _, id := range nodeIds {
		pr[id] = 1.0 / float64(n)
	}

	base := (1 - opts.Damping) / float64(n)

	for iter := 0; iter < opts.MaxIters; iter++ {
		next := make(map[entity.Id]float64, n)
		for _, id := range nodeIds {
			sum := 0.0
			for _, u := range inNeighbors[id] {
				if d := outDegree[u]; d > 0 {
					sum += pr[u] / float64(d)
				}
			}
			next[id] = base + opts.Damping*sum
		}

		maxDelta := 0.0
		for _, id := range nodeIds {
			delta := next[id] - pr[id]
			if delta < 0 {
				delta = -delta
			}
			if delta > maxDelta {
				maxDelta = delta
			}
		}
		pr = next
		if maxDelta < opts.Tolerance {
			break
		}
	}

	return pr
}
