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

// Degree is the per-node in/out/total degree over the calls subgraph.
type Degree struct {
	In, Out, Total int
}

// DegreeCentrality returns in/out/total degree for every function node,
// counting only calls edges
func (s *Store) DegreeCentrality() map[entity.Id]Degree {
	s.mu.RLock()
	defer s.mu.RUnlock()

	degrees := make(map[entity.Id]Degree)
	for id, n := range s.nodes {
		if n.Id.Kind != entity.KindFunction {
			continue
		}
		in := len(filterEdgesLocked(s.incoming[id], entity.EdgeCalls))
		out := len(filterEdgesLocked(s.outgoing[id], entity.EdgeCalls))
		degrees[id] = Degree{In: in, Out: out, Total: in + out}
	}
	return degrees
}
