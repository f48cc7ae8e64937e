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
	"container/heap"

	"github.com/kraklabs/ragex/pkg/entity"
)

// RankedItem pairs an id with a score, used for the top-10 lists in
// GraphSummary.
type RankedItem struct {
	Id    entity.Id
	Score float64
}

// GraphSummary is the full payload returned by a graph stats query.
type GraphSummary struct {
	NodeCount      int
	NodeCountsBy   map[entity.Kind]int
	EdgeCount      int
	AverageDegree  float64
	Density        float64
	TopByPageRank  []RankedItem
	TopByDegree    []RankedItem
}

// Summary computes graph stats plus the top-10 PageRank and top-10 degree
// rankings, using container/heap for bounded top-k selection — no example
// repo in the corpus supplies a priority-queue library for this, and heap
// is the idiomatic stdlib answer (see DESIGN.md).
func (s *Store) Summary(prOpts PageRankOptions) GraphSummary {
	base := s.Stats()

	summary := GraphSummary{
		NodeCount:    base.NodeCount,
		NodeCountsBy: base.NodeCountsBy,
		EdgeCount:    base.EdgeCount,
	}

	n := base.NodeCount
	if n > 0 {
		summary.AverageDegree = 2 * float64(base.EdgeCount) / float64(n)
	}
	if n >= 2 {
		summary.Density = float64(base.EdgeCount) / float64(n*(n-1))
	}

	pr := s.PageRank(prOpts)
	prItems := make([]RankedItem, 0, len(pr))
	for id, score := range pr {
		prItems = append(prItems, RankedItem{Id: id, Score: score})
	}
	summary.TopByPageRank = topK(prItems, 10)

	degrees := s.DegreeCentrality()
	degItems := make([]RankedItem, 0, len(degrees))
	for id, d := range degrees {
		degItems = append(degItems, RankedItem{Id: id, Score: float64(d.Total)})
	}
	summary.TopByDegree = topK(degItems, 10)

	return summary
}

// itemHeap is a min-heap of RankedItem by Score, used to keep only the
// highest-scoring k items while scanning a larger set once.
type itemHeap []RankedItem

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)         { *h = append(*h, x.(RankedItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func topK(items []RankedItem, k int) []RankedItem {
	if len(items) == 0 {
		return nil
	}
	h := &itemHeap{}
	heap.Init(h)
	for _, it := range items {
		if h.Len() < k {
			heap.Push(h, it)
			continue
		}
		if it.Score > (*h)[0].Score {
			heap.Pop(h)
			heap.Push(h, it)
		}
	}

	out := make([]RankedItem, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(RankedItem)
	}
	return out
}
