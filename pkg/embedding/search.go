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

package embedding

import (
	"math"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/kraklabs/ragex/pkg/entity"
)

// Cosine returns the cosine similarity of a and b: dot(a,b)/(||a||*||b||),
// or 0 when either vector is the zero vector. Vectors need
// not be unit-length; the result range is [-1, 1].
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Result is a single VectorSearch hit.
type Result struct {
	Id    entity.Id
	Score float64
	Text  string
}

// SearchOptions bounds and filters VectorSearch; zero values take
// sensible defaults.
type SearchOptions struct {
	Kind      entity.Kind // optional node-kind filter; "" means any
	Threshold float64     // default 0.0
	Limit     int         // default 10
	Filter    func(entity.Id) bool
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Limit == 0 {
		o.Limit = 10
	}
	return o
}

// Search performs a parallel scan over the store (no index; exhaustive
// cosine comparison only) and returns the top-k results by cosine score
// above threshold, sorted descending. The scan is fanned across GOMAXPROCS
// workers and merged, the same worker-pool pattern pkg/ingestion uses
// throughout.
func (s *Store) Search(query []float32, opts SearchOptions) []Result {
	opts = opts.withDefaults()

	s.mu.RLock()
	type candidate struct {
		id entity.Id
		e  Entry
	}
	candidates := make([]candidate, 0, len(s.entries))
	for id, e := range s.entries {
		candidates = append(candidates, candidate{id, e})
	}
	s.mu.RUnlock()

	workers := runtime.GOMAXPROCS(0)
	if workers > len(candidates) {
		workers = len(candidates)
	}
	if workers < 1 {
		workers = 1
	}

	resultsCh := make(chan []Result, workers)
	var wg sync.WaitGroup
	chunk := (len(candidates) + workers - 1) / workers
	if chunk < 1 {
		chunk = 1
	}

	for start := 0; start < len(candidates); start += chunk {
		end := start + chunk
		if end > len(candidates) {
			end = len(candidates)
		}
		wg.Add(1)
		go func(slice []candidate) {
			defer wg.Done()
			var partial []Result
			for _, c := range slice {
				if opts.Kind != "" && c.id.Kind != opts.Kind {
					continue
				}
				if opts.Filter != nil && !opts.Filter(c.id) {
					continue
				}
				score := Cosine(query, c.e.Vector)
				if score < opts.Threshold {
					continue
				}
				partial = append(partial, Result{Id: c.id, Score: score, Text: c.e.Text})
			}
			resultsCh <- partial
		}(candidates[start:end])
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var all []Result
	for partial := range resultsCh {
		all = append(all, partial...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all
}

// Role-based path filtering, operating directly on file paths.
var (
	testFilePattern = regexp.MustCompile(
		`(?i)(_test\.go|test\.ts|test\.tsx|test\.js|\.test\.|_test\.py|tests/|__tests__/)`)
	generatedFilePattern = regexp.MustCompile(
		`(?i)(\.pb\.go|_generated\.go|\.gen\.go|_gen\.go|\.generated\.|/generated/)`)
	entryPointNamePattern = regexp.MustCompile(`(?i)^main$`)
	routerNamePattern     = regexp.MustCompile(`(?i)(RegisterRoutes|SetupRoutes|InitRoutes|NewRouter|Routes|SetupRouter|SetupHandlers|RegisterAPI)`)
	handlerNamePattern    = regexp.MustCompile(`(?i)(Handler|Controller|handle[A-Z])`)
)

// MatchesRole reports whether a node (identified by name and file path)
// belongs to the given role: source/test/generated/router/handler/
// entry_point/any.
func MatchesRole(name, filePath, role string) bool {
	switch role {
	case "source", "", "any":
		if role == "any" {
			return true
		}
		return !testFilePattern.MatchString(filePath) && !generatedFilePattern.MatchString(filePath)
	case "test":
		return testFilePattern.MatchString(filePath)
	case "generated":
		return generatedFilePattern.MatchString(filePath)
	case "entry_point":
		return entryPointNamePattern.MatchString(name) && !testFilePattern.MatchString(filePath)
	case "router":
		return routerNamePattern.MatchString(name) && !testFilePattern.MatchString(filePath)
	case "handler":
		return handlerNamePattern.MatchString(name) && !testFilePattern.MatchString(filePath)
	default:
		return !testFilePattern.MatchString(filePath) && !generatedFilePattern.MatchString(filePath)
	}
}

// ExtractSnippet returns the first maxLines non-empty lines of code,
// each capped at 80 characters, for result preview purposes.
func ExtractSnippet(code string, maxLines int) string {
	if code == "" {
		return ""
	}
	var lines []string
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) > 80 {
			line = line[:77] + "..."
		}
		lines = append(lines, line)
		if len(lines) >= maxLines {
			break
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// ConfidenceIcon returns a rough confidence tier for a similarity score.
func ConfidenceIcon(similarity float64) string {
	switch {
	case similarity >= 0.75:
		return "high"
	case similarity >= 0.50:
		return "medium"
	default:
		return "low"
	}
}
