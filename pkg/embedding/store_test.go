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
	"testing"

	"github.com/kraklabs/ragex/pkg/entity"
)

func TestPutAndGet(t *testing.T) {
	s := NewStore()
	id := entity.NewFunction("auth", "Login", 0)
	if err := s.Put(id, []float32{1, 0, 0}, "func Login()"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, ok := s.Get(id)
	if !ok {
		t.Fatal("Get did not find the entry just put")
	}
	if e.Text != "func Login()" {
		t.Errorf("Text = %q", e.Text)
	}
}

func TestPutEstablishesDimsOnFirstEntry(t *testing.T) {
	s := NewStore()
	s.Put(entity.NewFunction("m", "a", 0), []float32{1, 2, 3}, "a")
	if s.Dims() != 3 {
		t.Errorf("Dims() = %d, want 3", s.Dims())
	}
}

func TestPutRejectsDimensionMismatch(t *testing.T) {
	s := NewStore()
	s.Put(entity.NewFunction("m", "a", 0), []float32{1, 2, 3}, "a")
	err := s.Put(entity.NewFunction("m", "b", 0), []float32{1, 2}, "b")
	if err == nil {
		t.Fatal("Put with mismatched dimension returned nil error")
	}
	var dimErr *DimensionMismatchError
	if !asDimensionMismatch(err, &dimErr) {
		t.Fatalf("error is not *DimensionMismatchError: %v", err)
	}
	if dimErr.Expected != 3 || dimErr.Actual != 2 {
		t.Errorf("DimensionMismatchError = %+v, want {Expected:3 Actual:2}", dimErr)
	}
	if s.Size() != 1 {
		t.Errorf("Size() after rejected Put = %d, want 1 (unchanged)", s.Size())
	}
}

func asDimensionMismatch(err error, target **DimensionMismatchError) bool {
	if e, ok := err.(*DimensionMismatchError); ok {
		*target = e
		return true
	}
	return false
}

func TestDeleteResetsDimsWhenEmpty(t *testing.T) {
	s := NewStore()
	id := entity.NewFunction("m", "a", 0)
	s.Put(id, []float32{1, 2}, "a")
	s.Delete(id)
	if s.Size() != 0 {
		t.Errorf("Size() after Delete = %d, want 0", s.Size())
	}
	if s.Dims() != 0 {
		t.Errorf("Dims() after emptying the store = %d, want 0", s.Dims())
	}
}

func TestClonedVectorIsIndependent(t *testing.T) {
	s := NewStore()
	id := entity.NewFunction("m", "a", 0)
	vec := []float32{1, 2, 3}
	s.Put(id, vec, "a")
	vec[0] = 99

	e, _ := s.Get(id)
	if e.Vector[0] != 1 {
		t.Error("mutating the caller's slice after Put mutated the stored entry")
	}
}

func TestCosineIdenticalVectors(t *testing.T) {
	if got := Cosine([]float32{1, 0, 0}, []float32{1, 0, 0}); got != 1 {
		t.Errorf("Cosine of identical unit vectors = %f, want 1", got)
	}
}

func TestCosineOrthogonalVectors(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("Cosine of orthogonal vectors = %f, want 0", got)
	}
}

func TestCosineZeroVector(t *testing.T) {
	if got := Cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("Cosine with a zero vector = %f, want 0", got)
	}
}

func TestSearchReturnsTopKSortedDescending(t *testing.T) {
	s := NewStore()
	s.Put(entity.NewFunction("m", "close", 0), []float32{1, 0}, "close")
	s.Put(entity.NewFunction("m", "far", 0), []float32{0, 1}, "far")
	s.Put(entity.NewFunction("m", "exact", 0), []float32{2, 0}, "exact")

	results := s.Search([]float32{1, 0}, SearchOptions{Limit: 2})
	if len(results) != 2 {
		t.Fatalf("Search returned %d results, want 2", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted descending: %+v", results)
	}
}

func TestSearchRespectsThreshold(t *testing.T) {
	s := NewStore()
	s.Put(entity.NewFunction("m", "close", 0), []float32{1, 0}, "close")
	s.Put(entity.NewFunction("m", "far", 0), []float32{0, 1}, "far")

	results := s.Search([]float32{1, 0}, SearchOptions{Threshold: 0.5})
	for _, r := range results {
		if r.Score < 0.5 {
			t.Errorf("result scored %f below threshold 0.5 was returned", r.Score)
		}
	}
}

func TestSearchKindFilter(t *testing.T) {
	s := NewStore()
	s.Put(entity.NewFunction("m", "fn", 0), []float32{1, 0}, "fn")
	s.Put(entity.NewFile("m.go"), []float32{1, 0}, "file")

	results := s.Search([]float32{1, 0}, SearchOptions{Kind: entity.KindFunction, Limit: 10})
	for _, r := range results {
		if r.Id.Kind != entity.KindFunction {
			t.Errorf("result %+v has kind %q, want function", r, r.Id.Kind)
		}
	}
}

func TestMatchesRoleTest(t *testing.T) {
	if !MatchesRole("TestLogin", "auth/login_test.go", "test") {
		t.Error("MatchesRole did not classify a _test.go file as test")
	}
	if MatchesRole("Login", "auth/login.go", "test") {
		t.Error("MatchesRole classified a non-test file as test")
	}
}

func TestMatchesRoleEntryPoint(t *testing.T) {
	if !MatchesRole("main", "cmd/ragex/main.go", "entry_point") {
		t.Error("MatchesRole did not classify main() as entry_point")
	}
}

func TestExtractSnippetSkipsBlankLinesAndCaps(t *testing.T) {
	code := "func a() {\n\n    return 1\n}\n"
	got := ExtractSnippet(code, 2)
	if got == "" {
		t.Fatal("ExtractSnippet returned empty for non-empty code")
	}
}

func TestExtractSnippetEmptyInput(t *testing.T) {
	if got := ExtractSnippet("", 5); got != "" {
		t.Errorf("ExtractSnippet(\"\") = %q, want \"\"", got)
	}
}

func TestConfidenceIconTiers(t *testing.T) {
	cases := map[float64]string{0.9: "high", 0.6: "medium", 0.1: "low"}
	for score, want := range cases {
		if got := ConfidenceIcon(score); got != want {
			t.Errorf("ConfidenceIcon(%f) = %q, want %q", score, got, want)
		}
	}
}
