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

package entity

import "testing"

func TestIdEquality(t *testing.T) {
	a := NewFunction("auth", "HandleLogin", 1)
	b := NewFunction("auth", "HandleLogin", 1)
	c := NewFunction("auth", "HandleLogin", 2)

	if a != b {
		t.Errorf("identical function ids compared unequal: %+v vs %+v", a, b)
	}
	if a == c {
		t.Errorf("ids differing only in arity compared equal: %+v vs %+v", a, c)
	}
}

func TestIdAsMapKey(t *testing.T) {
	m := map[Id]string{
		NewModule("auth"):                "module",
		NewFunction("auth", "Login", 0):  "function",
		NewFile("auth/login.go"):         "file",
	}
	if got := m[NewModule("auth")]; got != "module" {
		t.Errorf("lookup by reconstructed module id = %q, want %q", got, "module")
	}
	if got := m[NewFunction("auth", "Login", 0)]; got != "function" {
		t.Errorf("lookup by reconstructed function id = %q, want %q", got, "function")
	}
}

func TestIdString(t *testing.T) {
	cases := []struct {
		id   Id
		want string
	}{
		{NewModule("auth"), "module:auth"},
		{NewFunction("auth", "Login", 2), "function:auth.Login/2"},
		{NewFile("auth/login.go"), "file:auth/login.go"},
		{NewType("auth", "User"), "type:auth.User"},
		{NewVariable("auth", "defaultTimeout"), "variable:auth.defaultTimeout"},
	}
	for _, tc := range cases {
		if got := tc.id.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestIdHashStableAcrossCalls(t *testing.T) {
	id := NewFunction("auth", "Login", 1)
	h1 := id.Hash()
	h2 := id.Hash()
	if h1 != h2 {
		t.Errorf("Hash() not stable across calls: %q vs %q", h1, h2)
	}
	if h1 == NewFunction("auth", "Login", 2).Hash() {
		t.Errorf("distinct ids produced the same hash")
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"./auth/login.go":  "auth/login.go",
		"/auth/login.go":   "auth/login.go",
		"auth//login.go":   "auth/login.go",
		"auth/./login.go":  "auth/login.go",
		"login.go":         "login.go",
	}
	for input, want := range cases {
		if got := NormalizePath(input); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewFileNormalizesPath(t *testing.T) {
	id := NewFile("./auth/login.go")
	if id.Path != "auth/login.go" {
		t.Errorf("NewFile did not normalize path: got %q", id.Path)
	}
}

func TestHashFunctionRangeStableAndDistinct(t *testing.T) {
	h1 := HashFunctionRange("auth/login.go", "", 10, 20, 1, 2)
	h2 := HashFunctionRange("auth/login.go", "", 10, 20, 1, 2)
	if h1 != h2 {
		t.Errorf("HashFunctionRange not stable across calls: %q vs %q", h1, h2)
	}
	h3 := HashFunctionRange("auth/login.go", "", 10, 21, 1, 2)
	if h1 == h3 {
		t.Errorf("distinct ranges produced the same hash")
	}
}

func TestNodeAccessors(t *testing.T) {
	n := Node{
		Id: NewFunction("auth", "Login", 1),
		Attrs: map[string]any{
			AttrFile:       "auth/login.go",
			AttrLine:       42,
			AttrVisibility: VisibilityPublic,
			AttrDoc:        "Login authenticates a user.",
		},
	}
	if n.File() != "auth/login.go" {
		t.Errorf("File() = %q", n.File())
	}
	line, ok := n.Line()
	if !ok || line != 42 {
		t.Errorf("Line() = (%d, %v), want (42, true)", line, ok)
	}
	if n.Visibility() != VisibilityPublic {
		t.Errorf("Visibility() = %q", n.Visibility())
	}
	if n.Doc() != "Login authenticates a user." {
		t.Errorf("Doc() = %q", n.Doc())
	}
	if n.External() {
		t.Error("External() = true for a node with no external attr")
	}
}

func TestNodeLineAbsentReturnsFalse(t *testing.T) {
	n := Node{Id: NewModule("auth")}
	if _, ok := n.Line(); ok {
		t.Error("Line() reported present on a node with no line attribute")
	}
}

func TestNodeCloneIsIndependent(t *testing.T) {
	n := Node{Id: NewModule("auth"), Attrs: map[string]any{AttrDoc: "original"}}
	cp := n.Clone()
	cp.Attrs[AttrDoc] = "mutated"
	if n.Attrs[AttrDoc] != "original" {
		t.Error("mutating a clone's Attrs mutated the original")
	}
}

func TestEdgeCloneIsIndependent(t *testing.T) {
	e := Edge{
		From:  NewFunction("auth", "Login", 0),
		To:    NewFunction("auth", "validate", 1),
		Kind:  EdgeCalls,
		Attrs: map[string]any{"line": 12},
	}
	cp := e.Clone()
	cp.Attrs["line"] = 99
	if e.Attrs["line"] != 12 {
		t.Error("mutating a clone's Attrs mutated the original edge")
	}
}
