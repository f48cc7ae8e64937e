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

package refactor

import (
	"strings"
	"testing"
)

const samplePythonSource = `def login(user, password):
    return validate(user, password)


def validate(user, password):
    return user == password
`

func TestRegexASTEditorRenameFunction(t *testing.T) {
	ed := &RegexASTEditor{}
	out, err := ed.Apply(samplePythonSource, OpRenameFunction, Params{OldName: "login", NewName: "authenticate", Arity: 2})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if strings.Contains(out, "def login(") {
		t.Error("old definition name still present")
	}
	if !strings.Contains(out, "def authenticate(") {
		t.Error("new definition name not present")
	}
}

func TestRegexASTEditorRenameFunctionNotFound(t *testing.T) {
	ed := &RegexASTEditor{}
	_, err := ed.Apply(samplePythonSource, OpRenameFunction, Params{OldName: "missing", NewName: "x", Arity: 2})
	if err == nil {
		t.Fatal("Apply returned nil error for a non-existent definition")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Errorf("error type = %T, want *NotFoundError", err)
	}
}

func TestRegexASTEditorRenameModule(t *testing.T) {
	const jsSrc = `const bcrypt = require("bcrypt");`
	ed := &RegexASTEditor{}
	out, err := ed.Apply(jsSrc, OpRenameModule, Params{OldModule: "bcrypt", NewModule: "argon2"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(out, `"argon2"`) {
		t.Errorf("module import not rewritten: %q", out)
	}
}

func TestRegexASTEditorRemoveFunction(t *testing.T) {
	ed := &RegexASTEditor{}
	out, err := ed.Apply(samplePythonSource, OpRemoveFunction, Params{OldName: "validate", Arity: 2})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if strings.Contains(out, "def validate(") {
		t.Error("removed definition still present")
	}
	if !strings.Contains(out, "def login(") {
		t.Error("remaining definition was dropped")
	}
}

func TestRegexASTEditorExtractFunction(t *testing.T) {
	ed := &RegexASTEditor{}
	out, err := ed.Apply(samplePythonSource, OpExtractFunction, Params{OldName: "validate", Arity: 2})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(out, "def validate(") {
		t.Error("extracted text missing the target definition")
	}
	if strings.Contains(out, "def login(") {
		t.Error("extracted text should contain only the target definition")
	}
}

func TestCountArityTopLevelCommasOnly(t *testing.T) {
	cases := map[string]int{
		"":                  0,
		"a":                 1,
		"a, b":              2,
		"a, (b, c), d":      3,
		"a[int, int], b":    2,
	}
	for input, want := range cases {
		if got := countArity(input); got != want {
			t.Errorf("countArity(%q) = %d, want %d", input, got, want)
		}
	}
}
