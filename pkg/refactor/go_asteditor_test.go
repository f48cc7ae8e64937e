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

const sampleGoSource = `package auth

import "crypto/bcrypt"

func Login(user string, pass string) bool {
	return validate(user, pass)
}

func validate(user string, pass string) bool {
	return bcrypt.Compare(user, pass)
}
`

func TestGoASTEditorRenameFunction(t *testing.T) {
	ed := &GoASTEditor{}
	out, err := ed.Apply(sampleGoSource, OpRenameFunction, Params{OldName: "Login", NewName: "Authenticate", Arity: 2})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if strings.Contains(out, "func Login(") {
		t.Error("old function name still present after rename")
	}
	if !strings.Contains(out, "func Authenticate(") {
		t.Error("new function name not present after rename")
	}
}

func TestGoASTEditorRenameFunctionNotFound(t *testing.T) {
	ed := &GoASTEditor{}
	_, err := ed.Apply(sampleGoSource, OpRenameFunction, Params{OldName: "Missing", NewName: "X", Arity: 2})
	if err == nil {
		t.Fatal("Apply returned nil error for a non-existent function")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Errorf("error type = %T, want *NotFoundError", err)
	}
}

func TestGoASTEditorRenameFunctionArityMismatch(t *testing.T) {
	ed := &GoASTEditor{}
	_, err := ed.Apply(sampleGoSource, OpRenameFunction, Params{OldName: "Login", NewName: "X", Arity: 1})
	if err == nil {
		t.Fatal("Apply matched a function of a different arity")
	}
}

func TestGoASTEditorRenameModule(t *testing.T) {
	ed := &GoASTEditor{}
	out, err := ed.Apply(sampleGoSource, OpRenameModule, Params{OldModule: "crypto/bcrypt", NewModule: "crypto/argon2"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(out, `"crypto/argon2"`) {
		t.Error("import path not rewritten")
	}
}

func TestGoASTEditorRemoveFunction(t *testing.T) {
	ed := &GoASTEditor{}
	out, err := ed.Apply(sampleGoSource, OpRemoveFunction, Params{OldName: "validate", Arity: 2})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if strings.Contains(out, "func validate(") {
		t.Error("removed function still present")
	}
	if !strings.Contains(out, "func Login(") {
		t.Error("remaining function was dropped")
	}
}

func TestGoASTEditorExtractFunction(t *testing.T) {
	ed := &GoASTEditor{}
	out, err := ed.Apply(sampleGoSource, OpExtractFunction, Params{OldName: "validate", Arity: 2})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(out, "func validate(") {
		t.Error("extracted text missing the target function")
	}
	if strings.Contains(out, "func Login(") {
		t.Error("extracted text should contain only the target function")
	}
}

func TestRegistryDispatchesByLanguage(t *testing.T) {
	r := NewDefaultRegistry()

	goEd, err := r.For("go")
	if err != nil {
		t.Fatalf("For(go): %v", err)
	}
	if _, ok := goEd.(*GoASTEditor); !ok {
		t.Errorf("For(go) = %T, want *GoASTEditor", goEd)
	}

	pyEd, err := r.For("python")
	if err != nil {
		t.Fatalf("For(python): %v", err)
	}
	if _, ok := pyEd.(*RegexASTEditor); !ok {
		t.Errorf("For(python) = %T, want *RegexASTEditor", pyEd)
	}
}

func TestRegistryUnsupportedLanguage(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.For("cobol")
	if err == nil {
		t.Fatal("For with an unregistered language returned nil error")
	}
	if _, ok := err.(*UnsupportedLanguageError); !ok {
		t.Errorf("error type = %T, want *UnsupportedLanguageError", err)
	}
}
