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

// Package refactor implements Refactor: graph-driven rename-function,
// rename-module, and move-function operations, composed atop Transaction
// and GraphStore call/import-edge discovery, with a per-language ASTEditor
// collaborator doing the actual source rewrite, keyed by language the same
// way the ingestion parsers are.
package refactor

import "fmt"

// Op names an ASTEditor transform: the operation set the ASTEditor
// collaborator supports.
type Op string

const (
	OpRenameFunction  Op = "rename_function"
	OpRenameModule    Op = "rename_module"
	OpRemoveFunction  Op = "remove_function"
	OpExtractFunction Op = "extract_function"
)

// Params bundles every field any Op might need; each Op reads only the
// fields relevant to it.
type Params struct {
	OldName string
	NewName string
	Arity   int

	OldModule string
	NewModule string
}

// ASTEditor is the per-language source-rewrite collaborator: a pure
// function from (content, op, params) to new content. move_function is a
// two-file operation outside this single-content contract; Refactor drives
// it as an OpExtractFunction against the source file followed by an
// OpRemoveFunction against the same content, then an Insert into the
// destination file via pkg/editor.
type ASTEditor interface {
	Apply(content string, op Op, params Params) (string, error)
}

// UnsupportedLanguageError reports that no ASTEditor is registered for a
// file's language.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("refactor: no ASTEditor registered for language %q", e.Language)
}

func (e *UnsupportedLanguageError) Kind() string { return "unsupported_language" }

// Registry dispatches to an ASTEditor by language, the same way the
// ingestion pipeline's parsers are keyed by language.
type Registry struct {
	editors map[string]ASTEditor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{editors: make(map[string]ASTEditor)}
}

// Register associates language with editor, overwriting any prior
// registration.
func (r *Registry) Register(language string, editor ASTEditor) {
	r.editors[language] = editor
}

// For returns the ASTEditor registered for language, or
// UnsupportedLanguageError if none is.
func (r *Registry) For(language string) (ASTEditor, error) {
	ed, ok := r.editors[language]
	if !ok {
		return nil, &UnsupportedLanguageError{Language: language}
	}
	return ed, nil
}

// NewDefaultRegistry returns a Registry pre-populated with the Go ASTEditor
// and the regex-based fallback for every other language ragex's parsers
// cover (Elixir, Erlang, Python, JavaScript, TypeScript).
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("go", &GoASTEditor{})
	fallback := &RegexASTEditor{}
	for _, lang := range []string{"python", "javascript", "typescript", "elixir", "erlang"} {
		r.Register(lang, fallback)
	}
	return r
}
