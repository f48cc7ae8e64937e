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

package editor

import (
	"go/format"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"
)

// GoValidator implements Validator for Go source: a parse error becomes one
// Issue at its reported position. Grounded in pkg/refactor.GoASTEditor's
// own parser.ParseFile call - the same stdlib AST front end, reused here
// to reject a pending edit before it's ever written to disk rather than
// after, which go/printer's round trip never needed.
type GoValidator struct{}

// Validate implements Validator.
func (GoValidator) Validate(content, path, language string) ([]Issue, error) {
	if language != "" && language != "go" {
		return nil, nil
	}
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, path, content, parser.AllErrors)
	if err == nil {
		return nil, nil
	}
	var issues []Issue
	if errList, ok := err.(scanner.ErrorList); ok {
		for _, e := range errList {
			issues = append(issues, Issue{Line: e.Pos.Line, Column: e.Pos.Column, Message: e.Msg, Severity: "error"})
		}
		return issues, nil
	}
	return []Issue{{Message: err.Error(), Severity: "error"}}, nil
}

// GoFormatter implements Formatter by rewriting path through gofmt's
// formatting rules via go/format, the same idiom pkg/refactor.GoASTEditor
// uses for emitting Go source.
type GoFormatter struct{}

// Format implements Formatter.
func (GoFormatter) Format(path string) error {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path is the just-written edit target
	if err != nil {
		return err
	}
	formatted, err := format.Source(content)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, formatted, info.Mode().Perm())
}
