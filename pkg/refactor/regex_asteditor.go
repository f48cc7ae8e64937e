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
	"fmt"
	"regexp"
	"strings"
)

// RegexASTEditor is the fallback ASTEditor for every language ragex parses
// but has no full-AST rewrite path for (Python, JavaScript/TypeScript,
// Elixir, Erlang). It finds definitions and call sites by regex rather
// than a real parse tree. The balanced-paren/top-level-comma scan used to
// verify a match's arity is the same algorithm pkg/sigparse's
// ExtractParamString/splitTopLevel implement for Go signatures,
// reimplemented here since sigparse's entry point assumes a leading "func"
// keyword that the other languages don't have.
type RegexASTEditor struct{}

// definitionHeaders are, per language, the regexes that find a definition
// header's opening keyword+name, with capture group 1 = name. The scan
// tries each in turn since the ragex-local language tag isn't threaded
// through ASTEditor.Apply.
var definitionHeaders = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*def\s+(\w+)\s*\(`),           // python, elixir (defp matches too via \s*def)
	regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(`), // javascript/typescript
	regexp.MustCompile(`(?m)^(\w+)\s*\(`),                     // erlang function clause
}

func findDefinitionHeader(content, name string) (headerStart, nameStart, nameEnd, openParen int, ok bool) {
	for _, re := range definitionHeaders {
		locs := re.FindAllStringSubmatchIndex(content, -1)
		for _, loc := range locs {
			if content[loc[2]:loc[3]] != name {
				continue
			}
			return loc[0], loc[2], loc[3], loc[1] - 1, true
		}
	}
	return 0, 0, 0, 0, false
}

// extractParamSpan returns the raw text between the '(' at openIdx in s
// and its matching ')'.
func extractParamSpan(s string, openIdx int) (raw string, closeIdx int, ok bool) {
	if openIdx >= len(s) || s[openIdx] != '(' {
		return "", 0, false
	}
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[openIdx+1 : i], i, true
			}
		}
	}
	return "", 0, false
}

// countArity counts top-level comma-separated segments in a raw param
// list, mirroring pkg/sigparse's splitTopLevel/ParseGoParams counting.
func countArity(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	depth := 0
	count := 1
	for _, r := range raw {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				count++
			}
		}
	}
	return count
}

// matchingDefinition locates the single definition header for name whose
// parameter list has exactly arity params.
func matchingDefinition(content, name string, arity int) (nameStart, nameEnd, openParen, closeParen int, ok bool) {
	search := content
	offset := 0
	for {
		_, nStart, nEnd, open, found := findDefinitionHeader(search, name)
		if !found {
			return 0, 0, 0, 0, false
		}
		raw, close, spanOK := extractParamSpan(search, open)
		if spanOK && countArity(raw) == arity {
			return offset + nStart, offset + nEnd, offset + open, offset + close, true
		}
		// Advance past this header and keep looking for another
		// definition of the same name at a different arity.
		advance := nEnd
		offset += advance
		search = search[advance:]
	}
}

func callPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`([\w.:]*)\b(` + regexp.QuoteMeta(name) + `)(\s*\()`)
}

// Apply implements ASTEditor.
func (r *RegexASTEditor) Apply(content string, op Op, params Params) (string, error) {
	switch op {
	case OpRenameFunction:
		return r.renameFunction(content, params.OldName, params.NewName, params.Arity)
	case OpRenameModule:
		return r.renameModule(content, params.OldModule, params.NewModule)
	case OpRemoveFunction:
		return r.removeDefinitionBlock(content, params.OldName, params.Arity)
	case OpExtractFunction:
		return r.extractDefinitionBlock(content, params.OldName, params.Arity)
	default:
		return "", fmt.Errorf("refactor: regex editor: unsupported op %q", op)
	}
}

// renameFunction renames the matching definition header's name token and
// every call site whose arity agrees.
func (r *RegexASTEditor) renameFunction(content, oldName, newName string, arity int) (string, error) {
	nameStart, nameEnd, _, _, ok := matchingDefinition(content, oldName, arity)
	if !ok {
		return "", &NotFoundError{Kind: "function", ID: fmt.Sprintf("%s/%d", oldName, arity)}
	}
	out := content[:nameStart] + newName + content[nameEnd:]

	calls := callPattern(oldName)
	var b strings.Builder
	last := 0
	for _, m := range calls.FindAllStringSubmatchIndex(out, -1) {
		// m[7]-1 is the call's opening parenthesis.
		if raw, _, spanOK := extractParamSpan(out, m[7]-1); !spanOK || countArity(raw) != arity {
			continue
		}
		b.WriteString(out[last:m[4]] + newName)
		last = m[5]
	}
	return b.String() + out[last:], nil
}

// renameModule rewrites import/require statements referencing oldModule
// to newModule. Covers the common single-quoted/double-quoted/backtick
// import string forms shared by JS/TS/Python/Elixir/Erlang module
// references.
func (r *RegexASTEditor) renameModule(content, oldModule, newModule string) (string, error) {
	pattern := regexp.MustCompile("([\"'`])" + regexp.QuoteMeta(oldModule) + "([\"'`])")
	if !pattern.MatchString(content) {
		return "", &NotFoundError{Kind: "module", ID: oldModule}
	}
	return pattern.ReplaceAllString(content, "${1}"+newModule+"${2}"), nil
}

// removeDefinitionBlock deletes the definition header and its body.
func (r *RegexASTEditor) removeDefinitionBlock(content, name string, arity int) (string, error) {
	start, end, ok := r.locateDefinitionBlock(content, name, arity)
	if !ok {
		return "", &NotFoundError{Kind: "function", ID: fmt.Sprintf("%s/%d", name, arity)}
	}
	return content[:start] + content[end:], nil
}

// extractDefinitionBlock returns the source text of the definition block
// matching name/arity, the fallback-editor half of move_function's
// "read what to insert at the destination" step.
func (r *RegexASTEditor) extractDefinitionBlock(content, name string, arity int) (string, error) {
	start, end, ok := r.locateDefinitionBlock(content, name, arity)
	if !ok {
		return "", &NotFoundError{Kind: "function", ID: fmt.Sprintf("%s/%d", name, arity)}
	}
	return content[start:end], nil
}

func (r *RegexASTEditor) locateDefinitionBlock(content, name string, arity int) (start, end int, ok bool) {
	_, _, _, closeParen, found := matchingDefinition(content, name, arity)
	if !found {
		return 0, 0, false
	}
	lineStart := strings.LastIndexByte(content[:closeParen], '\n') + 1
	blockEnd := endOfBlock(content, lineStart, closeParen)
	return lineStart, blockEnd, true
}

// endOfBlock finds where a definition's body ends, starting the scan from
// closeParen (the definition header's closing paren). For brace-delimited
// languages it balances braces from the first '{' found on or after
// closeParen; otherwise it falls back to the indentation heuristic, ending
// the block at the first subsequent line indented no further than the
// header (the off-side rule Python and Elixir bodies follow).
func endOfBlock(content string, lineStart, closeParen int) int {
	headerIndent := indentOf(content[lineStart:])

	if brace := strings.IndexByte(content[closeParen:], '{'); brace >= 0 && brace < 3 {
		depth := 0
		for i := closeParen + brace; i < len(content); i++ {
			switch content[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					end := i + 1
					if end < len(content) && content[end] == '\n' {
						end++
					}
					return end
				}
			}
		}
	}

	lines := strings.Split(content[lineStart:], "\n")
	offset := lineStart
	for i, line := range lines {
		if i == 0 {
			offset += len(line) + 1
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			offset += len(line) + 1
			continue
		}
		if indentOf(line) <= headerIndent {
			return offset
		}
		offset += len(line) + 1
	}
	return len(content)
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' || r == '\t' {
			n++
			continue
		}
		break
	}
	return n
}
