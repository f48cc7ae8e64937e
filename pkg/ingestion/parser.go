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

package ingestion

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const defaultMaxCodeTextSize = 8192

// TreeSitterParser is the primary CodeParser: AST-accurate extraction for
// every supported language via per-language tree-sitter grammars, one
// *sitter.Parser per language so each keeps its own internal grammar state.
type TreeSitterParser struct {
	goParser *sitter.Parser
	tsParser *sitter.Parser
	pyParser *sitter.Parser

	logger          *slog.Logger
	maxCodeTextSize int64
	truncatedCount  atomic.Int64
}

// NewTreeSitterParser returns a TreeSitterParser with a grammar loaded for
// every language ragex understands. logger may be nil (defaults to
// slog.Default()).
func NewTreeSitterParser(logger *slog.Logger) *TreeSitterParser {
	if logger == nil {
		logger = slog.Default()
	}

	goParser := sitter.NewParser()
	goParser.SetLanguage(golang.GetLanguage())

	tsParser := sitter.NewParser()
	tsParser.SetLanguage(typescript.GetLanguage())

	pyParser := sitter.NewParser()
	pyParser.SetLanguage(python.GetLanguage())

	return &TreeSitterParser{
		goParser:        goParser,
		tsParser:        tsParser,
		pyParser:        pyParser,
		logger:          logger,
		maxCodeTextSize: defaultMaxCodeTextSize,
	}
}

// SetMaxCodeTextSize sets the CodeText truncation threshold in bytes.
func (p *TreeSitterParser) SetMaxCodeTextSize(size int64) {
	if size > 0 {
		p.maxCodeTextSize = size
	}
}

// GetTruncatedCount returns how many CodeTexts this parser has truncated.
func (p *TreeSitterParser) GetTruncatedCount() int {
	return int(p.truncatedCount.Load())
}

// ResetTruncatedCount zeroes the truncation counter.
func (p *TreeSitterParser) ResetTruncatedCount() {
	p.truncatedCount.Store(0)
}

func (p *TreeSitterParser) truncateCodeText(text string) string {
	if int64(len(text)) <= p.maxCodeTextSize {
		return text
	}
	p.truncatedCount.Add(1)
	return text[:p.maxCodeTextSize]
}

// ParseFile dispatches to the language-specific tree-sitter extractor named
// by fileInfo.Language and assembles a ParseResult, including the
// file-to-entity Defines/DefinesTypes edges every caller in the package
// expects alongside the raw entity slices.
func (p *TreeSitterParser) ParseFile(fileInfo FileInfo) (*ParseResult, error) {
	file := FileEntity{
		ID:       GenerateFileID(fileInfo.Path),
		Path:     fileInfo.Path,
		FullPath: fileInfo.FullPath,
		Language: fileInfo.Language,
	}

	var functions []FunctionEntity
	var types []TypeEntity
	var calls []CallsEdge
	var imports []ImportEntity
	var unresolved []UnresolvedCall
	var packageName string

	switch fileInfo.Language {
	case "go":
		content, err := readSourceFile(fileInfo.FullPath)
		if err != nil {
			return nil, err
		}
		file.Hash = hashSource(content)
		res, err := p.parseGoAST(content, fileInfo.Path)
		if err != nil {
			return nil, fmt.Errorf("parse go file %s: %w", fileInfo.Path, err)
		}
		functions, types, calls, imports, unresolved, packageName =
			res.Functions, res.Types, res.Calls, res.Imports, res.UnresolvedCalls, res.PackageName

	case "typescript", "javascript", "tsx", "jsx":
		content, err := readSourceFile(fileInfo.FullPath)
		if err != nil {
			return nil, err
		}
		file.Hash = hashSource(content)
		fns, tys, cls, err := p.parseTypeScriptAST(content, fileInfo.Path)
		if err != nil {
			return nil, fmt.Errorf("parse typescript file %s: %w", fileInfo.Path, err)
		}
		functions, types, calls = fns, tys, cls

	case "python":
		content, err := readSourceFile(fileInfo.FullPath)
		if err != nil {
			return nil, err
		}
		file.Hash = hashSource(content)
		fns, tys, cls, err := p.parsePythonAST(content, fileInfo.Path)
		if err != nil {
			return nil, fmt.Errorf("parse python file %s: %w", fileInfo.Path, err)
		}
		functions, types, calls = fns, tys, cls

	case "protobuf", "proto":
		content, err := readSourceFile(fileInfo.FullPath)
		if err != nil {
			return nil, err
		}
		file.Hash = hashSource(content)
		pres := parseProtoFile(string(content), fileInfo.Path, p.truncateCodeText)
		functions, types, imports = pres.Functions, pres.Types, pres.Imports

	default:
		// Unsupported languages yield just the file entity, with no
		// functions, types, calls or imports extracted.
	}

	result := &ParseResult{
		File:            file,
		Functions:       functions,
		Types:           types,
		Calls:           calls,
		Imports:         imports,
		UnresolvedCalls: unresolved,
		PackageName:     packageName,
	}
	for _, fn := range functions {
		result.Defines = append(result.Defines, DefinesEdge{FileID: file.ID, FunctionID: fn.ID})
	}
	for _, t := range types {
		result.DefinesTypes = append(result.DefinesTypes, DefinesTypeEdge{FileID: file.ID, TypeID: t.ID})
	}
	return result, nil
}

// countErrors counts tree-sitter ERROR nodes under root, used to log (not
// fail on) partially-unparsable source.
func countErrors(root *sitter.Node) int {
	if root == nil {
		return 0
	}
	count := 0
	if root.HasError() && root.Type() == "ERROR" {
		count++
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		count += countErrors(root.Child(i))
	}
	return count
}

// Parser is the simplified, non-tree-sitter fallback: regex/string matching
// over Go and protobuf source. It exists for environments where the tree-sitter
// CGO dependency cannot be built; accuracy is lower and only Go and
// protobuf are supported.
type Parser struct {
	logger          *slog.Logger
	maxCodeTextSize int64
	truncatedCount  atomic.Int64
}

// NewParser returns the simplified fallback parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger, maxCodeTextSize: defaultMaxCodeTextSize}
}

func (p *Parser) SetMaxCodeTextSize(size int64) {
	if size > 0 {
		p.maxCodeTextSize = size
	}
}

func (p *Parser) GetTruncatedCount() int {
	return int(p.truncatedCount.Load())
}

func (p *Parser) ResetTruncatedCount() {
	p.truncatedCount.Store(0)
}

func (p *Parser) truncateCodeText(text string) string {
	if int64(len(text)) <= p.maxCodeTextSize {
		return text
	}
	p.truncatedCount.Add(1)
	return text[:p.maxCodeTextSize]
}

// ParseFile implements CodeParser using the simplified extractors.
func (p *Parser) ParseFile(fileInfo FileInfo) (*ParseResult, error) {
	file := FileEntity{
		ID:       GenerateFileID(fileInfo.Path),
		Path:     fileInfo.Path,
		FullPath: fileInfo.FullPath,
		Language: fileInfo.Language,
	}

	var functions []FunctionEntity
	var types []TypeEntity
	var imports []ImportEntity
	var calls []CallsEdge

	switch fileInfo.Language {
	case "go":
		content, err := readSourceFile(fileInfo.FullPath)
		if err != nil {
			return nil, err
		}
		file.Hash = hashSource(content)
		functions, calls = p.parseGoFile(string(content), fileInfo.Path)
	case "protobuf", "proto":
		content, err := readSourceFile(fileInfo.FullPath)
		if err != nil {
			return nil, err
		}
		file.Hash = hashSource(content)
		pres := parseProtoFile(string(content), fileInfo.Path, p.truncateCodeText)
		functions, types, imports = pres.Functions, pres.Types, pres.Imports
	default:
		return nil, fmt.Errorf("parser: simplified mode does not support language %q for %s", fileInfo.Language, fileInfo.Path)
	}

	result := &ParseResult{File: file, Functions: functions, Types: types, Imports: imports, Calls: calls}
	for _, fn := range functions {
		result.Defines = append(result.Defines, DefinesEdge{FileID: file.ID, FunctionID: fn.ID})
	}
	for _, t := range types {
		result.DefinesTypes = append(result.DefinesTypes, DefinesTypeEdge{FileID: file.ID, TypeID: t.ID})
	}
	return result, nil
}
