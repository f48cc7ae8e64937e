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
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// =============================================================================
// PYTHON PARSER
// =============================================================================

// parsePythonAST extracts functions, classes, and same-file calls from Python
// source using Tree-sitter, mirroring the structure of parseGoAST: a single
// walk collects function/class defs, a second pass resolves same-module
// calls by simple name.
func (p *TreeSitterParser) parsePythonAST(content []byte, filePath string) ([]FunctionEntity, []TypeEntity, []CallsEdge, error) {
	tree, err := p.pyParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	rootNode := tree.RootNode()
	if rootNode.HasError() {
		if errorCount := countErrors(rootNode); errorCount > 0 {
			p.logger.Warn("parser.treesitter.python.syntax_errors",
				"path", filePath,
				"error_count", errorCount,
			)
		}
	}

	var functions []FunctionEntity
	var types []TypeEntity
	funcNameToID := make(map[string]string)

	p.walkPythonDefs(rootNode, content, filePath, &functions, &types, funcNameToID)

	var calls []CallsEdge
	for _, fn := range functions {
		calls = append(calls, p.extractPythonCalls(rootNode, content, fn, funcNameToID)...)
	}

	return functions, types, calls, nil
}

func (p *TreeSitterParser) walkPythonDefs(node *sitter.Node, content []byte, filePath string, functions *[]FunctionEntity, types *[]TypeEntity, funcNameToID map[string]string) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_definition":
		fn := p.extractPythonFunction(node, content, filePath)
		if fn != nil {
			*functions = append(*functions, *fn)
			funcNameToID[fn.Name] = fn.ID
		}
	case "class_definition":
		te := p.extractPythonClass(node, content, filePath)
		if te != nil {
			*types = append(*types, *te)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walkPythonDefs(node.Child(i), content, filePath, functions, types, funcNameToID)
	}
}

func (p *TreeSitterParser) extractPythonFunction(node *sitter.Node, content []byte, filePath string) *FunctionEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	signature := name + "(...)"
	if params := node.ChildByFieldName("parameters"); params != nil {
		signature = name + string(content[params.StartByte():params.EndByte()])
	}

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	codeText := p.truncateCodeText(string(content[node.StartByte():node.EndByte()]))
	id := GenerateFunctionID(filePath, name, signature, startLine, endLine, startCol, endCol)

	return &FunctionEntity{
		ID:        id,
		Name:      name,
		Signature: signature,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

func (p *TreeSitterParser) extractPythonClass(node *sitter.Node, content []byte, filePath string) *TypeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	codeText := p.truncateCodeText(string(content[node.StartByte():node.EndByte()]))
	id := GenerateTypeID(filePath, name, startLine, endLine)

	return &TypeEntity{
		ID:        id,
		Name:      name,
		Kind:      "class",
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

func (p *TreeSitterParser) extractPythonCalls(rootNode *sitter.Node, content []byte, fn FunctionEntity, funcNameToID map[string]string) []CallsEdge {
	var calls []CallsEdge
	seen := make(map[string]bool)
	p.walkPythonCallExpressions(rootNode, content, fn, funcNameToID, &calls, seen)
	return calls
}

func (p *TreeSitterParser) walkPythonCallExpressions(node *sitter.Node, content []byte, fn FunctionEntity, funcNameToID map[string]string, calls *[]CallsEdge, seen map[string]bool) {
	if node == nil {
		return
	}

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	inRange := startLine >= fn.StartLine && endLine <= fn.EndLine

	if inRange && node.Type() == "call" {
		if calleeNode := node.ChildByFieldName("function"); calleeNode != nil {
			name := pythonCalleeName(calleeNode, content)
			if calleeID, ok := funcNameToID[name]; ok && calleeID != fn.ID {
				key := fn.ID + "->" + calleeID
				if !seen[key] {
					seen[key] = true
					*calls = append(*calls, CallsEdge{CallerID: fn.ID, CalleeID: calleeID})
				}
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walkPythonCallExpressions(node.Child(i), content, fn, funcNameToID, calls, seen)
	}
}

func pythonCalleeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "identifier":
		return string(content[node.StartByte():node.EndByte()])
	case "attribute":
		if attr := node.ChildByFieldName("attribute"); attr != nil {
			return string(content[attr.StartByte():attr.EndByte()])
		}
	}
	return ""
}
