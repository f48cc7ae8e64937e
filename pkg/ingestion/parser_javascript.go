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

	sitter "github.com/smacker/go-tree-sitter"
)

// =============================================================================
// JAVASCRIPT/TYPESCRIPT SHARED FUNCTION EXTRACTION
//
// walkTSFunctions (parser_typescript.go) dispatches into these for the node
// kinds common to both grammars; TS-only kinds (method_signature,
// function_signature) have their own extractTS* extractors alongside.
// =============================================================================

// extractJSFunction extracts a top-level "function name(...) {...}" declaration.
func (p *TreeSitterParser) extractJSFunction(node *sitter.Node, content []byte, filePath string) *FunctionEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	return p.buildJSFunctionEntity(node, content, filePath, name)
}

// extractJSMethod extracts a class/object method_definition.
func (p *TreeSitterParser) extractJSMethod(node *sitter.Node, content []byte, filePath string) *FunctionEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	return p.buildJSFunctionEntity(node, content, filePath, name)
}

// extractJSArrowOrExpressionFunction extracts a named "const f = (...) => ..."
// or "const f = function(...) {...}" binding; the entity spans the whole
// variable_declarator so renames/refactors see the binding, not just the body.
func (p *TreeSitterParser) extractJSArrowOrExpressionFunction(nameNode, valueNode *sitter.Node, content []byte, filePath string) *FunctionEntity {
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	parent := nameNode.Parent()
	span := valueNode
	if parent != nil {
		span = parent
	}
	return p.buildJSFunctionEntityFromSpan(span, valueNode, content, filePath, name)
}

// extractJSAnonymousArrow extracts an arrow function with no enclosing
// variable_declarator (e.g. passed inline as a callback), synthesizing a
// name the same way the Go parser handles func literals.
func (p *TreeSitterParser) extractJSAnonymousArrow(node *sitter.Node, content []byte, filePath string, anonCounter int) *FunctionEntity {
	name := fmt.Sprintf("$anon_%d", anonCounter)
	return p.buildJSFunctionEntity(node, content, filePath, name)
}

func (p *TreeSitterParser) buildJSFunctionEntity(node *sitter.Node, content []byte, filePath, name string) *FunctionEntity {
	return p.buildJSFunctionEntityFromSpan(node, node, content, filePath, name)
}

// buildJSFunctionEntityFromSpan builds the FunctionEntity with codeText taken
// from spanNode (the declaration as a whole) but the signature derived from
// sigNode (the function/arrow node itself, where parameters live).
func (p *TreeSitterParser) buildJSFunctionEntityFromSpan(spanNode, sigNode *sitter.Node, content []byte, filePath, name string) *FunctionEntity {
	startLine := int(spanNode.StartPoint().Row) + 1
	endLine := int(spanNode.EndPoint().Row) + 1
	startCol := int(spanNode.StartPoint().Column) + 1
	endCol := int(spanNode.EndPoint().Column) + 1

	signature := name + "(...)"
	if params := sigNode.ChildByFieldName("parameters"); params != nil {
		signature = name + string(content[params.StartByte():params.EndByte()])
	}

	codeText := string(content[spanNode.StartByte():spanNode.EndByte()])
	codeText = p.truncateCodeText(codeText)

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

// extractJSCalls finds call_expression nodes anywhere in the tree that sit
// lexically inside fn's range and resolves same-file callees via
// funcNameToID; identical in spirit to the Go parser's same-file call
// resolution, simplified since JS has no qualified-package calls to defer.
func (p *TreeSitterParser) extractJSCalls(rootNode *sitter.Node, content []byte, fn FunctionEntity, funcNameToID map[string]string) []CallsEdge {
	var calls []CallsEdge
	seen := make(map[string]bool)
	p.walkJSCallExpressions(rootNode, content, fn, funcNameToID, &calls, seen)
	return calls
}

func (p *TreeSitterParser) walkJSCallExpressions(node *sitter.Node, content []byte, fn FunctionEntity, funcNameToID map[string]string, calls *[]CallsEdge, seen map[string]bool) {
	if node == nil {
		return
	}

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	inRange := startLine >= fn.StartLine && endLine <= fn.EndLine

	if inRange && node.Type() == "call_expression" {
		if calleeNode := node.ChildByFieldName("function"); calleeNode != nil {
			calleeName := jsCalleeName(calleeNode, content)
			if calleeID, ok := funcNameToID[calleeName]; ok && calleeID != fn.ID {
				key := fn.ID + "->" + calleeID
				if !seen[key] {
					seen[key] = true
					*calls = append(*calls, CallsEdge{CallerID: fn.ID, CalleeID: calleeID})
				}
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walkJSCallExpressions(node.Child(i), content, fn, funcNameToID, calls, seen)
	}
}

// jsCalleeName extracts the callable identifier, unwrapping "obj.method()"
// member expressions down to the rightmost property name.
func jsCalleeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "identifier":
		return string(content[node.StartByte():node.EndByte()])
	case "member_expression":
		if prop := node.ChildByFieldName("property"); prop != nil {
			return string(content[prop.StartByte():prop.EndByte()])
		}
	}
	return ""
}
