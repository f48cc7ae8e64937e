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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Go is the primary source language this package parses: every other
// CodeParser in this package exists to cover a language Go projects embed
// (protobuf, TypeScript frontends) or to fall back when CGO is off
// (Parser.parseGoFile).

// goFunctionContext carries shared state across one file's AST walk.
type goFunctionContext struct {
	functions    []goFunctionWithNode
	funcNameToID map[string]string // simple name -> staging ID, for same-file call resolution
	content      []byte
	filePath     string
	anonCounter  int
}

// goFunctionWithNode pairs an extracted FunctionEntity with the AST node it
// came from, so the call-extraction pass can walk each body without
// re-finding it.
type goFunctionWithNode struct {
	entity FunctionEntity
	node   *sitter.Node
}

// goParseResult is everything parseGoAST extracts from one Go file.
type goParseResult struct {
	Functions       []FunctionEntity
	Types           []TypeEntity
	Calls           []CallsEdge
	Imports         []ImportEntity
	UnresolvedCalls []UnresolvedCall
	PackageName     string
}

// parseGoAST is the tree-sitter entry point for Go source: package name,
// imports, functions/methods/closures, their intra-file and cross-file
// calls, and type declarations.
func (p *TreeSitterParser) parseGoAST(content []byte, filePath string) (*goParseResult, error) {
	tree, err := p.goParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	rootNode := tree.RootNode()
	if rootNode.HasError() {
		if errorCount := countErrors(rootNode); errorCount > 0 {
			p.logger.Warn("parser.treesitter.go.syntax_errors", "path", filePath, "error_count", errorCount)
		}
		// tree-sitter is error-tolerant; keep extracting from the partial tree.
	}

	packageName := p.extractGoPackageName(rootNode, content)
	imports := p.extractGoImports(rootNode, content, filePath)

	ctx := &goFunctionContext{
		funcNameToID: make(map[string]string),
		content:      content,
		filePath:     filePath,
	}
	p.walkGoAST(rootNode, ctx)

	var calls []CallsEdge
	var unresolvedCalls []UnresolvedCall
	for _, fnWithNode := range ctx.functions {
		localCalls, unresolved := p.extractGoCalls(fnWithNode.node, content, fnWithNode.entity.ID, ctx.funcNameToID, filePath)
		calls = append(calls, localCalls...)
		unresolvedCalls = append(unresolvedCalls, unresolved...)
	}

	functions := make([]FunctionEntity, len(ctx.functions))
	for i, fn := range ctx.functions {
		functions[i] = fn.entity
	}

	types := p.extractGoTypes(rootNode, content, filePath)

	return &goParseResult{
		Functions:       functions,
		Types:           types,
		Calls:           calls,
		Imports:         imports,
		UnresolvedCalls: unresolvedCalls,
		PackageName:     packageName,
	}, nil
}

// walkGoAST recurses the AST collecting every function-shaped declaration:
// top-level funcs, methods (receiver-qualified), and func literals
// (closures). Each is recorded with its AST node so extractGoCalls can walk
// its body in a second pass once every same-file name is known.
func (p *TreeSitterParser) walkGoAST(node *sitter.Node, ctx *goFunctionContext) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "function_declaration":
		if fn := p.extractGoFunctionDeclaration(node, ctx); fn != nil {
			ctx.functions = append(ctx.functions, goFunctionWithNode{entity: *fn, node: node})
			ctx.funcNameToID[fn.Name] = fn.ID
		}
	case "method_declaration":
		if fn := p.extractGoMethodDeclaration(node, ctx); fn != nil {
			ctx.functions = append(ctx.functions, goFunctionWithNode{entity: *fn, node: node})
			// "(s *Server) Start()" records as "Server.Start"; same-package
			// callers spell it just "Start", so index by the simple name too.
			ctx.funcNameToID[extractSimpleName(fn.Name)] = fn.ID
		}
	case "func_literal":
		if fn := p.extractGoFuncLiteral(node, ctx); fn != nil {
			ctx.functions = append(ctx.functions, goFunctionWithNode{entity: *fn, node: node})
			// Anonymous - never a call target, so it's not added to funcNameToID.
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walkGoAST(node.Child(i), ctx)
	}
}

// goSignature renders a Go func/method declaration's signature from its
// named field-children, shared by top-level funcs, methods, and literals so
// the three don't each re-derive the same "name[T](...) result" shape.
type goSignature struct {
	receiver   string
	name       string
	typeParams string
	params     string
	result     string
}

func (s goSignature) String() string {
	var b strings.Builder
	b.WriteString("func ")
	if s.receiver != "" {
		b.WriteString(s.receiver)
		b.WriteString(" ")
	}
	b.WriteString(s.name)
	b.WriteString(s.typeParams)
	b.WriteString(s.params)
	if s.result != "" {
		b.WriteString(" ")
		b.WriteString(s.result)
	}
	return b.String()
}

func fieldText(node *sitter.Node, field string, content []byte) string {
	n := node.ChildByFieldName(field)
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

// extractGoFunctionDeclaration extracts a top-level func, including
// generics: func foo(), func foo[T any](), func init().
func (p *TreeSitterParser) extractGoFunctionDeclaration(node *sitter.Node, ctx *goFunctionContext) *FunctionEntity {
	name := fieldText(node, "name", ctx.content)
	if name == "" {
		return nil
	}
	sig := goSignature{
		name:       name,
		typeParams: fieldText(node, "type_parameters", ctx.content),
		params:     fieldText(node, "parameters", ctx.content),
		result:     fieldText(node, "result", ctx.content),
	}
	return p.createGoFunctionEntity(node, ctx, name, sig.String())
}

// extractGoMethodDeclaration extracts a method: func (r *Receiver) Method(),
// func (r Receiver) Method[T any](). FunctionEntity.Name is
// "ReceiverType.MethodName" so cross-file resolution can disambiguate
// same-named methods on different types.
func (p *TreeSitterParser) extractGoMethodDeclaration(node *sitter.Node, ctx *goFunctionContext) *FunctionEntity {
	methodName := fieldText(node, "name", ctx.content)
	if methodName == "" {
		return nil
	}

	receiverNode := node.ChildByFieldName("receiver")
	var receiver, receiverType string
	if receiverNode != nil {
		receiver = string(ctx.content[receiverNode.StartByte():receiverNode.EndByte()])
		receiverType = extractReceiverType(receiverNode, ctx.content)
	}

	fullName := methodName
	if receiverType != "" {
		fullName = receiverType + "." + methodName
	}

	sig := goSignature{
		receiver:   receiver,
		name:       methodName,
		typeParams: fieldText(node, "type_parameters", ctx.content),
		params:     fieldText(node, "parameters", ctx.content),
		result:     fieldText(node, "result", ctx.content),
	}
	return p.createGoFunctionEntity(node, ctx, fullName, sig.String())
}

// extractGoFuncLiteral extracts an anonymous closure: func() {}, func(x int)
// int {}. Named by position ($anon_N) since it has no identifier of its own.
func (p *TreeSitterParser) extractGoFuncLiteral(node *sitter.Node, ctx *goFunctionContext) *FunctionEntity {
	ctx.anonCounter++
	name := fmt.Sprintf("$anon_%d", ctx.anonCounter)

	sig := goSignature{
		name:   "",
		params: fieldText(node, "parameters", ctx.content),
		result: fieldText(node, "result", ctx.content),
	}
	signature := strings.Replace(sig.String(), "func ", "func", 1)
	return p.createGoFunctionEntity(node, ctx, name, signature)
}

// createGoFunctionEntity builds the FunctionEntity common to all three
// extractors above: position, truncated source text, and staging ID.
func (p *TreeSitterParser) createGoFunctionEntity(node *sitter.Node, ctx *goFunctionContext, name, signature string) *FunctionEntity {
	startLine, endLine, startCol, endCol := nodeSpan(node)
	codeText := p.truncateCodeText(string(ctx.content[node.StartByte():node.EndByte()]))
	id := GenerateFunctionID(ctx.filePath, name, signature, startLine, endLine, startCol, endCol)

	return &FunctionEntity{
		ID:        id,
		Name:      name,
		Signature: signature,
		FilePath:  ctx.filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

// extractReceiverType extracts the receiver's type name: from "(s *Server)"
// returns "Server", from "(s Server[T])" returns "Server".
func extractReceiverType(receiverNode *sitter.Node, content []byte) string {
	if receiverNode == nil {
		return ""
	}
	for i := 0; i < int(receiverNode.ChildCount()); i++ {
		child := receiverNode.Child(i)
		if child.Type() == "parameter_declaration" {
			if typeNode := child.ChildByFieldName("type"); typeNode != nil {
				return extractBaseTypeName(typeNode, content)
			}
		}
	}
	return ""
}

// extractBaseTypeName strips pointer and generic-instantiation syntax from a
// type node: *Server -> Server, Server[T] -> Server, *Server[T] -> Server.
func extractBaseTypeName(typeNode *sitter.Node, content []byte) string {
	if typeNode == nil {
		return ""
	}

	switch typeNode.Type() {
	case "pointer_type":
		for i := 0; i < int(typeNode.ChildCount()); i++ {
			if child := typeNode.Child(i); child.Type() != "*" {
				return extractBaseTypeName(child, content)
			}
		}
	case "generic_type":
		if typeNameNode := typeNode.ChildByFieldName("type"); typeNameNode != nil {
			return string(content[typeNameNode.StartByte():typeNameNode.EndByte()])
		}
	case "type_identifier":
		return string(content[typeNode.StartByte():typeNode.EndByte()])
	}

	typeName := strings.TrimPrefix(string(content[typeNode.StartByte():typeNode.EndByte()]), "*")
	if idx := strings.Index(typeName, "["); idx > 0 {
		typeName = typeName[:idx]
	}
	return typeName
}

// extractSimpleName strips a method's receiver-type prefix: "Server.Start"
// -> "Start".
func extractSimpleName(fullName string) string {
	if idx := strings.LastIndex(fullName, "."); idx >= 0 {
		return fullName[idx+1:]
	}
	return fullName
}

// callNode finds the body block of a function-shaped node, for both regular
// functions/methods (the "body" field) and func literals (a bare "block"
// child with no named field).
func callNode(fnNode *sitter.Node) *sitter.Node {
	if bodyNode := fnNode.ChildByFieldName("body"); bodyNode != nil {
		return bodyNode
	}
	for i := 0; i < int(fnNode.ChildCount()); i++ {
		if child := fnNode.Child(i); child.Type() == "block" {
			return child
		}
	}
	return nil
}

// extractGoCalls walks one function's body for call expressions, splitting
// them into same-file calls (resolved immediately against funcNameToID) and
// cross-package calls (returned as UnresolvedCall for CallResolver to
// settle once the whole batch is indexed).
func (p *TreeSitterParser) extractGoCalls(fnNode *sitter.Node, content []byte, callerID string, funcNameToID map[string]string, filePath string) ([]CallsEdge, []UnresolvedCall) {
	var localCalls []CallsEdge
	var unresolvedCalls []UnresolvedCall
	if fnNode == nil {
		return localCalls, unresolvedCalls
	}
	bodyNode := callNode(fnNode)
	if bodyNode == nil {
		return localCalls, unresolvedCalls
	}

	seenLocal := make(map[string]bool)
	seenUnresolved := make(map[string]bool)
	p.walkGoCallExpressions(bodyNode, content, callerID, funcNameToID, filePath, &localCalls, &unresolvedCalls, seenLocal, seenUnresolved)
	return localCalls, unresolvedCalls
}

func (p *TreeSitterParser) walkGoCallExpressions(
	node *sitter.Node, content []byte, callerID string, funcNameToID map[string]string, filePath string,
	localCalls *[]CallsEdge, unresolvedCalls *[]UnresolvedCall,
	seenLocal, seenUnresolved map[string]bool,
) {
	if node == nil {
		return
	}

	if node.Type() == "call_expression" {
		if funcNode := node.ChildByFieldName("function"); funcNode != nil {
			simpleName, fullName := p.extractGoCalleeNames(funcNode, content)
			if simpleName != "" {
				if calleeID, exists := funcNameToID[simpleName]; exists {
					if calleeID != callerID {
						if edge, ok := dedupeEdge(seenLocal, callerID, calleeID); ok {
							*localCalls = append(*localCalls, edge)
						}
					}
				} else if fullName != "" {
					key := callerID + "->" + fullName
					if !seenUnresolved[key] {
						seenUnresolved[key] = true
						*unresolvedCalls = append(*unresolvedCalls, UnresolvedCall{
							CallerID:   callerID,
							CalleeName: fullName,
							FilePath:   filePath,
							Line:       int(node.StartPoint().Row) + 1,
						})
					}
				}
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walkGoCallExpressions(node.Child(i), content, callerID, funcNameToID, filePath, localCalls, unresolvedCalls, seenLocal, seenUnresolved)
	}
}

// extractGoCalleeNames reads a call_expression's function operand once and
// returns both the simple name used for same-file lookup ("Foo") and the
// full qualified spelling CallResolver needs for cross-package lookup
// ("pkg.Foo"); a bare identifier reports the same value for both.
func (p *TreeSitterParser) extractGoCalleeNames(node *sitter.Node, content []byte) (simple, full string) {
	if node == nil {
		return "", ""
	}

	switch node.Type() {
	case "identifier":
		name := string(content[node.StartByte():node.EndByte()])
		return name, name
	case "selector_expression":
		fieldNode := node.ChildByFieldName("field")
		if fieldNode == nil {
			return "", ""
		}
		return string(content[fieldNode.StartByte():fieldNode.EndByte()]), string(content[node.StartByte():node.EndByte()])
	case "index_expression":
		// Generic instantiation at the call site: foo[int]().
		if operand := node.ChildByFieldName("operand"); operand != nil {
			return p.extractGoCalleeNames(operand, content)
		}
	}
	return "", ""
}

// extractGoPackageName reads the file's package clause.
func (p *TreeSitterParser) extractGoPackageName(rootNode *sitter.Node, content []byte) string {
	if rootNode == nil {
		return ""
	}
	for i := 0; i < int(rootNode.ChildCount()); i++ {
		child := rootNode.Child(i)
		if child.Type() != "package_clause" {
			continue
		}
		if nameNode := child.ChildByFieldName("name"); nameNode != nil {
			return string(content[nameNode.StartByte():nameNode.EndByte()])
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			if grandchild := child.Child(j); grandchild.Type() == "package_identifier" {
				return string(content[grandchild.StartByte():grandchild.EndByte()])
			}
		}
	}
	return ""
}

// extractGoImports collects every top-level import_declaration.
func (p *TreeSitterParser) extractGoImports(rootNode *sitter.Node, content []byte, filePath string) []ImportEntity {
	var imports []ImportEntity
	if rootNode == nil {
		return imports
	}
	for i := 0; i < int(rootNode.ChildCount()); i++ {
		if child := rootNode.Child(i); child.Type() == "import_declaration" {
			imports = append(imports, p.extractGoImportDeclaration(child, content, filePath)...)
		}
	}
	return imports
}

// extractGoImportDeclaration handles both single imports and import blocks.
func (p *TreeSitterParser) extractGoImportDeclaration(node *sitter.Node, content []byte, filePath string) []ImportEntity {
	var imports []ImportEntity
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_spec":
			if imp := p.extractGoImportSpec(child, content, filePath); imp != nil {
				imports = append(imports, *imp)
			}
		case "import_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "import_spec" {
					if imp := p.extractGoImportSpec(spec, content, filePath); imp != nil {
						imports = append(imports, *imp)
					}
				}
			}
		}
	}
	return imports
}

// extractGoImportSpec extracts one import: path (required), plus its alias
// if explicit, dot-imported (".") or blank ("_").
func (p *TreeSitterParser) extractGoImportSpec(node *sitter.Node, content []byte, filePath string) *ImportEntity {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		for i := 0; i < int(node.ChildCount()); i++ {
			if child := node.Child(i); child.Type() == "interpreted_string_literal" {
				pathNode = child
				break
			}
		}
	}
	if pathNode == nil {
		return nil
	}
	importPath := strings.Trim(string(content[pathNode.StartByte():pathNode.EndByte()]), `"`)

	alias := ""
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		alias = string(content[nameNode.StartByte():nameNode.EndByte()])
	} else {
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			switch child.Type() {
			case "dot", ".":
				alias = "."
			case "blank_identifier":
				alias = "_"
			case "package_identifier":
				alias = string(content[child.StartByte():child.EndByte()])
			}
			if alias != "" {
				break
			}
		}
	}

	return &ImportEntity{
		ID:         GenerateImportID(filePath, importPath),
		FilePath:   filePath,
		ImportPath: importPath,
		Alias:      alias,
		StartLine:  int(node.StartPoint().Row) + 1,
	}
}

// parseGoFile is the CGO-free fallback (ParserModeSimplified): brace
// counting and regex-shaped pattern matching instead of a real AST.
// Known gaps versus parseGoAST:
//   - functions nested in structs/interfaces may not be found
//   - complex generic signatures may be truncated
//   - call resolution is same-file only, by name collision
func (p *Parser) parseGoFile(content, filePath string) ([]FunctionEntity, []CallsEdge) {
	var functions []FunctionEntity
	lines := strings.Split(content, "\n")

	inFunction := false
	var currentFn *FunctionEntity
	var fnStartLine int
	var fnLines []string

	flush := func(endLine int) {
		if currentFn == nil {
			return
		}
		currentFn.EndLine = endLine
		currentFn.CodeText = p.truncateCodeText(strings.Join(fnLines, "\n"))
		functions = append(functions, *currentFn)
		currentFn = nil
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "func ") {
			flush(fnStartLine + len(fnLines) - 1)

			fnName, signature := p.extractGoFunctionSignature(trimmed)
			if fnName != "" {
				currentFn = &FunctionEntity{
					ID:        GenerateFunctionID(filePath, fnName, signature, lineNum, lineNum, 1, len(line)),
					Name:      fnName,
					Signature: signature,
					FilePath:  filePath,
					StartLine: lineNum,
					EndLine:   lineNum,
					StartCol:  1,
					EndCol:    len(line),
				}
				fnStartLine = lineNum
				fnLines = []string{line}
				inFunction = true
			}
		} else if inFunction {
			fnLines = append(fnLines, line)
			if trimmed == "}" && len(fnLines) > 1 {
				braceCount := 0
				for _, l := range fnLines {
					braceCount += strings.Count(l, "{") - strings.Count(l, "}")
				}
				if braceCount == 0 {
					inFunction = false
					flush(lineNum)
				}
			}
		}
	}
	flush(len(lines))

	calls := p.extractGoCallsSimplified(functions, content)
	return functions, calls
}

// extractGoCallsSimplified matches identifier( patterns in each function's
// body text against the file's own function names - same-file calls only.
func (p *Parser) extractGoCallsSimplified(functions []FunctionEntity, content string) []CallsEdge {
	var calls []CallsEdge

	funcNameToID := make(map[string]string)
	for _, fn := range functions {
		funcNameToID[extractSimpleName(fn.Name)] = fn.ID
	}

	for _, caller := range functions {
		callerBody := caller.CodeText
		if idx := strings.Index(callerBody, "{"); idx >= 0 {
			callerBody = callerBody[idx+1:]
		}

		seenCalls := make(map[string]bool)
		for _, calledName := range p.findGoCalls(callerBody) {
			calleeID, exists := funcNameToID[calledName]
			if !exists || calleeID == caller.ID {
				continue
			}
			if edge, ok := dedupeEdge(seenCalls, caller.ID, calleeID); ok {
				calls = append(calls, edge)
			}
		}
	}

	return calls
}

// findGoCalls scans code for identifier( occurrences, skipping string and
// comment contents so e.g. a quoted "foo(" in a log message isn't mistaken
// for a call.
func (p *Parser) findGoCalls(code string) []string {
	var calls []string
	inString := false
	inComment := false
	inLineComment := false

	i := 0
	for i < len(code) {
		if !inString && i+1 < len(code) {
			if code[i] == '/' && code[i+1] == '/' {
				inLineComment = true
				i += 2
				continue
			}
			if code[i] == '/' && code[i+1] == '*' {
				inComment = true
				i += 2
				continue
			}
		}
		if inLineComment && code[i] == '\n' {
			inLineComment = false
			i++
			continue
		}
		if inComment && i+1 < len(code) && code[i] == '*' && code[i+1] == '/' {
			inComment = false
			i += 2
			continue
		}
		if inComment || inLineComment {
			i++
			continue
		}

		if code[i] == '"' && (i == 0 || code[i-1] != '\\') {
			inString = !inString
			i++
			continue
		}
		if code[i] == '`' {
			i++
			for i < len(code) && code[i] != '`' {
				i++
			}
			i++
			continue
		}
		if inString {
			i++
			continue
		}

		if isGoIdentStart(code[i]) {
			start := i
			for i < len(code) && isGoIdentChar(code[i]) {
				i++
			}
			name := code[start:i]

			for i < len(code) && (code[i] == ' ' || code[i] == '\t' || code[i] == '\n') {
				i++
			}

			if i < len(code) && code[i] == '(' && !isGoKeyword(name) {
				calls = append(calls, name)
			}
			continue
		}

		i++
	}

	return calls
}

func isGoIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isGoIdentChar(c byte) bool {
	return isGoIdentStart(c) || (c >= '0' && c <= '9')
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true,
	"continue": true, "default": true, "defer": true, "else": true,
	"fallthrough": true, "for": true, "func": true, "go": true,
	"goto": true, "if": true, "import": true, "interface": true,
	"map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true,
	"var": true, "make": true, "new": true, "append": true,
	"copy": true, "delete": true, "len": true, "cap": true,
	"close": true, "panic": true, "recover": true, "print": true,
	"println": true, "complex": true, "real": true, "imag": true,
}

func isGoKeyword(name string) bool {
	return goKeywords[name]
}

// extractGoFunctionSignature pulls the name and signature out of a `func `
// declaration line, stripping any receiver.
func (p *Parser) extractGoFunctionSignature(line string) (name, signature string) {
	rest := strings.TrimPrefix(line, "func ")
	if rest == line {
		return "", ""
	}

	if strings.HasPrefix(rest, "(") {
		idx := strings.Index(rest, ")")
		if idx == -1 {
			return "", ""
		}
		rest = strings.TrimSpace(rest[idx+1:])
	}

	parenIdx := strings.Index(rest, "(")
	if parenIdx == -1 {
		return "", ""
	}

	name = strings.TrimSpace(rest[:parenIdx])
	signature = strings.TrimSpace(rest[:strings.Index(rest, "{")])
	return name, signature
}

// extractGoTypes collects struct/interface/type-alias declarations.
func (p *TreeSitterParser) extractGoTypes(rootNode *sitter.Node, content []byte, filePath string) []TypeEntity {
	var types []TypeEntity
	if rootNode == nil {
		return types
	}
	p.walkGoTypesAST(rootNode, content, filePath, &types)
	return types
}

func (p *TreeSitterParser) walkGoTypesAST(node *sitter.Node, content []byte, filePath string, types *[]TypeEntity) {
	if node == nil {
		return
	}
	if node.Type() == "type_declaration" {
		p.extractGoTypeDeclaration(node, content, filePath, types)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		p.walkGoTypesAST(node.Child(i), content, filePath, types)
	}
}

// extractGoTypeDeclaration handles both single type declarations and
// parenthesized type blocks.
func (p *TreeSitterParser) extractGoTypeDeclaration(node *sitter.Node, content []byte, filePath string, types *[]TypeEntity) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_spec":
			if te := p.extractGoTypeSpec(child, content, filePath); te != nil {
				*types = append(*types, *te)
			}
		case "type_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "type_spec" {
					if te := p.extractGoTypeSpec(spec, content, filePath); te != nil {
						*types = append(*types, *te)
					}
				}
			}
		}
	}
}

// extractGoTypeSpec extracts one type declaration as a TypeEntity.
func (p *TreeSitterParser) extractGoTypeSpec(node *sitter.Node, content []byte, filePath string) *TypeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		for i := 0; i < int(node.ChildCount()); i++ {
			if child := node.Child(i); child.Type() == "type_identifier" {
				nameNode = child
				break
			}
		}
	}
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			switch child.Type() {
			case "struct_type", "interface_type", "type_identifier", "pointer_type",
				"array_type", "slice_type", "map_type", "channel_type",
				"function_type", "generic_type":
				typeNode = child
			}
			if typeNode != nil {
				break
			}
		}
	}

	kind := p.determineGoTypeKind(typeNode, content)
	if kind == "" {
		return nil
	}

	startLine, endLine, startCol, endCol := nodeSpan(node)
	codeText := p.truncateCodeText(string(content[node.StartByte():node.EndByte()]))
	id := GenerateTypeID(filePath, name, startLine, endLine)

	return &TypeEntity{
		ID:        id,
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	}
}

// determineGoTypeKind classifies a type_spec's definition node as struct,
// interface, or type_alias (covers type Foo = Bar, type Foo Bar, type Foo
// *Bar, and similar non-struct/interface underlying types).
func (p *TreeSitterParser) determineGoTypeKind(typeNode *sitter.Node, content []byte) string {
	if typeNode == nil {
		return ""
	}
	switch typeNode.Type() {
	case "struct_type":
		return "struct"
	case "interface_type":
		return "interface"
	case "type_identifier", "pointer_type", "array_type", "slice_type",
		"map_type", "channel_type", "function_type", "generic_type":
		return "type_alias"
	default:
		return ""
	}
}
