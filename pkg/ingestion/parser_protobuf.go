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
	"strings"
)

// protoParseResult is the fixture-style output of parseProtoFile: services
// and their RPCs land in Functions (a protobuf RPC is call-shaped: it has a
// request and a response), messages/enums land in Types, and `import`
// statements land in Imports so the cross-file .proto dependency graph
// feeds graph.Store's imports edges the same way a Go import does.
type protoParseResult struct {
	Functions []FunctionEntity
	Types     []TypeEntity
	Imports   []ImportEntity
}

// parseProtoFile extracts services/RPCs, messages/enums, and import
// statements from one .proto file body. No tree-sitter grammar for
// protobuf ships with this module, so extraction is regex/brace-counting
// over lines, same as the package's other non-AST fallback parsers.
func parseProtoFile(content string, filePath string, truncateFunc func(string) string) protoParseResult {
	var out protoParseResult

	lines := strings.Split(content, "\n")
	var currentService string
	var serviceStart int
	var serviceLines []string
	depth := 0

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") {
			continue
		}

		if imp, ok := parseProtoImport(trimmed, filePath, lineNum); ok {
			out.Imports = append(out.Imports, imp)
			continue
		}

		if strings.HasPrefix(trimmed, "service ") && strings.Contains(trimmed, "{") {
			fields := strings.Fields(trimmed)
			if len(fields) < 2 {
				continue
			}
			currentService = strings.TrimSuffix(fields[1], "{")
			serviceStart = lineNum
			serviceLines = []string{line}
			depth = strings.Count(trimmed, "{") - strings.Count(trimmed, "}")
			if depth == 0 {
				out.Functions = append(out.Functions, newServiceEntity(filePath, currentService, serviceStart, lineNum, serviceLines, truncateFunc))
				currentService = ""
			}
			continue
		}

		if currentService != "" {
			serviceLines = append(serviceLines, line)
			depth += strings.Count(trimmed, "{") - strings.Count(trimmed, "}")

			if strings.HasPrefix(trimmed, "rpc ") {
				if rpcName, rpcSig := protoRPCSignature(trimmed); rpcName != "" {
					out.Functions = append(out.Functions, FunctionEntity{
						ID:        GenerateFunctionID(filePath, currentService+"."+rpcName, rpcSig, lineNum, lineNum, 1, 1),
						Name:      currentService + "." + rpcName,
						Signature: rpcSig,
						FilePath:  filePath,
						CodeText:  truncateFunc(trimmed),
						StartLine: lineNum,
						EndLine:   lineNum,
						StartCol:  1,
						EndCol:    1,
					})
				}
			}

			if depth == 0 {
				out.Functions = append(out.Functions, newServiceEntity(filePath, currentService, serviceStart, lineNum, serviceLines, truncateFunc))
				currentService = ""
				serviceLines = nil
			}
			continue
		}

		if t, ok := parseProtoBlock(lines, i, "message", filePath, truncateFunc); ok {
			out.Types = append(out.Types, t)
			continue
		}
		if t, ok := parseProtoBlock(lines, i, "enum", filePath, truncateFunc); ok {
			out.Types = append(out.Types, t)
		}
	}

	return out
}

// newServiceEntity wraps a whole `service Foo { ... }` block as one
// FunctionEntity covering its full span, in addition to the per-RPC
// entities already appended for each method inside it.
func newServiceEntity(filePath, name string, startLine, endLine int, body []string, truncateFunc func(string) string) FunctionEntity {
	signature := "service " + name
	codeText := truncateFunc(strings.Join(body, "\n"))
	return FunctionEntity{
		ID:        GenerateFunctionID(filePath, name, signature, startLine, endLine, 1, 1),
		Name:      name,
		Signature: signature,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  1,
		EndCol:    1,
	}
}

// parseProtoBlock recognizes a `keyword Name { ... }` block (message or
// enum) starting at lines[idx] and returns it as a TypeEntity.
func parseProtoBlock(lines []string, idx int, keyword, filePath string, truncateFunc func(string) string) (TypeEntity, bool) {
	trimmed := strings.TrimSpace(lines[idx])
	prefix := keyword + " "
	if !strings.HasPrefix(trimmed, prefix) || !strings.Contains(trimmed, "{") {
		return TypeEntity{}, false
	}
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return TypeEntity{}, false
	}
	name := strings.TrimSuffix(fields[1], "{")
	endLine := findProtoBlockEnd(lines, idx)
	codeText := truncateFunc(strings.Join(lines[idx:endLine], "\n"))
	startLine := idx + 1

	return TypeEntity{
		ID:        GenerateTypeID(filePath, name, startLine, endLine),
		Name:      name,
		Kind:      keyword,
		FilePath:  filePath,
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  1,
		EndCol:    1,
	}, true
}

// parseProtoImport recognizes `import "path/to/other.proto";`, including
// the `public`/`weak` import modifiers, and turns it into an ImportEntity
// keyed by its literal .proto path (protobuf has no package-qualified
// import syntax the way Go does).
func parseProtoImport(trimmed, filePath string, lineNum int) (ImportEntity, bool) {
	if !strings.HasPrefix(trimmed, "import ") {
		return ImportEntity{}, false
	}
	rest := strings.TrimPrefix(trimmed, "import ")
	rest = strings.TrimPrefix(rest, "public ")
	rest = strings.TrimPrefix(rest, "weak ")
	rest = strings.TrimSpace(rest)

	start := strings.IndexByte(rest, '"')
	if start < 0 {
		return ImportEntity{}, false
	}
	end := strings.IndexByte(rest[start+1:], '"')
	if end < 0 {
		return ImportEntity{}, false
	}
	path := rest[start+1 : start+1+end]
	if path == "" {
		return ImportEntity{}, false
	}
	return ImportEntity{
		ID:         GenerateImportID(filePath, path),
		FilePath:   filePath,
		ImportPath: path,
		StartLine:  lineNum,
	}, true
}

// protoRPCSignature splits an `rpc Name(Req) returns (Resp);` line into its
// method name and a normalized "rpc Name(Req) returns (Resp)" signature,
// trimming the trailing `;` or the `{` that opens an RPC with response
// streaming options.
func protoRPCSignature(line string) (name, signature string) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(line), "rpc ")
	parenIdx := strings.Index(trimmed, "(")
	if parenIdx == -1 {
		return "", ""
	}
	name = strings.TrimSpace(trimmed[:parenIdx])

	semiIdx := strings.Index(trimmed, ";")
	braceIdx := strings.Index(trimmed, "{")
	endIdx := len(trimmed)
	switch {
	case semiIdx >= 0 && (braceIdx < 0 || semiIdx < braceIdx):
		endIdx = semiIdx
	case braceIdx >= 0:
		endIdx = braceIdx
	}
	signature = "rpc " + strings.TrimSpace(trimmed[:endIdx])
	return name, signature
}

// findProtoBlockEnd returns the 1-based line number of the line holding the
// closing brace of the message/enum block starting at lines[startIdx]
// (equivalently, the 0-based exclusive end index into lines).
func findProtoBlockEnd(lines []string, startIdx int) int {
	depth := 0
	opened := false
	for i := startIdx; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if !opened && strings.Contains(lines[i], "{") {
			opened = true
		}
		if opened && depth == 0 {
			return i + 1
		}
	}
	return len(lines)
}
