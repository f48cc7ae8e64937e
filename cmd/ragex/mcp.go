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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/ragex/pkg/backup"
	"github.com/kraklabs/ragex/pkg/dispatch"
	"github.com/kraklabs/ragex/pkg/editor"
	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/ingestion"
	"github.com/kraklabs/ragex/pkg/persistence"
	"github.com/kraklabs/ragex/pkg/refactor"
	"github.com/kraklabs/ragex/pkg/retrieval"
	"github.com/kraklabs/ragex/pkg/tracker"
	"github.com/kraklabs/ragex/pkg/undo"
)

const mcpProtocolVersion = "2024-11-05"

// mcpInstructions is sent to the client on initialize, telling an agent how
// to use the tool surface: the 12 graph/retrieval/editor tools this server
// exposes.
const mcpInstructions = `ragex gives you a searchable knowledge graph and hybrid retrieval index over a codebase, plus a safe editing and refactoring core. It indexes source into functions, types, files, and call/import/define edges, and embeds each entity for semantic search.

## Quick Reference

| Task | Tool |
|------|------|
| Search code by meaning or keyword | search_code |
| Find call paths between two entities | find_paths |
| Inspect graph size, density, top-ranked entities | graph_stats |
| Check indexing status | index_status |
| Apply line-range edits to one file | edit_file |
| Apply edits across several files atomically | commit_edits |
| Rename a function (and its call sites) | rename_function |
| Rename a module (and its importers) | rename_module |
| Move a function to another file | move_function |
| Undo / redo the last edit or refactor | undo / redo |
| List prior edit/refactor operations | list_undo_history |

## Workflow

1. Call index_status first if search_code or graph_stats return nothing - the project may not be indexed.
2. Use search_code for "what does X do" questions; use find_paths once you have two specific entities.
3. edit_file and commit_edits always take a backup unless backup=false is passed. rename_function, rename_module, and move_function always record an undo entry on success.
4. Every tool call returns {"status": "success"|"failure", ...}; a failure response's error.kind distinguishes validation_error, not_found, and the collaborator-specific kinds (e.g. parse_error, refactor_error) from each other.`

// jsonRPCRequest is a JSON-RPC 2.0 request, one per line on stdin.
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// jsonRPCResponse is a JSON-RPC 2.0 response, one per line on stdout.
type jsonRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type mcpServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type mcpCapabilities struct {
	Tools map[string]any `json:"tools,omitempty"`
}

type mcpInitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    mcpCapabilities `json:"capabilities"`
	ServerInfo      mcpServerInfo   `json:"serverInfo"`
	Instructions    string          `json:"instructions"`
}

type mcpTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type mcpToolsListResult struct {
	Tools []mcpTool `json:"tools"`
}

type mcpToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type mcpToolResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// mcpServer holds the dispatcher every tool call is routed through.
type mcpServer struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// runMCPServer starts ragex as a JSON-RPC 2.0 tool server over stdio: one
// request per line on stdin, one response per line on stdout, diagnostics
// to stderr. Requests are handed to a pkg/dispatch.Dispatcher wired to the
// in-memory graph/embedding/tracker stores and the editor/refactor/undo
// core.
func runMCPServer(configPath string, globals GlobalFlags) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "ragex MCP server CWD: %s\n", cwd)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot load config (%v), using defaults\n", err)
		cfg = DefaultConfig("")
		cfg.applyEnvOverrides()
	}

	logLevel := slog.LevelWarn
	if globals.Verbose > 0 {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	d, err := buildDispatcher(cfg, cwd, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "ragex MCP server starting for project %s (%d entities, %d embeddings)\n",
		cfg.ProjectID, d.Graph.Stats().NodeCount, d.Embeddings.Size())

	server := &mcpServer{dispatcher: d, logger: logger}
	serveMCPLoop(server)
}

// buildDispatcher assembles a fully-wired Dispatcher from config and any
// cached index for cwd, mirroring what runIndex/runStatus/runQuery each
// build for their own narrower purpose.
func buildDispatcher(cfg *Config, cwd string, logger *slog.Logger) (*dispatch.Dispatcher, error) {
	store, err := persistence.New(cfg.Cache.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	projectHash := persistence.ProjectHash(cwd)

	g := graph.NewStore()
	e := embedding.NewStore()
	t := tracker.New()

	var model persistence.ModelInfo
	if stats, err := store.Stats(projectHash); err == nil && len(stats) > 0 {
		meta := stats[0].Meta
		model = persistence.ModelInfo{ID: meta.EmbeddingModelID, Repo: meta.EmbeddingModelRepo, Dimensions: meta.Dimensions}
		outcome := store.Load(projectHash, model, g, e, t)
		if outcome.Kind != persistence.Loaded {
			fmt.Fprintf(os.Stderr, "Warning: cached index unreadable (%s); starting from an empty index. Run 'ragex index' first.\n", outcome.Reason)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Warning: project not indexed yet; starting from an empty index. Run 'ragex index' first.\n")
		model = persistence.ModelInfo{ID: cfg.Embedding.ModelID}
	}

	applyEmbeddingEnv(cfg)
	provider, err := ingestion.CreateEmbeddingProvider(cfg.Embedding.ModelID, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	vault := backup.New(filepath.Join(home, ".ragex", "backups"))
	ed := editor.New(vault, logger)
	undoLog := undo.New(filepath.Join(home, ".ragex", "undo", projectHash))
	registry := refactor.NewDefaultRegistry()
	ref := refactor.New(g, registry, ed, undoLog)

	return &dispatch.Dispatcher{
		Graph:       g,
		Embeddings:  e,
		Tracker:     t,
		Persistence: store,
		ProjectHash: projectHash,
		Model:       model,
		Retrieval:   retrieval.New(g, e),
		Embedder:    provider,
		Editor:      ed,
		Vault:       vault,
		Refactor:    ref,
		Undo:        undoLog,
	}, nil
}

// serveMCPLoop reads JSON-RPC requests from stdin and writes responses to
// stdout, one JSON value per line.
func serveMCPLoop(server *mcpServer) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req jsonRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid JSON-RPC request: %v\n", err)
			continue
		}

		fmt.Fprintf(os.Stderr, "-> %s\n", req.Method)

		ctx := context.Background()
		resp := server.handleRequest(ctx, req)

		if resp.ID == nil && resp.Result == nil && resp.Error == nil {
			continue
		}

		respBytes, err := json.Marshal(resp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot encode MCP response: %v\n", err)
			continue
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s\n", respBytes)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: MCP server input error: %v\n", err)
		os.Exit(1)
	}
}

func (s *mcpServer) handleRequest(ctx context.Context, req jsonRPCRequest) jsonRPCResponse {
	switch req.Method {
	case "initialize":
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: mcpInitializeResult{
			ProtocolVersion: mcpProtocolVersion,
			Capabilities:    mcpCapabilities{Tools: map[string]any{}},
			ServerInfo:      mcpServerInfo{Name: "ragex", Version: version},
			Instructions:    mcpInstructions,
		}}
	case "notifications/initialized":
		return jsonRPCResponse{}
	case "tools/list":
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: mcpToolsListResult{Tools: mcpToolDefinitions}}
	case "tools/call":
		var params mcpToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: fmt.Sprintf("invalid params: %v", err)}}
		}
		result := s.callTool(ctx, params)
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
	default:
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: fmt.Sprintf("method not found: %s", req.Method)}}
	}
}

// callTool forwards one tools/call to the Dispatcher and reshapes its
// Envelope into an MCP tool result, JSON-encoding the envelope as the
// single text content block.
func (s *mcpServer) callTool(ctx context.Context, params mcpToolCallParams) mcpToolResult {
	env := s.dispatcher.Dispatch(ctx, params.Name, params.Arguments)
	body, err := json.Marshal(env)
	if err != nil {
		return mcpToolResult{
			Content: []mcpContent{{Type: "text", Text: fmt.Sprintf("cannot encode result: %v", err)}},
			IsError: true,
		}
	}
	return mcpToolResult{
		Content: []mcpContent{{Type: "text", Text: string(body)}},
		IsError: env.Status != "success",
	}
}

// mcpToolDefinitions describes every tool in pkg/dispatch's table for
// tools/list, mirroring the wire shapes of the arg structs in
// pkg/dispatch/tools.go.
var mcpToolDefinitions = []mcpTool{
	{
		Name:        "search_code",
		Description: "Search the indexed codebase by meaning and/or graph structure. Combines vector similarity over function/type/file embeddings with graph-ranked results.",
		InputSchema: objSchema(map[string]any{
			"query":     strProp("Natural language or keyword description of what to find"),
			"strategy":  enumProp("Ranking strategy", "fusion", "semantic_first", "graph_first"),
			"kind":      strProp("Restrict to an entity kind: module, function, file, type, variable"),
			"threshold": numProp("Minimum similarity score (0.0-1.0)"),
			"limit":     intProp("Maximum results to return"),
		}, "query"),
	},
	{
		Name:        "find_paths",
		Description: "Find call-graph paths from one entity to another, bounded by max_depth/max_paths.",
		InputSchema: objSchema(map[string]any{
			"from":      entityRefSchema("Starting entity"),
			"to":        entityRefSchema("Target entity"),
			"max_depth": intProp("Maximum path length to search (default 10)"),
			"max_paths": intProp("Maximum number of paths to return (default 100)"),
		}, "from", "to"),
	},
	{
		Name:        "graph_stats",
		Description: "Summarize the indexed graph: node/edge counts per kind, density, and top entities by PageRank and degree.",
		InputSchema: objSchema(map[string]any{
			"damping":    numProp("PageRank damping factor override"),
			"iterations": intProp("PageRank iteration cap override"),
			"tolerance":  numProp("PageRank convergence tolerance override"),
		}),
	},
	{
		Name:        "index_status",
		Description: "Report the size of the currently loaded graph, embedding store, and file tracker, plus the persisted cache metadata if present. Call this first when other tools return nothing.",
		InputSchema: objSchema(map[string]any{}),
	},
	{
		Name:        "edit_file",
		Description: "Apply one or more line-range changes to a single file, with an automatic backup and optional validation/formatting.",
		InputSchema: objSchema(map[string]any{
			"path":     strProp("File path to edit"),
			"changes":  changesSchema(),
			"backup":   boolProp("Take a backup before editing (default true)"),
			"validate": boolProp("Reject the edit if the result fails to parse"),
			"format":   boolProp("Reformat the result using the language's standard formatter"),
			"language": strProp("Language override, e.g. 'go'"),
		}, "path", "changes"),
	},
	{
		Name:        "commit_edits",
		Description: "Apply edits to several files as one atomic transaction: if any file fails, every file already edited in this call is rolled back.",
		InputSchema: objSchema(map[string]any{
			"files": map[string]any{
				"type":        "array",
				"description": "Per-file edits, same shape as edit_file's path/changes/backup/validate/format/language",
				"items": objSchema(map[string]any{
					"path":     strProp("File path to edit"),
					"changes":  changesSchema(),
					"backup":   boolProp("Take a backup before editing (default true)"),
					"validate": boolProp("Reject the edit if the result fails to parse"),
					"format":   boolProp("Reformat the result using the language's standard formatter"),
					"language": strProp("Language override, e.g. 'go'"),
				}, "path", "changes"),
			},
		}, "files"),
	},
	{
		Name:        "rename_function",
		Description: "Rename a function at its definition, and (when scope is project) rewrite every call site across the project. Records an undo entry on success.",
		InputSchema: objSchema(map[string]any{
			"module":   strProp("Module the function is defined in"),
			"old_name": strProp("Current function name"),
			"new_name": strProp("New function name"),
			"arity":    intProp("Parameter count, to disambiguate overloads"),
			"scope":    enumProp("How far to rewrite call sites", "module", "project"),
		}, "module", "old_name", "new_name"),
	},
	{
		Name:        "rename_module",
		Description: "Rename a module and rewrite every file that imports it. Records an undo entry on success.",
		InputSchema: objSchema(map[string]any{
			"old_name": strProp("Current module name"),
			"new_name": strProp("New module name"),
		}, "old_name", "new_name"),
	},
	{
		Name:        "move_function",
		Description: "Move a function's definition from one file to another, rewriting its references. Records an undo entry on success.",
		InputSchema: objSchema(map[string]any{
			"module":    strProp("Module the function is defined in"),
			"name":      strProp("Function name"),
			"arity":     intProp("Parameter count, to disambiguate overloads"),
			"src_path":  strProp("File the function currently lives in"),
			"dest_path": strProp("File to move the function into"),
		}, "module", "name", "src_path", "dest_path"),
	},
	{
		Name:        "undo",
		Description: "Revert the most recent rename_function/rename_module/move_function operation not yet undone, restoring every file it touched from the undo log's snapshots. edit_file and commit_edits are not recorded in the undo log.",
		InputSchema: objSchema(map[string]any{}),
	},
	{
		Name:        "redo",
		Description: "Return the recorded parameters of the most recently undone operation; the operation itself is not re-applied.",
		InputSchema: objSchema(map[string]any{}),
	},
	{
		Name:        "list_undo_history",
		Description: "List past edit/refactor operations recorded in the undo log, most recent first.",
		InputSchema: objSchema(map[string]any{
			"limit":          intProp("Maximum entries to return"),
			"include_undone": boolProp("Include entries that have already been undone"),
		}),
	},
}

func strProp(desc string) map[string]any  { return map[string]any{"type": "string", "description": desc} }
func numProp(desc string) map[string]any  { return map[string]any{"type": "number", "description": desc} }
func intProp(desc string) map[string]any  { return map[string]any{"type": "integer", "description": desc} }
func boolProp(desc string) map[string]any { return map[string]any{"type": "boolean", "description": desc} }

func enumProp(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func objSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	} else {
		schema["required"] = []string{}
	}
	return schema
}

func entityRefSchema(desc string) map[string]any {
	return map[string]any{
		"type":        "object",
		"description": desc,
		"properties": map[string]any{
			"kind":     enumProp("Entity kind", "module", "function", "file", "type", "variable"),
			"module":   strProp("Module name (function, type, variable)"),
			"function": strProp("Function name (function kind only)"),
			"arity":    intProp("Parameter count (function kind only)"),
			"path":     strProp("File path (file kind only)"),
			"name":     strProp("Type or variable name (type/variable kind only)"),
		},
		"required": []string{"kind"},
	}
}

func changesSchema() map[string]any {
	return map[string]any{
		"type":        "array",
		"description": "Line-range edits to apply, in any order",
		"items": objSchema(map[string]any{
			"kind":        enumProp("Change kind", "replace", "insert", "delete"),
			"line_start":  intProp("First line affected (1-based, replace/delete)"),
			"line_end":    intProp("Last line affected (1-based, inclusive, replace/delete)"),
			"before_line": intProp("Line to insert before (1-based, insert only)"),
			"content":     strProp("Replacement or inserted text (replace/insert)"),
		}, "kind"),
	}
}
