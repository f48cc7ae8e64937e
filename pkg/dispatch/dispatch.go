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

// Package dispatch implements ToolDispatch: a name-keyed table mapping
// tool calls to the operations of GraphStore, EmbeddingStore,
// HybridRetrieval, Editor, Transaction, Refactor, and UndoLog, returning a
// single kind-tagged error envelope regardless of which collaborator
// failed, collapsing two incompatible per-package error-tagging
// conventions (Kind() vs ErrorKind()) into one envelope shape.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kraklabs/ragex/pkg/backup"
	"github.com/kraklabs/ragex/pkg/editor"
	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/persistence"
	"github.com/kraklabs/ragex/pkg/refactor"
	"github.com/kraklabs/ragex/pkg/retrieval"
	"github.com/kraklabs/ragex/pkg/tracker"
	"github.com/kraklabs/ragex/pkg/undo"
)

// Embedder is the slice of ingestion.EmbeddingProvider ToolDispatch needs:
// turning a query string into a vector for search_code. Declared locally
// so this package does not import pkg/ingestion for one method.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Dispatcher is the single owner of every collaborator a tool call may
// reach. Every store it holds is itself single-owner-per-store
// ( 5); Dispatcher adds no locking of its own, since it only ever
// forwards to a method already safe for concurrent use.
type Dispatcher struct {
	Graph       *graph.Store
	Embeddings  *embedding.Store
	Tracker     *tracker.Tracker
	Persistence *persistence.Store
	ProjectHash string
	Model       persistence.ModelInfo

	Retrieval *retrieval.Engine
	Embedder  Embedder

	Editor  *editor.Editor
	Vault   *backup.Vault
	Refactor *refactor.Refactor
	Undo    *undo.Log
}

// Envelope is the single response shape every tool call returns, success
// or failure, per 4.13's "kind-tagged error envelope" contract.
type Envelope struct {
	Status string         `json:"status"` // "success" or "failure"
	Result any            `json:"result,omitempty"`
	Error  *ErrorEnvelope `json:"error,omitempty"`

	// FilesEdited/RolledBack surface Transaction/Refactor's own reporting
	// fields at the top level, since callers of edit_file/rename_*/
	// move_function look for these without digging into Result.
	FilesEdited int  `json:"files_edited,omitempty"`
	RolledBack  bool `json:"rolled_back,omitempty"`
}

// ErrorEnvelope is the failure half of Envelope.
type ErrorEnvelope struct {
	Kind    string      `json:"kind"`
	Message string      `json:"message"`
	Files   []FileIssue `json:"files,omitempty"`
}

// FileIssue is one file's contribution to a multi-file failure
// (Transaction/Refactor's per-file error arrays).
type FileIssue struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// kindTagged covers the editor package's error convention.
type kindTagged interface{ Kind() string }

// errKindTagged covers refactor.NotFoundError's convention, which predates
// and diverges from editor's - reconciled here rather than renamed in
// place, since both packages' tests already assert their own method name.
type errKindTagged interface{ ErrorKind() string }

// errorKind extracts a stable kind tag from any collaborator error,
// reconciling editor's Kind() and refactor's ErrorKind() into one
// vocabulary; unrecognized errors fall back to "internal_error".
func errorKind(err error) string {
	switch e := err.(type) {
	case kindTagged:
		return e.Kind()
	case errKindTagged:
		return e.ErrorKind()
	default:
		return "internal_error"
	}
}

// fileIssuesFrom extracts a RefactorError's per-file detail, when present.
func fileIssuesFrom(err error) []FileIssue {
	re, ok := err.(*refactor.RefactorError)
	if !ok {
		return nil
	}
	out := make([]FileIssue, 0, len(re.Errors))
	for _, fe := range re.Errors {
		out = append(out, FileIssue{File: fe.File, Reason: fe.Reason})
	}
	return out
}

func failure(err error) Envelope {
	env := Envelope{
		Status: "failure",
		Error: &ErrorEnvelope{
			Kind:    errorKind(err),
			Message: err.Error(),
			Files:   fileIssuesFrom(err),
		},
	}
	if re, ok := err.(*refactor.RefactorError); ok {
		env.FilesEdited = re.FilesModified
		env.RolledBack = re.RolledBack
	}
	return env
}

func success(result any) Envelope {
	return Envelope{Status: "success", Result: result}
}

// badArgs reports a malformed tool-call payload under a "validation_error"
// kind, distinct from any collaborator's own error kinds.
func badArgs(toolName string, err error) Envelope {
	return Envelope{
		Status: "failure",
		Error: &ErrorEnvelope{
			Kind:    "validation_error",
			Message: fmt.Sprintf("%s: invalid arguments: %v", toolName, err),
		},
	}
}

func unknownTool(name string) Envelope {
	return Envelope{
		Status: "failure",
		Error:  &ErrorEnvelope{Kind: "not_found", Message: fmt.Sprintf("unknown tool %q", name)},
	}
}

// Dispatch routes one tool call by name to its handler and always returns
// an Envelope - never a bare Go error - so that every caller (the JSON-RPC
// server, a future HTTP surface, tests) has one failure shape to check.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) Envelope {
	handler, ok := d.table()[name]
	if !ok {
		return unknownTool(name)
	}
	return handler(ctx, args)
}

// Names lists every registered tool, for tools/list.
func (d *Dispatcher) Names() []string {
	table := d.table()
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	return out
}

type handlerFunc func(ctx context.Context, args json.RawMessage) Envelope

func (d *Dispatcher) table() map[string]handlerFunc {
	return map[string]handlerFunc{
		"search_code":      d.handleSearchCode,
		"find_paths":       d.handleFindPaths,
		"graph_stats":      d.handleGraphStats,
		"index_status":     d.handleIndexStatus,
		"edit_file":        d.handleEditFile,
		"commit_edits":     d.handleCommitEdits,
		"rename_function":  d.handleRenameFunction,
		"rename_module":    d.handleRenameModule,
		"move_function":    d.handleMoveFunction,
		"undo":             d.handleUndo,
		"redo":             d.handleRedo,
		"list_undo_history": d.handleListUndoHistory,
	}
}

func unmarshalArgs[T any](toolName string, args json.RawMessage) (T, error) {
	var v T
	if len(args) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(args, &v); err != nil {
		return v, err
	}
	return v, nil
}

// entityRef is the wire shape for referencing an EntityId, since entity.Id
// has no string parser and each Kind needs different fields populated.
type entityRef struct {
	Kind     string `json:"kind"`
	Module   string `json:"module,omitempty"`
	Function string `json:"function,omitempty"`
	Arity    int    `json:"arity,omitempty"`
	Path     string `json:"path,omitempty"`
	Name     string `json:"name,omitempty"`
}

func (r entityRef) toID() (entity.Id, error) {
	switch entity.Kind(r.Kind) {
	case entity.KindModule:
		return entity.NewModule(r.Module), nil
	case entity.KindFunction:
		return entity.NewFunction(r.Module, r.Function, r.Arity), nil
	case entity.KindFile:
		return entity.NewFile(r.Path), nil
	case entity.KindType:
		return entity.NewType(r.Module, r.Name), nil
	case entity.KindVariable:
		return entity.NewVariable(r.Module, r.Name), nil
	default:
		return entity.Id{}, fmt.Errorf("unknown entity kind %q", r.Kind)
	}
}
