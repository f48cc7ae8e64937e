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

package dispatch

import (
	"context"
	"encoding/json"

	"github.com/kraklabs/ragex/pkg/editor"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/refactor"
	"github.com/kraklabs/ragex/pkg/retrieval"
	"github.com/kraklabs/ragex/pkg/transaction"
)

// --- search_code ---------------------------------------------------------

type searchCodeArgs struct {
	Query     string  `json:"query"`
	Strategy  string  `json:"strategy,omitempty"` // fusion (default), semantic_first, graph_first
	Kind      string  `json:"kind,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Limit     int     `json:"limit,omitempty"`
}

func (d *Dispatcher) handleSearchCode(ctx context.Context, raw json.RawMessage) Envelope {
	args, err := unmarshalArgs[searchCodeArgs]("search_code", raw)
	if err != nil {
		return badArgs("search_code", err)
	}

	vec, err := d.Embedder.Embed(ctx, args.Query)
	if err != nil {
		return failure(err)
	}

	strategy := retrieval.Fusion
	switch args.Strategy {
	case "semantic_first":
		strategy = retrieval.SemanticFirst
	case "graph_first":
		strategy = retrieval.GraphFirst
	}

	items := d.Retrieval.Search(retrieval.Query{
		Strategy:    strategy,
		QueryVector: vec,
		Graph:       retrieval.GraphQuery{Kind: entity.Kind(args.Kind)},
		Threshold:   args.Threshold,
		Limit:       args.Limit,
	})
	return success(items)
}

// --- find_paths -----------------------------------------------------------

type findPathsArgs struct {
	From     entityRef `json:"from"`
	To       entityRef `json:"to"`
	MaxDepth int       `json:"max_depth,omitempty"`
	MaxPaths int       `json:"max_paths,omitempty"`
}

func (d *Dispatcher) handleFindPaths(ctx context.Context, raw json.RawMessage) Envelope {
	args, err := unmarshalArgs[findPathsArgs]("find_paths", raw)
	if err != nil {
		return badArgs("find_paths", err)
	}
	from, err := args.From.toID()
	if err != nil {
		return badArgs("find_paths", err)
	}
	to, err := args.To.toID()
	if err != nil {
		return badArgs("find_paths", err)
	}
	paths := d.Graph.FindPaths(from, to, graph.PathSearchOptions{MaxDepth: args.MaxDepth, MaxPaths: args.MaxPaths})
	out := make([][]string, len(paths))
	for i, p := range paths {
		ids := make([]string, len(p))
		for j, id := range p {
			ids[j] = id.String()
		}
		out[i] = ids
	}
	return success(out)
}

// --- graph_stats ------------------------------------------------------------

type graphStatsArgs struct {
	Damping    float64 `json:"damping,omitempty"`
	Iterations int     `json:"iterations,omitempty"`
	Tolerance  float64 `json:"tolerance,omitempty"`
}

func (d *Dispatcher) handleGraphStats(ctx context.Context, raw json.RawMessage) Envelope {
	args, err := unmarshalArgs[graphStatsArgs]("graph_stats", raw)
	if err != nil {
		return badArgs("graph_stats", err)
	}
	opts := graph.DefaultPageRankOptions()
	if args.Damping != 0 {
		opts.Damping = args.Damping
	}
	if args.Iterations != 0 {
		opts.MaxIters = args.Iterations
	}
	if args.Tolerance != 0 {
		opts.Tolerance = args.Tolerance
	}
	return success(d.Graph.Summary(opts))
}

// --- index_status -----------------------------------------------------------

type indexStatusResult struct {
	ProjectHash string            `json:"project_hash"`
	Graph       graph.Stats       `json:"graph"`
	Embeddings  int               `json:"embedding_count"`
	Dimensions  int               `json:"dimensions"`
	Tracker     trackerStatsView  `json:"tracker"`
	Persistence *persistenceView  `json:"persistence,omitempty"`
}

type trackerStatsView struct {
	TrackedFiles int `json:"tracked_files"`
	EntityCount  int `json:"entity_count"`
}

type persistenceView struct {
	EntityCount int    `json:"entity_count"`
	CreatedAt   int64  `json:"created_at"`
	ModelID     string `json:"embedding_model_id"`
}

func (d *Dispatcher) handleIndexStatus(ctx context.Context, raw json.RawMessage) Envelope {
	result := indexStatusResult{
		ProjectHash: d.ProjectHash,
		Graph:       d.Graph.Stats(),
		Embeddings:  d.Embeddings.Size(),
		Dimensions:  d.Embeddings.Dims(),
	}
	if d.Tracker != nil {
		st := d.Tracker.Stats()
		result.Tracker = trackerStatsView{TrackedFiles: st.FileCount, EntityCount: st.EntityCount}
	}
	if d.Persistence != nil {
		stats, err := d.Persistence.Stats(d.ProjectHash)
		if err == nil && len(stats) > 0 {
			result.Persistence = &persistenceView{
				EntityCount: stats[0].Meta.EntityCount,
				CreatedAt:   stats[0].Meta.CreatedAt,
				ModelID:     stats[0].Meta.EmbeddingModelID,
			}
		}
	}
	return success(result)
}

// --- edit_file ---------------------------------------------------------------

type changeArg struct {
	Kind       string `json:"kind"` // replace, insert, delete
	LineStart  int    `json:"line_start,omitempty"`
	LineEnd    int    `json:"line_end,omitempty"`
	BeforeLine int    `json:"before_line,omitempty"`
	Content    string `json:"content,omitempty"`
}

func (c changeArg) toChange() editor.Change {
	kind := editor.Replace
	switch c.Kind {
	case "insert":
		kind = editor.Insert
	case "delete":
		kind = editor.Delete
	}
	return editor.Change{
		Kind:       kind,
		LineStart:  c.LineStart,
		LineEnd:    c.LineEnd,
		BeforeLine: c.BeforeLine,
		Content:    c.Content,
	}
}

type editFileArgs struct {
	Path     string      `json:"path"`
	Changes  []changeArg `json:"changes"`
	Backup   *bool       `json:"backup,omitempty"`
	Validate bool        `json:"validate,omitempty"`
	Format   bool        `json:"format,omitempty"`
	Language string      `json:"language,omitempty"`
}

func (d *Dispatcher) handleEditFile(ctx context.Context, raw json.RawMessage) Envelope {
	args, err := unmarshalArgs[editFileArgs]("edit_file", raw)
	if err != nil {
		return badArgs("edit_file", err)
	}
	changes := make([]editor.Change, len(args.Changes))
	for i, c := range args.Changes {
		changes[i] = c.toChange()
	}
	backup := true
	if args.Backup != nil {
		backup = *args.Backup
	}
	opts := editor.Options{Backup: backup, Language: args.Language}
	if args.Validate {
		opts.Validator = editor.GoValidator{}
	}
	if args.Format {
		opts.Formatter = editor.GoFormatter{}
	}
	res, err := d.Editor.EditFile(args.Path, changes, opts)
	if err != nil {
		return failure(err)
	}
	return success(res)
}

// --- commit_edits (multi-file Transaction) ------------------------------------

type fileEditArgs struct {
	Path     string      `json:"path"`
	Changes  []changeArg `json:"changes"`
	Backup   *bool       `json:"backup,omitempty"`
	Validate bool        `json:"validate,omitempty"`
	Format   bool        `json:"format,omitempty"`
	Language string      `json:"language,omitempty"`
}

type commitEditsArgs struct {
	Files []fileEditArgs `json:"files"`
}

func (d *Dispatcher) handleCommitEdits(ctx context.Context, raw json.RawMessage) Envelope {
	args, err := unmarshalArgs[commitEditsArgs]("commit_edits", raw)
	if err != nil {
		return badArgs("commit_edits", err)
	}
	edits := make([]transaction.FileEdit, len(args.Files))
	for i, fe := range args.Files {
		changes := make([]editor.Change, len(fe.Changes))
		for j, c := range fe.Changes {
			changes[j] = c.toChange()
		}
		backup := true
		if fe.Backup != nil {
			backup = *fe.Backup
		}
		opts := editor.Options{Backup: backup, Language: fe.Language}
		if fe.Validate {
			opts.Validator = editor.GoValidator{}
		}
		if fe.Format {
			opts.Formatter = editor.GoFormatter{}
		}
		edits[i] = transaction.FileEdit{Path: fe.Path, Changes: changes, Opts: opts}
	}
	report := transaction.New(d.Editor, edits).Commit()
	env := success(report)
	env.FilesEdited = report.FilesEdited
	env.RolledBack = report.RolledBack
	if report.Status != "success" {
		env.Status = "failure"
		msg := "commit_edits: transaction failed"
		if len(report.Errors) > 0 {
			msg = report.Errors[0].Error()
		}
		env.Error = &ErrorEnvelope{Kind: "refactor_error", Message: msg}
	}
	return env
}

// --- rename_function / rename_module / move_function --------------------------

type renameFunctionArgs struct {
	Module  string `json:"module"`
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
	Arity   int    `json:"arity"`
	Scope   string `json:"scope,omitempty"` // module (default) or project
}

func (d *Dispatcher) handleRenameFunction(ctx context.Context, raw json.RawMessage) Envelope {
	args, err := unmarshalArgs[renameFunctionArgs]("rename_function", raw)
	if err != nil {
		return badArgs("rename_function", err)
	}
	scope := refactor.ScopeModule
	if args.Scope == string(refactor.ScopeProject) {
		scope = refactor.ScopeProject
	}
	report, err := d.Refactor.RenameFunction(args.Module, args.OldName, args.NewName, args.Arity, scope)
	if err != nil {
		return failure(err)
	}
	env := success(report)
	env.FilesEdited = report.FilesEdited
	return env
}

type renameModuleArgs struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

func (d *Dispatcher) handleRenameModule(ctx context.Context, raw json.RawMessage) Envelope {
	args, err := unmarshalArgs[renameModuleArgs]("rename_module", raw)
	if err != nil {
		return badArgs("rename_module", err)
	}
	report, err := d.Refactor.RenameModule(args.OldName, args.NewName)
	if err != nil {
		return failure(err)
	}
	env := success(report)
	env.FilesEdited = report.FilesEdited
	return env
}

type moveFunctionArgs struct {
	Module   string `json:"module"`
	Name     string `json:"name"`
	Arity    int    `json:"arity"`
	SrcPath  string `json:"src_path"`
	DestPath string `json:"dest_path"`
}

func (d *Dispatcher) handleMoveFunction(ctx context.Context, raw json.RawMessage) Envelope {
	args, err := unmarshalArgs[moveFunctionArgs]("move_function", raw)
	if err != nil {
		return badArgs("move_function", err)
	}
	report, err := d.Refactor.MoveFunction(args.Module, args.Name, args.Arity, args.SrcPath, args.DestPath)
	if err != nil {
		return failure(err)
	}
	env := success(report)
	env.FilesEdited = report.FilesEdited
	return env
}

// --- undo / redo / list_undo_history --------------------------------------------

func (d *Dispatcher) handleUndo(ctx context.Context, raw json.RawMessage) Envelope {
	entry, err := d.Undo.Undo()
	if err != nil {
		return failure(err)
	}
	return success(entry)
}

func (d *Dispatcher) handleRedo(ctx context.Context, raw json.RawMessage) Envelope {
	entry, err := d.Undo.Redo()
	if err != nil {
		return failure(err)
	}
	return success(entry)
}

type listUndoHistoryArgs struct {
	Limit         int  `json:"limit,omitempty"`
	IncludeUndone bool `json:"include_undone,omitempty"`
}

func (d *Dispatcher) handleListUndoHistory(ctx context.Context, raw json.RawMessage) Envelope {
	args, err := unmarshalArgs[listUndoHistoryArgs]("list_undo_history", raw)
	if err != nil {
		return badArgs("list_undo_history", err)
	}
	entries, err := d.Undo.List(args.Limit, args.IncludeUndone)
	if err != nil {
		return failure(err)
	}
	return success(entries)
}
