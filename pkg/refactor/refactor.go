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
	"os"
	"sort"
	"strings"

	"github.com/kraklabs/ragex/pkg/editor"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/ingestion"
	"github.com/kraklabs/ragex/pkg/transaction"
	"github.com/kraklabs/ragex/pkg/undo"
)

// Scope bounds rename_function's reach: the definition file alone, or the
// definition file plus every caller's file.
type Scope string

const (
	ScopeModule  Scope = "module"
	ScopeProject Scope = "project"
)

// Refactor implements rename_function, rename_module, and move_function,
// composing GraphStore call/import-edge discovery with Transaction's
// multi-file atomic commit and an UndoLog entry on success.
type Refactor struct {
	graph    *graph.Store
	registry *Registry
	editor   *editor.Editor
	undoLog  *undo.Log
}

// New returns a Refactor over g, dispatching per-file edits through
// registry, applying them via ed, and recording successful operations in
// undoLog.
func New(g *graph.Store, registry *Registry, ed *editor.Editor, undoLog *undo.Log) *Refactor {
	return &Refactor{graph: g, registry: registry, editor: ed, undoLog: undoLog}
}

func languageOf(g *graph.Store, path string) string {
	node, ok := g.FindNode(entity.NewFile(path))
	if !ok {
		return ""
	}
	if lang, ok := node.Attrs[ingestion.AttrFileLanguage].(string); ok {
		return lang
	}
	return ""
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Split(strings.TrimSuffix(content, "\n"), "\n"))
}

// RenameFunction renames module.oldName/arity to newName, rewriting the
// definition and (when scope is project) every caller's call sites.
func (r *Refactor) RenameFunction(module, oldName, newName string, arity int, scope Scope) (transaction.Report, error) {
	id := entity.NewFunction(module, oldName, arity)
	node, ok := r.graph.FindNode(id)
	if !ok {
		return transaction.Report{}, &NotFoundError{Kind: "function", ID: id.String()}
	}

	files := map[string]bool{}
	if f := node.File(); f != "" {
		files[f] = true
	}
	if scope == ScopeProject {
		for _, e := range r.graph.Incoming(id, entity.EdgeCalls) {
			caller, ok := r.graph.FindNode(e.From)
			if !ok {
				continue
			}
			if f := caller.File(); f != "" {
				files[f] = true
			}
		}
	}

	params := Params{OldName: oldName, NewName: newName, Arity: arity}
	op := fmt.Sprintf("rename_function(%s,%s,%s,%d,%s)", module, oldName, newName, arity, scope)
	return r.applyAcrossFiles(op, files, OpRenameFunction, params)
}

// RenameModule renames oldName to newName, rewriting every file that
// imports it.
func (r *Refactor) RenameModule(oldName, newName string) (transaction.Report, error) {
	id := entity.NewModule(oldName)
	if _, ok := r.graph.FindNode(id); !ok {
		return transaction.Report{}, &NotFoundError{Kind: "module", ID: id.String()}
	}

	files := map[string]bool{}
	for _, e := range r.graph.Incoming(id, entity.EdgeImports) {
		importer, ok := r.graph.FindNode(e.From)
		if !ok {
			continue
		}
		if f := importer.File(); f != "" {
			files[f] = true
		}
	}

	params := Params{OldModule: oldName, NewModule: newName}
	op := fmt.Sprintf("rename_module(%s,%s)", oldName, newName)
	return r.applyAcrossFiles(op, files, OpRenameModule, params)
}

// applyAcrossFiles runs op/params through each file's language ASTEditor,
// builds a single Transaction spanning every resulting full-file
// replacement, commits it, and records a successful commit in the undo
// log.
func (r *Refactor) applyAcrossFiles(opName string, files map[string]bool, op Op, params Params) (transaction.Report, error) {
	if len(files) == 0 {
		return transaction.Report{}, &NotFoundError{Kind: "file", ID: "(no files to edit)"}
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var edits []transaction.FileEdit
	snapshots := make(map[string]string, len(files))
	var fileErrs []FileError

	for _, path := range paths {
		original, err := os.ReadFile(path)
		if err != nil {
			fileErrs = append(fileErrs, FileError{File: path, Reason: err.Error()})
			continue
		}
		ed, err := r.registry.For(languageOf(r.graph, path))
		if err != nil {
			fileErrs = append(fileErrs, FileError{File: path, Reason: err.Error()})
			continue
		}
		newContent, err := ed.Apply(string(original), op, params)
		if err != nil {
			fileErrs = append(fileErrs, FileError{File: path, Reason: err.Error()})
			continue
		}
		snapshots[path] = string(original)
		edits = append(edits, transaction.FileEdit{
			Path: path,
			Changes: []editor.Change{{
				Kind:      editor.Replace,
				LineStart: 1,
				LineEnd:   countLines(string(original)),
				Content:   newContent,
			}},
			Opts: editor.Options{Backup: true},
		})
	}

	if len(fileErrs) > 0 {
		return transaction.Report{}, &RefactorError{Operation: opName, Errors: fileErrs}
	}

	txn := transaction.New(r.editor, edits)
	report := txn.Commit()
	if report.Status != "success" {
		return report, &RefactorError{
			Operation:     opName,
			FilesModified: report.FilesEdited,
			RolledBack:    report.RolledBack,
			Errors:        toFileErrors(report),
		}
	}

	if r.undoLog != nil {
		paths := make([]string, 0, len(snapshots))
		for p := range snapshots {
			paths = append(paths, p)
		}
		r.undoLog.Push(opName, map[string]any{"op": opName}, paths, snapshots, nil, undo.Success)
	}
	return report, nil
}

func toFileErrors(report transaction.Report) []FileError {
	var out []FileError
	for _, fr := range report.Results {
		if fr.Err != nil {
			out = append(out, FileError{File: fr.Path, Reason: fr.Err.Error()})
		}
	}
	return out
}

// MoveFunction moves module.name/arity's definition from srcPath to
// destPath, a single Transaction spanning both files. destPath may not
// yet exist, in which case its half of the Transaction is an Insert at
// line 1 (pkg/editor.EditFile's empty-file-creation path).
func (r *Refactor) MoveFunction(srcModule, name string, arity int, srcPath, destPath string) (transaction.Report, error) {
	id := entity.NewFunction(srcModule, name, arity)
	if _, ok := r.graph.FindNode(id); !ok {
		return transaction.Report{}, &NotFoundError{Kind: "function", ID: id.String()}
	}

	srcOriginal, err := os.ReadFile(srcPath)
	if err != nil {
		return transaction.Report{}, &RefactorError{Operation: "move_function", Errors: []FileError{{File: srcPath, Reason: err.Error()}}}
	}

	lang := languageOf(r.graph, srcPath)
	ed, err := r.registry.For(lang)
	if err != nil {
		return transaction.Report{}, &RefactorError{Operation: "move_function", Errors: []FileError{{File: srcPath, Reason: err.Error()}}}
	}

	params := Params{OldName: name, Arity: arity}
	funcText, err := ed.Apply(string(srcOriginal), OpExtractFunction, params)
	if err != nil {
		return transaction.Report{}, &RefactorError{Operation: "move_function", Errors: []FileError{{File: srcPath, Reason: err.Error()}}}
	}
	remainder, err := ed.Apply(string(srcOriginal), OpRemoveFunction, params)
	if err != nil {
		return transaction.Report{}, &RefactorError{Operation: "move_function", Errors: []FileError{{File: srcPath, Reason: err.Error()}}}
	}

	destOriginal, destErr := os.ReadFile(destPath)
	destExisted := destErr == nil
	var destChange editor.Change
	if destExisted {
		destChange = editor.Change{
			Kind:       editor.Insert,
			BeforeLine: countLines(string(destOriginal)) + 1,
			Content:    funcText,
		}
	} else {
		destChange = editor.Change{Kind: editor.Insert, BeforeLine: 1, Content: funcText}
	}

	edits := []transaction.FileEdit{
		{
			Path: srcPath,
			Changes: []editor.Change{{
				Kind:      editor.Replace,
				LineStart: 1,
				LineEnd:   countLines(string(srcOriginal)),
				Content:   remainder,
			}},
			Opts: editor.Options{Backup: true},
		},
		{
			Path:    destPath,
			Changes: []editor.Change{destChange},
			Opts:    editor.Options{Backup: destExisted},
		},
	}

	txn := transaction.New(r.editor, edits)
	report := txn.Commit()
	opName := fmt.Sprintf("move_function(%s,%s,%d,%s,%s)", srcModule, name, arity, srcPath, destPath)
	if report.Status != "success" {
		return report, &RefactorError{
			Operation:     opName,
			FilesModified: report.FilesEdited,
			RolledBack:    report.RolledBack,
			Errors:        toFileErrors(report),
		}
	}

	if r.undoLog != nil {
		snapshots := map[string]string{srcPath: string(srcOriginal)}
		var created []string
		if destExisted {
			snapshots[destPath] = string(destOriginal)
		} else {
			created = append(created, destPath)
		}
		r.undoLog.Push(opName, map[string]any{"op": opName}, []string{srcPath, destPath}, snapshots, created, undo.Success)
	}
	return report, nil
}
