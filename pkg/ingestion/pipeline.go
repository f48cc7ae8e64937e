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
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/tracker"
)

// maxEmbeddingTextChars is the fixed truncation cap applied to every
// generated embedding text, regardless of node kind.
const maxEmbeddingTextChars = 5000

// RepoSource names where a repository's contents come from: a local
// checkout, or a git URL RepoLoader clones before walking.
type RepoSource struct {
	Type  string // "local_path" or "git_url"
	Value string
}

// Config configures one IngestionPipeline.
type Config struct {
	ExcludeGlobs    []string
	MaxFileSize     int64 // bytes; 0 = no limit
	ParseWorkers    int
	EmbedWorkers    int
	EmbeddingModel  string // passed to CreateEmbeddingProvider
	MaxCodeTextSize int64
	ParserMode      ParserMode // treesitter, simplified, or auto (default)
}

// DefaultConfig returns sane defaults for everything IngestionPipeline
// consumes.
func DefaultConfig() Config {
	return Config{
		ExcludeGlobs: []string{
			"**/.git/**", "**/node_modules/**", "**/vendor/**",
			"**/dist/**", "**/build/**", "**/.venv/**", "**/__pycache__/**",
		},
		MaxFileSize:     1024 * 1024,
		ParseWorkers:    4,
		EmbedWorkers:    8,
		EmbeddingModel:  "mock",
		MaxCodeTextSize: defaultMaxCodeTextSize,
		ParserMode:      DefaultParserMode,
	}
}

// Report summarizes one Run.
type Report struct {
	FilesAnalyzed int
	FilesSkipped  int
	FilesDeleted  int
	Functions     int
	Types         int
	Errors        []string
	Elapsed       time.Duration
}

// IngestionPipeline implements an incremental classify -> parse ->
// replace-file-entities -> embed -> track loop, wiring RepoLoader,
// CodeParser, CallResolver, an EmbeddingProvider, and the three in-memory
// stores (graph, embedding, tracker) a caller owns and passes in so that
// pipeline runs compose with Persistence's load/save around them.
type IngestionPipeline struct {
	cfg    Config
	logger *slog.Logger

	loader   *RepoLoader
	parser   CodeParser
	resolver *CallResolver
	provider EmbeddingProvider
	retry    RetryConfig

	graph      *graph.Store
	embeddings *embedding.Store
	tracker    *tracker.Tracker
}

// NewPipeline wires a pipeline around the given stores. provider may be nil,
// in which case it is built from cfg.EmbeddingModel via
// CreateEmbeddingProvider.
func NewPipeline(cfg Config, g *graph.Store, e *embedding.Store, t *tracker.Tracker, provider EmbeddingProvider, logger *slog.Logger) (*IngestionPipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		p, err := CreateEmbeddingProvider(cfg.EmbeddingModel, logger)
		if err != nil {
			return nil, fmt.Errorf("ingestion: create embedding provider: %w", err)
		}
		provider = p
	}
	parser := newCodeParser(cfg.ParserMode, logger)
	if cfg.MaxCodeTextSize > 0 {
		parser.SetMaxCodeTextSize(cfg.MaxCodeTextSize)
	}

	return &IngestionPipeline{
		cfg:        cfg,
		logger:     logger,
		loader:     NewRepoLoader(logger),
		parser:     parser,
		resolver:   NewCallResolver(),
		provider:   provider,
		retry:      RetryConfig{MaxRetries: 3, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second, Multiplier: 2.0},
		graph:      g,
		embeddings: e,
		tracker:    t,
	}, nil
}

// Close releases the RepoLoader's temporary directories (from git_url
// sources).
func (p *IngestionPipeline) Close() error {
	return p.loader.Close()
}

// Run walks source, classifies every discovered file against p.tracker,
// reparses New and Changed files, resolves cross-file calls among them,
// replaces their owned entities in the graph and embedding stores, and
// removes entities for files that disappeared since the last Run. Files
// classified Unchanged are skipped entirely, the core incremental
// invariant.
func (p *IngestionPipeline) Run(ctx context.Context, source RepoSource) (*Report, error) {
	start := time.Now()
	report := &Report{}

	loaded, err := p.loader.LoadRepository(source, p.cfg.ExcludeGlobs, p.cfg.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("ingestion: load repository: %w", err)
	}

	walked := make(map[string]FileInfo, len(loaded.Files))
	for _, f := range loaded.Files {
		walked[f.FullPath] = f
	}

	// Deleted: paths this tracker has seen before that the walk no longer
	// reports. Export() is the only way to enumerate previously tracked
	// paths without adding a bespoke iterator to Tracker.
	for path := range p.tracker.Export().Records {
		if _, stillPresent := walked[path]; stillPresent {
			continue
		}
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
		p.removeFile(path)
		report.FilesDeleted++
	}

	var toParse []FileInfo
	for _, f := range loaded.Files {
		switch p.tracker.Classify(f.FullPath).Class {
		case tracker.Unchanged:
			report.FilesSkipped++
		default:
			toParse = append(toParse, f)
		}
	}

	if len(toParse) == 0 {
		report.Elapsed = time.Since(start)
		return report, nil
	}

	parsed, parseErrs := p.parseAll(ctx, toParse)
	report.Errors = append(report.Errors, parseErrs...)

	p.resolveCrossFileCalls(parsed)

	// Every function/type across the whole batch gets its entity.Id up
	// front so that a call resolved cross-file in resolveCrossFileCalls
	// can still be looked up when the *caller's* file is ingested, even
	// though the callee belongs to a different file's ParseResult.
	funcIDs, typeIDs := assignBatchIDs(parsed)

	for _, pr := range parsed {
		if pr == nil {
			continue
		}
		if err := p.ingestFile(ctx, pr, funcIDs, typeIDs); err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		report.FilesAnalyzed++
		report.Functions += len(pr.Functions)
		report.Types += len(pr.Types)
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

// parseAll parses files concurrently (bounded by cfg.ParseWorkers),
// preserving the 1:1 slot-per-file layout so downstream indexing needs no
// further synchronization. A file whose parse fails contributes a nil slot
// and an error string rather than aborting the run.
func (p *IngestionPipeline) parseAll(ctx context.Context, files []FileInfo) ([]*ParseResult, []string) {
	results := make([]*ParseResult, len(files))
	errs := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	workers := p.cfg.ParseWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			pr, err := p.parser.ParseFile(f)
			if err != nil {
				errs[i] = fmt.Sprintf("%s: %v", f.Path, err)
				return nil
			}
			results[i] = pr
			return nil
		})
	}
	_ = g.Wait()

	var errOut []string
	for _, e := range errs {
		if e != "" {
			errOut = append(errOut, e)
		}
	}
	return results, errOut
}

// resolveCrossFileCalls builds a CallResolver index from every file parsed
// in this batch and folds its resolved edges back into each file's Calls.
// Calls into files outside the current batch (unchanged since the last
// Run) are not resolved here; they resolve the next time that file's
// package is reparsed, a known limitation of per-run indexing since
// CallResolver.BuildIndex only indexes the batch passed to it rather than
// the whole project.
func (p *IngestionPipeline) resolveCrossFileCalls(parsed []*ParseResult) {
	var files []FileEntity
	var functions []FunctionEntity
	var imports []ImportEntity
	packageNames := make(map[string]string)
	var allUnresolved []UnresolvedCall

	for _, pr := range parsed {
		if pr == nil {
			continue
		}
		files = append(files, pr.File)
		functions = append(functions, pr.Functions...)
		imports = append(imports, pr.Imports...)
		if pr.PackageName != "" {
			packageNames[pr.File.Path] = pr.PackageName
		}
		allUnresolved = append(allUnresolved, pr.UnresolvedCalls...)
	}

	if len(allUnresolved) == 0 {
		return
	}
	p.resolver.BuildIndex(files, functions, imports, packageNames)

	// resolveCall (unexported, same package) is used per-call rather than
	// the batch ResolveCalls helper so that calls which stay unresolved
	// can be told apart from calls that resolved, in a single pass: a
	// truly-external call becomes a synthetic node in ingestFile, one
	// that resolved to a sibling file's function becomes a real edge and
	// must not also get a synthetic node.
	seen := make(map[string]bool)
	for _, pr := range parsed {
		if pr == nil || len(pr.UnresolvedCalls) == 0 {
			continue
		}
		remaining := pr.UnresolvedCalls[:0]
		for _, call := range pr.UnresolvedCalls {
			calleeID := p.resolver.resolveCall(call)
			if calleeID == "" {
				remaining = append(remaining, call)
				continue
			}
			key := call.CallerID + "->" + calleeID
			if seen[key] {
				continue
			}
			seen[key] = true
			pr.Calls = append(pr.Calls, CallsEdge{CallerID: call.CallerID, CalleeID: calleeID})
		}
		pr.UnresolvedCalls = remaining
	}
}

// assignBatchIDs computes the entity.Id for every function and type parsed
// in this batch up front, keyed by the ingestion-level FunctionEntity/
// TypeEntity.ID string, so a call resolved cross-file by
// resolveCrossFileCalls can be turned into an edge no matter which
// ParseResult the caller or callee came from.
func assignBatchIDs(parsed []*ParseResult) (funcIDs, typeIDs map[string]entity.Id) {
	funcIDs = make(map[string]entity.Id)
	typeIDs = make(map[string]entity.Id)
	for _, pr := range parsed {
		if pr == nil {
			continue
		}
		modulePath := entity.NormalizePath(filepath.Dir(pr.File.Path))
		for _, fn := range pr.Functions {
			funcIDs[fn.ID] = entity.NewFunction(modulePath, fn.Name, countParams(fn.Signature))
		}
		for _, t := range pr.Types {
			typeIDs[t.ID] = entity.NewType(modulePath, t.Name)
		}
	}
	return funcIDs, typeIDs
}

// ingestFile turns one file's ParseResult into graph nodes/edges and
// embedding entries, replacing whatever this file owned from a prior Run.
// funcIDs/typeIDs are the whole batch's id assignments (see assignBatchIDs)
// so that edges to callees/types defined in sibling files resolve too.
func (p *IngestionPipeline) ingestFile(ctx context.Context, pr *ParseResult, funcIDs, typeIDs map[string]entity.Id) error {
	modulePath := entity.NormalizePath(filepath.Dir(pr.File.Path))
	moduleID := entity.NewModule(modulePath)
	p.ensureModuleNode(ctx, moduleID, pr.File.Path)

	fileID := entity.NewFile(pr.File.Path)

	var newNodes []entity.Node
	var newEdges []entity.Edge
	ownedIDs := make(map[entity.Id]struct{})

	fileNode := entity.Node{Id: fileID, Attrs: map[string]any{
		AttrFileLanguage: pr.File.Language,
	}}
	newNodes = append(newNodes, fileNode)
	ownedIDs[fileID] = struct{}{}

	for _, fn := range pr.Functions {
		id := funcIDs[fn.ID]
		ownedIDs[id] = struct{}{}

		vis := entity.VisibilityPrivate
		if isExportedName(fn.Name) {
			vis = entity.VisibilityPublic
		}
		newNodes = append(newNodes, entity.Node{Id: id, Attrs: map[string]any{
			entity.AttrFile:       pr.File.Path,
			entity.AttrLine:       fn.StartLine,
			entity.AttrVisibility: vis,
		}})
		newEdges = append(newEdges, entity.Edge{From: fileID, To: id, Kind: entity.EdgeDefines})
	}

	for _, t := range pr.Types {
		id := typeIDs[t.ID]
		ownedIDs[id] = struct{}{}

		newNodes = append(newNodes, entity.Node{Id: id, Attrs: map[string]any{
			entity.AttrFile: pr.File.Path,
			entity.AttrLine: t.StartLine,
			attrTypeKind:    t.Kind,
		}})
		newEdges = append(newEdges, entity.Edge{From: fileID, To: id, Kind: entity.EdgeDefines})
	}

	for _, imp := range pr.Imports {
		target := entity.NewModule(imp.ImportPath)
		p.ensureModuleNode(ctx, target, "")
		newEdges = append(newEdges, entity.Edge{From: fileID, To: target, Kind: entity.EdgeImports, Attrs: map[string]any{
			entity.AttrLine: imp.StartLine,
		}})
	}

	for _, c := range pr.Calls {
		from, ok := funcIDs[c.CallerID]
		if !ok {
			continue
		}
		to, ok := funcIDs[c.CalleeID]
		if !ok {
			// Callee belongs to a function ingested in a prior run, not
			// reparsed in this batch; resolveCrossFileCalls only resolves
			// against this batch's BuildIndex, so that edge waits until
			// the callee's file is reparsed too.
			continue
		}
		newEdges = append(newEdges, entity.Edge{From: from, To: to, Kind: entity.EdgeCalls})
	}
	for _, u := range pr.UnresolvedCalls {
		from, ok := funcIDs[u.CallerID]
		if !ok {
			continue
		}
		to := externalFunctionID(u.CalleeName)
		p.graph.AddNode(to, map[string]any{entity.AttrExternal: true})
		newEdges = append(newEdges, entity.Edge{From: from, To: to, Kind: entity.EdgeCalls, Attrs: map[string]any{
			entity.AttrLine: u.Line,
		}})
	}

	prior, hadPrior := p.tracker.Record(pr.File.FullPath)
	var oldIDs []entity.Id
	if hadPrior {
		for id := range prior.Entities {
			oldIDs = append(oldIDs, id)
		}
	}

	p.graph.ReplaceFileEntities(oldIDs, newNodes, newEdges)

	// Drop embeddings for entities this file used to own but no longer does.
	for _, id := range oldIDs {
		if _, stillOwned := ownedIDs[id]; !stillOwned {
			p.embeddings.Delete(id)
		}
	}

	if err := p.embedFunctions(ctx, pr, funcIDs); err != nil {
		return err
	}
	if err := p.embedTypes(ctx, pr, typeIDs); err != nil {
		return err
	}

	if err := p.tracker.Track(pr.File.FullPath, ownedIDs); err != nil {
		return fmt.Errorf("track %s: %w", pr.File.Path, err)
	}
	return nil
}

// ensureModuleNode upserts the node for a module/package directly (not via
// ReplaceFileEntities), since a module's lifecycle spans every file in it
// and must not be torn down just because one of those files changed.
// hintPath seeds the module's "file" attribute the first time it is seen;
// later calls leave an existing attribute alone.
func (p *IngestionPipeline) ensureModuleNode(ctx context.Context, id entity.Id, hintPath string) {
	if existing, ok := p.graph.FindNode(id); ok {
		if hintPath == "" || existing.File() != "" {
			return
		}
	}
	attrs := map[string]any{}
	if hintPath != "" {
		attrs[entity.AttrFile] = hintPath
	}
	p.graph.AddNode(id, attrs)

	text := moduleEmbeddingText(id.Module, "", hintPath)
	vec, err := p.embedText(ctx, text)
	if err != nil {
		p.logger.Warn("ingestion.module_embed.failed", "module", id.Module, "err", err)
		return
	}
	if err := p.embeddings.Put(id, vec, text); err != nil {
		p.logger.Warn("ingestion.module_embed.store_failed", "module", id.Module, "err", err)
	}
}

func (p *IngestionPipeline) embedFunctions(ctx context.Context, pr *ParseResult, funcIDs map[string]entity.Id) error {
	if len(pr.Functions) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	workers := p.cfg.EmbedWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, fn := range pr.Functions {
		fn := fn
		id, ok := funcIDs[fn.ID]
		if !ok {
			continue
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			vis := "private"
			if isExportedName(fn.Name) {
				vis = "public"
			}
			text := functionEmbeddingText(fn.Name, countParams(fn.Signature), id.Module, "", vis, fn.FilePath, fn.StartLine)
			vec, err := p.embedText(gctx, text)
			if err != nil {
				ingMetrics.init()
				ingMetrics.embedErrors.Inc()
				p.logger.Warn("ingestion.function_embed.failed", "function", fn.Name, "err", err)
				return nil
			}
			if err := p.embeddings.Put(id, vec, text); err != nil {
				p.logger.Warn("ingestion.function_embed.store_failed", "function", fn.Name, "err", err)
				return nil
			}
			ingMetrics.init()
			ingMetrics.embedComputed.Inc()
			return nil
		})
	}
	return g.Wait()
}

func (p *IngestionPipeline) embedTypes(ctx context.Context, pr *ParseResult, typeIDs map[string]entity.Id) error {
	if len(pr.Types) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	workers := p.cfg.EmbedWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, t := range pr.Types {
		t := t
		id, ok := typeIDs[t.ID]
		if !ok {
			continue
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			text := typeEmbeddingText(t.Name, t.Kind, id.Module, t.FilePath, t.StartLine)
			vec, err := p.embedText(gctx, text)
			if err != nil {
				ingMetrics.init()
				ingMetrics.embedErrors.Inc()
				p.logger.Warn("ingestion.type_embed.failed", "type", t.Name, "err", err)
				return nil
			}
			if err := p.embeddings.Put(id, vec, text); err != nil {
				p.logger.Warn("ingestion.type_embed.store_failed", "type", t.Name, "err", err)
				return nil
			}
			ingMetrics.init()
			ingMetrics.embedComputed.Inc()
			return nil
		})
	}
	return g.Wait()
}

// embedText calls the provider with the package's shared retry-with-
// jittered-backoff policy, the same classification and backoff helpers
// EmbeddingGenerator.embedFunction uses.
func (p *IngestionPipeline) embedText(ctx context.Context, text string) ([]float32, error) {
	var embedding []float32
	var err error
	for attempt := 0; attempt < p.retry.MaxRetries; attempt++ {
		embedding, err = p.provider.Embed(ctx, text)
		if err == nil {
			return embedding, nil
		}
		if !isRetryableEmbeddingError(err) || attempt == p.retry.MaxRetries-1 {
			break
		}
		sleep := computeBackoffWithJitter(p.retry.InitialBackoff, attempt, p.retry.Multiplier, p.retry.MaxBackoff)
		recordEmbedRetry()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, err
}

// removeFile tears down every entity path owned, for files no longer
// present in a walk.
func (p *IngestionPipeline) removeFile(path string) {
	rec, ok := p.tracker.Record(path)
	if !ok {
		return
	}
	var ids []entity.Id
	for id := range rec.Entities {
		ids = append(ids, id)
		p.embeddings.Delete(id)
	}
	p.graph.ReplaceFileEntities(ids, nil, nil)
	p.tracker.Untrack(path)
}

// --- embedding text templates: deterministic, missing fields elided,
// result capped at maxEmbeddingTextChars. ---

func moduleEmbeddingText(name, doc, file string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Module: %s", name))
	if doc != "" {
		parts = append(parts, fmt.Sprintf("Documentation: %s", doc))
	}
	if file != "" {
		parts = append(parts, fmt.Sprintf("File: %s", file))
	}
	return capText(strings.Join(parts, ". "))
}

func functionEmbeddingText(name string, arity int, module, doc, visibility, file string, line int) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Function: %s/%d", name, arity))
	if module != "" {
		parts = append(parts, fmt.Sprintf("Module: %s", module))
	}
	if doc != "" {
		parts = append(parts, fmt.Sprintf("Documentation: %s", doc))
	}
	if visibility != "" {
		parts = append(parts, fmt.Sprintf("Visibility: %s", visibility))
	}
	if file != "" {
		loc := file
		if line > 0 {
			loc = fmt.Sprintf("%s:%d", file, line)
		}
		parts = append(parts, fmt.Sprintf("File: %s", loc))
	}
	return capText(strings.Join(parts, ". "))
}

// typeEmbeddingText extends the module/function templates to types by the
// same pattern (kind+name, module, file:line).
func typeEmbeddingText(name, kind, module, file string, line int) string {
	var parts []string
	label := "Type"
	if kind != "" {
		label = strings.Title(kind) //nolint:staticcheck // SA1019: simple capitalization, no locale needs
	}
	parts = append(parts, fmt.Sprintf("%s: %s", label, name))
	if module != "" {
		parts = append(parts, fmt.Sprintf("Module: %s", module))
	}
	if file != "" {
		loc := file
		if line > 0 {
			loc = fmt.Sprintf("%s:%d", file, line)
		}
		parts = append(parts, fmt.Sprintf("File: %s", loc))
	}
	return capText(strings.Join(parts, ". "))
}

func capText(s string) string {
	if len(s) <= maxEmbeddingTextChars {
		return s
	}
	return s[:maxEmbeddingTextChars]
}

// countParams returns the arity implied by a "name(params)" signature
// string, counting top-level commas between the outermost parens.
func countParams(signature string) int {
	open := strings.IndexByte(signature, '(')
	if open < 0 {
		return 0
	}
	depth := 0
	start := open + 1
	end := len(signature)
	for i := open; i < len(signature); i++ {
		switch signature[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 && signature[i] == ')' {
				end = i
			}
		}
		if depth == 0 && signature[i] == ')' {
			break
		}
	}
	body := strings.TrimSpace(signature[start:end])
	if body == "" {
		return 0
	}
	count := 1
	depth = 0
	for _, r := range body {
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

func isExportedName(name string) bool {
	name = strings.TrimPrefix(name, "$anon_")
	if name == "" {
		return false
	}
	r := name[0]
	return r >= 'A' && r <= 'Z'
}

// externalFunctionID synthesizes a stable id for a call target the
// resolver could not match to any parsed function, giving
// entity.AttrExternal/Node.External a real producer: these nodes mark the
// graph's boundary with code ragex never parsed (stdlib, third-party
// deps, or simply not-yet-ingested files).
func externalFunctionID(calleeName string) entity.Id {
	return entity.NewFunction("$external", calleeName, 0)
}

const (
	// AttrFileLanguage is a ragex-local node attribute (file nodes only)
	// naming the language detected for that file.
	AttrFileLanguage = "language"
	attrTypeKind     = "kind"
)
