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
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// parallelResolveThreshold is the UnresolvedCall batch size above which
// CallResolver.ResolveCalls splits work across a worker pool instead of
// resolving sequentially; small batches aren't worth the goroutine setup.
const parallelResolveThreshold = 1000

// maxResolveWorkers caps the worker pool regardless of GOMAXPROCS, since
// resolveCall is index lookups over maps already built by BuildIndex, not
// CPU-bound work that benefits from unbounded parallelism.
const maxResolveWorkers = 8

// CallResolver closes the one gap CodeParser.ParseFile leaves open: a call
// to a function defined outside the file being parsed. It indexes every
// package's exported functions and every file's import aliases across a
// whole batch, then turns each ParseResult's UnresolvedCall entries into
// CallsEdge once the batch is fully parsed - see
// IngestionPipeline.resolveCrossFileCalls.
type CallResolver struct {
	packagesByDir map[string]*PackageInfo // directory -> package
	funcsByPkg    map[string]map[string]string // package dir -> simple func name -> staging func ID
	importsByFile map[string]map[string]string // file path -> alias -> import path
	pkgByImport   map[string]string            // import path -> local package dir, memoized lazily
}

// NewCallResolver returns an empty CallResolver ready for BuildIndex.
func NewCallResolver() *CallResolver {
	return &CallResolver{
		packagesByDir: make(map[string]*PackageInfo),
		funcsByPkg:    make(map[string]map[string]string),
		importsByFile: make(map[string]map[string]string),
		pkgByImport:   make(map[string]string),
	}
}

// BuildIndex populates the resolver from one batch's worth of parsed Go
// files. Only Go entries participate - cross-file calls in other
// languages are not resolved by this resolver.
func (r *CallResolver) BuildIndex(files []FileEntity, functions []FunctionEntity, imports []ImportEntity, packageNames map[string]string) {
	for _, f := range files {
		if f.Language != "go" {
			continue
		}
		dir := filepath.Dir(f.Path)
		pkg, ok := r.packagesByDir[dir]
		if !ok {
			pkg = &PackageInfo{PackagePath: dir, PackageName: packageNames[f.Path]}
			r.packagesByDir[dir] = pkg
		}
		pkg.Files = append(pkg.Files, f.Path)
	}

	for _, fn := range functions {
		if !strings.HasSuffix(fn.FilePath, ".go") {
			continue
		}
		dir := filepath.Dir(fn.FilePath)
		if r.funcsByPkg[dir] == nil {
			r.funcsByPkg[dir] = make(map[string]string)
		}
		// Indexed by simple name (receiver stripped) regardless of
		// exportedness: same-package callers can reach unexported
		// functions too, and resolveCall filters exportedness itself
		// for cross-package lookups.
		r.funcsByPkg[dir][extractSimpleName(fn.Name)] = fn.ID
	}

	for _, imp := range imports {
		alias := imp.Alias
		if alias == "" {
			alias = filepath.Base(imp.ImportPath)
		}
		if alias == "_" {
			continue
		}
		if r.importsByFile[imp.FilePath] == nil {
			r.importsByFile[imp.FilePath] = make(map[string]string)
		}
		r.importsByFile[imp.FilePath][alias] = imp.ImportPath
	}

	r.seedImportPathGuesses()
}

// seedImportPathGuesses primes pkgByImport with the one mapping we can
// derive for free: a local package's own directory path, and its package
// name as a fallback, both standing in for the import path an importer
// inside the same module would actually use.
func (r *CallResolver) seedImportPathGuesses() {
	for dir, pkg := range r.packagesByDir {
		r.pkgByImport[dir] = dir
		if pkg.PackageName != "" {
			r.pkgByImport[pkg.PackageName] = dir
		}
	}
}

// ResolveCalls turns a batch's UnresolvedCall entries into CallsEdge,
// deduplicating caller->callee pairs. Runs sequentially below
// parallelResolveThreshold; above it, fans out across a bounded worker
// pool since resolveCall only reads indices BuildIndex already finished
// building.
func (r *CallResolver) ResolveCalls(unresolvedCalls []UnresolvedCall) []CallsEdge {
	if len(unresolvedCalls) < parallelResolveThreshold {
		return r.resolveSequential(unresolvedCalls)
	}
	return r.resolveParallel(unresolvedCalls)
}

func (r *CallResolver) resolveSequential(calls []UnresolvedCall) []CallsEdge {
	seen := make(map[string]bool)
	var resolved []CallsEdge
	for _, call := range calls {
		calleeID := r.resolveCall(call)
		if calleeID == "" {
			continue
		}
		if edge, ok := dedupeEdge(seen, call.CallerID, calleeID); ok {
			resolved = append(resolved, edge)
		}
	}
	return resolved
}

func (r *CallResolver) resolveParallel(calls []UnresolvedCall) []CallsEdge {
	workers := runtime.NumCPU()
	if workers > maxResolveWorkers {
		workers = maxResolveWorkers
	}

	jobs := make(chan int, len(calls))
	type resolved struct{ callerID, calleeID string }
	results := make(chan resolved, len(calls))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				call := calls[i]
				if calleeID := r.resolveCall(call); calleeID != "" {
					results <- resolved{call.CallerID, calleeID}
				}
			}
		}()
	}
	for i := range calls {
		jobs <- i
	}
	close(jobs)
	go func() {
		wg.Wait()
		close(results)
	}()

	seen := make(map[string]bool)
	var edges []CallsEdge
	for r := range results {
		if edge, ok := dedupeEdge(seen, r.callerID, r.calleeID); ok {
			edges = append(edges, edge)
		}
	}
	return edges
}

// dedupeEdge records callerID->calleeID in seen and reports whether this
// is the first time it has been observed, so both resolve paths collapse
// duplicate edges the same way.
func dedupeEdge(seen map[string]bool, callerID, calleeID string) (CallsEdge, bool) {
	key := callerID + "->" + calleeID
	if seen[key] {
		return CallsEdge{}, false
	}
	seen[key] = true
	return CallsEdge{CallerID: callerID, CalleeID: calleeID}, true
}

// resolveCall resolves one call by callee spelling: "pkg.Func" style
// qualified calls resolve through the caller file's import aliases; bare
// names fall back to any dot-imported package that exports them. Returns
// "" (not an error) when nothing matches - most unresolved calls are
// legitimately external (stdlib, third-party) rather than missing.
func (r *CallResolver) resolveCall(call UnresolvedCall) string {
	if strings.Contains(call.CalleeName, ".") {
		return r.resolveQualifiedCall(call)
	}
	return r.resolveDotImportedCall(call)
}

func (r *CallResolver) resolveQualifiedCall(call UnresolvedCall) string {
	parts := strings.SplitN(call.CalleeName, ".", 2)
	alias, funcName := parts[0], parts[1]

	// "s.handler.Run()" style chained selectors: only the last component
	// is a candidate function name.
	if lastDot := strings.LastIndex(funcName, "."); lastDot >= 0 {
		funcName = funcName[lastDot+1:]
	}
	if !isExportedName(funcName) {
		return ""
	}

	importPath, ok := r.importsByFile[call.FilePath][alias]
	if !ok {
		return ""
	}
	pkgDir := r.findPackageByImportPath(importPath)
	if pkgDir == "" {
		return ""
	}
	return r.funcsByPkg[pkgDir][funcName]
}

func (r *CallResolver) resolveDotImportedCall(call UnresolvedCall) string {
	for alias, importPath := range r.importsByFile[call.FilePath] {
		if alias != "." {
			continue
		}
		pkgDir := r.findPackageByImportPath(importPath)
		if pkgDir == "" {
			continue
		}
		if id := r.funcsByPkg[pkgDir][call.CalleeName]; id != "" {
			return id
		}
	}
	return ""
}

// findPackageByImportPath maps a Go import path to the local package
// directory it resolves to within this batch, memoizing suffix/name
// matches in pkgByImport so repeat lookups for the same import path are
// O(1) after the first.
func (r *CallResolver) findPackageByImportPath(importPath string) string {
	if dir, ok := r.pkgByImport[importPath]; ok {
		return dir
	}

	for dir := range r.packagesByDir {
		if strings.HasSuffix(importPath, dir) {
			r.pkgByImport[importPath] = dir
			return dir
		}
	}

	base := filepath.Base(importPath)
	for dir, pkg := range r.packagesByDir {
		if pkg.PackageName == base {
			r.pkgByImport[importPath] = dir
			return dir
		}
	}

	return ""
}

// Stats reports the resolver's current index size: package, function, and
// import-alias counts, for diagnosing a suspiciously small cross-file
// call graph. index_status does not report these counts.
func (r *CallResolver) Stats() (packages, functions, imports int) {
	packages = len(r.packagesByDir)
	for _, funcs := range r.funcsByPkg {
		functions += len(funcs)
	}
	for _, imps := range r.importsByFile {
		imports += len(imps)
	}
	return
}
