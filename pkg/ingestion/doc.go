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

// Package ingestion provides ragex's code indexing pipeline.
//
// IngestionPipeline parses source code, extracts functions/types/call
// relationships, generates embeddings, and writes the results into the
// caller-owned graph.Store, embedding.Store, and tracker.Tracker.
//
// # Pipeline Overview
//
// One Run processes a RepoSource in five stages:
//
//  1. Discovery: RepoLoader walks the source tree, honoring Config.ExcludeGlobs
//  2. Classification: Tracker.Classify compares each file's checksum against
//     what was tracked last run, so unchanged files are skipped
//  3. Parsing: CodeParser extracts functions, types, and call relationships
//     per changed file
//  4. Resolution: CallResolver maps call sites to the functions they invoke,
//     including across file/package boundaries
//  5. Embedding + storage: EmbeddingProvider embeds each entity's text,
//     graph.Store.ReplaceFileEntities swaps in the new nodes/edges for
//     that file, and Tracker.Track records the new checksum
//
// # Supported Languages
//
// Go, Python, TypeScript, and JavaScript are parsed with Tree-sitter.
// Protocol Buffers (.proto) are parsed with a regex-based parser.
//
// # Quick Start
//
//	cfg := ingestion.DefaultConfig()
//	pipeline, err := ingestion.NewPipeline(cfg, g, e, t, provider, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pipeline.Close()
//
//	report, err := pipeline.Run(ctx, ingestion.RepoSource{Type: "local_path", Value: "."})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Indexed %d files, %d functions\n", report.FilesAnalyzed, report.Functions)
//
// # Incremental Updates
//
// Calling Run again on the same graph/embedding/tracker trio only
// reparses files whose checksum changed since the last run; unchanged
// files are left untouched in the graph, and the entities of files no
// longer present are removed via graph.Store.ReplaceFileEntities with no
// replacements. A caller that wants a clean
// reindex should start from fresh empty stores instead of reusing ones
// loaded from persistence.Store.
//
// # Metrics
//
// Report summarizes one Run (files analyzed/skipped/deleted, functions,
// types, errors, elapsed time). The embedding stage also counts computed
// embeddings, provider errors and retries in Prometheus counters under the
// ragex_ing_ prefix, registered on the default registry on first use. The
// other ragex_ing_ counters and the duration histograms are registered
// alongside them but are not updated by the pipeline.
package ingestion
