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
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kraklabs/ragex/internal/output"
	"github.com/kraklabs/ragex/internal/ui"
	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/persistence"
	"github.com/kraklabs/ragex/pkg/tracker"
)

// StatusResult is the status command's JSON/text output shape.
type StatusResult struct {
	ProjectID      string         `json:"project_id"`
	ProjectHash    string         `json:"project_hash"`
	Indexed        bool           `json:"indexed"`
	Files          int            `json:"files"`
	Entities       int            `json:"entities"`
	Embeddings     int            `json:"embeddings"`
	Dimensions     int            `json:"dimensions"`
	NodeCounts     map[string]int `json:"node_counts,omitempty"`
	EdgeCount      int            `json:"edge_count"`
	EmbeddingModel string         `json:"embedding_model,omitempty"`
	IndexedAt      time.Time      `json:"indexed_at,omitempty"`
	IndexRunning   bool           `json:"index_running"`
	IndexRunningFor string        `json:"index_running_for,omitempty"`
	Error          string         `json:"error,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// runStatus executes the 'status' CLI command: loads cached graph/embedding/
// tracker state for the current project and reports its shape without
// reindexing anything.
func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ragex status [options]

Shows the status of the current project's cached index.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	asJSON := *jsonOutput || globals.JSON

	cfg, err := LoadConfig(configPath)
	if err != nil {
		reportStatusError(asJSON, "", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		reportStatusError(asJSON, cfg.ProjectID, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := persistence.New(cfg.Cache.Dir, logger)
	if err != nil {
		reportStatusError(asJSON, cfg.ProjectID, err)
		os.Exit(1)
	}
	projectHash := persistence.ProjectHash(cwd)

	result := &StatusResult{
		ProjectID:   cfg.ProjectID,
		ProjectHash: projectHash,
		Timestamp:   time.Now(),
	}

	if queue, err := NewIndexQueue(projectHash); err == nil {
		if qs, err := queue.GetStatus(); err == nil && qs.LockHeld {
			result.IndexRunning = true
			result.IndexRunningFor = FormatDuration(qs.LockDuration)
		}
	}

	stats, err := store.Stats(projectHash)
	if err != nil || len(stats) == 0 {
		result.Indexed = false
		result.Error = "Project not indexed yet. Run 'ragex index' first."
		printStatus(result, asJSON)
		return
	}
	meta := stats[0].Meta
	result.EmbeddingModel = meta.EmbeddingModelID
	result.IndexedAt = meta.CreatedAt

	g := graph.NewStore()
	e := embedding.NewStore()
	t := tracker.New()
	model := persistence.ModelInfo{ID: meta.EmbeddingModelID, Repo: meta.EmbeddingModelRepo, Dimensions: meta.Dimensions}
	outcome := store.Load(projectHash, model, g, e, t)
	if outcome.Kind != persistence.Loaded {
		result.Indexed = false
		result.Error = fmt.Sprintf("cached index present but unreadable: %s", outcome.Reason)
		printStatus(result, asJSON)
		return
	}

	result.Indexed = true
	gs := g.Stats()
	result.Entities = gs.NodeCount
	result.EdgeCount = gs.EdgeCount
	result.NodeCounts = gs.NodeCountsBy
	result.Embeddings = e.Size()
	result.Dimensions = e.Dims()
	ts := t.Stats()
	result.Files = ts.FileCount

	printStatus(result, asJSON)
}

func reportStatusError(asJSON bool, projectID string, err error) {
	result := &StatusResult{ProjectID: projectID, Error: err.Error(), Timestamp: time.Now()}
	printStatus(result, asJSON)
}

func printStatus(result *StatusResult, asJSON bool) {
	if asJSON {
		_ = output.JSON(result)
		return
	}
	if !result.Indexed {
		if result.Error != "" {
			ui.Error(result.Error)
		}
		return
	}
	ui.Header("ragex project status")
	fmt.Printf("%s %s\n", ui.Label("Project ID:"), result.ProjectID)
	fmt.Printf("%s %s\n", ui.Label("Project Hash:"), result.ProjectHash)
	fmt.Printf("%s %s\n", ui.Label("Embedding Model:"), result.EmbeddingModel)
	fmt.Printf("%s %s\n", ui.Label("Indexed At:"), result.IndexedAt.Format(time.RFC3339))
	if result.IndexRunning {
		fmt.Printf("%s in progress (%s)\n", ui.Label("Indexing:"), result.IndexRunningFor)
	}
	fmt.Println()
	ui.SubHeader("Graph:")
	fmt.Printf("  Entities:      %s\n", ui.CountText(result.Entities))
	fmt.Printf("  Edges:         %s\n", ui.CountText(result.EdgeCount))
	for kind, count := range result.NodeCounts {
		fmt.Printf("    %-12s %s\n", kind, ui.CountText(count))
	}
	fmt.Println()
	ui.SubHeader("Embeddings:")
	fmt.Printf("  Count:         %s\n", ui.CountText(result.Embeddings))
	fmt.Printf("  Dimensions:    %s\n", ui.CountText(result.Dimensions))
	fmt.Println()
	ui.SubHeader("Tracker:")
	fmt.Printf("  Files:         %s\n", ui.CountText(result.Files))
	if result.Error != "" {
		fmt.Println()
		ui.Warningf("%s", result.Error)
	}
}
