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
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kraklabs/ragex/internal/output"
	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/ingestion"
	"github.com/kraklabs/ragex/pkg/persistence"
	"github.com/kraklabs/ragex/pkg/retrieval"
	"github.com/kraklabs/ragex/pkg/tracker"
)

// queryResultRow is one result row for text and JSON output.
type queryResultRow struct {
	Kind  string  `json:"kind"`
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Text  string  `json:"text,omitempty"`
}

// runQuery executes the 'query' CLI command: embeds the given text and runs
// it through HybridRetrieval against the cached graph/embedding state.
func runQuery(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	timeout := fs.Duration("timeout", 30*time.Second, "Query timeout")
	limit := fs.Int("limit", 10, "Maximum number of results")
	threshold := fs.Float64("threshold", 0.0, "Minimum cosine similarity score")
	strategyFlag := fs.String("strategy", "fusion", "Retrieval strategy: fusion, semantic-first, or graph-first")
	kindFlag := fs.String("kind", "", "Restrict results to an entity kind: module, function, file, type, variable")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ragex query [options] <text>

Runs a hybrid graph + vector retrieval query against the cached index.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ragex query "where do we parse config files?"
  ragex query --kind function --limit 5 "embedding provider construction"
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	asJSON := *jsonOutput || globals.JSON

	if fs.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: query text required\n")
		fs.Usage()
		os.Exit(1)
	}
	queryText := strings.Join(fs.Args(), " ")

	strategy, err := parseStrategy(*strategyFlag)
	if err != nil {
		reportQueryError(asJSON, err)
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		reportQueryError(asJSON, err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		reportQueryError(asJSON, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := persistence.New(cfg.Cache.Dir, logger)
	if err != nil {
		reportQueryError(asJSON, err)
		os.Exit(1)
	}
	projectHash := persistence.ProjectHash(cwd)

	stats, err := store.Stats(projectHash)
	if err != nil || len(stats) == 0 {
		reportQueryError(asJSON, fmt.Errorf("project not indexed yet. Run 'ragex index' first"))
		os.Exit(1)
	}
	meta := stats[0].Meta

	g := graph.NewStore()
	e := embedding.NewStore()
	t := tracker.New()
	model := persistence.ModelInfo{ID: meta.EmbeddingModelID, Repo: meta.EmbeddingModelRepo, Dimensions: meta.Dimensions}
	if outcome := store.Load(projectHash, model, g, e, t); outcome.Kind != persistence.Loaded {
		reportQueryError(asJSON, fmt.Errorf("cached index unreadable: %s", outcome.Reason))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	applyEmbeddingEnv(cfg)
	provider, err := ingestion.CreateEmbeddingProvider(cfg.Embedding.ModelID, logger)
	if err != nil {
		reportQueryError(asJSON, err)
		os.Exit(1)
	}
	vector, err := provider.Embed(ctx, queryText)
	if err != nil {
		reportQueryError(asJSON, fmt.Errorf("embed query: %w", err))
		os.Exit(1)
	}

	engine := retrieval.New(g, e)
	q := retrieval.Query{
		Strategy:    strategy,
		QueryVector: vector,
		Graph:       retrieval.GraphQuery{Kind: entity.Kind(*kindFlag), Limit: *limit},
		Threshold:   *threshold,
		Limit:       *limit,
	}
	items := engine.Search(q)

	rows := make([]queryResultRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, queryResultRow{Kind: string(item.Id.Kind), ID: item.Id.String(), Score: item.Score, Text: item.Text})
	}

	if asJSON {
		_ = output.JSON(map[string]any{"query": queryText, "strategy": *strategyFlag, "results": rows})
		return
	}
	printQueryRows(rows)
}

func parseStrategy(s string) (retrieval.Strategy, error) {
	switch s {
	case "fusion", "":
		return retrieval.Fusion, nil
	case "semantic-first":
		return retrieval.SemanticFirst, nil
	case "graph-first":
		return retrieval.GraphFirst, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", s)
	}
}

func reportQueryError(asJSON bool, err error) {
	if asJSON {
		_ = output.JSON(map[string]any{"error": err.Error()})
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func printQueryRows(rows []queryResultRow) {
	if len(rows) == 0 {
		fmt.Println("No results")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tKIND\tID\tTEXT")
	fmt.Fprintln(w, "-----\t----\t--\t----")
	for _, row := range rows {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", row.Score, row.Kind, row.ID, truncate(row.Text, 60))
	}
	_ = w.Flush()

	fmt.Printf("\n(%d results)\n", len(rows))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
