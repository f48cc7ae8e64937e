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
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kraklabs/ragex/internal/output"
	"github.com/kraklabs/ragex/internal/ui"
	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/ingestion"
	"github.com/kraklabs/ragex/pkg/persistence"
	"github.com/kraklabs/ragex/pkg/tracker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runIndex executes the 'index' CLI command: loads any compatible cached
// graph/embedding/tracker state, runs IngestionPipeline over the current
// repository, then saves the result back.
//
// Flags:
//   - --full: discard any cached state and reindex from scratch
//   - --embed-workers: number of parallel embedding workers (default: 8)
//   - --debug: enable debug logging
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
func runIndex(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	full := fs.Bool("full", false, "Discard cached state and reindex from scratch")
	embedWorkers := fs.Int("embed-workers", 8, "Number of parallel embedding workers")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ragex index [options]

Indexes the current repository using configuration from .cie/project.yaml.
Cache is stored under $XDG_CACHE_HOME/ragex/<project_hash>/

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}
	applyEmbeddingEnv(cfg)

	cacheRoot := cfg.Cache.Dir
	store, err := persistence.New(cacheRoot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open cache: %v\n", err)
		os.Exit(1)
	}
	projectHash := persistence.ProjectHash(cwd)

	queue, err := NewIndexQueue(projectHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open index lock: %v\n", err)
		os.Exit(1)
	}
	acquired, err := queue.WaitForLock(30 * time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: acquire index lock: %v\n", err)
		os.Exit(1)
	}
	if !acquired {
		fmt.Fprintf(os.Stderr, "Error: another 'ragex index' is already running for this project\n")
		os.Exit(1)
	}
	defer queue.ReleaseLock()

	g := graph.NewStore()
	e := embedding.NewStore()
	t := tracker.New()

	provider, err := ingestion.CreateEmbeddingProvider(cfg.Embedding.ModelID, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: create embedding provider: %v\n", err)
		os.Exit(1)
	}
	probe, err := provider.Embed(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: probe embedding dimensions: %v\n", err)
		os.Exit(1)
	}
	model := persistence.ModelInfo{ID: cfg.Embedding.ModelID, Repo: cfg.Embedding.Model, Dimensions: len(probe)}

	if !*full {
		outcome := store.Load(projectHash, model, g, e, t)
		switch outcome.Kind {
		case persistence.Loaded:
			logger.Info("cache.loaded", "entities", outcome.EntityCount)
		case persistence.Incompatible:
			logger.Warn("cache.incompatible", "stored_dims", outcome.StoredModel.Dimensions, "current_dims", outcome.CurrentModel.Dimensions)
		case persistence.Corrupt:
			logger.Warn("cache.corrupt", "reason", outcome.Reason)
		}
	}

	icfg := ingestion.DefaultConfig()
	icfg.ExcludeGlobs = append(icfg.ExcludeGlobs, cfg.Analysis.ExcludePatterns...)
	icfg.EmbedWorkers = *embedWorkers
	icfg.EmbeddingModel = cfg.Embedding.ModelID

	pipeline, err := ingestion.NewPipeline(icfg, g, e, t, provider, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: create pipeline: %v\n", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	progress := NewProgressConfig(globals)
	spinner := NewSpinner(progress, "indexing")

	logger.Info("indexing.starting", "project_id", cfg.ProjectID, "repo_path", cwd, "embedding_model", cfg.Embedding.ModelID)
	report, err := pipeline.Run(ctx, ingestion.RepoSource{Type: "local_path", Value: cwd})
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: indexing failed: %v\n", err)
		os.Exit(1)
	}

	if err := store.Save(projectHash, g, e, t, model); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save cache: %v\n", err)
	}

	printIndexReport(report, globals)
}

func applyEmbeddingEnv(cfg *Config) {
	switch cfg.Embedding.ModelID {
	case "ollama":
		os.Setenv("OLLAMA_HOST", cfg.Embedding.BaseURL)
		os.Setenv("OLLAMA_EMBED_MODEL", cfg.Embedding.Model)
	case "openai":
		if cfg.Embedding.BaseURL != "" {
			os.Setenv("OPENAI_API_BASE", cfg.Embedding.BaseURL)
		}
		os.Setenv("OPENAI_EMBED_MODEL", cfg.Embedding.Model)
		if cfg.Embedding.APIKey != "" {
			os.Setenv("OPENAI_API_KEY", cfg.Embedding.APIKey)
		}
	}
}

func printIndexReport(report *ingestion.Report, globals GlobalFlags) {
	if globals.JSON {
		_ = output.JSON(report)
		return
	}
	if globals.Quiet {
		return
	}
	fmt.Println()
	ui.Successf("Indexing complete (%s)", report.Elapsed)
	fmt.Printf("%s %s\n", ui.Label("Files Analyzed:"), ui.CountText(report.FilesAnalyzed))
	fmt.Printf("%s %s\n", ui.Label("Files Skipped:"), ui.CountText(report.FilesSkipped))
	fmt.Printf("%s %s\n", ui.Label("Files Deleted:"), ui.CountText(report.FilesDeleted))
	fmt.Printf("%s %s\n", ui.Label("Functions:"), ui.CountText(report.Functions))
	fmt.Printf("%s %s\n", ui.Label("Types:"), ui.CountText(report.Types))
	if len(report.Errors) > 0 {
		ui.Warningf("Errors: %d", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", ui.DimText(e))
		}
	}
}
