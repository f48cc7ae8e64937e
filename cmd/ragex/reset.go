// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kraklabs/ragex/pkg/persistence"
)

func runReset(args []string, configPath string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ragex reset [options]

Resets the local project's cached index.
This is useful before a full re-index to ensure a clean slate.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		fmt.Fprintf(os.Stderr, "Error: you must pass --yes to confirm the reset\n")
		fmt.Fprintf(os.Stderr, "This will delete the cached index for the current project.\n")
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := persistence.New(cfg.Cache.Dir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open cache: %v\n", err)
		os.Exit(1)
	}
	projectHash := persistence.ProjectHash(cwd)

	fmt.Printf("Resetting project %s (hash %s)...\n", cfg.ProjectID, projectHash)

	if err := store.Clear(persistence.ClearScope{ProjectOne: projectHash}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to delete cached index: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Reset complete. The cached index has been deleted.")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  ragex index --full    Reindex the project")
}
