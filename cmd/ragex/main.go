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

// Package main implements the ragex CLI: indexing repositories into a
// local knowledge graph + embedding cache, querying them via hybrid
// retrieval, and serving the same operations as a JSON-RPC tool-call
// server over stdio.
//
// Usage:
//
//	ragex init                      Create .cie/project.yaml configuration
//	ragex index                     Index the current repository
//	ragex status [--json]           Show project status
//	ragex query <text> [--json]     Run a hybrid retrieval query
//	ragex --mcp                     Start as a JSON-RPC tool server (stdio)
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/ragex/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags holds the CLI-wide flags every subcommand can read: the
// --json/-q/--no-color/-v convention shared across all commands.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		mcpMode     = flag.Bool("mcp", false, "Start as a JSON-RPC tool server (stdio)")
		configPath  = flag.String("config", "", "Path to .cie/project.yaml (default: ./.cie/project.yaml)")
		jsonOut     = flag.Bool("json", false, "Output machine-readable JSON")
		quiet       = flag.Bool("quiet", false, "Suppress progress output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		verbose     = flag.Int("verbose", 0, "Increase log verbosity (0-2)")
	)
	flag.BoolVar(quiet, "q", false, "Suppress progress output (shorthand)")
	flag.IntVar(verbose, "v", 0, "Increase log verbosity (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `ragex - code intelligence CLI

Usage:
  ragex <command> [options]

Commands:
  init          Create .cie/project.yaml configuration
  index         Index the current repository
  status        Show project status
  query         Run a hybrid graph + vector retrieval query
  reset         Reset local project data (destructive!)
  install-hook  Install git post-commit hook for auto-indexing
  completion    Generate shell completion script (bash, zsh, fish)

Global Options:
  --mcp         Start as a JSON-RPC tool server (stdio)
  --config      Path to .cie/project.yaml
  --json        Output machine-readable JSON
  -q, --quiet   Suppress progress output
  --no-color    Disable colored output
  -v, --verbose Increase log verbosity (0-2)
  --version     Show version and exit

Examples:
  ragex init                           Create configuration interactively
  ragex index                          Index current repository
  ragex index --full                   Force full re-index
  ragex status                         Show project status
  ragex status --json                  Output as JSON
  ragex query "where do we parse config files?"
  ragex --mcp                          Start as a JSON-RPC tool server

Data Storage:
  Cache is stored under $XDG_CACHE_HOME/ragex/<project_hash>/

Environment Variables:
  OLLAMA_HOST        Ollama URL (default: http://localhost:11434)
  OLLAMA_EMBED_MODEL  Embedding model (default: nomic-embed-text)

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("ragex version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{JSON: *jsonOut, Quiet: *quiet || *jsonOut, NoColor: *noColor, Verbose: *verbose}
	if *noColor {
		ui.InitColors(true)
	}

	if *mcpMode {
		runMCPServer(*configPath, globals)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "index":
		runIndex(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	case "query":
		runQuery(cmdArgs, *configPath, globals)
	case "reset":
		runReset(cmdArgs, *configPath)
	case "install-hook":
		runInstallHook(cmdArgs, *configPath)
	case "completion":
		runCompletion(cmdArgs, *configPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
