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

// Package persistence serializes GraphStore, EmbeddingStore, and Tracker to
// a project-scoped cache directory and loads them back, gating reuse on
// embedding-model compatibility. Keyed by a 16-hex-digit project hash, and
// written with an atomic-temp-file-then-rename discipline.
package persistence

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/ragex/pkg/embedding"
	"github.com/kraklabs/ragex/pkg/entity"
	"github.com/kraklabs/ragex/pkg/graph"
	"github.com/kraklabs/ragex/pkg/tracker"
)

func init() {
	// gob needs the concrete type of every value stored behind an
	// interface{} (Node.Attrs and Edge.Attrs); predeclared types (string,
	// int, bool, float64...) are registered by the gob package itself,
	// but named types are not.
	gob.Register(entity.Visibility(""))
}

const metaVersion = 1

// ModelInfo is the embedding-model identity Persistence gates compatibility
// on
type ModelInfo struct {
	ID         string
	Repo       string
	Dimensions int
}

// Metadata is the on-disk meta.json payload
type Metadata struct {
	Version             int       `json:"version"`
	EmbeddingModelID    string    `json:"embedding_model_id"`
	EmbeddingModelRepo  string    `json:"embedding_model_repo"`
	Dimensions          int       `json:"dimensions"`
	CreatedAt           int64     `json:"created_at"`
	EntityCount         int `json:"entity_count"`
	FileTrackingVersion int `json:"file_tracking_version"`
}

// OutcomeKind tags which variant Load returned.
type OutcomeKind int

const (
	Loaded OutcomeKind = iota
	Incompatible
	NotFound
	Corrupt
)

// LoadOutcome is the result of Load, a tagged sum
type LoadOutcome struct {
	Kind         OutcomeKind
	EntityCount  int
	StoredModel  ModelInfo
	CurrentModel ModelInfo
	Reason       string
}

// Store is the single persistence owner for one cache root. Safe for
// concurrent use via the same single-owner-per-store discipline as
// GraphStore/EmbeddingStore; Persistence itself has no
// internal mutable state beyond the filesystem, so no mutex is needed
// here, but callers should not concurrently Save/Load the same project.
type Store struct {
	cacheRoot string
	logger    *slog.Logger
}

// New returns a persistence Store rooted at cacheRoot. If cacheRoot is
// empty, it defaults to os.UserCacheDir()/ragex, since there is no single
// always-available home-dir convention (see DESIGN.md).
func New(cacheRoot string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheRoot == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("persistence: resolve cache dir: %w", err)
		}
		cacheRoot = filepath.Join(dir, "ragex")
	}
	return &Store{cacheRoot: cacheRoot, logger: logger}, nil
}

// ProjectHash returns the 16-hex-digit prefix of SHA-256(absoluteRootPath),
// the directory name under which a project's cache lives.
func ProjectHash(absoluteRootPath string) string {
	sum := sha256.Sum256([]byte(absoluteRootPath))
	return hex.EncodeToString(sum[:])[:16]
}

func (s *Store) projectDir(projectHash string) string {
	return filepath.Join(s.cacheRoot, projectHash)
}

// Save atomically writes graph nodes+edges, the embedding map, and the
// tracker export to the project's cache directory, succeeding only if
// every file fully completes (temp-file + rename per file).
func (s *Store) Save(projectHash string, g *graph.Store, e *embedding.Store, t *tracker.Tracker, model ModelInfo) error {
	dir := s.projectDir(projectHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: mkdir %s: %w", dir, err)
	}

	nodes := g.AllNodes()
	edges := g.AllEdges()
	if err := writeGob(filepath.Join(dir, "nodes.bin"), nodes); err != nil {
		return err
	}
	if err := writeGob(filepath.Join(dir, "edges.bin"), edges); err != nil {
		return err
	}

	entries := e.Snapshot()
	if err := writeGob(filepath.Join(dir, "embeddings.bin"), entries); err != nil {
		return err
	}

	payload := t.Export()
	if err := writeGob(filepath.Join(dir, "tracker.bin"), payload); err != nil {
		return err
	}

	meta := Metadata{
		Version:             metaVersion,
		EmbeddingModelID:    model.ID,
		EmbeddingModelRepo:  model.Repo,
		Dimensions:          model.Dimensions,
		CreatedAt:           time.Now().Unix(),
		EntityCount:         len(nodes),
		FileTrackingVersion: 1,
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal meta: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "meta.json"), metaBytes); err != nil {
		return err
	}

	s.logger.Info("persistence.save", "project_hash", projectHash, "nodes", len(nodes), "edges", len(edges), "embeddings", len(entries))
	return nil
}

// Load reads back a project's cache, gating reuse on the current model's
// dimensions matching the stored model's dimensions exactly (
// compatibility predicate). On Loaded, it populates g/e/t in place.
func (s *Store) Load(projectHash string, current ModelInfo, g *graph.Store, e *embedding.Store, t *tracker.Tracker) LoadOutcome {
	dir := s.projectDir(projectHash)
	metaBytes, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return LoadOutcome{Kind: NotFound}
		}
		s.logger.Warn("persistence.load.corrupt", "project_hash", projectHash, "err", err)
		return LoadOutcome{Kind: Corrupt, Reason: err.Error()}
	}

	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		s.logger.Warn("persistence.load.corrupt", "project_hash", projectHash, "err", err)
		return LoadOutcome{Kind: Corrupt, Reason: err.Error()}
	}
	if meta.Version != metaVersion {
		s.logger.Warn("persistence.load.corrupt", "project_hash", projectHash, "reason", "unsupported version")
		return LoadOutcome{Kind: Corrupt, Reason: fmt.Sprintf("unsupported cache version %d", meta.Version)}
	}

	stored := ModelInfo{ID: meta.EmbeddingModelID, Repo: meta.EmbeddingModelRepo, Dimensions: meta.Dimensions}
	if meta.Dimensions != current.Dimensions {
		return LoadOutcome{Kind: Incompatible, StoredModel: stored, CurrentModel: current}
	}

	var nodes []entity.Node
	if err := readGob(filepath.Join(dir, "nodes.bin"), &nodes); err != nil {
		s.logger.Warn("persistence.load.corrupt", "project_hash", projectHash, "err", err)
		return LoadOutcome{Kind: Corrupt, Reason: err.Error()}
	}
	var edges []entity.Edge
	if err := readGob(filepath.Join(dir, "edges.bin"), &edges); err != nil {
		s.logger.Warn("persistence.load.corrupt", "project_hash", projectHash, "err", err)
		return LoadOutcome{Kind: Corrupt, Reason: err.Error()}
	}
	var entries map[entity.Id]embedding.Entry
	if err := readGob(filepath.Join(dir, "embeddings.bin"), &entries); err != nil {
		s.logger.Warn("persistence.load.corrupt", "project_hash", projectHash, "err", err)
		return LoadOutcome{Kind: Corrupt, Reason: err.Error()}
	}
	var trackerPayload tracker.Payload
	if err := readGob(filepath.Join(dir, "tracker.bin"), &trackerPayload); err != nil {
		s.logger.Warn("persistence.load.corrupt", "project_hash", projectHash, "err", err)
		return LoadOutcome{Kind: Corrupt, Reason: err.Error()}
	}

	g.LoadSnapshot(nodes, edges)
	e.LoadSnapshot(entries, meta.Dimensions)
	t.Import(trackerPayload)

	return LoadOutcome{Kind: Loaded, EntityCount: meta.EntityCount}
}

// ClearScope selects which projects Clear removes.
type ClearScope struct {
	All        bool
	OlderThan  time.Duration
	ProjectOne string // used when neither All nor OlderThan is set
}

// Clear removes cache directories matching scope.
func (s *Store) Clear(scope ClearScope) error {
	switch {
	case scope.All:
		entries, err := os.ReadDir(s.cacheRoot)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("persistence: read cache root: %w", err)
		}
		for _, de := range entries {
			if err := os.RemoveAll(filepath.Join(s.cacheRoot, de.Name())); err != nil {
				return err
			}
		}
		return nil
	case scope.OlderThan > 0:
		entries, err := os.ReadDir(s.cacheRoot)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("persistence: read cache root: %w", err)
		}
		cutoff := time.Now().Add(-scope.OlderThan)
		for _, de := range entries {
			info, err := de.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.RemoveAll(filepath.Join(s.cacheRoot, de.Name())); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		if scope.ProjectOne == "" {
			return fmt.Errorf("persistence: clear requires a project hash when scope is not all/older_than")
		}
		return os.RemoveAll(s.projectDir(scope.ProjectOne))
	}
}

// ProjectStats is the size/count/timestamp/model summary stats() returns.
type ProjectStats struct {
	ProjectHash string
	Meta        Metadata
	TotalBytes  int64
}

// Stats returns ProjectStats for every project cache directory matching
// scope (all projects when projectHash is empty).
func (s *Store) Stats(projectHash string) ([]ProjectStats, error) {
	var hashes []string
	if projectHash != "" {
		hashes = []string{projectHash}
	} else {
		entries, err := os.ReadDir(s.cacheRoot)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("persistence: read cache root: %w", err)
		}
		for _, de := range entries {
			if de.IsDir() {
				hashes = append(hashes, de.Name())
			}
		}
	}

	out := make([]ProjectStats, 0, len(hashes))
	for _, h := range hashes {
		dir := s.projectDir(h)
		metaBytes, err := os.ReadFile(filepath.Join(dir, "meta.json"))
		if err != nil {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			continue
		}
		var total int64
		_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				total += info.Size()
			}
			return nil
		})
		out = append(out, ProjectStats{ProjectHash: h, Meta: meta, TotalBytes: total})
	}
	return out, nil
}

func writeGob(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("persistence: create %s: %w", tmp, err)
	}
	enc := gob.NewEncoder(f)
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("persistence: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persistence: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persistence: rename %s: %w", tmp, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("persistence: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persistence: rename %s: %w", tmp, err)
	}
	return nil
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("persistence: open %s: %w", path, err)
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("persistence: decode %s: %w", path, err)
	}
	return nil
}
