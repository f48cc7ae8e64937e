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

// Package entity defines the stable identifiers shared by every store in
// ragex: modules, functions, files, types, and variables are all named by
// an EntityId, a small tagged sum rather than a free-form string, so that
// equality and hashing stay structural instead of format-dependent.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// Kind tags the variant an EntityId carries.
type Kind string

const (
	KindModule   Kind = "module"
	KindFunction Kind = "function"
	KindFile     Kind = "file"
	KindType     Kind = "type"
	KindVariable Kind = "variable"
)

// Id is a stable, structurally-comparable identifier for a graph entity.
// Two Ids are equal iff Kind and the relevant fields match; Go's built-in
// struct comparison (==) gives us this for free, which is also why Id is
// usable directly as a map key throughout GraphStore and EmbeddingStore.
type Id struct {
	Kind Kind

	// Module identifies a module by canonical name.
	Module string

	// Function additionally qualifies by owning module, name and arity.
	Function string
	Arity    int

	// File identifies a file by absolute path.
	Path string

	// Type/Variable are reserved; Name carries the
	// identifier within its owning module for both.
	Name string
}

// NewModule builds the EntityId for a module named name.
func NewModule(name string) Id {
	return Id{Kind: KindModule, Module: name}
}

// NewFunction builds the EntityId for a function owned by module, with the
// given name and arity.
func NewFunction(module, name string, arity int) Id {
	return Id{Kind: KindFunction, Module: module, Function: name, Arity: arity}
}

// NewFile builds the EntityId for a file at the given absolute path.
func NewFile(path string) Id {
	return Id{Kind: KindFile, Path: NormalizePath(path)}
}

// NewType builds the (reserved) EntityId for a type.
func NewType(module, name string) Id {
	return Id{Kind: KindType, Module: module, Name: name}
}

// NewVariable builds the (reserved) EntityId for a variable.
func NewVariable(module, name string) Id {
	return Id{Kind: KindVariable, Module: module, Name: name}
}

// String renders a human-readable, stable-across-runs form of the id,
// suitable for logging and for use as a cache key where a string is
// required (e.g. gob map keys do not need this, but diagnostics do).
func (id Id) String() string {
	switch id.Kind {
	case KindModule:
		return fmt.Sprintf("module:%s", id.Module)
	case KindFunction:
		return fmt.Sprintf("function:%s.%s/%d", id.Module, id.Function, id.Arity)
	case KindFile:
		return fmt.Sprintf("file:%s", id.Path)
	case KindType:
		return fmt.Sprintf("type:%s.%s", id.Module, id.Name)
	case KindVariable:
		return fmt.Sprintf("variable:%s.%s", id.Module, id.Name)
	default:
		type plainId Id
		return fmt.Sprintf("unknown:%+v", plainId(id))
	}
}

// Hash returns a stable, platform-independent digest of the id. Stable
// hashing across runs (rather than Go's randomized map hash) matters
// anywhere an id's fingerprint is persisted or compared across processes,
// e.g. gob-encoded cache payloads and undo-log file names.
func (id Id) Hash() string {
	sum := sha256.Sum256([]byte(id.String()))
	return hex.EncodeToString(sum[:])
}

// NormalizePath enforces ID-stability rules: forward slashes, no leading
// "./", no leading "/", cleaned of redundant separators. Ragex reuses it
// both for file EntityIds and for function-id construction below.
func NormalizePath(path string) string {
	if len(path) >= 2 && path[0:2] == "./" {
		path = path[2:]
	}
	path = filepath.Clean(path)
	path = filepath.ToSlash(path)
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}

// HashFunctionRange produces a stable disambiguator for synthesizing
// function names when a parser cannot assign a stable name on its own
// (e.g. anonymous functions). It folds path+name+full position range
// through SHA-256 to avoid collisions between same-named functions at
// different locations, while excluding the signature so that parser
// refinements never change a function's identity.
func HashFunctionRange(path, name string, startLine, endLine, startCol, endCol int) string {
	normalized := NormalizePath(path)
	idStr := fmt.Sprintf("%s|%s|%d|%d|%d|%d", normalized, name, startLine, endLine, startCol, endCol)
	sum := sha256.Sum256([]byte(idStr))
	return hex.EncodeToString(sum[:8])
}
