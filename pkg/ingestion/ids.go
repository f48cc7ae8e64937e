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
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/kraklabs/ragex/pkg/entity"
)

// The IDs below are staging keys only: correlation handles a ParseResult
// uses to wire Defines/Calls edges between FunctionEntity/TypeEntity/
// ImportEntity values extracted from the same or sibling files within one
// batch. They never reach graph.Store - assignBatchIDs in pipeline.go
// converts each one to a real entity.Id (entity.NewFunction/NewType/
// NewModule) before anything is stored or embedded. normalizePath
// delegates to entity.NormalizePath so a staging key and the entity.Id
// built from the same path always agree on path form.

// GenerateFileID generates a deterministic staging key for one source file.
func GenerateFileID(filePath string) string {
	normalized := normalizePath(filePath)
	if len(normalized) <= 256 {
		return fmt.Sprintf("file:%s", normalized)
	}
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("file:%s", hex.EncodeToString(hash[:16]))
}

// GenerateFunctionID generates a deterministic staging key for one parsed
// function, method, or function-shaped construct (protobuf RPC, TS method
// signature, ...). Keyed on path+name+full position range so that two
// functions sharing a name and line range (overloads, nested literals)
// still land on distinct keys; signature is deliberately excluded so a
// parser improvement that refines signature extraction never changes a
// function's identity mid-project.
func GenerateFunctionID(filePath, name, signature string, startLine, endLine, startCol, endCol int) string {
	idStr := fmt.Sprintf("%s|%s|%d|%d|%d|%d", normalizePath(filePath), name, startLine, endLine, startCol, endCol)
	hash := sha256.Sum256([]byte(idStr))
	return fmt.Sprintf("func:%s", hex.EncodeToString(hash[:]))
}

// normalizePath is a package-local alias for entity.NormalizePath, used
// anywhere this package needs a path key before an entity.Id exists yet.
func normalizePath(path string) string {
	return entity.NormalizePath(path)
}
