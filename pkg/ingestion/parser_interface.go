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

import "log/slog"

// CodeParser is implemented by every extraction strategy IngestionPipeline
// can run: ParseFile turns one FileInfo into a ParseResult, and the
// truncation counters let a caller report how much CodeText got clipped to
// maxCodeTextSize across a whole Run.
type CodeParser interface {
	ParseFile(fileInfo FileInfo) (*ParseResult, error)
	SetMaxCodeTextSize(size int64)
	GetTruncatedCount() int
	ResetTruncatedCount()
}

var _ CodeParser = (*TreeSitterParser)(nil)
var _ CodeParser = (*Parser)(nil)

// ParserMode selects which CodeParser implementation NewPipeline builds.
type ParserMode string

const (
	// ParserModeTreeSitter parses with the bundled tree-sitter grammars:
	// AST-accurate for go/typescript/javascript/python, at the cost of the
	// go-tree-sitter CGO dependency.
	ParserModeTreeSitter ParserMode = "treesitter"

	// ParserModeSimplified parses go/protobuf only, via regex/string
	// matching with no CGO dependency. Lower fidelity: no Go type extraction
	// (protobuf messages/enums are still extracted), coarser call resolution.
	ParserModeSimplified ParserMode = "simplified"

	// ParserModeAuto is ParserModeTreeSitter today; kept distinct from it
	// so a future build-tag-gated CGO detection can downgrade to
	// ParserModeSimplified without changing callers' Config.
	ParserModeAuto ParserMode = "auto"
)

// DefaultParserMode is Config.ParserMode's zero-value default.
const DefaultParserMode = ParserModeAuto

// newCodeParser builds the CodeParser NewPipeline wires into an
// IngestionPipeline, per cfg.ParserMode.
func newCodeParser(mode ParserMode, logger *slog.Logger) CodeParser {
	switch mode {
	case ParserModeSimplified:
		return NewParser(logger)
	default:
		return NewTreeSitterParser(logger)
	}
}
