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

package refactor

import "fmt"

// NotFoundError reports a missing node, as a {kind, id} pair.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("refactor: %s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) ErrorKind() string { return "not_found" }

// RefactorError is the composite failure Refactor reports: any
// parser/transform failure on any file aborts the whole operation with
// rollback, and this is what's reported back.
type RefactorError struct {
	Operation     string
	FilesModified int
	RolledBack    bool
	Errors        []FileError
}

// FileError is one file's contribution to a RefactorError.
type FileError struct {
	File   string
	Reason string
}

func (e *RefactorError) Error() string {
	return fmt.Sprintf("refactor: %s failed across %d file(s), rolled_back=%v", e.Operation, len(e.Errors), e.RolledBack)
}

func (e *RefactorError) Kind() string { return "refactor_error" }
