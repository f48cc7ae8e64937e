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

// Package ui holds the ragex CLI's color palette and message helpers:
// Red/Yellow/Green/Cyan/Bold/Dim for inline use, and Success/Warning/
// Error/Info/Header for whole-line messages. Every helper respects
// --no-color and NO_COLOR through the shared color.NoColor switch
// InitColors flips.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// InitColors sets the global color.NoColor switch from the --no-color
// flag. Call once, early in main(), before any other helper in this
// package runs. fatih/color already honors NO_COLOR on its own; this
// adds the explicit CLI-flag override on top.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

func Success(msg string) {
	_, _ = Green.Println("✓ " + msg)
}

func Successf(format string, args ...any) {
	_, _ = Green.Printf("✓ "+format+"\n", args...)
}

func Warning(msg string) {
	_, _ = Yellow.Println("⚠ " + msg)
}

func Warningf(format string, args ...any) {
	_, _ = Yellow.Printf("⚠ "+format+"\n", args...)
}

func Error(msg string) {
	_, _ = Red.Println("✗ " + msg)
}

func Errorf(format string, args ...any) {
	_, _ = Red.Printf("✗ "+format+"\n", args...)
}

func Info(msg string) {
	_, _ = Cyan.Println("ℹ " + msg)
}

func Infof(format string, args ...any) {
	_, _ = Cyan.Printf("ℹ "+format+"\n", args...)
}

// Header prints a bold title followed by a rule of "=" matching its
// width, e.g. the "ragex project status" banner.
func Header(text string) {
	_, _ = Bold.Println(text)
	fmt.Println(strings.Repeat("=", len(text)))
}

// SubHeader prints a bold title with no rule, for a section inside an
// already-Headered block (the "Graph:"/"Embeddings:"/"Tracker:" blocks
// of the status command).
func SubHeader(text string) {
	_, _ = Bold.Println(text)
}

// Label bold-formats an inline field name, e.g. "Project ID:" ahead of
// its value on the same line.
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText faint-formats secondary detail, e.g. a file path trailing a
// count.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText cyan-formats a statistic, e.g. an entity or edge count in
// the status command's Graph/Embeddings/Tracker sections.
func CountText(count int) string {
	return Cyan.Sprint(count)
}
