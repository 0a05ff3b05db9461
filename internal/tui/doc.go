// SPDX-License-Identifier: MPL-2.0

// Package tui provides the interactive prompts used by the CLI, built on
// Bubble Tea and Lip Gloss. Each prompt falls back to a plain line prompt in
// accessible mode or when stdin is not a terminal.
package tui
