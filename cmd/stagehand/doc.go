// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the stagehand CLI commands.
//
// The root command wires configuration, logging and the command tree through
// an App. Each command keeps its core logic in a run function that takes its
// dependencies and writers explicitly, so it can be tested without Cobra or a
// live GitHub API.
package cmd
