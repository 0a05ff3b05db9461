// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by stagehand's tests: building
// gzip-compressed tar archives in memory (TarGz, Release) and pointing the
// home directory at a temp dir (SetHomeDir).
package testutil
