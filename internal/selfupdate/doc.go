// SPDX-License-Identifier: MPL-2.0

// Package selfupdate keeps a stagehand installation current. It finds releases
// on GitHub, streams the platform archive into the extract package for
// verification and installation, and records the result.
//
// Versions are installed side by side below the data directory:
//
//	<dataDir>/update.lock              serializes updates across processes
//	<dataDir>/client/current.toml      receipt of the last successful install
//	<dataDir>/client/<version>/stagehand
//
// The package is organized into these concerns:
//   - github.go: HTTP client for the GitHub Releases API (list, get-by-tag, download)
//   - detect.go: Install method detection (Script, Homebrew, GoInstall, Unknown)
//   - checksum.go: checksums.txt parsing into go-digest values
//   - receipt.go, tidy.go: the receipt and removal of superseded versions
//   - selfupdate.go: Updater type that composes the above for end-to-end update flow
package selfupdate
