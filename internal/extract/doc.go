// SPDX-License-Identifier: MPL-2.0

// Package extract installs a gzip-compressed tar stream into a directory.
//
// A single pass over the source stream feeds two goroutines: one hashes the raw
// bytes and compares the result with the expected digest, the other
// decompresses and unpacks the archive into a private staging directory. Only
// when both succeed is the staged <basename> directory promoted into the
// output directory with a same-volume rename. The staging directory is removed
// on every exit path, so a failed or interrupted update never leaves a partial
// tree at the destination.
//
// The package is organized into four concerns:
//   - checksum.go: expected digest parsing and the streaming verifier
//   - entry.go, untar.go: the entry policy and the archive extractor
//   - install.go: promotion of the staged tree (rename, exchange, cross-volume copy)
//   - extract.go: the Extractor that composes the above
//
// Callers must serialize extractions that target the same output directory.
package extract
