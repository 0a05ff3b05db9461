// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
)

var (
	// ErrAssetNotFound indicates the requested asset filename was not found in
	// the release or in checksums.txt.
	ErrAssetNotFound = errors.New("asset not found")

	// errNoValidEntries indicates the checksums file contained no parseable entries.
	errNoValidEntries = errors.New("no valid checksum entries found")
)

// ChecksumEntry is one line of a checksums file.
type ChecksumEntry struct {
	Digest   digest.Digest // Algorithm-qualified digest, lowercase
	Filename string        // Asset filename this digest applies to
}

// ParseChecksums parses a checksums file in sha256sum or sha512sum output
// format. Each line is "{hex}  {filename}" in text mode or "{hex} *{filename}"
// in binary mode; the algorithm is inferred from the hex length. Empty and
// malformed lines are skipped. Returns an error if no valid entries are found.
func ParseChecksums(r io.Reader) ([]ChecksumEntry, error) {
	var entries []ChecksumEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		hash, filename, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		// The separator is a second space (text) or an asterisk (binary).
		if len(filename) == 0 || (filename[0] != ' ' && filename[0] != '*') {
			continue
		}
		filename = strings.TrimSpace(filename[1:])

		d, ok := digestFromHex(hash)
		if filename == "" || !ok {
			continue
		}

		entries = append(entries, ChecksumEntry{Digest: d, Filename: filename})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}

	if len(entries) == 0 {
		return nil, errNoValidEntries
	}

	return entries, nil
}

// FindChecksum searches entries for the given filename and returns its digest.
// Returns ErrAssetNotFound if no entry matches the filename.
func FindChecksum(entries []ChecksumEntry, filename string) (digest.Digest, error) {
	for _, e := range entries {
		if e.Filename == filename {
			return e.Digest, nil
		}
	}
	return "", fmt.Errorf("%s: %w", filename, ErrAssetNotFound)
}

// digestFromHex maps a bare hex string to a digest, choosing the algorithm by
// encoded length.
func digestFromHex(hash string) (digest.Digest, bool) {
	hash = strings.ToLower(hash)
	for _, alg := range []digest.Algorithm{digest.SHA256, digest.SHA512} {
		if len(hash) != alg.Size()*2 {
			continue
		}
		d := digest.NewDigestFromEncoded(alg, hash)
		return d, d.Validate() == nil
	}
	return "", false
}
