// SPDX-License-Identifier: MPL-2.0

package extract

import (
	// Register the hash implementations go-digest resolves algorithms against.
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

const (
	checksumUnset checksumMode = iota
	checksumDigest
	checksumUnverified
)

type (
	checksumMode int

	// Checksum is the verification posture of an extraction: either an expected
	// digest that the stream must match, or an explicit decision to trust the
	// stream without verification. The zero value is neither and is rejected
	// by Extract, so every call site states its posture.
	Checksum struct {
		mode     checksumMode
		expected digest.Digest
	}

	// streamVerifier hashes the bytes written to it and compares the result
	// with the expected digest once the stream has ended.
	streamVerifier struct {
		expected digest.Digest
		digester digest.Digester
	}
)

// ExpectDigest requires the stream to hash to d. The encoded part of d is
// compared case-insensitively.
func ExpectDigest(d digest.Digest) Checksum {
	return Checksum{mode: checksumDigest, expected: digest.Digest(strings.ToLower(string(d)))}
}

// Unverified skips digest verification. Use it only when the stream's
// authenticity has been established by other means.
func Unverified() Checksum {
	return Checksum{mode: checksumUnverified}
}

// Verified reports whether the stream will be checked against a digest.
func (c Checksum) Verified() bool { return c.mode == checksumDigest }

// Digest returns the expected digest, or "" for Unverified.
func (c Checksum) Digest() digest.Digest { return c.expected }

// String returns the expected digest or "unverified".
func (c Checksum) String() string {
	switch c.mode {
	case checksumDigest:
		return c.expected.String()
	case checksumUnverified:
		return "unverified"
	}
	return "unset"
}

// Validate returns an error if no posture was chosen or the expected digest is
// malformed or uses an unavailable algorithm.
func (c Checksum) Validate() error {
	switch c.mode {
	case checksumUnverified:
		return nil
	case checksumDigest:
		if err := c.expected.Validate(); err != nil {
			return fmt.Errorf("%w: expected digest %q: %w", ErrInvalidRequest, c.expected, err)
		}
		return nil
	}
	return fmt.Errorf("%w: checksum not set (use ExpectDigest or Unverified)", ErrInvalidRequest)
}

// ParseDigest parses an expected checksum. A bare hex string is taken as
// SHA-256 (the format of sha256sum output); "algorithm:hex" selects the
// algorithm explicitly. Hex digits may be in either case.
func ParseDigest(s string) (digest.Digest, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("%w: empty digest", ErrInvalidRequest)
	}

	var d digest.Digest
	if strings.Contains(s, ":") {
		parsed, err := digest.Parse(s)
		if err != nil {
			return "", fmt.Errorf("%w: parsing digest %q: %w", ErrInvalidRequest, s, err)
		}
		d = parsed
	} else {
		d = digest.NewDigestFromEncoded(digest.SHA256, s)
	}

	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("%w: digest %q: %w", ErrInvalidRequest, s, err)
	}
	return d, nil
}

// newStreamVerifier returns nil for Unverified checksums.
func newStreamVerifier(c Checksum) *streamVerifier {
	if !c.Verified() {
		return nil
	}
	return &streamVerifier{
		expected: c.expected,
		digester: c.expected.Algorithm().Digester(),
	}
}

// Write feeds p into the running hash. It never fails.
func (v *streamVerifier) Write(p []byte) (int, error) {
	return v.digester.Hash().Write(p)
}

// verify compares the digest of everything written so far with the expected one.
func (v *streamVerifier) verify() error {
	got := v.digester.Digest()
	if got != v.expected {
		return &DigestMismatchError{Expected: v.expected, Got: got}
	}
	return nil
}
