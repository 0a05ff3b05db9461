// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
)

const helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestParseDigest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    digest.Digest
		wantErr bool
	}{
		{"bare hex is sha256", helloSHA256, "sha256:" + helloSHA256, false},
		{"uppercase hex", strings.ToUpper(helloSHA256), "sha256:" + helloSHA256, false},
		{"surrounding whitespace", "  " + helloSHA256 + "\n", "sha256:" + helloSHA256, false},
		{"explicit algorithm", "sha256:" + helloSHA256, "sha256:" + helloSHA256, false},
		{"uppercase algorithm", "SHA256:" + helloSHA256, "sha256:" + helloSHA256, false},
		{"sha512", digest.SHA512.FromString("hello").String(), digest.SHA512.FromString("hello"), false},
		{"empty", "", "", true},
		{"short hex", "abc123", "", true},
		{"non-hex", strings.Repeat("z", 64), "", true},
		{"unknown algorithm", "md5:" + strings.Repeat("a", 32), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDigest(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("ParseDigest(%q) error = %v, want ErrInvalidRequest", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDigest(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDigest(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestChecksum_Posture(t *testing.T) {
	t.Parallel()

	if err := (Checksum{}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("zero Checksum must be rejected, got %v", err)
	}

	u := Unverified()
	if u.Verified() {
		t.Error("Unverified().Verified() = true")
	}
	if u.String() != "unverified" {
		t.Errorf("Unverified().String() = %q", u.String())
	}
	if err := u.Validate(); err != nil {
		t.Errorf("Unverified().Validate() = %v", err)
	}

	d := ExpectDigest(digest.Digest("sha256:" + strings.ToUpper(helloSHA256)))
	if !d.Verified() {
		t.Error("ExpectDigest().Verified() = false")
	}
	if d.Digest() != digest.Digest("sha256:"+helloSHA256) {
		t.Errorf("ExpectDigest normalizes to lowercase, got %s", d.Digest())
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestStreamVerifier(t *testing.T) {
	t.Parallel()

	if v := newStreamVerifier(Unverified()); v != nil {
		t.Fatal("Unverified must not create a verifier")
	}

	v := newStreamVerifier(ExpectDigest(digest.Digest("sha256:" + helloSHA256)))
	for _, chunk := range []string{"he", "l", "lo"} {
		if _, err := v.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := v.verify(); err != nil {
		t.Errorf("verify() = %v, want nil", err)
	}

	bad := newStreamVerifier(ExpectDigest(digest.Digest("sha256:" + helloSHA256)))
	if _, err := bad.Write([]byte("goodbye")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	err := bad.verify()
	var mismatch *DigestMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *DigestMismatchError, got %v", err)
	}
	if mismatch.Got != digest.FromString("goodbye") {
		t.Errorf("Got = %s, want digest of %q", mismatch.Got, "goodbye")
	}
	if !strings.Contains(err.Error(), helloSHA256) {
		t.Errorf("error should name the expected digest: %v", err)
	}
}
