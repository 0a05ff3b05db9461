// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"archive/tar"
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		typeflag byte
		want     Action
		wantErr  bool
	}{
		{"regular file", tar.TypeReg, ActionExtract, false},
		{"directory", tar.TypeDir, ActionExtract, false},
		{"symlink", tar.TypeSymlink, ActionSkip, false},
		{"pax global header", tar.TypeXGlobalHeader, ActionSkip, false},
		{"hardlink", tar.TypeLink, ActionSkip, true},
		{"char device", tar.TypeChar, ActionSkip, true},
		{"block device", tar.TypeBlock, ActionSkip, true},
		{"fifo", tar.TypeFifo, ActionSkip, true},
		{"unknown", 'Z', ActionSkip, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Classify(&tar.Header{Name: "pkg/entry", Typeflag: tt.typeflag})
			if tt.wantErr {
				var typeErr *EntryTypeError
				if !errors.As(err, &typeErr) {
					t.Fatalf("expected *EntryTypeError, got %v", err)
				}
				if !errors.Is(err, ErrFormat) {
					t.Errorf("EntryTypeError must wrap ErrFormat")
				}
				if typeErr.Typeflag != tt.typeflag {
					t.Errorf("Typeflag = %q, want %q", typeErr.Typeflag, tt.typeflag)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}
