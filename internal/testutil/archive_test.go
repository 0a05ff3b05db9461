// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// listArchive returns the entry names of a gzip-compressed tar stream, with
// the body of regular files keyed by name.
func listArchive(t *testing.T, data []byte) ([]string, map[string]*tar.Header, map[string]string) {
	t.Helper()

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := tar.NewReader(zr)

	var names []string
	headers := map[string]*tar.Header{}
	bodies := map[string]string{}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		names = append(names, hdr.Name)
		headers[hdr.Name] = hdr
		if hdr.Typeflag == tar.TypeReg {
			body, err := io.ReadAll(tr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			bodies[hdr.Name] = string(body)
		}
	}
	return names, headers, bodies
}

func TestTarGz(t *testing.T) {
	t.Parallel()

	data := TarGz(t,
		Dir("pkg"),
		File("pkg/a.txt", "hi"),
		Entry{Name: "pkg/link", Typeflag: tar.TypeSymlink, Linkname: "a.txt"},
	)

	names, headers, bodies := listArchive(t, data)
	want := []string{"pkg/", "pkg/a.txt", "pkg/link"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if bodies["pkg/a.txt"] != "hi" {
		t.Errorf("body = %q, want %q", bodies["pkg/a.txt"], "hi")
	}
	if headers["pkg/"].Mode != 0o755 {
		t.Errorf("dir mode = %o, want 755", headers["pkg/"].Mode)
	}
	if headers["pkg/a.txt"].Mode != 0o644 {
		t.Errorf("file mode = %o, want 644", headers["pkg/a.txt"].Mode)
	}
	if headers["pkg/link"].Linkname != "a.txt" {
		t.Errorf("Linkname = %q", headers["pkg/link"].Linkname)
	}
}

func TestTarGz_GlobalHeader(t *testing.T) {
	t.Parallel()

	data := TarGz(t,
		Entry{Name: "pax_global_header", Typeflag: tar.TypeXGlobalHeader},
		File("pkg/a.txt", "hi"),
	)

	names, headers, bodies := listArchive(t, data)
	if len(names) != 2 || names[0] != "pax_global_header" || names[1] != "pkg/a.txt" {
		t.Fatalf("names = %v", names)
	}
	if headers["pax_global_header"].Typeflag != tar.TypeXGlobalHeader {
		t.Errorf("Typeflag = %q, want global header", headers["pax_global_header"].Typeflag)
	}
	if headers["pax_global_header"].PAXRecords["comment"] != "generated" {
		t.Errorf("PAXRecords = %v", headers["pax_global_header"].PAXRecords)
	}
	if bodies["pkg/a.txt"] != "hi" {
		t.Errorf("body = %q, want %q", bodies["pkg/a.txt"], "hi")
	}
}

func TestTarGz_Reproducible(t *testing.T) {
	t.Parallel()

	a := TarGz(t, File("x", "1"))
	b := TarGz(t, File("x", "1"))
	if !bytes.Equal(a, b) {
		t.Error("identical entries produced different archives")
	}
}

func TestRelease_AddsParents(t *testing.T) {
	t.Parallel()

	data := Release(t, "stagehand",
		Executable("bin/stagehand", "#!/bin/sh\n"),
		File("share/doc/README", "readme"),
		File("share/LICENSE", "mpl"),
	)

	names, headers, _ := listArchive(t, data)
	want := []string{
		"stagehand/",
		"stagehand/bin/",
		"stagehand/bin/stagehand",
		"stagehand/share/",
		"stagehand/share/doc/",
		"stagehand/share/doc/README",
		"stagehand/share/LICENSE",
	}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if headers["stagehand/bin/stagehand"].Mode != 0o755 {
		t.Errorf("executable mode = %o, want 755", headers["stagehand/bin/stagehand"].Mode)
	}
}
