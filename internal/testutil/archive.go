// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"bytes"
	"path"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Entry describes one tar entry written by TarGz. A zero Mode becomes 0o755
// for directories and 0o644 for everything else.
type Entry struct {
	Name     string
	Typeflag byte
	Body     string
	Mode     int64
	Linkname string
}

// archiveModTime is stamped on every entry so archives are reproducible.
//
//nolint:gochecknoglobals // Fixed timestamp.
var archiveModTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// Dir returns a directory entry. A trailing slash is added if missing.
func Dir(name string) Entry {
	if name[len(name)-1] != '/' {
		name += "/"
	}
	return Entry{Name: name, Typeflag: tar.TypeDir}
}

// File returns a regular file entry.
func File(name, body string) Entry {
	return Entry{Name: name, Typeflag: tar.TypeReg, Body: body}
}

// Executable returns a regular file entry with mode 0o755.
func Executable(name, body string) Entry {
	return Entry{Name: name, Typeflag: tar.TypeReg, Body: body, Mode: 0o755}
}

// TarGz writes entries, in order, into an in-memory gzip-compressed tar
// stream. The test fails immediately if writing fails.
func TarGz(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	for _, e := range entries {
		if e.Typeflag == tar.TypeXGlobalHeader {
			// The writer rejects global headers carrying anything but PAXRecords.
			hdr := &tar.Header{
				Name:       e.Name,
				Typeflag:   tar.TypeXGlobalHeader,
				PAXRecords: map[string]string{"comment": "generated"},
			}
			if err := tw.WriteHeader(hdr); err != nil {
				t.Fatalf("writing tar header %s: %v", e.Name, err)
			}
			continue
		}

		hdr := &tar.Header{
			Name:     e.Name,
			Typeflag: e.Typeflag,
			Mode:     e.Mode,
			Linkname: e.Linkname,
			ModTime:  archiveModTime,
		}
		if hdr.Mode == 0 {
			hdr.Mode = 0o644
			if e.Typeflag == tar.TypeDir {
				hdr.Mode = 0o755
			}
		}
		if e.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.Body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header %s: %v", e.Name, err)
		}
		if e.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("writing tar body %s: %v", e.Name, err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}
	return buf.Bytes()
}

// Release builds the archive layout stagehand publishes: every entry is
// nested below basename/, and parent directories are written before the
// first entry that needs them.
func Release(t testing.TB, basename string, files ...Entry) []byte {
	t.Helper()

	seen := map[string]bool{}
	entries := []Entry{Dir(basename)}
	seen[basename] = true

	for _, f := range files {
		f.Name = path.Join(basename, f.Name)
		var parents []string
		for dir := path.Dir(f.Name); !seen[dir]; dir = path.Dir(dir) {
			seen[dir] = true
			parents = append(parents, dir)
		}
		for i := len(parents) - 1; i >= 0; i-- {
			entries = append(entries, Dir(parents[i]))
		}
		entries = append(entries, f)
	}

	return TarGz(t, entries...)
}
