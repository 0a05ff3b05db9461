// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/gzip"
)

type (
	// gunzipReader tags every read error coming out of the gzip layer so the
	// orchestrator can attribute it to the decompression stage even after it
	// has passed through the tar reader.
	gunzipReader struct {
		zr *gzip.Reader
	}

	// decompressError marks an error as originating in the gzip layer.
	decompressError struct {
		err error
	}

	// entryReader remembers whether a failed copy was caused by reading the
	// archive (format) or writing the staging file (I/O).
	entryReader struct {
		r   io.Reader
		err error
	}
)

func (e *decompressError) Error() string { return e.err.Error() }

func (e *decompressError) Unwrap() error { return e.err }

func (g *gunzipReader) Read(p []byte) (int, error) {
	n, err := g.zr.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = &decompressError{err: err}
	}
	return n, err
}

func (r *entryReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		r.err = err
	}
	return n, err
}

// unpack decompresses r and writes the archive into dir, then drains the rest
// of the gzip stream and of r so the gzip checksum is validated and the
// feeding side sees every byte of the source.
func (e *Extractor) unpack(ctx context.Context, r io.Reader, dir string) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return &decompressError{err: fmt.Errorf("reading gzip header: %w", err)}
	}
	defer func() {
		// Read-only decompressor; Close only releases internal state.
		_ = zr.Close()
	}()

	gz := &gunzipReader{zr: zr}
	if err := e.untar(ctx, gz, dir); err != nil {
		return err
	}

	if _, err := io.Copy(io.Discard, gz); err != nil {
		return err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("draining stream: %w", err)
	}
	return nil
}

// untar materializes the entries of the tar stream r under dir, applying
// Classify to every header.
func (e *Extractor) untar(ctx context.Context, r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return archiveReadErr(fmt.Errorf("reading tar entry: %w", err))
		}

		action, err := Classify(hdr)
		if err != nil {
			return err
		}
		if action == ActionSkip {
			e.logger.Debug("skipping archive entry", "entry", hdr.Name, "type", string(hdr.Typeflag))
			continue
		}
		if e.logEntries {
			e.logger.Debug(hdr.Name)
		}

		target, err := securejoin.SecureJoin(dir, hdr.Name)
		if err != nil {
			return formatErr(fmt.Errorf("resolving entry %q: %w", hdr.Name, err))
		}

		if isDirEntry(hdr) {
			if err := os.MkdirAll(target, dirPerm(hdr)); err != nil {
				return fmt.Errorf("creating directory %s: %w", hdr.Name, err)
			}
			continue
		}

		if err := writeEntry(tr, hdr, target); err != nil {
			return err
		}
	}
}

// writeEntry copies the current tar entry body into target.
func writeEntry(tr *tar.Reader, hdr *tar.Header, target string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm(hdr))
	if err != nil {
		return fmt.Errorf("creating %s: %w", hdr.Name, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", hdr.Name, closeErr)
		}
	}()

	src := &entryReader{r: tr}
	if _, err := io.Copy(f, src); err != nil {
		if src.err != nil {
			return archiveReadErr(fmt.Errorf("reading %s: %w", hdr.Name, err))
		}
		return fmt.Errorf("writing %s: %w", hdr.Name, err)
	}

	if !hdr.ModTime.IsZero() {
		// Best-effort: the installed tree's marker time is refreshed after promotion.
		_ = os.Chtimes(target, hdr.ModTime, hdr.ModTime)
	}
	return nil
}

// archiveReadErr marks a failure to read the archive as a format error unless
// it was caused by the pipeline itself (abort, cancellation, or the gzip layer,
// which is tagged separately).
func archiveReadErr(err error) error {
	var dErr *decompressError
	if errors.Is(err, errAborted) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) || errors.As(err, &dErr) {
		return err
	}
	return formatErr(err)
}

func isDirEntry(hdr *tar.Header) bool {
	if hdr.Typeflag == tar.TypeDir {
		return true
	}
	return hdr.Typeflag == tar.TypeRegA && strings.HasSuffix(hdr.Name, "/") //nolint:staticcheck // See Classify.
}

func filePerm(hdr *tar.Header) os.FileMode {
	perm := hdr.FileInfo().Mode().Perm()
	if perm == 0 {
		return 0o644
	}
	// The owner must be able to rewrite the file on the next install.
	return perm | 0o200
}

func dirPerm(hdr *tar.Header) os.FileMode {
	// Directories stay traversable and writable by the owner regardless of
	// what the archive recorded, otherwise cleanup could not remove them.
	return hdr.FileInfo().Mode().Perm() | 0o700
}
