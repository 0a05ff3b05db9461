// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// errExchangeUnsupported is returned by exchange when the platform or the
// filesystem cannot swap two paths atomically.
var errExchangeUnsupported = errors.New("atomic exchange not supported")

//nolint:gochecknoglobals // Test seam for the platform exchange.
var exchangeFn = exchange

// promote moves the directory src to dst. scratch is a directory on the same
// volume as src that is removed by the caller; replaced trees end up there.
//
// A missing dst is created with a plain rename. An existing dst is swapped in
// one step where the platform allows it (see exchange), otherwise moved aside
// first and restored if the second rename fails. When src and dst are on
// different volumes the tree is first copied next to dst, so the final step is
// still a same-volume rename.
func promote(src, dst, scratch string) error {
	_, err := os.Lstat(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		err = os.Rename(src, dst)
	case err != nil:
		return fmt.Errorf("inspecting %s: %w", dst, err)
	default:
		err = replace(src, dst, scratch)
	}

	if isCrossDevice(err) {
		return promoteAcrossVolumes(src, dst)
	}
	if err != nil {
		return fmt.Errorf("moving %s into place: %w", filepath.Base(dst), err)
	}
	return nil
}

// replace swaps an existing dst for src.
func replace(src, dst, scratch string) error {
	err := exchangeFn(src, dst)
	if !errors.Is(err, errExchangeUnsupported) {
		// After a successful exchange the previous tree sits at src and is
		// removed together with the staging directory.
		return err
	}

	aside, err := os.MkdirTemp(scratch, ".replaced-*")
	if err != nil {
		return err
	}
	previous := filepath.Join(aside, filepath.Base(dst))
	if err := os.Rename(dst, previous); err != nil {
		return err
	}

	if err := os.Rename(src, dst); err != nil {
		if restoreErr := os.Rename(previous, dst); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("restoring previous %s: %w", dst, restoreErr))
		}
		return err
	}
	return nil
}

// promoteAcrossVolumes copies src into a temporary sibling of dst and promotes
// that copy, which is on the destination volume.
func promoteAcrossVolumes(src, dst string) (err error) {
	tmp, err := os.MkdirTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".copy-*")
	if err != nil {
		return fmt.Errorf("creating copy directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmp); rmErr != nil && err == nil {
			err = fmt.Errorf("removing copy directory: %w", rmErr)
		}
	}()

	copied := filepath.Join(tmp, filepath.Base(dst))
	if err := copyTree(src, copied); err != nil {
		return fmt.Errorf("copying across volumes: %w", err)
	}
	return promote(copied, dst, tmp)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// copyTree recreates the directories and regular files below src at dst.
// Staged trees never contain anything else.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info)
		}
		return nil
	})
}

func copyFile(src, dst string, info fs.FileInfo) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		// Read-only file handle.
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
