// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DefaultRetention is how long a superseded version is kept after it was last
// installed.
const DefaultRetention = 42 * 24 * time.Hour

// TidyVersions removes entries of clientDir that were last installed before
// cutoff, except keep and the receipt. Each version directory is dated by the
// mtime of its installed tree (refreshed on every install), falling back to
// the directory's own mtime; leftovers of interrupted installs are dated the
// same way. It returns the removed paths. Removal errors are joined and do not
// stop the walk.
func TidyVersions(clientDir, keep string, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(clientDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", clientDir, err)
	}

	var (
		removed []string
		errs    []error
	)
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == keep {
			continue
		}

		path := filepath.Join(clientDir, entry.Name())
		installed, err := installedAt(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !installed.Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", path, err))
			continue
		}
		removed = append(removed, path)
	}

	return removed, errors.Join(errs...)
}

// installedAt returns the newest mtime among the direct children of a version
// directory, or the directory's own mtime when it is empty.
func installedAt(versionDir string) (time.Time, error) {
	info, err := os.Stat(versionDir)
	if err != nil {
		return time.Time{}, err
	}
	newest := info.ModTime()

	children, err := os.ReadDir(versionDir)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading %s: %w", versionDir, err)
	}
	if len(children) > 0 {
		newest = time.Time{}
	}
	for _, child := range children {
		ci, err := child.Info()
		if err != nil {
			return time.Time{}, err
		}
		if ci.ModTime().After(newest) {
			newest = ci.ModTime()
		}
	}
	return newest, nil
}
