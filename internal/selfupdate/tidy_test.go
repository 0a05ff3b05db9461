// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// makeVersion creates clientDir/<name>/stagehand dated at mtime.
func makeVersion(t *testing.T, clientDir, name string, mtime time.Time) string {
	t.Helper()

	tree := filepath.Join(clientDir, name, Basename)
	if err := os.MkdirAll(tree, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(tree, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return filepath.Dir(tree)
}

func TestTidyVersions(t *testing.T) {
	t.Parallel()

	clientDir := t.TempDir()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cutoff := now.Add(-DefaultRetention)

	current := makeVersion(t, clientDir, "1.0.0", now.Add(-100*24*time.Hour))
	old := makeVersion(t, clientDir, "0.9.0", now.Add(-50*24*time.Hour))
	fresh := makeVersion(t, clientDir, "0.9.5", now.Add(-time.Hour))
	leftover := makeVersion(t, clientDir, "1.1.0.partial.123", now.Add(-60*24*time.Hour))

	receipt := filepath.Join(clientDir, receiptName)
	if err := os.WriteFile(receipt, []byte("version = '1.0.0'\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(receipt, cutoff.Add(-time.Hour), cutoff.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	removed, err := TidyVersions(clientDir, "1.0.0", cutoff)
	if err != nil {
		t.Fatalf("TidyVersions: %v", err)
	}

	slices.Sort(removed)
	want := []string{old, leftover}
	slices.Sort(want)
	if !slices.Equal(removed, want) {
		t.Errorf("removed = %v, want %v", removed, want)
	}

	for _, kept := range []string{current, fresh, receipt} {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("%s should be kept: %v", kept, err)
		}
	}
}

func TestTidyVersions_MissingClientDir(t *testing.T) {
	t.Parallel()

	removed, err := TidyVersions(filepath.Join(t.TempDir(), "missing"), "1.0.0", time.Now())
	if err != nil || len(removed) != 0 {
		t.Errorf("TidyVersions on missing dir = %v, %v; want nothing", removed, err)
	}
}

func TestUpdater_Tidy(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	client := filepath.Join(dataDir, "client")

	makeVersion(t, client, "2.0.0", now.Add(-90*24*time.Hour))
	old := makeVersion(t, client, "1.0.0", now.Add(-10*24*time.Hour))
	if err := writeReceipt(dataDir, &Receipt{Version: "2.0.0"}); err != nil {
		t.Fatal(err)
	}

	updater := NewUpdater("v2.0.0",
		WithDataDir(dataDir),
		WithRetention(7*24*time.Hour),
		WithClock(func() time.Time { return now }),
	)
	if err := updater.Tidy(); err != nil {
		t.Fatalf("Tidy: %v", err)
	}

	if _, err := os.Stat(old); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("1.0.0 should be removed with a 7 day retention, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(client, "2.0.0")); err != nil {
		t.Errorf("current version must survive regardless of age: %v", err)
	}
}

func TestUpdater_Tidy_NoReceipt(t *testing.T) {
	t.Parallel()

	err := NewUpdater("v1.0.0", WithDataDir(t.TempDir())).Tidy()
	if !errors.Is(err, ErrNoReceipt) {
		t.Errorf("expected ErrNoReceipt, got %v", err)
	}
}
