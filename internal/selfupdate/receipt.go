// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/pelletier/go-toml/v2"
)

// receiptName is the receipt file inside the client directory.
const receiptName = "current.toml"

// ErrNoReceipt is returned by ReadReceipt when no version has been installed yet.
var ErrNoReceipt = errors.New("no installed version recorded")

// Receipt records the version installed by the last successful Apply.
type Receipt struct {
	Version     string        `toml:"version"`
	Digest      digest.Digest `toml:"digest,omitempty"` // Empty for unverified installs
	Path        string        `toml:"path"`
	InstalledAt time.Time     `toml:"installed_at"`
}

// ReadReceipt loads the receipt from dataDir. It returns an error wrapping
// ErrNoReceipt when none exists.
func ReadReceipt(dataDir string) (*Receipt, error) {
	path := filepath.Join(clientDir(dataDir), receiptName)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s", ErrNoReceipt, dataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading receipt: %w", err)
	}

	var r Receipt
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing receipt %s: %w", path, err)
	}
	return &r, nil
}

// writeReceipt replaces the receipt in dataDir. The file is written next to
// its final location and renamed, so readers never see a partial receipt.
func writeReceipt(dataDir string, r *Receipt) (err error) {
	dir := clientDir(dataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating client directory: %w", err)
	}

	data, err := toml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+receiptName+".*")
	if err != nil {
		return fmt.Errorf("creating receipt: %w", err)
	}
	defer func() {
		if err != nil {
			// Best-effort removal of the unrenamed temp file.
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing receipt: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, receiptName)); err != nil {
		return fmt.Errorf("replacing receipt: %w", err)
	}
	return nil
}

func clientDir(dataDir string) string {
	return filepath.Join(dataDir, "client")
}
