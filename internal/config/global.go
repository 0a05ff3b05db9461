// SPDX-License-Identifier: MPL-2.0

package config

var (
	// configDirOverride allows tests to override the config directory.
	// os.UserHomeDir() doesn't reliably respect HOME on all platforms
	// (e.g., macOS in CI).
	//
	//nolint:gochecknoglobals // Test seam.
	configDirOverride string

	// dataDirOverride allows tests to override the data directory.
	//
	//nolint:gochecknoglobals // Test seam.
	dataDirOverride string
)

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
	dataDirOverride = ""
}

// SetConfigDirOverride sets a custom config directory path.
// This is primarily intended for testing.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// SetDataDirOverride sets a custom data directory path.
// This is primarily intended for testing.
func SetDataDirOverride(dir string) {
	dataDirOverride = dir
}
