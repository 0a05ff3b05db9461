// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"

	"github.com/stagehand-cli/stagehand/pkg/platform"
)

// xdgVars are cleared by SetHomeDir so directory lookups fall back to the
// home directory.
//
//nolint:gochecknoglobals // Fixed list.
var xdgVars = []string{"XDG_CONFIG_HOME", "XDG_DATA_HOME", "APPDATA", "LOCALAPPDATA"}

// SetHomeDir points the platform's home variable (USERPROFILE on Windows,
// HOME elsewhere) at dir and clears the XDG and AppData overrides. The
// original values are restored when the test ends.
//
// Tests calling SetHomeDir cannot use t.Parallel.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    home := t.TempDir()
//	    testutil.SetHomeDir(t, home)
//
//	    // Code under test now resolves ~ to home...
//	}
func SetHomeDir(t testing.TB, dir string) {
	t.Helper()

	for _, key := range xdgVars {
		t.Setenv(key, "")
	}

	switch runtime.GOOS {
	case platform.Windows:
		t.Setenv("USERPROFILE", dir)
	default:
		t.Setenv("HOME", dir)
	}
}
