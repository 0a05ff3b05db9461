// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"fmt"
	"os"
	"sync"
)

// Sandbox type constants.
const (
	// SandboxNone indicates no sandbox environment detected.
	SandboxNone SandboxType = ""
	// SandboxFlatpak indicates a Flatpak sandbox environment.
	SandboxFlatpak SandboxType = "flatpak"
	// SandboxSnap indicates a Snap sandbox environment.
	SandboxSnap SandboxType = "snap"

	// flatpakInfoPath exists inside every Flatpak sandbox.
	flatpakInfoPath = "/.flatpak-info"
)

// detectOnce caches the sandbox detection result for the lifetime of the process.
//
// INVARIANT: detectSandboxFrom MUST NOT panic. sync.OnceValue re-panics on
// every call after a panic.
//
//nolint:gochecknoglobals // Process-wide cache.
var detectOnce = sync.OnceValue(func() Sandbox {
	return detectSandboxFrom(os.Getenv, statFile)
})

type (
	// SandboxType identifies the type of application sandbox, if any.
	SandboxType string

	// Sandbox describes the packaging sandbox the process runs in. The sandbox
	// owns the installed files, so updates go through its package manager.
	Sandbox struct {
		Type SandboxType
		// AppID is the snap name or Flatpak application ID.
		AppID string
	}
)

// DetectSandbox returns the sandbox the current process is running in.
// The result is cached after the first call.
//
// Detection methods:
//   - Flatpak: /.flatpak-info exists; FLATPAK_ID names the application
//   - Snap: SNAP_NAME is set
func DetectSandbox() Sandbox {
	return detectOnce()
}

// InSandbox reports whether s is a real sandbox.
func (s Sandbox) InSandbox() bool {
	return s.Type != SandboxNone
}

// RefreshCommand returns the command that updates an application installed
// in s, or "" outside a sandbox. fallbackApp is used when the sandbox did not
// report an application ID.
func (s Sandbox) RefreshCommand(fallbackApp string) string {
	app := s.AppID
	if app == "" {
		app = fallbackApp
	}

	switch s.Type {
	case SandboxNone:
		return ""
	case SandboxFlatpak:
		return fmt.Sprintf("flatpak update %s", app)
	case SandboxSnap:
		return fmt.Sprintf("snap refresh %s", app)
	default:
		return ""
	}
}

// detectSandboxFrom performs sandbox detection using the provided lookup
// functions, so tests can run it without touching process-wide state.
func detectSandboxFrom(lookupEnv func(string) string, statFile func(string) error) Sandbox {
	// Flatpak takes precedence.
	if err := statFile(flatpakInfoPath); err == nil {
		return Sandbox{Type: SandboxFlatpak, AppID: lookupEnv("FLATPAK_ID")}
	}

	if name := lookupEnv("SNAP_NAME"); name != "" {
		return Sandbox{Type: SandboxSnap, AppID: name}
	}

	return Sandbox{}
}

// statFile is the production adapter for the statFile parameter of
// detectSandboxFrom.
func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}
