// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities: OS name
// constants for runtime.GOOS comparisons and detection of the Flatpak or Snap
// sandbox a packaged binary runs in.
package platform
