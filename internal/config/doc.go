// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/stagehand/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/stagehand/config.cue on macOS, %APPDATA%\stagehand\config.cue
// on Windows). Values may be overridden with STAGEHAND_* environment variables, e.g.
// STAGEHAND_UPDATE_RETRIES=5.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
