// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stagehand-cli/stagehand/internal/issue"
	"github.com/stagehand-cli/stagehand/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Update.Repository != DefaultRepository {
		t.Errorf("Repository = %q, want %q", cfg.Update.Repository, DefaultRepository)
	}
	if cfg.Update.Retries != DefaultRetries {
		t.Errorf("Retries = %d, want %d", cfg.Update.Retries, DefaultRetries)
	}
	if got := cfg.Update.Retention(); got != 42*24*time.Hour {
		t.Errorf("Retention() = %v, want 42 days", got)
	}
	if ok, errs := cfg.IsValid(); !ok {
		t.Errorf("default config invalid: %v", errs)
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bare repository", func(c *Config) { c.Update.Repository = "stagehand" }},
		{"nested repository", func(c *Config) { c.Update.Repository = "a/b/c" }},
		{"whitespace data dir", func(c *Config) { c.Update.DataDir = "  " }},
		{"negative retries", func(c *Config) { c.Update.Retries = -1 }},
		{"too many retries", func(c *Config) { c.Update.Retries = 11 }},
		{"zero retention", func(c *Config) { c.Update.RetentionDays = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			ok, errs := cfg.IsValid()
			if ok {
				t.Fatal("expected invalid config")
			}
			if len(errs) != 1 || !errors.Is(errs[0], ErrInvalidConfig) || !errors.Is(errs[0], ErrInvalidUpdateConfig) {
				t.Errorf("errors = %v, want InvalidConfigError wrapping InvalidUpdateConfigError", errs)
			}
		})
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
update: {
	repository: "acme/stagehand-fork"
	retries: 5
}
ui: verbose: true
`)

	cfg, resolved, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: filepath.Dir(path)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Update.Repository != "acme/stagehand-fork" {
		t.Errorf("Repository = %q", cfg.Update.Repository)
	}
	if cfg.Update.Retries != 5 {
		t.Errorf("Retries = %d, want 5", cfg.Update.Retries)
	}
	if !cfg.UI.Verbose {
		t.Error("Verbose = false, want true")
	}
	// Unset fields keep their defaults.
	if cfg.Update.RetentionDays != DefaultRetentionDays {
		t.Errorf("RetentionDays = %d, want %d", cfg.Update.RetentionDays, DefaultRetentionDays)
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"retries out of range", "update: retries: 50\n", "update.retries"},
		{"unknown field", "update: mirror: \"x\"\n", "mirror"},
		{"bad repository", "update: repository: \"no-slash\"\n", "update.repository"},
		{"wrong type", "ui: verbose: \"yes\"\n", "ui.verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tt.content)
			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error %T is not an ActionableError", err)
			}
			if ae.Resource != path {
				t.Errorf("Resource = %q, want %q", ae.Resource, path)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_SyntaxError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "update: {\n")
	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("error = %v, want one naming %s", err, path)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "absent.cue")
	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("error = %v, want config file not found", err)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "// "+strings.Repeat("x", maxConfigFileSize)+"\n")
	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("error = %v, want size limit error", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STAGEHAND_UPDATE_RETRIES", "7")
	t.Setenv("STAGEHAND_UPDATE_ALLOW_UNVERIFIED", "true")

	path := writeConfig(t, "update: retries: 2\n")
	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Update.Retries != 7 {
		t.Errorf("Retries = %d, want 7 from the environment", cfg.Update.Retries)
	}
	if !cfg.Update.AllowUnverified {
		t.Error("AllowUnverified = false, want true from the environment")
	}
}

func TestLoad_EnvOverrideValidated(t *testing.T) {
	t.Setenv("STAGEHAND_UPDATE_RETENTION_DAYS", "0")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.Update.DataDir = "/opt/stagehand"
	want.Update.RetentionDays = 7
	want.UI.Verbose = true

	path := writeConfig(t, GenerateCUE(want))
	got, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	path, err := CreateDefaultConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(dir, "config.cue") {
		t.Errorf("path = %q", path)
	}

	// An existing file is left alone.
	if err := os.WriteFile(path, []byte("ui: verbose: true\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := CreateDefaultConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "ui: verbose: true\n" {
		t.Errorf("existing config overwritten: %q", data)
	}
}

func TestDirOverrides(t *testing.T) {
	SetConfigDirOverride("/tmp/cfg")
	SetDataDirOverride("/tmp/data")
	t.Cleanup(Reset)

	if got, err := ConfigDir(); err != nil || got != "/tmp/cfg" {
		t.Errorf("ConfigDir() = %q, %v", got, err)
	}
	if got, err := DataDir(); err != nil || got != "/tmp/data" {
		t.Errorf("DataDir() = %q, %v", got, err)
	}

	cfg := DefaultConfig()
	if got, _ := ResolveDataDir(cfg); got != "/tmp/data" {
		t.Errorf("ResolveDataDir(default) = %q, want /tmp/data", got)
	}
	cfg.Update.DataDir = "/srv/stagehand"
	if got, _ := ResolveDataDir(cfg); got != "/srv/stagehand" {
		t.Errorf("ResolveDataDir(explicit) = %q, want /srv/stagehand", got)
	}
}

func TestDataDir_XDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout only applies to Linux")
	}
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")

	data, err := DataDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data != "/xdg/data/stagehand" {
		t.Errorf("DataDir() = %q", data)
	}
	if cfg != "/xdg/config/stagehand" {
		t.Errorf("ConfigDir() = %q", cfg)
	}
}

func TestDirs_HomeFallback(t *testing.T) {
	home := t.TempDir()
	testutil.SetHomeDir(t, home)

	data, err := DataDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wantData, wantCfg string
	switch runtime.GOOS {
	case "windows":
		wantData = filepath.Join(home, "AppData", "Local", AppName)
		wantCfg = filepath.Join(home, "AppData", "Roaming", AppName)
	case "darwin":
		wantData = filepath.Join(home, "Library", "Application Support", AppName)
		wantCfg = wantData
	default:
		wantData = filepath.Join(home, ".local", "share", AppName)
		wantCfg = filepath.Join(home, ".config", AppName)
	}

	if data != wantData {
		t.Errorf("DataDir() = %q, want %q", data, wantData)
	}
	if cfg != wantCfg {
		t.Errorf("ConfigDir() = %q, want %q", cfg, wantCfg)
	}
}
