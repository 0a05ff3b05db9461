// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stagehand-cli/stagehand/internal/config"
	"github.com/stagehand-cli/stagehand/internal/issue"
	"github.com/stagehand-cli/stagehand/pkg/types"
)

// useTempConfigDirs points the config and data directories at fresh temp
// dirs. Tests that call it must not run in parallel.
func useTempConfigDirs(t *testing.T) (cfgDir, dataDir string) {
	t.Helper()

	cfgDir, dataDir = t.TempDir(), t.TempDir()
	config.SetConfigDirOverride(cfgDir)
	config.SetDataDirOverride(dataDir)
	t.Cleanup(config.Reset)
	return cfgDir, dataDir
}

func TestShowConfig_Defaults(t *testing.T) {
	_, dataDir := useTempConfigDirs(t)

	var buf bytes.Buffer
	if err := showConfig(context.Background(), &buf, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, token := range []string{"(using defaults)", "stagehand-cli/stagehand", dataDir, "(default)", "retention_days"} {
		if !strings.Contains(out, token) {
			t.Errorf("output %q does not contain %q", out, token)
		}
	}
	if strings.Contains(out, "Installed version") {
		t.Error("no receipt exists, but an installed version was shown")
	}
}

func TestShowConfig_FromFile(t *testing.T) {
	cfgDir, _ := useTempConfigDirs(t)

	content := "update: {\n\trepository: \"acme/tool\"\n\tretries: 5\n}\n"
	path := filepath.Join(cfgDir, "config.cue")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := showConfig(context.Background(), &buf, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, token := range []string{path, "acme/tool", "5"} {
		if !strings.Contains(out, token) {
			t.Errorf("output %q does not contain %q", out, token)
		}
	}
}

func TestShowConfig_InvalidFile(t *testing.T) {
	useTempConfigDirs(t)

	path := filepath.Join(t.TempDir(), "broken.cue")
	if err := os.WriteFile(path, []byte("update: { retries: \"many\" }\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := showConfig(context.Background(), &bytes.Buffer{}, path)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %T, want *issue.ActionableError", err)
	}
	if got := classifyUpdateExitCode(err); got != types.ExitUserError {
		t.Errorf("classifyUpdateExitCode() = %d, want %d", got, types.ExitUserError)
	}
}

func TestInitConfig(t *testing.T) {
	cfgDir, _ := useTempConfigDirs(t)

	var buf bytes.Buffer
	if err := initConfig(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(cfgDir, "config.cue")
	if !strings.Contains(buf.String(), path) {
		t.Errorf("output %q does not name %s", buf.String(), path)
	}

	// The generated file must load cleanly.
	cfg, source, err := config.LoadWithPath(context.Background(), config.LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != path {
		t.Errorf("source = %q, want %q", source, path)
	}
	if cfg.Update.Repository != config.DefaultConfig().Update.Repository {
		t.Errorf("Repository = %q", cfg.Update.Repository)
	}
}

func TestShowConfigPath(t *testing.T) {
	cfgDir, dataDir := useTempConfigDirs(t)

	var buf bytes.Buffer
	if err := showConfigPath(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, token := range []string{cfgDir, filepath.Join(cfgDir, "config.cue"), dataDir} {
		if !strings.Contains(out, token) {
			t.Errorf("output %q does not contain %q", out, token)
		}
	}
}
