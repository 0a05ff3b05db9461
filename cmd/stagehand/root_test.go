// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/fang"

	"github.com/stagehand-cli/stagehand/internal/config"
	"github.com/stagehand-cli/stagehand/pkg/types"
)

func TestGetVersionString(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = origVersion, origCommit, origDate })

	Version = "dev"
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("getVersionString() = %q", got)
	}

	Version, Commit, BuildDate = "v1.2.0", "abc1234", "2026-01-01"
	got := getVersionString()
	for _, token := range []string{"v1.2.0", "abc1234", "2026-01-01"} {
		if !strings.Contains(got, token) {
			t.Errorf("getVersionString() = %q, missing %q", got, token)
		}
	}
}

func TestErrorHandler_SkipsExitError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	errorHandler(&buf, fang.Styles{}, &ExitError{Code: types.ExitUserError, Err: errors.New("already reported")})
	if buf.Len() != 0 {
		t.Errorf("ExitError was printed again: %q", buf.String())
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := &ExitError{Code: types.ExitFailure, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ExitError does not unwrap to its cause")
	}
	if err.Error() != "boom" {
		t.Errorf("Error() = %q, want %q", err.Error(), "boom")
	}
}

func TestRootCommand_ConfigPath(t *testing.T) {
	cfgDir, _ := useTempConfigDirs(t)

	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{Stdout: &stdout, Stderr: &stderr})
	root := NewRootCommand(app)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"config", "path"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), cfgDir) {
		t.Errorf("stdout %q does not contain %q", stdout.String(), cfgDir)
	}
}

func TestRootCommand_UpdateWithMissingConfig(t *testing.T) {
	useTempConfigDirs(t)

	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{Stdout: &stdout, Stderr: &stderr})
	root := NewRootCommand(app)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"--config", "/nonexistent/config.cue", "update", "--check"})

	err := root.Execute()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if exitErr.Code != types.ExitUserError {
		t.Errorf("Code = %d, want %d", exitErr.Code, types.ExitUserError)
	}
	if !strings.Contains(stderr.String(), "config file not found") {
		t.Errorf("stderr %q does not explain the failure", stderr.String())
	}
}

func TestRootCommand_InstallRequiresDigestOrUnverified(t *testing.T) {
	t.Parallel()

	app := NewApp(Dependencies{Config: config.NewProvider(), Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})
	root := NewRootCommand(app)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"install", "archive.tar.gz", "--output", t.TempDir()})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error when neither --digest nor --unverified is given")
	}
}
