// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/stagehand-cli/stagehand/internal/config"
	"github.com/stagehand-cli/stagehand/internal/extract"
	"github.com/stagehand-cli/stagehand/internal/issue"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference.
	App struct {
		Config  config.Provider
		stdout  io.Writer
		stderr  io.Writer
		logger  *log.Logger
		flags   globalFlags
		loaded  *config.Config
		loadErr error
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	globalFlags struct {
		verbose    bool
		configPath string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		logger: log.NewWithOptions(deps.Stderr, log.Options{
			Prefix: "stagehand",
			Level:  log.WarnLevel,
		}),
	}
}

// loadConfig loads the configuration once per process. Later calls return
// the cached result.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	if a.loaded != nil || a.loadErr != nil {
		return a.loaded, a.loadErr
	}
	a.loaded, a.loadErr = a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if a.loadErr == nil {
		a.applyVerbosity(a.loaded.UI.Verbose)
	}
	return a.loaded, a.loadErr
}

// applyVerbosity enables debug logging when --verbose, ui.verbose or the
// extract debug toggle asks for it.
func (a *App) applyVerbosity(fromConfig bool) {
	if a.flags.verbose || fromConfig || os.Getenv(extract.EnvDebugFiles) != "" {
		a.logger.SetLevel(log.DebugLevel)
	}
}

func (a *App) verbose() bool {
	return a.flags.verbose || (a.loaded != nil && a.loaded.UI.Verbose)
}

// reportError prints err for the user. ActionableErrors are shown with their
// suggestions; under --verbose the linked catalog entry is rendered as well.
func (a *App) reportError(err error) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error:")+" "+err.Error())
		return
	}

	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error:")+" "+ae.Format(a.verbose()))
	if !a.verbose() {
		return
	}
	if iss := issue.IssueOf(err); iss != nil {
		rendered, renderErr := iss.Render("auto")
		if renderErr != nil {
			a.logger.Debug("rendering issue", "err", renderErr)
			return
		}
		fmt.Fprint(a.stderr, rendered)
	}
}
