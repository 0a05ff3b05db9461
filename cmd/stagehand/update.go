// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/config"
	"github.com/stagehand-cli/stagehand/internal/extract"
	"github.com/stagehand-cli/stagehand/internal/issue"
	"github.com/stagehand-cli/stagehand/internal/selfupdate"
	"github.com/stagehand-cli/stagehand/internal/tui"
	"github.com/stagehand-cli/stagehand/pkg/types"
)

// updateParams bundles the dependencies and flags for the update command,
// enabling the core logic in runUpdate to be tested without a real Cobra
// command or live GitHub API calls.
type updateParams struct {
	stdout    io.Writer
	updater   *selfupdate.Updater
	target    string // target version (empty = latest)
	check     bool   // --check mode: report availability without installing
	yes       bool   // --yes flag: skip confirmation prompt
	noteStyle string // glamour style for release notes
	confirm   func(tui.ConfirmOptions) (bool, error)
}

// newUpdateCommand creates the `stagehand update` command, which installs the
// latest stable release or a specific version from GitHub Releases.
func newUpdateCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [version]",
		Short: "Install the latest stable release or a specific version",
		Long: `Install the latest stable release or a specific version.

The update command streams the release archive from GitHub Releases,
verifies it against the release's checksums.txt while unpacking it, and
installs it into its own version directory under the data directory.
Versions superseded for longer than the retention window are removed.

If stagehand was installed via Homebrew or go install, the command suggests
using the appropriate package manager instead.`,
		Example: `  # Update to latest stable
  stagehand update

  # Check for updates and show the release notes without installing
  stagehand update --check

  # Install a specific version
  stagehand update v1.2.0

  # Skip confirmation prompt
  stagehand update --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checkFlag, _ := cmd.Flags().GetBool("check")
			yesFlag, _ := cmd.Flags().GetBool("yes")

			var target string
			if len(args) > 0 {
				target = args[0]
			}

			updater, err := newUpdater(cmd.Context(), app)
			if err != nil {
				app.reportError(err)
				return &ExitError{Code: classifyUpdateExitCode(err), Err: err}
			}

			p := updateParams{
				stdout:    cmd.OutOrStdout(),
				updater:   updater,
				target:    target,
				check:     checkFlag,
				yes:       yesFlag,
				noteStyle: "auto",
				confirm:   tui.Confirm,
			}

			if err := runUpdate(cmd.Context(), p); err != nil {
				err = describeUpdateError(err)
				app.reportError(err)
				return &ExitError{Code: classifyUpdateExitCode(err), Err: err}
			}

			return nil
		},
	}

	cmd.Flags().Bool("check", false, "Check for an available update without installing")
	cmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	return cmd
}

// newUpdater builds an Updater from the loaded configuration.
func newUpdater(ctx context.Context, app *App) (*selfupdate.Updater, error) {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	dataDir, err := config.ResolveDataDir(cfg)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("resolve data directory").
			WithIssue(issue.DataDirUnavailableId).
			WithSuggestion("Set update.data_dir in your config file").
			Wrap(fmt.Errorf("%w: %w", selfupdate.ErrNoDataDir, err)).
			BuildError()
	}

	owner, repo, err := selfupdate.ParseRepository(cfg.Update.Repository)
	if err != nil {
		return nil, err
	}

	// A token raises the rate limit from 60 to 5000 requests per hour.
	clientOpts := []selfupdate.ClientOption{
		selfupdate.WithRepo(owner, repo),
		selfupdate.WithRetries(cfg.Update.Retries),
		selfupdate.WithUserAgent("stagehand/" + Version),
		selfupdate.WithClientLogger(app.logger),
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		clientOpts = append(clientOpts, selfupdate.WithToken(token))
	}

	return selfupdate.NewUpdater(Version,
		selfupdate.WithGitHubClient(selfupdate.NewGitHubClient(clientOpts...)),
		selfupdate.WithDataDir(dataDir),
		selfupdate.WithAllowUnverified(cfg.Update.AllowUnverified),
		selfupdate.WithRetention(cfg.Update.Retention()),
		selfupdate.WithLogger(app.logger.WithPrefix("update")),
	), nil
}

// runUpdate is the core update logic, separated from Cobra for testability.
//
// Flow:
//  1. Check for an available update via the GitHub API.
//  2. If the install is managed (Homebrew/go install), print guidance and return.
//  3. If already up-to-date, print status and return.
//  4. If --check, print availability and release notes and return.
//  5. Otherwise, confirm with the user (unless --yes), then stream, verify and install.
func runUpdate(ctx context.Context, p updateParams) error {
	check, err := p.updater.Check(ctx, p.target)
	if err != nil {
		return fmt.Errorf("checking for update: %w", err)
	}

	if check.InstallMethod.Managed() {
		fmt.Fprintln(p.stdout, check.Message)
		return nil
	}

	fmt.Fprintf(p.stdout, "Current version: %s\n", CmdStyle.Render(check.CurrentVersion))
	if check.LatestVersion != "" {
		fmt.Fprintf(p.stdout, "Latest version:  %s\n", CmdStyle.Render(check.LatestVersion))
	}

	if !check.UpdateAvailable {
		fmt.Fprintf(p.stdout, "\n%s\n", check.Message)
		return nil
	}

	if p.check {
		fmt.Fprintf(p.stdout, "\nAn update is available: %s → %s\n", check.CurrentVersion, check.LatestVersion)
		printReleaseNotes(p.stdout, check.TargetRelease, p.noteStyle)
		fmt.Fprintln(p.stdout, "Run 'stagehand update' to install.")
		return nil
	}

	if !p.yes {
		confirmed, confirmErr := p.confirm(tui.ConfirmOptions{
			Title:       fmt.Sprintf("Update stagehand from %s to %s?", check.CurrentVersion, check.LatestVersion),
			Affirmative: "Yes",
			Negative:    "No",
			Default:     true,
			Config:      tui.DefaultConfig(),
		})
		if errors.Is(confirmErr, tui.ErrCancelled) {
			fmt.Fprintln(p.stdout, "Update cancelled.")
			return nil
		}
		if confirmErr != nil {
			return fmt.Errorf("confirmation prompt: %w", confirmErr)
		}
		if !confirmed {
			fmt.Fprintln(p.stdout, "Update cancelled.")
			return nil
		}
	}

	fmt.Fprintf(p.stdout, "\nInstalling stagehand %s...\n", check.LatestVersion)

	receipt, err := p.updater.Apply(ctx, check.TargetRelease)
	if err != nil {
		return fmt.Errorf("installing %s: %w", check.LatestVersion, err)
	}

	if receipt.Digest != "" {
		fmt.Fprintf(p.stdout, "Verified %s\n", receipt.Digest)
	} else {
		fmt.Fprintln(p.stdout, WarningStyle.Render("Installed without verification"))
	}
	fmt.Fprintln(p.stdout, SuccessStyle.Render(fmt.Sprintf("Successfully updated to %s", check.LatestVersion)))
	fmt.Fprintf(p.stdout, "Installed at %s\n", receipt.Path)

	return nil
}

// printReleaseNotes renders the release body as Markdown. Rendering failures
// fall back to the raw text.
func printReleaseNotes(w io.Writer, release *selfupdate.Release, style string) {
	if release == nil || strings.TrimSpace(release.Notes) == "" {
		fmt.Fprintln(w)
		return
	}

	rendered, err := glamour.Render(release.Notes, style)
	if err != nil {
		rendered = release.Notes + "\n"
	}
	fmt.Fprintf(w, "\n%s\n", TitleStyle.Render("Release notes"))
	fmt.Fprint(w, rendered)
}

// classifyUpdateExitCode maps an update error to the appropriate process exit code.
// Errors the user can act on use exit code 1; all other failures use exit code 2.
func classifyUpdateExitCode(err error) types.ExitCode {
	switch {
	case errors.Is(err, os.ErrPermission),
		errors.Is(err, selfupdate.ErrReleaseNotFound),
		errors.Is(err, selfupdate.ErrAssetNotFound),
		errors.Is(err, selfupdate.ErrUnverifiedRelease),
		errors.Is(err, selfupdate.ErrInvalidVersion),
		errors.Is(err, selfupdate.ErrInvalidRepository),
		errors.Is(err, selfupdate.ErrNoDataDir),
		errors.Is(err, extract.ErrIntegrity),
		errors.Is(err, extract.ErrFormat),
		errors.Is(err, config.ErrInvalidConfig):
		return types.ExitUserError
	default:
		if iss := issue.IssueOf(err); iss != nil && iss.Id() == issue.ConfigLoadFailedId {
			return types.ExitUserError
		}
		return types.ExitFailure
	}
}

// describeUpdateError attaches remediation guidance tailored to the specific
// error type.
func describeUpdateError(err error) error {
	ctx := issue.NewErrorContext().WithOperation("update stagehand").Wrap(err)

	var (
		rateLimitErr *selfupdate.RateLimitError
		mismatchErr  *extract.DigestMismatchError
	)
	switch {
	case errors.As(err, &rateLimitErr):
		ctx.WithIssue(issue.NetworkFailedId).
			WithSuggestion("Set a GitHub token to raise the rate limit: export GITHUB_TOKEN=ghp_...").
			WithSuggestion("Then retry: stagehand update")
	case errors.As(err, &mismatchErr):
		ctx.WithIssue(issue.IntegrityCheckFailedId).
			WithSuggestion(fmt.Sprintf("Expected %s", mismatchErr.Expected)).
			WithSuggestion(fmt.Sprintf("Got      %s", mismatchErr.Got)).
			WithSuggestion("The download may be corrupted. Please try again.")
	case errors.Is(err, selfupdate.ErrUnverifiedRelease):
		ctx.WithIssue(issue.UnverifiedReleaseId).
			WithSuggestion("Set update.allow_unverified to install releases without checksums")
	case errors.Is(err, selfupdate.ErrReleaseNotFound),
		errors.Is(err, selfupdate.ErrAssetNotFound),
		errors.Is(err, selfupdate.ErrInvalidVersion):
		ctx.WithIssue(issue.ReleaseNotFoundId).
			WithSuggestion("Run 'stagehand update --check' to see the latest release")
	case errors.Is(err, extract.ErrFormat):
		ctx.WithIssue(issue.ArchiveRejectedId)
	case errors.Is(err, os.ErrPermission):
		ctx.WithIssue(issue.PermissionDeniedId).
			WithSuggestion("Check that you own the data directory, or set update.data_dir")
	case errors.Is(err, selfupdate.ErrNoDataDir):
		ctx.WithIssue(issue.DataDirUnavailableId)
	default:
		ctx.WithIssue(issue.NetworkFailedId).
			WithSuggestion("Check your network connection and try again").
			WithSuggestion("If behind a firewall, set GITHUB_TOKEN for authenticated access")
	}

	return ctx.BuildError()
}
