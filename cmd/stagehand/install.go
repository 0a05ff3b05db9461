// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/extract"
	"github.com/stagehand-cli/stagehand/internal/issue"
	"github.com/stagehand-cli/stagehand/internal/selfupdate"
	"github.com/stagehand-cli/stagehand/pkg/types"
)

// installParams bundles the inputs of the install command.
type installParams struct {
	stdin      io.Reader
	stdout     io.Writer
	logger     *log.Logger
	source     string // archive path, or "-" for stdin
	output     string
	basename   string
	digest     string
	unverified bool
}

// newInstallCommand creates the `stagehand install` command, which runs the
// verified extraction directly against a local archive or stdin.
func newInstallCommand(app *App) *cobra.Command {
	var p installParams

	cmd := &cobra.Command{
		Use:   "install <archive|->",
		Short: "Verify and install a local release archive",
		Long: `Verify and install a gzip-compressed tar archive.

The archive is hashed while it is unpacked into a staging directory next to
the output directory. <output>/<basename> is replaced only when the digest
matches and every entry was extracted. Symlinks in the archive are skipped;
hard links, devices and FIFOs are rejected.

Exactly one of --digest and --unverified is required.`,
		Example: `  # Install a downloaded release
  stagehand install stagehand_1.2.0_linux_amd64.tar.gz --output ~/.local/share/stagehand/client/1.2.0 \
    --digest sha256:3f2a...

  # Install from stdin without verification
  curl -sL https://example.com/app.tar.gz | stagehand install - --basename app --output ./dist --unverified`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.source = args[0]
			p.stdin = cmd.InOrStdin()
			p.stdout = cmd.OutOrStdout()
			p.logger = app.logger.WithPrefix("install")

			if err := runInstall(cmd.Context(), p); err != nil {
				err = describeInstallError(err, p.source)
				app.reportError(err)
				return &ExitError{Code: classifyInstallExitCode(err), Err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&p.output, "output", "", "directory that receives <basename> (required)")
	cmd.Flags().StringVar(&p.basename, "basename", selfupdate.Basename, "top-level directory inside the archive")
	cmd.Flags().StringVar(&p.digest, "digest", "", "expected digest as hex (sha256) or alg:hex")
	cmd.Flags().BoolVar(&p.unverified, "unverified", false, "install without checking a digest")
	_ = cmd.MarkFlagRequired("output")
	cmd.MarkFlagsMutuallyExclusive("digest", "unverified")
	cmd.MarkFlagsOneRequired("digest", "unverified")

	return cmd
}

// runInstall opens the source and hands it to the extractor.
func runInstall(ctx context.Context, p installParams) error {
	checksum := extract.Unverified()
	if !p.unverified {
		d, err := extract.ParseDigest(p.digest)
		if err != nil {
			return err
		}
		checksum = extract.ExpectDigest(d)
	}

	src := p.stdin
	if p.source != "-" {
		f, err := os.Open(p.source)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer f.Close()
		src = f
	}

	if p.unverified {
		p.logger.Warn("installing without digest verification", "source", p.source)
	}

	err := extract.New(extract.WithLogger(p.logger)).Extract(ctx, extract.Request{
		Source:    src,
		OutputDir: p.output,
		Basename:  p.basename,
		Checksum:  checksum,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(p.stdout, SuccessStyle.Render("✓")+" Installed "+filepath.Join(p.output, p.basename))
	return nil
}

// classifyInstallExitCode returns 1 for problems with the inputs and 2 for
// everything else.
func classifyInstallExitCode(err error) types.ExitCode {
	switch {
	case errors.Is(err, extract.ErrInvalidRequest),
		errors.Is(err, extract.ErrIntegrity),
		errors.Is(err, extract.ErrFormat),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return types.ExitUserError
	default:
		return types.ExitFailure
	}
}

// describeInstallError attaches catalog guidance to an install failure.
func describeInstallError(err error, source string) error {
	ctx := issue.NewErrorContext().
		WithOperation("install archive").
		WithResource(source).
		Wrap(err)

	var (
		mismatchErr *extract.DigestMismatchError
		stageErr    *extract.StageError
	)
	switch {
	case errors.As(err, &mismatchErr):
		ctx.WithIssue(issue.IntegrityCheckFailedId).
			WithSuggestion(fmt.Sprintf("Expected %s", mismatchErr.Expected)).
			WithSuggestion(fmt.Sprintf("Got      %s", mismatchErr.Got))
	case errors.Is(err, extract.ErrFormat):
		ctx.WithIssue(issue.ArchiveRejectedId)
	case errors.Is(err, extract.ErrInvalidRequest):
		ctx.WithSuggestion("Pass --digest sha256:<hex> or a bare sha256 hex digest")
	case errors.Is(err, fs.ErrPermission):
		ctx.WithIssue(issue.PermissionDeniedId)
	case errors.As(err, &stageErr) && stageErr.Stage == extract.StageInstall:
		ctx.WithSuggestion("Check that the output directory is writable and on a local filesystem")
	}

	return ctx.BuildError()
}
