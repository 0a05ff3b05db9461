// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// EnvDebugFiles, when set to any non-empty value, logs the name of every
// archive entry as it is extracted.
const EnvDebugFiles = "STAGEHAND_DEBUG_UPDATE_FILES"

var (
	//nolint:gochecknoglobals // Test seam for the default logger's output.
	defaultLogOutput io.Writer = os.Stderr

	//nolint:gochecknoglobals // Test seam for os.Chtimes().
	chtimes = os.Chtimes
)

type (
	// Request describes one extraction. It is not modified by Extract.
	Request struct {
		// Source is the gzip-compressed tar stream. It is read exactly once.
		Source io.Reader
		// OutputDir receives the installed tree. It is created if missing.
		OutputDir string
		// Basename is the top-level directory inside the archive, installed as
		// OutputDir/Basename.
		Basename string
		// Checksum states how the stream is verified. It must be set explicitly.
		Checksum Checksum
	}

	// Extractor installs archives. It holds no per-extraction state, so a single
	// Extractor may be shared between goroutines.
	Extractor struct {
		logger     *log.Logger
		logEntries bool
		now        func() time.Time
	}

	// Option configures an Extractor during construction.
	Option func(*Extractor)

	// contextReader stops reading once ctx is done.
	contextReader struct {
		ctx context.Context
		r   io.Reader
	}
)

// WithLogger sets the logger used for progress and cleanup warnings.
func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// WithEntryLogging overrides the EnvDebugFiles toggle.
func WithEntryLogging(enabled bool) Option {
	return func(e *Extractor) {
		e.logEntries = enabled
	}
}

// WithClock sets the time source for the installed-marker timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// New creates an Extractor. Without WithLogger, warnings go to stderr, and
// so do debug messages while entry logging is enabled.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logEntries: os.Getenv(EnvDebugFiles) != "",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		level := log.WarnLevel
		if e.logEntries {
			level = log.DebugLevel
		}
		e.logger = log.NewWithOptions(defaultLogOutput, log.Options{
			Prefix: "extract",
			Level:  level,
		})
	}
	return e
}

// Extract is a shorthand for New(opts...).Extract(ctx, req).
func Extract(ctx context.Context, req Request, opts ...Option) error {
	return New(opts...).Extract(ctx, req)
}

// Validate checks that the request can be attempted.
func (r Request) Validate() error {
	if r.Source == nil {
		return fmt.Errorf("%w: source stream is nil", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.OutputDir) == "" {
		return fmt.Errorf("%w: output directory is empty", ErrInvalidRequest)
	}
	// Staging is created next to OutputDir, which a filesystem root has no room for.
	if abs, err := filepath.Abs(r.OutputDir); err == nil && filepath.Dir(abs) == abs {
		return fmt.Errorf("%w: output directory %q is a filesystem root", ErrInvalidRequest, r.OutputDir)
	}
	if r.Basename == "" || r.Basename == "." || r.Basename == ".." ||
		strings.ContainsAny(r.Basename, `/\`) {
		return fmt.Errorf("%w: basename %q must be a single path element", ErrInvalidRequest, r.Basename)
	}
	return r.Checksum.Validate()
}

// Extract verifies and unpacks req.Source and installs req.Basename from the
// archive as req.OutputDir/req.Basename.
//
// The source is hashed and unpacked concurrently; the first failure on either
// side aborts the other. Nothing is written to OutputDir unless both the digest
// check and the extraction succeed, and an existing OutputDir/Basename is
// replaced by a single rename. The staging directory is removed before
// Extract returns, whatever the outcome.
//
// Pipeline failures are returned as *StageError; invalid requests wrap
// ErrInvalidRequest.
func (e *Extractor) Extract(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	outputDir, err := filepath.Abs(req.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: resolving output directory: %w", ErrInvalidRequest, err)
	}

	staging, err := createStaging(outputDir)
	if err != nil {
		return stageErr(StageExtract, err)
	}
	defer e.removeStaging(staging)

	e.logger.Debug("extracting", "staging", staging, "checksum", req.Checksum)

	if err := e.stream(ctx, req, staging); err != nil {
		return err
	}

	return e.install(staging, outputDir, req.Basename)
}

// stream forks the source into the verifier and the extractor and waits for
// both. It returns the first failure; the other side is aborted through the
// pipe and exits without an error of its own.
func (e *Extractor) stream(ctx context.Context, req Request, staging string) error {
	g, gctx := errgroup.WithContext(ctx)
	pr, pw := io.Pipe()
	verifier := newStreamVerifier(req.Checksum)

	g.Go(func() error {
		var dst io.Writer = pw
		if verifier != nil {
			dst = io.MultiWriter(verifier, pw)
		}

		_, err := io.Copy(dst, &contextReader{ctx: gctx, r: req.Source})
		if errors.Is(err, errAborted) {
			return nil
		}
		if err != nil {
			pw.CloseWithError(errAborted)
			return stageErr(StageStream, err)
		}

		if verifier != nil {
			if err := verifier.verify(); err != nil {
				pw.CloseWithError(errAborted)
				return stageErr(StageVerify, err)
			}
			e.logger.Debug("digest verified", "digest", req.Checksum.Digest())
		}
		return pw.Close()
	})

	g.Go(func() error {
		err := e.unpack(gctx, pr, staging)
		if err == nil {
			return pr.Close()
		}
		pr.CloseWithError(errAborted)

		var dErr *decompressError
		switch {
		case errors.Is(err, errAborted):
			return nil
		case errors.As(err, &dErr):
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stageErr(StageDecompress, err)
			}
			return stageErr(StageDecompress, formatErr(err))
		}
		return stageErr(StageExtract, err)
	})

	return g.Wait()
}

// install promotes staging/basename to outputDir/basename and refreshes its
// modification time so freshness checks see the install time. The refresh is
// a hint only: once promote succeeds the new tree is in place, so a failure to
// touch it is logged and not returned.
func (e *Extractor) install(staging, outputDir, basename string) error {
	src := filepath.Join(staging, basename)
	info, err := os.Lstat(src)
	if err != nil || !info.IsDir() {
		return stageErr(StageExtract, formatErr(fmt.Errorf("archive has no top-level directory %q", basename)))
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return stageErr(StageInstall, fmt.Errorf("creating output directory: %w", err))
	}

	dst := filepath.Join(outputDir, basename)
	e.logger.Debug("installing", "from", src, "to", dst)
	if err := promote(src, dst, staging); err != nil {
		return stageErr(StageInstall, err)
	}

	now := e.now()
	if err := chtimes(dst, now, now); err != nil {
		e.logger.Warn("failed to refresh install time", "path", dst, "err", err)
	}

	e.logger.Debug("installed", "path", dst)
	return nil
}

// createStaging makes a fresh staging directory next to outputDir so the final
// rename stays on one volume.
func createStaging(outputDir string) (string, error) {
	parent := filepath.Dir(outputDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", parent, err)
	}

	staging, err := os.MkdirTemp(parent, filepath.Base(outputDir)+".partial.*")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return staging, nil
}

// removeStaging deletes the staging directory. Failures are only logged: the
// extraction result has already been decided.
func (e *Extractor) removeStaging(staging string) {
	if err := os.RemoveAll(staging); err != nil {
		e.logger.Warn("failed to remove staging directory", "path", staging, "err", err)
	}
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
