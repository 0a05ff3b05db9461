// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fluxcd/pkg/lockedfile"
	"golang.org/x/mod/semver"

	"github.com/stagehand-cli/stagehand/internal/extract"
)

const (
	// Basename is the top-level directory of every release archive and the
	// name of the installed tree inside a version directory.
	Basename = "stagehand"

	// checksumsName is the release asset listing the archive digests.
	checksumsName = "checksums.txt"

	// lockName serializes Apply runs that share a data directory.
	lockName = "update.lock"
)

var (
	// ErrInvalidVersion indicates the provided version string is not valid semver.
	ErrInvalidVersion = errors.New("invalid semantic version")

	// ErrUnverifiedRelease indicates the release publishes no checksums and the
	// updater was not allowed to install without them.
	ErrUnverifiedRelease = errors.New("release has no checksums")

	// ErrNoDataDir is returned by Apply when no data directory was configured.
	ErrNoDataDir = errors.New("data directory not set")

	//nolint:gochecknoglobals // Test seam for os.Executable().
	osExecutable = os.Executable

	//nolint:gochecknoglobals // Test seam for filepath.EvalSymlinks().
	evalSymlinks = filepath.EvalSymlinks
)

type (
	// UpdateCheck holds the result of a version comparison between the currently
	// running binary and the latest (or target) GitHub release. The InstallMethod
	// field determines whether the Updater can apply the update directly or must
	// defer to an external package manager.
	UpdateCheck struct {
		CurrentVersion  string        // Currently running version
		LatestVersion   string        // Latest stable release version
		TargetRelease   *Release      // Full release info (nil if up-to-date, managed, or pre-release ahead)
		InstallMethod   InstallMethod // How stagehand was installed
		UpdateAvailable bool          // True if update available and applicable
		Message         string        // Human-readable status message
	}

	// Updater composes the GitHub client, install method detection and the
	// streaming extractor into an end-to-end update flow. It is the primary
	// facade for the selfupdate package.
	Updater struct {
		client          *GitHubClient
		currentVersion  string
		dataDir         string
		allowUnverified bool
		retention       time.Duration
		logger          *log.Logger
		now             func() time.Time
	}

	// UpdaterOption configures an Updater during construction.
	UpdaterOption func(*Updater)
)

// WithGitHubClient overrides the default GitHubClient used by the Updater.
func WithGitHubClient(c *GitHubClient) UpdaterOption {
	return func(u *Updater) {
		u.client = c
	}
}

// WithDataDir sets the directory versions are installed into. Apply fails
// without one.
func WithDataDir(dir string) UpdaterOption {
	return func(u *Updater) {
		u.dataDir = dir
	}
}

// WithAllowUnverified lets Apply install releases that publish no
// checksums.txt. A checksums file that lacks the archive is still an error.
func WithAllowUnverified(allow bool) UpdaterOption {
	return func(u *Updater) {
		u.allowUnverified = allow
	}
}

// WithRetention sets how long superseded versions are kept.
func WithRetention(d time.Duration) UpdaterOption {
	return func(u *Updater) {
		u.retention = d
	}
}

// WithLogger sets the logger for the update flow and the extractor.
func WithLogger(l *log.Logger) UpdaterOption {
	return func(u *Updater) {
		u.logger = l
	}
}

// WithClock sets the time source for receipts and retention.
func WithClock(now func() time.Time) UpdaterOption {
	return func(u *Updater) {
		u.now = now
	}
}

// NewUpdater creates an Updater for the given currentVersion. If no
// WithGitHubClient option is provided, a default GitHubClient is created.
func NewUpdater(currentVersion string, opts ...UpdaterOption) *Updater {
	u := &Updater{
		currentVersion: currentVersion,
		retention:      DefaultRetention,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.logger == nil {
		u.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "update",
			Level:  log.WarnLevel,
		})
	}
	if u.client == nil {
		u.client = NewGitHubClient(WithClientLogger(u.logger))
	}
	return u
}

// Check determines whether an update is available by comparing the current
// version against the latest stable release (or a specific targetVersion).
//
// For managed installs (Homebrew, go install), Check returns immediately with
// guidance to use the appropriate package manager and makes no GitHub API call.
// For unmanaged installs, it fetches release metadata from the GitHub API and
// performs a semver comparison.
func (u *Updater) Check(ctx context.Context, targetVersion string) (*UpdateCheck, error) {
	execPath, err := resolveExecPath()
	if err != nil {
		return nil, fmt.Errorf("resolving executable path: %w", err)
	}

	method := DetectInstallMethod(execPath)

	// Managed installs should use their respective package managers.
	if method.Managed() {
		return &UpdateCheck{
			CurrentVersion: u.currentVersion,
			InstallMethod:  method,
			Message:        managedInstallMessage(method, execPath),
		}, nil
	}

	var release *Release
	if targetVersion != "" {
		tag, tagErr := normalizeVersion(targetVersion)
		if tagErr != nil {
			return nil, tagErr
		}
		r, fetchErr := u.client.GetReleaseByTag(ctx, tag)
		if fetchErr != nil {
			return nil, fmt.Errorf("fetching release %s: %w", tag, fetchErr)
		}
		release = r
	} else {
		releases, listErr := u.client.ListReleases(ctx)
		if listErr != nil {
			return nil, fmt.Errorf("listing releases: %w", listErr)
		}
		if len(releases) == 0 {
			return nil, fmt.Errorf("no stable releases found in %s: %w", u.client.Repository(), ErrReleaseNotFound)
		}
		// ListReleases returns results sorted by semver descending.
		release = &releases[0]
	}

	currentNorm, err := normalizeVersion(u.currentVersion)
	if err != nil {
		return nil, fmt.Errorf("current version: %w", err)
	}
	targetNorm, err := normalizeVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("release version: %w", err)
	}

	// The running binary is a pre-release at or beyond the target, as happens
	// with development builds.
	if semver.Prerelease(currentNorm) != "" && semver.Compare(currentNorm, targetNorm) >= 0 {
		return &UpdateCheck{
			CurrentVersion: u.currentVersion,
			LatestVersion:  release.TagName,
			InstallMethod:  method,
			Message:        fmt.Sprintf("Running pre-release %s (ahead of %s).", u.currentVersion, release.TagName),
		}, nil
	}

	if semver.Compare(currentNorm, targetNorm) >= 0 {
		return &UpdateCheck{
			CurrentVersion: u.currentVersion,
			LatestVersion:  release.TagName,
			InstallMethod:  method,
			Message:        "Already up to date.",
		}, nil
	}

	return &UpdateCheck{
		CurrentVersion:  u.currentVersion,
		LatestVersion:   release.TagName,
		TargetRelease:   release,
		InstallMethod:   method,
		UpdateAvailable: true,
		Message:         fmt.Sprintf("Update available: %s -> %s", u.currentVersion, release.TagName),
	}, nil
}

// Apply downloads the release archive for this platform and installs it as
// <dataDir>/client/<version>/stagehand. The download is verified against
// checksums.txt while it is being unpacked; nothing is installed unless both
// succeed. A successful install is recorded in the receipt, after which
// versions older than the retention window are removed.
//
// Concurrent Apply calls on the same data directory, including from other
// processes, are serialized with a lock file.
func (u *Updater) Apply(ctx context.Context, release *Release) (*Receipt, error) {
	if release == nil {
		return nil, errors.New("release must not be nil")
	}
	if u.dataDir == "" {
		return nil, ErrNoDataDir
	}

	tag, err := normalizeVersion(release.TagName)
	if err != nil {
		return nil, err
	}
	// GoReleaser strips the "v" prefix in file names,
	// e.g. stagehand_1.0.0_linux_amd64.tar.gz.
	version := strings.TrimPrefix(tag, "v")
	archiveName := ArchiveName(version, runtime.GOOS, runtime.GOARCH)

	archiveAsset, err := findAsset(release.Assets, archiveName)
	if err != nil {
		return nil, fmt.Errorf("finding archive asset: %w", err)
	}

	checksum, err := u.expectedChecksum(ctx, release, archiveName)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(u.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	unlock, err := lockedfile.MutexAt(filepath.Join(u.dataDir, lockName)).Lock()
	if err != nil {
		return nil, fmt.Errorf("acquiring update lock: %w", err)
	}
	defer unlock()

	body, err := u.client.DownloadAsset(ctx, archiveAsset.BrowserDownloadURL)
	if err != nil {
		return nil, fmt.Errorf("downloading archive: %w", err)
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	outputDir := filepath.Join(clientDir(u.dataDir), version)
	u.logger.Info("installing", "release", release.TagName, "to", outputDir, "checksum", checksum)

	extractor := extract.New(extract.WithLogger(u.logger), extract.WithClock(u.now))
	err = extractor.Extract(ctx, extract.Request{
		Source:    body,
		OutputDir: outputDir,
		Basename:  Basename,
		Checksum:  checksum,
	})
	if err != nil {
		return nil, fmt.Errorf("installing %s: %w", release.TagName, err)
	}

	receipt := &Receipt{
		Version:     version,
		Digest:      checksum.Digest(),
		Path:        filepath.Join(outputDir, Basename),
		InstalledAt: u.now().UTC(),
	}
	if err := writeReceipt(u.dataDir, receipt); err != nil {
		return nil, err
	}

	u.tidy(version)
	return receipt, nil
}

// Tidy removes superseded versions past the retention window, keeping the one
// named in the receipt.
func (u *Updater) Tidy() error {
	if u.dataDir == "" {
		return ErrNoDataDir
	}
	r, err := ReadReceipt(u.dataDir)
	if err != nil {
		return err
	}

	unlock, err := lockedfile.MutexAt(filepath.Join(u.dataDir, lockName)).Lock()
	if err != nil {
		return fmt.Errorf("acquiring update lock: %w", err)
	}
	defer unlock()

	_, err = TidyVersions(clientDir(u.dataDir), r.Version, u.now().Add(-u.retention))
	return err
}

// ArchiveName returns the release asset name for a version and platform.
func ArchiveName(version, goos, goarch string) string {
	return fmt.Sprintf("%s_%s_%s_%s.tar.gz", Basename, strings.TrimPrefix(version, "v"), goos, goarch)
}

// expectedChecksum resolves the digest the archive must match.
func (u *Updater) expectedChecksum(ctx context.Context, release *Release, archiveName string) (extract.Checksum, error) {
	checksumsAsset, err := findAsset(release.Assets, checksumsName)
	if errors.Is(err, ErrAssetNotFound) {
		if !u.allowUnverified {
			return extract.Checksum{}, fmt.Errorf("%w: %s publishes no %s", ErrUnverifiedRelease, release.TagName, checksumsName)
		}
		u.logger.Warn("release publishes no checksums, installing unverified", "release", release.TagName)
		return extract.Unverified(), nil
	}
	if err != nil {
		return extract.Checksum{}, err
	}

	body, err := u.client.DownloadAsset(ctx, checksumsAsset.BrowserDownloadURL)
	if err != nil {
		return extract.Checksum{}, fmt.Errorf("downloading checksums: %w", err)
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	entries, err := ParseChecksums(body)
	if err != nil {
		return extract.Checksum{}, fmt.Errorf("parsing checksums: %w", err)
	}

	expected, err := FindChecksum(entries, archiveName)
	if err != nil {
		return extract.Checksum{}, fmt.Errorf("finding checksum for %s: %w", archiveName, err)
	}
	return extract.ExpectDigest(expected), nil
}

// tidy runs TidyVersions after an install. Failures are logged, not returned.
func (u *Updater) tidy(current string) {
	removed, err := TidyVersions(clientDir(u.dataDir), current, u.now().Add(-u.retention))
	for _, path := range removed {
		u.logger.Debug("removed superseded version", "path", path)
	}
	if err != nil {
		u.logger.Warn("tidying old versions", "err", err)
	}
}

// resolveExecPath returns the absolute, symlink-resolved path to the currently
// running binary.
func resolveExecPath() (string, error) {
	p, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("determining executable path: %w", err)
	}

	resolved, err := evalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %s: %w", p, err)
	}

	return resolved, nil
}

// findAsset scans the release assets for one with the given name. Returns
// ErrAssetNotFound (from checksum.go) if no match is found.
func findAsset(assets []Asset, name string) (*Asset, error) {
	for i := range assets {
		if assets[i].Name == name {
			return &assets[i], nil
		}
	}
	return nil, fmt.Errorf("asset %q not found in release: %w", name, ErrAssetNotFound)
}

// managedInstallMessage returns a human-readable message advising the user to
// update via their package manager, formatted per the CLI contract.
func managedInstallMessage(method InstallMethod, execPath string) string {
	switch method {
	case InstallMethodHomebrew:
		return fmt.Sprintf("Detected Homebrew installation at %s\n\nTo update, run:\n  brew upgrade stagehand", execPath)
	case InstallMethodGoInstall:
		return fmt.Sprintf("Detected go install at %s\n\nTo update, run:\n  go install %s@latest", execPath, modulePath)
	case InstallMethodSnap, InstallMethodFlatpak:
		return fmt.Sprintf("Detected %s installation at %s\n\nTo update, run:\n  %s", method, execPath, detectSandbox().RefreshCommand(Basename))
	case InstallMethodScript, InstallMethodUnknown:
		return ""
	}
	return ""
}

// normalizeVersion ensures the version string has a "v" prefix as required by
// the semver package, and validates that the result is a well-formed semantic
// version. Returns ErrInvalidVersion if the input cannot be normalized to
// valid semver.
func normalizeVersion(v string) (string, error) {
	norm := v
	if !strings.HasPrefix(norm, "v") {
		norm = "v" + norm
	}
	if !semver.IsValid(norm) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	return norm, nil
}
