// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	ReleaseNotFoundId Id = iota + 1
	IntegrityCheckFailedId
	UnverifiedReleaseId
	ArchiveRejectedId
	PermissionDeniedId
	ManagedInstallId
	NetworkFailedId
	ConfigLoadFailedId
	DataDirUnavailableId
)

type (
	// Id identifies an entry of the issue catalog.
	Id int

	// MarkdownMsg is the Markdown body of an issue.
	MarkdownMsg string

	// HttpLink is a documentation or reference URL.
	HttpLink string

	// Issue is a catalogued failure with Markdown remediation guidance.
	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
		extLinks []HttpLink // external links that might be useful for the user
	}
)

const docsBase = "https://github.com/stagehand-cli/stagehand/blob/main/docs/"

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render returns the issue rendered for a terminal with the named glamour
// style ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also:\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	//nolint:gochecknoglobals // Test seam.
	render = glamour.Render

	releaseNotFoundIssue = &Issue{
		id: ReleaseNotFoundId,
		mdMsg: `
# Release not found!

The requested version has no published release, or the release has no
archive for your platform.

## Things you can try:
- List what is available:
~~~
$ stagehand update --check
~~~
- Check the tag spelling; both ` + "`1.2.3`" + ` and ` + "`v1.2.3`" + ` are accepted
- Check the ` + "`update.repository`" + ` setting in your config file`,
		docLinks: []HttpLink{docsBase + "updating.md"},
	}

	integrityCheckFailedIssue = &Issue{
		id: IntegrityCheckFailedId,
		mdMsg: `
# Integrity check failed!

The downloaded archive does not match the checksum published with the
release. Nothing was installed and your current version is untouched.

## Things you can try:
- Retry the update; a truncated download produces the same error
- If it keeps failing, the release may have been tampered with. Report it
  before installing it by other means.`,
		docLinks: []HttpLink{docsBase + "verification.md"},
	}

	unverifiedReleaseIssue = &Issue{
		id: UnverifiedReleaseId,
		mdMsg: `
# Release cannot be verified!

The release publishes no ` + "`checksums.txt`" + `, or that file has no
entry for your platform's archive.

## Things you can try:
- Wait for the release to finish publishing and retry
- Install it anyway by setting ` + "`update.allow_unverified: true`" + `
  in your config file, or:
~~~
$ STAGEHAND_UPDATE_ALLOW_UNVERIFIED=true stagehand update
~~~`,
		docLinks: []HttpLink{docsBase + "verification.md"},
	}

	archiveRejectedIssue = &Issue{
		id: ArchiveRejectedId,
		mdMsg: `
# Archive rejected!

The archive is not a gzip-compressed tarball, or it contains an entry that
cannot be installed safely (devices, FIFOs, hard links, or paths escaping
the install directory).

## Things you can try:
- Make sure you are installing a release archive (` + "`*.tar.gz`" + `)
- Rebuild the archive with only regular files and directories`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

The install directory could not be written.

## Things you can try:
- Check the ownership of the data directory:
~~~
$ stagehand config path
~~~
- Point ` + "`update.data_dir`" + ` at a directory you own`,
	}

	managedInstallIssue = &Issue{
		id: ManagedInstallId,
		mdMsg: `
# Installed by a package manager!

This copy of stagehand is managed by Homebrew or ` + "`go install`" + `.
Updating it in place would fight the package manager.

## Things you can try:
- Update through the package manager that installed it`,
	}

	networkFailedIssue = &Issue{
		id: NetworkFailedId,
		mdMsg: `
# Could not reach GitHub!

Requests to the GitHub API failed after all retries, or the API rate limit
was exceeded.

## Things you can try:
- Check your network connection and proxy settings
- Set ` + "`GITHUB_TOKEN`" + ` to raise the API rate limit
- Increase ` + "`update.retries`" + ` in your config file`,
		extLinks: []HttpLink{"https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file is not valid CUE or does not match the schema.

## Things you can try:
- Print the effective configuration and its source:
~~~
$ stagehand config show
~~~
- Regenerate a default file after moving yours aside:
~~~
$ stagehand config init
~~~`,
		docLinks: []HttpLink{docsBase + "configuration.md"},
	}

	dataDirUnavailableIssue = &Issue{
		id: DataDirUnavailableId,
		mdMsg: `
# No data directory!

Stagehand could not determine where to install versions.

## Things you can try:
- Set ` + "`update.data_dir`" + ` in your config file
- Set ` + "`XDG_DATA_HOME`" + ` (Linux) or make sure ` + "`HOME`" + ` is set`,
		docLinks: []HttpLink{docsBase + "configuration.md"},
	}

	//nolint:gochecknoglobals // Read-only catalog.
	issues = map[Id]*Issue{
		releaseNotFoundIssue.Id():      releaseNotFoundIssue,
		integrityCheckFailedIssue.Id(): integrityCheckFailedIssue,
		unverifiedReleaseIssue.Id():    unverifiedReleaseIssue,
		archiveRejectedIssue.Id():      archiveRejectedIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
		managedInstallIssue.Id():       managedInstallIssue,
		networkFailedIssue.Id():        networkFailedIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		dataDirUnavailableIssue.Id():   dataDirUnavailableIssue,
	}
)

// Values returns every catalogued issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id - b.id)
	})
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
