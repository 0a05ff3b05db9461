// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/mod/semver"
)

const (
	// DefaultRepository is the GitHub repository releases are fetched from.
	DefaultRepository = "stagehand-cli/stagehand"

	defaultAPIURL  = "https://api.github.com"
	defaultRetries = 3

	releasesPerPage = 30
	maxReleasePages = 3

	// maxAPIBody caps a decoded API response.
	maxAPIBody = 10 << 20
)

var (
	// ErrReleaseNotFound is returned when a requested release tag does not exist.
	ErrReleaseNotFound = errors.New("release not found")

	// ErrInvalidRepository is returned by ParseRepository for values that are
	// not of the form "owner/name".
	ErrInvalidRepository = errors.New("invalid repository")
)

type (
	// RateLimitError is returned when GitHub refuses a request because the
	// caller's API quota is used up.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// Release is a published GitHub release, decoded straight from the API.
	Release struct {
		TagName    string  `json:"tag_name"`
		Name       string  `json:"name"`
		Prerelease bool    `json:"prerelease"`
		Draft      bool    `json:"draft"`
		HTMLURL    string  `json:"html_url"`
		Notes      string  `json:"body"`
		Assets     []Asset `json:"assets"`
	}

	// Asset is a downloadable file attached to a Release.
	Asset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
		Size               int64  `json:"size"`
	}

	// GitHubClient reads releases of one repository and downloads their assets.
	GitHubClient struct {
		httpClient *http.Client
		apiURL     *url.URL
		owner      string
		repo       string
		token      string
		userAgent  string
		retries    int
		logger     *log.Logger
	}

	// ClientOption configures a GitHubClient during construction.
	ClientOption func(*GitHubClient)
)

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithHTTPClient replaces the retrying default transport.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GitHubClient) {
		g.httpClient = c
	}
}

// WithBaseURL points the client at another API root, such as a test server.
// An unparsable value keeps the default.
func WithBaseURL(base string) ClientOption {
	return func(g *GitHubClient) {
		if u, err := url.Parse(strings.TrimRight(base, "/")); err == nil {
			g.apiURL = u
		}
	}
}

// WithToken authenticates API requests. The token is only ever sent to the
// API host (and github.com when the API host is api.github.com).
func WithToken(token string) ClientOption {
	return func(g *GitHubClient) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(g *GitHubClient) {
		g.userAgent = ua
	}
}

// WithRepo selects the repository to read releases from.
func WithRepo(owner, repo string) ClientOption {
	return func(g *GitHubClient) {
		g.owner = owner
		g.repo = repo
	}
}

// WithRetries sets how often the default transport retries connection errors
// and 5xx responses.
func WithRetries(n int) ClientOption {
	return func(g *GitHubClient) {
		g.retries = max(n, 0)
	}
}

// WithClientLogger receives retry diagnostics.
func WithClientLogger(l *log.Logger) ClientOption {
	return func(g *GitHubClient) {
		g.logger = l
	}
}

// NewGitHubClient creates a client for DefaultRepository on api.github.com.
func NewGitHubClient(opts ...ClientOption) *GitHubClient {
	owner, repo, _ := strings.Cut(DefaultRepository, "/")
	apiURL, _ := url.Parse(defaultAPIURL) //nolint:errcheck // Constant URL.
	c := &GitHubClient{
		apiURL:    apiURL,
		owner:     owner,
		repo:      repo,
		userAgent: "stagehand/dev",
		retries:   defaultRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newRetryingClient(c.retries, c.logger)
	}
	return c
}

// ParseRepository splits an "owner/name" repository reference.
func ParseRepository(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: %q (want owner/name)", ErrInvalidRepository, s)
	}
	return owner, repo, nil
}

// Repository returns the "owner/name" the client reads.
func (c *GitHubClient) Repository() string {
	return c.owner + "/" + c.repo
}

// newRetryingClient retries connection errors and 5xx responses with
// exponential back-off. Everything else, including 404 and rate-limit
// responses, reaches the caller on the first attempt.
func newRetryingClient(retries int, logger *log.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil
	if logger != nil {
		rc.Logger = newLeveledLogger(logger)
	}
	rc.ErrorHandler = lastResponse
	return rc.StandardClient()
}

// lastResponse hands the final response of an exhausted retry loop back to
// the caller, which reports the status itself. Transport errors stay errors.
func lastResponse(resp *http.Response, err error, _ int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// ListReleases returns the repository's stable releases, newest semantic
// version first. Drafts and pre-releases are dropped; at most
// maxReleasePages pages are read.
func (c *GitHubClient) ListReleases(ctx context.Context) ([]Release, error) {
	next := c.endpoint("releases") + "?per_page=" + strconv.Itoa(releasesPerPage)

	var stable []Release
	for page := 0; next != "" && page < maxReleasePages; page++ {
		var batch []Release
		link, err := c.getJSON(ctx, next, &batch)
		if err != nil {
			return nil, fmt.Errorf("listing releases: %w", err)
		}
		stable = append(stable, slices.DeleteFunc(batch, func(r Release) bool {
			return r.Draft || r.Prerelease
		})...)
		next = nextPage(link)
	}

	// Tags that are not semantic versions compare lowest and end up last.
	slices.SortStableFunc(stable, func(a, b Release) int {
		return semver.Compare(b.TagName, a.TagName)
	})
	return stable, nil
}

// GetReleaseByTag returns the release tagged tag, or ErrReleaseNotFound.
func (c *GitHubClient) GetReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	var r Release
	if _, err := c.getJSON(ctx, c.endpoint("releases", "tags", tag), &r); err != nil {
		if errors.Is(err, ErrReleaseNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting release %s: %w", tag, err)
	}
	return &r, nil
}

// DownloadAsset opens the asset at assetURL. The caller closes the body.
func (c *GitHubClient) DownloadAsset(ctx context.Context, assetURL string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, assetURL, "application/octet-stream")
	if err != nil {
		return nil, fmt.Errorf("downloading asset %s: %w", redactURL(assetURL), err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("downloading asset %s: unexpected status %d", redactURL(assetURL), resp.StatusCode)
	}
	return resp.Body, nil
}

// endpoint builds an API URL below /repos/{owner}/{repo}.
func (c *GitHubClient) endpoint(elem ...string) string {
	return c.apiURL.JoinPath(append([]string{"repos", c.owner, c.repo}, elem...)...).String()
}

// getJSON decodes the 200 response of an API GET into v and returns the
// response's Link header.
func (c *GitHubClient) getJSON(ctx context.Context, reqURL string, v any) (string, error) {
	resp, err := c.get(ctx, reqURL, "application/vnd.github+json")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }() // Read-only response body.

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrReleaseNotFound
	default:
		if rlErr := rateLimited(resp); rlErr != nil {
			return "", rlErr
		}
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAPIBody)).Decode(v); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return resp.Header.Get("Link"), nil
}

func (c *GitHubClient) get(ctx context.Context, reqURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" && c.trusts(req.URL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// trusts reports whether the token may be sent to u. Asset downloads
// redirect to CDN hosts that must never see it.
func (c *GitHubClient) trusts(u *url.URL) bool {
	if strings.EqualFold(u.Host, c.apiURL.Host) {
		return true
	}
	return strings.EqualFold(c.apiURL.Host, "api.github.com") && strings.EqualFold(u.Host, "github.com")
}

// rateLimited returns a *RateLimitError for a 403 or 429 response whose
// X-RateLimit-Remaining header is zero, and nil for any other response.
func rateLimited(resp *http.Response) error {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		return nil
	}

	// Missing companion headers leave the fields zero.
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))             //nolint:errcheck // Best-effort header.
	reset, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header.
	return &RateLimitError{Limit: limit, ResetAt: time.Unix(reset, 0)}
}

// nextPage returns the rel="next" target of a Link header, or "".
//
//	<https://api.github.com/...&page=2>; rel="next", <...&page=5>; rel="last"
func nextPage(link string) string {
	for link != "" {
		var part string
		part, link, _ = strings.Cut(link, ",")
		target, params, ok := strings.Cut(strings.TrimSpace(part), ";")
		if !ok || !strings.Contains(params, `rel="next"`) {
			continue
		}
		target = strings.TrimSpace(target)
		if strings.HasPrefix(target, "<") && strings.HasSuffix(target, ">") {
			return target[1 : len(target)-1]
		}
	}
	return ""
}

// redactURL drops the query and fragment of rawURL for error messages;
// signed download URLs carry credentials there.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery, u.Fragment = "", ""
	return u.Redacted()
}
