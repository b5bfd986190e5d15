// Package github provides a low-level client for the two GitHub REST endpoints
// prstack needs: listing a repository's pull requests and looking up a branch.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// API is the default GitHub API base URL.
	API = "https://api.github.com"
	// DefaultPerPage is the page size used when listing pull requests.
	DefaultPerPage = 100
	// DefaultMaxPages is zero: every page of pull requests is fetched.
	DefaultMaxPages = 0
	// maxResponseSize limits API response size to prevent memory exhaustion.
	maxResponseSize = 10 * 1024 * 1024 // 10MB
	// maxErrorBodySize limits error response body reading for debugging.
	maxErrorBodySize = 1024
	// tokenPreviewPrefixLen is the number of characters to show at the start of a masked token.
	tokenPreviewPrefixLen = 4
	// tokenPreviewSuffixLen is the number of characters to show at the end of a masked token.
	tokenPreviewSuffixLen = 4
	// tokenPreviewMinLen is the minimum token length to show a preview.
	tokenPreviewMinLen = 8
)

// ErrNoToken is returned before any request is made when the client has no token.
var ErrNoToken = errors.New("github: no token configured")

// Error represents an error response from the GitHub API.
type Error struct {
	Status     string
	Body       string
	URL        string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("github API error: %s", e.Status)
}

// Response wraps a GitHub API response with pagination info.
type Response struct {
	NextPage int
}

// ResponseCache serves GET responses without a round trip when it can.
type ResponseCache interface {
	Fetch(ctx context.Context, path string, load func(ctx context.Context) ([]byte, *Response, error)) ([]byte, *Response, error)
}

// Client is a low-level client for interacting with the GitHub API.
type Client struct {
	HTTPClient *http.Client
	Cache      ResponseCache
	Token      string
	BaseURL    string
}

// Do performs an HTTP GET request to the GitHub API.
func (c *Client) Do(ctx context.Context, path string) ([]byte, *Response, error) {
	if c.Token == "" {
		return nil, nil, ErrNoToken
	}
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = API
	}
	apiURL := baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	slog.InfoContext(ctx, "GitHub API request starting",
		"method", "GET",
		"url", apiURL,
		"headers", map[string]string{
			"Authorization": "Bearer " + MaskToken(c.Token),
			"Accept":        req.Header.Get("Accept"),
		})

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		slog.ErrorContext(ctx, "GitHub API request failed", "url", apiURL, "error", err, "elapsed", elapsed)
		return nil, nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.DebugContext(ctx, "failed to close response body", "error", closeErr, "url", apiURL)
		}
	}()

	slog.InfoContext(ctx, "GitHub API response received",
		"status", resp.Status,
		"url", apiURL,
		"elapsed", elapsed,
		"rate_limits", map[string]string{
			"X-RateLimit-Limit":     resp.Header.Get("X-Ratelimit-Limit"),
			"X-RateLimit-Remaining": resp.Header.Get("X-Ratelimit-Remaining"),
			"X-RateLimit-Reset":     resp.Header.Get("X-Ratelimit-Reset"),
			"Retry-After":           resp.Header.Get("Retry-After"),
		})

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if readErr != nil {
			body = []byte("failed to read response body")
		}

		// A missing branch is routine for merged-and-deleted heads.
		if resp.StatusCode == http.StatusNotFound && strings.Contains(apiURL, "/branches/") {
			slog.WarnContext(ctx, "GitHub branch not found",
				"status_code", resp.StatusCode,
				"url", apiURL)
		} else {
			slog.ErrorContext(ctx, "GitHub API error",
				"status", resp.Status,
				"status_code", resp.StatusCode,
				"url", apiURL,
				"body", string(body))
		}
		return nil, nil, &Error{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
			URL:        apiURL,
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, err
	}

	return data, &Response{NextPage: nextPage(resp.Header.Get("Link"))}, nil
}

// nextPage extracts the page number of the rel="next" entry of a Link header.
func nextPage(linkHeader string) int {
	for link := range strings.SplitSeq(linkHeader, ",") {
		parts := strings.Split(strings.TrimSpace(link), ";")
		if len(parts) != 2 || strings.TrimSpace(parts[1]) != `rel="next"` {
			continue
		}
		u, err := url.Parse(strings.Trim(strings.TrimSpace(parts[0]), "<>"))
		if err != nil {
			return 0
		}
		page, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil {
			return 0
		}
		return page
	}
	return 0
}

// Get makes a GET request to the GitHub API and decodes the response into v.
// When a Cache is configured the response may come from it.
func (c *Client) Get(ctx context.Context, path string, v any) (*Response, error) {
	var data []byte
	var resp *Response
	var err error
	if c.Cache != nil && c.Token != "" {
		data, resp, err = c.Cache.Fetch(ctx, path, func(ctx context.Context) ([]byte, *Response, error) {
			return c.Do(ctx, path)
		})
	} else {
		data, resp, err = c.Do(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return resp, nil
}

// PullRequestsPath returns the API path for one page of a repository's pull requests.
// Pull requests are requested newest first, so a page limit only drops old ones.
func PullRequestsPath(owner, repo, state string, perPage, page int) string {
	return fmt.Sprintf("/repos/%s/%s/pulls?state=%s&sort=created&direction=desc&per_page=%d&page=%d",
		url.PathEscape(owner), url.PathEscape(repo), url.QueryEscape(state), perPage, page)
}

// BranchPath returns the API path for a single branch.
func BranchPath(owner, repo, name string) string {
	return fmt.Sprintf("/repos/%s/%s/branches/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(name))
}

// PullRequests lists pull requests in the given state ("open", "closed" or "all"),
// newest first, following pagination until exhausted. A positive maxPages stops
// after that many pages, dropping the oldest pull requests.
func (c *Client) PullRequests(ctx context.Context, owner, repo, state string, perPage, maxPages int) ([]*PullRequest, error) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	var all []*PullRequest
	page := 1
	for n := 0; maxPages <= 0 || n < maxPages; n++ {
		var prs []*PullRequest
		resp, err := c.Get(ctx, PullRequestsPath(owner, repo, state, perPage, page), &prs)
		if err != nil {
			return nil, err
		}
		all = append(all, prs...)
		if resp.NextPage == 0 || len(prs) < perPage {
			return all, nil
		}
		page = resp.NextPage
	}

	slog.WarnContext(ctx, "older pull requests skipped at page limit",
		"owner", owner,
		"repo", repo,
		"max_pages", maxPages,
		"pull_requests", len(all))
	return all, nil
}

// Branch fetches a single branch by name.
func (c *Client) Branch(ctx context.Context, owner, repo, name string) (*Branch, error) {
	var b Branch
	if _, err := c.Get(ctx, BranchPath(owner, repo, name), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// MaskToken returns a log-safe preview of a token.
func MaskToken(token string) string {
	switch {
	case token == "":
		return ""
	case len(token) > tokenPreviewMinLen:
		return token[:tokenPreviewPrefixLen] + "..." + token[len(token)-tokenPreviewSuffixLen:]
	default:
		return "***"
	}
}
