// Package prstack resolves the branch lineage of GitHub pull requests: whether a
// pull request is stacked on another feature branch, and the chain of branches
// from its head down to the repository's trunk.
package prstack

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack/github"
)

const (
	// HTTP client configuration constants.
	maxIdleConns        = 100
	maxIdleConnsPerHost = 10
	idleConnTimeoutSec  = 90
	requestTimeout      = 30 * time.Second
)

// Client is the remote repository client: an authenticated accessor for
// listing pull requests and looking up branches. The token is read from the
// credential store on every call, so credential changes apply immediately.
type Client struct {
	creds      CredentialStore
	logger     *slog.Logger
	httpClient *http.Client
	cache      *responseCache
	cacheStore CacheStore
	closeErr   error
	baseURL    string
	cacheTTL   time.Duration
	perPage    int
	maxPages   int
	noCache    bool
	closeOnce  sync.Once
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		// Wrap the transport with retry logic if not already wrapped
		if httpClient.Transport == nil {
			httpClient.Transport = &RetryTransport{Base: http.DefaultTransport}
		} else if _, ok := httpClient.Transport.(*RetryTransport); !ok {
			httpClient.Transport = &RetryTransport{Base: httpClient.Transport}
		}
		c.httpClient = httpClient
	}
}

// WithBaseURL points the client at a different API root, such as GitHub Enterprise.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithPageSize sets the per_page value used when listing pull requests.
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.perPage = n
	}
}

// WithMaxPages bounds how many pages of pull requests are read. The newest
// pull requests come first, so the bound drops the oldest. Zero reads every page.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		c.maxPages = n
	}
}

// WithCacheStore persists cached responses in store instead of memory only.
func WithCacheStore(store CacheStore) Option {
	return func(c *Client) {
		c.cacheStore = store
	}
}

// WithCacheTTL sets how long cached responses are served.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithNoCache disables response caching.
func WithNoCache() Option {
	return func(c *Client) {
		c.noCache = true
	}
}

// NewClient creates a Client that authenticates with the token held by creds.
// Responses are cached in memory by default; use WithCacheStore to persist them
// or WithNoCache to disable caching.
func NewClient(creds CredentialStore, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeoutSec * time.Second,
	}
	c := &Client{
		creds:  creds,
		logger: slog.Default(),
		httpClient: &http.Client{
			Transport: &RetryTransport{Base: transport},
			Timeout:   requestTimeout,
		},
		baseURL:  github.API,
		perPage:  github.DefaultPerPage,
		maxPages: github.DefaultMaxPages,
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	if !c.noCache {
		store := c.cacheStore
		if store == nil {
			store = NewNullStore()
		}
		cache, err := newResponseCache(store, c.cacheTTL, c.logger)
		if err != nil {
			c.logger.Warn("response cache unavailable, continuing without it", "error", err)
		} else {
			c.cache = cache
		}
	}
	return c
}

// Close releases the response cache. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.cache != nil {
			c.closeErr = c.cache.close()
		}
	})
	return c.closeErr
}

// githubClient returns a low-level client bound to the current token.
func (c *Client) githubClient() (*github.Client, error) {
	if c.creds == nil {
		return nil, ErrNoCredential
	}
	token, ok := c.creds.Token()
	if !ok {
		return nil, ErrNoCredential
	}
	gc := &github.Client{HTTPClient: c.httpClient, Token: token, BaseURL: c.baseURL}
	if c.cache != nil {
		gc.Cache = c.cache.scoped(token)
	}
	return gc, nil
}

// PullRequests lists a repository's pull requests in the given state as
// head -> base edges, oldest first.
func (c *Client) PullRequests(ctx context.Context, owner, repo, state string) ([]PullRequestEdge, error) {
	gc, err := c.githubClient()
	if err != nil {
		return nil, err
	}
	prs, err := gc.PullRequests(ctx, owner, repo, state, c.perPage, c.maxPages)
	if err != nil {
		return nil, apiError("listing pull requests", err)
	}

	edges := make([]PullRequestEdge, 0, len(prs))
	for _, pr := range slices.Backward(prs) {
		if pr == nil || pr.Head.Ref == "" {
			continue
		}
		edges = append(edges, PullRequestEdge{
			HeadBranch: pr.Head.Ref,
			BaseBranch: pr.Base.Ref,
			Number:     pr.Number,
			State:      pr.State,
			URL:        pr.HTMLURL,
		})
	}
	c.logger.InfoContext(ctx, "listed pull requests",
		"owner", owner,
		"repo", repo,
		"state", state,
		"count", len(edges))
	return edges, nil
}

// Branch returns the head commit SHA of a branch.
func (c *Client) Branch(ctx context.Context, owner, repo, name string) (string, error) {
	gc, err := c.githubClient()
	if err != nil {
		return "", err
	}
	b, err := gc.Branch(ctx, owner, repo, name)
	if err != nil {
		return "", apiError("getting branch "+name, err)
	}
	return b.Commit.SHA, nil
}
