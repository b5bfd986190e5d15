package prstack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/fido"
	"github.com/codeGROOVE-dev/fido/pkg/store/localfs"
	"github.com/codeGROOVE-dev/fido/pkg/store/null"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack/github"
)

const (
	// DefaultCacheTTL is how long a cached API response is served before refetching.
	DefaultCacheTTL = 2 * time.Minute
	// cacheDirPerms is the permission for cache directories.
	cacheDirPerms = 0o700
	// cacheID names the on-disk cache namespace.
	cacheID = "prstack"
)

// CachedResponse is one cached GitHub API response page.
type CachedResponse struct {
	CachedAt time.Time       `json:"cached_at"`
	Data     json.RawMessage `json:"data"`
	NextPage int             `json:"next_page"`
}

// CacheStore is the persistence backend for cached API responses.
type CacheStore = fido.Store[string, CachedResponse]

// NewCacheStore creates an on-disk cache store rooted at dir, which must be absolute.
func NewCacheStore(dir string) (CacheStore, error) {
	cleanPath := filepath.Clean(dir)
	if !filepath.IsAbs(cleanPath) {
		return nil, errors.New("cache directory must be absolute path")
	}
	if err := os.MkdirAll(cleanPath, cacheDirPerms); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return localfs.New[string, CachedResponse](cacheID, cleanPath)
}

// NewNullStore returns a store that persists nothing.
func NewNullStore() CacheStore {
	return null.New[string, CachedResponse]()
}

// DefaultCacheDir returns the per-user cache directory for prstack.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, cacheID)
}

// responseCache caches raw API responses keyed by credential and request path.
type responseCache struct {
	tiered *fido.TieredCache[string, CachedResponse]
	logger *slog.Logger
}

func newResponseCache(store CacheStore, ttl time.Duration, logger *slog.Logger) (*responseCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	tiered, err := fido.NewTiered(store, fido.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("creating response cache: %w", err)
	}
	return &responseCache{tiered: tiered, logger: logger}, nil
}

// scoped returns a github.ResponseCache whose keys are bound to token.
func (c *responseCache) scoped(token string) github.ResponseCache {
	return &tokenCache{responseCache: c, token: token}
}

type tokenCache struct {
	*responseCache

	token string
}

// Fetch returns the cached response for path, calling load on a miss.
// Failed loads are never cached.
func (c *tokenCache) Fetch(
	ctx context.Context,
	path string,
	load func(ctx context.Context) ([]byte, *github.Response, error),
) ([]byte, *github.Response, error) {
	key := cacheKey(c.token, path)

	cached, found, err := c.tiered.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to read response cache", "path", path, "error", err)
	}
	if found {
		c.logger.DebugContext(ctx, "cache hit", "path", path, "cached_at", cached.CachedAt)
		return cached.Data, &github.Response{NextPage: cached.NextPage}, nil
	}
	c.logger.DebugContext(ctx, "cache miss", "path", path)

	data, resp, err := load(ctx)
	if err != nil {
		return nil, nil, err
	}

	entry := CachedResponse{Data: data, NextPage: resp.NextPage, CachedAt: time.Now()}
	if err := c.tiered.Set(ctx, key, entry); err != nil {
		c.logger.WarnContext(ctx, "failed to save response to cache", "path", path, "error", err)
	}
	return data, resp, nil
}

func (c *responseCache) close() error {
	return c.tiered.Close()
}

// cacheKey hashes the credential together with the request so responses are
// never served across tokens.
func cacheKey(parts ...string) string {
	key := strings.Join(parts, "/")
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
