// Package config loads prstack settings from YAML and persists the GitHub token.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack"
	"github.com/codeGROOVE-dev/prstack/pkg/prstack/github"
	"github.com/codeGROOVE-dev/prstack/pkg/render"
)

const (
	dirName  = "prstack"
	fileName = "config.yaml"
	// maxPageSize is the largest per_page GitHub accepts.
	maxPageSize = 100
)

// Config holds user settings. Zero values mean "use the default".
type Config struct {
	APIURL        string          `yaml:"api_url"`
	CacheDir      string          `yaml:"cache_dir"`
	TrunkBranches []string        `yaml:"trunk_branches"`
	Selectors     []string        `yaml:"selectors"`
	RetryDelays   []time.Duration `yaml:"retry_delays"`
	MaxHops       int             `yaml:"max_hops"`
	PageSize      int             `yaml:"page_size"`
	MaxPages      int             `yaml:"max_pages"`
	CacheTTL      time.Duration   `yaml:"cache_ttl"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIURL:        github.API,
		TrunkBranches: append([]string(nil), prstack.DefaultTrunkNames...),
		Selectors:     append([]string(nil), render.DefaultSelectors...),
		RetryDelays:   append([]time.Duration(nil), render.DefaultRetryDelays...),
		MaxHops:       prstack.DefaultMaxHops,
		PageSize:      github.DefaultPerPage,
		MaxPages:      github.DefaultMaxPages,
		CacheDir:      prstack.DefaultCacheDir(),
		CacheTTL:      prstack.DefaultCacheTTL,
	}
}

// Dir returns $XDG_CONFIG_HOME/prstack, falling back to ~/.config/prstack.
func Dir() (string, error) {
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, dirName), nil
}

// DefaultPath returns the location of the config file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads the config at path. A missing file yields Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api_url %q is not an absolute URL", c.APIURL)
		}
	}
	if c.MaxHops < 1 {
		return fmt.Errorf("max_hops must be at least 1, got %d", c.MaxHops)
	}
	if c.PageSize < 1 || c.PageSize > maxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d, got %d", maxPageSize, c.PageSize)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max_pages must not be negative, got %d", c.MaxPages)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", c.CacheTTL)
	}
	if c.CacheDir != "" && !filepath.IsAbs(c.CacheDir) {
		return fmt.Errorf("cache_dir must be absolute, got %q", c.CacheDir)
	}
	for _, d := range c.RetryDelays {
		if d < 0 {
			return fmt.Errorf("retry_delays must not be negative, got %s", d)
		}
	}
	return nil
}

// Save writes cfg to path.
func Save(path string, cfg Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, out, 0o600)
}

// ClientOptions returns the client settings.
func (c Config) ClientOptions() []prstack.Option {
	opts := []prstack.Option{
		prstack.WithPageSize(c.PageSize),
		prstack.WithMaxPages(c.MaxPages),
		prstack.WithCacheTTL(c.CacheTTL),
	}
	if c.APIURL != "" {
		opts = append(opts, prstack.WithBaseURL(c.APIURL))
	}
	return opts
}

// ResolverOptions returns the resolver settings.
func (c Config) ResolverOptions() []prstack.ResolverOption {
	return []prstack.ResolverOption{
		prstack.WithTrunkNames(c.TrunkBranches...),
		prstack.WithMaxHops(c.MaxHops),
	}
}

// ControllerOptions returns the render controller settings.
func (c Config) ControllerOptions() []render.Option {
	return []render.Option{
		render.WithSelectors(c.Selectors...),
		render.WithRetryDelays(c.RetryDelays...),
		render.WithTrunks(prstack.NewTrunkSet(c.TrunkBranches...)),
	}
}
