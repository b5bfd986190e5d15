package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, cfg Config)
		wantErr string
	}{
		{
			name: "empty document",
			yaml: "",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "overrides",
			yaml: `
api_url: https://ghe.example.com/api/v3
trunk_branches: [main, release]
max_hops: 5
page_size: 50
max_pages: 3
cache_ttl: 10m
retry_delays: [0s, 1s]
selectors: ["#header"]
`,
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "https://ghe.example.com/api/v3", cfg.APIURL)
				assert.Equal(t, []string{"main", "release"}, cfg.TrunkBranches)
				assert.Equal(t, 5, cfg.MaxHops)
				assert.Equal(t, 50, cfg.PageSize)
				assert.Equal(t, 3, cfg.MaxPages)
				assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
				assert.Equal(t, []time.Duration{0, time.Second}, cfg.RetryDelays)
				assert.Equal(t, []string{"#header"}, cfg.Selectors)
				assert.Equal(t, Default().CacheDir, cfg.CacheDir, "unset keys keep defaults")
			},
		},
		{name: "unknown key", yaml: "max_hop: 3\n", wantErr: "max_hop"},
		{name: "zero hops", yaml: "max_hops: 0\n", wantErr: "max_hops"},
		{name: "page too large", yaml: "page_size: 500\n", wantErr: "page_size"},
		{name: "negative pages", yaml: "max_pages: -1\n", wantErr: "max_pages"},
		{name: "relative cache dir", yaml: "cache_dir: cache\n", wantErr: "cache_dir"},
		{name: "relative api url", yaml: "api_url: /api\n", wantErr: "api_url"},
		{name: "negative ttl", yaml: "cache_ttl: -1m\n", wantErr: "cache_ttl"},
		{name: "negative delay", yaml: "retry_delays: [-1s]\n", wantErr: "retry_delays"},
		{name: "bad duration", yaml: "cache_ttl: soon\n", wantErr: "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.MaxHops = 7
	cfg.TrunkBranches = []string{"trunk"}
	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaultPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prstack", "config.yaml"), path)

	tokenPath, err := DefaultTokenPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prstack", "token.yaml"), tokenPath)
}

func TestOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.ClientOptions(), 4)
	assert.Len(t, cfg.ResolverOptions(), 2)
	assert.Len(t, cfg.ControllerOptions(), 3)

	cfg.APIURL = ""
	assert.Len(t, cfg.ClientOptions(), 3)

	// The options must be accepted by their constructors.
	creds := prstack.NewMemoryCredentials("")
	client := prstack.NewClient(creds, append(cfg.ClientOptions(), prstack.WithNoCache())...)
	t.Cleanup(func() { _ = client.Close() }) //nolint:errcheck // test cleanup
	resolver := prstack.NewResolver(client, creds, cfg.ResolverOptions()...)
	assert.True(t, resolver.Trunks().Has("MAIN"))
}
