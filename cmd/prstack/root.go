package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/prstack/pkg/config"
	"github.com/codeGROOVE-dev/prstack/pkg/prstack"
)

// Token sources reported by "token status".
const (
	sourceFile = "file"
	sourceEnv  = "GITHUB_TOKEN"
	sourceGH   = "gh auth token"
	sourceNone = "none"
)

type app struct {
	logger      *slog.Logger
	creds       *config.FileCredentials
	cfg         config.Config
	configPath  string
	tokenPath   string
	tokenSource string
	debug       bool
	noCache     bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "prstack",
		Short:         "Show where a GitHub pull request sits in a stack of branches.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/prstack/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.noCache, "no-cache", false, "Disable response caching")

	root.AddCommand(
		newChainCmd(a),
		newClassifyCmd(a),
		newContextCmd(a),
		newViewCmd(a),
		newTokenCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) init() error {
	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	if a.configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		a.configPath = p
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.tokenPath == "" {
		p, err := config.DefaultTokenPath()
		if err != nil {
			return err
		}
		a.tokenPath = p
	}
	creds, err := config.LoadCredentials(a.tokenPath)
	if err != nil {
		return err
	}
	a.creds = creds
	a.tokenSource = sourceNone
	if prstack.Available(creds) {
		a.tokenSource = sourceFile
	}
	return nil
}

// seedToken fills in a token from the environment or the gh CLI when none is
// stored. The seeded token is never written to disk.
func (a *app) seedToken(ctx context.Context) {
	if prstack.Available(a.creds) {
		return
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		if err := a.creds.Seed(token); err == nil {
			a.tokenSource = sourceEnv
			return
		}
	}
	token, err := githubToken(ctx)
	if err != nil {
		a.logger.DebugContext(ctx, "no token from gh", "error", err)
		return
	}
	if err := a.creds.Seed(token); err == nil {
		a.tokenSource = sourceGH
	}
}

func (a *app) newClient() *prstack.Client {
	opts := append(a.cfg.ClientOptions(), prstack.WithLogger(a.logger))
	switch {
	case a.noCache:
		opts = append(opts, prstack.WithNoCache())
	case a.cfg.CacheDir != "":
		store, err := prstack.NewCacheStore(a.cfg.CacheDir)
		if err != nil {
			a.logger.Warn("disk cache unavailable, caching in memory", "dir", a.cfg.CacheDir, "error", err)
		} else {
			opts = append(opts, prstack.WithCacheStore(store))
		}
	}
	return prstack.NewClient(a.creds, opts...)
}

func (a *app) newResolver(client *prstack.Client) *prstack.Resolver {
	opts := append(a.cfg.ResolverOptions(), prstack.WithResolverLogger(a.logger))
	return prstack.NewResolver(client, a.creds, opts...)
}

func (a *app) closeClient(client *prstack.Client) {
	if err := client.Close(); err != nil {
		a.logger.Debug("failed to close client", "error", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
