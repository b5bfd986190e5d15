// Package gitctx derives pull request page context from GitHub URLs and from
// local git checkouts.
package gitctx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack"
	"github.com/codeGROOVE-dev/prstack/pkg/render"
)

// DefaultRemote is the remote that names the GitHub repository.
const DefaultRemote = "origin"

// ErrNotGitHub means the remote does not point at a GitHub repository.
var ErrNotGitHub = errors.New("remote is not a GitHub repository")

// Checkout reads page context from a local repository: owner and repo from
// the remote URL, head from HEAD, base from the branch's upstream when it
// tracks another branch, else from the remote's default branch, else from
// the first local trunk branch.
type Checkout struct {
	repo   *git.Repository
	logger *slog.Logger
	trunks []string
	remote string
}

// Option configures a Checkout.
type Option func(*Checkout)

// WithRemote selects the remote used for owner and repo.
func WithRemote(name string) Option {
	return func(c *Checkout) {
		if name != "" {
			c.remote = name
		}
	}
}

// WithTrunkNames sets the local branches tried as a last-resort base.
func WithTrunkNames(names ...string) Option {
	return func(c *Checkout) {
		if len(names) > 0 {
			c.trunks = names
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checkout) {
		c.logger = logger
	}
}

// New wraps an open repository.
func New(repo *git.Repository, opts ...Option) *Checkout {
	c := &Checkout{
		repo:   repo,
		remote: DefaultRemote,
		trunks: prstack.DefaultTrunkNames,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens the repository containing path.
func Open(path string, opts ...Option) (*Checkout, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", path, err)
	}
	return New(repo, opts...), nil
}

// Extract implements render.Extractor.
func (c *Checkout) Extract() (render.PageContext, error) {
	repo, err := c.githubRepo()
	if err != nil {
		return render.PageContext{}, fmt.Errorf("%w: %w", render.ErrMissingPageContext, err)
	}

	head, err := c.repo.Head()
	if err != nil {
		return render.PageContext{}, fmt.Errorf("%w: read HEAD: %w", render.ErrMissingPageContext, err)
	}
	if !head.Name().IsBranch() {
		return render.PageContext{}, fmt.Errorf("%w: HEAD is detached", render.ErrMissingPageContext)
	}
	headBranch := head.Name().Short()

	base, err := c.base(headBranch)
	if err != nil {
		return render.PageContext{}, fmt.Errorf("%w: %w", render.ErrMissingPageContext, err)
	}

	c.logger.Debug("read checkout context", "repo", repo.String(), "head", headBranch, "base", base)
	return render.PageContext{Owner: repo.Owner, Repo: repo.Name, Base: base, Head: headBranch}, nil
}

func (c *Checkout) githubRepo() (prstack.Repo, error) {
	remote, err := c.repo.Remote(c.remote)
	if err != nil {
		return prstack.Repo{}, fmt.Errorf("remote %q: %w", c.remote, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return prstack.Repo{}, fmt.Errorf("remote %q has no URL", c.remote)
	}
	return ParseRemoteURL(urls[0])
}

func (c *Checkout) base(head string) (string, error) {
	cfg, err := c.repo.Config()
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	if b, ok := cfg.Branches[head]; ok && b.Merge.IsBranch() {
		if upstream := b.Merge.Short(); upstream != head {
			return upstream, nil
		}
	}

	ref, err := c.repo.Reference(plumbing.NewRemoteHEADReferenceName(c.remote), false)
	if err == nil && ref.Type() == plumbing.SymbolicReference {
		prefix := c.remote + "/"
		if short := ref.Target().Short(); strings.HasPrefix(short, prefix) {
			return strings.TrimPrefix(short, prefix), nil
		}
	}

	for _, name := range c.trunks {
		if name == head {
			continue
		}
		if _, err := c.repo.Reference(plumbing.NewBranchReferenceName(name), true); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("no base branch found for %q", head)
}

// ParseRemoteURL extracts owner and repo from a GitHub remote URL in https,
// ssh or scp-like form.
func ParseRemoteURL(raw string) (prstack.Repo, error) {
	raw = strings.TrimSpace(raw)
	var host, path string
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return prstack.Repo{}, err
		}
		host, path = u.Hostname(), u.Path
	} else {
		// scp-like: git@github.com:owner/repo.git
		userHost, p, ok := strings.Cut(raw, ":")
		if !ok {
			return prstack.Repo{}, fmt.Errorf("unrecognized remote URL %q", raw)
		}
		if _, h, ok := strings.Cut(userHost, "@"); ok {
			userHost = h
		}
		host, path = userHost, p
	}
	if host != "github.com" && host != "www.github.com" && host != "ssh.github.com" {
		return prstack.Repo{}, fmt.Errorf("%w: %s", ErrNotGitHub, raw)
	}
	return prstack.ParseRepo(path)
}
