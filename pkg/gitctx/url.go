package gitctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack"
	"github.com/codeGROOVE-dev/prstack/pkg/render"
)

const (
	minPageParts = 4
	kindIndex    = 2
	pullKind     = "pull"
	compareKind  = "compare"
)

// PageURL is a parsed GitHub pull request or compare URL.
type PageURL struct {
	Repo   prstack.Repo
	Base   string
	Head   string
	Number int
}

// ParsePageURL parses /{owner}/{repo}/pull/{n}[/...] and
// /{owner}/{repo}/compare/{base}...{head} URLs on github.com.
func ParsePageURL(raw string) (PageURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return PageURL{}, err
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return PageURL{}, errors.New("not a GitHub URL")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < minPageParts || parts[0] == "" || parts[1] == "" {
		return PageURL{}, errors.New("invalid pull request URL format")
	}
	repo := prstack.Repo{Owner: parts[0], Name: parts[1]}

	switch parts[kindIndex] {
	case pullKind:
		n, err := strconv.Atoi(parts[3])
		if err != nil || n <= 0 {
			return PageURL{}, fmt.Errorf("invalid PR number %q", parts[3])
		}
		return PageURL{Repo: repo, Number: n}, nil
	case compareKind:
		spec, err := url.PathUnescape(strings.Join(parts[3:], "/"))
		if err != nil {
			return PageURL{}, fmt.Errorf("invalid compare range: %w", err)
		}
		base, head, ok := strings.Cut(spec, "...")
		if !ok {
			return PageURL{}, fmt.Errorf("compare range %q has no base", spec)
		}
		head = stripForkOwner(head)
		base = stripForkOwner(base)
		if base == "" || head == "" {
			return PageURL{}, fmt.Errorf("incomplete compare range %q", spec)
		}
		return PageURL{Repo: repo, Base: base, Head: head}, nil
	default:
		return PageURL{}, fmt.Errorf("unsupported GitHub page %q", parts[kindIndex])
	}
}

// stripForkOwner turns "owner:branch" into "branch".
func stripForkOwner(ref string) string {
	if _, branch, ok := strings.Cut(ref, ":"); ok {
		return branch
	}
	return ref
}

// PullLister lists the pull requests of a repository.
type PullLister interface {
	PullRequests(ctx context.Context, owner, repo, state string) ([]prstack.PullRequestEdge, error)
}

// URLExtractor reads page context from a GitHub URL. Pull request URLs are
// resolved to their base and head through lister. A found answer is reused
// until it is older than the refresh interval, so a retargeted pull request
// shows up on a later Extract.
type URLExtractor struct {
	ctx     context.Context //nolint:containedctx // Extract has no context parameter
	lister  PullLister
	found   *render.PageContext
	foundAt time.Time
	now     func() time.Time
	raw     string
	refresh time.Duration
	mu      sync.Mutex
}

// URLExtractorOption configures a URLExtractor.
type URLExtractorOption func(*URLExtractor)

// WithRefreshAfter sets how long a pull request lookup is reused. Zero keeps
// prstack.DefaultCacheTTL.
func WithRefreshAfter(d time.Duration) URLExtractorOption {
	return func(e *URLExtractor) {
		if d > 0 {
			e.refresh = d
		}
	}
}

// NewURLExtractor returns an extractor for raw. lister may be nil when only
// compare URLs are expected.
func NewURLExtractor(ctx context.Context, raw string, lister PullLister, opts ...URLExtractorOption) *URLExtractor {
	e := &URLExtractor{ctx: ctx, raw: raw, lister: lister, refresh: prstack.DefaultCacheTTL, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract implements render.Extractor.
func (e *URLExtractor) Extract() (render.PageContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.found != nil && e.now().Sub(e.foundAt) < e.refresh {
		return *e.found, nil
	}

	page, err := ParsePageURL(e.raw)
	if err != nil {
		return render.PageContext{}, fmt.Errorf("%w: %w", render.ErrMissingPageContext, err)
	}
	pc := render.PageContext{Owner: page.Repo.Owner, Repo: page.Repo.Name, Base: page.Base, Head: page.Head}

	if page.Number > 0 {
		pr, err := e.lookup(page)
		if err != nil {
			if e.found != nil {
				slog.WarnContext(e.ctx, "pull request lookup failed, keeping previous context",
					"url", e.raw, "error", err)
				return *e.found, nil
			}
			return render.PageContext{}, fmt.Errorf("%w: %w", render.ErrMissingPageContext, err)
		}
		pc.Base, pc.Head = pr.BaseBranch, pr.HeadBranch
	}

	e.found = &pc
	e.foundAt = e.now()
	return pc, nil
}

func (e *URLExtractor) lookup(page PageURL) (prstack.PullRequestEdge, error) {
	if e.lister == nil {
		return prstack.PullRequestEdge{}, fmt.Errorf("no way to look up PR #%d", page.Number)
	}
	edges, err := e.lister.PullRequests(e.ctx, page.Repo.Owner, page.Repo.Name, prstack.StateAll)
	if err != nil {
		return prstack.PullRequestEdge{}, err
	}
	for i := range edges {
		if edges[i].Number == page.Number {
			return edges[i], nil
		}
	}
	return prstack.PullRequestEdge{}, fmt.Errorf("PR #%d not found in %s", page.Number, page.Repo)
}
