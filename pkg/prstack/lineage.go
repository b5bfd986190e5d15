package prstack

import (
	"context"
	"log/slog"
)

// DefaultMaxHops bounds the number of nodes a chain walk may produce.
const DefaultMaxHops = 20

// Remote is the subset of the remote repository client the Resolver needs.
type Remote interface {
	PullRequests(ctx context.Context, owner, repo, state string) ([]PullRequestEdge, error)
	Branch(ctx context.Context, owner, repo, name string) (string, error)
}

// Resolver reconstructs head-to-trunk branch chains from a repository's pull requests.
// It never retries; callers decide whether a failed resolution is worth repeating.
type Resolver struct {
	remote  Remote
	creds   CredentialStore
	trunks  TrunkSet
	logger  *slog.Logger
	maxHops int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithTrunkNames replaces the default trunk branch names.
func WithTrunkNames(names ...string) ResolverOption {
	return func(r *Resolver) {
		r.trunks = NewTrunkSet(names...)
	}
}

// WithMaxHops sets the cycle guard: the maximum number of nodes in a chain.
func WithMaxHops(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxHops = n
		}
	}
}

// WithResolverLogger sets a custom logger for the resolver.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver that reads from remote, authenticated by creds.
func NewResolver(remote Remote, creds CredentialStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		remote:  remote,
		creds:   creds,
		trunks:  NewTrunkSet(),
		logger:  slog.Default(),
		maxHops: DefaultMaxHops,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Trunks returns the resolver's trunk branch set.
func (r *Resolver) Trunks() TrunkSet {
	return r.trunks
}

// Classify returns the PRContext for a page view without any network access.
func (r *Resolver) Classify(owner, repo, base, head string) PRContext {
	return r.trunks.Classify(owner, repo, base, head)
}

// EdgeMap indexes edges by head branch. When several pull requests share a
// head branch the last one wins; PullRequests returns them oldest first, so
// that is the most recently opened one.
func EdgeMap(edges []PullRequestEdge) map[string]PullRequestEdge {
	m := make(map[string]PullRequestEdge, len(edges))
	for _, e := range edges {
		if e.HeadBranch == "" {
			continue
		}
		m[e.HeadBranch] = e
	}
	return m
}

// ResolveChain walks from head towards a trunk branch. The returned chain ends
// at a trunk branch, or at the first branch with no outgoing pull request.
// If the walk reaches the hop limit the partial chain is returned, marked
// Truncated, together with ErrCycleOrTooDeep.
func (r *Resolver) ResolveChain(ctx context.Context, repo Repo, head string) (*BranchChain, error) {
	if !Available(r.creds) {
		return nil, ErrNoCredential
	}

	edges, err := r.remote.PullRequests(ctx, repo.Owner, repo.Name, StateAll)
	if err != nil {
		return nil, apiError("listing pull requests", err)
	}
	byHead := EdgeMap(edges)
	r.logger.DebugContext(ctx, "built pull request edge map",
		"repo", repo.String(),
		"edges", len(edges),
		"heads", len(byHead))

	chain := &BranchChain{}
	current := head
	for current != "" {
		if len(chain.Nodes) >= r.maxHops {
			chain.Truncated = true
			r.logger.WarnContext(ctx, "branch chain exceeded hop limit",
				"repo", repo.String(),
				"head", head,
				"max_hops", r.maxHops,
				"next", current)
			return chain, ErrCycleOrTooDeep
		}

		sha, err := r.remote.Branch(ctx, repo.Owner, repo.Name, current)
		if err != nil {
			return nil, apiError("getting branch "+current, err)
		}

		if r.trunks.Has(current) {
			chain.Nodes = append(chain.Nodes, BranchNode{Name: current, SHA: sha})
			break
		}

		node := BranchNode{Name: current, SHA: sha}
		if edge, ok := byHead[current]; ok {
			node.BaseBranch = edge.BaseBranch
			node.PullRequest = &edge
		}
		chain.Nodes = append(chain.Nodes, node)
		r.logger.DebugContext(ctx, "resolved chain hop",
			"branch", current,
			"sha", sha,
			"base", node.BaseBranch)
		current = node.BaseBranch
	}

	r.logger.InfoContext(ctx, "resolved branch chain",
		"repo", repo.String(),
		"head", head,
		"chain", chain.Names())
	return chain, nil
}
