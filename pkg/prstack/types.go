package prstack

import (
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack/github"
)

// Pull request list states.
const (
	StateOpen   = github.StateOpen
	StateClosed = github.StateClosed
	StateAll    = github.StateAll
)

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo parses an "owner/name" string.
func ParseRepo(s string) (Repo, error) {
	owner, name, ok := strings.Cut(strings.Trim(s, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, fmt.Errorf("invalid repository %q: want owner/name", s)
	}
	return Repo{Owner: owner, Name: strings.TrimSuffix(name, ".git")}, nil
}

// PullRequestEdge is a directed head -> base edge taken from one pull request.
type PullRequestEdge struct {
	HeadBranch string `json:"head_branch"`
	BaseBranch string `json:"base_branch"`
	State      string `json:"state"`
	URL        string `json:"url,omitempty"`
	Number     int    `json:"number"`
}

// BranchNode is one hop of a lineage chain. BaseBranch is empty when the
// branch has no known base (trunk or dangling end).
type BranchNode struct {
	PullRequest *PullRequestEdge `json:"pull_request,omitempty"`
	Name        string           `json:"name"`
	SHA         string           `json:"sha"`
	BaseBranch  string           `json:"base_branch,omitempty"`
}

// BranchChain is the head-first path from a branch towards a trunk branch.
type BranchChain struct {
	Nodes     []BranchNode `json:"nodes"`
	Truncated bool         `json:"truncated,omitempty"`
}

// Len returns the number of nodes in the chain.
func (c *BranchChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Nodes)
}

// Last returns the final node of the chain.
func (c *BranchChain) Last() (BranchNode, bool) {
	if c.Len() == 0 {
		return BranchNode{}, false
	}
	return c.Nodes[len(c.Nodes)-1], true
}

// Names returns the branch names of the chain, head first.
func (c *BranchChain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		names[i] = n.Name
	}
	return names
}

// Depth is the number of pull requests between the head and the chain's end.
func (c *BranchChain) Depth() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, node := range c.Nodes {
		if node.BaseBranch != "" {
			n++
		}
	}
	return n
}

// PRContext describes the pull request shown on one page view.
type PRContext struct {
	BranchChain *BranchChain `json:"branch_chain,omitempty"`
	RepoOwner   string       `json:"repo_owner"`
	RepoName    string       `json:"repo_name"`
	BaseBranch  string       `json:"base_branch"`
	HeadBranch  string       `json:"head_branch"`
	IsStackedPR bool         `json:"is_stacked_pr"`
}

// Repo returns the repository the context belongs to.
func (p PRContext) Repo() Repo {
	return Repo{Owner: p.RepoOwner, Name: p.RepoName}
}

// WithChain returns a copy of the context carrying the given chain.
func (p PRContext) WithChain(chain *BranchChain) PRContext {
	p.BranchChain = chain
	return p
}
