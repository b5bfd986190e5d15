package prstack

import "strings"

// DefaultTrunkNames are the branch names treated as integration targets.
var DefaultTrunkNames = []string{"main", "master", "develop", "dev"}

// TrunkSet is a case-insensitive set of trunk branch names.
type TrunkSet map[string]struct{}

// NewTrunkSet builds a TrunkSet; with no names it holds DefaultTrunkNames.
func NewTrunkSet(names ...string) TrunkSet {
	if len(names) == 0 {
		names = DefaultTrunkNames
	}
	s := make(TrunkSet, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		s[strings.ToLower(n)] = struct{}{}
	}
	return s
}

// Has reports whether name is a trunk branch, ignoring case.
func (s TrunkSet) Has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// IsStacked reports whether a pull request targeting base is stacked.
func (s TrunkSet) IsStacked(base string) bool {
	return !s.Has(base)
}

// Classify builds the network-independent PRContext for a page view.
func (s TrunkSet) Classify(owner, repo, base, head string) PRContext {
	return PRContext{
		RepoOwner:   owner,
		RepoName:    repo,
		BaseBranch:  base,
		HeadBranch:  head,
		IsStackedPR: s.IsStacked(base),
	}
}
