package github

import "time"

// Pull request states accepted by the list endpoint.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateAll    = "all"
)

// Ref is one side (head or base) of a pull request.
type Ref struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// PullRequest represents a GitHub pull request from the list endpoint.
type PullRequest struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Head      Ref       `json:"head"`
	Base      Ref       `json:"base"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	Title     string    `json:"title"`
	Number    int       `json:"number"`
	Draft     bool      `json:"draft"`
}

// Branch represents a repository branch.
type Branch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
	Protected bool `json:"protected"`
}
