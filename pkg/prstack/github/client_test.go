package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestClient_Do(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		serverHandler  http.HandlerFunc
		wantErr        bool
		wantStatusCode int
		wantNextPage   int
	}{
		{
			name: "successful request",
			path: "/test",
			serverHandler: func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer test-token" {
					t.Errorf("Expected Authorization header with token")
				}
				if r.Header.Get("Accept") != "application/vnd.github.v3+json" {
					t.Errorf("Expected Accept header")
				}
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"test": "data"}`))
			},
		},
		{
			name: "api error 404",
			path: "/repos/o/r/branches/gone",
			serverHandler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"message": "Branch not found"}`))
			},
			wantErr:        true,
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "api error 401",
			path: "/repos/o/r/pulls",
			serverHandler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
			},
			wantErr:        true,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "pagination with next page",
			path: "/test",
			serverHandler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Link", `<https://api.github.com/test?page=2>; rel="next", <https://api.github.com/test?page=5>; rel="last"`)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`[]`))
			},
			wantNextPage: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.serverHandler)
			defer server.Close()

			client := &Client{HTTPClient: server.Client(), Token: "test-token", BaseURL: server.URL}

			data, resp, err := client.Do(context.Background(), tt.path)

			if tt.wantErr {
				var apiErr *Error
				if !errors.As(err, &apiErr) {
					t.Fatalf("Expected *Error, got %v", err)
				}
				if apiErr.StatusCode != tt.wantStatusCode {
					t.Errorf("Expected status code %d, got %d", tt.wantStatusCode, apiErr.StatusCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if data == nil {
				t.Errorf("Expected data but got nil")
			}
			if resp.NextPage != tt.wantNextPage {
				t.Errorf("NextPage = %d, want %d", resp.NextPage, tt.wantNextPage)
			}
		})
	}
}

func TestClient_DoWithoutToken(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := &Client{HTTPClient: server.Client(), BaseURL: server.URL}
	_, _, err := client.Do(context.Background(), "/anything")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}
	if called {
		t.Error("Expected no request to be made without a token")
	}
}

func TestClient_PullRequests(t *testing.T) {
	const perPage = 2
	pages := map[int]string{
		1: `[{"number": 1, "state": "closed", "head": {"ref": "a"}, "base": {"ref": "main"}},
		     {"number": 2, "state": "open", "head": {"ref": "b"}, "base": {"ref": "a"}}]`,
		2: `[{"number": 3, "state": "open", "head": {"ref": "c"}, "base": {"ref": "b"}}]`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/pulls" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("state") != StateAll {
			t.Errorf("state = %q, want all", q.Get("state"))
		}
		if q.Get("sort") != "created" || q.Get("direction") != "desc" {
			t.Errorf("expected newest-first ordering, got sort=%q direction=%q", q.Get("sort"), q.Get("direction"))
		}
		page, _ := strconv.Atoi(q.Get("page"))
		if page == 1 {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/owner/repo/pulls?page=2>; rel="next"`, "https://api.github.com"))
		}
		_, _ = w.Write([]byte(pages[page]))
	}))
	defer server.Close()

	client := &Client{HTTPClient: server.Client(), Token: "test-token", BaseURL: server.URL}
	prs, err := client.PullRequests(context.Background(), "owner", "repo", StateAll, perPage, 0)
	if err != nil {
		t.Fatalf("PullRequests() error = %v", err)
	}
	if len(prs) != 3 {
		t.Fatalf("Expected 3 pull requests, got %d", len(prs))
	}
	if prs[2].Head.Ref != "c" || prs[2].Base.Ref != "b" {
		t.Errorf("Unexpected third pull request: %+v", prs[2])
	}
}

func TestClient_PullRequestsPageLimitKeepsNewest(t *testing.T) {
	// Newest first, one pull request per page.
	pages := []string{
		`[{"number": 4, "head": {"ref": "d"}, "base": {"ref": "c"}}]`,
		`[{"number": 3, "head": {"ref": "c"}, "base": {"ref": "main"}}]`,
		`[{"number": 2, "head": {"ref": "b"}, "base": {"ref": "main"}}]`,
		`[{"number": 1, "head": {"ref": "a"}, "base": {"ref": "main"}}]`,
	}
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("direction") != "desc" {
			t.Errorf("direction = %q, want desc", r.URL.Query().Get("direction"))
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < len(pages) {
			w.Header().Set("Link", fmt.Sprintf(`<https://api.github.com/x?page=%d>; rel="next"`, page+1))
		}
		_, _ = w.Write([]byte(pages[page-1]))
	}))
	defer server.Close()

	client := &Client{HTTPClient: server.Client(), Token: "test-token", BaseURL: server.URL}

	tests := []struct {
		name     string
		maxPages int
		want     []int
	}{
		{name: "bounded", maxPages: 2, want: []int{4, 3}},
		{name: "unbounded", maxPages: 0, want: []int{4, 3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requests = 0
			prs, err := client.PullRequests(context.Background(), "owner", "repo", StateAll, 1, tt.maxPages)
			if err != nil {
				t.Fatalf("PullRequests() error = %v", err)
			}
			if requests != len(tt.want) {
				t.Errorf("Expected %d requests, got %d", len(tt.want), requests)
			}
			var got []int
			for _, pr := range prs {
				got = append(got, pr.Number)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("numbers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_Branch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/repos/owner/repo/branches/feature%2Fone" {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		_, _ = w.Write([]byte(`{"name": "feature/one", "commit": {"sha": "abc123"}}`))
	}))
	defer server.Close()

	client := &Client{HTTPClient: server.Client(), Token: "test-token", BaseURL: server.URL}
	b, err := client.Branch(context.Background(), "owner", "repo", "feature/one")
	if err != nil {
		t.Fatalf("Branch() error = %v", err)
	}
	if b.Commit.SHA != "abc123" {
		t.Errorf("SHA = %q, want abc123", b.Commit.SHA)
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{token: "", want: ""},
		{token: "short", want: "***"},
		{token: "ghp_1234567890abcd", want: "ghp_...abcd"},
	}
	for _, tt := range tests {
		if got := MaskToken(tt.token); got != tt.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestNextPage(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "empty", header: "", want: 0},
		{name: "last only", header: `<https://api.github.com/x?page=4>; rel="last"`, want: 0},
		{name: "next then last", header: `<https://api.github.com/x?page=3>; rel="next", <https://api.github.com/x?page=4>; rel="last"`, want: 3},
		{name: "prev then next", header: `<https://api.github.com/x?page=1>; rel="prev", <https://api.github.com/x?page=3>; rel="next"`, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextPage(tt.header); got != tt.want {
				t.Errorf("nextPage() = %d, want %d", got, tt.want)
			}
		})
	}
}
