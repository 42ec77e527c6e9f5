package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
)

// HostRepo is a repository as listed by the source-control host.
type HostRepo struct {
	FullName    string
	Description string
	Language    string
	Stars       int
	Private     bool
}

type HostEntry struct {
	Name string
	Path string
	Type string // "file" or "dir"
}

// Contents is either a decoded file (Content) or a directory listing (Entries).
type Contents struct {
	Content string
	Entries []HostEntry
}

type RepoListOptions struct {
	Visibility string
	Sort       string
	PerPage    int
}

type SourceHost interface {
	ListAuthenticatedUserRepos(ctx context.Context, opts RepoListOptions) ([]HostRepo, error)
	GetContents(ctx context.Context, owner, repo, path string) (*Contents, error)
	// GetReadme returns ErrReadmeNotFound when the repository has no README.
	GetReadme(ctx context.Context, owner, repo string) (string, error)
}

// SourceHostFactory builds a host client authenticated with a user's token.
type SourceHostFactory func(token string) (SourceHost, error)

// GitHubHost implements SourceHost on the GitHub REST API.
type GitHubHost struct {
	client *github.Client
}

var _ SourceHost = (*GitHubHost)(nil)

func NewGitHubHost(token string) (*GitHubHost, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: GitHub token", ErrMissingCredential)
	}
	return &GitHubHost{client: github.NewClient(nil).WithAuthToken(token)}, nil
}

// NewGitHubHostWithBaseURL points the client at a GitHub Enterprise or test server.
func NewGitHubHostWithBaseURL(token, baseURL string) (*GitHubHost, error) {
	host, err := NewGitHubHost(token)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
	}
	host.client.BaseURL = u
	return host, nil
}

// GitHubHostFactory is the production SourceHostFactory.
func GitHubHostFactory(token string) (SourceHost, error) {
	return NewGitHubHost(token)
}

func (h *GitHubHost) ListAuthenticatedUserRepos(ctx context.Context, opts RepoListOptions) ([]HostRepo, error) {
	repos, _, err := h.client.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{
		Visibility:  opts.Visibility,
		Sort:        opts.Sort,
		ListOptions: github.ListOptions{PerPage: opts.PerPage},
	})
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	out := make([]HostRepo, 0, len(repos))
	for _, r := range repos {
		out = append(out, HostRepo{
			FullName:    r.GetFullName(),
			Description: r.GetDescription(),
			Language:    r.GetLanguage(),
			Stars:       r.GetStargazersCount(),
			Private:     r.GetPrivate(),
		})
	}
	return out, nil
}

func (h *GitHubHost) GetContents(ctx context.Context, owner, repo, path string) (*Contents, error) {
	file, dir, _, err := h.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return nil, fmt.Errorf("get contents %s/%s/%s: %w", owner, repo, path, err)
	}

	if file != nil {
		content, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return &Contents{Content: content}, nil
	}

	entries := make([]HostEntry, 0, len(dir))
	for _, e := range dir {
		entries = append(entries, HostEntry{Name: e.GetName(), Path: e.GetPath(), Type: e.GetType()})
	}
	return &Contents{Entries: entries}, nil
}

func (h *GitHubHost) GetReadme(ctx context.Context, owner, repo string) (string, error) {
	readme, _, err := h.client.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return "", ErrReadmeNotFound
		}
		return "", fmt.Errorf("get readme %s/%s: %w", owner, repo, err)
	}
	content, err := readme.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode readme: %w", err)
	}
	return content, nil
}
