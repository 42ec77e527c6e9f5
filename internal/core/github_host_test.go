package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitHubTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /user/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		assert.Equal(t, "private", r.URL.Query().Get("visibility"))
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"full_name": "ada/movies_website", "description": "Movies", "language": "JavaScript", "stargazers_count": 7, "private": true},
			{"full_name": "ada/dotfiles", "private": false},
		})
	})

	mux.HandleFunc("GET /repos/ada/movies_website/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("path") {
		case "":
			json.NewEncoder(w).Encode([]map[string]any{
				{"type": "file", "name": "package.json", "path": "package.json"},
				{"type": "dir", "name": "src", "path": "src"},
			})
		case "package.json":
			json.NewEncoder(w).Encode(map[string]any{
				"type":     "file",
				"name":     "package.json",
				"path":     "package.json",
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte(`{"name":"movies"}`)),
			})
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("GET /repos/ada/movies_website/readme", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"type":     "file",
			"name":     "README.md",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("# Movies\nBrowse movies.")),
		})
	})

	mux.HandleFunc("GET /repos/ada/empty/readme", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	})

	mux.HandleFunc("GET /repos/ada/down/readme", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGitHubHost(t *testing.T) *GitHubHost {
	t.Helper()
	srv := newGitHubTestServer(t)
	host, err := NewGitHubHostWithBaseURL("gh-token", srv.URL)
	require.NoError(t, err)
	return host
}

func TestGitHubHostListRepos(t *testing.T) {
	host := newTestGitHubHost(t)

	repos, err := host.ListAuthenticatedUserRepos(context.Background(), importListOptions)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, HostRepo{FullName: "ada/movies_website", Description: "Movies", Language: "JavaScript", Stars: 7, Private: true}, repos[0])
	assert.False(t, repos[1].Private)
}

func TestGitHubHostGetContents(t *testing.T) {
	host := newTestGitHubHost(t)
	ctx := context.Background()

	root, err := host.GetContents(ctx, "ada", "movies_website", "")
	require.NoError(t, err)
	assert.Equal(t, []HostEntry{
		{Name: "package.json", Path: "package.json", Type: "file"},
		{Name: "src", Path: "src", Type: "dir"},
	}, root.Entries)

	file, err := host.GetContents(ctx, "ada", "movies_website", "package.json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"movies"}`, file.Content)

	_, err = host.GetContents(ctx, "ada", "movies_website", "missing.txt")
	assert.Error(t, err)
}

func TestGitHubHostGetReadme(t *testing.T) {
	host := newTestGitHubHost(t)
	ctx := context.Background()

	readme, err := host.GetReadme(ctx, "ada", "movies_website")
	require.NoError(t, err)
	assert.Equal(t, "# Movies\nBrowse movies.", readme)

	_, err = host.GetReadme(ctx, "ada", "empty")
	assert.ErrorIs(t, err, ErrReadmeNotFound)

	_, err = host.GetReadme(ctx, "ada", "down")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReadmeNotFound)
}

func TestNewGitHubHostRequiresToken(t *testing.T) {
	_, err := NewGitHubHost("")
	assert.ErrorIs(t, err, ErrMissingCredential)
}
