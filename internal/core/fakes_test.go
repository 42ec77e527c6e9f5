package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
)

var errProvider = errors.New("provider unavailable")

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeEmbedder returns vectors[text] when present and a fixed unit vector otherwise.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) Similarity(a, b []float32) float32 {
	return similarity(a, b)
}

type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []ChatRequest
}

func (f *fakeCompleter) CompleteChat(_ context.Context, req ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeCompleter) lastRequest(t *testing.T) ChatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

type fakeHost struct {
	repos     []HostRepo
	listErr   error
	files     map[string]string // path -> content
	entries   []HostEntry
	readme    string
	readmeErr error
	fileErr   map[string]error
	fetched   []string
}

func (f *fakeHost) ListAuthenticatedUserRepos(_ context.Context, _ RepoListOptions) ([]HostRepo, error) {
	return f.repos, f.listErr
}

func (f *fakeHost) GetContents(_ context.Context, _, _, path string) (*Contents, error) {
	f.fetched = append(f.fetched, path)
	if path == "" {
		return &Contents{Entries: f.entries}, nil
	}
	if err := f.fileErr[path]; err != nil {
		return nil, err
	}
	return &Contents{Content: f.files[path]}, nil
}

func (f *fakeHost) GetReadme(_ context.Context, _, _ string) (string, error) {
	return f.readme, f.readmeErr
}

func nopLogger() *logger.Logger { return logger.Nop() }
