package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/assistant/internal/store"
)

func TestInferPurpose(t *testing.T) {
	tables := DefaultAnalyzerTables()
	tests := map[string]string{
		"package.json":      "Project dependencies and configuration",
		"requirements.txt":  "Python dependencies",
		"app.js":            "Main application entry point",
		"server.js":         "Main application entry point",
		"index.js":          "Application entry point",
		"main.py":           "Configuration or main application file",
		"package.json.bak":  "Configuration or main application file",
		"old-server.config": "Main application entry point",
	}
	for name, want := range tests {
		assert.Equal(t, want, InferPurpose(name, tables), name)
	}
}

func TestExtractTechnologies(t *testing.T) {
	rules := DefaultAnalyzerTables().Technologies
	files := []store.KeyFile{{Name: "package.json", Content: `{"dependencies": {"React": "18", "express": "4"}}`}}

	got := ExtractTechnologies(files, "Styled with Tailwind.", rules)
	assert.Equal(t, []string{"react", "node.js", "tailwind"}, got)

	assert.Empty(t, ExtractTechnologies(nil, "", rules))
}

func TestExtractTechnologiesUsesInjectedRules(t *testing.T) {
	rules := []TechnologyRule{{Name: "go", Keywords: []string{"go.mod"}}}
	got := ExtractTechnologies([]store.KeyFile{{Content: "module x // go.mod"}}, "", rules)
	assert.Equal(t, []string{"go"}, got)
}

func TestGenerateSummary(t *testing.T) {
	tables := DefaultAnalyzerTables()

	readme := "# Movies\n\nshort line\n## Setup\nA website for browsing and rating movies with friends.\nMore text here that is long enough."
	assert.Equal(t, "A website for browsing and rating movies with friends.", GenerateSummary(readme, nil, tables))

	long := strings.Repeat("a", 300)
	assert.Equal(t, strings.Repeat("a", 200), GenerateSummary(long, nil, tables))

	files := []store.KeyFile{{Name: "package.json"}, {Name: "server.js"}}
	assert.Equal(t, "Project with 2 key files including package.json, server.js", GenerateSummary("# Only a heading", files, tables))

	assert.Equal(t, "Project with 0 key files", GenerateSummary("", nil, tables))
}

func TestInferArchitectureTable(t *testing.T) {
	table := DefaultAnalyzerTables().Architecture
	backendFiles := []store.KeyFile{{Name: "server.js"}}
	otherFiles := []store.KeyFile{{Name: "package.json"}}

	tests := []struct {
		name  string
		files []store.KeyFile
		techs []string
		want  string
	}{
		{"backend and frontend", backendFiles, []string{"react"}, "Full-stack application"},
		{"backend only", backendFiles, []string{"node.js"}, "Backend API service"},
		{"frontend only", otherFiles, []string{"html"}, "Frontend application"},
		{"neither", otherFiles, nil, "Application project"},
		{"main.py is backend", []store.KeyFile{{Name: "main.py"}}, nil, "Backend API service"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferArchitecture(tt.files, tt.techs, table))
		})
	}
}

func seedRepo(t *testing.T, st store.Store, userID, name string) *store.GithubRepo {
	t.Helper()
	repo := &store.GithubRepo{UserID: userID, RepoName: name}
	require.NoError(t, st.CreateGithubRepo(context.Background(), repo))
	return repo
}

func TestAnalyzeFullStackRepository(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	repo := seedRepo(t, st, "u1", "ada/movies_website")

	host := &fakeHost{
		entries: []HostEntry{
			{Name: "src", Type: "dir"},
			{Name: "package.json", Type: "file"},
			{Name: "README.md", Type: "file"},
			{Name: "server.js", Type: "file"},
			{Name: "index.js", Type: "file"},
			{Name: "app.js", Type: "file"},
		},
		files: map[string]string{
			"package.json": `{"dependencies": {"react": "18", "mongoose": "8"}}` + strings.Repeat(" ", 2000),
			"server.js":    "const express = require('express')",
			"index.js":     "import App from './App'",
		},
		readme: "# Movies\nA website for browsing and rating movies.",
	}

	analysis, err := NewRepoAnalyzer(st, host, DefaultAnalyzerTables(), nopLogger()).Analyze(ctx, "u1", repo.ID, repo.RepoName)
	require.NoError(t, err)

	require.Len(t, analysis.KeyFiles, 3)
	assert.Equal(t, []string{"package.json", "server.js", "index.js"},
		[]string{analysis.KeyFiles[0].Name, analysis.KeyFiles[1].Name, analysis.KeyFiles[2].Name})
	assert.Len(t, analysis.KeyFiles[0].Content, 1000)
	assert.Equal(t, "Main application entry point", analysis.KeyFiles[1].Purpose)
	assert.Contains(t, analysis.Technologies, "react")
	assert.Contains(t, analysis.Technologies, "mongodb")
	assert.Equal(t, "Full-stack application", analysis.Architecture)
	assert.Equal(t, "A website for browsing and rating movies.", analysis.Summary)
	assert.NotContains(t, host.fetched, "app.js", "at most three key files are fetched")

	stored, err := st.GetGithubRepo(ctx, repo.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Analysis)
	assert.Equal(t, *analysis, *stored.Analysis)
	assert.NotNil(t, stored.LastAnalyzed)
}

func TestAnalyzeEmptyRepositoryFallsBack(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	repo := seedRepo(t, st, "u1", "ada/empty")

	host := &fakeHost{readmeErr: ErrReadmeNotFound}
	analysis, err := NewRepoAnalyzer(st, host, DefaultAnalyzerTables(), nopLogger()).Analyze(ctx, "u1", repo.ID, repo.RepoName)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(analysis.Summary, "Project with 0 key files"))
	assert.Equal(t, "Application project", analysis.Architecture)
	assert.Empty(t, analysis.KeyFiles)
	assert.Empty(t, analysis.Technologies)
}

func TestAnalyzeAbortsOnFetchError(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	repo := seedRepo(t, st, "u1", "ada/broken")

	host := &fakeHost{
		entries: []HostEntry{{Name: "package.json", Type: "file"}},
		fileErr: map[string]error{"package.json": errProvider},
	}
	_, err := NewRepoAnalyzer(st, host, DefaultAnalyzerTables(), nopLogger()).Analyze(ctx, "u1", repo.ID, repo.RepoName)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.ErrorIs(t, err, errProvider)

	stored, err := st.GetGithubRepo(ctx, repo.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Analysis, "nothing is persisted on failure")
}

func TestAnalyzeAbortsOnReadmeError(t *testing.T) {
	st := newTestStore(t)
	repo := seedRepo(t, st, "u1", "ada/broken")

	host := &fakeHost{readmeErr: errProvider}
	_, err := NewRepoAnalyzer(st, host, DefaultAnalyzerTables(), nopLogger()).Analyze(context.Background(), "u1", repo.ID, repo.RepoName)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestAnalyzeRejectsForeignRepository(t *testing.T) {
	st := newTestStore(t)
	repo := seedRepo(t, st, "u2", "eve/secret")

	_, err := NewRepoAnalyzer(st, &fakeHost{}, DefaultAnalyzerTables(), nopLogger()).Analyze(context.Background(), "u1", repo.ID, repo.RepoName)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzeRejectsMalformedName(t *testing.T) {
	st := newTestStore(t)
	repo := seedRepo(t, st, "u1", "noslash")

	_, err := NewRepoAnalyzer(st, &fakeHost{}, DefaultAnalyzerTables(), nopLogger()).Analyze(context.Background(), "u1", repo.ID, repo.RepoName)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}
