package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/assistant/internal/store"
)

func hostFactory(host SourceHost, tokens *[]string) SourceHostFactory {
	return func(token string) (SourceHost, error) {
		*tokens = append(*tokens, token)
		return host, nil
	}
}

func TestImportRepositories(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	host := &fakeHost{repos: []HostRepo{
		{FullName: "ada/movies_website", Description: "Movies", Language: "JavaScript", Stars: 7, Private: true},
		{FullName: "ada/scratch", Private: true},
		{FullName: "ada/dotfiles", Private: false},
	}}
	var tokens []string
	svc := NewRepoService(st, hostFactory(host, &tokens), "", DefaultAnalyzerTables(), nopLogger())

	saved, err := svc.ImportRepositories(ctx, "u1", "gh-token")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, []string{"gh-token"}, tokens)
	assert.Equal(t, "ada/movies_website", saved[0].RepoName)
	assert.Equal(t, 7, saved[0].Stars)
	assert.Equal(t, "Unknown", saved[1].Language)
	assert.Equal(t, "", saved[1].Description)

	again, err := svc.ImportRepositories(ctx, "u1", "gh-token")
	require.NoError(t, err)
	assert.Empty(t, again, "already imported repositories are skipped")

	repos, err := svc.ListRepositories(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, repos, 2)
}

func TestImportRepositoriesUsesDefaultToken(t *testing.T) {
	var tokens []string
	svc := NewRepoService(newTestStore(t), hostFactory(&fakeHost{}, &tokens), "configured", DefaultAnalyzerTables(), nopLogger())

	_, err := svc.ImportRepositories(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"configured"}, tokens)
}

func TestImportRepositoriesWithoutToken(t *testing.T) {
	var tokens []string
	svc := NewRepoService(newTestStore(t), hostFactory(&fakeHost{}, &tokens), "", DefaultAnalyzerTables(), nopLogger())

	_, err := svc.ImportRepositories(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Empty(t, tokens)
}

func TestImportRepositoriesHostFailure(t *testing.T) {
	var tokens []string
	svc := NewRepoService(newTestStore(t), hostFactory(&fakeHost{listErr: errProvider}, &tokens), "tok", DefaultAnalyzerTables(), nopLogger())

	_, err := svc.ImportRepositories(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrImportFailed)
	assert.ErrorIs(t, err, errProvider)
}

func TestAnalyzeRepositoryByID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	repo := seedRepo(t, st, "u1", "ada/api")
	host := &fakeHost{
		entries: []HostEntry{{Name: "main.py", Type: "file"}},
		files:   map[string]string{"main.py": "from flask import Flask"},
		readme:  "",
	}
	var tokens []string
	svc := NewRepoService(st, hostFactory(host, &tokens), "tok", DefaultAnalyzerTables(), nopLogger())

	analysis, err := svc.AnalyzeRepository(ctx, "u1", repo.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Backend API service", analysis.Architecture)
	assert.Contains(t, analysis.Technologies, "python")

	_, err = svc.AnalyzeRepository(ctx, "u2", repo.ID, "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.AnalyzeRepository(ctx, "u1", "missing", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
