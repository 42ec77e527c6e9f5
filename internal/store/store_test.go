package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract. Both backends must pass it unchanged.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Notes", func(t *testing.T) { testNotes(t, newStore(t)) })
	t.Run("GithubRepos", func(t *testing.T) { testGithubRepos(t, newStore(t)) })
	t.Run("PlacementQuestions", func(t *testing.T) { testPlacementQuestions(t, newStore(t)) })
	t.Run("ChatSessions", func(t *testing.T) { testChatSessions(t, newStore(t)) })
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "ada@example.com", "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)

	got, err := s.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	_, err = s.CreateUser(ctx, "ada@example.com", "other")
	assert.Error(t, err, "email must be unique")

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testNotes(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	older := &Note{UserID: "u1", Title: "Graphs", Subject: "algorithms", Content: "Dijkstra finds shortest paths", UploadedAt: base}
	newer := &Note{UserID: "u1", Title: "Joins", Subject: "databases", Content: "Hash joins build a table", UploadedAt: base.Add(time.Hour)}
	foreign := &Note{UserID: "u2", Title: "Graphs", Subject: "algorithms", Content: "BFS", UploadedAt: base}
	for _, n := range []*Note{older, newer, foreign} {
		require.NoError(t, s.CreateNote(ctx, n))
		assert.NotEmpty(t, n.ID)
	}

	notes, err := s.ListNotesByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, newer.ID, notes[0].ID, "newest first")
	assert.Nil(t, notes[0].Embedding)

	notes, err = s.ListNotesBySubject(ctx, "u1", "algorithms")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, older.ID, notes[0].ID)

	notes, err = s.SearchNotes(ctx, "u1", "shortest")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Graphs", notes[0].Title)

	require.NoError(t, s.UpdateNoteEmbedding(ctx, older.ID, []float32{0.5, -1, 2}))
	got, err := s.GetNote(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2}, got.Embedding)

	assert.ErrorIs(t, s.UpdateNoteEmbedding(ctx, "missing", []float32{1}), ErrNotFound)

	require.NoError(t, s.DeleteNote(ctx, older.ID))
	_, err = s.GetNote(ctx, older.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteNote(ctx, older.ID), ErrNotFound)
}

func testGithubRepos(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &GithubRepo{UserID: "u1", RepoName: "ada/dijkstra", Language: "Go", Stars: 3, CreatedAt: base}
	second := &GithubRepo{UserID: "u1", RepoName: "ada/movies_website", Description: "Movie site", Language: "JavaScript", CreatedAt: base.Add(time.Minute)}
	require.NoError(t, s.CreateGithubRepo(ctx, first))
	require.NoError(t, s.CreateGithubRepo(ctx, second))

	repos, err := s.ListGithubReposByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "ada/movies_website", repos[0].RepoName)
	assert.Nil(t, repos[0].Analysis)
	assert.Nil(t, repos[0].LastAnalyzed)

	analysis := &Analysis{
		Summary:      "A movie catalogue",
		Technologies: []string{"react", "node.js"},
		KeyFiles:     []KeyFile{{Name: "package.json", Content: "{}", Purpose: "Project dependencies and configuration"}},
		Architecture: "Full-stack application",
	}
	require.NoError(t, s.UpdateGithubRepoAnalysis(ctx, second.ID, analysis))

	got, err := s.GetGithubRepo(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, *analysis, *got.Analysis)
	require.NotNil(t, got.LastAnalyzed)

	replacement := &Analysis{Summary: "Rewritten", Technologies: []string{}, KeyFiles: []KeyFile{}, Architecture: "Application project"}
	require.NoError(t, s.UpdateGithubRepoAnalysis(ctx, second.ID, replacement))
	got, err = s.GetGithubRepo(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rewritten", got.Analysis.Summary)

	assert.ErrorIs(t, s.UpdateGithubRepoAnalysis(ctx, "missing", analysis), ErrNotFound)
	_, err = s.GetGithubRepo(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testPlacementQuestions(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	questions := []*PlacementQuestion{
		{UserID: "u1", Company: "Acme", Topic: "Graph algorithms", Question: "Explain Dijkstra", Difficulty: "medium", Year: 2024, CreatedAt: base},
		{UserID: "u1", Company: "Acme", Topic: "Databases", Question: "What is an index?", Difficulty: "easy", Year: 2023, CreatedAt: base.Add(time.Minute)},
		{UserID: "u1", Company: "Globex", Topic: "Graphs", Question: "Detect a cycle", Difficulty: "hard", Year: 2024, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, q := range questions {
		require.NoError(t, s.CreatePlacementQuestion(ctx, q))
	}

	all, err := s.ListPlacementQuestionsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Detect a cycle", all[0].Question)

	byCompany, err := s.SearchPlacementQuestions(ctx, "u1", QuestionFilter{Company: "Acme"})
	require.NoError(t, err)
	assert.Len(t, byCompany, 2)

	byTopic, err := s.SearchPlacementQuestions(ctx, "u1", QuestionFilter{Topic: "Graph", Year: 2024})
	require.NoError(t, err)
	assert.Len(t, byTopic, 2)

	none, err := s.SearchPlacementQuestions(ctx, "u1", QuestionFilter{Difficulty: "impossible"})
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.UpdateQuestionEmbedding(ctx, questions[0].ID, []float32{1, 0}))
	all, err = s.ListPlacementQuestionsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, all[2].Embedding)
}

func testChatSessions(t *testing.T, s Store) {
	ctx := context.Background()

	session := &ChatSession{UserID: "u1"}
	require.NoError(t, s.CreateChatSession(ctx, session))
	assert.NotEmpty(t, session.ID)
	assert.Empty(t, session.Messages)

	messages := []ChatMessage{
		{Role: RoleUser, Content: "What is Dijkstra?"},
		{Role: RoleAssistant, Content: "A shortest path algorithm."},
	}
	updated, err := s.UpdateChatSession(ctx, session.ID, messages)
	require.NoError(t, err)
	assert.Equal(t, messages, updated.Messages)
	assert.False(t, updated.UpdatedAt.Before(session.UpdatedAt))

	sessions, err := s.ListChatSessionsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Len(t, sessions[0].Messages, 2)

	_, err = s.UpdateChatSession(ctx, "missing", messages)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteChatSessionsByUser(ctx, "u1"))
	_, err = s.GetChatSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
