package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Store is the persistence contract shared by the SQLite and gorm backends.
// Every list query returns the newest record first.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	CreateNote(ctx context.Context, note *Note) error
	GetNote(ctx context.Context, id string) (*Note, error)
	ListNotesByUser(ctx context.Context, userID string) ([]Note, error)
	ListNotesBySubject(ctx context.Context, userID, subject string) ([]Note, error)
	SearchNotes(ctx context.Context, userID, query string) ([]Note, error)
	UpdateNoteEmbedding(ctx context.Context, id string, embedding []float32) error
	DeleteNote(ctx context.Context, id string) error

	CreateGithubRepo(ctx context.Context, repo *GithubRepo) error
	GetGithubRepo(ctx context.Context, id string) (*GithubRepo, error)
	ListGithubReposByUser(ctx context.Context, userID string) ([]GithubRepo, error)
	UpdateGithubRepoAnalysis(ctx context.Context, id string, analysis *Analysis) error

	CreatePlacementQuestion(ctx context.Context, q *PlacementQuestion) error
	ListPlacementQuestionsByUser(ctx context.Context, userID string) ([]PlacementQuestion, error)
	SearchPlacementQuestions(ctx context.Context, userID string, filter QuestionFilter) ([]PlacementQuestion, error)
	UpdateQuestionEmbedding(ctx context.Context, id string, embedding []float32) error

	CreateChatSession(ctx context.Context, session *ChatSession) error
	GetChatSession(ctx context.Context, id string) (*ChatSession, error)
	ListChatSessionsByUser(ctx context.Context, userID string) ([]ChatSession, error)
	UpdateChatSession(ctx context.Context, id string, messages []ChatMessage) (*ChatSession, error)
	DeleteChatSessionsByUser(ctx context.Context, userID string) error

	Close() error
}

func now() time.Time {
	return time.Now().UTC()
}

// encodeEmbedding serializes an embedding for a text column. A nil embedding stays NULL.
func encodeEmbedding(embedding []float32) (*string, error) {
	if embedding == nil {
		return nil, nil
	}
	b, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}
	s := string(b)
	return &s, nil
}

func decodeEmbedding(raw string) ([]float32, error) {
	if raw == "" {
		return nil, nil
	}
	var embedding []float32
	if err := json.Unmarshal([]byte(raw), &embedding); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}
	return embedding, nil
}

func encodeAnalysis(analysis *Analysis) (*string, error) {
	if analysis == nil {
		return nil, nil
	}
	b, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis: %w", err)
	}
	s := string(b)
	return &s, nil
}

func decodeAnalysis(raw string) (*Analysis, error) {
	if raw == "" {
		return nil, nil
	}
	var analysis Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	return &analysis, nil
}
