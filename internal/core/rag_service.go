package core

import (
	"context"
	"fmt"

	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
)

type SearchResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// RAGService retrieves a user's notes, placement questions and repositories
// relevant to a query and asks the composer to answer from them.
type RAGService struct {
	store    store.Store
	embedder EmbeddingProvider
	composer *AnswerComposer
	cfg      RelevanceConfig
	log      *logger.Logger
}

func NewRAGService(st store.Store, embedder EmbeddingProvider, composer *AnswerComposer, cfg RelevanceConfig, log *logger.Logger) *RAGService {
	return &RAGService{
		store:    st,
		embedder: embedder,
		composer: composer,
		cfg:      cfg,
		log:      log,
	}
}

func (s *RAGService) Search(ctx context.Context, userID, query string) (*SearchResult, error) {
	sources, contextText, err := s.Retrieve(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Answer:  s.composer.Answer(ctx, query, contextText),
		Sources: sources,
	}, nil
}

// Retrieve returns the ranked sources for query and the context block built from them.
// Any failure is reported as ErrSearchFailed and nothing partial is returned.
func (s *RAGService) Retrieve(ctx context.Context, userID, query string) ([]Source, string, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, "", fmt.Errorf("%w: query embedding: %w", ErrSearchFailed, err)
	}

	notes, err := s.store.ListNotesByUser(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	questions, err := s.store.ListPlacementQuestionsByUser(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	repos, err := s.store.ListGithubReposByUser(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	m := matcher{cfg: s.cfg, query: query, embedding: queryEmbedding, similarity: s.embedder.Similarity}
	relevantNotes := m.notes(notes)
	relevantQuestions := m.questions(questions)
	relevantRepos := SelectRepos(repos, query, s.cfg)

	sources := make([]Source, 0, len(relevantNotes)+len(relevantQuestions)+len(relevantRepos))
	for _, n := range relevantNotes {
		sources = append(sources, noteSource(n, query, s.cfg.NotePreviewLength))
	}
	for _, q := range relevantQuestions {
		sources = append(sources, questionSource(q, query))
	}
	for _, r := range relevantRepos {
		sources = append(sources, repoSource(r, query, s.cfg.RepoKeyFiles))
	}
	sources = rankSources(sources, s.cfg.TopK)

	s.log.Debug("retrieved sources",
		"user_id", userID,
		"notes", len(relevantNotes),
		"questions", len(relevantQuestions),
		"repos", len(relevantRepos),
		"kept", len(sources),
	)
	return sources, BuildContext(sources), nil
}
