package core

import (
	"context"
	"fmt"

	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
)

var importListOptions = RepoListOptions{Visibility: "private", Sort: "updated", PerPage: 50}

// RepoService imports a user's repositories from the source-control host and runs analyses.
// Requests may carry their own token; otherwise the configured default is used.
type RepoService struct {
	store        store.Store
	newHost      SourceHostFactory
	defaultToken string
	tables       AnalyzerTables
	log          *logger.Logger
}

func NewRepoService(st store.Store, newHost SourceHostFactory, defaultToken string, tables AnalyzerTables, log *logger.Logger) *RepoService {
	return &RepoService{
		store:        st,
		newHost:      newHost,
		defaultToken: defaultToken,
		tables:       tables,
		log:          log,
	}
}

func (s *RepoService) host(token string) (SourceHost, error) {
	if token == "" {
		token = s.defaultToken
	}
	if token == "" {
		return nil, fmt.Errorf("%w: GitHub token not configured", ErrMissingCredential)
	}
	return s.newHost(token)
}

func (s *RepoService) ListRepositories(ctx context.Context, userID string) ([]store.GithubRepo, error) {
	return s.store.ListGithubReposByUser(ctx, userID)
}

// ImportRepositories stores the user's private repositories, skipping names already imported.
func (s *RepoService) ImportRepositories(ctx context.Context, userID, token string) ([]store.GithubRepo, error) {
	host, err := s.host(token)
	if err != nil {
		return nil, err
	}

	hostRepos, err := host.ListAuthenticatedUserRepos(ctx, importListOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}

	existing, err := s.store.ListGithubReposByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.RepoName] = true
	}

	saved := []store.GithubRepo{}
	for _, hr := range hostRepos {
		if !hr.Private || seen[hr.FullName] {
			continue
		}
		language := hr.Language
		if language == "" {
			language = "Unknown"
		}
		repo := store.GithubRepo{
			UserID:      userID,
			RepoName:    hr.FullName,
			Description: hr.Description,
			Language:    language,
			Stars:       hr.Stars,
		}
		if err := s.store.CreateGithubRepo(ctx, &repo); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
		}
		seen[hr.FullName] = true
		saved = append(saved, repo)
	}

	s.log.Info("repositories imported", "user_id", userID, "listed", len(hostRepos), "saved", len(saved))
	return saved, nil
}

// AnalyzeRepository analyzes one of the user's stored repositories by its record ID.
func (s *RepoService) AnalyzeRepository(ctx context.Context, userID, repoID, token string) (*store.Analysis, error) {
	repo, err := s.store.GetGithubRepo(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if repo.UserID != userID {
		return nil, store.ErrNotFound
	}

	host, err := s.host(token)
	if err != nil {
		return nil, err
	}
	return NewRepoAnalyzer(s.store, host, s.tables, s.log).Analyze(ctx, userID, repoID, repo.RepoName)
}
