package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS notes (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        title TEXT NOT NULL,
        subject TEXT NOT NULL DEFAULT '',
        content TEXT NOT NULL,
        embedding_json TEXT, -- JSON array of float32, NULL until attached
        uploaded_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_notes_user ON notes (user_id, uploaded_at);

    CREATE TABLE IF NOT EXISTS github_repos (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        repo_name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        language TEXT NOT NULL DEFAULT '',
        stars INTEGER NOT NULL DEFAULT 0,
        analysis_json TEXT,
        last_analyzed DATETIME,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_github_repos_user ON github_repos (user_id, created_at);

    CREATE TABLE IF NOT EXISTS placement_questions (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        company TEXT NOT NULL,
        topic TEXT NOT NULL,
        question TEXT NOT NULL,
        difficulty TEXT NOT NULL DEFAULT '',
        year INTEGER NOT NULL DEFAULT 0,
        embedding_json TEXT,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_placement_questions_user ON placement_questions (user_id, created_at);

    CREATE TABLE IF NOT EXISTS chat_sessions (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        messages_json TEXT NOT NULL DEFAULT '[]',
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// User methods
func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUserWhere(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUserWhere(ctx, "email = ?", email)
}

func (s *SQLiteStore) getUserWhere(ctx context.Context, where string, arg any) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE "+where, arg).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Note methods
const noteColumns = "id, user_id, title, subject, content, embedding_json, uploaded_at"

func scanNote(row rowScanner) (*Note, error) {
	var note Note
	var embeddingJSON sql.NullString
	if err := row.Scan(&note.ID, &note.UserID, &note.Title, &note.Subject, &note.Content, &embeddingJSON, &note.UploadedAt); err != nil {
		return nil, err
	}
	embedding, err := decodeEmbedding(embeddingJSON.String)
	if err != nil {
		return nil, fmt.Errorf("note %s: %w", note.ID, err)
	}
	note.Embedding = embedding
	return &note, nil
}

func (s *SQLiteStore) CreateNote(ctx context.Context, note *Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.UploadedAt.IsZero() {
		note.UploadedAt = now()
	}
	embeddingJSON, err := encodeEmbedding(note.Embedding)
	if err != nil {
		return err
	}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO notes ("+noteColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare note insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, note.ID, note.UserID, note.Title, note.Subject, note.Content, embeddingJSON, note.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to execute note insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetNote(ctx context.Context, id string) (*Note, error) {
	note, err := scanNote(s.db.QueryRowContext(ctx, "SELECT "+noteColumns+" FROM notes WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return note, nil
}

func (s *SQLiteStore) ListNotesByUser(ctx context.Context, userID string) ([]Note, error) {
	return s.queryNotes(ctx, "user_id = ?", userID)
}

func (s *SQLiteStore) ListNotesBySubject(ctx context.Context, userID, subject string) ([]Note, error) {
	return s.queryNotes(ctx, "user_id = ? AND subject = ?", userID, subject)
}

func (s *SQLiteStore) SearchNotes(ctx context.Context, userID, query string) ([]Note, error) {
	pattern := "%" + query + "%"
	return s.queryNotes(ctx, "user_id = ? AND (title LIKE ? OR content LIKE ?)", userID, pattern, pattern)
}

func (s *SQLiteStore) queryNotes(ctx context.Context, where string, args ...any) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE "+where+" ORDER BY uploaded_at DESC, rowid DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

func (s *SQLiteStore) UpdateNoteEmbedding(ctx context.Context, id string, embedding []float32) error {
	embeddingJSON, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	return s.execAffectingOne(ctx, "UPDATE notes SET embedding_json = ? WHERE id = ?", embeddingJSON, id)
}

func (s *SQLiteStore) DeleteNote(ctx context.Context, id string) error {
	return s.execAffectingOne(ctx, "DELETE FROM notes WHERE id = ?", id)
}

// GithubRepo methods
const repoColumns = "id, user_id, repo_name, description, language, stars, analysis_json, last_analyzed, created_at"

func scanRepo(row rowScanner) (*GithubRepo, error) {
	var repo GithubRepo
	var analysisJSON sql.NullString
	var lastAnalyzed sql.NullTime
	if err := row.Scan(&repo.ID, &repo.UserID, &repo.RepoName, &repo.Description, &repo.Language, &repo.Stars, &analysisJSON, &lastAnalyzed, &repo.CreatedAt); err != nil {
		return nil, err
	}
	analysis, err := decodeAnalysis(analysisJSON.String)
	if err != nil {
		return nil, fmt.Errorf("repo %s: %w", repo.ID, err)
	}
	repo.Analysis = analysis
	if lastAnalyzed.Valid {
		t := lastAnalyzed.Time
		repo.LastAnalyzed = &t
	}
	return &repo, nil
}

func (s *SQLiteStore) CreateGithubRepo(ctx context.Context, repo *GithubRepo) error {
	if repo.ID == "" {
		repo.ID = uuid.NewString()
	}
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now()
	}
	analysisJSON, err := encodeAnalysis(repo.Analysis)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO github_repos ("+repoColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		repo.ID, repo.UserID, repo.RepoName, repo.Description, repo.Language, repo.Stars, analysisJSON, repo.LastAnalyzed, repo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert github repo: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetGithubRepo(ctx context.Context, id string) (*GithubRepo, error) {
	repo, err := scanRepo(s.db.QueryRowContext(ctx, "SELECT "+repoColumns+" FROM github_repos WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get github repo: %w", err)
	}
	return repo, nil
}

func (s *SQLiteStore) ListGithubReposByUser(ctx context.Context, userID string) ([]GithubRepo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+repoColumns+" FROM github_repos WHERE user_id = ? ORDER BY created_at DESC, rowid DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query github repos: %w", err)
	}
	defer rows.Close()

	var repos []GithubRepo
	for rows.Next() {
		repo, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan github repo row: %w", err)
		}
		repos = append(repos, *repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating github repos: %w", err)
	}
	return repos, nil
}

func (s *SQLiteStore) UpdateGithubRepoAnalysis(ctx context.Context, id string, analysis *Analysis) error {
	analysisJSON, err := encodeAnalysis(analysis)
	if err != nil {
		return err
	}
	return s.execAffectingOne(ctx,
		"UPDATE github_repos SET analysis_json = ?, last_analyzed = ? WHERE id = ?", analysisJSON, now(), id)
}

// PlacementQuestion methods
const questionColumns = "id, user_id, company, topic, question, difficulty, year, embedding_json, created_at"

func scanQuestion(row rowScanner) (*PlacementQuestion, error) {
	var q PlacementQuestion
	var embeddingJSON sql.NullString
	if err := row.Scan(&q.ID, &q.UserID, &q.Company, &q.Topic, &q.Question, &q.Difficulty, &q.Year, &embeddingJSON, &q.CreatedAt); err != nil {
		return nil, err
	}
	embedding, err := decodeEmbedding(embeddingJSON.String)
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", q.ID, err)
	}
	q.Embedding = embedding
	return &q, nil
}

func (s *SQLiteStore) CreatePlacementQuestion(ctx context.Context, q *PlacementQuestion) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now()
	}
	embeddingJSON, err := encodeEmbedding(q.Embedding)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO placement_questions ("+questionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		q.ID, q.UserID, q.Company, q.Topic, q.Question, q.Difficulty, q.Year, embeddingJSON, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert placement question: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListPlacementQuestionsByUser(ctx context.Context, userID string) ([]PlacementQuestion, error) {
	return s.SearchPlacementQuestions(ctx, userID, QuestionFilter{})
}

func (s *SQLiteStore) SearchPlacementQuestions(ctx context.Context, userID string, filter QuestionFilter) ([]PlacementQuestion, error) {
	conditions := []string{"user_id = ?"}
	args := []any{userID}

	if filter.Company != "" {
		conditions = append(conditions, "company = ?")
		args = append(args, filter.Company)
	}
	if filter.Year != 0 {
		conditions = append(conditions, "year = ?")
		args = append(args, filter.Year)
	}
	if filter.Difficulty != "" {
		conditions = append(conditions, "difficulty = ?")
		args = append(args, filter.Difficulty)
	}
	if filter.Topic != "" {
		conditions = append(conditions, "topic LIKE ?")
		args = append(args, "%"+filter.Topic+"%")
	}

	query := "SELECT " + questionColumns + " FROM placement_questions WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query placement questions: %w", err)
	}
	defer rows.Close()

	var questions []PlacementQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan placement question row: %w", err)
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating placement questions: %w", err)
	}
	return questions, nil
}

func (s *SQLiteStore) UpdateQuestionEmbedding(ctx context.Context, id string, embedding []float32) error {
	embeddingJSON, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	return s.execAffectingOne(ctx, "UPDATE placement_questions SET embedding_json = ? WHERE id = ?", embeddingJSON, id)
}

// ChatSession methods
func scanSession(row rowScanner) (*ChatSession, error) {
	var session ChatSession
	var messagesJSON string
	if err := row.Scan(&session.ID, &session.UserID, &messagesJSON, &session.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("session %s: failed to unmarshal messages: %w", session.ID, err)
	}
	return &session, nil
}

func (s *SQLiteStore) CreateChatSession(ctx context.Context, session *ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Messages == nil {
		session.Messages = []ChatMessage{}
	}
	session.UpdatedAt = now()

	messagesJSON, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO chat_sessions (id, user_id, messages_json, updated_at) VALUES (?, ?, ?, ?)",
		session.ID, session.UserID, string(messagesJSON), session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chat session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetChatSession(ctx context.Context, id string) (*ChatSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx,
		"SELECT id, user_id, messages_json, updated_at FROM chat_sessions WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) ListChatSessionsByUser(ctx context.Context, userID string) ([]ChatSession, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, messages_json, updated_at FROM chat_sessions WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat sessions: %w", err)
	}
	defer rows.Close()

	var sessions []ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat session row: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat sessions: %w", err)
	}
	return sessions, nil
}

func (s *SQLiteStore) UpdateChatSession(ctx context.Context, id string, messages []ChatMessage) (*ChatSession, error) {
	if messages == nil {
		messages = []ChatMessage{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}
	if err := s.execAffectingOne(ctx,
		"UPDATE chat_sessions SET messages_json = ?, updated_at = ? WHERE id = ?", string(messagesJSON), now(), id); err != nil {
		return nil, err
	}
	return s.GetChatSession(ctx, id)
}

func (s *SQLiteStore) DeleteChatSessionsByUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chat_sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete chat sessions: %w", err)
	}
	return nil
}

// execAffectingOne runs a single-row statement and reports ErrNotFound when nothing matched.
func (s *SQLiteStore) execAffectingOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute %q: %w", firstWord(query), err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func firstWord(query string) string {
	if i := strings.IndexByte(query, ' '); i > 0 {
		return query[:i]
	}
	return query
}
