package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type userRow struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type noteRow struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	UserID     string    `gorm:"type:varchar(36);not null;index"`
	Title      string    `gorm:"not null"`
	Subject    string    `gorm:"not null;default:''"`
	Content    string    `gorm:"type:text;not null"`
	Embedding  *string   `gorm:"type:text"`
	UploadedAt time.Time `gorm:"not null;index"`
}

func (noteRow) TableName() string { return "notes" }

type repoRow struct {
	ID           string  `gorm:"type:varchar(36);primaryKey"`
	UserID       string  `gorm:"type:varchar(36);not null;index"`
	RepoName     string  `gorm:"not null"`
	Description  string  `gorm:"type:text;not null;default:''"`
	Language     string  `gorm:"not null;default:''"`
	Stars        int     `gorm:"not null;default:0"`
	Analysis     *string `gorm:"type:text"`
	LastAnalyzed *time.Time
	CreatedAt    time.Time `gorm:"not null;index"`
}

func (repoRow) TableName() string { return "github_repos" }

type questionRow struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	UserID     string    `gorm:"type:varchar(36);not null;index"`
	Company    string    `gorm:"not null"`
	Topic      string    `gorm:"not null"`
	Question   string    `gorm:"type:text;not null"`
	Difficulty string    `gorm:"not null;default:''"`
	Year       int       `gorm:"not null;default:0"`
	Embedding  *string   `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (questionRow) TableName() string { return "placement_questions" }

type chatSessionRow struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	UserID    string         `gorm:"type:varchar(36);not null;index"`
	Messages  datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null;index"`
}

func (chatSessionRow) TableName() string { return "chat_sessions" }

// GormStore implements Store on top of gorm. Postgres is the production dialect;
// SQLite is accepted so the same code path runs in tests.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&userRow{}, &noteRow{}, &repoRow{}, &questionRow{}, &chatSessionRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func affectedOne(res *gorm.DB, what string) error {
	if res.Error != nil {
		return fmt.Errorf("failed to %s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	row := userRow{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return row.toModel(), nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (r userRow) toModel() *User {
	return &User{ID: r.ID, Email: r.Email, PasswordHash: r.PasswordHash, CreatedAt: r.CreatedAt}
}

// Notes

func (s *GormStore) CreateNote(ctx context.Context, note *Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.UploadedAt.IsZero() {
		note.UploadedAt = now()
	}
	embedding, err := encodeEmbedding(note.Embedding)
	if err != nil {
		return err
	}
	row := noteRow{
		ID:         note.ID,
		UserID:     note.UserID,
		Title:      note.Title,
		Subject:    note.Subject,
		Content:    note.Content,
		Embedding:  embedding,
		UploadedAt: note.UploadedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

func (s *GormStore) GetNote(ctx context.Context, id string) (*Note, error) {
	var row noteRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

func (s *GormStore) ListNotesByUser(ctx context.Context, userID string) ([]Note, error) {
	return s.findNotes(s.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (s *GormStore) ListNotesBySubject(ctx context.Context, userID, subject string) ([]Note, error) {
	return s.findNotes(s.db.WithContext(ctx).Where("user_id = ? AND subject = ?", userID, subject))
}

func (s *GormStore) SearchNotes(ctx context.Context, userID, query string) ([]Note, error) {
	pattern := "%" + query + "%"
	return s.findNotes(s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("title LIKE ? OR content LIKE ?", pattern, pattern))
}

func (s *GormStore) findNotes(tx *gorm.DB) ([]Note, error) {
	var rows []noteRow
	if err := tx.Order("uploaded_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	notes := make([]Note, 0, len(rows))
	for _, row := range rows {
		note, err := row.toModel()
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}
	return notes, nil
}

func (s *GormStore) UpdateNoteEmbedding(ctx context.Context, id string, embedding []float32) error {
	encoded, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&noteRow{}).Where("id = ?", id).Update("embedding", encoded)
	return affectedOne(res, "update note embedding")
}

func (s *GormStore) DeleteNote(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&noteRow{})
	return affectedOne(res, "delete note")
}

func (r noteRow) toModel() (*Note, error) {
	note := &Note{
		ID:         r.ID,
		UserID:     r.UserID,
		Title:      r.Title,
		Subject:    r.Subject,
		Content:    r.Content,
		UploadedAt: r.UploadedAt,
	}
	if r.Embedding != nil {
		embedding, err := decodeEmbedding(*r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("note %s: %w", r.ID, err)
		}
		note.Embedding = embedding
	}
	return note, nil
}

// Github repos

func (s *GormStore) CreateGithubRepo(ctx context.Context, repo *GithubRepo) error {
	if repo.ID == "" {
		repo.ID = uuid.NewString()
	}
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now()
	}
	analysis, err := encodeAnalysis(repo.Analysis)
	if err != nil {
		return err
	}
	row := repoRow{
		ID:           repo.ID,
		UserID:       repo.UserID,
		RepoName:     repo.RepoName,
		Description:  repo.Description,
		Language:     repo.Language,
		Stars:        repo.Stars,
		Analysis:     analysis,
		LastAnalyzed: repo.LastAnalyzed,
		CreatedAt:    repo.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert github repo: %w", err)
	}
	return nil
}

func (s *GormStore) GetGithubRepo(ctx context.Context, id string) (*GithubRepo, error) {
	var row repoRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

func (s *GormStore) ListGithubReposByUser(ctx context.Context, userID string) ([]GithubRepo, error) {
	var rows []repoRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query github repos: %w", err)
	}
	repos := make([]GithubRepo, 0, len(rows))
	for _, row := range rows {
		repo, err := row.toModel()
		if err != nil {
			return nil, err
		}
		repos = append(repos, *repo)
	}
	return repos, nil
}

func (s *GormStore) UpdateGithubRepoAnalysis(ctx context.Context, id string, analysis *Analysis) error {
	encoded, err := encodeAnalysis(analysis)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&repoRow{}).Where("id = ?", id).Updates(map[string]any{
		"analysis":      encoded,
		"last_analyzed": now(),
	})
	return affectedOne(res, "update github repo analysis")
}

func (r repoRow) toModel() (*GithubRepo, error) {
	repo := &GithubRepo{
		ID:           r.ID,
		UserID:       r.UserID,
		RepoName:     r.RepoName,
		Description:  r.Description,
		Language:     r.Language,
		Stars:        r.Stars,
		LastAnalyzed: r.LastAnalyzed,
		CreatedAt:    r.CreatedAt,
	}
	if r.Analysis != nil {
		analysis, err := decodeAnalysis(*r.Analysis)
		if err != nil {
			return nil, fmt.Errorf("repo %s: %w", r.ID, err)
		}
		repo.Analysis = analysis
	}
	return repo, nil
}

// Placement questions

func (s *GormStore) CreatePlacementQuestion(ctx context.Context, q *PlacementQuestion) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now()
	}
	embedding, err := encodeEmbedding(q.Embedding)
	if err != nil {
		return err
	}
	row := questionRow{
		ID:         q.ID,
		UserID:     q.UserID,
		Company:    q.Company,
		Topic:      q.Topic,
		Question:   q.Question,
		Difficulty: q.Difficulty,
		Year:       q.Year,
		Embedding:  embedding,
		CreatedAt:  q.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert placement question: %w", err)
	}
	return nil
}

func (s *GormStore) ListPlacementQuestionsByUser(ctx context.Context, userID string) ([]PlacementQuestion, error) {
	return s.SearchPlacementQuestions(ctx, userID, QuestionFilter{})
}

func (s *GormStore) SearchPlacementQuestions(ctx context.Context, userID string, filter QuestionFilter) ([]PlacementQuestion, error) {
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Company != "" {
		tx = tx.Where("company = ?", filter.Company)
	}
	if filter.Year != 0 {
		tx = tx.Where("year = ?", filter.Year)
	}
	if filter.Difficulty != "" {
		tx = tx.Where("difficulty = ?", filter.Difficulty)
	}
	if filter.Topic != "" {
		tx = tx.Where("topic LIKE ?", "%"+filter.Topic+"%")
	}

	var rows []questionRow
	if err := tx.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query placement questions: %w", err)
	}
	questions := make([]PlacementQuestion, 0, len(rows))
	for _, row := range rows {
		q, err := row.toModel()
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, nil
}

func (s *GormStore) UpdateQuestionEmbedding(ctx context.Context, id string, embedding []float32) error {
	encoded, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&questionRow{}).Where("id = ?", id).Update("embedding", encoded)
	return affectedOne(res, "update question embedding")
}

func (r questionRow) toModel() (*PlacementQuestion, error) {
	q := &PlacementQuestion{
		ID:         r.ID,
		UserID:     r.UserID,
		Company:    r.Company,
		Topic:      r.Topic,
		Question:   r.Question,
		Difficulty: r.Difficulty,
		Year:       r.Year,
		CreatedAt:  r.CreatedAt,
	}
	if r.Embedding != nil {
		embedding, err := decodeEmbedding(*r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", r.ID, err)
		}
		q.Embedding = embedding
	}
	return q, nil
}

// Chat sessions

func (s *GormStore) CreateChatSession(ctx context.Context, session *ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Messages == nil {
		session.Messages = []ChatMessage{}
	}
	session.UpdatedAt = now()

	messages, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	row := chatSessionRow{
		ID:        session.ID,
		UserID:    session.UserID,
		Messages:  datatypes.JSON(messages),
		UpdatedAt: session.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert chat session: %w", err)
	}
	return nil
}

func (s *GormStore) GetChatSession(ctx context.Context, id string) (*ChatSession, error) {
	var row chatSessionRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toModel()
}

func (s *GormStore) ListChatSessionsByUser(ctx context.Context, userID string) ([]ChatSession, error) {
	var rows []chatSessionRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query chat sessions: %w", err)
	}
	sessions := make([]ChatSession, 0, len(rows))
	for _, row := range rows {
		session, err := row.toModel()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

func (s *GormStore) UpdateChatSession(ctx context.Context, id string, messages []ChatMessage) (*ChatSession, error) {
	if messages == nil {
		messages = []ChatMessage{}
	}
	encoded, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}
	res := s.db.WithContext(ctx).Model(&chatSessionRow{}).Where("id = ?", id).Updates(map[string]any{
		"messages":   datatypes.JSON(encoded),
		"updated_at": now(),
	})
	if err := affectedOne(res, "update chat session"); err != nil {
		return nil, err
	}
	return s.GetChatSession(ctx, id)
}

func (s *GormStore) DeleteChatSessionsByUser(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&chatSessionRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete chat sessions: %w", err)
	}
	return nil
}

func (r chatSessionRow) toModel() (*ChatSession, error) {
	session := &ChatSession{ID: r.ID, UserID: r.UserID, UpdatedAt: r.UpdatedAt}
	if err := json.Unmarshal(r.Messages, &session.Messages); err != nil {
		return nil, fmt.Errorf("session %s: failed to unmarshal messages: %w", r.ID, err)
	}
	return session, nil
}
