package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
)

// LibraryService manages a user's notes and placement questions. Embeddings are
// attached after insert; an embedding failure is logged and leaves the record without one.
type LibraryService struct {
	store    store.Store
	embedder EmbeddingProvider
	log      *logger.Logger
}

func NewLibraryService(st store.Store, embedder EmbeddingProvider, log *logger.Logger) *LibraryService {
	return &LibraryService{store: st, embedder: embedder, log: log}
}

type NoteInput struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

func (s *LibraryService) CreateNote(ctx context.Context, userID string, in NoteInput) (*store.Note, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	}

	note := &store.Note{UserID: userID, Title: in.Title, Subject: in.Subject, Content: in.Content}
	if err := s.store.CreateNote(ctx, note); err != nil {
		return nil, err
	}

	if embedding, ok := s.embed(ctx, "note", note.ID, note.Content); ok {
		if err := s.store.UpdateNoteEmbedding(ctx, note.ID, embedding); err != nil {
			s.log.Warn("failed to store note embedding", "note_id", note.ID, "error", err)
		} else {
			note.Embedding = embedding
		}
	}
	return note, nil
}

// ListNotes filters by subject when given, then by a title/content search when given.
func (s *LibraryService) ListNotes(ctx context.Context, userID, subject, query string) ([]store.Note, error) {
	var notes []store.Note
	var err error
	switch {
	case query != "":
		notes, err = s.store.SearchNotes(ctx, userID, query)
	case subject != "":
		notes, err = s.store.ListNotesBySubject(ctx, userID, subject)
	default:
		notes, err = s.store.ListNotesByUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if query != "" && subject != "" {
		filtered := notes[:0]
		for _, n := range notes {
			if n.Subject == subject {
				filtered = append(filtered, n)
			}
		}
		notes = filtered
	}
	if notes == nil {
		notes = []store.Note{}
	}
	return notes, nil
}

// GetNote returns store.ErrNotFound for notes owned by someone else.
func (s *LibraryService) GetNote(ctx context.Context, userID, noteID string) (*store.Note, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.UserID != userID {
		return nil, store.ErrNotFound
	}
	return note, nil
}

func (s *LibraryService) DeleteNote(ctx context.Context, userID, noteID string) error {
	if _, err := s.GetNote(ctx, userID, noteID); err != nil {
		return err
	}
	return s.store.DeleteNote(ctx, noteID)
}

type QuestionInput struct {
	Company    string `json:"company"`
	Topic      string `json:"topic"`
	Question   string `json:"question"`
	Difficulty string `json:"difficulty"`
	Year       int    `json:"year"`
}

func (s *LibraryService) CreateQuestion(ctx context.Context, userID string, in QuestionInput) (*store.PlacementQuestion, error) {
	if strings.TrimSpace(in.Company) == "" || strings.TrimSpace(in.Topic) == "" || strings.TrimSpace(in.Question) == "" {
		return nil, fmt.Errorf("%w: company, topic and question are required", ErrInvalidInput)
	}

	q := &store.PlacementQuestion{
		UserID:     userID,
		Company:    in.Company,
		Topic:      in.Topic,
		Question:   in.Question,
		Difficulty: in.Difficulty,
		Year:       in.Year,
	}
	if err := s.store.CreatePlacementQuestion(ctx, q); err != nil {
		return nil, err
	}

	if embedding, ok := s.embed(ctx, "question", q.ID, q.Question); ok {
		if err := s.store.UpdateQuestionEmbedding(ctx, q.ID, embedding); err != nil {
			s.log.Warn("failed to store question embedding", "question_id", q.ID, "error", err)
		} else {
			q.Embedding = embedding
		}
	}
	return q, nil
}

func (s *LibraryService) ListQuestions(ctx context.Context, userID string, filter store.QuestionFilter) ([]store.PlacementQuestion, error) {
	questions, err := s.store.SearchPlacementQuestions(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []store.PlacementQuestion{}
	}
	return questions, nil
}

func (s *LibraryService) embed(ctx context.Context, kind, id, text string) ([]float32, bool) {
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.log.Warn("failed to embed "+kind, "id", id, "error", err)
		return nil, false
	}
	return embedding, true
}
