package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
)

// chatHistoryLimit bounds how many prior messages are sent to the model.
const chatHistoryLimit = 10

type ChatService struct {
	store    store.Store
	rag      *RAGService
	composer *AnswerComposer
	log      *logger.Logger
}

func NewChatService(st store.Store, rag *RAGService, composer *AnswerComposer, log *logger.Logger) *ChatService {
	return &ChatService{store: st, rag: rag, composer: composer, log: log}
}

func (s *ChatService) ListSessions(ctx context.Context, userID string) ([]store.ChatSession, error) {
	sessions, err := s.store.ListChatSessionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []store.ChatSession{}
	}
	return sessions, nil
}

func (s *ChatService) CreateSession(ctx context.Context, userID string) (*store.ChatSession, error) {
	session := &store.ChatSession{UserID: userID}
	if err := s.store.CreateChatSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return session, nil
}

// PostMessage appends the user's message, answers it from the conversation and the
// user's retrieved materials, and stores both turns.
func (s *ChatService) PostMessage(ctx context.Context, userID, sessionID, content string) (*store.ChatSession, *store.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, fmt.Errorf("%w: message content cannot be empty", ErrInvalidInput)
	}

	session, err := s.store.GetChatSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.UserID != userID {
		return nil, nil, store.ErrNotFound
	}

	messages := append(session.Messages, store.ChatMessage{Role: store.RoleUser, Content: content})

	// Retrieval failures degrade to an answer without context.
	_, contextText, err := s.rag.Retrieve(ctx, userID, content)
	if err != nil {
		s.log.Warn("failed to retrieve chat context, proceeding without it", "session_id", sessionID, "error", err)
		contextText = ""
	}

	history := messages
	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}
	reply := store.ChatMessage{Role: store.RoleAssistant, Content: s.composer.Chat(ctx, history, contextText)}
	messages = append(messages, reply)

	updated, err := s.store.UpdateChatSession(ctx, sessionID, messages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update chat session: %w", err)
	}
	return updated, &reply, nil
}

func (s *ChatService) ClearSessions(ctx context.Context, userID string) error {
	return s.store.DeleteChatSessionsByUser(ctx, userID)
}

func (s *ChatService) ExplainCode(ctx context.Context, code, language string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if language == "" {
		language = "unknown"
	}
	return s.composer.ExplainCode(ctx, code, language), nil
}
