package core

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/studyhub/assistant/internal/auth"
	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
)

const minPasswordLength = 8

type AccountService struct {
	store  store.Store
	tokens *auth.TokenSigner
	log    *logger.Logger
}

func NewAccountService(st store.Store, tokens *auth.TokenSigner, log *logger.Logger) *AccountService {
	return &AccountService{store: st, tokens: tokens, log: log}
}

func (s *AccountService) Signup(ctx context.Context, email, password string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := s.store.CreateUser(ctx, email, hash)
	if err != nil {
		return nil, err
	}
	s.log.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// Login returns a signed token for valid credentials.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Authenticate resolves a bearer token to an existing user.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*store.User, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}
