package core

import "errors"

var (
	ErrAnalysisFailed    = errors.New("failed to analyze repository")
	ErrSearchFailed      = errors.New("failed to generate answer")
	ErrImportFailed      = errors.New("failed to fetch repositories")
	ErrReadmeNotFound    = errors.New("readme not found")
	ErrMissingCredential = errors.New("missing credential")

	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
