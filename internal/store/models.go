package store

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

type Note struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Subject    string    `json:"subject"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"` // nil until attached
	UploadedAt time.Time `json:"uploaded_at"`
}

type PlacementQuestion struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Company    string    `json:"company"`
	Topic      string    `json:"topic"`
	Question   string    `json:"question"`
	Difficulty string    `json:"difficulty"`
	Year       int       `json:"year"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

type KeyFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Purpose string `json:"purpose"`
}

// Analysis is the structured summary derived from a repository's contents.
type Analysis struct {
	Summary      string    `json:"summary"`
	Technologies []string  `json:"technologies"`
	KeyFiles     []KeyFile `json:"keyFiles"`
	Architecture string    `json:"architecture"`
}

type GithubRepo struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	RepoName     string     `json:"repo_name"` // owner/name
	Description  string     `json:"description"`
	Language     string     `json:"language"`
	Stars        int        `json:"stars"`
	Analysis     *Analysis  `json:"analysis"` // nil until analyzed
	LastAnalyzed *time.Time `json:"last_analyzed"`
	CreatedAt    time.Time  `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatSession struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Messages  []ChatMessage `json:"messages"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// QuestionFilter narrows a placement question listing. Zero values are ignored;
// Topic matches as a substring, the rest match exactly.
type QuestionFilter struct {
	Company    string
	Year       int
	Difficulty string
	Topic      string
}
