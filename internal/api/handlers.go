package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/studyhub/assistant/internal/core"
	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
)

type contextKey string

const userIDKey contextKey = "userID"

type Services struct {
	Accounts *core.AccountService
	Library  *core.LibraryService
	Repos    *core.RepoService
	RAG      *core.RAGService
	Chat     *core.ChatService
}

type APIHandler struct {
	services Services
	log      *logger.Logger
}

func NewAPIHandler(services Services, log *logger.Logger) *APIHandler {
	return &APIHandler{services: services, log: log}
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// fail writes the error envelope for err. Server-side failures are logged with their cause.
func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error, action string) {
	status, code, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(action, "user_id", userIDFrom(r.Context()), "path", r.URL.Path, "error", err)
	} else {
		h.log.Debug(action, "user_id", userIDFrom(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeError(w, status, code, message)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		user, err := h.services.Accounts.Authenticate(r.Context(), tokenString)
		if err != nil {
			h.fail(w, r, err, "failed to authenticate request")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.services.Accounts.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err, "failed to sign up user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  *store.User `json:"user"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Email and password are required")
		return
	}

	token, user, err := h.services.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err, "failed to log in user")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

func (h *APIHandler) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notes, err := h.services.Library.ListNotes(r.Context(), userIDFrom(r.Context()), q.Get("subject"), q.Get("q"))
	if err != nil {
		h.fail(w, r, err, "failed to list notes")
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *APIHandler) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req core.NoteInput
	if !decodeBody(w, r, &req) {
		return
	}

	note, err := h.services.Library.CreateNote(r.Context(), userIDFrom(r.Context()), req)
	if err != nil {
		h.fail(w, r, err, "failed to create note")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *APIHandler) GetNoteHandler(w http.ResponseWriter, r *http.Request) {
	note, err := h.services.Library.GetNote(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "noteID"))
	if err != nil {
		h.fail(w, r, err, "failed to get note")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *APIHandler) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Library.DeleteNote(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "noteID")); err != nil {
		h.fail(w, r, err, "failed to delete note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ListQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.QuestionFilter{
		Company:    q.Get("company"),
		Difficulty: q.Get("difficulty"),
		Topic:      q.Get("topic"),
	}
	if year := q.Get("year"); year != "" {
		parsed, err := strconv.Atoi(year)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "year must be a number")
			return
		}
		filter.Year = parsed
	}

	questions, err := h.services.Library.ListQuestions(r.Context(), userIDFrom(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err, "failed to list questions")
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *APIHandler) CreateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req core.QuestionInput
	if !decodeBody(w, r, &req) {
		return
	}

	question, err := h.services.Library.CreateQuestion(r.Context(), userIDFrom(r.Context()), req)
	if err != nil {
		h.fail(w, r, err, "failed to create question")
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (h *APIHandler) ListReposHandler(w http.ResponseWriter, r *http.Request) {
	repos, err := h.services.Repos.ListRepositories(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "failed to list repositories")
		return
	}
	if repos == nil {
		repos = []store.GithubRepo{}
	}
	writeJSON(w, http.StatusOK, repos)
}

// GitHubTokenRequest optionally overrides the server's configured GitHub token.
type GitHubTokenRequest struct {
	GitHubToken string `json:"github_token"`
}

func decodeOptionalToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req GitHubTokenRequest
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return "", true
	}
	if !decodeBody(w, r, &req) {
		return "", false
	}
	return req.GitHubToken, true
}

type ImportReposResponse struct {
	Imported     int                `json:"imported"`
	Repositories []store.GithubRepo `json:"repositories"`
}

func (h *APIHandler) ImportReposHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := decodeOptionalToken(w, r)
	if !ok {
		return
	}

	saved, err := h.services.Repos.ImportRepositories(r.Context(), userIDFrom(r.Context()), token)
	if err != nil {
		h.fail(w, r, err, "failed to import repositories")
		return
	}
	writeJSON(w, http.StatusOK, ImportReposResponse{Imported: len(saved), Repositories: saved})
}

func (h *APIHandler) AnalyzeRepoHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := decodeOptionalToken(w, r)
	if !ok {
		return
	}

	analysis, err := h.services.Repos.AnalyzeRepository(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "repoID"), token)
	if err != nil {
		h.fail(w, r, err, "failed to analyze repository")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type SearchRequest struct {
	Query string `json:"query"`
}

func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Query cannot be empty")
		return
	}

	result, err := h.services.RAG.Search(r.Context(), userIDFrom(r.Context()), req.Query)
	if err != nil {
		h.fail(w, r, err, "failed to search")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.services.Chat.ListSessions(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "failed to list chats")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.services.Chat.CreateSession(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "failed to create chat")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *APIHandler) ClearChatsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Chat.ClearSessions(r.Context(), userIDFrom(r.Context())); err != nil {
		h.fail(w, r, err, "failed to clear chats")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

type PostMessageResponse struct {
	Session *store.ChatSession `json:"session"`
	Reply   *store.ChatMessage `json:"reply"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, reply, err := h.services.Chat.PostMessage(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "sessionID"), req.Content)
	if err != nil {
		h.fail(w, r, err, "failed to post message")
		return
	}
	writeJSON(w, http.StatusOK, PostMessageResponse{Session: session, Reply: reply})
}

type ExplainCodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (h *APIHandler) ExplainCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req ExplainCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	explanation, err := h.services.Chat.ExplainCode(r.Context(), req.Code, req.Language)
	if err != nil {
		h.fail(w, r, err, "failed to explain code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"explanation": explanation})
}
