package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/studyhub/assistant/internal/logger"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(apiHandler.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/notes", apiHandler.ListNotesHandler)
			r.Post("/notes", apiHandler.CreateNoteHandler)
			r.Get("/notes/{noteID}", apiHandler.GetNoteHandler)
			r.Delete("/notes/{noteID}", apiHandler.DeleteNoteHandler)

			r.Get("/questions", apiHandler.ListQuestionsHandler)
			r.Post("/questions", apiHandler.CreateQuestionHandler)

			r.Get("/repos", apiHandler.ListReposHandler)
			r.Post("/repos/import", apiHandler.ImportReposHandler)
			r.Post("/repos/{repoID}/analyze", apiHandler.AnalyzeRepoHandler)

			r.Post("/search", apiHandler.SearchHandler)

			r.Get("/chats", apiHandler.ListChatsHandler)
			r.Post("/chats", apiHandler.CreateChatHandler)
			r.Delete("/chats", apiHandler.ClearChatsHandler)
			r.Post("/chats/{sessionID}/messages", apiHandler.PostMessageHandler)

			r.Post("/code/explain", apiHandler.ExplainCodeHandler)
		})
	})

	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
