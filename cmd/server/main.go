package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/studyhub/assistant/internal/api"
	"github.com/studyhub/assistant/internal/auth"
	"github.com/studyhub/assistant/internal/config"
	"github.com/studyhub/assistant/internal/core"
	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
)

// app holds everything the commands share. close releases provider and database handles.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    store.Store
	services api.Services
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("failed to release resource", "error", err)
		}
	}
	a.log.Sync()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	llm, embedder, err := a.providers(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	composer := core.NewAnswerComposer(llm, log)
	rag := core.NewRAGService(st, embedder, composer, core.DefaultRelevanceConfig(), log)
	a.services = api.Services{
		Accounts: core.NewAccountService(st, auth.NewTokenSigner(cfg.JWTSecret, auth.DefaultTokenTTL), log),
		Library:  core.NewLibraryService(st, embedder, log),
		Repos:    core.NewRepoService(st, core.GitHubHostFactory, cfg.GitHubToken, core.DefaultAnalyzerTables(), log),
		RAG:      rag,
		Chat:     core.NewChatService(st, rag, composer, log),
	}
	return a, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return store.NewGormStore(config.DriverPostgres, cfg.DatabaseURL)
	default:
		return store.NewSQLiteStore(cfg.DatabaseURL)
	}
}

// providers picks the chat model from LLM_PROVIDER. Embeddings come from Gemini when a
// key is available and from the local hash embedder otherwise.
func (a *app) providers(ctx context.Context) (core.ChatCompleter, core.EmbeddingProvider, error) {
	var gemini *core.GeminiProvider
	if a.cfg.GeminiAPIKey != "" {
		p, err := core.NewGeminiProvider(ctx, a.cfg.GeminiAPIKey, a.log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Gemini provider: %w", err)
		}
		gemini = p
		a.closers = append(a.closers, p.Close)
	}

	var embedder core.EmbeddingProvider = core.NewHashEmbedder()
	if gemini != nil {
		embedder = gemini
	} else {
		a.log.Warn("GEMINI_API_KEY not set, using local hash embeddings")
	}

	if a.cfg.LLMProvider == config.ProviderGroq {
		groq, err := core.NewOpenAICompatProvider(a.cfg.GroqBaseURL, a.cfg.GroqAPIKey, a.log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Groq provider: %w", err)
		}
		return groq, embedder, nil
	}
	if gemini == nil {
		return nil, nil, fmt.Errorf("%w: GEMINI_API_KEY is required for LLM_PROVIDER=gemini", core.ErrMissingCredential)
	}
	return gemini, embedder, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "assistant",
		Short:         "Study assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newImportReposCmd(), newAnalyzeRepoCmd(), newAskCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve()
		},
	}
}

func (a *app) serve() error {
	router := api.NewRouter(api.NewAPIHandler(a.services, a.log))
	serverAddr := fmt.Sprintf(":%s", a.cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // model calls can take a while
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting server", "addr", serverAddr, "llm_provider", a.cfg.LLMProvider, "database", a.cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	case <-quit:
	}
	a.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server exited gracefully")
	return nil
}

func newImportReposCmd() *cobra.Command {
	var userID, token string
	cmd := &cobra.Command{
		Use:   "import-repos",
		Short: "Import a user's private GitHub repositories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			saved, err := a.services.Repos.ImportRepositories(cmd.Context(), userID, token)
			if err != nil {
				return err
			}
			for _, r := range saved {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.ID, r.RepoName)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d repositories\n", len(saved))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID to import for")
	cmd.Flags().StringVar(&token, "token", "", "GitHub token (defaults to GITHUB_TOKEN)")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newAnalyzeRepoCmd() *cobra.Command {
	var userID, repoID, token string
	cmd := &cobra.Command{
		Use:   "analyze-repo",
		Short: "Analyze an imported repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			analysis, err := a.services.Repos.AnalyzeRepository(cmd.Context(), userID, repoID, token)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Summary: %s\nArchitecture: %s\nTechnologies: %v\n", analysis.Summary, analysis.Architecture, analysis.Technologies)
			for _, f := range analysis.KeyFiles {
				fmt.Fprintf(out, "- %s: %s\n", f.Name, f.Purpose)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner of the repository")
	cmd.Flags().StringVar(&repoID, "repo", "", "repository record ID")
	cmd.Flags().StringVar(&token, "token", "", "GitHub token (defaults to GITHUB_TOKEN)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("repo")
	return cmd
}

func newAskCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Answer a question from a user's materials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.services.RAG.Search(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Answer)
			if len(result.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
			}
			for _, s := range result.Sources {
				fmt.Fprintf(out, "- [%s] %s (%.2f)\n", s.Type, s.Title, s.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID whose materials are searched")
	cmd.MarkFlagRequired("user")
	return cmd
}
