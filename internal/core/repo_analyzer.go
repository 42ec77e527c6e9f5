package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
	"github.com/studyhub/assistant/internal/utils"
)

// PurposeRule labels a key file when its name equals Exact or contains any of Contains.
type PurposeRule struct {
	Exact    string
	Contains []string
	Purpose  string
}

func (r PurposeRule) matches(name string) bool {
	if r.Exact != "" && name == r.Exact {
		return true
	}
	for _, c := range r.Contains {
		if strings.Contains(name, c) {
			return true
		}
	}
	return false
}

type TechnologyRule struct {
	Name     string
	Keywords []string
}

// ArchitectureTable maps {backend file present} x {frontend technology present} to a label.
type ArchitectureTable struct {
	BackendFileMarkers   []string
	FrontendTechnologies []string
	FullStack            string
	Backend              string
	Frontend             string
	Fallback             string
}

type AnalyzerTables struct {
	KeyFileNames     []string
	MaxKeyFiles      int
	MaxFileChars     int
	Purposes         []PurposeRule
	DefaultPurpose   string
	Technologies     []TechnologyRule
	Architecture     ArchitectureTable
	SummaryMinLength int
	SummaryMaxLength int
}

func DefaultAnalyzerTables() AnalyzerTables {
	return AnalyzerTables{
		KeyFileNames: []string{"package.json", "requirements.txt", "app.js", "main.py", "index.js", "server.js"},
		MaxKeyFiles:  3,
		MaxFileChars: 1000,
		Purposes: []PurposeRule{
			{Exact: "package.json", Purpose: "Project dependencies and configuration"},
			{Exact: "requirements.txt", Purpose: "Python dependencies"},
			{Contains: []string{"app.", "server."}, Purpose: "Main application entry point"},
			{Contains: []string{"index."}, Purpose: "Application entry point"},
		},
		DefaultPurpose: "Configuration or main application file",
		Technologies: []TechnologyRule{
			{Name: "react", Keywords: []string{"react", "jsx", "create-react-app"}},
			{Name: "node.js", Keywords: []string{"node", "express", "npm"}},
			{Name: "python", Keywords: []string{"python", "django", "flask", "pip"}},
			{Name: "mongodb", Keywords: []string{"mongodb", "mongoose"}},
			{Name: "postgresql", Keywords: []string{"postgresql", "postgres", "pg"}},
			{Name: "javascript", Keywords: []string{"javascript", "js"}},
			{Name: "typescript", Keywords: []string{"typescript", "ts"}},
			{Name: "html", Keywords: []string{"html"}},
			{Name: "css", Keywords: []string{"css", "styling"}},
			{Name: "tailwind", Keywords: []string{"tailwind"}},
			{Name: "bootstrap", Keywords: []string{"bootstrap"}},
		},
		Architecture: ArchitectureTable{
			BackendFileMarkers:   []string{"server", "app.js", "main.py"},
			FrontendTechnologies: []string{"react", "html"},
			FullStack:            "Full-stack application",
			Backend:              "Backend API service",
			Frontend:             "Frontend application",
			Fallback:             "Application project",
		},
		SummaryMinLength: 20,
		SummaryMaxLength: 200,
	}
}

func InferPurpose(name string, tables AnalyzerTables) string {
	for _, rule := range tables.Purposes {
		if rule.matches(name) {
			return rule.Purpose
		}
	}
	return tables.DefaultPurpose
}

// ExtractTechnologies returns, in table order, every technology with a keyword
// contained in the lowercased key-file contents and README.
func ExtractTechnologies(keyFiles []store.KeyFile, readme string, rules []TechnologyRule) []string {
	parts := make([]string, 0, len(keyFiles))
	for _, f := range keyFiles {
		parts = append(parts, f.Content)
	}
	text := strings.ToLower(strings.Join(parts, " ") + " " + readme)

	techs := []string{}
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				techs = append(techs, rule.Name)
				break
			}
		}
	}
	return techs
}

// GenerateSummary prefers the first README line that is not a heading and is long
// enough to be prose; otherwise it describes the key files.
func GenerateSummary(readme string, keyFiles []store.KeyFile, tables AnalyzerTables) string {
	for _, line := range strings.Split(readme, "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len([]rune(line)) > tables.SummaryMinLength {
			return utils.Truncate(line, tables.SummaryMaxLength)
		}
	}

	if len(keyFiles) == 0 {
		return "Project with 0 key files"
	}
	names := make([]string, 0, len(keyFiles))
	for _, f := range keyFiles {
		names = append(names, f.Name)
	}
	return fmt.Sprintf("Project with %d key files including %s", len(keyFiles), strings.Join(names, ", "))
}

func InferArchitecture(keyFiles []store.KeyFile, technologies []string, table ArchitectureTable) string {
	backend := false
	for _, f := range keyFiles {
		for _, marker := range table.BackendFileMarkers {
			if strings.Contains(f.Name, marker) {
				backend = true
			}
		}
	}
	frontend := false
	for _, t := range technologies {
		for _, ft := range table.FrontendTechnologies {
			if t == ft {
				frontend = true
			}
		}
	}

	switch {
	case backend && frontend:
		return table.FullStack
	case backend:
		return table.Backend
	case frontend:
		return table.Frontend
	default:
		return table.Fallback
	}
}

// RepoAnalyzer inspects a repository on the source-control host and stores the resulting Analysis.
type RepoAnalyzer struct {
	store  store.Store
	host   SourceHost
	tables AnalyzerTables
	log    *logger.Logger
}

func NewRepoAnalyzer(st store.Store, host SourceHost, tables AnalyzerTables, log *logger.Logger) *RepoAnalyzer {
	return &RepoAnalyzer{store: st, host: host, tables: tables, log: log}
}

// Analyze fetches the root listing, README and key files of fullName ("owner/name"),
// classifies them and overwrites the repository's analysis. A missing README is
// tolerated; every other failure returns ErrAnalysisFailed and persists nothing.
func (a *RepoAnalyzer) Analyze(ctx context.Context, userID, repoID, fullName string) (*store.Analysis, error) {
	repo, err := a.store.GetGithubRepo(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	if repo.UserID != userID {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, store.ErrNotFound)
	}

	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("%w: invalid repository name %q", ErrAnalysisFailed, fullName)
	}

	root, err := a.host.GetContents(ctx, owner, name, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	readme, err := a.host.GetReadme(ctx, owner, name)
	if err != nil {
		if !errors.Is(err, ErrReadmeNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
		}
		a.log.Debug("repository has no README", "repo", fullName)
		readme = ""
	}

	keyFiles := []store.KeyFile{}
	for _, entry := range a.selectKeyFiles(root.Entries) {
		file, err := a.host.GetContents(ctx, owner, name, entry.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
		}
		keyFiles = append(keyFiles, store.KeyFile{
			Name:    entry.Name,
			Content: utils.Truncate(file.Content, a.tables.MaxFileChars),
			Purpose: InferPurpose(entry.Name, a.tables),
		})
	}

	technologies := ExtractTechnologies(keyFiles, readme, a.tables.Technologies)
	analysis := &store.Analysis{
		Summary:      GenerateSummary(readme, keyFiles, a.tables),
		Technologies: technologies,
		KeyFiles:     keyFiles,
		Architecture: InferArchitecture(keyFiles, technologies, a.tables.Architecture),
	}

	if err := a.store.UpdateGithubRepoAnalysis(ctx, repoID, analysis); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	a.log.Info("repository analyzed",
		"repo", fullName,
		"key_files", len(keyFiles),
		"technologies", technologies,
		"architecture", analysis.Architecture,
	)
	return analysis, nil
}

func (a *RepoAnalyzer) selectKeyFiles(entries []HostEntry) []HostEntry {
	var selected []HostEntry
	for _, e := range entries {
		if len(selected) == a.tables.MaxKeyFiles {
			break
		}
		if e.Type != "file" {
			continue
		}
		for _, candidate := range a.tables.KeyFileNames {
			if strings.Contains(e.Name, candidate) {
				selected = append(selected, e)
				break
			}
		}
	}
	return selected
}
