package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/studyhub/assistant/internal/store"
	"github.com/studyhub/assistant/internal/utils"
)

const (
	SourceNote     = "note"
	SourceQuestion = "question"
	SourceGithub   = "github"
)

// Source is one retrieved item handed to the model as context.
type Source struct {
	Type    string  `json:"type"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"relevance"`
}

type RelevanceConfig struct {
	// ProjectVocabulary marks a query as being about the user's own repositories.
	ProjectVocabulary   []string
	SimilarityThreshold float32
	MaxNotes            int
	MaxQuestions        int
	MaxRepos            int
	TopK                int
	NotePreviewLength   int
	RepoKeyFiles        int
}

func DefaultRelevanceConfig() RelevanceConfig {
	return RelevanceConfig{
		ProjectVocabulary: []string{
			"file", "structure", "project", "repo", "code", "folder",
			"directory", "architecture", "technology", "stack", "github",
		},
		SimilarityThreshold: 0.3,
		MaxNotes:            3,
		MaxQuestions:        2,
		MaxRepos:            3,
		TopK:                5,
		NotePreviewLength:   500,
		RepoKeyFiles:        3,
	}
}

// ContainsQuery reports whether any field contains the whole query, ignoring case.
// A blank query matches nothing.
func ContainsQuery(query string, fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// EmbeddingMatches reports whether a stored embedding is close enough to the query embedding.
// Records without an embedding never match.
func EmbeddingMatches(similarity func(a, b []float32) float32, stored, query []float32, threshold float32) bool {
	if len(stored) == 0 || len(query) == 0 {
		return false
	}
	return similarity(stored, query) > threshold
}

// ScoreRelevance is the fraction of query words that appear in content.
func ScoreRelevance(content, query string) float64 {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	found := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			found++
		}
	}
	return float64(found) / float64(len(words))
}

func IsProjectQuery(query string, vocabulary []string) bool {
	q := strings.ToLower(query)
	for _, term := range vocabulary {
		if strings.Contains(q, term) {
			return true
		}
	}
	return false
}

type matcher struct {
	cfg        RelevanceConfig
	query      string
	embedding  []float32
	similarity func(a, b []float32) float32
}

func (m matcher) keep(stored []float32, fields ...string) bool {
	return ContainsQuery(m.query, fields...) ||
		EmbeddingMatches(m.similarity, stored, m.embedding, m.cfg.SimilarityThreshold)
}

func (m matcher) notes(notes []store.Note) []store.Note {
	var out []store.Note
	for _, n := range notes {
		if len(out) == m.cfg.MaxNotes {
			break
		}
		if m.keep(n.Embedding, n.Content, n.Title) {
			out = append(out, n)
		}
	}
	return out
}

func (m matcher) questions(questions []store.PlacementQuestion) []store.PlacementQuestion {
	var out []store.PlacementQuestion
	for _, q := range questions {
		if len(out) == m.cfg.MaxQuestions {
			break
		}
		if m.keep(q.Embedding, q.Question, q.Topic) {
			out = append(out, q)
		}
	}
	return out
}

// SelectRepos applies the repository rules: whole-query match on name, description
// or analysis; any query word longer than two characters in name or description;
// or an analyzed repo when the query is about projects.
func SelectRepos(repos []store.GithubRepo, query string, cfg RelevanceConfig) []store.GithubRepo {
	q := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(q)
	project := IsProjectQuery(q, cfg.ProjectVocabulary)

	var out []store.GithubRepo
	for _, r := range repos {
		name := strings.ToLower(r.RepoName)
		description := strings.ToLower(r.Description)

		exact := ContainsQuery(q, name, description, analysisText(r.Analysis))
		partial := false
		for _, w := range words {
			if len(w) > 2 && (strings.Contains(name, w) || strings.Contains(description, w)) {
				partial = true
				break
			}
		}
		if exact || partial || (project && r.Analysis != nil) {
			out = append(out, r)
		}
	}

	if len(out) == 0 && project {
		for _, r := range repos {
			if r.Analysis != nil {
				out = append(out, r)
			}
		}
	}
	if len(out) > cfg.MaxRepos {
		out = out[:cfg.MaxRepos]
	}
	return out
}

func analysisText(a *store.Analysis) string {
	if a == nil {
		return ""
	}
	b, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return string(b)
}

func noteSource(n store.Note, query string, previewLength int) Source {
	content := n.Content
	if preview := utils.Truncate(content, previewLength); preview != content {
		content = preview + "..."
	}
	return Source{
		Type:    SourceNote,
		Title:   n.Title,
		Content: content,
		Score:   ScoreRelevance(n.Content, query),
	}
}

func questionSource(q store.PlacementQuestion, query string) Source {
	return Source{
		Type:    SourceQuestion,
		Title:   q.Company + " - " + q.Topic,
		Content: q.Question,
		Score:   ScoreRelevance(q.Question, query),
	}
}

func repoSource(r store.GithubRepo, query string, keyFiles int) Source {
	return Source{
		Type:    SourceGithub,
		Title:   r.RepoName,
		Content: FormatRepoContent(r, keyFiles),
		Score:   ScoreRelevance(r.RepoName+" "+r.Description+" "+analysisText(r.Analysis), query),
	}
}

// FormatRepoContent renders a repository and its analysis as a plain-text block.
func FormatRepoContent(r store.GithubRepo, keyFiles int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", r.RepoName)
	if r.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", r.Description)
	}
	if r.Language != "" {
		fmt.Fprintf(&b, "Primary Language: %s\n", r.Language)
	}
	if r.Stars != 0 {
		fmt.Fprintf(&b, "Stars: %d\n", r.Stars)
	}

	a := r.Analysis
	if a == nil {
		return b.String()
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "\nSummary: %s\n", a.Summary)
	}
	if a.Technologies != nil {
		fmt.Fprintf(&b, "Technologies: %s\n", strings.Join(a.Technologies, ", "))
	}
	if a.Architecture != "" {
		fmt.Fprintf(&b, "Architecture: %s\n", a.Architecture)
	}
	if a.KeyFiles != nil {
		b.WriteString("\nKey Files:\n")
		for i, f := range a.KeyFiles {
			if i == keyFiles {
				break
			}
			purpose := f.Purpose
			if purpose == "" {
				purpose = "No description"
			}
			fmt.Fprintf(&b, "- %s: %s\n", f.Name, purpose)
		}
	}
	return b.String()
}

// rankSources orders by score, keeping selection order among equal scores, and keeps the top k.
func rankSources(sources []Source, k int) []Source {
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Score > sources[j].Score
	})
	if len(sources) > k {
		sources = sources[:k]
	}
	return sources
}

// BuildContext joins sources into "[TYPE] Title:\ncontent" blocks separated by a blank line.
func BuildContext(sources []Source) string {
	blocks := make([]string, 0, len(sources))
	for _, s := range sources {
		blocks = append(blocks, fmt.Sprintf("[%s] %s:\n%s", strings.ToUpper(s.Type), s.Title, s.Content))
	}
	return strings.Join(blocks, "\n\n")
}
