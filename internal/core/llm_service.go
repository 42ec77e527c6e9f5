package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
	"github.com/studyhub/assistant/internal/utils"
)

const (
	defaultGeminiChatModel      = "gemini-1.5-flash-latest"
	defaultGeminiEmbeddingModel = "text-embedding-004"
)

// ChatRequest is a single completion call. Messages may start with system
// messages; the last message must come from the user.
type ChatRequest struct {
	Messages    []store.ChatMessage
	MaxTokens   int32
	Temperature float32
}

type ChatCompleter interface {
	CompleteChat(ctx context.Context, req ChatRequest) (string, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Similarity(a, b []float32) float32
}

// GeminiProvider serves both chat completions and embeddings from one genai client.
type GeminiProvider struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	log            *logger.Logger
}

var (
	_ ChatCompleter     = (*GeminiProvider)(nil)
	_ EmbeddingProvider = (*GeminiProvider)(nil)
)

func NewGeminiProvider(ctx context.Context, apiKey string, log *logger.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingCredential)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiProvider{
		client:         client,
		chatModel:      defaultGeminiChatModel,
		embeddingModel: defaultGeminiEmbeddingModel,
		log:            log,
	}, nil
}

func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close GenAI client: %w", err)
	}
	p.log.Debug("GenAI client closed")
	return nil
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	em := p.client.EmbeddingModel(p.embeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (p *GeminiProvider) Similarity(a, b []float32) float32 {
	return similarity(a, b)
}

func (p *GeminiProvider) CompleteChat(ctx context.Context, req ChatRequest) (string, error) {
	system, history, last, err := toGeminiHistory(req.Messages)
	if err != nil {
		return "", err
	}

	model := p.client.GenerativeModel(p.chatModel)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	maxTokens := req.MaxTokens
	temperature := req.Temperature
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temperature,
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			p.log.Debug("skipping non-text gemini part", "type", fmt.Sprintf("%T", part))
		}
	}
	return text.String(), nil
}

// toGeminiHistory splits messages into a joined system instruction, the prior
// turns (assistant becomes "model") and the final user prompt.
func toGeminiHistory(messages []store.ChatMessage) (string, []*genai.Content, string, error) {
	var systemParts []string
	var turns []store.ChatMessage
	for _, m := range messages {
		if m.Role == store.RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 {
		return "", nil, "", fmt.Errorf("prompt history is empty for chat completion")
	}
	last := turns[len(turns)-1]
	if last.Role != store.RoleUser {
		return "", nil, "", fmt.Errorf("last message in history is not from the user")
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == store.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(systemParts, "\n\n"), history, last.Content, nil
}

// HashEmbedder is a local embedding provider for deployments without a Gemini key.
// Its vectors only capture shared words, which is enough for the secondary relevance signal.
type HashEmbedder struct {
	Dimensions int
}

var _ EmbeddingProvider = (*HashEmbedder)(nil)

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dimensions: 256}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return utils.HashEmbedding(text, h.Dimensions), nil
}

func (h *HashEmbedder) Similarity(a, b []float32) float32 {
	return similarity(a, b)
}

// similarity treats incomparable vectors (empty, or from a different model) as unrelated.
func similarity(a, b []float32) float32 {
	sim, err := utils.CosineSimilarity(a, b)
	if err != nil {
		return 0
	}
	return sim
}
