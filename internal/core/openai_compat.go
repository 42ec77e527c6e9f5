package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/studyhub/assistant/internal/logger"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqModel   = "llama-3.1-8b-instant"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int32           `json:"max_tokens"`
	Temperature float32         `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAICompatProvider talks to any OpenAI-compatible chat completions endpoint.
// The default target is Groq.
type OpenAICompatProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

var _ ChatCompleter = (*OpenAICompatProvider)(nil)

type OpenAICompatOption func(*OpenAICompatProvider)

func WithHTTPClient(c *http.Client) OpenAICompatOption {
	return func(p *OpenAICompatProvider) { p.httpClient = c }
}

func WithModel(model string) OpenAICompatOption {
	return func(p *OpenAICompatProvider) { p.model = model }
}

func WithRateLimit(limit rate.Limit, burst int) OpenAICompatOption {
	return func(p *OpenAICompatProvider) { p.limiter = rate.NewLimiter(limit, burst) }
}

func NewOpenAICompatProvider(baseURL, apiKey string, log *logger.Logger, opts ...OpenAICompatOption) (*OpenAICompatProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GROQ_API_KEY", ErrMissingCredential)
	}
	if baseURL == "" {
		baseURL = DefaultGroqBaseURL
	}
	p := &OpenAICompatProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   defaultGroqModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		// Groq's free tier allows 30 requests per minute.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		log:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *OpenAICompatProvider) CompleteChat(ctx context.Context, req ChatRequest) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	body := chatCompletionRequest{
		Model:       p.model,
		Messages:    make([]openAIMessage, 0, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	p.log.Debug("chat completion finished", "model", p.model, "duration", time.Since(start), "choices", len(out.Choices))

	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}
