package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/studyhub/assistant/internal/logger"
	"github.com/studyhub/assistant/internal/store"
)

const (
	ApologyMessage     = "I'm experiencing technical difficulties. Please try again later."
	EmptyReplyMessage  = "I couldn't generate a response. Please try again."
	CodeFailureMessage = "Failed to analyze code."
	CodeEmptyMessage   = "Code analysis unavailable."

	answerSystemPrompt = "You are an AI study assistant specializing in computer science topics, placement preparation, and code analysis.\n\n" +
		"You have access to the user's personal study materials, notes, GitHub repositories, and placement questions. " +
		"Use the provided context to give accurate, detailed answers.\n\n" +
		"When referencing sources, mention which document or repository the information comes from.\n\n" +
		"Keep answers focused, practical, and educational."
	chatSystemPrompt = "You are an AI study assistant for a computer science student. " +
		"You have access to their notes, GitHub projects, and placement questions."
	chatSystemSuffix = "Be helpful, educational, and reference the user's materials when relevant. " +
		"When referencing sources, mention which document or repository the information comes from."
	codeSystemPrompt = "You are a code analysis expert. Analyze the provided code and explain its functionality, architecture, and key components."
)

type samplingParams struct {
	temperature float32
	maxTokens   int32
}

var (
	answerSampling = samplingParams{temperature: 0.7, maxTokens: 1000}
	chatSampling   = samplingParams{temperature: 0.7, maxTokens: 800}
	codeSampling   = samplingParams{temperature: 0.5, maxTokens: 600}
)

// AnswerComposer turns retrieved context into model prompts. Its methods always
// return text: provider failures become a fixed apology.
type AnswerComposer struct {
	llm ChatCompleter
	log *logger.Logger
}

func NewAnswerComposer(llm ChatCompleter, log *logger.Logger) *AnswerComposer {
	return &AnswerComposer{llm: llm, log: log}
}

func (c *AnswerComposer) Answer(ctx context.Context, query, contextText string) string {
	prompt := fmt.Sprintf("Question: %s\n\nContext from user's materials:\n%s\n\n"+
		"Please provide a comprehensive answer based on the context provided.", query, contextText)

	return c.complete(ctx, "answer", answerSampling, []store.ChatMessage{
		{Role: store.RoleSystem, Content: answerSystemPrompt},
		{Role: store.RoleUser, Content: prompt},
	}, ApologyMessage, EmptyReplyMessage)
}

func (c *AnswerComposer) Chat(ctx context.Context, history []store.ChatMessage, contextText string) string {
	var system strings.Builder
	system.WriteString(chatSystemPrompt)
	if contextText != "" {
		system.WriteString("\n\nCurrent context:\n")
		system.WriteString(contextText)
	}
	system.WriteString("\n\n")
	system.WriteString(chatSystemSuffix)

	messages := make([]store.ChatMessage, 0, len(history)+1)
	messages = append(messages, store.ChatMessage{Role: store.RoleSystem, Content: system.String()})
	for _, m := range history {
		if m.Role == store.RoleSystem {
			continue
		}
		messages = append(messages, m)
	}

	return c.complete(ctx, "chat", chatSampling, messages, ApologyMessage, EmptyReplyMessage)
}

func (c *AnswerComposer) ExplainCode(ctx context.Context, code, language string) string {
	prompt := fmt.Sprintf("Please analyze this %s code and explain its purpose and structure:\n\n%s", language, code)

	return c.complete(ctx, "explain_code", codeSampling, []store.ChatMessage{
		{Role: store.RoleSystem, Content: codeSystemPrompt},
		{Role: store.RoleUser, Content: prompt},
	}, CodeFailureMessage, CodeEmptyMessage)
}

func (c *AnswerComposer) complete(ctx context.Context, op string, params samplingParams, messages []store.ChatMessage, onError, onEmpty string) string {
	reply, err := c.llm.CompleteChat(ctx, ChatRequest{
		Messages:    messages,
		MaxTokens:   params.maxTokens,
		Temperature: params.temperature,
	})
	if err != nil {
		c.log.Error("llm completion failed", "op", op, "error", err)
		return onError
	}
	if strings.TrimSpace(reply) == "" {
		c.log.Warn("llm returned an empty completion", "op", op)
		return onEmpty
	}
	return reply
}
