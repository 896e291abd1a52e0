// Package chat turns finalized utterances into assistant replies through an
// OpenAI-compatible chat backend.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"parley/metrics"
)

const systemPrompt = "You are a concise voice assistant. The user speaks " +
	"through a microphone, so transcripts may carry recognition noise; answer " +
	"the intended question in a few short sentences of plain text."

// historyLimit caps the rolling conversation window (system prompt excluded).
const historyLimit = 20

// Client holds one conversation. Generate calls are serialized so the
// history stays coherent even if a new utterance lands mid-request.
type Client struct {
	api   *openai.Client
	model string

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

// New builds a client. baseURL overrides the endpoint for self-hosted
// backends; empty means api.openai.com.
func New(apiKey, model, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
		history: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
	}
}

// Generate sends the utterance with the rolling history and returns the
// assistant reply. The exchange is kept in history only on success.
func (c *Client) Generate(ctx context.Context, utterance string) (string, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return "", fmt.Errorf("empty utterance")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	messages := append(c.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: utterance,
	})

	started := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	metrics.ObserveGenerate(time.Since(started))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.history = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	c.trim()
	return reply, nil
}

// Reset drops the conversation, keeping only the system prompt.
func (c *Client) Reset() {
	c.mu.Lock()
	c.history = c.history[:1]
	c.mu.Unlock()
}

func (c *Client) trim() {
	if len(c.history)-1 <= historyLimit {
		return
	}
	// Drop the oldest exchanges, keep the system prompt at index 0.
	excess := len(c.history) - 1 - historyLimit
	c.history = append(c.history[:1], c.history[1+excess:]...)
}
