package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatConfig selects the generation endpoint. Any OpenAI-compatible API
// works; the default points at Gemini's compatibility layer.
type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	// Timeout caps one HTTP exchange. Zero leaves it to the caller's context.
	Timeout     time.Duration
}

type OpenAICompatibleClient struct {
	chat      *openai.Client
	embedding *openai.Client
	chatCfg   ChatConfig
	embCfg    EmbeddingConfig
}

func NewOpenAICompatibleClient(chatCfg ChatConfig, embCfg EmbeddingConfig) *OpenAICompatibleClient {
	if embCfg.BaseURL == "" {
		embCfg.BaseURL = chatCfg.BaseURL
	}
	if embCfg.APIKey == "" {
		embCfg.APIKey = chatCfg.APIKey
	}
	return &OpenAICompatibleClient{
		chat:      newClient(chatCfg.BaseURL, chatCfg.APIKey, chatCfg.Timeout),
		embedding: newClient(embCfg.BaseURL, embCfg.APIKey, embCfg.Timeout),
		chatCfg:   chatCfg,
		embCfg:    embCfg,
	}
}

func newClient(baseURL, apiKey string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: max(timeout, 0)}
	return openai.NewClientWithConfig(cfg)
}

// Generate sends prompt as a single user turn and returns the reply verbatim.
func (c *OpenAICompatibleClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatCfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.chatCfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty llm choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatModel names the generation model for logs and diagnostics.
func (c *OpenAICompatibleClient) ChatModel() string {
	return c.chatCfg.Model
}
