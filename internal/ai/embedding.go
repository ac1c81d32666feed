package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingConfig holds API settings for text embedding. Empty BaseURL and
// APIKey reuse the chat settings.
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Embed returns the raw embedding vector for text as the provider sent it.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embedding input is empty")
	}

	resp, err := c.embedding.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embCfg.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding in response")
	}
	return resp.Data[0].Embedding, nil
}

// EmbeddingModel names the embedding model. It is part of cache keys.
func (c *OpenAICompatibleClient) EmbeddingModel() string {
	return c.embCfg.Model
}
