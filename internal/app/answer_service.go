package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// NoRelevantInfoMessage is returned instead of calling the generator when
// retrieval finds nothing to use as context.
const NoRelevantInfoMessage = "I couldn't find any relevant information in your documents. " +
	"Try asking about something specific that you know is in your uploaded files."

const answerInstruction = "You are a helpful assistant that answers questions based on the provided context. " +
	"Use only the context below. If it does not contain the answer, say that you could not find it in the documents."

const contextDelimiter = "\n\n---\n\n"

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AnswerInput struct {
	Messages   []Turn
	DocumentID string
}

type Source struct {
	Content    string  `json:"content"`
	Document   string  `json:"document"`
	Similarity float64 `json:"similarity"`
}

type AnswerResult struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Sources []Source  `json:"sources"`
	Scope   ScopeKind `json:"scope,omitempty"`
}

type AnswerConfig struct {
	TopK            int
	PreviewChars    int
	GenerateTimeout time.Duration
}

type AnswerService struct {
	embedder  QueryEmbedder
	retriever *Retriever
	generator Generator
	cfg       AnswerConfig
	logger    *slog.Logger
}

func NewAnswerService(embedder QueryEmbedder, retriever *Retriever, generator Generator, cfg AnswerConfig, logger *slog.Logger) *AnswerService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = 200
	}
	return &AnswerService{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

// Answer retrieves context for the latest user turn and asks the generator.
func (s *AnswerService) Answer(ctx context.Context, input AnswerInput) (*AnswerResult, error) {
	question := latestUserTurn(input.Messages)
	if question == "" {
		return nil, fmt.Errorf("%w: no user message", ErrInvalidInput)
	}

	qv, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	retrieved, err := s.retriever.Search(ctx, qv, question, input.DocumentID, s.cfg.TopK)
	if err != nil {
		if isRetrievalUnavailable(err) {
			s.logger.Error("retrieval failed, answering without context", "error", err)
			return noInfo(""), nil
		}
		return nil, err
	}
	if len(retrieved.Results) == 0 {
		return noInfo(retrieved.Scope), nil
	}

	prompt := BuildPrompt(question, retrieved.Results)

	genCtx, cancel := withTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()
	content, err := s.generator.Generate(genCtx, prompt)
	if err != nil {
		return nil, externalErr(ErrGeneration, err)
	}

	sources := make([]Source, 0, len(retrieved.Results))
	for _, r := range retrieved.Results {
		sources = append(sources, Source{
			Content:    Preview(r.Content, s.cfg.PreviewChars),
			Document:   r.DocumentTitle,
			Similarity: math.Round(r.Similarity*100) / 100,
		})
	}
	return &AnswerResult{
		Role:    "assistant",
		Content: content,
		Sources: sources,
		Scope:   retrieved.Scope,
	}, nil
}

// BuildPrompt joins the ranked chunks into one context block, each prefixed
// with its document title, and wraps it with the instruction and question.
func BuildPrompt(question string, results []RankedResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.DocumentTitle != "" {
			parts = append(parts, "["+r.DocumentTitle+"]\n"+r.Content)
		} else {
			parts = append(parts, r.Content)
		}
	}

	var b strings.Builder
	b.WriteString(answerInstruction)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(parts, contextDelimiter))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// Preview cuts s to n characters and marks the cut with "...".
func Preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func latestUserTurn(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		role := turns[i].Role
		if role != "" && !strings.EqualFold(role, "user") {
			continue
		}
		if q := strings.TrimSpace(turns[i].Content); q != "" {
			return q
		}
	}
	return ""
}

func noInfo(scope ScopeKind) *AnswerResult {
	return &AnswerResult{
		Role:    "assistant",
		Content: NoRelevantInfoMessage,
		Sources: []Source{},
		Scope:   scope,
	}
}

// IsNoInfo reports whether res is the fixed "nothing found" reply.
func IsNoInfo(res *AnswerResult) bool {
	return res != nil && res.Content == NoRelevantInfoMessage && len(res.Sources) == 0
}
