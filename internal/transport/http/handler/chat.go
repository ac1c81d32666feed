package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docrag/internal/app"
	"docrag/internal/transport/http/response"
)

type Answerer interface {
	Answer(ctx context.Context, input app.AnswerInput) (*app.AnswerResult, error)
}

type Searcher interface {
	Retrieve(ctx context.Context, query, documentID string, limit int) (*app.RetrieveResult, error)
}

type ChatHandler struct {
	answers  Answerer
	searcher Searcher
}

// ChatRequest takes the running conversation; only the latest user turn is
// used as the question. Question is a shortcut for a single user turn.
type ChatRequest struct {
	Messages   []app.Turn `json:"messages"`
	Question   string     `json:"question"`
	DocumentID string     `json:"document_id"`
}

type SearchRequest struct {
	Query      string `json:"query" binding:"required"`
	DocumentID string `json:"document_id"`
	Limit      int    `json:"limit" binding:"gte=0,lte=50"`
}

func NewChatHandler(answers Answerer, searcher Searcher) *ChatHandler {
	return &ChatHandler{answers: answers, searcher: searcher}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	messages := req.Messages
	if q := strings.TrimSpace(req.Question); q != "" {
		messages = append(messages, app.Turn{Role: "user", Content: q})
	}

	result, err := h.answers.Answer(c.Request.Context(), app.AnswerInput{
		Messages:   messages,
		DocumentID: strings.TrimSpace(req.DocumentID),
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}

// Search returns the ranked chunks for a query without generating an answer.
func (h *ChatHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.searcher.Retrieve(c.Request.Context(), req.Query, strings.TrimSpace(req.DocumentID), req.Limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}
