package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"docrag/internal/app"
)

type AskInput struct {
	Question   string `json:"question" jsonschema:"the question to answer from the stored documents"`
	DocumentID string `json:"document_id,omitempty" jsonschema:"restrict the answer to one document"`
}

type AskOutput struct {
	Answer  string       `json:"answer"`
	Sources []app.Source `json:"sources"`
	Scope   string       `json:"scope,omitempty"`
}

type SearchInput struct {
	Query      string `json:"query" jsonschema:"text to find similar chunks for"`
	DocumentID string `json:"document_id,omitempty" jsonschema:"restrict the search to one document"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to return (default 5)"`
}

type SearchOutput struct {
	Results  []app.RankedResult `json:"results"`
	Count    int                `json:"count"`
	Scope    string             `json:"scope"`
	Strategy string             `json:"strategy"`
}

type ListDocumentsInput struct {
	OwnerID string `json:"owner_id,omitempty" jsonschema:"only list documents of this owner"`
}

type DocumentOutput struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	FileName  string `json:"file_name"`
	FileType  string `json:"file_type"`
	CreatedAt string `json:"created_at"`
}

type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using the uploaded documents as context",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find the document chunks most similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the most recently uploaded documents",
	}, s.handleListDocuments)
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	res, err := s.ports.Answers.Answer(ctx, app.AnswerInput{
		Messages:   []app.Turn{{Role: "user", Content: input.Question}},
		DocumentID: input.DocumentID,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{Answer: res.Content, Sources: res.Sources, Scope: string(res.Scope)}, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	res, err := s.ports.Search.Retrieve(ctx, input.Query, input.DocumentID, input.Limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, SearchOutput{
		Results:  res.Results,
		Count:    len(res.Results),
		Scope:    string(res.Scope),
		Strategy: res.Strategy,
	}, nil
}

func (s *Server) handleListDocuments(ctx context.Context, _ *mcp.CallToolRequest, input ListDocumentsInput) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs, err := s.ports.Documents.List(ctx, input.OwnerID)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}
	out := ListDocumentsOutput{Documents: make([]DocumentOutput, len(docs)), Count: len(docs)}
	for i := range docs {
		out.Documents[i] = DocumentOutput{
			ID:        docs[i].ID,
			Title:     docs[i].Title,
			FileName:  docs[i].FileName,
			FileType:  docs[i].FileType,
			CreatedAt: docs[i].CreatedAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}
