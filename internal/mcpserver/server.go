// Package mcpserver exposes question answering and retrieval as Model
// Context Protocol tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"docrag/internal/app"
	"docrag/internal/model"
)

const Version = "0.1.0"

type Answerer interface {
	Answer(ctx context.Context, input app.AnswerInput) (*app.AnswerResult, error)
}

type Searcher interface {
	Retrieve(ctx context.Context, query, documentID string, limit int) (*app.RetrieveResult, error)
}

type DocumentLister interface {
	List(ctx context.Context, ownerID string) ([]model.Document, error)
}

// Ports are the services the tools call into.
type Ports struct {
	Answers   Answerer
	Search    Searcher
	Documents DocumentLister
}

func (p *Ports) Validate() error {
	if p == nil {
		return errors.New("ports are required")
	}
	var errs []error
	if p.Answers == nil {
		errs = append(errs, errors.New("answer service is required"))
	}
	if p.Search == nil {
		errs = append(errs, errors.New("search service is required"))
	}
	if p.Documents == nil {
		errs = append(errs, errors.New("document service is required"))
	}
	return errors.Join(errs...)
}

type Server struct {
	ports  *Ports
	server *mcp.Server
}

func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports:  ports,
		server: mcp.NewServer(&mcp.Implementation{Name: "docrag", Version: Version}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
