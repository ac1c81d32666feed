package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"docrag/internal/model"
	"docrag/internal/rag"
)

// ScopeKind records how the retrieval scope was chosen.
type ScopeKind string

const (
	ScopeExplicit ScopeKind = "explicit"
	ScopeFilename ScopeKind = "filename"
	ScopeLatest   ScopeKind = "latest"
	ScopeAll      ScopeKind = "all"
)

// SearchOutcome is the result of one retrieval stage.
type SearchOutcome int

const (
	OutcomeOK SearchOutcome = iota
	// OutcomeIndexUnavailable means the indexed search errored and the
	// exhaustive stage has to serve the request.
	OutcomeIndexUnavailable
	// OutcomeNoCandidates means the scope holds no embeddings at all.
	OutcomeNoCandidates
)

func (o SearchOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeIndexUnavailable:
		return "index_unavailable"
	case OutcomeNoCandidates:
		return "no_candidates"
	}
	return fmt.Sprintf("SearchOutcome(%d)", int(o))
}

const (
	StrategyIndexed    = "indexed"
	StrategyExhaustive = "exhaustive"
)

// RankedResult is one retrieved chunk. Both strategies produce the same shape.
type RankedResult struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	FileName      string  `json:"file_name"`
	ChunkIndex    int     `json:"chunk_index"`
	Content       string  `json:"content"`
	Similarity    float64 `json:"similarity"`
}

type RetrieveResult struct {
	Results        []RankedResult `json:"results"`
	Scope          ScopeKind      `json:"scope"`
	DocumentID     string         `json:"document_id,omitempty"`
	Strategy       string         `json:"strategy"`
	UsedGlobalPool bool           `json:"used_global_pool"`
	DimensionDrift int            `json:"dimension_drift"`
}

type DocumentLookup interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
	Latest(ctx context.Context) (*model.Document, error)
	FindByFileName(ctx context.Context, fragment string) (*model.Document, error)
}

type CandidateStore interface {
	Nearest(ctx context.Context, query model.Vector, documentID string, threshold float64, limit int) ([]model.ChunkMatch, error)
	ListCandidates(ctx context.Context, documentID string) ([]model.ChunkMatch, error)
	GlobalPool(ctx context.Context, limit int) ([]model.ChunkMatch, error)
	CountByDocumentID(ctx context.Context, documentID string) (int64, error)
}

type QueryEmbedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
}

type RetrieverConfig struct {
	TopK           int
	IndexThreshold float64
	FallbackFloor  float64
	GlobalPoolSize int
	SearchTimeout  time.Duration
}

type Retriever struct {
	docs     DocumentLookup
	store    CandidateStore
	embedder QueryEmbedder
	cfg      RetrieverConfig
	logger   *slog.Logger
}

func NewRetriever(docs DocumentLookup, store CandidateStore, embedder QueryEmbedder, cfg RetrieverConfig, logger *slog.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.GlobalPoolSize <= 0 {
		cfg.GlobalPoolSize = 200
	}
	return &Retriever{
		docs:     docs,
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve embeds query and ranks chunks against it. A query embedding
// failure is returned as is.
func (r *Retriever) Retrieve(ctx context.Context, query, documentID string, limit int) (*RetrieveResult, error) {
	qv, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.Search(ctx, qv, query, documentID, limit)
}

// Search ranks chunks against an already embedded query. query is only used
// to infer the scope from a mentioned file name.
func (r *Retriever) Search(ctx context.Context, qv model.Vector, query, documentID string, limit int) (*RetrieveResult, error) {
	if limit <= 0 {
		limit = r.cfg.TopK
	}

	kind, scopeID, err := r.resolveScope(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	out := &RetrieveResult{Scope: kind, DocumentID: scopeID, Strategy: StrategyIndexed}

	matches, outcome := r.indexed(ctx, qv, scopeID, limit)
	if outcome == OutcomeNoCandidates {
		r.logger.Warn("scope has no embeddings, searching all documents", "document_id", scopeID, "scope", kind)
		out.UsedGlobalPool = true
		matches, outcome = r.indexed(ctx, qv, "", limit)
	}

	if outcome == OutcomeIndexUnavailable {
		out.Strategy = StrategyExhaustive
		var usedPool bool
		matches, usedPool, out.DimensionDrift, err = r.exhaustive(ctx, qv, scopeID, limit)
		if err != nil {
			return nil, err
		}
		out.UsedGlobalPool = out.UsedGlobalPool || usedPool
	}

	out.Results = toRanked(matches)
	r.logger.Debug("retrieval finished",
		"scope", kind,
		"document_id", scopeID,
		"strategy", out.Strategy,
		"results", len(out.Results),
		"global_pool", out.UsedGlobalPool,
	)
	return out, nil
}

var fileNamePattern = regexp.MustCompile(`(?i)[\w\-.]*\w\.(?:pdf|docx|txt|md|csv)\b`)

// resolveScope walks explicit id, mentioned file name, newest document and
// finally "all". Lookup errors other than a missing explicit document move on
// to the next state.
func (r *Retriever) resolveScope(ctx context.Context, query, documentID string) (ScopeKind, string, error) {
	if documentID != "" {
		doc, err := r.docs.GetByID(ctx, documentID)
		if err != nil {
			r.logger.Warn("explicit scope lookup failed, using it unchecked", "document_id", documentID, "error", err)
			return ScopeExplicit, documentID, nil
		}
		if doc == nil {
			return "", "", fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
		}
		return ScopeExplicit, doc.ID, nil
	}

	for _, name := range fileNamePattern.FindAllString(query, -1) {
		doc, err := r.docs.FindByFileName(ctx, name)
		if err != nil {
			r.logger.Warn("file name scope lookup failed", "file_name", name, "error", err)
			continue
		}
		if doc != nil {
			return ScopeFilename, doc.ID, nil
		}
	}

	doc, err := r.docs.Latest(ctx)
	if err != nil {
		r.logger.Warn("latest document lookup failed", "error", err)
	} else if doc != nil {
		return ScopeLatest, doc.ID, nil
	}
	return ScopeAll, "", nil
}

func (r *Retriever) indexed(ctx context.Context, qv model.Vector, documentID string, limit int) ([]model.ChunkMatch, SearchOutcome) {
	searchCtx, cancel := withTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()

	rows, err := r.store.Nearest(searchCtx, qv, documentID, r.cfg.IndexThreshold, limit)
	if err != nil {
		r.logger.Warn("indexed search unavailable, falling back to exhaustive scoring", "error", err)
		return nil, OutcomeIndexUnavailable
	}
	if len(rows) == 0 && documentID != "" {
		n, err := r.store.CountByDocumentID(ctx, documentID)
		if err == nil && n == 0 {
			return nil, OutcomeNoCandidates
		}
	}
	return rows, OutcomeOK
}

// exhaustive scores candidates in process. It returns whether the global pool
// was used and how many candidates had a different dimension than the query.
func (r *Retriever) exhaustive(ctx context.Context, qv model.Vector, documentID string, limit int) ([]model.ChunkMatch, bool, int, error) {
	var (
		candidates []model.ChunkMatch
		err        error
		usedPool   bool
	)
	if documentID != "" {
		candidates, err = r.store.ListCandidates(ctx, documentID)
		if err != nil {
			return nil, false, 0, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
		}
	}
	if len(candidates) == 0 {
		if documentID != "" {
			r.logger.Warn("scope has no embeddings, scoring global pool", "document_id", documentID, "pool_size", r.cfg.GlobalPoolSize)
		}
		usedPool = true
		candidates, err = r.store.GlobalPool(ctx, r.cfg.GlobalPoolSize)
		if err != nil {
			return nil, usedPool, 0, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
		}
	}

	ranked, drift := Rank(qv, candidates, r.cfg.FallbackFloor, limit)
	if drift > 0 {
		r.logger.Warn("stored vectors differ from query dimension",
			"query_dimension", len(qv),
			"mismatched", drift,
			"candidates", len(candidates),
		)
	}
	return ranked, usedPool, drift, nil
}

// Rank scores every candidate against qv, keeps those above floor, and
// returns at most limit of them by descending similarity. Equal scores keep
// their candidate order. The second value counts candidates whose dimension
// differs from qv.
func Rank(qv model.Vector, candidates []model.ChunkMatch, floor float64, limit int) ([]model.ChunkMatch, int) {
	drift := 0
	scored := make([]model.ChunkMatch, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(qv) {
			drift++
		}
		c.Similarity = rag.CosineSimilarity(qv, c.Vector)
		if c.Similarity > floor {
			scored = append(scored, c)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, drift
}

func toRanked(matches []model.ChunkMatch) []RankedResult {
	out := make([]RankedResult, 0, len(matches))
	for _, m := range matches {
		title := m.DocumentTitle
		if title == "" {
			title = m.FileName
		}
		out = append(out, RankedResult{
			ChunkID:       m.ChunkID,
			DocumentID:    m.DocumentID,
			DocumentTitle: title,
			FileName:      m.FileName,
			ChunkIndex:    m.ChunkIndex,
			Content:       m.Content,
			Similarity:    m.Similarity,
		})
	}
	return out
}

func isRetrievalUnavailable(err error) bool {
	return errors.Is(err, ErrRetrievalUnavailable)
}
