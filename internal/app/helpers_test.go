package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"docrag/internal/model"
	"docrag/internal/pkg/extract"
	"docrag/internal/platform/database"
	"docrag/internal/repository"
)

const testDim = 4

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// keywordVector gives every text a unit vector picked by the first keyword
// it contains, so similarity is 1 for the same keyword and 0 otherwise.
func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "alpha"):
		return []float32{1, 0, 0, 0}
	case strings.Contains(lower, "beta"):
		return []float32{0, 1, 0, 0}
	case strings.Contains(lower, "gamma"):
		return []float32{0, 0, 1, 0}
	}
	return []float32{0, 0, 0, 1}
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, text string) ([]float32, error)
}

func (p *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.calls++
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, text)
	}
	return keywordVector(text), nil
}

func (p *fakeProvider) EmbeddingModel() string { return "test-embed" }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeGenerator struct {
	calls   int
	prompts []string
	reply   string
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

// paragraphChunker splits on blank lines so tests control chunk boundaries.
type paragraphChunker struct{}

func (paragraphChunker) Chunk(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func plainExtract(_ context.Context, data []byte, _, _ string) (*extract.Result, error) {
	return &extract.Result{Text: string(data), MIMEType: extract.MIMEText}, nil
}

type testEnv struct {
	db        *gorm.DB
	docs      *repository.DocumentRepository
	chunks    *repository.ChunkRepository
	embs      *repository.EmbeddingRepository
	provider  *fakeProvider
	generator *fakeGenerator
	embedder  *Embedder
	retriever *Retriever
	answers   *AnswerService
	ingest    *IngestService
	documents *DocumentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	logger := discardLogger()
	env := &testEnv{
		db:        db,
		docs:      repository.NewDocumentRepository(db),
		chunks:    repository.NewChunkRepository(db),
		embs:      repository.NewEmbeddingRepository(db),
		provider:  &fakeProvider{},
		generator: &fakeGenerator{reply: "generated answer"},
	}
	env.embedder = NewEmbedder(env.provider, nil, EmbedderConfig{Dimension: testDim}, logger)
	env.retriever = NewRetriever(env.docs, env.embs, env.embedder, RetrieverConfig{
		TopK:           5,
		IndexThreshold: 0.3,
		FallbackFloor:  0.2,
		GlobalPoolSize: 200,
	}, logger)
	env.answers = NewAnswerService(env.embedder, env.retriever, env.generator, AnswerConfig{TopK: 5}, logger)
	env.ingest = NewIngestService(env.docs, env.chunks, env.embs, paragraphChunker{}, env.embedder, plainExtract, IngestConfig{}, logger)
	env.documents = NewDocumentService(env.docs, env.chunks, env.embs, 20, logger)
	return env
}

// ingestText stores text through the ingestion pipeline and pins the
// document's creation time so recency ordering is deterministic.
func (e *testEnv) ingestText(t *testing.T, fileName, text string, at time.Time) *model.Document {
	t.Helper()
	res, err := e.ingest.Ingest(context.Background(), IngestInput{Data: []byte(text), FileName: fileName})
	require.NoError(t, err)
	e.setCreatedAt(t, res.Document.ID, at)
	return res.Document
}

func (e *testEnv) setCreatedAt(t *testing.T, id string, at time.Time) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.Document{}).Where("id = ?", id).Update("created_at", at).Error)
}

// storeRaw writes a document whose chunks carry the given vectors without
// going through the embedder. A nil vector leaves the chunk unembedded.
func (e *testEnv) storeRaw(t *testing.T, fileName string, at time.Time, contents []string, vectors []model.Vector) *model.Document {
	t.Helper()
	ctx := context.Background()
	doc := &model.Document{Title: fileName, FileName: fileName, FileType: extract.MIMEText}
	require.NoError(t, e.docs.Create(ctx, doc))
	e.setCreatedAt(t, doc.ID, at)
	for i, content := range contents {
		chunk := &model.Chunk{DocumentID: doc.ID, Index: i, Content: content}
		require.NoError(t, e.chunks.Create(ctx, chunk))
		if i < len(vectors) && vectors[i] != nil {
			require.NoError(t, e.embs.Create(ctx, &model.Embedding{ChunkID: chunk.ID, Vector: vectors[i]}))
		}
	}
	return doc
}

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
