package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/app"
	"docrag/internal/config"
	"docrag/internal/model"
	"docrag/internal/pkg/jwtutil"
)

type fakeIngest struct {
	calls    []string
	inputs   []app.IngestInput
	failName string
	backfill string
}

func (f *fakeIngest) result(input app.IngestInput) (*app.IngestResult, error) {
	f.inputs = append(f.inputs, input)
	if input.FileName == f.failName {
		return nil, app.ErrExtraction
	}
	return &app.IngestResult{
		Document:         &model.Document{ID: "doc-" + input.FileName, FileName: input.FileName},
		TotalChunks:      3,
		EmbeddingsStored: 3,
	}, nil
}

func (f *fakeIngest) Ingest(_ context.Context, input app.IngestInput) (*app.IngestResult, error) {
	f.calls = append(f.calls, "ingest")
	return f.result(input)
}

func (f *fakeIngest) Reingest(_ context.Context, input app.IngestInput) (*app.IngestResult, error) {
	f.calls = append(f.calls, "reingest")
	return f.result(input)
}

func (f *fakeIngest) Backfill(_ context.Context, documentID string) (*app.BackfillResult, error) {
	f.backfill = documentID
	return &app.BackfillResult{DocumentID: documentID, Missing: 4, Stored: 4}, nil
}

type fakeAnswers struct{ input app.AnswerInput }

func (f *fakeAnswers) Answer(_ context.Context, input app.AnswerInput) (*app.AnswerResult, error) {
	f.input = input
	return &app.AnswerResult{
		Role:    "assistant",
		Content: "The deadline is Friday.",
		Sources: []app.Source{{Content: "due friday", Document: "plan.md", Similarity: 0.87}},
	}, nil
}

type fakeSearch struct {
	documentID string
	limit      int
}

func (f *fakeSearch) Retrieve(_ context.Context, query, documentID string, limit int) (*app.RetrieveResult, error) {
	f.documentID, f.limit = documentID, limit
	if query == "nothing" {
		return &app.RetrieveResult{Scope: app.ScopeAll, Strategy: app.StrategyIndexed}, nil
	}
	return &app.RetrieveResult{
		Results: []app.RankedResult{{
			ChunkID: "c1", DocumentTitle: "Plan", FileName: "plan.md",
			ChunkIndex: 2, Content: "due\nfriday", Similarity: 0.8765,
		}},
		Scope:    app.ScopeLatest,
		Strategy: app.StrategyExhaustive,
	}, nil
}

type fakeDocs struct {
	deleted string
	owner   string
}

var testDoc = model.Document{
	ID:        "doc-1",
	Title:     "Plan",
	FileName:  "plan.md",
	FileType:  "text/markdown",
	FileSize:  42,
	CreatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
}

func (f *fakeDocs) List(_ context.Context, ownerID string) ([]model.Document, error) {
	f.owner = ownerID
	if ownerID == "nobody" {
		return nil, nil
	}
	return []model.Document{testDoc}, nil
}

func (f *fakeDocs) Get(_ context.Context, id string) (*model.Document, error) {
	if id != testDoc.ID {
		return nil, app.ErrDocumentNotFound
	}
	doc := testDoc
	return &doc, nil
}

func (f *fakeDocs) Delete(_ context.Context, id string) error {
	f.deleted = id
	return nil
}

func (f *fakeDocs) Debug(_ context.Context, id string) (*app.DebugReport, error) {
	doc := testDoc
	return &app.DebugReport{
		Document:       &doc,
		ChunkCount:     5,
		EmbeddingCount: 3,
		Sample:         []app.DebugEmbedding{{ID: "e1", ChunkID: "c1", Dimension: 384, Head: []float32{0.1, 0.2}}},
	}, nil
}

type testServices struct {
	ingest  *fakeIngest
	answers *fakeAnswers
	search  *fakeSearch
	docs    *fakeDocs
}

func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	ts := &testServices{
		ingest:  &fakeIngest{},
		answers: &fakeAnswers{},
		search:  &fakeSearch{},
		docs:    &fakeDocs{},
	}
	services = &Services{
		Ingest:    ts.ingest,
		Answers:   ts.answers,
		Search:    ts.search,
		Documents: ts.docs,
	}
	t.Cleanup(func() { services = nil })
	return ts
}

func resetFlags() {
	ingestTitle, ingestOwner, ingestReplace = "", "", false
	askDocument, searchDocument, searchLimit, searchJSON = "", "", 5, false
	listOwner, debugJSON = "", false
	tokenTTL = 24 * time.Hour
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "ask", "search", "documents", "watch", "mcp", "token"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestNeedsServices(t *testing.T) {
	assert.True(t, needsServices(documentsListCmd))
	assert.True(t, needsServices(mcpServeCmd))
	assert.False(t, needsServices(tokenCmd))
}

func TestIngestCmd_RequiresFile(t *testing.T) {
	setupTestServices(t)
	_, err := execute(t, "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIngestCmd_IngestsEachFile(t *testing.T) {
	ts := setupTestServices(t)
	a := writeFile(t, "a.md", "alpha")
	b := writeFile(t, "b.txt", "beta")

	out, err := execute(t, "ingest", "--owner", "u1", a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"ingest", "ingest"}, ts.ingest.calls)
	assert.Contains(t, out, "Ingested "+a)
	assert.Contains(t, out, "doc-b.txt")
	assert.Equal(t, "u1", ts.ingest.inputs[0].OwnerID)
	assert.Equal(t, "alpha", string(ts.ingest.inputs[0].Data))
	assert.Equal(t, "a.md", ts.ingest.inputs[0].FileName)
}

func TestIngestCmd_ReplaceUsesReingest(t *testing.T) {
	ts := setupTestServices(t)
	a := writeFile(t, "a.md", "alpha")

	_, err := execute(t, "ingest", "--replace", "--title", "Alpha", a)
	require.NoError(t, err)
	assert.Equal(t, []string{"reingest"}, ts.ingest.calls)
	assert.Equal(t, "Alpha", ts.ingest.inputs[0].Title)
}

func TestIngestCmd_ContinuesAfterFailure(t *testing.T) {
	ts := setupTestServices(t)
	ts.ingest.failName = "bad.md"
	bad := writeFile(t, "bad.md", "x")
	good := writeFile(t, "good.md", "y")
	missing := filepath.Join(t.TempDir(), "missing.md")

	out, err := execute(t, "ingest", bad, missing, good)
	require.Error(t, err)
	assert.True(t, errors.Is(err, app.ErrExtraction))
	assert.Contains(t, err.Error(), "read "+missing)
	assert.Contains(t, out, "Ingested "+good)
	assert.Len(t, ts.ingest.inputs, 2)
}

func TestIngestCmd_TitleNeedsSingleFile(t *testing.T) {
	setupTestServices(t)
	_, err := execute(t, "ingest", "--title", "x", "a.md", "b.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single file")
}

func TestAskCmd_PrintsAnswerAndSources(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "ask", "--document", "doc-1", "when", "is", "it", "due?")
	require.NoError(t, err)
	assert.Contains(t, out, "The deadline is Friday.")
	assert.Contains(t, out, "[1] plan.md (0.87)")
	assert.Equal(t, "doc-1", ts.answers.input.DocumentID)
	assert.Equal(t, "when is it due?", ts.answers.input.Messages[0].Content)
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "5", flag.DefValue)
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "search", "-n", "3", "-d", "doc-1", "due")
	require.NoError(t, err)
	assert.Equal(t, 3, ts.search.limit)
	assert.Equal(t, "doc-1", ts.search.documentID)
	assert.Contains(t, out, "scope latest, exhaustive")
	assert.Contains(t, out, "[1] Plan #2 (0.8765)")
	assert.Contains(t, out, "due friday")
}

func TestSearchCmd_JSON(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "search", "--json", "due")
	require.NoError(t, err)
	assert.Contains(t, out, `"strategy": "exhaustive"`)
	assert.Contains(t, out, `"chunk_id": "c1"`)
}

func TestSearchCmd_NoResults(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "search", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestDocumentsListCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "documents", "list", "--owner", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", ts.docs.owner)
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "2024-03-01 09:30:00")
	assert.Contains(t, out, "Total: 1 documents")

	out, err = execute(t, "docs", "list", "--owner", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents found.")
}

func TestDocumentsShowCmd(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "documents", "show", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Document: doc-1")
	assert.Contains(t, out, "42 bytes")

	_, err = execute(t, "documents", "show", "other")
	require.Error(t, err)
	assert.True(t, errors.Is(err, app.ErrDocumentNotFound))
}

func TestDocumentsDeleteCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "documents", "delete", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", ts.docs.deleted)
	assert.Contains(t, out, "Deleted document doc-1")
}

func TestDocumentsDebugCmd_ReportsMissing(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "documents", "debug", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunks:     5")
	assert.Contains(t, out, "Missing:    2")
	assert.Contains(t, out, "dim=384")
}

func TestDocumentsBackfillCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "documents", "backfill", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", ts.ingest.backfill)
	assert.Contains(t, out, "4 of 4 missing embeddings stored")
}

func TestWatchCmd_RejectsMissingDir(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "watch", filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestTokenCmd_IssuesVerifiableToken(t *testing.T) {
	prev := loadConfig
	loadConfig = func() (*config.Config, error) {
		return &config.Config{Auth: config.AuthConfig{JWTSecret: "s3cret"}}, nil
	}
	defer func() { loadConfig = prev }()

	out, err := execute(t, "token", "--ttl", "1h", "owner-7")
	require.NoError(t, err)

	claims, err := jwtutil.ParseToken("s3cret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "owner-7", claims.Owner())
}

func TestTokenCmd_EmptySecret(t *testing.T) {
	prev := loadConfig
	loadConfig = func() (*config.Config, error) { return &config.Config{}, nil }
	defer func() { loadConfig = prev }()

	_, err := execute(t, "token", "owner-7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret is empty")
}

func TestServicesOpenedAndClosedPerCommand(t *testing.T) {
	prevLoad, prevOpen := loadConfig, openApp
	defer func() { loadConfig, openApp = prevLoad, prevOpen }()

	closed := false
	loadConfig = func() (*config.Config, error) { return &config.Config{}, nil }
	openApp = func(context.Context, *config.Config) (*Services, error) {
		return &Services{
			Documents: &fakeDocs{},
			Close: func() error {
				closed = true
				return nil
			},
		}, nil
	}

	out, err := execute(t, "documents", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "doc-1")
	assert.True(t, closed)
	assert.Nil(t, services)
}

func TestServicesOpenFailure(t *testing.T) {
	prevLoad := loadConfig
	defer func() { loadConfig = prevLoad }()
	loadConfig = func() (*config.Config, error) { return nil, errors.New("bad config") }

	_, err := execute(t, "documents", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
}

func TestExecuteClosesServicesAfterFailure(t *testing.T) {
	prevLoad, prevOpen := loadConfig, openApp
	defer func() {
		loadConfig, openApp = prevLoad, prevOpen
		rootCmd.SetArgs(nil)
	}()

	closed := false
	loadConfig = func() (*config.Config, error) { return &config.Config{}, nil }
	openApp = func(context.Context, *config.Config) (*Services, error) {
		return &Services{
			Documents: &fakeDocs{},
			Close: func() error {
				closed = true
				return nil
			},
		}, nil
	}

	resetFlags()
	rootCmd.SetArgs([]string{"documents", "show", "missing"})
	err := Execute(context.Background())
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))

	require.Error(t, err)
	assert.True(t, errors.Is(err, app.ErrDocumentNotFound))
	assert.True(t, closed)
	assert.Nil(t, services)
}
