package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docrag/internal/app"
	"docrag/internal/model"
	"docrag/internal/pkg/extract"
	"docrag/internal/transport/http/middleware"
	"docrag/internal/transport/http/response"
)

type Ingester interface {
	Ingest(ctx context.Context, input app.IngestInput) (*app.IngestResult, error)
	Backfill(ctx context.Context, documentID string) (*app.BackfillResult, error)
}

type DocumentManager interface {
	List(ctx context.Context, ownerID string) ([]model.Document, error)
	Get(ctx context.Context, id string) (*model.Document, error)
	Delete(ctx context.Context, id string) error
	Debug(ctx context.Context, id string) (*app.DebugReport, error)
}

type BackfillQueue interface {
	PublishBackfill(ctx context.Context, job model.BackfillJob) error
}

type DocumentHandler struct {
	ingest    Ingester
	documents DocumentManager
	queue     BackfillQueue
	maxUpload int64
}

type uploadResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	DocumentID       string `json:"document_id"`
	FileType         string `json:"file_type"`
	TotalChunks      int    `json:"total_chunks"`
	EmbeddingsStored int    `json:"embeddings_stored"`
	Preview          string `json:"preview"`
}

type documentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	FileSize  int64     `json:"file_size"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDocumentHandler wires the document endpoints. queue may be nil, in which
// case backfill runs inside the request.
func NewDocumentHandler(ingest Ingester, documents DocumentManager, queue BackfillQueue, maxUpload int64) *DocumentHandler {
	return &DocumentHandler{
		ingest:    ingest,
		documents: documents,
		queue:     queue,
		maxUpload: maxUpload,
	}
}

// Upload accepts a multipart form with "file" and an optional "title".
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge,
			fmt.Sprintf("file too large (max %d MB)", h.maxUpload>>20))
		return
	}
	if !extract.IsSupportedFile(file.Filename) {
		response.Error(c, http.StatusUnsupportedMediaType, response.CodeUnsupportedFormat,
			"supported file types: "+strings.Join(extract.SupportedExtensions, ", "))
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), app.IngestInput{
		Data:     data,
		FileName: filepath.Base(file.Filename),
		MIMEType: file.Header.Get("Content-Type"),
		OwnerID:  middleware.OwnerID(c),
		Title:    c.PostForm("title"),
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, uploadResponse{
		Success:          true,
		Message:          "Document uploaded and processed successfully",
		DocumentID:       result.Document.ID,
		FileType:         result.Document.FileType,
		TotalChunks:      result.TotalChunks,
		EmbeddingsStored: result.EmbeddingsStored,
		Preview:          result.Preview,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	out := make([]documentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentSummary{
			ID:        d.ID,
			Title:     d.Title,
			FileName:  d.FileName,
			FileType:  d.FileType,
			FileSize:  d.FileSize,
			CreatedAt: d.CreatedAt,
		})
	}
	response.OK(c, out)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted_document_id": id})
}

func (h *DocumentHandler) Debug(c *gin.Context) {
	report, err := h.documents.Debug(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, report)
}

// Backfill queues a repair job when a queue is configured and otherwise runs
// it before responding.
func (h *DocumentHandler) Backfill(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if h.queue == nil {
		res, err := h.ingest.Backfill(ctx, id)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, res)
		return
	}

	if _, err := h.documents.Get(ctx, id); err != nil {
		response.FromError(c, err)
		return
	}
	job := model.BackfillJob{ID: uuid.NewString(), DocumentID: id, RequestedAt: time.Now().UTC()}
	if err := h.queue.PublishBackfill(ctx, job); err != nil {
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, "queue backfill job failed")
		return
	}
	response.Accepted(c, job)
}
