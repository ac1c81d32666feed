package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docrag/internal/app"
)

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeExtractionFailed   = 40001
	CodeUnauthorized       = 40100
	CodeDocumentNotFound   = 40401
	CodePayloadTooLarge    = 41300
	CodeUnsupportedFormat  = 41500
	CodeInternalServer     = 50000
	CodeStoreFailed        = 50001
	CodeUpstreamFailed     = 50200
	CodeServiceUnavailable = 50300
	CodeUpstreamTimeout    = 50400
)

type APIResponse struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{
		Code:    CodeOK,
		Message: "accepted",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// FromError writes the status and code that match the error kind of err.
// Internal store details are not echoed to the client.
func FromError(c *gin.Context, err error) {
	status, code, msg := classify(err)
	c.JSON(status, APIResponse{
		Code:      code,
		Message:   msg,
		Retryable: status == http.StatusGatewayTimeout,
	})
}

func classify(err error) (int, int, string) {
	switch {
	case errors.Is(err, app.ErrTimeout):
		return http.StatusGatewayTimeout, CodeUpstreamTimeout, err.Error()
	case errors.Is(err, app.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, CodeUnsupportedFormat, err.Error()
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest, CodeBadRequest, err.Error()
	case errors.Is(err, app.ErrExtraction):
		return http.StatusBadRequest, CodeExtractionFailed, err.Error()
	case errors.Is(err, app.ErrDocumentNotFound):
		return http.StatusNotFound, CodeDocumentNotFound, err.Error()
	case errors.Is(err, app.ErrEmbeddingProvider),
		errors.Is(err, app.ErrInvalidEmbedding),
		errors.Is(err, app.ErrGeneration):
		return http.StatusBadGateway, CodeUpstreamFailed, err.Error()
	case errors.Is(err, app.ErrStore):
		return http.StatusInternalServerError, CodeStoreFailed, "store operation failed"
	}
	return http.StatusInternalServerError, CodeInternalServer, "internal server error"
}
