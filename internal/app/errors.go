package app

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrExtraction           = errors.New("text extraction failed")
	ErrUnsupportedFormat    = errors.New("unsupported file format")
	ErrEmbeddingProvider    = errors.New("embedding provider failed")
	ErrInvalidEmbedding     = errors.New("invalid embedding")
	ErrStore                = errors.New("store operation failed")
	ErrGeneration           = errors.New("answer generation failed")
	ErrTimeout              = errors.New("upstream call timed out")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

// IsRetryable reports whether err came from a call that ran out of time and
// can reasonably be tried again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}

// externalErr tags err with kind, and with ErrTimeout when the deadline was hit.
func externalErr(kind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", kind, ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// withTimeout is context.WithTimeout that leaves ctx alone for d <= 0.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
