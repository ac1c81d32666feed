package model

import "time"

// BackfillJob asks a worker to embed the chunks of a document that have no
// embedding yet.
type BackfillJob struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	RequestedAt time.Time `json:"requested_at"`
}
