package domain

import (
	"time"

	"github.com/loanxp/loantrack/pkg/jsondoc"
)

// DocumentRecord is a stored raw source document tied to a tracking record.
type DocumentRecord struct {
	ID           string      `json:"id"`
	XPLoanNumber string      `json:"xpLoanNumber"`
	SourceType   string      `json:"sourceType"`
	SourceFileID string      `json:"sourceFileId"`
	Payload      jsondoc.Doc `json:"payload"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Commitment is a stored commitment artifact. Commitments live in their own
// collection and never produce tracking records on ingestion; purchase
// advices link to them after the fact.
type Commitment struct {
	ID        string      `json:"id"`
	Payload   jsondoc.Doc `json:"payload"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
