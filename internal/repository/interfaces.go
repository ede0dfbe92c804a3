package repository

import (
	"context"

	"github.com/loanxp/loantrack/internal/domain"
)

// TrackingRecordRepository defines the interface for tracking record operations.
type TrackingRecordRepository interface {
	Create(ctx context.Context, record domain.TrackingRecord) (domain.TrackingRecord, error)
	GetByXPLoanNumber(ctx context.Context, xpLoanNumber string) (domain.TrackingRecord, error)
	Update(ctx context.Context, record domain.TrackingRecord) (domain.TrackingRecord, error)
	// FindByCommitmentIDs scans externalIds.commitmentId/investorCommitmentId
	// for any of the given values; the oldest matching record wins.
	FindByCommitmentIDs(ctx context.Context, commitmentIDs []string) (domain.TrackingRecord, bool, error)
	// FindByLoanNumberSlots scans the externalIds loan-number slots
	// (correspondent/aggregator/investor) for any of the given values.
	FindByLoanNumberSlots(ctx context.Context, loanNumbers []string) (domain.TrackingRecord, bool, error)
	List(ctx context.Context) ([]domain.TrackingRecord, error)
}

// CommitmentRepository stores commitment artifacts keyed by commitment id.
type CommitmentRepository interface {
	// Put upserts; re-ingesting the same commitment id replaces the payload.
	Put(ctx context.Context, commitment domain.Commitment) (domain.Commitment, error)
	GetByID(ctx context.Context, id string) (domain.Commitment, error)
	List(ctx context.Context) ([]domain.Commitment, error)
}

// DocumentRepository stores raw source documents tied to tracking records.
type DocumentRepository interface {
	Save(ctx context.Context, doc domain.DocumentRecord) (domain.DocumentRecord, error)
	GetByID(ctx context.Context, id string) (domain.DocumentRecord, error)
	// ListByLoan returns documents for a loan ordered by creation time.
	ListByLoan(ctx context.Context, xpLoanNumber string) ([]domain.DocumentRecord, error)
	Update(ctx context.Context, doc domain.DocumentRecord) (domain.DocumentRecord, error)
}

// ExceptionRepository stores exception entities. Exceptions are never
// deleted, only transitioned.
type ExceptionRepository interface {
	Create(ctx context.Context, exception domain.Exception) (domain.Exception, error)
	GetByID(ctx context.Context, id string) (domain.Exception, error)
	Update(ctx context.Context, exception domain.Exception) (domain.Exception, error)
	List(ctx context.Context) ([]domain.Exception, error)
	ListByLoan(ctx context.Context, xpLoanNumber string) ([]domain.Exception, error)
}
