// Package ingestion is the entry point for inbound loan artifacts. Each
// document is resolved to a canonical tracking record through identifier
// extraction, matching and consolidation; purchase advices additionally get
// a commitment-linking pass.
package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/extract"
	"github.com/loanxp/loantrack/internal/linkage"
	"github.com/loanxp/loantrack/internal/metrics"
	"github.com/loanxp/loantrack/internal/repository"
	"github.com/loanxp/loantrack/pkg/jsondoc"
	"github.com/loanxp/loantrack/pkg/keymutex"
)

// Actions reported by ProcessDocument.
const (
	ActionCreated          = "created"
	ActionUpdatedOrCreated = "updated_or_created"
	ActionCommitmentStored = "commitment_stored"
)

// Service ingests raw documents into tracking records.
type Service struct {
	commitments  repository.CommitmentRepository
	extractor    *extract.Extractor
	matcher      *linkage.Matcher
	consolidator *linkage.Consolidator
	linker       *linkage.CommitmentLinker
	locks        *keymutex.KeyMutex
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewService wires an ingestion Service. metrics may be nil.
func NewService(
	commitments repository.CommitmentRepository,
	extractor *extract.Extractor,
	matcher *linkage.Matcher,
	consolidator *linkage.Consolidator,
	linker *linkage.CommitmentLinker,
	m *metrics.Metrics,
) *Service {
	return &Service{
		commitments:  commitments,
		extractor:    extractor,
		matcher:      matcher,
		consolidator: consolidator,
		linker:       linker,
		locks:        keymutex.New(),
		metrics:      m,
		now:          time.Now,
	}
}

// Result reports what happened to one inbound document.
type Result struct {
	TrackingRecord   *domain.TrackingRecord `json:"trackingRecord,omitempty"`
	DocumentRecordID string                 `json:"documentRecordId"`
	XPLoanNumber     string                 `json:"xpLoanNumber,omitempty"`
	Action           string                 `json:"action"`
}

// ProcessDocument ingests one document synchronously. Commitments go to the
// commitment store and never produce a tracking record; everything else is
// upserted into a tracking record. Upserts sharing any candidate identifier
// are serialized so concurrent documents for the same loan cannot race into
// duplicate records.
func (s *Service) ProcessDocument(ctx context.Context, doc jsondoc.Doc, sourceType, sourceFileID string) (Result, error) {
	switch sourceType {
	case domain.SourceCommitment, domain.SourcePurchaseAdvice, domain.SourceLoanData, domain.SourceDocuments:
	default:
		return Result{}, fmt.Errorf("source type %q: %w", sourceType, domain.ErrInvalidInput)
	}

	ids := s.extractor.Extract(doc)
	s.metrics.DocumentIngested(sourceType)

	if sourceType == domain.SourceCommitment {
		return s.storeCommitment(ctx, ids, doc)
	}

	unlock, err := s.lockForUpsert(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	result, err := s.consolidator.Upsert(ctx, ids, doc, sourceType, sourceFileID)
	if err != nil {
		return Result{}, err
	}

	record := result.Record
	if sourceType == domain.SourcePurchaseAdvice {
		linked, err := s.linker.LinkToCommitment(ctx, record, doc)
		if err != nil {
			return Result{}, err
		}
		record = linked
	}

	action := ActionUpdatedOrCreated
	if result.Created {
		action = ActionCreated
		s.metrics.RecordCreated()
	} else {
		s.metrics.RecordMerged()
	}
	log.Printf("[INGEST] %s document %s -> %s (%s)", sourceType, sourceFileID, record.XPLoanNumber, action)

	return Result{
		TrackingRecord:   &record,
		DocumentRecordID: result.DocumentID,
		XPLoanNumber:     record.XPLoanNumber,
		Action:           action,
	}, nil
}

// lockForUpsert acquires the inbound document's identifier keys plus the
// xpLoanNumber of whatever record they currently resolve to. Two documents
// can reach the same record through disjoint identifier sets, so holding
// only the inbound keys is not enough; the lock set is widened and the match
// re-resolved after each acquisition until the resolved record's key is
// covered (or nothing matches).
func (s *Service) lockForUpsert(ctx context.Context, ids domain.Identifiers) (func(), error) {
	keys := ids.LockKeys()
	unlock := s.locks.Lock(keys...)
	for {
		record, found, err := s.matcher.Find(ctx, ids)
		if err != nil {
			unlock()
			return nil, err
		}
		if !found || containsKey(keys, record.XPLoanNumber) {
			return unlock, nil
		}
		unlock()
		keys = append(keys, record.XPLoanNumber)
		unlock = s.locks.Lock(keys...)
	}
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// storeCommitment upserts the commitment under its extracted id. Re-ingesting
// the same commitment id replaces the stored payload.
func (s *Service) storeCommitment(ctx context.Context, ids domain.Identifiers, doc jsondoc.Doc) (Result, error) {
	id := ""
	if len(ids.CommitmentIDs) > 0 {
		id = ids.CommitmentIDs[0]
	} else {
		id = uuid.NewString()
		log.Printf("[INGEST] commitment without commitment id, generated %s", id)
	}

	now := s.now()
	commitment, err := s.commitments.Put(ctx, domain.Commitment{
		ID:        id,
		Payload:   doc,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to store commitment: %w", err)
	}
	log.Printf("[INGEST] commitment stored as %s", commitment.ID)

	return Result{
		DocumentRecordID: commitment.ID,
		Action:           ActionCommitmentStored,
	}, nil
}
