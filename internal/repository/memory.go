package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/loanxp/loantrack/internal/domain"
)

// In-memory repository implementations. They back package tests and DB-less
// runs; the Postgres implementations are the production path.

// MemoryTrackingRecordRepository keeps tracking records in a map keyed by
// xpLoanNumber. Records are copied on every write and read so callers can
// never mutate the store through a shared externalIds or metaData map.
type MemoryTrackingRecordRepository struct {
	mu      sync.RWMutex
	records map[string]domain.TrackingRecord
	order   []string
}

// NewMemoryTrackingRecordRepository creates an empty store.
func NewMemoryTrackingRecordRepository() *MemoryTrackingRecordRepository {
	return &MemoryTrackingRecordRepository{records: make(map[string]domain.TrackingRecord)}
}

func (r *MemoryTrackingRecordRepository) Create(_ context.Context, record domain.TrackingRecord) (domain.TrackingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.XPLoanNumber]; exists {
		return domain.TrackingRecord{}, fmt.Errorf("tracking record %s already exists: %w", record.XPLoanNumber, domain.ErrInvalidInput)
	}
	r.records[record.XPLoanNumber] = cloneTrackingRecord(record)
	r.order = append(r.order, record.XPLoanNumber)
	return record, nil
}

func (r *MemoryTrackingRecordRepository) GetByXPLoanNumber(_ context.Context, xpLoanNumber string) (domain.TrackingRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[xpLoanNumber]
	if !ok {
		return domain.TrackingRecord{}, fmt.Errorf("tracking record %s: %w", xpLoanNumber, domain.ErrNotFound)
	}
	return cloneTrackingRecord(record), nil
}

func (r *MemoryTrackingRecordRepository) Update(_ context.Context, record domain.TrackingRecord) (domain.TrackingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.XPLoanNumber]; !ok {
		return domain.TrackingRecord{}, fmt.Errorf("tracking record %s: %w", record.XPLoanNumber, domain.ErrNotFound)
	}
	r.records[record.XPLoanNumber] = cloneTrackingRecord(record)
	return record, nil
}

func (r *MemoryTrackingRecordRepository) FindByCommitmentIDs(_ context.Context, commitmentIDs []string) (domain.TrackingRecord, bool, error) {
	if len(commitmentIDs) == 0 {
		return domain.TrackingRecord{}, false, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := toSet(commitmentIDs)
	for _, key := range r.order {
		record := r.records[key]
		for _, slot := range domain.CommitmentIDSlots {
			if _, hit := wanted[record.ExternalIDs[slot]]; hit {
				return cloneTrackingRecord(record), true, nil
			}
		}
	}
	return domain.TrackingRecord{}, false, nil
}

func (r *MemoryTrackingRecordRepository) FindByLoanNumberSlots(_ context.Context, loanNumbers []string) (domain.TrackingRecord, bool, error) {
	if len(loanNumbers) == 0 {
		return domain.TrackingRecord{}, false, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := toSet(loanNumbers)
	for _, key := range r.order {
		record := r.records[key]
		for _, slot := range domain.LoanNumberSlots {
			if _, hit := wanted[record.ExternalIDs[slot]]; hit {
				return cloneTrackingRecord(record), true, nil
			}
		}
	}
	return domain.TrackingRecord{}, false, nil
}

func (r *MemoryTrackingRecordRepository) List(_ context.Context) ([]domain.TrackingRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]domain.TrackingRecord, 0, len(r.order))
	for _, key := range r.order {
		records = append(records, cloneTrackingRecord(r.records[key]))
	}
	return records, nil
}

// cloneTrackingRecord deep-copies the record's maps. The Postgres store
// round-trips through JSONB and so never aliases caller memory; the memory
// store has to copy to give the same isolation.
func cloneTrackingRecord(record domain.TrackingRecord) domain.TrackingRecord {
	record.ExternalIDs = cloneStringMap(record.ExternalIDs)
	if record.MetaData != nil {
		record.MetaData = cloneValue(record.MetaData).(map[string]any)
	}
	return record
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}

// MemoryCommitmentRepository keeps commitments in a map keyed by id.
type MemoryCommitmentRepository struct {
	mu          sync.RWMutex
	commitments map[string]domain.Commitment
	order       []string
}

// NewMemoryCommitmentRepository creates an empty store.
func NewMemoryCommitmentRepository() *MemoryCommitmentRepository {
	return &MemoryCommitmentRepository{commitments: make(map[string]domain.Commitment)}
}

func (r *MemoryCommitmentRepository) Put(_ context.Context, commitment domain.Commitment) (domain.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.commitments[commitment.ID]; ok {
		commitment.CreatedAt = existing.CreatedAt
	} else {
		r.order = append(r.order, commitment.ID)
	}
	r.commitments[commitment.ID] = commitment
	return commitment, nil
}

func (r *MemoryCommitmentRepository) GetByID(_ context.Context, id string) (domain.Commitment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commitment, ok := r.commitments[id]
	if !ok {
		return domain.Commitment{}, fmt.Errorf("commitment %s: %w", id, domain.ErrNotFound)
	}
	return commitment, nil
}

func (r *MemoryCommitmentRepository) List(_ context.Context) ([]domain.Commitment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commitments := make([]domain.Commitment, 0, len(r.order))
	for _, id := range r.order {
		commitments = append(commitments, r.commitments[id])
	}
	return commitments, nil
}

// MemoryDocumentRepository keeps raw document records in insertion order.
type MemoryDocumentRepository struct {
	mu        sync.RWMutex
	documents map[string]domain.DocumentRecord
	order     []string
}

// NewMemoryDocumentRepository creates an empty store.
func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{documents: make(map[string]domain.DocumentRecord)}
}

func (r *MemoryDocumentRepository) Save(_ context.Context, doc domain.DocumentRecord) (domain.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[doc.ID]; !exists {
		r.order = append(r.order, doc.ID)
	}
	r.documents[doc.ID] = doc
	return doc, nil
}

func (r *MemoryDocumentRepository) GetByID(_ context.Context, id string) (domain.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return domain.DocumentRecord{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

func (r *MemoryDocumentRepository) ListByLoan(_ context.Context, xpLoanNumber string) ([]domain.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var docs []domain.DocumentRecord
	for _, id := range r.order {
		if doc := r.documents[id]; doc.XPLoanNumber == xpLoanNumber {
			docs = append(docs, doc)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	return docs, nil
}

func (r *MemoryDocumentRepository) Update(_ context.Context, doc domain.DocumentRecord) (domain.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.documents[doc.ID]; !ok {
		return domain.DocumentRecord{}, fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}
	r.documents[doc.ID] = doc
	return doc, nil
}

// MemoryExceptionRepository keeps exceptions in insertion order.
type MemoryExceptionRepository struct {
	mu         sync.RWMutex
	exceptions map[string]domain.Exception
	order      []string
}

// NewMemoryExceptionRepository creates an empty store.
func NewMemoryExceptionRepository() *MemoryExceptionRepository {
	return &MemoryExceptionRepository{exceptions: make(map[string]domain.Exception)}
}

func (r *MemoryExceptionRepository) Create(_ context.Context, exception domain.Exception) (domain.Exception, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.exceptions[exception.ID]; exists {
		return domain.Exception{}, fmt.Errorf("exception %s already exists: %w", exception.ID, domain.ErrInvalidInput)
	}
	r.exceptions[exception.ID] = exception
	r.order = append(r.order, exception.ID)
	return exception, nil
}

func (r *MemoryExceptionRepository) GetByID(_ context.Context, id string) (domain.Exception, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exception, ok := r.exceptions[id]
	if !ok {
		return domain.Exception{}, fmt.Errorf("exception %s: %w", id, domain.ErrNotFound)
	}
	return exception, nil
}

func (r *MemoryExceptionRepository) Update(_ context.Context, exception domain.Exception) (domain.Exception, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exceptions[exception.ID]; !ok {
		return domain.Exception{}, fmt.Errorf("exception %s: %w", exception.ID, domain.ErrNotFound)
	}
	r.exceptions[exception.ID] = exception
	return exception, nil
}

func (r *MemoryExceptionRepository) List(_ context.Context) ([]domain.Exception, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exceptions := make([]domain.Exception, 0, len(r.order))
	for _, id := range r.order {
		exceptions = append(exceptions, r.exceptions[id])
	}
	return exceptions, nil
}

func (r *MemoryExceptionRepository) ListByLoan(_ context.Context, xpLoanNumber string) ([]domain.Exception, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var exceptions []domain.Exception
	for _, id := range r.order {
		if exception := r.exceptions[id]; exception.XPLoanNumber == xpLoanNumber {
			exceptions = append(exceptions, exception)
		}
	}
	return exceptions, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		if value != "" {
			set[value] = struct{}{}
		}
	}
	return set
}
