package linkage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/repository"
	"github.com/loanxp/loantrack/internal/uldd"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

// documentCollection is the document-store collection ingested raw documents
// land in; link descriptors under metaData point back into it.
const documentCollection = "loan_documents"

// unknownInvestor is an upstream placeholder that must never overwrite a
// real investor name.
const unknownInvestor = "Unknown"

// Consolidator creates a new tracking record for an unmatched document or
// merges a document's identifiers and link metadata into a matched one.
type Consolidator struct {
	records   repository.TrackingRecordRepository
	documents repository.DocumentRepository
	matcher   *Matcher
	tenantID  string
	now       func() time.Time
}

// NewConsolidator wires a Consolidator. tenantID stamps new records.
func NewConsolidator(
	records repository.TrackingRecordRepository,
	documents repository.DocumentRepository,
	matcher *Matcher,
	tenantID string,
) *Consolidator {
	return &Consolidator{
		records:   records,
		documents: documents,
		matcher:   matcher,
		tenantID:  tenantID,
		now:       time.Now,
	}
}

// UpsertResult reports what Upsert did.
type UpsertResult struct {
	Record     domain.TrackingRecord
	DocumentID string
	Created    bool
}

// Upsert resolves the document to a tracking record, creating one when no
// existing record shares an identifier, and persists the raw document.
func (c *Consolidator) Upsert(ctx context.Context, ids domain.Identifiers, doc jsondoc.Doc, sourceType, sourceFileID string) (UpsertResult, error) {
	record, found, err := c.matcher.Find(ctx, ids)
	if err != nil {
		return UpsertResult{}, err
	}

	now := c.now()
	if !found {
		return c.create(ctx, ids, doc, sourceType, sourceFileID, now)
	}
	return c.merge(ctx, record, ids, doc, sourceType, sourceFileID, now)
}

func (c *Consolidator) create(ctx context.Context, ids domain.Identifiers, doc jsondoc.Doc, sourceType, sourceFileID string, now time.Time) (UpsertResult, error) {
	xpLoanNumber := ""
	if len(ids.LoanNumbers) > 0 {
		xpLoanNumber = ids.LoanNumbers[0]
	} else {
		xpLoanNumber = domain.SyntheticLoanNumber(now)
		log.Printf("[LINKAGE] no loan number extracted from %s document, generated %s", sourceType, xpLoanNumber)
	}

	record := domain.NewTrackingRecord(xpLoanNumber, c.tenantID, now)
	applyIdentifiers(&record, ids)

	documentID := domain.NewDocumentID(xpLoanNumber, now)
	record.SetLink(sourceType, domain.DocumentLink(documentCollection, documentID, sourceFileID))
	record.Status.BoardingReadiness = c.readiness(&record, sourceType, doc, ids, false)
	record.Status.LastEvaluated = now

	if err := c.saveDocument(ctx, documentID, xpLoanNumber, sourceType, sourceFileID, doc, now); err != nil {
		return UpsertResult{}, err
	}
	created, err := c.records.Create(ctx, record)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to create tracking record: %w", err)
	}
	return UpsertResult{Record: created, DocumentID: documentID, Created: true}, nil
}

func (c *Consolidator) merge(ctx context.Context, record domain.TrackingRecord, ids domain.Identifiers, doc jsondoc.Doc, sourceType, sourceFileID string, now time.Time) (UpsertResult, error) {
	applyIdentifiers(&record, ids)

	documentID := domain.NewDocumentID(record.XPLoanNumber, now)
	record.SetLink(sourceType, domain.DocumentLink(documentCollection, documentID, sourceFileID))
	record.Status.BoardingReadiness = c.readiness(&record, sourceType, doc, ids, true)
	record.Status.LastEvaluated = now
	record.UpdatedAt = now

	if err := c.saveDocument(ctx, documentID, record.XPLoanNumber, sourceType, sourceFileID, doc, now); err != nil {
		return UpsertResult{}, err
	}
	updated, err := c.records.Update(ctx, record)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to update tracking record: %w", err)
	}
	return UpsertResult{Record: updated, DocumentID: documentID, Created: false}, nil
}

func (c *Consolidator) saveDocument(ctx context.Context, id, xpLoanNumber, sourceType, sourceFileID string, doc jsondoc.Doc, now time.Time) error {
	_, err := c.documents.Save(ctx, domain.DocumentRecord{
		ID:           id,
		XPLoanNumber: xpLoanNumber,
		SourceType:   sourceType,
		SourceFileID: sourceFileID,
		Payload:      doc,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("failed to save %s document: %w", sourceType, err)
	}
	return nil
}

// applyIdentifiers fills the next empty externalIds slot per class without
// overwriting populated slots, and updates investorName unless the new value
// is empty or the "Unknown" placeholder.
func applyIdentifiers(record *domain.TrackingRecord, ids domain.Identifiers) {
	for _, id := range ids.CommitmentIDs {
		record.FillSlot(domain.CommitmentIDSlots, id)
	}
	for _, loanNumber := range ids.LoanNumbers {
		record.FillSlot(domain.LoanNumberSlots, loanNumber)
	}
	for _, servicer := range ids.ServicerNumbers {
		record.FillSlot(domain.ServicerSlots, servicer)
	}
	if ids.InvestorName != "" && ids.InvestorName != unknownInvestor {
		record.ExternalIDs[domain.ExtInvestorName] = ids.InvestorName
	}
}

// readiness recomputes boarding readiness after the record's metaData has
// been updated for this document. The two-source threshold and the two
// overrides mirror the original boarding rules; keep them unless product
// says otherwise.
func (c *Consolidator) readiness(record *domain.TrackingRecord, sourceType string, doc jsondoc.Doc, ids domain.Identifiers, priorExists bool) domain.BoardingReadiness {
	switch sourceType {
	case domain.SourceLoanData:
		if uldd.IsComprehensive(doc) && len(ids.LoanNumbers) >= 2 {
			return domain.ReadinessReadyToBoard
		}
		return domain.ReadinessULDDReceived
	case domain.SourcePurchaseAdvice:
		if !priorExists {
			return domain.ReadinessPurchaseAdviceReceived
		}
	}

	if record.DistinctSources() >= 2 {
		return domain.ReadinessReadyToBoard
	}
	return domain.ReadinessDataReceived
}
