package linkage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/extract"
	"github.com/loanxp/loantrack/internal/repository"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

// Commitment-side field candidates for the secondary matching pass.
var (
	linkerCommitmentIDFields = []string{
		"commitmentId", "commitmentNo", "commitment_id",
		"InvestorCommitmentIdentifier", "investorCommitmentIdentifier",
	}
	linkerLoanNumberFields = []string{
		"investorLoanNumber", "loanNumber", "fannieMaeLn", "lenderLoanNo",
	}
)

// CommitmentLinker associates a purchase-advice-derived tracking record with
// a pre-existing commitment record. Only invoked for purchase advices.
type CommitmentLinker struct {
	records     repository.TrackingRecordRepository
	commitments repository.CommitmentRepository
	extractor   *extract.Extractor
	now         func() time.Time
}

// NewCommitmentLinker wires a CommitmentLinker.
func NewCommitmentLinker(
	records repository.TrackingRecordRepository,
	commitments repository.CommitmentRepository,
	extractor *extract.Extractor,
) *CommitmentLinker {
	return &CommitmentLinker{
		records:     records,
		commitments: commitments,
		extractor:   extractor,
		now:         time.Now,
	}
}

// LinkToCommitment tries direct commitment-id lookup first, then a linear
// scan of stored commitments by loan number. Returns the record unchanged
// when no commitment matches.
func (l *CommitmentLinker) LinkToCommitment(ctx context.Context, record domain.TrackingRecord, purchaseAdvice jsondoc.Doc) (domain.TrackingRecord, error) {
	commitment, found, err := l.findCommitment(ctx, purchaseAdvice)
	if err != nil {
		return domain.TrackingRecord{}, err
	}
	if !found {
		log.Printf("[LINKAGE] no commitment match for %s", record.XPLoanNumber)
		return record, nil
	}

	now := l.now()
	if record.MetaData == nil {
		record.MetaData = make(map[string]any)
	}
	record.MetaData[domain.SourceCommitment] = domain.CommitmentMappingLink(commitment.ID)
	if record.ExternalIDs == nil {
		record.ExternalIDs = make(map[string]string)
	}
	record.ExternalIDs["commitmentId"] = commitment.ID
	if name := commitment.Payload.FirstString("investorName", "investor"); name != "" && name != unknownInvestor {
		record.ExternalIDs[domain.ExtInvestorName] = name
	}
	record.Status.BoardingReadiness = domain.ReadinessCommitmentLinked
	record.UpdatedAt = now

	updated, err := l.records.Update(ctx, record)
	if err != nil {
		return domain.TrackingRecord{}, fmt.Errorf("failed to persist commitment link: %w", err)
	}
	return updated, nil
}

func (l *CommitmentLinker) findCommitment(ctx context.Context, purchaseAdvice jsondoc.Doc) (domain.Commitment, bool, error) {
	// Direct commitment ids, including one level under commitmentData.
	candidates := collectCommitmentIDs(purchaseAdvice)
	if nested, ok := jsondoc.FromAny(mustGet(purchaseAdvice, "commitmentData")); ok {
		candidates = append(candidates, collectCommitmentIDs(nested)...)
	}

	for _, id := range candidates {
		commitment, err := l.commitments.GetByID(ctx, id)
		if err == nil {
			return commitment, true, nil
		}
		if !isNotFound(err) {
			return domain.Commitment{}, false, fmt.Errorf("failed to look up commitment %s: %w", id, err)
		}
	}
	if len(candidates) > 0 {
		// A direct id was present but unknown; fall through to the scan.
		log.Printf("[LINKAGE] purchase advice references unknown commitment ids %v", candidates)
	}

	loanNumbers := l.extractor.Extract(purchaseAdvice).LoanNumbers
	if len(loanNumbers) == 0 {
		return domain.Commitment{}, false, nil
	}
	wanted := make(map[string]struct{}, len(loanNumbers))
	for _, loanNumber := range loanNumbers {
		wanted[loanNumber] = struct{}{}
	}

	commitments, err := l.commitments.List(ctx)
	if err != nil {
		return domain.Commitment{}, false, fmt.Errorf("failed to list commitments: %w", err)
	}
	for _, commitment := range commitments {
		for _, field := range linkerLoanNumberFields {
			if value := commitment.Payload.String(field); value != "" {
				if _, hit := wanted[value]; hit {
					return commitment, true, nil
				}
			}
		}
	}
	return domain.Commitment{}, false, nil
}

func collectCommitmentIDs(doc jsondoc.Doc) []string {
	var ids []string
	for _, field := range linkerCommitmentIDFields {
		if value := doc.String(field); value != "" {
			ids = append(ids, value)
		}
	}
	return ids
}

func mustGet(doc jsondoc.Doc, key string) any {
	value, _ := doc.Get(key)
	return value
}
