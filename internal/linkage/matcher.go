// Package linkage resolves inbound documents to canonical tracking records:
// matching against known identifiers, consolidating document data into
// records, and associating purchase advices with stored commitments.
package linkage

import (
	"context"
	"errors"
	"fmt"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/repository"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// Matcher finds an existing tracking record sharing any of a document's
// identifiers. Matching is a heuristic, not a proof of identity: two
// documents for the same loan legitimately fail to match when neither shares
// a previously recorded identifier.
type Matcher struct {
	records repository.TrackingRecordRepository
}

// NewMatcher creates a Matcher over the given record store.
func NewMatcher(records repository.TrackingRecordRepository) *Matcher {
	return &Matcher{records: records}
}

// Find returns the first record matching in priority order:
// exact xpLoanNumber per candidate loan number, then externalIds commitment
// ids, then externalIds loan-number slots. (not found, nil error) means the
// caller should create a new record.
func (m *Matcher) Find(ctx context.Context, ids domain.Identifiers) (domain.TrackingRecord, bool, error) {
	for _, loanNumber := range ids.LoanNumbers {
		record, err := m.records.GetByXPLoanNumber(ctx, loanNumber)
		if err == nil {
			return record, true, nil
		}
		if !isNotFound(err) {
			return domain.TrackingRecord{}, false, fmt.Errorf("failed to look up xpLoanNumber %s: %w", loanNumber, err)
		}
	}

	if record, found, err := m.records.FindByCommitmentIDs(ctx, ids.CommitmentIDs); err != nil {
		return domain.TrackingRecord{}, false, err
	} else if found {
		return record, true, nil
	}

	if record, found, err := m.records.FindByLoanNumberSlots(ctx, ids.LoanNumbers); err != nil {
		return domain.TrackingRecord{}, false, err
	} else if found {
		return record, true, nil
	}

	return domain.TrackingRecord{}, false, nil
}
