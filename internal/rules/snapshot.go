// Package rules evaluates resolved loan snapshots against named rule packs,
// producing structured violations with optional auto-fix suggestions.
package rules

import (
	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/uldd"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

// Snapshot is the flattened view of one loan that rule packs evaluate. The
// snake_case field names are the cross-source vocabulary exceptions report
// against, independent of any one upstream's spelling.
type Snapshot struct {
	XPLoanNumber   string
	Fields         map[string]any
	PurchaseAdvice jsondoc.Doc
	ULDD           jsondoc.Doc
}

// Float returns a snapshot field coerced to float64.
func (s Snapshot) Float(name string) (float64, bool) {
	value, ok := s.Fields[name]
	if !ok {
		return 0, false
	}
	return jsondoc.ToFloat(value)
}

// Has reports whether a snapshot field is present and non-empty.
func (s Snapshot) Has(name string) bool {
	value, ok := s.Fields[name]
	if !ok || value == nil {
		return false
	}
	if str, isString := value.(string); isString {
		return str != ""
	}
	return true
}

// Purchase-advice field spellings for the loan's rate. Kept separate from
// the generic candidates because rate parity compares specifically the
// purchase-advice-sourced rate against the ULDD note rate.
var purchaseAdviceRateFields = []string{"noteRate", "interestRate", "passThruRate"}

// snapshotFieldCandidates maps each snapshot field to its purchase-advice
// spellings and its ULDD paths rooted at the subject loan. Purchase-advice
// values win; ULDD fills the gaps.
var snapshotFieldCandidates = []struct {
	name      string
	paFields  []string
	ulddPaths [][]string
}{
	{
		name:      "note_amount",
		paFields:  []string{"noteAmount", "loanAmount", "currentPrincipalBalance"},
		ulddPaths: [][]string{{"TERMS_OF_MORTGAGE", "NoteAmount"}, {"LOAN_DETAIL", "LoanAmount"}},
	},
	{
		name:      "interest_rate",
		paFields:  purchaseAdviceRateFields,
		ulddPaths: [][]string{{"TERMS_OF_MORTGAGE", "NoteRatePercent"}},
	},
	{
		name:      "property_value",
		paFields:  []string{"propertyValue", "appraisedValue", "salesPrice"},
		ulddPaths: [][]string{{"PROPERTY_VALUATION", "PropertyValuationAmount"}, {"PROPERTY", "PropertyEstimatedValueAmount"}},
	},
	{
		name:      "ltv_ratio",
		paFields:  []string{"ltvRatio", "ltv"},
		ulddPaths: [][]string{{"LTV", "LTVRatioPercent"}},
	},
}

// BuildSnapshot flattens a tracking record and its stored documents into the
// rule-pack view. The latest purchase advice and loan extract win when a
// loan has several.
func BuildSnapshot(record domain.TrackingRecord, documents []domain.DocumentRecord) Snapshot {
	snapshot := Snapshot{
		XPLoanNumber: record.XPLoanNumber,
		Fields:       map[string]any{"xp_loan_number": record.XPLoanNumber},
	}

	for _, doc := range documents {
		switch doc.SourceType {
		case domain.SourcePurchaseAdvice:
			snapshot.PurchaseAdvice = doc.Payload
		case domain.SourceLoanData:
			snapshot.ULDD = doc.Payload
		}
	}

	subjectLoan, hasSubject := uldd.SubjectLoan(snapshot.ULDD)

	for _, candidate := range snapshotFieldCandidates {
		if snapshot.PurchaseAdvice != nil {
			if value := snapshot.PurchaseAdvice.FirstString(candidate.paFields...); value != "" {
				snapshot.Fields[candidate.name] = asNumberOrString(value)
				continue
			}
		}
		if !hasSubject {
			continue
		}
		for _, path := range candidate.ulddPaths {
			if value := subjectLoan.String(path...); value != "" {
				snapshot.Fields[candidate.name] = asNumberOrString(value)
				break
			}
		}
	}

	return snapshot
}

func asNumberOrString(value string) any {
	if f, ok := jsondoc.ToFloat(value); ok {
		return f
	}
	return value
}
