package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

func TestBuildSnapshotPrefersPurchaseAdviceValues(t *testing.T) {
	record := domain.TrackingRecord{XPLoanNumber: "L-100"}
	documents := []domain.DocumentRecord{
		{
			SourceType: domain.SourcePurchaseAdvice,
			Payload:    jsondoc.Doc{"noteRate": "5.25", "loanAmount": "250000"},
		},
		{
			SourceType: domain.SourceLoanData,
			Payload: subjectLoanDoc(map[string]any{
				"TERMS_OF_MORTGAGE": map[string]any{"NoteRatePercent": "5.75"},
				"LTV":               map[string]any{"LTVRatioPercent": "80"},
			}),
		},
	}

	snapshot := BuildSnapshot(record, documents)

	assert.Equal(t, "L-100", snapshot.XPLoanNumber)
	assert.Equal(t, "L-100", snapshot.Fields["xp_loan_number"])
	// Purchase advice wins for the rate; ULDD fills what the advice lacks.
	assert.Equal(t, 5.25, snapshot.Fields["interest_rate"])
	assert.Equal(t, 250000.0, snapshot.Fields["note_amount"])
	assert.Equal(t, 80.0, snapshot.Fields["ltv_ratio"])
	assert.NotContains(t, snapshot.Fields, "property_value")
}

func TestBuildSnapshotLatestDocumentWins(t *testing.T) {
	record := domain.TrackingRecord{XPLoanNumber: "L-100"}
	// ListByLoan returns documents oldest first.
	documents := []domain.DocumentRecord{
		{SourceType: domain.SourcePurchaseAdvice, Payload: jsondoc.Doc{"noteRate": "5.00"}},
		{SourceType: domain.SourcePurchaseAdvice, Payload: jsondoc.Doc{"noteRate": "5.25"}},
	}

	snapshot := BuildSnapshot(record, documents)
	assert.Equal(t, 5.25, snapshot.Fields["interest_rate"])
}

func TestBuildSnapshotWithoutDocuments(t *testing.T) {
	snapshot := BuildSnapshot(domain.TrackingRecord{XPLoanNumber: "L-100"}, nil)

	assert.True(t, snapshot.Has("xp_loan_number"))
	assert.False(t, snapshot.Has("note_amount"))
	assert.Nil(t, snapshot.PurchaseAdvice)
	assert.Nil(t, snapshot.ULDD)
}
