package exceptions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/repository"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestManager() (*Manager, *repository.MemoryExceptionRepository, *repository.MemoryDocumentRepository) {
	exceptions := repository.NewMemoryExceptionRepository()
	documents := repository.NewMemoryDocumentRepository()
	m := NewManager(exceptions, documents, nil)
	m.now = func() time.Time { return testNow }
	return m, exceptions, documents
}

func rateViolation() domain.RuleViolation {
	return domain.RuleViolation{
		RuleID:      "rate_parity:note_rate",
		RuleName:    "Purchase advice rate disagrees with ULDD note rate",
		Severity:    domain.SeverityHigh,
		Description: "rates differ",
		Evidence:    map[string]any{"difference": 0.5},
		AutoFixSuggestion: map[string]any{
			"type":           domain.FixTypeUpdatePurchaseAdviceRate,
			"field":          "interest_rate",
			"suggested_rate": 5.75,
		},
	}
}

func seedPurchaseAdvice(t *testing.T, documents *repository.MemoryDocumentRepository, xpLoanNumber string) string {
	t.Helper()
	doc, err := documents.Save(context.Background(), domain.DocumentRecord{
		ID:           xpLoanNumber + "_1",
		XPLoanNumber: xpLoanNumber,
		SourceType:   domain.SourcePurchaseAdvice,
		Payload:      jsondoc.Doc{"noteRate": 5.25},
		CreatedAt:    testNow,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return doc.ID
}

func TestRaiseDerivesSLAFromSeverity(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()

	high, err := m.Raise(ctx, rateViolation(), "L-100")
	require.NoError(t, err)
	assert.Equal(t, domain.ExceptionOpen, high.Status)
	assert.Equal(t, testNow.Add(24*time.Hour), high.SLADue)
	assert.Equal(t, 0.95, high.Confidence, "auto-fixable violations carry top confidence")

	medium, err := m.Raise(ctx, domain.RuleViolation{
		RuleID:   "ltv_validation:ltv_ratio",
		Severity: domain.SeverityMedium,
	}, "L-100")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(72*time.Hour), medium.SLADue)
	assert.Equal(t, 0.75, medium.Confidence)
}

func TestResolveRecordsWhoAndWhy(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()

	raised, err := m.Raise(ctx, rateViolation(), "L-100")
	require.NoError(t, err)

	resolved, err := m.Resolve(ctx, raised.ID, "analyst-1", "confirmed with seller")
	require.NoError(t, err)

	assert.Equal(t, domain.ExceptionResolved, resolved.Status)
	assert.Equal(t, "analyst-1", resolved.ResolvedBy)
	assert.Equal(t, "confirmed with seller", resolved.Notes)
	require.NotNil(t, resolved.ResolvedAt)

	resolution, ok := resolved.Evidence["resolution"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "manual", resolution["type"])
}

func TestResolveUnknownIDReturnsNotFound(t *testing.T) {
	m, _, _ := newTestManager()
	_, err := m.Resolve(context.Background(), "no-such-id", "analyst-1", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTerminalStateIsReachedOnce(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()

	raised, err := m.Raise(ctx, rateViolation(), "L-100")
	require.NoError(t, err)
	_, err = m.Dismiss(ctx, raised.ID, "analyst-1", "noise")
	require.NoError(t, err)

	_, err = m.Resolve(ctx, raised.ID, "analyst-2", "")
	assert.ErrorIs(t, err, domain.ErrExceptionNotOpen)
	_, err = m.Dismiss(ctx, raised.ID, "analyst-2", "")
	assert.ErrorIs(t, err, domain.ErrExceptionNotOpen)
}

func TestApplyAutoFixUpdatesPurchaseAdvice(t *testing.T) {
	m, _, documents := newTestManager()
	ctx := context.Background()

	docID := seedPurchaseAdvice(t, documents, "L-100")
	raised, err := m.Raise(ctx, rateViolation(), "L-100")
	require.NoError(t, err)

	result, err := m.ApplyAutoFix(ctx, raised.ID, "system")
	require.NoError(t, err)

	assert.Equal(t, domain.FixTypeUpdatePurchaseAdviceRate, result.FixType)
	assert.Equal(t, docID, result.DocumentID)
	assert.Equal(t, domain.ExceptionResolved, result.Exception.Status)

	fixed, err := documents.GetByID(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, 5.75, fixed.Payload["noteRate"])

	trail, ok := fixed.Payload["auditTrail"].([]any)
	require.True(t, ok)
	require.Len(t, trail, 1)
	entry := trail[0].(map[string]any)
	assert.Equal(t, "update_rate", entry["action"])
	assert.Equal(t, 5.25, entry["previousRate"])

	resolution, ok := result.Exception.Evidence["resolution"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "auto_fix", resolution["type"])
}

func TestApplyAutoFixTwiceFails(t *testing.T) {
	m, _, documents := newTestManager()
	ctx := context.Background()

	seedPurchaseAdvice(t, documents, "L-100")
	raised, err := m.Raise(ctx, rateViolation(), "L-100")
	require.NoError(t, err)

	_, err = m.ApplyAutoFix(ctx, raised.ID, "system")
	require.NoError(t, err)
	_, err = m.ApplyAutoFix(ctx, raised.ID, "system")
	assert.ErrorIs(t, err, domain.ErrExceptionNotOpen)
}

func TestApplyAutoFixWithoutSuggestionFails(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()

	raised, err := m.Raise(ctx, domain.RuleViolation{
		RuleID:   "data_completeness:ltv_ratio",
		Severity: domain.SeverityHigh,
	}, "L-100")
	require.NoError(t, err)

	_, err = m.ApplyAutoFix(ctx, raised.ID, "system")
	assert.ErrorIs(t, err, domain.ErrNoAutoFix)
}

func TestApplyAutoFixUnknownTypeFails(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()

	raised, err := m.Raise(ctx, domain.RuleViolation{
		RuleID:            "rate_parity:note_rate",
		Severity:          domain.SeverityHigh,
		AutoFixSuggestion: map[string]any{"type": "REWRITE_HISTORY"},
	}, "L-100")
	require.NoError(t, err)

	_, err = m.ApplyAutoFix(ctx, raised.ID, "system")
	assert.ErrorIs(t, err, domain.ErrUnknownFixType)
}

func TestApplyEscrowFixPopulatesSubjectLoan(t *testing.T) {
	m, _, documents := newTestManager()
	ctx := context.Background()

	_, err := documents.Save(ctx, domain.DocumentRecord{
		ID:           "L-100_2",
		XPLoanNumber: "L-100",
		SourceType:   domain.SourceLoanData,
		Payload: jsondoc.Doc{
			"DEAL": map[string]any{
				"LOANS": map[string]any{
					"LOAN": map[string]any{
						"LOAN_DETAIL": map[string]any{"EscrowIndicator": "true"},
					},
				},
			},
		},
		CreatedAt: testNow,
	})
	require.NoError(t, err)

	raised, err := m.Raise(ctx, domain.RuleViolation{
		RuleID:   "escrow_requirements:escrow_items",
		Severity: domain.SeverityMedium,
		AutoFixSuggestion: map[string]any{
			"type": domain.FixTypePopulateEscrowItems,
			"items": []any{
				map[string]any{"EscrowItemType": "PropertyTax"},
				map[string]any{"EscrowItemType": "HazardInsurance"},
			},
		},
	}, "L-100")
	require.NoError(t, err)

	result, err := m.ApplyAutoFix(ctx, raised.ID, "system")
	require.NoError(t, err)
	assert.Equal(t, "L-100_2", result.DocumentID)

	fixed, err := documents.GetByID(ctx, "L-100_2")
	require.NoError(t, err)
	items := fixed.Payload.List("DEAL", "LOANS", "LOAN", "ESCROW", "ESCROW_ITEMS", "ESCROW_ITEM")
	require.Len(t, items, 2)
	assert.Equal(t, "PropertyTax", items[0].String("EscrowItemType"))
}

func TestGetStatsBucketsOpenExceptionsByAge(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Raise(ctx, rateViolation(), "L-100")
	require.NoError(t, err)

	m.now = func() time.Time { return testNow.Add(-48 * time.Hour) }
	_, err = m.Raise(ctx, domain.RuleViolation{
		RuleID:   "ltv_validation:ltv_ratio",
		Severity: domain.SeverityMedium,
	}, "L-200")
	require.NoError(t, err)

	stale, err := m.Raise(ctx, domain.RuleViolation{
		RuleID:   "data_completeness:note_amount",
		Severity: domain.SeverityHigh,
	}, "L-300")
	require.NoError(t, err)

	m.now = func() time.Time { return testNow }
	_, err = m.Dismiss(ctx, stale.ID, "analyst-1", "superseded")
	require.NoError(t, err)

	stats, err := m.GetStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.ByStatus["open"])
	assert.Equal(t, 1, stats.ByStatus["dismissed"])
	assert.Equal(t, 2, stats.BySeverity["HIGH"])
	assert.Equal(t, 1, stats.BySeverity["MEDIUM"])
	assert.Equal(t, 1, stats.ByCategory["rate_parity"])
	assert.Equal(t, 1, stats.ByCategory["ltv_validation"])
	assert.Equal(t, 1, stats.ByCategory["data_completeness"])
	// Dismissed exceptions do not age; the 48h-old open one lands in 24to72h.
	assert.Equal(t, 1, stats.ByAge["under24h"])
	assert.Equal(t, 1, stats.ByAge["24to72h"])
}
