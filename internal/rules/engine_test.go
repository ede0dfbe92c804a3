package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

func subjectLoanDoc(loan map[string]any) jsondoc.Doc {
	return jsondoc.Doc{
		"DEAL": map[string]any{
			"LOANS": map[string]any{
				"LOAN": loan,
			},
		},
	}
}

func completeSnapshot() Snapshot {
	return Snapshot{
		XPLoanNumber: "L-100",
		Fields: map[string]any{
			"xp_loan_number": "L-100",
			"note_amount":    250000.0,
			"interest_rate":  5.25,
			"property_value": 312500.0,
			"ltv_ratio":      0.8,
		},
	}
}

func TestEvaluateRunsDefaultPacksInOrder(t *testing.T) {
	engine := NewEngine()
	results := engine.Evaluate(completeSnapshot(), nil)

	require.Len(t, results, 5)
	assert.Equal(t, PackDataCompleteness, results[0].Pack)
	assert.Equal(t, PackRateParity, results[1].Pack)
	assert.Equal(t, PackLTVValidation, results[2].Pack)
	assert.Equal(t, PackEscrowRequirements, results[3].Pack)
	assert.Equal(t, PackComplianceChecks, results[4].Pack)
	for _, result := range results {
		assert.Empty(t, result.Violations, "pack %s", result.Pack)
	}
}

func TestEvaluateUnknownPackDoesNotAbortRun(t *testing.T) {
	engine := NewEngine()
	results := engine.Evaluate(completeSnapshot(), []string{"no_such_pack", PackLTVValidation})

	require.Len(t, results, 2)
	require.Len(t, results[0].Violations, 1)
	assert.Equal(t, "no_such_pack:unknown_pack", results[0].Violations[0].RuleID)
	assert.Equal(t, domain.SeverityHigh, results[0].Violations[0].Severity)
	assert.Empty(t, results[1].Violations)
}

func TestDataCompletenessFlagsEachMissingField(t *testing.T) {
	snapshot := Snapshot{
		XPLoanNumber: "L-100",
		Fields: map[string]any{
			"xp_loan_number": "L-100",
			"note_amount":    250000.0,
		},
	}
	violations := evaluateDataCompleteness(snapshot)

	require.Len(t, violations, 3)
	ids := []string{violations[0].RuleID, violations[1].RuleID, violations[2].RuleID}
	assert.Equal(t, []string{
		"data_completeness:interest_rate",
		"data_completeness:property_value",
		"data_completeness:ltv_ratio",
	}, ids)
	for _, violation := range violations {
		assert.Equal(t, domain.SeverityHigh, violation.Severity)
	}
}

func TestRateParityViolationCarriesAutoFix(t *testing.T) {
	snapshot := Snapshot{
		XPLoanNumber:   "L-100",
		PurchaseAdvice: jsondoc.Doc{"noteRate": "5.25"},
		ULDD: subjectLoanDoc(map[string]any{
			"TERMS_OF_MORTGAGE": map[string]any{"NoteRatePercent": "5.75"},
		}),
	}
	violations := evaluateRateParity(snapshot)

	require.Len(t, violations, 1)
	violation := violations[0]
	assert.Equal(t, "rate_parity:note_rate", violation.RuleID)
	assert.Equal(t, domain.SeverityHigh, violation.Severity)
	assert.InDelta(t, 0.5, violation.Evidence["difference"], 1e-9)
	assert.Equal(t, 5.25, violation.Evidence["purchase_advice_rate"])
	assert.Equal(t, 5.75, violation.Evidence["uldd_note_rate"])

	require.NotNil(t, violation.AutoFixSuggestion)
	assert.Equal(t, domain.FixTypeUpdatePurchaseAdviceRate, violation.AutoFixSuggestion["type"])
	assert.Equal(t, 5.75, violation.AutoFixSuggestion["suggested_rate"])
}

func TestRateParityWithinToleranceIsClean(t *testing.T) {
	snapshot := Snapshot{
		PurchaseAdvice: jsondoc.Doc{"noteRate": "5.25"},
		ULDD: subjectLoanDoc(map[string]any{
			"TERMS_OF_MORTGAGE": map[string]any{"NoteRatePercent": "5.2501"},
		}),
	}
	assert.Empty(t, evaluateRateParity(snapshot))
}

func TestRateParitySkipsWhenEitherSideMissing(t *testing.T) {
	assert.Empty(t, evaluateRateParity(Snapshot{PurchaseAdvice: jsondoc.Doc{"noteRate": "5.25"}}))
	assert.Empty(t, evaluateRateParity(Snapshot{ULDD: subjectLoanDoc(map[string]any{})}))
}

func TestLTVValidationFlagsDisagreement(t *testing.T) {
	snapshot := Snapshot{
		Fields: map[string]any{
			"note_amount":    250000.0,
			"property_value": 312500.0,
			"ltv_ratio":      0.82,
		},
	}
	violations := evaluateLTVValidation(snapshot)

	require.Len(t, violations, 1)
	assert.Equal(t, "ltv_validation:ltv_ratio", violations[0].RuleID)
	assert.Equal(t, domain.SeverityMedium, violations[0].Severity)
	assert.Equal(t, 0.8, violations[0].Evidence["calculated_ltv"])
}

func TestLTVValidationWithinToleranceIsClean(t *testing.T) {
	snapshot := Snapshot{
		Fields: map[string]any{
			"note_amount":    250000.0,
			"property_value": 312500.0,
			"ltv_ratio":      0.805,
		},
	}
	assert.Empty(t, evaluateLTVValidation(snapshot))
}

func TestLTVValidationSkipsOnZeroPropertyValue(t *testing.T) {
	snapshot := Snapshot{
		Fields: map[string]any{
			"note_amount":    250000.0,
			"property_value": 0.0,
			"ltv_ratio":      0.8,
		},
	}
	assert.Empty(t, evaluateLTVValidation(snapshot))
}

func TestEscrowRequirementsFlagsMissingItems(t *testing.T) {
	snapshot := Snapshot{
		ULDD: subjectLoanDoc(map[string]any{
			"LOAN_DETAIL": map[string]any{"EscrowIndicator": "true"},
		}),
	}
	violations := evaluateEscrowRequirements(snapshot)

	require.Len(t, violations, 1)
	assert.Equal(t, "escrow_requirements:escrow_items", violations[0].RuleID)
	assert.Equal(t, domain.FixTypePopulateEscrowItems, violations[0].AutoFixSuggestion["type"])
}

func TestEscrowRequirementsAcceptsPopulatedItems(t *testing.T) {
	snapshot := Snapshot{
		ULDD: subjectLoanDoc(map[string]any{
			"LOAN_DETAIL": map[string]any{"EscrowIndicator": "Y"},
			"ESCROW": map[string]any{
				"ESCROW_ITEMS": map[string]any{
					"ESCROW_ITEM": map[string]any{"EscrowItemType": "PropertyTax"},
				},
			},
		}),
	}
	assert.Empty(t, evaluateEscrowRequirements(snapshot))
}

func TestEscrowRequirementsSkipsNonEscrowedLoans(t *testing.T) {
	snapshot := Snapshot{
		ULDD: subjectLoanDoc(map[string]any{
			"LOAN_DETAIL": map[string]any{"EscrowIndicator": "false"},
		}),
	}
	assert.Empty(t, evaluateEscrowRequirements(snapshot))
}

func TestComplianceChecksRequireDisclosedRate(t *testing.T) {
	violations := evaluateComplianceChecks(Snapshot{Fields: map[string]any{}})
	require.Len(t, violations, 1)
	assert.Equal(t, "compliance_checks:tila_interest_rate", violations[0].RuleID)
	assert.Equal(t, domain.SeverityHigh, violations[0].Severity)

	assert.Empty(t, evaluateComplianceChecks(completeSnapshot()))
}
