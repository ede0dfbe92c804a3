package rules

import (
	"fmt"
	"math"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/uldd"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

// Comparison tolerances. Values are compared with exact floating-point
// subtraction; no rounding happens before the comparison.
const (
	rateParityTolerance = 0.001
	ltvTolerance        = 0.01
)

// requiredFields is the data_completeness field set.
var requiredFields = []string{
	"xp_loan_number",
	"note_amount",
	"interest_rate",
	"property_value",
	"ltv_ratio",
}

func evaluateDataCompleteness(snapshot Snapshot) []domain.RuleViolation {
	var violations []domain.RuleViolation
	for _, field := range requiredFields {
		if snapshot.Has(field) {
			continue
		}
		violations = append(violations, domain.RuleViolation{
			RuleID:      PackDataCompleteness + ":" + field,
			RuleName:    "Missing required field",
			Severity:    domain.SeverityHigh,
			Description: fmt.Sprintf("required field %s is missing or empty", field),
			Evidence:    map[string]any{"field": field},
		})
	}
	return violations
}

func evaluateRateParity(snapshot Snapshot) []domain.RuleViolation {
	if snapshot.PurchaseAdvice == nil || snapshot.ULDD == nil {
		return nil
	}

	paRate, paOK := firstFloat(snapshot.PurchaseAdvice, purchaseAdviceRateFields)
	subjectLoan, hasSubject := uldd.SubjectLoan(snapshot.ULDD)
	if !paOK || !hasSubject {
		return nil
	}
	ulddRate, ulddOK := subjectLoan.Float("TERMS_OF_MORTGAGE", "NoteRatePercent")
	if !ulddOK {
		return nil
	}

	difference := math.Abs(paRate - ulddRate)
	if difference <= rateParityTolerance {
		return nil
	}

	return []domain.RuleViolation{{
		RuleID:      PackRateParity + ":note_rate",
		RuleName:    "Purchase advice rate disagrees with ULDD note rate",
		Severity:    domain.SeverityHigh,
		Description: fmt.Sprintf("purchase advice rate %v differs from ULDD note rate %v by %v", paRate, ulddRate, difference),
		Evidence: map[string]any{
			"purchase_advice_rate": paRate,
			"uldd_note_rate":       ulddRate,
			"difference":           difference,
		},
		AutoFixSuggestion: map[string]any{
			// The ULDD extract is the authoritative source for note terms.
			"type":           domain.FixTypeUpdatePurchaseAdviceRate,
			"field":          "interest_rate",
			"suggested_rate": ulddRate,
		},
	}}
}

func evaluateLTVValidation(snapshot Snapshot) []domain.RuleViolation {
	noteAmount, hasNote := snapshot.Float("note_amount")
	propertyValue, hasProperty := snapshot.Float("property_value")
	reportedLTV, hasLTV := snapshot.Float("ltv_ratio")
	if !hasNote || !hasProperty || !hasLTV || propertyValue == 0 {
		return nil
	}

	calculatedLTV := noteAmount / propertyValue
	difference := math.Abs(calculatedLTV - reportedLTV)
	if difference <= ltvTolerance {
		return nil
	}

	return []domain.RuleViolation{{
		RuleID:      PackLTVValidation + ":ltv_ratio",
		RuleName:    "Reported LTV disagrees with calculated LTV",
		Severity:    domain.SeverityMedium,
		Description: fmt.Sprintf("reported LTV %v differs from calculated LTV %v", reportedLTV, calculatedLTV),
		Evidence: map[string]any{
			"note_amount":    noteAmount,
			"property_value": propertyValue,
			"reported_ltv":   reportedLTV,
			"calculated_ltv": calculatedLTV,
			"difference":     difference,
		},
	}}
}

func evaluateEscrowRequirements(snapshot Snapshot) []domain.RuleViolation {
	if snapshot.ULDD == nil {
		return nil
	}
	subjectLoan, hasSubject := uldd.SubjectLoan(snapshot.ULDD)
	if !hasSubject || !subjectLoan.Bool("LOAN_DETAIL", "EscrowIndicator") {
		return nil
	}
	if len(subjectLoan.List("ESCROW", "ESCROW_ITEMS", "ESCROW_ITEM")) > 0 {
		return nil
	}

	return []domain.RuleViolation{{
		RuleID:      PackEscrowRequirements + ":escrow_items",
		RuleName:    "Escrowed loan has no escrow items",
		Severity:    domain.SeverityMedium,
		Description: "EscrowIndicator is set but no escrow items are present",
		Evidence: map[string]any{
			"escrow_indicator": true,
			"escrow_items":     0,
		},
		AutoFixSuggestion: map[string]any{
			"type": domain.FixTypePopulateEscrowItems,
			"items": []any{
				map[string]any{"EscrowItemType": "PropertyTax"},
				map[string]any{"EscrowItemType": "HazardInsurance"},
			},
		},
	}}
}

func evaluateComplianceChecks(snapshot Snapshot) []domain.RuleViolation {
	if snapshot.Has("interest_rate") {
		return nil
	}
	return []domain.RuleViolation{{
		RuleID:      PackComplianceChecks + ":tila_interest_rate",
		RuleName:    "TILA: interest rate not disclosed",
		Severity:    domain.SeverityHigh,
		Description: "interest_rate is missing; Truth in Lending disclosure requires the note rate",
		Evidence:    map[string]any{"field": "interest_rate"},
	}}
}

func firstFloat(doc jsondoc.Doc, fields []string) (float64, bool) {
	for _, field := range fields {
		if f, ok := doc.Float(field); ok {
			return f, true
		}
	}
	return 0, false
}
