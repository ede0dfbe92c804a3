package domain

// Severity grades a rule violation.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Auto-fix type discriminators understood by the exception manager.
const (
	FixTypeUpdatePurchaseAdviceRate = "UPDATE_PURCHASE_ADVICE_RATE"
	FixTypePopulateEscrowItems      = "POPULATE_ESCROW_ITEMS"
)

// RuleViolation is the structured output of one failed rule check.
type RuleViolation struct {
	RuleID            string         `json:"ruleId"`
	RuleName          string         `json:"ruleName"`
	Severity          Severity       `json:"severity"`
	Description       string         `json:"description"`
	Evidence          map[string]any `json:"evidence,omitempty"`
	AutoFixSuggestion map[string]any `json:"autoFixSuggestion,omitempty"`
}
