package domain

import "time"

// ExceptionStatus is the lifecycle state of a persisted exception. An
// exception is never deleted; it transitions to a terminal state exactly once.
type ExceptionStatus string

const (
	ExceptionOpen      ExceptionStatus = "open"
	ExceptionResolved  ExceptionStatus = "resolved"
	ExceptionDismissed ExceptionStatus = "dismissed"
)

// SLA windows by severity.
const (
	slaHigh    = 24 * time.Hour
	slaDefault = 72 * time.Hour
)

// Exception is a persisted, actionable data-quality finding for one loan.
type Exception struct {
	ID                string          `json:"id"`
	XPLoanNumber      string          `json:"xpLoanNumber"`
	RuleID            string          `json:"ruleId"`
	RuleName          string          `json:"ruleName"`
	Severity          Severity        `json:"severity"`
	Description       string          `json:"description"`
	Evidence          map[string]any  `json:"evidence,omitempty"`
	AutoFixSuggestion map[string]any  `json:"autoFixSuggestion,omitempty"`
	Status            ExceptionStatus `json:"status"`
	Confidence        float64         `json:"confidence"`
	DetectedAt        time.Time       `json:"detectedAt"`
	SLADue            time.Time       `json:"slaDue"`
	ResolvedAt        *time.Time      `json:"resolvedAt,omitempty"`
	ResolvedBy        string          `json:"resolvedBy,omitempty"`
	Notes             string          `json:"notes,omitempty"`
}

// SLADueFor derives the resolution deadline from severity.
func SLADueFor(severity Severity, detectedAt time.Time) time.Time {
	if severity == SeverityHigh {
		return detectedAt.Add(slaHigh)
	}
	return detectedAt.Add(slaDefault)
}

// HasAutoFix reports whether a mechanical remediation is attached.
func (e Exception) HasAutoFix() bool {
	return len(e.AutoFixSuggestion) > 0
}

// Overdue reports whether an open exception has passed its SLA deadline.
func (e Exception) Overdue(now time.Time) bool {
	return e.Status == ExceptionOpen && now.After(e.SLADue)
}
