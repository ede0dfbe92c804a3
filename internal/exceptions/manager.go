// Package exceptions converts rule violations into persisted, SLA-bound
// exception entities and manages their lifecycle: manual resolution,
// dismissal and mechanical auto-fix application.
package exceptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/metrics"
	"github.com/loanxp/loantrack/internal/repository"
	"github.com/loanxp/loantrack/internal/uldd"
	"github.com/loanxp/loantrack/pkg/jsondoc"
	"github.com/loanxp/loantrack/pkg/keymutex"
)

// Manager owns the exception lifecycle. Transitions are serialized per
// exception id; an exception reaches a terminal state exactly once.
type Manager struct {
	exceptions repository.ExceptionRepository
	documents  repository.DocumentRepository
	locks      *keymutex.KeyMutex
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewManager wires a Manager. metrics may be nil.
func NewManager(exceptions repository.ExceptionRepository, documents repository.DocumentRepository, m *metrics.Metrics) *Manager {
	return &Manager{
		exceptions: exceptions,
		documents:  documents,
		locks:      keymutex.New(),
		metrics:    m,
		now:        time.Now,
	}
}

// Raise persists a violation as an open exception for the given loan.
func (m *Manager) Raise(ctx context.Context, violation domain.RuleViolation, xpLoanNumber string) (domain.Exception, error) {
	now := m.now()
	exception := domain.Exception{
		ID:                uuid.NewString(),
		XPLoanNumber:      xpLoanNumber,
		RuleID:            violation.RuleID,
		RuleName:          violation.RuleName,
		Severity:          violation.Severity,
		Description:       violation.Description,
		Evidence:          violation.Evidence,
		AutoFixSuggestion: violation.AutoFixSuggestion,
		Status:            domain.ExceptionOpen,
		Confidence:        confidenceFor(violation),
		DetectedAt:        now,
		SLADue:            domain.SLADueFor(violation.Severity, now),
	}

	created, err := m.exceptions.Create(ctx, exception)
	if err != nil {
		return domain.Exception{}, fmt.Errorf("failed to raise exception: %w", err)
	}
	m.metrics.ExceptionRaised(string(created.Severity))
	return created, nil
}

// Resolve transitions an open exception to resolved, recording who and why.
func (m *Manager) Resolve(ctx context.Context, id, resolvedBy, notes string) (domain.Exception, error) {
	unlock := m.locks.Lock(id)
	defer unlock()
	return m.resolveLocked(ctx, id, resolvedBy, notes, "manual")
}

// Dismiss transitions an open exception to dismissed.
func (m *Manager) Dismiss(ctx context.Context, id, dismissedBy, notes string) (domain.Exception, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	exception, err := m.exceptions.GetByID(ctx, id)
	if err != nil {
		return domain.Exception{}, err
	}
	if exception.Status != domain.ExceptionOpen {
		return domain.Exception{}, fmt.Errorf("exception %s is %s: %w", id, exception.Status, domain.ErrExceptionNotOpen)
	}

	now := m.now()
	exception.Status = domain.ExceptionDismissed
	exception.ResolvedAt = &now
	exception.ResolvedBy = dismissedBy
	exception.Notes = notes
	appendResolution(&exception, "dismissed", dismissedBy, notes, now)

	return m.exceptions.Update(ctx, exception)
}

func (m *Manager) resolveLocked(ctx context.Context, id, resolvedBy, notes, resolutionType string) (domain.Exception, error) {
	exception, err := m.exceptions.GetByID(ctx, id)
	if err != nil {
		return domain.Exception{}, err
	}
	if exception.Status != domain.ExceptionOpen {
		return domain.Exception{}, fmt.Errorf("exception %s is %s: %w", id, exception.Status, domain.ErrExceptionNotOpen)
	}

	now := m.now()
	exception.Status = domain.ExceptionResolved
	exception.ResolvedAt = &now
	exception.ResolvedBy = resolvedBy
	exception.Notes = notes
	appendResolution(&exception, resolutionType, resolvedBy, notes, now)

	updated, err := m.exceptions.Update(ctx, exception)
	if err != nil {
		return domain.Exception{}, fmt.Errorf("failed to resolve exception: %w", err)
	}
	return updated, nil
}

// FixResult reports a successful auto-fix application.
type FixResult struct {
	ExceptionID string           `json:"exceptionId"`
	FixType     string           `json:"fixType"`
	DocumentID  string           `json:"documentId,omitempty"`
	Exception   domain.Exception `json:"exception"`
}

// ApplyAutoFix mechanically applies the exception's suggestion to the stored
// source document, then resolves the exception with resolutionType
// "auto_fix". A second call on the same exception fails: the exception is no
// longer open.
func (m *Manager) ApplyAutoFix(ctx context.Context, id, appliedBy string) (FixResult, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	exception, err := m.exceptions.GetByID(ctx, id)
	if err != nil {
		return FixResult{}, err
	}
	if exception.Status != domain.ExceptionOpen {
		return FixResult{}, fmt.Errorf("exception %s is %s: %w", id, exception.Status, domain.ErrExceptionNotOpen)
	}
	if !exception.HasAutoFix() {
		return FixResult{}, fmt.Errorf("exception %s: %w", id, domain.ErrNoAutoFix)
	}

	fixType, _ := exception.AutoFixSuggestion["type"].(string)
	var documentID string
	switch fixType {
	case domain.FixTypeUpdatePurchaseAdviceRate:
		documentID, err = m.applyRateFix(ctx, exception, appliedBy)
	case domain.FixTypePopulateEscrowItems:
		documentID, err = m.applyEscrowFix(ctx, exception, appliedBy)
	default:
		return FixResult{}, fmt.Errorf("auto-fix type %q: %w", fixType, domain.ErrUnknownFixType)
	}
	if err != nil {
		return FixResult{}, err
	}

	notes := fmt.Sprintf("auto-fix %s applied to %s", fixType, documentID)
	resolved, err := m.resolveLocked(ctx, id, appliedBy, notes, "auto_fix")
	if err != nil {
		return FixResult{}, err
	}
	m.metrics.AutoFixApplied()

	return FixResult{
		ExceptionID: id,
		FixType:     fixType,
		DocumentID:  documentID,
		Exception:   resolved,
	}, nil
}

// applyRateFix writes the suggested rate onto the loan's latest purchase
// advice and appends an audit entry to the document payload.
func (m *Manager) applyRateFix(ctx context.Context, exception domain.Exception, appliedBy string) (string, error) {
	doc, err := m.latestDocument(ctx, exception.XPLoanNumber, domain.SourcePurchaseAdvice)
	if err != nil {
		return "", err
	}

	rate, ok := jsondoc.ToFloat(exception.AutoFixSuggestion["suggested_rate"])
	if !ok {
		return "", fmt.Errorf("auto-fix suggestion carries no usable rate: %w", domain.ErrInvalidInput)
	}

	previous, _ := doc.Payload.Float("noteRate")
	doc.Payload["noteRate"] = rate
	appendAudit(doc.Payload, map[string]any{
		"action":       "update_rate",
		"exceptionId":  exception.ID,
		"appliedBy":    appliedBy,
		"previousRate": previous,
		"newRate":      rate,
		"at":           m.now().UTC().Format(time.RFC3339),
	})

	return m.saveDocument(ctx, doc)
}

// applyEscrowFix writes the suggested escrow items into the subject loan of
// the latest ULDD extract and appends an audit entry.
func (m *Manager) applyEscrowFix(ctx context.Context, exception domain.Exception, appliedBy string) (string, error) {
	doc, err := m.latestDocument(ctx, exception.XPLoanNumber, domain.SourceLoanData)
	if err != nil {
		return "", err
	}

	items, _ := exception.AutoFixSuggestion["items"].([]any)
	if len(items) == 0 {
		return "", fmt.Errorf("auto-fix suggestion carries no escrow items: %w", domain.ErrInvalidInput)
	}

	subjectLoan, ok := uldd.SubjectLoan(doc.Payload)
	if !ok {
		return "", fmt.Errorf("loan extract %s has no subject loan: %w", doc.ID, domain.ErrInvalidInput)
	}
	setEscrowItems(subjectLoan, items)
	appendAudit(doc.Payload, map[string]any{
		"action":      "populate_escrow_items",
		"exceptionId": exception.ID,
		"appliedBy":   appliedBy,
		"items":       len(items),
		"at":          m.now().UTC().Format(time.RFC3339),
	})

	return m.saveDocument(ctx, doc)
}

func (m *Manager) latestDocument(ctx context.Context, xpLoanNumber, sourceType string) (domain.DocumentRecord, error) {
	docs, err := m.documents.ListByLoan(ctx, xpLoanNumber)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("failed to load documents for %s: %w", xpLoanNumber, err)
	}
	for i := len(docs) - 1; i >= 0; i-- {
		if docs[i].SourceType == sourceType {
			return docs[i], nil
		}
	}
	return domain.DocumentRecord{}, fmt.Errorf("no %s document for %s: %w", sourceType, xpLoanNumber, domain.ErrNotFound)
}

func (m *Manager) saveDocument(ctx context.Context, doc domain.DocumentRecord) (string, error) {
	doc.UpdatedAt = m.now()
	if _, err := m.documents.Update(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to persist auto-fix: %w", err)
	}
	return doc.ID, nil
}

// Stats aggregates exception counts for reporting.
type Stats struct {
	ByStatus   map[string]int `json:"byStatus"`
	BySeverity map[string]int `json:"bySeverity"`
	ByCategory map[string]int `json:"byCategory"`
	ByAge      map[string]int `json:"byAge"`
}

// GetStats returns counts by status, severity, rule-pack category and age
// bucket. Age buckets cover open exceptions only.
func (m *Manager) GetStats(ctx context.Context) (Stats, error) {
	exceptions, err := m.exceptions.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list exceptions: %w", err)
	}

	stats := Stats{
		ByStatus:   make(map[string]int),
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
		ByAge:      make(map[string]int),
	}
	now := m.now()
	for _, exception := range exceptions {
		stats.ByStatus[string(exception.Status)]++
		stats.BySeverity[string(exception.Severity)]++
		stats.ByCategory[categoryOf(exception.RuleID)]++
		if exception.Status == domain.ExceptionOpen {
			stats.ByAge[ageBucket(now.Sub(exception.DetectedAt))]++
		}
	}
	return stats, nil
}

func categoryOf(ruleID string) string {
	for i := 0; i < len(ruleID); i++ {
		if ruleID[i] == ':' {
			return ruleID[:i]
		}
	}
	return ruleID
}

func ageBucket(age time.Duration) string {
	switch {
	case age < 24*time.Hour:
		return "under24h"
	case age < 72*time.Hour:
		return "24to72h"
	default:
		return "over72h"
	}
}

func confidenceFor(violation domain.RuleViolation) float64 {
	if len(violation.AutoFixSuggestion) > 0 {
		return 0.95
	}
	switch violation.Severity {
	case domain.SeverityHigh:
		return 0.9
	case domain.SeverityMedium:
		return 0.75
	default:
		return 0.6
	}
}

func appendResolution(exception *domain.Exception, resolutionType, by, notes string, at time.Time) {
	if exception.Evidence == nil {
		exception.Evidence = make(map[string]any)
	}
	exception.Evidence["resolution"] = map[string]any{
		"type":       resolutionType,
		"resolvedBy": by,
		"notes":      notes,
		"at":         at.UTC().Format(time.RFC3339),
	}
}

func appendAudit(payload jsondoc.Doc, entry map[string]any) {
	trail, _ := payload["auditTrail"].([]any)
	payload["auditTrail"] = append(trail, entry)
}

// setEscrowItems writes the item list at ESCROW.ESCROW_ITEMS.ESCROW_ITEM,
// creating the intermediate objects when absent.
func setEscrowItems(loan jsondoc.Doc, items []any) {
	escrow, ok := loan["ESCROW"].(map[string]any)
	if !ok {
		escrow = make(map[string]any)
		loan["ESCROW"] = escrow
	}
	escrowItems, ok := escrow["ESCROW_ITEMS"].(map[string]any)
	if !ok {
		escrowItems = make(map[string]any)
		escrow["ESCROW_ITEMS"] = escrowItems
	}
	escrowItems["ESCROW_ITEM"] = items
}
