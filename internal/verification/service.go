// Package verification runs rule packs against a loan and records the
// resulting exceptions.
package verification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/exceptions"
	"github.com/loanxp/loantrack/internal/repository"
	"github.com/loanxp/loantrack/internal/rules"
)

// Service evaluates tracking records against rule packs. Evaluation is
// re-runnable; each run raises fresh exceptions for whatever it finds.
type Service struct {
	records   repository.TrackingRecordRepository
	documents repository.DocumentRepository
	engine    *rules.Engine
	manager   *exceptions.Manager
	now       func() time.Time
}

func NewService(
	records repository.TrackingRecordRepository,
	documents repository.DocumentRepository,
	engine *rules.Engine,
	manager *exceptions.Manager,
) *Service {
	return &Service{
		records:   records,
		documents: documents,
		engine:    engine,
		manager:   manager,
		now:       time.Now,
	}
}

// Result reports one verification run.
type Result struct {
	XPLoanNumber      string             `json:"xpLoanNumber"`
	Results           []rules.PackResult `json:"results"`
	ExceptionsCreated []string           `json:"exceptionsCreated"`
}

// VerifyLoan snapshots the loan's latest documents, evaluates the requested
// packs (all registered packs when none are named) and raises one exception
// per violation. The record's status is stamped with the evaluation time.
func (s *Service) VerifyLoan(ctx context.Context, xpLoanNumber string, packs []string) (Result, error) {
	if xpLoanNumber == "" {
		return Result{}, fmt.Errorf("xpLoanNumber is required: %w", domain.ErrInvalidInput)
	}

	record, err := s.records.GetByXPLoanNumber(ctx, xpLoanNumber)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load tracking record %s: %w", xpLoanNumber, err)
	}
	documents, err := s.documents.ListByLoan(ctx, xpLoanNumber)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load documents for %s: %w", xpLoanNumber, err)
	}

	snapshot := rules.BuildSnapshot(record, documents)
	results := s.engine.Evaluate(snapshot, packs)

	created := make([]string, 0)
	for _, packResult := range results {
		for _, violation := range packResult.Violations {
			exception, err := s.manager.Raise(ctx, violation, xpLoanNumber)
			if err != nil {
				return Result{}, fmt.Errorf("failed to raise exception for %s: %w", violation.RuleID, err)
			}
			created = append(created, exception.ID)
		}
	}

	now := s.now().UTC()
	record.Status.LastEvaluated = now
	record.UpdatedAt = now
	if _, err := s.records.Update(ctx, record); err != nil {
		return Result{}, fmt.Errorf("failed to stamp evaluation on %s: %w", xpLoanNumber, err)
	}

	log.Printf("[VERIFY] %s: %d packs, %d exceptions raised", xpLoanNumber, len(results), len(created))
	return Result{
		XPLoanNumber:      xpLoanNumber,
		Results:           results,
		ExceptionsCreated: created,
	}, nil
}
