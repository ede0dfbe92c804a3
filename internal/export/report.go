// Package export renders exception data into spreadsheet reports for
// operations review.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/internal/repository"
)

const (
	exceptionsSheet = "Exceptions"
	summarySheet    = "Summary"
)

var reportHeader = []string{
	"Exception ID", "XP Loan Number", "Rule ID", "Severity", "Status",
	"Description", "Confidence", "Detected At", "SLA Due", "Overdue",
	"Resolved At", "Resolved By", "Notes",
}

// ReportService writes exception reports.
type ReportService struct {
	exceptions repository.ExceptionRepository
	now        func() time.Time
}

func NewReportService(exceptions repository.ExceptionRepository) *ReportService {
	return &ReportService{exceptions: exceptions, now: time.Now}
}

// WriteExceptionReport writes an xlsx workbook with one row per exception and
// a summary sheet of counts by severity and status.
func (s *ReportService) WriteExceptionReport(ctx context.Context, w io.Writer) error {
	all, err := s.exceptions.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list exceptions: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet, err := f.NewSheet(exceptionsSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(sheet)
	f.DeleteSheet("Sheet1")

	if err := writeRow(f, exceptionsSheet, 1, toAnySlice(reportHeader)); err != nil {
		return err
	}
	now := s.now()
	for i, exception := range all {
		if err := writeRow(f, exceptionsSheet, i+2, exceptionRow(exception, now)); err != nil {
			return err
		}
	}

	if err := s.writeSummary(f, all); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (s *ReportService) writeSummary(f *excelize.File, all []domain.Exception) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	bySeverity := make(map[string]int)
	byStatus := make(map[string]int)
	for _, exception := range all {
		bySeverity[string(exception.Severity)]++
		byStatus[string(exception.Status)]++
	}

	rows := [][]any{
		{"Total exceptions", len(all)},
		{},
		{"By severity", ""},
	}
	for _, severity := range []domain.Severity{domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow} {
		rows = append(rows, []any{string(severity), bySeverity[string(severity)]})
	}
	rows = append(rows, []any{}, []any{"By status", ""})
	for _, status := range []domain.ExceptionStatus{domain.ExceptionOpen, domain.ExceptionResolved, domain.ExceptionDismissed} {
		rows = append(rows, []any{string(status), byStatus[string(status)]})
	}

	for i, row := range rows {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func exceptionRow(exception domain.Exception, now time.Time) []any {
	resolvedAt := ""
	if exception.ResolvedAt != nil {
		resolvedAt = exception.ResolvedAt.Format(time.RFC3339)
	}
	return []any{
		exception.ID,
		exception.XPLoanNumber,
		exception.RuleID,
		string(exception.Severity),
		string(exception.Status),
		exception.Description,
		exception.Confidence,
		exception.DetectedAt.Format(time.RFC3339),
		exception.SLADue.Format(time.RFC3339),
		exception.Overdue(now),
		resolvedAt,
		exception.ResolvedBy,
		exception.Notes,
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
