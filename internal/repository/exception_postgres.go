package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loanxp/loantrack/internal/domain"
)

type postgresExceptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresExceptionRepository creates a Postgres-backed exception store.
func NewPostgresExceptionRepository(pool *pgxpool.Pool) ExceptionRepository {
	return &postgresExceptionRepository{pool: pool}
}

const exceptionColumns = `id, xp_loan_number, rule_id, rule_name, severity, description,
	evidence, auto_fix_suggestion, status, confidence, detected_at, sla_due,
	resolved_at, resolved_by, notes`

func (r *postgresExceptionRepository) Create(ctx context.Context, exception domain.Exception) (domain.Exception, error) {
	evidence, autoFix, err := marshalExceptionJSON(exception)
	if err != nil {
		return domain.Exception{}, err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO exceptions (`+exceptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		exception.ID, exception.XPLoanNumber, exception.RuleID, exception.RuleName,
		string(exception.Severity), exception.Description, evidence, autoFix,
		string(exception.Status), exception.Confidence, exception.DetectedAt, exception.SLADue,
		exception.ResolvedAt, nullable(exception.ResolvedBy), nullable(exception.Notes),
	)
	if err != nil {
		return domain.Exception{}, fmt.Errorf("failed to create exception: %w", err)
	}
	return exception, nil
}

func (r *postgresExceptionRepository) GetByID(ctx context.Context, id string) (domain.Exception, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+exceptionColumns+`
		FROM exceptions
		WHERE id = $1`,
		id,
	)

	exception, err := scanException(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Exception{}, fmt.Errorf("exception %s: %w", id, domain.ErrNotFound)
		}
		return domain.Exception{}, fmt.Errorf("failed to get exception: %w", err)
	}
	return exception, nil
}

func (r *postgresExceptionRepository) Update(ctx context.Context, exception domain.Exception) (domain.Exception, error) {
	evidence, autoFix, err := marshalExceptionJSON(exception)
	if err != nil {
		return domain.Exception{}, err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE exceptions
		SET evidence = $2, auto_fix_suggestion = $3, status = $4,
		    resolved_at = $5, resolved_by = $6, notes = $7
		WHERE id = $1`,
		exception.ID, evidence, autoFix, string(exception.Status),
		exception.ResolvedAt, nullable(exception.ResolvedBy), nullable(exception.Notes),
	)
	if err != nil {
		return domain.Exception{}, fmt.Errorf("failed to update exception: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Exception{}, fmt.Errorf("exception %s: %w", exception.ID, domain.ErrNotFound)
	}
	return exception, nil
}

func (r *postgresExceptionRepository) List(ctx context.Context) ([]domain.Exception, error) {
	return r.query(ctx, `
		SELECT `+exceptionColumns+`
		FROM exceptions
		ORDER BY detected_at`)
}

func (r *postgresExceptionRepository) ListByLoan(ctx context.Context, xpLoanNumber string) ([]domain.Exception, error) {
	return r.query(ctx, `
		SELECT `+exceptionColumns+`
		FROM exceptions
		WHERE xp_loan_number = $1
		ORDER BY detected_at`,
		xpLoanNumber)
}

func (r *postgresExceptionRepository) query(ctx context.Context, sql string, args ...any) ([]domain.Exception, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []domain.Exception
	for rows.Next() {
		exception, err := scanException(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exception: %w", err)
		}
		exceptions = append(exceptions, exception)
	}
	return exceptions, rows.Err()
}

func marshalExceptionJSON(exception domain.Exception) (evidence, autoFix []byte, err error) {
	if exception.Evidence != nil {
		if evidence, err = json.Marshal(exception.Evidence); err != nil {
			return nil, nil, fmt.Errorf("failed to marshal evidence: %w", err)
		}
	}
	if exception.AutoFixSuggestion != nil {
		if autoFix, err = json.Marshal(exception.AutoFixSuggestion); err != nil {
			return nil, nil, fmt.Errorf("failed to marshal auto-fix suggestion: %w", err)
		}
	}
	return evidence, autoFix, nil
}

func scanException(row pgx.Row) (domain.Exception, error) {
	var (
		exception         domain.Exception
		severity, status  string
		evidence, autoFix []byte
		resolvedBy, notes *string
	)
	if err := row.Scan(
		&exception.ID, &exception.XPLoanNumber, &exception.RuleID, &exception.RuleName,
		&severity, &exception.Description, &evidence, &autoFix,
		&status, &exception.Confidence, &exception.DetectedAt, &exception.SLADue,
		&exception.ResolvedAt, &resolvedBy, &notes,
	); err != nil {
		return domain.Exception{}, err
	}

	exception.Severity = domain.Severity(severity)
	exception.Status = domain.ExceptionStatus(status)
	if resolvedBy != nil {
		exception.ResolvedBy = *resolvedBy
	}
	if notes != nil {
		exception.Notes = *notes
	}
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &exception.Evidence); err != nil {
			return domain.Exception{}, fmt.Errorf("failed to unmarshal evidence: %w", err)
		}
	}
	if len(autoFix) > 0 {
		if err := json.Unmarshal(autoFix, &exception.AutoFixSuggestion); err != nil {
			return domain.Exception{}, fmt.Errorf("failed to unmarshal auto-fix suggestion: %w", err)
		}
	}
	return exception, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
