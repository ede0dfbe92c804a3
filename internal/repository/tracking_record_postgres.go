package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loanxp/loantrack/internal/domain"
)

// postgresTrackingRecordRepository implements TrackingRecordRepository over
// a JSONB-backed table.
type postgresTrackingRecordRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTrackingRecordRepository creates a Postgres-backed store.
func NewPostgresTrackingRecordRepository(pool *pgxpool.Pool) TrackingRecordRepository {
	return &postgresTrackingRecordRepository{pool: pool}
}

const trackingRecordColumns = `xp_loan_number, tenant_id, external_ids, status, meta_data, created_at, updated_at`

func (r *postgresTrackingRecordRepository) Create(ctx context.Context, record domain.TrackingRecord) (domain.TrackingRecord, error) {
	externalIDs, status, metaData, err := marshalTrackingRecord(record)
	if err != nil {
		return domain.TrackingRecord{}, err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO tracking_records (`+trackingRecordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.XPLoanNumber, record.TenantID, externalIDs, status, metaData, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return domain.TrackingRecord{}, fmt.Errorf("failed to create tracking record: %w", err)
	}
	return record, nil
}

func (r *postgresTrackingRecordRepository) GetByXPLoanNumber(ctx context.Context, xpLoanNumber string) (domain.TrackingRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+trackingRecordColumns+`
		FROM tracking_records
		WHERE xp_loan_number = $1`,
		xpLoanNumber,
	)

	record, err := scanTrackingRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TrackingRecord{}, fmt.Errorf("tracking record %s: %w", xpLoanNumber, domain.ErrNotFound)
		}
		return domain.TrackingRecord{}, fmt.Errorf("failed to get tracking record: %w", err)
	}
	return record, nil
}

func (r *postgresTrackingRecordRepository) Update(ctx context.Context, record domain.TrackingRecord) (domain.TrackingRecord, error) {
	externalIDs, status, metaData, err := marshalTrackingRecord(record)
	if err != nil {
		return domain.TrackingRecord{}, err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE tracking_records
		SET tenant_id = $2, external_ids = $3, status = $4, meta_data = $5, updated_at = $6
		WHERE xp_loan_number = $1`,
		record.XPLoanNumber, record.TenantID, externalIDs, status, metaData, record.UpdatedAt,
	)
	if err != nil {
		return domain.TrackingRecord{}, fmt.Errorf("failed to update tracking record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.TrackingRecord{}, fmt.Errorf("tracking record %s: %w", record.XPLoanNumber, domain.ErrNotFound)
	}
	return record, nil
}

func (r *postgresTrackingRecordRepository) FindByCommitmentIDs(ctx context.Context, commitmentIDs []string) (domain.TrackingRecord, bool, error) {
	if len(commitmentIDs) == 0 {
		return domain.TrackingRecord{}, false, nil
	}

	row := r.pool.QueryRow(ctx, `
		SELECT `+trackingRecordColumns+`
		FROM tracking_records
		WHERE external_ids->>'commitmentId' = ANY($1)
		   OR external_ids->>'investorCommitmentId' = ANY($1)
		ORDER BY created_at
		LIMIT 1`,
		commitmentIDs,
	)

	record, err := scanTrackingRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TrackingRecord{}, false, nil
		}
		return domain.TrackingRecord{}, false, fmt.Errorf("failed to scan for commitment ids: %w", err)
	}
	return record, true, nil
}

func (r *postgresTrackingRecordRepository) FindByLoanNumberSlots(ctx context.Context, loanNumbers []string) (domain.TrackingRecord, bool, error) {
	if len(loanNumbers) == 0 {
		return domain.TrackingRecord{}, false, nil
	}

	row := r.pool.QueryRow(ctx, `
		SELECT `+trackingRecordColumns+`
		FROM tracking_records
		WHERE external_ids->>'correspondentLoanNumber' = ANY($1)
		   OR external_ids->>'aggregatorLoanNumber' = ANY($1)
		   OR external_ids->>'investorLoanNumber' = ANY($1)
		ORDER BY created_at
		LIMIT 1`,
		loanNumbers,
	)

	record, err := scanTrackingRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TrackingRecord{}, false, nil
		}
		return domain.TrackingRecord{}, false, fmt.Errorf("failed to scan for loan numbers: %w", err)
	}
	return record, true, nil
}

func (r *postgresTrackingRecordRepository) List(ctx context.Context) ([]domain.TrackingRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+trackingRecordColumns+`
		FROM tracking_records
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking records: %w", err)
	}
	defer rows.Close()

	var records []domain.TrackingRecord
	for rows.Next() {
		record, err := scanTrackingRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracking record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func marshalTrackingRecord(record domain.TrackingRecord) (externalIDs, status, metaData []byte, err error) {
	if externalIDs, err = json.Marshal(record.ExternalIDs); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal externalIds: %w", err)
	}
	if status, err = json.Marshal(record.Status); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	if metaData, err = json.Marshal(record.MetaData); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal metaData: %w", err)
	}
	return externalIDs, status, metaData, nil
}

func scanTrackingRecord(row pgx.Row) (domain.TrackingRecord, error) {
	var (
		record               domain.TrackingRecord
		externalIDs          []byte
		status               []byte
		metaData             []byte
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&record.XPLoanNumber, &record.TenantID, &externalIDs, &status, &metaData, &createdAt, &updatedAt); err != nil {
		return domain.TrackingRecord{}, err
	}
	if err := json.Unmarshal(externalIDs, &record.ExternalIDs); err != nil {
		return domain.TrackingRecord{}, fmt.Errorf("failed to unmarshal externalIds: %w", err)
	}
	if err := json.Unmarshal(status, &record.Status); err != nil {
		return domain.TrackingRecord{}, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	if err := json.Unmarshal(metaData, &record.MetaData); err != nil {
		return domain.TrackingRecord{}, fmt.Errorf("failed to unmarshal metaData: %w", err)
	}
	record.CreatedAt = createdAt
	record.UpdatedAt = updatedAt
	return record, nil
}
