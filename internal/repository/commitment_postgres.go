package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loanxp/loantrack/internal/domain"
	"github.com/loanxp/loantrack/pkg/jsondoc"
)

type postgresCommitmentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCommitmentRepository creates a Postgres-backed commitment store.
func NewPostgresCommitmentRepository(pool *pgxpool.Pool) CommitmentRepository {
	return &postgresCommitmentRepository{pool: pool}
}

func (r *postgresCommitmentRepository) Put(ctx context.Context, commitment domain.Commitment) (domain.Commitment, error) {
	payload, err := json.Marshal(commitment.Payload)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("failed to marshal commitment payload: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO commitments (id, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		commitment.ID, payload, commitment.CreatedAt, commitment.UpdatedAt,
	)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("failed to put commitment: %w", err)
	}
	return commitment, nil
}

func (r *postgresCommitmentRepository) GetByID(ctx context.Context, id string) (domain.Commitment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, payload, created_at, updated_at
		FROM commitments
		WHERE id = $1`,
		id,
	)

	commitment, err := scanCommitment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Commitment{}, fmt.Errorf("commitment %s: %w", id, domain.ErrNotFound)
		}
		return domain.Commitment{}, fmt.Errorf("failed to get commitment: %w", err)
	}
	return commitment, nil
}

func (r *postgresCommitmentRepository) List(ctx context.Context) ([]domain.Commitment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, payload, created_at, updated_at
		FROM commitments
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list commitments: %w", err)
	}
	defer rows.Close()

	var commitments []domain.Commitment
	for rows.Next() {
		commitment, err := scanCommitment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commitment: %w", err)
		}
		commitments = append(commitments, commitment)
	}
	return commitments, rows.Err()
}

func scanCommitment(row pgx.Row) (domain.Commitment, error) {
	var (
		commitment domain.Commitment
		payload    []byte
	)
	if err := row.Scan(&commitment.ID, &payload, &commitment.CreatedAt, &commitment.UpdatedAt); err != nil {
		return domain.Commitment{}, err
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return domain.Commitment{}, fmt.Errorf("failed to unmarshal commitment payload: %w", err)
	}
	commitment.Payload = jsondoc.Doc(decoded)
	return commitment, nil
}
