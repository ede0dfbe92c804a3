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

type postgresDocumentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDocumentRepository creates a Postgres-backed document store.
func NewPostgresDocumentRepository(pool *pgxpool.Pool) DocumentRepository {
	return &postgresDocumentRepository{pool: pool}
}

const documentColumns = `id, xp_loan_number, source_type, source_file_id, payload, created_at, updated_at`

func (r *postgresDocumentRepository) Save(ctx context.Context, doc domain.DocumentRecord) (domain.DocumentRecord, error) {
	payload, err := json.Marshal(doc.Payload)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("failed to marshal document payload: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO loan_documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.XPLoanNumber, doc.SourceType, doc.SourceFileID, payload, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("failed to save document: %w", err)
	}
	return doc, nil
}

func (r *postgresDocumentRepository) GetByID(ctx context.Context, id string) (domain.DocumentRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM loan_documents
		WHERE id = $1`,
		id,
	)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DocumentRecord{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return domain.DocumentRecord{}, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (r *postgresDocumentRepository) ListByLoan(ctx context.Context, xpLoanNumber string) ([]domain.DocumentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+`
		FROM loan_documents
		WHERE xp_loan_number = $1
		ORDER BY created_at`,
		xpLoanNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *postgresDocumentRepository) Update(ctx context.Context, doc domain.DocumentRecord) (domain.DocumentRecord, error) {
	payload, err := json.Marshal(doc.Payload)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("failed to marshal document payload: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE loan_documents
		SET payload = $2, updated_at = $3
		WHERE id = $1`,
		doc.ID, payload, doc.UpdatedAt,
	)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("failed to update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.DocumentRecord{}, fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}
	return doc, nil
}

func scanDocument(row pgx.Row) (domain.DocumentRecord, error) {
	var (
		doc     domain.DocumentRecord
		payload []byte
	)
	if err := row.Scan(&doc.ID, &doc.XPLoanNumber, &doc.SourceType, &doc.SourceFileID, &payload, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return domain.DocumentRecord{}, err
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("failed to unmarshal document payload: %w", err)
	}
	doc.Payload = jsondoc.Doc(decoded)
	return doc, nil
}
