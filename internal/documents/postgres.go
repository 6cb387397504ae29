package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yourorg/vision-showcase/internal/db"
	"github.com/yourorg/vision-showcase/internal/models"
)

const schema = `
create table if not exists analysis_document (
    id              text primary key,
    file_name       text not null,
    detected_labels jsonb not null default '[]'::jsonb,
    dominant_colors jsonb not null default '[]'::jsonb,
    processed_at    timestamptz not null
);
create index if not exists analysis_document_processed_at_idx
    on analysis_document (processed_at desc);
`

// PostgresStore keeps documents in a single table; labels and colors are
// jsonb so the pipeline's arrays round-trip unchanged.
type PostgresStore struct {
	p *db.Pool
}

// NewPostgres creates the table if needed and returns a store bound to the pool.
func NewPostgres(ctx context.Context, p *db.Pool) (*PostgresStore, error) {
	if _, err := p.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{p: p}, nil
}

func (s *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	const q = `select exists(select 1 from analysis_document where id=$1)`
	var ok bool
	if err := s.p.QueryRow(ctx, q, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("lookup %s: %w", id, err)
	}
	return ok, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.AnalysisDocument, error) {
	const q = `select id, file_name, detected_labels, dominant_colors, processed_at
               from analysis_document where id=$1`
	doc, err := scanDoc(s.p.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(db.MapRowErr(err), db.ErrNotFound) {
			return models.AnalysisDocument{}, ErrNotFound
		}
		return models.AnalysisDocument{}, fmt.Errorf("get %s: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]models.AnalysisDocument, error) {
	out := make([]models.AnalysisDocument, 0, max(limit, 0))
	if limit <= 0 {
		return out, nil
	}
	const q = `select id, file_name, detected_labels, dominant_colors, processed_at
               from analysis_document order by processed_at desc, id asc limit $1`
	rows, err := s.p.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Put(ctx context.Context, doc models.AnalysisDocument) error {
	if err := doc.Normalize(); err != nil {
		return err
	}
	labels, err := json.Marshal(doc.DetectedLabels)
	if err != nil {
		return err
	}
	colors, err := json.Marshal(doc.DominantColors)
	if err != nil {
		return err
	}
	const q = `
insert into analysis_document (id, file_name, detected_labels, dominant_colors, processed_at)
values ($1, $2, $3::jsonb, $4::jsonb, $5)
on conflict (id) do update set
    file_name = excluded.file_name,
    detected_labels = excluded.detected_labels,
    dominant_colors = excluded.dominant_colors,
    processed_at = excluded.processed_at`
	if _, err := s.p.Exec(ctx, q, doc.ID, doc.FileName, string(labels), string(colors), doc.ProcessedTimestamp); err != nil {
		return db.MapPgErr(err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error { return nil }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoc(r rowScanner) (models.AnalysisDocument, error) {
	var (
		doc            models.AnalysisDocument
		labels, colors []byte
	)
	if err := r.Scan(&doc.ID, &doc.FileName, &labels, &colors, &doc.ProcessedTimestamp); err != nil {
		return models.AnalysisDocument{}, err
	}
	if err := json.Unmarshal(labels, &doc.DetectedLabels); err != nil {
		return models.AnalysisDocument{}, fmt.Errorf("decode labels of %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(colors, &doc.DominantColors); err != nil {
		return models.AnalysisDocument{}, fmt.Errorf("decode colors of %s: %w", doc.ID, err)
	}
	return doc, nil
}
