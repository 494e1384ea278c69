package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Postgres keeps every collection in the single documents table created by
// the db package migrations. Bodies live in a JSONB column.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open pool. The schema must already be migrated.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const documentColumns = `id, collection, body, created_at, updated_at`

func (p *Postgres) Insert(ctx context.Context, collection string, body any) (Document, error) {
	raw, err := encodeObject(body)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s document: %w", collection, err)
	}

	id := uuid.New()
	now := time.Now().UTC()
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO documents (id, collection, body, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $4)
		RETURNING `+documentColumns,
		id, collection, []byte(raw), now,
	)
	doc, err := scanDocument(row)
	if err != nil {
		return Document{}, fmt.Errorf("insert %s document: %w", collection, err)
	}
	return doc, nil
}

func (p *Postgres) Get(ctx context.Context, collection string, id uuid.UUID) (Document, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get %s document: %w", collection, err)
	}
	return doc, nil
}

func (p *Postgres) Find(ctx context.Context, collection string, filter map[string]any) ([]Document, error) {
	if filter == nil {
		filter = map[string]any{}
	}
	rawFilter, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode %s filter: %w", collection, err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE collection = $1 AND body @> $2::jsonb
		ORDER BY created_at, id`,
		collection, rawFilter,
	)
	if err != nil {
		return nil, fmt.Errorf("find %s documents: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s document: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find %s documents: %w", collection, err)
	}
	return docs, nil
}

func (p *Postgres) Merge(ctx context.Context, collection string, id uuid.UUID, patch any) (Document, error) {
	raw, err := encodeObject(patch)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s patch: %w", collection, err)
	}

	row := p.db.QueryRowContext(ctx, `
		UPDATE documents
		SET body = body || $3::jsonb, updated_at = $4
		WHERE collection = $1 AND id = $2
		RETURNING `+documentColumns,
		collection, id, []byte(raw), time.Now().UTC(),
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("merge %s document: %w", collection, err)
	}
	return doc, nil
}

func (p *Postgres) Delete(ctx context.Context, collection string, id uuid.UUID) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return false, fmt.Errorf("delete %s document: %w", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s document: %w", collection, err)
	}
	return n > 0, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (Document, error) {
	var (
		doc  Document
		body []byte
	)
	if err := s.Scan(&doc.ID, &doc.Collection, &body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	doc.Body = json.RawMessage(body)
	return doc, nil
}
