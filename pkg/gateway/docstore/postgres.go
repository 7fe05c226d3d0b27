package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores documents in two JSONB-backed tables. Merge updates use the
// jsonb concatenation operator so concurrent writers stay last-write-wins per
// field without read-modify-write races.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open document store pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping document store: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

func (p *Postgres) Get(ctx context.Context, collection, key string) (Document, error) {
	var (
		raw                  []byte
		createdAt, updatedAt time.Time
	)
	err := p.pool.QueryRow(ctx,
		`SELECT data, created_at, updated_at FROM documents WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&raw, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}

	var data Fields
	if err := json.Unmarshal(raw, &data); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return Document{Key: key, Data: data, CreatedAt: createdAt, UpdatedAt: updatedAt}, nil
}

func (p *Postgres) Set(ctx context.Context, collection, key string, fields Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO documents (collection, key, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, key)
		 DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`,
		collection, key, raw,
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, key, err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, collection, key string, fields Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND key = $2`,
		collection, key, raw,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, collection, parentKey, subcollection string, fields Fields) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode %s/%s/%s: %w", collection, parentKey, subcollection, err)
	}
	id := uuid.NewString()
	_, err = p.pool.Exec(ctx,
		`INSERT INTO subdocuments (collection, parent_key, subcollection, key, data)
		 VALUES ($1, $2, $3, $4, $5::jsonb)`,
		collection, parentKey, subcollection, id, raw,
	)
	if err != nil {
		return "", fmt.Errorf("append %s/%s/%s: %w", collection, parentKey, subcollection, err)
	}
	return id, nil
}

func (p *Postgres) ListSub(ctx context.Context, collection, parentKey, subcollection string) ([]Document, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key, data, created_at, updated_at FROM subdocuments
		 WHERE collection = $1 AND parent_key = $2 AND subcollection = $3
		 ORDER BY created_at, key`,
		collection, parentKey, subcollection,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s/%s: %w", collection, parentKey, subcollection, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			doc Document
			raw []byte
		)
		if err := rows.Scan(&doc.Key, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s/%s/%s: %w", collection, parentKey, subcollection, err)
		}
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return nil, fmt.Errorf("decode %s/%s/%s: %w", collection, parentKey, subcollection, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s/%s/%s: %w", collection, parentKey, subcollection, err)
	}
	return out, nil
}
