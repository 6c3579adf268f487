package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSearcher looks products up in a PostgreSQL catalog.
type PostgresSearcher struct {
	pool *pgxpool.Pool
}

func NewPostgresSearcher(ctx context.Context, databaseURL string) (*PostgresSearcher, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresSearcher{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			aisle TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_products_name ON products (name);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresSearcher) Search(ctx context.Context, query string) ([]Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, price, image_url, aisle
		 FROM products WHERE name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
		 ORDER BY name LIMIT $2`,
		query,
		MaxResults,
	)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0, MaxResults)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.ImageURL, &it.Aisle); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return NormalizeAll(items, query), nil
}

func (s *PostgresSearcher) Close() error {
	s.pool.Close()
	return nil
}
