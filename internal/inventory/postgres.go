package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// querier is the slice of pgxpool.Pool the store uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore searches a products table whose sizes and colors are text[]
// columns.
type PostgresStore struct {
	db   querier
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool to dsn and verifies it with a ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{db: pool, pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Search implements Store.
func (s *PostgresStore) Search(ctx context.Context, q Query) ([]Product, error) {
	ctx, span := tracer.Start(ctx, "inventory.search",
		trace.WithAttributes(attribute.String("inventory.backend", "postgres")))
	defer span.End()

	query, args := buildPostgresQuery(q)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var (
			p     Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Currency, &p.Sizes, &p.Colors); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %s price: %w", p.ID, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	span.SetAttributes(attribute.Int("inventory.results", len(products)))
	return products, nil
}

func buildPostgresQuery(q Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, term := range q.Terms() {
		p := next("%" + escapeLike(term) + "%")
		where = append(where, fmt.Sprintf("(name ILIKE %s OR description ILIKE %s)", p, p))
	}
	if q.Size != "" {
		where = append(where, fmt.Sprintf("sizes @> ARRAY[%s]::text[]", next(q.Size)))
	}
	if q.Color != "" {
		where = append(where, fmt.Sprintf("colors @> ARRAY[%s]::text[]", next(q.Color)))
	}
	if q.MinPrice != nil {
		where = append(where, fmt.Sprintf("price >= %s::numeric", next(q.MinPrice.String())))
	}
	if q.MaxPrice != nil {
		where = append(where, fmt.Sprintf("price <= %s::numeric", next(q.MaxPrice.String())))
	}

	query := `SELECT id::text, name, COALESCE(description, ''), price::text, COALESCE(currency, ''), COALESCE(sizes, '{}'), COALESCE(colors, '{}') FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name LIMIT " + next(q.EffectiveLimit())
	return query, args
}
