package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// SQLiteStore is the local catalogue used in development and tests.
// Sizes and colors are JSON arrays matched with json_each.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the catalogue database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening inventory database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT '',
		sizes TEXT NOT NULL DEFAULT '[]',
		colors TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Search implements Store.
func (s *SQLiteStore) Search(ctx context.Context, q Query) ([]Product, error) {
	terms := q.Terms()
	ctx, span := tracer.Start(ctx, "inventory.search",
		trace.WithAttributes(
			attribute.String("inventory.backend", "sqlite"),
			attribute.Int("inventory.terms", len(terms)),
		))
	defer span.End()

	var (
		where []string
		args  []any
	)
	for _, term := range terms {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if q.Size != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(products.sizes) WHERE json_each.value = ?)`)
		args = append(args, q.Size)
	}
	if q.Color != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(products.colors) WHERE json_each.value = ?)`)
		args = append(args, q.Color)
	}
	if q.MinPrice != nil {
		where = append(where, `CAST(price AS REAL) >= ?`)
		args = append(args, q.MinPrice.InexactFloat64())
	}
	if q.MaxPrice != nil {
		where = append(where, `CAST(price AS REAL) <= ?`)
		args = append(args, q.MaxPrice.InexactFloat64())
	}

	query := `SELECT id, name, description, price, currency, sizes, colors FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name LIMIT ?"
	args = append(args, q.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var (
			p             Product
			price         string
			sizes, colors string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Currency, &sizes, &colors); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %s price: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(sizes), &p.Sizes); err != nil {
			return nil, fmt.Errorf("product %s sizes: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(colors), &p.Colors); err != nil {
			return nil, fmt.Errorf("product %s colors: %w", p.ID, err)
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

// Seed upserts products by id in one transaction.
func (s *SQLiteStore) Seed(ctx context.Context, products []Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO products (id, name, description, price, currency, sizes, colors)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing seed: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("product %q: id and name are required", p.Name)
		}
		sizes, err := json.Marshal(nonNil(p.Sizes))
		if err != nil {
			return fmt.Errorf("product %s sizes: %w", p.ID, err)
		}
		colors, err := json.Marshal(nonNil(p.Colors))
		if err != nil {
			return fmt.Errorf("product %s colors: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Description, p.Price.String(), p.Currency, string(sizes), string(colors)); err != nil {
			return fmt.Errorf("inserting product %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

type seedFile struct {
	Products []Product `yaml:"products"`
}

// ParseSeed decodes a YAML document with a top-level products list.
func ParseSeed(data []byte) ([]Product, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	return f.Products, nil
}

// LoadSeedFile reads and parses a seed file.
func LoadSeedFile(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
