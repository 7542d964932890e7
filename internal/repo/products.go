package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const productColumns = `id, name, category, price, characteristics, description, active, created_at`

// ListProducts returns the whole catalog including inactive entries.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products ORDER BY category, name;`
	return r.queryProducts(ctx, q)
}

// ListActiveProducts returns the catalog entries currently offered.
func (r *PostgresRepository) ListActiveProducts(ctx context.Context) ([]Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE active ORDER BY category, name;`
	return r.queryProducts(ctx, q)
}

// ListProductsByCategory returns active entries for one category.
func (r *PostgresRepository) ListProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE active AND category = $1 ORDER BY name;`
	return r.queryProducts(ctx, q, category)
}

// GetProductByID returns one product regardless of active flag.
func (r *PostgresRepository) GetProductByID(ctx context.Context, id string) (*Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE id = $1 LIMIT 1;`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// GetActiveProductByName resolves an active product by exact name,
// case-insensitively.
func (r *PostgresRepository) GetActiveProductByName(ctx context.Context, name string) (*Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE active AND lower(name) = lower($1) LIMIT 1;`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product by name: %w", err)
	}
	return p, nil
}

// SearchProductsByName returns active products whose name contains the query.
func (r *PostgresRepository) SearchProductsByName(ctx context.Context, query string) ([]Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE active AND name ILIKE '%' || $1 || '%' ORDER BY name;`
	return r.queryProducts(ctx, q, query)
}

// ListCategories returns the distinct categories with active products.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT category FROM products WHERE active ORDER BY category;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories rows: %w", err)
	}
	return cats, nil
}

func (r *PostgresRepository) queryProducts(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query products rows: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Characteristics, &p.Description, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
