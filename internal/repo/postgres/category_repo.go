package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkoziel/ogloszybko/internal/domain/model"
)

var ErrCategoryNotFound = errors.New("category not found")

type CategoryRepo struct {
	pool *pgxpool.Pool
}

func NewCategoryRepo(pool *pgxpool.Pool) *CategoryRepo {
	return &CategoryRepo{pool: pool}
}

// ListActive returns active categories with the count of publicly visible
// listings in each.
func (r *CategoryRepo) ListActive(ctx context.Context) ([]model.CategoryWithCount, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	c.id, c.name, c.slug, c.icon, COALESCE(c.description, ''), c.is_active, c.sort_order, c.created_at,
	COUNT(l.id)
FROM categories c
LEFT JOIN listings l
	ON l.category_id = c.id AND l.is_active = TRUE AND l.is_approved = TRUE
WHERE c.is_active = TRUE
GROUP BY c.id
ORDER BY c.sort_order ASC, c.id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	items := make([]model.CategoryWithCount, 0)
	for rows.Next() {
		var item model.CategoryWithCount
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Slug, &item.Icon, &item.Description,
			&item.IsActive, &item.SortOrder, &item.CreatedAt, &item.ListingCount,
		); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate categories: %w", rows.Err())
	}

	return items, nil
}

func (r *CategoryRepo) GetName(ctx context.Context, id int64) (string, error) {
	if r.pool == nil {
		return "", fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return "", ErrCategoryNotFound
	}

	var name string
	err := r.pool.QueryRow(ctx, `
SELECT name
FROM categories
WHERE id = $1 AND is_active = TRUE
`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrCategoryNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get category name: %w", err)
	}
	return name, nil
}

func (r *CategoryRepo) Create(ctx context.Context, category model.Category) (model.Category, error) {
	if r.pool == nil {
		return model.Category{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(category.Name) == "" || strings.TrimSpace(category.Slug) == "" {
		return model.Category{}, fmt.Errorf("category name and slug are required")
	}

	var created model.Category
	err := r.pool.QueryRow(ctx, `
INSERT INTO categories (name, slug, icon, description, is_active, sort_order, created_at)
VALUES ($1, $2, $3, $4, TRUE, $5, NOW())
RETURNING id, name, slug, icon, COALESCE(description, ''), is_active, sort_order, created_at
`, category.Name, category.Slug, category.Icon, category.Description, category.SortOrder).Scan(
		&created.ID, &created.Name, &created.Slug, &created.Icon, &created.Description,
		&created.IsActive, &created.SortOrder, &created.CreatedAt,
	)
	if err != nil {
		return model.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return created, nil
}

func (r *CategoryRepo) Count(ctx context.Context) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return count, nil
}
