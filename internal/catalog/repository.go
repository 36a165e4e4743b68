package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/barelle/storefront/internal/db"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrSlugExists       = errors.New("slug already exists")
)

type Repository interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c *Category) error
}

// ProductColumns is the select list matching ScanProduct, for callers that
// join products under the alias p.
const ProductColumns = `p.id, p.category_id, p.name, p.slug, p.description, p.image_url, p.price, p.b2b_price,
	p.stock, p.is_active, p.is_featured, p.rating, p.review_count, p.created_at, p.updated_at`

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

// ScanProduct reads ProductColumns, followed by any extra destinations.
func ScanProduct(row pgx.Row, p *Product, extra ...any) error {
	dest := []any{
		&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.ImageURL, &p.Price, &p.B2BPrice,
		&p.Stock, &p.IsActive, &p.IsFeatured, &p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func (r *postgresRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	conds := []string{"p.is_active = TRUE"}
	args := []any{}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conds = append(conds, "p.category_id = $"+strconv.Itoa(len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(p.name ILIKE $"+n+" OR p.description ILIKE $"+n+")")
	}
	if filter.FeaturedOnly {
		conds = append(conds, "p.is_featured = TRUE")
	}

	query := `SELECT ` + ProductColumns + ` FROM products p WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY p.created_at DESC`

	rows, err := db.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := ScanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, nil
}

func (r *postgresRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return r.getProduct(ctx, "p.id = $1", id)
}

func (r *postgresRepository) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	return r.getProduct(ctx, "p.slug = $1", slug)
}

func (r *postgresRepository) getProduct(ctx context.Context, where string, arg any) (*Product, error) {
	query := `SELECT ` + ProductColumns + ` FROM products p WHERE ` + where

	var p Product
	if err := ScanProduct(db.Conn(ctx, r.db).QueryRow(ctx, query, arg), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by %v: %w", arg, err)
	}
	return &p, nil
}

func (r *postgresRepository) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		p.ID = id
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	query := `
		INSERT INTO products (id, category_id, name, slug, description, image_url, price, b2b_price,
			stock, is_active, is_featured, rating, review_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := db.Conn(ctx, r.db).Exec(ctx, query,
		p.ID, p.CategoryID, p.Name, p.Slug, p.Description, p.ImageURL, p.Price, p.B2BPrice,
		p.Stock, p.IsActive, p.IsFeatured, p.Rating, p.ReviewCount, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert product", err)
	}
	return nil
}

func (r *postgresRepository) UpdateProduct(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET category_id = $1, name = $2, slug = $3, description = $4, image_url = $5, price = $6,
			b2b_price = $7, stock = $8, is_active = $9, is_featured = $10, updated_at = $11
		WHERE id = $12
		RETURNING created_at, rating, review_count
	`
	err := db.Conn(ctx, r.db).QueryRow(ctx, query,
		p.CategoryID, p.Name, p.Slug, p.Description, p.ImageURL, p.Price,
		p.B2BPrice, p.Stock, p.IsActive, p.IsFeatured, p.UpdatedAt, p.ID,
	).Scan(&p.CreatedAt, &p.Rating, &p.ReviewCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return mapWriteError("update product", err)
	}
	return nil
}

func (r *postgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	query := `
		SELECT id, name, slug, description, image_url, is_active, sort_order, created_at
		FROM categories
		WHERE is_active = TRUE
		ORDER BY sort_order, name
	`
	rows, err := db.Conn(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.IsActive, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating categories: %w", err)
	}
	return categories, nil
}

func (r *postgresRepository) CreateCategory(ctx context.Context, c *Category) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate category ID: %w", err)
		}
		c.ID = id
	}
	c.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO categories (id, name, slug, description, image_url, is_active, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.Conn(ctx, r.db).Exec(ctx, query,
		c.ID, c.Name, c.Slug, c.Description, c.ImageURL, c.IsActive, c.SortOrder, c.CreatedAt)
	if err != nil {
		return mapWriteError("insert category", err)
	}
	return nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return ErrSlugExists
		case pgerrcode.ForeignKeyViolation:
			return ErrCategoryNotFound
		}
	}
	return fmt.Errorf("repository: failed to %s: %w", op, err)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
