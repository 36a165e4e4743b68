package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/barelle/storefront/internal/order"
)

// Repository is the read side of the back office. It runs on its own
// database/sql pool through sqlx, separate from the pgx pool that serves
// storefront writes.
type Repository interface {
	ListOrders(ctx context.Context, filter OrderFilter, page Page) ([]OrderSummary, int, error)
	ListUsers(ctx context.Context, page Page) ([]UserSummary, int, error)
	ListProducts(ctx context.Context, page Page) ([]ProductSummary, int, error)
	Stats(ctx context.Context) (*Stats, error)
}

type sqlxRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlxRepository{db: db}
}

func (r *sqlxRepository) ListOrders(ctx context.Context, filter OrderFilter, page Page) ([]OrderSummary, int, error) {
	var conds []string
	var args []any

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, "o.order_status = ANY($"+strconv.Itoa(len(args))+")")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(o.order_number ILIKE $"+n+" OR o.customer_name ILIKE $"+n+
			" OR o.customer_email ILIKE $"+n+" OR o.company_name ILIKE $"+n+")")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM orders o`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	query := `
		SELECT o.id, o.order_number, o.user_id, o.customer_type, o.customer_name, o.customer_email,
			o.company_name, o.total, o.order_status, o.payment_status, o.payment_method, o.created_at,
			(SELECT COALESCE(SUM(i.quantity), 0) FROM order_items i WHERE i.order_id = o.id) AS item_count
		FROM orders o` + where + `
		ORDER BY o.created_at DESC
		LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)

	orders := make([]OrderSummary, 0)
	if err := r.db.SelectContext(ctx, &orders, query, append(args, page.Limit, page.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (r *sqlxRepository) ListUsers(ctx context.Context, page Page) ([]UserSummary, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count users: %w", err)
	}

	query := `
		SELECT u.id, u.email, u.first_name, u.last_name, u.auth_provider, u.role, u.customer_type,
			u.company_name, u.is_active, u.created_at,
			(SELECT count(*) FROM orders o WHERE o.user_id = u.id) AS order_count
		FROM users u
		ORDER BY u.created_at DESC
		LIMIT $1 OFFSET $2
	`
	users := make([]UserSummary, 0)
	if err := r.db.SelectContext(ctx, &users, query, page.Limit, page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to list users: %w", err)
	}
	return users, total, nil
}

// ListProducts includes inactive products, unlike the storefront catalog.
func (r *sqlxRepository) ListProducts(ctx context.Context, page Page) ([]ProductSummary, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM products`); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count products: %w", err)
	}

	query := `
		SELECT p.id, p.category_id, p.name, p.slug, p.description, p.image_url, p.price, p.b2b_price,
			p.stock, p.is_active, p.is_featured, p.rating, p.review_count, p.created_at, p.updated_at,
			COALESCE(c.name, '') AS category_name
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2
	`
	products := make([]ProductSummary, 0)
	if err := r.db.SelectContext(ctx, &products, query, page.Limit, page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to list products: %w", err)
	}
	return products, total, nil
}

func (r *sqlxRepository) Stats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		Status order.Status    `db:"order_status"`
		Count  int             `db:"count"`
		Amount decimal.Decimal `db:"amount"`
	}
	query := `
		SELECT order_status, count(*) AS count, COALESCE(SUM(total), 0) AS amount
		FROM orders
		GROUP BY order_status
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("repository: failed to aggregate orders: %w", err)
	}

	stats := &Stats{OrdersByStatus: make(map[order.Status]int), Revenue: decimal.Zero}
	for _, row := range rows {
		stats.OrdersByStatus[row.Status] = row.Count
		stats.TotalOrders += row.Count
		if row.Status != order.StatusCancelled {
			stats.Revenue = stats.Revenue.Add(row.Amount)
		}
	}

	if err := r.db.GetContext(ctx, &stats.Users, `SELECT count(*) FROM users`); err != nil {
		return nil, fmt.Errorf("repository: failed to count users: %w", err)
	}
	if err := r.db.GetContext(ctx, &stats.ActiveProducts, `SELECT count(*) FROM products WHERE is_active`); err != nil {
		return nil, fmt.Errorf("repository: failed to count products: %w", err)
	}
	return stats, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
