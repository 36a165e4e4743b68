package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/db"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrConcurrentUpdate     = errors.New("order was modified concurrently")
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	// UpdateStatus writes o's statuses only if the stored ones still equal
	// prevStatus and prevPayment.
	UpdateStatus(ctx context.Context, o *Order, prevStatus Status, prevPayment PaymentStatus) error
}

const orderColumns = `id, order_number, user_id, session_id, customer_type, customer_name, customer_email,
	customer_phone, company_name, tax_id, delivery_address, delivery_city, delivery_district,
	payment_method, notes, subtotal, delivery_fee, total, order_status, payment_status, created_at, updated_at`

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.SessionID, &o.CustomerType, &o.CustomerName, &o.CustomerEmail,
		&o.CustomerPhone, &o.CompanyName, &o.TaxID, &o.DeliveryAddress, &o.DeliveryCity, &o.DeliveryDistrict,
		&o.PaymentMethod, &o.Notes, &o.Subtotal, &o.DeliveryFee, &o.Total, &o.Status, &o.PaymentStatus,
		&o.CreatedAt, &o.UpdatedAt,
	)
}

// Create inserts the order and its lines. Call it inside a transaction: a
// failure part way leaves partial rows otherwise.
func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		o.ID = id
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	conn := db.Conn(ctx, r.db)

	queryOrder := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := conn.Exec(ctx, queryOrder,
		o.ID, o.OrderNumber, o.UserID, o.SessionID, o.CustomerType, o.CustomerName, o.CustomerEmail,
		o.CustomerPhone, o.CompanyName, o.TaxID, o.DeliveryAddress, o.DeliveryCity, o.DeliveryDistrict,
		o.PaymentMethod, o.Notes, o.Subtotal, o.DeliveryFee, o.Total, o.Status, o.PaymentStatus,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "orders_order_number_key" {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("repository: failed to insert order %s: %w", o.OrderNumber, err)
	}

	queryLine := `
		INSERT INTO order_items (id, order_id, product_id, product_name, price, quantity, subtotal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i := range o.Lines {
		line := &o.Lines[i]

		lineID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order line ID: %w", err)
		}
		line.ID = lineID
		line.OrderID = o.ID
		line.CreatedAt = now

		_, err = conn.Exec(ctx, queryLine,
			line.ID, line.OrderID, line.ProductID, line.ProductName, line.Price, line.Quantity, line.Subtotal, line.CreatedAt)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order line for order %s: %w", o.OrderNumber, err)
		}
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *postgresRepository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return r.get(ctx, "order_number = $1", number)
}

func (r *postgresRepository) get(ctx context.Context, where string, arg any) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where

	var o Order
	if err := scanOrder(db.Conn(ctx, r.db).QueryRow(ctx, query, arg), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by %v: %w", arg, err)
	}

	lines, err := r.linesFor(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	if o.Lines == nil {
		o.Lines = make([]Line, 0)
	}
	return &o, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := db.Conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	var ids []uuid.UUID
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for user id %s: %w", userID, err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for user id %s: %w", userID, err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
		if orders[i].Lines == nil {
			orders[i].Lines = make([]Line, 0)
		}
	}
	return orders, nil
}

func (r *postgresRepository) linesFor(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Line, error) {
	query := `
		SELECT id, order_id, product_id, product_name, price, quantity, subtotal, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`
	rows, err := db.Conn(ctx, r.db).Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order lines: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]Line, len(orderIDs))
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Price, &l.Quantity, &l.Subtotal, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order line: %w", err)
		}
		result[l.OrderID] = append(result[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order lines: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, o *Order, prevStatus Status, prevPayment PaymentStatus) error {
	updatedAt := time.Now().UTC()

	query := `
		UPDATE orders
		SET order_status = $1, payment_status = $2, updated_at = $3
		WHERE id = $4 AND order_status = $5 AND payment_status = $6
	`
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, query,
		o.Status, o.PaymentStatus, updatedAt, o.ID, prevStatus, prevPayment)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", o.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}

	o.UpdatedAt = updatedAt
	return nil
}
