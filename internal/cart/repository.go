package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/barelle/storefront/internal/catalog"
	"github.com/barelle/storefront/internal/db"
)

var (
	ErrLineNotFound = errors.New("cart line not found")
	ErrInvalidOwner = errors.New("invalid cart owner")
)

// Repository is the cart store. Every method runs on the transaction in ctx
// when there is one, so order placement can clear the cart atomically.
type Repository interface {
	ListLines(ctx context.Context, owner Owner) ([]Line, error)
	AddLine(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*Line, error)
	SetQuantity(ctx context.Context, owner Owner, lineID uuid.UUID, quantity int) (*Line, error)
	RemoveLine(ctx context.Context, owner Owner, lineID uuid.UUID) error
	Clear(ctx context.Context, owner Owner) error
	RemoveLines(ctx context.Context, owner Owner, lineIDs []uuid.UUID) error
	Merge(ctx context.Context, from, to Owner) error
}

const lineColumns = catalog.ProductColumns + `, c.id, c.quantity, c.created_at, c.updated_at`

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

func scanLine(row pgx.Row, l *Line) error {
	if err := catalog.ScanProduct(row, &l.Product, &l.ID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return err
	}
	l.ProductID = l.Product.ID
	return nil
}

// ListLines reads the owner's lines. Inside a transaction the lines are
// locked until it ends, so two checkouts of one cart cannot both see them.
func (r *postgresRepository) ListLines(ctx context.Context, owner Owner) ([]Line, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}

	query := `
		SELECT ` + lineColumns + `
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.` + owner.column() + ` = $1
		ORDER BY c.created_at, c.id
	`
	if db.InTx(ctx) {
		query += ` FOR UPDATE OF c`
	}
	rows, err := db.Conn(ctx, r.db).Query(ctx, query, owner.value())
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart lines for %s: %w", owner, err)
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		var l Line
		if err := scanLine(rows, &l); err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart lines: %w", err)
	}
	return lines, nil
}

// AddLine inserts the line or, when the owner already holds the product,
// adds quantity to the existing line in the same statement.
func (r *postgresRepository) AddLine(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*Line, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart line ID: %w", err)
	}

	col := owner.column()
	query := `
		WITH c AS (
			INSERT INTO cart_items (id, ` + col + `, product_id, quantity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (` + col + `, product_id) WHERE ` + col + ` IS NOT NULL
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
			RETURNING id, product_id, quantity, created_at, updated_at
		)
		SELECT ` + lineColumns + `
		FROM c
		JOIN products p ON p.id = c.product_id
	`
	var l Line
	if err := scanLine(db.Conn(ctx, r.db).QueryRow(ctx, query, id, owner.value(), productID, quantity), &l); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to upsert cart line: %w", err)
	}
	return &l, nil
}

func (r *postgresRepository) SetQuantity(ctx context.Context, owner Owner, lineID uuid.UUID, quantity int) (*Line, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}

	query := `
		WITH c AS (
			UPDATE cart_items
			SET quantity = $1, updated_at = now()
			WHERE id = $2 AND ` + owner.column() + ` = $3
			RETURNING id, product_id, quantity, created_at, updated_at
		)
		SELECT ` + lineColumns + `
		FROM c
		JOIN products p ON p.id = c.product_id
	`
	var l Line
	if err := scanLine(db.Conn(ctx, r.db).QueryRow(ctx, query, quantity, lineID, owner.value()), &l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("repository: failed to update cart line %s: %w", lineID, err)
	}
	return &l, nil
}

func (r *postgresRepository) RemoveLine(ctx context.Context, owner Owner, lineID uuid.UUID) error {
	if !owner.Valid() {
		return ErrInvalidOwner
	}

	query := `DELETE FROM cart_items WHERE id = $1 AND ` + owner.column() + ` = $2`
	if _, err := db.Conn(ctx, r.db).Exec(ctx, query, lineID, owner.value()); err != nil {
		return fmt.Errorf("repository: failed to delete cart line %s: %w", lineID, err)
	}
	return nil
}

func (r *postgresRepository) Clear(ctx context.Context, owner Owner) error {
	if !owner.Valid() {
		return ErrInvalidOwner
	}

	query := `DELETE FROM cart_items WHERE ` + owner.column() + ` = $1`
	if _, err := db.Conn(ctx, r.db).Exec(ctx, query, owner.value()); err != nil {
		return fmt.Errorf("repository: failed to clear cart for %s: %w", owner, err)
	}
	return nil
}

// RemoveLines deletes the given lines of owner, leaving any others in place.
func (r *postgresRepository) RemoveLines(ctx context.Context, owner Owner, lineIDs []uuid.UUID) error {
	if !owner.Valid() {
		return ErrInvalidOwner
	}
	if len(lineIDs) == 0 {
		return nil
	}

	query := `DELETE FROM cart_items WHERE ` + owner.column() + ` = $1 AND id = ANY($2)`
	if _, err := db.Conn(ctx, r.db).Exec(ctx, query, owner.value(), lineIDs); err != nil {
		return fmt.Errorf("repository: failed to remove ordered lines for %s: %w", owner, err)
	}
	return nil
}

// Merge moves every line of from into to, accumulating quantities for
// products both carts hold.
func (r *postgresRepository) Merge(ctx context.Context, from, to Owner) error {
	if !from.Valid() || !to.Valid() {
		return ErrInvalidOwner
	}
	if from == to {
		return nil
	}

	toCol := to.column()
	toParam := "$2::text"
	if to.Kind == OwnerUser {
		toParam = "$2::uuid"
	}
	query := `
		WITH moved AS (
			DELETE FROM cart_items
			WHERE ` + from.column() + ` = $1
			RETURNING product_id, quantity
		)
		INSERT INTO cart_items (id, ` + toCol + `, product_id, quantity, created_at, updated_at)
		SELECT gen_random_uuid(), ` + toParam + `, product_id, quantity, now(), now()
		FROM moved
		ON CONFLICT (` + toCol + `, product_id) WHERE ` + toCol + ` IS NOT NULL
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
	`
	if _, err := db.Conn(ctx, r.db).Exec(ctx, query, from.value(), to.value()); err != nil {
		return fmt.Errorf("repository: failed to merge cart %s into %s: %w", from, to, err)
	}
	return nil
}
