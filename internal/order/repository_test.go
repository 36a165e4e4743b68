package order_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barelle/storefront/internal/cart"
	"github.com/barelle/storefront/internal/catalog"
	"github.com/barelle/storefront/internal/db"
	"github.com/barelle/storefront/internal/db/dbtest"
	"github.com/barelle/storefront/internal/order"
	"github.com/barelle/storefront/internal/pricing"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	pool = dbtest.Open()
	code := m.Run()
	if pool != nil {
		pool.Close()
	}
	os.Exit(code)
}

func setup(t *testing.T) {
	dbtest.Require(t, pool)
	dbtest.Truncate(t, pool)
	t.Cleanup(func() { dbtest.Truncate(t, pool) })
}

func seedCart(t *testing.T, owner cart.Owner, price string, qty int) *catalog.Product {
	t.Helper()
	ctx := context.Background()
	p := &catalog.Product{
		Name:     "Hazelnut paste",
		Slug:     "hazelnut-paste",
		Price:    decimal.RequireFromString(price),
		Rating:   decimal.Zero,
		IsActive: true,
	}
	require.NoError(t, catalog.NewRepository(pool).CreateProduct(ctx, p))
	_, err := cart.NewRepository(pool).AddLine(ctx, owner, p.ID, qty)
	require.NoError(t, err)
	return p
}

// failingRemoval removes the ordered lines for real, then fails, so the
// surrounding transaction has to undo both the order insert and the removal.
type failingRemoval struct {
	cart.Repository
}

func (f failingRemoval) RemoveLines(ctx context.Context, owner cart.Owner, lineIDs []uuid.UUID) error {
	if err := f.Repository.RemoveLines(ctx, owner, lineIDs); err != nil {
		return err
	}
	return errors.New("simulated failure after removal")
}

// lateAddition adds a line on its own connection while checkout is still
// running, before the ordered lines are removed.
type lateAddition struct {
	cart.Repository
	productID uuid.UUID
}

func (l lateAddition) RemoveLines(ctx context.Context, owner cart.Owner, lineIDs []uuid.UUID) error {
	if _, err := cart.NewRepository(pool).AddLine(context.Background(), owner, l.productID, 3); err != nil {
		return err
	}
	return l.Repository.RemoveLines(ctx, owner, lineIDs)
}

func TestOrderPlacement_CommitsAndSnapshots(t *testing.T) {
	setup(t)
	ctx := context.Background()
	owner := cart.SessionOwner("guest-int")
	p := seedCart(t, owner, "10000", 2)

	carts := cart.NewRepository(pool)
	repo := order.NewRepository(pool)
	svc := order.NewService(repo, carts, db.NewTransactor(pool), pricing.DefaultPolicy, order.RandomNumbers{})

	o, err := svc.CreateOrder(ctx, owner, retailInfo(), pricing.B2C)
	require.NoError(t, err)

	lines, err := carts.ListLines(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = pool.Exec(ctx, `UPDATE products SET price = 99999, name = 'Renamed' WHERE id = $1`, p.ID)
	require.NoError(t, err)

	stored, err := repo.GetByNumber(ctx, o.OrderNumber)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(decimal.NewFromInt(22500)))
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "Hazelnut paste", stored.Lines[0].ProductName)
	assert.True(t, stored.Lines[0].Price.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, "guest-int", stored.SessionID)
}

func TestOrderPlacement_CartRemovalFailureRollsBack(t *testing.T) {
	setup(t)
	ctx := context.Background()
	owner := cart.SessionOwner("guest-rollback")
	seedCart(t, owner, "500", 1)

	carts := cart.NewRepository(pool)
	svc := order.NewService(order.NewRepository(pool), failingRemoval{carts}, db.NewTransactor(pool), pricing.DefaultPolicy, order.RandomNumbers{})

	_, err := svc.CreateOrder(ctx, owner, retailInfo(), pricing.B2C)
	require.ErrorIs(t, err, order.ErrOrderCreationFailed)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&count))
	assert.Zero(t, count)
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM order_items`).Scan(&count))
	assert.Zero(t, count)

	lines, err := carts.ListLines(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestOrderPlacement_ConcurrentCheckoutsPlaceOneOrder(t *testing.T) {
	setup(t)
	ctx := context.Background()
	owner := cart.SessionOwner("guest-double-click")
	seedCart(t, owner, "10000", 1)

	svc := order.NewService(order.NewRepository(pool), cart.NewRepository(pool), db.NewTransactor(pool), pricing.DefaultPolicy, order.RandomNumbers{})

	const attempts = 2
	errs := make(chan error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		go func() {
			<-start
			_, err := svc.CreateOrder(ctx, owner, retailInfo(), pricing.B2C)
			errs <- err
		}()
	}
	close(start)

	var placed, empty int
	for i := 0; i < attempts; i++ {
		err := <-errs
		switch {
		case err == nil:
			placed++
		case errors.Is(err, order.ErrEmptyCart):
			empty++
		default:
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, 1, empty)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestOrderPlacement_KeepsLinesAddedDuringCheckout(t *testing.T) {
	setup(t)
	ctx := context.Background()
	owner := cart.SessionOwner("guest-late")
	seedCart(t, owner, "10000", 1)

	extra := &catalog.Product{
		Name:     "Tahini",
		Slug:     "tahini",
		Price:    decimal.NewFromInt(300),
		Rating:   decimal.Zero,
		IsActive: true,
	}
	require.NoError(t, catalog.NewRepository(pool).CreateProduct(ctx, extra))

	carts := cart.NewRepository(pool)
	svc := order.NewService(order.NewRepository(pool), lateAddition{Repository: carts, productID: extra.ID},
		db.NewTransactor(pool), pricing.DefaultPolicy, order.RandomNumbers{})

	o, err := svc.CreateOrder(ctx, owner, retailInfo(), pricing.B2C)
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "Hazelnut paste", o.Lines[0].ProductName)

	lines, err := carts.ListLines(ctx, owner)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, extra.ID, lines[0].ProductID)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestRepository_DuplicateNumberAndStatusCAS(t *testing.T) {
	setup(t)
	ctx := context.Background()
	repo := order.NewRepository(pool)

	newOrder := func(number string) *order.Order {
		return &order.Order{
			OrderNumber:     number,
			CustomerType:    pricing.B2C,
			CustomerName:    "A",
			CustomerEmail:   "a@example.com",
			CustomerPhone:   "1",
			DeliveryAddress: "Street 1",
			DeliveryCity:    "Izmir",
			PaymentMethod:   order.PaymentCard,
			Subtotal:        decimal.NewFromInt(100),
			DeliveryFee:     decimal.NewFromInt(2500),
			Total:           decimal.NewFromInt(2600),
			Status:          order.StatusPending,
			PaymentStatus:   order.PaymentPending,
		}
	}

	first := newOrder("ORD-1-AAAAAA")
	require.NoError(t, repo.Create(ctx, first))
	assert.ErrorIs(t, repo.Create(ctx, newOrder("ORD-1-AAAAAA")), order.ErrDuplicateOrderNumber)

	first.Status = order.StatusConfirmed
	require.NoError(t, repo.UpdateStatus(ctx, first, order.StatusPending, order.PaymentPending))

	stale := *first
	stale.Status = order.StatusCancelled
	assert.ErrorIs(t, repo.UpdateStatus(ctx, &stale, order.StatusPending, order.PaymentPending), order.ErrConcurrentUpdate)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	assert.Empty(t, got.Lines)

	_, err = repo.GetByID(ctx, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}
