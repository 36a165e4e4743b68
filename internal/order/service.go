package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/cart"
	"github.com/barelle/storefront/internal/db"
	"github.com/barelle/storefront/internal/pricing"
)

const maxNumberAttempts = 3

var (
	ErrEmptyCart                = errors.New("cart is empty")
	ErrBelowMinimumOrder        = errors.New("order subtotal is below the business minimum")
	ErrOrderCreationFailed      = errors.New("order creation failed")
	ErrInvalidCustomerInfo      = errors.New("invalid customer info")
	ErrInvalidStatus            = errors.New("unknown order or payment status")
	ErrInvalidStatusTransition  = errors.New("invalid order status transition")
	ErrInvalidPaymentTransition = errors.New("invalid payment status transition")
)

// CartStore is what order placement needs from the cart. Both calls must
// honour the transaction carried by ctx, and ListLines must lock the lines it
// returns until that transaction ends.
type CartStore interface {
	ListLines(ctx context.Context, owner cart.Owner) ([]cart.Line, error)
	RemoveLines(ctx context.Context, owner cart.Owner, lineIDs []uuid.UUID) error
}

type Service interface {
	CreateOrder(ctx context.Context, owner cart.Owner, info CustomerInfo, class pricing.Classification) (*Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*Order, error)
}

type service struct {
	orderRepo Repository
	carts     CartStore
	tx        db.Transactor
	policy    pricing.Policy
	numbers   NumberGenerator
}

func NewService(orderRepo Repository, carts CartStore, tx db.Transactor, policy pricing.Policy, numbers NumberGenerator) Service {
	return &service{
		orderRepo: orderRepo,
		carts:     carts,
		tx:        tx,
		policy:    policy,
		numbers:   numbers,
	}
}

func (info CustomerInfo) validate(class pricing.Classification) error {
	required := []struct{ field, value string }{
		{"customerName", info.CustomerName},
		{"customerEmail", info.CustomerEmail},
		{"customerPhone", info.CustomerPhone},
		{"deliveryAddress", info.DeliveryAddress},
		{"deliveryCity", info.DeliveryCity},
	}
	if class == pricing.B2B {
		required = append(required,
			struct{ field, value string }{"companyName", info.CompanyName},
			struct{ field, value string }{"taxId", info.TaxID},
		)
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidCustomerInfo, r.field)
		}
	}
	if !info.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidCustomerInfo, info.PaymentMethod)
	}
	return nil
}

// CreateOrder turns the owner's cart into an order. Reading the cart, the
// order insert and removing the ordered lines commit together or not at all.
func (s *service) CreateOrder(ctx context.Context, owner cart.Owner, info CustomerInfo, class pricing.Classification) (*Order, error) {
	if class != pricing.B2B {
		class = pricing.B2C
	}
	if err := info.validate(class); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := s.numbers.Next(class)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
		}

		var o *Order
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			o, err = s.placeOrder(ctx, owner, info, class, number)
			return err
		})
		switch {
		case err == nil:
			log.Info().
				Stringer("order_id", o.ID).
				Str("order_number", o.OrderNumber).
				Stringer("customer_type", class).
				Stringer("total", o.Total).
				Msg("service: order created")
			return o, nil
		case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrBelowMinimumOrder):
			return nil, err
		case errors.Is(err, ErrDuplicateOrderNumber):
			log.Warn().Str("order_number", number).Int("attempt", attempt).Msg("service: order number collision, retrying")
			continue
		}

		log.Error().Err(err).Stringer("owner", owner).Msg("service: failed to persist order")
		return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
	}

	log.Error().Stringer("owner", owner).Msg("service: could not allocate a unique order number")
	return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, ErrDuplicateOrderNumber)
}

// placeOrder runs inside the checkout transaction. Only the lines it read are
// removed, so a line added meanwhile stays in the cart.
func (s *service) placeOrder(ctx context.Context, owner cart.Owner, info CustomerInfo, class pricing.Classification, number string) (*Order, error) {
	lines, err := s.carts.ListLines(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(lines) == 0 {
		log.Warn().Stringer("owner", owner).Msg("service: attempt to create order from empty cart")
		return nil, ErrEmptyCart
	}

	quote := s.policy.Quote(cart.Items(lines), class)
	if class == pricing.B2B && !quote.MeetsMinimum {
		log.Warn().Stringer("owner", owner).Stringer("subtotal", quote.Subtotal).Msg("service: business order below minimum")
		return nil, fmt.Errorf("%w: subtotal %s, minimum %s", ErrBelowMinimumOrder, quote.Subtotal, quote.MinimumOrder)
	}

	o := newOrder(owner, info, quote)
	o.OrderNumber = number
	if err := s.orderRepo.Create(ctx, o); err != nil {
		return nil, err
	}

	lineIDs := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		lineIDs = append(lineIDs, l.ID)
	}
	if err := s.carts.RemoveLines(ctx, owner, lineIDs); err != nil {
		return nil, fmt.Errorf("failed to remove ordered lines: %w", err)
	}
	return o, nil
}

func newOrder(owner cart.Owner, info CustomerInfo, quote pricing.Quote) *Order {
	o := &Order{
		CustomerType:     quote.Classification,
		CustomerName:     strings.TrimSpace(info.CustomerName),
		CustomerEmail:    strings.TrimSpace(info.CustomerEmail),
		CustomerPhone:    strings.TrimSpace(info.CustomerPhone),
		DeliveryAddress:  strings.TrimSpace(info.DeliveryAddress),
		DeliveryCity:     strings.TrimSpace(info.DeliveryCity),
		DeliveryDistrict: strings.TrimSpace(info.DeliveryDistrict),
		PaymentMethod:    info.PaymentMethod,
		Notes:            info.Notes,
		Subtotal:         quote.Subtotal,
		DeliveryFee:      quote.DeliveryFee,
		Total:            quote.Total,
		Status:           StatusPending,
		PaymentStatus:    PaymentPending,
		Lines:            make([]Line, 0, len(quote.Lines)),
	}
	if quote.Classification == pricing.B2B {
		o.CompanyName = strings.TrimSpace(info.CompanyName)
		o.TaxID = strings.TrimSpace(info.TaxID)
	}

	switch owner.Kind {
	case cart.OwnerUser:
		id := owner.UserID()
		o.UserID = &id
	case cart.OwnerSession:
		o.SessionID = owner.ID
	}

	for _, lq := range quote.Lines {
		productID := lq.ProductID
		o.Lines = append(o.Lines, Line{
			ProductID:   &productID,
			ProductName: lq.Name,
			Price:       lq.UnitPrice,
			Quantity:    lq.Quantity,
			Subtotal:    lq.Subtotal,
		})
	}
	return o
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) GetByNumber(ctx context.Context, number string) (*Order, error) {
	o, err := s.orderRepo.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("order_number", number).Msg("service: order not found by number")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("order_number", number).Msg("service: failed to fetch order by number")
		return nil, fmt.Errorf("service: failed to fetch order by number: %w", err)
	}
	return o, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus applies the requested status changes. A field equal to the
// current value is a no-op; anything else must be an allowed transition.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*Order, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *update.Status)
	}
	if update.PaymentStatus != nil && !update.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *update.PaymentStatus)
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prevStatus, prevPayment := current.Status, current.PaymentStatus
	changed := false

	if update.Status != nil && *update.Status != prevStatus {
		if !allowedTransitions[prevStatus][*update.Status] {
			log.Warn().
				Stringer("order_id", id).
				Stringer("current_status", prevStatus).
				Stringer("new_status", *update.Status).
				Msg("service: invalid status transition attempt")
			return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, prevStatus, *update.Status)
		}
		current.Status = *update.Status
		changed = true
	}

	if update.PaymentStatus != nil && *update.PaymentStatus != prevPayment {
		if !allowedPaymentTransitions[prevPayment][*update.PaymentStatus] {
			log.Warn().
				Stringer("order_id", id).
				Stringer("current_payment_status", prevPayment).
				Stringer("new_payment_status", *update.PaymentStatus).
				Msg("service: invalid payment status transition attempt")
			return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidPaymentTransition, prevPayment, *update.PaymentStatus)
		}
		current.PaymentStatus = *update.PaymentStatus
		changed = true
	}

	if !changed {
		return current, nil
	}

	if err := s.orderRepo.UpdateStatus(ctx, current, prevStatus, prevPayment); err != nil {
		if errors.Is(err, ErrConcurrentUpdate) {
			log.Warn().Stringer("order_id", id).Msg("service: order status changed by another request")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update order status")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Stringer("order_id", id).
		Stringer("order_status", current.Status).
		Stringer("payment_status", current.PaymentStatus).
		Msg("service: order status updated")
	return current, nil
}
