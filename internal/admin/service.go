package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/catalog"
	"github.com/barelle/storefront/internal/order"
	"github.com/barelle/storefront/internal/user"
)

var ErrInvalidFilter = errors.New("invalid filter")

// Service is the back office: paginated listings from the read side, and
// mutations delegated to the owning domain services so their rules apply.
type Service interface {
	Stats(ctx context.Context) (*Stats, error)
	ListOrders(ctx context.Context, filter OrderFilter, page Page) (*PageResult[OrderSummary], error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, update order.StatusUpdate) (*order.Order, error)
	ListUsers(ctx context.Context, page Page) (*PageResult[UserSummary], error)
	UpdateUserAccess(ctx context.Context, id uuid.UUID, update user.AccessUpdate) (*user.User, error)
	ListProducts(ctx context.Context, page Page) (*PageResult[ProductSummary], error)
	CreateProduct(ctx context.Context, input catalog.ProductInput) (*catalog.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input catalog.ProductInput) (*catalog.Product, error)
	CreateCategory(ctx context.Context, input catalog.CategoryInput) (*catalog.Category, error)
}

type service struct {
	repo    Repository
	orders  order.Service
	users   user.Service
	catalog catalog.Service
}

func NewService(repo Repository, orders order.Service, users user.Service, catalog catalog.Service) Service {
	return &service{repo: repo, orders: orders, users: users, catalog: catalog}
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load admin stats")
		return nil, fmt.Errorf("service: failed to load stats: %w", err)
	}
	return stats, nil
}

func (s *service) ListOrders(ctx context.Context, filter OrderFilter, page Page) (*PageResult[OrderSummary], error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, st)
		}
	}
	page = page.Normalize()

	items, total, err := s.repo.ListOrders(ctx, filter, page)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return &PageResult[OrderSummary]{Items: items, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, update order.StatusUpdate) (*order.Order, error) {
	return s.orders.UpdateStatus(ctx, id, update)
}

func (s *service) ListUsers(ctx context.Context, page Page) (*PageResult[UserSummary], error) {
	page = page.Normalize()

	items, total, err := s.repo.ListUsers(ctx, page)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list users")
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}
	return &PageResult[UserSummary]{Items: items, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (s *service) UpdateUserAccess(ctx context.Context, id uuid.UUID, update user.AccessUpdate) (*user.User, error) {
	return s.users.SetAccess(ctx, id, update)
}

func (s *service) ListProducts(ctx context.Context, page Page) (*PageResult[ProductSummary], error) {
	page = page.Normalize()

	items, total, err := s.repo.ListProducts(ctx, page)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return &PageResult[ProductSummary]{Items: items, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (s *service) CreateProduct(ctx context.Context, input catalog.ProductInput) (*catalog.Product, error) {
	return s.catalog.CreateProduct(ctx, input)
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input catalog.ProductInput) (*catalog.Product, error) {
	return s.catalog.UpdateProduct(ctx, id, input)
}

func (s *service) CreateCategory(ctx context.Context, input catalog.CategoryInput) (*catalog.Category, error) {
	return s.catalog.CreateCategory(ctx, input)
}
