package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice = errors.New("invalid price")
	ErrInvalidStock = errors.New("stock cannot be negative")
	ErrNameRequired = errors.New("name is required")
)

type Service interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*Product, error)
	CreateCategory(ctx context.Context, input CategoryInput) (*Category, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	p, err := s.repo.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Str("slug", slug).Msg("service: failed to get product by slug")
		return nil, fmt.Errorf("service: failed to get product by slug '%s': %w", slug, err)
	}
	if !p.IsActive {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// GetProductByID returns the product whether or not it is active; callers
// that sell it must check IsActive.
func (s *service) GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to get product by id")
		return nil, fmt.Errorf("service: failed to get product by id '%s': %w", id, err)
	}
	return p, nil
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if err := validateProductInput(&input); err != nil {
		return nil, err
	}

	p := &Product{
		Rating: decimal.Zero,
	}
	applyProductInput(p, input)
	if p.Slug == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("service: failed to generate product ID: %w", err)
		}
		p.ID = id
		p.Slug = fallbackSlug("product", id)
	}

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrSlugExists) || errors.Is(err, ErrCategoryNotFound) {
			return nil, err
		}
		log.Error().Err(err).Str("slug", p.Slug).Msg("service: failed to create product")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Str("slug", p.Slug).Msg("service: product created")
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*Product, error) {
	if err := validateProductInput(&input); err != nil {
		return nil, err
	}

	p := &Product{ID: id}
	applyProductInput(p, input)
	if p.Slug == "" {
		p.Slug = fallbackSlug("product", id)
	}

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrSlugExists) || errors.Is(err, ErrCategoryNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to update product")
		return nil, fmt.Errorf("service: failed to update product '%s': %w", id, err)
	}

	log.Info().Stringer("product_id", id).Msg("service: product updated")
	return p, nil
}

func (s *service) CreateCategory(ctx context.Context, input CategoryInput) (*Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(input.Name)
	}

	c := &Category{
		Name:        input.Name,
		Slug:        slug,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		IsActive:    true,
		SortOrder:   input.SortOrder,
	}
	if c.Slug == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("service: failed to generate category ID: %w", err)
		}
		c.ID = id
		c.Slug = fallbackSlug("category", id)
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrSlugExists) {
			return nil, err
		}
		log.Error().Err(err).Str("slug", slug).Msg("service: failed to create category")
		return nil, fmt.Errorf("service: failed to create category: %w", err)
	}
	return c, nil
}

func validateProductInput(input *ProductInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return ErrNameRequired
	}
	if input.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidPrice)
	}
	if input.B2BPrice.Valid {
		if input.B2BPrice.Decimal.IsNegative() {
			return fmt.Errorf("%w: business price cannot be negative", ErrInvalidPrice)
		}
		if input.B2BPrice.Decimal.GreaterThan(input.Price) {
			return fmt.Errorf("%w: business price cannot exceed retail price", ErrInvalidPrice)
		}
	}
	if input.Stock < 0 {
		return ErrInvalidStock
	}
	return nil
}

func applyProductInput(p *Product, input ProductInput) {
	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(input.Name)
	}
	p.CategoryID = input.CategoryID
	p.Name = input.Name
	p.Slug = slug
	p.Description = input.Description
	p.ImageURL = input.ImageURL
	p.Price = input.Price
	p.B2BPrice = input.B2BPrice
	p.Stock = input.Stock
	p.IsActive = input.IsActive
	p.IsFeatured = input.IsFeatured
}
