package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/catalog"
	"github.com/barelle/storefront/internal/pricing"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// ProductReader is the slice of the catalog the cart needs to validate adds.
type ProductReader interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

type Service interface {
	ListLines(ctx context.Context, owner Owner) ([]Line, error)
	AddLine(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*Line, error)
	SetQuantity(ctx context.Context, owner Owner, lineID uuid.UUID, quantity int) (*Line, error)
	RemoveLine(ctx context.Context, owner Owner, lineID uuid.UUID) error
	Clear(ctx context.Context, owner Owner) error
	Merge(ctx context.Context, from, to Owner) error
	Summary(ctx context.Context, owner Owner, class pricing.Classification) (*pricing.Quote, error)
}

type service struct {
	repo     Repository
	products ProductReader
	policy   pricing.Policy
}

func NewService(repo Repository, products ProductReader, policy pricing.Policy) Service {
	return &service{repo: repo, products: products, policy: policy}
}

func (s *service) ListLines(ctx context.Context, owner Owner) ([]Line, error) {
	lines, err := s.repo.ListLines(ctx, owner)
	if err != nil {
		if errors.Is(err, ErrInvalidOwner) {
			return nil, err
		}
		log.Error().Err(err).Stringer("owner", owner).Msg("service: failed to list cart lines")
		return nil, fmt.Errorf("service: failed to list cart lines: %w", err)
	}
	return lines, nil
}

func (s *service) AddLine(ctx context.Context, owner Owner, productID uuid.UUID, quantity int) (*Line, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			log.Warn().Stringer("product_id", productID).Msg("service: add to cart for unknown product")
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to load product %s: %w", productID, err)
	}
	if !p.IsActive {
		log.Warn().Stringer("product_id", productID).Msg("service: add to cart for inactive product")
		return nil, catalog.ErrProductNotFound
	}

	line, err := s.repo.AddLine(ctx, owner, productID, quantity)
	if err != nil {
		if errors.Is(err, ErrInvalidOwner) || errors.Is(err, catalog.ErrProductNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("owner", owner).Stringer("product_id", productID).Msg("service: failed to add cart line")
		return nil, fmt.Errorf("service: failed to add cart line: %w", err)
	}

	log.Info().Stringer("owner", owner).Stringer("product_id", productID).Int("quantity", line.Quantity).Msg("service: cart line added")
	return line, nil
}

func (s *service) SetQuantity(ctx context.Context, owner Owner, lineID uuid.UUID, quantity int) (*Line, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	line, err := s.repo.SetQuantity(ctx, owner, lineID, quantity)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) || errors.Is(err, ErrInvalidOwner) {
			return nil, err
		}
		log.Error().Err(err).Stringer("line_id", lineID).Msg("service: failed to set cart line quantity")
		return nil, fmt.Errorf("service: failed to set cart line quantity: %w", err)
	}
	return line, nil
}

func (s *service) RemoveLine(ctx context.Context, owner Owner, lineID uuid.UUID) error {
	if err := s.repo.RemoveLine(ctx, owner, lineID); err != nil {
		if errors.Is(err, ErrInvalidOwner) {
			return err
		}
		log.Error().Err(err).Stringer("line_id", lineID).Msg("service: failed to remove cart line")
		return fmt.Errorf("service: failed to remove cart line: %w", err)
	}
	return nil
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	if err := s.repo.Clear(ctx, owner); err != nil {
		if errors.Is(err, ErrInvalidOwner) {
			return err
		}
		log.Error().Err(err).Stringer("owner", owner).Msg("service: failed to clear cart")
		return fmt.Errorf("service: failed to clear cart: %w", err)
	}
	return nil
}

func (s *service) Merge(ctx context.Context, from, to Owner) error {
	if err := s.repo.Merge(ctx, from, to); err != nil {
		if errors.Is(err, ErrInvalidOwner) {
			return err
		}
		log.Error().Err(err).Stringer("from", from).Stringer("to", to).Msg("service: failed to merge carts")
		return fmt.Errorf("service: failed to merge carts: %w", err)
	}
	log.Info().Stringer("from", from).Stringer("to", to).Msg("service: guest cart merged")
	return nil
}

// Summary prices the cart at current catalog prices. Nothing is persisted.
func (s *service) Summary(ctx context.Context, owner Owner, class pricing.Classification) (*pricing.Quote, error) {
	lines, err := s.ListLines(ctx, owner)
	if err != nil {
		return nil, err
	}
	q := s.policy.Quote(Items(lines), class)
	return &q, nil
}
