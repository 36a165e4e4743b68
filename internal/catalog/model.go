package catalog

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/barelle/storefront/internal/pricing"
)

type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	ImageURL    string    `json:"imageUrl" db:"image_url"`
	IsActive    bool      `json:"isActive" db:"is_active"`
	SortOrder   int       `json:"sortOrder" db:"sort_order"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type Product struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	CategoryID  *uuid.UUID          `json:"categoryId" db:"category_id"`
	Name        string              `json:"name" db:"name"`
	Slug        string              `json:"slug" db:"slug"`
	Description string              `json:"description" db:"description"`
	ImageURL    string              `json:"imageUrl" db:"image_url"`
	Price       decimal.Decimal     `json:"price" db:"price"`
	B2BPrice    decimal.NullDecimal `json:"b2bPrice" db:"b2b_price"`
	Stock       int                 `json:"stock" db:"stock"` // informational only, never reserved
	IsActive    bool                `json:"isActive" db:"is_active"`
	IsFeatured  bool                `json:"isFeatured" db:"is_featured"`
	Rating      decimal.Decimal     `json:"rating" db:"rating"`
	ReviewCount int                 `json:"reviewCount" db:"review_count"`
	CreatedAt   time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time           `json:"updatedAt" db:"updated_at"`
}

// PricingItem converts the product's current price points into a pricing
// input line.
func (p Product) PricingItem(quantity int) pricing.Item {
	return pricing.Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		B2BPrice:  p.B2BPrice,
		Quantity:  quantity,
	}
}

// ProductFilter narrows ListProducts; zero-valued fields are ignored.
type ProductFilter struct {
	CategoryID   *uuid.UUID
	Search       string
	FeaturedOnly bool
}

type ProductInput struct {
	CategoryID  *uuid.UUID
	Name        string
	Slug        string
	Description string
	ImageURL    string
	Price       decimal.Decimal
	B2BPrice    decimal.NullDecimal
	Stock       int
	IsActive    bool
	IsFeatured  bool
}

type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	ImageURL    string
	SortOrder   int
}
