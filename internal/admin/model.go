package admin

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/barelle/storefront/internal/catalog"
	"github.com/barelle/storefront/internal/order"
	"github.com/barelle/storefront/internal/pricing"
	"github.com/barelle/storefront/internal/user"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

type PageResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type OrderFilter struct {
	Statuses []order.Status
	Search   string
}

type OrderSummary struct {
	ID            uuid.UUID              `json:"id" db:"id"`
	OrderNumber   string                 `json:"orderNumber" db:"order_number"`
	UserID        *uuid.UUID             `json:"userId" db:"user_id"`
	CustomerType  pricing.Classification `json:"customerType" db:"customer_type"`
	CustomerName  string                 `json:"customerName" db:"customer_name"`
	CustomerEmail string                 `json:"customerEmail" db:"customer_email"`
	CompanyName   string                 `json:"companyName,omitempty" db:"company_name"`
	Total         decimal.Decimal        `json:"total" db:"total"`
	Status        order.Status           `json:"orderStatus" db:"order_status"`
	PaymentStatus order.PaymentStatus    `json:"paymentStatus" db:"payment_status"`
	PaymentMethod order.PaymentMethod    `json:"paymentMethod" db:"payment_method"`
	ItemCount     int                    `json:"itemCount" db:"item_count"`
	CreatedAt     time.Time              `json:"createdAt" db:"created_at"`
}

type UserSummary struct {
	ID           uuid.UUID              `json:"id" db:"id"`
	Email        string                 `json:"email" db:"email"`
	FirstName    string                 `json:"firstName" db:"first_name"`
	LastName     string                 `json:"lastName" db:"last_name"`
	AuthProvider string                 `json:"authProvider" db:"auth_provider"`
	Role         user.Role              `json:"role" db:"role"`
	CustomerType pricing.Classification `json:"customerType" db:"customer_type"`
	CompanyName  string                 `json:"companyName" db:"company_name"`
	IsActive     bool                   `json:"isActive" db:"is_active"`
	OrderCount   int                    `json:"orderCount" db:"order_count"`
	CreatedAt    time.Time              `json:"createdAt" db:"created_at"`
}

type ProductSummary struct {
	catalog.Product
	CategoryName string `json:"categoryName" db:"category_name"`
}

type Stats struct {
	OrdersByStatus map[order.Status]int `json:"ordersByStatus"`
	TotalOrders    int                  `json:"totalOrders"`
	Revenue        decimal.Decimal      `json:"revenue"`
	Users          int                  `json:"users"`
	ActiveProducts int                  `json:"activeProducts"`
}
