package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/barelle/storefront/internal/pricing"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) Valid() bool {
	_, ok := allowedPaymentTransitions[s]
	return ok
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
	PaymentCard           PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentBankTransfer, PaymentCard:
		return true
	}
	return false
}

// allowedTransitions lists, per order status, the statuses it may move to.
// Delivered and cancelled are terminal.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

var allowedPaymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending: {
		PaymentPaid:   true,
		PaymentFailed: true,
	},
	PaymentPaid:   {},
	PaymentFailed: {},
}

// Line is an order line. Name and price are copied from the product when the
// order is placed and never follow later catalog changes.
type Line struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderID     uuid.UUID       `json:"orderId" db:"order_id"`
	ProductID   *uuid.UUID      `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal" db:"subtotal"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

type Order struct {
	ID               uuid.UUID              `json:"id" db:"id"`
	OrderNumber      string                 `json:"orderNumber" db:"order_number"`
	UserID           *uuid.UUID             `json:"userId" db:"user_id"`
	SessionID        string                 `json:"-" db:"session_id"`
	CustomerType     pricing.Classification `json:"customerType" db:"customer_type"`
	CustomerName     string                 `json:"customerName" db:"customer_name"`
	CustomerEmail    string                 `json:"customerEmail" db:"customer_email"`
	CustomerPhone    string                 `json:"customerPhone" db:"customer_phone"`
	CompanyName      string                 `json:"companyName,omitempty" db:"company_name"`
	TaxID            string                 `json:"taxId,omitempty" db:"tax_id"`
	DeliveryAddress  string                 `json:"deliveryAddress" db:"delivery_address"`
	DeliveryCity     string                 `json:"deliveryCity" db:"delivery_city"`
	DeliveryDistrict string                 `json:"deliveryDistrict,omitempty" db:"delivery_district"`
	PaymentMethod    PaymentMethod          `json:"paymentMethod" db:"payment_method"`
	Notes            string                 `json:"notes,omitempty" db:"notes"`
	Subtotal         decimal.Decimal        `json:"subtotal" db:"subtotal"`
	DeliveryFee      decimal.Decimal        `json:"deliveryFee" db:"delivery_fee"`
	Total            decimal.Decimal        `json:"total" db:"total"`
	Status           Status                 `json:"orderStatus" db:"order_status"`
	PaymentStatus    PaymentStatus          `json:"paymentStatus" db:"payment_status"`
	Lines            []Line                 `json:"items" db:"-"`
	CreatedAt        time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time              `json:"updatedAt" db:"updated_at"`
}

// CustomerInfo is the contact and delivery snapshot stored on the order.
type CustomerInfo struct {
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	CompanyName      string
	TaxID            string
	DeliveryAddress  string
	DeliveryCity     string
	DeliveryDistrict string
	PaymentMethod    PaymentMethod
	Notes            string
}

// StatusUpdate changes either or both statuses; nil fields are left alone.
type StatusUpdate struct {
	Status        *Status
	PaymentStatus *PaymentStatus
}
