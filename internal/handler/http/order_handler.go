package http

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/cart"
	"github.com/barelle/storefront/internal/invoice"
	"github.com/barelle/storefront/internal/order"
	"github.com/barelle/storefront/internal/pricing"
	"github.com/barelle/storefront/internal/user"
)

type CreateB2COrderRequest struct {
	CustomerName     string `json:"customerName" validate:"required,min=2,max=200"`
	CustomerEmail    string `json:"customerEmail" validate:"required,email"`
	CustomerPhone    string `json:"customerPhone" validate:"required,min=5,max=50"`
	DeliveryAddress  string `json:"deliveryAddress" validate:"required,max=500"`
	DeliveryCity     string `json:"deliveryCity" validate:"required,max=100"`
	DeliveryDistrict string `json:"deliveryDistrict" validate:"max=100"`
	PaymentMethod    string `json:"paymentMethod" validate:"required,oneof=cash_on_delivery bank_transfer card"`
	Notes            string `json:"notes" validate:"max=1000"`
}

type CreateB2BOrderRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=cash_on_delivery bank_transfer card"`
	Notes         string `json:"notes" validate:"max=1000"`
}

type OrderHandler struct {
	orders   order.Service
	users    user.Service
	sessions *CartSessions
	validate *validator.Validate
}

func NewOrderHandler(orders order.Service, users user.Service, sessions *CartSessions) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		users:    users,
		sessions: sessions,
		validate: newValidator(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Route("/orders", func(r chi.Router) {
		r.With(h.sessions.cartOwner).Post("/b2c", h.handleCreateB2C)
		r.With(requireAuth, h.sessions.cartOwner).Post("/b2b", h.handleCreateB2B)
		r.With(requireAuth).Get("/", h.handleListMine)
		r.Get("/{number}", h.handleGetByNumber)
		r.Get("/{number}/invoice", h.handleInvoice)
	})
}

func (h *OrderHandler) handleCreateB2C(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateB2COrderRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}
	owner, _ := cartOwnerFrom(r.Context())

	info := order.CustomerInfo{
		CustomerName:     requestPayload.CustomerName,
		CustomerEmail:    requestPayload.CustomerEmail,
		CustomerPhone:    requestPayload.CustomerPhone,
		DeliveryAddress:  requestPayload.DeliveryAddress,
		DeliveryCity:     requestPayload.DeliveryCity,
		DeliveryDistrict: requestPayload.DeliveryDistrict,
		PaymentMethod:    order.PaymentMethod(requestPayload.PaymentMethod),
		Notes:            requestPayload.Notes,
	}
	h.createOrder(w, r, owner, info, pricing.B2C)
}

// handleCreateB2B places a business order for the signed-in account, using
// the company details stored on its profile.
func (h *OrderHandler) handleCreateB2B(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateB2BOrderRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}
	identity, _ := identityFrom(r.Context())
	owner, _ := cartOwnerFrom(r.Context())

	account, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load account")
		return
	}
	if !account.IsActive {
		respondWithError(w, http.StatusForbidden, "Account is disabled")
		return
	}
	if account.CustomerType != pricing.B2B {
		respondWithError(w, http.StatusForbidden, "Business account required")
		return
	}

	info := order.CustomerInfo{
		CustomerName:     account.FullName(),
		CustomerEmail:    account.Email,
		CustomerPhone:    account.Phone,
		CompanyName:      account.CompanyName,
		TaxID:            account.TaxID,
		DeliveryAddress:  account.CompanyAddress,
		DeliveryCity:     account.CompanyCity,
		DeliveryDistrict: account.CompanyDistrict,
		PaymentMethod:    order.PaymentMethod(requestPayload.PaymentMethod),
		Notes:            requestPayload.Notes,
	}
	h.createOrder(w, r, owner, info, pricing.B2B)
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request, owner cart.Owner, info order.CustomerInfo, class pricing.Classification) {
	created, err := h.orders.CreateOrder(r.Context(), owner, info, class)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	orders, err := h.orders.ListForUser(r.Context(), identity.UserID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	found, ok := h.loadVisibleOrder(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, found)
}

func (h *OrderHandler) handleInvoice(w http.ResponseWriter, r *http.Request) {
	found, ok := h.loadVisibleOrder(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := invoice.Render(&buf, found); err != nil {
		log.Error().Err(err).Str("order_number", found.OrderNumber).Msg("Failed to render invoice")
		respondWithError(w, http.StatusInternalServerError, "Failed to render invoice")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice-`+found.OrderNumber+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Error().Err(err).Msg("Failed to write invoice")
	}
}

// loadVisibleOrder fetches the order named in the URL. Orders the caller
// does not own are reported as missing.
func (h *OrderHandler) loadVisibleOrder(w http.ResponseWriter, r *http.Request) (*order.Order, bool) {
	number := chi.URLParam(r, "number")

	found, err := h.orders.GetByNumber(r.Context(), number)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return nil, false
	}
	if !h.canView(r, found) {
		log.Warn().Str("order_number", number).Msg("Order requested by non-owner")
		respondWithError(w, http.StatusNotFound, "Order not found")
		return nil, false
	}
	return found, true
}

func (h *OrderHandler) canView(r *http.Request, o *order.Order) bool {
	if identity, ok := identityFrom(r.Context()); ok {
		if identity.Role.IsStaff() {
			return true
		}
		if o.UserID != nil && *o.UserID == identity.UserID {
			return true
		}
	}
	return o.SessionID != "" && h.sessions.ID(r) == o.SessionID
}
