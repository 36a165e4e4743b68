package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/barelle/storefront/internal/admin"
	"github.com/barelle/storefront/internal/catalog"
	"github.com/barelle/storefront/internal/order"
	"github.com/barelle/storefront/internal/user"
)

type UpdateOrderStatusRequest struct {
	OrderStatus   *string `json:"orderStatus" validate:"omitempty,oneof=pending confirmed preparing shipped delivered cancelled"`
	PaymentStatus *string `json:"paymentStatus" validate:"omitempty,oneof=pending paid failed"`
}

type UpdateUserAccessRequest struct {
	Role     *string `json:"role" validate:"omitempty,oneof=user support admin"`
	IsActive *bool   `json:"isActive"`
}

type ProductRequest struct {
	CategoryID  *string             `json:"categoryId" validate:"omitempty,uuid"`
	Name        string              `json:"name" validate:"required,max=200"`
	Slug        string              `json:"slug" validate:"max=200"`
	Description string              `json:"description"`
	ImageURL    string              `json:"imageUrl" validate:"max=500"`
	Price       *decimal.Decimal    `json:"price" validate:"required"`
	B2BPrice    decimal.NullDecimal `json:"b2bPrice"`
	Stock       int                 `json:"stock" validate:"min=0"`
	IsActive    *bool               `json:"isActive"`
	IsFeatured  bool                `json:"isFeatured"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"max=100"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" validate:"max=500"`
	SortOrder   int    `json:"sortOrder"`
}

type AdminHandler struct {
	service  admin.Service
	validate *validator.Validate
}

func NewAdminHandler(service admin.Service) *AdminHandler {
	return &AdminHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes mounts the back office. Support staff may read and move
// orders; changes to users and the catalog need the admin role.
func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Route("/admin", func(r chi.Router) {
		r.Use(requireRole(user.RoleSupport, user.RoleAdmin))

		r.Get("/stats", h.handleStats)
		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/{id}", h.handleGetOrder)
		r.Patch("/orders/{id}/status", h.handleUpdateOrderStatus)
		r.Get("/users", h.handleListUsers)
		r.Get("/products", h.handleListProducts)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(user.RoleAdmin))
			r.Patch("/users/{id}", h.handleUpdateUserAccess)
			r.Post("/products", h.handleCreateProduct)
			r.Put("/products/{id}", h.handleUpdateProduct)
			r.Post("/categories", h.handleCreateCategory)
		})
	})
}

func (h *AdminHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to load stats")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := admin.OrderFilter{Search: query.Get("search")}
	for _, raw := range query["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, order.Status(s))
			}
		}
	}

	result, err := h.service.ListOrders(r.Context(), filter, page)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, found)
}

func (h *AdminHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var requestPayload UpdateOrderStatusRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}
	if requestPayload.OrderStatus == nil && requestPayload.PaymentStatus == nil {
		respondWithError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	var update order.StatusUpdate
	if requestPayload.OrderStatus != nil {
		status := order.Status(*requestPayload.OrderStatus)
		update.Status = &status
	}
	if requestPayload.PaymentStatus != nil {
		payment := order.PaymentStatus(*requestPayload.PaymentStatus)
		update.PaymentStatus = &payment
	}

	updated, err := h.service.UpdateOrderStatus(r.Context(), id, update)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	result, err := h.service.ListUsers(r.Context(), page)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list users")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) handleUpdateUserAccess(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var requestPayload UpdateUserAccessRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	update := user.AccessUpdate{IsActive: requestPayload.IsActive}
	if requestPayload.Role != nil {
		role := user.Role(*requestPayload.Role)
		update.Role = &role
	}

	updated, err := h.service.UpdateUserAccess(r.Context(), id, update)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update user")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	result, err := h.service.ListProducts(r.Context(), page)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list products")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var requestPayload ProductRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.CreateProduct(r.Context(), requestPayload.toInput())
	if err != nil {
		respondWithServiceError(w, err, "Failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var requestPayload ProductRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	updated, err := h.service.UpdateProduct(r.Context(), id, requestPayload.toInput())
	if err != nil {
		respondWithServiceError(w, err, "Failed to update product")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var requestPayload CategoryRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.CreateCategory(r.Context(), catalog.CategoryInput{
		Name:        requestPayload.Name,
		Slug:        requestPayload.Slug,
		Description: requestPayload.Description,
		ImageURL:    requestPayload.ImageURL,
		SortOrder:   requestPayload.SortOrder,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create category")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// toInput converts a validated request. Products are active unless the
// request says otherwise.
func (p ProductRequest) toInput() catalog.ProductInput {
	input := catalog.ProductInput{
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Price:       *p.Price,
		B2BPrice:    p.B2BPrice,
		Stock:       p.Stock,
		IsActive:    true,
		IsFeatured:  p.IsFeatured,
	}
	if p.CategoryID != nil {
		id := uuid.FromStringOrNil(*p.CategoryID)
		input.CategoryID = &id
	}
	if p.IsActive != nil {
		input.IsActive = *p.IsActive
	}
	return input
}

func parsePage(w http.ResponseWriter, r *http.Request) (admin.Page, bool) {
	var page admin.Page
	query := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &page.Page},
		{"limit", &page.Limit},
	} {
		raw := query.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid "+p.name+" parameter")
			return admin.Page{}, false
		}
		*p.dst = n
	}
	return page, true
}
