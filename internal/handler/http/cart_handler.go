package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/cart"
	"github.com/barelle/storefront/internal/pricing"
)

type AddToCartRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type UpdateCartLineRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type CartHandler struct {
	service  cart.Service
	sessions *CartSessions
	validate *validator.Validate
}

func NewCartHandler(service cart.Service, sessions *CartSessions) *CartHandler {
	return &CartHandler{
		service:  service,
		sessions: sessions,
		validate: newValidator(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Route("/cart", func(r chi.Router) {
		r.Use(h.sessions.cartOwner)
		r.Get("/", h.handleListLines)
		r.Delete("/", h.handleClear)
		r.Get("/summary", h.handleSummary)
		r.Post("/add", h.handleAddLine)
		r.Patch("/{id}", h.handleSetQuantity)
		r.Delete("/{id}", h.handleRemoveLine)
	})
}

func (h *CartHandler) handleListLines(w http.ResponseWriter, r *http.Request) {
	owner, _ := cartOwnerFrom(r.Context())

	lines, err := h.service.ListLines(r.Context(), owner)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get cart")
		return
	}
	respondWithJSON(w, http.StatusOK, lines)
}

// handleSummary prices the cart. Signed-in callers are priced by their
// account type; guests may preview either classification.
func (h *CartHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	owner, _ := cartOwnerFrom(r.Context())

	class := pricing.B2C
	if identity, ok := identityFrom(r.Context()); ok {
		class = identity.CustomerType
	} else if requested := pricing.Classification(r.URL.Query().Get("classification")); requested.Valid() {
		class = requested
	}

	quote, err := h.service.Summary(r.Context(), owner, class)
	if err != nil {
		respondWithServiceError(w, err, "Failed to price cart")
		return
	}
	respondWithJSON(w, http.StatusOK, quote)
}

func (h *CartHandler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var requestPayload AddToCartRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}
	owner, _ := cartOwnerFrom(r.Context())

	line, err := h.service.AddLine(r.Context(), owner, uuid.FromStringOrNil(requestPayload.ProductID), requestPayload.Quantity)
	if err != nil {
		respondWithServiceError(w, err, "Failed to add to cart")
		return
	}
	respondWithJSON(w, http.StatusCreated, line)
}

func (h *CartHandler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	lineID, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var requestPayload UpdateCartLineRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}
	owner, _ := cartOwnerFrom(r.Context())

	line, err := h.service.SetQuantity(r.Context(), owner, lineID, requestPayload.Quantity)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update cart")
		return
	}
	respondWithJSON(w, http.StatusOK, line)
}

func (h *CartHandler) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	owner, _ := cartOwnerFrom(r.Context())

	if err := h.service.RemoveLine(r.Context(), owner, lineID); err != nil {
		respondWithServiceError(w, err, "Failed to remove from cart")
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *CartHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	owner, _ := cartOwnerFrom(r.Context())

	if err := h.service.Clear(r.Context(), owner); err != nil {
		respondWithServiceError(w, err, "Failed to clear cart")
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idParam := chi.URLParam(r, "id")
	id, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}
	return id, true
}
