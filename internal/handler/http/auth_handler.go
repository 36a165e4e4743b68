package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/auth"
	"github.com/barelle/storefront/internal/cart"
	"github.com/barelle/storefront/internal/pricing"
	"github.com/barelle/storefront/internal/user"
)

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	FirstName       string `json:"firstName" validate:"required,max=100"`
	LastName        string `json:"lastName" validate:"required,max=100"`
	Phone           string `json:"phone" validate:"max=50"`
	CustomerType    string `json:"customerType" validate:"omitempty,oneof=b2c b2b"`
	CompanyName     string `json:"companyName" validate:"max=200"`
	TaxID           string `json:"taxId" validate:"max=50"`
	CompanyAddress  string `json:"companyAddress" validate:"max=500"`
	CompanyCity     string `json:"companyCity" validate:"max=100"`
	CompanyDistrict string `json:"companyDistrict" validate:"max=100"`
}

type LoginRequest struct {
	Provider    string `json:"provider" validate:"omitempty,oneof=local google facebook"`
	Email       string `json:"email" validate:"omitempty,email"`
	Password    string `json:"password"`
	AccessToken string `json:"accessToken"`
}

type UpdateProfileRequest struct {
	FirstName       *string `json:"firstName" validate:"omitempty,max=100"`
	LastName        *string `json:"lastName" validate:"omitempty,max=100"`
	Phone           *string `json:"phone" validate:"omitempty,max=50"`
	CustomerType    *string `json:"customerType" validate:"omitempty,oneof=b2c b2b"`
	CompanyName     *string `json:"companyName" validate:"omitempty,max=200"`
	TaxID           *string `json:"taxId" validate:"omitempty,max=50"`
	CompanyAddress  *string `json:"companyAddress" validate:"omitempty,max=500"`
	CompanyCity     *string `json:"companyCity" validate:"omitempty,max=100"`
	CompanyDistrict *string `json:"companyDistrict" validate:"omitempty,max=100"`
}

type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

type AuthHandler struct {
	auth     auth.Service
	users    user.Service
	carts    cart.Service
	sessions *CartSessions
	limiter  *RateLimiter
	validate *validator.Validate
}

func NewAuthHandler(authService auth.Service, users user.Service, carts cart.Service, sessions *CartSessions, limiter *RateLimiter) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		users:    users,
		carts:    carts,
		sessions: sessions,
		limiter:  limiter,
		validate: newValidator(),
	}
}

func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Get("/providers", h.handleProviders)
		r.With(h.limiter.Limit).Post("/register", h.handleRegister)
		r.With(h.limiter.Limit).Post("/login", h.handleLogin)
		r.With(requireAuth).Get("/me", h.handleGetMe)
		r.With(requireAuth).Patch("/me", h.handleUpdateMe)
	})
}

func (h *AuthHandler) handleProviders(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, ProvidersResponse{Providers: h.auth.Providers()})
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var requestPayload RegisterRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.users.Register(r.Context(), user.RegisterInput{
		Email:           requestPayload.Email,
		Password:        requestPayload.Password,
		FirstName:       requestPayload.FirstName,
		LastName:        requestPayload.LastName,
		Phone:           requestPayload.Phone,
		CustomerType:    pricing.Classification(requestPayload.CustomerType),
		CompanyName:     requestPayload.CompanyName,
		TaxID:           requestPayload.TaxID,
		CompanyAddress:  requestPayload.CompanyAddress,
		CompanyCity:     requestPayload.CompanyCity,
		CompanyDistrict: requestPayload.CompanyDistrict,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to register user")
		return
	}

	result, err := h.auth.IssueFor(created)
	if err != nil {
		respondWithServiceError(w, err, "Failed to issue token")
		return
	}
	h.mergeGuestCart(w, r, created.ID)

	respondWithJSON(w, http.StatusCreated, result)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var requestPayload LoginRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	result, err := h.auth.Login(r.Context(), requestPayload.Provider, auth.Credentials{
		Email:       requestPayload.Email,
		Password:    requestPayload.Password,
		AccessToken: requestPayload.AccessToken,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to log in")
		return
	}
	h.mergeGuestCart(w, r, result.User.ID)

	respondWithJSON(w, http.StatusOK, result)
}

// mergeGuestCart moves the guest session's lines into the user's cart. A
// failed merge leaves the guest cart in place and does not fail the login.
func (h *AuthHandler) mergeGuestCart(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	sessionID := h.sessions.ID(r)
	if sessionID == "" {
		return
	}
	if err := h.carts.Merge(r.Context(), cart.SessionOwner(sessionID), cart.UserOwner(userID)); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to merge guest cart")
		return
	}
	h.sessions.forget(w, r)
}

func (h *AuthHandler) handleGetMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	me, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get profile")
		return
	}
	respondWithJSON(w, http.StatusOK, me)
}

// handleUpdateMe returns a fresh token with the profile, since the customer
// type is carried in the token.
func (h *AuthHandler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var requestPayload UpdateProfileRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}
	identity, _ := identityFrom(r.Context())

	update := user.ProfileUpdate{
		FirstName:       requestPayload.FirstName,
		LastName:        requestPayload.LastName,
		Phone:           requestPayload.Phone,
		CompanyName:     requestPayload.CompanyName,
		TaxID:           requestPayload.TaxID,
		CompanyAddress:  requestPayload.CompanyAddress,
		CompanyCity:     requestPayload.CompanyCity,
		CompanyDistrict: requestPayload.CompanyDistrict,
	}
	if requestPayload.CustomerType != nil {
		class := pricing.Classification(*requestPayload.CustomerType)
		update.CustomerType = &class
	}

	updated, err := h.users.UpdateProfile(r.Context(), identity.UserID, update)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update profile")
		return
	}

	result, err := h.auth.IssueFor(updated)
	if err != nil {
		respondWithServiceError(w, err, "Failed to issue token")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
