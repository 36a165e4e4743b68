package http

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/barelle/storefront/internal/admin"
	"github.com/barelle/storefront/internal/auth"
	"github.com/barelle/storefront/internal/cart"
	"github.com/barelle/storefront/internal/catalog"
	"github.com/barelle/storefront/internal/order"
	"github.com/barelle/storefront/internal/user"
)

type Dependencies struct {
	Catalog  catalog.Service
	Carts    cart.Service
	Orders   order.Service
	Users    user.Service
	Auth     auth.Service
	Admin    admin.Service
	Sessions *CartSessions
	Limiter  *RateLimiter

	AllowedOrigins []string
	// TrustedProxies may set the client address through X-Real-IP or
	// X-Forwarded-For; requests from anywhere else cannot.
	TrustedProxies []netip.Prefix
	// Ping reports database health for /health; nil skips the check.
	Ping func(r *http.Request) error
}

type HealthResponse struct {
	Status string `json:"status"`
}

// NewRouter mounts every handler under /api behind the shared middleware.
func NewRouter(deps Dependencies) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(realIP(deps.TrustedProxies))
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ping != nil {
			if err := deps.Ping(r); err != nil {
				respondWithJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(authenticate(deps.Auth))

		NewCatalogHandler(deps.Catalog).RegisterRoutes(r)
		NewCartHandler(deps.Carts, deps.Sessions).RegisterRoutes(r)
		NewOrderHandler(deps.Orders, deps.Users, deps.Sessions).RegisterRoutes(r)
		NewAuthHandler(deps.Auth, deps.Users, deps.Carts, deps.Sessions, deps.Limiter).RegisterRoutes(r)
		NewAdminHandler(deps.Admin).RegisterRoutes(r)
	})

	return cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)
}
