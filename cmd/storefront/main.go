package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/admin"
	"github.com/barelle/storefront/internal/auth"
	"github.com/barelle/storefront/internal/cart"
	"github.com/barelle/storefront/internal/catalog"
	"github.com/barelle/storefront/internal/config"
	"github.com/barelle/storefront/internal/db"
	storefrontHttp "github.com/barelle/storefront/internal/handler/http"
	"github.com/barelle/storefront/internal/order"
	"github.com/barelle/storefront/internal/pricing"
	"github.com/barelle/storefront/internal/user"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg)

	log.Info().Str("env", cfg.App.Env).Msg("Storefront starting...")

	ctx := context.Background()
	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	sqlDB, err := db.ConnectSQLX(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open admin database connection")
	}
	defer sqlDB.Close()

	if cfg.Postgres.AutoMigrate {
		if err := db.Migrate(sqlDB, cfg.Postgres.DBName); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	catalogSvc := catalog.NewService(catalog.NewRepository(dbConn.Pool))
	cartRepo := cart.NewRepository(dbConn.Pool)
	cartSvc := cart.NewService(cartRepo, catalogSvc, pricing.DefaultPolicy)
	orderSvc := order.NewService(
		order.NewRepository(dbConn.Pool),
		cartRepo,
		db.NewTransactor(dbConn.Pool),
		pricing.DefaultPolicy,
		order.RandomNumbers{Now: time.Now},
	)
	userSvc := user.NewService(user.NewRepository(dbConn.Pool))

	verifiers, err := auth.NewVerifiers(cfg.Auth, userSvc, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure login providers")
	}
	authSvc := auth.NewService(verifiers, auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))
	adminSvc := admin.NewService(admin.NewRepository(sqlDB), orderSvc, userSvc, catalogSvc)

	trustedProxies, err := cfg.HTTP.TrustedProxyPrefixes()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse trusted proxies")
	}

	router := storefrontHttp.NewRouter(storefrontHttp.Dependencies{
		Catalog:        catalogSvc,
		Carts:          cartSvc,
		Orders:         orderSvc,
		Users:          userSvc,
		Auth:           authSvc,
		Admin:          adminSvc,
		Sessions:       storefrontHttp.NewCartSessions([]byte(cfg.Auth.SessionKey), cfg.Auth.CookieSecure),
		Limiter:        storefrontHttp.NewRateLimiter(cfg.HTTP.AuthRateLimit, cfg.HTTP.AuthRateBurst),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		TrustedProxies: trustedProxies,
		Ping: func(r *http.Request) error {
			return dbConn.Pool.Ping(r.Context())
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Strs("providers", authSvc.Providers()).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Storefront stopped gracefully")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.App.Name).Logger()
}
