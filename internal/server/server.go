// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects stores, services,
// handlers and middleware, and decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load → Notifier → server.New
//	server.New: sqlite.DB + boltdb.ImageStore → services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/food-diary/internal/auth"
	"github.com/sakif/food-diary/internal/config"
	"github.com/sakif/food-diary/internal/handler"
	"github.com/sakif/food-diary/internal/metrics"
	"github.com/sakif/food-diary/internal/middleware"
	"github.com/sakif/food-diary/internal/notify"
	"github.com/sakif/food-diary/internal/nutrition"
	"github.com/sakif/food-diary/internal/repository/boltdb"
	sqliteRepo "github.com/sakif/food-diary/internal/repository/sqlite"
	"github.com/sakif/food-diary/internal/service"
)

// shutdownTimeout bounds both in-flight requests and pending email sends.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the SQLite connection, the bbolt image cache, the email
// dispatcher and the rate limiter's sweeper goroutine. Close releases all
// of them; Start calls it during graceful shutdown.
type Server struct {
	router     *chi.Mux
	config     *config.Config
	logger     *slog.Logger
	db         *sqliteRepo.DB
	images     *boltdb.ImageStore
	notifier   notify.Notifier
	dispatcher *notify.Dispatcher
	limiter    *middleware.RateLimiter
	metrics    *metrics.Metrics
	tokens     *auth.TokenService
}

// New creates a new Server from cfg. notifier delivers account emails; if
// it implements io.Closer the server closes it on shutdown.
//
// DEPENDENCY INJECTION & WIRING:
//  1. Open the stores (sqlite.New, boltdb.New)
//  2. Create the shared collaborators (metrics, tokens, dispatcher, nutrition client)
//  3. Create the services with the stores' repository interfaces
//  4. Create the handlers with the services and wire them to routes
//
// If any step fails, whatever was already opened is closed again.
func New(cfg *config.Config, notifier notify.Notifier, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	db, err := sqliteRepo.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	images, err := boltdb.New(cfg.Storage.ImageCachePath, cfg.Images.MaxEntries)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening image cache: %w", err)
	}

	// A dedicated registry keeps /metrics free of anything registered on
	// the global default by imported packages.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	s := &Server{
		router:     chi.NewRouter(),
		config:     cfg,
		logger:     logger,
		db:         db,
		images:     images,
		notifier:   notifier,
		dispatcher: notify.NewDispatcher(notifier, cfg.Email.Timeout, m, logger),
		limiter:    middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger),
		metrics:    m,
		tokens:     tokens,
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the fully configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /api/auth/signup            rate limited
//	GET    /api/auth/verify/{token}    rate limited, HTML
//	POST   /api/auth/login             rate limited
//	POST   /api/auth/forgot-password   rate limited
//	POST   /api/auth/reset-password    rate limited
//	GET    /api/search/cache?q=
//	POST   /api/search/cache
//	GET    /api/search?q=              rate limited
//	GET    /api/products/{barcode}     rate limited
//	GET    /api/images?url=            rate limited
//	DELETE /api/images                 auth
//	GET    /api/meals/{date}           auth
//	GET    /api/meals/{date}/summary   auth
//	POST   /api/meals                  auth
//	DELETE /api/meals/{id}             auth
//	GET    /api/user/profile           auth
//	POST   /api/user/profile           auth
//	GET    /api/health
//	GET    /metrics
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so the logger can print it, RealIP before anything that
// looks at the client address (the rate limiter), Recoverer inside Logger so
// a recovered panic is still logged as a 500. RealIP only runs with
// TRUST_PROXY, because without a proxy the forwarded headers are client
// controlled.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	if s.config.Server.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger, s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	// === Services ===
	// s.db implements every SQLite repository interface; the services only
	// ever see those interfaces.
	passwords := auth.NewPasswordService(s.config.Auth.BcryptCost)
	nutritionClient := nutrition.NewClient(nutrition.Config{
		BaseURL:  s.config.Nutrition.BaseURL,
		Timeout:  s.config.Nutrition.Timeout,
		PageSize: s.config.Nutrition.PageSize,
	}, s.metrics, s.logger)

	accounts := service.NewAccountService(s.db, s.tokens, passwords, s.dispatcher, s.config.Server.PublicURL, s.logger)
	profiles := service.NewProfileService(s.db, s.db, s.logger)
	meals := service.NewMealService(s.db, profiles, s.logger)
	foods := service.NewFoodService(s.db, s.db, nutritionClient, s.metrics, s.logger)
	images := service.NewImageService(s.images, service.ImageOptions{
		Timeout:      s.config.Images.FetchTimeout,
		MaxBytes:     s.config.Images.MaxBytes,
		AllowPrivate: s.config.Images.AllowPrivate,
	}, s.metrics, s.logger)

	// === Handlers ===
	pages, err := handler.NewPages(s.config.Server.PublicURL+"/login", s.logger)
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}
	authHandler := handler.NewAuthHandler(accounts, pages, s.logger)
	mealHandler := handler.NewMealHandler(meals, s.logger)
	searchHandler := handler.NewSearchHandler(foods, s.logger)
	profileHandler := handler.NewProfileHandler(profiles, s.logger)
	imageHandler := handler.NewImageHandler(images, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Use(s.limiter.Middleware)
			r.Post("/signup", authHandler.HandleSignup)
			r.Get("/verify/{token}", authHandler.HandleVerify)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/forgot-password", authHandler.HandleForgotPassword)
			r.Post("/reset-password", authHandler.HandleResetPassword)
		})

		r.Get("/search/cache", searchHandler.HandleCached)
		r.Post("/search/cache", searchHandler.HandleStore)
		r.With(s.limiter.Middleware).Get("/search", searchHandler.HandleLive)
		r.With(s.limiter.Middleware).Get("/products/{barcode}", searchHandler.HandleBarcode)

		r.With(s.limiter.Middleware).Get("/images", imageHandler.HandleGet)
		r.With(requireAuth).Delete("/images", imageHandler.HandleClear)

		// Everything below needs a session token.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/meals/{date}", mealHandler.HandleList)
			r.Get("/meals/{date}/summary", mealHandler.HandleSummary)
			r.Post("/meals", mealHandler.HandleAdd)
			r.Delete("/meals/{id}", mealHandler.HandleDelete)

			r.Get("/user/profile", profileHandler.HandleGet)
			r.Post("/user/profile", profileHandler.HandleUpdate)
		})
	})

	s.router.Handle("/metrics", s.metrics.Handler())

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish
//  3. Wait for queued emails to be handed to the notifier
//  4. Close the stores and the notifier (Close)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // live search may wait 30s on the food database
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", s.config.Server.PublicURL),
			slog.String("database", s.config.Storage.DBPath),
			slog.String("imageCache", s.config.Storage.ImageCachePath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		if err := s.dispatcher.Wait(ctx); err != nil {
			s.logger.Warn("pending emails not delivered before shutdown", slog.String("error", err.Error()))
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close stops background work and releases the stores. It is safe to call
// once after New succeeded.
func (s *Server) Close() error {
	s.limiter.Stop()

	var errs []error
	if c, ok := s.notifier.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.images.Close(), s.db.Close())
	return errors.Join(errs...)
}
