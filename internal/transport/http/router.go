package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/husnainisworking/personal-blog/internal/application/record"
	"github.com/husnainisworking/personal-blog/internal/application/session"
	"github.com/husnainisworking/personal-blog/internal/application/slug"
	"github.com/husnainisworking/personal-blog/internal/application/twofactor"
	"github.com/husnainisworking/personal-blog/internal/config"
	"github.com/husnainisworking/personal-blog/internal/transport/http/handler"
	appmiddleware "github.com/husnainisworking/personal-blog/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.ClientAddr(cfg.TrustedProxyHops))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider, deps.SessionRepo)

	// 5 requests/second, burst of 10, on endpoints that take credentials or codes.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	twoFactorSvc := twofactor.NewService(twofactor.ServiceDeps{
		Codes:    deps.VerificationRepo,
		Users:    deps.UserRepo,
		Limiter:  deps.Limiter,
		Sessions: deps.SessionRepo,
		Notifier: deps.Notifier,
		Metrics:  deps.Metrics,
		Logger:   logger,
		Config: twofactor.Config{
			CodeLifetime:      cfg.TwoFactor.CodeLifetime,
			VerifyMaxAttempts: cfg.TwoFactor.VerifyMaxAttempts,
			VerifyDecay:       cfg.TwoFactor.VerifyDecay,
			ResendMaxAttempts: cfg.TwoFactor.ResendMaxAttempts,
			ResendDecay:       cfg.TwoFactor.ResendDecay,
		},
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:    deps.UserRepo,
		SessionRepo: deps.SessionRepo,
		JWTProvider: deps.JWTProvider,
		TwoFactor:   twoFactorSvc,
		Logger:      logger,
	})
	var slugCache slug.Cache
	var recordCache record.Cache
	if deps.Cache != nil {
		slugCache, recordCache = deps.Cache, deps.Cache
	}
	slugSvc := slug.NewService(slug.ServiceDeps{
		Store:   deps.Records,
		Cache:   slugCache,
		Metrics: deps.Metrics,
		Logger:  logger,
		Config: slug.Config{
			MaxAttempts:   cfg.Slug.MaxAttempts,
			CommitRetries: cfg.Slug.CommitRetries,
		},
	})
	recordSvc := record.NewService(record.ServiceDeps{Store: deps.Records, Cache: recordCache, Logger: logger})

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(sessionSvc, logger)
	twoFactorH := handler.NewTwoFactorHandler(twoFactorSvc, logger)
	recordH := handler.NewRecordHandler(slugSvc, recordSvc, logger)

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/sessions/logout", sessionH.Logout)
			r.With(sensitiveRL.Limit).Post("/two-factor/verify", twoFactorH.Verify)
			r.With(sensitiveRL.Limit).Post("/two-factor/resend", twoFactorH.Resend)

			// Verified sessions only
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.TwoFactorGuard(twoFactorSvc, logger))

				r.Get("/sessions", sessionH.GetCurrent)
				r.Post("/{type}", recordH.Create)
				r.Put("/{type}/{id}", recordH.Rename)
				r.Delete("/{type}/{id}", recordH.Delete)
				r.Get("/{type}/slug/{slug}", recordH.GetBySlug)
				r.Post("/{type}/slugs/taken", recordH.Taken)
			})
		})
	})

	return r
}
