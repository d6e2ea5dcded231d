package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/clinicrecords/securelink-server/internal/config"
	"github.com/clinicrecords/securelink-server/internal/database"
	"github.com/clinicrecords/securelink-server/internal/handler"
	"github.com/clinicrecords/securelink-server/internal/jobs"
	"github.com/clinicrecords/securelink-server/internal/metrics"
	"github.com/clinicrecords/securelink-server/internal/middleware"
	"github.com/clinicrecords/securelink-server/internal/model"
	"github.com/clinicrecords/securelink-server/internal/redis"
	"github.com/clinicrecords/securelink-server/internal/repository"
	"github.com/clinicrecords/securelink-server/internal/service"
)

// services is everything the HTTP layer and the cleanup job share.
type services struct {
	links   *service.SecureLinkService
	auditor *service.AccessAuditor
	access  *service.DocumentAccessService
	staff   *service.StaffService
	docRepo repository.DocumentRepository
}

func newServices(db *database.DB, cfg *config.Config, limiter service.Limiter) *services {
	tokenRepo := repository.NewSecureLinkTokenRepository(db.DB)
	accessLogRepo := repository.NewAccessLogRepository(db.DB)
	patientRepo := repository.NewPatientRepository(db.DB)
	docRepo := repository.NewDocumentRepository(db.DB)
	staffUserRepo := repository.NewStaffUserRepository(db.DB)
	staffSessionRepo := repository.NewStaffSessionRepository(db.DB)

	links := service.NewSecureLinkService(tokenRepo, patientRepo, limiter, service.SecureLinkConfig{
		PublicBaseURL:        cfg.PublicBaseURL,
		IssueLimitPerPatient: cfg.IssueLimitPerPatient,
	})
	auditor := service.NewAccessAuditor(accessLogRepo, nil)

	return &services{
		links:   links,
		auditor: auditor,
		access:  service.NewDocumentAccessService(links, auditor, docRepo, patientRepo),
		staff:   service.NewStaffService(staffUserRepo, staffSessionRepo, limiter, cfg.StaffSessionSecret),
		docRepo: docRepo,
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info().Msg("database connected")
	return db, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	limiter := service.NewRateLimiter(redisClient.Client)
	svc := newServices(db, cfg, limiter)

	if cfg.CleanupIntervalMinutes > 0 {
		cleanupJob := jobs.NewCleanupJob(svc.links, svc.auditor, svc.staff, cfg.AccessLogRetention(), cfg.CleanupInterval())
		cleanupJob.Start()
		defer cleanupJob.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      newRouter(cfg, svc, limiter),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}

func runCleanup(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// No limiter: the sweep never issues links or logs anyone in.
	svc := newServices(db, cfg, nil)
	job := jobs.NewCleanupJob(svc.links, svc.auditor, svc.staff, cfg.AccessLogRetention(), cfg.CleanupInterval())

	runCtx, cancel := context.WithTimeout(ctx, config.CleanupRunTimeout)
	defer cancel()

	result := job.RunOnce(runCtx)
	log.Info().
		Int64("tokens", result.Tokens).
		Int64("accessLogs", result.AccessLogs).
		Int64("staffSessions", result.StaffSessions).
		Msg("cleanup finished")

	if len(result.Errors) > 0 {
		return fmt.Errorf("cleanup failed for: %v", result.Errors)
	}
	return nil
}

func newRouter(cfg *config.Config, svc *services, limiter service.Limiter) http.Handler {
	isProduction := cfg.IsProduction()

	sessionMiddleware := middleware.NewStaffSessionMiddleware(svc.staff)
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)
	staffAPILimit := middleware.NewIPRateLimitMiddleware(limiter, config.StaffAPILimit, config.StaffAPIWindow, "staff_api")

	staffHandler := handler.NewStaffHandler(svc.staff, isProduction, cfg.DebugErrors)
	linkHandler := handler.NewLinkHandler(svc.links, svc.auditor, svc.docRepo, handler.LinkHandlerConfig{
		DefaultTTL:   cfg.DefaultLinkTTL(),
		MaxTTL:       cfg.MaxLinkTTL(),
		LogRetention: cfg.AccessLogRetention(),
		Debug:        cfg.DebugErrors,
	})
	documentHandler := handler.NewDocumentHandler(svc.access, cfg.DebugErrors)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/staff/api", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(middleware.NoStore)
		r.Use(staffAPILimit.Handler)

		staffHandler.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware.Require)
			r.Use(middleware.RequireRole((*model.StaffSession).CanManageLinks))
			r.Use(csrfMiddleware.Handler)
			linkHandler.Register(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(middleware.NoStore)
		r.Use(sessionMiddleware.Load)
		documentHandler.Register(r)
	})

	return r
}
