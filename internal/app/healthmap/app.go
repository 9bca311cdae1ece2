package healthmap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/healthmap/healthmap-api/internal/config"
	"github.com/healthmap/healthmap-api/internal/lib/jwt"
	"github.com/healthmap/healthmap-api/internal/lib/rabbitmq"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
	"github.com/healthmap/healthmap-api/internal/metrics"
	"github.com/healthmap/healthmap-api/internal/migrations"
	assessmentservice "github.com/healthmap/healthmap-api/internal/services/assessment"
	authservice "github.com/healthmap/healthmap-api/internal/services/auth"
	commerceservice "github.com/healthmap/healthmap-api/internal/services/commerce"
	userservice "github.com/healthmap/healthmap-api/internal/services/user"
	"github.com/healthmap/healthmap-api/internal/storage"
	"github.com/healthmap/healthmap-api/internal/throttle"
)

type App struct {
	server    *http.Server
	logger    *slog.Logger
	db        *storage.Storage
	throttle  *throttle.LoginTracker
	publisher *rabbitmq.Publisher
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	tracker, err := throttle.Connect(ctx, cfg.RedisConnection, throttle.LimitsFromConfig(cfg.LoginThrottle))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.Exchange)
	if err != nil {
		_ = tracker.Close()
		_ = db.Close()
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	services := Services{
		Users:       userservice.NewUserService(db, publisher, m, logger),
		Auth:        authservice.NewAuthService(db, tracker, jwtMaker, m, logger),
		Assessments: assessmentservice.NewAssessmentService(db, m, logger),
		Commerce:    commerceservice.NewCommerceService(db, publisher, logger),
		DB:          db,
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.RateLimit, services)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:    srv,
		logger:    logger,
		db:        db,
		throttle:  tracker,
		publisher: publisher,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("failed to close publisher", sl.Err(err))
	}
	if err := a.throttle.Close(); err != nil {
		a.logger.Warn("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
