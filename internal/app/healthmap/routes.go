// Package healthmap собирает HTTP-приложение Health Map.
package healthmap

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/healthmap/healthmap-api/internal/config"
	"github.com/healthmap/healthmap-api/internal/http/handlers/assessment/abandon"
	"github.com/healthmap/healthmap-api/internal/http/handlers/assessment/complete"
	"github.com/healthmap/healthmap-api/internal/http/handlers/assessment/list"
	"github.com/healthmap/healthmap-api/internal/http/handlers/assessment/read"
	"github.com/healthmap/healthmap-api/internal/http/handlers/assessment/respond"
	"github.com/healthmap/healthmap-api/internal/http/handlers/assessment/results"
	"github.com/healthmap/healthmap-api/internal/http/handlers/assessment/start"
	"github.com/healthmap/healthmap-api/internal/http/handlers/auth/login"
	"github.com/healthmap/healthmap-api/internal/http/handlers/auth/register"
	"github.com/healthmap/healthmap-api/internal/http/handlers/health"
	"github.com/healthmap/healthmap-api/internal/http/handlers/purchase/create"
	"github.com/healthmap/healthmap-api/internal/http/handlers/purchase/status"
	"github.com/healthmap/healthmap-api/internal/http/handlers/reportpackage/consume"
	"github.com/healthmap/healthmap-api/internal/http/handlers/user/me"
	"github.com/healthmap/healthmap-api/internal/http/handlers/user/profile"
	"github.com/healthmap/healthmap-api/internal/http/middlewarectx"
	assessmentservice "github.com/healthmap/healthmap-api/internal/services/assessment"
	authservice "github.com/healthmap/healthmap-api/internal/services/auth"
	commerceservice "github.com/healthmap/healthmap-api/internal/services/commerce"
	userservice "github.com/healthmap/healthmap-api/internal/services/user"

	_ "github.com/healthmap/healthmap-api/docs"
)

// Services — сервисы, которые обслуживают маршруты.
type Services struct {
	Users       *userservice.UserService
	Auth        *authservice.AuthService
	Assessments *assessmentservice.AssessmentService
	Commerce    *commerceservice.CommerceService
	DB          health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, rl config.RateLimit, s Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api", func(r chi.Router) {
		// Открытые конечные точки с ограничением частоты
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, rl.RPS, rl.Burst))
			r.Post("/auth/register", register.New(logger, s.Users).ServeHTTP)
			r.Post("/auth/login", login.New(logger, s.Auth).ServeHTTP)
		})

		r.Get("/assessments", list.New(logger, s.Assessments).ServeHTTP)
		r.Get("/assessments/{id}", read.New(logger, s.Assessments).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))
			r.Get("/me", me.New(logger, s.Users).ServeHTTP)
			r.Post("/me/profile", profile.New(logger, s.Users).ServeHTTP)

			r.Post("/me/assessments", start.New(logger, s.Assessments).ServeHTTP)
			r.Post("/me/assessments/{id}/responses", respond.New(logger, s.Assessments).ServeHTTP)
			r.Post("/me/assessments/{id}/complete", complete.New(logger, s.Assessments).ServeHTTP)
			r.Post("/me/assessments/{id}/abandon", abandon.New(logger, s.Assessments).ServeHTTP)
			r.Get("/me/assessments/{id}/results", results.New(logger, s.Assessments).ServeHTTP)

			r.Post("/me/purchases", create.New(logger, s.Commerce).ServeHTTP)
			r.Patch("/me/purchases/{id}/status", status.New(logger, s.Commerce).ServeHTTP)
			r.Post("/me/packages/{id}/reports", consume.New(logger, s.Commerce).ServeHTTP)
		})
	})

	r.Get("/healthz", health.New(logger, s.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
