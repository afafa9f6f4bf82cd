package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/elgomatiae/muslim-space-sub000/internal/application"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/auth"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for route registration.
type RouterConfig struct {
	ComputeScoresUseCase *application.ComputeScoresUseCase
	QueryScoresUseCase   *application.QueryScoresUseCase
	ResetMomentumUseCase *application.ResetMomentumUseCase
	ManageGoalsUseCase   *application.ManageGoalsUseCase
	JWTValidator         *auth.JWTValidator
	ReadinessChecks      []ReadinessCheck
	Logger               *logging.Logger
	Metrics              *metrics.Metrics

	// ComputeRate limits scoring cycles per user and second. zero disables it.
	ComputeRate  float64
	ComputeBurst int
}

// RegisterRoutes sets up all API routes on the server.
func RegisterRoutes(e *echo.Echo, config RouterConfig) {
	// prometheus metrics endpoint (no auth, standard scraping path)
	if config.Metrics != nil {
		e.GET(metrics.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(
			config.Metrics.Registry,
			promhttp.HandlerOpts{
				Registry:          config.Metrics.Registry,
				EnableOpenMetrics: true,
			},
		)))

		e.Use(metrics.Middleware(config.Metrics))
	}

	RegisterHealthRoutes(e, config.ReadinessChecks...)

	v1 := e.Group("/api/v1")
	v1.Use(AuthMiddleware(AuthConfig{Validator: config.JWTValidator}))

	if config.ManageGoalsUseCase != nil {
		NewGoalsHandler(config.ManageGoalsUseCase).RegisterRoutes(v1)
	}

	if config.ComputeScoresUseCase != nil && config.QueryScoresUseCase != nil && config.ResetMomentumUseCase != nil {
		var limits []echo.MiddlewareFunc
		if config.ComputeRate > 0 {
			limits = append(limits, computeRateLimiter(config.ComputeRate, config.ComputeBurst))
		}
		NewScoresHandler(config.ComputeScoresUseCase, config.QueryScoresUseCase, config.ResetMomentumUseCase).
			RegisterRoutes(v1, limits...)
	}

	config.Logger.Info("api routes registered",
		"version", "v1",
		"health_endpoints", []string{"/health", "/ready"},
		"readiness_checks", len(config.ReadinessChecks),
		"metrics_enabled", config.Metrics != nil,
		"compute_rate", config.ComputeRate,
		"api_prefix", "/api/v1",
	)
}

// computeRateLimiter keys the limit on the authenticated user.
func computeRateLimiter(perSecond float64, burst int) echo.MiddlewareFunc {
	if burst < 1 {
		burst = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: 5 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return GetUserID(c), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "scoring too often, retry shortly")
		},
	})
}
