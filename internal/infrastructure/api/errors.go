package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

// mapDomainError converts domain and application errors to HTTP errors.
func mapDomainError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found").SetInternal(err)
	case errors.Is(err, domain.ErrStorageRead),
		errors.Is(err, domain.ErrStorageWrite),
		errors.Is(err, domain.ErrProviderUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage temporarily unavailable").SetInternal(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "request timed out").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
