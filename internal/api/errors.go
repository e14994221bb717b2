package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/lox/raincast/internal/forecast"
	"github.com/lox/raincast/internal/history"
	"github.com/lox/raincast/internal/ingest"
)

// statusFor maps a forecast failure to an HTTP status.
func statusFor(err error) int {
	var dsErr *history.DataSourceError
	var trErr *forecast.TrainingError
	switch {
	case errors.Is(err, ingest.ErrNoCity):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrLocationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrMissingAPIKey),
		errors.Is(err, ingest.ErrUnauthorized),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &dsErr), errors.As(err, &trErr):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// errorMessage is the text shown to the user for a failed forecast.
func errorMessage(err error) string {
	var dsErr *history.DataSourceError
	var trErr *forecast.TrainingError
	switch {
	case errors.Is(err, ingest.ErrNoCity):
		return "city not provided"
	case errors.Is(err, ingest.ErrLocationNotFound):
		return "location not found"
	case errors.Is(err, ingest.ErrMissingAPIKey), errors.Is(err, ingest.ErrUnauthorized):
		return "weather service is not configured"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "weather service is temporarily unavailable"
	case errors.As(err, &dsErr):
		return "historical data unavailable: " + dsErr.Error()
	case errors.As(err, &trErr):
		return "could not train forecast models: " + trErr.Error()
	default:
		return err.Error()
	}
}
