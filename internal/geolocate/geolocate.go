package geolocate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dancetonight/internal/models"
)

// Timeout bounds one position request.
const Timeout = 10 * time.Second

const (
	MessagePermissionDenied = "Geolocation permission denied. Using default location."
	MessageFailed           = "Error getting location. Using default location."
	MessageUnsupported      = "Geolocation is not supported by your browser. Using default location."
)

// ErrPermissionDenied is returned by a Locator when the user refused access.
var ErrPermissionDenied = errors.New("geolocation permission denied")

// Request mirrors the options of a device position request.
type Request struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaxAge is how old a cached reading may be; zero accepts none.
	MaxAge time.Duration
}

// Locator provides the device position.
type Locator interface {
	Locate(ctx context.Context, req Request) (models.UserLocation, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, req Request) (models.UserLocation, error)

func (f LocatorFunc) Locate(ctx context.Context, req Request) (models.UserLocation, error) {
	return f(ctx, req)
}

// Status describes where the resolved location came from.
type Status struct {
	Location models.UserLocation `json:"location"`
	Fallback bool                `json:"fallback"`
	Message  string              `json:"message,omitempty"`
}

// Resolve asks locator for the position and substitutes fallback on any failure.
// It never returns an error; failures only produce an informational message.
func Resolve(ctx context.Context, locator Locator, fallback models.UserLocation, logger *slog.Logger) Status {
	if logger == nil {
		logger = slog.Default()
	}
	if locator == nil {
		logger.Info("geolocation_unavailable", "reason", "unsupported")
		return Status{Location: fallback, Fallback: true, Message: MessageUnsupported}
	}
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	loc, err := locator.Locate(ctx, Request{HighAccuracy: true, Timeout: Timeout})
	if err == nil {
		return Status{Location: loc}
	}
	if errors.Is(err, ErrPermissionDenied) {
		logger.Info("geolocation_unavailable", "reason", "permission_denied")
		return Status{Location: fallback, Fallback: true, Message: MessagePermissionDenied}
	}
	logger.Warn("geolocation_unavailable", "reason", "error", "error", err)
	return Status{Location: fallback, Fallback: true, Message: MessageFailed}
}

// FromClientError maps an error reported by a client-side position request
// (for example a browser's GeolocationPositionError code) onto a Status.
func FromClientError(code string, fallback models.UserLocation) Status {
	switch code {
	case "":
		return Status{Location: fallback, Fallback: true, Message: MessageUnsupported}
	case "permission_denied", "1":
		return Status{Location: fallback, Fallback: true, Message: MessagePermissionDenied}
	case "unsupported":
		return Status{Location: fallback, Fallback: true, Message: MessageUnsupported}
	default:
		return Status{Location: fallback, Fallback: true, Message: MessageFailed}
	}
}
