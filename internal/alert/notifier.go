package alert

import (
	"context"

	"bandwidth-guard/internal/model"
)

//go:generate mockgen -destination=mock_notifier.go -package=alert bandwidth-guard/internal/alert Sink,ConnectionObserver

// Sink consumes per-tick measurements and threshold alerts.
// Implementations must honor ctx and return promptly; network backed sinks
// buffer or fail fast instead of stalling the monitor.
type Sink interface {
	Name() string
	OnMeasurement(ctx context.Context, rate model.RateMeasurement) error
	OnAlert(ctx context.Context, event model.AlertEvent) error
	Close(ctx context.Context) error
}

// ConnectionObserver is implemented by sinks that also want the list of
// active connections captured on ticks with traffic.
type ConnectionObserver interface {
	OnConnections(ctx context.Context, conns []model.Connection) error
}
