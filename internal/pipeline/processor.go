package pipeline

import (
	"context"
	"time"

	"bandwidth-guard/internal/model"
	"bandwidth-guard/internal/rules"

	"github.com/sirupsen/logrus"
)

// ConnectionSource lists active connections for ticks with traffic
type ConnectionSource interface {
	List(ctx context.Context) ([]model.Connection, error)
}

// TickResult is what one processed tick produced
type TickResult struct {
	Rate     model.RateMeasurement
	Alerts   []model.AlertEvent
	Dispatch DispatchResult
}

// Processor turns a pair of samples into a rate, evaluates the thresholds
// and dispatches the outcome to the sinks
type Processor struct {
	evaluator   *rules.ThresholdEvaluator
	dispatcher  *Dispatcher
	connections ConnectionSource
	logger      *logrus.Logger
	connTimeout time.Duration
}

// NewProcessor creates a new processor instance
func NewProcessor(evaluator *rules.ThresholdEvaluator, dispatcher *Dispatcher, logger *logrus.Logger) *Processor {
	return &Processor{
		evaluator:   evaluator,
		dispatcher:  dispatcher,
		logger:      logger,
		connTimeout: 2 * time.Second,
	}
}

// SetConnectionSource enables connection listing on ticks with traffic
func (p *Processor) SetConnectionSource(src ConnectionSource) {
	p.connections = src
}

// Process handles one tick
func (p *Processor) Process(ctx context.Context, previous, current model.CounterSample) TickResult {
	rate := rules.ComputeRate(previous, current)
	alerts := p.evaluator.Evaluate(rate)

	batch := Batch{
		Rate:   rate,
		Alerts: alerts,
	}
	if p.connections != nil && rate.HasTraffic() {
		batch.Connections = p.listConnections(ctx)
	}

	return TickResult{
		Rate:     rate,
		Alerts:   alerts,
		Dispatch: p.dispatcher.Dispatch(ctx, batch),
	}
}

func (p *Processor) listConnections(ctx context.Context) []model.Connection {
	ctx, cancel := context.WithTimeout(ctx, p.connTimeout)
	defer cancel()

	conns, err := p.connections.List(ctx)
	if err != nil {
		p.logger.Debugf("Error listing active connections: %v", err)
		return nil
	}
	return conns
}

// Close closes the downstream sinks
func (p *Processor) Close(ctx context.Context) error {
	return p.dispatcher.Close(ctx)
}
