package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bandwidth-guard/internal/alert"
	"bandwidth-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// DefaultSinkTimeout bounds how long one tick waits for its sinks
const DefaultSinkTimeout = 2 * time.Second

// Batch is everything delivered to the sinks for one tick
type Batch struct {
	Rate        model.RateMeasurement
	Alerts      []model.AlertEvent
	Connections []model.Connection
}

// DispatchResult summarizes one fan-out
type DispatchResult struct {
	Delivered int
	Failed    int
	TimedOut  int
}

// Dispatcher fans a batch out to every registered sink in parallel and
// waits for all of them, or the per-tick deadline, before returning.
type Dispatcher struct {
	sinks   []alert.Sink
	timeout time.Duration
	logger  *logrus.Logger
	mu      sync.RWMutex
}

func NewDispatcher(timeout time.Duration, logger *logrus.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSinkTimeout
	}
	return &Dispatcher{
		sinks:   make([]alert.Sink, 0),
		timeout: timeout,
		logger:  logger,
	}
}

func (d *Dispatcher) RegisterSink(sink alert.Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
	d.logger.Infof("Registered sink: %s", sink.Name())
}

func (d *Dispatcher) Sinks() []alert.Sink {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sinks := make([]alert.Sink, len(d.sinks))
	copy(sinks, d.sinks)
	return sinks
}

type sinkResult struct {
	index int
	err   error
}

// Dispatch delivers the batch to all sinks. Sink errors, panics and
// timeouts are logged here and never returned to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, batch Batch) DispatchResult {
	sinks := d.Sinks()
	var result DispatchResult
	if len(sinks) == 0 {
		return result
	}

	tickCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	results := make(chan sinkResult, len(sinks))
	for i, sink := range sinks {
		go func(i int, sink alert.Sink) {
			results <- sinkResult{index: i, err: deliver(tickCtx, sink, batch)}
		}(i, sink)
	}

	pending := make(map[int]bool, len(sinks))
	for i := range sinks {
		pending[i] = true
	}

	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.index)
			if r.err != nil {
				result.Failed++
				d.logger.Errorf("Sink %s failed: %v", sinks[r.index].Name(), r.err)
				continue
			}
			result.Delivered++
		case <-tickCtx.Done():
			for i := range pending {
				result.TimedOut++
				d.logger.Errorf("Sink %s did not finish within %v: %v", sinks[i].Name(), d.timeout, tickCtx.Err())
			}
			return result
		}
	}

	return result
}

func deliver(ctx context.Context, sink alert.Sink, batch Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()

	var errs []error
	if err := sink.OnMeasurement(ctx, batch.Rate); err != nil {
		errs = append(errs, fmt.Errorf("measurement: %w", err))
	}
	for _, event := range batch.Alerts {
		if err := sink.OnAlert(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s alert: %w", event.Direction, err))
		}
	}
	if len(batch.Connections) > 0 {
		if obs, ok := sink.(alert.ConnectionObserver); ok {
			if err := obs.OnConnections(ctx, batch.Connections); err != nil {
				errs = append(errs, fmt.Errorf("connections: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

// Close closes every sink, flushing whatever they buffer
func (d *Dispatcher) Close(ctx context.Context) error {
	var errs []error
	for _, sink := range d.Sinks() {
		if err := closeSink(ctx, sink); err != nil {
			d.logger.Errorf("Error closing sink %s: %v", sink.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func closeSink(ctx context.Context, sink alert.Sink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked on close: %v", r)
		}
	}()
	return sink.Close(ctx)
}
