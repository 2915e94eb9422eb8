package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"bandwidth-guard/internal/client"
	"bandwidth-guard/internal/pipeline"
	"bandwidth-guard/internal/utils"

	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyStarted = errors.New("monitor already started")

	// ErrInvalidConfig is shared with the config loader
	ErrInvalidConfig = utils.ErrInvalidConfig
)

const closeTimeout = 5 * time.Second

// State of a Monitor. A monitor only moves forward: Idle, Running, Stopped.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config is frozen when the monitor is created. A zero Duration runs until
// the context is cancelled.
type Config struct {
	Interval time.Duration
	Duration time.Duration
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidConfig, c.Interval)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative, got %v", ErrInvalidConfig, c.Duration)
	}
	return nil
}

type Option func(*Monitor)

// WithClock replaces the wall clock used for waits and the duration check
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(m *Monitor) {
		m.now = now
		m.after = after
	}
}

// Monitor owns the sampling timeline: it keeps the previous sample as the
// baseline and hands every pair of samples to the processor, one tick at a
// time.
type Monitor struct {
	sampler   client.CounterSampler
	processor *pipeline.Processor
	cfg       Config
	logger    *logrus.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	state   atomic.Int32
	ticks   atomic.Int64
	skipped atomic.Int64
}

// New creates a monitor in the Idle state
func New(sampler client.CounterSampler, processor *pipeline.Processor, cfg Config, logger *logrus.Logger, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil || processor == nil {
		return nil, fmt.Errorf("%w: sampler and processor are required", ErrInvalidConfig)
	}

	m := &Monitor{
		sampler:   sampler,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		after:     time.After,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Ticks returns the number of ticks that produced a measurement
func (m *Monitor) Ticks() int64 {
	return m.ticks.Load()
}

// SkippedTicks returns the number of ticks lost to sampling errors
func (m *Monitor) SkippedTicks() int64 {
	return m.skipped.Load()
}

// Run blocks until the configured duration has elapsed or ctx is cancelled.
// Only a failure to take the initial sample is returned as an error; the
// sinks are closed on every exit path.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	defer m.state.Store(int32(StateStopped))
	defer m.closeSinks()

	start := m.now()

	previous, err := m.sampler.Sample(ctx)
	if err != nil {
		return fmt.Errorf("failed to take initial sample: %w", err)
	}

	if m.cfg.Duration > 0 {
		m.logger.Infof("Monitoring every %v for %v", m.cfg.Interval, m.cfg.Duration)
	} else {
		m.logger.Infof("Monitoring every %v until stopped", m.cfg.Interval)
	}

	for {
		wait := m.cfg.Interval
		final := false
		if m.cfg.Duration > 0 {
			remaining := m.cfg.Duration - m.now().Sub(start)
			if remaining <= 0 {
				m.logger.Infof("Monitoring duration elapsed after %d ticks", m.Ticks())
				return nil
			}
			if remaining < wait {
				wait = remaining
				final = true
			}
		}

		select {
		case <-ctx.Done():
			m.logger.Infof("Stopping monitor after %d ticks", m.Ticks())
			return nil
		case <-m.after(wait):
		}

		if ctx.Err() != nil {
			m.logger.Infof("Stopping monitor after %d ticks", m.Ticks())
			return nil
		}
		if final {
			m.logger.Infof("Monitoring duration elapsed after %d ticks", m.Ticks())
			return nil
		}

		// a started tick runs to completion, bounded by the sink timeout
		tickCtx := context.WithoutCancel(ctx)

		current, err := m.sampler.Sample(tickCtx)
		if err != nil {
			m.skipped.Add(1)
			m.logger.Warnf("Skipping tick, sampling failed: %v", err)
			continue
		}

		res := m.processor.Process(tickCtx, previous, current)
		previous = current
		m.ticks.Add(1)

		m.logTick(res)
	}
}

func (m *Monitor) logTick(res pipeline.TickResult) {
	m.logger.WithFields(logrus.Fields{
		"tick":          m.Ticks(),
		"upload_mbps":   res.Rate.UploadMbps,
		"download_mbps": res.Rate.DownloadMbps,
	}).Infof("Upload: %.2f Mbps, Download: %.2f Mbps", res.Rate.UploadMbps, res.Rate.DownloadMbps)

	m.logger.WithFields(logrus.Fields{
		"tick":      m.Ticks(),
		"alerts":    len(res.Alerts),
		"delivered": res.Dispatch.Delivered,
		"failed":    res.Dispatch.Failed,
		"timed_out": res.Dispatch.TimedOut,
	}).Debug("Tick processed")
}

func (m *Monitor) closeSinks() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := m.processor.Close(ctx); err != nil {
		m.logger.Errorf("Error closing sinks: %v", err)
	}
}
