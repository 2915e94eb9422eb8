package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bandwidth-guard/internal/alert"
	"bandwidth-guard/internal/client"
	"bandwidth-guard/internal/model"
	"bandwidth-guard/internal/pipeline"
	"bandwidth-guard/internal/rules"
	"bandwidth-guard/internal/utils"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var epoch = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// fakeClock advances by exactly the requested wait and fires immediately
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// fakeSampler reports traffic of exactly 1 Mbps in each direction,
// derived from the fake clock, and fails on the listed calls
type fakeSampler struct {
	clock  *fakeClock
	failOn map[int]bool
	calls  int
}

func (s *fakeSampler) Sample(context.Context) (model.CounterSample, error) {
	call := s.calls
	s.calls++
	if s.failOn[call] {
		return model.CounterSample{}, fmt.Errorf("%w: interface went away", client.ErrSamplerUnavailable)
	}

	now := s.clock.Now()
	seconds := uint64(now.Sub(epoch) / time.Second)
	return model.CounterSample{
		Timestamp:     now,
		BytesSent:     seconds * 125_000,
		BytesReceived: seconds * 125_000,
	}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newProcessor(thresholds model.ThresholdConfig, sinks ...alert.Sink) *pipeline.Processor {
	d := pipeline.NewDispatcher(time.Second, quietLogger())
	for _, s := range sinks {
		d.RegisterSink(s)
	}
	return pipeline.NewProcessor(rules.NewThresholdEvaluator(thresholds, 0), d, quietLogger())
}

func newMonitor(t *testing.T, sampler client.CounterSampler, p *pipeline.Processor, cfg Config, clock *fakeClock) *Monitor {
	t.Helper()
	m, err := New(sampler, p, cfg, quietLogger(), WithClock(clock.Now, clock.After))
	require.NoError(t, err)
	return m
}

var defaultThresholds = model.ThresholdConfig{UploadMbps: 50, DownloadMbps: 100}

func TestMonitor_TickCountIgnoresSinkFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := newFakeClock()

	unreachable := alert.NewMockSink(ctrl)
	unreachable.EXPECT().Name().Return("influxdb").AnyTimes()
	unreachable.EXPECT().OnMeasurement(gomock.Any(), gomock.Any()).Return(errors.New("dial tcp: connection refused")).Times(5)
	unreachable.EXPECT().Close(gomock.Any()).Return(errors.New("flush failed"))

	logSink := alert.NewMockSink(ctrl)
	logSink.EXPECT().Name().Return("log").AnyTimes()
	logSink.EXPECT().OnMeasurement(gomock.Any(), gomock.Any()).Return(nil).Times(5)
	logSink.EXPECT().Close(gomock.Any()).Return(nil)

	sampler := &fakeSampler{clock: clock}
	m := newMonitor(t, sampler, newProcessor(defaultThresholds, unreachable, logSink),
		Config{Interval: time.Second, Duration: 5 * time.Second}, clock)

	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, int64(5), m.Ticks())
	assert.Equal(t, int64(0), m.SkippedTicks())
	assert.Equal(t, 6, sampler.calls)
	assert.Equal(t, StateStopped, m.State())
}

func TestMonitor_FirstSampleOnlySetsBaseline(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := newFakeClock()

	sink := alert.NewMockSink(ctrl)
	sink.EXPECT().Name().Return("mock").AnyTimes()
	sink.EXPECT().Close(gomock.Any()).Return(nil)

	sampler := &fakeSampler{clock: clock}
	m := newMonitor(t, sampler, newProcessor(model.ThresholdConfig{}, sink),
		Config{Interval: time.Second, Duration: 500 * time.Millisecond}, clock)

	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, int64(0), m.Ticks())
	assert.Equal(t, 1, sampler.calls)
	assert.Equal(t, epoch.Add(500*time.Millisecond), clock.Now())
}

func TestMonitor_TransientSampleErrorKeepsBaseline(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := newFakeClock()

	var (
		mu    sync.Mutex
		rates []model.RateMeasurement
	)
	sink := alert.NewMockSink(ctrl)
	sink.EXPECT().Name().Return("mock").AnyTimes()
	sink.EXPECT().OnMeasurement(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rate model.RateMeasurement) error {
			mu.Lock()
			defer mu.Unlock()
			rates = append(rates, rate)
			return nil
		}).Times(3)
	sink.EXPECT().Close(gomock.Any()).Return(nil)

	sampler := &fakeSampler{clock: clock, failOn: map[int]bool{2: true}}
	m := newMonitor(t, sampler, newProcessor(defaultThresholds, sink),
		Config{Interval: time.Second, Duration: 4 * time.Second}, clock)

	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, int64(3), m.Ticks())
	assert.Equal(t, int64(1), m.SkippedTicks())

	require.Len(t, rates, 3)
	wantTimes := []time.Time{epoch.Add(time.Second), epoch.Add(3 * time.Second), epoch.Add(4 * time.Second)}
	for i, rate := range rates {
		assert.Equal(t, wantTimes[i], rate.Timestamp)
		// the tick after the failure spans two seconds against the kept baseline
		assert.InDelta(t, 1.0, rate.UploadMbps, 1e-9)
		assert.InDelta(t, 1.0, rate.DownloadMbps, 1e-9)
	}
}

func TestMonitor_InitialSampleFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := newFakeClock()

	sink := alert.NewMockSink(ctrl)
	sink.EXPECT().Name().Return("mock").AnyTimes()
	sink.EXPECT().Close(gomock.Any()).Return(nil)

	sampler := &fakeSampler{clock: clock, failOn: map[int]bool{0: true}}
	m := newMonitor(t, sampler, newProcessor(defaultThresholds, sink),
		Config{Interval: time.Second}, clock)

	err := m.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrSamplerUnavailable)
	assert.Equal(t, StateStopped, m.State())
	assert.Equal(t, int64(0), m.Ticks())
}

func TestMonitor_CancelStopsAndClosesSinks(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var m *Monitor
	seen := 0
	sink := alert.NewMockSink(ctrl)
	sink.EXPECT().Name().Return("mock").AnyTimes()
	sink.EXPECT().OnMeasurement(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, model.RateMeasurement) error {
			assert.Equal(t, StateRunning, m.State())
			seen++
			if seen == 3 {
				cancel()
			}
			return nil
		}).Times(3)
	sink.EXPECT().Close(gomock.Any()).Return(nil)

	m = newMonitor(t, &fakeSampler{clock: clock}, newProcessor(defaultThresholds, sink),
		Config{Interval: time.Second}, clock)
	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.Run(ctx))

	assert.Equal(t, int64(3), m.Ticks())
	assert.Equal(t, StateStopped, m.State())
}

// slowSink needs some time per write and gives up when its context ends
type slowSink struct {
	onWrite  func()
	delay    time.Duration
	finished atomic.Int32
	aborted  atomic.Int32
}

func (s *slowSink) Name() string { return "slow" }

func (s *slowSink) OnMeasurement(ctx context.Context, _ model.RateMeasurement) error {
	if s.onWrite != nil {
		s.onWrite()
	}
	select {
	case <-ctx.Done():
		s.aborted.Add(1)
		return ctx.Err()
	case <-time.After(s.delay):
		s.finished.Add(1)
		return nil
	}
}

func (s *slowSink) OnAlert(context.Context, model.AlertEvent) error { return nil }

func (s *slowSink) Close(context.Context) error { return nil }

func TestMonitor_StopLetsCurrentTickFinish(t *testing.T) {
	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &slowSink{onWrite: cancel, delay: 50 * time.Millisecond}
	m := newMonitor(t, &fakeSampler{clock: clock}, newProcessor(defaultThresholds, sink),
		Config{Interval: time.Second}, clock)

	require.NoError(t, m.Run(ctx))

	assert.Equal(t, int64(1), m.Ticks())
	assert.Equal(t, int32(1), sink.finished.Load())
	assert.Equal(t, int32(0), sink.aborted.Load())
	assert.Equal(t, StateStopped, m.State())
}

func TestMonitor_LogsRatesEveryTick(t *testing.T) {
	clock := newFakeClock()
	logger, hook := logtest.NewNullLogger()

	// no sinks at all
	m, err := New(&fakeSampler{clock: clock}, newProcessor(defaultThresholds),
		Config{Interval: time.Second, Duration: 3 * time.Second}, logger, WithClock(clock.Now, clock.After))
	require.NoError(t, err)
	require.NoError(t, m.Run(context.Background()))

	var lines []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.InfoLevel && entry.Data["upload_mbps"] != nil {
			lines = append(lines, entry.Message)
		}
	}
	assert.Equal(t, []string{
		"Upload: 1.00 Mbps, Download: 1.00 Mbps",
		"Upload: 1.00 Mbps, Download: 1.00 Mbps",
		"Upload: 1.00 Mbps, Download: 1.00 Mbps",
	}, lines)
}

func TestMonitor_RunOnlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := newFakeClock()

	sink := alert.NewMockSink(ctrl)
	sink.EXPECT().Name().Return("mock").AnyTimes()
	sink.EXPECT().OnMeasurement(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	sink.EXPECT().Close(gomock.Any()).Return(nil)

	m := newMonitor(t, &fakeSampler{clock: clock}, newProcessor(defaultThresholds, sink),
		Config{Interval: time.Second, Duration: 2 * time.Second}, clock)

	require.NoError(t, m.Run(context.Background()))
	assert.ErrorIs(t, m.Run(context.Background()), ErrAlreadyStarted)
}

func TestMonitor_AlertsFollowThresholds(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := newFakeClock()

	sink := alert.NewMockSink(ctrl)
	sink.EXPECT().Name().Return("mock").AnyTimes()
	sink.EXPECT().OnMeasurement(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	sink.EXPECT().OnAlert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event model.AlertEvent) error {
			assert.Equal(t, model.DirectionDownload, event.Direction)
			assert.InDelta(t, 1.0, event.MeasuredMbps, 1e-9)
			return nil
		}).Times(2)
	sink.EXPECT().Close(gomock.Any()).Return(nil)

	// 1 Mbps upload is equal to its threshold, download is above
	thresholds := model.ThresholdConfig{UploadMbps: 1, DownloadMbps: 0.5}
	m := newMonitor(t, &fakeSampler{clock: clock}, newProcessor(thresholds, sink),
		Config{Interval: time.Second, Duration: 2 * time.Second}, clock)

	require.NoError(t, m.Run(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	p := newProcessor(defaultThresholds)
	sampler := &fakeSampler{clock: newFakeClock()}

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero interval", cfg: Config{}},
		{name: "negative interval", cfg: Config{Interval: -time.Second}},
		{name: "negative duration", cfg: Config{Interval: time.Second, Duration: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(sampler, p, tt.cfg, quietLogger())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := New(nil, p, Config{Interval: time.Second}, quietLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, utils.ErrInvalidConfig)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "state(7)", State(7).String())
}
