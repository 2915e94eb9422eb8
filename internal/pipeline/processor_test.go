package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"bandwidth-guard/internal/alert"
	"bandwidth-guard/internal/model"
	"bandwidth-guard/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeConnections struct {
	conns []model.Connection
	err   error
	calls int
}

func (f *fakeConnections) List(context.Context) ([]model.Connection, error) {
	f.calls++
	return f.conns, f.err
}

func samples(sentDelta, recvDelta uint64, elapsed time.Duration) (model.CounterSample, model.CounterSample) {
	prev := model.CounterSample{Timestamp: ts, BytesSent: 1_000, BytesReceived: 2_000}
	cur := model.CounterSample{
		Timestamp:     ts.Add(elapsed),
		BytesSent:     prev.BytesSent + sentDelta,
		BytesReceived: prev.BytesReceived + recvDelta,
	}
	return prev, cur
}

func TestProcessor_RateAndAlerts(t *testing.T) {
	ctrl := gomock.NewController(t)

	// 6,400,000 bytes in 1s is 51.2 Mbps; 12,500,000 bytes is 100 Mbps
	prev, cur := samples(6_400_000, 12_500_000, time.Second)

	sink := alert.NewMockSink(ctrl)
	sink.EXPECT().Name().Return("mock").AnyTimes()
	sink.EXPECT().OnMeasurement(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rate model.RateMeasurement) error {
			assert.InDelta(t, 51.2, rate.UploadMbps, 1e-9)
			assert.InDelta(t, 100.0, rate.DownloadMbps, 1e-9)
			assert.Equal(t, cur.Timestamp, rate.Timestamp)
			return nil
		})
	sink.EXPECT().OnAlert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event model.AlertEvent) error {
			assert.Equal(t, model.DirectionUpload, event.Direction)
			assert.Equal(t, 50.0, event.ThresholdMbps)
			return nil
		})

	d := NewDispatcher(time.Second, quietLogger())
	d.RegisterSink(sink)

	evaluator := rules.NewThresholdEvaluator(model.ThresholdConfig{UploadMbps: 50, DownloadMbps: 100}, 0)
	p := NewProcessor(evaluator, d, quietLogger())

	res := p.Process(context.Background(), prev, cur)

	require.Len(t, res.Alerts, 1)
	assert.Equal(t, model.DirectionUpload, res.Alerts[0].Direction)
	assert.Equal(t, DispatchResult{Delivered: 1}, res.Dispatch)
}

func TestProcessor_ConnectionsOnlyWithTraffic(t *testing.T) {
	evaluator := rules.NewThresholdEvaluator(model.ThresholdConfig{UploadMbps: 50, DownloadMbps: 100}, 0)
	src := &fakeConnections{conns: []model.Connection{{RemoteIP: "8.8.8.8", RemotePort: 53, Hostname: "dns.google"}}}

	p := NewProcessor(evaluator, NewDispatcher(time.Second, quietLogger()), quietLogger())
	p.SetConnectionSource(src)

	prev, cur := samples(0, 0, time.Second)
	res := p.Process(context.Background(), prev, cur)
	assert.Empty(t, res.Alerts)
	assert.Equal(t, 0, src.calls)

	prev, cur = samples(1_000, 0, time.Second)
	p.Process(context.Background(), prev, cur)
	assert.Equal(t, 1, src.calls)
}

func TestProcessor_ConnectionErrorDoesNotFailTick(t *testing.T) {
	ctrl := gomock.NewController(t)

	sink := alert.NewMockSink(ctrl)
	sink.EXPECT().Name().Return("mock").AnyTimes()
	sink.EXPECT().OnMeasurement(gomock.Any(), gomock.Any()).Return(nil)

	d := NewDispatcher(time.Second, quietLogger())
	d.RegisterSink(sink)

	evaluator := rules.NewThresholdEvaluator(model.ThresholdConfig{UploadMbps: 50, DownloadMbps: 100}, 0)
	p := NewProcessor(evaluator, d, quietLogger())
	p.SetConnectionSource(&fakeConnections{err: errors.New("permission denied")})

	prev, cur := samples(1_000, 1_000, time.Second)
	res := p.Process(context.Background(), prev, cur)

	assert.Equal(t, DispatchResult{Delivered: 1}, res.Dispatch)
}

func TestProcessor_Close(t *testing.T) {
	ctrl := gomock.NewController(t)

	sink := alert.NewMockSink(ctrl)
	sink.EXPECT().Name().Return("mock").AnyTimes()
	sink.EXPECT().Close(gomock.Any()).Return(nil)

	d := NewDispatcher(time.Second, quietLogger())
	d.RegisterSink(sink)

	p := NewProcessor(rules.NewThresholdEvaluator(model.ThresholdConfig{}, 0), d, quietLogger())
	assert.NoError(t, p.Close(context.Background()))
}
