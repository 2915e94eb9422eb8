package rules

import (
	"math"
	"testing"
	"time"

	"bandwidth-guard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultThresholds = model.ThresholdConfig{UploadMbps: 50, DownloadMbps: 100}

func measurement(up, down float64, at time.Duration) model.RateMeasurement {
	return model.RateMeasurement{UploadMbps: up, DownloadMbps: down, Timestamp: t0.Add(at)}
}

func TestEvaluate(t *testing.T) {
	t.Run("upload over, download equal", func(t *testing.T) {
		events := Evaluate(measurement(51.2, 100.0, 0), defaultThresholds)

		require.Len(t, events, 1)
		assert.Equal(t, model.DirectionUpload, events[0].Direction)
		assert.InDelta(t, 51.2, events[0].MeasuredMbps, 1e-9)
		assert.InDelta(t, 50.0, events[0].ThresholdMbps, 1e-9)
		assert.Equal(t, t0, events[0].Timestamp)
	})

	t.Run("both over", func(t *testing.T) {
		events := Evaluate(measurement(60, 120, 0), defaultThresholds)

		require.Len(t, events, 2)
		assert.Equal(t, model.DirectionUpload, events[0].Direction)
		assert.Equal(t, model.DirectionDownload, events[1].Direction)
	})

	t.Run("below both", func(t *testing.T) {
		assert.Empty(t, Evaluate(measurement(1, 1, 0), defaultThresholds))
	})

	t.Run("equal is not an exceedance", func(t *testing.T) {
		assert.Empty(t, Evaluate(measurement(50, 100, 0), defaultThresholds))
	})

	t.Run("any epsilon above alerts", func(t *testing.T) {
		for _, eps := range []float64{1e-9, 0.001, 0.5, 1000} {
			events := Evaluate(measurement(50+eps, 100+eps, 0), defaultThresholds)
			assert.Len(t, events, 2, "epsilon %v", eps)
		}

		next := math.Nextafter(50, math.Inf(1))
		events := Evaluate(measurement(next, 0, 0), defaultThresholds)
		require.Len(t, events, 1)
		assert.Equal(t, model.DirectionUpload, events[0].Direction)
	})

	t.Run("zero thresholds alert on any traffic", func(t *testing.T) {
		events := Evaluate(measurement(0.01, 0, 0), model.ThresholdConfig{})
		require.Len(t, events, 1)
		assert.Equal(t, model.DirectionUpload, events[0].Direction)
	})
}

func TestThresholdEvaluator_NoCooldown(t *testing.T) {
	e := NewThresholdEvaluator(defaultThresholds, 0)

	for i := 0; i < 5; i++ {
		events := e.Evaluate(measurement(75, 0, time.Duration(i)*time.Second))
		require.Len(t, events, 1, "tick %d", i)
	}
}

func TestThresholdEvaluator_Cooldown(t *testing.T) {
	e := NewThresholdEvaluator(defaultThresholds, 10*time.Second)

	// first crossing alerts
	require.Len(t, e.Evaluate(measurement(75, 0, 0)), 1)

	// sustained overage is suppressed inside the cooldown
	for i := 1; i < 10; i++ {
		assert.Empty(t, e.Evaluate(measurement(75, 0, time.Duration(i)*time.Second)), "tick %d", i)
	}

	// cooldown elapsed
	require.Len(t, e.Evaluate(measurement(75, 0, 10*time.Second)), 1)

	// dip below and cross again: a new crossing always alerts
	assert.Empty(t, e.Evaluate(measurement(10, 0, 11*time.Second)))
	require.Len(t, e.Evaluate(measurement(75, 0, 12*time.Second)), 1)
}

func TestThresholdEvaluator_CooldownPerDirection(t *testing.T) {
	e := NewThresholdEvaluator(defaultThresholds, time.Minute)

	require.Len(t, e.Evaluate(measurement(75, 0, 0)), 1)

	events := e.Evaluate(measurement(75, 150, time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, model.DirectionDownload, events[0].Direction)

	assert.Equal(t, defaultThresholds, e.Thresholds())
}
