package rules

import (
	"sync"
	"time"

	"bandwidth-guard/internal/model"

	"golang.org/x/time/rate"
)

var directions = []model.Direction{model.DirectionUpload, model.DirectionDownload}

// Evaluate compares a measurement against the thresholds. Each direction is
// checked independently with a strict greater-than, so a rate equal to its
// threshold never alerts.
func Evaluate(measurement model.RateMeasurement, cfg model.ThresholdConfig) []model.AlertEvent {
	var events []model.AlertEvent

	for _, d := range directions {
		measured := measuredFor(measurement, d)
		threshold := cfg.For(d)
		if measured > threshold {
			events = append(events, model.AlertEvent{
				Direction:     d,
				MeasuredMbps:  measured,
				ThresholdMbps: threshold,
				Timestamp:     measurement.Timestamp,
			})
		}
	}

	return events
}

func measuredFor(m model.RateMeasurement, d model.Direction) float64 {
	if d == model.DirectionUpload {
		return m.UploadMbps
	}
	return m.DownloadMbps
}

type directionState struct {
	exceeding bool
	limiter   *rate.Limiter
}

// ThresholdEvaluator wraps Evaluate with an optional per-direction cooldown
// for repeat alerts during a sustained overage. The first tick of every
// crossing from normal to exceeding always alerts. A zero cooldown passes
// every event through.
type ThresholdEvaluator struct {
	cfg      model.ThresholdConfig
	cooldown time.Duration
	mu       sync.Mutex
	state    map[model.Direction]*directionState
}

// NewThresholdEvaluator creates an evaluator for the given thresholds
func NewThresholdEvaluator(cfg model.ThresholdConfig, cooldown time.Duration) *ThresholdEvaluator {
	e := &ThresholdEvaluator{
		cfg:      cfg,
		cooldown: cooldown,
		state:    make(map[model.Direction]*directionState, len(directions)),
	}
	for _, d := range directions {
		st := &directionState{}
		if cooldown > 0 {
			st.limiter = rate.NewLimiter(rate.Every(cooldown), 1)
		}
		e.state[d] = st
	}
	return e
}

// Thresholds returns the configured thresholds
func (e *ThresholdEvaluator) Thresholds() model.ThresholdConfig {
	return e.cfg
}

// Evaluate returns the alerts to emit for this measurement
func (e *ThresholdEvaluator) Evaluate(measurement model.RateMeasurement) []model.AlertEvent {
	events := Evaluate(measurement, e.cfg)

	e.mu.Lock()
	defer e.mu.Unlock()

	fired := make(map[model.Direction]model.AlertEvent, len(events))
	for _, ev := range events {
		fired[ev.Direction] = ev
	}

	var result []model.AlertEvent
	for _, d := range directions {
		st := e.state[d]
		ev, exceeding := fired[d]
		if !exceeding {
			st.exceeding = false
			continue
		}

		crossing := !st.exceeding
		st.exceeding = true

		if st.limiter == nil {
			result = append(result, ev)
			continue
		}

		allowed := st.limiter.AllowN(measurement.Timestamp, 1)
		if crossing || allowed {
			result = append(result, ev)
		}
	}

	return result
}
