package alert

import (
	"context"

	"bandwidth-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// LogSink writes alerts and active connections to the local log. Per-tick
// rates are logged by the monitor whether or not this sink is enabled.
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink creates a new log sink
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{
		logger: logger,
	}
}

func (ls *LogSink) Name() string {
	return "log"
}

func (ls *LogSink) OnMeasurement(context.Context, model.RateMeasurement) error {
	return nil
}

// OnAlert logs one line per alert
func (ls *LogSink) OnAlert(_ context.Context, event model.AlertEvent) error {
	ls.logger.WithFields(logrus.Fields{
		"direction":      event.Direction,
		"measured_mbps":  event.MeasuredMbps,
		"threshold_mbps": event.ThresholdMbps,
	}).Warnf("ALERT: %s threshold exceeded! Current: %.2f Mbps, Threshold: %.2f Mbps",
		event.Direction, event.MeasuredMbps, event.ThresholdMbps)
	return nil
}

// OnConnections implements ConnectionObserver
func (ls *LogSink) OnConnections(_ context.Context, conns []model.Connection) error {
	for _, c := range conns {
		ls.logger.Infof("Conn -> %s:%d (%s)", c.RemoteIP, c.RemotePort, c.Hostname)
	}
	return nil
}

func (ls *LogSink) Close(context.Context) error {
	return nil
}
