package alert

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync"

	"bandwidth-guard/internal/model"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

const (
	bandwidthMeasurement  = "network_bandwidth"
	alertMeasurement      = "network_bandwidth_alert"
	connectionMeasurement = "network_connection"
)

// InfluxDBConfig holds the connection and batching parameters
type InfluxDBConfig struct {
	URL             string
	Token           string
	Org             string
	Bucket          string
	BatchSize       uint
	FlushIntervalMs uint
	Tags            map[string]string
}

// pointWriter is the subset of the client's non-blocking write API used here
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxDBSink buffers one point per tick and writes them in batches.
// Writes never block the caller; delivery errors arrive asynchronously and
// are logged.
type InfluxDBSink struct {
	client    influxdb2.Client
	writer    pointWriter
	tags      map[string]string
	logger    *logrus.Logger
	errDone   chan struct{}
	closeOnce sync.Once
}

// NewInfluxDBSink creates a sink writing to the given bucket
func NewInfluxDBSink(cfg InfluxDBConfig, logger *logrus.Logger) (*InfluxDBSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("influxdb url is required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid influxdb url %q: %w", cfg.URL, err)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("influxdb token is required")
	}
	if cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influxdb org and bucket are required")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.FlushIntervalMs == 0 {
		cfg.FlushIntervalMs = 10_000
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(cfg.BatchSize).
		SetFlushInterval(cfg.FlushIntervalMs).
		SetHTTPRequestTimeout(5)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	sink := &InfluxDBSink{
		client:  client,
		writer:  writeAPI,
		tags:    defaultTags(cfg.Tags),
		logger:  logger,
		errDone: make(chan struct{}),
	}

	errCh := writeAPI.Errors()
	go func() {
		defer close(sink.errDone)
		for err := range errCh {
			logger.Errorf("Error writing to InfluxDB: %v", err)
		}
	}()

	logger.Infof("InfluxDB exporter initialized for %s, bucket: %s", cfg.URL, cfg.Bucket)
	return sink, nil
}

func defaultTags(extra map[string]string) map[string]string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	tags := map[string]string{
		"host":      host,
		"interface": "all",
	}
	for k, v := range extra {
		tags[k] = v
	}
	return tags
}

func (is *InfluxDBSink) Name() string {
	return "influxdb"
}

func (is *InfluxDBSink) pointTags(extra map[string]string) map[string]string {
	tags := make(map[string]string, len(is.tags)+len(extra))
	for k, v := range is.tags {
		tags[k] = v
	}
	for k, v := range extra {
		tags[k] = v
	}
	return tags
}

func (is *InfluxDBSink) OnMeasurement(_ context.Context, rate model.RateMeasurement) error {
	p := influxdb2.NewPoint(bandwidthMeasurement,
		is.pointTags(nil),
		map[string]interface{}{
			"upload_mbps":   rate.UploadMbps,
			"download_mbps": rate.DownloadMbps,
		},
		rate.Timestamp)
	is.writer.WritePoint(p)
	return nil
}

func (is *InfluxDBSink) OnAlert(_ context.Context, event model.AlertEvent) error {
	p := influxdb2.NewPoint(alertMeasurement,
		is.pointTags(map[string]string{"direction": event.Direction.String()}),
		map[string]interface{}{
			"measured_mbps":  event.MeasuredMbps,
			"threshold_mbps": event.ThresholdMbps,
		},
		event.Timestamp)
	is.writer.WritePoint(p)
	return nil
}

// OnConnections writes one point per active connection
func (is *InfluxDBSink) OnConnections(_ context.Context, conns []model.Connection) error {
	for _, c := range conns {
		p := influxdb2.NewPointWithMeasurement(connectionMeasurement)
		for k, v := range is.pointTags(map[string]string{
			"remote_ip": c.RemoteIP,
			"hostname":  c.Hostname,
			"port":      strconv.FormatUint(uint64(c.RemotePort), 10),
		}) {
			p.AddTag(k, v)
		}
		p.AddField("active", 1)
		is.writer.WritePoint(p)
	}
	return nil
}

// Close flushes buffered points and releases the client
func (is *InfluxDBSink) Close(ctx context.Context) error {
	is.closeOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			is.writer.Flush()
			if is.client != nil {
				is.client.Close()
			}
			close(done)
		}()

		select {
		case <-done:
			is.logger.Info("InfluxDB connection closed")
		case <-ctx.Done():
			is.logger.Warnf("InfluxDB flush did not finish before shutdown: %v", ctx.Err())
		}
	})
	return nil
}
