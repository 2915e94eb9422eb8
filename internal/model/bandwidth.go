package model

import "time"

// Direction identifies which side of the link a rate or alert refers to
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

func (d Direction) String() string {
	return string(d)
}

// CounterSample is a snapshot of the host's cumulative byte counters
type CounterSample struct {
	Timestamp     time.Time `json:"timestamp"`
	BytesSent     uint64    `json:"bytes_sent"`
	BytesReceived uint64    `json:"bytes_received"`
}

// RateMeasurement is the throughput derived from two consecutive samples
type RateMeasurement struct {
	UploadMbps   float64   `json:"upload_mbps"`
	DownloadMbps float64   `json:"download_mbps"`
	Timestamp    time.Time `json:"timestamp"`
}

// HasTraffic reports whether either direction moved any bytes
func (r RateMeasurement) HasTraffic() bool {
	return r.UploadMbps > 0 || r.DownloadMbps > 0
}

// ThresholdConfig holds the per-direction limits in Mbps
type ThresholdConfig struct {
	UploadMbps   float64 `yaml:"upload_mbps" json:"upload_mbps"`
	DownloadMbps float64 `yaml:"download_mbps" json:"download_mbps"`
}

// For returns the threshold configured for the given direction
func (c ThresholdConfig) For(d Direction) float64 {
	if d == DirectionUpload {
		return c.UploadMbps
	}
	return c.DownloadMbps
}

// AlertEvent is raised when a measured rate strictly exceeds its threshold
type AlertEvent struct {
	Direction     Direction `json:"direction"`
	MeasuredMbps  float64   `json:"measured_mbps"`
	ThresholdMbps float64   `json:"threshold_mbps"`
	Timestamp     time.Time `json:"timestamp"`
}
