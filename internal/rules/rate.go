package rules

import "bandwidth-guard/internal/model"

const (
	bitsPerByte    = 8
	bitsPerMegabit = 1_000_000
)

// ComputeRate derives upload/download throughput in Mbps from two samples.
// Elapsed time is taken from the sample timestamps. A non-positive elapsed
// time yields a zero measurement and a decreasing counter (reset) yields 0
// for that direction.
func ComputeRate(previous, current model.CounterSample) model.RateMeasurement {
	result := model.RateMeasurement{Timestamp: current.Timestamp}

	elapsed := current.Timestamp.Sub(previous.Timestamp).Seconds()
	if elapsed <= 0 {
		return result
	}

	result.UploadMbps = mbps(counterDelta(previous.BytesSent, current.BytesSent), elapsed)
	result.DownloadMbps = mbps(counterDelta(previous.BytesReceived, current.BytesReceived), elapsed)

	return result
}

func counterDelta(previous, current uint64) uint64 {
	if current < previous {
		return 0
	}
	return current - previous
}

func mbps(deltaBytes uint64, elapsedSeconds float64) float64 {
	return float64(deltaBytes) * bitsPerByte / elapsedSeconds / bitsPerMegabit
}
