package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bandwidth-guard/internal/model"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// ErrSamplerUnavailable is returned when the OS counters cannot be read
var ErrSamplerUnavailable = errors.New("network counters unavailable")

// CounterSampler reads the host's cumulative network byte counters
type CounterSampler interface {
	Sample(ctx context.Context) (model.CounterSample, error)
}

type ioCountersFunc func(ctx context.Context, pernic bool) ([]psnet.IOCountersStat, error)

// HostSampler samples aggregate counters across all interfaces through gopsutil
type HostSampler struct {
	ioCounters ioCountersFunc
	now        func() time.Time
}

// NewHostSampler creates a sampler backed by the OS network counters
func NewHostSampler() *HostSampler {
	return &HostSampler{
		ioCounters: psnet.IOCountersWithContext,
		now:        time.Now,
	}
}

// Sample implements CounterSampler
func (s *HostSampler) Sample(ctx context.Context) (model.CounterSample, error) {
	stats, err := s.ioCounters(ctx, false)
	if err != nil {
		return model.CounterSample{}, fmt.Errorf("%w: %v", ErrSamplerUnavailable, err)
	}
	if len(stats) == 0 {
		return model.CounterSample{}, fmt.Errorf("%w: no network interfaces found", ErrSamplerUnavailable)
	}

	// pernic=false normally yields a single "all" entry
	var sent, recv uint64
	for _, st := range stats {
		sent += st.BytesSent
		recv += st.BytesRecv
	}

	return model.CounterSample{
		Timestamp:     s.now(),
		BytesSent:     sent,
		BytesReceived: recv,
	}, nil
}
