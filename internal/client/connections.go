package client

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"bandwidth-guard/internal/model"

	psnet "github.com/shirou/gopsutil/v4/net"
)

const unknownHostname = "N/A"

type connectionsFunc func(ctx context.Context, kind string) ([]psnet.ConnectionStat, error)

type lookupAddrFunc func(ctx context.Context, addr string) ([]string, error)

// ConnectionLister lists active remote connections with best-effort reverse DNS
type ConnectionLister struct {
	limit         int
	lookupTimeout time.Duration
	connections   connectionsFunc
	lookupAddr    lookupAddrFunc
}

// NewConnectionLister creates a lister returning at most limit connections
func NewConnectionLister(limit int, lookupTimeout time.Duration) *ConnectionLister {
	if limit <= 0 {
		limit = 5
	}
	if lookupTimeout <= 0 {
		lookupTimeout = 500 * time.Millisecond
	}
	return &ConnectionLister{
		limit:         limit,
		lookupTimeout: lookupTimeout,
		connections:   psnet.ConnectionsWithContext,
		lookupAddr:    net.DefaultResolver.LookupAddr,
	}
}

// List returns remote inet connections, skipping sockets with no peer
func (l *ConnectionLister) List(ctx context.Context) ([]model.Connection, error) {
	stats, err := l.connections(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	result := make([]model.Connection, 0, l.limit)
	for _, st := range stats {
		if len(result) >= l.limit {
			break
		}
		if st.Raddr.IP == "" {
			continue
		}
		result = append(result, model.Connection{
			RemoteIP:   st.Raddr.IP,
			RemotePort: st.Raddr.Port,
			Hostname:   l.resolve(ctx, st.Raddr.IP),
		})
	}

	return result, nil
}

func (l *ConnectionLister) resolve(ctx context.Context, ip string) string {
	ctx, cancel := context.WithTimeout(ctx, l.lookupTimeout)
	defer cancel()

	names, err := l.lookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return unknownHostname
	}
	return strings.TrimSuffix(names[0], ".")
}
