package rested

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/rested/pkg/transport"
)

// Default monitor settings.
const (
	DefaultHealthPath     = "/health"
	DefaultHealthInterval = 30 * time.Second
)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	HealthPath string
	Interval   time.Duration
	// Timeout bounds one ping. Defaults to Interval.
	Timeout time.Duration
}

// Monitor pings the server and switches the client between online and
// offline.
type Monitor struct {
	client *Client
	cfg    MonitorConfig
	log    *zap.Logger
}

// NewMonitor creates a monitor for c.
func NewMonitor(c *Client, cfg MonitorConfig) *Monitor {
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Monitor{client: c, cfg: cfg, log: c.log.Named("monitor")}
}

// Ping checks whether the server is reachable and updates the client state.
// Going online replays the offline queue.
func (m *Monitor) Ping(ctx context.Context) error {
	base, _ := m.client.BaseURL(0)
	url := base + strings.TrimPrefix(m.cfg.HealthPath, "/")

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	_, err := m.client.transport.Send(pingCtx, &transport.Request{
		Method:  transport.MethodGet,
		URL:     url,
		Headers: m.client.headers(nil),
	})
	if err != nil {
		if m.client.IsOnline() {
			m.log.Error("server is offline", zap.String("url", url), zap.Error(err))
		}
		m.client.Offline()
		return err
	}

	if !m.client.IsOnline() {
		m.log.Info("server is back online", zap.String("url", url))
	}
	m.client.Online(ctx)
	return nil
}

// Run pings immediately and then on every interval until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Ping(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Ping(ctx)
		}
	}
}
