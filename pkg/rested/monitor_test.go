package rested

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fruitsalade/rested/pkg/transport"
)

func TestMonitorSwitchesState(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	ft := &fakeTransport{respond: func(req *transport.Request) (*transport.Response, error) {
		if req.URL == testBaseURL+"/health" && down.Load() {
			return replyError(req)
		}
		return &transport.Response{Status: 200, Body: "ok"}, nil
	}}
	c, _ := newTestClient(t, ft, Config{})
	m := NewMonitor(c, MonitorConfig{Interval: time.Hour})
	ctx := context.Background()

	if err := m.Ping(ctx); err == nil {
		t.Fatal("expected ping failure")
	}
	if c.IsOnline() {
		t.Fatal("expected client offline after failed ping")
	}

	call := c.Resource("users").Save(ctx, map[string]any{"name": "A"}, Request{})
	if c.Queue().Len() != 1 {
		t.Fatal("expected save to be queued")
	}

	down.Store(false)
	if err := m.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !c.IsOnline() {
		t.Fatal("expected client online")
	}
	if _, err := wait(t, call); err != nil {
		t.Fatalf("replayed save: %v", err)
	}
}

func TestMonitorRunStopsWithContext(t *testing.T) {
	ft := &fakeTransport{}
	c, _ := newTestClient(t, ft, Config{})
	m := NewMonitor(c, MonitorConfig{HealthPath: "ping", Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	sent := ft.sent()
	if len(sent) < 2 {
		t.Fatalf("expected repeated pings, got %d", len(sent))
	}
	if sent[0].URL != testBaseURL+"/ping" {
		t.Errorf("unexpected ping url %q", sent[0].URL)
	}
}
