package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fruitsalade/rested/internal/config"
	"github.com/fruitsalade/rested/pkg/store"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"limit=10", "q=a=b"})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if params["limit"] != "10" || params["q"] != "a=b" {
		t.Errorf("unexpected params %v", params)
	}

	if _, err := parseParams([]string{"novalue"}); err == nil {
		t.Error("expected error for missing '='")
	}
	if p, err := parseParams(nil); p != nil || err != nil {
		t.Errorf("expected nil params, got %v, %v", p, err)
	}
}

func TestReadBody(t *testing.T) {
	body, err := readBody(`{"id":7,"name":"Ann"}`, nil)
	if err != nil {
		t.Fatalf("readBody: %v", err)
	}
	m, ok := body.(map[string]any)
	if !ok || m["id"] != json.Number("7") {
		t.Errorf("unexpected body %#v", body)
	}

	body, err = readBody("-", strings.NewReader(`[1,2]`))
	if err != nil {
		t.Fatalf("readBody stdin: %v", err)
	}
	if l, ok := body.([]any); !ok || len(l) != 2 {
		t.Errorf("unexpected body %#v", body)
	}

	if _, err := readBody("{", nil); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{config.StoreMemory, config.StoreFile, config.StoreBadger} {
		cfg := config.Default()
		cfg.Store = name
		cfg.CacheDir = dir

		s, err := openStore(ctx, cfg)
		if err != nil {
			t.Fatalf("openStore(%s): %v", name, err)
		}
		if err := s.Set(ctx, "rested:users", []byte(`[]`)); err != nil {
			t.Errorf("%s: Set: %v", name, err)
		}
		if _, err := s.Get(ctx, "rested:users"); err != nil {
			t.Errorf("%s: Get: %v", name, err)
		}
		if c, ok := s.(store.Closer); ok {
			c.Close()
		}
	}

	cfg := config.Default()
	cfg.Store = "floppy"
	if _, err := openStore(ctx, cfg); err == nil {
		t.Error("expected unknown store error")
	}
}
