// Package storetest checks that a store.Store implementation honours the
// contract the fetch orchestrator relies on.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fruitsalade/rested/pkg/store"
)

// Run exercises s with keys under the "storetest:" namespace.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("MissingKey", func(t *testing.T) {
		_, err := s.Get(ctx, "storetest:missing")
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetGet", func(t *testing.T) {
		want := []byte(`[{"id":1,"name":"A"}]`)
		if err := s.Set(ctx, "storetest:users", want); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := s.Get(ctx, "storetest:users")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		s.Set(ctx, "storetest:users/1", []byte(`{"v":1}`))
		s.Set(ctx, "storetest:users/1", []byte(`{"v":2}`))
		got, err := s.Get(ctx, "storetest:users/1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != `{"v":2}` {
			t.Errorf("expected overwrite, got %q", got)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		s.Set(ctx, "storetest:gone", []byte(`{}`))
		if err := s.Remove(ctx, "storetest:gone"); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if _, err := s.Get(ctx, "storetest:gone"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after remove, got %v", err)
		}
		if err := s.Remove(ctx, "storetest:never-existed"); err != nil {
			t.Errorf("removing a missing key should succeed, got %v", err)
		}
	})

	t.Run("LongKey", func(t *testing.T) {
		key := store.Key("storetest", strings.Repeat("segment/", 40)+"1")
		if err := s.Set(ctx, key, []byte(`{"id":1}`)); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != `{"id":1}` {
			t.Errorf("got %q", got)
		}
		if err := s.Remove(ctx, key); err != nil {
			t.Errorf("Remove: %v", err)
		}
	})

	if l, ok := s.(store.Lister); ok {
		t.Run("Keys", func(t *testing.T) {
			s.Set(ctx, "storetest:list/a", []byte(`1`))
			s.Set(ctx, "storetest:list/b", []byte(`2`))
			keys, err := l.Keys(ctx, "storetest:list/")
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}
			if len(keys) != 2 || keys[0] != "storetest:list/a" || keys[1] != "storetest:list/b" {
				t.Errorf("unexpected keys %v", keys)
			}
		})
	}
}
