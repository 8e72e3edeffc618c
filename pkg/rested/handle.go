package rested

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/rested/internal/metrics"
	"github.com/fruitsalade/rested/pkg/events"
	"github.com/fruitsalade/rested/pkg/resource"
	"github.com/fruitsalade/rested/pkg/store"
	"github.com/fruitsalade/rested/pkg/transport"
)

// Handle addresses one resource path and holds the data last merged into it.
// Navigation returns new handles and never changes the receiver's path.
type Handle struct {
	client  *Client
	routes  []string
	baseURL int
	data    *resource.Store

	mu         sync.RWMutex
	params     map[string]any
	collection bool
}

func newHandle(c *Client, routes []string, baseURL int) *Handle {
	return &Handle{
		client:  c,
		routes:  routes,
		baseURL: baseURL,
		data:    resource.NewStore(),
		params:  map[string]any{},
	}
}

func (h *Handle) child(collection bool, segments ...string) *Handle {
	routes := make([]string, len(h.routes), len(h.routes)+len(segments))
	copy(routes, h.routes)
	for _, s := range segments {
		if s != "" {
			routes = append(routes, s)
		}
	}
	n := newHandle(h.client, routes, h.baseURL)
	n.collection = collection
	return n
}

// One returns a child handle for a single object at segment, followed by
// ids as further segments.
//
//	c.Resource("").One("users", 12)   // users/12
//	c.Resource("").One("users/12")    // users/12
func (h *Handle) One(segment string, ids ...any) *Handle {
	segments := []string{segment}
	for _, id := range ids {
		segments = append(segments, fmt.Sprint(resource.Normalize(id)))
	}
	return h.child(false, segments...)
}

// All returns a child handle for the collection at segment.
func (h *Handle) All(segment string) *Handle {
	return h.child(true, segment)
}

// WithBaseURL returns a copy of the handle that sends requests to the base
// URL at index i. An unknown index keeps the current one.
func (h *Handle) WithBaseURL(i int) *Handle {
	n := h.child(h.IsCollection())
	if _, ok := h.client.BaseURL(i); !ok {
		h.client.log.Warn("unknown base url index", zap.Int("index", i))
		return n
	}
	n.baseURL = i
	return n
}

// Params replaces the query parameters of the handle. A nil map is ignored.
func (h *Handle) Params(params map[string]any) *Handle {
	if params == nil {
		h.client.log.Warn("params ignored, expected a map", zap.String("route", h.Route(false, false)))
		return h
	}
	p := make(map[string]any, len(params))
	for k, v := range params {
		p[k] = v
	}

	h.mu.Lock()
	h.params = p
	h.mu.Unlock()
	return h
}

// Route returns the joined path, optionally with the query string and the
// base URL.
func (h *Handle) Route(includeParams, includeBaseURL bool) string {
	result := strings.Join(h.routes, "/")

	if includeBaseURL {
		base, ok := h.client.BaseURL(h.baseURL)
		if !ok {
			base, _ = h.client.BaseURL(0)
		}
		result = base + result
	}

	if includeParams {
		h.mu.RLock()
		params := h.params
		h.mu.RUnlock()

		query, missing := resource.QueryString(params)
		for _, m := range missing {
			h.client.log.Warn("missing argument", zap.String("param", m))
		}
		if query != "" {
			result += "?" + query
		}
	}

	return result
}

// IsCollection reports whether the handle holds a collection.
func (h *Handle) IsCollection() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.collection
}

func (h *Handle) setCollection(collection bool) {
	h.mu.Lock()
	h.collection = collection
	h.mu.Unlock()
}

// Data returns a copy of the current data: resource.Collection for
// collections, resource.Single otherwise.
func (h *Handle) Data() resource.Value {
	return h.data.Snapshot(h.IsCollection())
}

// IDs returns a copy of the identity index.
func (h *Handle) IDs() map[string]int {
	return h.data.IDs()
}

// Clear drops the data of the handle.
func (h *Handle) Clear() {
	h.data.Clear()
}

// On subscribes fn to eventType on this route.
func (h *Handle) On(eventType string, fn events.Listener) bool {
	return h.client.events.Subscribe(events.Key(h.Route(false, false), eventType), fn)
}

// Fetch runs req against the handle.
func (h *Handle) Fetch(ctx context.Context, req Request) *Call {
	return h.client.Fetch(ctx, h, req)
}

// Get fetches a single object.
func (h *Handle) Get(ctx context.Context, req Request) *Call {
	req.Method = transport.MethodGet
	req.IsCollection = false
	return h.Fetch(ctx, req)
}

// GetList fetches a collection.
func (h *Handle) GetList(ctx context.Context, req Request) *Call {
	req.Method = transport.MethodGet
	req.IsCollection = true
	return h.Fetch(ctx, req)
}

// Save sends body with put when it carries an identity and with post
// otherwise. The response is delivered as is.
func (h *Handle) Save(ctx context.Context, body any, req Request) *Call {
	if body == nil {
		body = map[string]any{}
	}
	idField := req.IDField
	if idField == "" {
		idField = resource.DefaultIDField
	}

	req.Method = transport.MethodPost
	if hasIdentity(body, idField) {
		req.Method = transport.MethodPut
	}
	req.IsCollection = false
	req.Body = body
	req.IgnoreMerge = true
	req.IgnoreLocalCache = true
	req.IgnoreLocalWrite = true
	return h.Fetch(ctx, req)
}

// Delete removes the resource remotely and drops its cache entry.
func (h *Handle) Delete(ctx context.Context, req Request) *Call {
	req.Method = transport.MethodDelete
	req.IsCollection = false
	req.IgnoreMerge = true
	req.IgnoreLocalCache = true
	req.IgnoreLocalWrite = true
	return h.Fetch(ctx, req)
}

func hasIdentity(body any, idField string) bool {
	id, ok := resource.Identity(resource.Normalize(body), idField)
	return ok && id != "" && id != "0" && id != "false"
}

func (h *Handle) cacheKey() string {
	return store.Key(h.client.Namespace(), h.Route(false, false))
}

// GetCache returns the decoded cache entry of the handle.
func (h *Handle) GetCache(ctx context.Context) (any, error) {
	if !h.client.LocalStorage() {
		return nil, ErrCacheMiss
	}
	key := h.cacheKey()
	raw, err := h.client.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", key, err)
	}
	return transport.DecodeJSON(raw)
}

// ClearCache removes the cache entry of the handle. It reports false when
// local storage is off.
func (h *Handle) ClearCache(ctx context.Context) (bool, error) {
	if !h.client.LocalStorage() {
		return false, nil
	}
	key := h.cacheKey()
	h.client.log.Info("clearing local storage", zap.String("key", key))
	if err := h.client.store.Remove(ctx, key); err != nil {
		return false, fmt.Errorf("remove cache %s: %w", key, err)
	}
	metrics.RecordCacheRemoval()
	return true, nil
}

// PrependCache inserts obj at the front of a cached collection. It reports
// false when there is no cached collection.
func (h *Handle) PrependCache(ctx context.Context, obj any) (bool, error) {
	return h.editCache(ctx, func(items []any) []any {
		return append([]any{resource.Normalize(obj)}, items...)
	})
}

// AppendCache inserts obj at the end of a cached collection. It reports
// false when there is no cached collection.
func (h *Handle) AppendCache(ctx context.Context, obj any) (bool, error) {
	return h.editCache(ctx, func(items []any) []any {
		return append(items, resource.Normalize(obj))
	})
}

func (h *Handle) editCache(ctx context.Context, edit func([]any) []any) (bool, error) {
	cached, err := h.GetCache(ctx)
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	items, ok := cached.([]any)
	if !ok {
		return false, nil
	}

	raw, err := json.Marshal(edit(items))
	if err != nil {
		return false, fmt.Errorf("encode cache entry: %w", err)
	}
	key := h.cacheKey()
	if err := h.client.store.Set(ctx, key, raw); err != nil {
		return false, fmt.Errorf("write cache %s: %w", key, err)
	}
	metrics.RecordCacheWrite()
	return true, nil
}
