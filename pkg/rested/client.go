// Package rested presents remote REST resources as addressable, cacheable
// and observable handles.
//
// A Client owns the configuration, the event channel, the offline queue and
// the collaborators used to reach the network and the persistent cache.
// Handles are created with Client.Resource and navigated with One and All.
// Every fetch runs in its own goroutine and reports through a Call.
package rested

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/rested/internal/logging"
	"github.com/fruitsalade/rested/internal/metrics"
	"github.com/fruitsalade/rested/pkg/events"
	"github.com/fruitsalade/rested/pkg/queue"
	"github.com/fruitsalade/rested/pkg/resource"
	"github.com/fruitsalade/rested/pkg/store"
	"github.com/fruitsalade/rested/pkg/transport"
)

var (
	// ErrUnsupportedMethod is returned for methods other than get, post,
	// put and delete. Nothing is sent.
	ErrUnsupportedMethod = errors.New("invalid method type")
	// ErrOffline is returned for reads that cannot be served from the
	// cache while the client is offline.
	ErrOffline = errors.New("client is offline")
	// ErrCacheMiss is returned when no cache entry exists for a resource or
	// local storage is not in use.
	ErrCacheMiss = errors.New("no local data")
)

// Source preferences.
const (
	PreferDefault = "default"
	PreferLocal   = "local-first"
	PreferRemote  = "remote-first"
)

// Request describes one fetch.
type Request struct {
	Method       string
	IsCollection bool
	// Params replace the query parameters of the handle when non-nil.
	Params  map[string]any
	Body    any
	Headers map[string]string
	// IDField names the identity field, "id" when empty.
	IDField string
	// Extend merges a collection into the existing data instead of
	// replacing it.
	Extend bool

	IgnoreLocalCache bool // do not read the cache entry
	IgnoreLocalWrite bool // do not write the cache entry
	// IgnoreMerge delivers the raw body without touching resource data,
	// the cache or events.
	IgnoreMerge bool

	// Prefer is one of PreferDefault, PreferLocal or PreferRemote. The
	// aliases "local" and "remote" are accepted.
	Prefer string
	// Stale skips the remote fetch in the default mode when the cache hit.
	Stale bool

	// url is fixed when a mutation is issued so a queued replay goes to
	// the route it was made against.
	url string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by the client and its event channel.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// Client is the fetch orchestrator.
type Client struct {
	transport transport.Transport
	store     store.Store
	events    *events.Channel
	queue     *queue.Queue
	log       *zap.Logger

	// replayMu serializes drains so replays from successive reconnects
	// keep FIFO order.
	replayMu sync.Mutex

	mu  sync.RWMutex
	cfg Config
}

// NewClient creates a client. A nil store falls back to an in-memory one.
func NewClient(cfg Config, t transport.Transport, s store.Store, opts ...Option) *Client {
	cfg = cfg.normalized()
	if s == nil {
		s = store.NewMemory()
	}

	c := &Client{
		transport: t,
		store:     s,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.Named("rested")
	}
	c.events = events.NewChannel(c.log.Named("events"))
	c.queue = queue.New(cfg.Offline)

	return c
}

// Resource returns the root handle for path. Segments are split on "/".
func (c *Client) Resource(path string) *Handle {
	var routes []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			routes = append(routes, seg)
		}
	}
	return newHandle(c, routes, 0)
}

// Events returns the event channel shared by every handle of the client.
func (c *Client) Events() *events.Channel {
	return c.events
}

// Queue returns the offline queue.
func (c *Client) Queue() *queue.Queue {
	return c.queue
}

// Store returns the persistent cache store.
func (c *Client) Store() store.Store {
	return c.store
}

// Namespace returns the cache key namespace.
func (c *Client) Namespace() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Namespace
}

// LocalStorage reports whether cache entries are read and written.
func (c *Client) LocalStorage() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.LocalStorage
}

// SetLocalStorage turns the persistent cache on or off.
func (c *Client) SetLocalStorage(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.LocalStorage = enabled
}

// SetDefaultHeader sets a header sent with every request.
func (c *Client) SetDefaultHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.DefaultHeaders[key] = value
}

// SetDefaultHeaders replaces all default headers.
func (c *Client) SetDefaultHeaders(headers map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.DefaultHeaders = make(map[string]string, len(headers))
	for k, v := range headers {
		c.cfg.DefaultHeaders[k] = v
	}
}

// BaseURL returns the base URL at index i, which always ends in "/".
func (c *Client) BaseURL(i int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.cfg.BaseURLs) {
		return "", false
	}
	return c.cfg.BaseURLs[i], true
}

// IsOnline reports whether requests go to the network.
func (c *Client) IsOnline() bool {
	return c.queue.IsOnline()
}

// Offline switches the client to offline. Mutating requests are queued from
// now on and reads are served from the cache only.
func (c *Client) Offline() {
	if c.queue.IsOnline() {
		c.log.Info("client is offline")
	}
	c.queue.Offline()
}

// Online switches the client back online and replays the queued requests in
// the order they were issued, one at a time, on a background goroutine.
// Replays are not cancelled when ctx ends. It returns the number of
// requests replayed.
func (c *Client) Online(ctx context.Context) int {
	pending := c.queue.Online()
	if pending == nil {
		return 0
	}
	c.log.Info("client is back online", zap.Int("queued", len(pending)))

	replayCtx := context.WithoutCancel(ctx)
	go func() {
		c.replayMu.Lock()
		defer c.replayMu.Unlock()

		for i, p := range pending {
			if !c.queue.IsOnline() && c.queue.Requeue(pending[i:]) {
				c.log.Info("client went offline during replay, requeued remaining requests",
					zap.Int("requeued", len(pending)-i))
				return
			}
			c.log.Debug("replaying queued request",
				zap.String("id", p.ID),
				zap.String("method", p.Method),
				zap.String("url", p.URL))
			p.Replay(replayCtx)
		}
	}()
	return len(pending)
}

// Fetch runs req against h. It never blocks; the outcome arrives on the
// returned Call.
func (c *Client) Fetch(ctx context.Context, h *Handle, req Request) *Call {
	call := newCall()

	req.Method = strings.ToLower(req.Method)
	if req.Method == "" {
		req.Method = transport.MethodGet
	}
	if !validMethod(req.Method) {
		call.finish(fmt.Errorf("%w: %s", ErrUnsupportedMethod, req.Method))
		return call
	}
	req.Prefer = c.resolvePreference(req.Prefer)
	if req.IDField == "" {
		req.IDField = resource.DefaultIDField
	}
	if req.Params != nil {
		h.Params(req.Params)
	}
	req.Body = resource.Normalize(req.Body)
	req.Headers = copyHeaders(req.Headers)

	if isMutating(req.Method) {
		req.url = h.Route(true, true)
		p := queue.NewPending(req.Method, req.url, req.Body, req.Headers, func(ctx context.Context) {
			err := c.run(ctx, h, req, call, false)
			metrics.RecordReplay(err == nil)
		})
		if c.queue.Enqueue(p) {
			c.log.Info("saving request in offline queue",
				zap.String("id", p.ID),
				zap.String("method", req.Method),
				zap.String("url", p.URL))
			return call
		}
		go c.run(ctx, h, req, call, false)
		return call
	}

	go c.run(ctx, h, req, call, !c.queue.IsOnline())
	return call
}

func (c *Client) resolvePreference(p string) string {
	switch p {
	case "", PreferDefault:
		return PreferDefault
	case PreferLocal, "local":
		return PreferLocal
	case PreferRemote, "remote":
		return PreferRemote
	default:
		c.log.Warn("invalid fetch preference, using default", zap.String("prefer", p))
		return PreferDefault
	}
}

// run executes the source strategy and finishes call. It returns the
// terminal error, if any.
func (c *Client) run(ctx context.Context, h *Handle, req Request, call *Call, offline bool) error {
	h.setCollection(req.IsCollection)

	var err error
	switch {
	case offline:
		err = c.runOffline(ctx, h, req, call)
	case req.Prefer == PreferRemote:
		err = c.runRemoteFirst(ctx, h, req, call)
	case req.Prefer == PreferLocal:
		err = c.runLocalFirst(ctx, h, req, call)
	default:
		err = c.runDefault(ctx, h, req, call)
	}

	call.finish(err)
	return err
}

func (c *Client) runOffline(ctx context.Context, h *Handle, req Request, call *Call) error {
	res, err := c.fetchLocal(ctx, h, req)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return fmt.Errorf("%w: %s", ErrOffline, h.Route(false, false))
		}
		return err
	}
	call.resolve(res)
	return nil
}

func (c *Client) runRemoteFirst(ctx context.Context, h *Handle, req Request, call *Call) error {
	res, remoteErr := c.fetchRemote(ctx, h, req)
	if remoteErr == nil {
		call.resolve(res)
		return nil
	}
	res, err := c.fetchLocal(ctx, h, req)
	if err != nil {
		return remoteErr
	}
	call.resolve(res)
	return nil
}

func (c *Client) runLocalFirst(ctx context.Context, h *Handle, req Request, call *Call) error {
	res, err := c.fetchLocal(ctx, h, req)
	if err == nil {
		call.resolve(res)
		return nil
	}
	res, err = c.fetchRemote(ctx, h, req)
	if err != nil {
		return err
	}
	call.resolve(res)
	return nil
}

func (c *Client) runDefault(ctx context.Context, h *Handle, req Request, call *Call) error {
	local, localErr := c.fetchLocal(ctx, h, req)
	if localErr == nil {
		call.resolve(local)
		if req.Stale {
			return nil
		}
	}

	remote, err := c.fetchRemote(ctx, h, req)
	if err != nil {
		if localErr == nil {
			c.log.Warn("remote fetch failed, keeping local data",
				zap.String("route", h.Route(false, false)),
				zap.Error(err))
		}
		return err
	}
	call.resolve(remote)
	return nil
}

// fetchLocal resolves req from the cache entry of h. Only reads consult the
// cache.
func (c *Client) fetchLocal(ctx context.Context, h *Handle, req Request) (Result, error) {
	if req.Method != transport.MethodGet || req.IgnoreLocalCache || !c.LocalStorage() {
		return Result{}, ErrCacheMiss
	}

	key := h.cacheKey()
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		metrics.RecordCacheRead(false)
		return Result{}, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	if err != nil {
		metrics.RecordFetch(string(SourceLocal), false)
		return Result{}, fmt.Errorf("read cache %s: %w", key, err)
	}
	metrics.RecordCacheRead(true)

	body, err := transport.DecodeJSON(raw)
	if err != nil {
		metrics.RecordFetch(string(SourceLocal), false)
		return Result{}, fmt.Errorf("decode cache %s: %w", key, err)
	}
	c.log.Info("loaded local storage", zap.String("key", key))

	data, err := c.merge(ctx, h, req, body, false)
	if err != nil {
		metrics.RecordFetch(string(SourceLocal), false)
		return Result{}, err
	}
	if !req.IgnoreMerge {
		c.publish(h, events.TypeUpdate, data)
		c.publish(h, events.TypeLocalUpdate, data)
	}

	metrics.RecordFetch(string(SourceLocal), true)
	return Result{Source: SourceLocal, Data: data}, nil
}

func (c *Client) fetchRemote(ctx context.Context, h *Handle, req Request) (Result, error) {
	url := req.url
	if url == "" {
		url = h.Route(true, true)
	}
	resp, err := c.transport.Send(ctx, &transport.Request{
		Method:  req.Method,
		URL:     url,
		Headers: c.headers(req.Headers),
		Body:    req.Body,
	})
	if err != nil {
		metrics.RecordFetch(string(SourceRemote), false)
		return Result{}, err
	}

	if req.Method == transport.MethodDelete {
		if _, err := h.ClearCache(ctx); err != nil {
			c.log.Warn("failed to clear cache after delete", zap.Error(err))
		}
		metrics.RecordFetch(string(SourceRemote), true)
		return Result{Source: SourceRemote, Data: resp.Body}, nil
	}

	data, err := c.merge(ctx, h, req, resp.Body, true)
	if err != nil {
		metrics.RecordFetch(string(SourceRemote), false)
		return Result{}, err
	}
	if !req.IgnoreMerge {
		c.publish(h, events.TypeUpdate, data)
		c.publish(h, events.TypeRemoteUpdate, data)
	}

	metrics.RecordFetch(string(SourceRemote), true)
	return Result{Source: SourceRemote, Data: data}, nil
}

// merge folds body into the data of h and, for remote bodies, writes the
// cache entry. Collections persist the incoming array, singles the merged
// object.
func (c *Client) merge(ctx context.Context, h *Handle, req Request, body any, persist bool) (any, error) {
	if req.IgnoreMerge {
		return body, nil
	}

	var (
		data    any
		payload any
		err     error
	)
	if req.IsCollection {
		data, err = h.data.MergeCollection(body, req.IDField, req.Extend)
		payload = body
	} else {
		data, err = h.data.MergeSingle(body, req.IDField)
		payload = data
	}
	if err != nil {
		c.log.Warn("unexpected response shape",
			zap.String("route", h.Route(false, false)),
			zap.Error(err))
		return nil, err
	}

	if persist {
		c.persist(ctx, h, req, payload)
	}
	return data, nil
}

func (c *Client) persist(ctx context.Context, h *Handle, req Request, payload any) {
	key := h.cacheKey()
	if req.IgnoreLocalWrite || !c.LocalStorage() {
		c.log.Debug("new data updated", zap.String("key", key))
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		c.log.Warn("failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, raw); err != nil {
		c.log.Warn("failed to write cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	metrics.RecordCacheWrite()
	c.log.Info("local storage updated", zap.String("key", key))
}

func (c *Client) publish(h *Handle, eventType string, data any) {
	c.events.Publish(events.Key(h.Route(false, false), eventType), data)
}

// headers merges the default headers with the request headers. Request
// headers win.
func (c *Client) headers(extra map[string]string) map[string]string {
	c.mu.RLock()
	out := make(map[string]string, len(c.cfg.DefaultHeaders)+len(extra))
	for k, v := range c.cfg.DefaultHeaders {
		out[k] = v
	}
	c.mu.RUnlock()

	for k, v := range extra {
		out[k] = v
	}
	return out
}

func validMethod(m string) bool {
	switch m {
	case transport.MethodGet, transport.MethodPost, transport.MethodPut, transport.MethodDelete:
		return true
	}
	return false
}

func isMutating(m string) bool {
	return m == transport.MethodPost || m == transport.MethodPut || m == transport.MethodDelete
}

func copyHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
