// Package events provides a keyed publish/subscribe channel that replays the
// last published value to late subscribers.
package events

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/rested/internal/logging"
	"github.com/fruitsalade/rested/internal/metrics"
)

// Event types published by the fetch orchestrator.
const (
	TypeUpdate       = "update"
	TypeLocalUpdate  = "localUpdate"
	TypeRemoteUpdate = "remoteUpdate"
)

// Listener receives published values. Returning false removes the listener
// once the current invocation finishes.
type Listener func(value any) bool

type subscription struct {
	id uint64
	fn Listener
}

type entry struct {
	subs []subscription
	last any
	set  bool
	seq  uint64
}

// Channel manages listeners per key and remembers the last value
// published on each key.
type Channel struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextID  uint64
	log     *zap.Logger
}

// NewChannel creates an empty channel. A nil logger uses the global one.
func NewChannel(log *zap.Logger) *Channel {
	if log == nil {
		log = logging.Named("events")
	}
	return &Channel{
		entries: make(map[string]*entry),
		log:     log,
	}
}

// Key builds the channel key for an event type on a route.
func Key(route, eventType string) string {
	return route + "_" + eventType
}

// entryFor must be called with c.mu held.
func (c *Channel) entryFor(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// Publish records value as the last value for key and invokes every live
// listener in subscription order. It reports whether any listener existed.
func (c *Channel) Publish(key string, value any) bool {
	return c.publish(key, value, false)
}

// PublishOnce publishes only if key has no last value yet. Once a value is
// recorded further calls are no-ops returning false until Reset.
func (c *Channel) PublishOnce(key string, value any) bool {
	return c.publish(key, value, true)
}

func (c *Channel) publish(key string, value any, once bool) bool {
	c.mu.Lock()
	e := c.entryFor(key)
	if once && e.set {
		c.mu.Unlock()
		return false
	}
	e.last = value
	e.set = true
	e.seq++
	subs := make([]subscription, len(e.subs))
	copy(subs, e.subs)
	c.mu.Unlock()

	metrics.RecordEvent(eventType(key))

	var drop []uint64
	for _, s := range subs {
		if !s.fn(value) {
			drop = append(drop, s.id)
		}
	}
	if len(drop) > 0 {
		c.remove(key, drop...)
	}

	return len(subs) > 0
}

// Subscribe registers fn on key. When key already holds a value, fn is
// invoked synchronously with it first and is only registered if it returns
// true. A nil fn is rejected.
func (c *Channel) Subscribe(key string, fn Listener) bool {
	_, ok := c.subscribe(key, fn)
	return ok
}

// Listen is Subscribe that also returns a function removing the listener.
func (c *Channel) Listen(key string, fn Listener) (cancel func(), ok bool) {
	id, ok := c.subscribe(key, fn)
	if !ok {
		return func() {}, false
	}
	return func() { c.remove(key, id) }, true
}

func (c *Channel) subscribe(key string, fn Listener) (uint64, bool) {
	if fn == nil {
		c.log.Warn("listener needs to be a function", zap.String("key", key))
		return 0, false
	}

	c.mu.Lock()
	e := c.entryFor(key)
	for e.set {
		last, seq := e.last, e.seq
		c.mu.Unlock()

		if !fn(last) {
			return 0, false
		}

		c.mu.Lock()
		// A publish raced with the replay; catch up before registering.
		if e.seq == seq {
			break
		}
	}
	c.nextID++
	id := c.nextID
	e.subs = append(e.subs, subscription{id: id, fn: fn})
	c.mu.Unlock()
	return id, true
}

func (c *Channel) remove(key string, ids ...uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	kept := e.subs[:0]
	for _, s := range e.subs {
		if !containsID(ids, s.id) {
			kept = append(kept, s)
		}
	}
	e.subs = kept
}

// Reset clears the last value for key. Listeners stay registered.
func (c *Channel) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.last = nil
		e.set = false
	}
}

// Last returns the last value published on key.
func (c *Channel) Last(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.set {
		return nil, false
	}
	return e.last, true
}

// Count returns the number of live listeners on key.
func (c *Channel) Count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return len(e.subs)
	}
	return 0
}

func containsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func eventType(key string) string {
	if i := strings.LastIndex(key, "_"); i >= 0 {
		return key[i+1:]
	}
	return key
}
