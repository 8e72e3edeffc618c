package rested

import (
	"context"
	"sync"
)

// Source tells where a result came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Result is one resolution of a Call.
type Result struct {
	Source Source
	Data   any
}

// Call is the outcome of one fetch. A call resolves at most twice: in the
// default source mode a cached result arrives first and is superseded by
// the remote one. The last result is authoritative.
type Call struct {
	updates chan Result
	first   chan struct{}
	done    chan struct{}

	mu       sync.Mutex
	results  []Result
	err      error
	finished bool
}

func newCall() *Call {
	return &Call{
		updates: make(chan Result, 2),
		first:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (c *Call) resolve(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	c.results = append(c.results, r)
	if len(c.results) == 1 {
		close(c.first)
	}
	c.updates <- r
}

func (c *Call) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	c.finished = true
	c.err = err
	if len(c.results) == 0 {
		close(c.first)
	}
	close(c.updates)
	close(c.done)
}

// Updates delivers every result in order and is closed when the call
// finishes.
func (c *Call) Updates() <-chan Result {
	return c.updates
}

// Done is closed when the call finishes.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// First waits for the first result. In the default source mode it may be
// provisional.
func (c *Call) First(ctx context.Context) (Result, error) {
	select {
	case <-c.first:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) > 0 {
		return c.results[0], nil
	}
	return Result{}, c.err
}

// Wait waits for the call to finish and returns the final result. The
// error is only returned when no result was delivered at all; a remote
// failure after a cached result is available from Err.
func (c *Call) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.results); n > 0 {
		return c.results[n-1], nil
	}
	return Result{}, c.err
}

// Err returns the terminal error of a finished call, or nil.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Results returns every result delivered so far.
func (c *Call) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

// Pending reports whether the call has not finished yet.
func (c *Call) Pending() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}
