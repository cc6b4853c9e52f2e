// Package singleflight collapses concurrent calls sharing a key into one
// execution and keeps the settled result for a retention period.
package singleflight

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Group manages a set of in-flight and recently settled calls.
type Group struct {
	mu     sync.Mutex
	m      map[string]*call
	retain time.Duration
	now    func() time.Time
}

// call represents an active or settled function call.
type call struct {
	done    chan struct{}
	val     any
	err     error
	started time.Time
}

// New creates a Group that forgets a settled call retain after it finished.
// A nil now uses time.Now.
func New(retain time.Duration, now func() time.Time) *Group {
	if now == nil {
		now = time.Now
	}
	return &Group{
		m:      make(map[string]*call),
		retain: retain,
		now:    now,
	}
}

// Do executes fn unless a call for key is in flight or settled within the
// retention period; duplicates wait for that call and receive its results.
// shared reports whether the results came from another caller.
//
// fn runs detached from the cancellation of ctx, so a caller whose ctx ends
// first, owner or waiter, gets ctx.Err() while the call keeps running for
// everyone else. fn keeps the values of the owner's ctx.
func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (val any, shared bool, err error) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		return c.wait(ctx, true)
	}

	c := &call{
		done:    make(chan struct{}),
		started: g.now(),
	}
	g.m[key] = c
	g.mu.Unlock()

	go g.run(context.WithoutCancel(ctx), key, c, fn)
	return c.wait(ctx, false)
}

func (c *call) wait(ctx context.Context, shared bool) (any, bool, error) {
	select {
	case <-c.done:
		return c.val, shared, c.err
	case <-ctx.Done():
		return nil, shared, ctx.Err()
	}
}

func (g *Group) run(ctx context.Context, key string, c *call, fn func(context.Context) (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.val = nil
			c.err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
		g.settle(key, c)
	}()
	c.val, c.err = fn(ctx)
}

func (g *Group) settle(key string, c *call) {
	close(c.done)
	time.AfterFunc(g.retain, func() {
		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()
	})
}

// Forget removes key so the next call executes again. Callers already waiting
// still receive their result.
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

// Len returns the number of tracked keys.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

// Reset forgets every key.
func (g *Group) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.m = make(map[string]*call)
}

// Expire removes calls started more than the retention period ago, settled or
// not, and returns how many were removed.
func (g *Group) Expire() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for key, c := range g.m {
		if now.Sub(c.started) > g.retain {
			delete(g.m, key)
			removed++
		}
	}
	return removed
}
