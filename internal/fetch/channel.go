package fetch

import (
	"sync"
)

// Channel is one published stream of State. Only the request that most
// recently began may move it out of loading; anything else is discarded.
//
// Subscribers are called in transition order. A callback may read State or
// Stale but must not Subscribe to the same channel.
type Channel[T any] struct {
	name string

	pubMu sync.Mutex // serializes deliveries

	mu       sync.Mutex
	state    State[T]
	stale    T
	hasStale bool
	subs     map[int]func(State[T])
	nextSub  int
}

// NewChannel returns an idle channel.
func NewChannel[T any](name string) *Channel[T] {
	return &Channel[T]{name: name, subs: map[int]func(State[T]){}}
}

func (c *Channel[T]) Name() string { return c.name }

// State returns the latest published state.
func (c *Channel[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stale returns the data of the last success, kept across later loading and
// error states so callers may show "stale" results.
func (c *Channel[T]) Stale() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale, c.hasStale
}

// Subscribe delivers the current state immediately, then every transition.
func (c *Channel[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	st := c.state
	c.mu.Unlock()

	fn(st)
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// current is the request id that owns the channel.
func (c *Channel[T]) current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.RequestID
}

// begin hands the channel to request id.
func (c *Channel[T]) begin(id uint64) {
	c.publish(func(s *State[T]) bool {
		*s = State[T]{Status: StatusLoading, RequestID: id}
		return true
	})
}

// succeed publishes data if id still owns the channel.
func (c *Channel[T]) succeed(id uint64, data T) bool {
	return c.publish(func(s *State[T]) bool {
		if s.RequestID != id || s.Status != StatusLoading {
			return false
		}
		*s = State[T]{Status: StatusSuccess, RequestID: id, Data: data}
		c.stale, c.hasStale = data, true
		return true
	})
}

// fail publishes an error if id still owns the channel. Stale data is kept.
func (c *Channel[T]) fail(id uint64, kind ErrorKind, err error) bool {
	return c.publish(func(s *State[T]) bool {
		if s.RequestID != id || s.Status != StatusLoading {
			return false
		}
		*s = State[T]{Status: StatusError, RequestID: id, Kind: kind, Err: err}
		return true
	})
}

func (c *Channel[T]) publish(apply func(*State[T]) bool) bool {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if !apply(&c.state) {
		c.mu.Unlock()
		return false
	}
	st := c.state
	subs := make([]func(State[T]), 0, len(c.subs))
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
	return true
}
