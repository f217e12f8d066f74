// Package locking implements the kernel's resource lock manager. Every logical
// transaction owns one Client; the client can be stopped from any goroutine to
// unblock an owner waiting on a lock held by someone else.
package locking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrClientStopped  = errors.New("lock client has been stopped")
	ErrClientClosed   = errors.New("lock client is closed")
	ErrAcquireTimeout = errors.New("timed out waiting for lock")
)

// ResourceType identifies the kind of entity a lock protects.
type ResourceType uint8

const (
	ResourceNode ResourceType = iota + 1
	ResourceRelationship
	ResourceSchema
	ResourceIndexEntry
)

func (t ResourceType) String() string {
	switch t {
	case ResourceNode:
		return "NODE"
	case ResourceRelationship:
		return "RELATIONSHIP"
	case ResourceSchema:
		return "SCHEMA"
	case ResourceIndexEntry:
		return "INDEX_ENTRY"
	default:
		return "UNKNOWN"
	}
}

// ResourceID names a single lockable resource.
type ResourceID struct {
	Type ResourceType
	ID   uint64
}

func NodeResource(id uint64) ResourceID { return ResourceID{Type: ResourceNode, ID: id} }
func RelationshipResource(id uint64) ResourceID {
	return ResourceID{Type: ResourceRelationship, ID: id}
}
func SchemaResource(id uint64) ResourceID { return ResourceID{Type: ResourceSchema, ID: id} }

func (r ResourceID) String() string {
	return fmt.Sprintf("%s(%d)", r.Type, r.ID)
}

// Mode is the strength of a held lock.
type Mode uint8

const (
	Shared Mode = iota + 1
	Exclusive
)

func (m Mode) String() string {
	switch m {
	case Shared:
		return "SHARED"
	case Exclusive:
		return "EXCLUSIVE"
	default:
		return "NONE"
	}
}

type lockState struct {
	exclusive uint64 // client id, 0 when nobody holds it exclusively
	shared    map[uint64]struct{}
}

func (s *lockState) empty() bool {
	return s.exclusive == 0 && len(s.shared) == 0
}

// Manager grants shared and exclusive locks to clients.
type Manager struct {
	mu           sync.Mutex
	locks        map[ResourceID]*lockState
	changed      chan struct{} // closed and replaced whenever any lock is released
	nextClientID uint64
	// acquireTimeout bounds a single lock wait; zero waits indefinitely.
	acquireTimeout time.Duration
	logger         *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithAcquireTimeout makes lock waits longer than d fail with ErrAcquireTimeout.
func WithAcquireTimeout(d time.Duration) Option {
	return func(m *Manager) { m.acquireTimeout = d }
}

// NewManager creates an empty lock manager.
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		locks:   make(map[ResourceID]*lockState),
		changed: make(chan struct{}),
		logger:  logger.Named("locks"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewClient returns a client owning no locks.
func (m *Manager) NewClient() *Client {
	m.mu.Lock()
	m.nextClientID++
	id := m.nextClientID
	m.mu.Unlock()

	return &Client{
		m:      m,
		id:     id,
		held:   make(map[ResourceID]Mode),
		stopCh: make(chan struct{}),
	}
}

// LockedResources reports how many resources currently have at least one holder.
func (m *Manager) LockedResources() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// tryGrant must be called with m.mu held.
func (m *Manager) tryGrant(c *Client, res ResourceID, mode Mode) bool {
	held := c.held[res]
	if held == Exclusive || held == mode {
		return true
	}

	st, ok := m.locks[res]
	if !ok {
		st = &lockState{shared: make(map[uint64]struct{})}
		m.locks[res] = st
	}

	switch mode {
	case Shared:
		if st.exclusive != 0 && st.exclusive != c.id {
			return false
		}
		st.shared[c.id] = struct{}{}
		c.held[res] = Shared
		return true
	case Exclusive:
		if st.exclusive != 0 && st.exclusive != c.id {
			return false
		}
		for holder := range st.shared {
			if holder != c.id {
				return false
			}
		}
		delete(st.shared, c.id)
		st.exclusive = c.id
		c.held[res] = Exclusive
		return true
	}
	return false
}

// releaseAll must be called with m.mu held.
func (m *Manager) releaseAll(c *Client) {
	if len(c.held) == 0 {
		return
	}
	for res := range c.held {
		st, ok := m.locks[res]
		if !ok {
			continue
		}
		if st.exclusive == c.id {
			st.exclusive = 0
		}
		delete(st.shared, c.id)
		if st.empty() {
			delete(m.locks, res)
		}
	}
	c.held = make(map[ResourceID]Mode)

	close(m.changed)
	m.changed = make(chan struct{})
}

// Client owns the locks of one logical transaction.
type Client struct {
	m  *Manager
	id uint64

	held   map[ResourceID]Mode // guarded by m.mu
	closed bool                // guarded by m.mu

	stopCh   chan struct{}
	stopOnce sync.Once
}

func (c *Client) AcquireShared(ctx context.Context, res ResourceID) error {
	return c.acquire(ctx, res, Shared)
}

func (c *Client) AcquireExclusive(ctx context.Context, res ResourceID) error {
	return c.acquire(ctx, res, Exclusive)
}

func (c *Client) acquire(ctx context.Context, res ResourceID, mode Mode) error {
	var timeout <-chan time.Time
	if c.m.acquireTimeout > 0 {
		timer := time.NewTimer(c.m.acquireTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		if c.Stopped() {
			return ErrClientStopped
		}

		c.m.mu.Lock()
		if c.closed {
			c.m.mu.Unlock()
			return ErrClientClosed
		}
		if c.m.tryGrant(c, res, mode) {
			c.m.mu.Unlock()
			return nil
		}
		wait := c.m.changed
		c.m.mu.Unlock()

		select {
		case <-wait:
		case <-c.stopCh:
			return ErrClientStopped
		case <-ctx.Done():
			return fmt.Errorf("acquire %s lock on %s: %w", mode, res, ctx.Err())
		case <-timeout:
			c.m.logger.Debug("lock wait timed out",
				zap.Uint64("client", c.id), zap.Stringer("resource", res), zap.Stringer("mode", mode))
			return fmt.Errorf("acquire %s lock on %s: %w", mode, res, ErrAcquireTimeout)
		}
	}
}

// Stop makes every pending and future acquisition of this client fail. It is
// safe to call from any goroutine and more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.m.logger.Debug("lock client stopped", zap.Uint64("client", c.id))
	})
}

// Stopped reports whether Stop has been called.
func (c *Client) Stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// Close releases every lock held by the client. Further acquisitions fail.
func (c *Client) Close() {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.m.releaseAll(c)
}

// Holds returns the mode the client holds res in, or zero.
func (c *Client) Holds(res ResourceID) Mode {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.held[res]
}

// LockCount returns the number of resources the client holds.
func (c *Client) LockCount() int {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return len(c.held)
}

// NoOpClient grants every lock immediately and holds nothing.
type NoOpClient struct{}

func (NoOpClient) AcquireShared(context.Context, ResourceID) error    { return nil }
func (NoOpClient) AcquireExclusive(context.Context, ResourceID) error { return nil }
func (NoOpClient) Stop()                                              {}
func (NoOpClient) Close()                                             {}
