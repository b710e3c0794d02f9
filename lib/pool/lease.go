package pool

import (
	"time"

	"github.com/go-i2p/dbpool/lib/driver"
	"github.com/google/uuid"
)

type slotState int

const (
	slotIdle slotState = iota
	slotInUse
	slotValidating
	slotClosed
)

// slot is one physical connection owned by the pool.
type slot struct {
	id        uuid.UUID
	conn      driver.Conn
	createdAt time.Time
	lastUsed  time.Time
	state     slotState
}

func newSlot(conn driver.Conn) *slot {
	now := time.Now()
	return &slot{
		id:        uuid.New(),
		conn:      conn,
		createdAt: now,
		lastUsed:  now,
		state:     slotIdle,
	}
}

// expired reports whether the slot outlived MaxLifetime or sat idle
// longer than IdleTimeout.
func (s *slot) expired(cfg *Config, now time.Time) bool {
	return s.lifetimeExceeded(cfg, now) ||
		(cfg.IdleTimeout > 0 && now.Sub(s.lastUsed) > cfg.IdleTimeout)
}

func (s *slot) lifetimeExceeded(cfg *Config, now time.Time) bool {
	return cfg.MaxLifetime > 0 && now.Sub(s.createdAt) >= cfg.MaxLifetime
}

// Lease is a borrowed connection. It must be given back exactly once with
// Release or Discard.
type Lease struct {
	pool       *Pool
	slot       *slot
	acquiredAt time.Time

	// guarded by pool.mu
	released bool
}

// Conn returns the borrowed connection. It must not be used after the
// lease is released.
func (l *Lease) Conn() driver.Conn {
	return l.slot.conn
}

// ID identifies the underlying physical connection.
func (l *Lease) ID() string {
	return l.slot.id.String()
}

// AcquiredAt is when the lease was handed out.
func (l *Lease) AcquiredAt() time.Time {
	return l.acquiredAt
}

// Release returns the connection to the pool.
func (l *Lease) Release() error {
	return l.pool.release(l, false)
}

// Discard gives the lease back and closes the connection instead of
// re-pooling it.
func (l *Lease) Discard() error {
	return l.pool.release(l, true)
}
