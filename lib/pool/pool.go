package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-i2p/dbpool/lib/driver"
	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/resilience"
	"github.com/go-i2p/dbpool/lib/validation"
	"github.com/go-i2p/logger"
	"github.com/oklog/ulid/v2"
)

var log = logger.GetGoI2PLogger()

// Option customizes a pool at construction.
type Option func(*options)

type options struct {
	connector driver.Connector
	breaker   resilience.CircuitBreakerConfig
	backoff   resilience.Backoff
}

// WithFactory makes the pool open connections through c instead of the
// driver registry. Config.Driver and Config.URL are then ignored.
func WithFactory(c driver.Connector) Option {
	return func(o *options) {
		o.connector = c
	}
}

// WithCircuitBreaker configures the breaker guarding the driver factory.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(o *options) {
		o.breaker = cfg
	}
}

// WithBackoff configures how the filler retries failed connects.
func WithBackoff(b resilience.Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// Pool is a bounded pool of database connections. All methods are safe
// for concurrent use.
type Pool struct {
	cfg       Config
	connector driver.Connector
	validator validation.Validator
	backoff   resilience.Backoff
	metrics   *poolMetrics

	mu      sync.Mutex
	slots   map[*slot]struct{}
	idle    []*slot // LIFO, most recently returned last
	waiters list.List
	// numOpen counts slots plus reserved capacity for connects in flight.
	numOpen int
	// pending counts background connects in flight.
	pending int
	state   State
	// returned is closed and replaced whenever numOpen drops, so Shutdown
	// can wait for outstanding leases.
	returned chan struct{}

	created            uint64
	closed             uint64
	timedOut           uint64
	borrowed           uint64
	acquireCount       uint64
	acquireFailed      uint64
	validationFailures uint64

	fillCh     chan struct{}
	stop       chan struct{}
	bgCtx      context.Context
	bgCancel   context.CancelFunc
	wg         sync.WaitGroup
	closing    sync.WaitGroup
	shutdownCh chan struct{}
}

// New validates cfg and starts a pool. When cfg.InitializationFailFast is
// set, MinimumIdle connections are opened before New returns and the first
// connect error fails construction.
func New(cfg Config, opts ...Option) (*Pool, error) {
	cfg = cfg.clone()
	if cfg.Name == "" {
		cfg.Name = "pool-" + ulid.Make().String()
	}
	if cfg.ValidationTimeout == 0 {
		cfg.ValidationTimeout = validation.DefaultValidationTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		breaker: resilience.DefaultCircuitBreakerConfig(),
		backoff: resilience.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.connector == nil {
		if err := cfg.validateConnection(); err != nil {
			return nil, err
		}
		f, err := driver.NewFactory(cfg.Name, cfg.Driver, driver.Params{
			URL:        cfg.URL,
			Username:   cfg.Username,
			Password:   cfg.Password,
			Properties: cfg.Properties,
			AutoCommit: cfg.AutoCommit,
		}, o.breaker)
		if err != nil {
			if errors.Is(err, apperrors.ErrDriverNotFound) {
				return nil, apperrors.ConfigError(err)
			}
			return nil, err
		}
		o.connector = f
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:        cfg,
		connector:  o.connector,
		validator:  validation.Validator{Query: cfg.ValidationQuery, Timeout: cfg.ValidationTimeout},
		backoff:    o.backoff,
		slots:      make(map[*slot]struct{}, cfg.MaximumPoolSize),
		idle:       make([]*slot, 0, cfg.MaximumPoolSize),
		returned:   make(chan struct{}),
		fillCh:     make(chan struct{}, 1),
		stop:       make(chan struct{}),
		bgCtx:      bgCtx,
		bgCancel:   bgCancel,
		shutdownCh: make(chan struct{}),
	}
	p.metrics = newPoolMetrics(p)

	p.wg.Add(2)
	go p.reapLoop(cfg.housekeepingPeriod())
	go p.fillLoop()

	if cfg.InitializationFailFast && cfg.MinimumIdle > 0 {
		ctx := context.Background()
		if cfg.ConnectionTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.ConnectionTimeout)
			defer cancel()
		}
		if err := p.Prefill(ctx); err != nil {
			_ = p.Shutdown(context.Background())
			return nil, fmt.Errorf("pool %s: initial connections: %w", cfg.Name, err)
		}
	} else {
		p.mu.Lock()
		p.requestFillLocked()
		p.mu.Unlock()
	}

	log.WithField("pool", cfg.Name).
		WithField("driver", cfg.Driver).
		WithField("maxSize", cfg.MaximumPoolSize).
		WithField("minIdle", cfg.MinimumIdle).
		Info("pool started")
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.cfg.Name
}

// Config returns a copy of the pool configuration.
func (p *Pool) Config() Config {
	return p.cfg.clone()
}

// Acquire borrows a connection. It waits at most until ctx is done or, when
// ctx has no deadline, ConnectionTimeout. An exhausted wait fails with an
// error matching apperrors.ErrAcquireTimeout; a cancelled ctx returns the
// context error. Connect failures are returned as is, except a connect
// still running at the deadline, which also counts as a timeout.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	start := time.Now()

	if _, ok := ctx.Deadline(); !ok && p.cfg.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
		defer cancel()
	}

	p.mu.Lock()
	p.acquireCount++
	p.mu.Unlock()

	lease, err := p.acquire(ctx)
	if err != nil {
		p.mu.Lock()
		p.acquireFailed++
		p.mu.Unlock()
		log.WithField("pool", p.cfg.Name).WithError(err).Debug("acquire failed")
		return nil, err
	}

	p.metrics.observeAcquire(time.Since(start))
	return lease, nil
}

func (p *Pool) acquire(ctx context.Context) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, p.waitError(ctx)
	}

	for {
		step, err := p.tryAcquire()
		switch {
		case err != nil:
			return nil, err
		case step.lease != nil:
			return step.lease, nil
		case step.validate != nil:
			lease, err := p.checkout(ctx, step.validate)
			if err != nil || lease != nil {
				return lease, err
			}
			// validation failed, slot discarded; try again
		case step.permit:
			return p.createLease(ctx)
		default:
			g, err := p.wait(ctx, step.waiter)
			if err != nil {
				return nil, err
			}
			if g.slot != nil {
				return p.handoffLease(g.slot)
			}
			return p.createLease(ctx)
		}
	}
}

// acquireStep is the outcome of one locked pass over the pool.
type acquireStep struct {
	lease    *Lease  // idle slot borrowed without validation
	validate *slot   // idle slot to validate before borrowing
	permit   bool    // capacity reserved for a new connection
	waiter   *waiter // parked in the wait queue
}

// tryAcquire takes the first usable idle slot, reserves capacity for a new
// connection, or parks a waiter, in that order.
func (p *Pool) tryAcquire() (step acquireStep, err error) {
	var expired []*slot
	defer func() {
		p.closeConns(expired)
	}()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.stateErrLocked(); err != nil {
		return step, err
	}

	now := time.Now()
	for len(p.idle) > 0 {
		s := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if s.expired(&p.cfg, now) {
			p.closeSlotLocked(s)
			expired = append(expired, s)
			continue
		}
		if p.cfg.ValidateOnBorrow {
			s.state = slotValidating
			step.validate = s
		} else {
			step.lease = p.newLeaseLocked(s)
			p.requestFillLocked()
		}
		return step, nil
	}

	if p.numOpen < p.cfg.MaximumPoolSize {
		p.numOpen++
		step.permit = true
		return step, nil
	}

	step.waiter = p.enqueueLocked()
	return step, nil
}

// checkout validates an idle slot and borrows it. A nil lease with a nil
// error means the slot failed validation and the caller should try again.
func (p *Pool) checkout(ctx context.Context, s *slot) (*Lease, error) {
	ok := p.validator.Validate(ctx, s.conn)

	p.mu.Lock()
	if s.state == slotClosed {
		// force-closed by Shutdown while validating
		err := p.stateErrLocked()
		p.mu.Unlock()
		return nil, err
	}
	if err := p.stateErrLocked(); err != nil {
		p.closeSlotLocked(s)
		p.mu.Unlock()
		p.closeConn(s)
		return nil, err
	}
	if !ok && ctx.Err() != nil {
		// the caller gave up, the connection may be fine
		p.putLocked(s)
		p.mu.Unlock()
		return nil, p.waitError(ctx)
	}
	if !ok {
		p.validationFailures++
		p.closeSlotLocked(s)
		p.mu.Unlock()
		log.WithField("pool", p.cfg.Name).WithField("conn", s.id).Debug("discarding connection that failed validation")
		p.closeConn(s)
		return nil, nil
	}
	lease := p.newLeaseLocked(s)
	p.requestFillLocked()
	p.mu.Unlock()
	return lease, nil
}

// createLease opens a connection on capacity the caller already reserved.
// On failure the reservation is passed on and the factory error returned;
// a connect cut short by the acquire deadline is reported as a timeout.
func (p *Pool) createLease(ctx context.Context) (*Lease, error) {
	conn, err := p.connector.Create(ctx)

	p.mu.Lock()
	if err != nil {
		p.freeCapacityLocked(true)
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
		if timedOut {
			p.timedOut++
		}
		p.mu.Unlock()
		if timedOut {
			log.WithField("pool", p.cfg.Name).WithError(err).Debug("connect did not finish before the acquire deadline")
			return nil, p.waitError(ctx)
		}
		return nil, err
	}
	p.created++
	if err := p.stateErrLocked(); err != nil {
		p.closed++
		p.freeCapacityLocked(false)
		p.mu.Unlock()
		p.closeConn(&slot{conn: conn})
		return nil, err
	}
	s := newSlot(conn)
	p.slots[s] = struct{}{}
	lease := p.newLeaseLocked(s)
	p.mu.Unlock()

	log.WithField("pool", p.cfg.Name).WithField("conn", s.id).Debug("opened connection for acquire")
	return lease, nil
}

// handoffLease wraps a slot handed over directly by Release or the filler.
// It skips validation: the slot was healthy a moment ago.
func (p *Pool) handoffLease(s *slot) (*Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.state == slotClosed {
		// force-closed by Shutdown before the waiter woke up
		return nil, p.stateErrLocked()
	}
	return p.newLeaseLocked(s), nil
}

// wait parks until w is granted something or ctx is done. A grant that
// raced with the deadline is honored when it is a slot; a raced permit is
// passed on.
func (p *Pool) wait(ctx context.Context, w *waiter) (grant, error) {
	select {
	case g := <-w.ch:
		return g, g.err
	case <-ctx.Done():
	}

	p.mu.Lock()
	if p.abandonLocked(w) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.timedOut++
		}
		p.mu.Unlock()
		return grant{}, p.waitError(ctx)
	}
	p.mu.Unlock()

	g := <-w.ch
	if g.err != nil || g.slot != nil {
		return g, g.err
	}

	p.mu.Lock()
	p.freeCapacityLocked(true)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.timedOut++
	}
	p.mu.Unlock()
	return grant{}, p.waitError(ctx)
}

// waitError maps a done context to the error Acquire returns.
func (p *Pool) waitError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", apperrors.ErrAcquireTimeout, p.cfg.Name, err)
	}
	return err
}

func (p *Pool) newLeaseLocked(s *slot) *Lease {
	s.state = slotInUse
	p.borrowed++
	return &Lease{pool: p, slot: s, acquiredAt: time.Now()}
}

// Release returns a lease to the pool. Releasing a lease twice fails with
// apperrors.ErrDoubleRelease and changes nothing; a lease issued by another
// pool fails with apperrors.ErrForeignLease.
func (p *Pool) Release(l *Lease) error {
	return p.release(l, false)
}

func (p *Pool) release(l *Lease, discard bool) error {
	if l == nil || l.pool != p {
		return apperrors.ErrForeignLease
	}

	p.mu.Lock()
	if l.released {
		p.mu.Unlock()
		return apperrors.ErrDoubleRelease
	}
	l.released = true

	s := l.slot
	if s.state == slotClosed {
		// force-closed by Shutdown
		p.mu.Unlock()
		return nil
	}

	now := time.Now()
	s.lastUsed = now
	if discard || s.conn.IsClosed() || s.lifetimeExceeded(&p.cfg, now) || p.state != StateOpen {
		// registered before capacity is freed so Shutdown cannot miss it
		p.closing.Add(1)
		p.closeSlotLocked(s)
		p.mu.Unlock()
		p.closeAsync(s)
		return nil
	}

	p.putLocked(s)
	p.mu.Unlock()
	return nil
}

// putLocked hands a healthy slot to the head waiter, or makes it idle.
func (p *Pool) putLocked(s *slot) {
	if w := p.dequeueLocked(); w != nil {
		s.state = slotInUse
		w.ch <- grant{slot: s}
		return
	}
	s.state = slotIdle
	p.idle = append(p.idle, s)
}

// closeSlotLocked removes s from the pool and frees its capacity. The
// physical connection must be closed by the caller after unlocking.
func (p *Pool) closeSlotLocked(s *slot) {
	if s.state == slotClosed {
		return
	}
	s.state = slotClosed
	delete(p.slots, s)
	p.closed++
	p.freeCapacityLocked(true)
}

// freeCapacityLocked releases one unit of capacity: the head waiter gets a
// permit to connect, otherwise numOpen shrinks and, if fill is set, the
// filler is asked to top up idle connections.
func (p *Pool) freeCapacityLocked(fill bool) {
	if p.state == StateOpen {
		if w := p.dequeueLocked(); w != nil {
			w.ch <- grant{permit: true}
			return
		}
	}
	p.numOpen--
	close(p.returned)
	p.returned = make(chan struct{})
	if fill {
		p.requestFillLocked()
	}
}

// stateErrLocked returns the error for acquires in the current state.
func (p *Pool) stateErrLocked() error {
	switch p.state {
	case StateShuttingDown:
		return apperrors.ErrPoolShuttingDown
	case StateClosed:
		return apperrors.ErrPoolClosed
	default:
		return nil
	}
}

// closeConn closes the physical connection of s.
func (p *Pool) closeConn(s *slot) {
	if err := s.conn.Close(); err != nil {
		log.WithField("pool", p.cfg.Name).WithError(err).Debug("error closing connection")
	}
}

// closeConns closes the physical connections of all slots.
func (p *Pool) closeConns(slots []*slot) {
	for _, s := range slots {
		p.closeConn(s)
	}
}

// closeAsync closes s without blocking the caller. The caller must have
// called p.closing.Add(1) while holding p.mu; Shutdown waits for these
// closes.
func (p *Pool) closeAsync(s *slot) {
	go func() {
		defer p.closing.Done()
		p.closeConn(s)
	}()
}

// closeConnector releases resources held by the connector, if any.
func (p *Pool) closeConnector() {
	if c, ok := p.connector.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.WithField("pool", p.cfg.Name).WithError(err).Debug("error closing connector")
		}
	}
}
