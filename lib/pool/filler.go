package pool

import (
	"context"
	"errors"

	"github.com/go-i2p/dbpool/lib/driver"
	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"golang.org/x/sync/errgroup"
)

// requestFillLocked wakes the filler if idle connections are short.
// It never blocks: one pending signal is enough.
func (p *Pool) requestFillLocked() {
	if !p.needsFillLocked() {
		return
	}
	select {
	case p.fillCh <- struct{}{}:
	default:
	}
}

func (p *Pool) needsFillLocked() bool {
	return p.state == StateOpen &&
		p.numOpen < p.cfg.MaximumPoolSize &&
		len(p.idle)+p.pending < p.cfg.MinimumIdle
}

// fillLoop opens connections in the background whenever signalled.
func (p *Pool) fillLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			return
		case <-p.fillCh:
			p.fill()
		}
	}
}

// fill opens connections until MinimumIdle is met. A connect that still
// fails after the backoff retries is left to the next reaper pass.
func (p *Pool) fill() {
	for {
		p.mu.Lock()
		if !p.needsFillLocked() {
			p.mu.Unlock()
			return
		}
		p.numOpen++
		p.pending++
		p.mu.Unlock()

		conn, err := p.connectWithBackoff(p.bgCtx)
		if !p.addConn(conn, err) {
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithField("pool", p.cfg.Name).WithError(err).Warn("could not replenish idle connections")
			}
			return
		}
	}
}

// connectWithBackoff opens one connection, retrying transient failures.
// Each attempt is bounded by ConnectionTimeout.
func (p *Pool) connectWithBackoff(ctx context.Context) (driver.Conn, error) {
	var conn driver.Conn
	retryable := func(err error) bool {
		return apperrors.IsRetryable(err) && !errors.Is(err, apperrors.ErrCircuitOpen)
	}
	err := p.backoff.Retry(ctx, retryable, func(ctx context.Context) error {
		if p.cfg.ConnectionTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
			defer cancel()
		}
		c, err := p.connector.Create(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	return conn, err
}

// addConn settles one background connect on capacity reserved with
// pending. A new connection goes to the head waiter or becomes idle.
// It reports whether the connection was added.
func (p *Pool) addConn(conn driver.Conn, err error) bool {
	p.mu.Lock()
	p.pending--
	if err != nil {
		p.freeCapacityLocked(false)
		p.mu.Unlock()
		return false
	}
	p.created++
	if p.state != StateOpen {
		p.closed++
		p.freeCapacityLocked(false)
		p.mu.Unlock()
		p.closeConn(&slot{conn: conn})
		return false
	}
	s := newSlot(conn)
	p.slots[s] = struct{}{}
	p.putLocked(s)
	p.mu.Unlock()

	log.WithField("pool", p.cfg.Name).WithField("conn", s.id).Debug("opened idle connection")
	return true
}

// Prefill opens the connections missing to reach MinimumIdle concurrently
// and waits for them. The first connect error is returned; connections
// that did open stay in the pool.
func (p *Pool) Prefill(ctx context.Context) error {
	p.mu.Lock()
	if err := p.stateErrLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	n := p.cfg.MinimumIdle - len(p.idle) - p.pending
	if room := p.cfg.MaximumPoolSize - p.numOpen; n > room {
		n = room
	}
	if n <= 0 {
		p.mu.Unlock()
		return nil
	}
	p.numOpen += n
	p.pending += n
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			conn, err := p.connector.Create(gctx)
			p.addConn(conn, err)
			return err
		})
	}
	return g.Wait()
}
