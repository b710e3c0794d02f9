package pool

import (
	"context"
	"fmt"

	"github.com/go-i2p/dbpool/lib/driver"
	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

// WithConnection borrows a connection, runs fn with it and gives it back on
// every exit path. If fn panics the connection is discarded and the panic
// continues. A release error is returned only when fn succeeded.
func (p *Pool) WithConnection(ctx context.Context, fn func(conn driver.Conn) error) (err error) {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = lease.Discard()
			panic(r)
		}
		if relErr := lease.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()

	return fn(lease.Conn())
}

// Shutdown stops the pool. The first call rejects new acquires, fails
// parked ones with apperrors.ErrPoolShuttingDown, stops the reaper and
// filler, closes idle connections and waits for borrowed connections to be
// released until ctx is done. Connections still borrowed then are closed
// anyway and an error wrapping ctx.Err() is returned. Later calls wait for
// the first to finish and return nil.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		select {
		case <-p.shutdownCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.state = StateShuttingDown
	for w := p.dequeueLocked(); w != nil; w = p.dequeueLocked() {
		w.ch <- grant{err: apperrors.ErrPoolShuttingDown}
	}
	idle := p.idle
	p.idle = nil
	for _, s := range idle {
		p.closeSlotLocked(s)
	}
	p.mu.Unlock()

	log.WithField("pool", p.cfg.Name).Info("pool shutting down")

	close(p.stop)
	p.bgCancel()
	p.wg.Wait()
	p.closeConns(idle)

	err := p.awaitReturns(ctx)

	p.mu.Lock()
	var forced []*slot
	for s := range p.slots {
		forced = append(forced, s)
	}
	for _, s := range forced {
		p.closeSlotLocked(s)
	}
	p.state = StateClosed
	p.mu.Unlock()

	p.closeConns(forced)
	p.closing.Wait()
	p.closeConnector()
	p.metrics.unregister()
	close(p.shutdownCh)

	if len(forced) > 0 {
		log.WithField("pool", p.cfg.Name).WithField("forced", len(forced)).Warn("closed connections still in use")
		return fmt.Errorf("pool %s: closed %d borrowed connections: %w", p.cfg.Name, len(forced), err)
	}
	log.WithField("pool", p.cfg.Name).Info("pool closed")
	return nil
}

// awaitReturns waits until every borrowed connection and connect in
// flight has settled, or ctx is done.
func (p *Pool) awaitReturns(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.numOpen <= 0 {
			p.mu.Unlock()
			return nil
		}
		returned := p.returned
		p.mu.Unlock()

		select {
		case <-returned:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
