// Package pool implements a bounded pool of database connections.
//
// The pool keeps at most MaximumPoolSize physical connections, tries to keep
// MinimumIdle of them idle, retires connections that were idle longer than
// IdleTimeout or alive longer than MaxLifetime, and optionally validates a
// connection before every borrow. Callers that find the pool exhausted wait
// in FIFO order until a connection is released or the acquire times out.
//
// # Basic Usage
//
//	cfg := pool.DefaultConfig()
//	cfg.Driver = "postgres"
//	cfg.URL = "postgres://app@db.internal:5432/orders"
//	cfg.MaximumPoolSize = 20
//
//	p, err := pool.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer p.Shutdown(context.Background())
//
//	err = p.WithConnection(ctx, func(conn driver.Conn) error {
//	    return conn.Exec(ctx, "UPDATE jobs SET state = 'done' WHERE id = 1")
//	})
//
// Acquire and Release give explicit control over the borrow:
//
//	lease, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer lease.Release()
//	pgConn := lease.Conn().Raw().(*pgx.Conn)
//
// A lease may be released exactly once. Call Discard instead of Release when
// the connection is known to be broken.
//
// # Background work
//
// Each pool runs two goroutines: the reaper, which retires expired idle
// connections every HousekeepingPeriod, and the filler, which opens
// connections whenever the idle count drops below MinimumIdle. Both stop
// during Shutdown.
//
// # Metrics
//
// Pool state is exported through lib/metrics with a pool label:
//   - dbpool_pool_max_connections, dbpool_pool_connections{state="idle|active"}
//   - dbpool_pool_waiting
//   - dbpool_pool_connections_created_total, dbpool_pool_connections_closed_total
//   - dbpool_pool_acquire_total, dbpool_pool_acquire_failed_total, dbpool_pool_acquire_timeouts_total
//   - dbpool_pool_borrowed_total, dbpool_pool_validation_failures_total
//   - dbpool_pool_acquire_duration_seconds
package pool
