package hbase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// leaseKey carries the leased connection in the context handed to the scoped
// callback. Nested acquisitions through that context transparently reuse the
// outer lease instead of drawing (and possibly deadlocking on) the stack.
type leaseKey struct{}

func leaseFrom(ctx context.Context) (*Connection, bool) {
	conn, ok := ctx.Value(leaseKey{}).(*Connection)
	return conn, ok
}

// ConnectionPool shares a fixed set of connections across concurrent callers.
//
// Connections are handed out one per caller through scoped acquisition
// (WithConnection); the pool keeps ownership of the Connection objects
// themselves. Free connections sit on a LIFO stack so recently used, warm
// transports are drawn first. A connection that suffered a transport fault
// during a lease is rebuilt before it returns to the stack, a broken socket
// is never handed to a later caller.
type ConnectionPool struct {
	size   int
	tokens chan struct{}

	mu     sync.Mutex
	conns  []*Connection // free stack, top at the end
	closed bool
}

// NewConnectionPool eagerly creates `size` unopened connections. One
// connection is opened right away so trivial mistakes like an unresolvable
// host fail here instead of on first use; the rest open lazily.
func NewConnectionPool(ctx context.Context, size int, dsn string, opts ...ConnectionOption) (*ConnectionPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be greater than zero, got %d", size)
	}

	zlog.Debug("initializing connection pool", zap.Int("size", size), zap.String("dsn", dsn))

	p := &ConnectionPool{
		size:   size,
		tokens: make(chan struct{}, size),
	}
	for i := 0; i < size; i++ {
		conn, err := NewConnection(dsn, opts...)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("creating connection %d: %w", i, err)
		}
		p.conns = append(p.conns, conn)
		p.tokens <- struct{}{}
	}

	if err := p.WithConnection(ctx, func(ctx context.Context, conn *Connection) error {
		return nil
	}); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// Size returns the declared pool size.
func (p *ConnectionPool) Size() int {
	return p.size
}

// WithConnection runs fn with a connection leased from the pool, waiting as
// long as the context allows for one to become available. The connection is
// returned on every exit path. Nested calls made with the context fn
// receives reuse the same connection.
func (p *ConnectionPool) WithConnection(ctx context.Context, fn func(ctx context.Context, conn *Connection) error) error {
	return p.withConnection(ctx, 0, fn)
}

// WithConnectionTimeout is WithConnection with a bound on the wait for a free
// connection. When the timeout elapses first, ErrNoConnections is returned;
// the caller may retry.
func (p *ConnectionPool) WithConnectionTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, conn *Connection) error) error {
	return p.withConnection(ctx, timeout, fn)
}

func (p *ConnectionPool) withConnection(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, conn *Connection) error) error {
	if conn, ok := leaseFrom(ctx); ok {
		// Nested acquisition from the same caller, reuse the outer lease.
		return fn(ctx, conn)
	}

	conn, err := p.acquire(ctx, timeout)
	if err != nil {
		return err
	}

	err = p.runLeased(context.WithValue(ctx, leaseKey{}, conn), conn, fn)

	// By the time release runs, the lease context is out of reach of any
	// nested caller.
	p.release(conn)
	return err
}

func (p *ConnectionPool) runLeased(ctx context.Context, conn *Connection, fn func(ctx context.Context, conn *Connection) error) error {
	// A taint here means the release-time rebuild failed; retry it now so a
	// known-bad client is never handed to fn.
	if conn.Tainted() {
		if err := conn.Close(); err != nil {
			zlog.Debug("closing tainted connection", zap.Error(err))
		}
		if err := conn.refresh(); err != nil {
			return fmt.Errorf("rebuilding tainted connection: %w", err)
		}
	}

	// Connections are opened lazily; a no-op when already open. An open
	// failure marks the taint flag itself when it is transport-class.
	if err := conn.Open(ctx); err != nil {
		return err
	}
	return fn(ctx, conn)
}

func (p *ConnectionPool) acquire(ctx context.Context, timeout time.Duration) (*Connection, error) {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case <-p.tokens:
		p.mu.Lock()
		if p.closed || len(p.conns) == 0 {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		n := len(p.conns) - 1
		conn := p.conns[n]
		p.conns = p.conns[:n]
		p.mu.Unlock()
		return conn, nil

	case <-ctx.Done():
		return nil, ctx.Err()

	case <-timeoutC:
		return nil, ErrNoConnections
	}
}

func (p *ConnectionPool) release(conn *Connection) {
	if conn.Tainted() {
		zlog.Info("replacing tainted pool connection", zap.String("dsn", conn.dsn))
		if err := conn.Close(); err != nil {
			zlog.Debug("closing tainted connection", zap.Error(err))
		}
		if err := conn.refresh(); err != nil {
			// The old (tainted but intact) client stays in place so the
			// pool size invariant holds; the next lease retries the rebuild
			// before running anything on it.
			zlog.Warn("rebuilding tainted connection", zap.Error(err))
		} else if err := conn.Open(context.Background()); err != nil {
			zlog.Warn("reopening rebuilt connection", zap.Error(err))
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if err := conn.Close(); err != nil {
			zlog.Debug("closing connection released after pool close", zap.Error(err))
		}
		return
	}
	p.conns = append(p.conns, conn)
	p.mu.Unlock()
	p.tokens <- struct{}{}
}

// Close drains the pool and closes every free connection. Connections still
// leased are closed as they come back. The pool is unusable afterwards.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conns := p.conns
	p.conns = nil
	p.mu.Unlock()

	var err error
	for _, conn := range conns {
		err = multierr.Append(err, conn.Close())
	}
	return err
}

// idle returns how many connections sit free on the stack. Test hook.
func (p *ConnectionPool) idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}
