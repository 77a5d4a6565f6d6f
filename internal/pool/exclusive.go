// Package pool manages exclusive Redis connections for long-running blocking
// reads and ingest. Short commands go through the multiplexed static client;
// a blocking XREAD must own its connection for the duration of the read.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fa-sharp/tinistream/internal/metrics"
)

const (
	// DefaultMaxSize is the default cap on concurrent exclusive connections.
	DefaultMaxSize = 20
	// DefaultAcquireTimeout is how long Acquire waits for a free slot. This
	// is the sole backpressure mechanism for live connections.
	DefaultAcquireTimeout = 6 * time.Second

	reapInterval = 120 * time.Second
	maxIdleTime  = 5 * time.Minute
)

var (
	// ErrPoolTimeout signals that too many clients hold exclusive
	// connections; surfaced to clients as 429.
	ErrPoolTimeout = errors.New("too many concurrent clients")
	ErrPoolClosed  = errors.New("exclusive pool is closed")
)

// Conn is an exclusive connection checked out of the pool. Callers must
// Release it on every exit path.
type Conn struct {
	*redis.Conn

	pool *Exclusive
	once sync.Once
}

// Release returns the connection to the pool. Safe to call more than once.
func (c *Conn) Release() {
	c.once.Do(func() { c.pool.release(c.Conn) })
}

// Stats is a snapshot of pool usage.
type Stats struct {
	// Total connections currently held by the pool (idle + checked out)
	Size int
	// Connections currently checked out
	InUse int
	// Remaining admission capacity
	Available int
	// Maximum concurrent connections
	Max int
}

type idleConn struct {
	conn     *redis.Conn
	lastUsed time.Time
}

// Exclusive is a bounded, lazily populated pool of single-owner Redis
// connections. Idle connections are pinged before reuse and reclaimed by a
// background reaper after prolonged inactivity.
type Exclusive struct {
	client  *redis.Client
	logger  *zap.Logger
	timeout time.Duration
	max     int

	sem chan struct{}

	mu     sync.Mutex
	idle   []idleConn
	conns  map[*redis.Conn]struct{}
	closed bool

	stopReap chan struct{}
	reapDone chan struct{}
}

// NewExclusive builds the pool on top of the static client. Connections are
// created on demand up to max.
func NewExclusive(client *redis.Client, max int, logger *zap.Logger) *Exclusive {
	if max <= 0 {
		max = DefaultMaxSize
	}
	p := &Exclusive{
		client:   client,
		logger:   logger,
		timeout:  DefaultAcquireTimeout,
		max:      max,
		sem:      make(chan struct{}, max),
		conns:    make(map[*redis.Conn]struct{}),
		stopReap: make(chan struct{}),
		reapDone: make(chan struct{}),
	}
	go p.reapLoop()
	return p
}

// SetAcquireTimeout overrides how long Acquire waits for a free slot. Must be
// called before the pool is shared across goroutines.
func (p *Exclusive) SetAcquireTimeout(d time.Duration) {
	p.timeout = d
}

// Acquire checks out an exclusive connection, waiting up to the acquisition
// timeout for a free slot.
func (p *Exclusive) Acquire(ctx context.Context) (*Conn, error) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case p.sem <- struct{}{}:
	case <-timer.C:
		metrics.PoolAcquireTimeouts.Inc()
		return nil, ErrPoolTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	conn, err := p.checkout(ctx)
	if err != nil {
		<-p.sem
		return nil, err
	}
	metrics.ExclusiveConnsInUse.Inc()
	return &Conn{Conn: conn, pool: p}, nil
}

// checkout reuses an idle connection if one is healthy, otherwise opens a
// fresh dedicated connection.
func (p *Exclusive) checkout(ctx context.Context) (*redis.Conn, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if len(p.idle) == 0 {
			conn := p.client.Conn()
			p.conns[conn] = struct{}{}
			p.mu.Unlock()
			return conn, nil
		}
		entry := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if err := entry.conn.Ping(ctx).Err(); err == nil {
			return entry.conn, nil
		}
		p.logger.Debug("Discarding dead exclusive connection")
		p.drop(entry.conn)
	}
}

func (p *Exclusive) release(conn *redis.Conn) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
	} else {
		p.idle = append(p.idle, idleConn{conn: conn, lastUsed: time.Now()})
		p.mu.Unlock()
	}
	metrics.ExclusiveConnsInUse.Dec()
	<-p.sem
}

func (p *Exclusive) drop(conn *redis.Conn) {
	p.mu.Lock()
	delete(p.conns, conn)
	p.mu.Unlock()
	_ = conn.Close()
}

// reapLoop periodically closes idle connections that have not been used for
// maxIdleTime.
func (p *Exclusive) reapLoop() {
	defer close(p.reapDone)
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopReap:
			return
		case <-ticker.C:
			p.reapIdle(time.Now())
		}
	}
}

func (p *Exclusive) reapIdle(now time.Time) {
	p.mu.Lock()
	kept := p.idle[:0]
	var stale []*redis.Conn
	for _, entry := range p.idle {
		if now.Sub(entry.lastUsed) > maxIdleTime {
			stale = append(stale, entry.conn)
			delete(p.conns, entry.conn)
		} else {
			kept = append(kept, entry)
		}
	}
	p.idle = kept
	p.mu.Unlock()

	for _, conn := range stale {
		_ = conn.Close()
	}
	if len(stale) > 0 {
		p.logger.Info("Reclaimed idle exclusive connections", zap.Int("count", len(stale)))
	}
}

// Stats returns a snapshot of pool usage.
func (p *Exclusive) Stats() Stats {
	p.mu.Lock()
	size := len(p.conns)
	p.mu.Unlock()
	inUse := len(p.sem)
	return Stats{
		Size:      size,
		InUse:     inUse,
		Available: p.max - inUse,
		Max:       p.max,
	}
}

// Close shuts down the pool: the reaper stops and every connection the pool
// has handed out is closed, interrupting in-flight blocking reads.
func (p *Exclusive) Close() {
	close(p.stopReap)
	<-p.reapDone

	p.mu.Lock()
	p.closed = true
	conns := make([]*redis.Conn, 0, len(p.conns))
	for conn := range p.conns {
		conns = append(conns, conn)
	}
	p.conns = make(map[*redis.Conn]struct{})
	p.idle = nil
	p.mu.Unlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			p.logger.Warn("Failed to close exclusive connection", zap.Error(err))
		}
	}
}
