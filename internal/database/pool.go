// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package database provides the pooled SQLite layer for memex.
//
// CONNECTION MODEL:
//
// The pool owns a bounded set of physical SQLite connections. Each physical
// connection is a dedicated *sql.DB handle with SetMaxOpenConns(1), so the
// pool - not database/sql - decides when connections are created, reused,
// health-checked, and destroyed:
//   - A buffered channel holds idle connections (the free list)
//   - Acquire pops from the free list, creates on demand below MaxConnections,
//     and otherwise waits up to ConnectionTimeout before failing with
//     ErrAcquireTimeout
//   - Release re-probes the connection and either returns it to the free list
//     or closes it
//   - A background monitor sweeps the free list every HealthCheckInterval,
//     closing unhealthy connections and replenishing to MinConnections
//
// WAL mode plus per-connection busy_timeout lets multiple pooled connections
// operate on the same file concurrently.
//
// FAILURE MODES:
//
//  1. Unhealthy connection found during Acquire: closed and transparently
//     replaced, visible only through the HealthCheckFailures counter.
//  2. Pool exhausted: Acquire fails with ErrAcquireTimeout after
//     ConnectionTimeout. Never conflated with SQL errors.
//  3. Teardown does not reclaim leased connections; callers must release
//     before Close for those connections to be closed.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var (
	// ErrAcquireTimeout is returned when no connection becomes available
	// within PoolConfig.ConnectionTimeout. Matched with errors.Is so callers
	// can distinguish pool exhaustion from query failures.
	ErrAcquireTimeout = errors.New("connection acquire timeout")

	// ErrPoolClosed is returned by Acquire after Close has been called.
	ErrPoolClosed = errors.New("connection pool is closed")
)

const healthProbeTimeout = 2 * time.Second

// PoolConfig bounds and paces the connection pool. Validate rejects invalid
// configurations at construction time.
type PoolConfig struct {
	MaxConnections         int
	MinConnections         int
	ConnectionTimeout      time.Duration
	HealthCheckInterval    time.Duration
	EnableHealthMonitoring bool
}

func (c PoolConfig) Validate() error {
	if c.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive, got %d", c.MaxConnections)
	}
	if c.MinConnections < 0 {
		return fmt.Errorf("min connections must not be negative, got %d", c.MinConnections)
	}
	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("min connections (%d) must not exceed max connections (%d)", c.MinConnections, c.MaxConnections)
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection timeout must be positive, got %s", c.ConnectionTimeout)
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check interval must be positive, got %s", c.HealthCheckInterval)
	}
	return nil
}

// DefaultPoolConfig returns the configuration used when no environment
// preset is selected.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnections:         10,
		MinConnections:         2,
		ConnectionTimeout:      30 * time.Second,
		HealthCheckInterval:    60 * time.Second,
		EnableHealthMonitoring: true,
	}
}

// ProductionPoolConfig favors throughput: a larger bound and background
// health monitoring enabled.
func ProductionPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnections:         20,
		MinConnections:         5,
		ConnectionTimeout:      30 * time.Second,
		HealthCheckInterval:    30 * time.Second,
		EnableHealthMonitoring: true,
	}
}

// DevelopmentPoolConfig keeps the pool small for local runs.
func DevelopmentPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnections:         5,
		MinConnections:         1,
		ConnectionTimeout:      10 * time.Second,
		HealthCheckInterval:    60 * time.Second,
		EnableHealthMonitoring: true,
	}
}

// TestingPoolConfig disables the background monitor so tests control the
// pool deterministically.
func TestingPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnections:         5,
		MinConnections:         1,
		ConnectionTimeout:      5 * time.Second,
		HealthCheckInterval:    time.Second,
		EnableHealthMonitoring: false,
	}
}

// PoolConfigForEnvironment maps an environment name from config.toml to a
// preset. Unknown names fall back to the default configuration.
func PoolConfigForEnvironment(environment string) PoolConfig {
	switch environment {
	case "production":
		return ProductionPoolConfig()
	case "development":
		return DevelopmentPoolConfig()
	case "testing":
		return TestingPoolConfig()
	default:
		return DefaultPoolConfig()
	}
}

// ConnectionStats is a snapshot of pool state. At rest
// AvailableConnections + ActiveConnections == TotalConnections.
type ConnectionStats struct {
	TotalConnections        int   `json:"totalConnections"`
	AvailableConnections    int   `json:"availableConnections"`
	ActiveConnections       int   `json:"activeConnections"`
	TotalConnectionsCreated int64 `json:"totalConnectionsCreated"`
	TotalConnectionsClosed  int64 `json:"totalConnectionsClosed"`
	HealthCheckFailures     int64 `json:"healthCheckFailures"`
}

// Conn is a leased physical connection. It is exclusively owned by the
// borrowing goroutine until Release is called; Release is safe to call more
// than once but only the first call has effect.
type Conn struct {
	db       *sql.DB
	pool     *Pool
	id       uint64
	released atomic.Bool
}

func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, opts)
}

// Release returns the connection to the pool. The connection is re-probed
// first; an unhealthy connection is closed instead of being reused, and a
// later Acquire recreates capacity lazily.
func (c *Conn) Release() {
	if !c.released.CompareAndSwap(false, true) {
		return
	}
	c.pool.release(c)
}

// Pool is a bounded, thread-safe pool of physical SQLite connections.
type Pool struct {
	path string
	cfg  PoolConfig

	available chan *Conn

	mu    sync.Mutex
	stats ConnectionStats

	nextID atomic.Uint64
	closed atomic.Bool

	monitorStop chan struct{}
	monitorDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewPool validates cfg, eagerly opens MinConnections connections, and
// starts the health monitor when enabled. A failure during eager creation
// closes anything already opened and fails construction; there is no
// partially initialized pool.
func NewPool(databasePath string, cfg PoolConfig) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	p := &Pool{
		path:      databasePath,
		cfg:       cfg,
		available: make(chan *Conn, cfg.MaxConnections),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()

	for i := 0; i < cfg.MinConnections; i++ {
		conn, err := p.openConn(ctx)
		if err != nil {
			for len(p.available) > 0 {
				c := <-p.available
				_ = c.db.Close()
			}
			return nil, fmt.Errorf("create initial connection %d/%d: %w", i+1, cfg.MinConnections, err)
		}
		p.available <- conn
	}

	p.mu.Lock()
	p.stats.TotalConnections = cfg.MinConnections
	p.stats.AvailableConnections = cfg.MinConnections
	p.stats.TotalConnectionsCreated = int64(cfg.MinConnections)
	p.mu.Unlock()

	if cfg.EnableHealthMonitoring {
		p.monitorStop = make(chan struct{})
		p.monitorDone = make(chan struct{})
		go p.monitor()
	}

	log.Debug().
		Str("path", databasePath).
		Int("minConnections", cfg.MinConnections).
		Int("maxConnections", cfg.MaxConnections).
		Bool("healthMonitoring", cfg.EnableHealthMonitoring).
		Msg("Connection pool initialized")

	return p, nil
}

// openConn opens one physical connection with the standard pragmas applied.
// It does not touch pool stats; callers account for the new connection.
func (p *Pool) openConn(ctx context.Context) (*Conn, error) {
	db, err := sql.Open("sqlite", p.path)
	if err != nil {
		return nil, fmt.Errorf("open connection at %s: %w", p.path, err)
	}

	// One underlying connection per handle so pragmas stick and the pool
	// controls the physical connection count.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyConnectionPragmas(ctx, func(ctx context.Context, stmt string) error {
		_, execErr := db.ExecContext(ctx, stmt)
		return execErr
	}, p.cfg.ConnectionTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Conn{db: db, pool: p, id: p.nextID.Add(1)}, nil
}

type pragmaExecFn func(ctx context.Context, stmt string) error

var connectionPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL", // NORMAL is safe with WAL and much faster than FULL
	"PRAGMA foreign_keys = ON",
	"PRAGMA cache_size = -16000", // 16MB cache (negative = KB)
}

func applyConnectionPragmas(ctx context.Context, exec pragmaExecFn, busyTimeout time.Duration) error {
	pragmas := append([]string{}, connectionPragmas...)
	pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	for _, stmt := range pragmas {
		if err := exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply connection pragma %q: %w", stmt, err)
		}
	}
	return nil
}

// healthCheck runs the cheap liveness probe against a connection.
func (p *Pool) healthCheck(c *Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthProbeTimeout)
	defer cancel()

	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return err
	}
	return nil
}

// Acquire hands out a healthy connection, waiting up to ConnectionTimeout
// when the pool is exhausted. The total number of physical connections never
// exceeds MaxConnections.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	select {
	case c := <-p.available:
		return p.leaseChecked(ctx, c)
	default:
	}

	// Free list is empty; create on demand while below the bound. The slot
	// is reserved under the lock before the (slow) open so concurrent
	// acquirers cannot overshoot MaxConnections.
	p.mu.Lock()
	if p.stats.TotalConnections < p.cfg.MaxConnections {
		p.stats.TotalConnections++
		p.stats.ActiveConnections++
		p.stats.TotalConnectionsCreated++
		p.mu.Unlock()

		c, err := p.openConn(ctx)
		if err != nil {
			p.mu.Lock()
			p.stats.TotalConnections--
			p.stats.ActiveConnections--
			p.stats.TotalConnectionsCreated--
			p.mu.Unlock()
			return nil, err
		}
		return c, nil
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.ConnectionTimeout)
	defer timer.Stop()

	select {
	case c := <-p.available:
		return p.leaseChecked(ctx, c)
	case <-timer.C:
		return nil, fmt.Errorf("no connection available within %s: %w", p.cfg.ConnectionTimeout, ErrAcquireTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// leaseChecked moves a popped connection to active, verifying health first.
// An unhealthy connection is closed and replaced transparently; the caller
// always receives a healthy connection or an error.
func (p *Pool) leaseChecked(ctx context.Context, c *Conn) (*Conn, error) {
	p.mu.Lock()
	p.stats.AvailableConnections--
	p.stats.ActiveConnections++
	p.mu.Unlock()

	if err := p.healthCheck(c); err != nil {
		log.Warn().Err(err).Uint64("connID", c.id).Msg("Unhealthy connection detected on acquire, replacing")
		_ = c.db.Close()

		p.mu.Lock()
		p.stats.HealthCheckFailures++
		p.stats.TotalConnectionsClosed++
		p.mu.Unlock()

		replacement, openErr := p.openConn(ctx)
		if openErr != nil {
			p.mu.Lock()
			p.stats.TotalConnections--
			p.stats.ActiveConnections--
			p.mu.Unlock()
			return nil, fmt.Errorf("replace unhealthy connection: %w", openErr)
		}

		p.mu.Lock()
		p.stats.TotalConnectionsCreated++
		p.mu.Unlock()
		return replacement, nil
	}

	return c, nil
}

// WithConn runs fn with a leased connection, releasing it on every exit
// path. Errors from fn propagate unchanged after the release has run.
func (p *Pool) WithConn(ctx context.Context, fn func(*Conn) error) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.Release()
	return fn(c)
}

func (p *Pool) release(c *Conn) {
	if p.closed.Load() {
		_ = c.db.Close()
		return
	}

	if err := p.healthCheck(c); err != nil {
		log.Warn().Err(err).Uint64("connID", c.id).Msg("Connection unhealthy on release, closing")
		_ = c.db.Close()

		p.mu.Lock()
		p.stats.HealthCheckFailures++
		p.stats.TotalConnectionsClosed++
		p.stats.TotalConnections--
		p.stats.ActiveConnections--
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.stats.ActiveConnections--
	p.stats.AvailableConnections++
	p.mu.Unlock()

	// Channel capacity equals MaxConnections, so this never blocks.
	p.available <- c
}

// Stats returns a copy of the current pool statistics.
func (p *Pool) Stats() ConnectionStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// monitor sweeps the free list on every tick. Leased connections are never
// touched; they are probed on release instead.
func (p *Pool) monitor() {
	defer close(p.monitorDone)

	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.monitorStop:
			return
		}
	}
}

// sweep drains the free list, closes unhealthy connections, returns healthy
// ones, and replenishes to MinConnections.
func (p *Pool) sweep() {
	var idle []*Conn
drain:
	for {
		select {
		case c := <-p.available:
			idle = append(idle, c)
		default:
			break drain
		}
	}

	healthy := 0
	for _, c := range idle {
		if err := p.healthCheck(c); err != nil {
			log.Warn().Err(err).Uint64("connID", c.id).Msg("Health sweep closing unhealthy connection")
			_ = c.db.Close()

			p.mu.Lock()
			p.stats.HealthCheckFailures++
			p.stats.TotalConnectionsClosed++
			p.stats.TotalConnections--
			p.stats.AvailableConnections--
			p.mu.Unlock()
			continue
		}
		p.available <- c
		healthy++
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectionTimeout)
	defer cancel()

	for {
		p.mu.Lock()
		if p.stats.TotalConnections >= p.cfg.MinConnections || p.closed.Load() {
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		c, err := p.openConn(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Health sweep failed to replenish connection")
			break
		}

		p.mu.Lock()
		p.stats.TotalConnections++
		p.stats.AvailableConnections++
		p.stats.TotalConnectionsCreated++
		p.mu.Unlock()
		p.available <- c
	}

	if len(idle) > 0 {
		log.Trace().
			Int("swept", len(idle)).
			Int("healthy", healthy).
			Msg("Health sweep completed")
	}
}

// Close stops the health monitor, waits for any in-flight sweep, closes all
// idle connections, and zeroes the statistics. Leased connections are not
// reclaimed; their Release closes them. Safe to call multiple times.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)

		if p.monitorStop != nil {
			close(p.monitorStop)
			<-p.monitorDone
		}

		for {
			select {
			case c := <-p.available:
				if err := c.db.Close(); err != nil && p.closeErr == nil {
					p.closeErr = err
				}
			default:
				p.mu.Lock()
				p.stats = ConnectionStats{}
				p.mu.Unlock()
				log.Debug().Msg("Connection pool closed")
				return
			}
		}
	})

	return p.closeErr
}
