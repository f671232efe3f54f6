// Package dbpool manages the process-wide pool of database connections.
//
// A Pool starts Uninitialized and moves to Ready on the first Initialize or
// Acquire call. Shutdown moves it through Closing to Closed; nothing leaves
// Closed. The free set and the outstanding count are owned by puddle, which
// never hands one resource to two callers and never lets the acquired count
// exceed MaxPoolSize.
package dbpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"
)

type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const closeTimeout = 5 * time.Second

type Option func(*Pool)

// WithDialer replaces the pgx dialer built from the config URL.
func WithDialer(d Dialer) Option {
	return func(p *Pool) { p.dial = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Pool) { p.log = log }
}

type Pool struct {
	cfg  Config
	dial Dialer
	log  *zap.Logger

	mu       sync.Mutex
	state    State
	initDone chan struct{}
	initErr  error
	res      *puddle.Pool[DBConn]
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New returns an Uninitialized pool. No connection is opened until
// Initialize or the first Acquire.
func New(cfg Config, opts ...Option) *Pool {
	p := &Pool{
		cfg:   cfg.withDefaults(),
		log:   zap.NewNop(),
		state: StateUninitialized,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.String("component", "dbpool"), zap.String("pool", p.cfg.Name))
	return p
}

func (p *Pool) Config() Config {
	return p.cfg
}

func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Initialize validates the config, opens MinIdle connections and starts the
// idle reaper. Concurrent callers wait for the first one and share its
// result. It returns nil once the pool is Ready.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateUninitialized:
		p.state = StateInitializing
		p.initDone = make(chan struct{})
		p.mu.Unlock()

		res, err := p.open(ctx)

		p.mu.Lock()
		if err != nil {
			p.initErr = err
			p.state = StateClosed
			p.log.Error("connection pool initialization failed", zap.Error(err))
		} else {
			p.res = res
			p.stop = make(chan struct{})
			p.state = StateReady
			p.wg.Add(1)
			go p.reapLoop(res, p.stop)
			p.log.Info("connection pool ready",
				zap.Int32("max_pool_size", p.cfg.MaxPoolSize),
				zap.Int32("min_idle", p.cfg.MinIdle),
				zap.Duration("idle_timeout", p.cfg.IdleTimeout),
				zap.Duration("connection_timeout", p.cfg.ConnectionTimeout))
		}
		close(p.initDone)
		p.mu.Unlock()
		return err

	case StateInitializing:
		done := p.initDone
		p.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.initErr

	case StateReady:
		p.mu.Unlock()
		return nil

	default:
		err := p.initErr
		p.mu.Unlock()
		if err != nil {
			return err
		}
		return ErrPoolClosed
	}
}

func (p *Pool) open(ctx context.Context) (*puddle.Pool[DBConn], error) {
	if err := p.cfg.validate(p.dial == nil); err != nil {
		return nil, err
	}
	if p.dial == nil {
		d, err := PgxDialer(p.cfg)
		if err != nil {
			return nil, err
		}
		p.dial = d
	}

	res, err := puddle.NewPool(&puddle.Config[DBConn]{
		Constructor: p.construct,
		Destructor:  p.destruct,
		MaxSize:     p.cfg.MaxPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	for i := int32(0); i < p.cfg.MinIdle; i++ {
		if err := res.CreateResource(ctx); err != nil {
			res.Close()
			return nil, fmt.Errorf("%w: open connection: %w", ErrConfiguration, err)
		}
	}
	return res, nil
}

// Acquire borrows a connection, initializing the pool first if needed. It
// waits at most ConnectionTimeout (or until ctx is done) for a free slot.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	res, err := p.ready(ctx)
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
	defer cancel()

	r, err := res.Acquire(acquireCtx)
	if err != nil {
		return nil, p.acquireError(ctx, res, err)
	}
	return &Conn{res: r}, nil
}

func (p *Pool) ready(ctx context.Context) (*puddle.Pool[DBConn], error) {
	p.mu.Lock()
	state, res, initErr := p.state, p.res, p.initErr
	p.mu.Unlock()

	switch state {
	case StateReady:
		return res, nil
	case StateUninitialized, StateInitializing:
		if err := p.Initialize(ctx); err != nil {
			return nil, err
		}
		return p.ready(ctx)
	default:
		if initErr != nil {
			return nil, initErr
		}
		return nil, ErrPoolClosed
	}
}

func (p *Pool) acquireError(ctx context.Context, res *puddle.Pool[DBConn], err error) error {
	switch {
	case errors.Is(err, puddle.ErrClosedPool):
		return ErrPoolClosed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		if ctx.Err() != nil {
			return fmt.Errorf("acquire connection: %w", ctx.Err())
		}
		if res.Stat().AcquiredResources() < p.cfg.MaxPoolSize {
			p.log.Warn("open connection timed out",
				zap.Duration("connection_timeout", p.cfg.ConnectionTimeout))
			return fmt.Errorf("%w: open connection: no answer within %s", ErrStorage, p.cfg.ConnectionTimeout)
		}
		p.log.Warn("connection pool exhausted",
			zap.Duration("connection_timeout", p.cfg.ConnectionTimeout))
		return fmt.Errorf("%w: no connection within %s", ErrPoolExhausted, p.cfg.ConnectionTimeout)
	default:
		return fmt.Errorf("%w: open connection: %w", ErrStorage, err)
	}
}

// Release returns c to the pool. It is safe to call more than once.
func (p *Pool) Release(c *Conn) {
	if c != nil {
		c.Release()
	}
}

// With acquires a connection, runs fn and releases the connection on every
// exit path. A connection that fn left broken is closed instead of reused.
func (p *Pool) With(ctx context.Context, fn func(*Conn) error) (err error) {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			c.destroy()
			panic(r)
		}
		c.release(err)
	}()
	return fn(c)
}

// Ping checks that a connection can be borrowed and reaches the server.
func (p *Pool) Ping(ctx context.Context) error {
	return p.With(ctx, func(c *Conn) error {
		if err := c.Ping(ctx); err != nil {
			return fmt.Errorf("%w: ping: %w", ErrStorage, err)
		}
		return nil
	})
}

// Shutdown closes every connection and rejects later Acquire calls. Calls
// after the first are no-ops. It waits for outstanding handles to be released.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.state == StateInitializing {
		done := p.initDone
		p.mu.Unlock()
		<-done
		p.mu.Lock()
	}

	switch p.state {
	case StateUninitialized:
		p.state = StateClosed
		p.mu.Unlock()
		return
	case StateClosing, StateClosed:
		p.mu.Unlock()
		return
	}

	p.state = StateClosing
	res := p.res
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	res.Close()

	p.mu.Lock()
	p.state = StateClosed
	p.mu.Unlock()
	p.log.Info("connection pool closed")
}

func (p *Pool) construct(ctx context.Context) (DBConn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
	defer cancel()

	conn, err := p.dial(ctx)
	if err != nil {
		p.log.Warn("open connection failed", zap.Error(err))
		return nil, err
	}
	p.log.Debug("opened connection")
	return conn, nil
}

func (p *Pool) destruct(conn DBConn) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := conn.Close(ctx); err != nil {
		p.log.Debug("close connection", zap.Error(err))
		return
	}
	p.log.Debug("closed connection")
}

func (p *Pool) reapLoop(res *puddle.Pool[DBConn], stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.reapIdle(res)
		}
	}
}

// reapIdle closes connections idle longer than IdleTimeout while more than
// MinIdle are open, then tops the pool back up to MinIdle.
func (p *Pool) reapIdle(res *puddle.Pool[DBConn]) {
	idle := res.AcquireAllIdle()
	total := res.Stat().TotalResources()

	closed := 0
	for _, r := range idle {
		if total > p.cfg.MinIdle && r.IdleDuration() > p.cfg.IdleTimeout {
			r.Destroy()
			total--
			closed++
			continue
		}
		r.ReleaseUnused()
	}
	if closed > 0 {
		p.log.Debug("closed idle connections", zap.Int("count", closed))
	}

	for n := total; n < p.cfg.MinIdle; n++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectionTimeout)
		err := res.CreateResource(ctx)
		cancel()
		if err != nil {
			p.log.Warn("refill idle connections", zap.Error(err))
			return
		}
	}
}
