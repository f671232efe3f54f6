package dbpool

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"
)

// Conn is a borrowed connection. It belongs to one caller until Release.
type Conn struct {
	res *puddle.Resource[DBConn]

	mu       sync.Mutex
	released bool
	openTx   atomic.Int32
}

func (c *Conn) conn() (DBConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil, ErrConnReleased
	}
	return c.res.Value(), nil
}

func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	conn, err := c.conn()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return conn.Exec(ctx, sql, args...)
}

func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	conn, err := c.conn()
	if err != nil {
		return nil, err
	}
	return conn.Query(ctx, sql, args...)
}

func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	conn, err := c.conn()
	if err != nil {
		return errRow{err: err}
	}
	return conn.QueryRow(ctx, sql, args...)
}

func (c *Conn) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	conn, err := c.conn()
	if err != nil {
		return nil, err
	}
	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.openTx.Add(1)
	return &trackedTx{Tx: tx, c: c}, nil
}

// trackedTx counts a transaction as open until Commit or Rollback returns.
type trackedTx struct {
	pgx.Tx
	c    *Conn
	once sync.Once
}

func (t *trackedTx) Commit(ctx context.Context) error {
	err := t.Tx.Commit(ctx)
	t.done()
	return err
}

func (t *trackedTx) Rollback(ctx context.Context) error {
	err := t.Tx.Rollback(ctx)
	t.done()
	return err
}

func (t *trackedTx) done() {
	t.once.Do(func() { t.c.openTx.Add(-1) })
}

func (c *Conn) Ping(ctx context.Context) error {
	conn, err := c.conn()
	if err != nil {
		return err
	}
	return conn.Ping(ctx)
}

// Release returns the connection to the pool. Later calls are no-ops.
func (c *Conn) Release() {
	c.release(nil)
}

// release returns the connection, or closes it when workErr (or the
// connection itself) shows the link to the server is gone, or when a
// transaction is still open on it.
func (c *Conn) release(workErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.released = true

	if c.openTx.Load() > 0 || broken(c.res.Value(), workErr) {
		c.res.Destroy()
		return
	}
	c.res.Release()
}

func (c *Conn) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.released = true
	c.res.Destroy()
}

func broken(conn DBConn, err error) bool {
	if cc, ok := conn.(interface{ IsClosed() bool }); ok && cc.IsClosed() {
		return true
	}
	if pc, ok := conn.(*pgx.Conn); ok {
		if pg := pc.PgConn(); pg.IsBusy() || pg.TxStatus() != 'I' {
			return true
		}
	}
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		pgconn.Timeout(err)
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}
