package dbpool

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBConn is the part of *pgx.Conn the pool hands out.
type DBConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens one physical connection.
type Dialer func(ctx context.Context) (DBConn, error)

// PgxDialer returns a Dialer connecting with pgx. Credentials in cfg override
// the ones embedded in the URL.
func PgxDialer(cfg Config) (Dialer, error) {
	connCfg, err := pgx.ParseConfig(normalizeURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %w", ErrConfiguration, err)
	}
	if cfg.Username != "" {
		connCfg.User = cfg.Username
	}
	if cfg.Password != "" {
		connCfg.Password = cfg.Password
	}
	if cfg.Name != "" {
		connCfg.RuntimeParams["application_name"] = cfg.Name
	}

	return func(ctx context.Context) (DBConn, error) {
		conn, err := pgx.ConnectConfig(ctx, connCfg)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}, nil
}

// normalizeURL accepts JDBC style URLs (jdbc:postgresql://...) as well.
func normalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if len(url) >= 5 && strings.EqualFold(url[:5], "jdbc:") {
		return url[5:]
	}
	return url
}
