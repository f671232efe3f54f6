package dbpool

import "errors"

var (
	// ErrConfiguration is returned when the pool cannot be initialized from its
	// config, either because a field is invalid or the database is unreachable.
	ErrConfiguration = errors.New("pool configuration error")
	// ErrPoolExhausted is returned when no connection frees up within the
	// connection timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrPoolClosed is returned by Acquire after Shutdown.
	ErrPoolClosed = errors.New("connection pool closed")
	// ErrStorage marks failures talking to the database once the pool is up.
	ErrStorage = errors.New("storage error")
	// ErrConnReleased is returned when a handle is used after Release.
	ErrConnReleased = errors.New("connection already released")
)

// IsRetryable reports whether err is a transient failure the caller may
// surface as "try again later".
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPoolExhausted) || errors.Is(err, ErrStorage)
}
