package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"feedback-app/internal/dbpool"
	"feedback-app/internal/models"
)

// ErrNotFound is returned by Get when no row has the requested id.
var ErrNotFound = errors.New("feedback not found")

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS feedback_form (
    id       BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    email    TEXT NOT NULL,
    mobile   TEXT NOT NULL,
    feedback TEXT NOT NULL
)`

// Submission is one form post as received from the client.
type Submission struct {
	Email    string
	Mobile   string
	Feedback string
}

// Trimmed returns s with surrounding whitespace removed from every field.
func (s Submission) Trimmed() Submission {
	return Submission{
		Email:    strings.TrimSpace(s.Email),
		Mobile:   strings.TrimSpace(s.Mobile),
		Feedback: strings.TrimSpace(s.Feedback),
	}
}

// ConnPool is the scoped-acquisition half of *dbpool.Pool.
type ConnPool interface {
	With(ctx context.Context, fn func(*dbpool.Conn) error) error
}

type txStarter interface {
	BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error)
}

type Repository struct {
	pool ConnPool
	log  *zap.Logger
}

func NewRepository(pool ConnPool, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{pool: pool, log: log.With(zap.String("component", "feedback_repository"))}
}

// Save stores one submission and returns it with the id the database
// assigned. Pool errors come back unchanged; database errors wrap
// dbpool.ErrStorage.
func (r *Repository) Save(ctx context.Context, s Submission) (models.Feedback, error) {
	s = s.Trimmed()

	var id int64
	err := r.pool.With(ctx, func(c *dbpool.Conn) error {
		var err error
		id, err = r.insert(ctx, c, s)
		return err
	})
	if err != nil {
		return models.Feedback{}, err
	}

	r.log.Info("saved feedback", zap.Int64("id", id))
	return models.Feedback{ID: id, Email: s.Email, Mobile: s.Mobile, Feedback: s.Feedback}, nil
}

// TrySave is Save for callers that only need to know whether the row was
// written. The cause of a failure is logged, never returned.
func (r *Repository) TrySave(ctx context.Context, s Submission) bool {
	if _, err := r.Save(ctx, s); err != nil {
		r.log.Error("failed to save feedback",
			zap.Error(err),
			zap.Bool("retryable", dbpool.IsRetryable(err)))
		return false
	}
	return true
}

func (r *Repository) insert(ctx context.Context, conn txStarter, s Submission) (id int64, err error) {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx: %w", dbpool.ErrStorage, err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.log.Error("failed to rollback feedback transaction", zap.Error(rbErr))
			}
			return
		}

		if commitErr := tx.Commit(ctx); commitErr != nil {
			id = 0
			err = fmt.Errorf("%w: commit tx: %w", dbpool.ErrStorage, commitErr)
		}
	}()

	err = tx.QueryRow(ctx, `
        INSERT INTO feedback_form (email, mobile, feedback)
        VALUES ($1, $2, $3)
        RETURNING id
    `, s.Email, s.Mobile, s.Feedback).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: insert feedback: %w", dbpool.ErrStorage, err)
	}
	return id, nil
}

// Get returns the record with the given id.
func (r *Repository) Get(ctx context.Context, id int64) (models.Feedback, error) {
	var f models.Feedback
	err := r.pool.With(ctx, func(c *dbpool.Conn) error {
		err := c.QueryRow(ctx, `
            SELECT id, email, mobile, feedback FROM feedback_form WHERE id = $1
        `, id).Scan(&f.ID, &f.Email, &f.Mobile, &f.Feedback)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: select feedback: %w", dbpool.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return models.Feedback{}, err
	}
	return f, nil
}

// List returns up to limit records, newest first. limit is clamped to
// [1, 1000]; zero or negative means 100.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Feedback, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	items := make([]models.Feedback, 0)
	err := r.pool.With(ctx, func(c *dbpool.Conn) error {
		rows, err := c.Query(ctx, `
            SELECT id, email, mobile, feedback FROM feedback_form ORDER BY id DESC LIMIT $1
        `, limit)
		if err != nil {
			return fmt.Errorf("%w: list feedback: %w", dbpool.ErrStorage, err)
		}
		defer rows.Close()

		for rows.Next() {
			var f models.Feedback
			if err := rows.Scan(&f.ID, &f.Email, &f.Mobile, &f.Feedback); err != nil {
				return fmt.Errorf("%w: scan feedback: %w", dbpool.ErrStorage, err)
			}
			items = append(items, f)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: list feedback: %w", dbpool.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Migrate creates the feedback table if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.pool.With(ctx, func(c *dbpool.Conn) error {
		if _, err := c.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("%w: create table: %w", dbpool.ErrStorage, err)
		}
		r.log.Info("feedback schema ready")
		return nil
	})
}
