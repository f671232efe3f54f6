package feedback

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feedback-app/internal/dbpool"
)

// newMockRepository wires a one-connection pool whose only connection is a
// pgxmock conn.
func newMockRepository(t *testing.T) (*Repository, pgxmock.PgxConnIface, *dbpool.Pool) {
	t.Helper()

	mock, err := pgxmock.NewConn()
	require.NoError(t, err)

	pool := dbpool.New(
		dbpool.Config{MaxPoolSize: 1, MinIdle: 0},
		dbpool.WithDialer(func(context.Context) (dbpool.DBConn, error) { return mock, nil }),
	)
	t.Cleanup(pool.Shutdown)

	return NewRepository(pool, zap.NewNop()), mock, pool
}

func TestSave(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        Submission
		setupMock func(pgxmock.PgxConnIface)
		wantID    int64
		wantErr   error
	}{
		{
			name: "happy path trims fields",
			in:   Submission{Email: "  a@b.com ", Mobile: "5551234567\n", Feedback: " great service "},
			setupMock: func(mock pgxmock.PgxConnIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO feedback_form`).
					WithArgs("a@b.com", "5551234567", "great service").
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
				mock.ExpectCommit()
			},
			wantID: 42,
		},
		{
			name: "constraint violation rolls back",
			in:   Submission{Email: "a@b.com", Mobile: "1", Feedback: "x"},
			setupMock: func(mock pgxmock.PgxConnIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO feedback_form`).
					WithArgs("a@b.com", "1", "x").
					WillReturnError(&pgconn.PgError{Code: "23502", Message: "null value in column"})
				mock.ExpectRollback()
			},
			wantErr: dbpool.ErrStorage,
		},
		{
			name: "store unreachable writes nothing",
			in:   Submission{Email: "a@b.com", Mobile: "1", Feedback: "x"},
			setupMock: func(mock pgxmock.PgxConnIface) {
				mock.ExpectBegin().WillReturnError(errors.New("connection refused"))
			},
			wantErr: dbpool.ErrStorage,
		},
		{
			name: "commit failure",
			in:   Submission{Email: "a@b.com", Mobile: "1", Feedback: "x"},
			setupMock: func(mock pgxmock.PgxConnIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO feedback_form`).
					WithArgs("a@b.com", "1", "x").
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
				mock.ExpectCommit().WillReturnError(errors.New("connection lost"))
			},
			wantErr: dbpool.ErrStorage,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo, mock, _ := newMockRepository(t)
			tc.setupMock(mock)

			rec, err := repo.Save(context.Background(), tc.in)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.True(t, dbpool.IsRetryable(err))
				assert.Zero(t, rec.ID)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.wantID, rec.ID)
				assert.Equal(t, tc.in.Trimmed().Email, rec.Email)
				assert.Equal(t, tc.in.Trimmed().Mobile, rec.Mobile)
				assert.Equal(t, tc.in.Trimmed().Feedback, rec.Feedback)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTrySave(t *testing.T) {
	t.Parallel()

	t.Run("stored", func(t *testing.T) {
		t.Parallel()

		repo, mock, _ := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO feedback_form`).
			WithArgs("a@b.com", "5551234567", "great service").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectCommit()

		assert.True(t, repo.TrySave(context.Background(), Submission{
			Email: "a@b.com", Mobile: "5551234567", Feedback: "great service",
		}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("after shutdown", func(t *testing.T) {
		t.Parallel()

		repo, mock, pool := newMockRepository(t)
		require.NoError(t, pool.Initialize(context.Background()))
		pool.Shutdown()

		assert.False(t, repo.TrySave(context.Background(), Submission{Email: "a", Mobile: "b", Feedback: "c"}))
		_, err := repo.Save(context.Background(), Submission{Email: "a", Mobile: "b", Feedback: "c"})
		assert.ErrorIs(t, err, dbpool.ErrPoolClosed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database unreachable", func(t *testing.T) {
		t.Parallel()

		pool := dbpool.New(
			dbpool.Config{MaxPoolSize: 1, MinIdle: 0},
			dbpool.WithDialer(func(context.Context) (dbpool.DBConn, error) {
				return nil, errors.New("dial tcp: connection refused")
			}),
		)
		t.Cleanup(pool.Shutdown)
		require.NoError(t, pool.Initialize(context.Background()))

		repo := NewRepository(pool, zap.NewNop())
		assert.False(t, repo.TrySave(context.Background(), Submission{Email: "a", Mobile: "b", Feedback: "c"}))
	})
}

func TestGet(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		repo, mock, _ := newMockRepository(t)
		mock.ExpectQuery(`SELECT id, email, mobile, feedback FROM feedback_form WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "email", "mobile", "feedback"}).
				AddRow(int64(3), "a@b.com", "555", "nice"))

		f, err := repo.Get(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), f.ID)
		assert.Equal(t, "nice", f.Feedback)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		repo, mock, _ := newMockRepository(t)
		mock.ExpectQuery(`SELECT id, email, mobile, feedback FROM feedback_form WHERE id = \$1`).
			WithArgs(int64(9)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Get(context.Background(), 9)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "default", limit: 0, wantLimit: 100},
		{name: "explicit", limit: 5, wantLimit: 5},
		{name: "clamped", limit: 5000, wantLimit: 1000},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo, mock, _ := newMockRepository(t)
			mock.ExpectQuery(`SELECT id, email, mobile, feedback FROM feedback_form ORDER BY id DESC LIMIT \$1`).
				WithArgs(tc.wantLimit).
				WillReturnRows(pgxmock.NewRows([]string{"id", "email", "mobile", "feedback"}).
					AddRow(int64(2), "b@b.com", "2", "second").
					AddRow(int64(1), "a@b.com", "1", "first"))

			items, err := repo.List(context.Background(), tc.limit)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, int64(2), items[0].ID)
			assert.Equal(t, "first", items[1].Feedback)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	repo, mock, _ := newMockRepository(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS feedback_form`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
