package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// flakyQueryer fails the first failures calls of each kind with a dropped
// connection and then delegates to the real database.
type flakyQueryer struct {
	queryer
	failures int
	gets     int
	selects  int
	execs    int
}

func (f *flakyQueryer) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	f.gets++
	if f.gets <= f.failures {
		return driver.ErrBadConn
	}
	return f.queryer.GetContext(ctx, dest, query, args...)
}

func (f *flakyQueryer) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	f.selects++
	if f.selects <= f.failures {
		return driver.ErrBadConn
	}
	return f.queryer.SelectContext(ctx, dest, query, args...)
}

func (f *flakyQueryer) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	f.execs++
	if f.execs <= f.failures {
		return nil, driver.ErrBadConn
	}
	return f.queryer.ExecContext(ctx, query, args...)
}

func newFlakyBase(t *testing.T, failures int) (BaseRepository, *flakyQueryer) {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	flaky := &flakyQueryer{queryer: db, failures: failures}
	base := NewBaseRepository(db)
	base.q = flaky
	return base, flaky
}

func TestReadRetriedOnceAfterDroppedConnection(t *testing.T) {
	base, flaky := newFlakyBase(t, 1)
	ctx := context.Background()

	var one int
	require.NoError(t, base.get(ctx, "row", &one, `SELECT 1`))
	assert.Equal(t, 1, one)
	assert.Equal(t, 2, flaky.gets)

	var rows []int
	require.NoError(t, base.selectAll(ctx, &rows, `SELECT 1`))
	assert.Equal(t, []int{1}, rows)
	assert.Equal(t, 2, flaky.selects)
}

func TestReadRetriedAtMostOnce(t *testing.T) {
	base, flaky := newFlakyBase(t, 2)

	var one int
	err := base.get(context.Background(), "row", &one, `SELECT 1`)
	assert.True(t, errors.Is(err, driver.ErrBadConn))
	assert.Equal(t, 2, flaky.gets)
}

func TestWriteNotRetried(t *testing.T) {
	base, flaky := newFlakyBase(t, 1)

	_, err := base.exec(context.Background(), `SELECT 1`)
	assert.True(t, errors.Is(err, driver.ErrBadConn))
	assert.Equal(t, 1, flaky.execs)
}

func TestReadNotRetriedForOtherErrors(t *testing.T) {
	base, flaky := newFlakyBase(t, 0)

	var one int
	err := base.get(context.Background(), "row", &one, `SELECT 1 WHERE 1 = 0`)
	assert.Error(t, err)
	assert.Equal(t, 1, flaky.gets)
}
