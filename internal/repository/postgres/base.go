package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

type txKey struct{}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
	// q runs statements outside a transaction.
	q queryer
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db, q: db}
}

// WithinTx executes fn within a transaction carried by the returned context.
// Nested calls join the outer transaction.
func (r *BaseRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *BaseRepository) conn(ctx context.Context) (queryer, bool) {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx, true
	}
	return r.q, false
}

// get loads a single row into dest. Missing rows become NotFound for resource.
// Outside a transaction a transient connection failure is retried once.
func (r *BaseRepository) get(ctx context.Context, resource string, dest interface{}, query string, args ...interface{}) error {
	q, inTx := r.conn(ctx)
	query = q.Rebind(query)

	err := q.GetContext(ctx, dest, query, args...)
	if err != nil && !inTx && isTransient(err) {
		err = q.GetContext(ctx, dest, query, args...)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}
	return err
}

func (r *BaseRepository) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	q, inTx := r.conn(ctx)
	query = q.Rebind(query)

	err := q.SelectContext(ctx, dest, query, args...)
	if err != nil && !inTx && isTransient(err) {
		err = q.SelectContext(ctx, dest, query, args...)
	}
	return err
}

// exec runs a write. Writes are never retried.
func (r *BaseRepository) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	q, _ := r.conn(ctx)
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

// execOne runs a write that must touch exactly one row.
func (r *BaseRepository) execOne(ctx context.Context, resource, query string, args ...interface{}) error {
	result, err := r.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource, nil)
	}
	return nil
}

func isTransient(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}

// isUniqueViolation recognises unique constraint failures from postgres and sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// NewTxManager exposes transactions to the service layer.
func NewTxManager(db *sqlx.DB) *BaseRepository {
	base := NewBaseRepository(db)
	return &base
}
