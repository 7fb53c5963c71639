// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
// Queries are written with `?` placeholders and rebound for the driver.
package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
)

type txKey struct{}

type transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) core.Transactor {
	return &transactor{db: db}
}

// WithinTx runs fn in a database transaction, committed if fn succeeds.
// Nested calls join the outer transaction.
func (tr *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := tr.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// base gives repositories the executor of the ctx transaction, if any.
type base struct {
	db *sqlx.DB
}

func (b base) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return b.db
}

func (b base) inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

func (b base) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ext := b.ext(ctx)
	return sqlx.GetContext(ctx, ext, dest, ext.Rebind(query), args...)
}

func (b base) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ext := b.ext(ctx)
	return sqlx.SelectContext(ctx, ext, dest, ext.Rebind(query), args...)
}

func (b base) exec(ctx context.Context, query string, args ...interface{}) (int, error) {
	ext := b.ext(ctx)
	res, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (b base) namedExec(ctx context.Context, query string, arg interface{}) (int, error) {
	res, err := sqlx.NamedExecContext(ctx, b.ext(ctx), query, arg)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// count runs a SELECT COUNT(*) on the given FROM clause.
func (b base) count(ctx context.Context, from string, w where) (int, error) {
	var n int
	err := b.get(ctx, &n, "SELECT COUNT(*) FROM "+from+w.String(), w.args...)
	return n, err
}

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, "("+cond+")")
	w.args = append(w.args, args...)
}

func (w where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// search adds a case-insensitive match of keyword on any of the columns.
func (w *where) search(keyword string, columns ...string) {
	if keyword == "" {
		return
	}
	val := "%" + escapeLike(keyword) + "%"
	parts := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col+" ILIKE ?")
		args = append(args, val)
	}
	w.add(strings.Join(parts, " OR "), args...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// orderBy renders the ORDER BY clause; orderings are already restricted to known columns.
func orderBy(ordering []core.DBOrdering, prefix string, tiebreak string) string {
	parts := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		parts = append(parts, prefix+ord.String())
	}
	if tiebreak != "" {
		parts = append(parts, tiebreak)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func limitOffset(page core.Pagination) string {
	if !page.Enabled() {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", page.PageSize, page.Offset())
}

// validID reports whether id may be compared to a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func newID() string {
	return uuid.New().String()
}

// uniqueViolation returns the violated constraint name, if err is a unique violation.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}

func foreignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// trapNoRows maps "no rows" errors to notFound.
func trapNoRows(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func forUpdate(b base, ctx context.Context) string {
	if b.inTx(ctx) {
		return " FOR UPDATE"
	}
	return ""
}
