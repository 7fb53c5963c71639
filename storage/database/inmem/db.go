// Package inmemdb implements the repositories in memory. It backs the test suites and the API's
// -inmem development mode; nothing is persisted.
package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/hackcamp/core"
	"github.com/trezcool/hackcamp/core/application"
	"github.com/trezcool/hackcamp/core/certificate"
	"github.com/trezcool/hackcamp/core/chat"
	"github.com/trezcool/hackcamp/core/lesson"
	"github.com/trezcool/hackcamp/core/task"
	"github.com/trezcool/hackcamp/core/user"
)

type (
	readKey struct {
		channelID string
		userID    string
	}

	tables struct {
		users        map[string]user.User
		applications map[string]application.Application
		certificates map[string]certificate.Certificate
		channels     map[string]chat.Channel
		messages     map[string]chat.Message
		reads        map[readKey]time.Time
		lessons      map[string]lesson.Lesson
		tasks        map[string]task.Task
		submissions  map[string]task.Submission
	}

	DB struct {
		mu sync.RWMutex
		tables

		txMu sync.Mutex // serializes transactions
	}

	txKey struct{}
)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		users:        make(map[string]user.User),
		applications: make(map[string]application.Application),
		certificates: make(map[string]certificate.Certificate),
		channels:     make(map[string]chat.Channel),
		messages:     make(map[string]chat.Message),
		reads:        make(map[readKey]time.Time),
		lessons:      make(map[string]lesson.Lesson),
		tasks:        make(map[string]task.Task),
		submissions:  make(map[string]task.Submission),
	}
}

// Flush empties every table.
func (db *DB) Flush() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = newTables()
}

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

// undoLog records how to revert each row written within a transaction.
// It is only touched with db.mu held.
type undoLog struct {
	ops []func()
}

// WithinTx runs fn with transactions serialized. When fn fails, the rows fn wrote are restored;
// writes made outside the transaction meanwhile are kept. Nested calls join the outer transaction.
func (tr *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	tr.db.txMu.Lock()
	defer tr.db.txMu.Unlock()

	log := new(undoLog)
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		tr.db.mu.Lock()
		for i := len(log.ops) - 1; i >= 0; i-- {
			log.ops[i]()
		}
		tr.db.mu.Unlock()
		return err
	}
	return nil
}

// put sets m[k] = v, journaling the previous row when ctx is within a transaction.
// Callers hold db.mu.
func put[K comparable, V any](ctx context.Context, m map[K]V, k K, v V) {
	journal(ctx, m, k)
	m[k] = v
}

// remove deletes m[k], journaling the previous row when ctx is within a transaction.
// Callers hold db.mu.
func remove[K comparable, V any](ctx context.Context, m map[K]V, k K) {
	journal(ctx, m, k)
	delete(m, k)
}

func journal[K comparable, V any](ctx context.Context, m map[K]V, k K) {
	log, ok := ctx.Value(txKey{}).(*undoLog)
	if !ok {
		return
	}
	old, existed := m[k]
	log.ops = append(log.ops, func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

// sorting & pagination helpers

// sortItems sorts items by the given orderings, then by tiebreak.
// value returns the value of an item's field, one of string, int, bool, time.Time, *time.Time or *int.
// Nil values sort after non-nil ones, as NULLs do in Postgres ascending orders.
func sortItems[T any](items []T, ordering []core.DBOrdering, value func(item T, field string) interface{}, tiebreak func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(value(items[i], ord.Field), value(items[j], ord.Field))
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return tiebreak(items[i], items[j])
	})
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		return strings.Compare(strings.ToLower(av), strings.ToLower(b.(string)))
	case int:
		bv := b.(int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case time.Time:
		return compareTimes(av, b.(time.Time))
	case *time.Time:
		bv := b.(*time.Time)
		switch {
		case av == nil && bv == nil:
			return 0
		case av == nil:
			return 1
		case bv == nil:
			return -1
		}
		return compareTimes(*av, *bv)
	case *int:
		bv := b.(*int)
		switch {
		case av == nil && bv == nil:
			return 0
		case av == nil:
			return 1
		case bv == nil:
			return -1
		}
		return compare(*av, *bv)
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func paginate[T any](items []T, page core.Pagination) []T {
	start, end := page.Window(len(items))
	return items[start:end]
}

// matches does a case-insensitive search of keyword in any of the values.
func matches(keyword string, values ...string) bool {
	keyword = strings.ToLower(keyword)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), keyword) {
			return true
		}
	}
	return false
}

func inTimeRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
