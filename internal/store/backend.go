package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

type rowIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// querier runs ?-placeholder SQL against a connection or transaction.
type querier interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, args ...any) (rowIter, error)
	queryRow(ctx context.Context, query string, args ...any) scannable
}

// backend is the driver-specific half of a store. The shared queries in this
// package are written once against it.
type backend interface {
	querier
	withTx(ctx context.Context, fn func(q querier) error) error
	isNoRows(err error) bool
	isUniqueViolation(err error) bool
}

// core implements every Store method that does not need driver-specific SQL.
type core struct {
	b    backend
	name string
	now  func() time.Time
	hook CommitHook
}

func newCore(b backend, name string) *core {
	return &core{b: b, name: name, now: func() time.Time { return time.Now().UTC() }}
}

// SetCommitHook installs fn to run inside CommitRecalculation.
func (c *core) SetCommitHook(fn CommitHook) { c.hook = fn }

func (c *core) wrap(err error, format string, args ...any) error {
	return eris.Wrapf(err, c.name+": "+format, args...)
}

// notFound maps a no-rows error to model.ErrNotFound.
func (c *core) notFound(err error, entity, id string) error {
	if c.b.isNoRows(err) {
		return eris.Wrapf(model.ErrNotFound, "%s: %s %s", c.name, entity, id)
	}
	return c.wrap(err, "get %s %s", entity, id)
}

func checkRowsAffected(n int64, entity, id string) error {
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

// rebind converts ? placeholders to $1, $2, ... for Postgres.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "marshal json column")
	}
	return string(b), nil
}

func fromJSON(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	return eris.Wrap(json.Unmarshal([]byte(s), v), "unmarshal json column")
}

// enumPtr converts an optional named string to *string for binding.
func enumPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func enumFrom[T ~string](s *string) *T {
	if s == nil {
		return nil
	}
	v := T(*s)
	return &v
}
