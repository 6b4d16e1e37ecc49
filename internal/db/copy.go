package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom loads rows into table over the COPY protocol. The table may be
// schema-qualified. A copy that reports fewer rows than were sent is an error,
// so callers inside a transaction roll back instead of committing a partial
// load.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: copy into %s", table)
	}
	if n != int64(len(rows)) {
		return n, eris.Errorf("db: copy into %s: wrote %d of %d rows", table, n, len(rows))
	}
	return n, nil
}

func identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}
