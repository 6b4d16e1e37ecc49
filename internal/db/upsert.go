package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a staged merge into Table.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // columns in row order
	ConflictKeys []string // unique constraint columns
	UpdateCols   []string // nil means every non-key column

	// SkipUnchanged leaves rows whose update columns already hold the
	// incoming values untouched, so they are not counted as affected.
	SkipUnchanged bool
}

func (cfg UpsertConfig) validate() error {
	switch {
	case cfg.Table == "":
		return eris.New("db: upsert: no table specified")
	case len(cfg.Columns) == 0:
		return eris.New("db: upsert: no columns specified")
	case len(cfg.ConflictKeys) == 0:
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (cfg UpsertConfig) updateColumns() []string {
	if cfg.UpdateCols != nil {
		return cfg.UpdateCols
	}
	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	var cols []string
	for _, c := range cfg.Columns {
		if !keys[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

func (cfg UpsertConfig) stageTable() string {
	return "_stage_" + strings.ReplaceAll(cfg.Table, ".", "_")
}

// mergeSQL builds the INSERT ... SELECT ... ON CONFLICT statement that moves
// staged rows into the target.
func (cfg UpsertConfig) mergeSQL() string {
	target := sanitizeTable(cfg.Table)
	cols := quoteAndJoin(cfg.Columns)
	update := cfg.updateColumns()

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s AS t (%s) SELECT %s FROM %s ON CONFLICT (%s)",
		target, cols, cols, pgx.Identifier{cfg.stageTable()}.Sanitize(), quoteAndJoin(cfg.ConflictKeys))
	if len(update) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}

	set := make([]string, len(update))
	for i, c := range update {
		q := pgx.Identifier{c}.Sanitize()
		set[i] = q + " = EXCLUDED." + q
	}
	b.WriteString(" DO UPDATE SET ")
	b.WriteString(strings.Join(set, ", "))

	if cfg.SkipUnchanged {
		cur := make([]string, len(update))
		inc := make([]string, len(update))
		for i, c := range update {
			q := pgx.Identifier{c}.Sanitize()
			cur[i] = "t." + q
			inc[i] = "EXCLUDED." + q
		}
		fmt.Fprintf(&b, " WHERE (%s) IS DISTINCT FROM (%s)",
			strings.Join(cur, ", "), strings.Join(inc, ", "))
	}
	return b.String()
}

// BulkUpsert stages rows in a temp table with COPY and merges them into the
// target in one transaction. It returns the number of rows inserted or
// changed.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stage := pgx.Identifier{cfg.stageTable()}
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		stage.Sanitize(), sanitizeTable(cfg.Table))
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, stage, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy %d rows for %s", len(rows), cfg.Table)
	}

	tag, err := tx.Exec(ctx, cfg.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
