package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/db"
	"github.com/sells-group/futuretree/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	*core
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	s := newPostgresFromPool(pool)
	s.closeFn = pool.Close
	return s, nil
}

func newPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{core: newCore(pgxBackend{pgxQuerier{pool}}, "postgres"), pool: pool}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// UpsertCaseStudies loads the corpus through COPY and a single merge. Rows
// that did not change are not counted.
func (s *PostgresStore) UpsertCaseStudies(ctx context.Context, cases []model.CaseStudy) (int64, error) {
	rows := make([][]any, 0, len(cases))
	for i := range cases {
		cs := s.prepareCaseStudy(&cases[i])
		row, err := caseStudyRow(cs)
		if err != nil {
			return 0, s.wrap(err, "case study %s", cs.ID)
		}
		rows = append(rows, row)
	}
	var update []string
	for _, col := range caseStudyColumns[1:] {
		if col != "created_at" {
			update = append(update, col)
		}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:         "case_studies",
		Columns:       caseStudyColumns,
		ConflictKeys:  []string{"id"},
		UpdateCols:    update,
		SkipUnchanged: true,
	}, rows)
	if err != nil {
		return 0, s.wrap(err, "upsert case studies")
	}
	return n, nil
}

// ReplaceNodes swaps a path's decision tree, loading the new nodes with COPY.
func (s *PostgresStore) ReplaceNodes(ctx context.Context, pathID string, nodes []model.DecisionNode) error {
	rows := make([][]any, 0, len(nodes))
	for i := range nodes {
		row, err := nodeRow(pathID, &nodes[i])
		if err != nil {
			return s.wrap(err, "node %s", nodes[i].ID)
		}
		rows = append(rows, row)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return s.wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM decision_nodes WHERE path_id = $1`, pathID); err != nil {
		return s.wrap(err, "clear nodes of %s", pathID)
	}
	if _, err := db.CopyFrom(ctx, tx, "decision_nodes", nodeColumns, rows); err != nil {
		return s.wrap(err, "copy nodes of %s", pathID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

type pgxQuerier struct {
	conn db.Pool
}

func (q pgxQuerier) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := q.conn.Exec(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q pgxQuerier) query(ctx context.Context, query string, args ...any) (rowIter, error) {
	return q.conn.Query(ctx, rebind(query), args...)
}

func (q pgxQuerier) queryRow(ctx context.Context, query string, args ...any) scannable {
	return q.conn.QueryRow(ctx, rebind(query), args...)
}

type pgxBackend struct {
	pgxQuerier
}

func (b pgxBackend) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := b.conn.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(pgxQuerier{tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

func (b pgxBackend) isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isUniqueViolation reports a 23505 unique_violation.
func (b pgxBackend) isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
