package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/futuretree/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	*core
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The pool is limited to one connection so transactions serialize.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{core: newCore(&sqliteBackend{sqlQuerier{db}, db}, "sqlite"), db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS business_profiles (
	id                TEXT PRIMARY KEY,
	industry          TEXT NOT NULL,
	sub_industry      TEXT,
	company_size      TEXT NOT NULL,
	years_in_business INTEGER,
	location          TEXT,
	qualifications    TEXT NOT NULL DEFAULT '{}',
	social_proof      TEXT NOT NULL DEFAULT '{}',
	current_revenue   TEXT NOT NULL,
	growth_rate       TEXT,
	biggest_challenge TEXT,
	primary_goal      TEXT,
	analysis          TEXT,
	supersedes_id     TEXT REFERENCES business_profiles(id),
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS case_studies (
	id               TEXT PRIMARY KEY,
	company_name     TEXT NOT NULL,
	industry         TEXT NOT NULL,
	sub_industry     TEXT,
	summary          TEXT NOT NULL DEFAULT '',
	strategy_type    TEXT NOT NULL,
	starting_state   TEXT NOT NULL DEFAULT '{}',
	ending_state     TEXT NOT NULL DEFAULT '{}',
	timeline         TEXT NOT NULL DEFAULT '{}',
	capital_invested REAL,
	outcomes         TEXT NOT NULL DEFAULT '{}',
	capabilities     TEXT NOT NULL DEFAULT '[]',
	key_actions      TEXT NOT NULL DEFAULT '[]',
	advice           TEXT NOT NULL DEFAULT '',
	quotes           TEXT NOT NULL DEFAULT '[]',
	lessons_learned  TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT '',
	verified         INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS matches (
	profile_id      TEXT NOT NULL REFERENCES business_profiles(id),
	case_study_id   TEXT NOT NULL REFERENCES case_studies(id),
	rank            INTEGER NOT NULL,
	overall_score   REAL NOT NULL,
	breakdown       TEXT NOT NULL,
	match_reason    TEXT NOT NULL DEFAULT '',
	key_takeaways   TEXT NOT NULL DEFAULT '[]',
	strategy_type   TEXT NOT NULL,
	weights_version TEXT NOT NULL,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	UNIQUE (profile_id, case_study_id)
);

CREATE TABLE IF NOT EXISTS strategic_paths (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	strategy_type      TEXT NOT NULL UNIQUE,
	best_for           TEXT NOT NULL DEFAULT '[]',
	typical_timeline   TEXT NOT NULL DEFAULT '',
	base_risk          TEXT NOT NULL DEFAULT '',
	metrics            TEXT NOT NULL DEFAULT '{}',
	model_version      INTEGER NOT NULL DEFAULT 0,
	root_node_id       TEXT,
	last_calculated_at DATETIME,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_nodes (
	id                  TEXT PRIMARY KEY,
	path_id             TEXT NOT NULL REFERENCES strategic_paths(id),
	parent_id           TEXT REFERENCES decision_nodes(id),
	node_type           TEXT NOT NULL,
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	disclosure_level    INTEGER NOT NULL DEFAULT 1,
	sort_order          INTEGER NOT NULL DEFAULT 0,
	estimated_cost      REAL,
	estimated_months    REAL,
	success_probability REAL,
	risk_factors        TEXT NOT NULL DEFAULT '[]',
	dependencies        TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS path_explorations (
	id                 TEXT PRIMARY KEY,
	profile_id         TEXT NOT NULL REFERENCES business_profiles(id),
	path_id            TEXT NOT NULL REFERENCES strategic_paths(id),
	nodes_expanded     TEXT NOT NULL DEFAULT '[]',
	max_depth          INTEGER NOT NULL DEFAULT 0,
	time_spent_seconds INTEGER NOT NULL DEFAULT 0,
	exported           INTEGER NOT NULL DEFAULT 0,
	converted          INTEGER NOT NULL DEFAULT 0,
	started_at         DATETIME NOT NULL,
	ended_at           DATETIME
);

CREATE TABLE IF NOT EXISTS path_outcomes (
	id                        TEXT PRIMARY KEY,
	exploration_id            TEXT NOT NULL REFERENCES path_explorations(id),
	path_id                   TEXT NOT NULL REFERENCES strategic_paths(id),
	model_version             INTEGER NOT NULL,
	predicted_months          REAL NOT NULL,
	predicted_cost            REAL NOT NULL,
	predicted_success         REAL NOT NULL,
	actual_months             REAL,
	actual_cost               REAL,
	actual_success            INTEGER,
	progress_percent          REAL,
	would_recommend           INTEGER,
	lessons                   TEXT,
	timeline_variance_percent REAL,
	cost_variance_percent     REAL,
	failure_layer             TEXT,
	status                    TEXT NOT NULL DEFAULT 'pending',
	committed_at              DATETIME NOT NULL,
	resolved_at               DATETIME
);

CREATE TABLE IF NOT EXISTS recalculation_jobs (
	id                  TEXT PRIMARY KEY,
	scope               TEXT NOT NULL,
	scope_key           TEXT NOT NULL,
	path_id             TEXT REFERENCES strategic_paths(id),
	node_id             TEXT,
	trigger_type        TEXT NOT NULL,
	trigger_ref         TEXT,
	status              TEXT NOT NULL DEFAULT 'pending',
	metrics_updated     TEXT,
	previous_version    INTEGER NOT NULL DEFAULT 0,
	new_version         INTEGER,
	outcomes_considered INTEGER NOT NULL DEFAULT 0,
	coalesced_triggers  INTEGER NOT NULL DEFAULT 0,
	error_message       TEXT,
	created_at          DATETIME NOT NULL,
	started_at          DATETIME,
	completed_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_case_studies_strategy ON case_studies(strategy_type);
CREATE INDEX IF NOT EXISTS idx_decision_nodes_path ON decision_nodes(path_id);
CREATE INDEX IF NOT EXISTS idx_path_outcomes_path_status ON path_outcomes(path_id, status);
CREATE INDEX IF NOT EXISTS idx_recalculation_jobs_path ON recalculation_jobs(path_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_recalculation_jobs_lock
	ON recalculation_jobs(scope_key) WHERE status = 'processing';
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertCaseStudies(ctx context.Context, cases []model.CaseStudy) (int64, error) {
	return s.upsertCaseStudiesRowwise(ctx, cases)
}

// sqlConn is satisfied by *sql.DB and *sql.Tx.
type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlQuerier struct {
	conn sqlConn
}

func (q sqlQuerier) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q sqlQuerier) query(ctx context.Context, query string, args ...any) (rowIter, error) {
	rows, err := q.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (q sqlQuerier) queryRow(ctx context.Context, query string, args ...any) scannable {
	return q.conn.QueryRowContext(ctx, query, args...)
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

type sqliteBackend struct {
	sqlQuerier
	db *sql.DB
}

func (b *sqliteBackend) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(sqlQuerier{tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (b *sqliteBackend) isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (b *sqliteBackend) isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
