// Package store persists profiles, the case-study corpus, strategic paths,
// outcomes, and recalculation jobs in SQLite or Postgres.
package store

import (
	"context"
	"time"

	"github.com/sells-group/futuretree/internal/model"
)

// CaseStudyFilter narrows ListCaseStudies.
type CaseStudyFilter struct {
	StrategyType model.StrategyType `json:"strategyType,omitempty"`
	VerifiedOnly bool               `json:"verifiedOnly,omitempty"`
}

// OutcomeFilter narrows ListOutcomes.
type OutcomeFilter struct {
	PathID string              `json:"pathId,omitempty"`
	Status model.OutcomeStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
}

// JobFilter narrows ListJobs. Jobs are returned newest first.
type JobFilter struct {
	PathID string          `json:"pathId,omitempty"`
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// RecalcCommit is the result of one successful recalculation, written in a
// single transaction by CommitRecalculation.
type RecalcCommit struct {
	JobID              string
	PathID             string
	ExpectedVersion    int
	Metrics            model.PathMetrics
	Change             model.MetricsChange
	OutcomesConsidered int
	At                 time.Time
}

// CommitHook runs inside the recalculation transaction after the metrics
// write and before the version increment. A non-nil error rolls back the
// whole commit.
type CommitHook func(ctx context.Context, jobID string) error

// Store defines the persistence interface for matching and outcome learning.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, p *model.BusinessProfile) error
	GetProfile(ctx context.Context, id string) (*model.BusinessProfile, error)
	SetProfileAnalysis(ctx context.Context, id string, a model.ProfileAnalysis) error

	// Case studies
	UpsertCaseStudies(ctx context.Context, cases []model.CaseStudy) (int64, error)
	ListCaseStudies(ctx context.Context, filter CaseStudyFilter) ([]model.CaseStudy, error)

	// Matches
	UpsertMatches(ctx context.Context, profileID string, matches []model.Match) error
	ListMatches(ctx context.Context, profileID string) ([]model.Match, error)

	// Paths and decision trees
	UpsertPath(ctx context.Context, p *model.StrategicPath) error
	GetPath(ctx context.Context, id string) (*model.StrategicPath, error)
	ListPaths(ctx context.Context) ([]model.StrategicPath, error)
	ReplaceNodes(ctx context.Context, pathID string, nodes []model.DecisionNode) error
	ListNodes(ctx context.Context, pathID string) ([]model.DecisionNode, error)
	GetNode(ctx context.Context, id string) (*model.DecisionNode, error)

	// Explorations and outcomes
	CreateExploration(ctx context.Context, e *model.PathExploration) error
	GetExploration(ctx context.Context, id string) (*model.PathExploration, error)
	UpdateExploration(ctx context.Context, e *model.PathExploration) error
	EndExploration(ctx context.Context, id string, at time.Time) error
	CreateOutcome(ctx context.Context, o *model.PathOutcome) error
	GetOutcome(ctx context.Context, id string) (*model.PathOutcome, error)
	ResolveOutcome(ctx context.Context, o *model.PathOutcome) error
	ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.PathOutcome, error)

	// Recalculation jobs
	AcquireJob(ctx context.Context, job *model.MetricRecalculationJob) (*model.MetricRecalculationJob, bool, error)
	CommitRecalculation(ctx context.Context, c RecalcCommit) (int, error)
	FailJob(ctx context.Context, jobID, message string, at time.Time) error
	GetJob(ctx context.Context, id string) (*model.MetricRecalculationJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.MetricRecalculationJob, error)
	RecoverStaleJobs(ctx context.Context, startedBefore, at time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
