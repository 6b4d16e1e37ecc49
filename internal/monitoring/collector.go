package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/store"
)

// listLimit caps how many job rows one collection reads.
const listLimit = 10000

// MetricsSnapshot holds a point-in-time view of recalculation health.
type MetricsSnapshot struct {
	// Recalculation jobs created within the lookback window.
	JobsTotal         int     `json:"jobsTotal"`
	JobsPending       int     `json:"jobsPending"`
	JobsProcessing    int     `json:"jobsProcessing"`
	JobsCompleted     int     `json:"jobsCompleted"`
	JobsFailed        int     `json:"jobsFailed"`
	JobFailRate       float64 `json:"jobFailRate"`
	CoalescedTriggers int     `json:"coalescedTriggers"`

	// Processing jobs of any age that have run longer than the stale cutoff.
	JobsStuck int `json:"jobsStuck"`

	// Outcome learning.
	OutcomesPending          int `json:"outcomesPending"`
	OutcomesResolved         int `json:"outcomesResolved"`
	OutcomesResolvedInWindow int `json:"outcomesResolvedInWindow"`

	// Paths.
	PathCount          int      `json:"pathCount"`
	LowConfidencePaths []string `json:"lowConfidencePaths"`

	// Metadata.
	LookbackHours int       `json:"lookbackHours"`
	CollectedAt   time.Time `json:"collectedAt"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store      store.Store
	staleAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a new metrics collector. Processing jobs started more
// than staleAfter ago count as stuck; zero disables the check.
func NewCollector(st store.Store, staleAfter time.Duration) *Collector {
	return &Collector{
		store:      st,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now()
	snap := &MetricsSnapshot{
		LookbackHours:      lookbackHours,
		CollectedAt:        now,
		LowConfidencePaths: []string{},
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	jobs, err := c.store.ListJobs(ctx, store.JobFilter{Limit: listLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}
	for _, j := range jobs {
		if j.CreatedAt.Before(cutoff) {
			continue
		}
		snap.JobsTotal++
		snap.CoalescedTriggers += j.CoalescedTriggers
		switch j.Status {
		case model.JobPending:
			snap.JobsPending++
		case model.JobProcessing:
			snap.JobsProcessing++
		case model.JobCompleted:
			snap.JobsCompleted++
		case model.JobFailed:
			snap.JobsFailed++
		}
	}
	if finished := snap.JobsCompleted + snap.JobsFailed; finished > 0 {
		snap.JobFailRate = float64(snap.JobsFailed) / float64(finished)
	}

	if c.staleAfter > 0 {
		processing, err := c.store.ListJobs(ctx, store.JobFilter{Status: model.JobProcessing})
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list processing jobs")
		}
		stale := now.Add(-c.staleAfter)
		for _, j := range processing {
			if j.StartedAt != nil && j.StartedAt.Before(stale) {
				snap.JobsStuck++
			}
		}
	}

	outcomes, err := c.store.ListOutcomes(ctx, store.OutcomeFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list outcomes")
	}
	for _, o := range outcomes {
		if !o.Resolved() {
			snap.OutcomesPending++
			continue
		}
		snap.OutcomesResolved++
		if o.ResolvedAt != nil && !o.ResolvedAt.Before(cutoff) {
			snap.OutcomesResolvedInWindow++
		}
	}

	paths, err := c.store.ListPaths(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list paths")
	}
	snap.PathCount = len(paths)
	for _, p := range paths {
		// Never-calculated paths have no confidence level yet.
		switch p.Metrics.ConfidenceLevel {
		case model.ConfidenceMedium, model.ConfidenceHigh:
		default:
			snap.LowConfidencePaths = append(snap.LowConfidencePaths, p.ID)
		}
	}
	sort.Strings(snap.LowConfidencePaths)

	return snap, nil
}
