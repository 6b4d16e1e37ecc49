// Package outcome tracks path explorations, the predictions committed from
// them, and the survey answers that resolve those predictions.
package outcome

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/predict"
	"github.com/sells-group/futuretree/internal/recalc"
	"github.com/sells-group/futuretree/internal/store"
	"github.com/sells-group/futuretree/internal/tree"
	"github.com/sells-group/futuretree/internal/variance"
)

// daysPerMonth converts elapsed time to months.
const daysPerMonth = 30.44

// Triggerer issues the recalculation for a resolved outcome.
type Triggerer interface {
	OnOutcomeResolved(ctx context.Context, pathID, outcomeID string) (*recalc.Result, error)
}

// Service runs the exploration and outcome lifecycle.
type Service struct {
	store  store.Store
	recalc Triggerer
	now    func() time.Time
	log    *zap.Logger
}

// NewService creates a Service. recalc may be nil, in which case resolved
// outcomes are stored without triggering a recalculation.
func NewService(st store.Store, recalc Triggerer) *Service {
	return &Service{
		store:  st,
		recalc: recalc,
		now:    func() time.Time { return time.Now().UTC() },
		log:    zap.L().With(zap.String("component", "outcome")),
	}
}

// Engagement is one batch of interaction recorded on an open exploration.
type Engagement struct {
	NodesExpanded    []string `json:"nodesExpanded"`
	MaxDepth         int      `json:"maxDepth"`
	TimeSpentSeconds int      `json:"timeSpentSeconds"`
	Exported         bool     `json:"exported"`
	Converted        bool     `json:"converted"`
}

// StartExploration opens a session of profileID exploring pathID.
func (s *Service) StartExploration(ctx context.Context, profileID, pathID string) (*model.PathExploration, error) {
	verr := &model.ValidationError{}
	if profileID == "" {
		verr.Add("profileId", "is required")
	}
	if pathID == "" {
		verr.Add("pathId", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetProfile(ctx, profileID); err != nil {
		return nil, eris.Wrap(err, "outcome: start exploration")
	}
	if _, err := s.store.GetPath(ctx, pathID); err != nil {
		return nil, eris.Wrap(err, "outcome: start exploration")
	}

	e := &model.PathExploration{ProfileID: profileID, PathID: pathID, StartedAt: s.now()}
	if err := s.store.CreateExploration(ctx, e); err != nil {
		return nil, eris.Wrap(err, "outcome: start exploration")
	}
	return e, nil
}

// RecordEngagement merges eng into an open exploration. Expanded nodes are
// deduplicated, depth keeps its maximum, time accumulates, and the exported
// and converted flags never reset.
func (s *Service) RecordEngagement(ctx context.Context, id string, eng Engagement) (*model.PathExploration, error) {
	verr := &model.ValidationError{}
	if eng.MaxDepth < 0 {
		verr.Add("maxDepth", "must be >= 0")
	}
	if eng.TimeSpentSeconds < 0 {
		verr.Add("timeSpentSeconds", "must be >= 0")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	e, err := s.store.GetExploration(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "outcome: record engagement")
	}
	if e.Closed() {
		return nil, eris.Wrapf(model.ErrInvalidTransition, "outcome: exploration %s already ended", id)
	}

	seen := make(map[string]bool, len(e.NodesExpanded))
	for _, n := range e.NodesExpanded {
		seen[n] = true
	}
	for _, n := range eng.NodesExpanded {
		if n != "" && !seen[n] {
			seen[n] = true
			e.NodesExpanded = append(e.NodesExpanded, n)
		}
	}
	if eng.MaxDepth > e.MaxDepth {
		e.MaxDepth = eng.MaxDepth
	}
	e.TimeSpentSeconds += eng.TimeSpentSeconds
	e.Exported = e.Exported || eng.Exported
	e.Converted = e.Converted || eng.Converted

	if err := s.store.UpdateExploration(ctx, e); err != nil {
		return nil, eris.Wrap(err, "outcome: record engagement")
	}
	return e, nil
}

// EndExploration closes an exploration. Ending it twice is an invalid
// transition.
func (s *Service) EndExploration(ctx context.Context, id string) (*model.PathExploration, error) {
	if err := s.store.EndExploration(ctx, id, s.now()); err != nil {
		return nil, eris.Wrap(err, "outcome: end exploration")
	}
	e, err := s.store.GetExploration(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "outcome: end exploration")
	}
	return e, nil
}

// CommitPrediction records that the explorer committed to the path. The
// prediction made now is stored as a pending outcome awaiting actuals.
func (s *Service) CommitPrediction(ctx context.Context, explorationID string) (*model.PathOutcome, *predict.Prediction, error) {
	e, err := s.store.GetExploration(ctx, explorationID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "outcome: commit prediction")
	}
	pred, err := s.Predict(ctx, e.ProfileID, e.PathID)
	if err != nil {
		return nil, nil, err
	}

	o := pred.ForOutcome(e.ID)
	o.CommittedAt = s.now()
	if err := s.store.CreateOutcome(ctx, o); err != nil {
		return nil, nil, eris.Wrap(err, "outcome: commit prediction")
	}

	if !e.Closed() && !e.Converted {
		e.Converted = true
		if err := s.store.UpdateExploration(ctx, e); err != nil {
			return nil, nil, eris.Wrap(err, "outcome: mark exploration converted")
		}
	}
	s.log.Info("prediction committed",
		zap.String("outcome_id", o.ID),
		zap.String("path_id", o.PathID),
		zap.Int("model_version", o.ModelVersion),
		zap.Bool("fallback", pred.Fallback),
	)
	return o, pred, nil
}

// Predict builds the current prediction of pathID for profileID.
func (s *Service) Predict(ctx context.Context, profileID, pathID string) (*predict.Prediction, error) {
	path, err := s.store.GetPath(ctx, pathID)
	if err != nil {
		return nil, eris.Wrap(err, "outcome: predict")
	}
	nodes, err := s.store.ListNodes(ctx, pathID)
	if err != nil {
		return nil, eris.Wrap(err, "outcome: predict")
	}
	var tr *tree.Tree
	if len(nodes) > 0 {
		if tr, err = tree.New(nodes); err != nil {
			return nil, eris.Wrapf(err, "outcome: decision tree of %s", pathID)
		}
	}
	matches, err := s.store.ListMatches(ctx, profileID)
	if err != nil {
		return nil, eris.Wrap(err, "outcome: predict")
	}
	p := predict.Predict(predict.Input{Path: path, Tree: tr, Matches: matches})
	return &p, nil
}

// Resolution is the result of resolving an outcome from a survey.
type Resolution struct {
	Outcome  *model.PathOutcome `json:"outcome"`
	Variance variance.Result    `json:"variance"`
	Recalc   *recalc.Result     `json:"recalc,omitempty"`
	// RecalcError is set when the outcome was stored but its recalculation
	// failed. The failure is also recorded on the job.
	RecalcError string `json:"recalcError,omitempty"`
}

// ResolveSurvey maps survey answers onto the outcome's actuals, stores them
// once, and triggers a recalculation of the outcome's path.
func (s *Service) ResolveSurvey(ctx context.Context, outcomeID string, resp SurveyResponse) (*Resolution, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	o, err := s.store.GetOutcome(ctx, outcomeID)
	if err != nil {
		return nil, eris.Wrap(err, "outcome: resolve survey")
	}
	if o.Resolved() {
		return nil, eris.Wrapf(model.ErrInvalidTransition, "outcome: outcome %s already resolved", outcomeID)
	}

	now := s.now()
	resp.apply(o, now)
	v := variance.ComputeVariance(o)
	o.TimelineVariancePercent = v.TimelineVariancePercent
	o.CostVariancePercent = v.CostVariancePercent
	o.ResolvedAt = &now

	if err := s.store.ResolveOutcome(ctx, o); err != nil {
		return nil, eris.Wrap(err, "outcome: resolve survey")
	}
	res := &Resolution{Outcome: o, Variance: v}
	if s.recalc == nil {
		return res, nil
	}

	rr, err := s.recalc.OnOutcomeResolved(ctx, o.PathID, o.ID)
	res.Recalc = rr
	if err != nil {
		var rerr *model.RecalculationError
		if !errors.As(err, &rerr) {
			return nil, eris.Wrap(err, "outcome: trigger recalculation")
		}
		res.RecalcError = err.Error()
		s.log.Warn("recalculation after survey failed",
			zap.String("outcome_id", o.ID),
			zap.String("job_id", rerr.JobID),
			zap.Error(err),
		)
	}
	return res, nil
}

// monthsBetween returns whole elapsed months to one decimal.
func monthsBetween(from, to time.Time) float64 {
	if !to.After(from) {
		return 0
	}
	return math.Round(to.Sub(from).Hours()/24/daysPerMonth*10) / 10
}
