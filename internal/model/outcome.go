package model

import "time"

// PathExploration records one session of a user engaging with a path.
type PathExploration struct {
	ID               string     `json:"id"`
	ProfileID        string     `json:"profileId"`
	PathID           string     `json:"pathId"`
	NodesExpanded    []string   `json:"nodesExpanded,omitempty"`
	MaxDepth         int        `json:"maxDepth"`
	TimeSpentSeconds int        `json:"timeSpentSeconds"`
	Exported         bool       `json:"exported"`
	Converted        bool       `json:"converted"`
	StartedAt        time.Time  `json:"startedAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
}

// Closed reports whether the session has ended.
func (e *PathExploration) Closed() bool { return e.EndedAt != nil }

// FailureLayer attributes a missed prediction to where it went wrong.
type FailureLayer string

const (
	// FailureReality means the input data did not reflect reality.
	FailureReality FailureLayer = "reality"
	// FailureUnderstanding means the data was interpreted wrongly.
	FailureUnderstanding FailureLayer = "understanding"
	// FailureDecision means the decision logic chose badly.
	FailureDecision FailureLayer = "decision"
	// FailureAction means the plan was not executed as chosen.
	FailureAction FailureLayer = "action"
)

// FailureLayers lists all failure layers in reporting order.
var FailureLayers = []FailureLayer{FailureReality, FailureUnderstanding, FailureDecision, FailureAction}

// Valid reports whether l is a known failure layer.
func (l FailureLayer) Valid() bool {
	for _, fl := range FailureLayers {
		if fl == l {
			return true
		}
	}
	return false
}

// OutcomeStatus tracks whether actuals have been collected.
type OutcomeStatus string

const (
	OutcomePending  OutcomeStatus = "pending"
	OutcomeResolved OutcomeStatus = "resolved"
)

// PathOutcome links an exploration's prediction to the actual result. It is
// created when a commitment is made and mutated exactly once when resolved.
type PathOutcome struct {
	ID            string `json:"id"`
	ExplorationID string `json:"explorationId"`
	PathID        string `json:"pathId"`
	ModelVersion  int    `json:"modelVersion"`

	PredictedMonths  float64 `json:"predictedMonths"`
	PredictedCost    float64 `json:"predictedCost"`
	PredictedSuccess float64 `json:"predictedSuccess"`

	ActualMonths    *float64 `json:"actualMonths,omitempty"`
	ActualCost      *float64 `json:"actualCost,omitempty"`
	ActualSuccess   *bool    `json:"actualSuccess,omitempty"`
	ProgressPercent *float64 `json:"progressPercent,omitempty"`
	WouldRecommend  *bool    `json:"wouldRecommend,omitempty"`
	Lessons         *string  `json:"lessons,omitempty"`

	TimelineVariancePercent *float64      `json:"timelineVariancePercent"`
	CostVariancePercent     *float64      `json:"costVariancePercent"`
	FailureLayer            *FailureLayer `json:"failureLayer,omitempty"`

	Status      OutcomeStatus `json:"status"`
	CommittedAt time.Time     `json:"committedAt"`
	ResolvedAt  *time.Time    `json:"resolvedAt,omitempty"`
}

// Resolved reports whether actuals have been recorded.
func (o *PathOutcome) Resolved() bool { return o.Status == OutcomeResolved }
