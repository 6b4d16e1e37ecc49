package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// JobScope is what a recalculation job was initiated for.
type JobScope string

const (
	ScopePath   JobScope = "path"
	ScopeNode   JobScope = "node"
	ScopeGlobal JobScope = "global"
)

// TriggerType is why a recalculation was requested.
type TriggerType string

const (
	TriggerOutcomeReceived  TriggerType = "outcome_received"
	TriggerThresholdReached TriggerType = "threshold_reached"
	TriggerScheduled        TriggerType = "scheduled"
	TriggerManual           TriggerType = "manual"
)

// TriggerTypes lists every trigger type in display order.
var TriggerTypes = []TriggerType{TriggerOutcomeReceived, TriggerThresholdReached, TriggerScheduled, TriggerManual}

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerOutcomeReceived, TriggerThresholdReached, TriggerScheduled, TriggerManual:
		return true
	}
	return false
}

// JobStatus is the state of a recalculation job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobPending:    {JobProcessing},
	JobProcessing: {JobCompleted, JobFailed},
}

// CanTransition reports whether from -> to is a valid job transition.
func CanTransition(from, to JobStatus) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MetricsChange is the before/after record of one recalculation.
type MetricsChange struct {
	PreviousValues PathMetrics         `json:"previousValues"`
	NewValues      PathMetrics         `json:"newValues"`
	ChangePercent  map[string]*float64 `json:"changePercent"`
}

// MetricRecalculationJob is the append-only audit record of one
// recalculation attempt.
type MetricRecalculationJob struct {
	ID                 string         `json:"id"`
	Scope              JobScope       `json:"scope"`
	ScopeKey           string         `json:"scopeKey"`
	PathID             *string        `json:"pathId,omitempty"`
	NodeID             *string        `json:"nodeId,omitempty"`
	Trigger            TriggerType    `json:"trigger"`
	TriggerRef         *string        `json:"triggerRef,omitempty"`
	Status             JobStatus      `json:"status"`
	MetricsUpdated     *MetricsChange `json:"metricsUpdated,omitempty"`
	PreviousVersion    int            `json:"previousVersion"`
	NewVersion         *int           `json:"newVersion,omitempty"`
	OutcomesConsidered int            `json:"outcomesConsidered"`
	CoalescedTriggers  int            `json:"coalescedTriggers"`
	ErrorMessage       *string        `json:"errorMessage,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	StartedAt          *time.Time     `json:"startedAt,omitempty"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
}

// Transition moves the job to the next status, stamping timestamps. Any
// transition not in the pending -> processing -> completed|failed machine
// returns ErrInvalidTransition.
func (j *MetricRecalculationJob) Transition(to JobStatus, at time.Time) error {
	if !CanTransition(j.Status, to) {
		return eris.Wrapf(ErrInvalidTransition, "job %s: %s -> %s", j.ID, j.Status, to)
	}
	j.Status = to
	switch to {
	case JobProcessing:
		j.StartedAt = &at
	case JobCompleted, JobFailed:
		j.CompletedAt = &at
	}
	return nil
}

// PathScopeKey is the lock key for recalculations of one path.
func PathScopeKey(pathID string) string { return "path:" + pathID }
