package model

import "time"

// ConfidenceLevel grades how much evidence backs a path's metrics.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// PathMetrics are the aggregate, evidence-derived metrics of a strategic path.
// Percentiles are nil when no sample was available.
type PathMetrics struct {
	SuccessRate     float64         `json:"successRate"`
	CaseCount       int             `json:"caseCount"`
	OutcomeCount    int             `json:"outcomeCount"`
	SuccessSamples  int             `json:"successSamples"`
	TimelineP25     *float64        `json:"timelineP25"`
	TimelineP75     *float64        `json:"timelineP75"`
	CapitalP25      *float64        `json:"capitalP25"`
	CapitalP75      *float64        `json:"capitalP75"`
	RiskScore       float64         `json:"riskScore"`
	ConfidenceLevel ConfidenceLevel `json:"confidenceLevel"`
}

// StrategicPath is a named growth strategy with aggregate metrics. Metrics
// and ModelVersion are written only by the recalculation scheduler.
type StrategicPath struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	StrategyType     StrategyType `json:"strategyType"`
	BestFor          []string     `json:"bestFor,omitempty"`
	TypicalTimeline  string       `json:"typicalTimeline,omitempty"`
	BaseRisk         string       `json:"baseRisk,omitempty"`
	Metrics          PathMetrics  `json:"metrics"`
	ModelVersion     int          `json:"modelVersion"`
	RootNodeID       *string      `json:"rootNodeId,omitempty"`
	LastCalculatedAt *time.Time   `json:"lastCalculatedAt,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// NodeType classifies a decision-tree node.
type NodeType string

const (
	NodePhase     NodeType = "phase"
	NodeDecision  NodeType = "decision"
	NodeMilestone NodeType = "milestone"
	NodeOutcome   NodeType = "outcome"
	NodeRisk      NodeType = "risk"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case NodePhase, NodeDecision, NodeMilestone, NodeOutcome, NodeRisk:
		return true
	}
	return false
}

// Disclosure levels control progressive reveal of tree detail.
const (
	DisclosureSummary  = 1
	DisclosureDetail   = 2
	DisclosureDeepDive = 3
)

// RiskFactor is a typed risk attached to a decision node.
type RiskFactor struct {
	Name       string `json:"name" yaml:"name"`
	Severity   string `json:"severity" yaml:"severity"`
	Mitigation string `json:"mitigation,omitempty" yaml:"mitigation,omitempty"`
}

// DecisionNode is one step of a path's execution tree. Children are not
// stored on the node; they are derived from ParentID by the tree package.
type DecisionNode struct {
	ID                 string       `json:"id" yaml:"id"`
	PathID             string       `json:"pathId" yaml:"-"`
	ParentID           *string      `json:"parentId" yaml:"parent_id,omitempty"`
	Type               NodeType     `json:"type" yaml:"type"`
	Title              string       `json:"title" yaml:"title"`
	Description        string       `json:"description,omitempty" yaml:"description,omitempty"`
	DisclosureLevel    int          `json:"disclosureLevel" yaml:"disclosure_level"`
	SortOrder          int          `json:"sortOrder" yaml:"sort_order"`
	EstimatedCost      *float64     `json:"estimatedCost,omitempty" yaml:"estimated_cost,omitempty"`
	EstimatedMonths    *float64     `json:"estimatedMonths,omitempty" yaml:"estimated_months,omitempty"`
	SuccessProbability *float64     `json:"successProbability,omitempty" yaml:"success_probability,omitempty"`
	RiskFactors        []RiskFactor `json:"riskFactors,omitempty" yaml:"risk_factors,omitempty"`
	Dependencies       []string     `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}
