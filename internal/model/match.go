package model

import "time"

// Dimension names a scored similarity dimension.
type Dimension string

const (
	DimensionIndustry   Dimension = "industry"
	DimensionRevenue    Dimension = "revenue"
	DimensionTeamSize   Dimension = "team_size"
	DimensionCapability Dimension = "capability"
	DimensionChallenge  Dimension = "challenge"
)

// DimensionPriority is the fixed order used when explaining a match.
var DimensionPriority = []Dimension{
	DimensionIndustry,
	DimensionRevenue,
	DimensionCapability,
	DimensionChallenge,
	DimensionTeamSize,
}

// DimensionScores holds one [0,100] score per dimension.
type DimensionScores struct {
	Industry   float64 `json:"industry"`
	Revenue    float64 `json:"revenue"`
	TeamSize   float64 `json:"teamSize"`
	Capability float64 `json:"capability"`
	Challenge  float64 `json:"challenge"`
}

// Get returns the score for d.
func (s DimensionScores) Get(d Dimension) float64 {
	switch d {
	case DimensionIndustry:
		return s.Industry
	case DimensionRevenue:
		return s.Revenue
	case DimensionTeamSize:
		return s.TeamSize
	case DimensionCapability:
		return s.Capability
	case DimensionChallenge:
		return s.Challenge
	}
	return 0
}

// Match is a persisted (profile, case study) score. There is at most one
// match per pair; re-matching overwrites it.
type Match struct {
	ProfileID      string          `json:"profileId"`
	CaseStudyID    string          `json:"caseStudyId"`
	Rank           int             `json:"rank"`
	OverallScore   float64         `json:"overallScore"`
	Breakdown      DimensionScores `json:"breakdown"`
	MatchReason    string          `json:"matchReason"`
	KeyTakeaways   []string        `json:"keyTakeaways,omitempty"`
	StrategyType   StrategyType    `json:"strategyType"`
	WeightsVersion string          `json:"weightsVersion"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
