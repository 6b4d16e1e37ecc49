package model

import "time"

// CaseResult is the terminal label of a case study.
type CaseResult string

const (
	CaseResultSuccess CaseResult = "success"
	CaseResultPartial CaseResult = "partial"
	CaseResultFailure CaseResult = "failure"
)

// CompanyState is a partial snapshot of a company at the start or end of a
// transformation. Any field may be missing.
type CompanyState struct {
	Revenue      *RevenueBand `json:"revenue,omitempty" yaml:"revenue,omitempty"`
	TeamSize     *int         `json:"teamSize,omitempty" yaml:"team_size,omitempty"`
	Challenges   []string     `json:"challenges,omitempty" yaml:"challenges,omitempty"`
	Achievements []string     `json:"achievements,omitempty" yaml:"achievements,omitempty"`
}

// TeamBand returns the band for TeamSize, or "" when the size is unknown.
func (s CompanyState) TeamBand() TeamSizeBand {
	if s.TeamSize == nil {
		return ""
	}
	return TeamSizeBandFor(*s.TeamSize)
}

// TimelinePhase is one stage of a case study's transformation.
type TimelinePhase struct {
	Name   string  `json:"name" yaml:"name"`
	Months float64 `json:"months" yaml:"months"`
}

// Timeline describes how long a transformation took.
type Timeline struct {
	TotalMonths *float64        `json:"totalMonths,omitempty" yaml:"total_months,omitempty"`
	Phases      []TimelinePhase `json:"phases,omitempty" yaml:"phases,omitempty"`
}

// OutcomeMultipliers summarizes how much a company changed.
type OutcomeMultipliers struct {
	RevenueMultiplier *float64   `json:"revenueMultiplier,omitempty" yaml:"revenue_multiplier,omitempty"`
	TeamMultiplier    *float64   `json:"teamMultiplier,omitempty" yaml:"team_multiplier,omitempty"`
	Result            CaseResult `json:"result,omitempty" yaml:"result,omitempty"`
}

// CaseStudy is a curated company transformation record. The matching engine
// only reads case studies.
type CaseStudy struct {
	ID              string             `json:"id" yaml:"id"`
	CompanyName     string             `json:"companyName" yaml:"company_name"`
	Industry        string             `json:"industry" yaml:"industry"`
	SubIndustry     *string            `json:"subIndustry,omitempty" yaml:"sub_industry,omitempty"`
	Summary         string             `json:"summary" yaml:"summary"`
	StrategyType    StrategyType       `json:"strategyType" yaml:"strategy_type"`
	StartingState   CompanyState       `json:"startingState" yaml:"starting_state"`
	EndingState     CompanyState       `json:"endingState" yaml:"ending_state"`
	Timeline        Timeline           `json:"timeline" yaml:"timeline"`
	CapitalInvested *float64           `json:"capitalInvested,omitempty" yaml:"capital_invested,omitempty"`
	Outcomes        OutcomeMultipliers `json:"outcomes" yaml:"outcomes"`
	Capabilities    []string           `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	KeyActions      []string           `json:"keyActions,omitempty" yaml:"key_actions,omitempty"`
	Advice          string             `json:"advice,omitempty" yaml:"advice,omitempty"`
	Quotes          []string           `json:"quotes,omitempty" yaml:"quotes,omitempty"`
	LessonsLearned  string             `json:"lessonsLearned,omitempty" yaml:"lessons_learned,omitempty"`
	SourceURL       string             `json:"sourceUrl,omitempty" yaml:"source_url,omitempty"`
	Verified        bool               `json:"verified" yaml:"verified"`
	CreatedAt       time.Time          `json:"createdAt" yaml:"-"`
}
