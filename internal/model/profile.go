package model

import "time"

// Qualifications captures what a business can already do.
type Qualifications struct {
	Certifications []string `json:"certifications,omitempty"`
	Equipment      []string `json:"equipment,omitempty"`
	Skills         []string `json:"skills,omitempty"`
}

// All returns certifications, equipment, and skills as one list.
func (q Qualifications) All() []string {
	out := make([]string, 0, len(q.Certifications)+len(q.Equipment)+len(q.Skills))
	out = append(out, q.Certifications...)
	out = append(out, q.Equipment...)
	out = append(out, q.Skills...)
	return out
}

// SocialProof captures external credibility signals.
type SocialProof struct {
	NotableClients []string `json:"notableClients,omitempty"`
	Awards         []string `json:"awards,omitempty"`
	CaseStudyCount int      `json:"caseStudyCount"`
}

// ProfileAnalysis holds the fields written only by the analysis step.
type ProfileAnalysis struct {
	MarketPosition string         `json:"marketPosition"`
	Competencies   []string       `json:"competencies,omitempty"`
	ExpansionPaths []StrategyType `json:"expansionPaths,omitempty"`
	AnalyzedAt     time.Time      `json:"analyzedAt"`
}

// BusinessProfile is one intake snapshot of a business. Profiles are never
// edited after creation except for Analysis; a new intake supersedes the old
// profile through SupersedesID.
type BusinessProfile struct {
	ID              string       `json:"id"`
	Industry        string       `json:"industry"`
	SubIndustry     *string      `json:"subIndustry"`
	CompanySize     TeamSizeBand `json:"companySize"`
	YearsInBusiness *int         `json:"yearsInBusiness"`
	Location        *string      `json:"location"`

	Qualifications Qualifications `json:"qualifications"`
	SocialProof    SocialProof    `json:"socialProof"`

	CurrentRevenue   RevenueBand `json:"currentRevenue"`
	GrowthRate       *GrowthBand `json:"growthRate"`
	BiggestChallenge *string     `json:"biggestChallenge"`
	PrimaryGoal      *string     `json:"primaryGoal"`

	Analysis     *ProfileAnalysis `json:"analysis,omitempty"`
	SupersedesID *string          `json:"supersedesId,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Deref returns the value of s, or "" when s is nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
