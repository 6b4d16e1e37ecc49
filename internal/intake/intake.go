// Package intake turns the flat discovery payload into a business profile.
package intake

import (
	"strings"

	"github.com/sells-group/futuretree/internal/model"
)

// maxListItems bounds each qualification or social-proof list.
const maxListItems = 50

// DiscoverPayload is the flat intake form as submitted.
type DiscoverPayload struct {
	Industry         string   `json:"industry"`
	SubIndustry      string   `json:"subIndustry"`
	CompanySize      string   `json:"companySize"`
	YearsInBusiness  *int     `json:"yearsInBusiness"`
	Location         string   `json:"location"`
	Certifications   []string `json:"certifications"`
	Equipment        []string `json:"equipment"`
	Skills           []string `json:"skills"`
	NotableClients   []string `json:"notableClients"`
	Awards           []string `json:"awards"`
	CaseStudyCount   int      `json:"caseStudyCount"`
	CurrentRevenue   string   `json:"currentRevenue"`
	GrowthRate       string   `json:"growthRate"`
	BiggestChallenge string   `json:"biggestChallenge"`
	PrimaryGoal      string   `json:"primaryGoal"`
	SupersedesID     string   `json:"supersedesId"`
}

// ParseDiscover validates p and builds an unsaved profile. All field
// problems are returned together in a *model.ValidationError. Blank optional
// text becomes nil.
func ParseDiscover(p DiscoverPayload) (*model.BusinessProfile, error) {
	verr := &model.ValidationError{}

	industry := normalizeKey(p.Industry)
	if industry == "" {
		verr.Add("industry", "is required")
	}

	size := model.TeamSizeBand(strings.TrimSpace(p.CompanySize))
	switch {
	case size == "":
		verr.Add("companySize", "is required")
	case !size.Valid():
		verr.Add("companySize", "must be one of solo, 2-5, 6-10, 11-25, 26-50, 50+")
	}

	revenue := model.RevenueBand(strings.TrimSpace(p.CurrentRevenue))
	switch {
	case revenue == "":
		verr.Add("currentRevenue", "is required")
	case !revenue.Valid():
		verr.Add("currentRevenue", "must be one of under_100k, 100k_250k, 250k_500k, 500k_1m, 1m_5m, 5m_plus")
	}

	var growth *model.GrowthBand
	if g := model.GrowthBand(strings.TrimSpace(p.GrowthRate)); g != "" {
		if g.Valid() {
			growth = &g
		} else {
			verr.Add("growthRate", "must be one of declining, flat, steady, rapid")
		}
	}

	if p.YearsInBusiness != nil && *p.YearsInBusiness < 0 {
		verr.Add("yearsInBusiness", "must be >= 0")
	}
	if p.CaseStudyCount < 0 {
		verr.Add("caseStudyCount", "must be >= 0")
	}

	lists := map[string][]string{
		"certifications": p.Certifications,
		"equipment":      p.Equipment,
		"skills":         p.Skills,
		"notableClients": p.NotableClients,
		"awards":         p.Awards,
	}
	for _, name := range []string{"certifications", "equipment", "skills", "notableClients", "awards"} {
		if len(lists[name]) > maxListItems {
			verr.Add(name, "must have at most 50 items")
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	prof := &model.BusinessProfile{
		Industry:        industry,
		SubIndustry:     model.StringPtr(normalizeKey(p.SubIndustry)),
		CompanySize:     size,
		YearsInBusiness: p.YearsInBusiness,
		Location:        model.StringPtr(strings.TrimSpace(p.Location)),
		Qualifications: model.Qualifications{
			Certifications: cleanList(p.Certifications),
			Equipment:      cleanList(p.Equipment),
			Skills:         cleanList(p.Skills),
		},
		SocialProof: model.SocialProof{
			NotableClients: cleanList(p.NotableClients),
			Awards:         cleanList(p.Awards),
			CaseStudyCount: p.CaseStudyCount,
		},
		CurrentRevenue:   revenue,
		GrowthRate:       growth,
		BiggestChallenge: model.StringPtr(strings.TrimSpace(p.BiggestChallenge)),
		PrimaryGoal:      model.StringPtr(strings.TrimSpace(p.PrimaryGoal)),
		SupersedesID:     model.StringPtr(strings.TrimSpace(p.SupersedesID)),
	}
	return prof, nil
}

// normalizeKey lowercases s and joins words with underscores, so
// "Video Production" and "video_production" name the same industry.
func normalizeKey(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '\t'
	}), "_")
}

// cleanList trims items and drops blanks and case-insensitive duplicates.
func cleanList(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
