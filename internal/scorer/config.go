// Package scorer computes weighted similarity between a business profile and
// a case study.
package scorer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/futuretree/internal/config"
)

// weightTolerance bounds floating-point drift when checking the weight sum.
const weightTolerance = 1e-9

// DefaultIndustryParents groups industries into parent categories for
// partial industry credit.
var DefaultIndustryParents = map[string]string{
	"video_production":     "creative_services",
	"photography":          "creative_services",
	"graphic_design":       "creative_services",
	"animation":            "creative_services",
	"web_design":           "digital_services",
	"software_development": "digital_services",
	"it_services":          "digital_services",
	"digital_marketing":    "marketing_services",
	"content_marketing":    "marketing_services",
	"public_relations":     "marketing_services",
	"seo":                  "marketing_services",
	"consulting":           "professional_services",
	"accounting":           "professional_services",
	"legal":                "professional_services",
	"staffing":             "professional_services",
	"construction":         "trades",
	"landscaping":          "trades",
	"hvac":                 "trades",
	"plumbing":             "trades",
	"electrical":           "trades",
}

// DefaultScorerConfig returns a config.ScorerConfig with sensible defaults.
// Weights sum to 1.0.
func DefaultScorerConfig() config.ScorerConfig {
	parents := make(map[string]string, len(DefaultIndustryParents))
	for k, v := range DefaultIndustryParents {
		parents[k] = v
	}
	return config.ScorerConfig{
		Version: "v1",

		// Weights (sum = 1.0).
		IndustryWeight:   0.30,
		RevenueWeight:    0.25,
		CapabilityWeight: 0.20,
		ChallengeWeight:  0.15,
		TeamSizeWeight:   0.10,

		IndustryPartialScore:     50,
		SubIndustryMismatchScore: 85,
		BandSteps:                []float64{100, 75, 50, 25},
		StrongMatchCutoff:        70,

		IndustryParents: parents,
	}
}

// WeightSum returns the sum of all dimension weights.
func WeightSum(c config.ScorerConfig) float64 {
	return c.IndustryWeight + c.RevenueWeight + c.TeamSizeWeight +
		c.CapabilityWeight + c.ChallengeWeight
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	if c.Version == "" {
		errs = append(errs, "version is required")
	}

	weights := []struct {
		name string
		w    float64
	}{
		{"industry_weight", c.IndustryWeight},
		{"revenue_weight", c.RevenueWeight},
		{"team_size_weight", c.TeamSizeWeight},
		{"capability_weight", c.CapabilityWeight},
		{"challenge_weight", c.ChallengeWeight},
	}
	for _, w := range weights {
		if w.w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}

	if sum := WeightSum(c); math.Abs(sum-1.0) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.6f", sum))
	}

	if c.IndustryPartialScore < 0 || c.IndustryPartialScore > 100 {
		errs = append(errs, "industry_partial_score must be between 0 and 100")
	}
	if c.SubIndustryMismatchScore < 0 || c.SubIndustryMismatchScore > 100 {
		errs = append(errs, "sub_industry_mismatch_score must be between 0 and 100")
	}
	if c.StrongMatchCutoff < 0 || c.StrongMatchCutoff > 100 {
		errs = append(errs, "strong_match_cutoff must be between 0 and 100")
	}

	// Band steps: first step is an exact match, then non-increasing.
	switch {
	case len(c.BandSteps) == 0:
		errs = append(errs, "band_steps must not be empty")
	case c.BandSteps[0] != 100:
		errs = append(errs, "band_steps[0] must be 100")
	default:
		for i := 1; i < len(c.BandSteps); i++ {
			if c.BandSteps[i] < 0 || c.BandSteps[i] > c.BandSteps[i-1] {
				errs = append(errs, "band_steps must be non-increasing and >= 0")
				break
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ConfigHash returns a SHA-256 hash of the scoring config for reproducibility.
func ConfigHash(cfg interface{}) string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16]) // 32 hex chars
}
