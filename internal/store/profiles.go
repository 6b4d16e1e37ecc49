package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/futuretree/internal/model"
)

const profileColumns = `id, industry, sub_industry, company_size, years_in_business, location,
	qualifications, social_proof, current_revenue, growth_rate, biggest_challenge,
	primary_goal, analysis, supersedes_id, created_at`

func (c *core) CreateProfile(ctx context.Context, p *model.BusinessProfile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = c.now()
	}
	quals, err := toJSON(p.Qualifications)
	if err != nil {
		return c.wrap(err, "profile %s", p.ID)
	}
	social, err := toJSON(p.SocialProof)
	if err != nil {
		return c.wrap(err, "profile %s", p.ID)
	}
	var analysis *string
	if p.Analysis != nil {
		a, err := toJSON(p.Analysis)
		if err != nil {
			return c.wrap(err, "profile %s", p.ID)
		}
		analysis = &a
	}

	_, err = c.b.exec(ctx,
		`INSERT INTO business_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Industry, p.SubIndustry, string(p.CompanySize), p.YearsInBusiness, p.Location,
		quals, social, string(p.CurrentRevenue), enumPtr(p.GrowthRate), p.BiggestChallenge,
		p.PrimaryGoal, analysis, p.SupersedesID, p.CreatedAt,
	)
	if err != nil {
		return c.wrap(err, "insert profile %s", p.ID)
	}
	return nil
}

func (c *core) GetProfile(ctx context.Context, id string) (*model.BusinessProfile, error) {
	row := c.b.queryRow(ctx, `SELECT `+profileColumns+` FROM business_profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, c.notFound(err, "profile", id)
	}
	return p, nil
}

func (c *core) SetProfileAnalysis(ctx context.Context, id string, a model.ProfileAnalysis) error {
	data, err := toJSON(a)
	if err != nil {
		return c.wrap(err, "profile analysis %s", id)
	}
	n, err := c.b.exec(ctx, `UPDATE business_profiles SET analysis = ? WHERE id = ?`, data, id)
	if err != nil {
		return c.wrap(err, "update profile analysis %s", id)
	}
	return checkRowsAffected(n, "profile", id)
}

func scanProfile(row scannable) (*model.BusinessProfile, error) {
	var (
		p             model.BusinessProfile
		size, revenue string
		growth        *string
		quals, social string
		analysis      *string
	)
	if err := row.Scan(
		&p.ID, &p.Industry, &p.SubIndustry, &size, &p.YearsInBusiness, &p.Location,
		&quals, &social, &revenue, &growth, &p.BiggestChallenge,
		&p.PrimaryGoal, &analysis, &p.SupersedesID, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.CompanySize = model.TeamSizeBand(size)
	p.CurrentRevenue = model.RevenueBand(revenue)
	p.GrowthRate = enumFrom[model.GrowthBand](growth)
	if err := fromJSON(quals, &p.Qualifications); err != nil {
		return nil, err
	}
	if err := fromJSON(social, &p.SocialProof); err != nil {
		return nil, err
	}
	if analysis != nil {
		p.Analysis = &model.ProfileAnalysis{}
		if err := fromJSON(*analysis, p.Analysis); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

var caseStudyColumns = []string{
	"id", "company_name", "industry", "sub_industry", "summary", "strategy_type",
	"starting_state", "ending_state", "timeline", "capital_invested", "outcomes",
	"capabilities", "key_actions", "advice", "quotes", "lessons_learned",
	"source_url", "verified", "created_at",
}

// caseStudyRow flattens cs into caseStudyColumns order.
func caseStudyRow(cs *model.CaseStudy) ([]any, error) {
	jsonCols := []any{cs.StartingState, cs.EndingState, cs.Timeline, cs.Outcomes, stringsOrEmpty(cs.Capabilities), stringsOrEmpty(cs.KeyActions), stringsOrEmpty(cs.Quotes)}
	enc := make([]string, len(jsonCols))
	for i, v := range jsonCols {
		s, err := toJSON(v)
		if err != nil {
			return nil, err
		}
		enc[i] = s
	}
	return []any{
		cs.ID, cs.CompanyName, cs.Industry, cs.SubIndustry, cs.Summary, string(cs.StrategyType),
		enc[0], enc[1], enc[2], cs.CapitalInvested, enc[3],
		enc[4], enc[5], cs.Advice, enc[6], cs.LessonsLearned,
		cs.SourceURL, cs.Verified, cs.CreatedAt,
	}, nil
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanCaseStudy(row scannable) (*model.CaseStudy, error) {
	var (
		cs                             model.CaseStudy
		strategy                       string
		start, end, timeline, outcomes string
		caps, actions, quotes          string
	)
	if err := row.Scan(
		&cs.ID, &cs.CompanyName, &cs.Industry, &cs.SubIndustry, &cs.Summary, &strategy,
		&start, &end, &timeline, &cs.CapitalInvested, &outcomes,
		&caps, &actions, &cs.Advice, &quotes, &cs.LessonsLearned,
		&cs.SourceURL, &cs.Verified, &cs.CreatedAt,
	); err != nil {
		return nil, err
	}
	cs.StrategyType = model.StrategyType(strategy)
	for _, f := range []struct {
		src string
		dst any
	}{
		{start, &cs.StartingState},
		{end, &cs.EndingState},
		{timeline, &cs.Timeline},
		{outcomes, &cs.Outcomes},
		{caps, &cs.Capabilities},
		{actions, &cs.KeyActions},
		{quotes, &cs.Quotes},
	} {
		if err := fromJSON(f.src, f.dst); err != nil {
			return nil, err
		}
	}
	return &cs, nil
}

// upsertCaseStudiesRowwise writes the corpus one statement per row inside a
// transaction.
func (c *core) upsertCaseStudiesRowwise(ctx context.Context, cases []model.CaseStudy) (int64, error) {
	if len(cases) == 0 {
		return 0, nil
	}
	var sets []string
	for _, col := range caseStudyColumns[1:] {
		if col == "created_at" {
			continue
		}
		sets = append(sets, col+" = excluded."+col)
	}
	stmt := `INSERT INTO case_studies (` + joinCols(caseStudyColumns) + `) VALUES (` +
		placeholders(len(caseStudyColumns)) + `) ON CONFLICT (id) DO UPDATE SET ` + joinCols(sets)

	var total int64
	err := c.b.withTx(ctx, func(q querier) error {
		for i := range cases {
			cs := c.prepareCaseStudy(&cases[i])
			args, err := caseStudyRow(cs)
			if err != nil {
				return c.wrap(err, "case study %s", cs.ID)
			}
			n, err := q.exec(ctx, stmt, args...)
			if err != nil {
				return c.wrap(err, "upsert case study %s", cs.ID)
			}
			total += n
		}
		return nil
	})
	return total, err
}

func (c *core) prepareCaseStudy(cs *model.CaseStudy) *model.CaseStudy {
	if cs.ID == "" {
		cs.ID = uuid.New().String()
	}
	if cs.CreatedAt.IsZero() {
		cs.CreatedAt = c.now()
	}
	return cs
}

func (c *core) ListCaseStudies(ctx context.Context, filter CaseStudyFilter) ([]model.CaseStudy, error) {
	q := `SELECT ` + joinCols(caseStudyColumns) + ` FROM case_studies WHERE 1=1`
	var args []any
	if filter.StrategyType != "" {
		q += ` AND strategy_type = ?`
		args = append(args, string(filter.StrategyType))
	}
	if filter.VerifiedOnly {
		q += ` AND verified = ?`
		args = append(args, true)
	}
	q += ` ORDER BY id`

	rows, err := c.b.query(ctx, q, args...)
	if err != nil {
		return nil, c.wrap(err, "list case studies")
	}
	defer rows.Close()

	var out []model.CaseStudy
	for rows.Next() {
		cs, err := scanCaseStudy(rows)
		if err != nil {
			return nil, c.wrap(err, "scan case study")
		}
		out = append(out, *cs)
	}
	return out, rows.Err()
}

const matchColumns = `profile_id, case_study_id, rank, overall_score, breakdown, match_reason,
	key_takeaways, strategy_type, weights_version, created_at, updated_at`

// UpsertMatches replaces the stored match set of a profile. Existing pairs are
// updated in place and pairs no longer matched are removed.
func (c *core) UpsertMatches(ctx context.Context, profileID string, matches []model.Match) error {
	now := c.now()
	return c.b.withTx(ctx, func(q querier) error {
		ids := make([]any, 0, len(matches)+1)
		ids = append(ids, profileID)
		for i := range matches {
			m := &matches[i]
			breakdown, err := toJSON(m.Breakdown)
			if err != nil {
				return c.wrap(err, "match %s", m.CaseStudyID)
			}
			takeaways, err := toJSON(stringsOrEmpty(m.KeyTakeaways))
			if err != nil {
				return c.wrap(err, "match %s", m.CaseStudyID)
			}
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			m.UpdatedAt = now
			if _, err := q.exec(ctx,
				`INSERT INTO matches (`+matchColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (profile_id, case_study_id) DO UPDATE SET
					rank = excluded.rank,
					overall_score = excluded.overall_score,
					breakdown = excluded.breakdown,
					match_reason = excluded.match_reason,
					key_takeaways = excluded.key_takeaways,
					strategy_type = excluded.strategy_type,
					weights_version = excluded.weights_version,
					updated_at = excluded.updated_at`,
				profileID, m.CaseStudyID, m.Rank, m.OverallScore, breakdown, m.MatchReason,
				takeaways, string(m.StrategyType), m.WeightsVersion, m.CreatedAt, m.UpdatedAt,
			); err != nil {
				return c.wrap(err, "upsert match %s/%s", profileID, m.CaseStudyID)
			}
			ids = append(ids, m.CaseStudyID)
		}

		del := `DELETE FROM matches WHERE profile_id = ?`
		if len(matches) > 0 {
			del += ` AND case_study_id NOT IN (` + placeholders(len(matches)) + `)`
		}
		if _, err := q.exec(ctx, del, ids...); err != nil {
			return c.wrap(err, "prune matches %s", profileID)
		}
		return nil
	})
}

func (c *core) ListMatches(ctx context.Context, profileID string) ([]model.Match, error) {
	rows, err := c.b.query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE profile_id = ? ORDER BY rank, case_study_id`, profileID)
	if err != nil {
		return nil, c.wrap(err, "list matches %s", profileID)
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var (
			m                    model.Match
			breakdown, takeaways string
			strategy             string
		)
		if err := rows.Scan(
			&m.ProfileID, &m.CaseStudyID, &m.Rank, &m.OverallScore, &breakdown, &m.MatchReason,
			&takeaways, &strategy, &m.WeightsVersion, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, c.wrap(err, "scan match")
		}
		m.StrategyType = model.StrategyType(strategy)
		if err := fromJSON(breakdown, &m.Breakdown); err != nil {
			return nil, c.wrap(err, "match breakdown")
		}
		if err := fromJSON(takeaways, &m.KeyTakeaways); err != nil {
			return nil, c.wrap(err, "match takeaways")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func joinCols(cols []string) string { return strings.Join(cols, ", ") }
