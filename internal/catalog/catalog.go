// Package catalog holds the built-in strategic paths, their decision trees,
// and a starter case-study corpus, and seeds them into a store.
package catalog

import (
	"context"
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/store"
	"github.com/sells-group/futuretree/internal/tree"
)

//go:embed catalog.yaml
var builtin []byte

// PathSpec is one strategic path with its decision tree.
type PathSpec struct {
	ID              string               `yaml:"id"`
	Name            string               `yaml:"name"`
	Description     string               `yaml:"description"`
	StrategyType    model.StrategyType   `yaml:"strategy_type"`
	BestFor         []string             `yaml:"best_for"`
	TypicalTimeline string               `yaml:"typical_timeline"`
	BaseRisk        string               `yaml:"base_risk"`
	Nodes           []model.DecisionNode `yaml:"nodes"`
}

// Catalog is a validated set of paths and case studies.
type Catalog struct {
	Paths       []PathSpec        `yaml:"paths"`
	CaseStudies []model.CaseStudy `yaml:"case_studies"`
}

// Load parses the built-in catalog.
func Load() (*Catalog, error) {
	return Parse(builtin)
}

// LoadFile parses a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document. The document has a
// top-level "catalog" key.
func Parse(data []byte) (*Catalog, error) {
	var wrapper struct {
		Catalog Catalog `yaml:"catalog"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "catalog: parse")
	}
	c := &wrapper.Catalog
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks path and case-study fields and builds every decision tree
// to enforce the forest invariants.
func (c *Catalog) Validate() error {
	if len(c.Paths) == 0 {
		return eris.New("catalog: no paths")
	}
	paths := make(map[string]bool, len(c.Paths))
	types := make(map[model.StrategyType]bool, len(c.Paths))
	nodeOwner := make(map[string]string)
	for i := range c.Paths {
		p := &c.Paths[i]
		switch {
		case p.ID == "":
			return eris.Errorf("catalog: path %d has no id", i)
		case paths[p.ID]:
			return eris.Errorf("catalog: duplicate path %s", p.ID)
		case !p.StrategyType.Valid():
			return eris.Errorf("catalog: path %s: unknown strategy type %q", p.ID, p.StrategyType)
		case types[p.StrategyType]:
			return eris.Errorf("catalog: path %s: strategy type %s already used", p.ID, p.StrategyType)
		}
		paths[p.ID] = true
		types[p.StrategyType] = true

		for _, n := range p.Nodes {
			if owner, dup := nodeOwner[n.ID]; dup {
				return eris.Errorf("catalog: node %s appears in %s and %s", n.ID, owner, p.ID)
			}
			nodeOwner[n.ID] = p.ID
		}
		if _, err := tree.New(p.Nodes); err != nil {
			return eris.Wrapf(err, "catalog: path %s", p.ID)
		}
	}

	cases := make(map[string]bool, len(c.CaseStudies))
	for i := range c.CaseStudies {
		cs := &c.CaseStudies[i]
		switch {
		case cs.ID == "":
			return eris.Errorf("catalog: case study %d has no id", i)
		case cases[cs.ID]:
			return eris.Errorf("catalog: duplicate case study %s", cs.ID)
		case !cs.StrategyType.Valid():
			return eris.Errorf("catalog: case study %s: unknown strategy type %q", cs.ID, cs.StrategyType)
		case cs.StartingState.Revenue != nil && !cs.StartingState.Revenue.Valid():
			return eris.Errorf("catalog: case study %s: unknown revenue band %q", cs.ID, *cs.StartingState.Revenue)
		}
		cases[cs.ID] = true
	}
	return nil
}

// Path returns the strategic path described by ps. Metrics and version are
// left zero; they belong to the recalculation scheduler.
func (ps PathSpec) Path() *model.StrategicPath {
	p := &model.StrategicPath{
		ID:              ps.ID,
		Name:            ps.Name,
		Description:     ps.Description,
		StrategyType:    ps.StrategyType,
		BestFor:         ps.BestFor,
		TypicalTimeline: ps.TypicalTimeline,
		BaseRisk:        ps.BaseRisk,
	}
	for _, n := range ps.Nodes {
		if n.ParentID == nil {
			id := n.ID
			p.RootNodeID = &id
			break
		}
	}
	return p
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Paths       int   `json:"paths"`
	Nodes       int   `json:"nodes"`
	CaseStudies int64 `json:"caseStudies"`
}

// Seed upserts every path, replaces each path's decision tree, and upserts
// the case studies. Seeding twice leaves the same rows; existing path
// metrics and versions are kept.
func Seed(ctx context.Context, st store.Store, c *Catalog) (*SeedResult, error) {
	log := zap.L().With(zap.String("component", "catalog"))
	res := &SeedResult{}
	for _, ps := range c.Paths {
		if err := st.UpsertPath(ctx, ps.Path()); err != nil {
			return res, eris.Wrapf(err, "catalog: seed path %s", ps.ID)
		}
		if err := st.ReplaceNodes(ctx, ps.ID, ps.Nodes); err != nil {
			return res, eris.Wrapf(err, "catalog: seed nodes of %s", ps.ID)
		}
		res.Paths++
		res.Nodes += len(ps.Nodes)
	}

	n, err := st.UpsertCaseStudies(ctx, c.CaseStudies)
	if err != nil {
		return res, eris.Wrap(err, "catalog: seed case studies")
	}
	res.CaseStudies = n

	log.Info("catalog seeded",
		zap.Int("paths", res.Paths),
		zap.Int("nodes", res.Nodes),
		zap.Int64("case_studies", res.CaseStudies),
	)
	return res, nil
}
