package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/store"
	"github.com/sells-group/futuretree/internal/tree"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestLoad_Builtin(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	require.Len(t, c.Paths, 5)
	var types []model.StrategyType
	for _, p := range c.Paths {
		types = append(types, p.StrategyType)
		assert.NotEmpty(t, p.Nodes, "path %s has no tree", p.ID)

		tr, err := tree.New(p.Nodes)
		require.NoError(t, err)
		assert.NotEmpty(t, tr.RisksUpTo(model.DisclosureDetail), "path %s has no visible risks", p.ID)
		assert.NotNil(t, p.Path().RootNodeID)
	}
	assert.ElementsMatch(t, model.StrategyTypes, types)

	assert.GreaterOrEqual(t, len(c.CaseStudies), 10)
	for _, cs := range c.CaseStudies {
		assert.True(t, cs.StrategyType.Valid(), cs.ID)
		assert.NotEmpty(t, cs.Outcomes.Result, cs.ID)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "catalog: {}", "no paths"},
		{"bad strategy", `
catalog:
  paths:
    - id: p1
      strategy_type: franchising
`, "unknown strategy type"},
		{"duplicate strategy", `
catalog:
  paths:
    - {id: p1, strategy_type: content_led_growth}
    - {id: p2, strategy_type: content_led_growth}
`, "already used"},
		{"cycle", `
catalog:
  paths:
    - id: p1
      strategy_type: content_led_growth
      nodes:
        - {id: a, parent_id: b, type: phase, title: A, disclosure_level: 1}
        - {id: b, parent_id: a, type: phase, title: B, disclosure_level: 1}
`, "cycle"},
		{"duplicate case", `
catalog:
  paths:
    - {id: p1, strategy_type: content_led_growth}
  case_studies:
    - {id: c1, strategy_type: content_led_growth}
    - {id: c1, strategy_type: content_led_growth}
`, "duplicate case study"},
		{"bad yaml", "catalog: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog:
  paths:
    - id: solo
      name: Solo Path
      strategy_type: productized_services
      nodes:
        - {id: s1, type: phase, title: Start, disclosure_level: 1}
`), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, c.Paths, 1)
	assert.Equal(t, "s1", *c.Paths[0].Path().RootNodeID)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	c, err := Load()
	require.NoError(t, err)

	res, err := Seed(ctx, st, c)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Paths)
	assert.Equal(t, int64(len(c.CaseStudies)), res.CaseStudies)

	_, err = Seed(ctx, st, c)
	require.NoError(t, err)

	paths, err := st.ListPaths(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 5)

	cases, err := st.ListCaseStudies(ctx, store.CaseStudyFilter{})
	require.NoError(t, err)
	assert.Len(t, cases, len(c.CaseStudies))

	nodes, err := st.ListNodes(ctx, "vertical_specialization")
	require.NoError(t, err)
	assert.Len(t, nodes, len(c.Paths[0].Nodes))
	_, err = tree.New(nodes)
	assert.NoError(t, err)
}
