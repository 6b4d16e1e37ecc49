package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/contradiction"
	"github.com/sells-group/futuretree/internal/matcher"
	"github.com/sells-group/futuretree/internal/outcome"
	"github.com/sells-group/futuretree/internal/pathmetrics"
	"github.com/sells-group/futuretree/internal/recalc"
	"github.com/sells-group/futuretree/internal/scorer"
	"github.com/sells-group/futuretree/internal/store"
)

// appEnv holds the store and services shared by the serve, match, recalc,
// report and worker commands.
type appEnv struct {
	Store    store.Store
	Matcher  *matcher.Matcher
	Options  matcher.Options
	Recalc   *recalc.Scheduler
	Outcomes *outcome.Service
	Policy   contradiction.Policy
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// staleAfter is how long a processing job may run before it counts as stuck.
func staleAfter() time.Duration {
	return time.Duration(cfg.Recalc.StaleAfterSecs) * time.Second
}

// initEnv opens the store and builds every service from cfg. Callers should
// defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	policy := contradiction.PolicyFromConfig(cfg.Contradiction)
	if err := policy.Validate(); err != nil {
		return nil, eris.Wrap(err, "contradiction config")
	}
	sm, err := scorer.New(cfg.Scorer)
	if err != nil {
		return nil, eris.Wrap(err, "scorer config")
	}

	st, err := openStore(ctx, mode)
	if err != nil {
		return nil, err
	}

	sched := recalc.New(st, cfg.Recalc, pathmetrics.ConfigFrom(cfg.Aggregator))
	env := &appEnv{
		Store:    st,
		Matcher:  matcher.New(sm),
		Options:  matcher.OptionsFromConfig(cfg.Matcher),
		Recalc:   sched,
		Outcomes: outcome.NewService(st, sched),
		Policy:   policy,
	}
	zap.L().Debug("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("weights_version", sm.Version()),
		zap.String("weights_fingerprint", sm.Fingerprint()),
	)
	return env, nil
}
