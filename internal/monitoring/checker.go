package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// snapshotter produces metrics snapshots; *Collector is the production one.
type snapshotter interface {
	Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error)
}

// Checker evaluates alerts on an interval. An alert that keeps firing is
// re-sent only after the cooldown; one that clears is forgotten so the next
// breach is sent at once.
type Checker struct {
	source   snapshotter
	alerter  *Alerter
	cfg      config.MonitoringConfig
	interval time.Duration
	cooldown time.Duration
	now      func() time.Time
	log      *zap.Logger

	mu       sync.Mutex
	lastSent map[AlertType]time.Time
}

// NewChecker creates a background alert checker. The cooldown is twelve
// check intervals.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		source:   collector,
		alerter:  alerter,
		cfg:      cfg,
		interval: interval,
		cooldown: 12 * interval,
		now:      func() time.Time { return time.Now().UTC() },
		log:      zap.L().With(zap.String("component", "monitoring.checker")),
		lastSent: make(map[AlertType]time.Time),
	}
}

// Run checks once per interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	c.log.Info("starting alert checker",
		zap.Duration("interval", c.interval),
		zap.Duration("cooldown", c.cooldown),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("alert checker stopped")
			return
		case <-ticker.C:
			if _, err := c.CheckOnce(ctx); err != nil {
				c.log.Error("alert check failed", zap.Error(err))
			}
		}
	}
}

// CheckOnce collects a snapshot, evaluates it, and sends the alerts that are
// not cooling down. It returns the alerts it attempted to send.
func (c *Checker) CheckOnce(ctx context.Context) ([]Alert, error) {
	snap, err := c.source.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		return nil, err
	}

	due := c.due(c.alerter.Evaluate(snap))
	if len(due) == 0 {
		c.log.Debug("no alerts due")
		return nil, nil
	}

	sent := c.alerter.SendAlerts(ctx, due)
	c.log.Info("alert check complete",
		zap.Int("alerts_due", len(due)),
		zap.Int("alerts_sent", sent),
		zap.Int("jobs_failed", snap.JobsFailed),
		zap.Int("jobs_stuck", snap.JobsStuck),
		zap.Strings("low_confidence_paths", snap.LowConfidencePaths),
	)
	return due, nil
}

// due filters raised alerts by cooldown and records the ones let through.
func (c *Checker) due(raised []Alert) []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	active := make(map[AlertType]bool, len(raised))
	var out []Alert
	for _, a := range raised {
		active[a.Type] = true
		if last, ok := c.lastSent[a.Type]; ok && now.Sub(last) < c.cooldown {
			continue
		}
		c.lastSent[a.Type] = now
		out = append(out, a)
	}
	for t := range c.lastSent {
		if !active[t] {
			delete(c.lastSent, t)
		}
	}
	return out
}
