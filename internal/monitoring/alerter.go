package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/config"
)

const (
	// minFinishedJobs is how many finished jobs the failure-rate rule needs.
	minFinishedJobs = 5
	// stalledOutcomeMin is how many outcomes must resolve in the window,
	// with no completed recalculation, before learning counts as stalled.
	stalledOutcomeMin = 3
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRecalcFailureRate AlertType = "recalc_failure_rate"
	AlertStuckJobs         AlertType = "stuck_jobs"
	AlertLearningStalled   AlertType = "learning_stalled"
)

// Alert is one breached threshold.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// rule inspects a snapshot and returns an alert when its threshold is breached.
type rule func(snap *MetricsSnapshot, cfg config.MonitoringConfig) *Alert

var rules = []rule{failureRateRule, stuckJobsRule, learningStalledRule}

func failureRateRule(snap *MetricsSnapshot, cfg config.MonitoringConfig) *Alert {
	finished := snap.JobsCompleted + snap.JobsFailed
	if finished < minFinishedJobs || snap.JobFailRate <= cfg.FailureRateThreshold {
		return nil
	}
	return &Alert{
		Type:     AlertRecalcFailureRate,
		Severity: "high",
		Message: fmt.Sprintf(
			"Recalculation failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
			snap.JobFailRate*100, cfg.FailureRateThreshold*100,
			snap.JobsFailed, finished, snap.LookbackHours,
		),
		Details: map[string]any{
			"failure_rate": snap.JobFailRate,
			"threshold":    cfg.FailureRateThreshold,
			"failed":       snap.JobsFailed,
			"finished":     finished,
		},
	}
}

func stuckJobsRule(snap *MetricsSnapshot, _ config.MonitoringConfig) *Alert {
	if snap.JobsStuck == 0 {
		return nil
	}
	return &Alert{
		Type:     AlertStuckJobs,
		Severity: "medium",
		Message:  fmt.Sprintf("%d recalculation job(s) stuck in processing", snap.JobsStuck),
		Details: map[string]any{
			"stuck":      snap.JobsStuck,
			"processing": snap.JobsProcessing,
		},
	}
}

// learningStalledRule fires when survey results keep arriving but no path
// metrics were recalculated from them.
func learningStalledRule(snap *MetricsSnapshot, _ config.MonitoringConfig) *Alert {
	if snap.OutcomesResolvedInWindow < stalledOutcomeMin || snap.JobsCompleted > 0 {
		return nil
	}
	return &Alert{
		Type:     AlertLearningStalled,
		Severity: "medium",
		Message: fmt.Sprintf("%d outcomes resolved in last %dh but no recalculation completed",
			snap.OutcomesResolvedInWindow, snap.LookbackHours),
		Details: map[string]any{
			"outcomes_resolved": snap.OutcomesResolvedInWindow,
			"jobs_failed":       snap.JobsFailed,
			"jobs_pending":      snap.JobsPending,
		},
	}
}

// Alerter evaluates snapshots against the configured thresholds and posts
// alerts to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate returns one alert per breached rule, in rule order.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := a.now()
	for _, r := range rules {
		if alert := r(snap, a.cfg); alert != nil {
			alert.Timestamp = now
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

// SendAlerts posts each alert to the webhook and returns how many were
// delivered. Without a webhook URL nothing is sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	log := zap.L().With(zap.String("component", "monitoring.alerter"))
	sent := 0
	for _, alert := range alerts {
		if err := a.post(ctx, alert); err != nil {
			log.Error("alert delivery failed", zap.String("type", string(alert.Type)), zap.Error(err))
			continue
		}
		log.Info("alert sent", zap.String("type", string(alert.Type)), zap.String("severity", alert.Severity))
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
