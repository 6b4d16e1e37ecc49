package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/futuretree/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	snap := &MetricsSnapshot{
		JobsTotal:     20,
		JobsCompleted: 19,
		JobsFailed:    1,
		JobFailRate:   0.05,
		LookbackHours: 24,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	snap := &MetricsSnapshot{
		JobsTotal:     10,
		JobsCompleted: 6,
		JobsFailed:    4,
		JobFailRate:   0.4,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRecalcFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Contains(t, alerts[0].Message, "4 failed / 10 finished")
}

func TestAlerter_Evaluate_MinimumJobsRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	snap := &MetricsSnapshot{
		JobsCompleted: 1,
		JobsFailed:    3,
		JobFailRate:   0.75,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_StuckJobs(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	alerts := a.Evaluate(&MetricsSnapshot{JobsProcessing: 3, JobsStuck: 2})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStuckJobs, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "2 recalculation job(s)")
}

func TestAlerter_Evaluate_LearningStalled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	alerts := a.Evaluate(&MetricsSnapshot{OutcomesResolvedInWindow: 4, JobsFailed: 2, LookbackHours: 24})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLearningStalled, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "4 outcomes resolved in last 24h")
	assert.False(t, alerts[0].Timestamp.IsZero())

	// One completed recalculation means learning is moving.
	assert.Empty(t, a.Evaluate(&MetricsSnapshot{OutcomesResolvedInWindow: 4, JobsCompleted: 1}))
	assert.Empty(t, a.Evaluate(&MetricsSnapshot{OutcomesResolvedInWindow: 2}))
}

func TestAlerter_Evaluate_RuleOrder(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	alerts := a.Evaluate(&MetricsSnapshot{
		JobsCompleted: 0, JobsFailed: 6, JobFailRate: 1, JobsStuck: 1, OutcomesResolvedInWindow: 5,
	})
	require.Len(t, alerts, 3)
	assert.Equal(t, AlertRecalcFailureRate, alerts[0].Type)
	assert.Equal(t, AlertStuckJobs, alerts[1].Type)
	assert.Equal(t, AlertLearningStalled, alerts[2].Type)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRecalcFailureRate, Severity: "high", Message: "one"},
		{Type: AlertStuckJobs, Severity: "medium", Message: "two"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_Skipped(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertStuckJobs}}))

	a = NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertStuckJobs}}))
}
