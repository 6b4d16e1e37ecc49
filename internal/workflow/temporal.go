package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/config"
)

// Dial connects to the Temporal frontend named in cfg.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    newLogger(zap.L().With(zap.String("component", "temporal"))),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: dial temporal %s", cfg.HostPort)
	}
	return c, nil
}

// NewWorker returns a worker on the configured task queue with the
// recalculation workflow and activities registered.
func NewWorker(c client.Client, cfg config.TemporalConfig, acts *Activities) worker.Worker {
	w := worker.New(c, cfg.TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(RecalculateAllWorkflow, workflow.RegisterOptions{Name: RecalculateAllName})
	w.RegisterActivity(acts)
	return w
}

// RunWorker starts w and blocks until ctx is cancelled.
func RunWorker(ctx context.Context, w worker.Worker) error {
	if err := w.Start(); err != nil {
		return eris.Wrap(err, "workflow: start worker")
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// EnsureSchedule creates the cron schedule that starts RecalculateAllWorkflow,
// or updates its cron expression when the schedule already exists. It
// reports whether a new schedule was created.
func EnsureSchedule(ctx context.Context, c client.Client, cfg config.TemporalConfig, in RecalculateAllInput) (bool, error) {
	if cfg.ScheduleID == "" || cfg.ScheduleCron == "" {
		return false, eris.New("workflow: schedule_id and schedule_cron are required")
	}
	spec := client.ScheduleSpec{CronExpressions: []string{cfg.ScheduleCron}}

	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:   cfg.ScheduleID,
		Spec: spec,
		Action: &client.ScheduleWorkflowAction{
			ID:                       cfg.ScheduleID + "-run",
			Workflow:                 RecalculateAllName,
			Args:                     []any{in},
			TaskQueue:                cfg.TaskQueue,
			WorkflowExecutionTimeout: 2 * time.Hour,
		},
	})
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		return false, eris.Wrapf(err, "workflow: create schedule %s", cfg.ScheduleID)
	}

	h := c.ScheduleClient().GetHandle(ctx, cfg.ScheduleID)
	err = h.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(u client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			sched := u.Description.Schedule
			sched.Spec = &spec
			return &client.ScheduleUpdate{Schedule: &sched}, nil
		},
	})
	if err != nil {
		return false, eris.Wrapf(err, "workflow: update schedule %s", cfg.ScheduleID)
	}
	return false, nil
}

// zapLogger adapts zap to the Temporal SDK logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func newLogger(l *zap.Logger) *zapLogger {
	return &zapLogger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *zapLogger) Debug(msg string, keyvals ...any) { l.s.Debugw(msg, keyvals...) }
func (l *zapLogger) Info(msg string, keyvals ...any)  { l.s.Infow(msg, keyvals...) }
func (l *zapLogger) Warn(msg string, keyvals ...any)  { l.s.Warnw(msg, keyvals...) }
func (l *zapLogger) Error(msg string, keyvals ...any) { l.s.Errorw(msg, keyvals...) }
