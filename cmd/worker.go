package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/workflow"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker for scheduled recalculation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := workflow.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		w := workflow.NewWorker(c, cfg.Temporal, &workflow.Activities{Store: env.Store, Scheduler: env.Recalc})
		zap.L().Info("starting temporal worker",
			zap.String("host_port", cfg.Temporal.HostPort),
			zap.String("namespace", cfg.Temporal.Namespace),
			zap.String("task_queue", cfg.Temporal.TaskQueue),
		)
		return workflow.RunWorker(ctx, w)
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Create or update the nightly recalculation schedule",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("worker"); err != nil {
			return err
		}
		c, err := workflow.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		created, err := workflow.EnsureSchedule(ctx, c, cfg.Temporal, workflow.RecalculateAllInput{
			Trigger:         model.TriggerScheduled,
			MaxConcurrent:   cfg.Recalc.MaxConcurrent,
			ActivityTimeout: 2 * time.Duration(cfg.Recalc.JobTimeoutSecs) * time.Second,
		})
		if err != nil {
			return err
		}

		verb := "Updated"
		if created {
			verb = "Created"
		}
		fmt.Fprintf(os.Stdout, "%s schedule %s (%s) on task queue %s\n",
			verb, cfg.Temporal.ScheduleID, cfg.Temporal.ScheduleCron, cfg.Temporal.TaskQueue)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(scheduleCmd)
}
