package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/futuretree/internal/model"
	"github.com/sells-group/futuretree/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect recalculation job history",
	Long:  "Commands for listing, viewing, retrying, and summarizing metric recalculation jobs.",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recalculation jobs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pathID, _ := cmd.Flags().GetString("path")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		if status != "" && !model.JobStatus(status).Valid() {
			return eris.Errorf("jobs list: unknown status %q", status)
		}

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			PathID: pathID,
			Status: model.JobStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, jobs)
		return nil
	},
}

// -- jobs show --

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show full details of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

// -- jobs retry --

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Re-run the scope of a failed job as a new manual job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "recalc")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Recalc.Retry(ctx, args[0])
		if res != nil && res.Job != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return encErr
			}
		}
		if err != nil {
			return eris.Wrap(err, "jobs retry")
		}
		return nil
	},
}

// -- jobs stats --

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate job statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		jobs, err := st.ListJobs(ctx, store.JobFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "jobs stats")
		}

		var cutoff time.Time
		if since > 0 {
			cutoff = time.Now().Add(-since)
		}
		formatJobStats(os.Stdout, computeJobStats(jobs, cutoff))
		return nil
	},
}

func init() {
	jobsListCmd.Flags().String("path", "", "filter by path ID")
	jobsListCmd.Flags().String("status", "", "filter by job status (pending, processing, completed, failed)")
	jobsListCmd.Flags().Int("limit", 50, "max number of jobs to display")

	jobsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsRetryCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
	rootCmd.AddCommand(jobsCmd)
}

// jobStats holds aggregate statistics computed from a set of jobs.
type jobStats struct {
	Total      int
	Completed  int
	Failed     int
	Other      int
	Coalesced  int
	ByTrigger  map[model.TriggerType]int
	AvgDurSecs float64
}

// computeJobStats computes aggregate statistics from jobs created at or
// after cutoff. A zero cutoff keeps every job.
func computeJobStats(jobs []model.MetricRecalculationJob, cutoff time.Time) jobStats {
	s := jobStats{ByTrigger: make(map[model.TriggerType]int)}

	var totalDur time.Duration
	var durCount int

	for _, j := range jobs {
		if j.CreatedAt.Before(cutoff) {
			continue
		}
		s.Total++
		s.Coalesced += j.CoalescedTriggers
		s.ByTrigger[j.Trigger]++
		switch j.Status {
		case model.JobCompleted:
			s.Completed++
			if j.StartedAt != nil && j.CompletedAt != nil {
				totalDur += j.CompletedAt.Sub(*j.StartedAt)
				durCount++
			}
		case model.JobFailed:
			s.Failed++
		default:
			s.Other++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatJobsList writes a tabular list of jobs to out.
func formatJobsList(out io.Writer, jobs []model.MetricRecalculationJob) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPATH\tSCOPE\tTRIGGER\tSTATUS\tVERSION\tCOALESCED\tCREATED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t-------\t------\t-------\t---------\t-------\t-----")

	for _, j := range jobs {
		version := fmt.Sprintf("%d", j.PreviousVersion)
		if j.NewVersion != nil {
			version = fmt.Sprintf("%d->%d", j.PreviousVersion, *j.NewVersion)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			truncateID(j.ID),
			model.Deref(j.PathID),
			j.Scope,
			j.Trigger,
			j.Status,
			version,
			j.CoalescedTriggers,
			j.CreatedAt.Format("2006-01-02 15:04"),
			truncate(model.Deref(j.ErrorMessage), 40),
		)
	}
	_ = w.Flush()
}

// formatJobStats writes aggregate stats to out.
func formatJobStats(out io.Writer, s jobStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total jobs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Other:\t%d\n", s.Other)
	_, _ = fmt.Fprintf(w, "Coalesced triggers:\t%d\n", s.Coalesced)
	for _, t := range model.TriggerTypes {
		if n := s.ByTrigger[t]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", t, n)
		}
	}
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}
