package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fast3r/internal/logging"
	"fast3r/internal/reconstruction"
	"fast3r/internal/types"
)

var (
	jobAdvise     bool
	jobWait       bool
	jobFailReason string
)

// maxParallelAdvice bounds concurrent advice requests for a batch of jobs.
const maxParallelAdvice = 4

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage reconstruction jobs",
}

var jobCreateCmd = &cobra.Command{
	Use:   "create NAME:IMAGES [NAME:IMAGES...]",
	Short: "Create reconstruction jobs",
	Long: `Creates one job per NAME:IMAGES pair. Jobs start in "processing" and
complete after the configured delay. Without --wait the command returns at
once; any fast3r job command run after the delay has passed reports them as
completed. With --wait it stays until every processing job has finished.

With --advise, each job's settings come from the settings advisor (requests
run in parallel); otherwise the defaults are used.

Examples:
  fast3r job create Car:5
  fast3r job create --advise --wait Car:5 "Living room:24"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runJobCreate,
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runJobList,
}

var jobFailCmd = &cobra.Command{
	Use:   "fail JOB-ID",
	Short: "Mark a processing job as failed",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobFail,
}

func init() {
	jobCreateCmd.Flags().BoolVar(&jobAdvise, "advise", false, "Ask the advisor for settings")
	jobCreateCmd.Flags().BoolVar(&jobWait, "wait", false, "Wait until the jobs complete")
	jobFailCmd.Flags().StringVar(&jobFailReason, "reason", "cancelled by user", "Failure reason")
	jobCmd.AddCommand(jobCreateCmd, jobListCmd, jobFailCmd)
}

// jobRequest is one parsed NAME:IMAGES argument.
type jobRequest struct {
	Name       string
	ImageCount int
	Settings   types.JobSettings
}

func parseJobRequest(arg string) (jobRequest, error) {
	i := strings.LastIndex(arg, ":")
	if i <= 0 || i == len(arg)-1 {
		return jobRequest{}, fmt.Errorf("invalid job %q (want NAME:IMAGES)", arg)
	}
	name := strings.TrimSpace(arg[:i])
	n, err := strconv.Atoi(arg[i+1:])
	if err != nil || n <= 0 {
		return jobRequest{}, fmt.Errorf("invalid image count in %q", arg)
	}
	if name == "" {
		return jobRequest{}, fmt.Errorf("job name is empty in %q", arg)
	}
	return jobRequest{Name: name, ImageCount: n, Settings: types.DefaultJobSettings()}, nil
}

// Advisor recommends settings; the provider gateway satisfies it.
type Advisor interface {
	RequestAdvice(ctx context.Context, imageCount int, subjectLabel string) (types.JobSettings, string)
}

// adviseAll fills in settings for every request in parallel. Advice never
// fails, so the group only stops early on cancellation.
func adviseAll(ctx context.Context, advisor Advisor, reqs []jobRequest) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelAdvice)
	for i := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			settings, explanation := advisor.RequestAdvice(ctx, reqs[i].ImageCount, reqs[i].Name)
			reqs[i].Settings = settings
			logging.Jobs("advice for %s: %s", reqs[i].Name, explanation)
			return nil
		})
	}
	return g.Wait()
}

// waitForJobs blocks until the scheduler has completed every armed job or
// ctx is cancelled, in which case the outstanding timers are stopped.
func waitForJobs(ctx context.Context, sched *reconstruction.Scheduler) error {
	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Wait()
		close(done)
		return nil
	})
	g.Go(func() error {
		select {
		case <-done:
			return nil
		case <-gctx.Done():
			sched.Stop()
			return gctx.Err()
		}
	})
	return g.Wait()
}

func runJobCreate(cmd *cobra.Command, args []string) error {
	reqs := make([]jobRequest, 0, len(args))
	for _, arg := range args {
		r, err := parseJobRequest(arg)
		if err != nil {
			return err
		}
		reqs = append(reqs, r)
	}

	a, err := newApp(cmd.Context(), cfg, jobAdvise)
	if err != nil {
		return err
	}
	defer a.Close()

	if jobAdvise {
		if err := adviseAll(cmd.Context(), a.gateway, reqs); err != nil {
			return err
		}
	}

	manager, sched, err := a.jobScheduler()
	if err != nil {
		return err
	}
	defer sched.Stop()

	out := cmd.OutOrStdout()
	for _, r := range reqs {
		id := sched.Submit(r.Name, r.ImageCount, r.Settings)
		fmt.Fprintf(out, "%s  %s (%d images) %s/%s/%s/%s\n", id, r.Name, r.ImageCount,
			r.Settings.Resolution, r.Settings.Mode, r.Settings.CameraIntrinsics, r.Settings.Optimization)
	}
	if !jobWait {
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Waiting for %d job(s), about %s...\n", sched.Pending(), cfg.GetCompletionDelay())
	if err := waitForJobs(cmd.Context(), sched); err != nil {
		return err
	}
	return printJobs(out, manager.List())
}

func runJobList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	manager, sched, err := a.jobScheduler()
	if err != nil {
		return err
	}
	sched.Stop()
	return printJobs(cmd.OutOrStdout(), manager.List())
}

func runJobFail(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	manager, sched, err := a.jobScheduler()
	if err != nil {
		return err
	}
	sched.Stop()
	if !manager.Fail(args[0], jobFailReason) {
		return fmt.Errorf("job %s not found or already finished", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s failed: %s\n", args[0], jobFailReason)
	return nil
}

func printJobs(w io.Writer, jobs []types.ReconstructionJob) error {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tIMAGES\tSTATUS\tSETTINGS\tCREATED")
	for _, j := range jobs {
		status := string(j.Status)
		if j.FailureReason != "" {
			status += " (" + j.FailureReason + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s/%s\t%s\n", j.ID, j.Name, j.ImageCount, status,
			j.Settings.Resolution, j.Settings.Mode, j.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
