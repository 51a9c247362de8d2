package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wyeliu/stockradar/internal/scheduler"
	"github.com/wyeliu/stockradar/internal/scheduler/jobs"
)

// schedulerCmd runs the long-lived collection daemon.
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the periodic collection daemon",
	Long: `Starts the cron scheduler and keeps syncing the tracked universe
at the configured interval until interrupted.`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sched := scheduler.New(a.log)
	syncJob := jobs.NewSyncJob(a.coll, a.collCfg, a.cfg.Sync.Interval, a.log)
	if err := sched.AddJob(syncJob); err != nil {
		return err
	}

	sched.Start()
	a.log.WithField("interval", a.cfg.Sync.Interval.String()).Info("scheduler started")

	// Run one cycle immediately instead of waiting for the first tick.
	if err := sched.RunJob(syncJob.Name()); err != nil {
		a.log.WithError(err).Warn("initial sync cycle failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.log.WithField("signal", sig.String()).Info("shutting down")
	case <-ctx.Done():
		a.log.Info("context cancelled, shutting down")
	}

	sched.Stop()

	for name, stats := range sched.GetJobStats() {
		a.log.WithFields(map[string]interface{}{
			"job":   name,
			"stats": stats,
		}).Info("job summary")
	}
	return nil
}
