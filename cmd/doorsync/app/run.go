package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"doorsync/internal/connectivity"
	"doorsync/internal/cron"
)

const (
	probeJobName = "connectivity-probe"
	syncJobName  = "record-sync"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the synchronization agent",
	Long: `Run the agent in the foreground.  A connectivity probe and the record
synchronization job are scheduled per the configuration; the agent stops
cleanly on SIGINT or SIGTERM.`,
	RunE: runAgent,
}

func runAgent(_ *cobra.Command, _ []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	env.logger.Printf("starting agent (env=%s, db=%s, remote=%s)",
		env.cfg.Env, env.cfg.DBPath, env.cfg.Remote.BaseURL)

	sched := cron.NewScheduler(env.logger)
	defer sched.StopAll()

	sched.AddSecondsJob(probeJobName, env.cfg.Probe.IntervalSeconds,
		connectivity.NewProbe(env.monitor, env.client.Ping),
		&cron.JobOptions{AutoStart: true, RunOnInit: true},
	)

	syncOpts := &cron.JobOptions{
		AutoStart: true,
		RunOnInit: env.cfg.Sync.RunOnInit,
		OnError: func(name string, err error) {
			env.logger.Printf("job %q: %v", name, err)
		},
	}
	syncAction := env.orch.RunTick

	switch env.cfg.Sync.Mode {
	case "daily":
		sched.AddDailyJob(syncJobName, env.cfg.Sync.DailyHour, env.cfg.Sync.DailyMinute, syncAction, syncOpts)
	default:
		sched.AddSecondsJob(syncJobName, env.cfg.Sync.IntervalSeconds, syncAction, syncOpts)
	}

	// Flush the local buffer as soon as connectivity comes back rather than
	// waiting for the next scheduled tick.
	unsubscribe := env.monitor.OnChange(func(online bool) {
		if online {
			if err := env.orch.RunTick(context.Background()); err != nil {
				env.logger.Printf("sync on reconnect: %v", err)
			}
		}
	})
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	env.logger.Println("shutting down")
	return nil
}
