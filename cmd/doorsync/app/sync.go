package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass and exit",
	RunE:  runSyncOnce,
}

func runSyncOnce(cmd *cobra.Command, _ []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	// Probe first so the tick sees the real connectivity state.
	env.monitor.SetOnline(env.client.Ping(ctx) == nil)

	return env.orch.RunTick(ctx)
}
