package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show counts of records waiting to be uploaded",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	ctx := cmd.Context()

	records, err := env.access.ListUnsynced(ctx)
	if err != nil {
		return fmt.Errorf("list access records: %w", err)
	}
	diags, err := env.diags.ListUnsynced(ctx)
	if err != nil {
		return fmt.Errorf("list diagnostics: %w", err)
	}

	fmt.Printf("pending access records: %d\n", len(records))
	fmt.Printf("pending diagnostics:    %d\n", len(diags))
	for _, d := range diags {
		fmt.Printf("  %s %s [%s/%s] %s\n",
			d.Timestamp.Format("2006-01-02 15:04:05"), d.ServiceName, d.ErrorKind, d.Code, d.Message)
	}
	return nil
}
