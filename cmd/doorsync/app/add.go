package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"doorsync/internal/record"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a door access event locally",
	Long: `Record a door access event in the local store.  The record is written
locally first and uploaded by the next synchronization pass.`,
	RunE: runAdd,
}

var addFlags struct {
	status   string
	subjects []string
	orgs     []string
	plate    string
	phone    string
	doorID   string
}

func init() {
	addCmd.Flags().StringVar(&addFlags.status, "status", string(record.StatusEntering), "Record status (entering, exiting, pending)")
	addCmd.Flags().StringSliceVar(&addFlags.subjects, "subject", nil, "Subject name (repeatable)")
	addCmd.Flags().StringSliceVar(&addFlags.orgs, "org", nil, "Organization name (repeatable)")
	addCmd.Flags().StringVar(&addFlags.plate, "plate", "", "Vehicle plate")
	addCmd.Flags().StringVar(&addFlags.phone, "phone", "", "Phone number")
	addCmd.Flags().StringVar(&addFlags.doorID, "door", "", "Door identifier")
}

func runAdd(cmd *cobra.Command, _ []string) error {
	status, err := record.ParseStatus(addFlags.status)
	if err != nil {
		return err
	}

	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	rec := record.Access{
		ID:            record.NewID(),
		Status:        status,
		Subjects:      addFlags.subjects,
		Organizations: addFlags.orgs,
		VehiclePlate:  addFlags.plate,
		PhoneNumber:   addFlags.phone,
		DoorID:        addFlags.doorID,
		EntryTime:     time.Now(),
	}

	stored, err := env.access.Insert(cmd.Context(), rec)
	if err != nil {
		return fmt.Errorf("store access record: %w", err)
	}

	fmt.Printf("recorded %s (%s)\n", stored.ID, stored.Status)
	return nil
}
