package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collectRefreshProfiles bool

// collectCmd runs one universe sync cycle and exits.
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one universe sync cycle",
	Long: `Synchronizes the stored bar series of every tracked instrument
against its upstream source, fetching only the missing date range.

Example:
  go run ./cmd/radar collect
  go run ./cmd/radar collect --profiles`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().BoolVar(&collectRefreshProfiles, "profiles", false, "also refresh instrument names and flags")
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if collectRefreshProfiles {
		if err := a.svc.RefreshProfiles(ctx); err != nil {
			return err
		}
	}

	results, err := a.coll.SyncAll(ctx, a.collCfg)
	if err != nil {
		return err
	}

	failed := 0
	degraded := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		} else if r.Degraded {
			degraded++
		}
	}

	fmt.Printf("synced %d series (%d degraded, %d failed)\n", len(results), degraded, failed)
	return nil
}
