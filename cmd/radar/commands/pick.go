package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	pickThreshold float64
	pickMaxCount  int
)

// pickCmd ranks the tracked universe and prints the selection.
var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Rank the tracked universe and print the selection",
	Long: `Scores every tracked instrument on its daily series and prints the
instruments whose composite score clears the threshold, highest first.

Example:
  go run ./cmd/radar pick
  go run ./cmd/radar pick --threshold 70 --max 10`,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)
	pickCmd.Flags().Float64Var(&pickThreshold, "threshold", 0, "minimum composite score (0 uses the strategy default)")
	pickCmd.Flags().IntVar(&pickMaxCount, "max", 0, "maximum picks (0 uses the strategy default)")
}

func runPick(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	threshold := pickThreshold
	if threshold == 0 {
		threshold = a.strat.Selection.ScoreThreshold
	}
	maxCount := pickMaxCount
	if maxCount == 0 {
		maxCount = a.strat.Selection.MaxCount
	}

	picks, err := a.svc.Select(ctx, threshold, maxCount)
	if err != nil {
		return err
	}

	if len(picks) == 0 {
		fmt.Println("no instruments cleared the threshold")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tCODE\tNAME\tSCORE\tCLOSE\tDATE\tQUALITY")
	for i, p := range picks {
		quality := "fresh"
		if p.Degraded {
			quality = "degraded"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%.2f\t%s\t%s\n",
			i+1,
			p.Instrument.Code,
			p.Instrument.Name,
			p.Score.Value,
			p.LatestBar.Close,
			p.LatestBar.Date.Format("2006-01-02"),
			quality,
		)
	}
	return w.Flush()
}
