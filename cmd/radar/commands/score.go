package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// scoreCmd prints the composite score and factor breakdown for one code.
var scoreCmd = &cobra.Command{
	Use:   "score <code>",
	Short: "Score one instrument and print the factor breakdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	code := args[0]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.svc.Score(ctx, code)
	if err != nil {
		return err
	}

	fmt.Printf("%s  composite %.1f\n", result.Code, result.Value)
	fmt.Printf("  trend     %.1f\n", result.Factors.Trend)
	fmt.Printf("  macd      %.1f\n", result.Factors.MACD)
	fmt.Printf("  rsi       %.1f\n", result.Factors.RSI)
	fmt.Printf("  volume    %.1f\n", result.Factors.Volume)
	fmt.Printf("  momentum  %.1f\n", result.Factors.Momentum)
	return nil
}
