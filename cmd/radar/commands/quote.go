package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// quoteCmd prints the latest real-time snapshot for one code.
var quoteCmd = &cobra.Command{
	Use:   "quote <code>",
	Short: "Print the latest quote snapshot for one instrument",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	q, err := a.svc.Quote(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s %s  price %.2f  change %+.2f%%  volume %d  at %s\n",
		q.Code, q.Name, q.Price, q.ChangePct, q.Volume, q.At.Format("15:04:05"))
	return nil
}
