package cmd

import (
	"encoding/json"
	"os"

	"payment-reconciler/feature/statistics"

	"github.com/spf13/cobra"
)

var (
	statsTerminals string
	statsFrom      string
	statsTo        string
)

// statsCmd prints the performance report as JSON.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the reconciliation performance report",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := statistics.ParseQuery(statsTerminals, statsFrom, statsTo)
		if err != nil {
			return err
		}

		app, err := newApplication(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := app.statistics.Service().Compute(cmd.Context(), q)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsTerminals, "terminals", "", "Comma separated terminal ids (default all)")
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "First day, YYYY-MM-DD")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "Last day, YYYY-MM-DD")
	RootCmd.AddCommand(statsCmd)
}
