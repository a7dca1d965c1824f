package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"payment-reconciler/core/utils"
	"payment-reconciler/feature/divergence"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	listQuery        divergence.ListQuery
	listJSON         bool
	resolveKind      string
	resolveMotive    string
	resolveAdjust    string
	supersedeDescrip string
)

// divergencesCmd is the parent command for divergence operations.
var divergencesCmd = &cobra.Command{
	Use:   "divergences",
	Short: "List and resolve divergences",
}

var divergencesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List divergences, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApplication(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		divs, err := app.divergence.Service().List(cmd.Context(), listQuery)
		if err != nil {
			return err
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(divs)
		}
		for _, d := range divs {
			app.logger.Info("Divergence",
				zap.String("id", d.ID),
				zap.String("status", string(d.Status)),
				zap.String("kind", string(d.Kind)),
				zap.String("description", d.Description),
			)
		}
		app.logger.Info("Divergences listed", zap.Int("count", len(divs)))
		return nil
	},
}

var divergencesResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Resolve a pending divergence",
	Long: `Resolves a pending divergence with one of:
  justificativa   explanation, no financial effect
  ajuste_manual   booked adjustment (requires --adjustment)
  exclusao        closed with no financial effect`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApplication(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		req := divergence.ResolveRequest{Kind: resolveKind, Motive: resolveMotive}
		if resolveAdjust != "" {
			v, err := utils.ParseDecimal(resolveAdjust)
			if err != nil {
				return fmt.Errorf("--adjustment: %w", err)
			}
			req.AdjustmentValue = &v
		}

		d, err := app.divergence.Service().Resolve(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		app.logger.Info("Divergence resolved", zap.String("id", d.ID), zap.String("status", string(d.Status)))
		return nil
	},
}

var divergencesSupersedeCmd = &cobra.Command{
	Use:   "supersede <id>",
	Short: "Reopen a closed divergence as a new pending correction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApplication(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		d, err := app.divergence.Service().Supersede(cmd.Context(), args[0], divergence.SupersedeRequest{Description: supersedeDescrip})
		if err != nil {
			return err
		}
		app.logger.Info("Correction created", zap.String("id", d.ID), zap.String("supersedes_id", d.SupersedesID))
		return nil
	},
}

func init() {
	f := divergencesListCmd.Flags()
	f.StringVar(&listQuery.Status, "status", "", "Filter by status (pending, resolved, justified)")
	f.StringVar(&listQuery.Kind, "kind", "", "Filter by kind")
	f.StringVar(&listQuery.Terminal, "terminal", "", "Filter by terminal id")
	f.StringVar(&listQuery.Period, "period", "", "Filter by period")
	f.StringVarP(&listQuery.Q, "query", "q", "", "Search the description")
	f.IntVar(&listQuery.Limit, "limit", 0, "Maximum results (default 100)")
	f.BoolVar(&listJSON, "json", false, "Print JSON instead of log lines")

	divergencesResolveCmd.Flags().StringVar(&resolveKind, "kind", "", "Resolution kind")
	divergencesResolveCmd.Flags().StringVar(&resolveMotive, "motive", "", "Motive (required)")
	divergencesResolveCmd.Flags().StringVar(&resolveAdjust, "adjustment", "", "Adjustment value for ajuste_manual")
	_ = divergencesResolveCmd.MarkFlagRequired("kind")

	divergencesSupersedeCmd.Flags().StringVar(&supersedeDescrip, "description", "", "Description of the correction")

	divergencesCmd.AddCommand(divergencesListCmd, divergencesResolveCmd, divergencesSupersedeCmd)
	RootCmd.AddCommand(divergencesCmd)
}
