package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/utils"
	"payment-reconciler/feature/reconciliation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for reconcile run command
	runTerminal       string
	runPeriod         string
	runValueTolerance string
	runDayTolerance   int
	runNoGrouping     bool
	dryRunReconcile   bool
	yesConfirm        bool
	historyArchived   bool
)

// reconcileCmd is the parent command for all reconcile operations.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match sales against settlements for a terminal and period",
}

// reconcileRunCmd plans a run, prints the report and commits it when confirmed.
var reconcileRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile one terminal and period (report + optionally commit)",
	Long: `Loads the unmatched sales and settlements of a terminal and period, matches them
and reports the groups and divergences the run would produce.

Examples:
  # Report only
  reconcile run --terminal T1 --period 2024-01 --dry-run

  # Commit with interactive confirmation
  reconcile run --terminal T1 --period 2024-01

  # Commit with a wider tolerance, non-interactive
  reconcile run --terminal T1 --period 2024-01 --value-tolerance 0.50 --yes`,
	RunE: runReconcile,
}

// reconcileHistoryCmd lists past runs of a scope.
var reconcileHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List the runs of a terminal and period",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApplication(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		scope := reconcile.Scope{TerminalID: runTerminal, Period: runPeriod}
		if historyArchived {
			keys, err := app.reconciliation.Coordinator().ArchivedKeys(cmd.Context(), scope)
			if err != nil {
				return err
			}
			for _, key := range keys {
				app.logger.Info("Archived run", zap.String("key", key))
			}
			return nil
		}

		runs, err := app.reconciliation.Coordinator().History(cmd.Context(), scope)
		if err != nil {
			return err
		}
		for _, r := range runs {
			app.logger.Info("Run",
				zap.String("id", r.ID),
				zap.String("status", string(r.Status)),
				zap.Time("started_at", r.StartedAt),
				zap.Int("matched_simple", r.Counts.MatchedSimple),
				zap.Int("matched_grouped", r.Counts.MatchedGrouped),
				zap.Int("divergences_created", r.Counts.DivergencesCreated),
				zap.String("error", r.Error),
			)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{reconcileRunCmd, reconcileHistoryCmd} {
		c.Flags().StringVar(&runTerminal, "terminal", "", "Terminal id")
		c.Flags().StringVar(&runPeriod, "period", "", "Period label (e.g. 2024-01)")
		_ = c.MarkFlagRequired("terminal")
		_ = c.MarkFlagRequired("period")
		reconcileCmd.AddCommand(c)
	}

	reconcileHistoryCmd.Flags().BoolVar(&historyArchived, "archived", false, "List archived snapshots instead of stored runs")

	reconcileRunCmd.Flags().StringVar(&runValueTolerance, "value-tolerance", "", "Override the value tolerance")
	reconcileRunCmd.Flags().IntVar(&runDayTolerance, "day-tolerance", -1, "Override the day tolerance")
	reconcileRunCmd.Flags().BoolVar(&runNoGrouping, "no-grouping", false, "Disable N:1 grouping")
	reconcileRunCmd.Flags().BoolVar(&dryRunReconcile, "dry-run", false, "Report only, never commit")
	reconcileRunCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Commit without confirmation (non-interactive)")

	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	// Ctrl+C before the commit cancels the run without writing matches
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	l := app.logger
	coordinator := app.reconciliation.Coordinator()
	scope := reconcile.Scope{TerminalID: runTerminal, Period: runPeriod}

	cfg, err := runConfig(coordinator.Defaults())
	if err != nil {
		return err
	}

	// Step 1: Plan (always runs)
	l.Info("Planning reconciliation...", zap.String("terminal_id", scope.TerminalID), zap.String("period", scope.Period))
	plan, err := coordinator.Plan(ctx, scope, &cfg)
	if err != nil {
		return fmt.Errorf("failed to plan reconciliation: %w", err)
	}

	// Step 2: Print report
	printPlan(l, plan)

	if dryRunReconcile {
		l.Info("Dry-run mode: No changes were made.")
		return nil
	}
	if len(plan.Groups) == 0 && len(plan.Divergences) == 0 {
		l.Info("Nothing to commit.")
		return nil
	}

	// Step 3: Commit (if confirmed)
	if !confirmCommit() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	run, err := coordinator.Run(ctx, scope, &cfg)
	if err != nil {
		if run.ID == "" {
			return err
		}
		return fmt.Errorf("run %s %s: %w", run.ID, run.Status, err)
	}

	l.Info("Run committed",
		zap.String("run_id", run.ID),
		zap.Int("matched_simple", run.Counts.MatchedSimple),
		zap.Int("matched_grouped", run.Counts.MatchedGrouped),
		zap.Int("divergences_created", run.Counts.DivergencesCreated),
		zap.Int("divergences_closed", run.Counts.DivergencesClosed),
	)
	return nil
}

// runConfig applies the command line overrides to the configured defaults.
func runConfig(base reconcile.MatchConfig) (reconcile.MatchConfig, error) {
	if runValueTolerance != "" {
		v, err := utils.ParseDecimal(runValueTolerance)
		if err != nil {
			return base, fmt.Errorf("--value-tolerance: %w", err)
		}
		base.ValueTolerance = v
	}
	if runDayTolerance >= 0 {
		base.DayTolerance = runDayTolerance
	}
	if runNoGrouping {
		base.GroupingEnabled = false
	}
	return base, base.Validate()
}

// printPlan prints a formatted run report using logger.
func printPlan(l *zap.Logger, plan *reconciliation.Plan) {
	c := plan.Run.Counts
	l.Info("Reconciliation report",
		zap.Int("sales_loaded", c.SalesLoaded),
		zap.Int("settlements_loaded", c.SettlementsLoaded),
		zap.Int("matched_simple", c.MatchedSimple),
		zap.Int("matched_grouped", c.MatchedGrouped),
		zap.Int("divergences", c.DivergencesCreated),
	)

	// Show sample of divergences (max 5 for logger)
	maxShow := 5
	if len(plan.Divergences) < maxShow {
		maxShow = len(plan.Divergences)
	}
	for _, d := range plan.Divergences[:maxShow] {
		l.Info("Sample divergence",
			zap.String("kind", string(d.Kind)),
			zap.String("description", d.Description),
		)
	}
	if len(plan.Divergences) > maxShow {
		l.Info("Additional divergences not shown", zap.Int("count", len(plan.Divergences)-maxShow))
	}
}

// confirmCommit prompts the user for confirmation or uses --yes flag.
func confirmCommit() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\nType 'yes' to commit this run: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}

