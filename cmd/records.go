package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"payment-reconciler/feature/records"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	importSales       string
	importSettlements string
)

// recordsCmd is the parent command for record ingestion.
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Ingest sales and settlements",
}

// recordsImportCmd loads JSON files shaped like the ingestion request bodies.
var recordsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import sales and/or settlements from JSON files",
	Long: `Imports already-parsed records. Files use the HTTP request shape:
  {"sales": [...]} for --sales and {"settlements": [...]} for --settlements.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if importSales == "" && importSettlements == "" {
			return fmt.Errorf("nothing to import, pass --sales and/or --settlements")
		}

		app, err := newApplication(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		svc := app.records.Service()
		if importSales != "" {
			var req records.SalesRequest
			if err := readJSON(importSales, &req); err != nil {
				return err
			}
			n, err := svc.IngestSales(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("import sales: %w", err)
			}
			app.logger.Info("Imported sales", zap.String("file", importSales), zap.Int("count", n))
		}
		if importSettlements != "" {
			var req records.SettlementsRequest
			if err := readJSON(importSettlements, &req); err != nil {
				return err
			}
			n, err := svc.IngestSettlements(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("import settlements: %w", err)
			}
			app.logger.Info("Imported settlements", zap.String("file", importSettlements), zap.Int("count", n))
		}
		return nil
	},
}

// recordsProcessorCmd assigns a terminal to a processor.
var recordsProcessorCmd = &cobra.Command{
	Use:   "processor <terminal> <processor>",
	Short: "Set the payment processor of a terminal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApplication(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.records.Service().SetProcessor(cmd.Context(), args[0], records.TerminalRequest{Processor: args[1]}); err != nil {
			return err
		}
		app.logger.Info("Terminal processor set", zap.String("terminal_id", args[0]), zap.String("processor", args[1]))
		return nil
	},
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func init() {
	recordsImportCmd.Flags().StringVar(&importSales, "sales", "", "Path to a sales JSON file")
	recordsImportCmd.Flags().StringVar(&importSettlements, "settlements", "", "Path to a settlements JSON file")

	recordsCmd.AddCommand(recordsImportCmd, recordsProcessorCmd)
	RootCmd.AddCommand(recordsCmd)
}
