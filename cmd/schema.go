package cmd

import (
	"fmt"
	"sort"

	"payment-reconciler/core/config"
	"payment-reconciler/core/database"
	"payment-reconciler/core/logger"
	"payment-reconciler/core/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// schemaCmd checks that the database carries every column the service reads.
// Unlike the other commands it never migrates, so it reports drift as found.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Check the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		l, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer l.Sync()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		tables := store.Tables()
		names := make([]string, 0, len(tables))
		for name := range tables {
			names = append(names, name)
		}
		sort.Strings(names)

		broken := 0
		for _, name := range names {
			missing, err := database.MissingColumns(db, name, tables[name])
			if err != nil {
				return fmt.Errorf("inspect %s: %w", name, err)
			}
			if len(missing) > 0 {
				broken++
				l.Warn("Table is missing columns", zap.String("table", name), zap.Strings("columns", missing))
				continue
			}
			l.Info("Table ok", zap.String("table", name))
		}

		if broken > 0 {
			return fmt.Errorf("%d table(s) out of date, run 'start' or any command that migrates", broken)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(schemaCmd)
}
