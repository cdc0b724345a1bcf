package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, done, a, logger := bootstrap("migrate")
		defer done()

		if a.db == nil {
			logger.Fatal("migrate needs a database", zap.String("hint", "set DATABASE_URL or database.url"))
		}
		if err := a.db.Migrate(ctx); err != nil {
			logger.Fatal("migrating", zap.Error(err))
		}
		logger.Info("schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
