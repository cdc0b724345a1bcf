package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build today's snapshot for one user",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, done, a, logger := bootstrap("run")
		defer done()

		userID, _ := cmd.Flags().GetString("user")
		force, _ := cmd.Flags().GetBool("force")
		summary, _ := cmd.Flags().GetBool("summary")

		orch, err := a.orchestrator(ctx)
		if err != nil {
			logger.Fatal("building orchestrator", zap.Error(err))
		}

		out, err := orch.Run(ctx, userID, force)
		if err != nil {
			logger.Error("run failed", zap.String("user_id", userID), zap.Error(err))
			done()
			os.Exit(1)
		}

		logger.Info("snapshot ready",
			zap.String("user_id", userID),
			zap.String("date", out.Snapshot.Date),
			zap.Bool("cached", out.Cached),
			zap.Any("stats", out.Snapshot.Stats),
		)

		var payload any = out.Snapshot
		if summary {
			payload = out.Snapshot.Stats
		}
		if err := printJSON(payload); err != nil {
			logger.Fatal("printing snapshot", zap.Error(err))
		}
	},
}

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run the daily snapshot for every active user (or the given ones)",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, done, a, logger := bootstrap("run-all")
		defer done()

		users, _ := cmd.Flags().GetStringSlice("users")
		if len(users) == 0 {
			var err error
			users, err = a.store.ActiveUserIDs(ctx)
			if err != nil {
				logger.Fatal("listing active users", zap.Error(err))
			}
		}
		for i := range users {
			users[i] = strings.TrimSpace(users[i])
		}

		orch, err := a.orchestrator(ctx)
		if err != nil {
			logger.Fatal("building orchestrator", zap.Error(err))
		}

		sum := orch.RunAll(ctx, users)
		if err := printJSON(sum); err != nil {
			logger.Fatal("printing summary", zap.Error(err))
		}
		if sum.Failed > 0 && sum.Failed == sum.Total {
			done()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runAllCmd)

	runCmd.Flags().StringP("user", "u", "", "user id to build the snapshot for")
	runCmd.Flags().BoolP("force", "f", false, "rebuild and replace today's snapshot even if one exists")
	runCmd.Flags().Bool("summary", false, "print only the snapshot stats")
	_ = runCmd.MarkFlagRequired("user")

	runAllCmd.Flags().StringSlice("users", nil, "comma separated user ids (default: every active user)")
}
