package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/saved"
)

var roadmapsCmd = &cobra.Command{
	Use:   "roadmaps",
	Short: "Merge saved roadmaps into master plans and manage them",
}

var roadmapsMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge the roadmaps of two or more saved items into one plan",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, done, a, logger := bootstrap("roadmaps merge")
		defer done()

		userID, _ := cmd.Flags().GetString("user")
		items, _ := cmd.Flags().GetStringSlice("items")
		name, _ := cmd.Flags().GetString("name")

		rec, err := a.plans(ctx).Merge(ctx, userID, name, items)
		if err != nil {
			logger.Fatal("merging roadmaps", zap.Strings("saved_item_ids", items), zap.Error(err))
		}
		if err := printJSON(rec); err != nil {
			logger.Fatal("printing merged roadmap", zap.Error(err))
		}
	},
}

var roadmapsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List merged roadmaps",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, done, a, logger := bootstrap("roadmaps list")
		defer done()

		userID, _ := cmd.Flags().GetString("user")
		out, err := saved.NewPlans(a.store, nil, logger).List(ctx, userID)
		if err != nil {
			logger.Fatal("listing merged roadmaps", zap.Error(err))
		}
		if err := printJSON(out); err != nil {
			logger.Fatal("printing merged roadmaps", zap.Error(err))
		}
	},
}

var roadmapsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a merged roadmap",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, done, a, logger := bootstrap("roadmaps delete")
		defer done()

		userID, _ := cmd.Flags().GetString("user")
		if err := saved.NewPlans(a.store, nil, logger).Delete(ctx, userID, args[0]); err != nil {
			logger.Fatal("deleting merged roadmap", zap.String("merged_roadmap_id", args[0]), zap.Error(err))
		}
		logger.Info("merged roadmap deleted", zap.String("merged_roadmap_id", args[0]))
	},
}

func init() {
	rootCmd.AddCommand(roadmapsCmd)
	roadmapsCmd.AddCommand(roadmapsMergeCmd, roadmapsListCmd, roadmapsDeleteCmd)

	roadmapsCmd.PersistentFlags().StringP("user", "u", "", "owner of the saved items")
	_ = roadmapsCmd.MarkPersistentFlagRequired("user")

	roadmapsMergeCmd.Flags().StringSliceP("items", "i", nil, "saved item ids to merge (at least two)")
	roadmapsMergeCmd.Flags().StringP("name", "n", "", "name of the merged plan")
	_ = roadmapsMergeCmd.MarkFlagRequired("items")
}
