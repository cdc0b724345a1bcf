package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save an item of the user's latest snapshot for roadmap tracking",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, done, a, logger := bootstrap("save")
		defer done()

		userID, _ := cmd.Flags().GetString("user")
		itemID, _ := cmd.Flags().GetString("item")

		if list, _ := cmd.Flags().GetBool("list"); list {
			items, err := a.saved.List(ctx, userID)
			if err != nil {
				logger.Fatal("listing saved items", zap.Error(err))
			}
			if err := printJSON(items); err != nil {
				logger.Fatal("printing saved items", zap.Error(err))
			}
			return
		}

		if id, _ := cmd.Flags().GetString("remove"); id != "" {
			if err := a.saved.Remove(ctx, userID, id); err != nil {
				logger.Fatal("removing saved item", zap.String("saved_item_id", id), zap.Error(err))
			}
			logger.Info("saved item removed", zap.String("saved_item_id", id))
			return
		}

		if itemID == "" {
			logger.Fatal("--item is required unless --list or --remove is set")
		}

		if check, _ := cmd.Flags().GetBool("check"); check {
			res, err := a.saved.Check(ctx, userID, itemID)
			if err != nil {
				logger.Fatal("checking saved item", zap.String("item_id", itemID), zap.Error(err))
			}
			if err := printJSON(res); err != nil {
				logger.Fatal("printing check", zap.Error(err))
			}
			return
		}

		rec, err := a.saved.Save(ctx, userID, itemID)
		if err != nil {
			logger.Fatal("saving item", zap.String("item_id", itemID), zap.Error(err))
		}
		if err := printJSON(rec); err != nil {
			logger.Fatal("printing saved item", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)

	saveCmd.Flags().StringP("user", "u", "", "owner of the saved item")
	saveCmd.Flags().StringP("item", "i", "", "catalog item id from the latest snapshot")
	saveCmd.Flags().Bool("list", false, "list saved items instead of saving")
	saveCmd.Flags().Bool("check", false, "report whether --item is saved instead of saving it")
	saveCmd.Flags().String("remove", "", "saved item id to remove together with its progress")
	_ = saveCmd.MarkFlagRequired("user")
}
