package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/progress"
	"github.com/siddu28/Erflog/internal/roadmap"
)

const PromptDone = "done"

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect and update roadmap progress of saved items",
}

var progressGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show roadmap progress of a saved item",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, done, a, logger := bootstrap("progress get")
		defer done()

		itemID, _ := cmd.Flags().GetString("item")
		view, err := a.tracker.Get(ctx, itemID)
		if err != nil {
			logger.Fatal("getting progress", zap.Error(err))
		}
		if err := printJSON(view); err != nil {
			logger.Fatal("printing progress", zap.Error(err))
		}
	},
}

var progressSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Mark roadmap nodes of a saved item as completed (interactive without --node)",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, done, a, logger := bootstrap("progress set")
		defer done()

		itemID, _ := cmd.Flags().GetString("item")
		nodeID, _ := cmd.Flags().GetString("node")

		var expected *int64
		if cmd.Flags().Changed("version") {
			v, _ := cmd.Flags().GetInt64("version")
			expected = &v
		}

		if nodeID != "" {
			completed, _ := cmd.Flags().GetBool("completed")
			res, err := a.tracker.Set(ctx, itemID, nodeID, completed, expected)
			if err != nil {
				logger.Fatal("setting progress", zap.String("node_id", nodeID), zap.Error(err))
			}
			if err := printJSON(res); err != nil {
				logger.Fatal("printing progress", zap.Error(err))
			}
			return
		}

		if err := pickNodes(ctx, a, itemID, logger); err != nil {
			logger.Fatal("updating progress", zap.Error(err))
		}
	},
}

var progressCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Fire the completion of a fully completed roadmap if it has not fired yet",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, done, a, logger := bootstrap("progress check")
		defer done()

		itemID, _ := cmd.Flags().GetString("item")
		c, err := a.tracker.CompleteCheck(ctx, itemID)
		if err != nil {
			logger.Fatal("checking completion", zap.Error(err))
		}
		if err := printJSON(c); err != nil {
			logger.Fatal("printing completion", zap.Error(err))
		}
	},
}

// pickNodes lets the user toggle nodes one by one until they choose done.
func pickNodes(ctx context.Context, a *application, itemID string, logger *zap.Logger) error {
	item, err := a.store.GetSavedItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("load saved item: %w", err)
	}
	if item.Roadmap == nil {
		return progress.ErrNoRoadmap
	}

	nodes := append([]roadmap.Node(nil), item.Roadmap.Graph.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Day < nodes[j].Day })

	for {
		view, err := a.tracker.Get(ctx, itemID)
		if err != nil {
			return err
		}

		items := make([]string, 0, len(nodes)+1)
		for _, n := range nodes {
			mark := " "
			if view.Progress[n.ID].Completed {
				mark = "x"
			}
			items = append(items, fmt.Sprintf("[%s] day %d / %s / %s", mark, n.Day, n.Type, n.Label))
		}

		nodePrompt := promptui.Select{
			Label: fmt.Sprintf("%s: %.1f%% complete, choose a node and press ENTER", item.Title, view.Percentage),
			Items: append(items, PromptDone),
			Size:  len(items) + 1,
		}

		idx, selected, err := nodePrompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				return nil
			}
			return err
		}
		if selected == PromptDone {
			return nil
		}

		node := nodes[idx]
		version := view.Version
		res, err := a.tracker.Set(ctx, itemID, node.ID, !view.Progress[node.ID].Completed, &version)
		if err != nil {
			return err
		}

		logger.Info("progress updated",
			zap.String("node_id", node.ID),
			zap.Float64("percentage", res.View.Percentage),
		)
		if res.Completion != nil {
			logger.Info(res.Completion.Message, zap.Strings("new_skills_added", res.Completion.NewSkillsAdded))
		}
	}
}

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.AddCommand(progressGetCmd, progressSetCmd, progressCheckCmd)

	progressCmd.PersistentFlags().StringP("item", "i", "", "saved item id")
	_ = progressCmd.MarkPersistentFlagRequired("item")

	progressSetCmd.Flags().StringP("node", "n", "", "roadmap node id (omit to pick interactively)")
	progressSetCmd.Flags().Bool("completed", true, "mark the node as completed (false to reset it)")
	progressSetCmd.Flags().Int64("version", 0, "expected progress version; rejects the update if it changed")
}
