package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/secrets"
	"github.com/siddu28/Erflog/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the strategist HTTP API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, done, a, logger := bootstrap("serve")
		defer done()

		orch, err := a.orchestrator(ctx)
		if err != nil {
			logger.Fatal("building orchestrator", zap.Error(err))
		}

		cronSecret, err := secrets.Load(secrets.Source{
			Name:  "cron secret",
			File:  a.cfg.Server.CronSecretFile,
			Value: a.cfg.Server.CronSecret,
		})
		if err != nil {
			logger.Warn("cron endpoint disabled", zap.Error(err),
				zap.String("hint", "set CRON_SECRET or server.cron-secret-file"),
			)
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.Server.Addr
		}

		srv := server.New(server.Deps{
			Runner:       orch,
			Snapshots:    a.store,
			Users:        a.store,
			Saved:        a.saved,
			Plans:        a.plans(ctx),
			Tracker:      a.tracker,
			CronSecret:   cronSecret,
			AllowOrigins: a.cfg.Server.CORSOrigins,
			Logger:       logger,
		})
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			logger.Fatal("serving", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
}
