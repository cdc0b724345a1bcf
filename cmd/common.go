package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/logger"
)

// bootstrap builds the logger, the configuration and the wired application.
// Failures are fatal, as in every command.
func bootstrap(name string) (context.Context, context.CancelFunc, *application, *zap.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("starting", zap.String("command", name), zap.String("version", version))

	a, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("initializing", zap.Error(err))
	}

	return ctx, func() {
		a.Close()
		_ = logger.Sync()
		cancel()
	}, a, logger
}

func printJSON(v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(pretty))
	return nil
}
