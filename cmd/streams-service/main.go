package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pizzastream/internal/config"
	"pizzastream/internal/logger"
)

func main() {
	var configFile string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the order pipelines and the overview API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configFile)
		},
	}

	root := &cobra.Command{
		Use:          "streams-service",
		Short:        "Order stream processing service",
		Long:         "Joins orders with the product catalog and order statuses, and serves rolling order counts and revenue.",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "path to a YAML config file; defaults and environment when empty")
	root.AddCommand(serve)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, configFile string) error {
	boot := logger.Bootstrap()
	if configFile == "" {
		boot.Info("no config file given, using defaults and environment")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		boot.Errorw("failed to load config", "error", err)
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		boot.Errorw("failed to init logger", "error", err)
		return err
	}
	defer log.Sync()

	log.Infow("starting streams service", "state_backend", cfg.Streams.State.Backend, "catalog_backend", cfg.Catalog.Backend)

	app := NewApp(cfg, log)
	if err := app.Initialize(ctx); err != nil {
		log.Errorw("failed to initialize application", "error", err)
		return fmt.Errorf("initialize: %w", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Errorw("service stopped with error", "error", err)
		return err
	}
	log.Info("service shutdown complete")
	return nil
}
