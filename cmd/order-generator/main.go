package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pizzastream/internal/broker"
	"pizzastream/internal/config"
	"pizzastream/internal/generator"
	"pizzastream/internal/logger"
	"pizzastream/internal/serde"
)

var (
	configFile  string
	rps         float64
	limit       int
	seed        uint64
	skipCatalog bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "order-generator",
		Short: "Publishes sample orders, status transitions and catalog rows",
		RunE:  run,
	}

	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to config file (defaults and environment when empty)")
	rootCmd.Flags().Float64Var(&rps, "rps", 5, "Orders per second")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many orders (0 runs until interrupted)")
	rootCmd.Flags().Uint64Var(&seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	rootCmd.Flags().BoolVar(&skipCatalog, "skip-catalog", false, "Do not publish the product catalog first")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	boot := logger.Bootstrap()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	producer, err := broker.NewProducer(cfg.Broker, log)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	defer producer.Close()

	codec, err := serde.ForFormat(cfg.Streams.Serde.Format)
	if err != nil {
		return err
	}

	pub := generator.NewPublisher(generator.New(seed, generator.DefaultProducts()), producer, codec, cfg.Broker.Kafka.Topics, log)

	if !skipCatalog {
		if err := pub.Catalog(ctx); err != nil {
			return err
		}
		log.Infow("catalog published", "topic", cfg.Broker.Kafka.Topics.Products)
	}

	sent, err := pub.Orders(ctx, rps, limit)
	log.Infow("generator stopped", "orders", sent)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
