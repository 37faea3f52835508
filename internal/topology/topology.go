// Package topology wires the stream stages onto broker consumers and
// producers.
//
// Three pipelines run side by side, each in its own consumer group:
//
//	items:    products -> catalog table; orders -> router -> catalog join -> enriched-order-items
//	statuses: orders + order statuses -> status join -> enriched-orders
//	revenue:  orders -> hopping window aggregate -> window store
package topology

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"pizzastream/internal/aggregate"
	"pizzastream/internal/broker"
	"pizzastream/internal/catalog"
	"pizzastream/internal/config"
	"pizzastream/internal/constants"
	"pizzastream/internal/logger"
	"pizzastream/internal/serde"
	"pizzastream/internal/statusjoin"
	"pizzastream/internal/windowstore"
)

// Deps are the collaborators built by the service. Consumers is keyed by
// pipeline name.
type Deps struct {
	Producer  broker.Producer
	Consumers map[string]broker.Consumer
	Catalog   catalog.Table
	Registry  *windowstore.Registry
	Logger    logger.Logger
}

type Topology struct {
	topics        config.TopicsConfig
	sweepInterval time.Duration

	codec     *serde.Codec
	producer  broker.Producer
	consumers map[string]broker.Consumer
	registry  *windowstore.Registry
	log       logger.Logger

	catalog    *catalog.Joiner
	statuses   *statusjoin.Stage
	store      windowstore.Store
	aggregator *aggregate.Aggregator
}

func New(cfg *config.Config, deps Deps) (*Topology, error) {
	codec, err := serde.ForFormat(cfg.Streams.Serde.Format)
	if err != nil {
		return nil, fmt.Errorf("serde: %w", err)
	}
	if deps.Producer == nil {
		return nil, errors.New("topology requires a producer")
	}
	if deps.Catalog == nil {
		return nil, errors.New("topology requires a catalog table")
	}
	if deps.Registry == nil {
		return nil, errors.New("topology requires a window store registry")
	}
	for _, name := range []string{constants.PipelineItems, constants.PipelineStatuses, constants.PipelineRevenue} {
		if deps.Consumers[name] == nil {
			return nil, fmt.Errorf("topology requires a consumer for the %s pipeline", name)
		}
	}

	store, err := windowstore.Open(cfg.Streams.State)
	if err != nil {
		return nil, fmt.Errorf("open window store: %w", err)
	}

	log := deps.Logger
	if log == nil {
		log = logger.NopLogger()
	}

	partitions := cfg.Streams.Partitions
	if partitions <= 0 {
		partitions = constants.DefaultPartitions
	}
	sweep := cfg.Streams.StatusJoin.SweepInterval
	if sweep <= 0 {
		sweep = constants.DefaultJoinSweep
	}

	join := cfg.Streams.StatusJoin
	revenue := cfg.Streams.Revenue

	return &Topology{
		topics:        cfg.Broker.Kafka.Topics,
		sweepInterval: sweep,
		codec:         codec,
		producer:      deps.Producer,
		consumers:     deps.Consumers,
		registry:      deps.Registry,
		log:           log,
		catalog:       catalog.NewJoiner(deps.Catalog),
		statuses: statusjoin.NewStage(partitions, statusjoin.JoinWindow{
			Before: join.Before,
			After:  join.After,
			Grace:  join.Grace,
		}),
		store: store,
		aggregator: aggregate.NewAggregator(aggregate.HoppingWindows{
			Size:    revenue.Size,
			Advance: revenue.Advance,
			Grace:   revenue.Grace,
		}, store, log.Named(constants.PipelineRevenue)),
	}, nil
}

// Run publishes the window store to the registry, then consumes until ctx
// is done. The caller closes the consumers and then calls Close.
func (t *Topology) Run(ctx context.Context) error {
	t.registry.MarkReady(t.store)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return t.consumers[constants.PipelineItems].Consume(ctx,
			[]string{t.topics.Products, t.topics.Orders}, t.HandleItems)
	})
	g.Go(func() error {
		return t.consumers[constants.PipelineStatuses].Consume(ctx,
			[]string{t.topics.Orders, t.topics.OrderStatuses}, t.HandleStatuses)
	})
	g.Go(func() error {
		return t.consumers[constants.PipelineRevenue].Consume(ctx,
			[]string{t.topics.Orders}, t.HandleRevenue)
	})
	g.Go(func() error {
		return t.sweepLoop(ctx)
	})

	t.log.Infow("Topology started",
		"orders_topic", t.topics.Orders,
		"order_statuses_topic", t.topics.OrderStatuses,
		"products_topic", t.topics.Products,
	)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (t *Topology) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			purged, err := t.statuses.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				t.log.Warnw("Status join sweep failed", "error", err)
				continue
			}
			if purged > 0 {
				t.log.Debugw("Status join buffers purged", "records", purged)
			}
		}
	}
}

// Close drains the status join partitions and closes the window store.
// Consumers must be closed first so no handler is still running.
func (t *Topology) Close() error {
	t.statuses.Close()

	if err := t.store.Close(); err != nil {
		return fmt.Errorf("close window store: %w", err)
	}
	return nil
}

// Store is the window store the revenue pipeline writes to.
func (t *Topology) Store() windowstore.Store {
	return t.store
}
