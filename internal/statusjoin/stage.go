package statusjoin

import (
	"context"

	"pizzastream/pkg/models"
	"pizzastream/pkg/stream"
)

// Stage spreads the join over partitions keyed by order id, one Joiner and
// one stream time per partition.
type Stage struct {
	runner *stream.Runner[*Joiner]
}

func NewStage(partitions int, window JoinWindow) *Stage {
	return &Stage{
		runner: stream.NewRunner(partitions, 64, func(p int) *Joiner {
			return NewJoiner(p, window)
		}),
	}
}

func (s *Stage) Order(ctx context.Context, order models.Order) ([]stream.Outcome[models.EnrichedOrder], error) {
	return stream.Call(ctx, s.runner, order.ID.String(), func(j *Joiner) ([]stream.Outcome[models.EnrichedOrder], error) {
		return j.ProcessOrder(order), nil
	})
}

func (s *Stage) Status(ctx context.Context, status models.OrderStatus) ([]stream.Outcome[models.EnrichedOrder], error) {
	return stream.Call(ctx, s.runner, status.ID.String(), func(j *Joiner) ([]stream.Outcome[models.EnrichedOrder], error) {
		return j.ProcessStatus(status), nil
	})
}

// Sweep purges expired buffers on every partition.
func (s *Stage) Sweep(ctx context.Context) (int, error) {
	purged, err := stream.Gather(ctx, s.runner, func(_ int, j *Joiner) (int, error) {
		return j.Sweep(), nil
	})
	total := 0
	for _, n := range purged {
		total += n
	}
	return total, err
}

// Close drains queued work and stops the partitions.
func (s *Stage) Close() {
	s.runner.Close()
}
