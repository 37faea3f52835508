package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

const checkTimeout = 5 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type registered struct {
	checker Checker
	// optional checks degrade the overall status instead of failing it
	optional bool
}

type CheckerRegistry struct {
	checkers []registered
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, registered{checker: checker})
}

func (r *CheckerRegistry) RegisterOptional(checker Checker) {
	r.checkers = append(r.checkers, registered{checker: checker, optional: true})
}

// Check runs every checker concurrently. A failing required check makes the
// result unhealthy; a failing optional one only degrades it.
func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make([]CheckResult, len(r.checkers))

	var g errgroup.Group
	for i, c := range r.checkers {
		g.Go(func() error {
			result := CheckResult{Status: StatusHealthy}
			if err := c.checker.Check(ctx); err != nil {
				result.Message = err.Error()
				result.Status = StatusUnhealthy
				if c.optional {
					result.Status = StatusDegraded
				}
			}
			result.Timestamp = time.Now()
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	h := Health{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(results)),
	}
	for i, result := range results {
		h.Checks[r.checkers[i].checker.Name()] = result
		switch {
		case result.Status == StatusUnhealthy:
			h.Status = StatusUnhealthy
		case result.Status == StatusDegraded && h.Status == StatusHealthy:
			h.Status = StatusDegraded
		}
	}
	return h
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string {
	return "redis"
}

func (c *RedisChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

type KafkaChecker struct {
	brokers []string
}

func NewKafkaChecker(brokers []string) *KafkaChecker {
	return &KafkaChecker{brokers: brokers}
}

func (c *KafkaChecker) Name() string {
	return "kafka"
}

// Check succeeds when at least one broker accepts a connection.
func (c *KafkaChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	dialer := &kafka.Dialer{Timeout: checkTimeout}
	var lastErr error
	for _, addr := range c.brokers {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &net.AddrError{Err: "no brokers configured"}
	}
	return fmt.Errorf("kafka unreachable: %w", lastErr)
}

// FuncChecker adapts a plain function, e.g. a window store readiness probe.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) error
}

func NewFuncChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string {
	return c.name
}

func (c *FuncChecker) Check(ctx context.Context) error {
	return c.fn(ctx)
}
