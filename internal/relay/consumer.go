package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
)

const maxBatchSize = 50

// Handler processes a batch of events in list order. Returning an error
// puts the whole batch back at the head of the queue.
type Handler func(ctx context.Context, events []ledger.Event) error

// Consumer drains a relay queue.
type Consumer struct {
	rdb        *redis.Client
	queue      string
	handle     Handler
	timeout    time.Duration
	retryDelay time.Duration
	log        *zap.Logger
}

// NewConsumer returns a consumer for queue. timeout bounds each BLPOP.
func NewConsumer(rdb *redis.Client, queue string, timeout time.Duration, handle Handler, log *zap.Logger) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Consumer{
		rdb:        rdb,
		queue:      queue,
		handle:     handle,
		timeout:    timeout,
		retryDelay: 5 * time.Second,
		log:        log,
	}
}

// Run is the consumer loop: BLPOP, drain up to a batch, handle. It returns
// when ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("relay consumer started", zap.String("queue", c.queue))

	for {
		if ctx.Err() != nil {
			c.log.Info("relay consumer stopped")
			return
		}

		results, err := c.rdb.BLPop(ctx, c.timeout, c.queue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			c.log.Error("relay: BLPOP error", zap.Error(err))
			c.sleep(ctx, time.Second)
			continue
		}

		raw := []string{results[1]}
		if rest, err := c.rdb.LPopCount(ctx, c.queue, maxBatchSize-1).Result(); err == nil {
			raw = append(raw, rest...)
		} else if err != redis.Nil {
			c.log.Error("relay: LPOP", zap.Error(err))
		}

		events := make([]ledger.Event, 0, len(raw))
		kept := make([]string, 0, len(raw))
		for _, r := range raw {
			e, err := decode(r)
			if err != nil {
				c.log.Error("relay: undecodable event moved to dlq", zap.String("raw", r), zap.Error(err))
				c.deadLetter(r)
				continue
			}
			events = append(events, e)
			kept = append(kept, r)
		}
		if len(events) == 0 {
			continue
		}

		if err := c.handle(ctx, events); err != nil {
			c.log.Error("relay: handler failed, requeueing batch",
				zap.Int("count", len(events)),
				zap.Error(err),
			)
			c.requeue(kept)
			c.sleep(ctx, c.retryDelay)
			continue
		}
		c.log.Debug("relay batch handled", zap.Int("count", len(events)))
	}
}

// requeue pushes items back to the head in their original order. It uses a
// fresh context so a shutdown mid-batch does not lose events.
func (c *Consumer) requeue(items []string) {
	vals := make([]any, len(items))
	for i := range items {
		vals[i] = items[len(items)-1-i]
	}
	if err := c.rdb.LPush(context.Background(), c.queue, vals...).Err(); err != nil {
		c.log.Error("relay: requeue failed", zap.Int("count", len(items)), zap.Error(err))
	}
}

// deadLetter parks raw on the dead-letter list. Like requeue it ignores
// shutdown; a failed push is logged with the payload so it can be replayed.
func (c *Consumer) deadLetter(raw string) {
	if err := c.rdb.RPush(context.Background(), c.queue+dlqSuffix, raw).Err(); err != nil {
		c.log.Error("relay: dlq push failed", zap.String("raw", raw), zap.Error(err))
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// decode keeps numeric args as json.Number so amounts above 2^53 survive.
func decode(raw string) (ledger.Event, error) {
	var e ledger.Event
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	err := dec.Decode(&e)
	return e, err
}
