// Package relay moves committed ledger events onto a Redis list and drains
// them for indexers.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
)

const (
	DefaultQueue = "mint:events"
	dlqSuffix    = ":dlq"
)

// Sink is a ledger.EventSink that appends each event as JSON to a list.
type Sink struct {
	rdb   *redis.Client
	queue string
	log   *zap.Logger
}

func NewSink(rdb *redis.Client, queue string, log *zap.Logger) *Sink {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Sink{rdb: rdb, queue: queue, log: log}
}

// Queue returns the list key events are pushed to.
func (s *Sink) Queue() string { return s.queue }

// Publish pushes the events of one transaction in a single RPUSH so they
// stay contiguous on the list.
func (s *Sink) Publish(ctx context.Context, events []ledger.Event) error {
	if len(events) == 0 {
		return nil
	}
	vals := make([]any, 0, len(events))
	for _, e := range events {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.Name, err)
		}
		vals = append(vals, string(raw))
	}
	if err := s.rdb.RPush(ctx, s.queue, vals...).Err(); err != nil {
		return fmt.Errorf("rpush events: %w", err)
	}
	s.log.Debug("events relayed", zap.Uint64("block", events[0].Block), zap.Int("count", len(events)))
	return nil
}

var _ ledger.EventSink = (*Sink)(nil)
