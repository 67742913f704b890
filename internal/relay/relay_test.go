package relay

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/ledger/ledgertest"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

var (
	alice = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	bob   = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
)

// emit commits one transaction emitting names in order.
func emit(t *testing.T, l *ledger.Ledger, names ...string) {
	t.Helper()
	err := ledgertest.Exec(l, alice, bob, nil, func(c *ledger.Call) error {
		for _, n := range names {
			c.Emit(n, ledger.Args{"amount": new(big.Int).Lsh(big.NewInt(1), 70)})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
}

func TestSink_PushesCommittedEvents(t *testing.T) {
	rdb, mr := newTestRedis(t)
	l, _ := ledgertest.New(t, ledger.WithSink(NewSink(rdb, "", zap.NewNop())))

	emit(t, l, "A", "B")
	_ = ledgertest.Exec(l, alice, bob, nil, func(c *ledger.Call) error {
		c.Emit("Reverted", nil)
		return errors.New("revert")
	})

	items, err := mr.List(DefaultQueue)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %v", len(items), items)
	}
	var e ledger.Event
	if err := json.Unmarshal([]byte(items[0]), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Name != "A" || e.Contract != bob {
		t.Errorf("first event: got %+v", e)
	}
}

func TestSink_EmptyBatch(t *testing.T) {
	rdb, mr := newTestRedis(t)
	if err := NewSink(rdb, "q", zap.NewNop()).Publish(context.Background(), nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if mr.Exists("q") {
		t.Error("empty batch should not create the queue")
	}
}

type collector struct {
	mu     sync.Mutex
	events []ledger.Event
	fail   int
	got    chan struct{}
}

func (c *collector) handle(_ context.Context, events []ledger.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail > 0 {
		c.fail--
		return errors.New("indexer down")
	}
	c.events = append(c.events, events...)
	select {
	case c.got <- struct{}{}:
	default:
	}
	return nil
}

func (c *collector) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Name
	}
	return out
}

// runUntil runs the consumer until want events are collected.
func runUntil(t *testing.T, cons *Consumer, col *collector, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cons.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for len(col.names()) < want {
		select {
		case <-col.got:
		case <-deadline:
			cancel()
			t.Fatalf("timed out: got %v", col.names())
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumer_DrainsInOrder(t *testing.T) {
	rdb, mr := newTestRedis(t)
	l, _ := ledgertest.New(t, ledger.WithSink(NewSink(rdb, "", zap.NewNop())))
	emit(t, l, "A", "B")
	emit(t, l, "C")

	col := &collector{got: make(chan struct{}, 1)}
	cons := NewConsumer(rdb, "", time.Second, col.handle, zap.NewNop())
	runUntil(t, cons, col, 3)

	got := col.names()
	if len(got) != 3 || got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Errorf("got %v, want [A B C]", got)
	}
	if mr.Exists(DefaultQueue) {
		t.Error("queue should be drained")
	}

	// Large amounts survive decoding exactly.
	amt, ok := col.events[0].Args["amount"].(json.Number)
	if !ok || amt.String() != new(big.Int).Lsh(big.NewInt(1), 70).String() {
		t.Errorf("amount: got %#v", col.events[0].Args["amount"])
	}
}

func TestConsumer_RequeuesOnHandlerError(t *testing.T) {
	rdb, _ := newTestRedis(t)
	l, _ := ledgertest.New(t, ledger.WithSink(NewSink(rdb, "", zap.NewNop())))
	emit(t, l, "A", "B", "C")

	col := &collector{got: make(chan struct{}, 1), fail: 1}
	cons := NewConsumer(rdb, "", time.Second, col.handle, zap.NewNop())
	cons.retryDelay = 10 * time.Millisecond
	runUntil(t, cons, col, 3)

	got := col.names()
	if len(got) != 3 || got[0] != "A" || got[2] != "C" {
		t.Errorf("got %v, want [A B C] after retry", got)
	}
}

func TestConsumer_UndecodableToDLQ(t *testing.T) {
	rdb, mr := newTestRedis(t)
	rdb.RPush(context.Background(), DefaultQueue, "not json")
	l, _ := ledgertest.New(t, ledger.WithSink(NewSink(rdb, "", zap.NewNop())))
	emit(t, l, "A")

	col := &collector{got: make(chan struct{}, 1)}
	cons := NewConsumer(rdb, "", time.Second, col.handle, zap.NewNop())
	runUntil(t, cons, col, 1)

	dlq, err := mr.List(DefaultQueue + dlqSuffix)
	if err != nil || len(dlq) != 1 || dlq[0] != "not json" {
		t.Errorf("dlq: got %v, %v", dlq, err)
	}
}

func TestConsumer_DeadLetterFailureLogged(t *testing.T) {
	rdb, mr := newTestRedis(t)
	core, logs := observer.New(zap.ErrorLevel)
	cons := NewConsumer(rdb, "", time.Second, func(context.Context, []ledger.Event) error { return nil }, zap.New(core))

	mr.Close()
	cons.deadLetter("not json")

	entries := logs.FilterMessage("relay: dlq push failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if entries[0].ContextMap()["raw"] != "not json" {
		t.Errorf("raw payload not logged: %v", entries[0].ContextMap())
	}
}
