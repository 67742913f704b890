// Package manifest persists the addresses of deployed contracts in Redis,
// one hash per contract name.
package manifest

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mint:manifest:"

// Entry records where a contract was deployed. Implementation is the
// template a clone was created from, zero for standalone contracts.
type Entry struct {
	Name           string
	Address        common.Address
	Implementation common.Address
	Block          uint64
}

func key(name string) string {
	return keyPrefix + name
}

func Save(ctx context.Context, rdb *redis.Client, e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("manifest entry without name")
	}
	return rdb.HSet(ctx, key(e.Name),
		"name", e.Name,
		"address", e.Address.Hex(),
		"implementation", e.Implementation.Hex(),
		"block", e.Block,
	).Err()
}

// Get returns nil, nil when name has no entry.
func Get(ctx context.Context, rdb *redis.Client, name string) (*Entry, error) {
	vals, err := rdb.HGetAll(ctx, key(name)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return fromMap(vals)
}

func Delete(ctx context.Context, rdb *redis.Client, name string) error {
	return rdb.Del(ctx, key(name)).Err()
}

// DeletePrefix removes every entry whose name starts with prefix and
// returns how many were removed.
func DeletePrefix(ctx context.Context, rdb *redis.Client, prefix string) (int, error) {
	removed := 0
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, key(prefix)+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan manifest: %w", err)
		}
		if len(keys) > 0 {
			n, err := rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("delete manifest: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// All returns every entry sorted by block, then name.
func All(ctx context.Context, rdb *redis.Client) ([]Entry, error) {
	var entries []Entry
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan manifest: %w", err)
		}
		for _, k := range keys {
			vals, err := rdb.HGetAll(ctx, k).Result()
			if err != nil || len(vals) == 0 {
				continue
			}
			e, err := fromMap(vals)
			if err != nil {
				continue
			}
			entries = append(entries, *e)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Block != entries[j].Block {
			return entries[i].Block < entries[j].Block
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func fromMap(m map[string]string) (*Entry, error) {
	addr := m["address"]
	if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("manifest %q: invalid address %q", m["name"], addr)
	}
	block, err := strconv.ParseUint(m["block"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("manifest %q: block: %w", m["name"], err)
	}
	e := &Entry{
		Name:    m["name"],
		Address: common.HexToAddress(addr),
		Block:   block,
	}
	if impl := m["implementation"]; common.IsHexAddress(impl) {
		e.Implementation = common.HexToAddress(impl)
	}
	return e, nil
}
