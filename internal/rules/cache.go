package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// cacheKey is (rule.id, hash(params)) per §4.5. The hash deliberately
// excludes subjects — caching is keyed on the rule's own declared
// params only, preserving the source behavior noted as an open question
// in the design notes.
type cacheKey struct {
	ruleID string
	hash   uint64
}

// Cache is consulted by an Executor before running a rule, and populated
// after a successful run.
type Cache interface {
	Get(ruleID string, params Params) (any, bool)
	Put(ruleID string, params Params, value any)
}

// noCache disables caching: every lookup misses.
type noCache struct{}

// NoCache returns a Cache that never stores anything.
func NoCache() Cache { return noCache{} }

func (noCache) Get(string, Params) (any, bool) { return nil, false }
func (noCache) Put(string, Params, any)        {}

// memoryCache is an unbounded, process-local Cache, grounded on the
// correlation store's mutex-guarded map (minus its TTL/LRU eviction,
// which §4.5 does not call for: "memory (unbounded, process-local)").
type memoryCache struct {
	mu      sync.Mutex
	entries map[cacheKey]any
}

// NewMemoryCache returns an unbounded in-process Cache.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[cacheKey]any)}
}

func (c *memoryCache) Get(ruleID string, params Params) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[cacheKey{ruleID: ruleID, hash: params.Hash()}]
	return v, ok
}

func (c *memoryCache) Put(ruleID string, params Params, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{ruleID: ruleID, hash: params.Hash()}] = value
}

// redisCache backs the same (rule.id, hash(params)) keyspace with a
// shared redis instance, for deployments that run more than one engine
// process against the same rule set. Values are JSON-encoded; Get
// reports a miss (rather than erroring) on any decode failure, since a
// cache is an optimization, not a source of truth.
type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an existing *redis.Client. prefix namespaces keys
// for deployments sharing a redis instance across engines.
func NewRedisCache(client *redis.Client, prefix string) Cache {
	return &redisCache{client: client, prefix: prefix}
}

func (c *redisCache) key(ruleID string, params Params) string {
	return fmt.Sprintf("%s:rules:%s:%x", c.prefix, ruleID, params.Hash())
}

func (c *redisCache) Get(ruleID string, params Params) (any, bool) {
	raw, err := c.client.Get(context.Background(), c.key(ruleID, params)).Bytes()
	if err != nil {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return value, true
}

func (c *redisCache) Put(ruleID string, params Params, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(context.Background(), c.key(ruleID, params), raw, 0)
}
