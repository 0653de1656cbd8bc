// Package querycache memoizes report queries. Every registered query owns a
// small LRU keyed by its exact arguments. Entries never expire; a busy query
// simply pushes its oldest results out.
package querycache

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCapacity is the number of argument sets kept per query.
const DefaultCapacity = 3

type Stats struct {
	Hits uint64

	Misses uint64

	Len int
}

// Cache holds one LRU per query name. It is safe for concurrent use.
type Cache struct {
	capacity int

	logger *zap.Logger

	mu sync.Mutex

	queries map[string]*queryCache

	onLookup func(query string, hit bool)
}

type queryCache struct {
	mu sync.Mutex

	lru *simplelru.LRU[any, any]

	group singleflight.Group

	hits, misses uint64
}

func New(capacity int, logger *zap.Logger) *Cache {

	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{

		capacity: capacity,

		logger: logger,

		queries: make(map[string]*queryCache),
	}
}

func (c *Cache) query(name string) *queryCache {

	c.mu.Lock()

	defer c.mu.Unlock()

	q, ok := c.queries[name]

	if !ok {

		lru, err := simplelru.NewLRU[any, any](c.capacity, nil)

		if err != nil {
			// only possible for a non-positive size, which New rules out
			panic(err)
		}

		q = &queryCache{lru: lru}

		c.queries[name] = q
	}

	return q
}

// OnLookup registers fn to be told about every lookup. Call it before the
// cache is shared.
func (c *Cache) OnLookup(fn func(query string, hit bool)) {
	c.onLookup = fn
}

func (c *Cache) observe(query string, hit bool) {

	if c.onLookup != nil {
		c.onLookup(query, hit)
	}
}

// Stats reports counters for the named query.
func (c *Cache) Stats(name string) Stats {

	q := c.query(name)

	q.mu.Lock()

	defer q.mu.Unlock()

	return Stats{Hits: q.hits, Misses: q.misses, Len: q.lru.Len()}
}

// Memoize wraps fn so results are cached under name and the exact argument
// value. Errors are returned to every waiting caller but never cached.
func Memoize[A comparable, R any](c *Cache, name string, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {

	return func(ctx context.Context, args A) (R, error) {

		q := c.query(name)

		q.mu.Lock()

		if v, ok := q.lru.Get(args); ok {

			q.hits++

			q.mu.Unlock()

			c.observe(name, true)

			return v.(R), nil
		}

		q.misses++

		q.mu.Unlock()

		c.observe(name, false)

		// concurrent misses on one key share a single execution
		v, err, _ := q.group.Do(fmt.Sprintf("%#v", args), func() (any, error) {

			q.mu.Lock()

			if v, ok := q.lru.Peek(args); ok {

				q.mu.Unlock()

				return v, nil
			}

			q.mu.Unlock()

			result, err := fn(ctx, args)

			if err != nil {
				return nil, err
			}

			q.mu.Lock()

			if evicted := q.lru.Add(args, result); evicted {
				c.logger.Debug("query cache eviction", zap.String("query", name))
			}

			q.mu.Unlock()

			return result, nil
		})

		if err != nil {

			var zero R

			return zero, err
		}

		return v.(R), nil
	}
}
