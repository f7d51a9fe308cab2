// Package cache keeps the event feed in Redis so polling readers do not hit
// the database on every refresh.
package cache

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
	log "github.com/sirupsen/logrus"
)

//go:embed lua/store_feed.lua
var luaStoreFeed string

//go:embed lua/invalidate_feed.lua
var luaInvalidateFeed string

const (
	DefaultTTL = 30 * time.Second

	feedKey = "nfc-meals:feed"
	genKey  = "nfc-meals:feed:gen"
)

// RedisFeedCache stores the serialized feed under a generation counter. Every
// append bumps the generation, and a feed read from the store is only cached
// if no append happened since the read began.
type RedisFeedCache struct {
	rdb           redis.UniversalClient
	ttl           time.Duration
	scrStore      *redis.Script
	scrInvalidate *redis.Script
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 500 * time.Millisecond
	opts.WriteTimeout = 500 * time.Millisecond

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func NewRedisFeedCache(rdb redis.UniversalClient, ttl time.Duration) *RedisFeedCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisFeedCache{
		rdb:           rdb,
		ttl:           ttl,
		scrStore:      redis.NewScript(luaStoreFeed),
		scrInvalidate: redis.NewScript(luaInvalidateFeed),
	}
}

// Feed returns the cached feed and the generation it was read at. ok is false
// on a miss; gen is empty when Redis could not be reached.
func (c *RedisFeedCache) Feed(ctx context.Context) (events []*models.Event, gen string, ok bool) {
	pipe := c.rdb.Pipeline()
	feedCmd := pipe.Get(ctx, feedKey)
	genCmd := pipe.Get(ctx, genKey)
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Warnf("feed cache unavailable: %v", err)
		return nil, "", false
	}

	gen, err = genCmd.Result()
	if errors.Is(err, redis.Nil) {
		gen = "0"
	} else if err != nil {
		return nil, "", false
	}

	raw, err := feedCmd.Bytes()
	if err != nil {
		return nil, gen, false
	}
	if err := json.Unmarshal(raw, &events); err != nil {
		log.Warnf("dropping unreadable feed cache entry: %v", err)
		return nil, gen, false
	}
	return events, gen, true
}

// StoreFeed caches events if the generation is still gen.
func (c *RedisFeedCache) StoreFeed(ctx context.Context, gen string, events []*models.Event) {
	if gen == "" {
		return
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return
	}
	keys := []string{feedKey, genKey}
	if err := c.scrStore.Run(ctx, c.rdb, keys, gen, string(raw), c.ttl.Milliseconds()).Err(); err != nil {
		log.Warnf("unable to cache feed: %v", err)
	}
}

func (c *RedisFeedCache) Invalidate(ctx context.Context) {
	if err := c.scrInvalidate.Run(ctx, c.rdb, []string{feedKey, genKey}).Err(); err != nil {
		log.Warnf("unable to invalidate feed cache: %v", err)
	}
}
