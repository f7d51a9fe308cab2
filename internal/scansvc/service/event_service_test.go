package service

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFeedCache mimics the generation rules of the Redis cache.
type memFeedCache struct {
	mu     sync.Mutex
	gen    int
	events []*models.Event
	cached bool
	hits   int
}

func (m *memFeedCache) Feed(context.Context) ([]*models.Event, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached {
		m.hits++
	}
	return m.events, strconv.Itoa(m.gen), m.cached
}

func (m *memFeedCache) StoreFeed(_ context.Context, gen string, events []*models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == strconv.Itoa(m.gen) {
		m.events, m.cached = events, true
	}
}

func (m *memFeedCache) Invalidate(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.events, m.cached = nil, false
}

func TestEventService_CachedFeed(t *testing.T) {
	repo := newFakeRepo()
	svc := NewEventService(repo)
	cache := &memFeedCache{}
	svc.SetCache(cache)
	ctx := context.Background()

	_, err := svc.Append(ctx, "one")
	require.NoError(t, err)

	events, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// served from the cache now, even if the store fails
	repo.failOn["ListEvents"] = true
	events, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, cache.hits)

	// an append invalidates, so the next read goes back to the store
	repo.failOn["ListEvents"] = false
	_, err = svc.Append(ctx, "two")
	require.NoError(t, err)

	events, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "two", events[0].Message)
}

func TestEventService_StaleFeedIsNotCached(t *testing.T) {
	repo := newFakeRepo()
	cache := &memFeedCache{}
	ctx := context.Background()

	// the feed was read at gen 0, then an append bumped the gen
	stale, gen, _ := cache.Feed(ctx)
	cache.Invalidate(ctx)
	cache.StoreFeed(ctx, gen, stale)

	svc := NewEventService(repo)
	svc.SetCache(cache)
	_, err := svc.Append(ctx, "fresh")
	require.NoError(t, err)

	events, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].Message)
}
