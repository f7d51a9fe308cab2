package service

import (
	"context"
	"sync"

	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/strcr/nfc-meals/internal/scansvc/store"
	log "github.com/sirupsen/logrus"
)

const (
	SuccessPrefix = "✅ Success! "
	ErrorPrefix   = "❌ Error! "
)

// Notifier is told about every appended event, e.g. to push it to live feeds.
type Notifier interface {
	EventAppended(ev *models.Event)
}

// FeedCache holds a copy of the newest events. gen is an opaque version: a
// feed read from the store is only cached under the gen seen before the read.
type FeedCache interface {
	Feed(ctx context.Context) (events []*models.Event, gen string, ok bool)
	StoreFeed(ctx context.Context, gen string, events []*models.Event)
	Invalidate(ctx context.Context)
}

type EventService struct {
	store EventRepo

	mu       sync.RWMutex
	notifier Notifier
	cache    FeedCache
}

func NewEventService(store EventRepo) *EventService {
	return &EventService{store: store}
}

func (s *EventService) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *EventService) SetCache(c FeedCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = c
}

// Append stores message as is.
func (s *EventService) Append(ctx context.Context, message string) (*models.Event, error) {
	ev, err := s.store.CreateEvent(ctx, message)
	if err != nil {
		return nil, storageErr("append event", err)
	}

	s.mu.RLock()
	n, c := s.notifier, s.cache
	s.mu.RUnlock()
	if c != nil {
		c.Invalidate(ctx)
	}
	if n != nil {
		n.EventAppended(ev)
	}

	return ev, nil
}

func (s *EventService) Success(ctx context.Context, message string) (*models.Event, error) {
	return s.Append(ctx, SuccessPrefix+message)
}

func (s *EventService) Fail(ctx context.Context, message string) (*models.Event, error) {
	return s.Append(ctx, ErrorPrefix+message)
}

// List returns the newest events first, at most store.EventFeedLimit of them.
func (s *EventService) List(ctx context.Context) ([]*models.Event, error) {
	s.mu.RLock()
	c := s.cache
	s.mu.RUnlock()

	var gen string
	if c != nil {
		var (
			events []*models.Event
			ok     bool
		)
		if events, gen, ok = c.Feed(ctx); ok {
			return events, nil
		}
	}

	events, err := s.store.ListEvents(ctx, store.EventFeedLimit)
	if err != nil {
		return nil, storageErr("list events", err)
	}

	if c != nil {
		c.StoreFeed(ctx, gen, events)
	}
	return events, nil
}

// record appends and only logs a failure; the caller's outcome is already decided.
func (s *EventService) record(ctx context.Context, message string) {
	if _, err := s.Append(ctx, message); err != nil {
		log.Errorf("Error [EventService.Append] %s: %v", message, err)
	}
}
