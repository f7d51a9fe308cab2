package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/strcr/nfc-meals/internal/scansvc/store"
)

// fakeRepo is an in-memory implementation of every repository interface.
type fakeRepo struct {
	mu         sync.Mutex
	nextID     int64
	cards      map[string]*models.Card
	allowances map[string]*models.Allowance
	usages     map[int64]*models.Usage
	events     []*models.Event

	// failing operations return failErr
	failOn  map[string]bool
	failErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		cards:      make(map[string]*models.Card),
		allowances: make(map[string]*models.Allowance),
		usages:     make(map[int64]*models.Usage),
		failOn:     make(map[string]bool),
		failErr:    fmt.Errorf("connection refused"),
	}
}

func (f *fakeRepo) repos() Repositories {
	return Repositories{Cards: f, Allowances: f, Usages: f, Events: f}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func allowanceKey(cardID int64, date, t string) string {
	return fmt.Sprintf("%d|%s|%s", cardID, date, t)
}

func (f *fakeRepo) GetCardByUID(_ context.Context, uid string) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["GetCardByUID"] {
		return nil, f.failErr
	}
	c, ok := f.cards[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) CreateCard(_ context.Context, uid string) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cards[uid]; ok {
		return nil, store.ErrDuplicate
	}
	c := &models.Card{ID: f.id(), CardUID: uid, CreatedAt: time.Now()}
	f.cards[uid] = c
	return c, nil
}

func (f *fakeRepo) GetAllowance(_ context.Context, cardID int64, date, t string) (*models.Allowance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["GetAllowance"] {
		return nil, f.failErr
	}
	a, ok := f.allowances[allowanceKey(cardID, date, t)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) CreateAllowance(_ context.Context, cardID int64, date, t string) (*models.Allowance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := allowanceKey(cardID, date, t)
	if _, ok := f.allowances[key]; ok {
		return nil, store.ErrDuplicate
	}
	a := &models.Allowance{ID: f.id(), CardID: cardID, Date: date, Type: t}
	f.allowances[key] = a
	return a, nil
}

func (f *fakeRepo) ListAllowances(_ context.Context, cardID int64) ([]*models.Allowance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Allowance
	for _, a := range f.allowances {
		if a.CardID == cardID {
			cp := *a
			if u, ok := f.usages[a.ID]; ok {
				at := u.CreatedAt
				cp.UsedAt = &at
			}
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *fakeRepo) CreateUsageIfUnused(_ context.Context, allowanceID int64) (*models.Usage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["CreateUsageIfUnused"] {
		return nil, false, f.failErr
	}
	if u, ok := f.usages[allowanceID]; ok {
		return u, false, nil
	}
	u := &models.Usage{ID: f.id(), AllowanceID: allowanceID, CreatedAt: time.Now()}
	f.usages[allowanceID] = u
	return u, true, nil
}

func (f *fakeRepo) CreateEvent(_ context.Context, message string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["CreateEvent"] {
		return nil, f.failErr
	}
	ev := &models.Event{ID: f.id(), Message: message, CreatedAt: time.Now()}
	f.events = append(f.events, ev)
	return ev, nil
}

func (f *fakeRepo) ListEvents(_ context.Context, limit int) ([]*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["ListEvents"] {
		return nil, f.failErr
	}
	out := make([]*models.Event, 0, limit)
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.events[i])
	}
	return out, nil
}

func (f *fakeRepo) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeRepo) usageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.usages)
}

func (f *fakeRepo) lastEvent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return ""
	}
	return f.events[len(f.events)-1].Message
}
