package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/strcr/nfc-meals/internal/db"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/strcr/nfc-meals/internal/scansvc/service"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "events"

// Record is the archived copy of an event.
type Record struct {
	EventID    int64     `bson:"_id"`
	Message    string    `bson:"message"`
	Success    bool      `bson:"success"`
	CreatedAt  time.Time `bson:"created_at"`
	ArchivedAt time.Time `bson:"archived_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
	Instance   string    `bson:"instance"`
}

type Archive struct {
	coll      *mongo.Collection
	retention time.Duration
	instance  string
}

func New(database *mongo.Database, retention time.Duration, instance string) *Archive {
	return &Archive{
		coll:      database.Collection(Collection),
		retention: retention,
		instance:  instance,
	}
}

func (a *Archive) EnsureIndexes(ctx context.Context) error {
	if err := db.CreateTTLIndexForCollection(ctx, a.coll.Database(), Collection); err != nil {
		return fmt.Errorf("failed to create ttl index: %w", err)
	}
	return nil
}

// Store upserts by event id, so a redelivered event is archived once.
func (a *Archive) Store(ctx context.Context, ev *models.Event) error {
	rec := NewRecord(ev, a.retention, a.instance, time.Now())

	_, err := a.coll.ReplaceOne(ctx, bson.M{"_id": rec.EventID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to archive event %d: %w", ev.ID, err)
	}
	return nil
}

func NewRecord(ev *models.Event, retention time.Duration, instance string, now time.Time) Record {
	created := ev.CreatedAt
	if created.IsZero() {
		created = now
	}
	return Record{
		EventID:    ev.ID,
		Message:    ev.Message,
		Success:    strings.HasPrefix(ev.Message, service.SuccessPrefix),
		CreatedAt:  created.UTC(),
		ArchivedAt: now.UTC(),
		ExpiresAt:  created.Add(retention).UTC(),
		Instance:   instance,
	}
}
