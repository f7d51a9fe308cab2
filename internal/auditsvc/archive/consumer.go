package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/strcr/nfc-meals/internal/comm"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
	log "github.com/sirupsen/logrus"
)

// Sink persists one event.
type Sink interface {
	Store(ctx context.Context, ev *models.Event) error
}

// Consumer archives every event-appended message from the feed subject.
type Consumer struct {
	Conn *nats.Conn
	sink Sink
}

func NewConsumer(nc *nats.Conn, sink Sink) *Consumer {
	return &Consumer{Conn: nc, sink: sink}
}

// QueueSubscribe shares the feed between audit instances in queueGroup.
func (c *Consumer) QueueSubscribe(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := c.Conn.QueueSubscribe(topic, queueGroup, c.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (c *Consumer) handleMessage(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(msgNats.Data, message); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	// init-response is a per-socket reply, not a new event
	if message.Type != comm.TypeEventAppended {
		return
	}

	ev := &models.Event{}
	if err := json.Unmarshal(message.Data, ev); err != nil {
		log.Errorf("Error malformed event payload %s", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.sink.Store(ctx, ev); err != nil {
		log.Errorf("Error [Archive.Store] %s", err)
		return
	}

	log.WithFields(log.Fields{"event": ev.ID}).Debug("event archived")
}
