package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/strcr/nfc-meals/internal/comm"
	"github.com/strcr/nfc-meals/internal/scansvc/models"
	"github.com/strcr/nfc-meals/internal/scansvc/service"
	log "github.com/sirupsen/logrus"
)

type publisher interface {
	Publish(subj string, data []byte) error
}

type Broker struct {
	Conn   *nats.Conn
	pub    publisher
	events *service.EventService
}

func NewBroker(nc *nats.Conn, events *service.EventService) *Broker {
	return &Broker{
		Conn:   nc,
		pub:    nc,
		events: events,
	}
}

// EventAppended pushes a freshly stored event to every live feed.
func (b *Broker) EventAppended(ev *models.Event) {
	msg, err := comm.NewMessage(comm.TypeEventAppended, ev, "")
	if err != nil {
		log.Errorf("unable to marshal event %d: %s", ev.ID, err)
		return
	}
	b.send(msg)
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case comm.TypeInit:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		events, err := b.events.List(ctx)
		if err != nil {
			log.Errorf("Error [EventService.List] %s", err)
			return
		}

		b.PublishInitResponse(comm.FeedData{Events: events}, msg.SocketId)
	default:
		log.Errorf("Unknown message %q", msg.Type)
	}
}

func (b *Broker) PublishInitResponse(feed comm.FeedData, socketId string) {
	msg, err := comm.NewMessage(comm.TypeInitResponse, feed, socketId)
	if err != nil {
		log.Errorf("unable to marshal feed for %s: %s", socketId, err)
		return
	}
	b.send(msg)
}

func (b *Broker) send(msg *comm.WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}
	b.Publish(comm.TopicEventsService, payload)
}

// consume message from socket service
func (b *Broker) SubscribeSocketService(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.pub.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
