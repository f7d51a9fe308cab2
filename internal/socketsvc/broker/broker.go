package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/strcr/nfc-meals/internal/comm"
	log "github.com/sirupsen/logrus"
)

type Broker struct {
	Conn      *nats.Conn
	Send      func(string, *comm.WSMessage) bool
	Broadcast func(*comm.WSMessage) int
}

func NewBroker(conn *nats.Conn, fncSend func(string, *comm.WSMessage) bool, fncBroadcast func(*comm.WSMessage) int) *Broker {
	return &Broker{
		Conn:      conn,
		Send:      fncSend,
		Broadcast: fncBroadcast,
	}
}

// consume feed messages from the scan service
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message to scan service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleMessages receive message from scan service
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(msgNats.Data, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}

	switch message.Type {
	case comm.TypeInitResponse:
		if !b.Send(message.SocketId, message) {
			log.Debugf("socket %s closed before its init-response arrived", message.SocketId)
		}
	case comm.TypeEventAppended:
		n := b.Broadcast(message)
		log.Debugf("event broadcast to %d socket(s)", n)
	default:
		log.Errorf("Unknown message %q", message.Type)
	}
}
