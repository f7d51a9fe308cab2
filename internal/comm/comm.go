package comm

import (
	"encoding/json"

	"github.com/strcr/nfc-meals/internal/scansvc/models"
)

// NATS subjects shared by the services.
const (
	TopicScanService   = "scan.service"   // socket -> scan
	TopicEventsService = "events.service" // scan -> socket, audit
)

// Message types carried in WSMessage.Type.
const (
	TypeInit          = "init"
	TypeInitResponse  = "init-response"
	TypeEventAppended = "event-appended"
	TypeError         = "error"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "init", "event-appended"
	Data     json.RawMessage `json:"data,omitempty"`
	SocketId string          `json:"socketid,omitempty"`
}

// FeedData is the payload of an init-response: the newest events first.
type FeedData struct {
	Events []*models.Event `json:"events"`
}

// NewMessage marshals data into a WSMessage addressed to socketId ("" means everyone).
func NewMessage(msgType string, data any, socketId string) (*WSMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &WSMessage{Type: msgType, Data: raw, SocketId: socketId}, nil
}
