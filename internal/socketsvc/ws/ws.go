package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/strcr/nfc-meals/internal/comm"
	log "github.com/sirupsen/logrus"
)

// Publisher forwards client requests to the scan service.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// client serializes writes; gorilla connections allow one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(m *comm.WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(m)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

const writeWait = 10 * time.Second

var errUnknownSocket = errors.New("unknown socket")

type Ws struct {
	connMap sync.Map // socketId -> *client
	Broker  Publisher
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.TypeInit:
		s.handleInit(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

// handleInit asks the scan service for the current feed on behalf of socketId.
func (s *Ws) handleInit(socketId string, msg *comm.WSMessage) {
	msg.SocketId = socketId

	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	if s.Broker == nil {
		log.Error("no broker attached, dropping init")
		return
	}
	if err := s.Broker.Publish(comm.TopicScanService, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", comm.TopicScanService, err)
		return
	}

	log.Debugf("Published init message for socket %s to topic %s", socketId, comm.TopicScanService)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn})
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}

// Send writes m to one socket. It reports false when the socket is gone.
func (s *Ws) Send(socketId string, m *comm.WSMessage) bool {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return false
	}
	if err := c.(*client).write(m); err != nil {
		log.Errorf("write to socket %s failed: %v", socketId, err)
	}
	return true
}

// Ping sends a keepalive control frame to one socket.
func (s *Ws) Ping(socketId string) error {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return errUnknownSocket
	}
	return c.(*client).ping()
}

// Broadcast writes m to every open socket.
func (s *Ws) Broadcast(m *comm.WSMessage) int {
	sent := 0
	s.connMap.Range(func(key, value any) bool {
		if err := value.(*client).write(m); err != nil {
			log.Errorf("broadcast to socket %s failed: %v", key, err)
		} else {
			sent++
		}
		return true
	})
	return sent
}

func (s *Ws) Count() int {
	n := 0
	s.connMap.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
