package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/strcr/nfc-meals/internal/comm"
	"github.com/strcr/nfc-meals/internal/socketsvc/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*comm.WSMessage
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	m := &comm.WSMessage{}
	if err := json.Unmarshal(payload, m); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == comm.TopicScanService {
		f.msgs = append(f.msgs, m)
	}
	return nil
}

func (f *fakePublisher) last() *comm.WSMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return nil
	}
	return f.msgs[len(f.msgs)-1]
}

func newFeedServer(t *testing.T) (*httptest.Server, *ws.Ws, *fakePublisher) {
	t.Helper()

	s := ws.NewWs()
	pub := &fakePublisher{}
	s.Broker = pub

	r := chi.NewRouter()
	SetRoutes(r, s, "secret", "3001")

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, s, pub
}

func wsURL(srv *httptest.Server, key string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws?key=" + key
}

func TestWebSocket_RequiresKey(t *testing.T) {
	srv, _, _ := newFeedServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "wrong"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_InitAndBroadcast(t *testing.T) {
	srv, s, pub := newFeedServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "secret"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(comm.WSMessage{Type: comm.TypeInit}))
	require.Eventually(t, func() bool { return pub.last() != nil }, 2*time.Second, 10*time.Millisecond)

	initMsg := pub.last()
	assert.Equal(t, comm.TypeInit, initMsg.Type)
	require.NotEmpty(t, initMsg.SocketId)

	// the scan service answers on the socket that asked
	reply, err := comm.NewMessage(comm.TypeInitResponse, comm.FeedData{}, initMsg.SocketId)
	require.NoError(t, err)
	assert.True(t, s.Send(initMsg.SocketId, reply))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := &comm.WSMessage{}
	require.NoError(t, conn.ReadJSON(got))
	assert.Equal(t, comm.TypeInitResponse, got.Type)

	ev, err := comm.NewMessage(comm.TypeEventAppended, map[string]any{"id": 1, "message": "✅ Success! Used lunch"}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Broadcast(ev))

	require.NoError(t, conn.ReadJSON(got))
	assert.Equal(t, comm.TypeEventAppended, got.Type)
}

func TestWebSocket_BadMessageGetsError(t *testing.T) {
	srv, _, _ := newFeedServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "secret"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := &comm.WSMessage{}
	require.NoError(t, conn.ReadJSON(got))
	assert.Equal(t, comm.TypeError, got.Type)
}

func TestWebSocket_DisconnectForgetsSocket(t *testing.T) {
	srv, s, _ := newFeedServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "secret"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return s.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	srv, _, _ := newFeedServer(t)

	resp, err := http.Get(srv.URL + "/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
