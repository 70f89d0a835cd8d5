package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kumex-futures-sdk/kumex"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// newPushServer upgrades every request and hands the connection to handle
func newPushServer(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func welcome(conn *websocket.Conn, r *http.Request) error {
	return conn.WriteJSON(Message{ID: r.URL.Query().Get("connectId"), Type: TypeWelcome})
}

// drain reads until the client goes away
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func receive(t *testing.T, f *Feed) *Message {
	t.Helper()
	select {
	case m, ok := <-f.Messages():
		require.True(t, ok, "feed closed")
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestDialSubscribeAndReceive(t *testing.T) {
	query := make(chan map[string]string, 1)
	requests := make(chan Message, 1)

	wsURL := newPushServer(t, func(conn *websocket.Conn, r *http.Request) {
		query <- map[string]string{
			"token":     r.URL.Query().Get("token"),
			"connectId": r.URL.Query().Get("connectId"),
		}
		if welcome(conn, r) != nil {
			return
		}

		var sub Message
		if conn.ReadJSON(&sub) != nil {
			return
		}
		requests <- sub
		conn.WriteJSON(Message{ID: sub.ID, Type: TypeAck})
		conn.WriteJSON(map[string]interface{}{
			"type":    TypeMessage,
			"topic":   "/contractMarket/ticker:XBTUSDM",
			"subject": "ticker",
			"sn":      1001,
			"data":    map[string]interface{}{"symbol": "XBTUSDM", "price": "37000.5"},
		})
		drain(conn)
	})

	f, err := Dial(context.Background(), Endpoint{URL: wsURL, Token: "tok-123"}, nil)
	require.NoError(t, err)
	defer f.Close()

	q := <-query
	assert.Equal(t, "tok-123", q["token"])
	assert.Equal(t, f.ConnectID(), q["connectId"])

	id, err := f.Subscribe("/contractMarket/ticker:XBTUSDM", false)
	require.NoError(t, err)

	sub := <-requests
	assert.Equal(t, id, sub.ID)
	assert.Equal(t, TypeSubscribe, sub.Type)
	assert.Equal(t, "/contractMarket/ticker:XBTUSDM", sub.Topic)
	assert.True(t, sub.Response)
	assert.False(t, sub.PrivateChannel)

	ack := receive(t, f)
	assert.Equal(t, TypeAck, ack.Type)
	assert.Equal(t, id, ack.ID)

	msg := receive(t, f)
	assert.Equal(t, TypeMessage, msg.Type)
	assert.Equal(t, "ticker", msg.Subject)
	assert.Equal(t, int64(1001), msg.Sn)

	var tick struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	require.NoError(t, msg.ReadData(&tick))
	assert.Equal(t, "37000.5", tick.Price)
}

func TestPingLoopAndPongFiltering(t *testing.T) {
	pinged := make(chan string, 1)

	wsURL := newPushServer(t, func(conn *websocket.Conn, r *http.Request) {
		if welcome(conn, r) != nil {
			return
		}
		var ping Message
		if conn.ReadJSON(&ping) != nil {
			return
		}
		pinged <- ping.Type
		conn.WriteJSON(Message{ID: ping.ID, Type: TypePong})
		conn.WriteJSON(Message{Type: TypeMessage, Topic: "/contract/announcement"})
		drain(conn)
	})

	f, err := Dial(context.Background(), Endpoint{
		URL:          wsURL,
		Token:        "tok",
		PingInterval: 20 * time.Millisecond,
		PingTimeout:  time.Second,
	}, nil)
	require.NoError(t, err)
	defer f.Close()

	select {
	case typ := <-pinged:
		assert.Equal(t, TypePing, typ)
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}

	msg := receive(t, f)
	assert.Equal(t, TypeMessage, msg.Type, "pong frames must not be delivered")
	assert.Equal(t, "/contract/announcement", msg.Topic)
}

func TestDialRequiresWelcome(t *testing.T) {
	wsURL := newPushServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.WriteJSON(Message{Type: TypeError})
		drain(conn)
	})

	_, err := Dial(context.Background(), Endpoint{URL: wsURL, Token: "tok"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "welcome")
}

func TestServerCloseEndsMessages(t *testing.T) {
	wsURL := newPushServer(t, func(conn *websocket.Conn, r *http.Request) {
		if welcome(conn, r) != nil {
			return
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "bye"))
	})

	f, err := Dial(context.Background(), Endpoint{URL: wsURL, Token: "tok"}, nil)
	require.NoError(t, err)
	defer f.Close()

	select {
	case _, ok := <-f.Messages():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("messages channel not closed")
	}
	assert.Error(t, f.Err())
}

func TestCloseIsIdempotent(t *testing.T) {
	wsURL := newPushServer(t, func(conn *websocket.Conn, r *http.Request) {
		if welcome(conn, r) != nil {
			return
		}
		drain(conn)
	})

	f, err := Dial(context.Background(), Endpoint{URL: wsURL, Token: "tok"}, nil)
	require.NoError(t, err)

	f.Close()
	assert.NotPanics(t, func() { f.Close() })

	_, err = f.Subscribe("/contractMarket/level2:XBTUSDM", false)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.Unsubscribe("/contractMarket/level2:XBTUSDM", false)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, f.Err())
}

func TestEndpointFromBullet(t *testing.T) {
	ep, err := EndpointFromBullet(&kumex.BulletToken{
		Token: "tok",
		InstanceServers: []kumex.InstanceServer{
			{Endpoint: "wss://push1-v2.kucoin.com/endpoint", Protocol: "websocket", PingInterval: 50000, PingTimeout: 10000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "wss://push1-v2.kucoin.com/endpoint", ep.URL)
	assert.Equal(t, "tok", ep.Token)
	assert.Equal(t, 50*time.Second, ep.PingInterval)
	assert.Equal(t, 10*time.Second, ep.PingTimeout)

	_, err = EndpointFromBullet(&kumex.BulletToken{Token: "tok"})
	assert.Error(t, err)
	_, err = EndpointFromBullet(nil)
	assert.Error(t, err)
}

func TestConnectURL(t *testing.T) {
	u, err := connectURL(Endpoint{URL: "wss://push1-v2.kucoin.com/endpoint", Token: "a b"}, "cid")
	require.NoError(t, err)
	assert.Equal(t, "wss://push1-v2.kucoin.com/endpoint?connectId=cid&token=a+b", u)

	_, err = connectURL(Endpoint{URL: "not a url"}, "cid")
	assert.Error(t, err)
}
