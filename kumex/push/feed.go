// Package push connects to the exchange's websocket feed using a token from
// the bullet endpoints.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"kumex-futures-sdk/internal/logging"
	"kumex-futures-sdk/kumex"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Message types exchanged on the feed
const (
	TypeWelcome     = "welcome"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeAck         = "ack"
	TypeMessage     = "message"
	TypeError       = "error"
)

const (
	defaultPingInterval = 18 * time.Second
	defaultPingTimeout  = 10 * time.Second
	defaultBufferSize   = 256
)

// ErrClosed is returned when writing to a closed feed
var ErrClosed = errors.New("push feed closed")

// Endpoint is where and how to connect
type Endpoint struct {
	URL          string
	Token        string
	PingInterval time.Duration
	PingTimeout  time.Duration
}

// EndpointFromBullet picks the first websocket server of a bullet token
func EndpointFromBullet(token *kumex.BulletToken) (Endpoint, error) {
	if token == nil || token.Token == "" {
		return Endpoint{}, errors.New("bullet token is empty")
	}
	for _, s := range token.InstanceServers {
		if s.Protocol != "" && s.Protocol != "websocket" {
			continue
		}
		return Endpoint{
			URL:          s.Endpoint,
			Token:        token.Token,
			PingInterval: s.PingIntervalDuration(),
			PingTimeout:  s.PingTimeoutDuration(),
		}, nil
	}
	return Endpoint{}, errors.New("bullet token has no websocket server")
}

// Message is one frame of the feed
type Message struct {
	ID             string          `json:"id,omitempty"`
	Type           string          `json:"type"`
	Topic          string          `json:"topic,omitempty"`
	Subject        string          `json:"subject,omitempty"`
	Sn             int64           `json:"sn,omitempty"`
	PrivateChannel bool            `json:"privateChannel,omitempty"`
	Response       bool            `json:"response,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// ReadData decodes the message payload into v
func (m *Message) ReadData(v interface{}) error {
	return json.Unmarshal(m.Data, v)
}

// Options tunes Dial
type Options struct {
	Logger     *zerolog.Logger
	Dialer     *websocket.Dialer
	BufferSize int // Messages channel capacity
}

// Feed is a live connection. Incoming frames other than pong and welcome are
// delivered on Messages until the feed closes.
type Feed struct {
	mu      sync.Mutex // serializes writes
	conn    *websocket.Conn
	connID  string
	logger  zerolog.Logger
	timeout time.Duration

	messages  chan *Message
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Dial connects, waits for the welcome frame and starts the read and ping
// loops
func Dial(ctx context.Context, ep Endpoint, opts *Options) (*Feed, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := logging.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	interval := ep.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	timeout := ep.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	connID := uuid.NewString()
	wsURL, err := connectURL(ep, connID)
	if err != nil {
		return nil, err
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error connecting to push feed: %w", err)
	}

	// The server greets with a welcome frame carrying the connect id
	conn.SetReadDeadline(time.Now().Add(interval + timeout))
	var welcome Message
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error reading welcome message: %w", err)
	}
	if welcome.Type != TypeWelcome {
		conn.Close()
		return nil, fmt.Errorf("expected welcome message, got %q", welcome.Type)
	}

	f := &Feed{
		conn:     conn,
		connID:   connID,
		logger:   logger.With().Str("connect_id", connID).Logger(),
		timeout:  timeout,
		messages: make(chan *Message, bufferSize),
		stopChan: make(chan struct{}),
	}
	conn.SetReadDeadline(time.Now().Add(interval + timeout))

	f.wg.Add(2)
	go f.readLoop(interval + timeout)
	go f.pingLoop(interval)

	f.logger.Info().Msg("Push feed connected")
	return f, nil
}

func connectURL(ep Endpoint, connID string) (string, error) {
	u, err := url.Parse(ep.URL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid push endpoint %q", ep.URL)
	}
	q := u.Query()
	q.Set("token", ep.Token)
	q.Set("connectId", connID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ConnectID returns the id sent when connecting
func (f *Feed) ConnectID() string { return f.connID }

// Messages returns the channel of incoming frames. It is closed when the feed
// stops; Err then reports why.
func (f *Feed) Messages() <-chan *Message { return f.messages }

// Err returns the error that stopped the read loop, nil after a clean Close
func (f *Feed) Err() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

// Subscribe asks for topic. The ack arrives on Messages with the returned id.
func (f *Feed) Subscribe(topic string, private bool) (string, error) {
	return f.send(TypeSubscribe, topic, private)
}

// Unsubscribe cancels a topic subscription
func (f *Feed) Unsubscribe(topic string, private bool) (string, error) {
	return f.send(TypeUnsubscribe, topic, private)
}

func (f *Feed) send(msgType, topic string, private bool) (string, error) {
	id := uuid.NewString()
	err := f.write(&Message{
		ID:             id,
		Type:           msgType,
		Topic:          topic,
		PrivateChannel: private,
		Response:       true,
	})
	if err != nil {
		return "", err
	}
	f.logger.Debug().Str("type", msgType).Str("topic", topic).Bool("private", private).Msg("Sent push request")
	return id, nil
}

func (f *Feed) write(m *Message) error {
	select {
	case <-f.stopChan:
		return ErrClosed
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.conn.SetWriteDeadline(time.Now().Add(f.timeout))
	if err := f.conn.WriteJSON(m); err != nil {
		return fmt.Errorf("error writing %s message: %w", m.Type, err)
	}
	return nil
}

// Close stops both loops and closes the connection
func (f *Feed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.stopChan)

		f.mu.Lock()
		f.conn.SetWriteDeadline(time.Now().Add(f.timeout))
		writeErr := f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.mu.Unlock()

		err = f.conn.Close()
		f.wg.Wait()
		if writeErr != nil && !errors.Is(writeErr, websocket.ErrCloseSent) {
			f.logger.Debug().Err(writeErr).Msg("Close frame not sent")
		}
		f.logger.Info().Msg("Push feed closed")
	})
	return err
}

func (f *Feed) readLoop(idle time.Duration) {
	defer f.wg.Done()
	defer close(f.messages)

	for {
		var m Message
		if err := f.conn.ReadJSON(&m); err != nil {
			select {
			case <-f.stopChan:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					f.logger.Warn().Err(err).Msg("Push feed read error")
				}
				f.setErr(err)
			}
			return
		}
		// Any frame proves the connection is alive
		f.conn.SetReadDeadline(time.Now().Add(idle))

		switch m.Type {
		case TypePong, TypeWelcome:
			continue
		case TypeError:
			f.logger.Warn().Str("id", m.ID).RawJSON("data", rawOrNull(m.Data)).Msg("Push feed error message")
		}

		select {
		case f.messages <- &m:
		case <-f.stopChan:
			return
		}
	}
}

func (f *Feed) pingLoop(interval time.Duration) {
	defer f.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopChan:
			return
		case <-ticker.C:
			if err := f.write(&Message{ID: uuid.NewString(), Type: TypePing}); err != nil {
				if !errors.Is(err, ErrClosed) {
					f.logger.Warn().Err(err).Msg("Push feed ping failed")
				}
				return
			}
		}
	}
}

func (f *Feed) setErr(err error) {
	f.errMu.Lock()
	f.err = err
	f.errMu.Unlock()
}

func rawOrNull(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
