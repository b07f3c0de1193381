package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zishang520/engine.io-go-parser/packet"
	"github.com/zishang520/engine.io/v2/log"
	sio "github.com/zishang520/socket.io-go-parser/v2/parser"
)

var logger = log.NewLog("gateway:transport")

var ErrNotConnected = errors.New("push channel not connected")

type Options struct {
	// URL of the push server, http(s) or ws(s).
	URL         string
	Path        string
	DialTimeout time.Duration
	Dialer      *websocket.Dialer
}

// Handler receives the first argument of an inbound event as raw JSON.
type Handler func(payload json.RawMessage)

// Subscription removes one registered handler. Unsubscribe is idempotent.
type Subscription struct {
	cancel func()
}

func NewSubscription(cancel func()) Subscription {
	return Subscription{cancel: cancel}
}

func (s Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

type handler struct {
	id uint64
	fn Handler
}

type handshake struct {
	Sid          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// Transport owns at most one live push-channel connection.
type Transport struct {
	opts  Options
	codec codec

	mu     sync.Mutex
	conn   *websocket.Conn
	userId string

	wmu sync.Mutex

	hmu      sync.RWMutex
	nextId   uint64
	handlers map[string][]handler
}

func New(opts Options) *Transport {
	if opts.Path == "" {
		opts.Path = "/socket.io/"
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Transport{
		opts:     opts,
		codec:    newCodec(),
		handlers: make(map[string][]handler),
	}
}

func (t *Transport) endpoint(token string) (string, error) {
	u, err := url.Parse(t.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse push url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = t.opts.Path
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Connect opens the channel for userId and announces presence. It is a
// no-op while a connection is open. Failures are also reported to
// connect_error subscribers; there is no retry.
func (t *Transport) Connect(ctx context.Context, userId string, token string) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}

	conn, in, timeout, err := t.dial(ctx, token)
	if err != nil {
		t.mu.Unlock()
		logger.Debug("connect for user %s failed: %v", userId, err)
		t.dispatchLocal(EventConnectError, map[string]string{"message": err.Error()})
		return err
	}
	t.conn = conn
	t.userId = userId
	t.mu.Unlock()

	go t.readLoop(conn, in, timeout)

	t.dispatchLocal(EventConnect, map[string]string{"userId": userId})
	if err := t.Emit(EventUserOnline, map[string]string{"userId": userId}); err != nil {
		logger.Debug("presence announce failed: %v", err)
	}
	return nil
}

// dial opens the websocket and completes the Socket.IO handshake. It
// returns the read timeout announced by the server.
func (t *Transport) dial(ctx context.Context, token string) (*websocket.Conn, *inbound, time.Duration, error) {
	endpoint, err := t.endpoint(token)
	if err != nil {
		return nil, nil, 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.DialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := t.opts.Dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("dial push channel: %w", err)
	}

	in := newInbound()
	deadline, _ := ctx.Deadline()
	conn.SetReadDeadline(deadline)
	timeout, err := t.handshake(conn, in, token)
	if err != nil {
		in.close()
		conn.Close()
		return nil, nil, 0, err
	}
	conn.SetReadDeadline(time.Now().Add(timeout))
	return conn, in, timeout, nil
}

func (t *Transport) handshake(conn *websocket.Conn, in *inbound, token string) (time.Duration, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("read open packet: %w", err)
	}
	open, _, err := in.read(data)
	if err != nil {
		return 0, err
	}
	if open.Type != packet.OPEN || open.Data == nil {
		return 0, fmt.Errorf("unexpected open packet %q", data)
	}
	var hs handshake
	if err := json.NewDecoder(open.Data).Decode(&hs); err != nil {
		return 0, fmt.Errorf("decode open packet: %w", err)
	}
	timeout := time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	connect, err := t.codec.message(&sio.Packet{Type: sio.CONNECT, Data: map[string]string{"token": token}})
	if err != nil {
		return 0, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, connect); err != nil {
		return 0, fmt.Errorf("send connect: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("await connect: %w", err)
		}
		frame, packets, err := in.read(data)
		if err != nil {
			return 0, err
		}
		if frame.Type == packet.PING {
			if pong, err := t.codec.frame(packet.PONG, nil); err == nil {
				conn.WriteMessage(websocket.TextMessage, pong)
			}
			continue
		}
		for _, p := range packets {
			switch p.Type {
			case sio.CONNECT:
				return timeout, nil
			case sio.CONNECT_ERROR:
				return 0, fmt.Errorf("push channel rejected connection: %s", connectError(p))
			}
		}
	}
}

func (t *Transport) readLoop(conn *websocket.Conn, in *inbound, timeout time.Duration) {
	defer in.close()

	reason := "transport close"
loop:
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("read: %v", err)
			break
		}
		conn.SetReadDeadline(time.Now().Add(timeout))

		frame, packets, err := in.read(data)
		if err != nil {
			logger.Debug("dropping frame: %v", err)
			continue
		}
		switch frame.Type {
		case packet.PING:
			if pong, err := t.codec.frame(packet.PONG, nil); err == nil {
				t.write(conn, pong)
			}
		case packet.CLOSE:
			reason = "server close"
			break loop
		case packet.MESSAGE:
			for _, p := range packets {
				if t.handlePacket(p) {
					reason = "io server disconnect"
					break loop
				}
			}
		}
	}

	t.mu.Lock()
	current := t.conn == conn
	if current {
		t.conn = nil
	}
	t.mu.Unlock()

	conn.Close()
	if current {
		t.dispatchLocal(EventDisconnect, map[string]string{"reason": reason})
	}
}

// handlePacket dispatches one Socket.IO packet and reports whether the
// server asked to disconnect.
func (t *Transport) handlePacket(p *sio.Packet) bool {
	if p.Nsp != "" && p.Nsp != defaultNamespace {
		return false
	}
	switch p.Type {
	case sio.DISCONNECT:
		return true
	case sio.EVENT:
		name, payload, err := eventArgs(p)
		if err != nil {
			logger.Debug("dropping event: %v", err)
			return false
		}
		t.dispatch(name, payload)
	}
	return false
}

// Disconnect closes the channel. It is safe to call when not connected.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}

	if disconnect, err := t.codec.message(&sio.Packet{Type: sio.DISCONNECT}); err == nil {
		t.write(conn, disconnect)
	}
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := conn.Close()

	t.dispatchLocal(EventDisconnect, map[string]string{"reason": "io client disconnect"})
	return err
}

func (t *Transport) write(conn *websocket.Conn, data []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Emit sends an event with one JSON payload.
func (t *Transport) Emit(event string, payload any) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame, err := t.codec.event(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if err := t.write(conn, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Subscribe registers h for event. Handlers of one event run in
// registration order on the read loop.
func (t *Transport) Subscribe(event string, h Handler) Subscription {
	t.hmu.Lock()
	defer t.hmu.Unlock()
	t.nextId++
	id := t.nextId
	t.handlers[event] = append(t.handlers[event], handler{id: id, fn: h})

	return NewSubscription(func() { t.unsubscribe(event, id) })
}

func (t *Transport) unsubscribe(event string, id uint64) {
	t.hmu.Lock()
	defer t.hmu.Unlock()
	list := t.handlers[event]
	for i, h := range list {
		if h.id == id {
			t.handlers[event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(t.handlers[event]) == 0 {
		delete(t.handlers, event)
	}
}

// Handlers returns the number of handlers registered for event.
func (t *Transport) Handlers(event string) int {
	t.hmu.RLock()
	defer t.hmu.RUnlock()
	return len(t.handlers[event])
}

func (t *Transport) dispatch(event string, payload json.RawMessage) {
	t.hmu.RLock()
	list := append([]handler(nil), t.handlers[event]...)
	t.hmu.RUnlock()

	for _, h := range list {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Debug("%s handler panicked: %v", event, r)
				}
			}()
			h.fn(payload)
		}()
	}
}

func (t *Transport) dispatchLocal(event string, payload any) {
	data, _ := json.Marshal(payload)
	t.dispatch(event, data)
}
