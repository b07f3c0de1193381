// Package sessiontest provides in-memory collaborators for sessions.
package sessiontest

import (
	"context"
	"encoding/json"
	"sync"

	"messenger-gateway/transport"
)

type handler struct {
	id int
	fn transport.Handler
}

// Channel is a push channel that records outbound signals and lets tests
// raise inbound events.
type Channel struct {
	ConnectErr error

	mu        sync.Mutex
	connected bool
	nextId    int
	handlers  map[string][]handler
	signals   []string
}

func NewChannel() *Channel {
	return &Channel{handlers: map[string][]handler{}}
}

func (c *Channel) Subscribe(event string, h transport.Handler) transport.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextId++
	id := c.nextId
	c.handlers[event] = append(c.handlers[event], handler{id: id, fn: h})
	return transport.NewSubscription(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		list := c.handlers[event]
		for i, h := range list {
			if h.id == id {
				c.handlers[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	})
}

// Handlers counts the registered handlers over all events.
func (c *Channel) Handlers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, list := range c.handlers {
		n += len(list)
	}
	return n
}

// Emit delivers payload to the handlers of event as the server would.
func (c *Channel) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	list := append([]handler(nil), c.handlers[event]...)
	c.mu.Unlock()
	for _, h := range list {
		h.fn(data)
	}
}

func (c *Channel) record(signal string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return transport.ErrNotConnected
	}
	c.signals = append(c.signals, signal)
	return nil
}

// Signals returns the outbound signals, as "join:<id>", "leave:<id>",
// "typing:<id>", "idle:<id>" and "seen:<id>".
func (c *Channel) Signals() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.signals...)
}

func (c *Channel) Connect(ctx context.Context, userId string, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.connected = true
	return nil
}

func (c *Channel) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Channel) JoinConversation(id string) error  { return c.record("join:" + id) }
func (c *Channel) LeaveConversation(id string) error { return c.record("leave:" + id) }
func (c *Channel) StartTyping(id string) error       { return c.record("typing:" + id) }
func (c *Channel) StopTyping(id string) error        { return c.record("idle:" + id) }
func (c *Channel) MarkSeen(id string) error          { return c.record("seen:" + id) }
