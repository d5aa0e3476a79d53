package transport

import (
	"context"
	"sync"

	"github.com/rtsm-protocol/rtsm-go/pkg/topic"
)

// MemoryBroker is an in-process broker with MQTT retain, wildcard and
// last-will semantics. Each client receives messages on its own delivery
// goroutine, in publication order.
type MemoryBroker struct {
	mu       sync.Mutex
	retained map[string][]byte
	clients  map[*MemoryClient]struct{}
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		retained: make(map[string][]byte),
		clients:  make(map[*MemoryClient]struct{}),
	}
}

// NewClient creates an unconnected client attached to the broker.
func (b *MemoryBroker) NewClient() *MemoryClient {
	return &MemoryClient{
		broker: b,
		subs:   make(map[string]struct{}),
	}
}

// Retained returns the retained payload for topicName.
func (b *MemoryBroker) Retained(topicName string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.retained[topicName]
	return p, ok
}

// ClientCount returns the number of connected clients.
func (b *MemoryBroker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// route must be called with b.mu held.
func (b *MemoryBroker) route(topicName string, payload []byte, retain bool) {
	if retain {
		if len(payload) == 0 {
			delete(b.retained, topicName)
		} else {
			b.retained[topicName] = append([]byte(nil), payload...)
		}
	}
	for c := range b.clients {
		if c.matches(topicName) {
			c.box.push(Message{Topic: topicName, Payload: append([]byte(nil), payload...)})
		}
	}
}

// MemoryClient is a Client connected to a MemoryBroker.
type MemoryClient struct {
	broker *MemoryBroker

	// Guarded by broker.mu.
	state   ConnectionState
	will    *Will
	subs    map[string]struct{}
	box     *mailbox
	handler MessageHandler
}

// OnMessage sets the inbound message handler.
func (c *MemoryClient) OnMessage(handler MessageHandler) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.handler = handler
}

// State returns the connection state.
func (c *MemoryClient) State() ConnectionState {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.state
}

// Subscriptions returns the active subscription filters.
func (c *MemoryClient) Subscriptions() []string {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for f := range c.subs {
		out = append(out, f)
	}
	return out
}

// Connect attaches the client to the broker.
func (c *MemoryClient) Connect(ctx context.Context, opts ConnectOptions) error {
	if err := ctx.Err(); err != nil {
		return opError("connect", "", err)
	}
	if opts.ClientID == "" {
		return opError("connect", "", ErrEmptyClientID)
	}
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.state != StateDisconnected {
		return opError("connect", "", ErrAlreadyConnected)
	}
	if opts.Will != nil {
		w := *opts.Will
		w.Payload = append([]byte(nil), w.Payload...)
		c.will = &w
	}
	c.box = newMailbox(c.handler)
	c.state = StateConnected
	b.clients[c] = struct{}{}
	return nil
}

// Publish routes payload to all matching subscribers, including this client.
func (c *MemoryClient) Publish(ctx context.Context, topicName string, payload []byte, opts PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return opError("publish", topicName, err)
	}
	if err := validQoS(opts.QoS); err != nil {
		return opError("publish", topicName, err)
	}
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.state != StateConnected {
		return opError("publish", topicName, ErrNotConnected)
	}
	b.route(topicName, payload, opts.Retain)
	return nil
}

// Subscribe adds a filter and delivers matching retained messages.
func (c *MemoryClient) Subscribe(ctx context.Context, filter string, opts SubscribeOptions) error {
	if err := ctx.Err(); err != nil {
		return opError("subscribe", filter, err)
	}
	if err := validQoS(opts.QoS); err != nil {
		return opError("subscribe", filter, err)
	}
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.state != StateConnected {
		return opError("subscribe", filter, ErrNotConnected)
	}
	c.subs[filter] = struct{}{}
	for name, payload := range b.retained {
		if topic.Match(filter, name) {
			c.box.push(Message{Topic: name, Payload: append([]byte(nil), payload...), Retained: true})
		}
	}
	return nil
}

// Unsubscribe removes a filter. Other filters matching the same topics stay active.
func (c *MemoryClient) Unsubscribe(ctx context.Context, filter string) error {
	if err := ctx.Err(); err != nil {
		return opError("unsubscribe", filter, err)
	}
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.state != StateConnected {
		return opError("unsubscribe", filter, ErrNotConnected)
	}
	delete(c.subs, filter)
	return nil
}

// Disconnect detaches the client without publishing its will.
func (c *MemoryClient) Disconnect(ctx context.Context) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.state != StateConnected {
		return opError("disconnect", "", ErrNotConnected)
	}
	c.detach()
	return nil
}

// Drop simulates an unexpected connection loss: the client is detached and
// its will, if any, is published.
func (c *MemoryClient) Drop() {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.state != StateConnected {
		return
	}
	will := c.will
	c.detach()
	if will != nil {
		b.route(will.Topic, will.Payload, will.Retain)
	}
}

// detach must be called with broker.mu held.
func (c *MemoryClient) detach() {
	delete(c.broker.clients, c)
	c.subs = make(map[string]struct{})
	c.will = nil
	c.box.close()
	c.state = StateDisconnected
}

func (c *MemoryClient) matches(name string) bool {
	for f := range c.subs {
		if topic.Match(f, name) {
			return true
		}
	}
	return false
}

// mailbox is an unbounded FIFO drained by one goroutine.
type mailbox struct {
	mu      sync.Mutex
	pending []Message
	signal  chan struct{}
	done    chan struct{}
}

func newMailbox(handler MessageHandler) *mailbox {
	m := &mailbox{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go m.run(handler)
	return m
}

func (m *mailbox) push(msg Message) {
	m.mu.Lock()
	m.pending = append(m.pending, msg)
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) close() {
	close(m.done)
}

func (m *mailbox) run(handler MessageHandler) {
	for {
		select {
		case <-m.done:
			return
		case <-m.signal:
		}
		for {
			m.mu.Lock()
			if len(m.pending) == 0 {
				m.mu.Unlock()
				break
			}
			msg := m.pending[0]
			m.pending = m.pending[1:]
			m.mu.Unlock()

			select {
			case <-m.done:
				return
			default:
			}
			if handler != nil {
				handler(msg)
			}
		}
	}
}
