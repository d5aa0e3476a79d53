package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects delivered messages.
type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) handle(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) snapshot() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func (r *recorder) topics() []string {
	var out []string
	for _, m := range r.snapshot() {
		out = append(out, m.Topic)
	}
	return out
}

func connectClient(t *testing.T, b *MemoryBroker, id string, will *Will) (*MemoryClient, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := b.NewClient()
	c.OnMessage(rec.handle)
	require.NoError(t, c.Connect(context.Background(), ConnectOptions{ClientID: id, Clean: true, Will: will}))
	return c, rec
}

func TestMemoryBrokerDeliversToMatchingSubscribers(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()

	pub, _ := connectClient(t, b, "pub", nil)
	sub, rec := connectClient(t, b, "sub", nil)

	require.NoError(t, sub.Subscribe(ctx, "chat", SubscribeOptions{QoS: 2}))
	require.NoError(t, sub.Subscribe(ctx, "online/+", SubscribeOptions{QoS: 2}))

	require.NoError(t, pub.Publish(ctx, "chat", []byte("1"), PublishOptions{QoS: 2}))
	require.NoError(t, pub.Publish(ctx, "todo", []byte("2"), PublishOptions{QoS: 2}))
	require.NoError(t, pub.Publish(ctx, "online/pub", []byte("true"), PublishOptions{QoS: 2}))
	require.NoError(t, pub.Publish(ctx, "chat/sub", []byte("3"), PublishOptions{QoS: 2}))

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"chat", "online/pub"}, rec.topics())
	assert.Equal(t, 2, b.ClientCount())
}

func TestMemoryBrokerPreservesOrder(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	pub, _ := connectClient(t, b, "pub", nil)
	sub, rec := connectClient(t, b, "sub", nil)
	require.NoError(t, sub.Subscribe(ctx, "chat/#", SubscribeOptions{}))

	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, pub.Publish(ctx, "chat", []byte{byte(i)}, PublishOptions{}))
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == n }, time.Second, 5*time.Millisecond)
	for i, m := range rec.snapshot() {
		assert.Equal(t, byte(i), m.Payload[0])
	}
}

func TestMemoryBrokerRetained(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	pub, _ := connectClient(t, b, "pub", nil)

	require.NoError(t, pub.Publish(ctx, "online/pub", []byte("true"), PublishOptions{Retain: true}))
	payload, ok := b.Retained("online/pub")
	require.True(t, ok)
	assert.Equal(t, "true", string(payload))

	late, rec := connectClient(t, b, "late", nil)
	require.NoError(t, late.Subscribe(ctx, "online/+", SubscribeOptions{}))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	msg := rec.snapshot()[0]
	assert.Equal(t, "online/pub", msg.Topic)
	assert.True(t, msg.Retained)

	// Empty retained payload clears the topic and still reaches subscribers.
	require.NoError(t, pub.Publish(ctx, "online/pub", nil, PublishOptions{Retain: true}))
	_, ok = b.Retained("online/pub")
	assert.False(t, ok)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.snapshot()[1].Payload)
	assert.False(t, rec.snapshot()[1].Retained)
}

func TestMemoryBrokerUnsubscribeKeepsOverlappingFilter(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	c, rec := connectClient(t, b, "a", nil)

	require.NoError(t, c.Subscribe(ctx, "online/+", SubscribeOptions{}))
	require.NoError(t, c.Subscribe(ctx, "online/a", SubscribeOptions{}))
	require.NoError(t, c.Unsubscribe(ctx, "online/a"))
	assert.Equal(t, []string{"online/+"}, c.Subscriptions())

	require.NoError(t, c.Publish(ctx, "online/a", []byte("true"), PublishOptions{}))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestMemoryBrokerWillOnDrop(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()

	will := &Will{Topic: "online/a", Payload: nil, QoS: 2, Retain: true}
	a, _ := connectClient(t, b, "a", will)
	require.NoError(t, a.Publish(ctx, "online/a", []byte("true"), PublishOptions{Retain: true}))

	watcher, rec := connectClient(t, b, "w", nil)
	require.NoError(t, watcher.Subscribe(ctx, "online/+", SubscribeOptions{}))

	a.Drop()
	assert.Equal(t, StateDisconnected, a.State())

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	last := rec.snapshot()[1]
	assert.Equal(t, "online/a", last.Topic)
	assert.Empty(t, last.Payload)
	_, ok := b.Retained("online/a")
	assert.False(t, ok)

	// A second drop is a no-op.
	a.Drop()
}

func TestMemoryBrokerCleanDisconnectSuppressesWill(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()

	a, _ := connectClient(t, b, "a", &Will{Topic: "online/a", Retain: true})
	require.NoError(t, a.Publish(ctx, "online/a", []byte("true"), PublishOptions{Retain: true}))
	require.NoError(t, a.Disconnect(ctx))

	payload, ok := b.Retained("online/a")
	require.True(t, ok)
	assert.Equal(t, "true", string(payload))
	assert.Equal(t, 0, b.ClientCount())

	assert.ErrorIs(t, a.Publish(ctx, "chat", nil, PublishOptions{}), ErrNotConnected)
	assert.ErrorIs(t, a.Disconnect(ctx), ErrNotConnected)
}

func TestMemoryClientLifecycleErrors(t *testing.T) {
	b := NewMemoryBroker()
	c := b.NewClient()
	ctx := context.Background()

	assert.ErrorIs(t, c.Connect(ctx, ConnectOptions{}), ErrEmptyClientID)
	assert.ErrorIs(t, c.Subscribe(ctx, "chat", SubscribeOptions{}), ErrNotConnected)

	require.NoError(t, c.Connect(ctx, ConnectOptions{ClientID: "a"}))
	assert.ErrorIs(t, c.Connect(ctx, ConnectOptions{ClientID: "a"}), ErrAlreadyConnected)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := c.Publish(cancelled, "chat", nil, PublishOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrTransport)
}
