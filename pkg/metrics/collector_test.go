package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector(reg), reg
}

func TestNewCollectorRegisters(t *testing.T) {
	c, reg := newTestCollector(t)
	c.SetRemoteDevices(0)
	c.SetLocalModels(0)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["rtsm_remote_devices"])
	assert.True(t, names["rtsm_local_models"])
}

func TestCollectorCounters(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordReceived("device", time.Millisecond)
	c.RecordReceived("device", 2*time.Millisecond)
	c.RecordReceived("request-state", time.Millisecond)
	c.RecordPublished("response-state")
	c.RecordDropped("misaddressed")
	c.RecordTransportError("publish")
	c.RecordPresence("left")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.messagesReceived.WithLabelValues("device")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesReceived.WithLabelValues("request-state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesPublished.WithLabelValues("response-state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesDropped.WithLabelValues("misaddressed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transportErrors.WithLabelValues("publish")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.presenceEvents.WithLabelValues("left")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.dispatchDuration))
}

func TestCollectorGauges(t *testing.T) {
	c, _ := newTestCollector(t)

	c.SetRemoteDevices(3)
	c.SetLocalModels(2)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.remoteDevices))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.localModels))

	c.SetRemoteDevices(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.remoteDevices))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordReceived("device", time.Second)
		c.RecordPublished("device")
		c.RecordDropped("self")
		c.RecordTransportError("connect")
		c.RecordPresence("joined")
		c.SetRemoteDevices(1)
		c.SetLocalModels(1)
	})
}

func TestSeparateRegistries(t *testing.T) {
	a, _ := newTestCollector(t)
	b, _ := newTestCollector(t)

	a.RecordPublished("device")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.messagesPublished.WithLabelValues("device")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.messagesPublished.WithLabelValues("device")))
}
