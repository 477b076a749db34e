package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwstrat/internal/bus"
	"hwstrat/internal/codec"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

func newInputs() Inputs {
	return Inputs{
		ConfigAcks:   bus.NewQueue[schema.Notification]("acks", 4),
		TickToTrade:  bus.NewQueue[schema.Notification]("t2t", 4),
		TickToCancel: bus.NewQueue[schema.Notification]("t2c", 4),
		TcpConsumer:  bus.NewQueue[schema.Notification]("tcp", 4),
	}
}

func runAll(t *testing.T, m *Mux) {
	t.Helper()
	for {
		progressed, err := m.Step()
		require.NoError(t, err)
		if !progressed {
			return
		}
	}
}

// messages cuts the output stream at terminal words and decodes each message.
func messages(t *testing.T, out *bus.Queue[schema.DMAWord]) []schema.Notification {
	t.Helper()
	var (
		result  []schema.Notification
		pending []schema.DMAWord
	)
	for !out.Empty() {
		w, _ := out.TryPop()
		pending = append(pending, w)
		if w.Last {
			n, err := codec.DecodeNotification(pending)
			require.NoError(t, err)
			result = append(result, n)
			pending = nil
		}
	}
	require.Empty(t, pending)
	return result
}

func TestMuxPriority(t *testing.T) {
	in := newInputs()
	out := bus.NewQueue[schema.DMAWord]("dma", 32)
	metrics := obs.NewMetrics()
	m := NewMux(in, out, metrics)
	granted := 0
	m.OnGrant(func(schema.Notification) { granted++ })

	require.NoError(t, in.TcpConsumer.TryPush(codec.NewTcpSessionNotification(schema.TcpSessionReport{Words: 1, Session: 96})))
	require.NoError(t, in.TickToCancel.TryPush(codec.NewTickToCancelNotification(schema.TickToCancelReport{InstrumentID: 3})))
	require.NoError(t, in.TickToTrade.TryPush(codec.NewTickToTradeNotification(schema.TickToTradeReport{InstrumentID: 4})))
	require.NoError(t, in.ConfigAcks.TryPush(codec.NewConfigAck(schema.InstrumentConfig{InstrumentID: 5})))

	runAll(t, m)
	assert.Equal(t, 3+2+3+2, out.Len())
	assert.Equal(t, 4, granted)

	got := messages(t, out)
	require.Len(t, got, 4)
	kinds := make([]schema.NotificationKind, len(got))
	for i, n := range got {
		kinds[i] = n.Kind
	}
	assert.Equal(t, []schema.NotificationKind{
		schema.NotificationConfigAck,
		schema.NotificationTickToTrade,
		schema.NotificationTickToCancel,
		schema.NotificationTcpConsumer,
	}, kinds)
	assert.Equal(t, uint32(5), got[0].ConfigAck.InstrumentID)
	assert.Equal(t, uint32(4), got[1].TickToTrade.InstrumentID)
	assert.Equal(t, uint32(3), got[2].TickToCancel.InstrumentID)
	assert.Equal(t, uint16(96), got[3].TcpConsumer.Session)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.NotificationCounts[schema.NotificationConfigAck])
	assert.Equal(t, uint64(1), snap.NotificationCounts[schema.NotificationTcpConsumer])
}

func TestMuxFinishesMessageBeforeHigherPriority(t *testing.T) {
	in := newInputs()
	out := bus.NewQueue[schema.DMAWord]("dma", 32)
	m := NewMux(in, out, nil)

	require.NoError(t, in.TickToCancel.TryPush(codec.NewTickToCancelNotification(schema.TickToCancelReport{InstrumentID: 1})))

	progressed, err := m.Step()
	require.NoError(t, err)
	require.True(t, progressed)
	assert.Equal(t, StateWord1, m.State())

	progressed, err = m.Step()
	require.NoError(t, err)
	require.True(t, progressed)
	assert.Equal(t, StateWord2, m.State())

	// An ack arriving mid-message waits for the tick-to-cancel tail.
	require.NoError(t, in.ConfigAcks.TryPush(codec.NewConfigAck(schema.InstrumentConfig{InstrumentID: 2})))
	runAll(t, m)

	got := messages(t, out)
	require.Len(t, got, 2)
	assert.Equal(t, schema.NotificationTickToCancel, got[0].Kind)
	assert.Equal(t, schema.NotificationConfigAck, got[1].Kind)
	assert.Equal(t, StateIdle, m.State())
}

func TestMuxBackpressure(t *testing.T) {
	in := newInputs()
	out := bus.NewQueue[schema.DMAWord]("dma", 1)
	metrics := obs.NewMetrics()
	m := NewMux(in, out, metrics)

	require.NoError(t, in.TickToTrade.TryPush(codec.NewTickToTradeNotification(schema.TickToTradeReport{InstrumentID: 9})))
	runAll(t, m)
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, StateWord2, m.State())
	assert.NotZero(t, metrics.Snapshot().Backpressure[obs.StageNotificationMux])

	first, _ := out.TryPop()
	runAll(t, m)
	second, _ := out.TryPop()

	n, err := codec.DecodeNotification([]schema.DMAWord{first, second})
	require.NoError(t, err)
	assert.Equal(t, uint32(9), n.TickToTrade.InstrumentID)
	assert.Equal(t, StateIdle, m.State())
}

func TestMuxDropsUnknownSource(t *testing.T) {
	in := newInputs()
	out := bus.NewQueue[schema.DMAWord]("dma", 4)
	metrics := obs.NewMetrics()
	m := NewMux(in, out, metrics)

	require.NoError(t, in.TcpConsumer.TryPush(schema.Notification{Header: schema.NotificationHeader{Source: 3}}))
	runAll(t, m)
	assert.True(t, out.Empty())
	assert.Equal(t, uint64(1), metrics.Snapshot().IgnoredMessages)
}
