package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwstrat/internal/bus"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

func TestCacheLastWriteWins(t *testing.T) {
	c := NewCache(4, nil, nil)
	c.Update(1, schema.SideBuy, 100)
	c.Update(1, schema.SideBuy, 98)
	c.Update(1, schema.SideSell, 105)

	assert.Equal(t, schema.BookEntry{BidPresent: true, BidPrice: 98, AskPresent: true, AskPrice: 105}, c.Read(1))
	assert.Equal(t, schema.BookEntry{}, c.Read(0))
}

func TestCacheOutOfRange(t *testing.T) {
	c := NewCache(2, nil, nil)
	c.Update(2, schema.SideBuy, 1)
	c.Update(^uint32(0), schema.SideSell, 1)
	assert.Equal(t, schema.BookEntry{}, c.Read(2))
	for _, e := range c.Entries() {
		assert.Equal(t, schema.BookEntry{}, e)
	}
}

func TestCacheStepWritesBeforeReads(t *testing.T) {
	updates := bus.NewQueue[schema.BookUpdate]("updates", 4)
	cl := Client{
		Requests:  bus.NewQueue[uint32]("req", 2),
		Responses: bus.NewQueue[schema.BookEntry]("resp", 2),
	}
	c := NewCache(8, updates, nil, cl)
	var applied []schema.BookUpdate
	c.OnUpdate(func(u schema.BookUpdate) { applied = append(applied, u) })

	require.NoError(t, updates.TryPush(schema.BookUpdate{InstrumentID: 3, Side: schema.SideBuy, Price: 100}))
	require.NoError(t, cl.Requests.TryPush(3))

	require.True(t, c.Step())
	assert.True(t, cl.Responses.Empty(), "update step must not serve reads")
	require.Len(t, applied, 1)
	assert.Equal(t, schema.Price(100), applied[0].Price)

	require.True(t, c.Step())
	got, ok := cl.Responses.TryPop()
	require.True(t, ok)
	assert.Equal(t, schema.BookEntry{BidPresent: true, BidPrice: 100}, got)

	assert.False(t, c.Step())
}

func TestCacheServesEveryClient(t *testing.T) {
	mk := func() Client {
		return Client{
			Requests:  bus.NewQueue[uint32]("req", 2),
			Responses: bus.NewQueue[schema.BookEntry]("resp", 1),
		}
	}
	a, b := mk(), mk()
	m := obs.NewMetrics()
	c := NewCache(8, nil, m, a, b)
	c.Update(1, schema.SideSell, 7)

	require.NoError(t, a.Requests.TryPush(1))
	require.NoError(t, a.Requests.TryPush(1))
	require.NoError(t, b.Requests.TryPush(2))

	require.True(t, c.Step())
	assert.Equal(t, 1, a.Responses.Len())
	assert.Equal(t, 1, b.Responses.Len())

	// a's response slot is full, so its second request waits.
	c.Step()
	assert.Equal(t, 1, a.Requests.Len())
	assert.Equal(t, uint64(1), m.Snapshot().Backpressure[obs.StageBookCache])
}

func bookEvent(id uint32, side schema.Side, price schema.Price, depth uint64, eoe bool) schema.MarketEvent {
	return schema.MarketEvent{
		Opcode:       schema.OpcodeBookUpdate,
		InstrumentID: id,
		Side:         side,
		Price:        price,
		Data2:        depth,
		EndOfExtra:   eoe,
	}
}

func drain(u *Updater) {
	for u.Step() {
	}
}

func TestUpdaterSingleWord(t *testing.T) {
	in := bus.NewQueue[schema.MarketEvent]("in", 8)
	out := bus.NewQueue[schema.BookUpdate]("out", 8)
	u := NewUpdater(in, out, nil)

	require.NoError(t, in.TryPush(bookEvent(5, schema.SideBuy, 100, 0, true)))
	require.NoError(t, in.TryPush(bookEvent(5, schema.SideBuy, 99, 1, true)))
	require.NoError(t, in.TryPush(schema.MarketEvent{Opcode: schema.OpcodeTradeSummary, EndOfExtra: true}))
	drain(u)

	require.Equal(t, 1, out.Len())
	got, _ := out.TryPop()
	assert.Equal(t, schema.BookUpdate{InstrumentID: 5, Side: schema.SideBuy, Price: 100}, got)
}

func TestUpdaterCapturesUncrossDepth(t *testing.T) {
	in := bus.NewQueue[schema.MarketEvent]("in", 8)
	out := bus.NewQueue[schema.BookUpdate]("out", 8)
	u := NewUpdater(in, out, nil)

	require.NoError(t, in.TryPush(bookEvent(2, schema.SideSell, 110, 0, false)))
	require.NoError(t, in.TryPush(schema.MarketEvent{OrderID: 0x03 << 40, EndOfExtra: true}))
	drain(u)

	got, ok := out.TryPop()
	require.True(t, ok)
	assert.Equal(t, schema.BookUpdate{InstrumentID: 2, Side: schema.SideSell, Price: 110, UncrossDepth: 3}, got)
}

func TestUpdaterIgnoresDeeperLevelContinuation(t *testing.T) {
	in := bus.NewQueue[schema.MarketEvent]("in", 8)
	out := bus.NewQueue[schema.BookUpdate]("out", 8)
	u := NewUpdater(in, out, nil)

	require.NoError(t, in.TryPush(bookEvent(2, schema.SideSell, 110, 0, true)))
	require.NoError(t, in.TryPush(bookEvent(2, schema.SideSell, 111, 2, false)))
	require.NoError(t, in.TryPush(schema.MarketEvent{OrderID: 0x01 << 40, EndOfExtra: true}))
	drain(u)

	assert.Equal(t, 1, out.Len())
}

func TestUpdaterBackpressure(t *testing.T) {
	in := bus.NewQueue[schema.MarketEvent]("in", 4)
	out := bus.NewQueue[schema.BookUpdate]("out", 1)
	u := NewUpdater(in, out, nil)

	require.NoError(t, in.TryPush(bookEvent(1, schema.SideBuy, 1, 0, true)))
	require.NoError(t, in.TryPush(bookEvent(1, schema.SideBuy, 2, 0, true)))
	drain(u)

	assert.Equal(t, 1, in.Len(), "second word waits for room")
	_, _ = out.TryPop()
	drain(u)
	got, _ := out.TryPop()
	assert.Equal(t, schema.Price(2), got.Price)
}
