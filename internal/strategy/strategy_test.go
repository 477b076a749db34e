package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwstrat/internal/bus"
	"hwstrat/internal/codec"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

type harness struct {
	ports   Ports
	engine  *Engine
	metrics *obs.Metrics
	results []Result
}

func newHarness(d Decider) *harness {
	h := &harness{
		ports: Ports{
			Market:        bus.NewQueue[schema.MarketEvent]("market", 8),
			ConfigReq:     bus.NewQueue[uint32]("cfg_req", 1),
			ConfigResp:    bus.NewQueue[schema.InstrumentConfig]("cfg_resp", 1),
			BookReq:       bus.NewQueue[uint32]("book_req", 1),
			BookResp:      bus.NewQueue[schema.BookEntry]("book_resp", 1),
			Triggers:      bus.NewQueue[codec.TriggerWord]("triggers", 1),
			Notifications: bus.NewQueue[schema.Notification]("notifications", 1),
		},
		metrics: obs.NewMetrics(),
	}
	h.engine = NewEngine(d, obs.StageTickToCancel, h.ports,
		WithMetrics(h.metrics),
		WithTraces(obs.NewTraceGenerator(100)),
		WithDecisionHook(func(r Result) { h.results = append(h.results, r) }),
	)
	return h
}

func (h *harness) step(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := h.engine.Step()
		require.NoError(t, err)
	}
}

// evaluate feeds one trade, answers both lookups and runs the decision.
func (h *harness) evaluate(t *testing.T, trade schema.MarketEvent, cfg schema.InstrumentConfig, book schema.BookEntry) {
	t.Helper()
	require.NoError(t, h.ports.Market.TryPush(trade))
	h.step(t, 1)
	require.Equal(t, StateWaiting, h.engine.State())

	id, ok := h.ports.ConfigReq.TryPop()
	require.True(t, ok)
	assert.Equal(t, trade.InstrumentID, id)
	_, ok = h.ports.BookReq.TryPop()
	require.True(t, ok)

	require.NoError(t, h.ports.BookResp.TryPush(book))
	h.step(t, 1)
	require.Equal(t, StateWaiting, h.engine.State(), "one response is not enough")
	require.NoError(t, h.ports.ConfigResp.TryPush(cfg))
	h.step(t, 1)
	require.Equal(t, StateReady, h.engine.State())
}

func trade(price schema.Price, side schema.Side) schema.MarketEvent {
	return schema.MarketEvent{
		Opcode:       schema.OpcodeTradeSummary,
		InstrumentID: 1,
		Price:        price,
		Side:         side,
		Timestamp:    0xabc,
		EndOfExtra:   true,
	}
}

func cancelConfig() schema.InstrumentConfig {
	return schema.InstrumentConfig{
		InstrumentID:             1,
		Enabled:                  true,
		TickToCancelThreshold:    10,
		TickToCancelCollectionID: 0x55,
	}
}

func TestTickToCancelBidBranch(t *testing.T) {
	testCases := []struct {
		desc  string
		price schema.Price
		fire  bool
	}{
		{desc: "below threshold fires", price: 89, fire: true},
		{desc: "at threshold fires", price: 90, fire: true},
		{desc: "above threshold holds", price: 91, fire: false},
	}
	book := schema.BookEntry{BidPresent: true, BidPrice: 100}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			h := newHarness(TickToCancel{})
			h.evaluate(t, trade(tc.price, schema.SideSell), cancelConfig(), book)

			require.Len(t, h.results, 1)
			assert.Equal(t, tc.fire, h.results[0].Decision.Fired)
			if !tc.fire {
				assert.True(t, h.ports.Triggers.Empty())
				assert.True(t, h.ports.Notifications.Empty())
				return
			}

			tw, ok := h.ports.Triggers.TryPop()
			require.True(t, ok)
			cmd, err := codec.DecodeTrigger(tw)
			require.NoError(t, err)
			assert.Equal(t, uint16(0x55), cmd.CollectionID)
			assert.Equal(t, uint8(0b1111), cmd.ValidMask)
			assert.Equal(t, schema.U128(0xabc), cmd.Args[0])
			assert.Equal(t, schema.U128(TickToCancelBidTag), cmd.Args[1])
			assert.Equal(t, schema.U128(1), cmd.Args[2])
			assert.Equal(t, schema.U128(0), cmd.Args[3])

			n, ok := h.ports.Notifications.TryPop()
			require.True(t, ok)
			assert.Equal(t, schema.MsgTypeCancelledOnBidSide, n.Header.MsgType)
			assert.Equal(t, schema.TickToCancelReport{
				TradeSummaryPrice: tc.price,
				BookTopLevelPrice: 100,
				Threshold:         10,
				InstrumentID:      1,
				SentCollectionID:  0x55,
				IsBid:             true,
			}, n.TickToCancel)
		})
	}
}

func TestTickToCancelAskBranch(t *testing.T) {
	h := newHarness(TickToCancel{})
	h.evaluate(t, trade(120, schema.SideBuy), cancelConfig(), schema.BookEntry{AskPresent: true, AskPrice: 110})

	tw, ok := h.ports.Triggers.TryPop()
	require.True(t, ok)
	cmd, err := codec.DecodeTrigger(tw)
	require.NoError(t, err)
	assert.Equal(t, schema.U128(TickToCancelAskTag), cmd.Args[1])
	assert.Equal(t, schema.U128(1), cmd.Args[3])

	n, _ := h.ports.Notifications.TryPop()
	assert.Equal(t, schema.MsgTypeCancelledOnAskSide, n.Header.MsgType)
	assert.False(t, n.TickToCancel.IsBid)
	assert.Equal(t, schema.Price(110), n.TickToCancel.BookTopLevelPrice)
}

func TestTickToCancelGuards(t *testing.T) {
	book := schema.BookEntry{BidPresent: true, BidPrice: 100}
	disabled := cancelConfig()
	disabled.Enabled = false
	noThreshold := cancelConfig()
	noThreshold.TickToCancelThreshold = 0

	for _, cfg := range []schema.InstrumentConfig{disabled, noThreshold} {
		_, fired := TickToCancel{}.Decide(Trade{Price: 1}, cfg, book)
		assert.False(t, fired)
	}
	_, fired := TickToCancel{}.Decide(Trade{Price: 1}, cancelConfig(), schema.BookEntry{})
	assert.False(t, fired, "empty book never fires")
}

func TestTickToCancelExtremePrices(t *testing.T) {
	testCases := []struct {
		desc  string
		price schema.Price
		book  schema.BookEntry
		thr   schema.Price
		fired bool
		isBid bool
	}{
		{desc: "bid limit below int64 range", price: math.MinInt64, book: schema.BookEntry{BidPresent: true, BidPrice: math.MinInt64 + 5}, thr: 10},
		{desc: "ask limit above int64 range", price: math.MaxInt64, book: schema.BookEntry{AskPresent: true, AskPrice: math.MaxInt64 - 5}, thr: 10},
		{desc: "huge threshold never fires", price: 0, book: schema.BookEntry{BidPresent: true, BidPrice: 100, AskPresent: true, AskPrice: 110}, thr: math.MaxInt64},
		{desc: "bid limit at range end", price: math.MinInt64, book: schema.BookEntry{BidPresent: true, BidPrice: math.MinInt64 + 10}, thr: 10, fired: true, isBid: true},
		{desc: "ask limit at range end", price: math.MaxInt64, book: schema.BookEntry{AskPresent: true, AskPrice: math.MaxInt64 - 10}, thr: 10, fired: true},
		{desc: "negative threshold saturates bid", price: math.MaxInt64, book: schema.BookEntry{BidPresent: true, BidPrice: math.MaxInt64 - 1}, thr: -5, fired: true, isBid: true},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := cancelConfig()
			cfg.TickToCancelThreshold = tc.thr
			out, fired := TickToCancel{}.Decide(Trade{Price: tc.price}, cfg, tc.book)
			require.Equal(t, tc.fired, fired)
			if fired {
				assert.Equal(t, tc.isBid, out.IsBid)
			}
		})
	}
}

func TestDecideBuildsFourArgumentTrigger(t *testing.T) {
	out, fired := TickToCancel{}.Decide(Trade{Price: 80, Timestamp: 0x99}, cancelConfig(),
		schema.BookEntry{BidPresent: true, BidPrice: 100})
	require.True(t, fired)
	assert.Equal(t, uint8(0b1111), out.Trigger.ValidMask)
	assert.Equal(t, 4, out.Trigger.ArgCount())
	assert.Equal(t, schema.U128(0x99), out.Trigger.Args[0])
	assert.NoError(t, codec.ValidateMask(out.Trigger.ValidMask))

	out, fired = TickToTrade{}.Decide(Trade{Price: 105, Side: schema.SideBuy}, tradeConfig(), schema.BookEntry{})
	require.True(t, fired)
	assert.Equal(t, uint8(0b1111), out.Trigger.ValidMask)
	assert.Equal(t, schema.Uint128{}, out.Trigger.Args[4])
}

func tradeConfig() schema.InstrumentConfig {
	return schema.InstrumentConfig{
		InstrumentID:               1,
		Enabled:                    true,
		TickToTradeBidPrice:        100,
		TickToTradeBidCollectionID: 0x10,
		TickToTradeAskPrice:        110,
		TickToTradeAskCollectionID: 0x12,
	}
}

func TestTickToTradeBuySide(t *testing.T) {
	h := newHarness(TickToTrade{})
	h.evaluate(t, trade(105, schema.SideBuy), tradeConfig(), schema.BookEntry{})

	tw, ok := h.ports.Triggers.TryPop()
	require.True(t, ok)
	cmd, err := codec.DecodeTrigger(tw)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x10), cmd.CollectionID)
	assert.Equal(t, schema.U128(TickToTradeBidTag), cmd.Args[1])
	assert.Equal(t, schema.U128(2), cmd.Args[2])
	assert.Equal(t, schema.U128(1), cmd.Args[3])

	n, ok := h.ports.Notifications.TryPop()
	require.True(t, ok)
	assert.Equal(t, schema.MsgTypeTriggeredOnBid, n.Header.MsgType)
	assert.False(t, n.TickToTrade.IsBid)
	assert.Equal(t, schema.Price(100), n.TickToTrade.ThresholdPrice)
}

func TestTickToTradeSellSide(t *testing.T) {
	h := newHarness(TickToTrade{})
	h.evaluate(t, trade(105, schema.SideSell), tradeConfig(), schema.BookEntry{})

	tw, ok := h.ports.Triggers.TryPop()
	require.True(t, ok)
	cmd, err := codec.DecodeTrigger(tw)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x12), cmd.CollectionID)
	assert.Equal(t, schema.U128(2), cmd.Args[3])

	n, _ := h.ports.Notifications.TryPop()
	assert.Equal(t, schema.MsgTypeTriggeredOnAsk, n.Header.MsgType)
	assert.False(t, n.TickToTrade.IsBid)
}

func TestTickToTradeNoFire(t *testing.T) {
	testCases := []struct {
		desc  string
		price schema.Price
		side  schema.Side
		cfg   func(*schema.InstrumentConfig)
	}{
		{desc: "buy at price", price: 100, side: schema.SideBuy},
		{desc: "sell at price", price: 110, side: schema.SideSell},
		{desc: "disabled", price: 105, side: schema.SideBuy, cfg: func(c *schema.InstrumentConfig) { c.Enabled = false }},
		{desc: "unset bid", price: 105, side: schema.SideBuy, cfg: func(c *schema.InstrumentConfig) { c.TickToTradeBidPrice = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := tradeConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			_, fired := TickToTrade{}.Decide(Trade{Price: tc.price, Side: tc.side}, cfg, schema.BookEntry{})
			assert.False(t, fired)
		})
	}
}

func TestEngineTracksSequenceAndEndOfExtra(t *testing.T) {
	h := newHarness(TickToCancel{})
	require.NoError(t, h.ports.Market.TryPush(schema.MarketEvent{
		Opcode: schema.OpcodeMiscInputPktInfo, Data0: 42, EndOfExtra: true,
	}))
	// A trade summary opcode on a continuation word is not a new event.
	require.NoError(t, h.ports.Market.TryPush(schema.MarketEvent{Opcode: schema.OpcodeOrderAdd}))
	require.NoError(t, h.ports.Market.TryPush(schema.MarketEvent{Opcode: schema.OpcodeTradeSummary, EndOfExtra: true}))
	h.step(t, 3)
	assert.Equal(t, StateReady, h.engine.State())
	assert.Equal(t, uint64(42), h.engine.Sequence())

	h.evaluate(t, trade(89, schema.SideSell), cancelConfig(), schema.BookEntry{BidPresent: true, BidPrice: 100})
	require.Len(t, h.results, 1)
	assert.Equal(t, uint64(42), h.results[0].Decision.SequenceNumber)
	assert.Equal(t, uint64(101), h.results[0].TraceID)
}

func TestEngineDropsEventsWhileWaiting(t *testing.T) {
	h := newHarness(TickToCancel{})
	require.NoError(t, h.ports.Market.TryPush(trade(89, schema.SideSell)))
	h.step(t, 1)
	require.Equal(t, StateWaiting, h.engine.State())

	require.NoError(t, h.ports.Market.TryPush(trade(50, schema.SideSell)))
	h.step(t, 1)
	assert.True(t, h.ports.Market.Empty())
	assert.Equal(t, StateWaiting, h.engine.State())
	assert.Equal(t, 1, h.ports.ConfigReq.Len(), "no second lookup while waiting")
}

func TestEngineHoldsDecisionUnderBackpressure(t *testing.T) {
	h := newHarness(TickToCancel{})
	require.NoError(t, h.ports.Triggers.TryPush(codec.TriggerWord{}))

	require.NoError(t, h.ports.Market.TryPush(trade(89, schema.SideSell)))
	h.step(t, 1)
	_, _ = h.ports.ConfigReq.TryPop()
	_, _ = h.ports.BookReq.TryPop()
	require.NoError(t, h.ports.ConfigResp.TryPush(cancelConfig()))
	require.NoError(t, h.ports.BookResp.TryPush(schema.BookEntry{BidPresent: true, BidPrice: 100}))
	h.step(t, 3)
	assert.Equal(t, StateWaiting, h.engine.State())
	assert.Empty(t, h.results)
	assert.NotZero(t, h.metrics.Snapshot().Backpressure[obs.StageTickToCancel])

	_, _ = h.ports.Triggers.TryPop()
	h.step(t, 1)
	assert.Equal(t, StateReady, h.engine.State())
	assert.Equal(t, 1, h.ports.Triggers.Len())
}
