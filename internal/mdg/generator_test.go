package mdg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwstrat/internal/book"
	"hwstrat/internal/bus"
	"hwstrat/internal/codec"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

func testConfig() Config {
	return Config{
		Instruments: []uint32{1, 2, 3},
		BasePrice:   schema.Price(100_0000000000),
		TickSize:    schema.Price(1_0000000000),
		SpreadTicks: 2,
		TradeRate:   0.5,
		UncrossRate: 0.5,
		Seed:        11,
	}
}

func TestGeneratorPacketShape(t *testing.T) {
	g, err := NewGenerator(testConfig())
	require.NoError(t, err)

	for n := 1; n <= 30; n++ {
		words := g.Next()
		require.NotEmpty(t, words)
		assert.Equal(t, schema.OpcodeMiscInputPktInfo, words[0].Opcode)
		assert.Equal(t, uint64(n), words[0].Data0)
		assert.True(t, words[len(words)-1].EndOfExtra)

		wantID := testConfig().Instruments[(n-1)%3]
		var bid, ask schema.Price
		for _, w := range words[1:] {
			if w.Opcode == schema.OpcodeExtraEmpty {
				continue
			}
			assert.Equal(t, wantID, w.InstrumentID)
			if w.Opcode == schema.OpcodeBookUpdate {
				if w.Side == schema.SideBuy {
					bid = w.Price
				} else {
					ask = w.Price
				}
			}
		}
		require.NotZero(t, bid)
		assert.Less(t, bid, ask)
	}
	assert.Equal(t, uint64(30), g.Sequence())
}

func TestGeneratorDeterministic(t *testing.T) {
	a, err := NewGenerator(testConfig())
	require.NoError(t, err)
	b, err := NewGenerator(testConfig())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestGeneratorFeedsBookUpdater(t *testing.T) {
	g, err := NewGenerator(testConfig())
	require.NoError(t, err)

	var words []schema.MarketEvent
	for i := 0; i < 10; i++ {
		words = append(words, g.Next()...)
	}

	in := bus.NewQueue[schema.MarketEvent]("market", len(words))
	out := bus.NewQueue[schema.BookUpdate]("updates", len(words))
	for _, w := range words {
		// Through the vector form, the way the daemon reads them.
		parsed, err := codec.ParseMarketLine([]byte(codec.FormatMarketLine(w)))
		require.NoError(t, err)
		require.NoError(t, in.TryPush(parsed))
	}
	u := book.NewUpdater(in, out, obs.NewMetrics())
	for u.Step() {
	}

	assert.Equal(t, 20, out.Len())
	for {
		upd, ok := out.TryPop()
		if !ok {
			break
		}
		assert.Contains(t, testConfig().Instruments, upd.InstrumentID)
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		desc   string
		mutate func(*Config)
	}{
		{desc: "no instruments", mutate: func(c *Config) { c.Instruments = nil }},
		{desc: "reserved id", mutate: func(c *Config) { c.Instruments = []uint32{schema.InstrumentNotSet} }},
		{desc: "zero tick", mutate: func(c *Config) { c.TickSize = 0 }},
		{desc: "zero spread", mutate: func(c *Config) { c.SpreadTicks = 0 }},
		{desc: "rate above one", mutate: func(c *Config) { c.TradeRate = 2 }},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			_, err := NewGenerator(cfg)
			assert.Error(t, err)
		})
	}
}
