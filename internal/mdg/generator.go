package mdg

import (
	"math/rand"

	"github.com/yanun0323/errors"

	"hwstrat/internal/schema"
)

// Config shapes the synthetic market.
type Config struct {
	Instruments []uint32
	BasePrice   schema.Price
	TickSize    schema.Price
	// SpreadTicks is the distance from mid to each side of the book.
	SpreadTicks int
	// TradeRate is the probability that a packet carries a trade summary.
	TradeRate float64
	// UncrossRate is the probability that a book update carries an extra
	// word with an uncross depth.
	UncrossRate float64
	Seed        int64
}

func (c Config) Validate() error {
	if len(c.Instruments) == 0 {
		return errors.New("invalid generator config: no instruments")
	}
	for _, id := range c.Instruments {
		if id == schema.InstrumentNotFound || id == schema.InstrumentCmdNotInstr || id == schema.InstrumentNotSet {
			return errors.Errorf("invalid generator config: reserved instrument id %#x", id)
		}
	}
	if c.BasePrice <= 0 || c.TickSize <= 0 {
		return errors.New("invalid generator config: base price and tick size must be > 0")
	}
	if c.SpreadTicks <= 0 {
		return errors.New("invalid generator config: spreadTicks must be > 0")
	}
	if c.TradeRate < 0 || c.TradeRate > 1 || c.UncrossRate < 0 || c.UncrossRate > 1 {
		return errors.New("invalid generator config: rates must be between 0 and 1")
	}
	return nil
}

// Generator produces market bus packets for a set of instruments, one
// instrument per packet in round-robin order. Mid prices follow a random
// walk of one tick per packet.
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	mids  []schema.Price
	index int
	seq   uint64
	ts    uint32
}

func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mids := make([]schema.Price, len(cfg.Instruments))
	for i := range mids {
		mids[i] = cfg.BasePrice
	}
	return &Generator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		mids: mids,
	}, nil
}

// Next returns the words of the next packet. The packet opens with a
// MISC_INPUT_PKT_INFO word carrying the packet sequence number.
func (g *Generator) Next() []schema.MarketEvent {
	i := g.index
	g.index = (g.index + 1) % len(g.cfg.Instruments)
	id := g.cfg.Instruments[i]
	g.seq++

	mid := g.walk(i)
	half := g.cfg.TickSize * schema.Price(g.cfg.SpreadTicks)

	out := make([]schema.MarketEvent, 0, 6)
	out = append(out, g.word(schema.MarketEvent{
		Opcode: schema.OpcodeMiscInputPktInfo,
		Data0:  g.seq,
	}, true))
	out = g.bookUpdate(out, id, schema.SideBuy, mid-half)
	out = g.bookUpdate(out, id, schema.SideSell, mid+half)

	if g.cfg.TradeRate > 0 && g.rng.Float64() < g.cfg.TradeRate {
		side := schema.SideBuy
		price := mid + half
		if g.rng.Intn(2) == 0 {
			side = schema.SideSell
			price = mid - half
		}
		// Trades land up to two spreads away from the touch.
		offset := g.cfg.TickSize * schema.Price(g.rng.Intn(2*g.cfg.SpreadTicks+1))
		if side == schema.SideBuy {
			price += offset
		} else {
			price -= offset
		}
		out = append(out, g.word(schema.MarketEvent{
			Opcode:       schema.OpcodeTradeSummary,
			InstrumentID: id,
			Side:         side,
			Price:        price,
			Qty:          uint32(1 + g.rng.Intn(100)),
		}, true))
	}
	return out
}

// Sequence returns the sequence number of the last packet.
func (g *Generator) Sequence() uint64 {
	return g.seq
}

func (g *Generator) walk(i int) schema.Price {
	switch g.rng.Intn(3) {
	case 0:
		if g.mids[i]-g.cfg.TickSize > g.cfg.TickSize*schema.Price(g.cfg.SpreadTicks) {
			g.mids[i] -= g.cfg.TickSize
		}
	case 2:
		g.mids[i] += g.cfg.TickSize
	}
	return g.mids[i]
}

func (g *Generator) bookUpdate(out []schema.MarketEvent, id uint32, side schema.Side, price schema.Price) []schema.MarketEvent {
	uncross := g.cfg.UncrossRate > 0 && g.rng.Float64() < g.cfg.UncrossRate
	out = append(out, g.word(schema.MarketEvent{
		Opcode:       schema.OpcodeBookUpdate,
		InstrumentID: id,
		Side:         side,
		Price:        price,
	}, !uncross))
	if uncross {
		depth := uint64(1 + g.rng.Intn(255))
		out = append(out, g.word(schema.MarketEvent{
			Opcode:  schema.OpcodeExtraEmpty,
			OrderID: depth << 40,
		}, true))
	}
	return out
}

func (g *Generator) word(ev schema.MarketEvent, end bool) schema.MarketEvent {
	g.ts++
	ev.Timestamp = g.ts
	ev.EndOfExtra = end
	ev.Last = end
	return ev
}
