package strategy

import (
	"time"

	"github.com/yanun0323/logs"

	"hwstrat/internal/bus"
	"hwstrat/internal/codec"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

// State of a strategy engine.
type State uint8

const (
	StateReady State = iota
	StateWaiting
)

func (s State) String() string {
	if s == StateWaiting {
		return "waiting"
	}
	return "ready"
}

// Trade is the part of a TRADE_SUMMARY event kept while lookups are pending.
type Trade struct {
	Price          schema.Price
	Timestamp      uint32
	InstrumentID   uint32
	Side           schema.Side
	SequenceNumber uint64
	TraceID        uint64
	ReceivedAt     time.Time
}

// Outcome is a fired decision: the trigger to send and the host report.
type Outcome struct {
	Trigger        schema.TriggerCommand
	Notification   schema.Notification
	IsBid          bool
	ReferencePrice schema.Price
}

// Decider evaluates one trade against its configuration and book.
type Decider interface {
	Module() schema.ModuleID
	Name() string
	Decide(trade Trade, cfg schema.InstrumentConfig, book schema.BookEntry) (Outcome, bool)
}

// Ports are the queues an engine reads and writes.
type Ports struct {
	Market        *bus.Queue[schema.MarketEvent]
	ConfigReq     *bus.Queue[uint32]
	ConfigResp    *bus.Queue[schema.InstrumentConfig]
	BookReq       *bus.Queue[uint32]
	BookResp      *bus.Queue[schema.BookEntry]
	Triggers      *bus.Queue[codec.TriggerWord]
	Notifications *bus.Queue[schema.Notification]
}

// Result is handed to the decision hook after every evaluation.
type Result struct {
	Decision schema.Decision
	Trigger  *schema.TriggerCommand
	TraceID  uint64
}

// Engine runs the shared Ready/Waiting machine around a Decider. It has at
// most one decision in flight.
type Engine struct {
	decider    Decider
	ports      Ports
	stage      obs.Stage
	metrics    *obs.Metrics
	traces     *obs.TraceGenerator
	onDecision func(Result)

	state      State
	endOfExtra bool
	sequence   uint64
	pending    Trade
	cfg        schema.InstrumentConfig
	haveCfg    bool
	book       schema.BookEntry
	haveBook   bool
}

// Option customises an Engine.
type Option func(*Engine)

func WithMetrics(m *obs.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithTraces(g *obs.TraceGenerator) Option {
	return func(e *Engine) { e.traces = g }
}

// WithDecisionHook registers fn to observe every evaluation.
func WithDecisionHook(fn func(Result)) Option {
	return func(e *Engine) { e.onDecision = fn }
}

// NewEngine wires a decider to its ports.
func NewEngine(d Decider, stage obs.Stage, ports Ports, opts ...Option) *Engine {
	e := &Engine{
		decider:    d,
		ports:      ports,
		stage:      stage,
		endOfExtra: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) State() State {
	return e.state
}

// Sequence returns the last MISC_INPUT_PKT_INFO sequence number seen.
func (e *Engine) Sequence() uint64 {
	return e.sequence
}

// Step makes at most one transition.
func (e *Engine) Step() (bool, error) {
	if e.state == StateWaiting {
		return e.stepWaiting()
	}
	return e.stepReady(), nil
}

func (e *Engine) stepReady() bool {
	ev, ok := e.ports.Market.Peek()
	if !ok {
		return false
	}
	begins := e.endOfExtra
	if begins && ev.Opcode == schema.OpcodeTradeSummary {
		if e.ports.ConfigReq.Full() || e.ports.BookReq.Full() {
			e.metrics.IncBackpressure(e.stage)
			return false
		}
		e.ports.Market.TryPop()
		logs.Infof("[%s] [nxbus timestamp %x] trade summary price=%s seqnum=%d -> request book and configuration",
			e.decider.Name(), ev.Timestamp, ev.Price.Decimal(), e.sequence)
		e.pending = Trade{
			Price:          ev.Price,
			Timestamp:      ev.Timestamp,
			InstrumentID:   ev.InstrumentID,
			Side:           ev.Side,
			SequenceNumber: e.sequence,
			TraceID:        e.traces.Next(),
			ReceivedAt:     time.Now(),
		}
		_ = e.ports.ConfigReq.TryPush(ev.InstrumentID)
		_ = e.ports.BookReq.TryPush(ev.InstrumentID)
		e.state = StateWaiting
		e.endOfExtra = ev.EndOfExtra
		return true
	}

	e.ports.Market.TryPop()
	if begins && ev.Opcode == schema.OpcodeMiscInputPktInfo {
		e.sequence = ev.Data0
	}
	e.endOfExtra = ev.EndOfExtra
	return true
}

func (e *Engine) stepWaiting() (bool, error) {
	progressed := false
	if !e.haveCfg {
		if cfg, ok := e.ports.ConfigResp.TryPop(); ok {
			e.cfg, e.haveCfg, progressed = cfg, true, true
		}
	}
	if !e.haveBook {
		if book, ok := e.ports.BookResp.TryPop(); ok {
			e.book, e.haveBook, progressed = book, true, true
		}
	}
	if e.haveCfg && e.haveBook {
		done, err := e.decide()
		if err != nil {
			return true, err
		}
		if done {
			return true, nil
		}
		return progressed, nil
	}

	// Market words arriving while a decision is pending are dropped.
	if ev, ok := e.ports.Market.TryPop(); ok {
		e.endOfExtra = ev.EndOfExtra
		progressed = true
	}
	return progressed, nil
}

func (e *Engine) decide() (bool, error) {
	out, fired := e.decider.Decide(e.pending, e.cfg, e.book)
	var tw codec.TriggerWord
	if fired {
		if e.ports.Triggers.Full() || e.ports.Notifications.Full() {
			e.metrics.IncBackpressure(e.stage)
			return false, nil
		}
		var err error
		if tw, err = codec.EncodeTrigger(out.Trigger); err != nil {
			return false, err
		}
	}

	module := e.decider.Module()
	res := Result{
		Decision: schema.Decision{
			Engine:         module,
			Fired:          fired,
			IsBid:          out.IsBid,
			InstrumentID:   e.pending.InstrumentID,
			Timestamp:      e.pending.Timestamp,
			SequenceNumber: e.pending.SequenceNumber,
			TradePrice:     e.pending.Price,
			ReferencePrice: out.ReferencePrice,
		},
		TraceID: e.pending.TraceID,
	}
	e.metrics.IncEvaluation(module)
	if fired {
		_ = e.ports.Triggers.TryPush(tw)
		_ = e.ports.Notifications.TryPush(out.Notification)
		res.Decision.CollectionID = out.Trigger.CollectionID
		res.Trigger = &out.Trigger
		e.metrics.IncDecision(module)
		logs.Infof("[%s] ts=%x seqnum=%d instrument=%d price=%s reference=%s -> triggering collection %#x",
			e.decider.Name(), e.pending.Timestamp, e.pending.SequenceNumber, e.pending.InstrumentID,
			e.pending.Price.Decimal(), out.ReferencePrice.Decimal(), out.Trigger.CollectionID)
	}
	if !e.pending.ReceivedAt.IsZero() {
		e.metrics.ObserveDecision(time.Since(e.pending.ReceivedAt))
	}
	if e.onDecision != nil {
		e.onDecision(res)
	}

	e.state = StateReady
	e.haveCfg, e.haveBook = false, false
	return true, nil
}

// tradeCommand builds the four-argument trigger shared by both strategies.
func tradeCommand(collection uint16, ts uint32, tag uint64, kind, branch uint8) schema.TriggerCommand {
	return schema.TriggerCommand{
		CollectionID: collection,
		ValidMask:    0b1111,
		Args: [schema.TriggerArgCount]schema.Uint128{
			schema.U128(uint64(ts)),
			schema.U128(tag),
			schema.U128(uint64(kind)),
			schema.U128(uint64(branch)),
		},
	}
}

// atOrBelow reports price <= ref-off as if computed without bounds. A limit
// past the int64 range compares as the range end instead of wrapping.
func atOrBelow(price, ref, off schema.Price) bool {
	limit := ref - off
	switch {
	case off > 0 && limit > ref:
		return false
	case off < 0 && limit < ref:
		return true
	}
	return price <= limit
}

// atOrAbove reports price >= ref+off with the same saturation as atOrBelow.
func atOrAbove(price, ref, off schema.Price) bool {
	limit := ref + off
	switch {
	case off > 0 && limit < ref:
		return false
	case off < 0 && limit > ref:
		return true
	}
	return price >= limit
}
