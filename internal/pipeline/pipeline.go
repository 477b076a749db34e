package pipeline

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"hwstrat/internal/arbiter"
	"hwstrat/internal/book"
	"hwstrat/internal/bus"
	"hwstrat/internal/codec"
	"hwstrat/internal/config"
	"hwstrat/internal/notify"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
	"hwstrat/internal/state"
	"hwstrat/internal/strategy"
	"hwstrat/internal/tcp"
	"hwstrat/pkg/exception"
)

const idleBackoff = 50 * time.Microsecond

// Lookup client slots on the configuration store and the book cache.
const (
	clientTickToCancel = iota
	clientTickToTrade
)

// Config sizes the pipeline. Zero depths fall back to QueueDepth.
type Config struct {
	InstrumentCount int
	QueueDepth      int
	MarketDepth     int
	HostDepth       int
	OutputDepth     int
	Tcp             tcp.Policy
	HonorArgBitmap  bool
}

func (c Config) withDefaults() Config {
	if c.MarketDepth == 0 {
		c.MarketDepth = c.QueueDepth
	}
	if c.HostDepth == 0 {
		c.HostDepth = c.QueueDepth
	}
	if c.OutputDepth == 0 {
		c.OutputDepth = c.QueueDepth
	}
	return c
}

func (c Config) Validate() error {
	switch {
	case c.InstrumentCount <= 0:
		return errors.Wrap(exception.ErrInvalidPipelineConf, "instrument count must be > 0").With("instrumentCount", c.InstrumentCount)
	case c.QueueDepth <= 0, c.MarketDepth <= 0, c.HostDepth <= 0, c.OutputDepth <= 0:
		return errors.Wrap(exception.ErrInvalidPipelineConf, "queue depths must be > 0").With("queueDepth", c.QueueDepth)
	}
	return nil
}

// Inputs are the queues fed from outside the pipeline.
type Inputs struct {
	Market *bus.Queue[schema.MarketEvent]
	Host   *bus.Queue[schema.DMAWord]
	Tcp    *bus.Queue[schema.TcpReplyWord]
}

// Outputs are the queues drained by the caller.
type Outputs struct {
	Triggers      *bus.Queue[codec.TriggerWord]
	Notifications *bus.Queue[schema.DMAWord]
}

// Option customises a Pipeline.
type Option func(*Pipeline)

func WithMetrics(m *obs.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithTraces(g *obs.TraceGenerator) Option {
	return func(p *Pipeline) { p.traces = g }
}

// WithAudit publishes an audit record for every commit, book write,
// decision, trigger and notification. A full queue drops the record, never
// the pipeline data.
func WithAudit(q *bus.EventQueue) Option {
	return func(p *Pipeline) { p.audit = q }
}

// WithDecisionHook registers fn to observe every strategy evaluation.
func WithDecisionHook(fn func(strategy.Result)) Option {
	return func(p *Pipeline) { p.onDecision = fn }
}

// WithCommitHook registers fn to observe every committed configuration.
func WithCommitHook(fn func(schema.InstrumentConfig)) Option {
	return func(p *Pipeline) { p.onCommit = fn }
}

// Pipeline owns every component and the queues between them. It is driven
// by a single goroutine calling Step.
type Pipeline struct {
	cfg        Config
	in         Inputs
	out        Outputs
	metrics    *obs.Metrics
	traces     *obs.TraceGenerator
	audit      *bus.EventQueue
	onDecision func(strategy.Result)
	onCommit   func(schema.InstrumentConfig)
	now        func() time.Time

	demux    *Demuxer
	updater  *book.Updater
	cache    *book.Cache
	store    *config.Store
	t2c      *strategy.Engine
	t2t      *strategy.Engine
	consumer *tcp.Consumer
	arbiter  *arbiter.Arbiter[codec.TriggerWord]
	mux      *notify.Mux

	internal []interface{ Empty() bool }
	seq      uint64
	err      error
}

// New builds and wires a pipeline.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg: cfg,
		in: Inputs{
			Market: bus.NewQueue[schema.MarketEvent]("market", cfg.MarketDepth),
			Host:   bus.NewQueue[schema.DMAWord]("host", cfg.HostDepth),
			Tcp:    bus.NewQueue[schema.TcpReplyWord]("tcp", cfg.MarketDepth),
		},
		out: Outputs{
			Triggers:      bus.NewQueue[codec.TriggerWord]("triggers", cfg.OutputDepth),
			Notifications: bus.NewQueue[schema.DMAWord]("notifications", cfg.OutputDepth),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = obs.NewMetrics()
	}
	if p.traces == nil {
		p.traces = obs.NewTraceGenerator(0)
	}
	p.wire()
	return p, nil
}

func (p *Pipeline) wire() {
	depth := p.cfg.QueueDepth
	n := p.cfg.InstrumentCount

	toBook := bus.NewQueue[schema.MarketEvent]("market_book", depth)
	toCancel := bus.NewQueue[schema.MarketEvent]("market_t2c", depth)
	toTrade := bus.NewQueue[schema.MarketEvent]("market_t2t", depth)
	p.demux = NewDemuxer(p.in.Market, p.metrics, toBook, toCancel, toTrade)

	bookUpdates := bus.NewQueue[schema.BookUpdate]("book_updates", depth)
	p.updater = book.NewUpdater(toBook, bookUpdates, p.metrics)

	cfgClients := make([]config.Client, 2)
	bookClients := make([]book.Client, 2)
	for i := range cfgClients {
		cfgClients[i] = config.Client{
			Requests:  bus.NewQueue[uint32]("config_req", depth),
			Responses: bus.NewQueue[schema.InstrumentConfig]("config_resp", depth),
		}
		bookClients[i] = book.Client{
			Requests:  bus.NewQueue[uint32]("book_req", depth),
			Responses: bus.NewQueue[schema.BookEntry]("book_resp", depth),
		}
	}
	p.cache = book.NewCache(n, bookUpdates, p.metrics, bookClients...)
	p.cache.OnUpdate(p.auditBookUpdate)

	ports := make([]*bus.Queue[codec.TriggerWord], arbiter.PortCount)
	for i := range ports {
		ports[i] = bus.NewQueue[codec.TriggerWord]("trigger_port", depth)
	}
	notes := notify.Inputs{
		ConfigAcks:   bus.NewQueue[schema.Notification]("config_acks", depth),
		TickToTrade:  bus.NewQueue[schema.Notification]("t2t_notifications", depth),
		TickToCancel: bus.NewQueue[schema.Notification]("t2c_notifications", depth),
		TcpConsumer:  bus.NewQueue[schema.Notification]("tcp_notifications", depth),
	}

	p.store = config.NewStore(n, p.in.Host, notes.ConfigAcks, ports[arbiter.PortSoftwareTrigger], p.metrics,
		config.Options{HonorArgBitmap: p.cfg.HonorArgBitmap, OnCommit: p.committed},
		cfgClients...)

	engineOpts := []strategy.Option{
		strategy.WithMetrics(p.metrics),
		strategy.WithTraces(p.traces),
		strategy.WithDecisionHook(p.decided),
	}
	p.t2c = strategy.NewEngine(strategy.TickToCancel{}, obs.StageTickToCancel, strategy.Ports{
		Market:        toCancel,
		ConfigReq:     cfgClients[clientTickToCancel].Requests,
		ConfigResp:    cfgClients[clientTickToCancel].Responses,
		BookReq:       bookClients[clientTickToCancel].Requests,
		BookResp:      bookClients[clientTickToCancel].Responses,
		Triggers:      ports[arbiter.PortTickToCancel],
		Notifications: notes.TickToCancel,
	}, engineOpts...)
	p.t2t = strategy.NewEngine(strategy.TickToTrade{}, obs.StageTickToTrade, strategy.Ports{
		Market:        toTrade,
		ConfigReq:     cfgClients[clientTickToTrade].Requests,
		ConfigResp:    cfgClients[clientTickToTrade].Responses,
		BookReq:       bookClients[clientTickToTrade].Requests,
		BookResp:      bookClients[clientTickToTrade].Responses,
		Triggers:      ports[arbiter.PortTickToTrade],
		Notifications: notes.TickToTrade,
	}, engineOpts...)

	p.consumer = tcp.NewConsumer(p.in.Tcp, ports[arbiter.PortTcpConsumer], notes.TcpConsumer, p.cfg.Tcp, p.metrics)

	p.arbiter = arbiter.New(p.out.Triggers, func(w codec.TriggerWord) bool { return w.Last }, p.metrics, ports...)
	p.arbiter.OnGrant(p.auditTrigger)

	p.mux = notify.NewMux(notes, p.out.Notifications, p.metrics)
	p.mux.OnGrant(p.auditNotification)

	p.internal = []interface{ Empty() bool }{
		toBook, toCancel, toTrade, bookUpdates,
		notes.ConfigAcks, notes.TickToTrade, notes.TickToCancel, notes.TcpConsumer,
	}
	for i := range cfgClients {
		p.internal = append(p.internal,
			cfgClients[i].Requests, cfgClients[i].Responses,
			bookClients[i].Requests, bookClients[i].Responses)
	}
	for _, q := range ports {
		p.internal = append(p.internal, q)
	}
}

func (p *Pipeline) Inputs() Inputs   { return p.in }
func (p *Pipeline) Outputs() Outputs { return p.out }

func (p *Pipeline) Metrics() *obs.Metrics {
	return p.metrics
}

// Step advances every component by at most one transition, upstream
// first. It reports whether any component made progress. After an error
// the pipeline stays halted.
func (p *Pipeline) Step() (bool, error) {
	if p.err != nil {
		return false, exception.ErrPipelineHalted
	}
	start := time.Now()
	progressed := false

	progressed = p.demux.Step() || progressed
	progressed = p.updater.Step() || progressed
	progressed = p.cache.Step() || progressed

	for _, step := range []func() (bool, error){p.store.Step, p.t2c.Step, p.t2t.Step, p.consumer.Step} {
		ok, err := step()
		if err != nil {
			logs.Errorf("[PIPELINE] halted, err: %+v", err)
			p.err = err
			return true, err
		}
		progressed = ok || progressed
	}

	progressed = p.arbiter.Step() || progressed

	ok, err := p.mux.Step()
	if err != nil {
		logs.Errorf("[PIPELINE] halted, err: %+v", err)
		p.err = err
		return true, err
	}
	progressed = ok || progressed

	p.metrics.ObserveStep(time.Since(start))
	return progressed, nil
}

// Idle reports whether every queue is empty and every component rests in
// its initial state.
func (p *Pipeline) Idle() bool {
	if !p.in.Market.Empty() || !p.in.Host.Empty() || !p.in.Tcp.Empty() ||
		!p.out.Triggers.Empty() || !p.out.Notifications.Empty() {
		return false
	}
	for _, q := range p.internal {
		if !q.Empty() {
			return false
		}
	}
	return p.store.State() == config.StateIdle &&
		p.t2c.State() == strategy.StateReady &&
		p.t2t.State() == strategy.StateReady &&
		p.arbiter.State() == arbiter.StateIdle &&
		p.mux.State() == notify.StateIdle
}

// Preload commits configurations without a host message or ack. Each one
// is audited so the trail alone can rebuild the table.
func (p *Pipeline) Preload(cfgs []schema.InstrumentConfig) error {
	for _, cfg := range cfgs {
		if !p.store.Commit(cfg) {
			return errors.Wrap(exception.ErrInstrumentRange, "preload configuration").With("instrumentID", cfg.InstrumentID)
		}
		p.preloaded(cfg)
	}
	return nil
}

// Snapshot captures both tables and the last audit sequence number.
func (p *Pipeline) Snapshot() state.Snapshot {
	return state.BuildSnapshot(p.store.Table(), p.cache.Entries(), p.seq)
}

// Restore loads recovered tables and continues audit numbering after lastSeq.
func (p *Pipeline) Restore(t *state.Tables, lastSeq uint64) {
	for _, cfg := range t.Configs() {
		if cfg != (schema.InstrumentConfig{}) {
			p.store.Commit(cfg)
		}
	}
	p.cache.Restore(t.Books())
	p.seq = lastSeq
}

// LastSeq returns the sequence number of the last audit record issued.
func (p *Pipeline) LastSeq() uint64 {
	return p.seq
}

// Driver moves words across the pipeline boundary.
type Driver interface {
	// Feed fills the input queues. It returns false once no more input
	// will arrive.
	Feed(p *Pipeline) bool
	// Drain empties the output queues.
	Drain(p *Pipeline) error
}

// Run steps the pipeline until ctx is done, the process shuts down, or the
// driver has no more input and the pipeline went idle. It also returns once
// input has ended and two steps in a row make no progress, which happens
// when the input stops partway through a host message.
func (p *Pipeline) Run(ctx context.Context, d Driver) error {
	more := true
	stalls := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sys.Shutdown():
			return nil
		default:
		}

		if more {
			more = d.Feed(p)
		}
		progressed, err := p.Step()
		if err != nil {
			return err
		}
		if err := d.Drain(p); err != nil {
			return err
		}
		if progressed {
			stalls = 0
			continue
		}
		if !more {
			if p.Idle() {
				return nil
			}
			if stalls++; stalls >= 2 {
				logs.Warnf("[PIPELINE] input ended with work pending, store=%s t2c=%s t2t=%s arbiter=%s mux=%s",
					p.store.State(), p.t2c.State(), p.t2t.State(), p.arbiter.State(), p.mux.State())
				return nil
			}
		}
		time.Sleep(idleBackoff)
	}
}
