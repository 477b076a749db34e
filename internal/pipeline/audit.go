package pipeline

import (
	stderrors "errors"

	"github.com/yanun0323/logs"

	"hwstrat/internal/arbiter"
	"hwstrat/internal/bus"
	"hwstrat/internal/codec"
	"hwstrat/internal/schema"
	"hwstrat/internal/strategy"
)

// AuditFlagPreload marks a config commit record written by Preload.
const AuditFlagPreload uint16 = 1

// portSource maps an arbiter port to the module that produced the trigger.
var portSource = [arbiter.PortCount]schema.ModuleID{
	arbiter.PortTickToCancel:    schema.ModuleTickToCancel,
	arbiter.PortTickToTrade:     schema.ModuleTickToTrade,
	arbiter.PortTcpConsumer:     schema.ModuleTcpConsumer,
	arbiter.PortSoftwareTrigger: schema.ModuleSoftwareTrigger,
}

func (p *Pipeline) committed(msg schema.ConfigUpdate) {
	p.publish(schema.EventConfigCommit, schema.ModuleInstrumentConfiguration, 0, 0,
		codec.EncodeInstrumentConfig(nil, msg.Config))
	if p.onCommit != nil {
		p.onCommit(msg.Config)
	}
}

// preloaded records a configuration loaded at startup. It is audited like
// a host commit, flagged AuditFlagPreload, and is not passed to the
// commit hook.
func (p *Pipeline) preloaded(cfg schema.InstrumentConfig) {
	p.publish(schema.EventConfigCommit, schema.ModuleInstrumentConfiguration, AuditFlagPreload, 0,
		codec.EncodeInstrumentConfig(nil, cfg))
}

func (p *Pipeline) decided(r strategy.Result) {
	p.publish(schema.EventStrategyDecision, r.Decision.Engine, 0, r.TraceID,
		codec.EncodeDecision(nil, r.Decision))
	if p.onDecision != nil {
		p.onDecision(r)
	}
}

func (p *Pipeline) auditBookUpdate(u schema.BookUpdate) {
	p.publish(schema.EventBookUpdate, 0, 0, 0, codec.EncodeBookUpdate(nil, u))
}

func (p *Pipeline) auditTrigger(port int, w codec.TriggerWord) {
	if p.audit == nil {
		return
	}
	cmd, err := codec.DecodeTrigger(w)
	if err != nil {
		logs.Errorf("[PIPELINE] undecodable trigger on port %d not audited, err: %+v", port, err)
		return
	}
	p.publish(schema.EventTrigger, portSource[port], uint16(port), 0, codec.EncodeTriggerCommand(nil, cmd))
}

func (p *Pipeline) auditNotification(n schema.Notification) {
	if p.audit == nil {
		return
	}
	payload, err := codec.EncodeNotificationPayload(nil, n)
	if err != nil {
		logs.Errorf("[PIPELINE] notification from %s not audited, err: %+v", n.Header.Source, err)
		return
	}
	p.publish(schema.EventNotification, n.Header.Source, 0, 0, payload)
}

// publish numbers and hands one record to the audit queue. Sequence numbers
// advance even when the record is dropped.
func (p *Pipeline) publish(typ schema.EventType, source schema.ModuleID, flags uint16, traceID uint64, payload []byte) {
	if p.audit == nil {
		return
	}
	p.seq++
	ts := p.now().UTC().UnixNano()
	header := schema.NewHeader(typ, source, p.seq, ts, ts)
	header.Flags = flags
	if traceID == 0 {
		traceID = p.seq
	}
	header.TraceID = traceID

	err := p.audit.TryPublish(bus.Event{Header: header, Payload: payload})
	switch {
	case err == nil:
		p.metrics.ObserveEvent(header)
	case stderrors.Is(err, bus.ErrQueueFull):
		p.metrics.IncQueueDrop()
	case stderrors.Is(err, bus.ErrQueueClosed):
		p.metrics.IncQueueClosed()
	}
}
