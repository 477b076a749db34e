package main

import (
	"os"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hwstrat/internal/codec"
	"hwstrat/internal/host"
	"hwstrat/internal/pipeline"
	"hwstrat/internal/schema"
)

// driver feeds the pipeline from hex vector files and the host link, and
// routes its outputs to the log and back to the host.
type driver struct {
	market   []schema.MarketEvent
	tcp      []schema.TcpReplyWord
	registry *schema.Registry

	endpoint *host.Endpoint
	inbound  <-chan []schema.DMAWord
	pending  []schema.DMAWord
	notes    []schema.DMAWord

	snapshots *snapshotter
}

func newDriver(opts runOptions, registry *schema.Registry) (*driver, error) {
	d := &driver{registry: registry}
	if opts.marketPath != "" {
		f, err := os.Open(opts.marketPath)
		if err != nil {
			return nil, errors.Wrap(err, "open market vectors").With("path", opts.marketPath)
		}
		defer f.Close()
		if d.market, err = codec.ParseMarketEvents(f); err != nil {
			return nil, err
		}
		logs.Infof("loaded %d market words from %s", len(d.market), opts.marketPath)
	}
	if opts.tcpPath != "" {
		f, err := os.Open(opts.tcpPath)
		if err != nil {
			return nil, errors.Wrap(err, "open tcp vectors").With("path", opts.tcpPath)
		}
		defer f.Close()
		if d.tcp, err = codec.ParseTcpWords(f); err != nil {
			return nil, err
		}
		logs.Infof("loaded %d tcp words from %s", len(d.tcp), opts.tcpPath)
	}
	return d, nil
}

func (d *driver) attach(ep *host.Endpoint) {
	d.endpoint = ep
	d.inbound = ep.Inbound()
}

// Feed keeps reporting more input while the host link is open.
func (d *driver) Feed(p *pipeline.Pipeline) bool {
	in := p.Inputs()
	for len(d.market) > 0 && !in.Market.Full() {
		_ = in.Market.TryPush(d.market[0])
		d.market = d.market[1:]
	}
	for len(d.tcp) > 0 && !in.Tcp.Full() {
		_ = in.Tcp.TryPush(d.tcp[0])
		d.tcp = d.tcp[1:]
	}

	if len(d.pending) == 0 && d.inbound != nil {
		select {
		case msg, ok := <-d.inbound:
			if !ok {
				d.inbound = nil
			} else {
				d.pending = msg
			}
		default:
		}
	}
	for len(d.pending) > 0 && !in.Host.Full() {
		_ = in.Host.TryPush(d.pending[0])
		d.pending = d.pending[1:]
	}

	return len(d.market) > 0 || len(d.tcp) > 0 || len(d.pending) > 0 || d.inbound != nil
}

func (d *driver) Drain(p *pipeline.Pipeline) error {
	out := p.Outputs()
	for {
		w, ok := out.Triggers.TryPop()
		if !ok {
			break
		}
		cmd, err := codec.DecodeTrigger(w)
		if err != nil {
			return err
		}
		logs.Infof("[TRIGGER] collection=%#x mask=%05b args=%v", cmd.CollectionID, cmd.ValidMask, cmd.Args[:cmd.ArgCount()])
	}

	for {
		w, ok := out.Notifications.TryPop()
		if !ok {
			break
		}
		d.notes = append(d.notes, w)
		if w.Last {
			d.deliver(d.notes)
			d.notes = nil
		}
	}

	d.snapshots.maybe(p)
	return nil
}

// deliver sends a notification to the host when one is attached, and logs it.
func (d *driver) deliver(words []schema.DMAWord) {
	if d.endpoint != nil && d.endpoint.Connected() {
		if err := d.endpoint.Send(words); err != nil {
			logs.Errorf("[NOTIFY] send to host failed, err: %+v", err)
		}
	}
	n, err := codec.DecodeNotification(words)
	if err != nil {
		logs.Errorf("[NOTIFY] undecodable notification, err: %+v", err)
		return
	}
	switch n.Kind {
	case schema.NotificationTickToCancel:
		r := n.TickToCancel
		logs.Infof("[NOTIFY] tick-to-cancel instrument=%s trade=%s book=%s collection=%#x",
			d.registry.Name(r.InstrumentID), d.registry.FormatPrice(r.InstrumentID, r.TradeSummaryPrice),
			d.registry.FormatPrice(r.InstrumentID, r.BookTopLevelPrice), r.SentCollectionID)
	case schema.NotificationTickToTrade:
		r := n.TickToTrade
		logs.Infof("[NOTIFY] tick-to-trade instrument=%s trade=%s threshold=%s collection=%#x",
			d.registry.Name(r.InstrumentID), d.registry.FormatPrice(r.InstrumentID, r.TradeSummaryPrice),
			d.registry.FormatPrice(r.InstrumentID, r.ThresholdPrice), r.SentCollectionID)
	case schema.NotificationConfigAck:
		logs.Infof("[NOTIFY] config ack instrument=%s", d.registry.Name(n.ConfigAck.InstrumentID))
	default:
		logs.Infof("[NOTIFY] %s %+v", n.Kind, n.TcpConsumer)
	}
}
