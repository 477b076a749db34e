package pipeline

import (
	"hwstrat/internal/bus"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

// Demuxer copies each market word to every consumer. A word is only taken
// once all consumers have room for it.
type Demuxer struct {
	in      *bus.Queue[schema.MarketEvent]
	outs    []*bus.Queue[schema.MarketEvent]
	metrics *obs.Metrics
}

func NewDemuxer(in *bus.Queue[schema.MarketEvent], metrics *obs.Metrics, outs ...*bus.Queue[schema.MarketEvent]) *Demuxer {
	return &Demuxer{in: in, outs: outs, metrics: metrics}
}

func (d *Demuxer) Step() bool {
	if d.in.Empty() {
		return false
	}
	for _, out := range d.outs {
		if out.Full() {
			d.metrics.IncBackpressure(obs.StageDemux)
			return false
		}
	}
	ev, _ := d.in.TryPop()
	for _, out := range d.outs {
		_ = out.TryPush(ev)
	}
	return true
}
