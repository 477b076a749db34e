package book

import (
	"github.com/yanun0323/logs"

	"hwstrat/internal/bus"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

// Updater turns level 0 BOOK_UPDATE events into cache writes. A logical
// event may span several bus words; the write is emitted on the word
// carrying end_of_extra.
type Updater struct {
	in      *bus.Queue[schema.MarketEvent]
	out     *bus.Queue[schema.BookUpdate]
	metrics *obs.Metrics

	endOfExtra   bool
	opcode       schema.Opcode
	pending      schema.BookUpdate
	pendingValid bool
}

func NewUpdater(in *bus.Queue[schema.MarketEvent], out *bus.Queue[schema.BookUpdate], metrics *obs.Metrics) *Updater {
	return &Updater{in: in, out: out, metrics: metrics, endOfExtra: true}
}

// Step consumes at most one bus word.
func (u *Updater) Step() bool {
	if u.in.Empty() {
		return false
	}
	if u.out.Full() {
		u.metrics.IncBackpressure(obs.StageBookUpdater)
		return false
	}
	ev, _ := u.in.TryPop()

	if u.endOfExtra {
		u.opcode = ev.Opcode
		u.pendingValid = false
		if ev.Opcode == schema.OpcodeBookUpdate && ev.Data2&0xff == 0 {
			u.pending = schema.BookUpdate{
				InstrumentID: ev.InstrumentID,
				Side:         ev.Side,
				Price:        ev.Price,
			}
			u.pendingValid = true
			if ev.EndOfExtra {
				u.emit(ev.Timestamp)
			}
		}
	} else if u.opcode == schema.OpcodeBookUpdate && u.pendingValid {
		u.pending.UncrossDepth = uint8(ev.OrderID >> 40)
		if ev.EndOfExtra {
			u.emit(ev.Timestamp)
		}
	}
	u.endOfExtra = ev.EndOfExtra
	return true
}

func (u *Updater) emit(ts uint32) {
	logs.Infof("[BOOK] [nxbus timestamp %x] update instrument=%d side=%d price=%d uncross=%d",
		ts, u.pending.InstrumentID, u.pending.Side, u.pending.Price, u.pending.UncrossDepth)
	_ = u.out.TryPush(u.pending)
	u.pendingValid = false
}
