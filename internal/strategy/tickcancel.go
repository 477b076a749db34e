package strategy

import (
	"hwstrat/internal/codec"
	"hwstrat/internal/schema"
)

// Tick-to-cancel trigger tags.
const (
	TickToCancelBidTag uint64 = 0x1ee1312cafedeca
	TickToCancelAskTag uint64 = 0x1ee1314cafedeca

	tickToCancelKind uint8 = 1
)

// TickToCancel fires the cancel collection when a trade prints at least
// threshold away from the top of book.
type TickToCancel struct{}

func (TickToCancel) Module() schema.ModuleID { return schema.ModuleTickToCancel }
func (TickToCancel) Name() string            { return "TICK2CANCEL" }

func (TickToCancel) Decide(trade Trade, cfg schema.InstrumentConfig, book schema.BookEntry) (Outcome, bool) {
	thr := cfg.TickToCancelThreshold
	if !cfg.Enabled || thr == 0 {
		return Outcome{}, false
	}

	var (
		isBid bool
		top   schema.Price
		tag   uint64
	)
	switch {
	case book.BidPresent && atOrBelow(trade.Price, book.BidPrice, thr):
		isBid, top, tag = true, book.BidPrice, TickToCancelBidTag
	case book.AskPresent && atOrAbove(trade.Price, book.AskPrice, thr):
		isBid, top, tag = false, book.AskPrice, TickToCancelAskTag
	default:
		return Outcome{}, false
	}

	var branch uint8
	if !isBid {
		branch = 1
	}
	return Outcome{
		Trigger: tradeCommand(cfg.TickToCancelCollectionID, trade.Timestamp, tag, tickToCancelKind, branch),
		Notification: codec.NewTickToCancelNotification(schema.TickToCancelReport{
			TradeSummaryPrice: trade.Price,
			BookTopLevelPrice: top,
			Threshold:         thr,
			InstrumentID:      trade.InstrumentID,
			SentCollectionID:  cfg.TickToCancelCollectionID,
			IsBid:             isBid,
		}),
		IsBid:          isBid,
		ReferencePrice: top,
	}, true
}
