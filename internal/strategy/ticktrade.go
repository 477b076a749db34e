package strategy

import (
	"hwstrat/internal/codec"
	"hwstrat/internal/schema"
)

// Tick-to-trade trigger tags.
const (
	TickToTradeBidTag uint64 = 0x1ee1311cafedeca
	TickToTradeAskTag uint64 = 0x1ee1313cafedeca

	tickToTradeKind uint8 = 2
)

// TickToTrade fires when an aggressor trades through the configured price.
// Reports carry is_bid=false on both branches; hosts key on msg_type.
type TickToTrade struct{}

func (TickToTrade) Module() schema.ModuleID { return schema.ModuleTickToTrade }
func (TickToTrade) Name() string            { return "TICK2TRADE" }

func (TickToTrade) Decide(trade Trade, cfg schema.InstrumentConfig, _ schema.BookEntry) (Outcome, bool) {
	if !cfg.Enabled {
		return Outcome{}, false
	}

	var (
		threshold  schema.Price
		collection uint16
		tag        uint64
		branch     uint8
		msgType    uint8
	)
	switch {
	case trade.Side == schema.SideBuy && cfg.TickToTradeBidPrice != 0 && trade.Price > cfg.TickToTradeBidPrice:
		threshold, collection = cfg.TickToTradeBidPrice, cfg.TickToTradeBidCollectionID
		tag, branch, msgType = TickToTradeBidTag, 1, schema.MsgTypeTriggeredOnBid
	case trade.Side == schema.SideSell && cfg.TickToTradeAskPrice != 0 && trade.Price < cfg.TickToTradeAskPrice:
		threshold, collection = cfg.TickToTradeAskPrice, cfg.TickToTradeAskCollectionID
		tag, branch, msgType = TickToTradeAskTag, 2, schema.MsgTypeTriggeredOnAsk
	default:
		return Outcome{}, false
	}

	n := codec.NewTickToTradeNotification(schema.TickToTradeReport{
		TradeSummaryPrice: trade.Price,
		ThresholdPrice:    threshold,
		InstrumentID:      trade.InstrumentID,
		SentCollectionID:  collection,
		IsBid:             false,
	})
	n.Header.MsgType = msgType
	return Outcome{
		Trigger:        tradeCommand(collection, trade.Timestamp, tag, tickToTradeKind, branch),
		Notification:   n,
		IsBid:          false,
		ReferencePrice: threshold,
	}, true
}
