package codec

import (
	"hwstrat/internal/schema"
	"hwstrat/pkg/exception"
)

// NotificationWordCount returns the number of words a notification from
// source occupies, or 0 for an unknown source. The tcp consumer header
// length field understates its size, so counts derive from the source.
func NotificationWordCount(source schema.ModuleID) int {
	switch source {
	case schema.ModuleInstrumentConfiguration, schema.ModuleTickToCancel:
		return 3
	case schema.ModuleTickToTrade, schema.ModuleTcpConsumer:
		return 2
	default:
		return 0
	}
}

// NewTickToCancelNotification builds a tick-to-cancel report notification.
func NewTickToCancelNotification(r schema.TickToCancelReport) schema.Notification {
	msgType := schema.MsgTypeCancelledOnAskSide
	if r.IsBid {
		msgType = schema.MsgTypeCancelledOnBidSide
	}
	return schema.Notification{
		Kind: schema.NotificationTickToCancel,
		Header: schema.NotificationHeader{
			Version: schema.HeaderVersion,
			Source:  schema.ModuleTickToCancel,
			MsgType: msgType,
			Length:  schema.TickToCancelMessageLength,
		},
		TickToCancel: r,
	}
}

// NewTickToTradeNotification builds a tick-to-trade report notification.
func NewTickToTradeNotification(r schema.TickToTradeReport) schema.Notification {
	msgType := schema.MsgTypeTriggeredOnAsk
	if r.IsBid {
		msgType = schema.MsgTypeTriggeredOnBid
	}
	return schema.Notification{
		Kind: schema.NotificationTickToTrade,
		Header: schema.NotificationHeader{
			Version: schema.HeaderVersion,
			Source:  schema.ModuleTickToTrade,
			MsgType: msgType,
			Length:  schema.TickToTradeMessageLength,
		},
		TickToTrade: r,
	}
}

// NewTcpSessionNotification builds a tcp consumer session report.
func NewTcpSessionNotification(r schema.TcpSessionReport) schema.Notification {
	return schema.Notification{
		Kind: schema.NotificationTcpConsumer,
		Header: schema.NotificationHeader{
			Version: schema.HeaderVersion,
			Source:  schema.ModuleTcpConsumer,
			MsgType: schema.MsgTypeTcpSessionReport,
			Length:  schema.TcpConsumerMessageLength,
		},
		TcpConsumer: r,
	}
}

func boolByte(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// NotificationWord encodes word index (1-based) of n.
func NotificationWord(n schema.Notification, index int) (schema.DMAWord, error) {
	hdr := EncodeNotificationHeader(n.Header)
	switch n.Kind {
	case schema.NotificationConfigAck:
		return configWord(hdr, n.ConfigAck, index)
	case schema.NotificationTickToCancel:
		r := n.TickToCancel
		switch index {
		case 1:
			return schema.DMAWord{Data: schema.Uint128{Hi: hdr, Lo: uint64(r.TradeSummaryPrice)}}, nil
		case 2:
			return schema.DMAWord{Data: schema.Uint128{Hi: uint64(r.BookTopLevelPrice), Lo: uint64(r.Threshold)}}, nil
		case 3:
			return schema.DMAWord{Data: schema.Uint128{
				Hi: uint64(r.InstrumentID)<<32 | uint64(r.SentCollectionID)<<16 | boolByte(r.IsBid)<<8,
			}, Last: true}, nil
		}
	case schema.NotificationTickToTrade:
		r := n.TickToTrade
		switch index {
		case 1:
			return schema.DMAWord{Data: schema.Uint128{Hi: hdr, Lo: uint64(r.TradeSummaryPrice)}}, nil
		case 2:
			return schema.DMAWord{Data: schema.Uint128{
				Hi: uint64(r.ThresholdPrice),
				Lo: uint64(r.InstrumentID)<<32 | uint64(r.SentCollectionID)<<16 | boolByte(r.IsBid)<<8,
			}, Last: true}, nil
		}
	case schema.NotificationTcpConsumer:
		r := n.TcpConsumer
		switch index {
		case 1:
			return schema.DMAWord{Data: schema.Uint128{Hi: hdr, Lo: uint64(r.Words)<<32 | uint64(r.Bytes)}}, nil
		case 2:
			return schema.DMAWord{Data: schema.Uint128{
				Hi: uint64(r.Keep&0x3ffffff)<<38 | uint64(r.User&0x3f)<<32 | uint64(r.Session)<<16,
			}, Last: true}, nil
		}
	default:
		return schema.DMAWord{}, exception.ErrUnknownSource
	}
	return schema.DMAWord{}, exception.ErrInvalidWordIndex
}

// NotificationWords encodes every word of n.
func NotificationWords(n schema.Notification) ([]schema.DMAWord, error) {
	count := NotificationWordCount(n.Header.Source)
	if count == 0 {
		return nil, exception.ErrUnknownSource
	}
	words := make([]schema.DMAWord, 0, count)
	for i := 1; i <= count; i++ {
		w, err := NotificationWord(n, i)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, nil
}

// ReadNotificationWord folds word index (1-based) into n. Word 1 sets the
// header and the kind.
func ReadNotificationWord(n *schema.Notification, index int, w schema.DMAWord) error {
	if index == 1 {
		n.Header = DecodeNotificationHeader(w.Data.Hi)
		n.Kind = kindOf(n.Header.Source)
	}
	switch n.Kind {
	case schema.NotificationConfigAck:
		return readConfigWord(&n.ConfigAck, index, w)
	case schema.NotificationTickToCancel:
		r := &n.TickToCancel
		switch index {
		case 1:
			r.TradeSummaryPrice = schema.Price(w.Data.Lo)
		case 2:
			r.BookTopLevelPrice = schema.Price(w.Data.Hi)
			r.Threshold = schema.Price(w.Data.Lo)
		case 3:
			r.InstrumentID = uint32(w.Data.Hi >> 32)
			r.SentCollectionID = uint16(w.Data.Hi >> 16)
			r.IsBid = uint8(w.Data.Hi>>8) != 0
		default:
			return exception.ErrInvalidWordIndex
		}
	case schema.NotificationTickToTrade:
		r := &n.TickToTrade
		switch index {
		case 1:
			r.TradeSummaryPrice = schema.Price(w.Data.Lo)
		case 2:
			r.ThresholdPrice = schema.Price(w.Data.Hi)
			r.InstrumentID = uint32(w.Data.Lo >> 32)
			r.SentCollectionID = uint16(w.Data.Lo >> 16)
			r.IsBid = uint8(w.Data.Lo>>8) != 0
		default:
			return exception.ErrInvalidWordIndex
		}
	case schema.NotificationTcpConsumer:
		r := &n.TcpConsumer
		switch index {
		case 1:
			r.Words = uint32(w.Data.Lo >> 32)
			r.Bytes = uint32(w.Data.Lo)
		case 2:
			r.Keep = uint32(w.Data.Hi>>38) & 0x3ffffff
			r.User = uint8(w.Data.Hi>>32) & 0x3f
			r.Session = uint16(w.Data.Hi >> 16)
		default:
			return exception.ErrInvalidWordIndex
		}
	default:
		return exception.ErrUnknownSource
	}
	return nil
}

func kindOf(source schema.ModuleID) schema.NotificationKind {
	switch source {
	case schema.ModuleInstrumentConfiguration:
		return schema.NotificationConfigAck
	case schema.ModuleTickToCancel:
		return schema.NotificationTickToCancel
	case schema.ModuleTickToTrade:
		return schema.NotificationTickToTrade
	case schema.ModuleTcpConsumer:
		return schema.NotificationTcpConsumer
	default:
		return schema.NotificationUnknown
	}
}

// DecodeNotification reassembles a complete notification. The final word
// must carry last and no earlier word may.
func DecodeNotification(words []schema.DMAWord) (schema.Notification, error) {
	var n schema.Notification
	if len(words) == 0 {
		return n, exception.ErrTruncatedMessage
	}
	hdr := DecodeNotificationHeader(words[0].Data.Hi)
	if hdr.Version != schema.HeaderVersion {
		return n, exception.ErrCorruptedHeader
	}
	count := NotificationWordCount(hdr.Source)
	if count == 0 {
		return n, exception.ErrUnknownSource
	}
	if len(words) < count {
		return n, exception.ErrTruncatedMessage
	}
	for i := 0; i < count; i++ {
		if words[i].Last != (i == count-1) {
			return n, exception.ErrNotTerminalWord
		}
		if err := ReadNotificationWord(&n, i+1, words[i]); err != nil {
			return n, err
		}
	}
	return n, nil
}
