package codec

import (
	"encoding/binary"

	"hwstrat/internal/schema"
)

const (
	TriggerPayloadSize    = 84
	ConfigPayloadSize     = 40
	BookUpdatePayloadSize = 16
	DecisionPayloadSize   = 40
)

func putBool(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// EncodeTriggerCommand serializes a trigger command into a fixed-size payload.
func EncodeTriggerCommand(dst []byte, cmd schema.TriggerCommand) []byte {
	dst = sized(dst, TriggerPayloadSize)
	binary.LittleEndian.PutUint16(dst[0:2], cmd.CollectionID)
	dst[2] = cmd.ValidMask
	dst[3] = 0
	for i, arg := range cmd.Args {
		off := 4 + i*16
		binary.LittleEndian.PutUint64(dst[off:off+8], arg.Hi)
		binary.LittleEndian.PutUint64(dst[off+8:off+16], arg.Lo)
	}
	return dst
}

// DecodeTriggerCommand parses a fixed-size trigger command payload.
func DecodeTriggerCommand(src []byte) (schema.TriggerCommand, bool) {
	if len(src) < TriggerPayloadSize {
		return schema.TriggerCommand{}, false
	}
	cmd := schema.TriggerCommand{
		CollectionID: binary.LittleEndian.Uint16(src[0:2]),
		ValidMask:    src[2],
	}
	for i := range cmd.Args {
		off := 4 + i*16
		cmd.Args[i] = schema.Uint128{
			Hi: binary.LittleEndian.Uint64(src[off : off+8]),
			Lo: binary.LittleEndian.Uint64(src[off+8 : off+16]),
		}
	}
	return cmd, true
}

// EncodeInstrumentConfig serializes an instrument configuration.
func EncodeInstrumentConfig(dst []byte, cfg schema.InstrumentConfig) []byte {
	dst = sized(dst, ConfigPayloadSize)
	binary.LittleEndian.PutUint32(dst[0:4], cfg.InstrumentID)
	dst[4] = putBool(cfg.Enabled)
	dst[5], dst[6], dst[7] = 0, 0, 0
	binary.LittleEndian.PutUint64(dst[8:16], uint64(cfg.TickToCancelThreshold))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(cfg.TickToTradeBidPrice))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(cfg.TickToTradeAskPrice))
	binary.LittleEndian.PutUint16(dst[32:34], cfg.TickToCancelCollectionID)
	binary.LittleEndian.PutUint16(dst[34:36], cfg.TickToTradeBidCollectionID)
	binary.LittleEndian.PutUint16(dst[36:38], cfg.TickToTradeAskCollectionID)
	dst[38], dst[39] = 0, 0
	return dst
}

// DecodeInstrumentConfig parses an instrument configuration payload.
func DecodeInstrumentConfig(src []byte) (schema.InstrumentConfig, bool) {
	if len(src) < ConfigPayloadSize {
		return schema.InstrumentConfig{}, false
	}
	return schema.InstrumentConfig{
		InstrumentID:               binary.LittleEndian.Uint32(src[0:4]),
		Enabled:                    src[4] != 0,
		TickToCancelThreshold:      schema.Price(int64(binary.LittleEndian.Uint64(src[8:16]))),
		TickToTradeBidPrice:        schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		TickToTradeAskPrice:        schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		TickToCancelCollectionID:   binary.LittleEndian.Uint16(src[32:34]),
		TickToTradeBidCollectionID: binary.LittleEndian.Uint16(src[34:36]),
		TickToTradeAskCollectionID: binary.LittleEndian.Uint16(src[36:38]),
	}, true
}

// EncodeBookUpdate serializes a top-of-book write.
func EncodeBookUpdate(dst []byte, u schema.BookUpdate) []byte {
	dst = sized(dst, BookUpdatePayloadSize)
	binary.LittleEndian.PutUint32(dst[0:4], u.InstrumentID)
	dst[4] = byte(u.Side)
	dst[5] = u.UncrossDepth
	dst[6], dst[7] = 0, 0
	binary.LittleEndian.PutUint64(dst[8:16], uint64(u.Price))
	return dst
}

// DecodeBookUpdate parses a top-of-book write payload.
func DecodeBookUpdate(src []byte) (schema.BookUpdate, bool) {
	if len(src) < BookUpdatePayloadSize {
		return schema.BookUpdate{}, false
	}
	return schema.BookUpdate{
		InstrumentID: binary.LittleEndian.Uint32(src[0:4]),
		Side:         schema.Side(src[4]),
		UncrossDepth: src[5],
		Price:        schema.Price(int64(binary.LittleEndian.Uint64(src[8:16]))),
	}, true
}

// EncodeDecision serializes a strategy decision.
func EncodeDecision(dst []byte, d schema.Decision) []byte {
	dst = sized(dst, DecisionPayloadSize)
	dst[0] = byte(d.Engine)
	dst[1] = putBool(d.Fired)
	dst[2] = putBool(d.IsBid)
	dst[3] = 0
	binary.LittleEndian.PutUint32(dst[4:8], d.InstrumentID)
	binary.LittleEndian.PutUint16(dst[8:10], d.CollectionID)
	dst[10], dst[11] = 0, 0
	binary.LittleEndian.PutUint32(dst[12:16], d.Timestamp)
	binary.LittleEndian.PutUint64(dst[16:24], d.SequenceNumber)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(d.TradePrice))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(d.ReferencePrice))
	return dst
}

// DecodeDecision parses a strategy decision payload.
func DecodeDecision(src []byte) (schema.Decision, bool) {
	if len(src) < DecisionPayloadSize {
		return schema.Decision{}, false
	}
	return schema.Decision{
		Engine:         schema.ModuleID(src[0]),
		Fired:          src[1] != 0,
		IsBid:          src[2] != 0,
		InstrumentID:   binary.LittleEndian.Uint32(src[4:8]),
		CollectionID:   binary.LittleEndian.Uint16(src[8:10]),
		Timestamp:      binary.LittleEndian.Uint32(src[12:16]),
		SequenceNumber: binary.LittleEndian.Uint64(src[16:24]),
		TradePrice:     schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		ReferencePrice: schema.Price(int64(binary.LittleEndian.Uint64(src[32:40]))),
	}, true
}

// EncodeNotificationPayload serializes a notification as its DMA word images.
func EncodeNotificationPayload(dst []byte, n schema.Notification) ([]byte, error) {
	words, err := NotificationWords(n)
	if err != nil {
		return nil, err
	}
	return AppendWords(dst[:0], words), nil
}

// DecodeNotificationPayload parses a notification payload.
func DecodeNotificationPayload(src []byte) (schema.Notification, error) {
	words, err := SplitWords(src)
	if err != nil {
		return schema.Notification{}, err
	}
	return DecodeNotification(words)
}

func sized(dst []byte, n int) []byte {
	if cap(dst) < n {
		return make([]byte, n)
	}
	return dst[:n]
}
