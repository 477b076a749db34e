package codec

import (
	"hwstrat/internal/schema"
	"hwstrat/pkg/exception"
)

// Word counts of host-originated messages.
const (
	ConfigUpdateWordCount    = 3
	SoftwareTriggerWordCount = 6
)

// Word 3 layout of the instrument configuration message and its ack:
// instrument_id 127..96, bid collection 95..80, cancel collection 79..64,
// ask collection 63..48, enabled 47..40.
func packConfigWord3(cfg schema.InstrumentConfig) schema.Uint128 {
	var enabled uint64
	if cfg.Enabled {
		enabled = 1
	}
	return schema.Uint128{
		Hi: uint64(cfg.InstrumentID)<<32 |
			uint64(cfg.TickToTradeBidCollectionID)<<16 |
			uint64(cfg.TickToCancelCollectionID),
		Lo: uint64(cfg.TickToTradeAskCollectionID)<<48 | enabled<<40,
	}
}

func unpackConfigWord3(cfg *schema.InstrumentConfig, d schema.Uint128) {
	cfg.InstrumentID = uint32(d.Hi >> 32)
	cfg.TickToTradeBidCollectionID = uint16(d.Hi >> 16)
	cfg.TickToCancelCollectionID = uint16(d.Hi)
	cfg.TickToTradeAskCollectionID = uint16(d.Lo >> 48)
	cfg.Enabled = uint8(d.Lo>>40) != 0
}

func configWord(header uint64, cfg schema.InstrumentConfig, index int) (schema.DMAWord, error) {
	switch index {
	case 1:
		return schema.DMAWord{Data: schema.Uint128{Hi: header, Lo: uint64(cfg.TickToCancelThreshold)}}, nil
	case 2:
		return schema.DMAWord{Data: schema.Uint128{Hi: uint64(cfg.TickToTradeBidPrice), Lo: uint64(cfg.TickToTradeAskPrice)}}, nil
	case 3:
		return schema.DMAWord{Data: packConfigWord3(cfg), Last: true}, nil
	default:
		return schema.DMAWord{}, exception.ErrInvalidWordIndex
	}
}

func readConfigWord(cfg *schema.InstrumentConfig, index int, w schema.DMAWord) error {
	switch index {
	case 1:
		cfg.TickToCancelThreshold = schema.Price(w.Data.Lo)
	case 2:
		cfg.TickToTradeBidPrice = schema.Price(w.Data.Hi)
		cfg.TickToTradeAskPrice = schema.Price(w.Data.Lo)
	case 3:
		unpackConfigWord3(cfg, w.Data)
	default:
		return exception.ErrInvalidWordIndex
	}
	return nil
}

// ConfigUpdateWord encodes word index (1-based) of an instrument
// configuration message.
func ConfigUpdateWord(msg schema.ConfigUpdate, index int) (schema.DMAWord, error) {
	return configWord(EncodeHostHeader(msg.Header), msg.Config, index)
}

// ReadConfigUpdateWord folds word index (1-based) into msg.
func ReadConfigUpdateWord(msg *schema.ConfigUpdate, index int, w schema.DMAWord) error {
	if index == 1 {
		msg.Header = HostHeaderOf(w)
	}
	return readConfigWord(&msg.Config, index, w)
}

// NewConfigUpdate builds the host header for an instrument configuration.
func NewConfigUpdate(cfg schema.InstrumentConfig, ackRequest bool) schema.ConfigUpdate {
	return schema.ConfigUpdate{
		Header: schema.HostHeader{
			Version:    schema.HeaderVersion,
			Dest:       schema.ModuleInstrumentConfiguration,
			MsgType:    schema.MsgTypeUpdateInstrumentData,
			AckRequest: ackRequest,
			Length:     schema.ConfigMessageLength,
		},
		Config: cfg,
	}
}

// NewConfigAck builds the acknowledgement sent once cfg is committed.
func NewConfigAck(cfg schema.InstrumentConfig) schema.Notification {
	return schema.Notification{
		Kind: schema.NotificationConfigAck,
		Header: schema.NotificationHeader{
			Version: schema.HeaderVersion,
			Source:  schema.ModuleInstrumentConfiguration,
			MsgType: schema.MsgTypeUpdateInstrumentData,
			Length:  schema.ConfigMessageLength,
		},
		ConfigAck: cfg,
	}
}

// SoftwareTriggerWord encodes word index (1-based) of a software trigger
// message. Argument byte i sits at bits 127-8i..120-8i of its word.
func SoftwareTriggerWord(msg schema.SoftwareTrigger, index int) (schema.DMAWord, error) {
	switch {
	case index == 1:
		return schema.DMAWord{Data: schema.Uint128{
			Hi: EncodeHostHeader(msg.Header),
			Lo: uint64(msg.CollectionID)<<48 | uint64(msg.ArgBitmap)<<40,
		}}, nil
	case index >= 2 && index <= SoftwareTriggerWordCount:
		return schema.DMAWord{Data: msg.Args[index-2], Last: index == SoftwareTriggerWordCount}, nil
	default:
		return schema.DMAWord{}, exception.ErrInvalidWordIndex
	}
}

// ReadSoftwareTriggerWord folds word index (1-based) into msg.
func ReadSoftwareTriggerWord(msg *schema.SoftwareTrigger, index int, w schema.DMAWord) error {
	switch {
	case index == 1:
		msg.Header = HostHeaderOf(w)
		msg.CollectionID = uint16(w.Data.Lo >> 48)
		msg.ArgBitmap = uint8(w.Data.Lo >> 40)
	case index >= 2 && index <= SoftwareTriggerWordCount:
		msg.Args[index-2] = w.Data
	default:
		return exception.ErrInvalidWordIndex
	}
	return nil
}

// NewSoftwareTrigger builds a software trigger message from byte arguments,
// using the same binding rules as NewTriggerCommand.
func NewSoftwareTrigger(collectionID uint16, args ...[]byte) (schema.SoftwareTrigger, error) {
	cmd, err := NewTriggerCommand(collectionID, args...)
	if err != nil {
		return schema.SoftwareTrigger{}, err
	}
	return schema.SoftwareTrigger{
		Header: schema.HostHeader{
			Version: schema.HeaderVersion,
			Dest:    schema.ModuleSoftwareTrigger,
			Length:  schema.SoftwareTriggerMessageLength,
		},
		CollectionID: cmd.CollectionID,
		ArgBitmap:    cmd.ValidMask,
		Args:         cmd.Args,
	}, nil
}
