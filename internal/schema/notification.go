package schema

// ModuleID identifies a DMA endpoint. It travels in the 4-bit dest/source
// field of the host message header.
type ModuleID uint8

const (
	ModuleInstrumentConfiguration ModuleID = 8
	ModuleSoftwareTrigger         ModuleID = 9
	ModuleTickToCancel            ModuleID = 10
	ModuleTickToTrade             ModuleID = 11
	ModuleTcpConsumer             ModuleID = 12
)

func (m ModuleID) String() string {
	switch m {
	case ModuleInstrumentConfiguration:
		return "instrument_configuration"
	case ModuleSoftwareTrigger:
		return "software_trigger"
	case ModuleTickToCancel:
		return "tick_to_cancel"
	case ModuleTickToTrade:
		return "tick_to_trade"
	case ModuleTcpConsumer:
		return "tcp_consumer"
	default:
		return "reserved"
	}
}

// HeaderVersion is the only supported message format version.
const HeaderVersion uint8 = 1

// Message types, defined per module.
const (
	MsgTypeUpdateInstrumentData uint8 = 1

	MsgTypeCancelledOnAskSide uint8 = 1
	MsgTypeCancelledOnBidSide uint8 = 2

	MsgTypeTriggeredOnAsk uint8 = 1
	MsgTypeTriggeredOnBid uint8 = 2

	MsgTypeTcpSessionReport uint8 = 0
)

// Encoded lengths in bytes, as carried by the header length field.
const (
	ConfigMessageLength          uint16 = 0x0030
	SoftwareTriggerMessageLength uint16 = 0x0060
	TickToCancelMessageLength    uint16 = 0x0030
	TickToTradeMessageLength     uint16 = 0x0020
	TcpConsumerMessageLength     uint16 = 0x0010
)

// HostHeader is the header of a host to pipeline message.
type HostHeader struct {
	Version    uint8
	Dest       ModuleID
	MsgType    uint8
	AckRequest bool
	Timestamp  uint32
	Length     uint16
}

// NotificationHeader is the header of a pipeline to host message.
type NotificationHeader struct {
	Version   uint8
	Source    ModuleID
	MsgType   uint8
	Error     bool
	Timestamp uint32
	Length    uint16
}

// SoftwareTrigger is a host request to fire a collection directly.
type SoftwareTrigger struct {
	Header       HostHeader
	CollectionID uint16
	ArgBitmap    uint8
	Args         [TriggerArgCount]Uint128
}

// ConfigUpdate is a host request to overwrite one instrument configuration.
type ConfigUpdate struct {
	Header HostHeader
	Config InstrumentConfig
}

// NotificationKind tags the payload carried by a Notification.
type NotificationKind uint8

const (
	NotificationUnknown NotificationKind = iota
	NotificationConfigAck
	NotificationTickToCancel
	NotificationTickToTrade
	NotificationTcpConsumer
)

func (k NotificationKind) String() string {
	switch k {
	case NotificationConfigAck:
		return "config_ack"
	case NotificationTickToCancel:
		return "tick_to_cancel"
	case NotificationTickToTrade:
		return "tick_to_trade"
	case NotificationTcpConsumer:
		return "tcp_consumer"
	default:
		return "unknown"
	}
}

// TickToCancelReport describes a fired tick-to-cancel decision.
type TickToCancelReport struct {
	TradeSummaryPrice Price
	BookTopLevelPrice Price
	Threshold         Price
	InstrumentID      uint32
	SentCollectionID  uint16
	IsBid             bool
}

// TickToTradeReport describes a fired tick-to-trade decision.
type TickToTradeReport struct {
	TradeSummaryPrice Price
	ThresholdPrice    Price
	InstrumentID      uint32
	SentCollectionID  uint16
	IsBid             bool
}

// TcpSessionReport carries the final counters of one TCP packet.
type TcpSessionReport struct {
	Words   uint32
	Bytes   uint32
	Keep    uint32
	User    uint8
	Session uint16
}

// Notification is a host-bound message. Only the payload matching Kind is set.
type Notification struct {
	Kind         NotificationKind
	Header       NotificationHeader
	ConfigAck    InstrumentConfig
	TickToCancel TickToCancelReport
	TickToTrade  TickToTradeReport
	TcpConsumer  TcpSessionReport
}
