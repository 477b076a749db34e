package schema

import "fmt"

// Price is a fixed-point integer with PricePrecision decimal places.
type Price int64

// PricePrecision is the number of decimal places carried by bus prices.
const PricePrecision = 10

// Instrument id sentinels carried on the bus.
const (
	InstrumentNotFound    uint32 = 0x00000000
	InstrumentCmdNotInstr uint32 = 0xFFFFFFFF
	InstrumentNotSet      uint32 = 0xFFFFFFFE
)

// Opcode identifies the nxBus command carried by a word.
type Opcode uint8

const (
	OpcodeStatusInstr  Opcode = 0x11
	OpcodeStatusGroup  Opcode = 0x12
	OpcodeStatusMarket Opcode = 0x13

	OpcodeOrderAdd           Opcode = 0x21
	OpcodeOrderExec          Opcode = 0x22
	OpcodeOrderExecPrice     Opcode = 0x23
	OpcodeOrderExecPriceQty  Opcode = 0x24
	OpcodeOrderReduce        Opcode = 0x25
	OpcodeOrderModify        Opcode = 0x26
	OpcodeOrderDel           Opcode = 0x27
	OpcodeOrderReplace       Opcode = 0x28
	OpcodeOrderModifyPrice   Opcode = 0x29
	OpcodeOrderModifyQty     Opcode = 0x2A
	OpcodeManagedOrderAdd    Opcode = 0x31
	OpcodeManagedOrderExec   Opcode = 0x32
	OpcodeManagedExecPrice   Opcode = 0x33
	OpcodeManagedExecPriceQt Opcode = 0x34
	OpcodeManagedOrderReduce Opcode = 0x35
	OpcodeManagedOrderModify Opcode = 0x36
	OpcodeManagedOrderDel    Opcode = 0x37
	OpcodeManagedReplace     Opcode = 0x38
	OpcodeManagedModifyPrice Opcode = 0x39
	OpcodeManagedModifyQty   Opcode = 0x3A

	OpcodeLimitAdd          Opcode = 0x41
	OpcodeLimitChange       Opcode = 0x42
	OpcodeLimitDel          Opcode = 0x43
	OpcodeLimitDelSupEqual  Opcode = 0x44
	OpcodeLimitDelInfEqual  Opcode = 0x45
	OpcodePriceUpdate       Opcode = 0x51
	OpcodePriceManagedUpd   Opcode = 0x52
	OpcodePriceAddQty       Opcode = 0x53
	OpcodePriceReduceQty    Opcode = 0x54
	OpcodeTradeReport       Opcode = 0x61
	OpcodeTradeBreak        Opcode = 0x62
	OpcodeTradeCorrection   Opcode = 0x63
	OpcodeTradeSummary      Opcode = 0x64
	OpcodeTradeSummaryBreak Opcode = 0x65
	OpcodeTradeSummaryCorr  Opcode = 0x66
	OpcodeAuctionPotential  Opcode = 0x71

	OpcodeSystemInfoError       Opcode = 0x81
	OpcodeSystemInfoMissingMsg  Opcode = 0x82
	OpcodeSystemInfoLostSync    Opcode = 0x83
	OpcodeSystemInfoSync        Opcode = 0x84
	OpcodeSystemInfoSyncTimeout Opcode = 0x85
	OpcodeSystemInfoStats       Opcode = 0x86

	OpcodeMiscTime             Opcode = 0x91
	OpcodeMiscStockDescription Opcode = 0x92
	OpcodeMiscBookReset        Opcode = 0x93
	OpcodeMiscSetSeqnum        Opcode = 0x94
	OpcodeMiscInputPktInfo     Opcode = 0x95
	OpcodeMiscHeartbeat        Opcode = 0x96
	OpcodeMiscEndPkt           Opcode = 0x97
	OpcodeMiscMarketError      Opcode = 0x98

	OpcodeExtraEmpty Opcode = 0xA1
	OpcodeExtraInstr Opcode = 0xA2
	OpcodeExtraGroup Opcode = 0xA3

	OpcodeBookUpdate   Opcode = 0xC1
	OpcodeBookSnapshot Opcode = 0xC2
)

var opcodeNames = map[Opcode]string{
	OpcodeOrderAdd:             "ORDER_ADD",
	OpcodeOrderExec:            "ORDER_EXEC",
	OpcodeOrderDel:             "ORDER_DEL",
	OpcodeTradeReport:          "TRADE_REPORT",
	OpcodeTradeSummary:         "TRADE_SUMMARY",
	OpcodeTradeSummaryBreak:    "TRADE_SUMMARY_BREAK",
	OpcodeTradeSummaryCorr:     "TRADE_SUMMARY_CORRECTION",
	OpcodeMiscTime:             "MISC_TIME",
	OpcodeMiscInputPktInfo:     "MISC_INPUT_PKT_INFO",
	OpcodeMiscHeartbeat:        "MISC_HEARTBEAT",
	OpcodeMiscEndPkt:           "MISC_END_PKT",
	OpcodeExtraEmpty:           "EXTRA_EMPTY",
	OpcodeExtraInstr:           "EXTRA_INSTR",
	OpcodeExtraGroup:           "EXTRA_GROUP",
	OpcodeBookUpdate:           "BOOK_UPDATE",
	OpcodeBookSnapshot:         "BOOK_SNAPSHOT",
	OpcodeSystemInfoError:      "SYSTEM_INFO_ERROR",
	OpcodeSystemInfoMissingMsg: "SYSTEM_INFO_MISSING_MSG",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE_0x%02X", uint8(o))
}

// Side is the buy_nsell bit of a bus word.
type Side uint8

const (
	SideSell Side = 0
	SideBuy  Side = 1
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// MarketEvent is one decoded nxBus word. A logical event spans consecutive
// words until EndOfExtra is set.
type MarketEvent struct {
	Opcode           Opcode
	InstrumentID     uint32
	Price            Price
	Qty              uint32
	Timestamp        uint32
	Side             Side
	OrderID          uint64
	MarketInternalID uint8
	EndOfExtra       bool

	Data0      uint64
	Data1      uint32
	Data2      uint64
	InstrBin   uint32
	InstrASCII [16]byte

	// SequenceNumber is stamped by consumers from the last MISC_INPUT_PKT_INFO.
	SequenceNumber uint64

	User uint16
	Last bool
}
