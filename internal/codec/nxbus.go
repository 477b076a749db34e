package codec

import "hwstrat/internal/schema"

// NxBusWidth is the width of the nxBus data vector.
const NxBusWidth = 550

// nxBus field table, bit offset and width.
const (
	nxData2Off, nxData2Len           = 0, 64
	nxData1Off, nxData1Len           = 64, 32
	nxData0Off, nxData0Len           = 96, 64
	nxInstrIDOff, nxInstrIDLen       = 160, 24
	nxInstrBinOff, nxInstrBinLen     = 184, 32
	nxInstrASCIIOff                  = 216
	nxTimestampOff, nxTimestampLen   = 344, 32
	nxPriceOff, nxPriceLen           = 376, 64
	nxQtyOff, nxQtyLen               = 440, 32
	nxBuyNSellOff                    = 472
	nxOrderIDOff, nxOrderIDLen       = 473, 64
	nxOpcodeOff, nxOpcodeLen         = 537, 8
	nxMarketIntIDOff, nxMarketIntLen = 545, 4
	nxEndOfExtraOff                  = 549
)

// BusWord is one nxBus beat: the 550-bit data vector plus sideband signals.
type BusWord struct {
	Data BitVector
	User uint16
	Last bool
}

// DecodeMarketEvent extracts every field of a bus word. Unknown opcodes are
// decoded like any other; only a data vector of the wrong width fails.
func DecodeMarketEvent(w BusWord) (schema.MarketEvent, bool) {
	d := w.Data
	if d.Width() != NxBusWidth {
		return schema.MarketEvent{}, false
	}
	ev := schema.MarketEvent{
		Data2:            d.Uint(nxData2Off, nxData2Len),
		Data1:            uint32(d.Uint(nxData1Off, nxData1Len)),
		Data0:            d.Uint(nxData0Off, nxData0Len),
		InstrumentID:     uint32(d.Uint(nxInstrIDOff, nxInstrIDLen)),
		InstrBin:         uint32(d.Uint(nxInstrBinOff, nxInstrBinLen)),
		Timestamp:        uint32(d.Uint(nxTimestampOff, nxTimestampLen)),
		Price:            schema.Price(d.Uint(nxPriceOff, nxPriceLen)),
		Qty:              uint32(d.Uint(nxQtyOff, nxQtyLen)),
		Side:             schema.Side(d.Uint(nxBuyNSellOff, 1)),
		OrderID:          d.Uint(nxOrderIDOff, nxOrderIDLen),
		Opcode:           schema.Opcode(d.Uint(nxOpcodeOff, nxOpcodeLen)),
		MarketInternalID: uint8(d.Uint(nxMarketIntIDOff, nxMarketIntLen)),
		EndOfExtra:       d.Bit(nxEndOfExtraOff),
		User:             w.User,
		Last:             w.Last,
	}
	ascii := d.Uint128(nxInstrASCIIOff)
	for i := range ev.InstrASCII {
		ev.InstrASCII[i] = ascii.Byte(i)
	}
	return ev, true
}

// EncodeMarketEvent packs an event into a bus word. SequenceNumber is not
// carried on the bus and is dropped.
func EncodeMarketEvent(ev schema.MarketEvent) BusWord {
	d := NewBitVector(NxBusWidth)
	d.SetUint(nxData2Off, nxData2Len, ev.Data2)
	d.SetUint(nxData1Off, nxData1Len, uint64(ev.Data1))
	d.SetUint(nxData0Off, nxData0Len, ev.Data0)
	d.SetUint(nxInstrIDOff, nxInstrIDLen, uint64(ev.InstrumentID))
	d.SetUint(nxInstrBinOff, nxInstrBinLen, uint64(ev.InstrBin))
	var ascii schema.Uint128
	for i, b := range ev.InstrASCII {
		if i < 8 {
			ascii.Lo |= uint64(b) << (8 * i)
		} else {
			ascii.Hi |= uint64(b) << (8 * (i - 8))
		}
	}
	d.SetUint128(nxInstrASCIIOff, ascii)
	d.SetUint(nxTimestampOff, nxTimestampLen, uint64(ev.Timestamp))
	d.SetUint(nxPriceOff, nxPriceLen, uint64(ev.Price))
	d.SetUint(nxQtyOff, nxQtyLen, uint64(ev.Qty))
	d.SetUint(nxBuyNSellOff, 1, uint64(ev.Side))
	d.SetUint(nxOrderIDOff, nxOrderIDLen, ev.OrderID)
	d.SetUint(nxOpcodeOff, nxOpcodeLen, uint64(ev.Opcode))
	d.SetUint(nxMarketIntIDOff, nxMarketIntLen, uint64(ev.MarketInternalID))
	d.SetBit(nxEndOfExtraOff, ev.EndOfExtra)
	return BusWord{Data: d, User: ev.User, Last: ev.Last}
}
