package codec

import (
	"bufio"
	"fmt"
	"io"

	"github.com/yanun0323/errors"

	"hwstrat/internal/schema"
	"hwstrat/pkg/exception"
	"hwstrat/pkg/scanner"
)

// ScanVectorLines calls fn for every line of r that carries a vector.
// Empty lines and lines starting with '#' are skipped. lineNo is 1-based.
func ScanVectorLines(r io.Reader, fn func(lineNo int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if scanner.IsBlankOrComment(line) {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "scan vectors")
	}
	return nil
}

// ParseHexVector reads one raw vector, most significant digit first.
// Spaces are ignored and '-' reads as 0. Digits above width must be zero.
func ParseHexVector(line []byte, width int) (BitVector, error) {
	if width <= 0 {
		return BitVector{}, exception.ErrInvalidWidth
	}
	buf := scanner.StripSpaces(append([]byte(nil), line...))
	buf = scanner.TrimHexPrefix(buf)
	if len(buf) == 0 {
		return BitVector{}, exception.ErrInvalidHexVector
	}
	v := NewBitVector(width)
	for k := 0; k < len(buf); k++ {
		d, ok := scanner.HexDigit(buf[len(buf)-1-k])
		if !ok {
			return BitVector{}, exception.ErrInvalidHexVector
		}
		off := 4 * k
		if off >= width {
			if d != 0 {
				return BitVector{}, exception.ErrInvalidHexVector
			}
			continue
		}
		n := min(4, width-off)
		if uint64(d)>>n != 0 {
			return BitVector{}, exception.ErrInvalidHexVector
		}
		v.SetUint(off, n, uint64(d))
	}
	return v, nil
}

// ParseHexVectors reads every raw vector of r.
func ParseHexVectors(r io.Reader, width int) ([]BitVector, error) {
	var out []BitVector
	err := ScanVectorLines(r, func(lineNo int, line []byte) error {
		v, err := ParseHexVector(line, width)
		if err != nil {
			return errors.Wrap(err, "parse hex vector").With("line", lineNo)
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

func hexFields(line []byte, n int) ([][]byte, error) {
	fields := scanner.Fields(line)
	if len(fields) < n {
		return nil, exception.ErrInvalidHexVector
	}
	return fields[:n], nil
}

func hexUint(tok []byte, bits int) (uint64, error) {
	v, ok := scanner.ParseHexUint(tok)
	if !ok || (bits < 64 && v>>bits != 0) {
		return 0, exception.ErrInvalidHexVector
	}
	return v, nil
}

// marketLineFields is the column order of a market event line:
// eoe mid opcode order_id buy qty price timestamp instr_ascii instr_bin instr_id data0 data1 data2.
const marketLineFields = 14

// ParseMarketLine reads one market event in column form. An optional 15th
// column sets the bus user field.
func ParseMarketLine(line []byte) (schema.MarketEvent, error) {
	var ev schema.MarketEvent
	f, err := hexFields(line, marketLineFields)
	if err != nil {
		return ev, err
	}
	var vals [marketLineFields]uint64
	widths := [marketLineFields]int{1, 4, 8, 64, 1, 32, 64, 32, 0, 32, 24, 64, 32, 64}
	for i, w := range widths {
		if w == 0 {
			continue
		}
		if vals[i], err = hexUint(f[i], w); err != nil {
			return ev, err
		}
	}
	hi, lo, ok := scanner.ParseHexUint128(f[8])
	if !ok {
		return ev, exception.ErrInvalidHexVector
	}
	ev.EndOfExtra = vals[0] == 1
	ev.Last = ev.EndOfExtra
	ev.MarketInternalID = uint8(vals[1])
	ev.Opcode = schema.Opcode(vals[2])
	ev.OrderID = vals[3]
	ev.Side = schema.Side(vals[4])
	ev.Qty = uint32(vals[5])
	ev.Price = schema.Price(vals[6])
	ev.Timestamp = uint32(vals[7])
	ascii := schema.Uint128{Hi: hi, Lo: lo}
	for i := range ev.InstrASCII {
		ev.InstrASCII[i] = ascii.Byte(i)
	}
	ev.InstrBin = uint32(vals[9])
	ev.InstrumentID = uint32(vals[10])
	ev.Data0 = vals[11]
	ev.Data1 = uint32(vals[12])
	ev.Data2 = vals[13]
	if rest := scanner.Fields(line); len(rest) > marketLineFields {
		u, err := hexUint(rest[marketLineFields], 16)
		if err != nil {
			return ev, err
		}
		ev.User = uint16(u)
	}
	return ev, nil
}

// FormatMarketLine renders ev in the column form read by ParseMarketLine.
// The user column is written only when it is set.
func FormatMarketLine(ev schema.MarketEvent) string {
	var ascii schema.Uint128
	for i, b := range ev.InstrASCII {
		if i < 8 {
			ascii.Lo |= uint64(b) << (8 * i)
		} else {
			ascii.Hi |= uint64(b) << (8 * (i - 8))
		}
	}
	eoe := 0
	if ev.EndOfExtra {
		eoe = 1
	}
	line := fmt.Sprintf("%x %x %02x %016x %x %08x %016x %08x %016x%016x %08x %06x %016x %08x %016x",
		eoe, ev.MarketInternalID, uint8(ev.Opcode), ev.OrderID, uint8(ev.Side), ev.Qty, uint64(ev.Price),
		ev.Timestamp, ascii.Hi, ascii.Lo, ev.InstrBin, ev.InstrumentID, ev.Data0, ev.Data1, ev.Data2)
	if ev.User != 0 {
		line += fmt.Sprintf(" %04x", ev.User)
	}
	return line
}

// ParseMarketEvents reads every market event line of r.
func ParseMarketEvents(r io.Reader) ([]schema.MarketEvent, error) {
	var out []schema.MarketEvent
	err := ScanVectorLines(r, func(lineNo int, line []byte) error {
		ev, err := ParseMarketLine(line)
		if err != nil {
			return errors.Wrap(err, "parse market line").With("line", lineNo)
		}
		out = append(out, ev)
		return nil
	})
	return out, err
}

// configLineFields is the column order of a configuration line:
// version dest msg_type ack reserved timestamp length threshold bid_price
// ask_price bid_collection cancel_collection ask_collection instrument_id enabled.
const configLineFields = 15

// ParseConfigLine reads one instrument configuration message in column form.
func ParseConfigLine(line []byte) (schema.ConfigUpdate, error) {
	var msg schema.ConfigUpdate
	f, err := hexFields(line, configLineFields)
	if err != nil {
		return msg, err
	}
	var vals [configLineFields]uint64
	widths := [configLineFields]int{4, 4, 4, 1, 3, 32, 16, 64, 64, 64, 16, 16, 16, 32, 8}
	for i, w := range widths {
		if vals[i], err = hexUint(f[i], w); err != nil {
			return msg, err
		}
	}
	msg.Header = schema.HostHeader{
		Version:    uint8(vals[0]),
		Dest:       schema.ModuleID(vals[1]),
		MsgType:    uint8(vals[2]),
		AckRequest: vals[3] == 1,
		Timestamp:  uint32(vals[5]),
		Length:     uint16(vals[6]),
	}
	if msg.Header.Length == 0 {
		msg.Header.Length = schema.ConfigMessageLength
	}
	msg.Config = schema.InstrumentConfig{
		TickToCancelThreshold:      schema.Price(vals[7]),
		TickToTradeBidPrice:        schema.Price(vals[8]),
		TickToTradeAskPrice:        schema.Price(vals[9]),
		TickToTradeBidCollectionID: uint16(vals[10]),
		TickToCancelCollectionID:   uint16(vals[11]),
		TickToTradeAskCollectionID: uint16(vals[12]),
		InstrumentID:               uint32(vals[13]),
		Enabled:                    vals[14] != 0,
	}
	return msg, nil
}

// ParseConfigUpdates reads every configuration line of r.
func ParseConfigUpdates(r io.Reader) ([]schema.ConfigUpdate, error) {
	var out []schema.ConfigUpdate
	err := ScanVectorLines(r, func(lineNo int, line []byte) error {
		msg, err := ParseConfigLine(line)
		if err != nil {
			return errors.Wrap(err, "parse config line").With("line", lineNo)
		}
		out = append(out, msg)
		return nil
	})
	return out, err
}

// tcpLineFields is the column order of a tcp reply word line:
// data keep user id last.
const tcpLineFields = 5

// ParseTcpLine reads one tcp reply word in column form.
func ParseTcpLine(line []byte) (schema.TcpReplyWord, error) {
	var w schema.TcpReplyWord
	f, err := hexFields(line, tcpLineFields)
	if err != nil {
		return w, err
	}
	hi, lo, ok := scanner.ParseHexUint128(f[0])
	if !ok {
		return w, exception.ErrInvalidHexVector
	}
	keep, err := hexUint(f[1], 16)
	if err != nil {
		return w, err
	}
	user, err := hexUint(f[2], 20)
	if err != nil {
		return w, err
	}
	id, err := hexUint(f[3], 20)
	if err != nil {
		return w, err
	}
	last, err := hexUint(f[4], 1)
	if err != nil {
		return w, err
	}
	w.Data = schema.Uint128{Hi: hi, Lo: lo}
	w.Keep = uint16(keep)
	w.User = uint32(user)
	w.ID = uint32(id)
	w.Last = last == 1
	return w, nil
}

// ParseTcpWords reads every tcp reply word line of r.
func ParseTcpWords(r io.Reader) ([]schema.TcpReplyWord, error) {
	var out []schema.TcpReplyWord
	err := ScanVectorLines(r, func(lineNo int, line []byte) error {
		w, err := ParseTcpLine(line)
		if err != nil {
			return errors.Wrap(err, "parse tcp line").With("line", lineNo)
		}
		out = append(out, w)
		return nil
	})
	return out, err
}
