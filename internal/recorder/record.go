package recorder

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/yanun0323/errors"

	"hwstrat/internal/schema"
)

// Record layout, little endian:
//
//	0  magic     [4]byte
//	4  header    u16 (size of this header)
//	6  type      u16
//	8  version   u16
//	10 source    u16 (module id)
//	12 flags     u16
//	14 reserved  u16
//	16 length    u32 (payload bytes)
//	20 seq       u64
//	28 ts_event  i64
//	36 ts_recv   i64
//	44 trace_id  u64
//	52 payload   [length]byte
//	.. crc32c    u32 over header and payload
const (
	recordHeaderSize   = 52
	recordChecksumSize = 4
	recordOverhead     = recordHeaderSize + recordChecksumSize
	maxPayloadLen      = 1 << 20
)

var (
	recordMagic = [4]byte{'H', 'W', 'A', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic      = errors.New("audit record invalid magic")
	ErrInvalidHeaderSize = errors.New("audit record invalid header size")
	ErrUnsupportedSchema = errors.New("audit record unsupported schema version")
	ErrPayloadTooLarge   = errors.New("audit record payload too large")
	ErrChecksumMismatch  = errors.New("audit record checksum mismatch")
)

func putHeader(dst []byte, h schema.EventHeader, payloadLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordHeaderSize)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(h.Type))
	binary.LittleEndian.PutUint16(dst[8:10], h.Version)
	binary.LittleEndian.PutUint16(dst[10:12], h.Source)
	binary.LittleEndian.PutUint16(dst[12:14], h.Flags)
	binary.LittleEndian.PutUint16(dst[14:16], 0)
	binary.LittleEndian.PutUint32(dst[16:20], uint32(payloadLen))
	binary.LittleEndian.PutUint64(dst[20:28], h.Seq)
	binary.LittleEndian.PutUint64(dst[28:36], uint64(h.TsEvent))
	binary.LittleEndian.PutUint64(dst[36:44], uint64(h.TsRecv))
	binary.LittleEndian.PutUint64(dst[44:52], h.TraceID)
}

func parseHeader(src []byte) (schema.EventHeader, int, error) {
	if len(src) < recordHeaderSize {
		return schema.EventHeader{}, 0, ErrInvalidHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return schema.EventHeader{}, 0, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint16(src[4:6]) != recordHeaderSize {
		return schema.EventHeader{}, 0, ErrInvalidHeaderSize
	}
	h := schema.EventHeader{
		Type:    schema.EventType(binary.LittleEndian.Uint16(src[6:8])),
		Version: binary.LittleEndian.Uint16(src[8:10]),
		Source:  binary.LittleEndian.Uint16(src[10:12]),
		Flags:   binary.LittleEndian.Uint16(src[12:14]),
		Seq:     binary.LittleEndian.Uint64(src[20:28]),
		TsEvent: int64(binary.LittleEndian.Uint64(src[28:36])),
		TsRecv:  int64(binary.LittleEndian.Uint64(src[36:44])),
		TraceID: binary.LittleEndian.Uint64(src[44:52]),
	}
	if h.Version != schema.SchemaVersion {
		return h, 0, ErrUnsupportedSchema
	}
	length := binary.LittleEndian.Uint32(src[16:20])
	if length > maxPayloadLen {
		return h, 0, ErrPayloadTooLarge
	}
	return h, int(length), nil
}

func checksum(header, payload []byte) uint32 {
	return crc32.Update(crc32.Update(0, crcTable, header), crcTable, payload)
}
