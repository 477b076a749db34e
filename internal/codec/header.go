package codec

import "hwstrat/internal/schema"

// Header bit layout inside the 64-bit header field (word 1, bits 127..64).
const (
	hdrVersionShift  = 60
	hdrModuleShift   = 56
	hdrMsgTypeShift  = 52
	hdrFlagShift     = 51
	hdrTimestampShft = 16
)

func packHeader(version uint8, module schema.ModuleID, msgType uint8, flag bool, ts uint32, length uint16) uint64 {
	v := uint64(version&0x0f)<<hdrVersionShift |
		uint64(module&0x0f)<<hdrModuleShift |
		uint64(msgType&0x0f)<<hdrMsgTypeShift |
		uint64(ts)<<hdrTimestampShft |
		uint64(length)
	if flag {
		v |= 1 << hdrFlagShift
	}
	return v
}

func unpackHeader(v uint64) (version uint8, module schema.ModuleID, msgType uint8, flag bool, ts uint32, length uint16) {
	version = uint8(v>>hdrVersionShift) & 0x0f
	module = schema.ModuleID(v>>hdrModuleShift) & 0x0f
	msgType = uint8(v>>hdrMsgTypeShift) & 0x0f
	flag = (v>>hdrFlagShift)&1 == 1
	ts = uint32(v >> hdrTimestampShft)
	length = uint16(v)
	return
}

// EncodeHostHeader packs a cpu2fpga header.
func EncodeHostHeader(h schema.HostHeader) uint64 {
	return packHeader(h.Version, h.Dest, h.MsgType, h.AckRequest, h.Timestamp, h.Length)
}

// DecodeHostHeader unpacks a cpu2fpga header.
func DecodeHostHeader(v uint64) schema.HostHeader {
	var h schema.HostHeader
	h.Version, h.Dest, h.MsgType, h.AckRequest, h.Timestamp, h.Length = unpackHeader(v)
	return h
}

// EncodeNotificationHeader packs a fpga2cpu header.
func EncodeNotificationHeader(h schema.NotificationHeader) uint64 {
	return packHeader(h.Version, h.Source, h.MsgType, h.Error, h.Timestamp, h.Length)
}

// DecodeNotificationHeader unpacks a fpga2cpu header.
func DecodeNotificationHeader(v uint64) schema.NotificationHeader {
	var h schema.NotificationHeader
	h.Version, h.Source, h.MsgType, h.Error, h.Timestamp, h.Length = unpackHeader(v)
	return h
}

// HostHeaderOf reads the header carried by the first word of a host message.
func HostHeaderOf(w schema.DMAWord) schema.HostHeader {
	return DecodeHostHeader(w.Data.Hi)
}
