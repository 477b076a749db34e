package schema

import (
	"encoding/binary"
	"fmt"
)

// Uint128 is an unsigned 128-bit value. Hi holds bits 127..64.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// U128 widens a 64-bit value.
func U128(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Uint128FromBytes reads up to 16 bytes big-endian, left aligned:
// b[0] lands on bits 127..120 and missing trailing bytes are zero.
func Uint128FromBytes(b []byte) Uint128 {
	var buf [16]byte
	copy(buf[:], b)
	return Uint128{
		Hi: binary.BigEndian.Uint64(buf[0:8]),
		Lo: binary.BigEndian.Uint64(buf[8:16]),
	}
}

// Bytes returns the big-endian image.
func (u Uint128) Bytes() [16]byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], u.Hi)
	binary.BigEndian.PutUint64(buf[8:16], u.Lo)
	return buf
}

func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// Byte returns the byte at bits 8*i+7..8*i.
func (u Uint128) Byte(i int) uint8 {
	if i < 8 {
		return uint8(u.Lo >> (8 * i))
	}
	return uint8(u.Hi >> (8 * (i - 8)))
}

func (u Uint128) String() string {
	return fmt.Sprintf("0x%016x%016x", u.Hi, u.Lo)
}
