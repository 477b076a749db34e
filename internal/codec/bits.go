package codec

import (
	"fmt"
	"math/bits"

	"hwstrat/internal/schema"
)

// BitVector is a fixed-width bit container. Bit 0 is the least significant
// bit of words[0]; field offsets below are expressed in that numbering.
type BitVector struct {
	width int
	words []uint64
}

// NewBitVector allocates a zeroed vector of the given width.
func NewBitVector(width int) BitVector {
	if width <= 0 {
		panic(fmt.Sprintf("codec: invalid bit vector width %d", width))
	}
	return BitVector{width: width, words: make([]uint64, (width+63)/64)}
}

// Width returns the number of bits held.
func (v BitVector) Width() int {
	return v.width
}

func (v BitVector) check(offset, width int) {
	if width <= 0 || width > 64 || offset < 0 || offset+width > v.width {
		panic(fmt.Sprintf("codec: field [%d,+%d) outside %d-bit vector", offset, width, v.width))
	}
}

// Uint reads a field of at most 64 bits.
func (v BitVector) Uint(offset, width int) uint64 {
	v.check(offset, width)
	idx, shift := offset/64, offset%64
	val := v.words[idx] >> shift
	if shift+width > 64 {
		val |= v.words[idx+1] << (64 - shift)
	}
	if width < 64 {
		val &= 1<<width - 1
	}
	return val
}

// SetUint writes a field of at most 64 bits. Excess bits of x are dropped.
func (v BitVector) SetUint(offset, width int, x uint64) {
	v.check(offset, width)
	mask := ^uint64(0)
	if width < 64 {
		mask = 1<<width - 1
	}
	x &= mask
	idx, shift := offset/64, offset%64
	v.words[idx] = v.words[idx]&^(mask<<shift) | x<<shift
	if shift+width > 64 {
		rem := shift + width - 64
		hiMask := uint64(1)<<rem - 1
		v.words[idx+1] = v.words[idx+1]&^hiMask | x>>(64-shift)
	}
}

// Uint128 reads a 128-bit field.
func (v BitVector) Uint128(offset int) schema.Uint128 {
	return schema.Uint128{
		Lo: v.Uint(offset, 64),
		Hi: v.Uint(offset+64, 64),
	}
}

// SetUint128 writes a 128-bit field.
func (v BitVector) SetUint128(offset int, x schema.Uint128) {
	v.SetUint(offset, 64, x.Lo)
	v.SetUint(offset+64, 64, x.Hi)
}

// Bit reports whether bit i is set.
func (v BitVector) Bit(i int) bool {
	return v.Uint(i, 1) == 1
}

// SetBit sets or clears bit i.
func (v BitVector) SetBit(i int, on bool) {
	var x uint64
	if on {
		x = 1
	}
	v.SetUint(i, 1, x)
}

// Reverse returns a copy with the bit order mirrored: bit i moves to width-1-i.
func (v BitVector) Reverse() BitVector {
	out := NewBitVector(v.width)
	for idx, word := range v.words {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			word &= word - 1
			i := idx*64 + b
			if i >= v.width {
				break
			}
			j := v.width - 1 - i
			out.words[j/64] |= 1 << (j % 64)
		}
	}
	return out
}

// Equal reports whether both vectors have the same width and content.
func (v BitVector) Equal(o BitVector) bool {
	if v.width != o.width {
		return false
	}
	for i := range v.words {
		if v.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// ByteLen returns the size of the byte image.
func (v BitVector) ByteLen() int {
	return (v.width + 7) / 8
}

// Bytes returns the little-endian byte image: byte k holds bits 8k+7..8k.
func (v BitVector) Bytes() []byte {
	out := make([]byte, v.ByteLen())
	for k := range out {
		out[k] = byte(v.words[k/8] >> (8 * (k % 8)))
	}
	return out
}

// BitVectorFromBytes is the inverse of Bytes. Bits above width must be zero.
func BitVectorFromBytes(width int, src []byte) (BitVector, error) {
	v := NewBitVector(width)
	if len(src) != v.ByteLen() {
		return BitVector{}, fmt.Errorf("bit vector image: got %d bytes, want %d", len(src), v.ByteLen())
	}
	for k, b := range src {
		v.words[k/8] |= uint64(b) << (8 * (k % 8))
	}
	if extra := width % 64; extra != 0 {
		last := len(v.words) - 1
		if v.words[last]>>extra != 0 {
			return BitVector{}, fmt.Errorf("bit vector image: bits set above width %d", width)
		}
	}
	return v, nil
}

func (v BitVector) String() string {
	b := v.Bytes()
	out := make([]byte, 0, 2*len(b))
	const hexdigits = "0123456789abcdef"
	for i := len(b) - 1; i >= 0; i-- {
		out = append(out, hexdigits[b[i]>>4], hexdigits[b[i]&0x0f])
	}
	return string(out)
}
