package recorder

import (
	"bufio"
	"encoding/binary"
	stderrors "errors"
	"io"

	"hwstrat/internal/schema"
)

// Reader decodes audit records sequentially from one segment.
type Reader struct {
	r              *bufio.Reader
	verifyChecksum bool
	header         [recordHeaderSize]byte
	payload        []byte
}

// NewReader wraps r. Checksums are verified unless skipChecksum is set.
func NewReader(r io.Reader, skipChecksum bool) *Reader {
	return &Reader{r: bufio.NewReader(r), verifyChecksum: !skipChecksum}
}

// Next returns the next record. The payload is only valid until the next
// call. A clean end of segment returns io.EOF; a record cut short returns
// io.ErrUnexpectedEOF.
func (r *Reader) Next() (schema.EventHeader, []byte, error) {
	n, err := io.ReadFull(r.r, r.header[:])
	if err != nil {
		if stderrors.Is(err, io.EOF) && n == 0 {
			return schema.EventHeader{}, nil, io.EOF
		}
		return schema.EventHeader{}, nil, io.ErrUnexpectedEOF
	}

	h, length, err := parseHeader(r.header[:])
	if err != nil {
		return h, nil, err
	}

	if cap(r.payload) < length {
		r.payload = make([]byte, length)
	}
	r.payload = r.payload[:length]
	if _, err := io.ReadFull(r.r, r.payload); err != nil {
		return h, nil, io.ErrUnexpectedEOF
	}

	var sum [recordChecksumSize]byte
	if _, err := io.ReadFull(r.r, sum[:]); err != nil {
		return h, nil, io.ErrUnexpectedEOF
	}
	if r.verifyChecksum && binary.LittleEndian.Uint32(sum[:]) != checksum(r.header[:], r.payload) {
		return h, nil, ErrChecksumMismatch
	}
	return h, r.payload, nil
}
