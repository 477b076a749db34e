package host

import (
	"bufio"
	"encoding/binary"
	stderrors "errors"
	"io"
	"net"
	"sync"

	"github.com/yanun0323/errors"

	"hwstrat/internal/codec"
	"hwstrat/internal/schema"
	"hwstrat/pkg/exception"
)

// Frames carry one host message: a big endian u32 byte length followed by
// the concatenated 16-byte word images.
const (
	frameHeaderSize = 4
	MaxFrameWords   = 16
)

// WriteFrame writes words as one frame.
func WriteFrame(w io.Writer, words []schema.DMAWord) error {
	if len(words) == 0 || len(words) > MaxFrameWords {
		return exception.ErrHostFrameLength
	}
	buf := make([]byte, frameHeaderSize, frameHeaderSize+len(words)*codec.DMAWordSize)
	binary.BigEndian.PutUint32(buf, uint32(len(words)*codec.DMAWordSize))
	buf = codec.AppendWords(buf, words)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame. The last word of the frame carries the last
// flag and no other word does.
func ReadFrame(r io.Reader) ([]schema.DMAWord, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 || n%codec.DMAWordSize != 0 || n > MaxFrameWords*codec.DMAWordSize {
		return nil, exception.ErrHostFrameLength
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return codec.SplitWords(body)
}

// Link is one framed host connection.
type Link struct {
	conn net.Conn
	r    *bufio.Reader

	wmu    sync.Mutex
	closed bool
}

func NewLink(conn net.Conn) *Link {
	return &Link{conn: conn, r: bufio.NewReader(conn)}
}

// Send writes one message. It is safe to call from several goroutines.
func (l *Link) Send(words []schema.DMAWord) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	if l.closed {
		return exception.ErrHostLinkClosed
	}
	if err := WriteFrame(l.conn, words); err != nil {
		return errors.Wrap(err, "send host frame")
	}
	return nil
}

// Receive reads the next message. A peer that hung up between frames
// yields io.EOF.
func (l *Link) Receive() ([]schema.DMAWord, error) {
	words, err := ReadFrame(l.r)
	if err != nil {
		if stderrors.Is(err, io.EOF) || stderrors.Is(err, net.ErrClosed) {
			return nil, io.EOF
		}
		return nil, err
	}
	return words, nil
}

func (l *Link) Close() error {
	l.wmu.Lock()
	l.closed = true
	l.wmu.Unlock()
	return l.conn.Close()
}
