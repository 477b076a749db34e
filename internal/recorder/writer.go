package recorder

import (
	"bufio"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"hwstrat/internal/schema"
)

var ErrClosed = errors.New("audit writer closed")

// Writer appends audit records to rotating segment files. It is safe for
// concurrent use, though the pipeline feeds it from a single sink goroutine.
type Writer struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	seg       *segment
	segID     uint64
	seq       uint64
	lastFlush time.Time
	header    [recordHeaderSize]byte
	closed    bool
}

type segment struct {
	path     string
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

// NewWriter validates cfg and creates the target directory.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create audit dir").With("dir", cfg.Dir)
	}
	return &Writer{cfg: cfg, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Append writes one record. A zero Seq is replaced by the writer's own
// sequence and a zero Version by the current schema version. Explicit
// sequences move the writer's sequence forward.
func (w *Writer) Append(h schema.EventHeader, payload []byte) error {
	if len(payload) > maxPayloadLen {
		return ErrPayloadTooLarge
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	if h.Seq == 0 {
		w.seq++
		h.Seq = w.seq
	} else if h.Seq > w.seq {
		w.seq = h.Seq
	}
	if h.Version == 0 {
		h.Version = schema.SchemaVersion
	}

	now := w.now()
	size := int64(recordOverhead + len(payload))
	if w.rotateDue(now, size) {
		if err := w.closeSegment(); err != nil {
			return err
		}
		if err := w.openSegment(now); err != nil {
			return err
		}
	}

	putHeader(w.header[:], h, len(payload))
	var sum [recordChecksumSize]byte
	binary.LittleEndian.PutUint32(sum[:], checksum(w.header[:], payload))

	for _, part := range [][]byte{w.header[:], payload, sum[:]} {
		if _, err := w.seg.buf.Write(part); err != nil {
			return errors.Wrap(err, "write audit record").With("segment", w.seg.path)
		}
	}
	w.seg.size += size

	if now.Sub(w.lastFlush) >= w.cfg.FlushInterval {
		return w.flush(now)
	}
	return nil
}

// Flush pushes buffered records to the current segment.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flush(w.now())
}

// Close flushes, syncs and closes the current segment.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.closeSegment()
}

// Resume continues numbering after lastSeq, so a restarted trail keeps
// increasing sequence numbers.
func (w *Writer) Resume(lastSeq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if lastSeq > w.seq {
		w.seq = lastSeq
	}
}

// LastSeq returns the sequence number of the last appended record.
func (w *Writer) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

func (w *Writer) rotateDue(now time.Time, next int64) bool {
	if w.seg == nil {
		return true
	}
	if w.seg.size > 0 && w.seg.size+next > w.cfg.SegmentMaxBytes {
		return true
	}
	return w.cfg.SegmentMaxDuration > 0 && now.Sub(w.seg.openedAt) >= w.cfg.SegmentMaxDuration
}

func (w *Writer) flush(now time.Time) error {
	w.lastFlush = now
	if w.seg == nil {
		return nil
	}
	if err := w.seg.buf.Flush(); err != nil {
		return errors.Wrap(err, "flush audit segment").With("segment", w.seg.path)
	}
	if w.cfg.SyncOnFlush {
		return w.seg.file.Sync()
	}
	return nil
}

func (w *Writer) closeSegment() error {
	seg := w.seg
	if seg == nil {
		return nil
	}
	w.seg = nil
	if err := seg.buf.Flush(); err != nil {
		_ = seg.file.Close()
		return errors.Wrap(err, "flush audit segment").With("segment", seg.path)
	}
	if err := seg.file.Sync(); err != nil {
		_ = seg.file.Close()
		return errors.Wrap(err, "sync audit segment").With("segment", seg.path)
	}
	return seg.file.Close()
}

// openSegment creates the next segment file. Names sort in creation order.
func (w *Writer) openSegment(now time.Time) error {
	stamp := now.Format("20060102-150405")
	for {
		w.segID++
		name := fmt.Sprintf("%s-%s-%06d%s", w.cfg.FilePrefix, stamp, w.segID, segmentSuffix)
		path := filepath.Join(w.cfg.Dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if stderrors.Is(err, os.ErrExist) {
				continue
			}
			return errors.Wrap(err, "open audit segment").With("segment", path)
		}
		w.seg = &segment{
			path:     path,
			file:     file,
			buf:      bufio.NewWriterSize(file, w.cfg.BufferSize),
			openedAt: now,
		}
		return nil
	}
}
