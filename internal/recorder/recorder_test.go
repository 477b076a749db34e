package recorder

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwstrat/internal/schema"
)

func TestRecordRoundTrip(t *testing.T) {
	h := schema.EventHeader{
		Type:    schema.EventTrigger,
		Version: schema.SchemaVersion,
		Source:  uint16(schema.ModuleTickToCancel),
		Flags:   3,
		Seq:     42,
		TsEvent: 1_700_000_000,
		TsRecv:  1_700_000_123,
		TraceID: 99,
	}
	payload := []byte{1, 2, 3, 4, 5}

	var buf [recordHeaderSize]byte
	putHeader(buf[:], h, len(payload))
	got, length, err := parseHeader(buf[:])
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, len(payload), length)
}

func TestParseHeaderRejects(t *testing.T) {
	var valid [recordHeaderSize]byte
	putHeader(valid[:], schema.EventHeader{Version: schema.SchemaVersion}, 0)

	testCases := []struct {
		desc   string
		mutate func(b []byte) []byte
		want   error
	}{
		{desc: "short", mutate: func(b []byte) []byte { return b[:10] }, want: ErrInvalidHeaderSize},
		{desc: "magic", mutate: func(b []byte) []byte { b[0] = 'X'; return b }, want: ErrInvalidMagic},
		{desc: "header size", mutate: func(b []byte) []byte { b[4] = 60; return b }, want: ErrInvalidHeaderSize},
		{desc: "schema version", mutate: func(b []byte) []byte { b[8] = 7; return b }, want: ErrUnsupportedSchema},
		{desc: "payload length", mutate: func(b []byte) []byte { b[19] = 0xff; return b }, want: ErrPayloadTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			b := append([]byte(nil), valid[:]...)
			_, _, err := parseHeader(tc.mutate(b))
			assert.Equal(t, tc.want, err)
		})
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)

	payloads := [][]byte{[]byte("first"), nil, bytes.Repeat([]byte{0xab}, 300)}
	for i, p := range payloads {
		h := schema.NewHeader(schema.EventNotification, schema.ModuleTcpConsumer, 0, int64(i), 0)
		require.NoError(t, w.Append(h, p))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(3), w.LastSeq())
	assert.Equal(t, ErrClosed, w.Append(schema.EventHeader{}, nil))

	p, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	files, err := p.Segments()
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	r := NewReader(f, false)
	for i, want := range payloads {
		h, got, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), h.Seq)
		assert.Equal(t, int64(i), h.TsEvent)
		assert.Equal(t, uint16(schema.ModuleTcpConsumer), h.Source)
		assert.Equal(t, len(want), len(got))
		assert.True(t, bytes.Equal(want, got))
	}
	_, _, err = r.Next()
	assert.True(t, stderrors.Is(err, io.EOF))
}

func TestReaderDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Append(schema.EventHeader{Type: schema.EventTrigger}, []byte("payload")))
	require.NoError(t, w.Close())

	p, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	files, err := p.Segments()
	require.NoError(t, err)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)

	corrupted := append([]byte(nil), raw...)
	corrupted[recordHeaderSize] ^= 0xff
	_, _, err = NewReader(bytes.NewReader(corrupted), false).Next()
	assert.Equal(t, ErrChecksumMismatch, err)

	_, payload, err := NewReader(bytes.NewReader(corrupted), true).Next()
	require.NoError(t, err)
	assert.Equal(t, byte('p')^0xff, payload[0])

	_, _, err = NewReader(bytes.NewReader(raw[:len(raw)-2]), false).Next()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestWriterRotatesSegments(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxBytes = recordOverhead + 16
	w, err := NewWriter(cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Append(schema.EventHeader{Type: schema.EventConfigCommit}, make([]byte, 16)))
	}
	require.NoError(t, w.Close())

	p, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	files, err := p.Segments()
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestPlaybackFiltersTypes(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	for _, typ := range []schema.EventType{
		schema.EventConfigCommit,
		schema.EventTrigger,
		schema.EventNotification,
		schema.EventTrigger,
	} {
		require.NoError(t, w.Append(schema.EventHeader{Type: typ}, []byte{byte(typ)}))
	}
	require.NoError(t, w.Close())

	p, err := NewPlayback(PlaybackConfig{Dir: dir, Types: []schema.EventType{schema.EventTrigger}})
	require.NoError(t, err)

	var seqs []uint64
	require.NoError(t, p.Run(t.Context(), func(h schema.EventHeader, payload []byte) error {
		assert.Equal(t, schema.EventTrigger, h.Type)
		seqs = append(seqs, h.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{2, 4}, seqs)
}

func TestPlaybackStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Append(schema.EventHeader{Type: schema.EventTrigger}, nil))
	require.NoError(t, w.Close())

	p, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err = p.Run(ctx, func(schema.EventHeader, []byte) error { return nil })
	assert.True(t, stderrors.Is(err, context.Canceled))
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		desc  string
		cfg   Config
		valid bool
	}{
		{desc: "defaults", cfg: DefaultConfig("dir"), valid: true},
		{desc: "no dir", cfg: DefaultConfig(""), valid: false},
		{desc: "tiny segments", cfg: Config{Dir: "d", SegmentMaxBytes: 8, BufferSize: 1}, valid: false},
		{desc: "negative flush", cfg: Config{Dir: "d", SegmentMaxBytes: 1 << 10, BufferSize: 1, FlushInterval: -time.Second}, valid: false},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestWriterResumeKeepsSequence(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	w.Resume(41)
	require.NoError(t, w.Append(schema.EventHeader{Type: schema.EventTrigger}, nil))
	w.Resume(3)
	require.NoError(t, w.Append(schema.EventHeader{Type: schema.EventTrigger}, nil))
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(43), w.LastSeq())
}
