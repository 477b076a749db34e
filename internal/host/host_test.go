package host

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwstrat/internal/codec"
	"hwstrat/internal/schema"
	"hwstrat/pkg/exception"
)

func sampleUpdate(t *testing.T) []schema.DMAWord {
	t.Helper()
	return codec.ConfigUpdateWords(codec.NewConfigUpdate(schema.InstrumentConfig{
		InstrumentID:             4,
		Enabled:                  true,
		TickToCancelThreshold:    90,
		TickToCancelCollectionID: 17,
	}, true))
}

func TestFrameRoundTrip(t *testing.T) {
	words := sampleUpdate(t)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, words))
	assert.Equal(t, uint32(3*codec.DMAWordSize), binary.BigEndian.Uint32(buf.Bytes()[:4]))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, words, got)

	_, err = ReadFrame(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestFrameRejects(t *testing.T) {
	assert.Equal(t, exception.ErrHostFrameLength, WriteFrame(io.Discard, nil))
	assert.Equal(t, exception.ErrHostFrameLength, WriteFrame(io.Discard, make([]schema.DMAWord, MaxFrameWords+1)))

	testCases := []struct {
		desc   string
		length uint32
		body   int
		want   error
	}{
		{desc: "empty", length: 0, want: exception.ErrHostFrameLength},
		{desc: "partial word", length: 20, body: 20, want: exception.ErrHostFrameLength},
		{desc: "too long", length: (MaxFrameWords + 1) * codec.DMAWordSize, want: exception.ErrHostFrameLength},
		{desc: "cut body", length: 32, body: 16, want: io.ErrUnexpectedEOF},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			frame := binary.BigEndian.AppendUint32(nil, tc.length)
			frame = append(frame, make([]byte, tc.body)...)
			_, err := ReadFrame(bytes.NewReader(frame))
			assert.Equal(t, tc.want, err)
		})
	}
}

func TestEndpointExchange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.sock")
	ep, err := Listen(path, 4)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- ep.Serve(ctx) }()

	link, err := Dial(ctx, path)
	require.NoError(t, err)
	defer link.Close()

	words := sampleUpdate(t)
	require.NoError(t, link.Send(words))

	select {
	case got := <-ep.Inbound():
		assert.Equal(t, words, got)
	case <-ctx.Done():
		t.Fatal("timeout waiting for inbound message")
	}

	ack, err := codec.NotificationWords(codec.NewConfigAck(schema.InstrumentConfig{InstrumentID: 4}))
	require.NoError(t, err)
	require.Eventually(t, ep.Connected, time.Second, 5*time.Millisecond)
	require.NoError(t, ep.Send(ack))

	got, err := link.Receive()
	require.NoError(t, err)
	n, err := codec.DecodeNotification(got)
	require.NoError(t, err)
	assert.Equal(t, schema.NotificationConfigAck, n.Kind)
	assert.Equal(t, uint32(4), n.ConfigAck.InstrumentID)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
	_, open := <-ep.Inbound()
	assert.False(t, open)
}

func TestEndpointSendWithoutHost(t *testing.T) {
	ep, err := Listen(filepath.Join(t.TempDir(), "host.sock"), 1)
	require.NoError(t, err)
	defer ep.Close()
	assert.Equal(t, exception.ErrHostLinkClosed, ep.Send(sampleUpdate(t)))
}
