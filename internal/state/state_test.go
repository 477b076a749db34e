package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwstrat/internal/codec"
	"hwstrat/internal/recorder"
	"hwstrat/internal/schema"
)

func sampleConfig(id uint32) schema.InstrumentConfig {
	return schema.InstrumentConfig{
		InstrumentID:             id,
		Enabled:                  true,
		TickToCancelThreshold:    90,
		TickToCancelCollectionID: 17,
		TickToTradeBidPrice:      100,
	}
}

func TestTablesApply(t *testing.T) {
	tables := NewTables(4)

	assert.True(t, tables.ApplyConfig(sampleConfig(2)))
	assert.False(t, tables.ApplyConfig(sampleConfig(4)))
	assert.True(t, tables.ApplyBookUpdate(schema.BookUpdate{InstrumentID: 1, Side: schema.SideBuy, Price: 10}))
	assert.True(t, tables.ApplyBookUpdate(schema.BookUpdate{InstrumentID: 1, Side: schema.SideSell, Price: 12}))
	assert.True(t, tables.ApplyBookUpdate(schema.BookUpdate{InstrumentID: 1, Side: schema.SideBuy, Price: 11}))
	assert.False(t, tables.ApplyBookUpdate(schema.BookUpdate{InstrumentID: 9}))

	assert.Equal(t, sampleConfig(2), tables.Config(2))
	assert.Equal(t, schema.BookEntry{BidPresent: true, BidPrice: 11, AskPresent: true, AskPrice: 12}, tables.Book(1))
	assert.Equal(t, schema.BookEntry{}, tables.Book(9))
}

func TestSnapshotRoundTrip(t *testing.T) {
	tables := NewTables(8)
	tables.ApplyConfig(sampleConfig(3))
	tables.ApplyBookUpdate(schema.BookUpdate{InstrumentID: 5, Side: schema.SideSell, Price: 77})

	snap := tables.Snapshot(12)
	require.Len(t, snap.Configs, 1)
	require.Len(t, snap.Books, 1)
	assert.Equal(t, 8, snap.InstrumentCount)

	path := filepath.Join(t.TempDir(), "snap", "tables.json")
	require.NoError(t, WriteSnapshot(path, snap))
	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), loaded.LastSeq)
	require.NoError(t, CompareSnapshots(snap, loaded))

	restored := NewTables(8)
	restored.ApplySnapshot(loaded)
	assert.Equal(t, tables.Configs(), restored.Configs())
	assert.Equal(t, tables.Books(), restored.Books())
}

func TestCompareSnapshotsReportsDifferences(t *testing.T) {
	base := NewTables(4)
	base.ApplyConfig(sampleConfig(1))
	base.ApplyBookUpdate(schema.BookUpdate{InstrumentID: 1, Side: schema.SideBuy, Price: 5})

	changedConfig := NewTables(4)
	cfg := sampleConfig(1)
	cfg.TickToCancelThreshold = 91
	changedConfig.ApplyConfig(cfg)
	changedConfig.ApplyBookUpdate(schema.BookUpdate{InstrumentID: 1, Side: schema.SideBuy, Price: 5})

	changedBook := NewTables(4)
	changedBook.ApplyConfig(sampleConfig(1))
	changedBook.ApplyBookUpdate(schema.BookUpdate{InstrumentID: 1, Side: schema.SideBuy, Price: 6})

	missing := NewTables(4)
	missing.ApplyConfig(sampleConfig(1))

	testCases := []struct {
		desc   string
		actual *Tables
	}{
		{desc: "config value", actual: changedConfig},
		{desc: "book value", actual: changedBook},
		{desc: "missing book row", actual: missing},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Error(t, CompareSnapshots(base.Snapshot(0), tc.actual.Snapshot(0)))
		})
	}
}

func appendRecord(t *testing.T, w *recorder.Writer, typ schema.EventType, payload []byte) {
	t.Helper()
	require.NoError(t, w.Append(schema.NewHeader(typ, schema.ModuleInstrumentConfiguration, 0, 0, 0), payload))
}

func TestRecoverFromAuditTrail(t *testing.T) {
	dir := t.TempDir()
	w, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	require.NoError(t, err)

	appendRecord(t, w, schema.EventConfigCommit, codec.EncodeInstrumentConfig(nil, sampleConfig(1)))
	appendRecord(t, w, schema.EventTrigger, codec.EncodeTriggerCommand(nil, schema.TriggerCommand{CollectionID: 9}))
	appendRecord(t, w, schema.EventBookUpdate, codec.EncodeBookUpdate(nil, schema.BookUpdate{InstrumentID: 1, Side: schema.SideBuy, Price: 100}))
	require.NoError(t, w.Close())

	res, err := Recover(t.Context(), RecoverConfig{AuditDir: dir, InstrumentCount: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, uint64(3), res.LastSeq)
	assert.Equal(t, sampleConfig(1), res.Tables.Config(1))
	assert.Equal(t, schema.BookEntry{BidPresent: true, BidPrice: 100}, res.Tables.Book(1))
}

func TestRecoverSkipsRecordsCoveredBySnapshot(t *testing.T) {
	dir := t.TempDir()
	w, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	require.NoError(t, err)

	first := sampleConfig(1)
	second := sampleConfig(2)
	appendRecord(t, w, schema.EventConfigCommit, codec.EncodeInstrumentConfig(nil, first))
	appendRecord(t, w, schema.EventConfigCommit, codec.EncodeInstrumentConfig(nil, second))
	require.NoError(t, w.Close())

	// The snapshot already holds the first commit, with a different value
	// that must survive recovery.
	snapTables := NewTables(4)
	stale := first
	stale.TickToCancelThreshold = 1
	snapTables.ApplyConfig(stale)
	path := filepath.Join(t.TempDir(), "tables.json")
	require.NoError(t, WriteSnapshot(path, snapTables.Snapshot(1)))

	res, err := Recover(t.Context(), RecoverConfig{AuditDir: dir, SnapshotPath: path})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, stale, res.Tables.Config(1))
	assert.Equal(t, second, res.Tables.Config(2))
	assert.Equal(t, 4, res.Tables.InstrumentCount())
}

func TestRecoverRequiresDir(t *testing.T) {
	_, err := Recover(t.Context(), RecoverConfig{InstrumentCount: 1})
	assert.Error(t, err)
}
