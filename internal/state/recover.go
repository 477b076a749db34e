package state

import (
	"context"

	"github.com/yanun0323/errors"

	"hwstrat/internal/codec"
	"hwstrat/internal/recorder"
	"hwstrat/internal/schema"
)

// RecoverConfig controls snapshot plus audit trail recovery.
type RecoverConfig struct {
	AuditDir        string
	FilePrefix      string
	SnapshotPath    string
	InstrumentCount int
	SkipChecksum    bool
}

// RecoverResult holds the rebuilt tables.
type RecoverResult struct {
	Tables  *Tables
	LastSeq uint64
	Applied int
}

// Recover loads the optional snapshot, then replays the configuration
// commits and book updates recorded after it.
func Recover(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.AuditDir == "" {
		return RecoverResult{}, errors.New("audit dir is empty")
	}
	count := cfg.InstrumentCount
	var snap *Snapshot
	if cfg.SnapshotPath != "" {
		s, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, err
		}
		snap = &s
		if count == 0 {
			count = s.InstrumentCount
		}
	}
	if count <= 0 {
		return RecoverResult{}, errors.New("instrument count is unknown")
	}

	tables := NewTables(count)
	var lastSeq uint64
	if snap != nil {
		tables.ApplySnapshot(*snap)
		lastSeq = snap.LastSeq
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:          cfg.AuditDir,
		FilePrefix:   cfg.FilePrefix,
		SkipChecksum: cfg.SkipChecksum,
		Types:        []schema.EventType{schema.EventConfigCommit, schema.EventBookUpdate},
	})
	if err != nil {
		return RecoverResult{}, err
	}

	applied := 0
	err = pb.Run(ctx, func(h schema.EventHeader, payload []byte) error {
		if h.Seq <= lastSeq {
			return nil
		}
		lastSeq = h.Seq
		switch h.Type {
		case schema.EventConfigCommit:
			cfg, ok := codec.DecodeInstrumentConfig(payload)
			if !ok {
				return errors.Errorf("decode config commit failed: seq=%d", h.Seq)
			}
			tables.ApplyConfig(cfg)
		case schema.EventBookUpdate:
			u, ok := codec.DecodeBookUpdate(payload)
			if !ok {
				return errors.Errorf("decode book update failed: seq=%d", h.Seq)
			}
			tables.ApplyBookUpdate(u)
		}
		applied++
		return nil
	})
	if err != nil {
		return RecoverResult{}, err
	}
	return RecoverResult{Tables: tables, LastSeq: lastSeq, Applied: applied}, nil
}
