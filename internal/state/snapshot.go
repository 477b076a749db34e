package state

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"hwstrat/internal/schema"
)

// Snapshot captures the non-empty rows of both tables at a point in time.
type Snapshot struct {
	Timestamp       int64                     `json:"timestamp"`
	LastSeq         uint64                    `json:"lastSeq"`
	InstrumentCount int                       `json:"instrumentCount"`
	Configs         []schema.InstrumentConfig `json:"configs"`
	Books           []BookRow                 `json:"books"`
}

// BookRow is one instrument's top of book.
type BookRow struct {
	InstrumentID uint32           `json:"instrumentId"`
	Entry        schema.BookEntry `json:"entry"`
}

// Snapshot builds a snapshot stamped with the last applied record.
func (t *Tables) Snapshot(lastSeq uint64) Snapshot {
	return BuildSnapshot(t.configs, t.books, lastSeq)
}

// BuildSnapshot keeps the rows that differ from the zero value, in id order.
func BuildSnapshot(configs []schema.InstrumentConfig, books []schema.BookEntry, lastSeq uint64) Snapshot {
	s := Snapshot{
		Timestamp:       time.Now().UTC().UnixNano(),
		LastSeq:         lastSeq,
		InstrumentCount: len(configs),
	}
	for _, cfg := range configs {
		if cfg != (schema.InstrumentConfig{InstrumentID: cfg.InstrumentID}) {
			s.Configs = append(s.Configs, cfg)
		}
	}
	for id, b := range books {
		if b != (schema.BookEntry{}) {
			s.Books = append(s.Books, BookRow{InstrumentID: uint32(id), Entry: b})
		}
	}
	return s
}

// WriteSnapshot writes a snapshot as indented JSON, replacing the file
// atomically.
func WriteSnapshot(path string, s Snapshot) error {
	data, err := sonic.ConfigStd.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create snapshot dir").With("dir", dir)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write snapshot").With("path", tmp)
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "read snapshot").With("path", path)
	}
	var s Snapshot
	if err := sonic.ConfigStd.Unmarshal(data, &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "decode snapshot").With("path", path)
	}
	return s, nil
}

// CompareSnapshots reports the first row where actual differs from expected.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Configs) != len(actual.Configs) {
		return errors.Errorf("config rows mismatch: expected=%d actual=%d", len(expected.Configs), len(actual.Configs))
	}
	if len(expected.Books) != len(actual.Books) {
		return errors.Errorf("book rows mismatch: expected=%d actual=%d", len(expected.Books), len(actual.Books))
	}
	configs := make(map[uint32]schema.InstrumentConfig, len(expected.Configs))
	for _, cfg := range expected.Configs {
		configs[cfg.InstrumentID] = cfg
	}
	for _, cfg := range actual.Configs {
		want, ok := configs[cfg.InstrumentID]
		if !ok {
			return errors.Errorf("unexpected config row: instrument=%d", cfg.InstrumentID)
		}
		if want != cfg {
			return errors.Errorf("config mismatch: instrument=%d expected=%+v actual=%+v", cfg.InstrumentID, want, cfg)
		}
	}
	books := make(map[uint32]schema.BookEntry, len(expected.Books))
	for _, row := range expected.Books {
		books[row.InstrumentID] = row.Entry
	}
	for _, row := range actual.Books {
		want, ok := books[row.InstrumentID]
		if !ok {
			return errors.Errorf("unexpected book row: instrument=%d", row.InstrumentID)
		}
		if want != row.Entry {
			return errors.Errorf("book mismatch: instrument=%d expected=%+v actual=%+v", row.InstrumentID, want, row.Entry)
		}
	}
	return nil
}
