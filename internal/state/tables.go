package state

import "hwstrat/internal/schema"

// Tables mirrors the pipeline's configuration and book tables from audit
// records, so they can be snapshotted and rebuilt outside the pipeline.
type Tables struct {
	configs []schema.InstrumentConfig
	books   []schema.BookEntry
}

// NewTables allocates empty tables for instrumentCount instruments.
func NewTables(instrumentCount int) *Tables {
	return &Tables{
		configs: make([]schema.InstrumentConfig, instrumentCount),
		books:   make([]schema.BookEntry, instrumentCount),
	}
}

// ApplyConfig records a committed configuration. Ids outside the table are
// ignored, as the pipeline never commits them.
func (t *Tables) ApplyConfig(cfg schema.InstrumentConfig) bool {
	if int64(cfg.InstrumentID) >= int64(len(t.configs)) {
		return false
	}
	t.configs[cfg.InstrumentID] = cfg
	return true
}

// ApplyBookUpdate records a top of book write.
func (t *Tables) ApplyBookUpdate(u schema.BookUpdate) bool {
	if int64(u.InstrumentID) >= int64(len(t.books)) {
		return false
	}
	e := &t.books[u.InstrumentID]
	if u.Side == schema.SideBuy {
		e.BidPresent, e.BidPrice = true, u.Price
	} else {
		e.AskPresent, e.AskPrice = true, u.Price
	}
	return true
}

// ApplySnapshot replaces both tables with the snapshot content.
func (t *Tables) ApplySnapshot(s Snapshot) {
	clear(t.configs)
	clear(t.books)
	for _, cfg := range s.Configs {
		t.ApplyConfig(cfg)
	}
	for _, b := range s.Books {
		if int64(b.InstrumentID) < int64(len(t.books)) {
			t.books[b.InstrumentID] = b.Entry
		}
	}
}

func (t *Tables) Config(id uint32) schema.InstrumentConfig {
	if int64(id) >= int64(len(t.configs)) {
		return schema.InstrumentConfig{}
	}
	return t.configs[id]
}

func (t *Tables) Book(id uint32) schema.BookEntry {
	if int64(id) >= int64(len(t.books)) {
		return schema.BookEntry{}
	}
	return t.books[id]
}

// Configs returns a copy of the configuration table.
func (t *Tables) Configs() []schema.InstrumentConfig {
	out := make([]schema.InstrumentConfig, len(t.configs))
	copy(out, t.configs)
	return out
}

// Books returns a copy of the book table.
func (t *Tables) Books() []schema.BookEntry {
	out := make([]schema.BookEntry, len(t.books))
	copy(out, t.books)
	return out
}

func (t *Tables) InstrumentCount() int {
	return len(t.configs)
}
