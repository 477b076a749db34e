package book

import (
	"hwstrat/internal/bus"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

// Client is one read port of the cache: instrument ids in, entries out.
type Client struct {
	Requests  *bus.Queue[uint32]
	Responses *bus.Queue[schema.BookEntry]
}

// Cache is the per-instrument top of book. It owns its table; other
// components reach it through the update queue and the client ports.
type Cache struct {
	entries []schema.BookEntry
	updates *bus.Queue[schema.BookUpdate]
	clients []Client
	metrics *obs.Metrics

	onUpdate func(schema.BookUpdate)
}

// NewCache allocates a cache for instrumentCount instruments.
func NewCache(instrumentCount int, updates *bus.Queue[schema.BookUpdate], metrics *obs.Metrics, clients ...Client) *Cache {
	return &Cache{
		entries: make([]schema.BookEntry, instrumentCount),
		updates: updates,
		clients: clients,
		metrics: metrics,
	}
}

// OnUpdate registers fn to observe every update applied from the queue.
func (c *Cache) OnUpdate(fn func(schema.BookUpdate)) {
	c.onUpdate = fn
}

// Update overwrites one side of an instrument's top of book. Ids out of
// range are ignored.
func (c *Cache) Update(id uint32, side schema.Side, price schema.Price) {
	if int64(id) >= int64(len(c.entries)) {
		return
	}
	e := &c.entries[id]
	if side == schema.SideBuy {
		e.BidPresent = true
		e.BidPrice = price
		return
	}
	e.AskPresent = true
	e.AskPrice = price
}

// Read returns the last written entry, or the zero entry.
func (c *Cache) Read(id uint32) schema.BookEntry {
	if int64(id) >= int64(len(c.entries)) {
		return schema.BookEntry{}
	}
	return c.entries[id]
}

// Step applies one pending update and returns. Without updates it answers
// one read on every client port whose response queue has room.
func (c *Cache) Step() bool {
	if c.updates != nil {
		if u, ok := c.updates.TryPop(); ok {
			c.Update(u.InstrumentID, u.Side, u.Price)
			if c.onUpdate != nil {
				c.onUpdate(u)
			}
			return true
		}
	}
	progressed := false
	for _, cl := range c.clients {
		if cl.Requests.Empty() {
			continue
		}
		if cl.Responses.Full() {
			c.metrics.IncBackpressure(obs.StageBookCache)
			continue
		}
		id, _ := cl.Requests.TryPop()
		_ = cl.Responses.TryPush(c.Read(id))
		progressed = true
	}
	return progressed
}

// Entries returns a copy of the table.
func (c *Cache) Entries() []schema.BookEntry {
	out := make([]schema.BookEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Restore replaces the table content, truncating or zero filling to the
// cache size.
func (c *Cache) Restore(entries []schema.BookEntry) {
	clear(c.entries)
	copy(c.entries, entries)
}

func (c *Cache) InstrumentCount() int {
	return len(c.entries)
}
