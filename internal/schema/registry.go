package schema

import "fmt"

// Instrument describes a named instrument known to the host side.
type Instrument struct {
	ID         uint32
	Name       string
	PriceScale int32
}

// Registry maps instrument names to bus instrument ids.
type Registry struct {
	instruments []Instrument
	byName      map[string]int
	byID        map[uint32]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]int),
		byID:   make(map[uint32]int),
	}
}

// AddInstrument registers an instrument under its bus id.
func (r *Registry) AddInstrument(name string, id uint32, priceScale int32) error {
	if name == "" {
		return fmt.Errorf("instrument name is empty")
	}
	if id == InstrumentNotFound || id == InstrumentCmdNotInstr || id == InstrumentNotSet {
		return fmt.Errorf("instrument id is reserved: %#x", id)
	}
	if priceScale < 0 {
		return fmt.Errorf("instrument price scale must be >= 0: %s", name)
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("instrument already exists: %s", name)
	}
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("instrument id already registered: %d", id)
	}
	r.instruments = append(r.instruments, Instrument{ID: id, Name: name, PriceScale: priceScale})
	r.byName[name] = len(r.instruments) - 1
	r.byID[id] = len(r.instruments) - 1
	return nil
}

// Instrument returns the instrument registered under id.
func (r *Registry) Instrument(id uint32) (Instrument, bool) {
	if r == nil {
		return Instrument{}, false
	}
	idx, ok := r.byID[id]
	if !ok {
		return Instrument{}, false
	}
	return r.instruments[idx], true
}

// IDByName returns the bus id for a name.
func (r *Registry) IDByName(name string) (uint32, bool) {
	if r == nil {
		return 0, false
	}
	idx, ok := r.byName[name]
	if !ok {
		return 0, false
	}
	return r.instruments[idx].ID, true
}

// Name returns the registered name or a numeric fallback.
func (r *Registry) Name(id uint32) string {
	if inst, ok := r.Instrument(id); ok {
		return inst.Name
	}
	return fmt.Sprintf("#%d", id)
}

// Count returns the number of registered instruments.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	return len(r.instruments)
}

// Instruments returns the registered instruments in registration order.
func (r *Registry) Instruments() []Instrument {
	if r == nil {
		return nil
	}
	return append([]Instrument(nil), r.instruments...)
}

// FormatPrice renders p with the instrument's price scale, or with
// PricePrecision when the instrument is unknown.
func (r *Registry) FormatPrice(id uint32, p Price) string {
	if inst, ok := r.Instrument(id); ok {
		return p.Scaled(inst.PriceScale).String()
	}
	return p.Decimal().String()
}
