package chaos

import (
	"math/rand"
	"time"

	"github.com/yanun0323/errors"
)

// Config controls fault injection on a stream of items.
type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	ReorderWindow int
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return errors.New("dropRate must be between 0 and 1")
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return errors.New("duplicateRate must be between 0 and 1")
	}
	if c.ReorderWindow <= 0 {
		return errors.New("reorderWindow must be >= 1")
	}
	return nil
}

// Engine drops, duplicates and reorders the items fed to it. The same seed
// yields the same output for the same input.
type Engine[T any] struct {
	cfg     Config
	rng     *rand.Rand
	pending []T

	dropped    int
	duplicated int
}

// NewEngine creates a chaos engine with validation.
func NewEngine[T any](cfg Config) (*Engine[T], error) {
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine[T]{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Process applies chaos to a single item and returns the items to emit.
func (e *Engine[T]) Process(item T) []T {
	if e == nil {
		return []T{item}
	}
	if e.shouldDrop() {
		e.dropped++
		return nil
	}
	if e.cfg.ReorderWindow <= 1 {
		return e.applyDuplicate(item)
	}
	e.pending = append(e.pending, item)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	return e.applyDuplicate(e.takeRandom())
}

// Flush returns any buffered items after the input ends.
func (e *Engine[T]) Flush() []T {
	if e == nil || len(e.pending) == 0 {
		return nil
	}
	out := make([]T, 0, len(e.pending))
	for len(e.pending) > 0 {
		out = append(out, e.applyDuplicate(e.takeRandom())...)
	}
	return out
}

// Stats reports how many items were dropped and duplicated so far.
func (e *Engine[T]) Stats() (dropped, duplicated int) {
	if e == nil {
		return 0, 0
	}
	return e.dropped, e.duplicated
}

func (e *Engine[T]) takeRandom() T {
	idx := e.rng.Intn(len(e.pending))
	item := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return item
}

func (e *Engine[T]) shouldDrop() bool {
	return e.cfg.DropRate > 0 && e.rng.Float64() < e.cfg.DropRate
}

func (e *Engine[T]) applyDuplicate(item T) []T {
	out := []T{item}
	if e.cfg.DuplicateRate > 0 && e.rng.Float64() < e.cfg.DuplicateRate {
		e.duplicated++
		out = append(out, item)
	}
	return out
}
