package obs

import (
	"sync/atomic"
	"time"
)

const (
	traceEpochShift  = 48
	traceCounterMask = 1<<traceEpochShift - 1
)

// TraceGenerator hands out the ids that tie a trade event to the decision,
// trigger and archive rows it produced. The upper 16 bits carry a run
// epoch, the rest a counter.
type TraceGenerator struct {
	epoch uint64
	next  atomic.Uint64
}

// NewTraceGenerator returns a generator with epoch 0 whose first id is
// seed+1.
func NewTraceGenerator(seed uint64) *TraceGenerator {
	g := &TraceGenerator{}
	g.next.Store(seed & traceCounterMask)
	return g
}

// NewRunTraceGenerator derives the epoch from the low 16 bits of the start
// time in seconds. Epoch 0 is reserved for NewTraceGenerator.
func NewRunTraceGenerator(start time.Time) *TraceGenerator {
	g := &TraceGenerator{epoch: uint64(uint16(start.Unix()))}
	if g.epoch == 0 {
		g.epoch = 1
	}
	return g
}

func (g *TraceGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return g.epoch<<traceEpochShift | g.next.Add(1)&traceCounterMask
}

// SplitTrace returns the epoch and counter of a trace id.
func SplitTrace(id uint64) (epoch uint16, counter uint64) {
	return uint16(id >> traceEpochShift), id & traceCounterMask
}
