package obs

import (
	"sync/atomic"
	"time"

	"hwstrat/internal/schema"
)

const (
	maxEventType        = int(schema.EventStrategyDecision)
	maxNotificationKind = int(schema.NotificationTcpConsumer)
	maxModuleID         = 15
	maxTriggerPort      = 7
)

// Stage names a pipeline component for backpressure accounting.
type Stage uint8

const (
	StageDemux Stage = iota
	StageBookUpdater
	StageBookCache
	StageConfig
	StageTickToCancel
	StageTickToTrade
	StageTcpConsumer
	StageTriggerArbiter
	StageNotificationMux
	stageCount
)

func (s Stage) String() string {
	switch s {
	case StageDemux:
		return "demux"
	case StageBookUpdater:
		return "book_updater"
	case StageBookCache:
		return "book_cache"
	case StageConfig:
		return "config"
	case StageTickToCancel:
		return "tick_to_cancel"
	case StageTickToTrade:
		return "tick_to_trade"
	case StageTcpConsumer:
		return "tcp_consumer"
	case StageTriggerArbiter:
		return "trigger_arbiter"
	case StageNotificationMux:
		return "notification_mux"
	default:
		return "unknown"
	}
}

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	eventCounts        [maxEventType + 1]uint64
	notificationCounts [maxNotificationKind + 1]uint64
	evaluations        [maxModuleID + 1]uint64
	decisions          [maxModuleID + 1]uint64
	triggers           [maxTriggerPort + 1]uint64
	backpressure       [stageCount]uint64
	configCommits      uint64
	abortedMessages    uint64
	ignoredMessages    uint64
	checksumErrors     uint64
	queueDrops         uint64
	queueClosed        uint64
	steps              uint64

	eventLatency    LatencyStats
	decisionLatency LatencyStats
	stepLatency     LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts        map[schema.EventType]uint64
	NotificationCounts map[schema.NotificationKind]uint64
	Evaluations        map[schema.ModuleID]uint64
	Decisions          map[schema.ModuleID]uint64
	Triggers           map[int]uint64
	Backpressure       map[Stage]uint64
	ConfigCommits      uint64
	AbortedMessages    uint64
	IgnoredMessages    uint64
	ChecksumErrors     uint64
	QueueDrops         uint64
	QueueClosed        uint64
	Steps              uint64
	EventLatency       LatencySnapshot
	DecisionLatency    LatencySnapshot
	StepLatency        LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent increments counters and tracks event latency when timestamps are present.
func (m *Metrics) ObserveEvent(header schema.EventHeader) {
	if m == nil {
		return
	}
	idx := int(header.Type)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
	if header.TsEvent > 0 && header.TsRecv > 0 {
		delta := header.TsRecv - header.TsEvent
		if delta >= 0 {
			m.eventLatency.Observe(time.Duration(delta))
		}
	}
}

// IncNotification counts a notification handed to the host.
func (m *Metrics) IncNotification(kind schema.NotificationKind) {
	if m == nil {
		return
	}
	if idx := int(kind); idx < len(m.notificationCounts) {
		atomic.AddUint64(&m.notificationCounts[idx], 1)
	}
}

// IncEvaluation counts a strategy evaluation, fired or not.
func (m *Metrics) IncEvaluation(engine schema.ModuleID) {
	if m == nil {
		return
	}
	if idx := int(engine); idx < len(m.evaluations) {
		atomic.AddUint64(&m.evaluations[idx], 1)
	}
}

// IncDecision counts a strategy decision that fired a trigger.
func (m *Metrics) IncDecision(engine schema.ModuleID) {
	if m == nil {
		return
	}
	if idx := int(engine); idx < len(m.decisions) {
		atomic.AddUint64(&m.decisions[idx], 1)
	}
}

// IncTrigger counts a trigger forwarded by the arbiter from port.
func (m *Metrics) IncTrigger(port int) {
	if m == nil {
		return
	}
	if port >= 0 && port < len(m.triggers) {
		atomic.AddUint64(&m.triggers[port], 1)
	}
}

// IncBackpressure records a step where stage held its input because an
// output queue was full.
func (m *Metrics) IncBackpressure(stage Stage) {
	if m == nil {
		return
	}
	if stage < stageCount {
		atomic.AddUint64(&m.backpressure[stage], 1)
	}
}

func (m *Metrics) IncConfigCommit() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.configCommits, 1)
}

// IncAbortedMessage records a multi-word host message cut short by a terminal
// word or a new header.
func (m *Metrics) IncAbortedMessage() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.abortedMessages, 1)
}

// IncIgnoredMessage records an unknown host message drained by the config store.
func (m *Metrics) IncIgnoredMessage() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ignoredMessages, 1)
}

func (m *Metrics) IncChecksumError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.checksumErrors, 1)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObserveStep counts a scheduler step and its duration.
func (m *Metrics) ObserveStep(d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.steps, 1)
	m.stepLatency.Observe(d)
}

// ObserveDecision measures the time between a trade event and its decision.
func (m *Metrics) ObserveDecision(d time.Duration) {
	if m == nil {
		return
	}
	m.decisionLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	notifications := make(map[schema.NotificationKind]uint64)
	for i := range m.notificationCounts {
		if v := atomic.LoadUint64(&m.notificationCounts[i]); v > 0 {
			notifications[schema.NotificationKind(i)] = v
		}
	}
	evaluations := make(map[schema.ModuleID]uint64)
	decisions := make(map[schema.ModuleID]uint64)
	for i := range m.decisions {
		if v := atomic.LoadUint64(&m.evaluations[i]); v > 0 {
			evaluations[schema.ModuleID(i)] = v
		}
		if v := atomic.LoadUint64(&m.decisions[i]); v > 0 {
			decisions[schema.ModuleID(i)] = v
		}
	}
	triggers := make(map[int]uint64)
	for i := range m.triggers {
		if v := atomic.LoadUint64(&m.triggers[i]); v > 0 {
			triggers[i] = v
		}
	}
	backpressure := make(map[Stage]uint64)
	for i := range m.backpressure {
		if v := atomic.LoadUint64(&m.backpressure[i]); v > 0 {
			backpressure[Stage(i)] = v
		}
	}
	return Snapshot{
		EventCounts:        eventCounts,
		NotificationCounts: notifications,
		Evaluations:        evaluations,
		Decisions:          decisions,
		Triggers:           triggers,
		Backpressure:       backpressure,
		ConfigCommits:      atomic.LoadUint64(&m.configCommits),
		AbortedMessages:    atomic.LoadUint64(&m.abortedMessages),
		IgnoredMessages:    atomic.LoadUint64(&m.ignoredMessages),
		ChecksumErrors:     atomic.LoadUint64(&m.checksumErrors),
		QueueDrops:         atomic.LoadUint64(&m.queueDrops),
		QueueClosed:        atomic.LoadUint64(&m.queueClosed),
		Steps:              atomic.LoadUint64(&m.steps),
		EventLatency:       m.eventLatency.Snapshot(),
		DecisionLatency:    m.decisionLatency.Snapshot(),
		StepLatency:        m.stepLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
