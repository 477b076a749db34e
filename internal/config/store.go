package config

import (
	"github.com/yanun0323/logs"

	"hwstrat/internal/bus"
	"hwstrat/internal/codec"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

// State is the position of the store in the current host message.
type State uint8

const (
	StateIdle State = iota
	StateReadingConfigWord2
	StateReadingConfigWord3
	StateReadingSoftwareTriggerArg1
	StateReadingSoftwareTriggerArg2
	StateReadingSoftwareTriggerArg3
	StateReadingSoftwareTriggerArg4
	StateReadingSoftwareTriggerArg5
	StateIgnoringUnknownMessage
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReadingConfigWord2:
		return "config_word2"
	case StateReadingConfigWord3:
		return "config_word3"
	case StateReadingSoftwareTriggerArg1, StateReadingSoftwareTriggerArg2, StateReadingSoftwareTriggerArg3,
		StateReadingSoftwareTriggerArg4, StateReadingSoftwareTriggerArg5:
		return "software_trigger_arg"
	case StateIgnoringUnknownMessage:
		return "ignoring"
	default:
		return "unknown"
	}
}

// AllArgumentsValid is the mask applied to software triggers.
const AllArgumentsValid uint8 = 0b11111

// Client is one lookup port of the store.
type Client struct {
	Requests  *bus.Queue[uint32]
	Responses *bus.Queue[schema.InstrumentConfig]
}

// Options tunes the store beyond its queues.
type Options struct {
	// HonorArgBitmap forwards the host's arg bitmap on software triggers
	// instead of marking every slot valid.
	HonorArgBitmap bool
	// OnCommit is called after a configuration is written to the table.
	OnCommit func(schema.ConfigUpdate)
}

// Store owns the per-instrument configuration table and parses host
// messages one word per step.
type Store struct {
	table    []schema.InstrumentConfig
	in       *bus.Queue[schema.DMAWord]
	acks     *bus.Queue[schema.Notification]
	triggers *bus.Queue[codec.TriggerWord]
	clients  []Client
	opts     Options
	metrics  *obs.Metrics

	state      State
	nextClient int
	cfgMsg     schema.ConfigUpdate
	swMsg      schema.SoftwareTrigger
}

// NewStore allocates a store for instrumentCount instruments.
func NewStore(
	instrumentCount int,
	in *bus.Queue[schema.DMAWord],
	acks *bus.Queue[schema.Notification],
	triggers *bus.Queue[codec.TriggerWord],
	metrics *obs.Metrics,
	opts Options,
	clients ...Client,
) *Store {
	return &Store{
		table:    make([]schema.InstrumentConfig, instrumentCount),
		in:       in,
		acks:     acks,
		triggers: triggers,
		clients:  clients,
		opts:     opts,
		metrics:  metrics,
	}
}

func (s *Store) State() State {
	return s.state
}

// Lookup returns the configuration of id, or the zero configuration.
func (s *Store) Lookup(id uint32) schema.InstrumentConfig {
	if int64(id) >= int64(len(s.table)) {
		return schema.InstrumentConfig{}
	}
	return s.table[id]
}

// Commit writes cfg into the table. It reports false when the instrument id
// is outside the table.
func (s *Store) Commit(cfg schema.InstrumentConfig) bool {
	if int64(cfg.InstrumentID) >= int64(len(s.table)) {
		return false
	}
	s.table[cfg.InstrumentID] = cfg
	return true
}

// Table returns a copy of every configuration.
func (s *Store) Table() []schema.InstrumentConfig {
	out := make([]schema.InstrumentConfig, len(s.table))
	copy(out, s.table)
	return out
}

// Step consumes at most one host word. Lookups are only answered on idle
// steps that consumed no word. A routable header seen mid-message ends the
// partial message and is left queued for the next step.
func (s *Store) Step() (bool, error) {
	w, ok := s.in.Peek()
	if !ok {
		if s.state == StateIdle {
			return s.serveLookup(), nil
		}
		return false, nil
	}
	if s.state != StateIdle && codec.IsRoutableHostHeader(codec.HostHeaderOf(w)) {
		s.interrupt()
		return true, nil
	}

	switch s.state {
	case StateIdle:
		s.in.TryPop()
		s.onHeader(w)

	case StateReadingConfigWord2:
		s.in.TryPop()
		if s.abortOn(w, "configuration") {
			return true, nil
		}
		if err := codec.ReadConfigUpdateWord(&s.cfgMsg, 2, w); err != nil {
			return true, err
		}
		s.state = StateReadingConfigWord3

	case StateReadingConfigWord3:
		if s.acks.Full() {
			s.metrics.IncBackpressure(obs.StageConfig)
			return false, nil
		}
		s.in.TryPop()
		if err := codec.ReadConfigUpdateWord(&s.cfgMsg, 3, w); err != nil {
			return true, err
		}
		s.commit()
		s.finish(w)

	case StateReadingSoftwareTriggerArg1, StateReadingSoftwareTriggerArg2,
		StateReadingSoftwareTriggerArg3, StateReadingSoftwareTriggerArg4:
		s.in.TryPop()
		if s.abortOn(w, "software trigger") {
			return true, nil
		}
		index := int(s.state-StateReadingSoftwareTriggerArg1) + 2
		if err := codec.ReadSoftwareTriggerWord(&s.swMsg, index, w); err != nil {
			return true, err
		}
		s.state++

	case StateReadingSoftwareTriggerArg5:
		if s.triggers.Full() {
			s.metrics.IncBackpressure(obs.StageConfig)
			return false, nil
		}
		s.in.TryPop()
		if err := codec.ReadSoftwareTriggerWord(&s.swMsg, codec.SoftwareTriggerWordCount, w); err != nil {
			return true, err
		}
		if err := s.issueSoftwareTrigger(); err != nil {
			return true, err
		}
		s.finish(w)

	case StateIgnoringUnknownMessage:
		s.in.TryPop()
		if w.Last {
			s.state = StateIdle
		}
	}
	return true, nil
}

func (s *Store) onHeader(w schema.DMAWord) {
	h := codec.HostHeaderOf(w)
	switch {
	case h.Dest == schema.ModuleInstrumentConfiguration &&
		h.MsgType == schema.MsgTypeUpdateInstrumentData &&
		h.Version == schema.HeaderVersion:
		logs.Infof("[CONF] incoming configuration message accepted, ack_request=%v", h.AckRequest)
		s.cfgMsg = schema.ConfigUpdate{}
		_ = codec.ReadConfigUpdateWord(&s.cfgMsg, 1, w)
		if s.abortOn(w, "configuration") {
			return
		}
		s.state = StateReadingConfigWord2

	case h.Dest == schema.ModuleSoftwareTrigger && h.Version == schema.HeaderVersion:
		s.swMsg = schema.SoftwareTrigger{}
		_ = codec.ReadSoftwareTriggerWord(&s.swMsg, 1, w)
		logs.Infof("[CONF] incoming software trigger message, collection_id=%#x arg_bitmap=%#x",
			s.swMsg.CollectionID, s.swMsg.ArgBitmap)
		if s.abortOn(w, "software trigger") {
			return
		}
		s.state = StateReadingSoftwareTriggerArg1

	default:
		logs.Errorf("[CONF] unknown host message ignored, version=%d dest=%d msg_type=%d", h.Version, h.Dest, h.MsgType)
		s.metrics.IncIgnoredMessage()
		if !w.Last {
			s.state = StateIgnoringUnknownMessage
		}
	}
}

// abortOn drops the partial message when w terminates it early.
func (s *Store) abortOn(w schema.DMAWord, what string) bool {
	if !w.Last {
		return false
	}
	logs.Errorf("[CONF] %s message cut short in state %s, discarded", what, s.state)
	s.metrics.IncAbortedMessage()
	s.state = StateIdle
	return true
}

// interrupt drops the partial message when a new header arrives before its
// final word.
func (s *Store) interrupt() {
	if s.state == StateIgnoringUnknownMessage {
		logs.Warnf("[CONF] header arrived while draining, resuming")
	} else {
		logs.Errorf("[CONF] message interrupted by a new header in state %s, discarded", s.state)
		s.metrics.IncAbortedMessage()
	}
	s.state = StateIdle
}

// finish closes a message on its final word. A final word without last
// leaves trailing words, which are drained.
func (s *Store) finish(w schema.DMAWord) {
	if w.Last {
		s.state = StateIdle
		return
	}
	logs.Errorf("[CONF] final word without last flag, draining trailing words")
	s.state = StateIgnoringUnknownMessage
}

func (s *Store) commit() {
	cfg := s.cfgMsg.Config
	if !s.Commit(cfg) {
		logs.Errorf("[CONF] instrument %d outside table of %d, configuration dropped", cfg.InstrumentID, len(s.table))
		s.metrics.IncAbortedMessage()
		return
	}
	logs.Infof("[CONF] configuration for instrument %#x updated, tick_to_cancel_threshold=%#x tick_to_cancel_collid=%#x",
		cfg.InstrumentID, cfg.TickToCancelThreshold, cfg.TickToCancelCollectionID)
	s.metrics.IncConfigCommit()
	_ = s.acks.TryPush(codec.NewConfigAck(cfg))
	if s.opts.OnCommit != nil {
		s.opts.OnCommit(s.cfgMsg)
	}
}

func (s *Store) issueSoftwareTrigger() error {
	mask := AllArgumentsValid
	if s.opts.HonorArgBitmap {
		if err := codec.ValidateMask(s.swMsg.ArgBitmap); err != nil {
			logs.Errorf("[CONF] software trigger arg_bitmap %#x not contiguous, sending all arguments", s.swMsg.ArgBitmap)
		} else {
			mask = s.swMsg.ArgBitmap
		}
	}
	cmd := schema.TriggerCommand{
		CollectionID: s.swMsg.CollectionID,
		ValidMask:    mask,
		Args:         s.swMsg.Args,
	}
	tw, err := codec.EncodeTrigger(cmd)
	if err != nil {
		return err
	}
	logs.Infof("[CONF] software trigger on collection %#x", cmd.CollectionID)
	_ = s.triggers.TryPush(tw)
	return nil
}

// serveLookup answers one client, round robin.
func (s *Store) serveLookup() bool {
	n := len(s.clients)
	for k := 0; k < n; k++ {
		i := (s.nextClient + k) % n
		cl := s.clients[i]
		if cl.Requests.Empty() {
			continue
		}
		if cl.Responses.Full() {
			s.metrics.IncBackpressure(obs.StageConfig)
			continue
		}
		id, _ := cl.Requests.TryPop()
		_ = cl.Responses.TryPush(s.Lookup(id))
		s.nextClient = (i + 1) % n
		return true
	}
	return false
}
