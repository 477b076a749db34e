package notify

import (
	"github.com/yanun0323/logs"

	"hwstrat/internal/bus"
	"hwstrat/internal/codec"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

type State uint8

const (
	StateIdle State = iota
	StateWord1
	StateWord2
	StateWord3
)

func (s State) String() string {
	switch s {
	case StateWord1:
		return "word1"
	case StateWord2:
		return "word2"
	case StateWord3:
		return "word3"
	default:
		return "idle"
	}
}

// Inputs are the notification producers, one queue each.
type Inputs struct {
	ConfigAcks   *bus.Queue[schema.Notification]
	TickToTrade  *bus.Queue[schema.Notification]
	TickToCancel *bus.Queue[schema.Notification]
	TcpConsumer  *bus.Queue[schema.Notification]
}

// Mux serializes notifications onto the host DMA channel. A notification
// is selected in Idle and then written one word per step; no other
// notification starts before its last word is out.
type Mux struct {
	in      Inputs
	out     *bus.Queue[schema.DMAWord]
	metrics *obs.Metrics
	onGrant func(schema.Notification)

	state   State
	current schema.Notification
	words   int
}

func NewMux(in Inputs, out *bus.Queue[schema.DMAWord], metrics *obs.Metrics) *Mux {
	return &Mux{in: in, out: out, metrics: metrics}
}

// OnGrant registers fn to observe every notification as it is selected.
func (m *Mux) OnGrant(fn func(schema.Notification)) {
	m.onGrant = fn
}

func (m *Mux) State() State {
	return m.state
}

// Step makes one transition.
func (m *Mux) Step() (bool, error) {
	if m.state == StateIdle {
		return m.selectNext(), nil
	}

	if m.out.Full() {
		m.metrics.IncBackpressure(obs.StageNotificationMux)
		return false, nil
	}
	index := int(m.state - StateWord1 + 1)
	w, err := codec.NotificationWord(m.current, index)
	if err != nil {
		return true, err
	}
	_ = m.out.TryPush(w)

	if index >= m.words {
		m.state = StateIdle
		m.metrics.IncNotification(m.current.Kind)
		m.current = schema.Notification{}
		return true, nil
	}
	m.state++
	return true, nil
}

// selectNext takes the highest priority pending notification.
func (m *Mux) selectNext() bool {
	for _, q := range []*bus.Queue[schema.Notification]{
		m.in.ConfigAcks,
		m.in.TickToTrade,
		m.in.TickToCancel,
		m.in.TcpConsumer,
	} {
		if q == nil {
			continue
		}
		n, ok := q.TryPop()
		if !ok {
			continue
		}
		words := codec.NotificationWordCount(n.Header.Source)
		if words == 0 {
			logs.Errorf("[NOTIFICATIONS] dropping %s notification from unknown source %d", n.Kind, n.Header.Source)
			m.metrics.IncIgnoredMessage()
			return true
		}
		m.current = n
		m.words = words
		m.state = StateWord1
		if m.onGrant != nil {
			m.onGrant(n)
		}
		return true
	}
	return false
}
