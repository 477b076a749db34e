package tcp

import (
	"math/bits"

	"github.com/yanun0323/logs"

	"hwstrat/internal/bus"
	"hwstrat/internal/codec"
	"hwstrat/internal/obs"
	"hwstrat/internal/schema"
)

// Session policy defaults.
const (
	DefaultTriggerSession uint16 = 64
	DefaultNotifySession  uint16 = 96
	DefaultCollectionBase uint16 = 1024
	wordBytes             uint32 = 16
	checksumErrorBit      uint32 = 1
)

// Policy selects which sessions trigger and which report.
type Policy struct {
	TriggerSession uint16
	NotifySession  uint16
	CollectionBase uint16
}

// DefaultPolicy returns the standard session policy.
func DefaultPolicy() Policy {
	return Policy{
		TriggerSession: DefaultTriggerSession,
		NotifySession:  DefaultNotifySession,
		CollectionBase: DefaultCollectionBase,
	}
}

// Counters accumulate over one TCP packet and reset on its last word.
type Counters struct {
	Bytes   uint32
	Words   uint32
	Session uint16
}

// Consumer counts TCP reply payload words per packet and applies the
// session policy on the packet's last word.
type Consumer struct {
	in            *bus.Queue[schema.TcpReplyWord]
	triggers      *bus.Queue[codec.TriggerWord]
	notifications *bus.Queue[schema.Notification]
	policy        Policy
	metrics       *obs.Metrics

	counters Counters
}

func NewConsumer(
	in *bus.Queue[schema.TcpReplyWord],
	triggers *bus.Queue[codec.TriggerWord],
	notifications *bus.Queue[schema.Notification],
	policy Policy,
	metrics *obs.Metrics,
) *Consumer {
	return &Consumer{
		in:            in,
		triggers:      triggers,
		notifications: notifications,
		policy:        policy,
		metrics:       metrics,
	}
}

func (c *Consumer) Counters() Counters {
	return c.counters
}

// Step consumes at most one word. A last word is held until every output
// it feeds has room.
func (c *Consumer) Step() (bool, error) {
	w, ok := c.in.Peek()
	if !ok {
		return false, nil
	}

	session := c.counters.Session
	if c.counters.Words == 0 {
		session = uint16(w.ID & 0xff)
	}

	if !w.Last {
		c.in.TryPop()
		c.counters.Session = session
		c.counters.Words++
		c.counters.Bytes += wordBytes
		return true, nil
	}

	checksumError := w.User&checksumErrorBit != 0
	trigger := !checksumError && session == c.policy.TriggerSession
	notify := session == c.policy.NotifySession
	if (trigger && c.triggers.Full()) || (notify && c.notifications.Full()) {
		c.metrics.IncBackpressure(obs.StageTcpConsumer)
		return false, nil
	}
	c.in.TryPop()
	c.counters.Session = session
	c.counters.Bytes += uint32(bits.OnesCount16(w.Keep))

	logs.Infof("[TCP_CONSUMER] id=%d user=%#x data=%s bytes=%d words=%d",
		w.ID, w.User, w.Data, c.counters.Bytes, c.counters.Words)

	if checksumError {
		c.metrics.IncChecksumError()
	}
	if trigger {
		collection := c.policy.CollectionBase + uint16(w.User&0xff) + uint16(w.Data.Lo&0xff)
		cmd, err := codec.NewTriggerCommandValues(collection)
		if err != nil {
			return true, err
		}
		tw, err := codec.EncodeTrigger(cmd)
		if err != nil {
			return true, err
		}
		logs.Infof("[TCP_CONSUMER] data on session %d, triggering collection %d", session, collection)
		_ = c.triggers.TryPush(tw)
	}
	if notify {
		_ = c.notifications.TryPush(codec.NewTcpSessionNotification(schema.TcpSessionReport{
			Words:   c.counters.Words,
			Bytes:   c.counters.Bytes,
			Keep:    uint32(w.Keep),
			User:    uint8(w.User),
			Session: session,
		}))
	}

	c.counters = Counters{}
	return true, nil
}
