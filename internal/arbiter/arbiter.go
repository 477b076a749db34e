package arbiter

import (
	"hwstrat/internal/bus"
	"hwstrat/internal/obs"
)

// Trigger ports in arbitration order.
const (
	PortTickToCancel = iota
	PortTickToTrade
	PortTcpConsumer
	PortSoftwareTrigger
	PortCount
)

type State uint8

const (
	StateIdle State = iota
	StateForwarding
)

func (s State) String() string {
	if s == StateForwarding {
		return "forwarding"
	}
	return "idle"
}

// Arbiter merges several producers onto one output, round-robin between
// messages. Once a message has started, only its owner is served until
// its terminal word has been forwarded.
type Arbiter[T any] struct {
	inputs  []*bus.Queue[T]
	out     *bus.Queue[T]
	isLast  func(T) bool
	metrics *obs.Metrics
	onGrant func(port int, first T)

	state State
	last  int
	owner int
}

// New builds an arbiter over inputs. isLast reports whether a word ends
// its message.
func New[T any](out *bus.Queue[T], isLast func(T) bool, metrics *obs.Metrics, inputs ...*bus.Queue[T]) *Arbiter[T] {
	return &Arbiter[T]{
		inputs:  inputs,
		out:     out,
		isLast:  isLast,
		metrics: metrics,
		last:    len(inputs) - 1,
	}
}

// OnGrant registers fn to observe the first word of every message granted
// the output, with the port it came from.
func (a *Arbiter[T]) OnGrant(fn func(port int, first T)) {
	a.onGrant = fn
}

func (a *Arbiter[T]) State() State {
	return a.state
}

// Owner returns the input being forwarded, or -1 when idle.
func (a *Arbiter[T]) Owner() int {
	if a.state != StateForwarding {
		return -1
	}
	return a.owner
}

// Step forwards at most one word.
func (a *Arbiter[T]) Step() bool {
	if len(a.inputs) == 0 {
		return false
	}

	port := a.owner
	if a.state == StateIdle {
		port = a.pick()
		if port < 0 {
			return false
		}
	}

	in := a.inputs[port]
	w, ok := in.Peek()
	if !ok {
		return false
	}
	if a.out.Full() {
		a.metrics.IncBackpressure(obs.StageTriggerArbiter)
		return false
	}
	in.TryPop()
	_ = a.out.TryPush(w)

	if a.state == StateIdle {
		a.last = port
		a.metrics.IncTrigger(port)
		if a.onGrant != nil {
			a.onGrant(port, w)
		}
	}
	if a.isLast(w) {
		a.state = StateIdle
	} else {
		a.state = StateForwarding
		a.owner = port
	}
	return true
}

// pick scans from the port after the last one served, wrapping.
func (a *Arbiter[T]) pick() int {
	n := len(a.inputs)
	for i := 1; i <= n; i++ {
		port := (a.last + i) % n
		if !a.inputs[port].Empty() {
			return port
		}
	}
	return -1
}
