package arbiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwstrat/internal/bus"
	"hwstrat/internal/obs"
)

type word struct {
	src  int
	seq  int
	last bool
}

func isLast(w word) bool { return w.last }

func push(t *testing.T, q *bus.Queue[word], src int, words int) {
	t.Helper()
	for i := 0; i < words; i++ {
		require.NoError(t, q.TryPush(word{src: src, seq: i, last: i == words-1}))
	}
}

func newInputs(n, depth int) []*bus.Queue[word] {
	inputs := make([]*bus.Queue[word], n)
	for i := range inputs {
		inputs[i] = bus.NewQueue[word]("in", depth)
	}
	return inputs
}

func drain(a *Arbiter[word], out *bus.Queue[word]) []word {
	var got []word
	for {
		progressed := a.Step()
		for !out.Empty() {
			w, _ := out.TryPop()
			got = append(got, w)
		}
		if !progressed {
			return got
		}
	}
}

func TestArbiterRoundRobin(t *testing.T) {
	inputs := newInputs(PortCount, 8)
	out := bus.NewQueue[word]("out", 8)
	metrics := obs.NewMetrics()
	a := New(out, isLast, metrics, inputs...)
	var granted []int
	a.OnGrant(func(port int, first word) {
		assert.Equal(t, port, first.src)
		granted = append(granted, port)
	})

	for port := range inputs {
		push(t, inputs[port], port, 1)
		push(t, inputs[port], port, 1)
	}

	got := drain(a, out)
	require.Len(t, got, 8)
	order := make([]int, len(got))
	for i, w := range got {
		order[i] = w.src
	}
	assert.Equal(t, []int{0, 1, 2, 3, 0, 1, 2, 3}, order)
	assert.Equal(t, order, granted)

	snap := metrics.Snapshot()
	for port := 0; port < PortCount; port++ {
		assert.Equal(t, uint64(2), snap.Triggers[port])
	}
}

func TestArbiterNeverInterleaves(t *testing.T) {
	testCases := []struct {
		desc   string
		bursts []int
	}{
		{desc: "single word messages", bursts: []int{1, 1, 1, 1}},
		{desc: "multi word messages", bursts: []int{3, 6, 2, 6}},
		{desc: "some ports idle", bursts: []int{0, 4, 0, 6}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			inputs := newInputs(len(tc.bursts), 16)
			out := bus.NewQueue[word]("out", 1)
			a := New(out, isLast, nil, inputs...)

			total := 0
			for port, n := range tc.bursts {
				if n == 0 {
					continue
				}
				push(t, inputs[port], port, n)
				push(t, inputs[port], port, n)
				total += 2 * n
			}

			got := drain(a, out)
			require.Len(t, got, total)

			for i := 0; i < len(got); {
				src := got[i].src
				for seq := 0; ; seq++ {
					require.Equal(t, src, got[i].src, "interleaved at %d", i)
					require.Equal(t, seq, got[i].seq)
					i++
					if got[i-1].last {
						break
					}
				}
			}
		})
	}
}

func TestArbiterHoldsOwnerUntilTerminal(t *testing.T) {
	inputs := newInputs(2, 8)
	out := bus.NewQueue[word]("out", 8)
	a := New(out, isLast, nil, inputs...)

	require.NoError(t, inputs[0].TryPush(word{src: 0, seq: 0}))
	require.True(t, a.Step())
	assert.Equal(t, StateForwarding, a.State())
	assert.Equal(t, 0, a.Owner())

	// Port 1 is ready but port 0 owns the output.
	push(t, inputs[1], 1, 1)
	assert.False(t, a.Step())
	assert.Equal(t, 1, out.Len())

	require.NoError(t, inputs[0].TryPush(word{src: 0, seq: 1, last: true}))
	require.True(t, a.Step())
	assert.Equal(t, StateIdle, a.State())
	assert.Equal(t, -1, a.Owner())

	require.True(t, a.Step())
	w, _ := out.TryPop()
	assert.Equal(t, 0, w.src)
}

func TestArbiterBackpressure(t *testing.T) {
	inputs := newInputs(1, 4)
	out := bus.NewQueue[word]("out", 1)
	metrics := obs.NewMetrics()
	a := New(out, isLast, metrics, inputs...)

	push(t, inputs[0], 0, 1)
	push(t, inputs[0], 0, 1)
	require.True(t, a.Step())
	assert.False(t, a.Step())
	assert.Equal(t, 1, inputs[0].Len())
	assert.Equal(t, uint64(1), metrics.Snapshot().Backpressure[obs.StageTriggerArbiter])
}
