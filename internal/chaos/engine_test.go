package chaos

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, cfg Config, in []int) []int {
	t.Helper()
	e, err := NewEngine[int](cfg)
	require.NoError(t, err)
	var out []int
	for _, v := range in {
		out = append(out, e.Process(v)...)
	}
	return append(out, e.Flush()...)
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestEnginePassThrough(t *testing.T) {
	in := sequence(50)
	assert.Equal(t, in, run(t, Config{Seed: 1}, in))
}

func TestEngineDropAll(t *testing.T) {
	e, err := NewEngine[int](Config{Seed: 1, DropRate: 1})
	require.NoError(t, err)
	for _, v := range sequence(10) {
		assert.Empty(t, e.Process(v))
	}
	assert.Empty(t, e.Flush())
	dropped, duplicated := e.Stats()
	assert.Equal(t, 10, dropped)
	assert.Zero(t, duplicated)
}

func TestEngineDuplicateAll(t *testing.T) {
	out := run(t, Config{Seed: 1, DuplicateRate: 1}, []int{1, 2, 3})
	assert.Equal(t, []int{1, 1, 2, 2, 3, 3}, out)
}

func TestEngineReorderKeepsItems(t *testing.T) {
	in := sequence(100)
	out := run(t, Config{Seed: 7, ReorderWindow: 8}, in)
	require.Len(t, out, len(in))
	assert.NotEqual(t, in, out)

	sorted := append([]int(nil), out...)
	sort.Ints(sorted)
	assert.Equal(t, in, sorted)
}

func TestEngineDeterministic(t *testing.T) {
	cfg := Config{Seed: 42, DropRate: 0.2, DuplicateRate: 0.1, ReorderWindow: 4}
	in := sequence(200)
	assert.Equal(t, run(t, cfg, in), run(t, cfg, in))
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		desc string
		cfg  Config
		ok   bool
	}{
		{desc: "valid", cfg: Config{DropRate: 0.5, DuplicateRate: 0.5, ReorderWindow: 1}, ok: true},
		{desc: "drop rate above one", cfg: Config{DropRate: 1.5, ReorderWindow: 1}},
		{desc: "negative duplicate rate", cfg: Config{DuplicateRate: -0.1, ReorderWindow: 1}},
		{desc: "zero window", cfg: Config{}},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
