package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddInstrument("FDAX", 3, 2))
	require.Error(t, r.AddInstrument("FDAX", 4, 2))
	require.Error(t, r.AddInstrument("FESX", 3, 2))
	require.Error(t, r.AddInstrument("BAD", InstrumentNotSet, 2))
	require.Error(t, r.AddInstrument("", 5, 2))

	id, ok := r.IDByName("FDAX")
	require.True(t, ok)
	assert.Equal(t, uint32(3), id)
	assert.Equal(t, "FDAX", r.Name(3))
	assert.Equal(t, "#9", r.Name(9))
	assert.Equal(t, 1, r.Count())

	var nilReg *Registry
	assert.Zero(t, nilReg.Count())
	assert.Equal(t, "#1", nilReg.Name(1))
}

func TestPriceRendering(t *testing.T) {
	p, err := ParsePrice("101.25")
	require.NoError(t, err)
	assert.Equal(t, Price(1012500000000), p)
	assert.Equal(t, "101.25", p.Decimal().String())

	r := NewRegistry()
	require.NoError(t, r.AddInstrument("TICKS", 7, 0))
	assert.Equal(t, "89", r.FormatPrice(7, 89))
	assert.Equal(t, "0.0000000089", r.FormatPrice(8, 89))

	_, err = ParsePrice("abc")
	require.Error(t, err)
}

func TestUint128Bytes(t *testing.T) {
	u := Uint128FromBytes([]byte{0xab, 0xcd})
	assert.Equal(t, Uint128{Hi: 0xabcd000000000000}, u)
	b := u.Bytes()
	assert.Equal(t, byte(0xab), b[0])
	assert.Equal(t, u, Uint128FromBytes(b[:]))
	assert.Equal(t, uint8(0xcd), u.Byte(14))
	assert.Equal(t, uint8(0xab), u.Byte(15))
	assert.True(t, Uint128{}.IsZero())
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "tick_to_cancel", ModuleTickToCancel.String())
	assert.Equal(t, "trigger", EventTrigger.String())
	assert.Equal(t, "tcp_consumer", NotificationTcpConsumer.String())
}
