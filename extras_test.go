package videoreader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestDecodeExtras_Array(t *testing.T) {
	keys := []string{"pts", "pkt_dts", "key_frame"}
	blob, err := msgpack.Marshal([]any{int64(1024), int64(-512), true})
	require.NoError(t, err)

	e, err := DecodeExtras(blob, keys)
	require.NoError(t, err)
	require.Len(t, e, 3)

	pts, ok := e.Int64("pts")
	require.True(t, ok)
	assert.Equal(t, int64(1024), pts)

	dts, ok := e.Int64("pkt_dts")
	require.True(t, ok)
	assert.Equal(t, int64(-512), dts)

	assert.Equal(t, true, e["key_frame"])
}

func TestDecodeExtras_Map(t *testing.T) {
	blob, err := msgpack.Marshal(map[string]any{"exposure": 1250.5, "gain": 3})
	require.NoError(t, err)

	// maps carry their own keys; the requested order is irrelevant
	e, err := DecodeExtras(blob, []string{"gain", "exposure"})
	require.NoError(t, err)

	exposure, ok := e.Float64("exposure")
	require.True(t, ok)
	assert.InDelta(t, 1250.5, exposure, 1e-9)

	gain, ok := e.Float64("gain")
	require.True(t, ok)
	assert.Equal(t, 3.0, gain)
}

func TestDecodeExtras_Errors(t *testing.T) {
	short, err := msgpack.Marshal([]any{1})
	require.NoError(t, err)
	_, err = DecodeExtras(short, []string{"pts", "pkt_dts"})
	assert.ErrorIs(t, err, ErrExtrasMismatch)

	scalar, err := msgpack.Marshal(42)
	require.NoError(t, err)
	_, err = DecodeExtras(scalar, []string{"pts"})
	assert.ErrorIs(t, err, ErrExtrasMismatch)

	intKeys, err := msgpack.Marshal(map[int]any{1: "x"})
	require.NoError(t, err)
	_, err = DecodeExtras(intKeys, []string{"pts"})
	assert.ErrorIs(t, err, ErrExtrasMismatch)

	_, err = DecodeExtras([]byte{0xc1}, []string{"pts"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrExtrasMismatch)
}

func TestEncodeExtras_KeyOrder(t *testing.T) {
	keys := []string{"b", "a", "missing"}
	blob, err := EncodeExtras(Extras{"a": "first", "b": []byte{1, 2}}, keys)
	require.NoError(t, err)

	var raw []any
	require.NoError(t, msgpack.Unmarshal(blob, &raw))
	require.Len(t, raw, 3)
	assert.Equal(t, []byte{1, 2}, raw[0])
	assert.Equal(t, "first", raw[1])
	assert.Nil(t, raw[2])

	e, err := DecodeExtras(blob, keys)
	require.NoError(t, err)
	b, ok := e.Bytes("b")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, b)
}

func TestExtras_Accessors(t *testing.T) {
	e := Extras{"i8": int8(-3), "u64": uint64(7), "f": 0.25, "s": "x"}

	n, ok := e.Int64("i8")
	assert.True(t, ok)
	assert.Equal(t, int64(-3), n)

	f, ok := e.Float64("u64")
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)

	_, ok = e.Int64("f")
	assert.False(t, ok)
	_, ok = e.Float64("s")
	assert.False(t, ok)
	_, ok = e.Bytes("absent")
	assert.False(t, ok)
}
