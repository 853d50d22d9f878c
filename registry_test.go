package videoreader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImage(t *testing.T) *Image {
	t.Helper()
	img, err := NewImage(Shape{Height: 2, Width: 3, Channels: 1, ScalarType: ScalarU8})
	require.NoError(t, err)
	return img
}

func TestRegistry_RegisterTake(t *testing.T) {
	r := NewRegistry()
	img := newTestImage(t)
	addr := uintptr(img.Pointer())

	require.NoError(t, r.Register(addr, img))
	assert.True(t, r.Contains(addr))
	assert.Equal(t, 1, r.Len())

	buf, err := r.Take(addr)
	require.NoError(t, err)
	assert.Same(t, img, buf)
	assert.False(t, r.Contains(addr))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()
	img := newTestImage(t)
	addr := uintptr(img.Pointer())

	assert.ErrorIs(t, r.Register(0, img), ErrUnknownAddress)

	require.NoError(t, r.Register(addr, img))
	assert.ErrorIs(t, r.Register(addr, img), ErrDuplicateAddress)
	assert.Equal(t, 1, r.Len())

	_, err := r.Take(addr + 1)
	assert.ErrorIs(t, err, ErrUnknownAddress)

	_, err = r.Take(addr)
	require.NoError(t, err)
	_, err = r.Take(addr)
	assert.ErrorIs(t, err, ErrUnknownAddress)
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 3; i++ {
		img := newTestImage(t)
		require.NoError(t, r.Register(uintptr(img.Pointer()), img))
	}
	assert.Equal(t, 3, r.Drain())
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.Drain())
}
