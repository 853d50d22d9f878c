package videoreader

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameDescriptor_Layout(t *testing.T) {
	var d FrameDescriptor
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layout checked on 64-bit platforms")
	}
	assert.Equal(t, uintptr(0), unsafe.Offsetof(d.Height))
	assert.Equal(t, uintptr(16), unsafe.Offsetof(d.Stride))
	assert.Equal(t, uintptr(24), unsafe.Offsetof(d.Data))
	assert.Equal(t, uintptr(32), unsafe.Offsetof(d.UserData))
	assert.Equal(t, uintptr(40), unsafe.Sizeof(d))
}

func TestScalarType(t *testing.T) {
	tests := []struct {
		st   ScalarType
		name string
		size int
	}{
		{ScalarU8, "uint8", 1},
		{ScalarU16, "uint16", 2},
		{ScalarType(9), "ScalarType(9)", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.st.String())
			assert.Equal(t, tt.size, tt.st.Size())
		})
	}
}

func TestShape_Validate(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		want  error
	}{
		{"ok", Shape{Height: 2, Width: 3, Channels: 1}, nil},
		{"ok u16", Shape{Height: 2, Width: 3, Channels: 3, ScalarType: ScalarU16}, nil},
		{"no height", Shape{Width: 3, Channels: 1}, ErrInvalidShape},
		{"no channels", Shape{Height: 2, Width: 3}, ErrInvalidShape},
		{"bad scalar", Shape{Height: 2, Width: 3, Channels: 1, ScalarType: 7}, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shape.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestShape_Sizes(t *testing.T) {
	s := Shape{Height: 4, Width: 5, Channels: 3, ScalarType: ScalarU16}
	assert.Equal(t, 30, s.RowBytes())
	assert.Equal(t, 120, s.Size())
	assert.Equal(t, "5x4x3:uint16", s.String())
}

func TestDescriptor(t *testing.T) {
	img, err := NewAlignedImage(Shape{Height: 3, Width: 5, Channels: 1}, 8)
	require.NoError(t, err)

	d := descriptor(img)
	assert.Equal(t, img.Shape(), d.Shape())
	assert.Equal(t, int32(8), d.Stride)
	assert.Equal(t, uintptr(img.Pointer()), d.Data)
	assert.Len(t, d.bytes(), 24)
}

func TestFrame_Detach(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6}
	desc := &FrameDescriptor{
		Height: 2, Width: 3, Channels: 1, Stride: 3,
		Data: uintptr(unsafe.Pointer(&pix[0])),
	}
	f := &Frame{Buffer: borrow(desc), Number: 7, Timestamp: 0.28}

	d := f.Detach()
	require.IsType(t, &Image{}, d.Buffer)
	assert.Equal(t, uint64(7), d.Number)

	pix[0] = 99
	assert.Equal(t, byte(99), f.Buffer.Bytes()[0])
	assert.Equal(t, byte(1), d.Buffer.Bytes()[0])

	// owned frames are returned as is
	assert.Same(t, d, d.Detach())
}
