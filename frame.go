// Core frame types shared by the reader, the writer and the engine boundary.
package videoreader

import (
	"fmt"
	"unsafe"
)

// ScalarType is the element type of a frame buffer.
// The numeric values are part of the engine ABI.
type ScalarType int32

const (
	ScalarU8  ScalarType = iota // 8-bit unsigned
	ScalarU16                   // 16-bit unsigned
)

func (s ScalarType) String() string {
	switch s {
	case ScalarU8:
		return "uint8"
	case ScalarU16:
		return "uint16"
	default:
		return fmt.Sprintf("ScalarType(%d)", int32(s))
	}
}

// Size returns the size of one element in bytes, or 0 for unknown types.
func (s ScalarType) Size() int {
	switch s {
	case ScalarU8:
		return 1
	case ScalarU16:
		return 2
	default:
		return 0
	}
}

// FrameDescriptor describes one frame buffer as seen by the engine.
// Its layout matches the engine's VRImage struct and must not be reordered.
//
// The reader allocates a fresh descriptor for every engine call. Depending
// on the allocation strategy the engine or the allocation hook fills it in.
type FrameDescriptor struct {
	Height     int32
	Width      int32
	Channels   int32
	ScalarType ScalarType
	Stride     int32   // bytes between rows, 0 when unknown
	Data       uintptr // first pixel
	UserData   uintptr // engine bookkeeping, zeroed by host allocators
}

// Shape returns the requested shape carried by the descriptor.
func (d *FrameDescriptor) Shape() Shape {
	return Shape{
		Height:     int(d.Height),
		Width:      int(d.Width),
		Channels:   int(d.Channels),
		ScalarType: d.ScalarType,
	}
}

// bytes views the descriptor's pixel memory. The result aliases memory the
// descriptor points to and is only valid as long as that memory is.
func (d *FrameDescriptor) bytes() []byte {
	if d.Data == 0 || d.Height <= 0 || d.Stride <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(d.Data)), int(d.Stride)*int(d.Height))
}

// Shape is the geometry and element type of a frame.
type Shape struct {
	Height     int
	Width      int
	Channels   int
	ScalarType ScalarType
}

// RowBytes returns the number of meaningful bytes in one row.
func (s Shape) RowBytes() int {
	return s.Width * s.Channels * s.ScalarType.Size()
}

// Size returns the size of a tightly packed buffer of this shape.
func (s Shape) Size() int {
	return s.RowBytes() * s.Height
}

// Validate reports whether the shape describes a non-empty frame.
func (s Shape) Validate() error {
	if s.Height <= 0 || s.Width <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidShape, s.Width, s.Height)
	}
	if s.Channels <= 0 {
		return fmt.Errorf("%w: %d channels", ErrInvalidShape, s.Channels)
	}
	if s.ScalarType.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.ScalarType)
	}
	return nil
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d:%s", s.Width, s.Height, s.Channels, s.ScalarType)
}

// descriptor builds an engine descriptor for buf.
func descriptor(buf Buffer) FrameDescriptor {
	shape := buf.Shape()
	return FrameDescriptor{
		Height:     int32(shape.Height),
		Width:      int32(shape.Width),
		Channels:   int32(shape.Channels),
		ScalarType: shape.ScalarType,
		Stride:     int32(buf.Stride()),
		Data:       uintptr(buf.Pointer()),
	}
}

// Frame is one decoded frame handed to the caller.
//
// Buffer ownership depends on the reader's allocation strategy: with host
// buffers the caller owns Buffer outright; with engine-native buffers Buffer
// is a *BorrowedImage that is only valid until the next call on the reader.
type Frame struct {
	Buffer    Buffer
	Number    uint64  // engine frame number, zero-indexed, may have gaps
	Timestamp float64 // seconds since the start of the stream
	Extras    Extras  // nil unless extras were requested
}

// Detach makes the frame independent of engine memory.
// Frames backed by owned buffers are returned unchanged.
func (f *Frame) Detach() *Frame {
	b, ok := f.Buffer.(*BorrowedImage)
	if !ok {
		return f
	}
	clone := *f
	clone.Buffer = b.Clone()
	return &clone
}
