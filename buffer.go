package videoreader

import (
	"fmt"
	"image"
	"unsafe"
)

// Buffer is a host-side frame buffer that can be handed to the engine.
//
// Implementations must keep Bytes() backed by a single allocation so that
// Pointer() identifies the whole buffer; the registry keys on that address.
type Buffer interface {
	// Shape returns the buffer geometry and element type.
	Shape() Shape
	// Stride returns the number of bytes between the starts of two rows.
	Stride() int
	// Bytes returns the pixel memory, Stride()*Height bytes long.
	Bytes() []byte
	// Pointer returns the address of the first pixel.
	Pointer() unsafe.Pointer
}

// BufferFactory allocates host-owned buffers on behalf of the engine.
// A factory is selected when a reader is opened and never changes.
type BufferFactory interface {
	NewBuffer(shape Shape) (Buffer, error)
}

// Image is an owned, row-major buffer with interleaved channels.
type Image struct {
	shape  Shape
	stride int
	pix    []byte
}

// NewImage allocates a tightly packed image.
func NewImage(shape Shape) (*Image, error) {
	return NewAlignedImage(shape, 1)
}

// NewAlignedImage allocates an image whose stride is a multiple of align.
func NewAlignedImage(shape Shape, align int) (*Image, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if align <= 0 {
		align = 1
	}
	stride := (shape.RowBytes() + align - 1) / align * align
	return &Image{
		shape:  shape,
		stride: stride,
		pix:    make([]byte, stride*shape.Height),
	}, nil
}

// ImageFromBytes wraps existing pixel memory without copying.
func ImageFromBytes(shape Shape, stride int, pix []byte) (*Image, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if stride < shape.RowBytes() {
		return nil, fmt.Errorf("%w: stride %d < row size %d", ErrInvalidShape, stride, shape.RowBytes())
	}
	if len(pix) < stride*shape.Height {
		return nil, fmt.Errorf("%w: %d bytes for %s", ErrInvalidShape, len(pix), shape)
	}
	return &Image{shape: shape, stride: stride, pix: pix[:stride*shape.Height]}, nil
}

func (m *Image) Shape() Shape  { return m.shape }
func (m *Image) Stride() int   { return m.stride }
func (m *Image) Bytes() []byte { return m.pix }

func (m *Image) Pointer() unsafe.Pointer {
	if len(m.pix) == 0 {
		return nil
	}
	return unsafe.Pointer(&m.pix[0])
}

// Row returns the meaningful bytes of row y.
func (m *Image) Row(y int) []byte {
	off := y * m.stride
	return m.pix[off : off+m.shape.RowBytes()]
}

// StdImage adapts the standard library's image types to Buffer.
// Only *image.Gray (one channel) and *image.RGBA (four channels) are supported.
type StdImage struct {
	img   image.Image
	shape Shape
	pix   []byte
	strd  int
}

// NewStdImage allocates an image.Image matching shape.
func NewStdImage(shape Shape) (*StdImage, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.ScalarType != ScalarU8 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, shape.ScalarType)
	}
	rect := image.Rect(0, 0, shape.Width, shape.Height)
	switch shape.Channels {
	case 1:
		return WrapGray(image.NewGray(rect)), nil
	case 4:
		return WrapRGBA(image.NewRGBA(rect)), nil
	default:
		return nil, fmt.Errorf("%w: %d channels for image.Image", ErrUnsupportedFormat, shape.Channels)
	}
}

// WrapGray wraps a grayscale image. The image must start at its backing
// slice's origin.
func WrapGray(img *image.Gray) *StdImage {
	b := img.Bounds()
	return &StdImage{
		img:   img,
		shape: Shape{Height: b.Dy(), Width: b.Dx(), Channels: 1, ScalarType: ScalarU8},
		pix:   img.Pix,
		strd:  img.Stride,
	}
}

// WrapRGBA wraps an RGBA image. The image must start at its backing
// slice's origin.
func WrapRGBA(img *image.RGBA) *StdImage {
	b := img.Bounds()
	return &StdImage{
		img:   img,
		shape: Shape{Height: b.Dy(), Width: b.Dx(), Channels: 4, ScalarType: ScalarU8},
		pix:   img.Pix,
		strd:  img.Stride,
	}
}

// Image returns the wrapped image.
func (s *StdImage) Image() image.Image { return s.img }

func (s *StdImage) Shape() Shape  { return s.shape }
func (s *StdImage) Stride() int   { return s.strd }
func (s *StdImage) Bytes() []byte { return s.pix }

func (s *StdImage) Pointer() unsafe.Pointer {
	if len(s.pix) == 0 {
		return nil
	}
	return unsafe.Pointer(&s.pix[0])
}

// BorrowedImage is a view of engine-owned pixel memory.
// It is valid only until the next call on the reader that produced it;
// use Clone to keep the pixels.
type BorrowedImage struct {
	shape  Shape
	stride int
	pix    []byte
}

func borrow(desc *FrameDescriptor) *BorrowedImage {
	return &BorrowedImage{
		shape:  desc.Shape(),
		stride: int(desc.Stride),
		pix:    desc.bytes(),
	}
}

func (b *BorrowedImage) Shape() Shape  { return b.shape }
func (b *BorrowedImage) Stride() int   { return b.stride }
func (b *BorrowedImage) Bytes() []byte { return b.pix }

func (b *BorrowedImage) Pointer() unsafe.Pointer {
	if len(b.pix) == 0 {
		return nil
	}
	return unsafe.Pointer(&b.pix[0])
}

// Clone copies the borrowed pixels into an owned Image.
func (b *BorrowedImage) Clone() *Image {
	pix := make([]byte, len(b.pix))
	copy(pix, b.pix)
	return &Image{shape: b.shape, stride: b.stride, pix: pix}
}

type packedFactory struct{ align int }

func (f packedFactory) NewBuffer(shape Shape) (Buffer, error) {
	return NewAlignedImage(shape, f.align)
}

type stdImageFactory struct{}

func (stdImageFactory) NewBuffer(shape Shape) (Buffer, error) {
	return NewStdImage(shape)
}

// PackedBuffers allocates tightly packed *Image buffers.
func PackedBuffers() BufferFactory { return packedFactory{align: 1} }

// AlignedBuffers allocates *Image buffers with rows padded to align bytes.
func AlignedBuffers(align int) BufferFactory { return packedFactory{align: align} }

// StdImageBuffers allocates *StdImage buffers backed by image.Gray or
// image.RGBA.
func StdImageBuffers() BufferFactory { return stdImageFactory{} }
