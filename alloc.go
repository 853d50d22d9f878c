package videoreader

import (
	"fmt"
	"slices"
)

// ChannelSet lists the channel counts a host allocator accepts.
// An empty set accepts any positive count.
type ChannelSet []int

// Allows reports whether n channels are accepted.
func (c ChannelSet) Allows(n int) bool {
	if n <= 0 {
		return false
	}
	return len(c) == 0 || slices.Contains(c, n)
}

// hostAllocator implements the host-allocated strategy: the engine asks for
// a buffer of a given shape and the host provides and tracks it.
//
// Discipline: the free hook only validates that the address is still lent
// out; Take is the only place an entry leaves the registry.
type hostAllocator struct {
	factory  BufferFactory
	channels ChannelSet
	registry *Registry

	// err is the first allocation failure since the last collect. The engine
	// only sees a null data pointer, so the reason is kept here.
	err error
}

func newHostAllocator(factory BufferFactory, channels ChannelSet) *hostAllocator {
	return &hostAllocator{
		factory:  factory,
		channels: channels,
		registry: NewRegistry(),
	}
}

// allocate serves an allocation request. On failure desc.Data stays zero,
// which the engine treats as out of memory, and nothing is registered.
func (a *hostAllocator) allocate(desc *FrameDescriptor) {
	desc.Data = 0
	desc.UserData = 0

	shape := desc.Shape()
	if shape.ScalarType != ScalarU8 {
		a.fail(fmt.Errorf("%w: non uint8 images not yet supported (%s)", ErrUnsupportedFormat, shape.ScalarType))
		return
	}
	if !a.channels.Allows(shape.Channels) {
		a.fail(fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, shape.Channels))
		return
	}
	buf, err := a.factory.NewBuffer(shape)
	if err != nil {
		a.fail(err)
		return
	}
	if got := buf.Shape(); got != shape {
		contractViolation(fmt.Errorf("factory returned %s for %s", got, shape))
	}

	addr := uintptr(buf.Pointer())
	if err := a.registry.Register(addr, buf); err != nil {
		contractViolation(err)
	}
	desc.Data = addr
	desc.Stride = int32(buf.Stride())
}

// release is the engine's free hook.
func (a *hostAllocator) release(desc *FrameDescriptor) {
	if !a.registry.Contains(desc.Data) {
		contractViolation(fmt.Errorf("%w: %#x freed by engine", ErrUnknownAddress, desc.Data))
	}
}

// claim transfers the buffer behind a ready frame to the caller.
func (a *hostAllocator) claim(desc *FrameDescriptor) Buffer {
	buf, err := a.registry.Take(desc.Data)
	if err != nil {
		contractViolation(err)
	}
	return buf
}

func (a *hostAllocator) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// collect returns and clears the pending allocation failure.
func (a *hostAllocator) collect() error {
	err := a.err
	a.err = nil
	return err
}
