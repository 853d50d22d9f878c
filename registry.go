package videoreader

import (
	"fmt"
	"runtime"
)

// Registry tracks host buffers currently lent to the engine, keyed by the
// address of their first byte.
//
// An address is registered by the allocation hook and removed by Take when
// the host claims the decoded frame. While registered the buffer is pinned,
// so the engine may keep writing through the address after the hook
// returns. A Registry is not safe for concurrent use; each reader owns one.
type Registry struct {
	entries map[uintptr]*registryEntry
}

type registryEntry struct {
	buf    Buffer
	pinner runtime.Pinner
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uintptr]*registryEntry)}
}

// Register records buf under addr.
func (r *Registry) Register(addr uintptr, buf Buffer) error {
	if addr == 0 {
		return fmt.Errorf("%w: nil address", ErrUnknownAddress)
	}
	if _, ok := r.entries[addr]; ok {
		return fmt.Errorf("%w: %#x", ErrDuplicateAddress, addr)
	}
	e := &registryEntry{buf: buf}
	if p := buf.Pointer(); p != nil {
		e.pinner.Pin(p)
	}
	r.entries[addr] = e
	return nil
}

// Take removes and returns the buffer registered under addr. Ownership of
// the buffer passes to the caller.
func (r *Registry) Take(addr uintptr) (Buffer, error) {
	e, ok := r.entries[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownAddress, addr)
	}
	delete(r.entries, addr)
	e.pinner.Unpin()
	return e.buf, nil
}

// Contains reports whether addr is registered.
func (r *Registry) Contains(addr uintptr) bool {
	_, ok := r.entries[addr]
	return ok
}

// Len returns the number of buffers currently lent to the engine.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Drain drops every remaining entry and returns how many there were.
// Called at teardown, after the engine handle has been released.
func (r *Registry) Drain() int {
	n := len(r.entries)
	for addr, e := range r.entries {
		e.pinner.Unpin()
		delete(r.entries, addr)
	}
	return n
}
