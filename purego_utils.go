//go:build (darwin || linux) && !novideoreader

// Helpers for the purego engine binding.

package videoreader

import (
	"os"
	"path/filepath"
	"runtime"
	"unsafe"
)

// maxCString bounds goStringFromPtr. Engine diagnostics are formatted into
// fixed 1 KiB buffers; error strings can carry a full URL.
const maxCString = 64 << 10

// goStringFromPtr converts a C string pointer to a Go string.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for length < maxCString {
		if *(*byte)(unsafe.Add(p, length)) == 0 {
			break
		}
		length++
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// cStrings holds NUL-terminated copies of Go strings plus the pointer
// array the engine expects for `char const* argv[]`.
type cStrings struct {
	bufs [][]byte
	ptrs []uintptr
}

func newCStrings(ss []string) *cStrings {
	c := &cStrings{
		bufs: make([][]byte, len(ss)),
		ptrs: make([]uintptr, len(ss)+1), // NULL terminated, never empty
	}
	for i, s := range ss {
		b := make([]byte, len(s)+1)
		copy(b, s)
		c.bufs[i] = b
		c.ptrs[i] = uintptr(unsafe.Pointer(&b[0]))
	}
	return c
}

// pin keeps every buffer in place for the duration of an engine call.
func (c *cStrings) pin(p *runtime.Pinner) uintptr {
	for _, b := range c.bufs {
		p.Pin(&b[0])
	}
	p.Pin(&c.ptrs[0])
	return uintptr(unsafe.Pointer(&c.ptrs[0]))
}

func (c *cStrings) len() int32 { return int32(len(c.bufs)) }

// findModuleRoot walks up the directory tree from the current working directory
// to find the module root (directory containing go.mod).
func findModuleRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// findSourceRoot returns the directory of this source file, which is the
// repository root when running from a checkout (tests, go run).
func findSourceRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	dir := filepath.Dir(file)
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err != nil {
		return ""
	}
	return dir
}
