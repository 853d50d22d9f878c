// Package enginetest provides an in-memory videoreader.Engine for tests.
//
// The engine follows the same contract as libvideoreader_c: it calls the
// allocation hooks from inside NextFrame, reports failures through
// LastError, hands out extras blobs that must be freed exactly once, and
// counts handle releases so tests can check teardown.
package enginetest

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/thesyncim/videoreader"
)

// Stream describes a synthetic resource served by the engine.
type Stream struct {
	Frames int               // frames before end of stream
	Shape  videoreader.Shape // shape requested from the allocator
	FPS    float64           // timestamp = index / FPS, default 25
	Live   bool              // FrameCount reports 0

	// FailAt makes the frame request with this index fail. Zero disables;
	// use a 1-based index.
	FailAt int

	// Extras returns the metadata of frame i. Nil produces "pts" and
	// "pkt_dts" derived from the frame index.
	Extras func(i int) videoreader.Extras
}

// Pushed is a frame received by a writer.
type Pushed struct {
	Shape     videoreader.Shape
	Pixels    []byte // tightly packed copy
	Timestamp float64
}

// Output is what a writer produced.
type Output struct {
	Format    videoreader.Shape
	Args      []string
	Realtime  bool
	Frames    []Pushed
	Finalized bool
}

type reader struct {
	path     string
	stream   Stream
	extras   []string
	args     []string
	hooks    *videoreader.Hooks
	next     int
	native   []byte // engine-owned frame memory
	released bool
}

type writer struct {
	path     string
	out      *Output
	log      videoreader.LogSink
	pushes   int
	released bool
}

// Engine is an in-memory engine. The zero value is not usable; call New.
type Engine struct {
	mu      sync.Mutex
	streams map[string]Stream
	readers map[videoreader.Handle]*reader
	writers map[videoreader.Handle]*writer
	outputs map[string]*Output
	blobs   map[uintptr][]byte
	handle  videoreader.Handle
	lastErr string

	// Skip reports whether writer push i (0-based) is dropped.
	Skip func(i int) bool
	// CloseError makes CloseWriter fail with this message.
	CloseError string
	// RejectArgs lists argument keys the engine refuses.
	RejectArgs []string

	ReaderOpens    int
	ReaderReleases int
	WriterOpens    int
	WriterReleases int
	DoubleReleases int
	NextCalls      int
	Allocations    int
	Frees          int
	Pushes         int
	ExtrasFreed    int
	Reconfigured   [][]string
}

// New returns an engine serving no streams.
func New() *Engine {
	return &Engine{
		streams: make(map[string]Stream),
		readers: make(map[videoreader.Handle]*reader),
		writers: make(map[videoreader.Handle]*writer),
		outputs: make(map[string]*Output),
		blobs:   make(map[uintptr][]byte),
	}
}

// AddStream makes path openable.
func (e *Engine) AddStream(path string, s Stream) {
	if s.FPS == 0 {
		s.FPS = 25
	}
	if s.Shape == (videoreader.Shape{}) {
		s.Shape = videoreader.Shape{Height: 4, Width: 6, Channels: 3, ScalarType: videoreader.ScalarU8}
	}
	e.mu.Lock()
	e.streams[path] = s
	e.mu.Unlock()
}

// Output returns what was written to path.
func (e *Engine) Output(path string) *Output {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outputs[path]
}

// OpenHandles returns the number of handles not yet released.
func (e *Engine) OpenHandles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, r := range e.readers {
		if !r.released {
			n++
		}
	}
	for _, w := range e.writers {
		if !w.released {
			n++
		}
	}
	return n
}

// Releases returns the reader and writer release counts.
func (e *Engine) Releases() (readers, writers int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ReaderReleases, e.WriterReleases
}

// OutstandingExtras returns the number of extras blobs not yet freed.
func (e *Engine) OutstandingExtras() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.blobs)
}

func (e *Engine) fail(format string, args ...any) int32 {
	e.lastErr = fmt.Sprintf(format, args...)
	return -1
}

func (e *Engine) rejected(args []string) string {
	for i := 0; i+1 < len(args); i += 2 {
		for _, bad := range e.RejectArgs {
			if args[i] == bad {
				return args[i]
			}
		}
	}
	return ""
}

func (e *Engine) OpenReader(path string, args, extras []string, hooks *videoreader.Hooks) (videoreader.Handle, int32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.streams[path]
	if !ok {
		return 0, e.fail("%s: No such file or directory", path)
	}
	if key := e.rejected(args); key != "" {
		return 0, e.fail("unknown options: %s", key)
	}
	if (hooks.Allocate == nil) != (hooks.Free == nil) {
		return 0, e.fail("all or no allocators MUST be specified")
	}

	e.handle++
	e.ReaderOpens++
	e.readers[e.handle] = &reader{
		path:   path,
		stream: s,
		extras: append([]string(nil), extras...),
		args:   append([]string(nil), args...),
		hooks:  hooks,
	}
	if hooks.Log != nil {
		hooks.Log(videoreader.SeverityInfo, fmt.Sprintf("opened %s\n", path))
	}
	return e.handle, 0
}

func (e *Engine) NextFrame(h videoreader.Handle, desc *videoreader.FrameDescriptor, decode bool) (videoreader.NextResult, int32) {
	e.mu.Lock()
	r := e.readers[h]
	e.NextCalls++
	e.mu.Unlock()

	if r == nil || r.released {
		e.mu.Lock()
		defer e.mu.Unlock()
		return videoreader.NextResult{}, e.fail("invalid reader handle")
	}
	if r.next >= r.stream.Frames {
		return videoreader.NextResult{}, videoreader.StatusEOF
	}
	i := r.next
	r.next++
	if r.stream.FailAt == i+1 {
		e.mu.Lock()
		defer e.mu.Unlock()
		if r.hooks.Log != nil {
			r.hooks.Log(videoreader.SeverityError, fmt.Sprintf("decode error at frame %d\n", i))
		}
		return videoreader.NextResult{}, e.fail("decode error at frame %d", i)
	}

	shape := r.stream.Shape
	desc.Height = int32(shape.Height)
	desc.Width = int32(shape.Width)
	desc.Channels = int32(shape.Channels)
	desc.ScalarType = shape.ScalarType
	desc.Stride = int32(shape.RowBytes())

	// Hooks run without the engine lock, as the native engine calls them
	// on the caller's thread while it holds no host state.
	if r.hooks.Allocate != nil {
		desc.Stride = 0
		r.hooks.Allocate(desc)
		e.mu.Lock()
		e.Allocations++
		e.mu.Unlock()
		if desc.Data == 0 {
			e.mu.Lock()
			defer e.mu.Unlock()
			return videoreader.NextResult{}, e.fail("allocation callback failed: data is nullptr")
		}
	} else {
		size := int(desc.Stride) * shape.Height
		if len(r.native) != size {
			r.native = make([]byte, size)
		}
		desc.Data = uintptr(unsafe.Pointer(&r.native[0]))
	}

	if decode {
		pix := unsafe.Slice((*byte)(unsafe.Pointer(desc.Data)), int(desc.Stride)*shape.Height)
		for y := 0; y < shape.Height; y++ {
			row := pix[y*int(desc.Stride) : y*int(desc.Stride)+shape.RowBytes()]
			for x := range row {
				row[x] = Pixel(i, y, x)
			}
		}
	}

	if r.hooks.Free != nil {
		r.hooks.Free(desc)
		e.mu.Lock()
		e.Frees++
		e.mu.Unlock()
	}

	res := videoreader.NextResult{
		Number:    uint64(i),
		Timestamp: float64(i) / r.stream.FPS,
	}
	if len(r.extras) > 0 {
		values := r.stream.Extras
		if values == nil {
			values = func(i int) videoreader.Extras {
				return videoreader.Extras{"pts": int64(i * 512), "pkt_dts": int64(i*512 - 1024)}
			}
		}
		blob, err := videoreader.EncodeExtras(values(i), r.extras)
		if err != nil {
			e.mu.Lock()
			defer e.mu.Unlock()
			return videoreader.NextResult{}, e.fail("pack extras: %v", err)
		}
		e.mu.Lock()
		e.blobs[uintptr(unsafe.Pointer(unsafe.SliceData(blob)))] = blob
		e.mu.Unlock()
		res.Extras = blob
	}
	return res, videoreader.StatusReady
}

// Pixel is the value the engine writes at byte x of row y of frame i.
func Pixel(i, y, x int) byte {
	return byte(i*31 + y*7 + x)
}

func (e *Engine) Reconfigure(h videoreader.Handle, args []string) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.readers[h]
	if r == nil || r.released {
		return e.fail("invalid reader handle")
	}
	if key := e.rejected(args); key != "" {
		return e.fail("unknown options: %s", key)
	}
	r.args = append([]string(nil), args...)
	e.Reconfigured = append(e.Reconfigured, r.args)
	return 0
}

func (e *Engine) FrameCount(h videoreader.Handle) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.readers[h]
	if r == nil || r.stream.Live {
		return 0
	}
	return uint64(r.stream.Frames)
}

func (e *Engine) ReleaseReader(h videoreader.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.readers[h]
	if r == nil {
		return
	}
	if r.released {
		e.DoubleReleases++
		return
	}
	r.released = true
	r.native = nil
	e.ReaderReleases++
}

func (e *Engine) OpenWriter(path string, format *videoreader.FrameDescriptor, args []string, realtime bool, log videoreader.LogSink) (videoreader.Handle, int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if strings.HasSuffix(path, "/") {
		return 0, e.fail("avio_open() failed (Is a directory)")
	}
	if key := e.rejected(args); key != "" {
		return 0, e.fail("invalid arguments. see logs for mare info.")
	}

	out := &Output{
		Format:   format.Shape(),
		Args:     append([]string(nil), args...),
		Realtime: realtime,
	}
	e.handle++
	e.WriterOpens++
	e.outputs[path] = out
	e.writers[e.handle] = &writer{path: path, out: out, log: log}
	if log != nil {
		log(videoreader.SeverityDebug, fmt.Sprintf("writing %s\n", path))
	}
	return e.handle, 0
}

func (e *Engine) PushFrame(h videoreader.Handle, desc *videoreader.FrameDescriptor, timestamp float64) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.writers[h]
	if w == nil || w.released || w.out.Finalized {
		return e.fail("video was closed")
	}
	shape := desc.Shape()
	if shape.Width != w.out.Format.Width || shape.Height != w.out.Format.Height {
		return e.fail("can't change video frame size")
	}
	e.Pushes++
	i := w.pushes
	w.pushes++
	if e.Skip != nil && e.Skip(i) {
		return 1
	}

	pix := unsafe.Slice((*byte)(unsafe.Pointer(desc.Data)), int(desc.Stride)*shape.Height)
	packed := make([]byte, 0, shape.Size())
	for y := 0; y < shape.Height; y++ {
		off := y * int(desc.Stride)
		packed = append(packed, pix[off:off+shape.RowBytes()]...)
	}
	w.out.Frames = append(w.out.Frames, Pushed{Shape: shape, Pixels: packed, Timestamp: timestamp})
	return 0
}

func (e *Engine) CloseWriter(h videoreader.Handle) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.writers[h]
	if w == nil || w.released {
		return e.fail("invalid writer handle")
	}
	if w.out.Finalized {
		return e.fail("already closed")
	}
	if e.CloseError != "" {
		return e.fail("%s", e.CloseError)
	}
	w.out.Finalized = true
	return 0
}

func (e *Engine) ReleaseWriter(h videoreader.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.writers[h]
	if w == nil {
		return
	}
	if w.released {
		e.DoubleReleases++
		return
	}
	w.released = true
	e.WriterReleases++
}

func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) FreeExtras(extras []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := uintptr(unsafe.Pointer(unsafe.SliceData(extras)))
	if _, ok := e.blobs[key]; !ok {
		panic(fmt.Sprintf("enginetest: free of unknown extras blob %#x", key))
	}
	delete(e.blobs, key)
	e.ExtrasFreed++
}

var _ videoreader.Engine = (*Engine)(nil)
