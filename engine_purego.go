//go:build (darwin || linux) && !novideoreader

// Engine binding to libvideoreader_c via purego.

package videoreader

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	vrOnce    sync.Once
	vrHandle  uintptr
	vrInitErr error
)

// libvideoreader_c function pointers
var (
	vrReaderCreate func(reader uintptr, path string, argv uintptr, argc int32, extras uintptr, extrasc int32, allocCb, freeCb, logCb, userdata uintptr) int32
	vrReaderDelete func(reader uintptr)
	vrReaderNext   func(reader, dstImg, number, timestamp, extras, extrasSize uintptr, decode bool) int32
	vrReaderSet    func(reader uintptr, argv uintptr, argc int32) int32
	vrReaderSize   func(reader uintptr, count uintptr) int32

	vrWriterCreate func(writer uintptr, path string, format uintptr, argv uintptr, argc int32, realtime bool, logCb, userdata uintptr) int32
	vrWriterDelete func(writer uintptr)
	vrWriterPush   func(writer uintptr, img uintptr, timestamp float64) int32
	vrWriterClose  func(writer uintptr) int32

	vrWhat func() uintptr
	vrFree func(ptr uintptr)
)

func loadVideoReader() error {
	vrOnce.Do(func() {
		vrInitErr = loadVideoReaderLib()
	})
	return vrInitErr
}

func loadVideoReaderLib() error {
	var lastErr error
	for _, path := range getVideoReaderLibPaths() {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		vrHandle = handle
		if err := loadVideoReaderSymbols(); err != nil {
			purego.Dlclose(handle)
			lastErr = err
			continue
		}
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("%w: failed to load libvideoreader_c: %v", ErrEngineNotAvailable, lastErr)
	}
	return fmt.Errorf("%w: libvideoreader_c not found in any standard location", ErrEngineNotAvailable)
}

func getVideoReaderLibPaths() []string {
	var paths []string

	libName := "libvideoreader_c.so"
	if runtime.GOOS == "darwin" {
		libName = "libvideoreader_c.dylib"
	}

	// Environment variable overrides (highest priority)
	if envPath := os.Getenv("VIDEOREADER_LIB_PATH"); envPath != "" {
		paths = append(paths, envPath)
	}
	if envPath := os.Getenv("VIDEOREADER_SDK_LIB_PATH"); envPath != "" {
		paths = append(paths, filepath.Join(envPath, libName))
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	if wd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(wd, "build", libName),
			filepath.Join(wd, "..", "build", libName),
			filepath.Join(wd, "..", "..", "build", libName),
		)
	}

	if root := findSourceRoot(); root != "" {
		paths = append(paths, filepath.Join(root, "build", libName))
	}
	if root := findModuleRoot(); root != "" {
		paths = append(paths, filepath.Join(root, "build", libName))
	}

	// System paths (lowest priority)
	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/opt/homebrew/lib/"+libName,
		)
	case "linux":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/usr/lib/"+libName,
		)
	}

	return paths
}

func loadVideoReaderSymbols() (err error) {
	// RegisterLibFunc panics on a missing symbol.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libvideoreader_c: %v", r)
		}
	}()

	purego.RegisterLibFunc(&vrReaderCreate, vrHandle, "videoreader_create")
	purego.RegisterLibFunc(&vrReaderDelete, vrHandle, "videoreader_delete")
	purego.RegisterLibFunc(&vrReaderNext, vrHandle, "videoreader_next_frame")
	purego.RegisterLibFunc(&vrReaderSet, vrHandle, "videoreader_set")
	purego.RegisterLibFunc(&vrReaderSize, vrHandle, "videoreader_size")

	purego.RegisterLibFunc(&vrWriterCreate, vrHandle, "videowriter_create")
	purego.RegisterLibFunc(&vrWriterDelete, vrHandle, "videowriter_delete")
	purego.RegisterLibFunc(&vrWriterPush, vrHandle, "videowriter_push")
	purego.RegisterLibFunc(&vrWriterClose, vrHandle, "videowriter_close")

	purego.RegisterLibFunc(&vrWhat, vrHandle, "videoreader_what")
	purego.RegisterLibFunc(&vrFree, vrHandle, "free")
	return nil
}

// IsEngineAvailable reports whether libvideoreader_c can be loaded.
func IsEngineAvailable() bool {
	return loadVideoReader() == nil
}

// Global callback state for purego. The engine gets a session id as its
// userdata; no Go pointer is ever handed to it.
var (
	vrSessionsMu     sync.RWMutex
	vrSessions       = make(map[uintptr]*Hooks)
	vrSessionCounter uintptr

	vrCallbackOnce sync.Once
	vrAllocCb      uintptr
	vrFreeCb       uintptr
	vrLogCb        uintptr
)

func initCallbacks() {
	vrCallbackOnce.Do(func() {
		vrAllocCb = purego.NewCallback(vrAllocHandler)
		vrFreeCb = purego.NewCallback(vrFreeHandler)
		vrLogCb = purego.NewCallback(vrLogHandler)
	})
}

func registerSession(h *Hooks) uintptr {
	vrSessionsMu.Lock()
	defer vrSessionsMu.Unlock()
	vrSessionCounter++
	vrSessions[vrSessionCounter] = h
	return vrSessionCounter
}

func unregisterSession(id uintptr) {
	vrSessionsMu.Lock()
	delete(vrSessions, id)
	vrSessionsMu.Unlock()
}

func lookupSession(id uintptr) *Hooks {
	vrSessionsMu.RLock()
	defer vrSessionsMu.RUnlock()
	return vrSessions[id]
}

// vrAllocHandler is called by the engine as `void (*)(VRImage*, void*)`.
func vrAllocHandler(img uintptr, userdata uintptr) {
	h := lookupSession(userdata)
	if h == nil || h.Allocate == nil {
		return
	}
	h.Allocate((*FrameDescriptor)(unsafe.Pointer(img)))
}

// vrFreeHandler is called by the engine as `void (*)(VRImage*, void*)`.
func vrFreeHandler(img uintptr, userdata uintptr) {
	h := lookupSession(userdata)
	if h == nil || h.Free == nil {
		return
	}
	h.Free((*FrameDescriptor)(unsafe.Pointer(img)))
}

// vrLogHandler is called by the engine as `void (*)(char const*, int, void*)`.
func vrLogHandler(message uintptr, level uintptr, userdata uintptr) {
	h := lookupSession(userdata)
	if h == nil || h.Log == nil {
		return
	}
	h.Log(Severity(int32(level)), goStringFromPtr(message))
}

// NativeEngine drives libvideoreader_c.
type NativeEngine struct {
	mu       sync.Mutex
	sessions map[Handle]uintptr // handle -> callback session id
	lastErr  string
}

// NewNativeEngine loads libvideoreader_c. The library is searched in
// VIDEOREADER_LIB_PATH, VIDEOREADER_SDK_LIB_PATH, next to the executable,
// in build/ directories and in system library paths.
func NewNativeEngine() (*NativeEngine, error) {
	if err := loadVideoReader(); err != nil {
		return nil, err
	}
	initCallbacks()
	return &NativeEngine{sessions: make(map[Handle]uintptr)}, nil
}

// nextOut holds engine out-parameters. It is heap-allocated and pinned
// for the duration of the call.
type nextOut struct {
	number     uint64
	timestamp  float64
	extras     uintptr
	extrasSize uint32
}

func (e *NativeEngine) OpenReader(path string, args, extras []string, hooks *Hooks) (Handle, int32) {
	var allocCb, freeCb, logCb uintptr
	if hooks.Allocate != nil {
		allocCb, freeCb = vrAllocCb, vrFreeCb
	}
	if hooks.Log != nil {
		logCb = vrLogCb
	}
	id := registerSession(hooks)

	argv, extv := newCStrings(args), newCStrings(extras)
	out := new(uintptr)

	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(out)

	ret := e.call(failNonZero, func() int32 {
		return vrReaderCreate(
			uintptr(unsafe.Pointer(out)),
			path,
			argv.pin(&pinner), argv.len(),
			extv.pin(&pinner), extv.len(),
			allocCb, freeCb, logCb, id,
		)
	})
	if ret != 0 || *out == 0 {
		unregisterSession(id)
		if ret == 0 {
			ret = -1
		}
		return 0, ret
	}

	h := Handle(*out)
	e.mu.Lock()
	e.sessions[h] = id
	e.mu.Unlock()
	return h, 0
}

func (e *NativeEngine) NextFrame(h Handle, desc *FrameDescriptor, decode bool) (NextResult, int32) {
	out := new(nextOut)

	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(out)
	pinner.Pin(desc)

	ret := e.call(failNext, func() int32 {
		return vrReaderNext(
			uintptr(h),
			uintptr(unsafe.Pointer(desc)),
			uintptr(unsafe.Pointer(&out.number)),
			uintptr(unsafe.Pointer(&out.timestamp)),
			uintptr(unsafe.Pointer(&out.extras)),
			uintptr(unsafe.Pointer(&out.extrasSize)),
			decode,
		)
	})

	res := NextResult{Number: out.number, Timestamp: out.timestamp}
	if out.extras != 0 {
		res.Extras = unsafe.Slice((*byte)(unsafe.Pointer(out.extras)), int(out.extrasSize))
	}
	return res, ret
}

func (e *NativeEngine) Reconfigure(h Handle, args []string) int32 {
	argv := newCStrings(args)
	var pinner runtime.Pinner
	defer pinner.Unpin()
	return e.call(failNonZero, func() int32 {
		return vrReaderSet(uintptr(h), argv.pin(&pinner), argv.len())
	})
}

func (e *NativeEngine) FrameCount(h Handle) uint64 {
	count := new(uint64)
	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(count)
	if vrReaderSize(uintptr(h), uintptr(unsafe.Pointer(count))) != 0 {
		return 0
	}
	return *count
}

func (e *NativeEngine) ReleaseReader(h Handle) {
	vrReaderDelete(uintptr(h))
	e.forget(h)
}

func (e *NativeEngine) OpenWriter(path string, format *FrameDescriptor, args []string, realtime bool, log LogSink) (Handle, int32) {
	var logCb uintptr
	if log != nil {
		logCb = vrLogCb
	}
	id := registerSession(&Hooks{Log: log})

	argv := newCStrings(args)
	out := new(uintptr)

	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(out)
	pinner.Pin(format)

	ret := e.call(failNonZero, func() int32 {
		return vrWriterCreate(
			uintptr(unsafe.Pointer(out)),
			path,
			uintptr(unsafe.Pointer(format)),
			argv.pin(&pinner), argv.len(),
			realtime,
			logCb, id,
		)
	})
	if ret != 0 || *out == 0 {
		unregisterSession(id)
		if ret == 0 {
			ret = -1
		}
		return 0, ret
	}

	h := Handle(*out)
	e.mu.Lock()
	e.sessions[h] = id
	e.mu.Unlock()
	return h, 0
}

func (e *NativeEngine) PushFrame(h Handle, desc *FrameDescriptor, timestamp float64) int32 {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(desc)
	return e.call(failNegative, func() int32 {
		return vrWriterPush(uintptr(h), uintptr(unsafe.Pointer(desc)), timestamp)
	})
}

func (e *NativeEngine) CloseWriter(h Handle) int32 {
	return e.call(failNonZero, func() int32 {
		return vrWriterClose(uintptr(h))
	})
}

func (e *NativeEngine) ReleaseWriter(h Handle) {
	vrWriterDelete(uintptr(h))
	e.forget(h)
}

// Failure predicates per engine call. Open, set and close succeed only
// with 0, next also returns StatusEOF, push reports skips as > 0.
func failNonZero(ret int32) bool  { return ret != 0 }
func failNext(ret int32) bool     { return ret != StatusReady && ret != StatusEOF }
func failNegative(ret int32) bool { return ret < 0 }

// call runs fn on a locked OS thread and captures the engine diagnostic
// when failed reports the result as an error, since videoreader_what is
// thread-local. The previous diagnostic is cleared first.
func (e *NativeEngine) call(failed func(int32) bool, fn func() int32) int32 {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.mu.Lock()
	e.lastErr = ""
	e.mu.Unlock()

	ret := fn()
	if failed(ret) {
		msg := goStringFromPtr(vrWhat())
		e.mu.Lock()
		e.lastErr = msg
		e.mu.Unlock()
	}
	return ret
}

func (e *NativeEngine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastErr == "" {
		return "unknown error"
	}
	return e.lastErr
}

func (e *NativeEngine) FreeExtras(extras []byte) {
	if p := unsafe.SliceData(extras); p != nil {
		vrFree(uintptr(unsafe.Pointer(p)))
	}
}

// forget drops the callback session of a released handle.
func (e *NativeEngine) forget(h Handle) {
	e.mu.Lock()
	id, ok := e.sessions[h]
	delete(e.sessions, h)
	e.mu.Unlock()
	if ok {
		unregisterSession(id)
	}
}

var _ Engine = (*NativeEngine)(nil)
