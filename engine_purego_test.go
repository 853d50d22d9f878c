//go:build (darwin || linux) && !novideoreader

package videoreader

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setWhat makes videoreader_what return msg for the rest of the test.
func setWhat(t *testing.T, msg string) {
	t.Helper()
	prev := vrWhat
	t.Cleanup(func() { vrWhat = prev })
	b := append([]byte(msg), 0)
	vrWhat = func() uintptr { return uintptr(unsafe.Pointer(&b[0])) }
}

func newTestNativeEngine() *NativeEngine {
	return &NativeEngine{sessions: make(map[Handle]uintptr)}
}

func TestNativeEngine_CallCapturesDiagnostic(t *testing.T) {
	tests := []struct {
		name   string
		failed func(int32) bool
		ret    int32
		want   string
	}{
		{"open ok", failNonZero, 0, "unknown error"},
		{"open negative", failNonZero, -1, "open failed: bad url"},
		{"open positive", failNonZero, 2, "open failed: bad url"},
		{"next ready", failNext, StatusReady, "unknown error"},
		{"next eof", failNext, StatusEOF, "unknown error"},
		{"next error", failNext, 2, "open failed: bad url"},
		{"next negative", failNext, -3, "open failed: bad url"},
		{"push skipped", failNegative, 1, "unknown error"},
		{"push error", failNegative, -1, "open failed: bad url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setWhat(t, "open failed: bad url")
			e := newTestNativeEngine()
			got := e.call(tt.failed, func() int32 { return tt.ret })
			assert.Equal(t, tt.ret, got)
			assert.Equal(t, tt.want, e.LastError())
		})
	}
}

func TestNativeEngine_NoStaleDiagnostic(t *testing.T) {
	setWhat(t, "open failed: bad url")
	e := newTestNativeEngine()

	e.call(failNonZero, func() int32 { return -1 })
	require.Equal(t, "open failed: bad url", e.LastError())

	setWhat(t, "second failure")
	e.call(failNonZero, func() int32 { return 3 })
	assert.Equal(t, "second failure", e.LastError())

	e.call(failNonZero, func() int32 { return 0 })
	assert.Equal(t, "unknown error", e.LastError())
}

func TestCStrings(t *testing.T) {
	c := newCStrings([]string{"rtsp_transport", "tcp", ""})
	assert.Equal(t, int32(3), c.len())

	var pinner runtime.Pinner
	defer pinner.Unpin()
	argv := unsafe.Slice((*uintptr)(unsafe.Pointer(c.pin(&pinner))), 4)

	assert.Equal(t, "rtsp_transport", goStringFromPtr(argv[0]))
	assert.Equal(t, "tcp", goStringFromPtr(argv[1]))
	assert.Equal(t, "", goStringFromPtr(argv[2]))
	assert.NotZero(t, argv[2])
	assert.Zero(t, argv[3], "argv must be NULL terminated")

	empty := newCStrings(nil)
	assert.Equal(t, int32(0), empty.len())
	assert.Zero(t, *(*uintptr)(unsafe.Pointer(empty.pin(&pinner))))
}

func TestGoStringFromPtr(t *testing.T) {
	assert.Equal(t, "", goStringFromPtr(0))
	b := []byte("decode error\x00trailing")
	assert.Equal(t, "decode error", goStringFromPtr(uintptr(unsafe.Pointer(&b[0]))))
}

func TestSessionTable(t *testing.T) {
	var allocated, freed int
	var logged []string
	hooks := &Hooks{
		Allocate: func(*FrameDescriptor) { allocated++ },
		Free:     func(*FrameDescriptor) { freed++ },
		Log:      func(_ Severity, msg string) { logged = append(logged, msg) },
	}
	id := registerSession(hooks)
	assert.Same(t, hooks, lookupSession(id))

	desc := &FrameDescriptor{}
	msg := []byte("opened\x00")
	vrAllocHandler(uintptr(unsafe.Pointer(desc)), id)
	vrFreeHandler(uintptr(unsafe.Pointer(desc)), id)
	vrLogHandler(uintptr(unsafe.Pointer(&msg[0])), uintptr(SeverityInfo), id)
	assert.Equal(t, 1, allocated)
	assert.Equal(t, 1, freed)
	assert.Equal(t, []string{"opened"}, logged)

	e := newTestNativeEngine()
	e.sessions[Handle(0x10)] = id
	e.forget(Handle(0x10))
	assert.Nil(t, lookupSession(id))
	assert.Empty(t, e.sessions)

	// callbacks for a released session are dropped
	vrAllocHandler(uintptr(unsafe.Pointer(desc)), id)
	assert.Equal(t, 1, allocated)
}
