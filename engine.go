package videoreader

// Handle is an opaque engine-side session.
type Handle uintptr

// Status codes returned by Engine.NextFrame.
const (
	StatusReady int32 = 0
	StatusEOF   int32 = 1
)

// Hooks are the per-session callbacks the engine may invoke while a call on
// that session is in progress. Allocate and Free are either both set (host
// buffers) or both nil (engine-native buffers).
type Hooks struct {
	// Allocate receives a descriptor holding the requested shape and must
	// fill in Data and Stride. Leaving Data zero reports allocation failure.
	Allocate func(desc *FrameDescriptor)
	// Free is called when the engine is done writing to a host buffer.
	Free func(desc *FrameDescriptor)
	// Log receives engine diagnostics. Optional.
	Log LogSink
}

// NextResult holds the out-parameters of Engine.NextFrame.
type NextResult struct {
	Number    uint64
	Timestamp float64
	// Extras aliases engine memory; nil when the engine produced none.
	// It must be passed to FreeExtras exactly once.
	Extras []byte
}

// Engine is the native codec/demux/mux collaborator.
//
// Every method blocks until the engine finishes. A handle must not be used
// from more than one goroutine at a time, and every handle must be released
// exactly once. LastError is only meaningful right after a call on the
// same goroutine reported failure.
type Engine interface {
	// OpenReader opens path for decoding. A non-zero status means failure.
	OpenReader(path string, args, extras []string, hooks *Hooks) (Handle, int32)
	// NextFrame returns StatusReady, StatusEOF or an error status.
	NextFrame(h Handle, desc *FrameDescriptor, decode bool) (NextResult, int32)
	// Reconfigure applies new arguments to an open reader.
	Reconfigure(h Handle, args []string) int32
	// FrameCount returns the number of frames if known, or 0.
	FrameCount(h Handle) uint64
	// ReleaseReader destroys a reader handle.
	ReleaseReader(h Handle)

	// OpenWriter opens path for encoding frames of the given format.
	OpenWriter(path string, format *FrameDescriptor, args []string, realtime bool, log LogSink) (Handle, int32)
	// PushFrame returns <0 on error, 0 when accepted, >0 when skipped.
	PushFrame(h Handle, desc *FrameDescriptor, timestamp float64) int32
	// CloseWriter finalizes the output.
	CloseWriter(h Handle) int32
	// ReleaseWriter destroys a writer handle.
	ReleaseWriter(h Handle)

	// LastError returns the diagnostic for the last failed call.
	LastError() string
	// FreeExtras returns an extras blob to the engine's allocator.
	FreeExtras(extras []byte)
}

func engineError(e Engine, op, path string, code int32) *EngineError {
	return &EngineError{Op: op, Path: path, Code: code, Message: e.LastError()}
}
