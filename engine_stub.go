//go:build !(darwin || linux) || novideoreader

package videoreader

// NativeEngine is unavailable on this platform or build.
type NativeEngine struct{}

// NewNativeEngine always fails with ErrEngineNotAvailable.
func NewNativeEngine() (*NativeEngine, error) {
	return nil, ErrEngineNotAvailable
}

// IsEngineAvailable always returns false.
func IsEngineAvailable() bool { return false }

func (*NativeEngine) OpenReader(string, []string, []string, *Hooks) (Handle, int32) { return 0, -1 }
func (*NativeEngine) NextFrame(Handle, *FrameDescriptor, bool) (NextResult, int32)  { return NextResult{}, -1 }
func (*NativeEngine) Reconfigure(Handle, []string) int32                            { return -1 }
func (*NativeEngine) FrameCount(Handle) uint64                                      { return 0 }
func (*NativeEngine) ReleaseReader(Handle)                                          {}

func (*NativeEngine) OpenWriter(string, *FrameDescriptor, []string, bool, LogSink) (Handle, int32) {
	return 0, -1
}
func (*NativeEngine) PushFrame(Handle, *FrameDescriptor, float64) int32 { return -1 }
func (*NativeEngine) CloseWriter(Handle) int32                          { return -1 }
func (*NativeEngine) ReleaseWriter(Handle)                              {}

func (*NativeEngine) LastError() string   { return ErrEngineNotAvailable.Error() }
func (*NativeEngine) FreeExtras([]byte) {}

var _ Engine = (*NativeEngine)(nil)
