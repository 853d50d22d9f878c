// Package videoreader streams decoded video frames out of a native codec
// engine (libvideoreader_c) and pushes host frames back into it for
// encoding.
//
// Key pieces include:
//   - Reader: forward-only frame iteration with seeking, reconfiguration
//     and per-frame metadata ("extras")
//   - Writer: frame encoding with size/format checks and realtime skipping
//   - Buffer and BufferFactory: host-allocated frame memory the engine
//     decodes into directly
//   - Engine: the native boundary, implemented by NativeEngine and by the
//     in-memory enginetest.Engine
//
// # Architecture
//
//	Decode: Engine.NextFrame -> Allocate hook -> Registry -> Frame{Buffer, Extras}
//	Encode: Buffer -> Writer.Push -> Engine.PushFrame
//
// # Buffer Allocation
//
// With ReaderConfig.Buffers set, the engine asks the host for a buffer of
// the decoded shape and writes pixels straight into it; every returned
// frame owns its buffer. With Buffers nil, frames are views of engine
// memory and are only valid until the next call on the reader (see
// Frame.Detach).
//
// # Native Library
//
// NativeEngine loads libvideoreader_c with purego (CGO_ENABLED=0).
// Set VIDEOREADER_LIB_PATH to the library file or VIDEOREADER_SDK_LIB_PATH
// to the directory containing it. The URL selects the backend: "pylon"
// and "galaxy://..." address cameras, everything else goes to FFmpeg.
//
// # Build Tags
//
//   - novideoreader: build without the native binding; NewNativeEngine
//     then returns ErrEngineNotAvailable
package videoreader
