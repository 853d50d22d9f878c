package videoreader

import (
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Writer pushes host buffers to an engine writer session for encoding.
// Like Reader it is not safe for concurrent use.
type Writer struct {
	engine Engine
	handle Handle
	config WriterConfig

	finalized bool // output finalized or finalization attempted
	released  bool

	pushed  uint64
	skipped uint64

	log *zap.Logger
}

// OpenWriter creates config.Path for frames of config.Format.
func OpenWriter(engine Engine, config WriterConfig) (*Writer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.Args = append([]string(nil), config.Args...)

	format := FrameDescriptor{
		Height:     int32(config.Format.Height),
		Width:      int32(config.Format.Width),
		Channels:   int32(config.Format.Channels),
		ScalarType: config.Format.ScalarType,
	}
	h, code := engine.OpenWriter(config.Path, &format, config.Args, config.Realtime, config.LogSink)
	if code != 0 {
		return nil, engineError(engine, "open", config.Path, code)
	}

	w := &Writer{
		engine: engine,
		handle: h,
		config: config,
		log: Logger().With(
			zap.String("session", uuid.NewString()),
			zap.String("path", config.Path),
		),
	}
	runtime.SetFinalizer(w, (*Writer).finalize)
	w.log.Debug("writer opened",
		zap.Stringer("format", config.Format),
		zap.Bool("realtime", config.Realtime))
	return w, nil
}

// Push hands buf to the engine with a timestamp in seconds. It returns
// false when the engine skipped the frame (realtime pacing) and an error
// when the buffer does not match the writer format or the engine fails.
func (w *Writer) Push(buf Buffer, timestamp float64) (bool, error) {
	if w.finalized {
		return false, ErrClosed
	}
	if err := w.check(buf); err != nil {
		return false, err
	}

	desc := descriptor(buf)
	var pinner runtime.Pinner
	pinner.Pin(buf.Pointer())
	ret := w.engine.PushFrame(w.handle, &desc, timestamp)
	pinner.Unpin()

	switch {
	case ret < 0:
		return false, engineError(w.engine, "push", w.config.Path, ret)
	case ret > 0:
		w.skipped++
		return false, nil
	default:
		w.pushed++
		return true, nil
	}
}

// PushFrame pushes a decoded frame at its own timestamp.
func (w *Writer) PushFrame(f *Frame) (bool, error) {
	return w.Push(f.Buffer, f.Timestamp)
}

func (w *Writer) check(buf Buffer) error {
	if buf == nil || buf.Pointer() == nil {
		return fmt.Errorf("%w: empty buffer", ErrInvalidShape)
	}
	got, want := buf.Shape(), w.config.Format
	if got.ScalarType != want.ScalarType {
		return fmt.Errorf("%w: only %s images are supported, not %s", ErrUnsupportedFormat, want.ScalarType, got.ScalarType)
	}
	if got.Width != want.Width || got.Height != want.Height || got.Channels != want.Channels {
		return fmt.Errorf("%w: %s, writer expects %s", ErrFrameSizeChanged, got, want)
	}
	if buf.Stride() < got.RowBytes() {
		return fmt.Errorf("%w: stride %d < row size %d", ErrInvalidShape, buf.Stride(), got.RowBytes())
	}
	return nil
}

// Close finalizes the output and releases the engine session. The output
// is only valid if Close returns nil. Calling Close again returns ErrClosed.
func (w *Writer) Close() error {
	if w.finalized {
		return ErrClosed
	}
	w.finalized = true
	runtime.SetFinalizer(w, nil)
	defer w.release()

	if code := w.engine.CloseWriter(w.handle); code != 0 {
		err := engineError(w.engine, "close", w.config.Path, code)
		err.Err = ErrCloseFailed
		return err
	}
	w.log.Debug("writer closed",
		zap.Uint64("pushed", w.pushed),
		zap.Uint64("skipped", w.skipped))
	return nil
}

// Stats returns the number of accepted and skipped frames.
func (w *Writer) Stats() (pushed, skipped uint64) {
	return w.pushed, w.skipped
}

// Config returns the writer configuration.
func (w *Writer) Config() WriterConfig { return w.config }

func (w *Writer) finalize() {
	if w.released {
		return
	}
	w.log.Warn("writer was not closed; output is not finalized")
	w.release()
}

func (w *Writer) release() {
	if w.released {
		return
	}
	w.released = true
	w.engine.ReleaseWriter(w.handle)
	w.handle = 0
}
