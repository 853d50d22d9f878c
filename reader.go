package videoreader

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the iteration state of a Reader.
type State int32

const (
	StateCreated   State = iota // open, no frame requested yet
	StateStreaming              // at least one frame delivered
	StateExhausted              // end of stream reached (terminal)
	StateFailed                 // engine reported an error (terminal)
	StateClosed                 // handle released
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateStreaming:
		return "Streaming"
	case StateExhausted:
		return "Exhausted"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Reader pulls frames from an engine reader session.
//
// A Reader is a single-pass, forward-only sequence. It is not safe for
// concurrent use: every call blocks inside the engine and the engine may
// call back into the reader's allocator during that call.
type Reader struct {
	engine  Engine
	handle  Handle
	config  ReaderConfig
	backend Backend
	alloc   *hostAllocator // nil for engine-native buffers

	state State
	err   error // terminal failure
	index uint64

	log *zap.Logger
}

// OpenReader opens config.Path on engine.
// The returned reader must be closed; an abandoned reader is released by
// the garbage collector.
func OpenReader(engine Engine, config ReaderConfig) (*Reader, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.Args = append([]string(nil), config.Args...)
	config.Extras = append([]string(nil), config.Extras...)

	r := &Reader{
		engine:  engine,
		config:  config,
		backend: BackendFor(config.Path),
		log: Logger().With(
			zap.String("session", uuid.NewString()),
			zap.String("path", config.Path),
		),
	}

	hooks := &Hooks{Log: config.LogSink}
	if config.Buffers != nil {
		r.alloc = newHostAllocator(config.Buffers, config.Channels)
		hooks.Allocate = r.alloc.allocate
		hooks.Free = r.alloc.release
	}

	if unknown := r.backend.UnknownExtras(config.Extras); len(unknown) > 0 {
		r.log.Warn("extras not known to backend",
			zap.Stringer("backend", r.backend), zap.Strings("keys", unknown))
	}

	h, code := engine.OpenReader(config.Path, config.Args, config.Extras, hooks)
	if code != 0 {
		return nil, engineError(engine, "open", config.Path, code)
	}
	r.handle = h
	runtime.SetFinalizer(r, (*Reader).finalize)

	r.log.Debug("reader opened",
		zap.Stringer("backend", r.backend),
		zap.Bool("host_buffers", r.alloc != nil),
		zap.Strings("extras", config.Extras))
	return r, nil
}

// FrameCount opens path only to ask the engine for its frame count.
// It returns 0 when the count is unknown (live streams, cameras).
func FrameCount(engine Engine, path string) (uint64, error) {
	h, code := engine.OpenReader(path, nil, nil, &Hooks{})
	if code != 0 {
		return 0, engineError(engine, "open", path, code)
	}
	defer engine.ReleaseReader(h)
	return engine.FrameCount(h), nil
}

// Next decodes and returns the next frame. It returns io.EOF once the
// stream is exhausted.
func (r *Reader) Next() (*Frame, error) {
	return r.step(true)
}

// NextFast advances one frame without decoding pixels. The returned frame
// carries number, timestamp and extras; its buffer content is undefined.
func (r *Reader) NextFast() (*Frame, error) {
	return r.step(false)
}

// Frames returns the remaining frames as a single-use sequence.
// Iteration stops at end of stream or after yielding an error.
func (r *Reader) Frames() iter.Seq2[*Frame, error] {
	return r.frames(true)
}

// FastFrames is Frames without pixel decoding.
func (r *Reader) FastFrames() iter.Seq2[*Frame, error] {
	return r.frames(false)
}

func (r *Reader) frames(decode bool) iter.Seq2[*Frame, error] {
	return func(yield func(*Frame, error) bool) {
		for {
			f, err := r.step(decode)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(f, err) || err != nil {
				return
			}
		}
	}
}

// step performs one engine call and advances the state machine.
func (r *Reader) step(decode bool) (*Frame, error) {
	switch r.state {
	case StateClosed:
		return nil, ErrClosed
	case StateExhausted:
		return nil, io.EOF
	case StateFailed:
		return nil, r.err
	}

	var desc FrameDescriptor
	res, code := r.engine.NextFrame(r.handle, &desc, decode)
	r.index++

	switch code {
	case StatusReady:
		r.state = StateStreaming
		frame := &Frame{
			Buffer:    r.claim(&desc, decode),
			Number:    res.Number,
			Timestamp: res.Timestamp,
		}
		if res.Extras != nil {
			extras, err := r.decodeExtras(res.Extras)
			if err != nil {
				return nil, r.fail(err)
			}
			frame.Extras = extras
		}
		return frame, nil

	case StatusEOF:
		r.dropExtras(res.Extras)
		r.state = StateExhausted
		r.log.Debug("end of stream", zap.Uint64("index", r.index))
		return nil, io.EOF

	default:
		r.dropExtras(res.Extras)
		var err error = engineError(r.engine, "next", r.config.Path, code)
		if r.alloc != nil {
			if allocErr := r.alloc.collect(); allocErr != nil {
				err = allocErr
			}
		}
		return nil, r.fail(err)
	}
}

// claim takes ownership of the buffer behind a ready frame.
func (r *Reader) claim(desc *FrameDescriptor, decode bool) Buffer {
	if desc.Data == 0 {
		if decode && r.alloc != nil {
			contractViolation(fmt.Errorf("%w: ready frame without buffer", ErrUnknownAddress))
		}
		return nil
	}
	if r.alloc == nil {
		return borrow(desc)
	}
	return r.alloc.claim(desc)
}

// decodeExtras decodes the engine blob and hands it back to the engine.
func (r *Reader) decodeExtras(blob []byte) (Extras, error) {
	defer r.engine.FreeExtras(blob)
	return DecodeExtras(blob, r.config.Extras)
}

// dropExtras frees a blob that comes with no frame.
func (r *Reader) dropExtras(blob []byte) {
	if blob != nil {
		r.engine.FreeExtras(blob)
	}
}

func (r *Reader) fail(err error) error {
	r.state = StateFailed
	r.err = err
	r.log.Debug("reader failed", zap.Uint64("index", r.index), zap.Error(err))
	return err
}

// Seek advances to the frame with host index target, so that the next
// call to Next returns it. Seeking is forward-only: a target behind the
// current position fails with ErrFrameNotFound without touching the
// stream, as does a target past the end (the reader is then exhausted).
func (r *Reader) Seek(target uint64) error {
	if r.index == target {
		return nil
	}
	if target < r.index {
		return fmt.Errorf("%w: index %d is behind position %d", ErrFrameNotFound, target, r.index)
	}
	for r.index < target {
		_, err := r.step(false)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: no frame with index %d", ErrFrameNotFound, target)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SeekFrame seeks to target and decodes that frame. It returns nil, nil
// when the stream ends exactly at target.
func (r *Reader) SeekFrame(target uint64) (*Frame, error) {
	if err := r.Seek(target); err != nil {
		return nil, err
	}
	f, err := r.Next()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	return f, err
}

// Set pushes new engine arguments into the open session, e.g. to change
// the output resolution mid-stream.
func (r *Reader) Set(args []string) error {
	if r.state == StateClosed {
		return ErrClosed
	}
	if len(args)%2 != 0 {
		return fmt.Errorf("%w: %d arguments", ErrInvalidArguments, len(args))
	}
	if code := r.engine.Reconfigure(r.handle, args); code != 0 {
		return engineError(r.engine, "set", r.config.Path, code)
	}
	r.config.Args = append([]string(nil), args...)
	return nil
}

// Size returns the number of frames if the engine knows it, or 0.
func (r *Reader) Size() uint64 {
	if r.state == StateClosed {
		return 0
	}
	return r.engine.FrameCount(r.handle)
}

// Index returns the number of engine frame requests made so far,
// including the end-of-stream and failed requests.
func (r *Reader) Index() uint64 { return r.index }

// State returns the iteration state.
func (r *Reader) State() State { return r.state }

// Err returns the terminal failure, if any.
func (r *Reader) Err() error { return r.err }

// Backend returns the backend serving the reader's path.
func (r *Reader) Backend() Backend { return r.backend }

// Config returns the configuration the reader was opened with, with Args
// reflecting the last successful Set.
func (r *Reader) Config() ReaderConfig { return r.config }

// Lent returns the number of host buffers currently held by the engine.
func (r *Reader) Lent() int {
	if r.alloc == nil {
		return 0
	}
	return r.alloc.registry.Len()
}

// Close releases the engine session. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.state == StateClosed {
		return nil
	}
	runtime.SetFinalizer(r, nil)
	r.release()
	return nil
}

func (r *Reader) finalize() {
	if r.state == StateClosed {
		return
	}
	r.log.Warn("reader was not closed")
	r.release()
}

func (r *Reader) release() {
	r.state = StateClosed
	r.engine.ReleaseReader(r.handle)
	r.handle = 0
	if r.alloc != nil {
		if n := r.alloc.registry.Drain(); n > 0 {
			r.log.Warn("buffers left allocated", zap.Int("count", n))
		}
	}
	r.log.Debug("reader closed", zap.Uint64("index", r.index))
}
