package videoreader

import "fmt"

// ReaderConfig configures a reader session.
type ReaderConfig struct {
	Path string // file path, stream URL or device address

	// Args are engine options as key/value pairs, e.g.
	//   {"rtsp_transport", "tcp", "analyzeduration", "32"}
	Args []string

	// Extras lists the metadata keys to request per frame (e.g. "pts",
	// "pkt_dts"). Empty means none and costs nothing per frame.
	Extras []string

	// Buffers selects host-allocated frames. Nil lets the engine manage
	// its own memory; frames are then only valid until the next call.
	Buffers BufferFactory

	// Channels restricts the channel counts accepted by Buffers.
	// Empty accepts any.
	Channels ChannelSet

	// LogSink receives engine diagnostics. Nil disables engine logging.
	LogSink LogSink
}

// DefaultReaderConfig returns a reader configuration for path that decodes
// into packed host buffers.
func DefaultReaderConfig(path string) ReaderConfig {
	return ReaderConfig{
		Path:    path,
		Buffers: PackedBuffers(),
	}
}

func (c *ReaderConfig) validate() error {
	if len(c.Args)%2 != 0 {
		return fmt.Errorf("%w: %d arguments", ErrInvalidArguments, len(c.Args))
	}
	return nil
}

// WriterConfig configures a writer session.
type WriterConfig struct {
	Path string // output file

	// Format is the frame format every pushed buffer must match.
	Format Shape

	// Args are codec options as key/value pairs.
	Args []string

	// Realtime queues frames and lets the engine drop them when it falls
	// behind; Push then reports skipped frames.
	Realtime bool

	// LogSink receives engine diagnostics. Nil disables engine logging.
	LogSink LogSink
}

// DefaultWriterConfig returns a writer configuration for single-channel
// 8-bit frames of the given size.
func DefaultWriterConfig(path string, width, height int) WriterConfig {
	return WriterConfig{
		Path: path,
		Format: Shape{
			Width:      width,
			Height:     height,
			Channels:   1,
			ScalarType: ScalarU8,
		},
	}
}

func (c *WriterConfig) validate() error {
	if len(c.Args)%2 != 0 {
		return fmt.Errorf("%w: %d arguments", ErrInvalidArguments, len(c.Args))
	}
	return c.Format.Validate()
}
