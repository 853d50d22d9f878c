package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/fatih/color"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/thesyncim/videoreader"
)

// options is the merged result of the profile and the command line.
type options struct {
	Path     string
	Args     []string
	Extras   []string
	Buffers  string
	Align    int
	Channels []int

	Fast bool
	Seek int64 // -1 disables
	Max  int   // 0 means all frames

	Out      string
	OutArgs  []string
	Realtime bool

	LogLevel videoreader.Severity
}

var (
	numberColor = color.New(color.FgCyan)
	missColor   = color.New(color.FgYellow, color.Bold)
	skipColor   = color.New(color.FgRed)
)

// severityColors maps engine severities to terminal colours.
var severityColors = map[videoreader.Severity]*color.Color{
	videoreader.SeverityFatal:   color.New(color.FgRed, color.Bold),
	videoreader.SeverityError:   color.New(color.FgRed),
	videoreader.SeverityWarning: color.New(color.FgYellow),
	videoreader.SeverityInfo:    color.New(color.FgGreen),
	videoreader.SeverityDebug:   color.New(color.FgWhite),
}

// colorSink prints engine messages up to max severity.
func colorSink(w io.Writer, max videoreader.Severity) videoreader.LogSink {
	return func(s videoreader.Severity, msg string) {
		if s > max {
			return
		}
		c, ok := severityColors[s]
		if !ok {
			c = severityColors[videoreader.SeverityDebug]
		}
		c.Fprint(w, msg)
	}
}

func (o *options) readerConfig(w io.Writer) (videoreader.ReaderConfig, error) {
	buffers, err := bufferFactory(o.Buffers, o.Align)
	if err != nil {
		return videoreader.ReaderConfig{}, err
	}
	return videoreader.ReaderConfig{
		Path:     o.Path,
		Args:     o.Args,
		Extras:   o.Extras,
		Buffers:  buffers,
		Channels: videoreader.ChannelSet(o.Channels),
		LogSink:  colorSink(w, o.LogLevel),
	}, nil
}

// run iterates o.Path, printing one line per frame and optionally
// re-encoding the frames to o.Out.
func run(ctx context.Context, engine videoreader.Engine, o *options, w io.Writer) (err error) {
	if o.Fast && o.Out != "" {
		return errors.New("--fast does not decode pixels and cannot be combined with --out")
	}
	config, err := o.readerConfig(w)
	if err != nil {
		return err
	}
	r, err := videoreader.OpenReader(engine, config)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, r.Close()) }()

	total := r.Size()
	fmt.Fprintf(w, "%s: backend %s, %s\n", o.Path, r.Backend(), describeTotal(total))

	if o.Seek >= 0 {
		if !r.Backend().Seekable() {
			missColor.Fprintf(w, "warning: %s is a live %s source, seeking drops %d frames\n", o.Path, r.Backend(), o.Seek)
		}
		if err := r.Seek(uint64(o.Seek)); err != nil {
			return err
		}
	}

	var out *videoreader.Writer
	defer func() {
		if out != nil {
			err = multierr.Append(err, out.Close())
		}
	}()

	frames := r.Frames()
	if o.Fast {
		frames = r.FastFrames()
	}

	var (
		count int
		prev  uint64
	)
	for f, ferr := range frames {
		if ferr != nil {
			return ferr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		missed := uint64(0)
		if count > 0 && f.Number > prev+1 {
			missed = f.Number - prev - 1
		}
		prev = f.Number
		count++
		printFrame(w, f, total, missed)

		if o.Out != "" && f.Buffer != nil {
			if out == nil {
				out, err = openOutput(engine, o, f.Buffer.Shape(), w)
				if err != nil {
					return err
				}
			}
			ok, err := out.PushFrame(f)
			if err != nil {
				return err
			}
			if !ok {
				skipColor.Fprintf(w, "  skipped by writer\n")
			}
		}

		if o.Max > 0 && count >= o.Max {
			break
		}
	}
	if out != nil {
		pushed, skipped := out.Stats()
		fmt.Fprintf(w, "%s: %d frames written, %d skipped\n", o.Out, pushed, skipped)
	}
	return nil
}

func openOutput(engine videoreader.Engine, o *options, shape videoreader.Shape, w io.Writer) (*videoreader.Writer, error) {
	return videoreader.OpenWriter(engine, videoreader.WriterConfig{
		Path:     o.Out,
		Format:   shape,
		Args:     o.OutArgs,
		Realtime: o.Realtime,
		LogSink:  colorSink(w, o.LogLevel),
	})
}

func describeTotal(total uint64) string {
	if total == 0 {
		return "unknown length"
	}
	return fmt.Sprintf("%d frames", total)
}

func printFrame(w io.Writer, f *videoreader.Frame, total uint64, missed uint64) {
	t := "?"
	if total > 0 {
		t = fmt.Sprint(total)
	}
	numberColor.Fprintf(w, "[%d/%s]", f.Number, t)
	if f.Buffer != nil {
		s := f.Buffer.Shape()
		fmt.Fprintf(w, " %dx%dx%d", s.Width, s.Height, s.Channels)
	}
	fmt.Fprintf(w, " @ %.3f s", f.Timestamp)
	if missed > 0 {
		missColor.Fprintf(w, " missed %d", missed)
	}
	for _, k := range slices.Sorted(maps.Keys(f.Extras)) {
		fmt.Fprintf(w, " %s=%v", k, f.Extras[k])
	}
	fmt.Fprintln(w)
}

// countFrames asks the engine for the frame count of every path, one
// session per path, concurrently.
func countFrames(ctx context.Context, engine videoreader.Engine, paths []string, w io.Writer) error {
	counts := make([]uint64, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := videoreader.FrameCount(engine, path)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, path := range paths {
		fmt.Fprintf(w, "%s: %s\n", path, describeTotal(counts[i]))
	}
	return nil
}
