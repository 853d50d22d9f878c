// Command videoreader decodes a video file, stream or camera and prints
// one line per frame. Frames can be re-encoded to another file and frame
// counts of several files can be queried at once.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/thesyncim/videoreader"
)

// cliFlags holds the parsed command line.
type cliFlags struct {
	config   string
	extras   []string
	buffers  string
	align    int
	channels []int
	fast     bool
	seek     int64
	max      int
	out      string
	outArgs  []string
	realtime bool
	count    bool
	verbose  bool
	help     bool
}

func newFlagSet() (*flag.FlagSet, *cliFlags) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("videoreader", flag.ContinueOnError)
	fs.StringVarP(&f.config, "config", "c", "", "YAML profile")
	fs.StringSliceVarP(&f.extras, "extras", "e", nil, "Per-frame metadata keys")
	fs.StringVarP(&f.buffers, "buffers", "b", "", "Buffer allocation")
	fs.IntVar(&f.align, "align", 0, "Row alignment for aligned buffers")
	fs.IntSliceVar(&f.channels, "channels", nil, "Accepted channel counts")
	fs.BoolVarP(&f.fast, "fast", "f", false, "Skip pixel decoding")
	fs.Int64VarP(&f.seek, "seek", "s", -1, "Start at frame index")
	fs.IntVarP(&f.max, "max", "n", 0, "Stop after this many frames")
	fs.StringVarP(&f.out, "out", "o", "", "Re-encode frames to this file")
	fs.StringSliceVar(&f.outArgs, "out-args", nil, "Writer key,value pairs")
	fs.BoolVar(&f.realtime, "realtime", false, "Let the writer drop frames")
	fs.BoolVar(&f.count, "count", false, "Print frame counts and exit")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Debug logging")
	fs.BoolVarP(&f.help, "help", "h", false, "Print usage information and exit")
	fs.Usage = func() { fmt.Fprint(os.Stderr, helpString) }
	return fs, f
}

const helpString = `Decode video frames through libvideoreader

Usage: videoreader [OPTION]... URL [KEY VALUE]...
       videoreader --count FILE...

Reader:
  -c, --config=FILE      YAML profile, flags override it
  -e, --extras=K1,K2     Request per-frame metadata (e.g. pts,pkt_dts)
  -b, --buffers=KIND     native, packed, aligned or image (default: native)
      --align=NUM        Row alignment for aligned buffers (default: 64)
      --channels=N1,N2   Accepted channel counts (default: any)
  -f, --fast             Do not decode pixels
  -s, --seek=NUM         Skip to frame index NUM
  -n, --max=NUM          Stop after NUM frames

Writer:
  -o, --out=FILE         Re-encode decoded frames to FILE
      --out-args=K,V     Writer key/value pairs
      --realtime         Queue frames and let the writer drop them

Miscellaneous:
      --count            Print the frame count of every FILE and exit
  -v, --verbose          Log engine and session details
  -h, --help             Print this help message and exit
`

func main() {
	fs, f := newFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if f.help {
		fmt.Print(helpString)
		os.Exit(0)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	logger := zap.NewNop()
	level := videoreader.SeverityWarning
	if f.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			fatal(err)
		}
		level = videoreader.SeverityDebug
	}
	defer logger.Sync()
	videoreader.SetLogger(logger)

	engine, err := videoreader.NewNativeEngine()
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.count {
		err = countFrames(ctx, engine, fs.Args(), os.Stdout)
	} else {
		var o *options
		if o, err = buildOptions(fs, f); err == nil {
			o.LogLevel = level
			err = run(ctx, engine, o, os.Stdout)
		}
	}
	if err != nil {
		stop()
		fatal(err)
	}
}

// buildOptions merges the profile with the flags that were set explicitly
// and the positional URL and key/value arguments.
func buildOptions(fs *flag.FlagSet, f *cliFlags) (*options, error) {
	p := &Profile{}
	if f.config != "" {
		var err error
		if p, err = LoadProfile(f.config); err != nil {
			return nil, err
		}
	}
	args := fs.Args()
	if len(args) == 0 {
		return nil, errors.New("missing URL")
	}
	o := &options{
		Path:     args[0],
		Args:     slices.Concat(p.Args, args[1:]),
		Extras:   p.Extras,
		Buffers:  p.Buffers,
		Align:    p.Align,
		Channels: p.Channels,
		Fast:     f.fast,
		Seek:     f.seek,
		Max:      f.max,
		Out:      p.Output.Path,
		OutArgs:  p.Output.Args,
		Realtime: p.Output.Realtime,
		LogLevel: videoreader.SeverityWarning,
	}
	if fs.Changed("extras") {
		o.Extras = f.extras
	}
	if fs.Changed("buffers") {
		o.Buffers = f.buffers
	}
	if fs.Changed("align") {
		o.Align = f.align
	}
	if fs.Changed("channels") {
		o.Channels = f.channels
	}
	if fs.Changed("out") {
		o.Out = f.out
	}
	if fs.Changed("out-args") {
		o.OutArgs = f.outArgs
	}
	if fs.Changed("realtime") {
		o.Realtime = f.realtime
	}
	if len(o.Args)%2 != 0 {
		return nil, fmt.Errorf("%w: expected KEY VALUE pairs after %s", videoreader.ErrInvalidArguments, o.Path)
	}
	if len(o.OutArgs)%2 != 0 {
		return nil, fmt.Errorf("%w: --out-args", videoreader.ErrInvalidArguments)
	}
	return o, nil
}

func fatal(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "videoreader: %s\n", strings.TrimPrefix(err.Error(), "videoreader: "))
	os.Exit(1)
}
