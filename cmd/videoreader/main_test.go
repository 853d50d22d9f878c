package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/videoreader"
	"github.com/thesyncim/videoreader/enginetest"
)

func init() {
	color.NoColor = true
}

const testProfile = `
args: [rtsp_transport, tcp]
extras: [pts, pkt_dts]
buffers: aligned
align: 32
channels: [1, 3]
output:
  path: out.mkv
  args: [c:v, libx264]
  realtime: true
`

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(testProfile))
	require.NoError(t, err)
	assert.Equal(t, []string{"rtsp_transport", "tcp"}, p.Args)
	assert.Equal(t, []string{"pts", "pkt_dts"}, p.Extras)
	assert.Equal(t, "aligned", p.Buffers)
	assert.Equal(t, 32, p.Align)
	assert.Equal(t, []int{1, 3}, p.Channels)
	assert.Equal(t, OutputProfile{Path: "out.mkv", Args: []string{"c:v", "libx264"}, Realtime: true}, p.Output)
}

func TestParseProfile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"odd args", "args: [analyzeduration]"},
		{"odd output args", "output: {args: [crf]}"},
		{"buffers", "buffers: mmap"},
		{"channels", "channels: [0]"},
		{"syntax", "args: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestBuildOptions(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte(testProfile), 0o644))

	fs, f := newFlagSet()
	require.NoError(t, fs.Parse([]string{
		"--config", profile, "--buffers", "packed", "-n", "10",
		"rtsp://cam", "analyzeduration", "32",
	}))

	o, err := buildOptions(fs, f)
	require.NoError(t, err)
	assert.Equal(t, "rtsp://cam", o.Path)
	assert.Equal(t, []string{"rtsp_transport", "tcp", "analyzeduration", "32"}, o.Args)
	assert.Equal(t, "packed", o.Buffers)
	assert.Equal(t, 32, o.Align)
	assert.Equal(t, []string{"pts", "pkt_dts"}, o.Extras)
	assert.Equal(t, 10, o.Max)
	assert.Equal(t, int64(-1), o.Seek)
	assert.Equal(t, "out.mkv", o.Out)
	assert.True(t, o.Realtime)
}

func TestBuildOptions_OddArgs(t *testing.T) {
	fs, f := newFlagSet()
	require.NoError(t, fs.Parse([]string{"clip.mp4", "analyzeduration"}))
	_, err := buildOptions(fs, f)
	assert.ErrorIs(t, err, videoreader.ErrInvalidArguments)
}

func testEngine() *enginetest.Engine {
	e := enginetest.New()
	e.AddStream("clip.mp4", enginetest.Stream{
		Frames: 5,
		Shape:  videoreader.Shape{Height: 2, Width: 4, Channels: 1},
	})
	return e
}

func TestRun(t *testing.T) {
	e := testEngine()
	var out bytes.Buffer
	o := &options{Path: "clip.mp4", Buffers: "packed", Extras: []string{"pts"}, Seek: 1, Max: 2}

	require.NoError(t, run(context.Background(), e, o, &out))
	assert.Equal(t, ""+
		"clip.mp4: backend ffmpeg, 5 frames\n"+
		"[1/5] 4x2x1 @ 0.040 s pts=512\n"+
		"[2/5] 4x2x1 @ 0.080 s pts=1024\n", out.String())
	assert.Zero(t, e.OpenHandles())
}

func TestRun_SeekLiveSource(t *testing.T) {
	e := enginetest.New()
	e.AddStream("galaxy://0", enginetest.Stream{Frames: 4, Live: true})
	var out bytes.Buffer
	o := &options{Path: "galaxy://0", Seek: 2, Max: 1}

	require.NoError(t, run(context.Background(), e, o, &out))
	assert.Equal(t, ""+
		"galaxy://0: backend galaxy, unknown length\n"+
		"warning: galaxy://0 is a live galaxy source, seeking drops 2 frames\n"+
		"[2/?] 6x4x3 @ 0.080 s\n", out.String())
}

func TestRun_SeekFile(t *testing.T) {
	var out bytes.Buffer
	o := &options{Path: "clip.mp4", Seek: 2, Max: 1}
	require.NoError(t, run(context.Background(), testEngine(), o, &out))
	assert.NotContains(t, out.String(), "warning")
}

func TestRun_Transcode(t *testing.T) {
	e := testEngine()
	var out bytes.Buffer
	o := &options{Path: "clip.mp4", Seek: -1, Out: "copy.mkv", OutArgs: []string{"c:v", "ffv1"}}

	require.NoError(t, run(context.Background(), e, o, &out))
	written := e.Output("copy.mkv")
	require.NotNil(t, written)
	assert.True(t, written.Finalized)
	assert.Len(t, written.Frames, 5)
	assert.Contains(t, out.String(), "copy.mkv: 5 frames written, 0 skipped\n")
	assert.Zero(t, e.OpenHandles())
}

func TestRun_CloseErrorsAreReported(t *testing.T) {
	e := testEngine()
	e.CloseError = "disk full"
	o := &options{Path: "clip.mp4", Seek: -1, Out: "copy.mkv"}

	err := run(context.Background(), e, o, &bytes.Buffer{})
	assert.ErrorIs(t, err, videoreader.ErrCloseFailed)
	assert.Zero(t, e.OpenHandles())
}

func TestRun_FastWithOutput(t *testing.T) {
	o := &options{Path: "clip.mp4", Seek: -1, Fast: true, Out: "copy.mkv"}
	assert.Error(t, run(context.Background(), testEngine(), o, &bytes.Buffer{}))
}

func TestRun_Missed(t *testing.T) {
	var out bytes.Buffer
	f := &videoreader.Frame{Number: 9, Timestamp: 0.36}
	printFrame(&out, f, 0, 3)
	assert.Equal(t, "[9/?] @ 0.360 s missed 3\n", out.String())
}

func TestCountFrames(t *testing.T) {
	e := testEngine()
	e.AddStream("live", enginetest.Stream{Frames: 1, Live: true})

	var out bytes.Buffer
	require.NoError(t, countFrames(context.Background(), e, []string{"clip.mp4", "live"}, &out))
	assert.Equal(t, "clip.mp4: 5 frames\nlive: unknown length\n", out.String())

	err := countFrames(context.Background(), e, []string{"clip.mp4", "missing"}, &out)
	assert.Error(t, err)
	assert.Zero(t, e.OpenHandles())
}

func TestColorSink(t *testing.T) {
	var out bytes.Buffer
	sink := colorSink(&out, videoreader.SeverityWarning)
	sink(videoreader.SeverityError, "bad packet\n")
	sink(videoreader.SeverityInfo, "hidden\n")
	assert.Equal(t, "bad packet\n", out.String())
}
