package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thesyncim/videoreader"
)

// Profile is a reusable set of reader and writer options loaded from YAML.
// Flags given on the command line override profile values.
type Profile struct {
	Args     []string      `yaml:"args"`     // engine key/value pairs
	Extras   []string      `yaml:"extras"`   // per-frame metadata keys
	Buffers  string        `yaml:"buffers"`  // native, packed, aligned, image
	Align    int           `yaml:"align"`    // row alignment for "aligned"
	Channels []int         `yaml:"channels"` // accepted channel counts, empty = any
	Output   OutputProfile `yaml:"output"`
}

// OutputProfile configures the optional re-encoding of decoded frames.
type OutputProfile struct {
	Path     string   `yaml:"path"`
	Args     []string `yaml:"args"`
	Realtime bool     `yaml:"realtime"`
}

// LoadProfile reads a profile from path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	p := &Profile{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the profile for values the reader would reject later.
func (p *Profile) Validate() error {
	if len(p.Args)%2 != 0 {
		return fmt.Errorf("args: %w", videoreader.ErrInvalidArguments)
	}
	if len(p.Output.Args)%2 != 0 {
		return fmt.Errorf("output.args: %w", videoreader.ErrInvalidArguments)
	}
	if _, err := bufferFactory(p.Buffers, p.Align); err != nil {
		return err
	}
	for _, c := range p.Channels {
		if c <= 0 {
			return fmt.Errorf("channels: invalid count %d", c)
		}
	}
	return nil
}

// bufferFactory maps a buffers name to an allocation strategy.
// "native" (and the empty name) selects engine-owned buffers.
func bufferFactory(name string, align int) (videoreader.BufferFactory, error) {
	switch strings.ToLower(name) {
	case "", "native":
		return nil, nil
	case "packed":
		return videoreader.PackedBuffers(), nil
	case "aligned":
		if align <= 0 {
			align = 64
		}
		return videoreader.AlignedBuffers(align), nil
	case "image":
		return videoreader.StdImageBuffers(), nil
	default:
		return nil, fmt.Errorf("unknown buffers %q (want native, packed, aligned or image)", name)
	}
}
