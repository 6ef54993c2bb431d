package framebuffer

import (
	"fmt"
	"strings"
)

/*
DirtyPolicy decides whether Render repaints and swaps the buffers.
*/
type DirtyPolicy int

const (
	// DirtyAlways - every Render call paints the back buffer and swaps.
	DirtyAlways DirtyPolicy = iota
	// DirtyTracked - Render only does work when the frame has been marked dirty
	// (by resize, painter change or explicit MarkDirty call).
	DirtyTracked
)

func (p DirtyPolicy) String() string {
	switch p {
	case DirtyAlways:
		return "always"
	case DirtyTracked:
		return "tracked"
	default:
		return fmt.Sprintf("DirtyPolicy(%d)", int(p))
	}
}

func ParseDirtyPolicy(s string) (DirtyPolicy, error) {
	switch strings.ToLower(s) {
	case "", "always":
		return DirtyAlways, nil
	case "tracked":
		return DirtyTracked, nil
	default:
		return DirtyAlways, fmt.Errorf("unknown dirty policy %q, expected one of: always, tracked", s)
	}
}

type (
	Options struct {
		strideAlignment uint32
		policy          DirtyPolicy
		painter         Painter
	}

	Option func(*Options)
)

func defaultOptions() *Options {
	return &Options{
		strideAlignment: DefaultStrideAlignment,
		policy:          DirtyAlways,
		painter:         Pulse{},
	}
}

/*
WithStrideAlignment sets the alignment of the row stride and of the buffer
start addresses, must be power of two.
*/
func WithStrideAlignment(alignment uint32) Option {
	return func(o *Options) {
		o.strideAlignment = alignment
	}
}

func WithDirtyPolicy(policy DirtyPolicy) Option {
	return func(o *Options) {
		o.policy = policy
	}
}

func WithPainter(p Painter) Option {
	return func(o *Options) {
		o.painter = p
	}
}
