package wvm

import (
	"github.com/tetratelabs/wazero"

	"github.com/alphabill-org/wasm-framebuffer/engine"
)

const (
	DefaultMemoryPages    = 1
	DefaultMaxMemoryPages = 4096 // 256MiB
)

type (
	Options struct {
		cfg         wazero.RuntimeConfig
		minPages    uint32
		maxPages    uint32
		preallocate bool
		engineOpts  []engine.Option
	}

	Option func(*Options)
)

func defaultOptions() *Options {
	return &Options{
		cfg:      wazero.NewRuntimeConfig().WithCloseOnContextDone(true),
		minPages: DefaultMemoryPages,
		maxPages: DefaultMaxMemoryPages,
	}
}

func WithRuntimeConfig(cfg wazero.RuntimeConfig) Option {
	return func(c *Options) {
		c.cfg = cfg
	}
}

/*
WithMemoryPages sets the initial and maximum size (in 64KiB pages) of the
linear memory exported by the "env" module.
*/
func WithMemoryPages(initial, max uint32) Option {
	return func(c *Options) {
		c.minPages = initial
		c.maxPages = max
	}
}

/*
WithPreallocatedMemory reserves the maximum size of the linear memory up
front so the memory buffer never moves when it grows. Slices returned by
Memory.Read then stay valid across growth.
*/
func WithPreallocatedMemory(prealloc bool) Option {
	return func(c *Options) {
		c.preallocate = prealloc
	}
}

func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *Options) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}
