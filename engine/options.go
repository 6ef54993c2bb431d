package engine

import (
	"context"

	"github.com/alphabill-org/wasm-framebuffer/framebuffer"
	"github.com/alphabill-org/wasm-framebuffer/memory"
)

const (
	// DefaultHeapBase keeps the lowest kilobyte of linear memory (the "null page"
	// and guest statics of small modules) out of the arena.
	DefaultHeapBase = 1024
	// HeapAlignment - heap base is rounded up to this alignment.
	HeapAlignment = 64
)

type (
	// Simulation is the per frame update step called by Update.
	Simulation func(ctx context.Context, dt float32)

	Options struct {
		heapBase   uint32
		memInfo    memory.MemInfo
		oomHandler func(error)
		simulation Simulation
		fbOpts     []framebuffer.Option
	}

	Option func(*Options)
)

func defaultOptions() *Options {
	return &Options{
		heapBase: DefaultHeapBase,
	}
}

/*
WithHeapBase sets the address where the arena starts allocating (typically
the value of the "__heap_base" global of the guest module).
*/
func WithHeapBase(addr uint32) Option {
	return func(o *Options) {
		o.heapBase = addr
	}
}

/*
WithMemInfo sets the source of the maximum page count of the linear memory,
ie wazero api.MemoryDefinition.
*/
func WithMemInfo(info memory.MemInfo) Option {
	return func(o *Options) {
		o.memInfo = info
	}
}

/*
WithOOMHandler sets callback which is called with the error every time an
engine operation fails because of out-of-memory condition.
*/
func WithOOMHandler(f func(error)) Option {
	return func(o *Options) {
		o.oomHandler = f
	}
}

func WithSimulation(f Simulation) Option {
	return func(o *Options) {
		o.simulation = f
	}
}

func WithFramebufferOptions(opts ...framebuffer.Option) Option {
	return func(o *Options) {
		o.fbOpts = append(o.fbOpts, opts...)
	}
}
