package wvm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/alphabill-org/wasm-framebuffer/engine"
	"github.com/alphabill-org/wasm-framebuffer/memory"
)

const (
	envModuleName = "env"
	fbModuleName  = "fb"

	// exported by guest modules compiled with clang/wasm-ld
	heapBaseGlobal = "__heap_base"
	// guest function called once per frame by the host loop
	frameFunc = "frame"
	// called once after the heap base has been applied
	startFunc = "_start"
)

/*
WasmVM hosts the framebuffer engine on the linear memory of a wazero
runtime. The memory is defined by the "env" module and the engine API is
exported to guests as "fb" module.
*/
type WasmVM struct {
	runtime wazero.Runtime
	env     api.Module
	engine  *engine.Engine
	log     *slog.Logger
}

type Observability = engine.Observability

// New - creates new wazero runtime with shared linear memory and framebuffer engine on it
func New(ctx context.Context, observe Observability, opts ...Option) (*WasmVM, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.minPages > options.maxPages || options.maxPages > memory.MaxPages {
		return nil, fmt.Errorf("invalid memory size: initial %d pages, max %d pages", options.minPages, options.maxPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, options.cfg)
	if options.preallocate {
		ctx = experimental.WithMemoryAllocator(ctx, experimental.MemoryAllocatorFunc(preallocatedMemory))
	}
	// WASM shared memory env
	env, err := rt.InstantiateWithConfig(ctx, envModule(options.minPages, options.maxPages), wazero.NewModuleConfig().WithName(envModuleName))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("instantiate env module: %w", err), rt.Close(ctx))
	}
	mem := env.Memory()
	if mem == nil {
		return nil, errors.Join(errors.New("env module doesn't export memory"), rt.Close(ctx))
	}

	eng, err := engine.New(mem, observe, append([]engine.Option{engine.WithMemInfo(mem.Definition())}, options.engineOpts...)...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating engine: %w", err), rt.Close(ctx))
	}
	vm := &WasmVM{
		runtime: rt,
		env:     env,
		engine:  eng,
		log:     observe.Logger(),
	}
	if err := addFramebufferModule(ctx, rt, vm); err != nil {
		return nil, errors.Join(fmt.Errorf("adding framebuffer module: %w", err), rt.Close(ctx))
	}
	return vm, nil
}

func (vm *WasmVM) Engine() *engine.Engine { return vm.engine }

// Memory returns the linear memory shared by the host and the guests.
func (vm *WasmVM) Memory() api.Memory { return vm.env.Memory() }

/*
LoadGuest instantiates guest module which imports the shared memory from "env"
and the engine API from "fb". When the guest exports "__heap_base" global and
the engine hasn't been initialized yet the arena is set to start from there.
The heap base is applied before the start function of the guest runs, so a
guest calling "fb.init" from "_start" gets the arena above its static data.
*/
func (vm *WasmVM) LoadGuest(ctx context.Context, wasm []byte) (*Guest, error) {
	if len(wasm) < 1 {
		return nil, errors.New("guest module is empty")
	}
	m, err := vm.runtime.InstantiateWithConfig(ctx, wasm, wazero.NewModuleConfig().WithStartFunctions())
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate guest module: %w", err)
	}
	if hb := m.ExportedGlobal(heapBaseGlobal); hb != nil && !vm.engine.Initialized() {
		if err := vm.engine.SetHeapBase(api.DecodeU32(hb.Get())); err != nil {
			return nil, errors.Join(fmt.Errorf("setting heap base: %w", err), m.Close(ctx))
		}
	}
	if start := m.ExportedFunction(startFunc); start != nil {
		if _, err := start.Call(ctx); err != nil {
			return nil, errors.Join(fmt.Errorf("calling %s: %w", startFunc, err), m.Close(ctx))
		}
	}
	return &Guest{mod: m, frame: m.ExportedFunction(frameFunc)}, nil
}

func (vm *WasmVM) Close(ctx context.Context) error {
	return vm.runtime.Close(ctx)
}

/*
Guest is an instantiated guest module.
*/
type Guest struct {
	mod   api.Module
	frame api.Function
}

// HasFrame returns true when the guest exports the per frame function.
func (g *Guest) HasFrame() bool { return g.frame != nil }

/*
Frame calls the "frame" function of the guest, the function must take no
parameters and may return single i32 status code.
*/
func (g *Guest) Frame(ctx context.Context) (Status, error) {
	if g.frame == nil {
		return StatusError, fmt.Errorf("module doesn't export function %q", frameFunc)
	}
	res, err := g.frame.Call(ctx)
	if err != nil {
		return StatusError, fmt.Errorf("calling %s: %w", frameFunc, err)
	}
	if len(res) == 0 {
		return StatusOK, nil
	}
	return Status(api.DecodeU32(res[0])), nil
}

/*
Call calls function "name" exported by the guest.
*/
func (g *Guest) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("module doesn't export function %q", name)
	}
	return fn.Call(ctx, params...)
}

func (g *Guest) Close(ctx context.Context) error {
	return g.mod.Close(ctx)
}

/*
preallocatedMemory reserves "max" bytes so the backing array is never moved
when the memory grows.
*/
func preallocatedMemory(capacity, max uint64) experimental.LinearMemory {
	return &fixedBuffer{buf: make([]byte, 0, max)}
}

type fixedBuffer struct {
	buf []byte
}

func (b *fixedBuffer) Reallocate(size uint64) []byte {
	if size > uint64(cap(b.buf)) {
		return nil
	}
	b.buf = b.buf[:size]
	return b.buf
}

func (b *fixedBuffer) Free() {}
