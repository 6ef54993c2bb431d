package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/alphabill-org/wasm-framebuffer/framebuffer"
	"github.com/alphabill-org/wasm-framebuffer/logger"
	"github.com/alphabill-org/wasm-framebuffer/memory"
	"github.com/alphabill-org/wasm-framebuffer/observability"
)

var (
	ErrNotInitialized     = errors.New("engine has not been initialized")
	ErrAlreadyInitialized = errors.New("engine has already been initialized")
)

type Observability interface {
	Meter(name string, opts ...metric.MeterOption) metric.Meter
	Logger() *slog.Logger
}

/*
Engine ties the memory arena and the framebuffer to the linear memory of
the host and exposes the lifecycle the frame loop drives: Initialize once,
then any number of Resize, Update and Render calls.

Engine is not safe for concurrent use, it is meant to be owned by single
goroutine (see host.Loop).
*/
type Engine struct {
	mem   memory.Memory
	opts  *Options
	log   *slog.Logger
	mtr   *engineMetrics
	arena *memory.Arena
	fb    *framebuffer.Framebuffer
}

func New(mem memory.Memory, observe Observability, opts ...Option) (*Engine, error) {
	if mem == nil {
		return nil, errors.New("memory is nil")
	}
	if observe == nil {
		return nil, errors.New("observability is nil")
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	e := &Engine{
		mem:  mem,
		opts: options,
		log:  observe.Logger(),
	}
	var err error
	if e.mtr, err = newMetrics(observe.Meter("engine")); err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}
	return e, nil
}

/*
Initialize sets up the memory arena starting at the heap base and allocates
the frame descriptor. Frame buffers are not allocated until the first Resize.
*/
func (e *Engine) Initialize(ctx context.Context) error {
	if e.fb != nil {
		return ErrAlreadyInitialized
	}

	base, ok := memory.AlignUp(uint64(e.opts.heapBase), HeapAlignment)
	if !ok || base >= memory.AddressSpace {
		return fmt.Errorf("heap base %#x aligned to %d is out of address space", e.opts.heapBase, HeapAlignment)
	}
	arena, err := memory.New(e.mem, uint32(base), e.opts.memInfo)
	if err != nil {
		return fmt.Errorf("creating memory arena: %w", err)
	}
	fb, err := framebuffer.New(arena, e.opts.fbOpts...)
	if err != nil {
		return e.outOfMemory(ctx, fmt.Errorf("creating framebuffer: %w", err))
	}
	e.arena, e.fb = arena, fb
	e.recordArena(ctx)
	e.log.DebugContext(ctx, fmt.Sprintf("engine initialized, descriptor at %#x", fb.DescriptorAddr()), logger.Arena(arena.Cursor(), arena.Limit()))
	return nil
}

/*
Resize sets the logical frame size. Buffers are reallocated only when the
frame doesn't fit into the current capacity, when that fails because of
out-of-memory the previous buffers remain in use.
*/
func (e *Engine) Resize(ctx context.Context, width, height uint32) error {
	if e.fb == nil {
		return ErrNotInitialized
	}
	realloc, err := e.fb.Resize(width, height)
	e.mtr.resizes.Add(ctx, 1, observability.Attrs(observability.ErrStatus(err), observability.Realloc(realloc)))
	if err != nil {
		return e.outOfMemory(ctx, fmt.Errorf("resizing frame to %dx%d: %w", width, height, err))
	}
	e.recordArena(ctx)
	e.mtr.version.Record(ctx, 0)
	if realloc {
		e.log.DebugContext(ctx, fmt.Sprintf("frame buffers reallocated: front %s, back %s", e.fb.Front(), e.fb.Back()),
			logger.Frame(width, height, e.fb.Stride()), logger.Arena(e.arena.Cursor(), e.arena.Limit()))
	}
	return nil
}

/*
Render paints the next frame into the back buffer and publishes it. Returns
false when the frame was not dirty and nothing was done.
*/
func (e *Engine) Render(ctx context.Context) (bool, error) {
	if e.fb == nil {
		return false, ErrNotInitialized
	}
	start := time.Now()
	rendered, err := e.fb.Render()
	if err != nil {
		e.mtr.frames.Add(ctx, 1, observability.Attrs(observability.ErrStatus(err)))
		return false, fmt.Errorf("rendering frame: %w", err)
	}
	if !rendered {
		e.mtr.skipped.Add(ctx, 1, observability.Attrs(observability.Reason("clean"), observability.Policy(e.fb.Policy())))
		return false, nil
	}
	e.mtr.renderDur.Record(ctx, time.Since(start).Seconds())
	e.mtr.frames.Add(ctx, 1, observability.Attrs(observability.ErrStatus(nil)))
	e.mtr.version.Record(ctx, int64(e.fb.Version()))
	return true, nil
}

/*
Update advances the simulation by "dt" seconds. The engine itself keeps no
simulation state, the call is forwarded to the Simulation hook if one is set.
*/
func (e *Engine) Update(ctx context.Context, dt float32) error {
	if e.fb == nil {
		return ErrNotInitialized
	}
	if e.opts.simulation != nil {
		e.opts.simulation(ctx, dt)
	}
	return nil
}

/*
SetHeapBase changes the address the arena starts from, only allowed before
Initialize.
*/
func (e *Engine) SetHeapBase(addr uint32) error {
	if e.fb != nil {
		return ErrAlreadyInitialized
	}
	e.opts.heapBase = addr
	return nil
}

// MarkDirty forces the next Render to repaint the frame.
func (e *Engine) MarkDirty() error {
	if e.fb == nil {
		return ErrNotInitialized
	}
	e.fb.MarkDirty()
	return nil
}

func (e *Engine) SetPainter(p framebuffer.Painter) error {
	if e.fb == nil {
		return ErrNotInitialized
	}
	return e.fb.SetPainter(p)
}

/*
Descriptor returns the published frame descriptor, zero value when the
engine hasn't been initialized.
*/
func (e *Engine) Descriptor() framebuffer.Descriptor {
	if e.fb == nil {
		return framebuffer.Descriptor{}
	}
	return e.fb.Descriptor()
}

/*
DescriptorAddr returns the address of the frame descriptor in the linear
memory, zero when the engine hasn't been initialized.
*/
func (e *Engine) DescriptorAddr() uint32 {
	if e.fb == nil {
		return 0
	}
	return e.fb.DescriptorAddr()
}

/*
Snapshot copies the current front buffer out of the linear memory the same
way an external consumer would.
*/
func (e *Engine) Snapshot() (*framebuffer.Snapshot, error) {
	if e.fb == nil {
		return nil, ErrNotInitialized
	}
	return framebuffer.NewConsumer(e.mem, e.fb.DescriptorAddr()).Read()
}

// ArenaStatus returns the state of the memory arena.
func (e *Engine) ArenaStatus() (ArenaStatus, error) {
	if e.arena == nil {
		return ArenaStatus{}, ErrNotInitialized
	}
	return ArenaStatus{
		HeapBase:   e.arena.HeapBase(),
		Cursor:     e.arena.Cursor(),
		Limit:      e.arena.Limit(),
		InUse:      e.arena.InUse(),
		Statistics: e.arena.Stats(),
	}, nil
}

// Framebuffer returns nil when the engine hasn't been initialized.
func (e *Engine) Framebuffer() *framebuffer.Framebuffer { return e.fb }

func (e *Engine) Memory() memory.Memory { return e.mem }

func (e *Engine) Initialized() bool { return e.fb != nil }

/*
outOfMemory reports "err" to the OOM counter and handler when it is caused
by out-of-memory condition. Returns "err".
*/
func (e *Engine) outOfMemory(ctx context.Context, err error) error {
	if !errors.Is(err, memory.ErrOutOfMemory) {
		return err
	}
	e.mtr.oom.Add(ctx, 1)
	e.log.WarnContext(ctx, "out of memory", logger.Error(err))
	if e.opts.oomHandler != nil {
		e.opts.oomHandler(err)
	}
	return err
}

func (e *Engine) recordArena(ctx context.Context) {
	e.mtr.arenaInUse.Record(ctx, int64(e.arena.InUse()))
	e.mtr.arenaLimit.Record(ctx, int64(e.arena.Limit()))
}

type ArenaStatus struct {
	HeapBase   uint32            `json:"heapBase"`
	Cursor     uint64            `json:"cursor"`
	Limit      uint64            `json:"limit"`
	InUse      uint64            `json:"inUse"`
	Statistics memory.Statistics `json:"statistics"`
}
