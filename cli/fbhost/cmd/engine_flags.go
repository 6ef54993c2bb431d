package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/wasm-framebuffer/engine"
	"github.com/alphabill-org/wasm-framebuffer/framebuffer"
	"github.com/alphabill-org/wasm-framebuffer/host"
	"github.com/alphabill-org/wasm-framebuffer/logger"
	"github.com/alphabill-org/wasm-framebuffer/wvm"
)

/*
engineFlags are the flags shared by the commands which create framebuffer
engine.
*/
type engineFlags struct {
	Width           uint32
	Height          uint32
	Painter         string
	DirtyPolicy     string
	StrideAlignment uint32
	HeapBase        uint32
	MemoryPages     uint32
	MaxMemoryPages  uint32
	Preallocate     bool
	GuestFile       string
}

func (f *engineFlags) addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32Var(&f.Width, "width", 640, "frame width in pixels")
	cmd.Flags().Uint32Var(&f.Height, "height", 480, "frame height in pixels")
	cmd.Flags().StringVar(&f.Painter, "painter", "pulse", "frame painter, one of: pulse, gradient, black, white")
	cmd.Flags().StringVar(&f.DirtyPolicy, "dirty-policy", framebuffer.DirtyAlways.String(), "when to repaint the frame, one of: always, tracked")
	cmd.Flags().Uint32Var(&f.StrideAlignment, "stride-alignment", framebuffer.DefaultStrideAlignment, "alignment of the frame rows in bytes, must be power of two")
	cmd.Flags().Uint32Var(&f.HeapBase, "heap-base", engine.DefaultHeapBase, "linear memory address the memory arena starts from, ignored when guest module exports __heap_base")
	cmd.Flags().Uint32Var(&f.MemoryPages, "memory-pages", wvm.DefaultMemoryPages, "initial size of the linear memory in 64KiB pages")
	cmd.Flags().Uint32Var(&f.MaxMemoryPages, "max-pages", wvm.DefaultMaxMemoryPages, "max size of the linear memory in 64KiB pages")
	cmd.Flags().BoolVar(&f.Preallocate, "preallocate", false, "reserve max-pages of memory upfront so that growing the memory doesn't move it")
	cmd.Flags().StringVar(&f.GuestFile, "guest", "", "wasm module to load as guest, when it exports \"frame\" function it is called to produce frames")
}

/*
newVM creates wasm VM with framebuffer engine, loads guest (if configured)
and initializes and sizes the engine. Returned step produces single frame.
*/
func (f *engineFlags) newVM(ctx context.Context, obs *observability) (*wvm.WasmVM, host.Step, error) {
	painter, err := framebuffer.PainterByName(f.Painter)
	if err != nil {
		return nil, nil, err
	}
	policy, err := framebuffer.ParseDirtyPolicy(f.DirtyPolicy)
	if err != nil {
		return nil, nil, err
	}

	vm, err := wvm.New(ctx, obs,
		wvm.WithMemoryPages(f.MemoryPages, f.MaxMemoryPages),
		wvm.WithPreallocatedMemory(f.Preallocate),
		wvm.WithEngineOptions(
			engine.WithHeapBase(f.HeapBase),
			engine.WithFramebufferOptions(
				framebuffer.WithPainter(painter),
				framebuffer.WithDirtyPolicy(policy),
				framebuffer.WithStrideAlignment(f.StrideAlignment),
			),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating wasm VM: %w", err)
	}

	step, err := f.setupEngine(ctx, vm, obs)
	if err != nil {
		return nil, nil, errors.Join(err, vm.Close(ctx))
	}
	return vm, step, nil
}

func (f *engineFlags) setupEngine(ctx context.Context, vm *wvm.WasmVM, obs *observability) (host.Step, error) {
	step := host.UpdateAndRender
	if f.GuestFile != "" {
		wasm, err := os.ReadFile(f.GuestFile)
		if err != nil {
			return nil, fmt.Errorf("reading guest module: %w", err)
		}
		guest, err := vm.LoadGuest(ctx, wasm)
		if err != nil {
			return nil, err
		}
		if guest.HasFrame() {
			step = guestStep(guest)
		}
		obs.Logger().InfoContext(ctx, fmt.Sprintf("loaded guest module %s", f.GuestFile), logger.Data(map[string]bool{"frame": guest.HasFrame()}))
	}

	e := vm.Engine()
	// guest may have initialized the engine already
	if !e.Initialized() {
		if err := e.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initializing engine: %w", err)
		}
	}
	if err := e.Resize(ctx, f.Width, f.Height); err != nil {
		return nil, fmt.Errorf("sizing frame: %w", err)
	}
	return step, nil
}

/*
guestStep returns frame step which lets the guest module produce the frame.
*/
func guestStep(guest *wvm.Guest) host.Step {
	return func(ctx context.Context, e *engine.Engine, dt float32) error {
		if err := e.Update(ctx, dt); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		status, err := guest.Frame(ctx)
		if err != nil {
			return fmt.Errorf("guest frame: %w", err)
		}
		if status != wvm.StatusOK && status != wvm.StatusSkipped {
			return fmt.Errorf("guest frame returned status %q", status)
		}
		return nil
	}
}
