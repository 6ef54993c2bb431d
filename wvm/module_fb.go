package wvm

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/alphabill-org/wasm-framebuffer/engine"
	"github.com/alphabill-org/wasm-framebuffer/framebuffer"
	"github.com/alphabill-org/wasm-framebuffer/logger"
	"github.com/alphabill-org/wasm-framebuffer/memory"
)

// Status is the i32 result code of the "fb" module functions.
type Status uint32

const (
	StatusOK              Status = 0
	StatusOutOfMemory     Status = 1
	StatusInvalidArgument Status = 2
	StatusError           Status = 3
	// render didn't produce new frame as the current one is not dirty
	StatusSkipped Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusOutOfMemory:
		return "out of memory"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusError:
		return "error"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown status"
	}
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, memory.ErrOutOfMemory):
		return StatusOutOfMemory
	case errors.Is(err, framebuffer.ErrInvalidDimensions):
		return StatusInvalidArgument
	default:
		return StatusError
	}
}

type hostFunction struct {
	name    string
	fn      api.GoModuleFunc
	params  []api.ValueType
	results []api.ValueType
}

/*
fbFunctions returns the functions of the "fb" module which exposes the
engine lifecycle to the guest:

	init() i32
	resize(width i32, height i32) i32
	render() i32
	update(dt f32)
	descriptor() i32
*/
func fbFunctions(vm *WasmVM) []hostFunction {
	i32 := api.ValueTypeI32
	return []hostFunction{
		{name: "init", fn: fbInit(vm), results: []api.ValueType{i32}},
		{name: "resize", fn: fbResize(vm), params: []api.ValueType{i32, i32}, results: []api.ValueType{i32}},
		{name: "render", fn: fbRender(vm), results: []api.ValueType{i32}},
		{name: "update", fn: fbUpdate(vm), params: []api.ValueType{api.ValueTypeF32}},
		{name: "descriptor", fn: fbDescriptor(vm), results: []api.ValueType{i32}},
	}
}

// addFramebufferModule adds "fb" module to the "rt".
func addFramebufferModule(ctx context.Context, rt wazero.Runtime, vm *WasmVM) error {
	b := rt.NewHostModuleBuilder(fbModuleName)
	for _, f := range fbFunctions(vm) {
		b = b.NewFunctionBuilder().WithGoModuleFunction(f.fn, f.params, f.results).Export(f.name)
	}
	_, err := b.Instantiate(ctx)
	return err
}

func fbInit(vm *WasmVM) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		err := vm.engine.Initialize(ctx)
		stack[0] = api.EncodeU32(uint32(vm.status(ctx, "init", err)))
	}
}

func fbResize(vm *WasmVM) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		err := vm.engine.Resize(ctx, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
		stack[0] = api.EncodeU32(uint32(vm.status(ctx, "resize", err)))
	}
}

func fbRender(vm *WasmVM) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		rendered, err := vm.engine.Render(ctx)
		status := vm.status(ctx, "render", err)
		if status == StatusOK && !rendered {
			status = StatusSkipped
		}
		stack[0] = api.EncodeU32(uint32(status))
	}
}

func fbUpdate(vm *WasmVM) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		vm.status(ctx, "update", vm.engine.Update(ctx, api.DecodeF32(stack[0])))
	}
}

func fbDescriptor(vm *WasmVM) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		stack[0] = api.EncodeU32(vm.engine.DescriptorAddr())
	}
}

func (vm *WasmVM) status(ctx context.Context, fn string, err error) Status {
	if err == nil {
		return StatusOK
	}
	msg := "fb." + fn + " failed"
	if errors.Is(err, engine.ErrAlreadyInitialized) {
		vm.log.DebugContext(ctx, msg, logger.Error(err))
	} else {
		vm.log.WarnContext(ctx, msg, logger.Error(err))
	}
	return statusOf(err)
}
