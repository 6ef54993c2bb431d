package framebuffer

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/alphabill-org/wasm-framebuffer/memory"
)

const (
	// BytesPerPixel - pixel format is RGBA, 8 bits per channel.
	BytesPerPixel = 4
	// DefaultStrideAlignment is the default alignment of rows and buffers.
	DefaultStrideAlignment = 64
)

var (
	ErrInvalidDimensions = errors.New("invalid frame dimensions")
	ErrNotSized          = errors.New("framebuffer has not been sized yet")
)

/*
Framebuffer is a double buffered pixel buffer carved from memory arena.

Render paints into the back buffer and then swaps the buffers and publishes
the descriptor of the new front buffer, so a consumer reading the published
front buffer never sees partially painted frame.

Capacity (max width and height) is a high-water mark: buffers are reallocated
only when requested size exceeds it and are never shrunk.

Framebuffer is not safe for concurrent use.
*/
type Framebuffer struct {
	arena *memory.Arena
	mem   memory.Memory
	desc  memory.Block // published descriptor

	front, back memory.Block
	stride      uint32
	maxWidth    uint32
	maxHeight   uint32
	width       uint32
	height      uint32
	version     uint64
	dirty       bool

	strideAlign uint32
	policy      DirtyPolicy
	painter     Painter
	row         []byte // scratch buffer for painting single row
}

/*
New allocates the frame descriptor from "arena" and publishes empty descriptor.
Pixel buffers are allocated by the first Resize call.
*/
func New(arena *memory.Arena, opts ...Option) (*Framebuffer, error) {
	if arena == nil {
		return nil, errors.New("memory arena is nil")
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if !memory.IsPowerOfTwo(options.strideAlignment) {
		return nil, fmt.Errorf("invalid stride alignment %d: %w", options.strideAlignment, memory.ErrInvalidAlignment)
	}
	if options.painter == nil {
		return nil, errors.New("painter is nil")
	}

	desc, err := arena.Alloc(DescriptorSize, DescriptorAlignment)
	if err != nil {
		return nil, fmt.Errorf("allocating frame descriptor: %w", err)
	}
	fb := &Framebuffer{
		arena:       arena,
		mem:         arena.Memory(),
		desc:        desc,
		strideAlign: options.strideAlignment,
		policy:      options.policy,
		painter:     options.painter,
	}
	if err := fb.publish(); err != nil {
		return nil, err
	}
	return fb, nil
}

/*
Resize sets the logical size of the frame. When the size fits into current
capacity only the metadata is updated, otherwise new front and back buffers
are allocated (reallocated == true).

Version is reset to zero in both cases.

When allocation fails the arena is rolled back and the framebuffer keeps its
previous buffers and size, the returned error wraps memory.ErrOutOfMemory.
*/
func (fb *Framebuffer) Resize(width, height uint32) (reallocated bool, err error) {
	if width == 0 || height == 0 {
		return false, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	if width <= fb.maxWidth && height <= fb.maxHeight {
		fb.width, fb.height = width, height
		fb.version = 0
		fb.dirty = true
		return false, fb.publish()
	}

	// capacity never shrinks in either dimension
	maxWidth, maxHeight := max(width, fb.maxWidth), max(height, fb.maxHeight)
	stride, total, err := fb.bufferSize(maxWidth, maxHeight)
	if err != nil {
		return false, err
	}

	mark := fb.arena.Mark()
	front, err := fb.arena.Alloc(total, fb.strideAlign)
	if err != nil {
		return false, fmt.Errorf("allocating front buffer of %d bytes: %w", total, err)
	}
	back, err := fb.arena.Alloc(total, fb.strideAlign)
	if err != nil {
		err = fmt.Errorf("allocating back buffer of %d bytes: %w", total, err)
		if rbErr := fb.arena.Rollback(mark); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rolling back front buffer allocation: %w", rbErr))
		}
		return false, err
	}

	fb.front, fb.back = front, back
	fb.stride = stride
	fb.maxWidth, fb.maxHeight = maxWidth, maxHeight
	fb.width, fb.height = width, height
	fb.version = 0
	fb.dirty = true
	fb.row = make([]byte, uint64(maxWidth)*BytesPerPixel)
	return true, fb.publish()
}

/*
bufferSize returns row stride and size of single buffer for given capacity.
Overflows are reported as out-of-memory.
*/
func (fb *Framebuffer) bufferSize(width, height uint32) (stride uint32, total uint64, _ error) {
	rowBytes := uint64(width) * BytesPerPixel
	s, ok := memory.AlignUp(rowBytes, fb.strideAlign)
	if !ok || s > math.MaxUint32 {
		return 0, 0, fmt.Errorf("%w: row stride of %d px wide frame overflows", memory.ErrOutOfMemory, width)
	}
	hi, lo := bits.Mul64(s, uint64(height))
	if hi != 0 || lo > memory.AddressSpace {
		return 0, 0, fmt.Errorf("%w: %dx%d frame does not fit into address space", memory.ErrOutOfMemory, width, height)
	}
	return uint32(s), lo, nil
}

/*
Render paints the back buffer and swaps it with the front buffer. Returns
false when nothing was done because the frame wasn't dirty (only possible
with DirtyTracked policy).
*/
func (fb *Framebuffer) Render() (bool, error) {
	if fb.front.IsZero() {
		return false, ErrNotSized
	}
	if fb.policy == DirtyTracked && !fb.dirty {
		return false, nil
	}

	next := fb.version + 1
	row := fb.row[:uint64(fb.width)*BytesPerPixel]
	for y := uint32(0); y < fb.height; y++ {
		fb.painter.Paint(row, y, next)
		if !fb.mem.Write(fb.back.Addr+y*fb.stride, row) {
			return false, fmt.Errorf("writing row %d of the back buffer %s: out of range", y, fb.back)
		}
	}

	fb.front, fb.back = fb.back, fb.front
	fb.version = next
	fb.dirty = false
	return true, fb.publish()
}

// MarkDirty forces the next Render call to repaint the frame.
func (fb *Framebuffer) MarkDirty() {
	fb.dirty = true
}

// SetPainter replaces the painter and marks the frame dirty.
func (fb *Framebuffer) SetPainter(p Painter) error {
	if p == nil {
		return errors.New("painter is nil")
	}
	fb.painter = p
	fb.dirty = true
	return nil
}

func (fb *Framebuffer) Dirty() bool { return fb.dirty }

func (fb *Framebuffer) Policy() DirtyPolicy { return fb.policy }

// Descriptor returns the currently published frame descriptor.
func (fb *Framebuffer) Descriptor() Descriptor {
	return Descriptor{
		Address:       fb.front.Addr,
		StrideBytes:   fb.stride,
		Width:         fb.width,
		Height:        fb.height,
		BytesPerPixel: BytesPerPixel,
		Version:       uint32(fb.version),
	}
}

// DescriptorAddr returns address of the published descriptor in linear memory.
func (fb *Framebuffer) DescriptorAddr() uint32 { return fb.desc.Addr }

func (fb *Framebuffer) Capacity() (width, height uint32) { return fb.maxWidth, fb.maxHeight }

func (fb *Framebuffer) Size() (width, height uint32) { return fb.width, fb.height }

func (fb *Framebuffer) Stride() uint32 { return fb.stride }

func (fb *Framebuffer) Version() uint64 { return fb.version }

func (fb *Framebuffer) Front() memory.Block { return fb.front }

func (fb *Framebuffer) Back() memory.Block { return fb.back }

func (fb *Framebuffer) publish() error {
	if err := writeDescriptor(fb.mem, fb.desc.Addr, fb.Descriptor()); err != nil {
		return fmt.Errorf("publishing frame descriptor: %w", err)
	}
	return nil
}
