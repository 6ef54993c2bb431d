package memory

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrOutOfMemory      = errors.New("out of memory")
	ErrInvalidAlignment = errors.New("alignment must be nonzero power of two")
	ErrArenaState       = errors.New("memory arena is in invalid state")
)

type Statistics struct {
	AllocCount    uint64 // number of successful allocations
	AllocDataSize uint64 // bytes requested by successful allocations
	PaddingSize   uint64 // bytes skipped to satisfy alignment
	GrowCount     uint64 // number of successful Grow calls
	GrownPages    uint64 // pages added by the arena
	OOMCount      uint64
	Rollbacks     uint64
}

/*
Arena is a bump allocator over linear memory. It never frees individual
blocks, the cursor only moves forward (except for explicit Rollback) and the
committed limit only grows.

Arena is not safe for concurrent use.
*/
type Arena struct {
	mem          Memory
	heapBase     uint64
	cursor       uint64 // next free byte
	limit        uint64 // one past the committed capacity
	memPageLimit uint32
	stats        Statistics
	errState     error
	oomHandler   func(error)
}

// Mark is a cursor position returned by Arena.Mark.
type Mark struct {
	cursor uint64
}

/*
New creates arena which starts allocating from "heapBase" in "mem".
"info" is used to determine maximum number of pages the memory can grow to,
when nil (or max is not encoded) the full 32 bit address space is assumed.
*/
func New(mem Memory, heapBase uint32, info MemInfo, opts ...Option) (*Arena, error) {
	if mem == nil {
		return nil, errors.New("memory is nil")
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	size := uint64(mem.Size())
	if uint64(heapBase) > size {
		return nil, fmt.Errorf("heap base %#x is beyond committed memory size %#x", heapBase, size)
	}
	return &Arena{
		mem:          mem,
		heapBase:     uint64(heapBase),
		cursor:       uint64(heapBase),
		limit:        size,
		memPageLimit: maxPages(info),
		oomHandler:   options.oomHandler,
	}, nil
}

func (a *Arena) HeapBase() uint32 { return uint32(a.heapBase) }

// Cursor returns address of the next free byte.
func (a *Arena) Cursor() uint64 { return a.cursor }

// Limit returns address one past the end of committed capacity.
func (a *Arena) Limit() uint64 { return a.limit }

// InUse returns number of bytes between heap base and cursor, padding included.
func (a *Arena) InUse() uint64 { return a.cursor - a.heapBase }

func (a *Arena) Stats() Statistics { return a.stats }

func (a *Arena) Memory() Memory { return a.mem }

/*
Alloc returns block of "size" bytes aligned to "alignment" (must be power of two).

When the committed capacity is not sufficient the memory is grown, with some
headroom, in whole pages. The only failure mode for a valid request is
ErrOutOfMemory in which case neither cursor nor limit has changed.
*/
func (a *Arena) Alloc(size uint64, alignment uint32) (Block, error) {
	if a.errState != nil {
		return Block{}, a.errState
	}
	if !IsPowerOfTwo(alignment) {
		return Block{}, fmt.Errorf("%w: %d", ErrInvalidAlignment, alignment)
	}
	// If the memory has been tampered with the allocator can no longer be trusted
	// to work correctly, put it into error state.
	if err := a.monitorArenaSize(); err != nil {
		a.errState = err
		return Block{}, err
	}

	p, ok := AlignUp(a.cursor, alignment)
	if !ok || p >= AddressSpace {
		return Block{}, a.outOfMemory(fmt.Errorf("%w: aligning %#x to %d overflows address space", ErrOutOfMemory, a.cursor, alignment))
	}
	end, carry := bits.Add64(p, size, 0)
	if carry != 0 || end > AddressSpace {
		return Block{}, a.outOfMemory(fmt.Errorf("%w: %d bytes at %#x overflows address space", ErrOutOfMemory, size, p))
	}

	if end > a.limit {
		if err := a.grow(end); err != nil {
			return Block{}, a.outOfMemory(err)
		}
	}

	a.stats.AllocCount++
	a.stats.AllocDataSize += size
	a.stats.PaddingSize += p - a.cursor
	a.cursor = end
	return Block{Addr: uint32(p), Len: size}, nil
}

/*
Mark returns current cursor position which can be later passed to Rollback.
*/
func (a *Arena) Mark() Mark {
	return Mark{cursor: a.cursor}
}

/*
Rollback moves the cursor back to the position "m" was taken at. Blocks
allocated after the mark must not be used after rollback. Committed capacity
is not returned to the host.
*/
func (a *Arena) Rollback(m Mark) error {
	if a.errState != nil {
		return a.errState
	}
	if m.cursor < a.heapBase || m.cursor > a.cursor {
		return fmt.Errorf("invalid mark %#x, expected value in range [%#x, %#x]", m.cursor, a.heapBase, a.cursor)
	}
	if m.cursor != a.cursor {
		a.cursor = m.cursor
		a.stats.Rollbacks++
	}
	return nil
}

func (a *Arena) monitorArenaSize() error {
	currentSize := uint64(a.mem.Size())
	if currentSize < a.limit {
		return fmt.Errorf("%w: memory has shrunk unexpectedly from %v to %v", ErrArenaState, a.limit, currentSize)
	}
	// memory might have been grown by someone else (ie wasm memory.grow instruction)
	a.limit = currentSize
	return nil
}

/*
grow commits enough pages so that address "end" is covered. Caller must
make sure that end > a.limit.
*/
func (a *Arena) grow(end uint64) error {
	pagesNeeded := pagesFor(end - a.limit)
	headroom := max(1, pagesNeeded/4)

	currentPages := uint64(a.mem.Size()) / PageSize
	pageLimit := uint64(a.memPageLimit)
	if currentPages+pagesNeeded > pageLimit {
		return fmt.Errorf("%w: need %d more pages, have %d out of %d", ErrOutOfMemory, pagesNeeded, currentPages, pageLimit)
	}
	// headroom is best effort, do not ask more than the memory may grow to
	pagesToRequest := min(pagesNeeded+headroom, pageLimit-currentPages)

	prevPages, ok := a.mem.Grow(uint32(pagesToRequest))
	if !ok {
		return fmt.Errorf("%w: linear memory grow error: from %d pages to %d pages", ErrOutOfMemory, currentPages, currentPages+pagesToRequest)
	}
	// host is authoritative about the new size, do not assume request was honored exactly
	newLimit := uint64(a.mem.Size())
	if newLimit < end {
		return fmt.Errorf("%w: memory grew to %d bytes, need %d", ErrOutOfMemory, newLimit, end)
	}
	a.stats.GrowCount++
	a.stats.GrownPages += newLimit/PageSize - uint64(prevPages)
	a.limit = newLimit
	return nil
}

func (a *Arena) outOfMemory(err error) error {
	a.stats.OOMCount++
	if a.oomHandler != nil {
		a.oomHandler(err)
	}
	return err
}
