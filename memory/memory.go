package memory

import (
	"fmt"
	"math/bits"
)

const (
	PageSize = 1 << 16 // 64Kb
	// MaxPages is the number of pages in a 32 bit address space.
	MaxPages = 4 * 1024 * 1024 * 1024 / PageSize
	// AddressSpace is the first address not addressable by the arena.
	AddressSpace = uint64(MaxPages) * PageSize
)

type (
	/*
	   Memory is the host linear memory the arena carves blocks from.
	   It is a subset of the wazero api.Memory interface so module memory can be
	   passed in directly.
	*/
	Memory interface {
		// Size returns the committed size in bytes.
		Size() uint32
		// Grow commits deltaPages more pages and returns the previous page count.
		Grow(deltaPages uint32) (previousPages uint32, ok bool)
		Read(offset, byteCount uint32) ([]byte, bool)
		Write(offset uint32, v []byte) bool
		ReadUint32Le(offset uint32) (uint32, bool)
		WriteUint32Le(offset, v uint32) bool
		ReadUint64Le(offset uint32) (uint64, bool)
		WriteUint64Le(offset uint32, v uint64) bool
	}

	// MemInfo is satisfied by wazero api.MemoryDefinition.
	MemInfo interface {
		Max() (uint32, bool)
	}

	// Block is a region handed out by the arena, [Addr, Addr+Len).
	Block struct {
		Addr uint32
		Len  uint64
	}
)

// End returns the address one past the last byte of the block.
func (b Block) End() uint64 {
	return uint64(b.Addr) + b.Len
}

func (b Block) IsZero() bool {
	return b == Block{}
}

// Overlaps reports whether blocks b and o share at least one byte.
func (b Block) Overlaps(o Block) bool {
	if b.Len == 0 || o.Len == 0 {
		return false
	}
	return uint64(b.Addr) < o.End() && uint64(o.Addr) < b.End()
}

func (b Block) String() string {
	return fmt.Sprintf("[%#x, %#x)", b.Addr, b.End())
}

func maxPages(info MemInfo) uint32 {
	if info == nil {
		return MaxPages
	}
	if maxPages, encoded := info.Max(); encoded {
		return min(maxPages, MaxPages)
	}
	return MaxPages
}

// IsPowerOfTwo reports whether "v" is nonzero power of two.
func IsPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

/*
AlignUp rounds "addr" up to the next multiple of "alignment" which must be
power of two. The second return value is false when the result does not fit
into uint64.
*/
func AlignUp(addr uint64, alignment uint32) (uint64, bool) {
	mask := uint64(alignment) - 1
	sum, carry := bits.Add64(addr, mask, 0)
	if carry != 0 {
		return 0, false
	}
	return sum &^ mask, true
}

// pagesFor returns number of pages needed to hold "size" bytes, rounded up.
func pagesFor(size uint64) uint64 {
	return (size + PageSize - 1) / PageSize
}
