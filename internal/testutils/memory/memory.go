package memory

import (
	"encoding/binary"
	"testing"

	"github.com/alphabill-org/wasm-framebuffer/memory"
)

/*
MemoryMock is a slice backed implementation of the memory.Memory interface
which behaves like wasm linear memory: it grows in whole pages up to the
page limit.
*/
type MemoryMock struct {
	data     []byte
	maxPages uint32
	// when assigned called by Grow instead of the default implementation,
	// returns number of pages to actually add and success flag.
	GrowFn    func(deltaPages uint32) (uint32, bool)
	GrowCalls []uint32
}

func NewMemoryMock(t testing.TB, pages uint32) *MemoryMock {
	return NewMemoryMockWithLimit(t, pages, memory.MaxPages)
}

func NewMemoryMockWithLimit(t testing.TB, pages, maxPages uint32) *MemoryMock {
	t.Helper()
	if pages > maxPages {
		t.Fatalf("initial page count %d exceeds limit %d", pages, maxPages)
	}
	return &MemoryMock{
		data:     make([]byte, uint64(pages)*memory.PageSize),
		maxPages: maxPages,
	}
}

// Definition returns memory info for the arena constructor.
func (m *MemoryMock) Definition() memory.MemInfo { return maxMem(m.maxPages) }

func (m *MemoryMock) Pages() uint32 { return uint32(len(m.data) / memory.PageSize) }

// Shrink truncates the memory to "pages", something real linear memory never does.
func (m *MemoryMock) Shrink(pages uint32) {
	m.data = m.data[:uint64(pages)*memory.PageSize]
}

func (m *MemoryMock) Size() uint32 { return uint32(len(m.data)) }

func (m *MemoryMock) Grow(deltaPages uint32) (uint32, bool) {
	m.GrowCalls = append(m.GrowCalls, deltaPages)
	prev := m.Pages()
	if m.GrowFn != nil {
		var ok bool
		if deltaPages, ok = m.GrowFn(deltaPages); !ok {
			return 0, false
		}
	}
	if uint64(prev)+uint64(deltaPages) > uint64(m.maxPages) {
		return 0, false
	}
	m.data = append(m.data, make([]byte, uint64(deltaPages)*memory.PageSize)...)
	return prev, true
}

func (m *MemoryMock) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.hasSize(offset, uint64(byteCount)) {
		return nil, false
	}
	return m.data[offset : uint64(offset)+uint64(byteCount) : uint64(offset)+uint64(byteCount)], true
}

func (m *MemoryMock) Write(offset uint32, v []byte) bool {
	if !m.hasSize(offset, uint64(len(v))) {
		return false
	}
	copy(m.data[offset:], v)
	return true
}

func (m *MemoryMock) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.hasSize(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), true
}

func (m *MemoryMock) WriteUint32Le(offset, v uint32) bool {
	if !m.hasSize(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.data[offset:], v)
	return true
}

func (m *MemoryMock) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.hasSize(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), true
}

func (m *MemoryMock) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.hasSize(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.data[offset:], v)
	return true
}

func (m *MemoryMock) hasSize(offset uint32, byteCount uint64) bool {
	return uint64(offset)+byteCount <= uint64(len(m.data))
}

type maxMem uint32

func (m maxMem) Max() (uint32, bool) { return uint32(m), true }
