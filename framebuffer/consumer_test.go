package framebuffer_test

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/wasm-framebuffer/framebuffer"
	testmem "github.com/alphabill-org/wasm-framebuffer/internal/testutils/memory"
)

/*
renderingMemory simulates producer which renders new frame while
consumer is copying pixels of the current one.
*/
type renderingMemory struct {
	*testmem.MemoryMock
	onRead func()
}

func (m *renderingMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if m.onRead != nil {
		m.onRead()
	}
	return m.MemoryMock.Read(offset, byteCount)
}

func TestConsumer_Read(t *testing.T) {
	mem := testmem.NewMemoryMock(t, 1)
	fb, _ := newFramebuffer(t, mem, framebuffer.WithStrideAlignment(64), framebuffer.WithPainter(framebuffer.Solid{Color: color.RGBA{R: 9, G: 8, B: 7, A: 6}}))
	c := framebuffer.NewConsumer(mem, fb.DescriptorAddr())

	s, err := c.Read()
	require.ErrorIs(t, err, framebuffer.ErrNotSized)
	require.Nil(t, s)

	_, err = fb.Resize(3, 2)
	require.NoError(t, err)
	_, err = fb.Render()
	require.NoError(t, err)

	s, err = c.Read()
	require.NoError(t, err)
	require.Equal(t, fb.Descriptor(), s.Descriptor)
	// padding is not part of the snapshot
	require.Equal(t, bytes.Repeat([]byte{9, 8, 7, 6}, 3*2), s.Pixels)

	img, err := s.Image()
	require.NoError(t, err)
	require.Equal(t, 3, img.Bounds().Dx())
	require.Equal(t, 2, img.Bounds().Dy())
	require.Equal(t, color.RGBA{R: 9, G: 8, B: 7, A: 6}, img.RGBAAt(2, 1))
}

func TestConsumer_Poll(t *testing.T) {
	mem := testmem.NewMemoryMock(t, 1)
	fb, _ := newFramebuffer(t, mem)
	c := framebuffer.NewConsumer(mem, fb.DescriptorAddr())

	d, changed, err := c.Poll()
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, d.IsZero())

	_, changed, err = c.Poll()
	require.NoError(t, err)
	require.False(t, changed)

	_, err = fb.Resize(4, 4)
	require.NoError(t, err)
	d, changed, err = c.Poll()
	require.NoError(t, err)
	require.True(t, changed)
	require.Zero(t, d.Version)
	require.Equal(t, fb.Front().Addr, d.Address)

	_, err = fb.Render()
	require.NoError(t, err)
	d, changed, err = c.Poll()
	require.NoError(t, err)
	require.True(t, changed)
	require.EqualValues(t, 1, d.Version)
	require.Equal(t, fb.Front().Addr, d.Address)

	// Read updates the last seen descriptor too
	_, err = fb.Render()
	require.NoError(t, err)
	_, err = c.Read()
	require.NoError(t, err)
	_, changed, err = c.Poll()
	require.NoError(t, err)
	require.False(t, changed)
}

func TestConsumer_TornRead(t *testing.T) {
	t.Run("retry succeeds", func(t *testing.T) {
		mock := testmem.NewMemoryMock(t, 1)
		fb, _ := newFramebuffer(t, mock)
		_, err := fb.Resize(4, 4)
		require.NoError(t, err)
		_, err = fb.Render()
		require.NoError(t, err)

		renders := 0
		mem := &renderingMemory{MemoryMock: mock}
		mem.onRead = func() {
			// producer swaps buffers once during the first copy
			if renders == 0 {
				renders++
				_, err := fb.Render()
				require.NoError(t, err)
			}
		}
		s, err := framebuffer.NewConsumer(mem, fb.DescriptorAddr()).Read()
		require.NoError(t, err)
		require.EqualValues(t, 2, s.Descriptor.Version)
		require.Equal(t, fb.Descriptor(), s.Descriptor)
	})

	t.Run("producer is always faster", func(t *testing.T) {
		mock := testmem.NewMemoryMock(t, 1)
		fb, _ := newFramebuffer(t, mock)
		_, err := fb.Resize(4, 4)
		require.NoError(t, err)

		mem := &renderingMemory{MemoryMock: mock}
		mem.onRead = func() {
			_, err := fb.Render()
			require.NoError(t, err)
		}
		s, err := framebuffer.NewConsumer(mem, fb.DescriptorAddr()).Read()
		require.ErrorIs(t, err, framebuffer.ErrTornRead)
		require.Nil(t, s)
	})
}

func TestReadDescriptor_OutOfRange(t *testing.T) {
	mem := testmem.NewMemoryMock(t, 1)
	_, err := framebuffer.ReadDescriptor(mem, 65536-8)
	require.EqualError(t, err, "reading descriptor field at 0x10000: out of range")
	_, err = framebuffer.ReadDescriptor(mem, 65536-20)
	require.EqualError(t, err, "reading descriptor version at 0x10000: out of range")
}

func TestDescriptorLayout(t *testing.T) {
	mem := testmem.NewMemoryMock(t, 1)
	fb, _ := newFramebuffer(t, mem)
	_, err := fb.Resize(100, 50)
	require.NoError(t, err)
	_, err = fb.Render()
	require.NoError(t, err)

	addr := fb.DescriptorAddr()
	raw, ok := mem.Read(addr, framebuffer.DescriptorSize)
	require.True(t, ok)
	d := fb.Descriptor()
	for i, v := range []uint32{d.Address, d.StrideBytes, 100, 50, framebuffer.BytesPerPixel, 1} {
		require.Equal(t, v, binary.LittleEndian.Uint32(raw[4*i:]), "field at offset %d", 4*i)
	}

	_, err = fb.Render()
	require.NoError(t, err)
	version, ok := mem.ReadUint32Le(addr + 20)
	require.True(t, ok)
	require.EqualValues(t, 2, version)
}

func TestConsumer_PollSeesResize(t *testing.T) {
	mem := testmem.NewMemoryMock(t, 1)
	fb, _ := newFramebuffer(t, mem)
	_, err := fb.Resize(4, 4)
	require.NoError(t, err)
	for range 2 {
		_, err = fb.Render()
		require.NoError(t, err)
	}

	c := framebuffer.NewConsumer(mem, fb.DescriptorAddr())
	first, _, err := c.Poll()
	require.NoError(t, err)

	// resize to the same size publishes version 0, the consumer has to
	// poll in between to notice the buffer is repainted
	_, err = fb.Resize(4, 4)
	require.NoError(t, err)
	d, changed, err := c.Poll()
	require.NoError(t, err)
	require.True(t, changed)
	require.Zero(t, d.Version)

	for range 2 {
		_, err = fb.Render()
		require.NoError(t, err)
	}
	d, changed, err = c.Poll()
	require.NoError(t, err)
	require.True(t, changed)
	// same descriptor as before the resize
	require.Equal(t, first, d)
}
