package framebuffer_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/wasm-framebuffer/framebuffer"
	testmem "github.com/alphabill-org/wasm-framebuffer/internal/testutils/memory"
)

func TestSnapshotEncoder(t *testing.T) {
	mem := testmem.NewMemoryMock(t, 1)
	fb, _ := newFramebuffer(t, mem, framebuffer.WithPainter(framebuffer.Gradient{}))
	_, err := fb.Resize(3, 2)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	enc := framebuffer.NewSnapshotEncoder(buf)
	var expected []*framebuffer.Snapshot
	for range 2 {
		_, err := fb.Render()
		require.NoError(t, err)
		s, err := framebuffer.NewConsumer(mem, fb.DescriptorAddr()).Read()
		require.NoError(t, err)
		require.NoError(t, enc.Encode(s))
		expected = append(expected, s)
	}

	snapshots, err := framebuffer.DecodeSnapshots(buf)
	require.NoError(t, err)
	require.Equal(t, expected, snapshots)
	require.EqualValues(t, 1, snapshots[0].Descriptor.Version)
	require.EqualValues(t, 2, snapshots[1].Descriptor.Version)

	img, err := snapshots[1].Image()
	require.NoError(t, err)
	require.Equal(t, 3, img.Bounds().Dx())
	require.Equal(t, 2, img.Bounds().Dy())
	// gradient: red is x, green is y, blue is version
	c := img.RGBAAt(2, 1)
	require.EqualValues(t, 2, c.R)
	require.EqualValues(t, 1, c.G)
	require.EqualValues(t, 2, c.B)
	require.EqualValues(t, 0xff, c.A)
}

func TestDecodeSnapshots_Invalid(t *testing.T) {
	snapshots, err := framebuffer.DecodeSnapshots(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Empty(t, snapshots)

	// truncated stream
	buf := &bytes.Buffer{}
	require.NoError(t, framebuffer.NewSnapshotEncoder(buf).Encode(&framebuffer.Snapshot{
		Descriptor: framebuffer.Descriptor{Width: 1, Height: 1, BytesPerPixel: framebuffer.BytesPerPixel, Version: 7},
		Pixels:     []byte{1, 2, 3, 4},
	}))
	data := buf.Bytes()
	snapshots, err = framebuffer.DecodeSnapshots(bytes.NewReader(append(data, data[:len(data)-2]...)))
	require.ErrorContains(t, err, "decoding snapshot 1:")
	require.Len(t, snapshots, 1)
	require.EqualValues(t, 7, snapshots[0].Descriptor.Version)
}

func TestSnapshot_Image(t *testing.T) {
	s := &framebuffer.Snapshot{
		Descriptor: framebuffer.Descriptor{Width: 2, Height: 2, BytesPerPixel: 3},
		Pixels:     make([]byte, 12),
	}
	img, err := s.Image()
	require.EqualError(t, err, "unsupported pixel size 3")
	require.Nil(t, img)

	s.Descriptor.BytesPerPixel = framebuffer.BytesPerPixel
	img, err = s.Image()
	require.EqualError(t, err, "expected 16 bytes of pixel data, got 12")
	require.Nil(t, img)

	s.Pixels = make([]byte, 16)
	img, err = s.Image()
	require.NoError(t, err)
	require.Equal(t, 8, img.Stride)
}
