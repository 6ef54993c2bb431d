package framebuffer

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_fillRGBA(t *testing.T) {
	c := color.RGBA{R: 1, G: 2, B: 3, A: 4}
	for _, n := range []int{0, 3, 4, 8, 12, 20, 36, 4 * 1001} {
		row := make([]byte, n)
		fillRGBA(row, c)
		if n < BytesPerPixel {
			require.Equal(t, make([]byte, n), row)
			continue
		}
		require.Equal(t, bytes.Repeat([]byte{1, 2, 3, 4}, n/BytesPerPixel), row, "row of %d bytes", n)
	}
}

func TestPulse(t *testing.T) {
	a, b := make([]byte, 8), make([]byte, 8)
	Pulse{}.Paint(a, 0, 1)
	Pulse{}.Paint(b, 5, 2)
	require.NotEqual(t, a, b)
	require.Equal(t, []byte{5, 3, 7, 0xff}, a[4:])
}

func TestPainterByName(t *testing.T) {
	var testCases = []struct {
		name string
		exp  Painter
	}{
		{name: "", exp: Pulse{}},
		{name: "pulse", exp: Pulse{}},
		{name: "Gradient", exp: Gradient{}},
		{name: "black", exp: Solid{Color: color.RGBA{A: 0xff}}},
		{name: "WHITE", exp: Solid{Color: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}}},
	}
	for _, tc := range testCases {
		p, err := PainterByName(tc.name)
		require.NoError(t, err)
		require.Equal(t, tc.exp, p, "painter %q", tc.name)
	}

	p, err := PainterByName("plaid")
	require.EqualError(t, err, `unknown painter "plaid"`)
	require.Nil(t, p)
}
