package framebuffer

import (
	"fmt"
	"image/color"
	"strings"
)

/*
Painter produces pixel data of a frame, one row at a time.

"row" holds width*BytesPerPixel bytes (RGBA, 8 bits per channel) and must be
filled completely, "y" is the row index and "version" is the version the
frame will be published with.
*/
type Painter interface {
	Paint(row []byte, y uint32, version uint64)
}

// Solid fills the whole frame with single colour.
type Solid struct {
	Color color.RGBA
}

func (p Solid) Paint(row []byte, y uint32, version uint64) {
	fillRGBA(row, p.Color)
}

/*
Pulse fills the frame with single colour which changes with every version,
handy for visually checking that frames are swapped.
*/
type Pulse struct{}

func (Pulse) Paint(row []byte, y uint32, version uint64) {
	fillRGBA(row, color.RGBA{R: byte(version * 5), G: byte(version * 3), B: byte(version * 7), A: 0xff})
}

/*
Gradient paints horizontal red and vertical green gradient, blue channel
changes with version.
*/
type Gradient struct{}

func (Gradient) Paint(row []byte, y uint32, version uint64) {
	for x := 0; x+BytesPerPixel <= len(row); x += BytesPerPixel {
		row[x] = byte(x / BytesPerPixel)
		row[x+1] = byte(y)
		row[x+2] = byte(version)
		row[x+3] = 0xff
	}
}

func fillRGBA(row []byte, c color.RGBA) {
	if len(row) < BytesPerPixel {
		return
	}
	row[0], row[1], row[2], row[3] = c.R, c.G, c.B, c.A
	// double the filled prefix until the row is full
	for n := BytesPerPixel; n < len(row); n *= 2 {
		copy(row[n:], row[:n])
	}
}

/*
PainterByName returns painter for the CLI/config name.
*/
func PainterByName(name string) (Painter, error) {
	switch strings.ToLower(name) {
	case "", "pulse":
		return Pulse{}, nil
	case "gradient":
		return Gradient{}, nil
	case "black":
		return Solid{Color: color.RGBA{A: 0xff}}, nil
	case "white":
		return Solid{Color: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}}, nil
	default:
		return nil, fmt.Errorf("unknown painter %q", name)
	}
}
