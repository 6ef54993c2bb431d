package framebuffer

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/wasm-framebuffer/memory"
)

var ErrTornRead = errors.New("frame changed while it was being read")

const defaultReadAttempts = 3

/*
Consumer reads published frames out of linear memory the way an external
compositor would: it only trusts the front buffer address as long as the
published descriptor (version included) hasn't changed.

Resize resets the version, so a same-size resize followed by the same number
of renders publishes a descriptor equal to the earlier one while the buffer
behind it has been repainted. Read can only detect torn copies caused by
renders; the producer must not resize while a Read is in progress.
*/
type Consumer struct {
	mem      memory.Memory
	descAddr uint32
	attempts int
	last     Descriptor
}

func NewConsumer(mem memory.Memory, descAddr uint32) *Consumer {
	return &Consumer{mem: mem, descAddr: descAddr, attempts: defaultReadAttempts}
}

/*
Poll returns currently published descriptor and whether it differs from
the one returned by the previous Poll or Read call.
*/
func (c *Consumer) Poll() (Descriptor, bool, error) {
	d, err := ReadDescriptor(c.mem, c.descAddr)
	if err != nil {
		return d, false, err
	}
	changed := d != c.last
	c.last = d
	return d, changed, nil
}

/*
Read copies the pixel data of the published front buffer. Padding bytes
at the end of rows are not copied. When the descriptor changes during the
copy the read is retried, ErrTornRead is returned when no consistent copy
was made in a few attempts.
*/
func (c *Consumer) Read() (*Snapshot, error) {
	for range c.attempts {
		before, err := ReadDescriptor(c.mem, c.descAddr)
		if err != nil {
			return nil, err
		}
		if before.IsZero() {
			return nil, ErrNotSized
		}
		pixels, err := c.copyFrame(before)
		if err != nil {
			return nil, err
		}
		after, err := ReadDescriptor(c.mem, c.descAddr)
		if err != nil {
			return nil, err
		}
		if before == after {
			c.last = after
			return &Snapshot{Descriptor: after, Pixels: pixels}, nil
		}
	}
	return nil, ErrTornRead
}

func (c *Consumer) copyFrame(d Descriptor) ([]byte, error) {
	rowBytes := d.RowBytes()
	if rowBytes > uint64(d.StrideBytes) {
		return nil, fmt.Errorf("invalid descriptor: row of %d bytes doesn't fit into stride %d", rowBytes, d.StrideBytes)
	}
	pixels := make([]byte, 0, rowBytes*uint64(d.Height))
	for y := uint32(0); y < d.Height; y++ {
		offset := uint64(d.Address) + uint64(y)*uint64(d.StrideBytes)
		if offset+rowBytes > memory.AddressSpace {
			return nil, fmt.Errorf("row %d at %#x is out of address space", y, offset)
		}
		row, ok := c.mem.Read(uint32(offset), uint32(rowBytes))
		if !ok {
			return nil, fmt.Errorf("reading row %d at %#x: out of range", y, offset)
		}
		pixels = append(pixels, row...)
	}
	return pixels, nil
}
