package framebuffer

import (
	"fmt"
	"image"
	"io"

	"github.com/fxamacker/cbor/v2"
)

/*
Snapshot is a copy of a published frame: descriptor and tightly packed
pixel rows (Width*BytesPerPixel bytes per row, no padding).
*/
type Snapshot struct {
	_          struct{} `cbor:",toarray"`
	Descriptor Descriptor
	Pixels     []byte
}

// Image returns the snapshot as RGBA image, pixel data is not copied.
func (s *Snapshot) Image() (*image.RGBA, error) {
	d := s.Descriptor
	if d.BytesPerPixel != BytesPerPixel {
		return nil, fmt.Errorf("unsupported pixel size %d", d.BytesPerPixel)
	}
	if uint64(len(s.Pixels)) != d.RowBytes()*uint64(d.Height) {
		return nil, fmt.Errorf("expected %d bytes of pixel data, got %d", d.RowBytes()*uint64(d.Height), len(s.Pixels))
	}
	return &image.RGBA{
		Pix:    s.Pixels,
		Stride: int(d.RowBytes()),
		Rect:   image.Rect(0, 0, int(d.Width), int(d.Height)),
	}, nil
}

/*
SnapshotEncoder writes a stream of CBOR encoded snapshots.
*/
type SnapshotEncoder struct {
	enc *cbor.Encoder
}

func NewSnapshotEncoder(w io.Writer) *SnapshotEncoder {
	return &SnapshotEncoder{enc: cbor.NewEncoder(w)}
}

func (e *SnapshotEncoder) Encode(s *Snapshot) error {
	if err := e.enc.Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot of frame %d: %w", s.Descriptor.Version, err)
	}
	return nil
}

/*
DecodeSnapshots reads all CBOR encoded snapshots from "r".
*/
func DecodeSnapshots(r io.Reader) ([]*Snapshot, error) {
	dec := cbor.NewDecoder(r)
	var res []*Snapshot
	for {
		s := &Snapshot{}
		if err := dec.Decode(s); err != nil {
			if err == io.EOF {
				return res, nil
			}
			return res, fmt.Errorf("decoding snapshot %d: %w", len(res), err)
		}
		res = append(res, s)
	}
}
