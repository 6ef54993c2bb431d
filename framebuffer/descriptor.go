package framebuffer

import (
	"fmt"

	"github.com/alphabill-org/wasm-framebuffer/memory"
)

/*
Layout of the frame descriptor in linear memory, six little endian u32
fields. Version is written last when the descriptor is published.
*/
const (
	descAddressOffset = 0
	descStrideOffset  = 4
	descWidthOffset   = 8
	descHeightOffset  = 12
	descBppOffset     = 16
	descVersionOffset = 20

	DescriptorSize      = 24
	DescriptorAlignment = 8
)

/*
Descriptor is the published view of the front buffer. Consumer reads
Height rows of StrideBytes each starting from Address, only the first
Width*BytesPerPixel bytes of each row are pixel data.

Version holds the low 32 bits of the version counter of the framebuffer.
*/
type Descriptor struct {
	_             struct{} `cbor:",toarray"`
	Address       uint32   `json:"address"`
	StrideBytes   uint32   `json:"strideBytes"`
	Width         uint32   `json:"width"`
	Height        uint32   `json:"height"`
	BytesPerPixel uint32   `json:"bytesPerPixel"`
	Version       uint32   `json:"version"`
}

// RowBytes returns number of pixel data bytes in a row (ie without padding).
func (d Descriptor) RowBytes() uint64 {
	return uint64(d.Width) * uint64(d.BytesPerPixel)
}

// FrameBytes returns number of bytes the consumer has to read, padding included.
func (d Descriptor) FrameBytes() uint64 {
	return uint64(d.StrideBytes) * uint64(d.Height)
}

// IsZero returns true when descriptor doesn't describe any buffer (not sized yet).
func (d Descriptor) IsZero() bool {
	return d.Address == 0 && d.Width == 0 && d.Height == 0
}

/*
ReadDescriptor decodes frame descriptor stored at address "addr" in "mem".
*/
func ReadDescriptor(mem memory.Memory, addr uint32) (Descriptor, error) {
	var d Descriptor
	fields := []struct {
		offset uint32
		dst    *uint32
	}{
		{descAddressOffset, &d.Address},
		{descStrideOffset, &d.StrideBytes},
		{descWidthOffset, &d.Width},
		{descHeightOffset, &d.Height},
		{descBppOffset, &d.BytesPerPixel},
	}
	for _, f := range fields {
		v, ok := mem.ReadUint32Le(addr + f.offset)
		if !ok {
			return d, fmt.Errorf("reading descriptor field at %#x: out of range", addr+f.offset)
		}
		*f.dst = v
	}
	v, ok := mem.ReadUint32Le(addr + descVersionOffset)
	if !ok {
		return d, fmt.Errorf("reading descriptor version at %#x: out of range", addr+descVersionOffset)
	}
	d.Version = v
	return d, nil
}

/*
writeDescriptor stores "d" at "addr", version field is written last.
*/
func writeDescriptor(mem memory.Memory, addr uint32, d Descriptor) error {
	fields := []struct {
		offset uint32
		value  uint32
	}{
		{descAddressOffset, d.Address},
		{descStrideOffset, d.StrideBytes},
		{descWidthOffset, d.Width},
		{descHeightOffset, d.Height},
		{descBppOffset, d.BytesPerPixel},
	}
	for _, f := range fields {
		if !mem.WriteUint32Le(addr+f.offset, f.value) {
			return fmt.Errorf("writing descriptor field at %#x: out of range", addr+f.offset)
		}
	}
	if !mem.WriteUint32Le(addr+descVersionOffset, d.Version) {
		return fmt.Errorf("writing descriptor version at %#x: out of range", addr+descVersionOffset)
	}
	return nil
}
