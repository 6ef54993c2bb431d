package wvm

const (
	wasmSectionMemory = 0x05
	wasmSectionExport = 0x07

	wasmExternMemory   = 0x02
	wasmLimitsMinMax   = 0x01
	envMemoryExportKey = "memory"
)

var wasmPreamble = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

/*
envModule returns binary of the "env" module which defines linear memory
of "minPages" (initial size) to "maxPages" and exports it as "memory" so that
the host and the guest module(s) share it.
*/
func envModule(minPages, maxPages uint32) []byte {
	memSec := []byte{1, wasmLimitsMinMax}
	memSec = appendULEB128(memSec, minPages)
	memSec = appendULEB128(memSec, maxPages)

	expSec := []byte{1}
	expSec = appendULEB128(expSec, uint32(len(envMemoryExportKey)))
	expSec = append(expSec, envMemoryExportKey...)
	expSec = append(expSec, wasmExternMemory, 0)

	buf := append([]byte{}, wasmPreamble...)
	buf = appendSection(buf, wasmSectionMemory, memSec)
	return appendSection(buf, wasmSectionExport, expSec)
}

func appendSection(buf []byte, id byte, content []byte) []byte {
	buf = append(buf, id)
	buf = appendULEB128(buf, uint32(len(content)))
	return append(buf, content...)
}

func appendULEB128(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}
