// Package loaders decodes asset files into the forms the renderer consumes.
package loaders

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spaghettifunk/lumen/engine/core"
)

const (
	spirvMagic = 0x07230203
	// magic, version, generator, bound, schema
	spirvHeaderWords = 5
)

// LoadSPIRV reads a compiled shader module.
func LoadSPIRV(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shader '%s': %w: %w", path, core.ErrAssetLoad, err)
	}
	code, err := DecodeSPIRV(data)
	if err != nil {
		return nil, fmt.Errorf("shader '%s': %w", path, err)
	}
	return code, nil
}

// DecodeSPIRV converts SPIR-V bytes of either endianness into host words.
func DecodeSPIRV(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("length %d is not a multiple of 4: %w", len(data), core.ErrInvalidSPIRV)
	}
	if len(data) < spirvHeaderWords*4 {
		return nil, fmt.Errorf("%d bytes is shorter than the header: %w", len(data), core.ErrInvalidSPIRV)
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(data) == spirvMagic:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(data) == spirvMagic:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("bad magic 0x%08x: %w", binary.LittleEndian.Uint32(data), core.ErrInvalidSPIRV)
	}

	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = order.Uint32(data[i*4:])
	}
	return words, nil
}
