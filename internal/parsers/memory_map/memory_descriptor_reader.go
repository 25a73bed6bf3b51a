// File: internal/parsers/memory_map/memory_descriptor_reader.go
package memory_map

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// Field offsets of EFI_MEMORY_DESCRIPTOR. Bytes 4-7 are alignment padding.
const (
	typeOffset          = 0
	physicalStartOffset = 8
	virtualStartOffset  = 16
	numberOfPagesOffset = 24
	attributeOffset     = 32
)

// ParseMemoryDescriptor decodes one descriptor from the start of data.
// Only the first types.MemoryDescriptorSize bytes are read; any stride padding
// after them is ignored.
func ParseMemoryDescriptor(data []byte, endian binary.ByteOrder) (types.MemoryDescriptor, error) {
	if len(data) < types.MemoryDescriptorSize {
		return types.MemoryDescriptor{}, fmt.Errorf("insufficient data for memory descriptor: need %d bytes, got %d", types.MemoryDescriptorSize, len(data))
	}

	return types.MemoryDescriptor{
		Type:          types.MemoryType(endian.Uint32(data[typeOffset : typeOffset+4])),
		PhysicalStart: endian.Uint64(data[physicalStartOffset : physicalStartOffset+8]),
		VirtualStart:  endian.Uint64(data[virtualStartOffset : virtualStartOffset+8]),
		NumberOfPages: endian.Uint64(data[numberOfPagesOffset : numberOfPagesOffset+8]),
		Attribute:     endian.Uint64(data[attributeOffset : attributeOffset+8]),
	}, nil
}

// EncodeMemoryDescriptor writes d into the first stride bytes of dst, zeroing
// padding. It is the inverse of ParseMemoryDescriptor.
func EncodeMemoryDescriptor(dst []byte, d types.MemoryDescriptor, stride int, endian binary.ByteOrder) error {
	if stride < types.MemoryDescriptorSize {
		return fmt.Errorf("descriptor stride %d is smaller than descriptor size %d", stride, types.MemoryDescriptorSize)
	}
	if len(dst) < stride {
		return fmt.Errorf("insufficient space for memory descriptor: need %d bytes, got %d", stride, len(dst))
	}

	clear(dst[:stride])
	endian.PutUint32(dst[typeOffset:typeOffset+4], uint32(d.Type))
	endian.PutUint64(dst[physicalStartOffset:physicalStartOffset+8], d.PhysicalStart)
	endian.PutUint64(dst[virtualStartOffset:virtualStartOffset+8], d.VirtualStart)
	endian.PutUint64(dst[numberOfPagesOffset:numberOfPagesOffset+8], d.NumberOfPages)
	endian.PutUint64(dst[attributeOffset:attributeOffset+8], d.Attribute)
	return nil
}

// EncodeMemoryMap lays out descriptors at the given stride into dst and
// returns the number of bytes used.
func EncodeMemoryMap(dst []byte, descriptors []types.MemoryDescriptor, stride int, endian binary.ByteOrder) (int, error) {
	need := len(descriptors) * stride
	if len(dst) < need {
		return 0, fmt.Errorf("insufficient space for memory map: need %d bytes, got %d", need, len(dst))
	}
	for i, d := range descriptors {
		if err := EncodeMemoryDescriptor(dst[i*stride:], d, stride, endian); err != nil {
			return 0, fmt.Errorf("failed to encode descriptor %d: %w", i, err)
		}
	}
	return need, nil
}
