// File: internal/parsers/memory_map/memory_map_iterator.go
package memory_map

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// DescriptorIterator walks an encoded memory map by its reported stride.
type DescriptorIterator struct {
	data    []byte
	stride  int
	endian  binary.ByteOrder
	offset  int
	index   int
	current types.MemoryDescriptor
	unknown []int
	err     error
}

// Compile-time check to ensure DescriptorIterator implements MemoryDescriptorIterator
var _ interfaces.MemoryDescriptorIterator = (*DescriptorIterator)(nil)

// NewDescriptorIterator iterates the first size bytes of data. The stride must
// be at least types.MemoryDescriptorSize.
func NewDescriptorIterator(data []byte, size, stride int, endian binary.ByteOrder) (*DescriptorIterator, error) {
	if stride < types.MemoryDescriptorSize {
		return nil, fmt.Errorf("descriptor stride %d is smaller than descriptor size %d", stride, types.MemoryDescriptorSize)
	}
	if size < 0 || size > len(data) {
		return nil, fmt.Errorf("map size %d exceeds buffer of %d bytes", size, len(data))
	}
	return &DescriptorIterator{
		data:   data[:size],
		stride: stride,
		endian: endian,
		index:  -1,
	}, nil
}

// DescriptorCount returns how many whole descriptors a map of size bytes holds.
func DescriptorCount(size, stride int) int {
	if stride <= 0 || size < types.MemoryDescriptorSize {
		return 0
	}
	return (size-types.MemoryDescriptorSize)/stride + 1
}

// Next decodes the next descriptor. A trailing fragment shorter than a
// descriptor ends iteration rather than being read.
func (it *DescriptorIterator) Next() bool {
	if it.offset+types.MemoryDescriptorSize > len(it.data) {
		return false
	}
	d, err := ParseMemoryDescriptor(it.data[it.offset:], it.endian)
	if err != nil {
		it.err = err
		return false
	}
	it.current = d
	it.index++
	it.offset += it.stride
	if !d.Type.IsValid() {
		it.unknown = append(it.unknown, it.index)
	}
	return true
}

// Index returns the position of the current descriptor.
func (it *DescriptorIterator) Index() int {
	return it.index
}

// Descriptor returns the current descriptor.
func (it *DescriptorIterator) Descriptor() types.MemoryDescriptor {
	return it.current
}

// UnknownTypes returns the indexes of descriptors whose type is outside the known set.
func (it *DescriptorIterator) UnknownTypes() []int {
	return append([]int(nil), it.unknown...)
}

// Err returns a decode error, or a defect report when descriptors with
// unknown types were seen.
func (it *DescriptorIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	if len(it.unknown) > 0 {
		return fmt.Errorf("memory map contains %d descriptor(s) with unknown type, first at index %d", len(it.unknown), it.unknown[0])
	}
	return nil
}
