// File: internal/interfaces/memory_map.go
package interfaces

import (
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// MemoryMapReader retrieves the firmware memory map
type MemoryMapReader interface {
	// GetSnapshot queries the map size, allocates, and reads the map.
	// The caller owns the snapshot and must release it
	GetSnapshot() (MemoryMapSnapshot, error)
}

// MemoryMapSnapshot is an owned copy of the memory map
type MemoryMapSnapshot interface {
	// Size returns the number of valid bytes in the map
	Size() int

	// Key returns the map key the snapshot was taken at
	Key() uint64

	// DescriptorSize returns the stride between descriptors
	DescriptorSize() int

	// DescriptorVersion returns the descriptor format version
	DescriptorVersion() uint32

	// Count returns the number of descriptors that fit in Size bytes
	Count() int

	// Iterator returns a stride-respecting iterator over the descriptors
	Iterator() MemoryDescriptorIterator

	// Descriptors decodes every descriptor in the snapshot
	Descriptors() ([]types.MemoryDescriptor, error)

	// Release returns the snapshot buffer to the firmware pool
	Release() error
}

// MemoryDescriptorIterator walks a memory map snapshot
type MemoryDescriptorIterator interface {
	// Next advances to the next descriptor
	Next() bool

	// Index returns the position of the current descriptor
	Index() int

	// Descriptor returns the current descriptor
	Descriptor() types.MemoryDescriptor

	// Err reports descriptors whose type is outside the known set
	Err() error
}
