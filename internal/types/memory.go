package types

import (
	"fmt"
	"strings"
)

// Memory Map (UEFI Specification 2.10, section 7.2)

// MemoryType classifies a physical memory region.
// Reference: section 7.2.1
type MemoryType uint32

const (
	EfiReservedMemoryType MemoryType = iota
	EfiLoaderCode
	EfiLoaderData
	EfiBootServicesCode
	EfiBootServicesData
	EfiRuntimeServicesCode
	EfiRuntimeServicesData
	EfiConventionalMemory
	EfiUnusableMemory
	EfiACPIReclaimMemory
	EfiACPIMemoryNVS
	EfiMemoryMappedIO
	EfiMemoryMappedIOPortSpace
	EfiPalCode
	EfiPersistentMemory
	EfiMaxMemoryType
)

// memoryTypeNames is the fixed 16-entry type-name table.
var memoryTypeNames = [...]string{
	"EfiReservedMemoryType",
	"EfiLoaderCode",
	"EfiLoaderData",
	"EfiBootServicesCode",
	"EfiBootServicesData",
	"EfiRuntimeServicesCode",
	"EfiRuntimeServicesData",
	"EfiConventionalMemory",
	"EfiUnusableMemory",
	"EfiACPIReclaimMemory",
	"EfiACPIMemoryNVS",
	"EfiMemoryMappedIO",
	"EfiMemoryMappedIOPortSpace",
	"EfiPalCode",
	"EfiPersistentMemory",
	"EfiMaxMemoryType",
}

// IsValid reports whether the type indexes the known name table.
func (t MemoryType) IsValid() bool {
	return int(t) < len(memoryTypeNames)
}

// String returns the type name, or Unknown(0x..) for out-of-range values.
func (t MemoryType) String() string {
	if !t.IsValid() {
		return fmt.Sprintf("Unknown(0x%x)", uint32(t))
	}
	return memoryTypeNames[t]
}

// ParseMemoryType resolves a type name. The "Efi" prefix is optional and
// matching is case-insensitive.
func ParseMemoryType(name string) (MemoryType, error) {
	want := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "Efi"))
	for i, n := range memoryTypeNames {
		if strings.ToLower(strings.TrimPrefix(n, "Efi")) == want {
			return MemoryType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown memory type %q", name)
}

// PageSize is the size of a firmware page.
const PageSize = 4096

// PageShift converts a page count to bytes.
const PageShift = 12

// MemoryDescriptorSize is the logical size of an encoded descriptor.
// The firmware's reported stride may be larger and must be used to advance.
const MemoryDescriptorSize = 40

// MemoryDescriptorVersion is the descriptor format this package decodes.
const MemoryDescriptorVersion uint32 = 1

// MemoryDescriptor describes one contiguous physical region.
// Reference: section 7.2.3 (EFI_MEMORY_DESCRIPTOR)
type MemoryDescriptor struct {
	// Type of the region. Offset 0, 4 bytes, followed by 4 bytes of padding.
	Type MemoryType
	// PhysicalStart is 4 KiB aligned. Offset 8.
	PhysicalStart uint64
	// VirtualStart is unused before a virtual map is set. Offset 16.
	VirtualStart uint64
	// NumberOfPages counts 4 KiB pages. Offset 24.
	NumberOfPages uint64
	// Attribute is the capability bitmask. Offset 32.
	Attribute uint64
}

// Size returns the region length in bytes.
func (d MemoryDescriptor) Size() uint64 {
	return d.NumberOfPages << PageShift
}

// EndAddress returns the first address past the region.
func (d MemoryDescriptor) EndAddress() uint64 {
	return d.PhysicalStart + d.Size()
}

// Memory attribute bits.
// Reference: section 7.2.3
const (
	MemoryUC           uint64 = 0x0000000000000001
	MemoryWC           uint64 = 0x0000000000000002
	MemoryWT           uint64 = 0x0000000000000004
	MemoryWB           uint64 = 0x0000000000000008
	MemoryUCE          uint64 = 0x0000000000000010
	MemoryWP           uint64 = 0x0000000000001000
	MemoryRP           uint64 = 0x0000000000002000
	MemoryXP           uint64 = 0x0000000000004000
	MemoryNV           uint64 = 0x0000000000008000
	MemoryMoreReliable uint64 = 0x0000000000010000
	MemoryRO           uint64 = 0x0000000000020000
	MemoryRuntime      uint64 = 0x8000000000000000
)

// MemoryMapInfo is what GetMemoryMap reports besides the descriptors.
type MemoryMapInfo struct {
	// MapSize is the number of bytes written, or required on BufferTooSmall.
	MapSize int
	// MapKey identifies the allocation state the map was taken at.
	MapKey uint64
	// DescriptorSize is the stride between descriptors.
	DescriptorSize int
	// DescriptorVersion is the descriptor format version.
	DescriptorVersion uint32
}
