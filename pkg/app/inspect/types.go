package inspect

import (
	"time"

	"github.com/deploymenttheory/go-efiboot/internal/types"
	"github.com/deploymenttheory/go-efiboot/pkg/app"
)

// MemoryMapRequest represents a memory map inspection request
type MemoryMapRequest struct {
	// Type restricts the listing to one memory type name; empty lists all.
	Type string
}

// MemoryMapResponse represents a memory map snapshot
type MemoryMapResponse struct {
	MapSize           int                `json:"map_size" yaml:"map_size"`
	MapKey            uint64             `json:"map_key" yaml:"map_key"`
	DescriptorSize    int                `json:"descriptor_size" yaml:"descriptor_size"`
	DescriptorVersion uint32             `json:"descriptor_version" yaml:"descriptor_version"`
	Descriptors       []DescriptorResult `json:"descriptors" yaml:"descriptors"`
	Summary           MemorySummary      `json:"summary" yaml:"summary"`
	Defect            string             `json:"defect,omitempty" yaml:"defect,omitempty"`
}

// DescriptorResult represents one memory map descriptor
type DescriptorResult struct {
	Index         int    `json:"index" yaml:"index"`
	Type          string `json:"type" yaml:"type"`
	PhysicalStart uint64 `json:"physical_start" yaml:"physical_start"`
	VirtualStart  uint64 `json:"virtual_start" yaml:"virtual_start"`
	Pages         uint64 `json:"pages" yaml:"pages"`
	Attribute     uint64 `json:"attribute" yaml:"attribute"`
	Bytes         uint64 `json:"bytes" yaml:"bytes"`
}

// MemorySummary aggregates the map by type
type MemorySummary struct {
	Descriptors       int               `json:"descriptors" yaml:"descriptors"`
	PagesByType       map[string]uint64 `json:"pages_by_type" yaml:"pages_by_type"`
	ConventionalBytes uint64            `json:"conventional_bytes" yaml:"conventional_bytes"`
	HighestAddress    uint64            `json:"highest_address" yaml:"highest_address"`
}

// AcpiRequest represents a configuration table inspection request
type AcpiRequest struct {
	// Table, a GUID or a known table name, selects one entry to look up.
	Table string
}

// AcpiResponse represents the configuration tables and ACPI root pointer
type AcpiResponse struct {
	Revision       string        `json:"revision" yaml:"revision"`
	FirmwareVendor string        `json:"firmware_vendor" yaml:"firmware_vendor"`
	Tables         []TableResult `json:"tables" yaml:"tables"`
	RSDP           RSDPResult    `json:"rsdp" yaml:"rsdp"`
	Match          *TableResult  `json:"match,omitempty" yaml:"match,omitempty"`
}

// TableResult represents one configuration table entry
type TableResult struct {
	Index   int     `json:"index" yaml:"index"`
	GUID    string  `json:"guid" yaml:"guid"`
	Name    string  `json:"name,omitempty" yaml:"name,omitempty"`
	Address uintptr `json:"address" yaml:"address"`
}

// RSDPResult represents the located ACPI root pointer
type RSDPResult struct {
	Found   bool    `json:"found" yaml:"found"`
	Version string  `json:"version" yaml:"version"`
	Index   int     `json:"index" yaml:"index"`
	Address uintptr `json:"address,omitempty" yaml:"address,omitempty"`
}

// ListRequest represents a directory listing request
type ListRequest struct {
	Target app.VolumeTarget
}

// ListResponse represents a directory listing
type ListResponse struct {
	Volume  string        `json:"volume" yaml:"volume"`
	Path    string        `json:"path" yaml:"path"`
	Entries []EntryResult `json:"entries" yaml:"entries"`
}

// FindRequest represents a file lookup request
type FindRequest struct {
	Target app.VolumeTarget
	Name   string
}

// FindResponse represents a located file
type FindResponse struct {
	Volume string      `json:"volume" yaml:"volume"`
	Path   string      `json:"path" yaml:"path"`
	Entry  EntryResult `json:"entry" yaml:"entry"`
}

// EntryResult represents a file or directory
type EntryResult struct {
	Name         string    `json:"name" yaml:"name"`
	Size         uint64    `json:"size" yaml:"size"`
	PhysicalSize uint64    `json:"physical_size" yaml:"physical_size"`
	Directory    bool      `json:"directory" yaml:"directory"`
	Attributes   string    `json:"attributes" yaml:"attributes"`
	Modified     time.Time `json:"modified" yaml:"modified"`
}

// newEntryResult converts a file information record
func newEntryResult(info types.FileInfo) EntryResult {
	return EntryResult{
		Name:         info.FileName,
		Size:         info.FileSize,
		PhysicalSize: info.PhysicalSize,
		Directory:    info.IsDirectory(),
		Attributes:   AttributeString(info.Attribute),
		Modified:     info.ModificationTime.Go(),
	}
}

// AttributeString renders file attributes as DRHSA flags, '-' when unset
func AttributeString(attribute uint64) string {
	flags := []struct {
		bit  uint64
		char byte
	}{
		{types.FileDirectory, 'D'},
		{types.FileReadOnly, 'R'},
		{types.FileHidden, 'H'},
		{types.FileSystem, 'S'},
		{types.FileArchive, 'A'},
	}
	out := make([]byte, len(flags))
	for i, f := range flags {
		out[i] = '-'
		if attribute&f.bit != 0 {
			out[i] = f.char
		}
	}
	return string(out)
}
