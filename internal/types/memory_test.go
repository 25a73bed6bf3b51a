package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTypeString(t *testing.T) {
	tests := []struct {
		memType MemoryType
		want    string
	}{
		{EfiReservedMemoryType, "EfiReservedMemoryType"},
		{EfiConventionalMemory, "EfiConventionalMemory"},
		{EfiPersistentMemory, "EfiPersistentMemory"},
		{EfiMaxMemoryType, "EfiMaxMemoryType"},
		{MemoryType(16), "Unknown(0x10)"},
		{MemoryType(0x70000000), "Unknown(0x70000000)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.memType.String())
		})
	}
	assert.Len(t, memoryTypeNames, 16)
}

func TestParseMemoryType(t *testing.T) {
	tests := []struct {
		input   string
		want    MemoryType
		wantErr bool
	}{
		{"EfiLoaderData", EfiLoaderData, false},
		{"LoaderData", EfiLoaderData, false},
		{"conventionalmemory", EfiConventionalMemory, false},
		{" ACPIMemoryNVS ", EfiACPIMemoryNVS, false},
		{"Bogus", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMemoryType(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryDescriptorSize(t *testing.T) {
	d := MemoryDescriptor{PhysicalStart: 0x100000, NumberOfPages: 0x10}
	assert.Equal(t, uint64(0x10000), d.Size())
	assert.Equal(t, uint64(0x110000), d.EndAddress())
}
