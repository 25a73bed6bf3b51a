package inspect

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-efiboot/internal/types"
)

func sampleListResponse() *ListResponse {
	modified := time.Date(2024, 3, 4, 5, 6, 0, 0, time.UTC)
	return &ListResponse{
		Volume: "boot volume",
		Path:   `\EFI\BOOT`,
		Entries: []EntryResult{
			{Name: "grub.cfg", Size: 2048, Attributes: "----A", Modified: modified},
			{Name: "BOOTX64.EFI", Size: 100, Attributes: "----A", Modified: modified},
			{Name: "fonts", Directory: true, Attributes: "D----", Modified: modified},
		},
	}
}

func TestFormatOutput(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		response any
		wantErr  bool
		validate func(*testing.T, string)
	}{
		{
			name:     "table format",
			format:   "table",
			response: sampleListResponse(),
			validate: func(t *testing.T, output string) {
				assert.Contains(t, output, `Directory of \EFI\BOOT on boot volume`)
				assert.Contains(t, output, "<DIR>")
				assert.Contains(t, output, "2.0 KB")
				assert.Contains(t, output, "2 file(s) 2.1 KB, 1 dir(s)")
				assert.Less(t, bytes.Index([]byte(output), []byte("BOOTX64.EFI")), bytes.Index([]byte(output), []byte("grub.cfg")), "entries are sorted")
			},
		},
		{
			name:     "json format",
			format:   "json",
			response: sampleListResponse(),
			validate: func(t *testing.T, output string) {
				var decoded ListResponse
				require.NoError(t, json.Unmarshal([]byte(output), &decoded))
				assert.Equal(t, `\EFI\BOOT`, decoded.Path)
				assert.Len(t, decoded.Entries, 3)
			},
		},
		{
			name:     "yaml format",
			format:   "yaml",
			response: sampleListResponse(),
			validate: func(t *testing.T, output string) {
				var decoded map[string]any
				require.NoError(t, yaml.Unmarshal([]byte(output), &decoded))
				assert.Equal(t, "boot volume", decoded["volume"])
			},
		},
		{
			name:    "unsupported format",
			format:  "xml",
			wantErr: true,
		},
		{
			name:     "table without layout",
			format:   "table",
			response: struct{}{},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := FormatOutput(&buf, tt.response, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, buf.String())
		})
	}
}

func TestFormatTables(t *testing.T) {
	t.Run("memory map", func(t *testing.T) {
		var buf bytes.Buffer
		resp := &MemoryMapResponse{
			MapSize: 48, DescriptorSize: 48, DescriptorVersion: 1, MapKey: 7,
			Descriptors: []DescriptorResult{{Index: 0, Type: "EfiConventionalMemory", PhysicalStart: 0x1000, Pages: 4, Attribute: 0xf}},
			Summary:     MemorySummary{ConventionalBytes: 16384, HighestAddress: 0x5000},
			Defect:      "memory map contains 1 descriptor(s) with unknown type",
		}
		require.NoError(t, FormatOutput(&buf, resp, "table"))
		out := buf.String()
		assert.Contains(t, out, "0x0000000000001000")
		assert.Contains(t, out, "Conventional memory: 16.0 KB, highest address 0x5000")
		assert.Contains(t, out, "Warning: memory map contains")
	})

	t.Run("acpi", func(t *testing.T) {
		var buf bytes.Buffer
		resp := &AcpiResponse{
			Revision: "2.7", FirmwareVendor: "EDK II",
			Tables: []TableResult{{Index: 0, GUID: types.Acpi20TableGUID.String(), Name: "ACPI 2.0", Address: 0x9fe000}},
			RSDP:   RSDPResult{Found: true, Version: "2.0", Index: 0, Address: 0x9fe000},
			Match:  &TableResult{Index: 0, GUID: types.Acpi20TableGUID.String(), Name: "ACPI 2.0", Address: 0x9fe000},
		}
		require.NoError(t, FormatOutput(&buf, resp, "table"))
		assert.Contains(t, buf.String(), "Firmware: EDK II (UEFI 2.7)")
		assert.Contains(t, buf.String(), "RSDP 2.0 found in table 0 at 0x9fe000")
		assert.Contains(t, buf.String(), "Table 8868e871-e4f1-11d3-bc22-0080c73c8881 (ACPI 2.0) is entry 0 at 0x9fe000")
	})

	t.Run("acpi without root", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, &AcpiResponse{RSDP: RSDPResult{Index: -1}}, "table"))
		assert.Contains(t, buf.String(), "System has no RSDP.")
	})

	t.Run("empty listing", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, &ListResponse{Volume: "FS1", Path: `\`}, "table"))
		assert.Contains(t, buf.String(), "Directory is empty.")
	})

	t.Run("find", func(t *testing.T) {
		var buf bytes.Buffer
		resp := &FindResponse{Volume: "boot volume", Path: `\boot\kernel.elf`, Entry: EntryResult{Size: 12, Attributes: "----A"}}
		require.NoError(t, FormatOutput(&buf, resp, "table"))
		assert.Contains(t, buf.String(), `\boot\kernel.elf`)
		assert.Contains(t, buf.String(), "12 (12 B)")
	})
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}

func TestAttributeString(t *testing.T) {
	assert.Equal(t, "-----", AttributeString(0))
	assert.Equal(t, "D----", AttributeString(types.FileDirectory))
	assert.Equal(t, "-R--A", AttributeString(types.FileReadOnly|types.FileArchive))
	assert.Equal(t, "DRHSA", AttributeString(0x37))
}
