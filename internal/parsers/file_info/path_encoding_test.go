package file_info

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deploymenttheory/go-efiboot/internal/types"
)

func TestEncodePath(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		wantUnits     int
		wantTruncated bool
	}{
		{name: "Success_Simple", path: `EFI\BOOT`, wantUnits: 8},
		{name: "Success_Empty", path: "", wantUnits: 0},
		{name: "Success_StopsAtNUL", path: "boot\x00ignored", wantUnits: 4},
		{name: "Success_ExactlyMax", path: strings.Repeat("a", types.MaxPathUnits), wantUnits: 255},
		{name: "Truncated_OverMax", path: strings.Repeat("b", 300), wantUnits: 255, wantTruncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, truncated := EncodePath(tt.path)
			assert.Equal(t, tt.wantTruncated, truncated)
			assert.Len(t, units, tt.wantUnits+1)
			assert.Equal(t, uint16(0), units[len(units)-1])
		})
	}
}

func TestEncodePathMapsBytes(t *testing.T) {
	units, _ := EncodePath("k\xe9")
	assert.Equal(t, []uint16{'k', 0xe9, 0}, units)
}

func TestEncodeDecodeName(t *testing.T) {
	units := EncodeName("grub.cfg")
	assert.Equal(t, uint16(0), units[len(units)-1])
	assert.Equal(t, "grub.cfg", DecodeName(units))
	assert.Equal(t, "ab", DecodeName([]uint16{'a', 'b'}))
	assert.Equal(t, "", DecodeName([]uint16{0, 'x'}))
}
