package app

import (
	"fmt"

	"github.com/deploymenttheory/go-efiboot/internal/efierrors"
)

// VolumeTarget represents volume selection across commands
type VolumeTarget struct {
	// Index selects a volume by position among file-system volumes.
	// A negative index selects the volume the loader was started from.
	Index int
	// Path is a backslash path on the selected volume.
	Path string
}

// BootVolume targets the root of the boot volume.
func BootVolume() VolumeTarget {
	return VolumeTarget{Index: -1}
}

// Validate ensures volume target is valid
func (vt *VolumeTarget) Validate() error {
	for i := 0; i < len(vt.Path); i++ {
		if vt.Path[i] == 0 {
			return efierrors.Newf(efierrors.CodeInvalidParameter, "path contains NUL at byte %d", i)
		}
	}
	return nil
}

// IsBootVolume returns true if the boot volume is targeted
func (vt *VolumeTarget) IsBootVolume() bool {
	return vt.Index < 0
}

// String returns a string representation of the volume target
func (vt *VolumeTarget) String() string {
	volume := "boot volume"
	if !vt.IsBootVolume() {
		volume = fmt.Sprintf("FS%d", vt.Index)
	}
	if vt.Path == "" {
		return volume
	}
	return volume + ":" + vt.Path
}
