package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-efiboot/internal/device"
	"github.com/deploymenttheory/go-efiboot/internal/firmware/emulator"
	"github.com/deploymenttheory/go-efiboot/internal/types"
	"github.com/deploymenttheory/go-efiboot/pkg/app"
)

// testFiles is the default content of the boot volume.
var testFiles = map[string]string{
	"EFI/BOOT/BOOTX64.EFI": "MZ-loader",
	"EFI/BOOT/grub.cfg":    "set timeout=5\n",
	"boot/kernel.elf":      "\x7fELF-kernel-image",
	"boot/initrd/":         "",
}

func testDescriptors() []types.MemoryDescriptor {
	return []types.MemoryDescriptor{
		{Type: types.EfiBootServicesCode, PhysicalStart: 0x0, NumberOfPages: 0xa0, Attribute: types.MemoryWB},
		{Type: types.EfiConventionalMemory, PhysicalStart: 0x100000, NumberOfPages: 0x700, Attribute: types.MemoryWB},
		{Type: types.EfiLoaderData, PhysicalStart: 0x800000, NumberOfPages: 0x100, Attribute: types.MemoryWB},
		{Type: types.EfiConventionalMemory, PhysicalStart: 0x900000, NumberOfPages: 0x6f00, Attribute: types.MemoryWB},
	}
}

// newTestMachine creates a machine with one seeded boot volume and a context bound to it.
func newTestMachine(t *testing.T, opts ...emulator.Option) (*emulator.Machine, *app.Context) {
	t.Helper()

	m := emulator.NewBare(48, opts...)
	m.SetMemoryMap(testDescriptors())

	volume := device.NewMemoryVolume("ESP")
	require.NoError(t, volume.Seed(testFiles), "failed to seed boot volume")
	m.AddVolume(volume)
	m.SetBootVolume(0)

	return m, app.NewContext(m.ImageHandle(), m)
}

func newContextFor(m *emulator.Machine) *app.Context {
	return app.NewContext(m.ImageHandle(), m)
}
