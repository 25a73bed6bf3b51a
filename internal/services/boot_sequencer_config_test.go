package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-efiboot/internal/config"
	"github.com/deploymenttheory/go-efiboot/internal/firmware/emulator"
	"github.com/deploymenttheory/go-efiboot/pkg/app"
)

// TestBootSequencerConfiguredVolume tests booting from a volume described in
// a configuration file
func TestBootSequencerConfiguredVolume(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "efiboot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
boot:
  countdown_seconds: 0
  working_directory: 'EFI\BOOT'
  kernel_path: '\boot\kernel.elf'
machine:
  time: "2024-01-02T03:04:05Z"
  volumes:
    - name: ESP
      files:
        EFI/BOOT/BOOTX64.EFI: loader
        EFI/BOOT/grub.cfg: menu
        boot/Kernel.ELF: kernel-image
`), 0o644))

	cfg, err := config.Load(config.Options{ConfigFile: path, EnvFile: filepath.Join(dir, "none.env")})
	require.NoError(t, err)

	m, err := emulator.New(cfg.Machine)
	require.NoError(t, err)
	ctx := app.NewContext(m.ImageHandle(), m)

	seq := NewBootSequencer(ctx, cfg.Boot)
	require.NoError(t, seq.Run())

	report := seq.Report()
	names := make([]string, 0, len(report.Listing))
	for _, entry := range report.Listing {
		names = append(names, entry.FileName)
	}
	assert.Equal(t, []string{"BOOTX64.EFI", "grub.cfg"}, names)

	require.NotNil(t, report.Kernel)
	assert.Equal(t, "Kernel.ELF", report.Kernel.FileName, "lookup ignores case, info keeps the stored name")
	assert.Equal(t, uint64(len("kernel-image")), report.Kernel.FileSize)
	assert.Contains(t, m.Console().Text(), `Directory of \EFI\BOOT`)

	assert.Equal(t, 0, m.OutstandingPools())
	assert.Equal(t, 0, m.OpenFiles())
}
