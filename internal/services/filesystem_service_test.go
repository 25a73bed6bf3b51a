package services

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-efiboot/internal/device"
	"github.com/deploymenttheory/go-efiboot/internal/efierrors"
	"github.com/deploymenttheory/go-efiboot/internal/firmware/emulator"
	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/parsers/file_info"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

func listNames(t *testing.T, nav *Navigator) []string {
	t.Helper()
	it := nav.List()
	defer it.Close()

	var names []string
	for it.Next() {
		names = append(names, it.Entry().FileName)
	}
	require.NoError(t, it.Err(), "listing failed")
	return names
}

// TestNavigatorOpenRoot tests opening the boot volume root
func TestNavigatorOpenRoot(t *testing.T) {
	m, ctx := newTestMachine(t)
	nav := NewNavigator(ctx)

	root, err := nav.OpenRoot()
	require.NoError(t, err, "failed to open boot volume root")

	assert.Equal(t, `\`, root.Path())
	assert.NotNil(t, root.Protocol())
	assert.Equal(t, root, nav.WorkingDirectory())
	assert.Equal(t, types.StatusSuccess, nav.LastStatus())
	assert.Equal(t, 1, m.OpenFiles())

	// Reopening replaces the working directory without leaking the old handle
	_, err = nav.OpenRoot()
	require.NoError(t, err)
	assert.Equal(t, 1, m.OpenFiles())
	assert.Nil(t, root.Protocol(), "replaced root should be closed")

	require.NoError(t, nav.Close())
	assert.Equal(t, 0, m.OpenFiles())
}

// TestNavigatorOpenRootFailures tests firmware failures while locating the boot volume
func TestNavigatorOpenRootFailures(t *testing.T) {
	tests := []struct {
		name   string
		op     emulator.Operation
		status types.Status
		code   string
	}{
		{name: "LoadedImage", op: emulator.OpHandleProtocol, status: types.StatusUnsupported, code: string(efierrors.CodeUnsupported)},
		{name: "OpenVolume", op: emulator.OpOpenVolume, status: types.StatusNoMedia, code: string(efierrors.CodeDeviceError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ctx := newTestMachine(t)
			m.InjectFault(tt.op, tt.status)
			nav := NewNavigator(ctx)

			_, err := nav.OpenRoot()
			require.Error(t, err)
			assert.Equal(t, tt.status, nav.LastStatus())
			assert.Equal(t, tt.status, efierrors.StatusOf(err))
			assert.Equal(t, tt.code, string(efierrors.Code(err)))
			assert.Nil(t, nav.WorkingDirectory())
			assert.Equal(t, 0, m.OpenFiles())
		})
	}
}

// TestNavigatorOpenRootByIndex tests volume selection by enumeration order
func TestNavigatorOpenRootByIndex(t *testing.T) {
	m, ctx := newTestMachine(t)
	second := device.NewMemoryVolume("DATA")
	require.NoError(t, second.Seed(map[string]string{"data.bin": "xyz"}))
	m.AddVolume(second)

	nav := NewNavigator(ctx)
	defer nav.Close()

	t.Run("Success_SecondVolume", func(t *testing.T) {
		root, err := nav.OpenRootByIndex(1)
		require.NoError(t, err)
		assert.Equal(t, []string{"data.bin"}, listNames(t, nav))
		assert.NotEqual(t, types.Handle(0), root.Volume())
	})

	t.Run("Error_OutOfRange", func(t *testing.T) {
		_, err := nav.OpenRootByIndex(2)
		require.Error(t, err)
		assert.True(t, efierrors.Is(err, efierrors.CodeNotFound))
		assert.Equal(t, types.StatusNotFound, nav.LastStatus())
		// Previous working directory stays active
		assert.Equal(t, []string{"data.bin"}, listNames(t, nav))
	})

	t.Run("Error_Negative", func(t *testing.T) {
		_, err := nav.OpenRootByIndex(-1)
		require.Error(t, err)
		assert.True(t, efierrors.Is(err, efierrors.CodeNotFound))
	})
}

// TestNavigatorOpenRootByIndexNoVolumes tests enumeration with no file systems
func TestNavigatorOpenRootByIndexNoVolumes(t *testing.T) {
	m := emulator.NewBare(48)
	ctx := newContextFor(m)
	nav := NewNavigator(ctx)

	_, err := nav.OpenRootByIndex(0)
	require.Error(t, err)
	assert.Equal(t, types.StatusNotFound, nav.LastStatus())
}

// TestNavigatorSetWorkingDirectory tests relative directory changes
func TestNavigatorSetWorkingDirectory(t *testing.T) {
	m, ctx := newTestMachine(t)
	nav := NewNavigator(ctx)
	defer nav.Close()

	require.NoError(t, nav.SetWorkingDirectory("EFI"), "root is opened on demand")
	assert.Equal(t, `\EFI`, nav.WorkingDirectory().Path())

	require.NoError(t, nav.SetWorkingDirectory("BOOT"))
	assert.Equal(t, `\EFI\BOOT`, nav.WorkingDirectory().Path())
	assert.Equal(t, []string{"BOOTX64.EFI", "grub.cfg"}, listNames(t, nav))

	require.NoError(t, nav.SetWorkingDirectory(`\boot`))
	assert.Equal(t, `\boot`, nav.WorkingDirectory().Path())
	assert.Equal(t, []string{"initrd", "kernel.elf"}, listNames(t, nav))

	assert.Equal(t, 1, m.OpenFiles(), "only the working directory stays open")
}

// TestNavigatorSetWorkingDirectoryTruncatesPath tests that an over-long path
// is cut to the unit limit and recorded as opened
func TestNavigatorSetWorkingDirectoryTruncatesPath(t *testing.T) {
	longDir := strings.Repeat("d", types.MaxPathUnits)
	longFile := strings.Repeat("f", types.MaxPathUnits)

	m := emulator.NewBare(48)
	volume := device.NewMemoryVolume("ESP")
	require.NoError(t, volume.Seed(map[string]string{
		longDir + "/" + longFile: "payload",
	}))
	m.AddVolume(volume)
	nav := NewNavigator(newContextFor(m))
	defer nav.Close()

	require.NoError(t, nav.SetWorkingDirectory(strings.Repeat("d", 300)))
	assert.Equal(t, `\`+longDir, nav.WorkingDirectory().Path())
	assert.Len(t, nav.WorkingDirectory().Path(), types.MaxPathUnits+1)

	file, err := nav.OpenFile(strings.Repeat("f", 400))
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, `\`+longDir+`\`+longFile, file.Path())

	data, err := file.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

// TestNavigatorSetWorkingDirectoryFailureKeepsPrevious tests that a failed change leaves the old handle usable
func TestNavigatorSetWorkingDirectoryFailureKeepsPrevious(t *testing.T) {
	m, ctx := newTestMachine(t)
	nav := NewNavigator(ctx)
	defer nav.Close()

	require.NoError(t, nav.SetWorkingDirectory(`EFI\BOOT`))
	before := nav.WorkingDirectory()

	err := nav.SetWorkingDirectory("missing")
	require.Error(t, err)
	assert.True(t, efierrors.Is(err, efierrors.CodeNotFound))
	assert.Equal(t, types.StatusNotFound, nav.LastStatus())
	assert.Same(t, before, nav.WorkingDirectory())
	assert.NotNil(t, before.Protocol())
	assert.Equal(t, []string{"BOOTX64.EFI", "grub.cfg"}, listNames(t, nav))
	assert.Equal(t, 1, m.OpenFiles())
}

// TestNavigatorOpenSubdirectoryRejectsFiles tests that a file is never opened in directory mode
func TestNavigatorOpenSubdirectoryRejectsFiles(t *testing.T) {
	m, ctx := newTestMachine(t)
	nav := NewNavigator(ctx)
	defer nav.Close()

	root, err := nav.OpenRoot()
	require.NoError(t, err)

	_, err = nav.OpenSubdirectory(root, `boot\kernel.elf`)
	require.Error(t, err)
	assert.True(t, efierrors.Is(err, efierrors.CodeInvalidParameter))
	assert.Equal(t, types.StatusInvalidParameter, nav.LastStatus())
	assert.Equal(t, 0, m.Stats().DirectoryOpens)
	assert.Equal(t, 1, m.OpenFiles(), "info handle must be closed")
}

// TestNavigatorOpenSubdirectoryInvalidInput tests argument validation
func TestNavigatorOpenSubdirectoryInvalidInput(t *testing.T) {
	_, ctx := newTestMachine(t)
	nav := NewNavigator(ctx)
	defer nav.Close()

	t.Run("Error_NilBase", func(t *testing.T) {
		_, err := nav.OpenSubdirectory(nil, "EFI")
		require.Error(t, err)
		assert.Equal(t, types.StatusInvalidParameter, nav.LastStatus())
	})

	t.Run("Error_EmptyPath", func(t *testing.T) {
		root, err := nav.OpenRoot()
		require.NoError(t, err)
		_, err = nav.OpenSubdirectory(root, "")
		require.Error(t, err)
		assert.True(t, efierrors.Is(err, efierrors.CodeInvalidParameter))
	})
}

// TestNavigatorOpenSubdirectoryOwnership tests that caller-owned handles are independent
func TestNavigatorOpenSubdirectoryOwnership(t *testing.T) {
	m, ctx := newTestMachine(t)
	nav := NewNavigator(ctx)

	root, err := nav.OpenRoot()
	require.NoError(t, err)

	sub, err := nav.OpenSubdirectory(root, `EFI\BOOT`)
	require.NoError(t, err)
	assert.Equal(t, `\EFI\BOOT`, sub.Path())
	assert.Equal(t, root.Volume(), sub.Volume())
	assert.Equal(t, 1, m.Stats().DirectoryOpens)
	assert.Equal(t, 2, m.OpenFiles())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "second close is a no-op")
	assert.Equal(t, 1, m.OpenFiles())
	assert.Same(t, root, nav.WorkingDirectory())

	require.NoError(t, nav.Close())
	assert.Equal(t, 0, m.OpenFiles())
}

// TestNavigatorFindFile tests opening files relative to the working directory
func TestNavigatorFindFile(t *testing.T) {
	m, ctx := newTestMachine(t)
	nav := NewNavigator(ctx)
	defer nav.Close()

	t.Run("Success_FromBootRoot", func(t *testing.T) {
		file, err := nav.OpenFile(`boot\kernel.elf`)
		require.NoError(t, err)
		defer file.Close()

		name, err := file.Name()
		require.NoError(t, err)
		assert.Equal(t, "kernel.elf", name)
		assert.Equal(t, `\boot\kernel.elf`, file.Path())

		data, err := file.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, testFiles["boot/kernel.elf"], string(data))
	})

	t.Run("Success_RelativeToWorkingDirectory", func(t *testing.T) {
		require.NoError(t, nav.SetWorkingDirectory(`EFI\BOOT`))
		handle, err := nav.FindFile("grub.cfg")
		require.NoError(t, err)
		defer handle.Close()

		info, err := handle.Info()
		require.NoError(t, err)
		assert.Equal(t, uint64(len(testFiles["EFI/BOOT/grub.cfg"])), info.FileSize)
		assert.False(t, info.IsDirectory())
	})

	t.Run("Error_Missing", func(t *testing.T) {
		_, err := nav.FindFile("vmlinuz")
		require.Error(t, err)
		assert.True(t, efierrors.Is(err, efierrors.CodeNotFound))
		assert.Equal(t, types.StatusNotFound, nav.LastStatus())
	})

	t.Run("Error_EmptyName", func(t *testing.T) {
		_, err := nav.FindFile("")
		require.Error(t, err)
		assert.Equal(t, types.StatusInvalidParameter, nav.LastStatus())
	})

	t.Run("Error_ReadDirectory", func(t *testing.T) {
		file, err := nav.OpenFile(`\boot\initrd`)
		require.NoError(t, err)
		defer file.Close()

		_, err = file.ReadAll()
		require.Error(t, err)
		assert.True(t, efierrors.Is(err, efierrors.CodeInvalidParameter))
	})

	assert.Equal(t, 1, m.OpenFiles(), "every opened file was closed")
}

// TestNavigatorListDirectory tests directory iteration
func TestNavigatorListDirectory(t *testing.T) {
	m, ctx := newTestMachine(t)
	nav := NewNavigator(ctx)
	defer nav.Close()

	t.Run("Success_Reproducible", func(t *testing.T) {
		var lister interfaces.DirectoryLister = nav.ListDirectory()
		require.NoError(t, lister.Close())

		first := listNames(t, nav)
		second := listNames(t, nav)
		assert.Equal(t, []string{"EFI", "boot"}, first)
		assert.Equal(t, first, second)
		assert.Equal(t, 0, m.OutstandingPools())
	})

	t.Run("Success_EntryDetails", func(t *testing.T) {
		require.NoError(t, nav.SetWorkingDirectory("boot"))
		it := nav.List()
		defer it.Close()

		entries := map[string]types.FileInfo{}
		for it.Next() {
			entries[it.Entry().FileName] = it.Entry()
		}
		require.NoError(t, it.Err())
		assert.Equal(t, 1, it.Index())

		assert.True(t, entries["initrd"].IsDirectory())
		assert.Equal(t, uint64(len(testFiles["boot/kernel.elf"])), entries["kernel.elf"].FileSize)
	})

	t.Run("Success_ReleasedOnEarlyClose", func(t *testing.T) {
		it := nav.List()
		require.True(t, it.Next())
		assert.Equal(t, 1, m.OutstandingPools())
		require.NoError(t, it.Close())
		require.NoError(t, it.Close())
		assert.False(t, it.Next())
		assert.Equal(t, 0, m.OutstandingPools())
	})

	t.Run("Error_ReadFailure", func(t *testing.T) {
		m.InjectFaultAfter(emulator.OpRead, 1, types.StatusDeviceError)
		it := nav.List()
		assert.True(t, it.Next())
		assert.False(t, it.Next())
		require.Error(t, it.Err())
		assert.Equal(t, types.StatusDeviceError, efierrors.StatusOf(it.Err()))
		assert.Equal(t, 0, m.OutstandingPools())
	})

	t.Run("Error_AllocationFailure", func(t *testing.T) {
		m.InjectFault(emulator.OpAllocatePool, types.StatusOutOfResources)
		it := nav.List()
		assert.False(t, it.Next())
		assert.True(t, efierrors.Is(it.Err(), efierrors.CodeOutOfResources))
	})
}

// TestNavigatorListDirectoryOversizedEntry tests an entry that does not fit the read buffer
func TestNavigatorListDirectoryOversizedEntry(t *testing.T) {
	m, ctx := newTestMachine(t)
	long := strings.Repeat("n", 480)
	volume := device.NewMemoryVolume("LONG")
	require.NoError(t, volume.Seed(map[string]string{long: "x"}))
	m.AddVolume(volume)

	nav := NewNavigator(ctx)
	defer nav.Close()
	_, err := nav.OpenRootByIndex(1)
	require.NoError(t, err)

	it := nav.List()
	assert.False(t, it.Next())
	require.Error(t, it.Err())
	assert.True(t, efierrors.Is(it.Err(), efierrors.CodeDeviceError))
	assert.Contains(t, it.Err().Error(), "1042 bytes")
	assert.Equal(t, types.StatusDeviceError, nav.LastStatus())
	assert.Equal(t, 0, m.OutstandingPools())
}

// TestNavigatorListingEndsOnDirectoryChange tests a listing whose directory
// is replaced mid-iteration
func TestNavigatorListingEndsOnDirectoryChange(t *testing.T) {
	m, ctx := newTestMachine(t)
	nav := NewNavigator(ctx)
	defer nav.Close()

	require.NoError(t, nav.SetWorkingDirectory(`EFI\BOOT`))
	it := nav.List()
	defer it.Close()
	require.True(t, it.Next())
	assert.Equal(t, "BOOTX64.EFI", it.Entry().FileName)

	require.NoError(t, nav.SetWorkingDirectory(`\boot`))
	reads := m.Stats().DirectoryReads

	assert.False(t, it.Next())
	require.Error(t, it.Err())
	assert.True(t, efierrors.Is(it.Err(), efierrors.CodeInvalidParameter))
	assert.Contains(t, it.Err().Error(), `\EFI\BOOT`)
	assert.Equal(t, reads, m.Stats().DirectoryReads, "the closed handle is not read")
	assert.Equal(t, 0, m.OutstandingPools(), "the read buffer is released")

	assert.Equal(t, []string{"initrd", "kernel.elf"}, listNames(t, nav), "the new directory lists normally")
}

// TestNavigatorIndependentInstances tests that navigators never share handles
func TestNavigatorIndependentInstances(t *testing.T) {
	m, ctx := newTestMachine(t)
	a := NewNavigator(ctx)
	b := NewNavigator(ctx)

	require.NoError(t, a.SetWorkingDirectory("EFI"))
	require.NoError(t, b.SetWorkingDirectory("boot"))
	assert.Equal(t, 2, m.OpenFiles())

	require.NoError(t, a.Close())
	assert.Equal(t, []string{"initrd", "kernel.elf"}, listNames(t, b))
	require.NoError(t, b.Close())
	assert.Equal(t, 0, m.OpenFiles())
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{`\`, "EFI", `\EFI`},
		{`\EFI`, "BOOT", `\EFI\BOOT`},
		{`\EFI`, `\boot`, `\boot`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, joinPath(tt.base, tt.path))
	}
}

// sizedFile is a file protocol whose info reports a fixed size while Read
// serves data once, or fails with readStatus.
type sizedFile struct {
	size       uint64
	data       []byte
	readStatus types.Status
	served     bool
}

func (f *sizedFile) Open([]uint16, uint64, uint64) (interfaces.FileProtocol, types.Status) {
	return nil, types.StatusUnsupported
}

func (f *sizedFile) Close() types.Status { return types.StatusSuccess }

func (f *sizedFile) Read(buffer []byte) (int, types.Status) {
	if f.readStatus.IsError() {
		return 0, f.readStatus
	}
	if f.served {
		return 0, types.StatusSuccess
	}
	f.served = true
	return copy(buffer, f.data), types.StatusSuccess
}

func (f *sizedFile) SetPosition(uint64) types.Status { return types.StatusSuccess }

func (f *sizedFile) GetInfo(_ types.GUID, buffer []byte) (int, types.Status) {
	info := types.FileInfo{FileName: "vmlinuz", FileSize: f.size, Attribute: types.FileArchive}
	n, ok := file_info.EncodeFileInfo(buffer, info, binary.LittleEndian)
	if !ok {
		return n, types.StatusBufferTooSmall
	}
	return n, types.StatusSuccess
}

// TestFileReadAllReportedSize tests that the size in the info record never
// decides how much memory is reserved
func TestFileReadAllReportedSize(t *testing.T) {
	tests := []struct {
		name       string
		file       *sizedFile
		want       string
		wantStatus types.Status
	}{
		{name: "Success_HugeReportedSize", file: &sizedFile{size: 1 << 62, data: []byte("kernel")}, want: "kernel"},
		{name: "Success_MaxReportedSize", file: &sizedFile{size: ^uint64(0), data: []byte("k")}, want: "k"},
		{name: "Success_UnderReportedSize", file: &sizedFile{size: 1, data: []byte("longer")}, want: "longer"},
		{name: "Error_Read", file: &sizedFile{size: 1 << 62, readStatus: types.StatusDeviceError}, wantStatus: types.StatusDeviceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newContextFor(emulator.NewBare(48))
			file := &File{ctx: ctx, path: `mlinuz`, file: tt.file}

			var data []byte
			var err error
			require.NotPanics(t, func() { data, err = file.ReadAll() })
			if tt.wantStatus != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantStatus, efierrors.StatusOf(err))
				assert.Equal(t, tt.wantStatus, ctx.LastStatus())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}
