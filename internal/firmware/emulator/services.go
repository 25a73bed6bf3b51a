package emulator

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

type bootServices struct {
	m *Machine
}

// Compile-time check to ensure bootServices implements BootServices
var _ interfaces.BootServices = (*bootServices)(nil)

func (b *bootServices) AllocatePool(memoryType types.MemoryType, size int) ([]byte, types.Status) {
	b.m.stats.AllocatePoolCalls++
	if status := b.m.faults.take(OpAllocatePool); status.IsError() {
		return nil, status
	}
	return b.m.memory.allocate(memoryType, size)
}

func (b *bootServices) FreePool(buffer []byte) types.Status {
	b.m.stats.FreePoolCalls++
	if status := b.m.faults.take(OpFreePool); status.IsError() {
		return status
	}
	return b.m.memory.free(buffer)
}

func (b *bootServices) GetMemoryMap(buffer []byte) (types.MemoryMapInfo, types.Status) {
	b.m.stats.GetMemoryMapCalls++
	if status := b.m.faults.take(OpGetMemoryMap); status.IsError() {
		return types.MemoryMapInfo{DescriptorSize: b.m.memory.stride}, status
	}
	return b.m.memory.getMemoryMap(buffer)
}

func (b *bootServices) CreateEvent(eventType uint32, tpl uint64) (types.Event, types.Status) {
	if status := b.m.faults.take(OpCreateEvent); status.IsError() {
		return 0, status
	}
	if tpl != types.TPLApplication && tpl != types.TPLCallback {
		return 0, types.StatusInvalidParameter
	}
	return b.m.events.create(eventType, false), types.StatusSuccess
}

func (b *bootServices) SetTimer(event types.Event, delay types.TimerDelay, triggerTime uint64) types.Status {
	if status := b.m.faults.take(OpSetTimer); status.IsError() {
		return status
	}
	return b.m.events.setTimer(event, delay, triggerTime)
}

func (b *bootServices) WaitForEvent(events []types.Event) (int, types.Status) {
	b.m.stats.WaitForEventCalls++
	if status := b.m.faults.take(OpWaitForEvent); status.IsError() {
		return 0, status
	}
	return b.m.events.wait(events)
}

func (b *bootServices) CloseEvent(event types.Event) types.Status {
	return b.m.events.close(event)
}

func (b *bootServices) HandleProtocol(handle types.Handle, protocol types.GUID) (any, types.Status) {
	if status := b.m.faults.take(OpHandleProtocol); status.IsError() {
		return nil, status
	}
	return b.m.protocol(handle, protocol)
}

func (b *bootServices) LocateHandleBuffer(protocol types.GUID) ([]types.Handle, types.Status) {
	if status := b.m.faults.take(OpLocateHandleBuffer); status.IsError() {
		return nil, status
	}
	if protocol != types.SimpleFileSystemProtocolGUID || len(b.m.volumes) == 0 {
		return nil, types.StatusNotFound
	}
	handles := make([]types.Handle, len(b.m.volumes))
	for i := range b.m.volumes {
		handles[i] = volumeHandle(i)
	}
	return handles, types.StatusSuccess
}

func (b *bootServices) OpenProtocol(handle types.Handle, protocol types.GUID, agent types.Handle, attributes uint32) (any, types.Status) {
	if status := b.m.faults.take(OpOpenProtocol); status.IsError() {
		return nil, status
	}
	if agent == 0 || attributes == 0 {
		return nil, types.StatusInvalidParameter
	}
	return b.m.protocol(handle, protocol)
}

func (m *Machine) protocol(handle types.Handle, protocol types.GUID) (any, types.Status) {
	switch protocol {
	case types.LoadedImageProtocolGUID:
		if handle != ImageHandle {
			return nil, types.StatusUnsupported
		}
		if m.bootVolume < 0 || m.bootVolume >= len(m.volumes) {
			return nil, types.StatusNotFound
		}
		return &types.LoadedImage{
			Revision:     0x1000,
			DeviceHandle: volumeHandle(m.bootVolume),
			FilePath:     `\EFI\BOOT\BOOTX64.EFI`,
			ImageBase:    0x800000,
			ImageSize:    0x100000,
		}, types.StatusSuccess
	case types.SimpleFileSystemProtocolGUID:
		index, ok := m.volumeIndex(handle)
		if !ok {
			return nil, types.StatusUnsupported
		}
		return &simpleFileSystem{m: m, index: index}, types.StatusSuccess
	default:
		return nil, types.StatusUnsupported
	}
}

type runtimeServices struct {
	m *Machine
}

// Compile-time check to ensure runtimeServices implements RuntimeServices
var _ interfaces.RuntimeServices = (*runtimeServices)(nil)

// GetTime reports the configured clock plus elapsed virtual time.
func (r *runtimeServices) GetTime() (types.Time, types.Status) {
	if status := r.m.faults.take(OpGetTime); status.IsError() {
		return types.Time{}, status
	}
	base := r.m.clock
	if base.IsZero() {
		base = time.Now()
	}
	now := base.Add(r.m.Now())
	r.m.log.WithFields(logrus.Fields{"time": now}).Trace("GetTime")
	return types.TimeFromGo(now), types.StatusSuccess
}
