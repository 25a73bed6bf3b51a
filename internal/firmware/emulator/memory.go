package emulator

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-efiboot/internal/parsers/memory_map"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// poolBase is where the emulator pretends pool allocations live.
const poolBase uint64 = 0x40000000

type pool struct {
	memoryType types.MemoryType
	size       int
}

type memoryManager struct {
	m           *Machine
	stride      int
	descriptors []types.MemoryDescriptor
	// growth is the number of descriptors each allocation adds to the map.
	growth int
	key    uint64
	pools  map[*byte]pool
	next   uint64
}

func newMemoryManager(m *Machine, stride int) *memoryManager {
	if stride < types.MemoryDescriptorSize {
		stride = types.MemoryDescriptorSize
	}
	return &memoryManager{
		m:      m,
		stride: stride,
		key:    1,
		pools:  make(map[*byte]pool),
		next:   poolBase,
	}
}

func (mm *memoryManager) allocate(memoryType types.MemoryType, size int) ([]byte, types.Status) {
	if size < 0 || !memoryType.IsValid() || memoryType == types.EfiMaxMemoryType {
		return nil, types.StatusInvalidParameter
	}
	buffer := make([]byte, size, max(size, 1))
	mm.pools[&buffer[:1][0]] = pool{memoryType: memoryType, size: size}

	for i := 0; i < mm.growth; i++ {
		pages := uint64(size+types.PageSize-1) >> types.PageShift
		if pages == 0 {
			pages = 1
		}
		mm.descriptors = append(mm.descriptors, types.MemoryDescriptor{
			Type:          memoryType,
			PhysicalStart: mm.next,
			NumberOfPages: pages,
			Attribute:     types.MemoryWB,
		})
		mm.next += pages << types.PageShift
	}
	mm.key++

	mm.m.log.WithFields(logrus.Fields{"type": memoryType.String(), "size": size, "outstanding": len(mm.pools)}).Trace("pool allocated")
	return buffer, types.StatusSuccess
}

func (mm *memoryManager) free(buffer []byte) types.Status {
	if cap(buffer) == 0 {
		return types.StatusInvalidParameter
	}
	ptr := &buffer[:1][0]
	if _, ok := mm.pools[ptr]; !ok {
		return types.StatusInvalidParameter
	}
	delete(mm.pools, ptr)
	mm.key++
	return types.StatusSuccess
}

func (mm *memoryManager) getMemoryMap(buffer []byte) (types.MemoryMapInfo, types.Status) {
	info := types.MemoryMapInfo{
		MapSize:           len(mm.descriptors) * mm.stride,
		MapKey:            mm.key,
		DescriptorSize:    mm.stride,
		DescriptorVersion: types.MemoryDescriptorVersion,
	}
	if len(buffer) < info.MapSize {
		return info, types.StatusBufferTooSmall
	}
	if _, err := memory_map.EncodeMemoryMap(buffer, mm.descriptors, mm.stride, binary.LittleEndian); err != nil {
		return info, types.StatusDeviceError
	}
	return info, types.StatusSuccess
}
