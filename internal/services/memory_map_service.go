package services

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-efiboot/internal/efierrors"
	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/parsers/memory_map"
	"github.com/deploymenttheory/go-efiboot/internal/types"
	"github.com/deploymenttheory/go-efiboot/pkg/app"
)

// MemoryMapService retrieves the firmware memory map with the two-call
// size negotiation GetMemoryMap requires.
type MemoryMapService struct {
	ctx *app.Context
}

// Compile-time check to ensure MemoryMapService implements MemoryMapReader
var _ interfaces.MemoryMapReader = (*MemoryMapService)(nil)

// NewMemoryMapService creates a reader bound to the context's boot services.
func NewMemoryMapService(ctx *app.Context) *MemoryMapService {
	return &MemoryMapService{ctx: ctx}
}

// GetSnapshot queries GetMemoryMap with no buffer, allocates the reported size
// plus one descriptor of slack, and reads the map. The retry happens exactly
// once; a second BufferTooSmall fails the call.
func (s *MemoryMapService) GetSnapshot() (interfaces.MemoryMapSnapshot, error) {
	bs := s.ctx.BootServices()
	log := s.ctx.Logger.WithField("component", "memory_map")

	info, status := bs.GetMemoryMap(nil)
	if status == types.StatusSuccess {
		// Nothing to read: an empty map needs no buffer.
		s.ctx.Record(status, "GetMemoryMap")
		return &MemoryMapSnapshot{ctx: s.ctx, key: info.MapKey, stride: info.DescriptorSize, version: info.DescriptorVersion}, nil
	}
	if status != types.StatusBufferTooSmall {
		return nil, s.ctx.Record(status, "query memory map size")
	}
	if info.DescriptorSize < types.MemoryDescriptorSize {
		s.ctx.Record(types.StatusInvalidParameter, "GetMemoryMap")
		return nil, efierrors.Newf(efierrors.CodeInvalidParameter, "firmware reported descriptor stride %d, smaller than %d", info.DescriptorSize, types.MemoryDescriptorSize)
	}

	capacity := info.MapSize + info.DescriptorSize
	log.WithFields(logrus.Fields{"required": info.MapSize, "capacity": capacity, "stride": info.DescriptorSize}).Debug("allocating memory map buffer")

	buffer, status := bs.AllocatePool(types.EfiLoaderData, capacity)
	if status.IsError() {
		return nil, s.ctx.Record(status, "allocate memory map buffer")
	}

	info, status = bs.GetMemoryMap(buffer)
	if status.IsError() {
		err := s.ctx.Record(status, "read memory map")
		if freeStatus := bs.FreePool(buffer); freeStatus.IsError() {
			log.WithField("status", freeStatus.String()).Warn("failed to free memory map buffer")
		}
		return nil, err
	}
	if info.DescriptorSize < types.MemoryDescriptorSize || info.MapSize > len(buffer) {
		bs.FreePool(buffer)
		s.ctx.Record(types.StatusInvalidParameter, "GetMemoryMap")
		return nil, efierrors.Newf(efierrors.CodeInvalidParameter, "firmware reported map of %d bytes with stride %d for a %d byte buffer", info.MapSize, info.DescriptorSize, len(buffer))
	}

	s.ctx.Record(status, "GetMemoryMap")
	return &MemoryMapSnapshot{
		ctx:     s.ctx,
		buffer:  buffer,
		size:    info.MapSize,
		key:     info.MapKey,
		stride:  info.DescriptorSize,
		version: info.DescriptorVersion,
	}, nil
}

// MemoryMapSnapshot owns a pool buffer holding the memory map.
type MemoryMapSnapshot struct {
	ctx      *app.Context
	buffer   []byte
	size     int
	key      uint64
	stride   int
	version  uint32
	released bool
}

// Compile-time check to ensure MemoryMapSnapshot implements MemoryMapSnapshot
var _ interfaces.MemoryMapSnapshot = (*MemoryMapSnapshot)(nil)

// Size returns the number of valid bytes in the map.
func (m *MemoryMapSnapshot) Size() int { return m.size }

// Key returns the map key the snapshot was taken at.
func (m *MemoryMapSnapshot) Key() uint64 { return m.key }

// DescriptorSize returns the stride between descriptors.
func (m *MemoryMapSnapshot) DescriptorSize() int { return m.stride }

// DescriptorVersion returns the descriptor format version.
func (m *MemoryMapSnapshot) DescriptorVersion() uint32 { return m.version }

// Count returns the number of descriptors in the map.
func (m *MemoryMapSnapshot) Count() int {
	return memory_map.DescriptorCount(m.size, m.stride)
}

// Iterator returns an iterator that advances by the reported stride and never
// reads past Size bytes.
func (m *MemoryMapSnapshot) Iterator() interfaces.MemoryDescriptorIterator {
	if m.released || m.size == 0 {
		return &snapshotIterator{}
	}
	it, err := memory_map.NewDescriptorIterator(m.buffer, m.size, m.stride, binary.LittleEndian)
	if err != nil {
		return &snapshotIterator{err: efierrors.Newf(efierrors.CodeInvalidParameter, "invalid memory map layout: %v", err)}
	}
	return &snapshotIterator{it: it}
}

// Descriptors decodes every descriptor. Descriptors with unknown types are
// included and reported through the returned error.
func (m *MemoryMapSnapshot) Descriptors() ([]types.MemoryDescriptor, error) {
	it := m.Iterator()
	descriptors := make([]types.MemoryDescriptor, 0, m.Count())
	for it.Next() {
		descriptors = append(descriptors, it.Descriptor())
	}
	return descriptors, it.Err()
}

// Release returns the buffer to the pool. Further calls are no-ops.
func (m *MemoryMapSnapshot) Release() error {
	if m.released {
		return nil
	}
	m.released = true
	if m.buffer == nil {
		return nil
	}
	status := m.ctx.BootServices().FreePool(m.buffer)
	m.buffer = nil
	if status.IsError() {
		return m.ctx.Record(status, "free memory map buffer")
	}
	return nil
}

// MemoryMapSummary aggregates a snapshot by memory type.
type MemoryMapSummary struct {
	Descriptors       int
	PagesByType       map[types.MemoryType]uint64
	ConventionalBytes uint64
	HighestAddress    uint64
}

// SummarizeMemoryMap totals pages per type and usable memory.
func SummarizeMemoryMap(snapshot interfaces.MemoryMapSnapshot) (MemoryMapSummary, error) {
	summary := MemoryMapSummary{PagesByType: make(map[types.MemoryType]uint64)}
	it := snapshot.Iterator()
	for it.Next() {
		d := it.Descriptor()
		summary.Descriptors++
		summary.PagesByType[d.Type] += d.NumberOfPages
		if d.Type == types.EfiConventionalMemory {
			summary.ConventionalBytes += d.Size()
		}
		if end := d.EndAddress(); end > summary.HighestAddress {
			summary.HighestAddress = end
		}
	}
	return summary, it.Err()
}

type snapshotIterator struct {
	it  *memory_map.DescriptorIterator
	err error
}

func (s *snapshotIterator) Next() bool {
	return s.it != nil && s.it.Next()
}

func (s *snapshotIterator) Index() int {
	if s.it == nil {
		return -1
	}
	return s.it.Index()
}

func (s *snapshotIterator) Descriptor() types.MemoryDescriptor {
	if s.it == nil {
		return types.MemoryDescriptor{}
	}
	return s.it.Descriptor()
}

func (s *snapshotIterator) Err() error {
	if s.err != nil {
		return s.err
	}
	if s.it == nil {
		return nil
	}
	if err := s.it.Err(); err != nil {
		return efierrors.Newf(efierrors.CodeInvalidParameter, "memory map defect after %d descriptors: %v", s.it.Index()+1, err)
	}
	return nil
}
