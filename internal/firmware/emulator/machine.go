// Package emulator is an in-process firmware that implements the boundary
// interfaces over configured memory, configuration tables and volumes. Time
// is virtual: waiting on a timer advances the clock instead of sleeping.
package emulator

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-efiboot/internal/config"
	"github.com/deploymenttheory/go-efiboot/internal/device"
	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// Handle values handed out by the emulator.
const (
	ImageHandle       types.Handle = 0x1000
	firstVolumeHandle types.Handle = 0x2000
)

// Machine is an emulated firmware instance.
type Machine struct {
	header   types.TableHeader
	vendor   string
	revision uint32

	memory      *memoryManager
	events      *eventManager
	console     *Console
	keyboard    *Keyboard
	faults      *faultInjector
	volumes     []*device.Volume
	bootVolume  int
	tables      []types.ConfigurationTable
	clock       time.Time
	openFiles   int
	stats       Stats
	log         logrus.FieldLogger
	bootService *bootServices
	runtime     *runtimeServices
}

// Compile-time check to ensure Machine implements SystemTable
var _ interfaces.SystemTable = (*Machine)(nil)

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger for firmware-side diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(m *Machine) {
		m.log = logger.WithField("component", "firmware")
	}
}

// WithConsoleOutput copies console text to w.
func WithConsoleOutput(w io.Writer) Option {
	return func(m *Machine) {
		m.console.mirror = w
	}
}

// WithAutoKey makes a key wait that could never be satisfied return the
// given key instead of failing.
func WithAutoKey(key rune) Option {
	return func(m *Machine) {
		m.keyboard.autoKey = key
		m.keyboard.hasAutoKey = true
	}
}

// New creates a machine from configuration.
func New(cfg config.MachineConfig, opts ...Option) (*Machine, error) {
	volumes, err := device.OpenVolumes(cfg.Volumes)
	if err != nil {
		return nil, err
	}

	descriptors := make([]types.MemoryDescriptor, 0, len(cfg.Memory))
	for i, region := range cfg.Memory {
		memType, err := types.ParseMemoryType(region.Type)
		if err != nil {
			return nil, fmt.Errorf("memory region %d: %w", i, err)
		}
		descriptors = append(descriptors, types.MemoryDescriptor{
			Type:          memType,
			PhysicalStart: region.Start,
			NumberOfPages: region.Pages,
			Attribute:     region.Attribute,
		})
	}

	tables := make([]types.ConfigurationTable, 0, len(cfg.ConfigTables))
	for i, entry := range cfg.ConfigTables {
		guid, err := types.ParseGUID(entry.GUID)
		if err != nil {
			return nil, fmt.Errorf("configuration table %d: %w", i, err)
		}
		tables = append(tables, types.ConfigurationTable{VendorGUID: guid, Table: uintptr(entry.Address)})
	}

	major, minor, err := cfg.Revision()
	if err != nil {
		return nil, err
	}
	clock, err := cfg.Clock()
	if err != nil {
		return nil, err
	}

	m := newMachine(cfg.DescriptorSize, opts...)
	m.header.Revision = types.MakeRevision(major, minor)
	m.vendor = cfg.FirmwareVendor
	m.revision = cfg.FirmwareRevision
	m.memory.descriptors = descriptors
	m.memory.growth = cfg.MapGrowth
	m.tables = tables
	m.volumes = volumes
	m.bootVolume = cfg.BootVolume
	m.clock = clock
	m.keyboard.Type(cfg.Keys, cfg.KeyDelay)

	m.log.WithFields(logrus.Fields{
		"vendor":      m.vendor,
		"revision":    m.header.RevisionString(),
		"descriptors": len(descriptors),
		"tables":      len(tables),
		"volumes":     len(volumes),
	}).Debug("machine created")
	return m, nil
}

// NewBare creates an empty machine with the given descriptor stride, for
// callers that populate it programmatically.
func NewBare(descriptorSize int, opts ...Option) *Machine {
	m := newMachine(descriptorSize, opts...)
	m.header.Revision = types.MakeRevision(2, 70)
	m.vendor = "Emulator"
	return m
}

func newMachine(descriptorSize int, opts ...Option) *Machine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	m := &Machine{
		header: types.TableHeader{
			Signature:  types.SystemTableSignature,
			HeaderSize: 120,
		},
		faults: newFaultInjector(),
		log:    discard,
	}
	m.memory = newMemoryManager(m, descriptorSize)
	m.events = newEventManager(m)
	m.keyboard = newKeyboard(m)
	m.console = newConsole(m)
	m.bootService = &bootServices{m: m}
	m.runtime = &runtimeServices{m: m}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Header returns the system table header.
func (m *Machine) Header() types.TableHeader { return m.header }

// FirmwareVendor returns the vendor string.
func (m *Machine) FirmwareVendor() string { return m.vendor }

// FirmwareRevision returns the vendor firmware revision.
func (m *Machine) FirmwareRevision() uint32 { return m.revision }

// ConIn returns the keyboard.
func (m *Machine) ConIn() interfaces.SimpleTextInput { return m.keyboard }

// ConOut returns the console.
func (m *Machine) ConOut() interfaces.SimpleTextOutput { return m.console }

// BootServices returns the boot service table.
func (m *Machine) BootServices() interfaces.BootServices { return m.bootService }

// RuntimeServices returns the runtime service table.
func (m *Machine) RuntimeServices() interfaces.RuntimeServices { return m.runtime }

// ConfigurationTables returns a copy of the configuration table list.
func (m *Machine) ConfigurationTables() []types.ConfigurationTable {
	out := make([]types.ConfigurationTable, len(m.tables))
	copy(out, m.tables)
	return out
}

// ImageHandle returns the handle of the loader image.
func (m *Machine) ImageHandle() types.Handle { return ImageHandle }

// Console returns the console for inspecting output.
func (m *Machine) Console() *Console { return m.console }

// Keyboard returns the keyboard for scripting input.
func (m *Machine) Keyboard() *Keyboard { return m.keyboard }

// SetRevision sets the system table revision.
func (m *Machine) SetRevision(revision uint32) { m.header.Revision = revision }

// SetConfigurationTables replaces the configuration table list.
func (m *Machine) SetConfigurationTables(tables []types.ConfigurationTable) {
	m.tables = append([]types.ConfigurationTable(nil), tables...)
}

// SetMemoryMap replaces the memory map. Descriptors are reported verbatim,
// including out-of-range types.
func (m *Machine) SetMemoryMap(descriptors []types.MemoryDescriptor) {
	m.memory.descriptors = append([]types.MemoryDescriptor(nil), descriptors...)
	m.memory.key++
}

// SetMapGrowth sets how many descriptors each pool allocation adds to the map.
func (m *Machine) SetMapGrowth(descriptors int) { m.memory.growth = descriptors }

// AddVolume publishes a volume and returns its handle.
func (m *Machine) AddVolume(v *device.Volume) types.Handle {
	m.volumes = append(m.volumes, v)
	return volumeHandle(len(m.volumes) - 1)
}

// SetBootVolume selects the volume the loader image was loaded from.
func (m *Machine) SetBootVolume(index int) { m.bootVolume = index }

// SetClock fixes the wall clock reported by GetTime.
func (m *Machine) SetClock(t time.Time) { m.clock = t }

// InjectFault makes the next call of operation return status. Faults queue
// per operation and are consumed in order.
func (m *Machine) InjectFault(operation Operation, status types.Status) {
	m.faults.inject(operation, status)
}

// InjectFaultAfter lets skip calls of operation succeed before failing.
func (m *Machine) InjectFaultAfter(operation Operation, skip int, status types.Status) {
	m.faults.injectAfter(operation, skip, status)
}

// EventID returns the identity an event carries in firmware diagnostics.
func (m *Machine) EventID(handle types.Event) (string, bool) {
	id, ok := m.events.id(handle)
	if !ok {
		return "", false
	}
	return id.String(), true
}

// OutstandingPools returns the number of pool buffers not yet freed.
func (m *Machine) OutstandingPools() int { return len(m.memory.pools) }

// OpenFiles returns the number of file protocol handles not yet closed.
func (m *Machine) OpenFiles() int { return m.openFiles }

// ActiveEvents returns the number of events created by callers and not yet
// closed. The console key event is not counted.
func (m *Machine) ActiveEvents() int { return len(m.events.events) - 1 }

// Now returns the virtual time elapsed since the machine started.
func (m *Machine) Now() time.Duration {
	return time.Duration(m.events.now) * 100
}

// Stats returns call counters.
func (m *Machine) Stats() Stats { return m.stats }

// Stats counts firmware calls of interest to callers verifying call patterns.
type Stats struct {
	GetMemoryMapCalls int
	AllocatePoolCalls int
	FreePoolCalls     int
	FileOpens         int
	DirectoryOpens    int
	FileCloses        int
	DirectoryReads    int
	WaitForEventCalls int
	TimerCancels      int
	TimerArms         int
}

func volumeHandle(index int) types.Handle {
	return firstVolumeHandle + types.Handle(index)
}

func (m *Machine) volumeIndex(handle types.Handle) (int, bool) {
	if handle < firstVolumeHandle {
		return 0, false
	}
	i := int(handle - firstVolumeHandle)
	return i, i < len(m.volumes)
}
