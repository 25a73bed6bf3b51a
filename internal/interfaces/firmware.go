// File: internal/interfaces/firmware.go
package interfaces

import (
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// SystemTable is the root of every firmware service the loader can reach.
// It is handed to the loader together with its image handle at entry.
type SystemTable interface {
	// Header returns the table header (signature, revision, CRC)
	Header() types.TableHeader

	// FirmwareVendor returns the vendor string of the system firmware
	FirmwareVendor() string

	// FirmwareRevision returns the vendor-specific firmware revision
	FirmwareRevision() uint32

	// ConIn returns the console input protocol
	ConIn() SimpleTextInput

	// ConOut returns the console output protocol
	ConOut() SimpleTextOutput

	// BootServices returns the boot-time service table
	BootServices() BootServices

	// RuntimeServices returns the runtime service table
	RuntimeServices() RuntimeServices

	// ConfigurationTables returns a read-only view of the configuration table list
	ConfigurationTables() []types.ConfigurationTable
}

// BootServices provides the boot-time firmware services used by the loader
type BootServices interface {
	// AllocatePool allocates a pool buffer of the given memory type
	AllocatePool(memoryType types.MemoryType, size int) ([]byte, types.Status)

	// FreePool returns a buffer obtained from AllocatePool
	FreePool(buffer []byte) types.Status

	// GetMemoryMap writes the current memory map into buffer. len(buffer) is the
	// caller's capacity; on StatusBufferTooSmall info.MapSize holds the required size
	GetMemoryMap(buffer []byte) (types.MemoryMapInfo, types.Status)

	// CreateEvent creates an event of the given type
	CreateEvent(eventType uint32, tpl uint64) (types.Event, types.Status)

	// SetTimer arms, re-arms or cancels a timer event. triggerTime is in 100ns units
	SetTimer(event types.Event, delay types.TimerDelay, triggerTime uint64) types.Status

	// WaitForEvent blocks until one of the events is signaled and returns its index.
	// Events earlier in the list take precedence when several are signaled
	WaitForEvent(events []types.Event) (int, types.Status)

	// CloseEvent releases an event created with CreateEvent
	CloseEvent(event types.Event) types.Status

	// HandleProtocol returns the protocol interface a handle supports
	HandleProtocol(handle types.Handle, protocol types.GUID) (any, types.Status)

	// LocateHandleBuffer returns every handle supporting the protocol
	LocateHandleBuffer(protocol types.GUID) ([]types.Handle, types.Status)

	// OpenProtocol opens a protocol on a handle on behalf of an agent
	OpenProtocol(handle types.Handle, protocol types.GUID, agent types.Handle, attributes uint32) (any, types.Status)
}

// RuntimeServices provides the runtime firmware services used by the loader
type RuntimeServices interface {
	// GetTime returns the current calendar time
	GetTime() (types.Time, types.Status)
}

// SimpleTextInput is the console input protocol
type SimpleTextInput interface {
	// Reset clears pending keystrokes
	Reset(extendedVerification bool) types.Status

	// ReadKeyStroke returns the next keystroke, StatusNotReady when none is pending
	ReadKeyStroke() (types.InputKey, types.Status)

	// WaitForKey returns the event signaled when a keystroke is pending
	WaitForKey() types.Event
}

// SimpleTextOutput is the console output protocol
type SimpleTextOutput interface {
	// OutputString writes text to the console
	OutputString(text string) types.Status

	// ClearScreen clears the console and homes the cursor
	ClearScreen() types.Status

	// SetAttribute sets the foreground and background colours
	SetAttribute(attribute uint64) types.Status
}

// SimpleFileSystem is the volume access protocol installed on a volume handle
type SimpleFileSystem interface {
	// OpenVolume opens the root directory of the volume
	OpenVolume() (FileProtocol, types.Status)
}

// FileProtocol is an open file or directory on a volume.
// Names are NUL-terminated UCS-2 and may use '\' separators.
type FileProtocol interface {
	// Open opens name relative to this file
	Open(name []uint16, mode uint64, attributes uint64) (FileProtocol, types.Status)

	// Close releases the handle
	Close() types.Status

	// Read reads file bytes, or the next EFI_FILE_INFO record for a directory.
	// A zero count with StatusSuccess marks end of file or directory. On
	// StatusBufferTooSmall the count is the required size
	Read(buffer []byte) (int, types.Status)

	// SetPosition moves the cursor. Directories only accept zero
	SetPosition(position uint64) types.Status

	// GetInfo writes the information record selected by infoType. On
	// StatusBufferTooSmall the count is the required size
	GetInfo(infoType types.GUID, buffer []byte) (int, types.Status)
}
