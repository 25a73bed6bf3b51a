package types

import "fmt"

// System Table (UEFI Specification 2.10, section 4)

// Handle is an opaque firmware handle.
// Reference: section 2.3.1 (EFI_HANDLE)
type Handle uintptr

// Event is an opaque firmware event.
// Reference: section 2.3.1 (EFI_EVENT)
type Event uintptr

// SystemTableSignature is the Hdr.Signature of the system table ("IBI SYST").
const SystemTableSignature uint64 = 0x5453595320494249

// TableHeader precedes every firmware service table.
// Reference: section 4.2
type TableHeader struct {
	Signature  uint64
	Revision   uint32
	HeaderSize uint32
	CRC32      uint32
	Reserved   uint32
}

// RevisionString renders the revision as major.minor[.sub].
// The lower 16 bits hold minor*10+sub, so 2.70 prints as "2.7" and
// 2.31 as "2.3.1".
func (h TableHeader) RevisionString() string {
	major := h.Revision >> 16
	minor := h.Revision & 0xffff
	if minor%10 != 0 {
		return fmt.Sprintf("%d.%d.%d", major, minor/10, minor%10)
	}
	return fmt.Sprintf("%d.%d", major, minor/10)
}

// MakeRevision builds a header revision from its parts.
func MakeRevision(major, minor uint32) uint32 {
	return major<<16 | minor
}

// ConfigurationTable is one entry of the firmware's configuration table list.
// The table pointer is opaque to the loader.
// Reference: section 4.6
type ConfigurationTable struct {
	VendorGUID GUID
	Table      uintptr
}

// LoadedImage is the subset of EFI_LOADED_IMAGE_PROTOCOL the loader reads.
// Reference: section 9.1
type LoadedImage struct {
	Revision     uint32
	ParentHandle Handle
	// DeviceHandle is the volume the image was loaded from.
	DeviceHandle Handle
	FilePath     string
	ImageBase    uintptr
	ImageSize    uint64
}

// InputKey is a keystroke read from the console.
// Reference: section 12.3.3
type InputKey struct {
	ScanCode    uint16
	UnicodeChar uint16
}

// Rune returns the printable character of the key, if any.
func (k InputKey) Rune() rune {
	return rune(k.UnicodeChar)
}

// Text attribute colours for SetAttribute.
// Reference: section 12.4.7
const (
	TextBlack     uint64 = 0x00
	TextLightGray uint64 = 0x07
	TextWhite     uint64 = 0x0f
)

// TextAttr combines a foreground and background colour.
func TextAttr(foreground, background uint64) uint64 {
	return foreground | background<<4
}

// TimerDelay selects how SetTimer interprets the trigger time.
// Reference: section 7.1.7
type TimerDelay uint32

const (
	TimerCancel TimerDelay = iota
	TimerPeriodic
	TimerRelative
)

// Event types and task priority levels used by the loader.
// Reference: section 7.1.1
const (
	EventTimer       uint32 = 0x80000000
	EventNotifyWait  uint32 = 0x00000100
	TPLApplication   uint64 = 4
	TPLCallback      uint64 = 8
	TimerTicksPerSec uint64 = 10_000_000
)

// OpenProtocol attributes.
// Reference: section 7.3.9
const (
	OpenProtocolByHandleProtocol uint32 = 0x00000001
	OpenProtocolGetProtocol      uint32 = 0x00000002
)
