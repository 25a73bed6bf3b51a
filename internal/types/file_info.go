package types

import (
	"fmt"
	"time"
)

// File Protocol (UEFI Specification 2.10, section 13.5)

// File open modes.
// Reference: section 13.5.2
const (
	FileModeRead   uint64 = 0x0000000000000001
	FileModeWrite  uint64 = 0x0000000000000002
	FileModeCreate uint64 = 0x8000000000000000
)

// File attribute bits, shared by Open and EFI_FILE_INFO.
// Reference: section 13.5.2
const (
	FileReadOnly  uint64 = 0x01
	FileHidden    uint64 = 0x02
	FileSystem    uint64 = 0x04
	FileReserved  uint64 = 0x08
	FileDirectory uint64 = 0x10
	FileArchive   uint64 = 0x20
	FileValidAttr uint64 = 0x37
)

// FilePositionEnd moves a file cursor to end of file.
const FilePositionEnd uint64 = 0xFFFFFFFFFFFFFFFF

// MaxPathUnits is the number of UCS-2 units a path may hold before the terminator.
const MaxPathUnits = 255

// TimeSize is the encoded size of EFI_TIME.
const TimeSize = 16

// Time is the firmware's calendar time.
// Reference: section 8.3 (EFI_TIME)
type Time struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	Pad1       uint8
	Nanosecond uint32
	TimeZone   int16
	Daylight   uint8
	Pad2       uint8
}

// UnspecifiedTimezone marks a time as local with no known offset.
const UnspecifiedTimezone int16 = 0x07FF

// TimeFromGo converts a Go time to firmware calendar time in UTC.
func TimeFromGo(t time.Time) Time {
	t = t.UTC()
	return Time{
		Year:       uint16(t.Year()),
		Month:      uint8(t.Month()),
		Day:        uint8(t.Day()),
		Hour:       uint8(t.Hour()),
		Minute:     uint8(t.Minute()),
		Second:     uint8(t.Second()),
		Nanosecond: uint32(t.Nanosecond()),
		TimeZone:   0,
	}
}

// Go converts the firmware time to a Go time. Unspecified timezones are treated as UTC.
func (t Time) Go() time.Time {
	loc := time.UTC
	if t.TimeZone != UnspecifiedTimezone && t.TimeZone != 0 {
		// Localtime = UTC - TimeZone, in minutes.
		loc = time.FixedZone("", -int(t.TimeZone)*60)
	}
	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day),
		int(t.Hour), int(t.Minute), int(t.Second), int(t.Nanosecond), loc)
}

// String renders the time the way the loader prints it.
func (t Time) String() string {
	return fmt.Sprintf("%02d/%02d/%04d - %02d:%02d:%02d.%d",
		t.Month, t.Day, t.Year, t.Hour, t.Minute, t.Second, t.Nanosecond)
}

// FileInfoHeaderSize is the size of EFI_FILE_INFO up to the name.
const FileInfoHeaderSize = 80

// FileInfo is the variable-length record returned by GetInfo and directory reads.
// Reference: section 13.5.16 (EFI_FILE_INFO)
type FileInfo struct {
	// Size of the whole record including the terminated name. Offset 0.
	Size uint64
	// FileSize in bytes. Offset 8.
	FileSize uint64
	// PhysicalSize on the volume. Offset 16.
	PhysicalSize uint64
	// CreateTime at offset 24, LastAccessTime at 40, ModificationTime at 56.
	CreateTime       Time
	LastAccessTime   Time
	ModificationTime Time
	// Attribute bitmask. Offset 72.
	Attribute uint64
	// FileName is the decoded NUL-terminated UCS-2 name at offset 80.
	FileName string
}

// IsDirectory reports whether the directory attribute is set.
func (fi FileInfo) IsDirectory() bool {
	return fi.Attribute&FileDirectory != 0
}
