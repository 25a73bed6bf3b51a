// File: internal/parsers/file_info/file_info_reader.go
package file_info

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// EFI_FILE_INFO field offsets.
const (
	sizeOffset             = 0
	fileSizeOffset         = 8
	physicalSizeOffset     = 16
	createTimeOffset       = 24
	lastAccessTimeOffset   = 40
	modificationTimeOffset = 56
	attributeOffset        = 72
	fileNameOffset         = types.FileInfoHeaderSize
)

// ParseFileInfo decodes an EFI_FILE_INFO record. The record's own Size field
// bounds the name; a name without a terminator inside the record is an error.
func ParseFileInfo(data []byte, endian binary.ByteOrder) (types.FileInfo, error) {
	if len(data) < fileNameOffset+2 {
		return types.FileInfo{}, fmt.Errorf("insufficient data for file info: need at least %d bytes, got %d", fileNameOffset+2, len(data))
	}

	info := types.FileInfo{
		Size:             endian.Uint64(data[sizeOffset : sizeOffset+8]),
		FileSize:         endian.Uint64(data[fileSizeOffset : fileSizeOffset+8]),
		PhysicalSize:     endian.Uint64(data[physicalSizeOffset : physicalSizeOffset+8]),
		CreateTime:       ParseTime(data[createTimeOffset:], endian),
		LastAccessTime:   ParseTime(data[lastAccessTimeOffset:], endian),
		ModificationTime: ParseTime(data[modificationTimeOffset:], endian),
		Attribute:        endian.Uint64(data[attributeOffset : attributeOffset+8]),
	}

	if info.Size < fileNameOffset+2 || info.Size > uint64(len(data)) {
		return types.FileInfo{}, fmt.Errorf("file info size %d is outside record bounds (%d..%d)", info.Size, fileNameOffset+2, len(data))
	}

	name, ok := decodeTerminated(data[fileNameOffset:info.Size], endian)
	if !ok {
		return types.FileInfo{}, fmt.Errorf("file name is not NUL-terminated within %d bytes", info.Size)
	}
	info.FileName = name

	return info, nil
}

// EncodedFileInfoSize returns the record size for a file with the given name.
func EncodedFileInfoSize(name string) int {
	return fileNameOffset + (len(utf16.Encode([]rune(name)))+1)*2
}

// EncodeFileInfo writes info into dst and returns the record size. info.Size is
// recomputed from the name. When dst is too small nothing is written and the
// required size is returned with ok false.
func EncodeFileInfo(dst []byte, info types.FileInfo, endian binary.ByteOrder) (n int, ok bool) {
	units := utf16.Encode([]rune(info.FileName))
	size := fileNameOffset + (len(units)+1)*2
	if len(dst) < size {
		return size, false
	}

	clear(dst[:size])
	endian.PutUint64(dst[sizeOffset:sizeOffset+8], uint64(size))
	endian.PutUint64(dst[fileSizeOffset:fileSizeOffset+8], info.FileSize)
	endian.PutUint64(dst[physicalSizeOffset:physicalSizeOffset+8], info.PhysicalSize)
	EncodeTime(dst[createTimeOffset:], info.CreateTime, endian)
	EncodeTime(dst[lastAccessTimeOffset:], info.LastAccessTime, endian)
	EncodeTime(dst[modificationTimeOffset:], info.ModificationTime, endian)
	endian.PutUint64(dst[attributeOffset:attributeOffset+8], info.Attribute)
	for i, u := range units {
		endian.PutUint16(dst[fileNameOffset+i*2:], u)
	}
	return size, true
}

// ParseTime decodes a 16-byte EFI_TIME.
func ParseTime(data []byte, endian binary.ByteOrder) types.Time {
	return types.Time{
		Year:       endian.Uint16(data[0:2]),
		Month:      data[2],
		Day:        data[3],
		Hour:       data[4],
		Minute:     data[5],
		Second:     data[6],
		Pad1:       data[7],
		Nanosecond: endian.Uint32(data[8:12]),
		TimeZone:   int16(endian.Uint16(data[12:14])),
		Daylight:   data[14],
		Pad2:       data[15],
	}
}

// EncodeTime writes a 16-byte EFI_TIME.
func EncodeTime(dst []byte, t types.Time, endian binary.ByteOrder) {
	endian.PutUint16(dst[0:2], t.Year)
	dst[2] = t.Month
	dst[3] = t.Day
	dst[4] = t.Hour
	dst[5] = t.Minute
	dst[6] = t.Second
	dst[7] = t.Pad1
	endian.PutUint32(dst[8:12], t.Nanosecond)
	endian.PutUint16(dst[12:14], uint16(t.TimeZone))
	dst[14] = t.Daylight
	dst[15] = t.Pad2
}

func decodeTerminated(data []byte, endian binary.ByteOrder) (string, bool) {
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		u := endian.Uint16(data[i : i+2])
		if u == 0 {
			return string(utf16.Decode(units)), true
		}
		units = append(units, u)
	}
	return "", false
}
