// File: internal/parsers/file_info/path_encoding.go
package file_info

import (
	"strings"
	"unicode/utf16"

	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// EncodePath maps each byte of path to one UCS-2 unit and appends the
// terminator. Input stops at an embedded NUL. Input longer than
// types.MaxPathUnits bytes is cut to that length; truncated reports whether
// that happened. No escaping or normalization is done.
func EncodePath(path string) (units []uint16, truncated bool) {
	if i := strings.IndexByte(path, 0); i >= 0 {
		path = path[:i]
	}
	n := len(path)
	if n > types.MaxPathUnits {
		n = types.MaxPathUnits
		truncated = true
	}
	units = make([]uint16, n+1)
	for i := 0; i < n; i++ {
		units[i] = uint16(path[i])
	}
	return units, truncated
}

// EncodeName converts a Go string to a terminated UTF-16 name without a length cap.
func EncodeName(name string) []uint16 {
	return append(utf16.Encode([]rune(name)), 0)
}

// DecodeName converts a UCS-2 name up to its terminator (or the end) to a Go string.
func DecodeName(units []uint16) string {
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units))
}
