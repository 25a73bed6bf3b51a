package types

import "fmt"

// Status Codes (UEFI Specification 2.10, Appendix D)
// Every firmware service reports its outcome as a native-width status value.
// Error codes have the high bit set; warnings and success do not.

// Status is the result of a firmware service call.
// Reference: Appendix D
type Status uint64

// errorBit marks a status as an error code.
const errorBit Status = 1 << 63

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess Status = 0

	StatusLoadError        = errorBit | 1
	StatusInvalidParameter = errorBit | 2
	StatusUnsupported      = errorBit | 3
	StatusBadBufferSize    = errorBit | 4
	// StatusBufferTooSmall indicates the caller's buffer cannot hold the data.
	// The required size is returned alongside the status.
	StatusBufferTooSmall = errorBit | 5
	StatusNotReady       = errorBit | 6
	StatusDeviceError    = errorBit | 7
	StatusWriteProtected = errorBit | 8
	// StatusOutOfResources indicates an allocation failure.
	StatusOutOfResources  = errorBit | 9
	StatusVolumeCorrupted = errorBit | 10
	StatusVolumeFull      = errorBit | 11
	StatusNoMedia         = errorBit | 12
	StatusMediaChanged    = errorBit | 13
	// StatusNotFound indicates the requested item could not be located.
	StatusNotFound       = errorBit | 14
	StatusAccessDenied   = errorBit | 15
	StatusNoResponse     = errorBit | 16
	StatusNoMapping      = errorBit | 17
	StatusTimeout        = errorBit | 18
	StatusNotStarted     = errorBit | 19
	StatusAlreadyStarted = errorBit | 20
	StatusAborted        = errorBit | 21
)

// statusText matches the text the firmware's %r format prints.
var statusText = map[Status]string{
	StatusSuccess:          "Success",
	StatusLoadError:        "Load Error",
	StatusInvalidParameter: "Invalid Parameter",
	StatusUnsupported:      "Unsupported",
	StatusBadBufferSize:    "Bad Buffer Size",
	StatusBufferTooSmall:   "Buffer Too Small",
	StatusNotReady:         "Not Ready",
	StatusDeviceError:      "Device Error",
	StatusWriteProtected:   "Write Protected",
	StatusOutOfResources:   "Out of Resources",
	StatusVolumeCorrupted:  "Volume Corrupt",
	StatusVolumeFull:       "Volume Full",
	StatusNoMedia:          "No Media",
	StatusMediaChanged:     "Media changed",
	StatusNotFound:         "Not Found",
	StatusAccessDenied:     "Access Denied",
	StatusNoResponse:       "No Response",
	StatusNoMapping:        "No mapping",
	StatusTimeout:          "Time out",
	StatusNotStarted:       "Not started",
	StatusAlreadyStarted:   "Already started",
	StatusAborted:          "Aborted",
}

// IsError reports whether the status carries the error bit.
func (s Status) IsError() bool {
	return s&errorBit != 0
}

// String returns the firmware's textual form of the status.
func (s Status) String() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	if s.IsError() {
		return fmt.Sprintf("Error 0x%x", uint64(s&^errorBit))
	}
	return fmt.Sprintf("Warning 0x%x", uint64(s))
}

// Error implements the error interface so a status can be wrapped as a cause.
func (s Status) Error() string {
	return s.String()
}
