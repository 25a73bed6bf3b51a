// Package efierrors converts firmware status codes into typed errors.
//
// Every error produced by the loader core carries one of the codes below and,
// when it originated in a firmware call, wraps the types.Status that call
// returned so callers can recover it with StatusOf.
package efierrors

import (
	"fmt"

	"github.com/jmgilman/go/errors"

	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// Error codes of the loader core.
const (
	// CodeNotFound indicates a requested volume, table, file or directory is absent.
	CodeNotFound = errors.CodeNotFound

	// CodeInvalidParameter indicates malformed or type-mismatched input, such as
	// opening a file as a directory.
	CodeInvalidParameter = errors.CodeInvalidInput

	// CodeOutOfResources indicates an allocation failure.
	CodeOutOfResources errors.ErrorCode = "OUT_OF_RESOURCES"

	// CodeBufferTooSmall indicates a buffer must be resized and the call repeated.
	CodeBufferTooSmall errors.ErrorCode = "BUFFER_TOO_SMALL"

	// CodeDeviceError indicates a hardware or firmware fault.
	CodeDeviceError errors.ErrorCode = "DEVICE_ERROR"

	// CodeUnsupported indicates the firmware does not provide the request.
	CodeUnsupported errors.ErrorCode = "UNSUPPORTED"

	// CodeFirmware covers every other firmware status.
	CodeFirmware errors.ErrorCode = "FIRMWARE_ERROR"
)

// CodeFor maps a firmware status onto an error code.
func CodeFor(status types.Status) errors.ErrorCode {
	switch status {
	case types.StatusNotFound:
		return CodeNotFound
	case types.StatusInvalidParameter:
		return CodeInvalidParameter
	case types.StatusOutOfResources:
		return CodeOutOfResources
	case types.StatusBufferTooSmall:
		return CodeBufferTooSmall
	case types.StatusDeviceError, types.StatusVolumeCorrupted, types.StatusNoMedia, types.StatusMediaChanged:
		return CodeDeviceError
	case types.StatusUnsupported:
		return CodeUnsupported
	default:
		return CodeFirmware
	}
}

// StatusFor maps an error code back onto the firmware status reported for it.
func StatusFor(code errors.ErrorCode) types.Status {
	switch code {
	case CodeNotFound:
		return types.StatusNotFound
	case CodeInvalidParameter:
		return types.StatusInvalidParameter
	case CodeOutOfResources:
		return types.StatusOutOfResources
	case CodeBufferTooSmall:
		return types.StatusBufferTooSmall
	case CodeDeviceError:
		return types.StatusDeviceError
	case CodeUnsupported:
		return types.StatusUnsupported
	default:
		return types.StatusLoadError
	}
}

// FromStatus wraps a failing firmware status. It returns nil for non-error statuses.
func FromStatus(status types.Status, operation string) error {
	if !status.IsError() {
		return nil
	}
	return errors.WithContext(errors.Wrap(status, CodeFor(status), operation), "status", status.String())
}

// New creates an error for a condition detected by the loader itself. The
// status a firmware implementation would report for it is attached as cause.
func New(code errors.ErrorCode, message string) error {
	return errors.Wrap(StatusFor(code), code, message)
}

// Newf is New with a formatted message.
func Newf(code errors.ErrorCode, format string, args ...interface{}) error {
	return New(code, fmt.Sprintf(format, args...))
}

// StatusOf returns the firmware status carried by err, StatusSuccess for nil,
// and StatusLoadError when err carries none.
func StatusOf(err error) types.Status {
	if err == nil {
		return types.StatusSuccess
	}
	var status types.Status
	if errors.As(err, &status) {
		return status
	}
	return types.StatusLoadError
}

// Code returns the error code carried by err.
func Code(err error) errors.ErrorCode {
	return errors.GetCode(err)
}

// Is reports whether err carries the given code.
func Is(err error, code errors.ErrorCode) bool {
	return err != nil && errors.GetCode(err) == code
}

// Wrap adds a message to err while keeping its code and status.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, errors.GetCode(err), message)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
