// File: internal/interfaces/filesystem.go
package interfaces

import (
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// DirectoryHandle is an owned, open directory on a volume
type DirectoryHandle interface {
	// Path returns the path the directory was opened with
	Path() string

	// Volume returns the volume handle the directory lives on
	Volume() types.Handle

	// Protocol returns the underlying file protocol
	Protocol() FileProtocol

	// Close releases the directory handle. Closing twice is a no-op
	Close() error
}

// FileSystemNavigator provides methods for navigating firmware volumes
type FileSystemNavigator interface {
	// OpenRoot opens the root of the volume the loader was started from and
	// makes it the working directory
	OpenRoot() (DirectoryHandle, error)

	// OpenRootByIndex opens the root of the Nth file-system volume and makes it
	// the working directory
	OpenRootByIndex(index int) (DirectoryHandle, error)

	// OpenSubdirectory opens path relative to base, failing when it is not a directory
	OpenSubdirectory(base DirectoryHandle, path string) (DirectoryHandle, error)

	// SetWorkingDirectory changes the working directory, keeping the old one on failure
	SetWorkingDirectory(path string) error

	// WorkingDirectory returns the current working directory, or nil
	WorkingDirectory() DirectoryHandle

	// FindFile opens name relative to the working directory
	FindFile(name string) (FileHandle, error)

	// ListDirectory returns an iterator over the working directory's entries
	ListDirectory() DirectoryLister

	// Close releases the working directory
	Close() error
}

// FileHandle is an owned, open file
type FileHandle interface {
	// Info returns the file's EFI_FILE_INFO record
	Info() (types.FileInfo, error)

	// ReadAll reads the file from its current position to end of file
	ReadAll() ([]byte, error)

	// Close releases the file handle
	Close() error
}

// DirectoryLister iterates directory entries one read at a time
type DirectoryLister interface {
	// Next advances to the next entry, returning false at the end or on error
	Next() bool

	// Entry returns the current entry
	Entry() types.FileInfo

	// Err returns the error that stopped iteration, if any
	Err() error

	// Close releases the read buffer
	Close() error
}
