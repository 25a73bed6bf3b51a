package services

import (
	"encoding/binary"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-efiboot/internal/efierrors"
	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/parsers/file_info"
	"github.com/deploymenttheory/go-efiboot/internal/types"
	"github.com/deploymenttheory/go-efiboot/pkg/app"
)

const (
	// fileInfoBufferSize is the initial GetInfo buffer for a single file.
	fileInfoBufferSize = 512

	// directoryReadBufferSize bounds a single directory entry read.
	directoryReadBufferSize = 1024

	pathSeparator = "\\"
)

// Navigator walks the volumes published by the firmware. It owns its working
// directory: handles it replaces are closed before the new one is adopted.
// Independent navigators never share handles.
type Navigator struct {
	ctx *app.Context
	cwd *Directory
	log logrus.FieldLogger
}

// Compile-time check to ensure Navigator implements FileSystemNavigator
var _ interfaces.FileSystemNavigator = (*Navigator)(nil)

// NewNavigator creates a navigator with no working directory.
func NewNavigator(ctx *app.Context) *Navigator {
	return &Navigator{
		ctx: ctx,
		log: ctx.Logger.WithField("component", "filesystem"),
	}
}

// OpenRoot opens the root of the volume the loader image was started from and
// adopts it as the working directory. The returned handle stays owned by the
// navigator.
func (n *Navigator) OpenRoot() (interfaces.DirectoryHandle, error) {
	bs := n.ctx.BootServices()

	protocol, status := bs.HandleProtocol(n.ctx.ImageHandle, types.LoadedImageProtocolGUID)
	if status.IsError() {
		return nil, n.ctx.Record(status, "locate loaded image")
	}
	image, ok := protocol.(*types.LoadedImage)
	if !ok || image == nil {
		return nil, n.ctx.RecordError(efierrors.New(efierrors.CodeUnsupported, "loaded image protocol has unexpected type"))
	}

	protocol, status = bs.HandleProtocol(image.DeviceHandle, types.SimpleFileSystemProtocolGUID)
	if status.IsError() {
		return nil, n.ctx.Record(status, "locate boot volume file system")
	}

	dir, err := n.openVolume(image.DeviceHandle, protocol)
	if err != nil {
		return nil, err
	}
	n.adopt(dir)
	return dir, nil
}

// OpenRootByIndex opens the root of the index-th volume carrying a file
// system and adopts it as the working directory.
func (n *Navigator) OpenRootByIndex(index int) (interfaces.DirectoryHandle, error) {
	bs := n.ctx.BootServices()

	handles, status := bs.LocateHandleBuffer(types.SimpleFileSystemProtocolGUID)
	if status.IsError() {
		return nil, n.ctx.Record(status, "locate file system volumes")
	}
	if index < 0 || index >= len(handles) {
		n.ctx.Record(types.StatusNotFound, "select file system volume")
		return nil, efierrors.Newf(efierrors.CodeNotFound, "volume index %d out of range, %d volumes present", index, len(handles))
	}

	volume := handles[index]
	protocol, status := bs.OpenProtocol(volume, types.SimpleFileSystemProtocolGUID, n.ctx.ImageHandle, types.OpenProtocolByHandleProtocol)
	if status.IsError() {
		return nil, n.ctx.Record(status, "open file system protocol")
	}

	dir, err := n.openVolume(volume, protocol)
	if err != nil {
		return nil, err
	}
	n.adopt(dir)
	return dir, nil
}

func (n *Navigator) openVolume(volume types.Handle, protocol any) (*Directory, error) {
	fs, ok := protocol.(interfaces.SimpleFileSystem)
	if !ok || fs == nil {
		return nil, n.ctx.RecordError(efierrors.New(efierrors.CodeUnsupported, "simple file system protocol has unexpected type"))
	}
	root, status := fs.OpenVolume()
	if status.IsError() {
		return nil, n.ctx.Record(status, "open volume")
	}
	n.ctx.Record(status, "open volume")
	n.log.WithField("volume", volume).Debug("opened volume root")
	return &Directory{ctx: n.ctx, path: pathSeparator, volume: volume, file: root}, nil
}

// OpenSubdirectory opens path relative to base. The target is first opened
// without attributes and inspected; a target that is not a directory fails
// with InvalidParameter and is never opened in directory mode. The caller
// owns the returned handle.
func (n *Navigator) OpenSubdirectory(base interfaces.DirectoryHandle, path string) (interfaces.DirectoryHandle, error) {
	dir, err := n.openSubdirectory(base, path)
	if err != nil {
		return nil, err
	}
	return dir, nil
}

func (n *Navigator) openSubdirectory(base interfaces.DirectoryHandle, path string) (*Directory, error) {
	if base == nil || base.Protocol() == nil {
		n.ctx.Record(types.StatusInvalidParameter, "open subdirectory")
		return nil, efierrors.New(efierrors.CodeInvalidParameter, "no base directory")
	}
	if path == "" {
		n.ctx.Record(types.StatusInvalidParameter, "open subdirectory")
		return nil, efierrors.New(efierrors.CodeInvalidParameter, "empty directory path")
	}

	name := n.encodePath(path)
	log := n.log.WithField("path", path)

	infoHandle, status := base.Protocol().Open(name, types.FileModeRead, 0)
	if status.IsError() {
		return nil, efierrors.Wrapf(n.ctx.Record(status, "open "+path), "inspect %s", path)
	}
	info, err := readFileInfo(n.ctx, infoHandle)
	if closeStatus := infoHandle.Close(); closeStatus.IsError() {
		log.WithField("status", closeStatus.String()).Warn("failed to close info handle")
	}
	if err != nil {
		return nil, efierrors.Wrapf(err, "inspect %s", path)
	}
	if !info.IsDirectory() {
		n.ctx.Record(types.StatusInvalidParameter, "open subdirectory")
		return nil, efierrors.Newf(efierrors.CodeInvalidParameter, "%s is not a directory", path)
	}

	file, status := base.Protocol().Open(name, types.FileModeRead, types.FileDirectory)
	if status.IsError() {
		return nil, efierrors.Wrapf(n.ctx.Record(status, "open directory "+path), "open %s", path)
	}
	n.ctx.Record(status, "open directory")
	log.Debug("opened directory")

	return &Directory{
		ctx:    n.ctx,
		path:   joinPath(base.Path(), file_info.DecodeName(name)),
		volume: base.Volume(),
		file:   file,
	}, nil
}

// SetWorkingDirectory opens path relative to the working directory, opening
// the boot volume root first when there is none. On failure the previous
// working directory stays active.
func (n *Navigator) SetWorkingDirectory(path string) error {
	if err := n.ensureWorkingDirectory(); err != nil {
		return err
	}
	dir, err := n.openSubdirectory(n.cwd, path)
	if err != nil {
		n.log.WithFields(logrus.Fields{"path": path, "kept": n.cwd.Path()}).Debug("working directory unchanged")
		return err
	}
	n.adopt(dir)
	return nil
}

// WorkingDirectory returns the working directory, or nil before any root was opened.
func (n *Navigator) WorkingDirectory() interfaces.DirectoryHandle {
	if n.cwd == nil {
		return nil
	}
	return n.cwd
}

// FindFile opens name read-only relative to the working directory. The caller
// owns the returned file.
func (n *Navigator) FindFile(name string) (interfaces.FileHandle, error) {
	file, err := n.OpenFile(name)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// OpenFile is FindFile returning the concrete file type.
func (n *Navigator) OpenFile(name string) (*File, error) {
	if name == "" {
		n.ctx.Record(types.StatusInvalidParameter, "find file")
		return nil, efierrors.New(efierrors.CodeInvalidParameter, "empty file name")
	}
	if err := n.ensureWorkingDirectory(); err != nil {
		return nil, err
	}

	units := n.encodePath(name)
	handle, status := n.cwd.file.Open(units, types.FileModeRead, 0)
	if status.IsError() {
		return nil, efierrors.Wrapf(n.ctx.Record(status, "open "+name), "find %s", name)
	}
	n.ctx.Record(status, "open file")
	return &File{ctx: n.ctx, path: joinPath(n.cwd.path, file_info.DecodeName(units)), file: handle}, nil
}

// ListDirectory returns an iterator over the working directory. Each call
// rewinds the directory, so repeated listings yield the same sequence.
func (n *Navigator) ListDirectory() interfaces.DirectoryLister {
	return n.List()
}

// List is ListDirectory returning the concrete iterator type. Changing the
// working directory closes the listed handle; a listing still in progress
// then stops and Err reports it.
func (n *Navigator) List() *DirectoryIterator {
	if err := n.ensureWorkingDirectory(); err != nil {
		return &DirectoryIterator{err: err, done: true}
	}
	return newDirectoryIterator(n.ctx, n.cwd)
}

// LastStatus returns the status of the most recent firmware call.
func (n *Navigator) LastStatus() types.Status {
	return n.ctx.LastStatus()
}

// Close releases the working directory.
func (n *Navigator) Close() error {
	if n.cwd == nil {
		return nil
	}
	err := n.cwd.Close()
	n.cwd = nil
	return err
}

func (n *Navigator) ensureWorkingDirectory() error {
	if n.cwd != nil {
		return nil
	}
	_, err := n.OpenRoot()
	return err
}

// adopt closes the current working directory and takes ownership of dir.
func (n *Navigator) adopt(dir *Directory) {
	if n.cwd != nil && n.cwd != dir {
		if err := n.cwd.Close(); err != nil {
			n.log.WithError(err).WithField("path", n.cwd.path).Warn("failed to close previous working directory")
		}
	}
	n.cwd = dir
	n.log.WithField("path", dir.path).Debug("working directory changed")
}

func (n *Navigator) encodePath(path string) []uint16 {
	units, truncated := file_info.EncodePath(path)
	if truncated {
		n.log.WithFields(logrus.Fields{"path": path, "limit": types.MaxPathUnits}).Warn("path truncated")
	}
	return units
}

func joinPath(base, path string) string {
	switch {
	case strings.HasPrefix(path, pathSeparator):
		return path
	case strings.HasSuffix(base, pathSeparator):
		return base + path
	default:
		return base + pathSeparator + path
	}
}

// Directory is an open directory on a volume.
type Directory struct {
	ctx    *app.Context
	path   string
	volume types.Handle
	file   interfaces.FileProtocol
	closed bool
}

// Compile-time check to ensure Directory implements DirectoryHandle
var _ interfaces.DirectoryHandle = (*Directory)(nil)

// Path returns the backslash path of the directory.
func (d *Directory) Path() string { return d.path }

// Volume returns the handle of the volume holding the directory.
func (d *Directory) Volume() types.Handle { return d.volume }

// Protocol returns the open file protocol, nil once closed.
func (d *Directory) Protocol() interfaces.FileProtocol {
	if d.closed {
		return nil
	}
	return d.file
}

// Close releases the handle exactly once.
func (d *Directory) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.ctx.Record(d.file.Close(), "close directory")
}

// maxReadAhead bounds the buffer ReadAll reserves before reading.
const maxReadAhead = 1 << 20

// File is an open file.
type File struct {
	ctx    *app.Context
	path   string
	file   interfaces.FileProtocol
	closed bool
}

// Compile-time check to ensure File implements FileHandle
var _ interfaces.FileHandle = (*File)(nil)

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// Info returns the file's information record.
func (f *File) Info() (types.FileInfo, error) {
	if f.closed {
		return types.FileInfo{}, efierrors.New(efierrors.CodeInvalidParameter, "file is closed")
	}
	return readFileInfo(f.ctx, f.file)
}

// Name returns the file name as reported by the volume.
func (f *File) Name() (string, error) {
	info, err := f.Info()
	if err != nil {
		return "", err
	}
	return info.FileName, nil
}

// ReadAll reads the rest of the file.
func (f *File) ReadAll() ([]byte, error) {
	info, err := f.Info()
	if err != nil {
		return nil, err
	}
	if info.IsDirectory() {
		f.ctx.Record(types.StatusInvalidParameter, "read file")
		return nil, efierrors.Newf(efierrors.CodeInvalidParameter, "%s is a directory", f.path)
	}

	// The reported size only sizes the first allocation.
	data := make([]byte, 0, min(info.FileSize, maxReadAhead))
	chunk := make([]byte, 4096)
	for {
		n, status := f.file.Read(chunk)
		if status.IsError() {
			return nil, efierrors.Wrapf(f.ctx.Record(status, "read "+f.path), "read %s", f.path)
		}
		if n == 0 {
			break
		}
		data = append(data, chunk[:n]...)
	}
	return data, nil
}

// Close releases the handle exactly once.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.ctx.Record(f.file.Close(), "close file")
}

// readFileInfo fetches the EFI_FILE_INFO record, growing the buffer once
// when the name does not fit the default size.
func readFileInfo(ctx *app.Context, file interfaces.FileProtocol) (types.FileInfo, error) {
	buffer := make([]byte, fileInfoBufferSize)
	n, status := file.GetInfo(types.FileInfoGUID, buffer)
	if status == types.StatusBufferTooSmall && n > len(buffer) {
		buffer = make([]byte, n)
		n, status = file.GetInfo(types.FileInfoGUID, buffer)
	}
	if status.IsError() {
		return types.FileInfo{}, ctx.Record(status, "get file info")
	}
	ctx.Record(status, "get file info")

	info, err := file_info.ParseFileInfo(buffer[:n], binary.LittleEndian)
	if err != nil {
		ctx.Record(types.StatusDeviceError, "get file info")
		return types.FileInfo{}, efierrors.Newf(efierrors.CodeDeviceError, "malformed file info: %v", err)
	}
	return info, nil
}

// DirectoryIterator yields one entry per Read call on a directory. It owns a
// pool buffer released when iteration ends or on Close.
type DirectoryIterator struct {
	ctx    *app.Context
	dir    *Directory
	buffer []byte
	entry  types.FileInfo
	index  int
	err    error
	done   bool
}

// Compile-time check to ensure DirectoryIterator implements DirectoryLister
var _ interfaces.DirectoryLister = (*DirectoryIterator)(nil)

func newDirectoryIterator(ctx *app.Context, dir *Directory) *DirectoryIterator {
	it := &DirectoryIterator{ctx: ctx, dir: dir, index: -1}

	if status := dir.file.SetPosition(0); status.IsError() {
		it.fail(efierrors.Wrapf(ctx.Record(status, "rewind directory"), "list %s", dir.path))
		return it
	}

	buffer, status := ctx.BootServices().AllocatePool(types.EfiLoaderData, directoryReadBufferSize)
	if status.IsError() {
		it.fail(ctx.Record(status, "allocate directory buffer"))
		return it
	}
	it.buffer = buffer
	return it
}

// Next reads the next entry. It returns false at the end of the directory or
// on error; Err distinguishes the two.
func (it *DirectoryIterator) Next() bool {
	if it.done {
		return false
	}
	if it.dir.closed {
		it.fail(efierrors.Newf(efierrors.CodeInvalidParameter, "listing of %s ended, the directory was closed", it.dir.path))
		return false
	}

	n, status := it.dir.file.Read(it.buffer)
	switch {
	case status == types.StatusBufferTooSmall:
		it.ctx.Record(types.StatusDeviceError, "read directory")
		it.fail(efierrors.Newf(efierrors.CodeDeviceError, "directory entry of %d bytes exceeds the %d byte read buffer", n, len(it.buffer)))
		return false
	case status.IsError():
		it.fail(efierrors.Wrapf(it.ctx.Record(status, "read directory"), "list %s", it.dir.path))
		return false
	case n == 0:
		it.ctx.Record(status, "read directory")
		it.finish()
		return false
	}

	entry, err := file_info.ParseFileInfo(it.buffer[:n], binary.LittleEndian)
	if err != nil {
		it.ctx.Record(types.StatusDeviceError, "read directory")
		it.fail(efierrors.Newf(efierrors.CodeDeviceError, "malformed directory entry %d: %v", it.index+1, err))
		return false
	}
	it.entry = entry
	it.index++
	return true
}

// Entry returns the current entry.
func (it *DirectoryIterator) Entry() types.FileInfo { return it.entry }

// Index returns the zero-based position of the current entry.
func (it *DirectoryIterator) Index() int { return it.index }

// Err returns the error that ended iteration, nil at a clean end.
func (it *DirectoryIterator) Err() error { return it.err }

// Close releases the read buffer. It is safe to call more than once.
func (it *DirectoryIterator) Close() error {
	it.done = true
	if it.buffer == nil {
		return nil
	}
	status := it.ctx.BootServices().FreePool(it.buffer)
	it.buffer = nil
	if status.IsError() {
		return it.ctx.Record(status, "free directory buffer")
	}
	return nil
}

func (it *DirectoryIterator) fail(err error) {
	it.err = err
	it.finish()
}

func (it *DirectoryIterator) finish() {
	if err := it.Close(); err != nil && it.err == nil {
		it.err = err
	}
}
