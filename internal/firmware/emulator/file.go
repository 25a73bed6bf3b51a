package emulator

import (
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-efiboot/internal/device"
	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/parsers/file_info"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

type simpleFileSystem struct {
	m     *Machine
	index int
}

// Compile-time check to ensure simpleFileSystem implements SimpleFileSystem
var _ interfaces.SimpleFileSystem = (*simpleFileSystem)(nil)

func (s *simpleFileSystem) OpenVolume() (interfaces.FileProtocol, types.Status) {
	if status := s.m.faults.take(OpOpenVolume); status.IsError() {
		return nil, status
	}
	return s.m.openHandle(s.m.volumes[s.index], "/", true, nil), types.StatusSuccess
}

// fileHandle is an open file or directory on a billy-backed volume. Paths
// are slash-separated and absolute within the volume.
type fileHandle struct {
	m        *Machine
	volume   *device.Volume
	path     string
	dir      bool
	file     billy.File
	position uint64
	entries  []os.FileInfo
	closed   bool
}

// Compile-time check to ensure fileHandle implements FileProtocol
var _ interfaces.FileProtocol = (*fileHandle)(nil)

func (m *Machine) openHandle(volume *device.Volume, p string, dir bool, file billy.File) *fileHandle {
	m.openFiles++
	return &fileHandle{m: m, volume: volume, path: p, dir: dir, file: file}
}

func (h *fileHandle) Open(name []uint16, mode uint64, attributes uint64) (interfaces.FileProtocol, types.Status) {
	if h.closed {
		return nil, types.StatusInvalidParameter
	}
	h.m.stats.FileOpens++
	if attributes&types.FileDirectory != 0 {
		h.m.stats.DirectoryOpens++
	}
	if status := h.m.faults.take(OpOpen); status.IsError() {
		return nil, status
	}
	if mode&types.FileModeRead == 0 {
		return nil, types.StatusInvalidParameter
	}
	if mode&(types.FileModeWrite|types.FileModeCreate) != 0 {
		return nil, types.StatusWriteProtected
	}

	requested := h.resolve(file_info.DecodeName(name))
	log := h.m.log.WithFields(logrus.Fields{"volume": h.volume.Name(), "path": requested})

	target, err := h.volume.Resolve(requested)
	if err != nil {
		log.WithError(err).Trace("open failed")
		return nil, statusFromError(err)
	}
	info, err := h.volume.Stat(target)
	if err != nil {
		log.WithError(err).Trace("open failed")
		return nil, statusFromError(err)
	}
	if info.IsDir() {
		return h.m.openHandle(h.volume, target, true, nil), types.StatusSuccess
	}

	file, err := h.volume.Filesystem().Open(target)
	if err != nil {
		log.WithError(err).Trace("open failed")
		return nil, statusFromError(err)
	}
	return h.m.openHandle(h.volume, target, false, file), types.StatusSuccess
}

// resolve applies a backslash path to this handle's location. A leading
// separator starts at the volume root; "." and ".." are honoured and ".."
// at the root stays at the root.
func (h *fileHandle) resolve(name string) string {
	base := h.path
	if !h.dir {
		base = path.Dir(base)
	}
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "/") {
		base = "/"
	}

	parts := strings.Split(strings.Trim(base, "/"), "/")
	if parts[0] == "" {
		parts = parts[:0]
	}
	for _, part := range strings.Split(name, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, part)
		}
	}
	return "/" + strings.Join(parts, "/")
}

func (h *fileHandle) Close() types.Status {
	if h.closed {
		return types.StatusInvalidParameter
	}
	h.closed = true
	h.m.openFiles--
	h.m.stats.FileCloses++
	if status := h.m.faults.take(OpClose); status.IsError() {
		return status
	}
	if h.file != nil {
		if err := h.file.Close(); err != nil {
			return types.StatusDeviceError
		}
	}
	return types.StatusSuccess
}

func (h *fileHandle) Read(buffer []byte) (int, types.Status) {
	if h.closed {
		return 0, types.StatusInvalidParameter
	}
	if status := h.m.faults.take(OpRead); status.IsError() {
		return 0, status
	}
	if h.dir {
		return h.readDirectory(buffer)
	}

	n, err := h.file.ReadAt(buffer, int64(h.position))
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, types.StatusDeviceError
	}
	h.position += uint64(n)
	return n, types.StatusSuccess
}

// readDirectory returns one EFI_FILE_INFO record per call. An entry that does
// not fit reports its size with BufferTooSmall and is not consumed.
func (h *fileHandle) readDirectory(buffer []byte) (int, types.Status) {
	h.m.stats.DirectoryReads++
	if h.entries == nil {
		if status := h.loadEntries(); status.IsError() {
			return 0, status
		}
	}
	if h.position >= uint64(len(h.entries)) {
		return 0, types.StatusSuccess
	}

	entry := h.entries[h.position]
	n, ok := file_info.EncodeFileInfo(buffer, fileInfoFromOS(entry, entry.Name()), binary.LittleEndian)
	if !ok {
		return n, types.StatusBufferTooSmall
	}
	h.position++
	return n, types.StatusSuccess
}

func (h *fileHandle) loadEntries() types.Status {
	entries, err := h.volume.ReadDir(h.path)
	if err != nil {
		return statusFromError(err)
	}
	if entries == nil {
		entries = []os.FileInfo{}
	}
	h.entries = entries
	return types.StatusSuccess
}

func (h *fileHandle) SetPosition(position uint64) types.Status {
	if h.closed {
		return types.StatusInvalidParameter
	}
	if status := h.m.faults.take(OpSetPosition); status.IsError() {
		return status
	}
	if h.dir {
		if position != 0 {
			return types.StatusUnsupported
		}
		h.position = 0
		h.entries = nil
		return types.StatusSuccess
	}
	if position == types.FilePositionEnd {
		info, err := h.volume.Stat(h.path)
		if err != nil {
			return statusFromError(err)
		}
		position = uint64(info.Size())
	}
	h.position = position
	return types.StatusSuccess
}

func (h *fileHandle) GetInfo(infoType types.GUID, buffer []byte) (int, types.Status) {
	if h.closed {
		return 0, types.StatusInvalidParameter
	}
	if status := h.m.faults.take(OpGetInfo); status.IsError() {
		return 0, status
	}
	if infoType != types.FileInfoGUID {
		return 0, types.StatusUnsupported
	}

	info, err := h.volume.Stat(h.path)
	if err != nil {
		return 0, statusFromError(err)
	}
	name := path.Base(h.path)
	if h.path == "/" {
		name = ""
	}
	n, ok := file_info.EncodeFileInfo(buffer, fileInfoFromOS(info, name), binary.LittleEndian)
	if !ok {
		return n, types.StatusBufferTooSmall
	}
	return n, types.StatusSuccess
}

func fileInfoFromOS(info os.FileInfo, name string) types.FileInfo {
	modified := types.TimeFromGo(info.ModTime())
	fi := types.FileInfo{
		CreateTime:       modified,
		LastAccessTime:   modified,
		ModificationTime: modified,
		FileName:         name,
	}
	if info.IsDir() {
		fi.Attribute = types.FileDirectory
		return fi
	}
	fi.FileSize = uint64(info.Size())
	fi.PhysicalSize = (fi.FileSize + types.PageSize - 1) &^ (types.PageSize - 1)
	fi.Attribute = types.FileArchive
	if info.Mode().Perm()&0o200 == 0 {
		fi.Attribute |= types.FileReadOnly
	}
	return fi
}

func statusFromError(err error) types.Status {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return types.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return types.StatusAccessDenied
	default:
		return types.StatusDeviceError
	}
}
