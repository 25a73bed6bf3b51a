package device

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/deploymenttheory/go-efiboot/internal/config"
)

// Volume is a file system the emulated firmware publishes on a volume handle.
type Volume struct {
	name string
	fs   billy.Filesystem
	host string
}

// OpenVolume creates the volume described by cfg. A host path is served
// through osfs; otherwise an in-memory volume is seeded with cfg.Files.
func OpenVolume(cfg config.VolumeConfig) (*Volume, error) {
	if cfg.Path != "" {
		stat, err := os.Stat(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open volume %q: %w", cfg.Name, err)
		}
		if !stat.IsDir() {
			return nil, fmt.Errorf("volume %q: %s is not a directory", cfg.Name, cfg.Path)
		}
		v := NewVolume(cfg.Name, osfs.New(cfg.Path))
		v.host = cfg.Path
		return v, nil
	}

	v := NewMemoryVolume(cfg.Name)
	if err := v.Seed(cfg.Files); err != nil {
		return nil, err
	}
	return v, nil
}

// NewMemoryVolume creates an empty in-memory volume.
func NewMemoryVolume(name string) *Volume {
	return NewVolume(name, memfs.New())
}

// NewVolume wraps an existing billy filesystem.
func NewVolume(name string, filesystem billy.Filesystem) *Volume {
	return &Volume{name: name, fs: filesystem}
}

// Seed writes files into the volume, creating parent directories. A path
// ending in "/" creates an empty directory.
func (v *Volume) Seed(files map[string]string) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if len(name) > 0 && name[len(name)-1] == '/' {
			if err := v.fs.MkdirAll(name, 0o755); err != nil {
				return fmt.Errorf("failed to create %s on volume %q: %w", name, v.name, err)
			}
			continue
		}
		if dir := path.Dir(name); dir != "." && dir != "/" {
			if err := v.fs.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s on volume %q: %w", dir, v.name, err)
			}
		}
		if err := util.WriteFile(v.fs, name, []byte(files[name]), 0o644); err != nil {
			return fmt.Errorf("failed to write %s on volume %q: %w", name, v.name, err)
		}
	}
	return nil
}

// Name returns the volume label.
func (v *Volume) Name() string { return v.name }

// HostPath returns the backing host directory, empty for in-memory volumes.
func (v *Volume) HostPath() string { return v.host }

// Filesystem returns the backing filesystem.
func (v *Volume) Filesystem() billy.Filesystem { return v.fs }

// Stat returns information about a slash-separated path on the volume.
// The root always exists, even on an empty in-memory volume.
func (v *Volume) Stat(name string) (os.FileInfo, error) {
	if isRoot(name) {
		if info, err := v.fs.Stat("/"); err == nil {
			return info, nil
		}
		return rootInfo{name: v.name}, nil
	}
	return v.fs.Stat(name)
}

// Resolve maps a slash-separated path to the names stored on the volume.
// Each component matches exactly or, failing that, ignoring case, the way
// FAT volumes compare names.
func (v *Volume) Resolve(name string) (string, error) {
	if isRoot(name) {
		return "/", nil
	}
	resolved := "/"
	for _, part := range strings.Split(strings.Trim(name, "/"), "/") {
		if part == "" {
			continue
		}
		candidate := path.Join(resolved, part)
		if _, err := v.fs.Stat(candidate); err == nil {
			resolved = candidate
			continue
		}
		entries, err := v.ReadDir(resolved)
		if err != nil {
			return "", &fs.PathError{Op: "resolve", Path: name, Err: fs.ErrNotExist}
		}
		match := ""
		for _, entry := range entries {
			if strings.EqualFold(entry.Name(), part) {
				match = entry.Name()
				break
			}
		}
		if match == "" {
			return "", &fs.PathError{Op: "resolve", Path: name, Err: fs.ErrNotExist}
		}
		resolved = path.Join(resolved, match)
	}
	return resolved, nil
}

// ReadDir lists a directory sorted by name.
func (v *Volume) ReadDir(name string) ([]os.FileInfo, error) {
	if isRoot(name) {
		name = "/"
	}
	entries, err := v.fs.ReadDir(name)
	if err != nil {
		if name == "/" && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// ReadFile returns the contents of a file on the volume.
func (v *Volume) ReadFile(name string) ([]byte, error) {
	return util.ReadFile(v.fs, name)
}

// OpenVolumes opens every configured volume in order.
func OpenVolumes(cfgs []config.VolumeConfig) ([]*Volume, error) {
	volumes := make([]*Volume, 0, len(cfgs))
	for i, cfg := range cfgs {
		if cfg.Name == "" {
			cfg.Name = fmt.Sprintf("FS%d", i)
		}
		v, err := OpenVolume(cfg)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, v)
	}
	return volumes, nil
}

func isRoot(name string) bool {
	return name == "" || name == "/" || name == "."
}

// rootInfo describes the root of a volume that has no stored root entry.
type rootInfo struct {
	name string
}

func (r rootInfo) Name() string       { return r.name }
func (r rootInfo) Size() int64        { return 0 }
func (r rootInfo) Mode() os.FileMode  { return os.ModeDir | 0o755 }
func (r rootInfo) ModTime() time.Time { return time.Time{} }
func (r rootInfo) IsDir() bool        { return true }
func (r rootInfo) Sys() any           { return nil }
