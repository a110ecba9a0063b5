package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bft-labs/outqueue/internal/ports"
)

const fileSuffix = ".json"

// File implements ports.KVStore with one file per key in a directory.
// Writes go to a temp file and are renamed into place so a crash never
// leaves a half-written queue behind.
type File struct {
	dir   string
	quota int64
}

// NewFile creates a file store rooted at dir. A quota of 0 means unlimited;
// otherwise a write fails with ports.ErrQuotaExceeded when the files in dir
// would grow beyond quota bytes.
func NewFile(dir string, quota int64) *File {
	return &File{dir: dir, quota: quota}
}

// Get reads the value stored under key. A missing file is not an error.
func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(f.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// Set persists value under key atomically.
func (f *File) Set(_ context.Context, key, value string) error {
	// Ensure directory exists
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}

	path := f.Path(key)
	if f.quota > 0 {
		used, err := f.usedExcluding(path)
		if err != nil {
			return err
		}
		if used+int64(len(value)) > f.quota {
			return fmt.Errorf("write %s: %w", filepath.Base(path), ports.ErrQuotaExceeded)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o600); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmp, path)
}

// Probe checks that the directory can be created and written.
func (f *File) Probe(context.Context) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrStoreUnavailable, err)
	}
	probe, err := os.CreateTemp(f.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrStoreUnavailable, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// Path returns the full path of the file holding key.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+fileSuffix)
}

func (f *File) usedExcluding(path string) (int64, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, err
	}
	var used int64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileSuffix {
			continue
		}
		if filepath.Join(f.dir, e.Name()) == path {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		used += info.Size()
	}
	return used, nil
}
