package state

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

// MemoryBackend is a Backend that keeps values in memory. It's safe for
// concurrent use.
type MemoryBackend struct {
	mx   sync.RWMutex
	data map[string][]byte
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: map[string][]byte{}}
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return slices.Clone(b.data[key]), nil
}

// Set implements Backend.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.data[key] = slices.Clone(value)
	return nil
}

// FileBackend is a Backend that stores each key as a JSON file in a directory.
type FileBackend struct {
	fs  vfs.FileSystem
	dir string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend returns a FileBackend that stores files in dir on fs. The
// directory is created on the first write.
func NewFileBackend(fs vfs.FileSystem, dir string) *FileBackend {
	return &FileBackend{fs: fs, dir: dir}
}

// Get implements Backend.
func (b *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := vfs.ReadFile(b.fs, b.path(key))
	if err != nil {
		if vfs.IsErrNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed reading state file: %w", err)
	}

	return data, nil
}

// Set implements Backend.
func (b *FileBackend) Set(_ context.Context, key string, value []byte) error {
	if err := b.fs.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("failed creating state directory: %w", err)
	}

	if err := vfs.WriteFile(b.fs, b.path(key), value, 0o644); err != nil {
		return fmt.Errorf("failed writing state file: %w", err)
	}

	return nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, key+".json")
}
