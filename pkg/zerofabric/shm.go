package zerofabric

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// shmRegion is a named, file-backed shared-memory mapping. Every
// dynamic artifact (DynamicConfig, payload pools, Connections, event
// channels) is one of these: a regular file under Config.RootPath,
// mmap'd MAP_SHARED so every process that opens the same path sees
// the same bytes (§6 "Artifacts on the filesystem / shared-memory
// namespace").
type shmRegion struct {
	path string
	data []byte
	file *os.File
}

// createShmRegion creates a new shared-memory-backed file of the
// given size. It fails with os.ErrExist if the artifact is already
// present, surfacing the same race-detection semantics the spec asks
// for from "filesystem O_EXCL-like semantics" (§5).
func createShmRegion(path string, size int) (*shmRegion, error) {
	if err := os.MkdirAll(parentDir(path), 0o755); err != nil {
		return nil, fmt.Errorf("zerofabric: create parent dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("zerofabric: truncate shm region: %w", err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("zerofabric: mmap shm region: %w", err)
	}
	return &shmRegion{path: path, data: data, file: f}, nil
}

// openShmRegion opens an existing shared-memory-backed file of the
// expected size.
func openShmRegion(path string, size int) (*shmRegion, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if int(info.Size()) < size {
		f.Close()
		return nil, fmt.Errorf("zerofabric: shm region %q is smaller than expected (%d < %d)", path, info.Size(), size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zerofabric: mmap shm region: %w", err)
	}
	return &shmRegion{path: path, data: data, file: f}, nil
}

// Close unmaps and closes the region without unlinking the artifact.
func (r *shmRegion) Close() error {
	if r == nil {
		return nil
	}
	var err error
	if r.data != nil {
		err = unix.Munmap(r.data)
		r.data = nil
	}
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
		r.file = nil
	}
	return err
}

// Unlink removes the backing artifact from the filesystem. Only the
// handle that acquired ownership (§4.3 "acquire_ownership") should
// call this.
func (r *shmRegion) Unlink() error {
	return os.Remove(r.path)
}

func parentDir(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	if i < 0 {
		return "."
	}
	return path[:i]
}

// removeIfExists removes path, treating "already gone" as success.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
