// Package shm opens fixed-size, process-visible shared memory regions
// backed by a file under a configured directory, mapped with
// golang.org/x/sys/unix.Mmap.
//
// A region is a named, fixed-size backing file opened or created, mapped
// MAP_SHARED so every process that opens the same path observes the same
// bytes, synced with Msync, and unmapped with Munmap at shutdown. Regions
// never resize: both consumers (the session-entry array and the
// two-counter block) have a fixed layout for their whole lifetime.
package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Region is a fixed-size memory-mapped file shared across processes.
type Region struct {
	file *os.File
	data []byte
	path string
}

// Open maps a size-byte region backed by the file at path, creating and
// zero-extending it if it does not already exist.
func Open(path string, size int) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: stat %s: %w", path, err)
	}
	if info.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("shm: truncate %s: %w", path, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	return &Region{file: f, data: data, path: path}, nil
}

// Bytes returns the mapped region for direct field-level access. Callers
// are responsible for keeping concurrent writers to distinct byte ranges,
// per the owning package's concurrency contract.
func (r *Region) Bytes() []byte {
	return r.data
}

// Sync flushes the mapped region to its backing file.
func (r *Region) Sync() error {
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("shm: msync %s: %w", r.path, err)
	}
	return nil
}

// Close unmaps and closes the region. It does not remove the backing file.
func (r *Region) Close() error {
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		r.file.Close()
		return fmt.Errorf("shm: msync on close %s: %w", r.path, err)
	}
	if err := unix.Munmap(r.data); err != nil {
		r.file.Close()
		return fmt.Errorf("shm: munmap %s: %w", r.path, err)
	}
	return r.file.Close()
}

// Unlink removes the backing file. The acceptor calls this for both
// regions as the last step of shutdown.
func Unlink(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shm: unlink %s: %w", path, err)
	}
	return nil
}
