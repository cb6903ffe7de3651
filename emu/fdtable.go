package emu

import (
	"os"
	"sync"
)

// FileDescriptor is one open entry in a guest descriptor table.
type FileDescriptor struct {
	HostFile *os.File // nil for the standard streams
	Path     string
	Flags    int
	IsOpen   bool
}

// FDTable maps guest file descriptors to host files for the system-call
// handler. Descriptors 0-2 exist from the start and stand for the
// handler's standard streams; host-backed descriptors start at 3.
type FDTable struct {
	mu     sync.Mutex
	fds    map[uint64]*FileDescriptor
	nextFD uint64
}

// NewFDTable creates a table with the standard streams open.
func NewFDTable() *FDTable {
	t := &FDTable{
		fds:    make(map[uint64]*FileDescriptor),
		nextFD: 3,
	}
	t.fds[0] = &FileDescriptor{Path: "stdin", IsOpen: true}
	t.fds[1] = &FileDescriptor{Path: "stdout", IsOpen: true}
	t.fds[2] = &FileDescriptor{Path: "stderr", IsOpen: true}
	return t
}

// Open opens a host file and returns the guest descriptor for it.
func (t *FDTable) Open(path string, flags int, mode os.FileMode) (uint64, error) {
	hostFile, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.nextFD
	t.nextFD++
	t.fds[fd] = &FileDescriptor{
		HostFile: hostFile,
		Path:     path,
		Flags:    flags,
		IsOpen:   true,
	}
	return fd, nil
}

// Close closes a guest descriptor. The standard streams are marked
// closed without touching the handler's streams.
func (t *FDTable) Close(fd uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.fds[fd]
	if !ok || !entry.IsOpen {
		return os.ErrInvalid
	}
	if fd <= 2 {
		entry.IsOpen = false
		return nil
	}

	if entry.HostFile != nil {
		if err := entry.HostFile.Close(); err != nil {
			return err
		}
	}
	entry.HostFile = nil
	entry.IsOpen = false
	return nil
}

// IsOpen reports whether fd names an open descriptor.
func (t *FDTable) IsOpen(fd uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.fds[fd]
	return ok && entry.IsOpen
}

// hostFile returns the open host file behind fd, or nil for the
// standard streams, which the handler serves itself.
func (t *FDTable) hostFile(fd uint64) (*os.File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.fds[fd]
	if !ok || !entry.IsOpen {
		return nil, os.ErrInvalid
	}
	return entry.HostFile, nil
}

// Read fills buf from a host-backed descriptor.
func (t *FDTable) Read(fd uint64, buf []byte) (int, error) {
	f, err := t.hostFile(fd)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, os.ErrInvalid
	}
	return f.Read(buf)
}

// Write writes buf to a host-backed descriptor.
func (t *FDTable) Write(fd uint64, buf []byte) (int, error) {
	f, err := t.hostFile(fd)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, os.ErrInvalid
	}
	return f.Write(buf)
}

// Seek repositions a host-backed descriptor.
func (t *FDTable) Seek(fd uint64, offset int64, whence int) (int64, error) {
	f, err := t.hostFile(fd)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, os.ErrInvalid
	}
	return f.Seek(offset, whence)
}
