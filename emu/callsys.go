package emu

import (
	"io"
	"os"
	"sync"
)

// OSF/1 system-call numbers serviced by the handler.
const (
	sysExit   = 1
	sysRead   = 3
	sysWrite  = 4
	sysClose  = 6
	sysLseek  = 19
	sysGetpid = 20
	sysOpen   = 45
)

// OSF/1 errno values returned through v0 when a3 is set.
const (
	errNoEnt = 2
	errIO    = 5
	errBadF  = 9
	errFault = 14
	errInval = 22
	errNoSys = 78
)

// maxSyscallIO bounds a single read or write transfer. Longer requests
// complete partially, as they may on a real kernel.
const maxSyscallIO = 1 << 20

// OSFSyscallHandler services CALLSYS with a subset of the OSF/1 system
// calls, enough to run console-driven test programs: exit, read, write,
// open, close, lseek, getpid. The convention is v0 = call number,
// a0-a2 = arguments; on return a3 is zero and v0 the result, or a3 is
// one and v0 the errno.
type OSFSyscallHandler struct {
	mem *Memory
	fds *FDTable

	// Standard streams. They default to the host's.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	mu       sync.Mutex
	exited   bool
	exitCode uint64
}

// NewOSFSyscallHandler creates a handler reading and writing guest
// buffers through mem.
func NewOSFSyscallHandler(mem *Memory) *OSFSyscallHandler {
	return &OSFSyscallHandler{
		mem:    mem,
		fds:    NewFDTable(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// ExitCode returns the status passed to exit and whether exit was called.
func (h *OSFSyscallHandler) ExitCode() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, h.exited
}

// Syscall implements SyscallHandler.
func (h *OSFSyscallHandler) Syscall(cpu *CPU, out *Outcome) error {
	v0 := cpu.ReadReg(regV0)
	a0 := cpu.ReadReg(regA0)
	a1 := cpu.ReadReg(regA1)
	a2 := cpu.ReadReg(regA2)

	switch v0 {
	case sysExit:
		h.mu.Lock()
		h.exited = true
		h.exitCode = a0
		h.mu.Unlock()
		out.Halt = true

	case sysRead:
		h.read(out, a0, a1, a2)
	case sysWrite:
		h.write(out, a0, a1, a2)
	case sysOpen:
		h.open(out, a0, a1, a2)
	case sysClose:
		if err := h.fds.Close(a0); err != nil {
			h.fail(out, errBadF)
		} else {
			h.succeed(out, 0)
		}
	case sysLseek:
		h.lseek(out, a0, int64(a1), a2)
	case sysGetpid:
		// One process per CPU, numbered from 100.
		h.succeed(out, uint64(100+cpu.ID))

	default:
		h.fail(out, errNoSys)
	}
	return nil
}

func (h *OSFSyscallHandler) read(out *Outcome, fd, va, count uint64) {
	if count > maxSyscallIO {
		count = maxSyscallIO
	}
	buf := make([]byte, count)

	var n int
	var err error
	switch fd {
	case 0:
		n, err = h.Stdin.Read(buf)
		if err == io.EOF {
			err = nil
		}
	case 1, 2:
		h.fail(out, errBadF)
		return
	default:
		n, err = h.fds.Read(fd, buf)
		if err == io.EOF {
			err = nil
		}
	}
	if err != nil {
		h.fail(out, errBadF)
		return
	}

	h.mem.WriteBytes(va, buf[:n])
	h.succeed(out, uint64(n))
}

func (h *OSFSyscallHandler) write(out *Outcome, fd, va, count uint64) {
	if count > maxSyscallIO {
		count = maxSyscallIO
	}
	buf := h.mem.ReadBytes(va, int(count))

	var n int
	var err error
	switch fd {
	case 0:
		h.fail(out, errBadF)
		return
	case 1:
		n, err = h.Stdout.Write(buf)
	case 2:
		n, err = h.Stderr.Write(buf)
	default:
		n, err = h.fds.Write(fd, buf)
	}
	if err != nil {
		h.fail(out, errIO)
		return
	}
	h.succeed(out, uint64(n))
}

func (h *OSFSyscallHandler) open(out *Outcome, pathVA, flags, mode uint64) {
	path, ok := h.readCString(pathVA)
	if !ok {
		h.fail(out, errFault)
		return
	}

	fd, err := h.fds.Open(path, hostOpenFlags(flags), os.FileMode(mode&0777))
	if err != nil {
		if os.IsNotExist(err) {
			h.fail(out, errNoEnt)
		} else {
			h.fail(out, errIO)
		}
		return
	}
	h.succeed(out, fd)
}

func (h *OSFSyscallHandler) lseek(out *Outcome, fd uint64, offset int64, whence uint64) {
	if whence > 2 {
		h.fail(out, errInval)
		return
	}
	pos, err := h.fds.Seek(fd, offset, int(whence))
	if err != nil {
		h.fail(out, errBadF)
		return
	}
	h.succeed(out, uint64(pos))
}

func (h *OSFSyscallHandler) succeed(out *Outcome, v uint64) {
	out.writeReg(regV0, v)
	out.writeReg(regA3, 0)
}

func (h *OSFSyscallHandler) fail(out *Outcome, errno uint64) {
	out.writeReg(regV0, errno)
	out.writeReg(regA3, 1)
}

// readCString reads a NUL-terminated string from guest memory, bounded
// by the host path limit.
func (h *OSFSyscallHandler) readCString(addr uint64) (string, bool) {
	const maxPath = 4096
	var b []byte
	for i := 0; i < maxPath; i++ {
		c := h.mem.Read8(addr + uint64(i))
		if c == 0 {
			return string(b), true
		}
		b = append(b, c)
	}
	return "", false
}

// hostOpenFlags maps OSF/1 open flags onto the host's.
func hostOpenFlags(guest uint64) int {
	f := int(guest & 3) // access mode has the same low two bits
	if guest&0x0008 != 0 {
		f |= os.O_APPEND
	}
	if guest&0x0200 != 0 {
		f |= os.O_CREATE
	}
	if guest&0x0400 != 0 {
		f |= os.O_TRUNC
	}
	if guest&0x0800 != 0 {
		f |= os.O_EXCL
	}
	return f
}
