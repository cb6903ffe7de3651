// Package loader provides ELF and flat-image loading for Alpha
// executables.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultStackTop is the initial stack pointer for Alpha user space.
// The stack sits directly below the traditional text base at
// 0x120000000 and grows down, matching the OSF/1 and Linux layout.
const DefaultStackTop = 0x120000000

// DefaultStackSize is the default stack size (8MB).
const DefaultStackSize = 8 * 1024 * 1024

// Segment represents a loadable segment from an executable image.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded executable ready for simulation.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint64
}

// MemoryWriter is the subset of the simulator memory the loader needs
// to place a program.
type MemoryWriter interface {
	Write8(addr uint64, value uint8)
}

// LoadInto writes every segment into mem, zero-filling the BSS tail
// where MemSize exceeds the file data.
func (p *Program) LoadInto(mem MemoryWriter) {
	for _, seg := range p.Segments {
		for i, b := range seg.Data {
			mem.Write8(seg.VirtAddr+uint64(i), b)
		}
		for i := uint64(len(seg.Data)); i < seg.MemSize; i++ {
			mem.Write8(seg.VirtAddr+i, 0)
		}
	}
}

// Load parses an Alpha ELF binary and returns a Program ready for
// loading into the simulator's memory. Both the assigned machine
// number (41) and the historical unofficial one (0x9026) that most
// toolchains emit are accepted.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}

	// Alpha is strictly little-endian.
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}

	if f.Machine != elf.EM_ALPHA && f.Machine != elf.EM_ALPHA_STD {
		return nil, fmt.Errorf("not an Alpha ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: f.Entry,
		InitialSP:  DefaultStackTop,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}
