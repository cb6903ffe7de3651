package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/insts"
	"github.com/sarchlab/axpsim/loader"
)

const (
	ptLoad = 1
	ptNote = 4

	pfX = 0x1
	pfW = 0x2
	pfR = 0x4

	alphaMachine    = 0x9026 // historical Alpha machine number
	alphaMachineStd = 41     // assigned Alpha machine number
	x86Machine      = 62
)

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	// haltProgram is LDA R0, 42(R31) followed by CALL_PAL 0.
	haltProgram := func() []byte {
		return words(
			insts.EncodeMemory(insts.OpLDA, 0, 31, 42),
			insts.EncodePal(0),
		)
	}

	Describe("Load", func() {
		Context("with a valid Alpha ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				writeELF(elfPath, alphaMachine, 0x120000080, segSpec{
					ptype: ptLoad, flags: pfR | pfX,
					vaddr: 0x120000000, data: haltProgram(),
				})
			})

			It("should load without error", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog).NotTo(BeNil())
			})

			It("should extract the correct entry point", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint64(0x120000080)))
			})

			It("should extract the loadable segments", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(prog.Segments)).To(BeNumerically(">", 0))
			})

			It("should set the stack pointer below the text base", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.InitialSP).To(Equal(uint64(loader.DefaultStackTop)))
			})
		})

		Context("with segment data", func() {
			It("should correctly load segment contents", func() {
				elfPath := filepath.Join(tempDir, "code.elf")
				codeData := haltProgram()
				writeELF(elfPath, alphaMachine, 0x120000000, segSpec{
					ptype: ptLoad, flags: pfR | pfX,
					vaddr: 0x120000000, data: codeData,
				})

				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())

				var codeSeg *loader.Segment
				for i := range prog.Segments {
					if prog.Segments[i].VirtAddr == 0x120000000 {
						codeSeg = &prog.Segments[i]
						break
					}
				}
				Expect(codeSeg).NotTo(BeNil())
				Expect(codeSeg.Data).To(Equal(codeData))
			})
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load("/nonexistent/path/to/file.elf")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to open"))
			})

			It("should return error for non-ELF file", func() {
				notElfPath := filepath.Join(tempDir, "not-elf.bin")
				err := os.WriteFile(notElfPath, []byte("not an elf file"), 0644)
				Expect(err).NotTo(HaveOccurred())

				_, err = loader.Load(notElfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("ELF"))
			})

			It("should return error for empty file", func() {
				emptyPath := filepath.Join(tempDir, "empty.elf")
				err := os.WriteFile(emptyPath, []byte{}, 0644)
				Expect(err).NotTo(HaveOccurred())

				_, err = loader.Load(emptyPath)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with a non-Alpha ELF", func() {
			It("should return error for x86-64 ELF", func() {
				elfPath := filepath.Join(tempDir, "x86.elf")
				writeELF(elfPath, x86Machine, 0x400000)

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not an Alpha"))
			})

			It("should accept the assigned machine number", func() {
				elfPath := filepath.Join(tempDir, "std.elf")
				writeELF(elfPath, alphaMachineStd, 0x120000000, segSpec{
					ptype: ptLoad, flags: pfR | pfX,
					vaddr: 0x120000000, data: haltProgram(),
				})

				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint64(0x120000000)))
			})
		})

		Context("with a 32-bit ELF", func() {
			It("should return error", func() {
				elfPath := filepath.Join(tempDir, "elf32.elf")
				writeELF32(elfPath)

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not a 64-bit"))
			})
		})

		Context("with a big-endian ELF", func() {
			It("should return error", func() {
				elfPath := filepath.Join(tempDir, "be.elf")
				writeELFBigEndian(elfPath)

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not a little-endian"))
			})
		})
	})

	Describe("Program", func() {
		It("should place segments into memory", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			writeELF(elfPath, alphaMachine, 0x120000000, segSpec{
				ptype: ptLoad, flags: pfR | pfX,
				vaddr: 0x120000000, data: haltProgram(),
			})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			mem := emu.NewMemory()
			prog.LoadInto(mem)

			Expect(mem.Read32(0x120000000)).
				To(Equal(insts.EncodeMemory(insts.OpLDA, 0, 31, 42)))
			Expect(mem.Read32(0x120000004)).To(Equal(insts.EncodePal(0)))
		})

		It("should zero-fill the BSS tail", func() {
			elfPath := filepath.Join(tempDir, "bss.elf")
			writeELF(elfPath, alphaMachine, 0x120000000, segSpec{
				ptype: ptLoad, flags: pfR | pfW, vaddr: 0x140000000,
				data: []byte{0x01, 0x02, 0x03, 0x04}, memSize: 64,
			})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			mem := emu.NewMemory()
			for i := uint64(0); i < 64; i++ {
				mem.Write8(0x140000000+i, 0xFF)
			}
			prog.LoadInto(mem)

			Expect(mem.Read32(0x140000000)).To(Equal(uint32(0x04030201)))
			Expect(mem.Read8(0x140000004)).To(Equal(uint8(0)))
			Expect(mem.Read8(0x14000003F)).To(Equal(uint8(0)))
		})
	})

	Describe("Segment", func() {
		It("should have correct virtual address", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			writeELF(elfPath, alphaMachine, 0x120000000, segSpec{
				ptype: ptLoad, flags: pfR | pfX,
				vaddr: 0x120004000, data: []byte{0x00, 0x00, 0x00, 0x00},
			})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			found := false
			for _, seg := range prog.Segments {
				if seg.VirtAddr == 0x120004000 {
					found = true
					break
				}
			}
			Expect(found).To(BeTrue())
		})

		It("should correctly report permissions", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			writeELF(elfPath, alphaMachine, 0x120000000, segSpec{
				ptype: ptLoad, flags: pfR | pfX,
				vaddr: 0x120000000, data: haltProgram(),
			})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			hasExecutable := false
			for _, seg := range prog.Segments {
				if seg.Flags&loader.SegmentFlagExecute != 0 {
					hasExecutable = true
					break
				}
			}
			Expect(hasExecutable).To(BeTrue())
		})
	})

	Describe("Multi-segment ELFs", func() {
		It("should load multiple PT_LOAD segments", func() {
			elfPath := filepath.Join(tempDir, "multi-segment.elf")
			codeData := haltProgram()
			dataData := []byte{0x01, 0x02, 0x03, 0x04}
			writeELF(elfPath, alphaMachine, 0x120000000,
				segSpec{ptype: ptLoad, flags: pfR | pfX, vaddr: 0x120000000, data: codeData},
				segSpec{ptype: ptLoad, flags: pfR | pfW, vaddr: 0x140000000, data: dataData},
			)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))

			var codeSeg, dataSeg *loader.Segment
			for i := range prog.Segments {
				if prog.Segments[i].VirtAddr == 0x120000000 {
					codeSeg = &prog.Segments[i]
				}
				if prog.Segments[i].VirtAddr == 0x140000000 {
					dataSeg = &prog.Segments[i]
				}
			}

			Expect(codeSeg).NotTo(BeNil())
			Expect(codeSeg.Data).To(Equal(codeData))
			Expect(codeSeg.Flags & loader.SegmentFlagExecute).NotTo(BeZero())

			Expect(dataSeg).NotTo(BeNil())
			Expect(dataSeg.Data).To(Equal(dataData))
			Expect(dataSeg.Flags & loader.SegmentFlagWrite).NotTo(BeZero())
		})
	})

	Describe("BSS segments", func() {
		It("should handle segments where Memsz > Filesz", func() {
			elfPath := filepath.Join(tempDir, "bss.elf")
			initialData := []byte{0x01, 0x02, 0x03, 0x04}
			memSize := uint64(1024)
			writeELF(elfPath, alphaMachine, 0x120000000, segSpec{
				ptype: ptLoad, flags: pfR | pfW,
				vaddr: 0x140000000, data: initialData, memSize: memSize,
			})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			var bssSeg *loader.Segment
			for i := range prog.Segments {
				if prog.Segments[i].VirtAddr == 0x140000000 {
					bssSeg = &prog.Segments[i]
					break
				}
			}

			Expect(bssSeg).NotTo(BeNil())
			Expect(bssSeg.Data).To(Equal(initialData))
			Expect(bssSeg.MemSize).To(Equal(memSize))
		})
	})

	Describe("Zero Filesz segments", func() {
		It("should handle segments with zero file size", func() {
			elfPath := filepath.Join(tempDir, "zero-filesz.elf")
			memSize := uint64(8192)
			writeELF(elfPath, alphaMachine, 0x120000000, segSpec{
				ptype: ptLoad, flags: pfR | pfW,
				vaddr: 0x140002000, memSize: memSize,
			})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			var zeroSeg *loader.Segment
			for i := range prog.Segments {
				if prog.Segments[i].VirtAddr == 0x140002000 {
					zeroSeg = &prog.Segments[i]
					break
				}
			}

			Expect(zeroSeg).NotTo(BeNil())
			Expect(zeroSeg.Data).To(BeEmpty())
			Expect(zeroSeg.MemSize).To(Equal(memSize))
		})
	})

	Describe("ELFs with no loadable segments", func() {
		It("should return an empty segment list", func() {
			elfPath := filepath.Join(tempDir, "no-load.elf")
			writeELF(elfPath, alphaMachine, 0x120000000, segSpec{
				ptype: ptNote, flags: pfR,
			})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(BeEmpty())
			Expect(prog.EntryPoint).To(Equal(uint64(0x120000000)))
		})
	})
})

// words packs instruction words into a little-endian byte image.
func words(ws ...uint32) []byte {
	buf := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

// segSpec describes one program header for writeELF. A zero memSize
// means the segment occupies exactly its file data.
type segSpec struct {
	ptype   uint32
	flags   uint32
	vaddr   uint64
	data    []byte
	memSize uint64
}

// writeELF assembles a minimal ELF64 executable with one program
// header per segment and the segment data packed after the headers.
func writeELF(path string, machine uint16, entry uint64, segs ...segSpec) {
	const ehSize = 64
	const phSize = 56

	header := make([]byte, ehSize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 2 // ELFCLASS64
	header[5] = 1 // ELFDATA2LSB
	header[6] = 1 // EV_CURRENT

	binary.LittleEndian.PutUint16(header[16:18], 2) // ET_EXEC
	binary.LittleEndian.PutUint16(header[18:20], machine)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint64(header[24:32], entry)
	binary.LittleEndian.PutUint64(header[32:40], ehSize)
	binary.LittleEndian.PutUint16(header[52:54], ehSize)
	binary.LittleEndian.PutUint16(header[54:56], phSize)
	binary.LittleEndian.PutUint16(header[56:58], uint16(len(segs)))

	image := header
	offset := uint64(ehSize + phSize*len(segs))
	for _, seg := range segs {
		memSize := seg.memSize
		if memSize == 0 {
			memSize = uint64(len(seg.data))
		}

		ph := make([]byte, phSize)
		binary.LittleEndian.PutUint32(ph[0:4], seg.ptype)
		binary.LittleEndian.PutUint32(ph[4:8], seg.flags)
		binary.LittleEndian.PutUint64(ph[8:16], offset)
		binary.LittleEndian.PutUint64(ph[16:24], seg.vaddr)
		binary.LittleEndian.PutUint64(ph[24:32], seg.vaddr)
		binary.LittleEndian.PutUint64(ph[32:40], uint64(len(seg.data)))
		binary.LittleEndian.PutUint64(ph[40:48], memSize)
		binary.LittleEndian.PutUint64(ph[48:56], 0x2000)

		image = append(image, ph...)
		offset += uint64(len(seg.data))
	}
	for _, seg := range segs {
		image = append(image, seg.data...)
	}

	Expect(os.WriteFile(path, image, 0644)).To(Succeed())
}

// writeELF32 writes a minimal 32-bit ELF header to test rejection.
func writeELF32(path string) {
	header := make([]byte, 52)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 1 // ELFCLASS32
	header[5] = 1
	header[6] = 1
	binary.LittleEndian.PutUint16(header[16:18], 2)
	binary.LittleEndian.PutUint16(header[18:20], alphaMachineStd)
	binary.LittleEndian.PutUint32(header[20:24], 1)

	Expect(os.WriteFile(path, header, 0644)).To(Succeed())
}

// writeELFBigEndian writes a minimal big-endian ELF64 header to test
// rejection.
func writeELFBigEndian(path string) {
	header := make([]byte, 64)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 2 // ELFCLASS64
	header[5] = 2 // ELFDATA2MSB
	header[6] = 1
	binary.BigEndian.PutUint16(header[16:18], 2)
	binary.BigEndian.PutUint16(header[18:20], alphaMachineStd)
	binary.BigEndian.PutUint32(header[20:24], 1)
	binary.BigEndian.PutUint16(header[52:54], 64)
	binary.BigEndian.PutUint16(header[54:56], 56)

	Expect(os.WriteFile(path, header, 0644)).To(Succeed())
}
