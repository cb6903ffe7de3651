package loader

import (
	"fmt"
	"os"
)

// LoadImage reads a raw little-endian instruction image and wraps it
// in a Program based at the given address. Flat images carry no entry
// or protection metadata, so execution starts at the base and the
// whole image is mapped read-write-execute.
func LoadImage(path string, base uint64) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return ImageProgram(data, base)
}

// ImageProgram wraps an in-memory image in a Program based at base.
func ImageProgram(data []byte, base uint64) (*Program, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("image size %d is not a whole number of instruction words", len(data))
	}

	return &Program{
		EntryPoint: base,
		InitialSP:  DefaultStackTop,
		Segments: []Segment{{
			VirtAddr: base,
			Data:     data,
			MemSize:  uint64(len(data)),
			Flags:    SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
		}},
	}, nil
}
