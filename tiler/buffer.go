package tiler

import (
	"strconv"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Buffer is one or more blocks packed back to back into a single virtual mapping. The mapping is owned
// by whoever registered the buffer; block addresses are always derived from it.
type Buffer struct {
	region  []byte
	blocks  []BlockSpec
	offsets []int
	size    int
}

// Layout returns the offset of each block inside a packed buffer and the total packed size
func Layout(blocks []BlockSpec) (offsets []int, size int) {
	offsets = make([]int, len(blocks))
	for i := range blocks {
		offsets[i] = size
		size += BlockSize(blocks[i])
	}
	return offsets, size
}

// NewBuffer lays blocks out over region, writing each block's VirtualPtr back into blocks. The region
// must be at least as large as the packed size of blocks.
func NewBuffer(region []byte, blocks []BlockSpec) (*Buffer, error) {
	if len(blocks) == 0 {
		return nil, errors.New("attempted to create a buffer with no blocks")
	}

	offsets, size := Layout(blocks)
	if len(region) < size {
		return nil, errors.Newf("mapped region is %d bytes but the packed blocks need %d", len(region), size)
	}

	base := RegionBase(region)
	for i := range blocks {
		blocks[i].VirtualPtr = base + uintptr(offsets[i])
	}

	buffer := &Buffer{
		region:  region,
		blocks:  make([]BlockSpec, len(blocks)),
		offsets: offsets,
		size:    size,
	}
	copy(buffer.blocks, blocks)

	return buffer, nil
}

// RegionBase returns the address of the first byte of a mapped region, or 0 for an empty region
func RegionBase(region []byte) uintptr {
	if len(region) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&region[0]))
}

// Base returns the virtual address of the first block
func (b *Buffer) Base() uintptr {
	return RegionBase(b.region)
}

// Size returns the packed size of all blocks
func (b *Buffer) Size() int {
	return b.size
}

// Bytes returns the packed blocks as one slice
func (b *Buffer) Bytes() []byte {
	return b.region[:b.size]
}

// Region returns the mapping exactly as the driver returned it
func (b *Buffer) Region() []byte {
	return b.region
}

func (b *Buffer) BlockCount() int {
	return len(b.blocks)
}

func (b *Buffer) Block(index int) BlockSpec {
	return b.blocks[index]
}

// Blocks returns a copy of the block descriptors
func (b *Buffer) Blocks() []BlockSpec {
	blocks := make([]BlockSpec, len(b.blocks))
	copy(blocks, b.blocks)
	return blocks
}

func (b *Buffer) Offset(index int) int {
	return b.offsets[index]
}

// BlockBytes returns the slice of the mapping that belongs to one block
func (b *Buffer) BlockBytes(index int) []byte {
	start := b.offsets[index]
	return b.region[start : start+BlockSize(b.blocks[index])]
}

// Contains reports whether addr lies inside the packed blocks
func (b *Buffer) Contains(addr uintptr) bool {
	base := b.Base()
	return base != 0 && addr >= base && addr < base+uintptr(b.size)
}

func (b *Buffer) String() string {
	var sb strings.Builder
	sb.WriteString("buf={n=")
	sb.WriteString(strconv.Itoa(len(b.blocks)))
	sb.WriteString(",")
	for i, block := range b.blocks {
		sb.WriteString(block.String())
		if i+1 == len(b.blocks) {
			sb.WriteString("}")
		}
	}
	return sb.String()
}
