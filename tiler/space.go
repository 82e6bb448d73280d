package tiler

// SSPtr is an address in the driver's system space. Each pixel format owns a fixed, disjoint range.
type SSPtr uintptr

// BufferID is the opaque token the driver hands out when a group of blocks is registered as one buffer.
// It doubles as the mmap offset of the buffer on the driver's device node.
type BufferID uint32

const (
	// PageSize is the TILER page size in bytes
	PageSize = 0x1000
	// MaxBlocks is the largest number of blocks that can be packed into one buffer
	MaxBlocks = 16

	Mem8Bit  SSPtr = 0x60000000
	Mem16Bit SSPtr = 0x68000000
	Mem32Bit SSPtr = 0x70000000
	MemPaged SSPtr = 0x78000000
	MemEnd   SSPtr = 0x80000000

	// ContainerWidth and ContainerHeight are the container dimensions in slots
	ContainerWidth  = 256
	ContainerHeight = 128
	// SlotWidth and SlotHeight are the dimensions of one container slot in pixels
	SlotWidth  = 64
	SlotHeight = 64

	// ContainerLength is the size of the page-mode container in bytes
	ContainerLength = ContainerWidth * ContainerHeight * PageSize

	Stride8Bit  = ContainerWidth * SlotWidth
	Stride16Bit = ContainerWidth * SlotWidth * 2
	Stride32Bit = ContainerWidth * SlotWidth * 2
)

// Classify returns the container a system-space address falls in, purely by range
func Classify(ssptr SSPtr) PixelFormat {
	switch {
	case ssptr == 0:
		return FormatInvalid
	case ssptr < Mem8Bit:
		return FormatNone
	case ssptr < Mem16Bit:
		return Format8Bit
	case ssptr < Mem32Bit:
		return Format16Bit
	case ssptr < MemPaged:
		return Format32Bit
	case ssptr < MemEnd:
		return FormatPage
	}
	return FormatNone
}

// FixedStride returns the hardware stride of the container a system-space address falls in. Every 2D
// container has one stride for all of its blocks; page mode reports the page size. Addresses outside
// the TILER report 0.
func FixedStride(ssptr SSPtr) int {
	switch Classify(ssptr) {
	case Format8Bit:
		return Stride8Bit
	case Format16Bit:
		return Stride16Bit
	case Format32Bit:
		return Stride32Bit
	case FormatPage:
		return PageSize
	}
	return 0
}

// ContainerBase returns the first system-space address of the container for a format, or 0 for
// formats that have no container
func ContainerBase(format PixelFormat) SSPtr {
	switch format {
	case Format8Bit:
		return Mem8Bit
	case Format16Bit:
		return Mem16Bit
	case Format32Bit:
		return Mem32Bit
	case FormatPage:
		return MemPaged
	}
	return 0
}
